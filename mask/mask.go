// Package mask converts contour polygons into boolean segmentation masks.
package mask

import (
	"image"
	"image/color"
)

// Mask is a boolean grid stored row-major: Pix[y*Width+x].
type Mask struct {
	Width  int
	Height int
	Pix    []bool
}

// New returns an all-false mask. Negative dimensions are treated as zero.
func New(width, height int) *Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}

	return &Mask{
		Width:  width,
		Height: height,
		Pix:    make([]bool, width*height),
	}
}

func (m *Mask) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

// At reports whether (x, y) is inside the mask. Out of range points are false.
func (m *Mask) At(x, y int) bool {
	if !m.inBounds(x, y) {
		return false
	}

	return m.Pix[y*m.Width+x]
}

// Set is a no-op for out of range points.
func (m *Mask) Set(x, y int, v bool) {
	if !m.inBounds(x, y) {
		return
	}

	m.Pix[y*m.Width+x] = v
}

// Count returns the number of true pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}

	return n
}

// Fraction is Count divided by the number of pixels, or 0 for an empty mask.
func (m *Mask) Fraction() float64 {
	if len(m.Pix) == 0 {
		return 0
	}

	return float64(m.Count()) / float64(len(m.Pix))
}

// Bounds returns the smallest rectangle holding every true pixel; it is empty
// if no pixel is set.
func (m *Mask) Bounds() image.Rectangle {
	var out image.Rectangle
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if !m.Pix[y*m.Width+x] {
				continue
			}
			out = out.Union(image.Rect(x, y, x+1, y+1))
		}
	}

	return out
}

// Gray renders the mask as an 8-bit image: 255 inside, 0 outside.
func (m *Mask) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v {
			img.SetGray(i%m.Width, i/m.Width, color.Gray{Y: 255})
		}
	}

	return img
}

// Equal reports whether two masks have the same shape and pixels.
func (m *Mask) Equal(other *Mask) bool {
	if m.Width != other.Width || m.Height != other.Height {
		return false
	}
	for i := range m.Pix {
		if m.Pix[i] != other.Pix[i] {
			return false
		}
	}

	return true
}
