// Package preview draws assembled cases for visual inspection: the image in
// grayscale, the mask tinted on top, and the contour outline.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/carbocation/contourbatch/assemble"
	"github.com/carbocation/pfx"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/bmp"
	"gonum.org/v1/gonum/mat"
)

const (
	FormatPNG = "png"
	FormatBMP = "bmp"
)

type Options struct {
	// Scale is an integer nearest-neighbour upscale factor. Values below 2
	// leave the image at its native size.
	Scale int

	MaskColor    color.NRGBA
	ContourColor color.Color
	LineWidth    float64
}

func DefaultOptions() Options {
	return Options{
		Scale:        1,
		MaskColor:    color.NRGBA{R: 255, A: 128},
		ContourColor: color.NRGBA{R: 255, G: 255, A: 255},
		LineWidth:    1,
	}
}

// Grayscale linearly maps the smallest pixel value to black and the largest to
// white.
func Grayscale(pixels *mat.Dense) *image.Gray {
	rows, cols := pixels.Dims()
	img := image.NewGray(image.Rect(0, 0, cols, rows))

	lo, hi := mat.Min(pixels), mat.Max(pixels)
	span := hi - lo

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			var v float64
			if span > 0 {
				v = 255 * (pixels.At(y, x) - lo) / span
			}
			img.SetGray(x, y, color.Gray{Y: uint8(math.Round(v))})
		}
	}

	return img
}

// Render draws one case.
func Render(c assemble.Case, opts Options) (image.Image, error) {
	if c.Pixels == nil || c.Mask == nil {
		return nil, fmt.Errorf("%s: case has no image or mask", c.Label)
	}

	dc := gg.NewContextForImage(Grayscale(c.Pixels))

	tint := image.NewNRGBA(image.Rect(0, 0, c.Mask.Width, c.Mask.Height))
	for i, inside := range c.Mask.Pix {
		if inside {
			tint.SetNRGBA(i%c.Mask.Width, i/c.Mask.Width, opts.MaskColor)
		}
	}
	dc.DrawImage(tint, 0, 0)

	if len(c.Contour) > 1 && opts.ContourColor != nil && opts.LineWidth > 0 {
		dc.MoveTo(c.Contour[0].X, c.Contour[0].Y)
		for _, p := range c.Contour[1:] {
			dc.LineTo(p.X, p.Y)
		}
		dc.ClosePath()
		dc.SetColor(opts.ContourColor)
		dc.SetLineWidth(opts.LineWidth)
		dc.Stroke()
	}

	out := dc.Image()
	if opts.Scale > 1 {
		b := out.Bounds()
		out = imaging.Resize(out, b.Dx()*opts.Scale, b.Dy()*opts.Scale, imaging.NearestNeighbor)
	}

	return out, nil
}

// FileName turns a case label into a flat filename with the format's
// extension.
func FileName(label, format string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(label) + "." + format
}

// Save writes img to path as PNG or BMP.
func Save(path string, img image.Image, format string) error {
	switch format {
	case FormatPNG, "":
		if err := gg.SavePNG(path, img); err != nil {
			return pfx.Err(err)
		}
		return nil
	case FormatBMP:
		f, err := os.Create(path)
		if err != nil {
			return pfx.Err(err)
		}
		if err := bmp.Encode(f, img); err != nil {
			f.Close()
			return pfx.Err(err)
		}
		return f.Close()
	}

	return fmt.Errorf("unknown preview format %q", format)
}

// WriteCase renders c and saves it into dir, returning the written path.
func WriteCase(dir string, c assemble.Case, opts Options, format string) (string, error) {
	if format == "" {
		format = FormatPNG
	}

	img, err := Render(c, opts)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, FileName(c.Label, format))

	return path, Save(path, img, format)
}

// ParseColor reads a #RRGGBB or #RRGGBBAA color code. Without an alpha
// channel the color is opaque.
func ParseColor(colorCode string) (color.NRGBA, error) {
	colorCode = strings.TrimPrefix(colorCode, "#")
	if len(colorCode) != 6 && len(colorCode) != 8 {
		return color.NRGBA{}, fmt.Errorf("color code %q should have 6 or 8 hex digits", colorCode)
	}

	channels := [4]uint8{255, 255, 255, 255}
	for i := 0; i < len(colorCode)/2; i++ {
		v, err := strconv.ParseUint(colorCode[2*i:2*i+2], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("color code %q: %w", colorCode, err)
		}
		channels[i] = uint8(v)
	}

	return color.NRGBA{R: channels[0], G: channels[1], B: channels[2], A: channels[3]}, nil
}
