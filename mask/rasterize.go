package mask

import (
	"math"
	"sort"

	"github.com/carbocation/contourbatch/contour"
)

type FillRule int

const (
	EvenOdd FillRule = iota
	NonZero
)

type crossing struct {
	x   float64
	dir int
}

// FromPolygon rasterizes poly onto a width x height grid with the even-odd
// rule. See Rasterize.
func FromPolygon(poly contour.Polygon, width, height int) *Mask {
	return Rasterize(poly, width, height, EvenOdd)
}

// Rasterize fills the implicitly closed polygon with binary coverage. Vertex
// coordinates are in pixel units with (0, 0) at the top left corner of the
// top left pixel, and a pixel is set when its centre (x+0.5, y+0.5) is inside
// the polygon. Centres that fall exactly on an edge belong to the pixel to the
// right of (or below) that edge, so adjacent polygons never share a pixel.
//
// Fewer than 3 vertices, zero area, or non-finite coordinates produce an
// all-false mask.
func Rasterize(poly contour.Polygon, width, height int, rule FillRule) *Mask {
	out := New(width, height)
	if out.Width == 0 || out.Height == 0 || !fillable(poly) {
		return out
	}

	crossings := make([]crossing, 0, 8)
	for y := 0; y < out.Height; y++ {
		yc := float64(y) + 0.5

		crossings = crossings[:0]
		for i := range poly {
			a, b := poly[i], poly[(i+1)%len(poly)]

			// Half-open in y so shared vertices are counted exactly once and
			// horizontal edges are never counted.
			if (a.Y > yc) == (b.Y > yc) {
				continue
			}

			dir := 1
			if b.Y < a.Y {
				dir = -1
			}

			x := a.X + (yc-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			crossings = append(crossings, crossing{x: x, dir: dir})
		}

		if len(crossings) < 2 {
			continue
		}

		sort.Slice(crossings, func(i, j int) bool { return crossings[i].x < crossings[j].x })

		winding := 0
		for i := 0; i < len(crossings)-1; i++ {
			if rule == NonZero {
				winding += crossings[i].dir
			} else {
				winding ^= 1
			}

			if winding == 0 {
				continue
			}

			fillSpan(out, y, crossings[i].x, crossings[i+1].x)
		}
	}

	return out
}

// fillSpan sets every pixel on row y whose centre lies in [x0, x1).
func fillSpan(m *Mask, y int, x0, x1 float64) {
	limit := float64(m.Width)
	start := int(math.Ceil(math.Max(0, math.Min(x0-0.5, limit))))
	end := int(math.Ceil(math.Max(0, math.Min(x1-0.5, limit))))

	row := m.Pix[y*m.Width : (y+1)*m.Width]
	for x := start; x < end; x++ {
		row[x] = true
	}
}

func fillable(poly contour.Polygon) bool {
	if len(poly) < 3 {
		return false
	}

	for _, p := range poly {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return false
		}
	}

	return poly.Area() > 0
}
