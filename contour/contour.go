// Package contour reads contour annotation files: plain text files with one
// "x y" coordinate pair per line, in pixel units.
package contour

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/carbocation/contourbatch"
)

type Point struct {
	X, Y float64
}

// Polygon is an ordered list of vertices. It is not explicitly closed; the
// last vertex implicitly connects back to the first.
type Polygon []Point

// ParseError reports the first malformed line of a contour file. Parsing stops
// at that line and no partial polygon is returned.
type ParseError struct {
	Path string
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	name := e.Path
	if name == "" {
		name = "contour"
	}

	return fmt.Sprintf("%s:%d: cannot parse %q: %v", name, e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseFile reads and parses the contour file at path.
func ParseFile(src *contourbatch.FileSource, path string) (Polygon, error) {
	data, err := src.ReadFile(path)
	if err != nil {
		return nil, err
	}

	poly, err := Parse(bytes.NewReader(data))
	if perr, ok := err.(*ParseError); ok {
		perr.Path = path
	}

	return poly, err
}

// Parse reads one point per line. Each non-blank line must start with two
// whitespace-separated floating point values; anything after the second
// value is ignored.
func Parse(r io.Reader) (Polygon, error) {
	var out Polygon

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if len(fields) < 2 {
			return nil, &ParseError{Line: lineNo, Text: line, Err: fmt.Errorf("expected 2 coordinates, found %d", len(fields))}
		}

		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Text: line, Err: err}
		}

		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Text: line, Err: err}
		}

		out = append(out, Point{X: x, Y: y})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// Bounds returns the smallest axis-aligned box containing every vertex. ok is
// false for an empty polygon.
func (p Polygon) Bounds() (min, max Point, ok bool) {
	if len(p) == 0 {
		return Point{}, Point{}, false
	}

	min, max = p[0], p[0]
	for _, v := range p[1:] {
		if v.X < min.X {
			min.X = v.X
		}
		if v.Y < min.Y {
			min.Y = v.Y
		}
		if v.X > max.X {
			max.X = v.X
		}
		if v.Y > max.Y {
			max.Y = v.Y
		}
	}

	return min, max, true
}

// Area is the absolute shoelace area of the implicitly closed polygon.
func (p Polygon) Area() float64 {
	if len(p) < 3 {
		return 0
	}

	var twice float64
	for i := range p {
		j := (i + 1) % len(p)
		twice += p[i].X*p[j].Y - p[j].X*p[i].Y
	}

	if twice < 0 {
		twice = -twice
	}

	return twice / 2
}
