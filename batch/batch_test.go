package batch

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/carbocation/contourbatch/assemble"
	"github.com/carbocation/contourbatch/contour"
	"github.com/carbocation/contourbatch/mask"
	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/mat"
)

func makeCases(n int) []assemble.Case {
	out := make([]assemble.Case, 0, n)
	for i := 0; i < n; i++ {
		pixels := mat.NewDense(5, 5, nil)
		pixels.Set(0, 0, float64(i))
		out = append(out, assemble.Case{
			Label:  fmt.Sprintf("C1/IM-0001-%04d-icontour-manual.txt", i),
			Pixels: pixels,
			Mask:   mask.FromPolygon(contour.Polygon{{X: 1, Y: 1}, {X: 1, Y: 3}, {X: 3, Y: 3}, {X: 3, Y: 1}}, 5, 5),
		})
	}

	return out
}

func TestSplitSizes(t *testing.T) {
	cases := makeCases(10)

	batches, err := Split(cases, 8, NewRand(1))
	if err != nil {
		t.Fatal(err)
	}

	if len(batches) != 2 || batches[0].Len() != 8 || batches[1].Len() != 2 {
		t.Fatalf("Expected batch sizes [8 2], got %d batches", len(batches))
	}

	var labels []string
	for _, b := range batches {
		if len(b.Images) != len(b.Masks) || len(b.Images) != len(b.Labels) {
			t.Errorf("Batch lists differ in length: %d images, %d masks, %d labels", len(b.Images), len(b.Masks), len(b.Labels))
		}
		labels = append(labels, b.Labels...)
	}

	// A permutation: every case exactly once
	sort.Strings(labels)
	for i, c := range cases {
		if labels[i] != c.Label {
			t.Fatalf("Expected %s at sorted position %d, got %s", c.Label, i, labels[i])
		}
	}
}

func TestSplitKeepsPairsTogether(t *testing.T) {
	cases := makeCases(20)
	byLabel := make(map[string]assemble.Case)
	for _, c := range cases {
		byLabel[c.Label] = c
	}

	batches, err := Split(cases, 3, NewRand(7))
	if err != nil {
		t.Fatal(err)
	}

	if len(batches) != 7 {
		t.Errorf("Expected ceil(20/3) = 7 batches, got %d", len(batches))
	}

	for _, b := range batches {
		for i, label := range b.Labels {
			if b.Images[i] != byLabel[label].Pixels || b.Masks[i] != byLabel[label].Mask {
				t.Errorf("%s was separated from its image or mask", label)
			}
		}
	}
}

func TestSplitIsReproducible(t *testing.T) {
	cases := makeCases(30)

	a, _ := Split(cases, 4, NewRand(42))
	b, _ := Split(cases, 4, NewRand(42))

	for i := range a {
		if strings.Join(a[i].Labels, ",") != strings.Join(b[i].Labels, ",") {
			t.Fatalf("Batch %d differs between identically seeded runs", i)
		}
	}

	// The input order is left alone
	for i, c := range cases {
		if c.Label != fmt.Sprintf("C1/IM-0001-%04d-icontour-manual.txt", i) {
			t.Fatal("Split reordered its input")
		}
	}
}

func TestSplitEdgeCases(t *testing.T) {
	if _, err := Split(makeCases(3), 0, nil); !errors.Is(err, ErrBatchSize) {
		t.Errorf("Expected ErrBatchSize, got %v", err)
	}

	batches, err := Split(nil, 8, nil)
	if err != nil || len(batches) != 0 {
		t.Errorf("Expected no batches for no cases, got %d (%v)", len(batches), err)
	}

	batches, err = Split(makeCases(16), 8, nil)
	if err != nil || len(batches) != 2 || batches[1].Len() != 8 {
		t.Errorf("Expected two full batches, got %d (%v)", len(batches), err)
	}
}

func TestDescribe(t *testing.T) {
	batches, _ := Split(makeCases(3), 2, NewRand(1))

	out := Describe(batches)
	if !strings.HasPrefix(out, "Batch 0: 2 images (2 of 5x5), 2 masks: C1/") {
		t.Errorf("Unexpected description %q", out)
	}
	if strings.Count(out, "\n") != 2 {
		t.Errorf("Expected one line per batch, got %q", out)
	}
}

func TestWriteSummary(t *testing.T) {
	pixels := mat.NewDense(2, 2, []float64{1, 2, 3, 6})
	m := mask.New(2, 2)
	m.Set(1, 1, true)

	batches := []Batch{{
		Labels: []string{"C1/IM-0001-0001-icontour-manual.txt"},
		Images: []*mat.Dense{pixels},
		Masks:  []*mask.Mask{m},
	}}

	var buf bytes.Buffer
	if err := WriteSummary(&buf, batches); err != nil {
		t.Fatal(err)
	}

	var rows []*SummaryRow
	if err := gocsv.UnmarshalBytes(buf.Bytes(), &rows); err != nil {
		t.Fatal(err)
	}

	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.MaskPixels != 1 || r.MaskFraction != 0.25 || r.IntensityMean != 3 || r.IntensityMin != 1 || r.IntensityMax != 6 || r.MaskIntensityMean != 6 {
		t.Errorf("Unexpected summary %+v", r)
	}

	rleBytes, err := base64.StdEncoding.DecodeString(r.MaskRLE)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := mask.DecodeRLE(rleBytes, r.MaskWidth, r.MaskHeight)
	if err != nil {
		t.Fatal(err)
	}
	if !decoded.Equal(m) {
		t.Errorf("Expected the summary's mask to round trip, got %v", decoded.Pix)
	}
}

func TestSummaryMaskShapeDiffersFromImage(t *testing.T) {
	// A 3x2 image whose mask kept the 4x4 shape of an earlier image
	m := mask.FromPolygon(contour.Polygon{{X: 1, Y: 1}, {X: 1, Y: 3}, {X: 3, Y: 3}, {X: 3, Y: 1}}, 4, 4)
	batches := []Batch{{
		Labels: []string{"C1/IM-0001-0002-icontour-manual.txt"},
		Images: []*mat.Dense{mat.NewDense(3, 2, nil)},
		Masks:  []*mask.Mask{m},
	}}

	r := Summarize(batches)[0]
	if r.Rows != 3 || r.Cols != 2 || r.MaskWidth != 4 || r.MaskHeight != 4 {
		t.Fatalf("Unexpected shapes %+v", r)
	}

	rleBytes, err := base64.StdEncoding.DecodeString(r.MaskRLE)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := mask.DecodeRLE(rleBytes, r.MaskWidth, r.MaskHeight)
	if err != nil {
		t.Fatal(err)
	}
	if !decoded.Equal(m) {
		t.Errorf("Expected the mask to round trip, got %v", decoded.Pix)
	}
}

func TestSummarizeEmptyMask(t *testing.T) {
	batches := []Batch{{
		Labels: []string{"x"},
		Images: []*mat.Dense{mat.NewDense(1, 1, []float64{4})},
		Masks:  []*mask.Mask{mask.New(1, 1)},
	}}

	rows := Summarize(batches)
	if rows[0].MaskIntensityMean != 0 {
		t.Errorf("Expected 0 for an empty mask, got %f", rows[0].MaskIntensityMean)
	}
}

func TestNorms(t *testing.T) {
	cases := makeCases(3)
	batches, err := Split(cases, 2, NewRand(1))
	if err != nil {
		t.Fatal(err)
	}

	n := Norms(batches)
	if n.Pixels != 75 {
		t.Errorf("Expected 75 pixels, got %d", n.Pixels)
	}
	if n.Min != 0 || n.Max != 2 {
		t.Errorf("Expected range [0, 2], got [%g, %g]", n.Min, n.Max)
	}
	if math.Abs(n.Mean-3.0/75) > 1e-9 {
		t.Errorf("Expected mean %g, got %g", 3.0/75, n.Mean)
	}

	if empty := Norms(nil); empty.Pixels != 0 || empty.Mean != 0 {
		t.Errorf("Expected zero norms, got %+v", empty)
	}
}

func TestFprintMaskHistogram(t *testing.T) {
	var buf bytes.Buffer

	if err := FprintMaskHistogram(&buf, nil, 10); err != nil || buf.Len() != 0 {
		t.Errorf("Expected no output for no batches, got %q (%v)", buf.String(), err)
	}

	batches, err := Split(makeCases(4), 4, NewRand(1))
	if err != nil {
		t.Fatal(err)
	}
	if err := FprintMaskHistogram(&buf, batches, 10); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "All 4 masks") {
		t.Errorf("Unexpected %q", buf.String())
	}

	batches[0].Masks[0] = mask.New(5, 5)
	buf.Reset()
	if err := FprintMaskHistogram(&buf, batches, 4); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Error("Expected a histogram")
	}
}
