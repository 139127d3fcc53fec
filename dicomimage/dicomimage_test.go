package dicomimage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/suyashkumar/dicom/dicomtag"
	"github.com/suyashkumar/dicom/element"
	"github.com/suyashkumar/dicom/frame"
	"gonum.org/v1/gonum/mat"
)

func dataSet(slope, intercept string, rows, cols int, values ...int) *element.DataSet {
	samples := make([][]int, 0, len(values))
	for _, v := range values {
		samples = append(samples, []int{v})
	}

	ds := &element.DataSet{}
	if slope != "" {
		ds.Elements = append(ds.Elements, &element.Element{Tag: dicomtag.RescaleSlope, Value: []interface{}{slope}})
	}
	if intercept != "" {
		ds.Elements = append(ds.Elements, &element.Element{Tag: dicomtag.RescaleIntercept, Value: []interface{}{intercept}})
	}
	ds.Elements = append(ds.Elements,
		&element.Element{Tag: dicomtag.Rows, Value: []interface{}{uint16(rows)}},
		&element.Element{Tag: dicomtag.Columns, Value: []interface{}{uint16(cols)}},
		&element.Element{Tag: dicomtag.PixelData, Value: []interface{}{element.PixelDataInfo{
			Frames: []frame.Frame{{
				NativeData: frame.NativeFrame{Rows: rows, Cols: cols, Data: samples},
			}},
		}}},
	)

	return ds
}

func TestRescaleApplied(t *testing.T) {
	img, err := FromDataSet(dataSet("2.0", "1.0", 1, 2, 10, 0))
	if err != nil {
		t.Fatal(err)
	}

	if !img.Rescaled {
		t.Error("Expected the rescale to be applied")
	}
	if v := img.Pixels.At(0, 0); v != 21 {
		t.Errorf("Expected 21, got %f", v)
	}
	if v := img.Pixels.At(0, 1); v != 1 {
		t.Errorf("Expected 1, got %f", v)
	}
}

func TestRescaleSkippedWhenSlopeAbsent(t *testing.T) {
	img, err := FromDataSet(dataSet("", "1.0", 1, 1, 10))
	if err != nil {
		t.Fatal(err)
	}

	if img.Rescaled || img.RescaleSlope != 0 {
		t.Errorf("Expected no rescale, got %+v", img)
	}
	if v := img.Pixels.At(0, 0); v != 10 {
		t.Errorf("Expected 10, got %f", v)
	}
}

func TestRescaleSkippedWhenInterceptZero(t *testing.T) {
	// A genuine slope with a zero intercept is left alone.
	img, err := FromDataSet(dataSet("2", "0", 1, 1, 10))
	if err != nil {
		t.Fatal(err)
	}

	if img.Rescaled {
		t.Error("Expected no rescale with a zero intercept")
	}
	if v := img.Pixels.At(0, 0); v != 10 {
		t.Errorf("Expected 10, got %f", v)
	}
}

func TestUnparseableRescaleIsZero(t *testing.T) {
	img, err := FromDataSet(dataSet("abc", "1", 1, 1, 7))
	if err != nil {
		t.Fatal(err)
	}
	if img.Rescaled || img.Pixels.At(0, 0) != 7 {
		t.Errorf("Expected raw value 7, got %f", img.Pixels.At(0, 0))
	}
}

func TestShape(t *testing.T) {
	img, err := FromDataSet(dataSet("", "", 2, 3, 1, 2, 3, 4, 5, 6))
	if err != nil {
		t.Fatal(err)
	}

	if img.Rows() != 2 || img.Cols() != 3 {
		t.Fatalf("Expected 2x3, got %dx%d", img.Rows(), img.Cols())
	}

	// Row-major: the second row starts with the fourth value
	if img.Pixels.At(1, 0) != 4 || img.Pixels.At(0, 2) != 3 {
		t.Errorf("Unexpected layout: %v", mat.Formatted(img.Pixels))
	}
}

func TestTruncatedPixelData(t *testing.T) {
	if _, err := FromDataSet(dataSet("", "", 2, 2, 1, 2, 3)); !errors.Is(err, ErrTruncatedData) {
		t.Errorf("Expected ErrTruncatedData, got %v", err)
	}
}

func TestNoPixelData(t *testing.T) {
	ds := &element.DataSet{Elements: []*element.Element{
		{Tag: dicomtag.RescaleSlope, Value: []interface{}{"1"}},
	}}

	if _, err := FromDataSet(ds); !errors.Is(err, ErrNoPixelData) {
		t.Errorf("Expected ErrNoPixelData, got %v", err)
	}
}

func TestApplyRescale(t *testing.T) {
	pixels := mat.NewDense(1, 2, []float64{10, -4})

	if !ApplyRescale(pixels, 0.5, -1024) {
		t.Fatal("Expected the rescale to be applied")
	}
	if pixels.At(0, 0) != -1019 || pixels.At(0, 1) != -1026 {
		t.Errorf("Unexpected values %v", mat.Formatted(pixels))
	}

	if ApplyRescale(pixels, 0, 5) {
		t.Error("Expected no rescale with a zero slope")
	}
}

func TestGarbageIsInvalid(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":   nil,
		"short":   []byte("DICM"),
		"text":    []byte("120.50 137.50\n121.50 137.50\n"),
		"nomagic": make([]byte, 256),
	} {
		res := ParseBytes(data)
		if res.Valid() {
			t.Errorf("%s: expected an invalid result", name)
		}
		if img, ok := res.Get(); ok || img != nil {
			t.Errorf("%s: expected no image", name)
		}
		if !errors.Is(res.Reason(), ErrInvalid) {
			t.Errorf("%s: expected ErrInvalid, got %v", name, res.Reason())
		}
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "48.dcm")
	if err := os.WriteFile(bad, []byte("not a dicom"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := ParseFile(nil, bad)
	if err != nil {
		t.Fatalf("An invalid DICOM should not be an error, got %v", err)
	}
	if res.Valid() {
		t.Error("Expected an invalid result")
	}

	if _, err := ParseFile(nil, filepath.Join(dir, "missing.dcm")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected a not-exist error for a missing file, got %v", err)
	}
}

func TestInvalidResultReason(t *testing.T) {
	var zero Result
	if zero.Valid() || !errors.Is(zero.Reason(), ErrInvalid) {
		t.Error("The zero Result should be invalid")
	}

	if r := Invalid(nil); !errors.Is(r.Reason(), ErrInvalid) {
		t.Errorf("Unexpected reason %v", r.Reason())
	}
}

func TestParseFileNativeCT(t *testing.T) {
	res, err := ParseFile(nil, filepath.Join("testdata", "CT-MONO2-16-ort.dcm"))
	if err != nil {
		t.Fatal(err)
	}

	img, ok := res.Get()
	if !ok {
		t.Fatalf("Expected a decoded image, got %v", res.Reason())
	}

	if img.Rows() != 512 || img.Cols() != 512 {
		t.Errorf("Expected 512x512, got %dx%d", img.Rows(), img.Cols())
	}
	if img.RescaleSlope != 1 || img.RescaleIntercept != -1024 || !img.Rescaled {
		t.Errorf("Expected slope 1 and intercept -1024 to be applied, got %+v", img)
	}

	// Stored value 50
	if v := img.Pixels.At(256, 256); v != -974 {
		t.Errorf("Expected -974 at the centre, got %f", v)
	}
}

func TestParseFileJPEGLosslessIsInvalid(t *testing.T) {
	// image/jpeg has no lossless decoder, so these frames cannot be read.
	res, err := ParseFile(nil, filepath.Join("testdata", "IM-0001-0001.dcm"))
	if err != nil {
		t.Fatal(err)
	}

	if res.Valid() {
		t.Fatal("Expected an invalid result")
	}
	if !errors.Is(res.Reason(), ErrInvalid) || !strings.Contains(res.Reason().Error(), "encapsulated") {
		t.Errorf("Unexpected reason %v", res.Reason())
	}
}
