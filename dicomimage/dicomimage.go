// Package dicomimage decodes the pixel data of single DICOM files into numeric
// arrays, applying the modality rescale where the file defines one.
package dicomimage

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"io/ioutil"
	"log"
	"strconv"
	"strings"

	"github.com/carbocation/contourbatch"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/dicomtag"
	"github.com/suyashkumar/dicom/element"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalid       = errors.New("not a valid DICOM file")
	ErrNoPixelData   = errors.New("DICOM file has no pixel data")
	ErrTruncatedData = errors.New("DICOM pixel data is shorter than rows x columns")
)

// Image holds the pixel grid of one DICOM file, one row per image row.
type Image struct {
	Pixels *mat.Dense

	// Values as read from the file; 0 when absent.
	RescaleSlope     float64
	RescaleIntercept float64

	// Rescaled is true if Pixels already had the rescale applied.
	Rescaled bool
}

func (im *Image) Rows() int {
	r, _ := im.Pixels.Dims()
	return r
}

func (im *Image) Cols() int {
	_, c := im.Pixels.Dims()
	return c
}

// ParseFile reads the file at path and decodes it. Errors opening or reading
// the file are returned; a file that can be read but is not a usable DICOM
// yields an invalid Result and a nil error.
func ParseFile(src *contourbatch.FileSource, path string) (Result, error) {
	dcm, err := src.ReadFile(path)
	if err != nil {
		return Result{}, err
	}

	res := ParseBytes(dcm)
	if !res.Valid() {
		return Invalid(fmt.Errorf("%s: %w", path, res.Reason())), nil
	}

	return res, nil
}

// ParseReader consumes r fully and decodes it.
func ParseReader(r io.Reader) (Result, error) {
	dcm, err := ioutil.ReadAll(r)
	if err != nil {
		return Result{}, err
	}

	return ParseBytes(dcm), nil
}

// ParseBytes decodes an in-memory DICOM file.
func ParseBytes(dcm []byte) Result {
	p, err := safelyNewParser(dcm)
	if err != nil {
		return Invalid(fmt.Errorf("%w: %v", ErrInvalid, err))
	}

	parsedData, err := SafelyDicomParse(p, dicom.ParseOptions{
		DropPixelData: false,
	})
	if parsedData == nil || err != nil {
		return Invalid(fmt.Errorf("%w: %v", ErrInvalid, err))
	}

	img, err := FromDataSet(parsedData)
	if err != nil {
		return Invalid(err)
	}

	return Decoded(img)
}

// FromDataSet extracts the first frame of pixel data from a parsed DICOM and
// applies the rescale slope and intercept if both are present and non-zero.
func FromDataSet(parsedData *element.DataSet) (*Image, error) {
	var rescaleSlope, rescaleIntercept float64
	var imgRows, imgCols int
	var pixels *mat.Dense

	for _, elem := range parsedData.Elements {
		if elem == nil || len(elem.Value) == 0 {
			continue
		}

		switch elem.Tag {
		case dicomtag.RescaleSlope:
			rescaleSlope = decimalValue(elem)
		case dicomtag.RescaleIntercept:
			rescaleIntercept = decimalValue(elem)
		case dicomtag.Rows:
			if v, ok := elem.Value[0].(uint16); ok {
				imgRows = int(v)
			}
		case dicomtag.Columns:
			if v, ok := elem.Value[0].(uint16); ok {
				imgCols = int(v)
			}
		case dicomtag.PixelData:
			if pixels != nil {
				continue
			}

			data, ok := elem.Value[0].(element.PixelDataInfo)
			if !ok {
				return nil, fmt.Errorf("%w: unexpected pixel data type %T", ErrNoPixelData, elem.Value[0])
			}

			var err error
			pixels, err = firstFrame(data, imgRows, imgCols)
			if err != nil {
				return nil, err
			}
		}
	}

	if pixels == nil {
		return nil, ErrNoPixelData
	}

	out := &Image{
		Pixels:           pixels,
		RescaleSlope:     rescaleSlope,
		RescaleIntercept: rescaleIntercept,
	}
	out.Rescaled = ApplyRescale(out.Pixels, rescaleSlope, rescaleIntercept)

	return out, nil
}

// ApplyRescale replaces every value v with v*slope + intercept, in place. As
// with the pipeline this replaces, the rescale is only applied when both the
// slope and the intercept are non-zero, so a file with a zero intercept keeps
// its stored values. Reports whether the rescale was applied.
func ApplyRescale(pixels *mat.Dense, slope, intercept float64) bool {
	if slope == 0 || intercept == 0 {
		return false
	}

	pixels.Apply(func(_, _ int, v float64) float64 {
		return v*slope + intercept
	}, pixels)

	return true
}

func firstFrame(data element.PixelDataInfo, tagRows, tagCols int) (*mat.Dense, error) {
	for _, fr := range data.Frames {
		if fr.IsEncapsulated() {
			// GetImage uses image/jpeg, which cannot read JPEG lossless
			encImg, err := fr.GetImage()
			if err != nil {
				return nil, fmt.Errorf("%w: encapsulated frame: %v", ErrInvalid, err)
			}

			b := encImg.Bounds()
			if b.Dx() == 0 || b.Dy() == 0 {
				return nil, ErrNoPixelData
			}

			out := mat.NewDense(b.Dy(), b.Dx(), nil)
			for y := b.Min.Y; y < b.Max.Y; y++ {
				for x := b.Min.X; x < b.Max.X; x++ {
					gray := color.Gray16Model.Convert(encImg.At(x, y)).(color.Gray16)
					out.Set(y-b.Min.Y, x-b.Min.X, float64(gray.Y))
				}
			}

			return out, nil
		}

		rows, cols := fr.NativeData.Rows, fr.NativeData.Cols
		if rows == 0 || cols == 0 {
			rows, cols = tagRows, tagCols
		}
		if rows == 0 || cols == 0 {
			return nil, ErrNoPixelData
		}

		if len(fr.NativeData.Data) < rows*cols {
			return nil, fmt.Errorf("%w: have %d values for %dx%d", ErrTruncatedData, len(fr.NativeData.Data), rows, cols)
		}

		values := make([]float64, rows*cols)
		for j := range values {
			sample := fr.NativeData.Data[j]
			if len(sample) == 0 {
				return nil, ErrTruncatedData
			}

			// Multi-sample pixels keep their first sample
			values[j] = float64(sample[0])
		}

		return mat.NewDense(rows, cols, values), nil
	}

	return nil, ErrNoPixelData
}

// decimalValue reads a DS-valued element. Absent or unparseable values are 0.
func decimalValue(elem *element.Element) float64 {
	switch v := elem.Value[0].(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			log.Printf("Could not parse %v value %q: %v\n", elem.Tag, v, err)
			return 0
		}
		return f
	case float64:
		return v
	case float32:
		return float64(v)
	}

	return 0
}
