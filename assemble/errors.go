package assemble

import "fmt"

// InvalidDicomError reports a contour whose paired DICOM file exists but could
// not be decoded.
type InvalidDicomError struct {
	Label     string
	DicomPath string
	Reason    error
}

func (e *InvalidDicomError) Error() string {
	return fmt.Sprintf("%s: paired DICOM %s is invalid: %v", e.Label, e.DicomPath, e.Reason)
}

func (e *InvalidDicomError) Unwrap() error { return e.Reason }

// DimensionError reports an image whose shape differs from the first image of
// the same patient.
type DimensionError struct {
	Label              string
	DicomPath          string
	WantRows, WantCols int
	GotRows, GotCols   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: %s is %dx%d but the patient's first image is %dx%d", e.Label, e.DicomPath, e.GotRows, e.GotCols, e.WantRows, e.WantCols)
}
