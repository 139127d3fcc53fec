package assemble

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/carbocation/contourbatch"
)

const (
	// ContourSubdir holds the inner contours within each contour set.
	ContourSubdir = "i-contours"

	// Contour filenames look like IM-0001-0048-icontour-manual.txt; the
	// second number is the image's running number within the series.
	contourIDOffset = 8
	contourIDWidth  = 4
)

// Layout locates inputs on disk (or in Google Storage):
//
//	<DicomRoot>/<patient_id>/<contour_id>.dcm
//	<ContourRoot>/<contour_set_id>/i-contours/<contour_filename>
type Layout struct {
	DicomRoot   string
	ContourRoot string
}

func (l Layout) ContourDir(contourSetID string) string {
	return contourbatch.Join(l.ContourRoot, contourSetID, ContourSubdir)
}

func (l Layout) ContourPath(contourSetID, filename string) string {
	return contourbatch.Join(l.ContourDir(contourSetID), filename)
}

func (l Layout) DicomPath(patientID, contourID string) string {
	return contourbatch.Join(l.DicomRoot, patientID, contourID+".dcm")
}

// ContourID extracts the running image number embedded in a contour filename
// and strips its leading zeros, so IM-0001-0023-icontour.txt yields "23". An
// all-zero number yields "0".
func ContourID(filename string) (string, error) {
	if len(filename) < contourIDOffset+contourIDWidth {
		return "", fmt.Errorf("contour filename %q is too short to hold a contour id", filename)
	}

	digits := filename[contourIDOffset : contourIDOffset+contourIDWidth]
	if _, err := strconv.ParseUint(digits, 10, 64); err != nil {
		return "", fmt.Errorf("contour filename %q: %q is not a contour id", filename, digits)
	}

	id := strings.TrimLeft(digits, "0")
	if id == "" {
		id = "0"
	}

	return id, nil
}
