package assemble

import (
	"path/filepath"
	"testing"
)

func TestContourID(t *testing.T) {
	cases := map[string]string{
		"IM-0001-0023-icontour.txt":        "23",
		"IM-0001-0048-icontour-manual.txt": "48",
		"IM-0001-0120-icontour-manual.txt": "120",
		"IM-0001-1000-icontour-manual.txt": "1000",
		"IM-0001-0000-icontour-manual.txt": "0",
	}

	for filename, expected := range cases {
		got, err := ContourID(filename)
		if err != nil {
			t.Errorf("%s: %v", filename, err)
			continue
		}
		if got != expected {
			t.Errorf("%s: expected %q, got %q", filename, expected, got)
		}
	}
}

func TestContourIDRejectsBadNames(t *testing.T) {
	for _, filename := range []string{"", "IM-0001-00", "IM-0001-ab12-icontour.txt", "README.md"} {
		if id, err := ContourID(filename); err == nil {
			t.Errorf("%s: expected an error, got %q", filename, id)
		}
	}
}

func TestLayoutPaths(t *testing.T) {
	l := Layout{DicomRoot: "final_data/dicoms/", ContourRoot: "final_data/contourfiles/"}

	if got, want := l.DicomPath("SCD0000101", "48"), filepath.Join("final_data", "dicoms", "SCD0000101", "48.dcm"); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	if got, want := l.ContourPath("SC-HF-I-1", "IM-0001-0048-icontour-manual.txt"), filepath.Join("final_data", "contourfiles", "SC-HF-I-1", "i-contours", "IM-0001-0048-icontour-manual.txt"); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	gs := Layout{DicomRoot: "gs://bucket/dicoms", ContourRoot: "gs://bucket/contourfiles"}
	if got := gs.ContourDir("SC-HF-I-1"); got != "gs://bucket/contourfiles/SC-HF-I-1/i-contours" {
		t.Errorf("Unexpected google storage contour dir %s", got)
	}
}
