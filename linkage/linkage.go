// Package linkage reads the manifest that links each patient's DICOM
// directory to the identifier of its contour set.
package linkage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/carbocation/contourbatch"
)

// HeaderField is the literal first field of the manifest header row.
const HeaderField = "patient_id"

// Linkage holds parallel lists: ContourIDs[i] is the contour set of
// PatientIDs[i], in manifest order.
type Linkage struct {
	PatientIDs []string
	ContourIDs []string
}

func (l Linkage) NumPatients() int {
	return len(l.PatientIDs)
}

// FormatError describes a manifest row that could not be used.
type FormatError struct {
	Line   int
	Record []string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("manifest line %d %q: %v", e.Line, strings.Join(e.Record, ","), e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ReadFile reads the manifest at path. A zero delimiter asks for the
// delimiter to be detected from the file's contents.
func ReadFile(src *contourbatch.FileSource, path string, delimiter rune) (Linkage, error) {
	data, err := src.ReadFile(path)
	if err != nil {
		return Linkage{}, err
	}

	if delimiter == 0 {
		delimiter = contourbatch.DetermineDelimiter(data)
	}

	out, err := Read(bytes.NewReader(data), delimiter)
	if err != nil {
		return out, fmt.Errorf("%s: %w", path, err)
	}

	return out, nil
}

// Read parses a manifest whose first column is the patient id and whose
// second column is the contour set id. Any row whose first field is
// "patient_id" is treated as a header and skipped. Rows need at least two
// non-empty fields, and patient ids must be unique.
func Read(r io.Reader, delimiter rune) (Linkage, error) {
	out := Linkage{}

	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	seen := make(map[string]int)

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			}
			return Linkage{}, &FormatError{Line: line, Record: record, Err: err}
		}
		line, _ := cr.FieldPos(0)

		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}

		if record[0] == HeaderField {
			continue
		}

		if len(record) < 2 {
			return Linkage{}, &FormatError{Line: line, Record: record, Err: fmt.Errorf("expected at least 2 fields, found %d", len(record))}
		}

		if record[0] == "" || record[1] == "" {
			return Linkage{}, &FormatError{Line: line, Record: record, Err: fmt.Errorf("patient id and contour id must both be set")}
		}

		if prior, exists := seen[record[0]]; exists {
			return Linkage{}, &FormatError{Line: line, Record: record, Err: fmt.Errorf("patient %s already listed on line %d", record[0], prior)}
		}
		seen[record[0]] = line

		out.PatientIDs = append(out.PatientIDs, record[0])
		out.ContourIDs = append(out.ContourIDs, record[1])
	}

	return out, nil
}
