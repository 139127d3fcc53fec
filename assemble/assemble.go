// Package assemble pairs every contour file with its DICOM image, producing
// one (label, pixels, mask) case per contour.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/carbocation/contourbatch"
	"github.com/carbocation/contourbatch/contour"
	"github.com/carbocation/contourbatch/dicomimage"
	"github.com/carbocation/contourbatch/linkage"
	"github.com/carbocation/contourbatch/mask"
	"gonum.org/v1/gonum/mat"
)

// Case is one labeled training example. Cases are not modified after they are
// assembled.
type Case struct {
	// <contour_set_id>/<contour_filename>
	Label  string
	Pixels *mat.Dense
	Mask   *mask.Mask

	// Contour is the polygon Mask was rasterized from.
	Contour contour.Polygon
}

// DecodeFunc decodes the DICOM file at path.
type DecodeFunc func(src *contourbatch.FileSource, path string) (dicomimage.Result, error)

type Options struct {
	// SkipInvalid logs and skips contours whose DICOM cannot be decoded.
	// Otherwise they abort assembly with an *InvalidDicomError.
	SkipInvalid bool

	// StrictDimensions fails with a *DimensionError when a patient's images
	// differ in shape. Otherwise every mask takes the shape of the patient's
	// first image.
	StrictDimensions bool

	// Concurrency is the number of patients assembled at once. Values below 2
	// assemble sequentially.
	Concurrency int

	FillRule mask.FillRule
}

type Assembler struct {
	Source  *contourbatch.FileSource
	Layout  Layout
	Linkage linkage.Linkage
	Options Options

	// Decode defaults to dicomimage.ParseFile.
	Decode DecodeFunc
}

func New(src *contourbatch.FileSource, layout Layout, link linkage.Linkage, opts Options) *Assembler {
	return &Assembler{
		Source:  src,
		Layout:  layout,
		Linkage: link,
		Options: opts,
		Decode:  dicomimage.ParseFile,
	}
}

func (a *Assembler) decode(path string) (dicomimage.Result, error) {
	if a.Decode == nil {
		return dicomimage.ParseFile(a.Source, path)
	}

	return a.Decode(a.Source, path)
}

func (a *Assembler) checkIndex(patientIndex int) error {
	if patientIndex < 0 || patientIndex >= a.Linkage.NumPatients() {
		return fmt.Errorf("patient index %d out of range [0, %d)", patientIndex, a.Linkage.NumPatients())
	}
	if patientIndex >= len(a.Linkage.ContourIDs) {
		return fmt.Errorf("patient %s has no contour set id", a.Linkage.PatientIDs[patientIndex])
	}

	return nil
}

// ContourFiles lists the contour filenames of one patient, sorted by name.
// Hidden files are ignored.
func (a *Assembler) ContourFiles(patientIndex int) ([]string, error) {
	if err := a.checkIndex(patientIndex); err != nil {
		return nil, err
	}

	dir := a.Layout.ContourDir(a.Linkage.ContourIDs[patientIndex])
	names, err := a.Source.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing contours for patient %s: %w", a.Linkage.PatientIDs[patientIndex], err)
	}

	out := names[:0]
	for _, name := range names {
		if strings.HasPrefix(name, ".") {
			continue
		}
		out = append(out, name)
	}

	return out, nil
}

// Patient assembles every case of the patient at patientIndex, in contour
// filename order. Masks take the shape of the first image decoded for the
// patient.
func (a *Assembler) Patient(ctx context.Context, patientIndex int) ([]Case, error) {
	files, err := a.ContourFiles(patientIndex)
	if err != nil {
		return nil, err
	}

	patientID := a.Linkage.PatientIDs[patientIndex]
	contourSetID := a.Linkage.ContourIDs[patientIndex]

	if len(files) == 0 {
		return nil, fmt.Errorf("patient %s: no contour files in %s", patientID, a.Layout.ContourDir(contourSetID))
	}

	var rows, cols int
	haveDims := false
	out := make([]Case, 0, len(files))

	for _, filename := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		label := contourSetID + "/" + filename

		contourID, err := ContourID(filename)
		if err != nil {
			return nil, fmt.Errorf("patient %s: %w", patientID, err)
		}
		dicomPath := a.Layout.DicomPath(patientID, contourID)

		res, err := a.decode(dicomPath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", label, err)
		}

		img, ok := res.Get()
		if !ok {
			invalid := &InvalidDicomError{Label: label, DicomPath: dicomPath, Reason: res.Reason()}
			if a.Options.SkipInvalid {
				log.Printf("Skipping %v\n", invalid)
				continue
			}
			return nil, invalid
		}

		if !haveDims {
			rows, cols = img.Pixels.Dims()
			haveDims = true
		} else if r, c := img.Pixels.Dims(); a.Options.StrictDimensions && (r != rows || c != cols) {
			return nil, &DimensionError{Label: label, DicomPath: dicomPath, WantRows: rows, WantCols: cols, GotRows: r, GotCols: c}
		}

		poly, err := contour.ParseFile(a.Source, a.Layout.ContourPath(contourSetID, filename))
		if err != nil {
			return nil, err
		}

		out = append(out, Case{
			Label:   label,
			Pixels:  img.Pixels,
			Mask:    mask.Rasterize(poly, cols, rows, a.Options.FillRule),
			Contour: poly,
		})
	}

	return out, nil
}

// All assembles every patient in the linkage and returns their cases in
// manifest order. With Options.Concurrency above 1, patients are assembled in
// parallel; the first error in manifest order is returned.
func (a *Assembler) All(ctx context.Context) ([]Case, error) {
	n := a.Linkage.NumPatients()
	perPatient := make([][]Case, n)
	errs := make([]error, n)

	if a.Options.Concurrency < 2 {
		for i := 0; i < n; i++ {
			if perPatient[i], errs[i] = a.Patient(ctx, i); errs[i] != nil {
				return nil, errs[i]
			}
			log.Printf("Assembled %d cases for patient %s\n", len(perPatient[i]), a.Linkage.PatientIDs[i])
		}
	} else {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		sem := make(chan struct{}, a.Options.Concurrency)
		var wg sync.WaitGroup

		for i := 0; i < n; i++ {
			// Will block after `Concurrency` simultaneous goroutines are running
			sem <- struct{}{}
			if ctx.Err() != nil {
				<-sem
				break
			}

			wg.Add(1)
			go func(i int) {
				defer func() {
					<-sem
					wg.Done()
				}()

				perPatient[i], errs[i] = a.Patient(ctx, i)
				if errs[i] != nil {
					cancel()
					return
				}
				log.Printf("Assembled %d cases for patient %s\n", len(perPatient[i]), a.Linkage.PatientIDs[i])
			}(i)
		}

		wg.Wait()

		if err := firstError(errs); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Case
	for _, cases := range perPatient {
		out = append(out, cases...)
	}

	return out, nil
}

// firstError prefers a patient's own failure over the cancellations it caused
// in the patients running alongside it.
func firstError(errs []error) error {
	var canceled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			if canceled == nil {
				canceled = err
			}
			continue
		}
		return err
	}

	return canceled
}
