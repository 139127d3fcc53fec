package batch

import (
	"fmt"
	"io"

	"github.com/aybabtme/uniplot/histogram"
)

// FprintMaskHistogram draws a text histogram of the fraction of each image
// covered by its mask.
func FprintMaskHistogram(w io.Writer, batches []Batch, bins int) error {
	var fractions []float64
	for _, b := range batches {
		for _, m := range b.Masks {
			fractions = append(fractions, m.Fraction())
		}
	}

	if len(fractions) == 0 {
		return nil
	}

	distinct := false
	for _, f := range fractions[1:] {
		if f != fractions[0] {
			distinct = true
			break
		}
	}
	if !distinct {
		_, err := fmt.Fprintf(w, "All %d masks cover a fraction of %.4g\n", len(fractions), fractions[0])
		return err
	}

	hist := histogram.Hist(bins, fractions)

	return histogram.Fprint(w, hist, histogram.Linear(40))
}
