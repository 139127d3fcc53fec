package batch

import (
	"encoding/base64"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"
)

// SummaryRow describes one case in its batch.
type SummaryRow struct {
	Batch             int     `csv:"batch"`
	Position          int     `csv:"position"`
	Label             string  `csv:"label"`
	Rows              int     `csv:"rows"`
	Cols              int     `csv:"cols"`
	MaskPixels        int     `csv:"mask_pixels"`
	MaskFraction      float64 `csv:"mask_fraction"`
	IntensityMean     float64 `csv:"intensity_mean"`
	IntensitySD       float64 `csv:"intensity_sd"`
	IntensityMin      float64 `csv:"intensity_min"`
	IntensityMax      float64 `csv:"intensity_max"`
	MaskIntensityMean float64 `csv:"mask_intensity_mean"`

	// The mask keeps the shape of the patient's first image, which can differ
	// from rows x cols unless dimensions are strict.
	MaskWidth  int `csv:"mask_width"`
	MaskHeight int `csv:"mask_height"`

	// Base64 of mask.EncodeRLE; decode with
	// mask.DecodeRLE(rle, mask_width, mask_height).
	MaskRLE string `csv:"mask_rle"`
}

// Summarize computes one SummaryRow per case, in batch order.
func Summarize(batches []Batch) []*SummaryRow {
	var out []*SummaryRow

	for bi, b := range batches {
		for i, img := range b.Images {
			rows, cols := img.Dims()
			m := b.Masks[i]

			all := make(stats.Float64Data, 0, rows*cols)
			var inside stats.Float64Data
			for y := 0; y < rows; y++ {
				for x, v := range img.RawRowView(y) {
					all = append(all, v)
					if m.At(x, y) {
						inside = append(inside, v)
					}
				}
			}

			row := &SummaryRow{
				Batch:        bi,
				Position:     i,
				Label:        b.Labels[i],
				Rows:         rows,
				Cols:         cols,
				MaskPixels:   m.Count(),
				MaskFraction: m.Fraction(),
				MaskWidth:    m.Width,
				MaskHeight:   m.Height,
				MaskRLE:      base64.StdEncoding.EncodeToString(m.EncodeRLE()),
			}

			row.IntensityMean = orZero(stats.Mean(all))
			row.IntensitySD = orZero(stats.StandardDeviation(all))
			row.IntensityMin = orZero(stats.Min(all))
			row.IntensityMax = orZero(stats.Max(all))
			row.MaskIntensityMean = orZero(stats.Mean(inside))

			out = append(out, row)
		}
	}

	return out
}

// orZero maps the stats package's empty-input error (returned with NaN) to 0.
func orZero(v float64, err error) float64 {
	if err != nil {
		return 0
	}

	return v
}

// WriteSummary writes Summarize(batches) as CSV with a header row.
func WriteSummary(w io.Writer, batches []Batch) error {
	return gocsv.Marshal(Summarize(batches), w)
}
