package batch

import (
	"fmt"
	"math"

	"github.com/carbocation/runningvariance"
)

// IntensityNorms summarizes every pixel of every image across batches, for
// normalizing inputs before training.
type IntensityNorms struct {
	Pixels int
	Mean   float64
	SD     float64
	Min    float64
	Max    float64
}

func Norms(batches []Batch) IntensityNorms {
	rs := runningvariance.NewRunningStat()
	out := IntensityNorms{Min: math.Inf(1), Max: math.Inf(-1)}

	for _, b := range batches {
		for _, img := range b.Images {
			rows, _ := img.Dims()
			for y := 0; y < rows; y++ {
				for _, v := range img.RawRowView(y) {
					rs.Push(v)
					out.Pixels++
					out.Min = math.Min(out.Min, v)
					out.Max = math.Max(out.Max, v)
				}
			}
		}
	}

	if out.Pixels == 0 {
		return IntensityNorms{}
	}

	out.Mean = rs.Mean()
	out.SD = rs.StandardDeviation()

	return out
}

func (n IntensityNorms) String() string {
	return fmt.Sprintf("%d pixels, mean %.4g, sd %.4g, range [%g, %g]", n.Pixels, n.Mean, n.SD, n.Min, n.Max)
}
