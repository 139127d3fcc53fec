package mask

import (
	"fmt"

	"github.com/tj/go-rle"
)

// EncodeRLE run-length encodes the mask in row-major order, one 0/1 value per
// pixel. The width and height are not stored.
func (m *Mask) EncodeRLE() []byte {
	pixelLabels := make([]int64, len(m.Pix))
	for i, p := range m.Pix {
		if p {
			pixelLabels[i] = 1
		}
	}

	return rle.EncodeInt64(pixelLabels)
}

// DecodeRLE rebuilds a width x height mask from EncodeRLE output.
func DecodeRLE(rleBytes []byte, width, height int) (*Mask, error) {
	out := New(width, height)
	if len(out.Pix) == 0 {
		return out, nil
	}

	slc, err := rle.DecodeInt64(rleBytes)
	if err != nil {
		return nil, err
	}

	if len(slc) != len(out.Pix) {
		return nil, fmt.Errorf("run-length data holds %d pixels, expected %dx%d=%d", len(slc), width, height, len(out.Pix))
	}

	for i, v := range slc {
		out.Pix[i] = v != 0
	}

	return out, nil
}
