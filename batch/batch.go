// Package batch shuffles assembled cases and groups them into fixed-size
// batches of images and masks.
package batch

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/carbocation/contourbatch/assemble"
	"github.com/carbocation/contourbatch/mask"
	"gonum.org/v1/gonum/mat"
)

var ErrBatchSize = errors.New("batch size must be positive")

// Batch holds parallel lists: Masks[i] segments Images[i], and Labels[i]
// names the contour both came from.
type Batch struct {
	Labels []string
	Images []*mat.Dense
	Masks  []*mask.Mask
}

func (b Batch) Len() int {
	return len(b.Images)
}

// NewRand returns a random source seeded with seed, or with the clock when
// seed is 0.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return rand.New(rand.NewSource(seed))
}

// Split applies one random permutation to cases and slices the result into
// consecutive batches of size cases. Only the last batch can be shorter.
// cases itself is not reordered. A nil rng is seeded from the clock.
func Split(cases []assemble.Case, size int, rng *rand.Rand) ([]Batch, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrBatchSize, size)
	}

	if rng == nil {
		rng = NewRand(0)
	}

	shuffled := make([]assemble.Case, len(cases))
	copy(shuffled, cases)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	out := make([]Batch, 0, (len(shuffled)+size-1)/size)
	for start := 0; start < len(shuffled); start += size {
		end := start + size
		if end > len(shuffled) {
			end = len(shuffled)
		}

		b := Batch{
			Labels: make([]string, 0, end-start),
			Images: make([]*mat.Dense, 0, end-start),
			Masks:  make([]*mask.Mask, 0, end-start),
		}
		for _, c := range shuffled[start:end] {
			b.Labels = append(b.Labels, c.Label)
			b.Images = append(b.Images, c.Pixels)
			b.Masks = append(b.Masks, c.Mask)
		}

		out = append(out, b)
	}

	return out, nil
}

func (b Batch) String() string {
	shapes := make(map[string]int)
	order := []string{}
	for _, img := range b.Images {
		r, c := img.Dims()
		shape := fmt.Sprintf("%dx%d", r, c)
		if _, seen := shapes[shape]; !seen {
			order = append(order, shape)
		}
		shapes[shape]++
	}

	parts := make([]string, 0, len(order))
	for _, shape := range order {
		parts = append(parts, fmt.Sprintf("%d of %s", shapes[shape], shape))
	}

	return fmt.Sprintf("%d images (%s), %d masks: %s", len(b.Images), strings.Join(parts, ", "), len(b.Masks), strings.Join(b.Labels, " "))
}

// Describe renders one line per batch.
func Describe(batches []Batch) string {
	var sb strings.Builder
	for i, b := range batches {
		fmt.Fprintf(&sb, "Batch %d: %s\n", i, b)
	}

	return sb.String()
}
