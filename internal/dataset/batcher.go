package dataset

import (
	"fmt"
	"math/rand"

	"github.com/mitchelldurbincs/PathGAN/internal/nn"
)

// DefaultBatchSize is the mini-batch size used when none is configured
const DefaultBatchSize = 32

// Batch is a stack of samples sharing one sequence length
type Batch struct {
	// Moves is batch x (maxLen*2), each row x0, y0, x1, y1, ...
	Moves *nn.Matrix
	// Context is batch x ContextSize
	Context *nn.Matrix
	// Mask is batch x maxLen, 1 for recorded moves and 0 for padding
	Mask    *nn.Matrix
	Scores  []float64
	Indices []int
	MaxLen  int
}

// Size returns the number of samples in the batch
func (b *Batch) Size() int {
	return len(b.Indices)
}

// Stack builds a Batch from samples that must all have length maxLen
func Stack(samples []Sample, indices []int, maxLen int) (*Batch, error) {
	if len(indices) != len(samples) {
		return nil, &ShapeMismatchError{What: "batch index count", Want: len(samples), Got: len(indices)}
	}

	b := &Batch{
		Moves:   nn.NewMatrix(len(samples), maxLen*2),
		Context: nn.NewMatrix(len(samples), ContextSize),
		Mask:    nn.NewMatrix(len(samples), maxLen),
		Scores:  make([]float64, len(samples)),
		Indices: append([]int(nil), indices...),
		MaxLen:  maxLen,
	}
	for r, s := range samples {
		if len(s.Moves) != maxLen {
			return nil, &ShapeMismatchError{What: fmt.Sprintf("sample %d sequence length", indices[r]), Want: maxLen, Got: len(s.Moves)}
		}
		if len(s.Mask) != maxLen {
			return nil, &ShapeMismatchError{What: fmt.Sprintf("sample %d mask length", indices[r]), Want: maxLen, Got: len(s.Mask)}
		}
		row := b.Moves.Row(r)
		for j, m := range s.Moves {
			row[2*j] = m.X
			row[2*j+1] = m.Y
		}
		copy(b.Context.Row(r), s.Context[:])
		copy(b.Mask.Row(r), s.Mask)
		b.Scores[r] = s.Score
	}
	return b, nil
}

// Batcher partitions a store into shuffled mini-batches. It is not safe for
// concurrent use.
type Batcher struct {
	store     *SequenceStore
	batchSize int
	rng       *rand.Rand
}

// NewBatcher creates a batcher; batchSize <= 0 selects DefaultBatchSize
func NewBatcher(store *SequenceStore, batchSize int, rng *rand.Rand) *Batcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Batcher{
		store:     store,
		batchSize: batchSize,
		rng:       rng,
	}
}

// BatchSize returns the configured batch size
func (b *Batcher) BatchSize() int {
	return b.batchSize
}

// Len returns the number of samples one epoch covers
func (b *Batcher) Len() int {
	return b.store.Len()
}

// NumBatches returns how many batches one epoch yields
func (b *Batcher) NumBatches() int {
	return (b.store.Len() + b.batchSize - 1) / b.batchSize
}

// MaxLen returns the sequence length of every batch
func (b *Batcher) MaxLen() int {
	return b.store.MaxLen()
}

// Batches draws a fresh permutation and returns every sample exactly once.
// The last batch is smaller when the store size is not a multiple of the
// batch size.
func (b *Batcher) Batches() ([]*Batch, error) {
	perm := b.rng.Perm(b.store.Len())
	batches := make([]*Batch, 0, b.NumBatches())

	for start := 0; start < len(perm); start += b.batchSize {
		end := start + b.batchSize
		if end > len(perm) {
			end = len(perm)
		}
		idx := perm[start:end]

		samples := make([]Sample, len(idx))
		for i, si := range idx {
			s, err := b.store.Sample(si)
			if err != nil {
				return nil, err
			}
			samples[i] = s
		}

		batch, err := Stack(samples, idx, b.store.MaxLen())
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, nil
}
