package dataset_test

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/PathGAN/internal/dataset"
	"github.com/mitchelldurbincs/PathGAN/internal/testutil"
)

func lengths(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i%6 + 1
	}
	return out
}

func collectIndices(batches []*dataset.Batch) []int {
	var all []int
	for _, b := range batches {
		all = append(all, b.Indices...)
	}
	sort.Ints(all)
	return all
}

func TestBatchesPartitionStore(t *testing.T) {
	store, err := testutil.SimpleStore(lengths(70)...)
	require.NoError(t, err)

	batcher := dataset.NewBatcher(store, 0, testutil.NewTestRNG(1))
	assert.Equal(t, dataset.DefaultBatchSize, batcher.BatchSize())
	assert.Equal(t, 3, batcher.NumBatches())

	for call := 0; call < 2; call++ {
		batches, err := batcher.Batches()
		require.NoError(t, err)
		require.Len(t, batches, 3)

		assert.Equal(t, 32, batches[0].Size())
		assert.Equal(t, 32, batches[1].Size())
		assert.Equal(t, 6, batches[2].Size(), "final partial batch is kept")

		all := collectIndices(batches)
		require.Len(t, all, 70)
		for i, idx := range all {
			assert.Equal(t, i, idx)
		}
	}
}

func TestBatchesReshuffleEachCall(t *testing.T) {
	store, err := testutil.SimpleStore(lengths(40)...)
	require.NoError(t, err)
	batcher := dataset.NewBatcher(store, 8, testutil.NewTestRNG(3))

	first, err := batcher.Batches()
	require.NoError(t, err)
	second, err := batcher.Batches()
	require.NoError(t, err)

	assert.NotEqual(t, first[0].Indices, second[0].Indices)
}

func TestBatchesSameSeedSameOrder(t *testing.T) {
	store, err := testutil.SimpleStore(lengths(20)...)
	require.NoError(t, err)

	a, err := dataset.NewBatcher(store, 6, testutil.NewTestRNG(42)).Batches()
	require.NoError(t, err)
	b, err := dataset.NewBatcher(store, 6, testutil.NewTestRNG(42)).Batches()
	require.NoError(t, err)

	require.Len(t, a, len(b))
	for i := range a {
		assert.Equal(t, a[i].Indices, b[i].Indices)
	}
}

func TestBatchTensorsMatchSamples(t *testing.T) {
	store, err := testutil.SimpleStore(2, 5, 3)
	require.NoError(t, err)

	batches, err := dataset.NewBatcher(store, 4, testutil.NewTestRNG(7)).Batches()
	require.NoError(t, err)
	require.Len(t, batches, 1)
	b := batches[0]

	assert.Equal(t, 5, b.MaxLen)
	assert.Equal(t, 3, b.Moves.Rows)
	assert.Equal(t, 10, b.Moves.Cols)
	assert.Equal(t, dataset.ContextSize, b.Context.Cols)
	assert.Equal(t, 5, b.Mask.Cols)

	for r, idx := range b.Indices {
		s, err := store.Sample(idx)
		require.NoError(t, err)
		for j, m := range s.Moves {
			assert.Equal(t, m.X, b.Moves.At(r, 2*j))
			assert.Equal(t, m.Y, b.Moves.At(r, 2*j+1))
		}
		assert.Equal(t, s.Context[:], b.Context.Row(r))
		assert.Equal(t, s.Score, b.Scores[r])
	}
}

func TestEmptyStoreYieldsNoBatches(t *testing.T) {
	store, err := testutil.SimpleStore()
	require.NoError(t, err)

	batches, err := dataset.NewBatcher(store, 4, testutil.NewTestRNG(1)).Batches()
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestStackRejectsRaggedSamples(t *testing.T) {
	samples := []dataset.Sample{
		{Moves: make([]dataset.Coord, 3), Mask: make([]float64, 3)},
		{Moves: make([]dataset.Coord, 2), Mask: make([]float64, 2)},
	}
	_, err := dataset.Stack(samples, []int{0, 1}, 3)
	require.Error(t, err)

	var shapeErr *dataset.ShapeMismatchError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, 3, shapeErr.Want)
	assert.Equal(t, 2, shapeErr.Got)
}
