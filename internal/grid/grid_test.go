package grid

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/PathGAN/internal/dataset"
)

// openLayout returns an all-empty layout that tests decorate by hand
func openLayout(size int) *Layout {
	l, err := NewLayout(LayoutConfig{Size: size}, rand.New(rand.NewSource(1)))
	if err != nil {
		panic(err)
	}
	return l
}

// at returns the coordinate that scales onto (row, col)
func at(l *Layout, row, col int) dataset.Coord {
	s := float64(l.Size())
	return dataset.Coord{X: (float64(row) + 0.5) / s, Y: (float64(col) + 0.5) / s}
}

func TestNewLayoutCounts(t *testing.T) {
	cfg := DefaultLayoutConfig()
	l, err := NewLayout(cfg, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	assert.Equal(t, 15, l.Size())
	assert.Equal(t, cfg.GreenCells, l.Count(Green))
	assert.Equal(t, cfg.RedCells, l.Count(Red))
	assert.Equal(t, cfg.BlockedCells, l.Count(Blocked))
	assert.Equal(t, 1, l.Count(End))
	assert.Equal(t, Empty, l.Kind(l.Start()))
	assert.Equal(t, End, l.Kind(l.End()))
	assert.Equal(t, Cell{14, 14}, l.End())
}

func TestNewLayoutDeterministic(t *testing.T) {
	a, err := NewLayout(DefaultLayoutConfig(), rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	b, err := NewLayout(DefaultLayoutConfig(), rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	assert.Equal(t, a.cells, b.cells)
}

func TestNewLayoutFull(t *testing.T) {
	cfg := LayoutConfig{Size: 3, GreenCells: 3, RedCells: 2, BlockedCells: 2}
	l, err := NewLayout(cfg, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	assert.Equal(t, 1, l.Count(Empty), "only the start stays empty")
}

func TestLayoutConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LayoutConfig
		wantErr bool
	}{
		{"default", DefaultLayoutConfig(), false},
		{"too small", LayoutConfig{Size: 1}, true},
		{"negative", LayoutConfig{Size: 5, RedCells: -1}, true},
		{"overfull", LayoutConfig{Size: 3, GreenCells: 8}, true},
		{"exactly full", LayoutConfig{Size: 3, GreenCells: 7}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScaleTruncates(t *testing.T) {
	assert.Equal(t, Cell{0, 0}, Scale(dataset.Coord{X: 0.01, Y: 0.06}, 15))
	assert.Equal(t, Cell{7, 14}, Scale(dataset.Coord{X: 0.5, Y: 0.99}, 15))
	assert.Equal(t, Cell{0, 0}, Scale(dataset.Coord{X: -0.05, Y: -0.05}, 15), "truncation is towards zero")
	assert.Equal(t, Cell{-7, 15}, Scale(dataset.Coord{X: -0.5, Y: 1}, 15))
}

func TestWalkSkipsOutOfBoundsAndBlocked(t *testing.T) {
	l := openLayout(5)
	l.set(Cell{1, 1}, Blocked)

	tr := Walk(l, []dataset.Coord{
		at(l, 0, 1),
		{X: -1, Y: -1},
		at(l, 1, 1),
		{X: 1, Y: 0.5},
		at(l, 1, 2),
	})

	assert.Equal(t, []Cell{{0, 1}, {1, 2}}, tr.Moves)
	assert.Equal(t, 3, tr.Skipped)
	assert.False(t, tr.ReachedEnd)
}

func TestWalkVisitOrderCountsFirstEntryOnly(t *testing.T) {
	l := openLayout(5)
	tr := Walk(l, []dataset.Coord{at(l, 0, 1), at(l, 0, 2), at(l, 0, 1), at(l, 1, 1)})

	assert.Len(t, tr.Moves, 4)
	assert.Equal(t, []VisitedCell{
		{Cell: Cell{0, 1}, Order: 1},
		{Cell: Cell{0, 2}, Order: 2},
		{Cell: Cell{1, 1}, Order: 3},
	}, tr.VisitedCells)
}

func TestWalkConsumesGreenAndCountsReds(t *testing.T) {
	l := openLayout(5)
	l.set(Cell{0, 1}, Green)
	l.set(Cell{0, 2}, Red)

	tr := Walk(l, []dataset.Coord{at(l, 0, 1), at(l, 0, 2), at(l, 0, 1), at(l, 0, 2)})

	assert.Equal(t, 1, tr.GreensCollected)
	assert.Equal(t, 1, tr.RedsVisited)
	assert.Equal(t, Empty, l.Kind(Cell{0, 1}))
	assert.Equal(t, Red, l.Kind(Cell{0, 2}))
}

func TestWalkStopsAtEnd(t *testing.T) {
	l := openLayout(4)
	tr := Walk(l, []dataset.Coord{at(l, 2, 2), at(l, 3, 3), at(l, 0, 0)})

	assert.True(t, tr.ReachedEnd)
	assert.Equal(t, []Cell{{2, 2}, {3, 3}}, tr.Moves)
}

func TestWalkEmptyPath(t *testing.T) {
	tr := Walk(openLayout(3), nil)
	assert.Empty(t, tr.Moves)
	assert.NotNil(t, tr.Moves)
	assert.NotNil(t, tr.VisitedCells)
}

func TestWriteTrace(t *testing.T) {
	l := openLayout(5)
	tr := Walk(l, []dataset.Coord{at(l, 0, 1), at(l, 1, 1)})

	path := filepath.Join(t.TempDir(), "trace.json")
	require.NoError(t, WriteTrace(path, tr))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    \"moves\"")

	var decoded struct {
		Moves        [][2]int `json:"moves"`
		VisitedCells []struct {
			Cell  [2]int `json:"cell"`
			Order int    `json:"order"`
		} `json:"visited_cells"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, [][2]int{{0, 1}, {1, 1}}, decoded.Moves)
	require.Len(t, decoded.VisitedCells, 2)
	assert.Equal(t, [2]int{1, 1}, decoded.VisitedCells[1].Cell)
	assert.Equal(t, 2, decoded.VisitedCells[1].Order)
}

func TestWriteTraceBadPath(t *testing.T) {
	err := WriteTrace(filepath.Join(t.TempDir(), "missing", "trace.json"), Trace{})
	assert.Error(t, err)
}

func TestCellKindString(t *testing.T) {
	assert.Equal(t, "blocked", Blocked.String())
	assert.Equal(t, "unknown(9)", CellKind(9).String())
}
