// Package grid holds the headless grid world the replay agent walks through.
package grid

import (
	"fmt"
	"math/rand"
)

// CellKind is the content of one grid cell
type CellKind uint8

const (
	Empty CellKind = iota
	Green
	Red
	Blocked
	End
)

func (k CellKind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Green:
		return "green"
	case Red:
		return "red"
	case Blocked:
		return "blocked"
	case End:
		return "end"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Cell is a (row, col) position
type Cell struct {
	Row int
	Col int
}

// MarshalJSON encodes a cell as [row, col]
func (c Cell) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%d,%d]", c.Row, c.Col)), nil
}

// LayoutConfig controls grid generation
type LayoutConfig struct {
	Size         int
	GreenCells   int
	RedCells     int
	BlockedCells int
}

// DefaultLayoutConfig matches the data collection game
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		Size:         15,
		GreenCells:   30,
		RedCells:     40,
		BlockedCells: 20,
	}
}

// Validate checks the counts fit the grid
func (c LayoutConfig) Validate() error {
	if c.Size < 2 {
		return fmt.Errorf("grid size must be at least 2, got %d", c.Size)
	}
	if c.GreenCells < 0 || c.RedCells < 0 || c.BlockedCells < 0 {
		return fmt.Errorf("cell counts must be non-negative")
	}
	free := c.Size*c.Size - 2
	if total := c.GreenCells + c.RedCells + c.BlockedCells; total > free {
		return fmt.Errorf("%d special cells do not fit in %d free cells", total, free)
	}
	return nil
}

// Layout is a square grid with a start in the top-left corner and the end in
// the bottom-right corner
type Layout struct {
	size  int
	cells []CellKind
	start Cell
	end   Cell
}

// NewLayout scatters green, red and blocked cells uniformly over the cells
// that are neither start nor end
func NewLayout(cfg LayoutConfig, rng *rand.Rand) (*Layout, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Layout{
		size:  cfg.Size,
		cells: make([]CellKind, cfg.Size*cfg.Size),
		start: Cell{0, 0},
		end:   Cell{cfg.Size - 1, cfg.Size - 1},
	}
	l.cells[l.index(l.end)] = End

	// candidates excludes start (index 0) and end (last index)
	candidates := rng.Perm(len(l.cells) - 2)
	next := 0
	place := func(kind CellKind, n int) {
		for i := 0; i < n; i++ {
			l.cells[candidates[next]+1] = kind
			next++
		}
	}
	place(Green, cfg.GreenCells)
	place(Red, cfg.RedCells)
	place(Blocked, cfg.BlockedCells)
	return l, nil
}

// Size returns the side length
func (l *Layout) Size() int {
	return l.size
}

// Start returns the start cell
func (l *Layout) Start() Cell {
	return l.start
}

// End returns the end cell
func (l *Layout) End() Cell {
	return l.end
}

// InBounds reports whether c lies on the grid
func (l *Layout) InBounds(c Cell) bool {
	return c.Row >= 0 && c.Row < l.size && c.Col >= 0 && c.Col < l.size
}

// Kind returns the content of c, which must be in bounds
func (l *Layout) Kind(c Cell) CellKind {
	return l.cells[l.index(c)]
}

// Count returns how many cells hold kind
func (l *Layout) Count(kind CellKind) int {
	n := 0
	for _, k := range l.cells {
		if k == kind {
			n++
		}
	}
	return n
}

func (l *Layout) set(c Cell, kind CellKind) {
	l.cells[l.index(c)] = kind
}

func (l *Layout) index(c Cell) int {
	return c.Row*l.size + c.Col
}
