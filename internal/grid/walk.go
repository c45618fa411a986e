package grid

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mitchelldurbincs/PathGAN/internal/dataset"
)

// VisitedCell records the order in which a cell was first entered
type VisitedCell struct {
	Cell  Cell `json:"cell"`
	Order int  `json:"order"`
}

// Trace is the outcome of walking a generated path
type Trace struct {
	Moves           []Cell        `json:"moves"`
	VisitedCells    []VisitedCell `json:"visited_cells"`
	GreensCollected int           `json:"greens_collected"`
	RedsVisited     int           `json:"reds_visited"`
	Skipped         int           `json:"skipped"`
	ReachedEnd      bool          `json:"reached_end"`
}

// Scale converts a generated coordinate pair into a grid cell by multiplying
// by the grid size and truncating towards zero
func Scale(c dataset.Coord, size int) Cell {
	return Cell{Row: int(c.X * float64(size)), Col: int(c.Y * float64(size))}
}

// Walk replays path on the layout. Moves that land outside the grid or on a
// blocked cell are skipped; the walk stops as soon as the end is reached.
// Green cells are consumed when entered, so the layout is modified.
func Walk(l *Layout, path []dataset.Coord) Trace {
	tr := Trace{Moves: []Cell{}, VisitedCells: []VisitedCell{}}
	seen := make(map[Cell]bool)
	reds := make(map[Cell]bool)

	for _, coord := range path {
		next := Scale(coord, l.size)
		if !l.InBounds(next) || l.Kind(next) == Blocked {
			tr.Skipped++
			continue
		}

		tr.Moves = append(tr.Moves, next)
		if !seen[next] {
			seen[next] = true
			tr.VisitedCells = append(tr.VisitedCells, VisitedCell{Cell: next, Order: len(tr.VisitedCells) + 1})
		}

		switch l.Kind(next) {
		case Green:
			l.set(next, Empty)
			tr.GreensCollected++
		case Red:
			if !reds[next] {
				reds[next] = true
				tr.RedsVisited++
			}
		}

		if next == l.end {
			tr.ReachedEnd = true
			break
		}
	}
	return tr
}

// WriteTrace writes the trace as indented JSON
func WriteTrace(path string, tr Trace) error {
	data, err := json.MarshalIndent(tr, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding trace: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing trace %s: %w", path, err)
	}
	return nil
}
