package testutil

import (
	"github.com/mitchelldurbincs/PathGAN/internal/dataset"
)

// Walk builds a straight walk of n moves along the diagonal starting at (1, 1)
func Walk(n int) []dataset.Coord {
	moves := make([]dataset.Coord, n)
	for i := range moves {
		moves[i] = dataset.Coord{X: float64(i + 1), Y: float64(i + 1)}
	}
	return moves
}

// EpisodesWithLengths creates one episode per requested move count, all
// running from the origin to the bottom-right corner of a 15x15 grid
func EpisodesWithLengths(lengths ...int) []dataset.Episode {
	episodes := make([]dataset.Episode, len(lengths))
	for i, n := range lengths {
		episodes[i] = dataset.Episode{
			GameNum:  i + 1,
			StartPos: dataset.Coord{X: 0, Y: 0},
			EndPos:   dataset.Coord{X: 14, Y: 14},
			Moves:    Walk(n),
			Score:    float64(10 * (i + 1)),
		}
	}
	return episodes
}

// SimpleStore builds a store over episodes of the given lengths with default options
func SimpleStore(lengths ...int) (*dataset.SequenceStore, error) {
	return dataset.NewStore(EpisodesWithLengths(lengths...), dataset.StoreOptions{}, NopLogger())
}
