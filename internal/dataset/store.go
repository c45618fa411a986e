package dataset

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// StoreOptions controls how episodes are normalised into samples
type StoreOptions struct {
	// MaxLen fixes the padded sequence length. Zero means the longest episode.
	MaxLen int
	// AllowTruncate drops the tail of episodes longer than an explicit MaxLen
	// instead of rejecting the dataset.
	AllowTruncate bool
	// CoordinateScale divides every coordinate. Zero or one keeps raw values.
	CoordinateScale float64
}

// Sample is a fixed-length view of an episode
type Sample struct {
	Moves   []Coord
	Mask    []float64
	Context [ContextSize]float64
	Score   float64
	Length  int
}

// SequenceStore holds episodes in memory and serves padded samples by index
type SequenceStore struct {
	episodes  []Episode
	maxLen    int
	scale     float64
	truncated int
	logger    zerolog.Logger
}

// LoadFile reads a dataset file and builds a store over it
func LoadFile(path string, opts StoreOptions, logger zerolog.Logger) (*SequenceStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()

	store, err := Load(f, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", path, err)
	}
	return store, nil
}

// Load decodes episodes from r and builds a store over them
func Load(r io.Reader, opts StoreOptions, logger zerolog.Logger) (*SequenceStore, error) {
	episodes, err := DecodeEpisodes(r)
	if err != nil {
		return nil, err
	}
	return NewStore(episodes, opts, logger)
}

// NewStore builds a store over episodes. The slice is copied; callers may
// reuse it afterwards.
func NewStore(episodes []Episode, opts StoreOptions, logger zerolog.Logger) (*SequenceStore, error) {
	if opts.MaxLen < 0 {
		return nil, fmt.Errorf("max_len must be non-negative, got %d", opts.MaxLen)
	}
	if opts.CoordinateScale < 0 {
		return nil, fmt.Errorf("coordinate scale must be non-negative, got %v", opts.CoordinateScale)
	}

	s := &SequenceStore{
		episodes: make([]Episode, len(episodes)),
		scale:    opts.CoordinateScale,
		logger:   logger.With().Str("component", "sequence_store").Logger(),
	}
	if s.scale == 0 {
		s.scale = 1
	}
	copy(s.episodes, episodes)

	longest := MaxMovesLen(episodes)
	s.maxLen = longest
	if opts.MaxLen > 0 {
		s.maxLen = opts.MaxLen
	}

	if s.maxLen < longest {
		if !opts.AllowTruncate {
			return nil, &ShapeMismatchError{What: "explicit max_len below longest episode", Want: longest, Got: s.maxLen}
		}
		for _, ep := range episodes {
			if len(ep.Moves) > s.maxLen {
				s.truncated++
			}
		}
		s.logger.Warn().
			Int("max_len", s.maxLen).
			Int("longest_episode", longest).
			Int("truncated_episodes", s.truncated).
			Msg("Truncating episodes longer than max_len")
	}

	s.logger.Debug().
		Int("episodes", len(s.episodes)).
		Int("max_len", s.maxLen).
		Float64("coordinate_scale", s.scale).
		Msg("Sequence store ready")

	return s, nil
}

// MaxMovesLen returns the longest move sequence among episodes
func MaxMovesLen(episodes []Episode) int {
	longest := 0
	for _, ep := range episodes {
		if len(ep.Moves) > longest {
			longest = len(ep.Moves)
		}
	}
	return longest
}

// Len returns the number of episodes
func (s *SequenceStore) Len() int {
	return len(s.episodes)
}

// MaxLen returns the padded sequence length shared by every sample
func (s *SequenceStore) MaxLen() int {
	return s.maxLen
}

// Truncated returns how many episodes lost moves to an explicit max_len
func (s *SequenceStore) Truncated() int {
	return s.truncated
}

// Episode returns a copy of the i-th raw episode
func (s *SequenceStore) Episode(i int) (Episode, error) {
	if i < 0 || i >= len(s.episodes) {
		return Episode{}, fmt.Errorf("episode index %d out of range [0, %d)", i, len(s.episodes))
	}
	ep := s.episodes[i]
	ep.Moves = append([]Coord(nil), ep.Moves...)
	return ep, nil
}

// Sample returns the i-th episode padded with zero coordinates to MaxLen
func (s *SequenceStore) Sample(i int) (Sample, error) {
	if i < 0 || i >= len(s.episodes) {
		return Sample{}, fmt.Errorf("sample index %d out of range [0, %d)", i, len(s.episodes))
	}
	ep := s.episodes[i]

	n := len(ep.Moves)
	if n > s.maxLen {
		n = s.maxLen
	}

	sample := Sample{
		Moves:  make([]Coord, s.maxLen),
		Mask:   make([]float64, s.maxLen),
		Score:  ep.Score,
		Length: n,
	}
	for j := 0; j < n; j++ {
		sample.Moves[j] = ep.Moves[j].Scaled(s.scale)
		sample.Mask[j] = 1
	}
	ctx := ep.Context()
	for j := range ctx {
		sample.Context[j] = ctx[j] / s.scale
	}
	return sample, nil
}
