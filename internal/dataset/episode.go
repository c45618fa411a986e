package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ContextSize is the width of a context vector: start (x, y) followed by end (x, y)
const ContextSize = 4

// Coord is a 2D grid coordinate. Recorded data uses integers; generated
// sequences are real-valued.
type Coord struct {
	X float64
	Y float64
}

// Scaled divides both components by scale. Zero keeps raw values.
func (c Coord) Scaled(scale float64) Coord {
	if scale == 0 {
		return c
	}
	return Coord{X: c.X / scale, Y: c.Y / scale}
}

// MarshalJSON encodes the coordinate as a two element array
func (c Coord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.X, c.Y})
}

// UnmarshalJSON accepts exactly two numbers
func (c *Coord) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("coordinate has %d components, want 2", len(pair))
	}
	c.X, c.Y = pair[0], pair[1]
	return nil
}

// Episode is one recorded traversal
type Episode struct {
	GameNum       int     `json:"game_num,omitempty"`
	StartPos      Coord   `json:"start_pos"`
	EndPos        Coord   `json:"end_pos"`
	Moves         []Coord `json:"moves"`
	Score         float64 `json:"score"`
	TraversalCost float64 `json:"traversal_cost,omitempty"`
	Efficiency    float64 `json:"efficiency,omitempty"`
	MovesCount    int     `json:"moves_count,omitempty"`
}

// Context returns start ++ end
func (e Episode) Context() [ContextSize]float64 {
	return [ContextSize]float64{e.StartPos.X, e.StartPos.Y, e.EndPos.X, e.EndPos.Y}
}

// record mirrors the on-disk layout with pointers so absent fields are detectable
type record struct {
	GameNum       *int               `json:"game_num"`
	StartPos      *[]float64         `json:"start_pos"`
	EndPos        *[]float64         `json:"end_pos"`
	Moves         *[]json.RawMessage `json:"moves"`
	Score         *float64           `json:"score"`
	TraversalCost *float64           `json:"traversal_cost"`
	Efficiency    *float64           `json:"efficiency"`
	MovesCount    *int               `json:"moves_count"`
}

// DecodeEpisodes reads a JSON array of episode records
func DecodeEpisodes(r io.Reader) ([]Episode, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, &DataFormatError{Record: -1, Reason: fmt.Sprintf("dataset is not a JSON array of records: %v", err)}
	}

	episodes := make([]Episode, 0, len(raw))
	for i, msg := range raw {
		ep, err := decodeRecord(i, msg)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	return episodes, nil
}

func decodeRecord(idx int, msg json.RawMessage) (Episode, error) {
	var rec record
	if err := json.Unmarshal(msg, &rec); err != nil {
		return Episode{}, &DataFormatError{Record: idx, Field: "*", Reason: err.Error()}
	}

	if rec.Moves == nil {
		return Episode{}, &DataFormatError{Record: idx, Field: "moves", Reason: "missing"}
	}
	if rec.StartPos == nil {
		return Episode{}, &DataFormatError{Record: idx, Field: "start_pos", Reason: "missing"}
	}
	if rec.EndPos == nil {
		return Episode{}, &DataFormatError{Record: idx, Field: "end_pos", Reason: "missing"}
	}
	if rec.Score == nil {
		return Episode{}, &DataFormatError{Record: idx, Field: "score", Reason: "missing"}
	}

	start, err := pairToCoord(*rec.StartPos)
	if err != nil {
		return Episode{}, &DataFormatError{Record: idx, Field: "start_pos", Reason: err.Error()}
	}
	end, err := pairToCoord(*rec.EndPos)
	if err != nil {
		return Episode{}, &DataFormatError{Record: idx, Field: "end_pos", Reason: err.Error()}
	}

	moves := make([]Coord, len(*rec.Moves))
	for j, m := range *rec.Moves {
		if err := moves[j].UnmarshalJSON(m); err != nil {
			return Episode{}, &DataFormatError{
				Record: idx,
				Field:  "moves",
				Reason: fmt.Sprintf("move %d: %v", j, err),
			}
		}
	}

	ep := Episode{
		StartPos: start,
		EndPos:   end,
		Moves:    moves,
		Score:    *rec.Score,
	}
	if rec.GameNum != nil {
		ep.GameNum = *rec.GameNum
	}
	if rec.TraversalCost != nil {
		ep.TraversalCost = *rec.TraversalCost
	}
	if rec.Efficiency != nil {
		ep.Efficiency = *rec.Efficiency
	}
	if rec.MovesCount != nil {
		ep.MovesCount = *rec.MovesCount
	}
	return ep, nil
}

func pairToCoord(v []float64) (Coord, error) {
	if len(v) != 2 {
		return Coord{}, fmt.Errorf("has %d components, want 2", len(v))
	}
	return Coord{X: v[0], Y: v[1]}, nil
}

// EncodeEpisodes writes episodes in the collector's JSON layout
func EncodeEpisodes(w io.Writer, episodes []Episode) error {
	out := make([]Episode, len(episodes))
	for i, ep := range episodes {
		if ep.Moves == nil {
			ep.Moves = []Coord{}
		}
		out[i] = ep
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(out)
}

// WriteEpisodesFile writes episodes to path, replacing any existing file
func WriteEpisodesFile(path string, episodes []Episode) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}
	if err := EncodeEpisodes(f, episodes); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode episodes: %w", err)
	}
	return f.Close()
}
