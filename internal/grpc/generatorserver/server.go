// Package generatorserver serves a trained generator over gRPC.
package generatorserver

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/PathGAN/internal/dataset"
	"github.com/mitchelldurbincs/PathGAN/internal/gan"
	"github.com/mitchelldurbincs/PathGAN/internal/nn"
)

// Server implements GeneratorServiceServer on top of one loaded generator.
// The generator is only read, so concurrent calls share it; the noise source
// is the only mutable state.
type Server struct {
	gen    *gan.Generator
	scale  float64
	logger zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithCoordinateScale divides request coordinates by scale before they reach
// the generator, matching the normalisation used during training
func WithCoordinateScale(scale float64) ServerOption {
	return func(s *Server) {
		s.scale = scale
	}
}

// NewServer creates a generator server
func NewServer(gen *gan.Generator, rng *rand.Rand, logger zerolog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		gen:    gen,
		rng:    rng,
		logger: logger.With().Str("component", "generator_server").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate produces one move sequence for the requested start and end
func (s *Server) Generate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}

	start, err := coordField(req, "start")
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	end, err := coordField(req, "end")
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	seed, seeded, err := seedField(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}

	cond, err := gan.ContextMatrix([]dataset.Coord{start.Scaled(s.scale)}, []dataset.Coord{end.Scaled(s.scale)})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "building context: %v", err)
	}
	noise := s.noise(seed, seeded)

	out, err := s.gen.Generate(cond, noise)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "generating path: %v", err)
	}
	path := gan.Paths(out)[0]

	s.logger.Debug().
		Interface("start", start).
		Interface("end", end).
		Bool("seeded", seeded).
		Int("path_length", len(path)).
		Msg("Generated path")

	return pathResponse(path), nil
}

func (s *Server) noise(seed int64, seeded bool) *nn.Matrix {
	dim := s.gen.Architecture().NoiseDim
	if seeded {
		return gan.SampleNoise(rand.New(rand.NewSource(seed)), 1, dim)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return gan.SampleNoise(s.rng, 1, dim)
}

func coordField(req *structpb.Struct, name string) (dataset.Coord, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return dataset.Coord{}, fmt.Errorf("missing %q", name)
	}
	c, err := coordValue(v)
	if err != nil {
		return dataset.Coord{}, fmt.Errorf("%q: %w", name, err)
	}
	return c, nil
}

func coordValue(v *structpb.Value) (dataset.Coord, error) {
	list := v.GetListValue()
	if list == nil || len(list.GetValues()) != 2 {
		return dataset.Coord{}, fmt.Errorf("want a list of two numbers")
	}
	var xy [2]float64
	for i, item := range list.GetValues() {
		n, ok := item.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return dataset.Coord{}, fmt.Errorf("element %d is not a number", i)
		}
		if math.IsNaN(n.NumberValue) || math.IsInf(n.NumberValue, 0) {
			return dataset.Coord{}, fmt.Errorf("element %d is not finite", i)
		}
		xy[i] = n.NumberValue
	}
	return dataset.Coord{X: xy[0], Y: xy[1]}, nil
}

func seedField(req *structpb.Struct) (int64, bool, error) {
	v, ok := req.GetFields()["seed"]
	if !ok {
		return 0, false, nil
	}
	if _, null := v.GetKind().(*structpb.Value_NullValue); null {
		return 0, false, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false, fmt.Errorf("\"seed\" must be a number")
	}
	if n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > 1<<53 {
		return 0, false, fmt.Errorf("\"seed\" must be an integer, got %v", n.NumberValue)
	}
	return int64(n.NumberValue), true, nil
}

func pathResponse(path []dataset.Coord) *structpb.Struct {
	moves := make([]*structpb.Value, len(path))
	for i, c := range path {
		moves[i] = structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{
			structpb.NewNumberValue(c.X),
			structpb.NewNumberValue(c.Y),
		}})
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"moves":       structpb.NewListValue(&structpb.ListValue{Values: moves}),
		"path_length": structpb.NewNumberValue(float64(len(path))),
	}}
}
