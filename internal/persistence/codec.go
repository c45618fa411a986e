package persistence

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/mitchelldurbincs/PathGAN/internal/dataset"
	"github.com/mitchelldurbincs/PathGAN/internal/gan"
	"github.com/mitchelldurbincs/PathGAN/internal/nn"
)

const (
	// Magic is the first field of every generator artifact
	Magic = "pathgan.generator"
	// FormatVersion is bumped whenever the field layout changes. Version 2
	// stores layer weights as In rows of Out columns.
	FormatVersion = 2
)

// Artifact field numbers
const (
	fieldMagic        protowire.Number = 1
	fieldVersion      protowire.Number = 2
	fieldArchitecture protowire.Number = 3
	fieldLayer        protowire.Number = 4
	fieldSavedAt      protowire.Number = 5
	fieldRunID        protowire.Number = 6
)

// Architecture field numbers
const (
	archPathLength protowire.Number = 1
	archNoiseDim   protowire.Number = 2
	archContextDim protowire.Number = 3
	archGenHidden  protowire.Number = 4
	archDiscHidden protowire.Number = 5
	archUsePadding protowire.Number = 6
)

// Layer field numbers
const (
	layerIn         protowire.Number = 1
	layerOut        protowire.Number = 2
	layerActivation protowire.Number = 3
	layerWeights    protowire.Number = 4
	layerBias       protowire.Number = 5
)

var errTruncated = errors.New("truncated or corrupt data")

// Header describes an artifact without its parameters
type Header struct {
	Version      int
	Architecture gan.Architecture
	ContextDim   int
	SavedAt      time.Time
	RunID        string
	Parameters   int
}

// Metadata is attached to an artifact at save time
type Metadata struct {
	RunID   string
	SavedAt time.Time
}

// Marshal encodes a generator snapshot
func Marshal(gen *gan.Generator, meta Metadata) ([]byte, error) {
	arch := gen.Architecture()
	var b []byte
	b = protowire.AppendTag(b, fieldMagic, protowire.BytesType)
	b = protowire.AppendString(b, Magic)
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, FormatVersion)

	b = protowire.AppendTag(b, fieldArchitecture, protowire.BytesType)
	b = protowire.AppendBytes(b, marshalArchitecture(arch))

	for _, l := range gen.Network().Layers {
		b = protowire.AppendTag(b, fieldLayer, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalLayer(l))
	}

	if !meta.SavedAt.IsZero() {
		ts, err := proto.Marshal(timestamppb.New(meta.SavedAt))
		if err != nil {
			return nil, fmt.Errorf("encoding timestamp: %w", err)
		}
		b = protowire.AppendTag(b, fieldSavedAt, protowire.BytesType)
		b = protowire.AppendBytes(b, ts)
	}
	if meta.RunID != "" {
		b = protowire.AppendTag(b, fieldRunID, protowire.BytesType)
		b = protowire.AppendString(b, meta.RunID)
	}
	return b, nil
}

func marshalArchitecture(a gan.Architecture) []byte {
	var b []byte
	b = protowire.AppendTag(b, archPathLength, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(a.PathLength))
	b = protowire.AppendTag(b, archNoiseDim, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(a.NoiseDim))
	b = protowire.AppendTag(b, archContextDim, protowire.VarintType)
	b = protowire.AppendVarint(b, dataset.ContextSize)
	b = protowire.AppendTag(b, archGenHidden, protowire.BytesType)
	b = protowire.AppendBytes(b, packInts(a.GeneratorHidden))
	b = protowire.AppendTag(b, archDiscHidden, protowire.BytesType)
	b = protowire.AppendBytes(b, packInts(a.DiscriminatorHidden))
	b = protowire.AppendTag(b, archUsePadding, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(a.UsePaddingMask))
	return b
}

func marshalLayer(l *nn.Dense) []byte {
	var b []byte
	b = protowire.AppendTag(b, layerIn, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(l.In))
	b = protowire.AppendTag(b, layerOut, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(l.Out))
	b = protowire.AppendTag(b, layerActivation, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(l.Activation))
	b = protowire.AppendTag(b, layerWeights, protowire.BytesType)
	b = protowire.AppendBytes(b, packFloats(l.Weights))
	b = protowire.AppendTag(b, layerBias, protowire.BytesType)
	b = protowire.AppendBytes(b, packFloats(l.Bias))
	return b
}

func packInts(v []int) []byte {
	var b []byte
	for _, x := range v {
		b = protowire.AppendVarint(b, uint64(x))
	}
	return b
}

func packFloats(v []float64) []byte {
	b := make([]byte, 0, len(v)*8)
	for _, x := range v {
		b = protowire.AppendFixed64(b, math.Float64bits(x))
	}
	return b
}

// Unmarshal decodes an artifact into its header and generator network. The
// network is not checked against any architecture.
func Unmarshal(data []byte) (Header, *nn.Network, error) {
	var h Header
	net := &nn.Network{}
	sawMagic := false

	err := forEachField(data, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == fieldMagic && typ == protowire.BytesType:
			if string(v) != Magic {
				return fmt.Errorf("bad magic %q", v)
			}
			sawMagic = true
		case num == fieldVersion && typ == protowire.VarintType:
			h.Version = int(x)
		case num == fieldArchitecture && typ == protowire.BytesType:
			arch, contextDim, err := unmarshalArchitecture(v)
			if err != nil {
				return fmt.Errorf("architecture: %w", err)
			}
			h.Architecture = arch
			h.ContextDim = contextDim
		case num == fieldLayer && typ == protowire.BytesType:
			l, err := unmarshalLayer(v)
			if err != nil {
				return fmt.Errorf("layer %d: %w", len(net.Layers), err)
			}
			net.Layers = append(net.Layers, l)
		case num == fieldSavedAt && typ == protowire.BytesType:
			var ts timestamppb.Timestamp
			if err := proto.Unmarshal(v, &ts); err != nil {
				return fmt.Errorf("timestamp: %w", err)
			}
			h.SavedAt = ts.AsTime()
		case num == fieldRunID && typ == protowire.BytesType:
			h.RunID = string(v)
		}
		return nil
	})
	if err != nil {
		return Header{}, nil, err
	}
	if !sawMagic {
		return Header{}, nil, errors.New("not a generator artifact")
	}
	if h.Version != FormatVersion {
		return Header{}, nil, fmt.Errorf("unsupported format version %d", h.Version)
	}
	h.Parameters = net.ParameterCount()
	return h, net, nil
}

func unmarshalArchitecture(data []byte) (gan.Architecture, int, error) {
	var a gan.Architecture
	contextDim := 0
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		var err error
		switch {
		case num == archPathLength && typ == protowire.VarintType:
			a.PathLength = int(x)
		case num == archNoiseDim && typ == protowire.VarintType:
			a.NoiseDim = int(x)
		case num == archContextDim && typ == protowire.VarintType:
			contextDim = int(x)
		case num == archGenHidden && typ == protowire.BytesType:
			a.GeneratorHidden, err = unpackInts(v)
		case num == archDiscHidden && typ == protowire.BytesType:
			a.DiscriminatorHidden, err = unpackInts(v)
		case num == archUsePadding && typ == protowire.VarintType:
			a.UsePaddingMask = protowire.DecodeBool(x)
		}
		return err
	})
	return a, contextDim, err
}

func unmarshalLayer(data []byte) (*nn.Dense, error) {
	l := &nn.Dense{}
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		var err error
		switch {
		case num == layerIn && typ == protowire.VarintType:
			l.In = int(x)
		case num == layerOut && typ == protowire.VarintType:
			l.Out = int(x)
		case num == layerActivation && typ == protowire.VarintType:
			l.Activation = nn.Activation(x)
		case num == layerWeights && typ == protowire.BytesType:
			l.Weights, err = unpackFloats(v)
		case num == layerBias && typ == protowire.BytesType:
			l.Bias, err = unpackFloats(v)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(l.Weights) != l.In*l.Out || len(l.Bias) != l.Out {
		return nil, fmt.Errorf("%dx%d layer holds %d weights and %d biases", l.In, l.Out, len(l.Weights), len(l.Bias))
	}
	return l, nil
}

func unpackInts(b []byte) ([]int, error) {
	var out []int
	for len(b) > 0 {
		x, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, errTruncated
		}
		out = append(out, int(x))
		b = b[n:]
	}
	return out, nil
}

func unpackFloats(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, errTruncated
	}
	out := make([]float64, 0, len(b)/8)
	for len(b) > 0 {
		x, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, errTruncated
		}
		out = append(out, math.Float64frombits(x))
		b = b[n:]
	}
	return out, nil
}

// forEachField walks the top level fields of a message. Bytes fields are
// passed as v, varints as x; other wire types are skipped.
func forEachField(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errTruncated
		}
		b = b[n:]

		var (
			v []byte
			x uint64
		)
		switch typ {
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		case protowire.VarintType:
			x, n = protowire.ConsumeVarint(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return errTruncated
		}
		b = b[n:]

		if err := fn(num, typ, v, x); err != nil {
			return err
		}
	}
	return nil
}
