package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/mitchelldurbincs/PathGAN/internal/dataset"
	"github.com/mitchelldurbincs/PathGAN/internal/gan"
)

// Save writes a generator snapshot to path. The file is written to a
// temporary sibling first and renamed into place.
func Save(path string, gen *gan.Generator, meta Metadata) error {
	data, err := Marshal(gen, meta)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return &IOError{Op: "sync", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &IOError{Op: "close", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return &IOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

// ReadHeader decodes the artifact metadata without checking it against an
// architecture
func ReadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, &IOError{Op: "read", Path: path, Err: err}
	}
	h, _, err := Unmarshal(data)
	if err != nil {
		return Header{}, &FormatMismatchError{Path: path, Field: "encoding", Got: err.Error()}
	}
	return h, nil
}

// Load restores a generator saved by Save. arch describes the generator the
// caller expects; the artifact's path length, noise size and hidden widths
// must agree with it. The returned generator carries the artifact's
// discriminator-side settings.
func Load(path string, arch gan.Architecture) (*gan.Generator, Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Header{}, &IOError{Op: "read", Path: path, Err: err}
	}
	h, net, err := Unmarshal(data)
	if err != nil {
		return nil, Header{}, &FormatMismatchError{Path: path, Field: "encoding", Got: err.Error()}
	}

	if err := checkHeader(path, h, arch); err != nil {
		return nil, h, err
	}

	// Discriminator settings are not part of a generator's shape.
	arch.DiscriminatorHidden = h.Architecture.DiscriminatorHidden
	arch.UsePaddingMask = h.Architecture.UsePaddingMask
	if len(arch.DiscriminatorHidden) == 0 {
		arch.DiscriminatorHidden = gan.DefaultArchitecture(arch.PathLength).DiscriminatorHidden
	}
	gen, err := gan.GeneratorFromNetwork(arch, net)
	if err != nil {
		return nil, h, &FormatMismatchError{Path: path, Field: "parameters", Got: err.Error()}
	}
	return gen, h, nil
}

func checkHeader(path string, h Header, arch gan.Architecture) error {
	got := h.Architecture
	switch {
	case h.ContextDim != dataset.ContextSize:
		return mismatch(path, "context_dim", dataset.ContextSize, h.ContextDim)
	case got.PathLength != arch.PathLength:
		return mismatch(path, "path_length", arch.PathLength, got.PathLength)
	case got.NoiseDim != arch.NoiseDim:
		return mismatch(path, "noise_dim", arch.NoiseDim, got.NoiseDim)
	case !slices.Equal(got.GeneratorHidden, arch.GeneratorHidden):
		return &FormatMismatchError{
			Path:  path,
			Field: "generator_hidden",
			Want:  fmt.Sprint(arch.GeneratorHidden),
			Got:   fmt.Sprint(got.GeneratorHidden),
		}
	}
	return nil
}

func mismatch(path, field string, want, got int) *FormatMismatchError {
	return &FormatMismatchError{Path: path, Field: field, Want: strconv.Itoa(want), Got: strconv.Itoa(got)}
}
