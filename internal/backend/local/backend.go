// Package local provides a deterministic embedding backend that needs no
// network or model files. Vectors are unit-length pseudo-embeddings derived
// from a SHA-256 stream over the input text, so equal texts always map to
// equal vectors. Useful for development profiles and handler tests; the
// vectors carry no semantics.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/davidbz/embercache/internal/backend"
	"github.com/davidbz/embercache/internal/domain"
)

// Factory loads local backends. The reference names the dimension, e.g.
// "local:384".
type Factory struct{}

// NewFactory creates a new local backend factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Name returns the factory identifier.
func (f *Factory) Name() string {
	return "local"
}

// Load parses the dimension from the reference and returns a backend.
func (f *Factory) Load(_ context.Context, reference string) (domain.Backend, error) {
	dimension, err := strconv.Atoi(backend.RefModel(reference))
	if err != nil || dimension <= 0 {
		return nil, fmt.Errorf("%w: reference %q names no valid dimension", domain.ErrBackendUnavailable, reference)
	}

	return &Backend{
		seed:      reference,
		dimension: dimension,
	}, nil
}

// Backend synthesizes deterministic unit vectors.
type Backend struct {
	seed      string
	dimension int
}

// Compute returns the pseudo-embedding for text.
func (b *Backend) Compute(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vector := make([]float64, b.dimension)

	// Expand a SHA-256 hash chain into dimension uint32s, each mapped
	// onto [-1, 1].
	block := sha256.Sum256([]byte(b.seed + "\x00" + text))
	const wordsPerBlock = sha256.Size / 4

	for i := range vector {
		if i > 0 && i%wordsPerBlock == 0 {
			block = sha256.Sum256(block[:])
		}
		word := binary.BigEndian.Uint32(block[(i%wordsPerBlock)*4:])
		vector[i] = float64(word)/float64(math.MaxUint32)*2 - 1
	}

	normalize(vector)
	return vector, nil
}

func normalize(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}

	mag := math.Sqrt(sum)
	for i := range v {
		v[i] /= mag
	}
}
