package local_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/embercache/internal/backend/local"
	"github.com/davidbz/embercache/internal/domain"
)

func loadBackend(t *testing.T, reference string) domain.Backend {
	t.Helper()

	backend, err := local.NewFactory().Load(context.Background(), reference)
	require.NoError(t, err)
	return backend
}

func TestLocalBackend_Deterministic(t *testing.T) {
	backend := loadBackend(t, "local:384")

	first, err := backend.Compute(context.Background(), "hello world")
	require.NoError(t, err)

	second, err := backend.Compute(context.Background(), "hello world")
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestLocalBackend_DistinctTextsDiffer(t *testing.T) {
	backend := loadBackend(t, "local:384")
	ctx := context.Background()

	a, err := backend.Compute(ctx, "hello")
	require.NoError(t, err)

	b, err := backend.Compute(ctx, "goodbye")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestLocalBackend_DimensionAndUnitNorm(t *testing.T) {
	backend := loadBackend(t, "local:64")

	vector, err := backend.Compute(context.Background(), "normalize me")
	require.NoError(t, err)
	require.Len(t, vector, 64)

	var sum float64
	for _, x := range vector {
		sum += x * x
	}
	require.InDelta(t, 1.0, math.Sqrt(sum), 1e-9)
}

func TestLocalBackend_SeedSeparatesReferences(t *testing.T) {
	ctx := context.Background()

	small := loadBackend(t, "local:16")
	other, err := local.NewFactory().Load(ctx, "local-v2:16")
	require.NoError(t, err)

	a, err := small.Compute(ctx, "same text")
	require.NoError(t, err)

	b, err := other.Compute(ctx, "same text")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestLocalFactory_InvalidReference(t *testing.T) {
	factory := local.NewFactory()
	ctx := context.Background()

	for _, reference := range []string{"local:", "local:abc", "local:0", "local:-4"} {
		_, err := factory.Load(ctx, reference)
		require.ErrorIs(t, err, domain.ErrBackendUnavailable, "reference %q", reference)
	}
}

func TestLocalBackend_Cancelled(t *testing.T) {
	backend := loadBackend(t, "local:16")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := backend.Compute(ctx, "anything")
	require.ErrorIs(t, err, context.Canceled)
}
