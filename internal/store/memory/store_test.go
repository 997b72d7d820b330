package memory_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/embercache/internal/domain"
	"github.com/davidbz/embercache/internal/store/memory"
)

func record(id, modelKey string) *domain.EmbeddingRecord {
	return &domain.EmbeddingRecord{
		ID:        id,
		Locator:   "docs/" + id + ".md",
		Text:      "text of " + id,
		Vector:    []float64{1, 0, 0, 0},
		Sections:  []string{"intro"},
		CreatedAt: time.Now().UTC(),
		ModelKey:  modelKey,
	}
}

func TestStore_UpsertReplacesById(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.Upsert(ctx, record("r1", "fast")))

	updated := record("r1", "fast")
	updated.Locator = "docs/renamed.md"
	require.NoError(t, store.Upsert(ctx, updated))

	require.Equal(t, 1, store.Len())

	records, err := store.FetchCandidates(ctx, "fast", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "docs/renamed.md", records[0].Locator)
}

func TestStore_UpsertValidation(t *testing.T) {
	store := memory.NewStore()

	require.Error(t, store.Upsert(context.Background(), nil))
	require.Error(t, store.Upsert(context.Background(), &domain.EmbeddingRecord{}))
}

func TestStore_FetchCandidates_FiltersByModel(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.Upsert(ctx, record("a", "fast")))
	require.NoError(t, store.Upsert(ctx, record("b", "quality")))
	require.NoError(t, store.Upsert(ctx, record("c", "fast")))

	records, err := store.FetchCandidates(ctx, "fast", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "a", records[0].ID)
	require.Equal(t, "c", records[1].ID)
}

func TestStore_FetchCandidates_RespectsLimit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Upsert(ctx, record("r"+strconv.Itoa(i), "fast")))
	}

	records, err := store.FetchCandidates(ctx, "fast", 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "r0", records[0].ID)
	require.Equal(t, "r2", records[2].ID)
}

func TestStore_FetchCandidates_ReturnsClones(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.Upsert(ctx, record("a", "fast")))

	records, err := store.FetchCandidates(ctx, "fast", 10)
	require.NoError(t, err)
	records[0].Vector[0] = 99
	records[0].Sections[0] = "mutated"

	again, err := store.FetchCandidates(ctx, "fast", 10)
	require.NoError(t, err)
	require.Equal(t, float64(1), again[0].Vector[0])
	require.Equal(t, "intro", again[0].Sections[0])
}

func TestStore_UpsertCopiesInput(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	input := record("a", "fast")
	require.NoError(t, store.Upsert(ctx, input))
	input.Vector[0] = 99

	records, err := store.FetchCandidates(ctx, "fast", 10)
	require.NoError(t, err)
	require.Equal(t, float64(1), records[0].Vector[0])
}
