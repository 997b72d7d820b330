// Package redis implements the vector record store on Redis with the
// RediSearch module. Records live in hashes under "record:<id>"; a search
// index over model_key lets candidate fetches stay scoped to one model so
// multi-model stores never hand back incompatible vectors.
package redis

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/embercache/internal/domain"
	"github.com/davidbz/embercache/internal/observability"
)

const (
	recordKeyPrefix     = "record:"
	redisDialectVersion = 2
)

// Store implements domain.VectorStore on Redis.
type Store struct {
	client    *redis.Client
	indexName string
}

// NewStore creates a Redis-backed record store, creating the search index
// if it does not exist yet.
func NewStore(client *redis.Client, indexName string) (*Store, error) {
	s := &Store{
		client:    client,
		indexName: indexName,
	}

	if err := s.createIndex(); err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return s, nil
}

// Upsert writes the complete record hash, replacing any record with the
// same ID.
func (s *Store) Upsert(ctx context.Context, record *domain.EmbeddingRecord) error {
	logger := observability.FromContext(ctx)

	sections, err := json.Marshal(record.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal sections: %w", err)
	}

	key := recordKeyPrefix + record.ID

	// HSET leaves stale fields behind on a shrinking record; DEL first so
	// replace-by-id really replaces every field.
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"locator", record.Locator,
		"text", record.Text,
		"vector", floatsToBytes(record.Vector),
		"sections", string(sections),
		"model_key", record.ModelKey,
		"created_at", record.CreatedAt.Unix(),
	)

	if _, execErr := pipe.Exec(ctx); execErr != nil {
		logger.Error("record upsert failed",
			observability.String("key", key),
			observability.Error(execErr))
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, execErr)
	}

	logger.Debug("record upserted",
		observability.String("key", key),
		observability.Int("dimension", len(record.Vector)))
	return nil
}

// FetchCandidates returns up to limit records produced under modelKey.
func (s *Store) FetchCandidates(ctx context.Context, modelKey string, limit int) ([]*domain.EmbeddingRecord, error) {
	logger := observability.FromContext(ctx)

	query := fmt.Sprintf("@model_key:{%s}", escapeTag(modelKey))

	results, err := s.client.FTSearchWithArgs(ctx, s.indexName, query,
		&redis.FTSearchOptions{
			Return: []redis.FTSearchReturn{
				{FieldName: "locator"},
				{FieldName: "text"},
				{FieldName: "vector"},
				{FieldName: "sections"},
				{FieldName: "model_key"},
				{FieldName: "created_at"},
			},
			Limit:          limit,
			DialectVersion: redisDialectVersion,
		},
	).Result()
	if err != nil {
		logger.Error("candidate fetch failed",
			observability.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	records := make([]*domain.EmbeddingRecord, 0, len(results.Docs))
	for _, doc := range results.Docs {
		record, parseErr := parseRecord(doc)
		if parseErr != nil {
			logger.Warn("skipping unparseable record",
				observability.String("key", doc.ID),
				observability.Error(parseErr))
			continue
		}
		records = append(records, record)
	}

	logger.Debug("candidates fetched",
		observability.String("model", modelKey),
		observability.Int("count", len(records)))
	return records, nil
}

// createIndex creates the search index over record hashes if missing.
func (s *Store) createIndex() error {
	ctx := context.Background()
	logger := observability.FromContext(ctx)

	if _, err := s.client.FTInfo(ctx, s.indexName).Result(); err == nil {
		logger.Info("redis search index already exists, skipping creation",
			observability.String("index_name", s.indexName))
		return nil
	}

	_, err := s.client.FTCreate(ctx, s.indexName,
		&redis.FTCreateOptions{
			OnHash: true,
			Prefix: []any{recordKeyPrefix},
		},
		&redis.FieldSchema{
			FieldName: "model_key",
			FieldType: redis.SearchFieldTypeTag,
		},
		&redis.FieldSchema{
			FieldName: "locator",
			FieldType: redis.SearchFieldTypeText,
		},
		&redis.FieldSchema{
			FieldName: "created_at",
			FieldType: redis.SearchFieldTypeNumeric,
			Sortable:  true,
		},
	).Result()
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	logger.Info("created redis search index",
		observability.String("index_name", s.indexName))
	return nil
}

func parseRecord(doc redis.Document) (*domain.EmbeddingRecord, error) {
	vectorStr, ok := doc.Fields["vector"]
	if !ok {
		return nil, fmt.Errorf("vector field missing")
	}

	vector, err := bytesToFloats([]byte(vectorStr))
	if err != nil {
		return nil, err
	}

	var sections []string
	if raw, sectionsOk := doc.Fields["sections"]; sectionsOk && raw != "" {
		if unmarshalErr := json.Unmarshal([]byte(raw), &sections); unmarshalErr != nil {
			return nil, fmt.Errorf("failed to unmarshal sections: %w", unmarshalErr)
		}
	}

	var createdAt time.Time
	if tsStr, tsOk := doc.Fields["created_at"]; tsOk {
		if ts, parseErr := strconv.ParseInt(tsStr, 10, 64); parseErr == nil {
			createdAt = time.Unix(ts, 0).UTC()
		}
	}

	return &domain.EmbeddingRecord{
		ID:        strings.TrimPrefix(doc.ID, recordKeyPrefix),
		Locator:   doc.Fields["locator"],
		Text:      doc.Fields["text"],
		Vector:    vector,
		Sections:  sections,
		CreatedAt: createdAt,
		ModelKey:  doc.Fields["model_key"],
	}, nil
}

// floatsToBytes converts a float64 slice to its binary representation.
// Vectors are stored as little-endian float32, trading precision for half
// the memory; search re-scores client-side so the loss is harmless.
func floatsToBytes(fs []float64) []byte {
	const bytesPerFloat32 = 4
	buf := make([]byte, len(fs)*bytesPerFloat32)

	for i, f := range fs {
		u := math.Float32bits(float32(f))
		binary.LittleEndian.PutUint32(buf[i*bytesPerFloat32:], u)
	}

	return buf
}

// bytesToFloats is the inverse of floatsToBytes.
func bytesToFloats(buf []byte) ([]float64, error) {
	const bytesPerFloat32 = 4
	if len(buf)%bytesPerFloat32 != 0 {
		return nil, fmt.Errorf("vector payload length %d is not a multiple of %d", len(buf), bytesPerFloat32)
	}

	fs := make([]float64, len(buf)/bytesPerFloat32)
	for i := range fs {
		u := binary.LittleEndian.Uint32(buf[i*bytesPerFloat32:])
		fs[i] = float64(math.Float32frombits(u))
	}

	return fs, nil
}

// escapeTag escapes RediSearch tag-query metacharacters in a model key.
func escapeTag(tag string) string {
	var b strings.Builder
	for _, r := range tag {
		switch r {
		case ',', '.', '<', '>', '{', '}', '[', ']', '"', '\'', ':', ';', '!', '@', '#', '$', '%', '^', '&', '*', '(', ')', '-', '+', '=', '~', ' ', '|', '/', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
