// Package greptime implements the vector record store on GreptimeDB over
// its Postgres-compatible wire protocol. Vectors and section tags are
// JSON-encoded; the database is a durable record holder, similarity is
// computed client-side.
package greptime

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// Postgres wire protocol driver; GreptimeDB speaks it natively.
	_ "github.com/lib/pq"

	"github.com/davidbz/embercache/internal/domain"
	"github.com/davidbz/embercache/internal/observability"
)

// Config holds GreptimeDB connection settings.
type Config struct {
	Host     string `env:"GREPTIME_HOST"     envDefault:"localhost:4003"`
	Database string `env:"GREPTIME_DB"       envDefault:"public"`
	Username string `env:"GREPTIME_USERNAME"`
	Password string `env:"GREPTIME_PASSWORD"`
	Table    string `env:"GREPTIME_TABLE"    envDefault:"embedding_records"`
}

// Store implements domain.VectorStore on GreptimeDB.
type Store struct {
	db    *sql.DB
	table string
}

// Open connects to GreptimeDB and ensures the record table exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		cfg.Username, cfg.Password, cfg.Host, cfg.Database)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	store := &Store{db: db, table: cfg.Table}
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// NewStore wraps an existing connection. The table must already exist.
func NewStore(db *sql.DB, table string) *Store {
	return &Store{db: db, table: table}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// GreptimeDB requires every table to carry a TIME INDEX column and keys
// rows on (primary key, time index). Records are keyed by id alone, so the
// time index is pinned to a fixed epoch: re-inserting the same id lands on
// the same row coordinate and overwrites the field columns, which is the
// engine's native upsert. The record's own timestamp lives in the regular
// created_at column.
var timeIndexEpoch = time.Unix(0, 0).UTC()

func createTableStmt(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         STRING,
			locator    STRING,
			body       STRING,
			vector     STRING,
			sections   STRING,
			model_key  STRING,
			created_at TIMESTAMP,
			ts         TIMESTAMP TIME INDEX,
			PRIMARY KEY (id)
		)`, table)
}

func upsertStmt(table string) string {
	return fmt.Sprintf(`
		INSERT INTO %s (id, locator, body, vector, sections, model_key, created_at, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, table)
}

func fetchStmt(table string) string {
	return fmt.Sprintf(`
		SELECT id, locator, body, vector, sections, model_key, created_at
		FROM %s WHERE model_key = $1 LIMIT $2`, table)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableStmt(s.table)); err != nil {
		return fmt.Errorf("%w: failed to ensure schema: %v", domain.ErrStoreUnavailable, err)
	}

	observability.FromContext(ctx).Info("greptime schema ensured",
		observability.String("table", s.table))
	return nil
}

// Upsert inserts or fully replaces the record with the same ID.
func (s *Store) Upsert(ctx context.Context, record *domain.EmbeddingRecord) error {
	logger := observability.FromContext(ctx)

	vector, err := json.Marshal(record.Vector)
	if err != nil {
		return fmt.Errorf("failed to marshal vector: %w", err)
	}

	sections, err := json.Marshal(record.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal sections: %w", err)
	}

	_, err = s.db.ExecContext(ctx, upsertStmt(s.table),
		record.ID, record.Locator, record.Text, string(vector), string(sections),
		record.ModelKey, record.CreatedAt, timeIndexEpoch)
	if err != nil {
		logger.Error("record upsert failed",
			observability.String("record_id", record.ID),
			observability.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	logger.Debug("record upserted",
		observability.String("record_id", record.ID),
		observability.Int("dimension", len(record.Vector)))
	return nil
}

// FetchCandidates returns up to limit records produced under modelKey.
func (s *Store) FetchCandidates(ctx context.Context, modelKey string, limit int) ([]*domain.EmbeddingRecord, error) {
	logger := observability.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx, fetchStmt(s.table), modelKey, limit)
	if err != nil {
		logger.Error("candidate fetch failed",
			observability.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var records []*domain.EmbeddingRecord
	for rows.Next() {
		record, scanErr := scanRecord(rows)
		if scanErr != nil {
			logger.Warn("skipping unparseable record",
				observability.Error(scanErr))
			continue
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	logger.Debug("candidates fetched",
		observability.String("model", modelKey),
		observability.Int("count", len(records)))
	return records, nil
}

func scanRecord(rows *sql.Rows) (*domain.EmbeddingRecord, error) {
	var (
		record    domain.EmbeddingRecord
		vectorRaw string
		sections  sql.NullString
		locator   sql.NullString
		createdAt time.Time
	)

	if err := rows.Scan(&record.ID, &locator, &record.Text, &vectorRaw,
		&sections, &record.ModelKey, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	if err := json.Unmarshal([]byte(vectorRaw), &record.Vector); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vector: %w", err)
	}
	if sections.Valid && sections.String != "" {
		if err := json.Unmarshal([]byte(sections.String), &record.Sections); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sections: %w", err)
		}
	}

	record.Locator = locator.String
	record.CreatedAt = createdAt.UTC()
	return &record, nil
}
