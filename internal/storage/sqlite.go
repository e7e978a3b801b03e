package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/shopradar/shopradar/internal/common"
	"github.com/shopradar/shopradar/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements service.CacheStore using SQLite. Positive records
// live in cached_shops, negative markers in zero_review_shops; the two
// namespaces share a key (the candidate fingerprint) but are independent.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite cache store instance.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections, and a single
	// connection gives us key-level atomicity for free.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetPositive returns the cached enrichment result for id, or nil if there
// is none, it has aged past ttl, or its review snapshot cannot be decoded.
// A record whose review snapshot cannot be decoded is dropped from the
// table and treated as a miss rather than surfaced.
func (s *SQLiteStore) GetPositive(ctx context.Context, id string, ttl time.Duration) (*model.PositiveCacheRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var (
		record      model.PositiveCacheRecord
		reviewsJSON []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT place_id, name, address, rating, lat, lng,
		       summary, predicted_rating, explanation, reviews, cached_at
		FROM cached_shops WHERE place_id = ?`, id).Scan(
		&record.ID, &record.Name, &record.Address, &record.Rating,
		&record.Lat, &record.Lng, &record.Summary, &record.PredictedRating,
		&record.Explanation, &reviewsJSON, &record.CachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query positive cache: %w", err)
	}

	if time.Since(record.CachedAt) >= ttl {
		return nil, nil
	}

	if err := json.Unmarshal(reviewsJSON, &record.Reviews); err != nil {
		slog.Warn("Discarding corrupted cache record",
			"place_id", id,
			"error", fmt.Errorf("%w: %v", common.ErrCacheCorrupted, err))
		if _, delErr := s.db.ExecContext(ctx,
			`DELETE FROM cached_shops WHERE place_id = ?`, id); delErr != nil {
			slog.Warn("Failed to drop corrupted cache record",
				"place_id", id,
				"error", delErr)
		}
		return nil, nil
	}

	return &record, nil
}

// PutPositive stores (or overwrites) the enrichment result for a candidate.
func (s *SQLiteStore) PutPositive(ctx context.Context, record *model.PositiveCacheRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if err := validateString(record.ID, "record.ID"); err != nil {
		return err
	}

	reviewsJSON, err := json.Marshal(record.Reviews)
	if err != nil {
		return fmt.Errorf("failed to encode review snapshot: %w", err)
	}

	cachedAt := record.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cached_shops
			(place_id, name, address, rating, lat, lng,
			 summary, predicted_rating, explanation, reviews, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Name, record.Address, record.Rating,
		record.Lat, record.Lng, record.Summary, record.PredictedRating,
		record.Explanation, reviewsJSON, cachedAt)
	if err != nil {
		return fmt.Errorf("failed to write positive cache: %w", err)
	}

	return nil
}

// GetNegative returns the nothing-useful-here marker for id if it is still
// inside its cooldown window, or nil otherwise.
func (s *SQLiteStore) GetNegative(ctx context.Context, id string, ttl time.Duration) (*model.NegativeCacheRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var record model.NegativeCacheRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT place_id, added_at FROM zero_review_shops WHERE place_id = ?`, id).
		Scan(&record.ID, &record.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query negative cache: %w", err)
	}

	if !record.Suppresses(time.Now(), ttl) {
		return nil, nil
	}

	return &record, nil
}

// PutNegative records that a candidate yielded nothing usable.
func (s *SQLiteStore) PutNegative(ctx context.Context, record *model.NegativeCacheRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if err := validateString(record.ID, "record.ID"); err != nil {
		return err
	}

	addedAt := record.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO zero_review_shops (place_id, added_at)
		VALUES (?, ?)`, record.ID, addedAt)
	if err != nil {
		return fmt.Errorf("failed to write negative cache: %w", err)
	}

	return nil
}

// DeleteExpired removes records past their TTL from both namespaces and
// returns the number of rows deleted. Reads already ignore expired rows;
// this keeps the database from growing without bound.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, positiveTTL, negativeTTL time.Duration) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	now := time.Now().UTC()

	posResult, err := s.db.ExecContext(ctx,
		`DELETE FROM cached_shops WHERE cached_at < ?`, now.Add(-positiveTTL))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired positive records: %w", err)
	}

	negResult, err := s.db.ExecContext(ctx,
		`DELETE FROM zero_review_shops WHERE added_at < ?`, now.Add(-negativeTTL))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired negative records: %w", err)
	}

	posCount, _ := posResult.RowsAffected()
	negCount, _ := negResult.RowsAffected()

	return posCount + negCount, nil
}

// Stats reports row counts per namespace for the cache admin command.
func (s *SQLiteStore) Stats(ctx context.Context) (positive, negative int64, err error) {
	if err := validateContext(ctx); err != nil {
		return 0, 0, err
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cached_shops`).Scan(&positive); err != nil {
		return 0, 0, fmt.Errorf("failed to count positive records: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM zero_review_shops`).Scan(&negative); err != nil {
		return 0, 0, fmt.Errorf("failed to count negative records: %w", err)
	}

	return positive, negative, nil
}
