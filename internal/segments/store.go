package segments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"neuroskip/internal/config"
	"neuroskip/internal/services"
	"neuroskip/internal/transcribe"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcript_segments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    hash_id TEXT NOT NULL,
    external_id TEXT NOT NULL,
    provider TEXT NOT NULL,
    start_time TEXT NOT NULL,
    end_time TEXT NOT NULL,
    text TEXT NOT NULL,
    type TEXT,
    completion_percent INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_segments_identity
    ON transcript_segments(external_id, provider, start_time, end_time);
CREATE INDEX IF NOT EXISTS idx_segments_lookup
    ON transcript_segments(external_id, provider, created_at);
`

// Store manages transcript segment persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the segment database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "segments.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply segment schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Persist saves a batch of transcript spans, skipping exact duplicates of the
// (externalID, provider, start, end) identity. It returns the ids of newly
// created rows; an empty list means every candidate already existed. On a
// mid-batch failure the ids created so far are returned alongside the error
// so the caller can still dispatch classification for them.
func (s *Store) Persist(ctx context.Context, hashID, externalID, provider string, spans []transcribe.Span, percent int) ([]int64, error) {
	created := make([]int64, 0, len(spans))
	now := time.Now().UTC().Format(time.RFC3339Nano)

	for _, span := range spans {
		start := FormatSeconds(span.Start)
		end := FormatSeconds(span.End)

		var existing int64
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM transcript_segments
             WHERE external_id = ? AND provider = ? AND start_time = ? AND end_time = ?`,
			externalID, provider, start, end,
		).Scan(&existing)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return created, services.Wrap(services.ErrPersistence, "segments", "lookup", externalID, err)
		}

		res, err := s.db.ExecContext(ctx,
			`INSERT INTO transcript_segments (
                hash_id, external_id, provider, start_time, end_time,
                text, type, completion_percent, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)`,
			hashID, externalID, provider, start, end,
			span.Text, percent, now, now,
		)
		if err != nil {
			// Concurrent writers can insert the same identity between the
			// lookup and this insert; the unique index turns that race into
			// a skip rather than a duplicate.
			if isUniqueViolation(err) {
				continue
			}
			return created, services.Wrap(services.ErrPersistence, "segments", "insert", externalID, err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return created, services.Wrap(services.ErrPersistence, "segments", "last insert id", externalID, err)
		}
		created = append(created, id)
	}
	return created, nil
}

// Query returns every stored segment for the identifier, ordered by creation
// time ascending. A non-empty result means the pipeline must not re-run.
func (s *Store) Query(ctx context.Context, externalID, provider string) ([]Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+segmentColumns+` FROM transcript_segments
         WHERE external_id = ? AND provider = ?
         ORDER BY created_at, id`,
		externalID, provider,
	)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var result []Segment
	for rows.Next() {
		segment, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *segment)
	}
	return result, rows.Err()
}

// IsCached reports whether any segments exist for the identifier.
func (s *Store) IsCached(ctx context.Context, externalID, provider string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM transcript_segments WHERE external_id = ? AND provider = ?`,
		externalID, provider,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count segments: %w", err)
	}
	return count > 0, nil
}

// GetByID fetches a segment by identifier, nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Segment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+segmentColumns+` FROM transcript_segments WHERE id = ?`, id)
	segment, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return segment, nil
}

// MarkAd records the one-shot unclassified-to-ad transition for a segment.
func (s *Store) MarkAd(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE transcript_segments SET type = ?, updated_at = ? WHERE id = ? AND type IS NULL`,
		TypeAd, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("mark segment %d as ad: %w", id, err)
	}
	return nil
}

// Stats returns a count of stored segments grouped by classification.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(type, 'unclassified'), COUNT(1) FROM transcript_segments GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("segment stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		stats[kind] = count
	}
	return stats, rows.Err()
}

const segmentColumns = "id, hash_id, external_id, provider, start_time, end_time, text, type, completion_percent, created_at, updated_at"

func scanSegment(scanner interface{ Scan(dest ...any) error }) (*Segment, error) {
	var (
		id         int64
		hashID     string
		externalID string
		provider   string
		start      string
		end        string
		text       string
		kind       sql.NullString
		percent    int
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&id, &hashID, &externalID, &provider, &start, &end, &text, &kind, &percent, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	segment := &Segment{
		ID:                id,
		HashID:            hashID,
		ExternalID:        externalID,
		Provider:          provider,
		Start:             start,
		End:               end,
		Text:              text,
		Type:              kind.String,
		CompletionPercent: percent,
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		segment.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		segment.UpdatedAt = updated
	}
	return segment, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "constraint failed")
}
