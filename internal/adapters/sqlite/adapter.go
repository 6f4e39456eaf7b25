// Package sqlite provides a SQLite-backed implementation of the feedback
// store and scan log ports.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/ports"
)

// timeLayout keeps created_at lexically sortable.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Adapter implements the feedback store and scan log for SQLite
type Adapter struct {
	db     *sql.DB
	policy domain.FeedbackPolicy
}

// compile-time interface assertions
var (
	_ ports.FeedbackStore = (*Adapter)(nil)
	_ ports.ScanLog       = (*Adapter)(nil)
)

// NewAdapter creates a connection and runs the schema migration. The policy
// turns verdict counts into score adjustments.
func NewAdapter(storagePath string, policy domain.FeedbackPolicy) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open db: %w", err)
	}
	// An in-memory database lives only as long as its single connection.
	if storagePath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to ping db: %w", err)
	}

	adapter := &Adapter{db: db, policy: policy}

	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Ping reports whether the database is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// RecordVerdict appends one verdict. Invalid verdicts never reach the table.
func (a *Adapter) RecordVerdict(ctx context.Context, entry domain.FeedbackEntry) error {
	verdict, err := domain.ParseVerdict(string(entry.Verdict))
	if err != nil {
		return err
	}
	if entry.ArtistID == "" {
		return errors.New("sqlite: feedback entry has no artist id")
	}

	seeds := entry.SeedArtists
	if seeds == nil {
		seeds = []string{}
	}
	seedsJSON, err := json.Marshal(seeds)
	if err != nil {
		return fmt.Errorf("sqlite: encode seed artists: %w", err)
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO feedback (id, artist_id, verdict, seed_artists, omission_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := a.db.ExecContext(ctx, query,
		entry.ID,
		entry.ArtistID,
		string(verdict),
		string(seedsJSON),
		entry.OmissionScore,
		createdAt.UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("sqlite: failed to record verdict: %w", err)
	}
	return nil
}

// Adjustments returns the score adjustment for every artist with feedback.
func (a *Adapter) Adjustments(ctx context.Context) (map[string]domain.Adjustment, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT artist_id,
			SUM(CASE WHEN verdict = 'accept' THEN 1 ELSE 0 END),
			SUM(CASE WHEN verdict = 'reject' THEN 1 ELSE 0 END)
		FROM feedback
		GROUP BY artist_id
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to load adjustments: %w", err)
	}
	defer rows.Close()

	adjustments := make(map[string]domain.Adjustment)
	for rows.Next() {
		var artistID string
		var accepts, rejects int
		if err := rows.Scan(&artistID, &accepts, &rejects); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan adjustment: %w", err)
		}
		adjustments[artistID] = a.policy.Adjust(accepts, rejects)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate adjustments: %w", err)
	}
	return adjustments, nil
}

// ExcludedIDs returns the artists that must never be surfaced again.
func (a *Adapter) ExcludedIDs(ctx context.Context) (map[string]struct{}, error) {
	excluded := make(map[string]struct{})
	if a.policy.ExcludeThreshold <= 0 {
		return excluded, nil
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT artist_id
		FROM feedback
		WHERE verdict = 'reject'
		GROUP BY artist_id
		HAVING COUNT(*) >= ?
	`, a.policy.ExcludeThreshold)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to load exclusions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var artistID string
		if err := rows.Scan(&artistID); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan exclusion: %w", err)
		}
		excluded[artistID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate exclusions: %w", err)
	}
	return excluded, nil
}

// Stats aggregates the whole verdict log.
func (a *Adapter) Stats(ctx context.Context) (domain.FeedbackStats, error) {
	var stats domain.FeedbackStats
	if err := a.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN verdict = 'accept' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN verdict = 'reject' THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT artist_id)
		FROM feedback
	`).Scan(&stats.Total, &stats.Accepts, &stats.Rejects, &stats.UniqueArtists); err != nil {
		return domain.FeedbackStats{}, fmt.Errorf("sqlite: failed to load feedback stats: %w", err)
	}
	if stats.Total > 0 {
		stats.AcceptRate = float64(stats.Accepts) / float64(stats.Total)
	}
	return stats, nil
}

// History returns the most recent verdicts, newest first.
func (a *Adapter) History(ctx context.Context, limit int) ([]domain.FeedbackEntry, error) {
	if limit <= 0 {
		return []domain.FeedbackEntry{}, nil
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, artist_id, verdict, seed_artists, omission_score, created_at
		FROM feedback
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to load feedback history: %w", err)
	}
	defer rows.Close()

	entries := []domain.FeedbackEntry{}
	for rows.Next() {
		var entry domain.FeedbackEntry
		var verdict, seedsJSON, createdAt string
		if err := rows.Scan(&entry.ID, &entry.ArtistID, &verdict, &seedsJSON, &entry.OmissionScore, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan feedback: %w", err)
		}
		entry.Verdict = domain.Verdict(verdict)
		if err := json.Unmarshal([]byte(seedsJSON), &entry.SeedArtists); err != nil {
			return nil, fmt.Errorf("sqlite: decode seed artists for %s: %w", entry.ID, err)
		}
		if entry.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: parse created_at for %s: %w", entry.ID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate feedback: %w", err)
	}
	return entries, nil
}

// LogScan records one completed omission scan.
func (a *Adapter) LogScan(ctx context.Context, rec domain.ScanRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	query := `
		INSERT INTO scan_history (
			id, min_popularity, max_popularity, time_range, max_results,
			candidates_found, results_returned, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := a.db.ExecContext(ctx, query,
		rec.ID,
		rec.MinPopularity,
		rec.MaxPopularity,
		rec.TimeRange,
		rec.MaxResults,
		rec.CandidatesFound,
		rec.ResultsReturned,
		createdAt.UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("sqlite: failed to log scan: %w", err)
	}
	return nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		artist_id TEXT NOT NULL,
		verdict TEXT NOT NULL CHECK (verdict IN ('accept', 'reject')),
		seed_artists TEXT NOT NULL DEFAULT '[]',
		omission_score REAL NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_artist ON feedback(artist_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at);

	CREATE TABLE IF NOT EXISTS scan_history (
		id TEXT PRIMARY KEY,
		min_popularity INTEGER NOT NULL,
		max_popularity INTEGER NOT NULL,
		time_range TEXT NOT NULL,
		max_results INTEGER NOT NULL,
		candidates_found INTEGER NOT NULL,
		results_returned INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	if _, err := a.db.Exec(query); err != nil {
		return err
	}
	return nil
}
