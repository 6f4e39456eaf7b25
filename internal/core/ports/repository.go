package ports

import (
	"context"

	"github.com/ewilliams-labs/latent/internal/core/domain"
)

// FeedbackReader exposes the adjustment snapshot consumed by scoring.
type FeedbackReader interface {
	Adjustments(ctx context.Context) (map[string]domain.Adjustment, error)
	ExcludedIDs(ctx context.Context) (map[string]struct{}, error)
}

// FeedbackStore is the append-only verdict log.
type FeedbackStore interface {
	FeedbackReader
	// RecordVerdict persists a verdict. Entries with an invalid verdict are
	// rejected with domain.ErrInvalidVerdict and never written.
	RecordVerdict(ctx context.Context, entry domain.FeedbackEntry) error
	Stats(ctx context.Context) (domain.FeedbackStats, error)
	History(ctx context.Context, limit int) ([]domain.FeedbackEntry, error)
}

// ScanLog records completed omission scans.
type ScanLog interface {
	LogScan(ctx context.Context, rec domain.ScanRecord) error
}
