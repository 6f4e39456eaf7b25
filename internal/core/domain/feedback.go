package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidVerdict is returned for any verdict other than accept or reject.
	ErrInvalidVerdict = errors.New("domain: verdict must be 'accept' or 'reject'")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("domain: not found")
)

// Verdict is a listener's judgement of a surfaced candidate.
type Verdict string

const (
	VerdictAccept Verdict = "accept"
	VerdictReject Verdict = "reject"
)

// ParseVerdict validates a raw verdict string.
func ParseVerdict(raw string) (Verdict, error) {
	switch Verdict(strings.ToLower(strings.TrimSpace(raw))) {
	case VerdictAccept:
		return VerdictAccept, nil
	case VerdictReject:
		return VerdictReject, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidVerdict, raw)
	}
}

// FeedbackEntry is one recorded verdict.
type FeedbackEntry struct {
	ID            string    `json:"id"`
	ArtistID      string    `json:"candidate_artist_id"`
	Verdict       Verdict   `json:"verdict"`
	SeedArtists   []string  `json:"seed_artists"`
	OmissionScore float64   `json:"omission_score"`
	CreatedAt     time.Time `json:"created_at"`
}

// Adjustment is the feedback-derived change applied to one artist's score.
// Excluded means the artist must never be surfaced.
type Adjustment struct {
	Delta    float64 `json:"delta"`
	Excluded bool    `json:"excluded"`
}

// FeedbackPolicy converts verdict counts into an Adjustment.
type FeedbackPolicy struct {
	AcceptBoost      float64
	RejectPenalty    float64
	ExcludeThreshold int
}

// DefaultFeedbackPolicy returns the standard nudges: +0.10 per accept,
// -0.15 per reject, hard exclusion after two rejects.
func DefaultFeedbackPolicy() FeedbackPolicy {
	return FeedbackPolicy{
		AcceptBoost:      0.10,
		RejectPenalty:    0.15,
		ExcludeThreshold: 2,
	}
}

// Adjust computes the adjustment for the given verdict counts.
func (fp FeedbackPolicy) Adjust(accepts, rejects int) Adjustment {
	if fp.ExcludeThreshold > 0 && rejects >= fp.ExcludeThreshold {
		return Adjustment{Excluded: true}
	}
	return Adjustment{Delta: float64(accepts)*fp.AcceptBoost - float64(rejects)*fp.RejectPenalty}
}

// FeedbackStats aggregates the verdict log.
type FeedbackStats struct {
	Total         int     `json:"total_feedback"`
	Accepts       int     `json:"accepts"`
	Rejects       int     `json:"rejects"`
	UniqueArtists int     `json:"unique_artists"`
	AcceptRate    float64 `json:"accept_rate"`
}

// ScanRecord is one logged omission scan.
type ScanRecord struct {
	ID              string    `json:"id"`
	MinPopularity   int       `json:"min_popularity"`
	MaxPopularity   int       `json:"max_popularity"`
	TimeRange       string    `json:"time_range"`
	MaxResults      int       `json:"max_results"`
	CandidatesFound int       `json:"candidates_found"`
	ResultsReturned int       `json:"results_returned"`
	CreatedAt       time.Time `json:"created_at"`
}
