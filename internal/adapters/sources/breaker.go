package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/ports"
	"github.com/ewilliams-labs/latent/internal/metrics"
)

// BreakerSettings tunes the per-source circuit breaker.
type BreakerSettings struct {
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a probe.
	OpenTimeout time.Duration
	// Interval resets the closed-state counts; zero never resets.
	Interval time.Duration
}

// DefaultBreakerSettings opens after five straight failures for one minute.
var DefaultBreakerSettings = BreakerSettings{
	ConsecutiveFailures: 5,
	OpenTimeout:         time.Minute,
	Interval:            5 * time.Minute,
}

// Breaker guards a TrackSource with a circuit breaker so a source that keeps
// failing is skipped without waiting on its timeout.
type Breaker struct {
	source ports.TrackSource
	cb     *gobreaker.CircuitBreaker[[]domain.RawTrack]
}

var _ ports.TrackSource = (*Breaker)(nil)

// NewBreaker wraps source. label distinguishes variants that share a Name in
// logs and the breaker state gauge.
func NewBreaker(source ports.TrackSource, label string, s BreakerSettings) *Breaker {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = DefaultBreakerSettings.ConsecutiveFailures
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = DefaultBreakerSettings.OpenTimeout
	}

	metrics.BreakerState.WithLabelValues(label).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]domain.RawTrack](gobreaker.Settings{
		Name:        label,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up is not the source's fault.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("source", name).Str("from", from.String()).Str("to", to.String()).Msg("sources: breaker state change")
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &Breaker{source: source, cb: cb}
}

// Name implements ports.TrackSource.
func (b *Breaker) Name() string { return b.source.Name() }

// State reports the current breaker state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// Search implements ports.TrackSource. An open breaker fails immediately.
func (b *Breaker) Search(ctx context.Context, query string, limit int) ([]domain.RawTrack, error) {
	tracks, err := b.cb.Execute(func() ([]domain.RawTrack, error) {
		return b.source.Search(ctx, query, limit)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: breaker %s: %w", b.source.Name(), b.cb.Name(), err)
		}
		return nil, err
	}
	return tracks, nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
