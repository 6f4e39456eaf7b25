package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ewilliams-labs/latent/internal/metrics"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
	// maxBackoff bounds both exponential backoff and a server's Retry-After.
	maxBackoff = 30 * time.Second
)

// doRequestWithRetry sends a body-less request, retrying transport errors,
// 429 and 5xx responses. maxRetries counts total attempts. Every attempt
// first waits on the client's rate limiter.
func (c *Client) doRequestWithRetry(req *http.Request, endpoint string) (*http.Response, error) {
	attempts := c.maxRetries
	if attempts <= 0 {
		attempts = defaultMaxRetries
	}
	ctx := req.Context()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		// #nosec G107 -- URL constructed from the configured Spotify API baseURL
		resp, err := c.httpClient.Do(req)
		delay, retry := retryDelay(resp, err)
		if !retry {
			return resp, err
		}

		switch {
		case err != nil:
			lastErr = err
			log.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", attempt).Int("max", attempts).Msg("spotify adapter: retrying after error")
		default:
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			log.Warn().Int("status", resp.StatusCode).Str("endpoint", endpoint).Int("attempt", attempt).Int("max", attempts).Msg("spotify adapter: retrying after status")
			_ = resp.Body.Close()
		}
		if attempt == attempts {
			break
		}
		metrics.CatalogRetries.WithLabelValues(endpoint).Inc()

		if delay == 0 {
			delay = c.backoff(attempt)
		}
		if err := sleepWithContext(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("spotify adapter: request failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("spotify adapter: request canceled: %w", err)
	}
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("spotify adapter: rate limiter: %w", err)
	}
	return nil
}

// backoff doubles from the base delay per completed attempt.
func (c *Client) backoff(attempt int) time.Duration {
	base := c.baseBackoff
	if base <= 0 {
		base = defaultBackoff
	}
	d := base << (attempt - 1)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

// retryDelay reports whether the outcome is retryable and any server-requested
// delay. A zero delay means the caller's backoff applies.
func retryDelay(resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		return 0, true
	}
	if resp == nil {
		return 0, false
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return parseRetryAfter(resp.Header.Get("Retry-After")), true
	}
	return 0, false
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	var d time.Duration
	if seconds, err := strconv.Atoi(v); err == nil {
		d = time.Duration(seconds) * time.Second
	} else if when, err := http.ParseTime(v); err == nil {
		d = time.Until(when)
	}
	if d <= 0 {
		return 0
	}
	return min(d, maxBackoff)
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("spotify adapter: request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
