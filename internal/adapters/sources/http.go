// Package sources implements shadow search adapters for open music sites.
// Every adapter is best-effort: a site that changes its markup or API yields
// an error, which the aggregator treats as an empty result.
package sources

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/microcosm-cc/bluemonday"
)

// DefaultUserAgent identifies outgoing search requests.
const DefaultUserAgent = "LatentSearch/1.0"

// stripTags removes any markup from free-text fields returned by sites.
var stripTags = bluemonday.StrictPolicy()

func cleanText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(stripTags.Sanitize(s))), " ")
}

func fetch(ctx context.Context, hc *http.Client, source, rawURL, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", source, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", source, err)
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%s: status %d", source, resp.StatusCode)
	}
	return resp, nil
}

func fetchJSON(ctx context.Context, hc *http.Client, source, rawURL, userAgent string, out any) error {
	resp, err := fetch(ctx, hc, source, rawURL, userAgent)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode error: %w", source, err)
	}
	return nil
}

// flexString accepts a JSON string or an array of strings, keeping the first.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil
	}
	if len(list) > 0 {
		*f = flexString(list[0])
	}
	return nil
}

// flexInt accepts a JSON number or a numeric string. Missing or unparsable
// values leave Valid false.
type flexInt struct {
	Value int64
	Valid bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt{Value: int64(n), Valid: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			*f = flexInt{Value: v, Valid: true}
		}
	}
	return nil
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func clientOrDefault(hc *http.Client) *http.Client {
	if hc == nil {
		return http.DefaultClient
	}
	return hc
}
