package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// maxPreviewBytes bounds how much decoded PCM is read from one preview.
const maxPreviewBytes = 8 << 20

var previewClient = &http.Client{Timeout: 15 * time.Second}

// analyzePreview downloads an MP3 preview and estimates its energy as the
// RMS amplitude of the decoded 16-bit samples, scaled to [0,1].
func analyzePreview(ctx context.Context, url string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("preview request: %w", err)
	}

	// #nosec G107 -- URL comes from a catalog preview field
	resp, err := previewClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("preview fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("preview fetch status %d", resp.StatusCode)
	}

	return energyFromMP3(resp.Body)
}

func energyFromMP3(r io.Reader) (float64, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return 0, fmt.Errorf("preview decode failed: %w", err)
	}

	buf := make([]byte, 4096)
	var sumSquares float64
	var count float64
	var read int

	for read < maxPreviewBytes {
		n, err := decoder.Read(buf)
		read += n
		for i := 0; i+1 < n; i += 2 {
			sample := int16(buf[i]) | int16(buf[i+1])<<8
			val := float64(sample)
			sumSquares += val * val
			count++
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, fmt.Errorf("preview read failed: %w", err)
		}
	}

	if count == 0 {
		return 0, errors.New("preview contains no samples")
	}

	energy := math.Sqrt(sumSquares/count) / 32768.0
	return math.Max(0, math.Min(1, energy)), nil
}

// AnalyzePreviewFunc allows tests to override the analyzer implementation.
var AnalyzePreviewFunc = analyzePreview
