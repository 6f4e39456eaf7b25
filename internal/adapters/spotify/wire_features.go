package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ewilliams-labs/latent/internal/core/domain"
)

// featuresBatchSize is the maximum number of ids per audio-features request.
const featuresBatchSize = 100

// spotifyAudioFeatures represents the audio analysis of one track.
type spotifyAudioFeatures struct {
	ID               string  `json:"id"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
	Instrumentalness float64 `json:"instrumentalness"`
	Acousticness     float64 `json:"acousticness"`
}

// AudioFeatures fetches features for the given tracks in batches. Tracks the
// API has no analysis for are absent from the result.
func (c *Client) AudioFeatures(ctx context.Context, trackIDs []string) (map[string]domain.AudioFeatures, error) {
	result := make(map[string]domain.AudioFeatures, len(trackIDs))

	for start := 0; start < len(trackIDs); start += featuresBatchSize {
		end := min(start+featuresBatchSize, len(trackIDs))
		batch, err := c.getAudioFeaturesBatch(ctx, trackIDs[start:end])
		if err != nil {
			return nil, err
		}
		for id, f := range batch {
			result[id] = f
		}
	}

	return result, nil
}

// getAudioFeaturesBatch fetches audio features for multiple tracks in a single request.
func (c *Client) getAudioFeaturesBatch(ctx context.Context, trackIDs []string) (map[string]domain.AudioFeatures, error) {
	if len(trackIDs) == 0 {
		return map[string]domain.AudioFeatures{}, nil
	}

	featuresURL, err := url.Parse(fmt.Sprintf("%s/audio-features", c.baseURL))
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: invalid features url: %w", err)
	}
	query := featuresURL.Query()
	query.Set("ids", strings.Join(trackIDs, ","))
	featuresURL.RawQuery = query.Encode()

	var body struct {
		AudioFeatures []*spotifyAudioFeatures `json:"audio_features"`
	}
	if err := c.getJSON(ctx, "audio_features", featuresURL.String(), &body); err != nil {
		return nil, err
	}

	result := make(map[string]domain.AudioFeatures, len(body.AudioFeatures))
	for _, f := range body.AudioFeatures {
		// Spotify returns null, or all zeros, for tracks it never analysed.
		if f == nil || f.ID == "" || allFeaturesZero(*f) {
			continue
		}
		result[f.ID] = mapFeatures(*f)
	}
	return result, nil
}

func allFeaturesZero(features spotifyAudioFeatures) bool {
	return features.Danceability == 0 &&
		features.Energy == 0 &&
		features.Valence == 0 &&
		features.Tempo == 0 &&
		features.Instrumentalness == 0 &&
		features.Acousticness == 0
}
