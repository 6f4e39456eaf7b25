package domain

import (
	"strconv"
	"strings"
)

// Audio feature names shared by catalog adapters and the scoring layer.
const (
	FeatureEnergy           = "energy"
	FeatureDanceability     = "danceability"
	FeatureValence          = "valence"
	FeatureAcousticness     = "acousticness"
	FeatureInstrumentalness = "instrumentalness"
	FeatureTempo            = "tempo"
)

// ScalarFeatures lists the features expressed on a 0..1 scale.
var ScalarFeatures = []string{
	FeatureEnergy,
	FeatureDanceability,
	FeatureValence,
	FeatureAcousticness,
	FeatureInstrumentalness,
}

// AudioFeatures maps a feature name to its value. Absent keys mean the
// provider did not report that feature.
type AudioFeatures map[string]float64

// Lookup returns a feature value and whether it was reported.
func (f AudioFeatures) Lookup(name string) (float64, bool) {
	if f == nil {
		return 0, false
	}
	v, ok := f[name]
	return v, ok
}

// Artist is a catalog artist.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
}

// Track represents a catalog track in the domain layer.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ArtistIDs  []string `json:"artist_ids"`
	PreviewURL string   `json:"preview_url,omitempty"`
	Popularity int      `json:"popularity"`
}

// Album is a catalog release.
type Album struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

// ReleaseYear parses the leading four digits of the release date.
func (a Album) ReleaseYear() (int, bool) {
	date := strings.TrimSpace(a.ReleaseDate)
	if len(date) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return 0, false
	}
	return year, true
}

// SampleTrack is the representative track attached to a candidate.
type SampleTrack struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PreviewURL string `json:"preview_url,omitempty"`
}
