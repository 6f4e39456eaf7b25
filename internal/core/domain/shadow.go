package domain

// RawTrack is a track as reported by a single shadow source, before scoring.
type RawTrack struct {
	ID           string
	Title        string
	Artist       string
	URL          string
	ArtworkURL   string
	Genre        string
	Plays        Optional[int64]
	DurationSec  Optional[int]
	Downloadable bool
	Region       string
}

// ShadowTrack is a scored, source-attributed track returned by shadow search.
type ShadowTrack struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Artist        string          `json:"artist"`
	Source        string          `json:"source"`
	URL           string          `json:"url"`
	ArtworkURL    string          `json:"artwork_url,omitempty"`
	Genre         string          `json:"genre,omitempty"`
	Plays         Optional[int64] `json:"plays"`
	Downloadable  bool            `json:"downloadable"`
	ShadowScore   float64         `json:"shadow_score"`
	TasteMatch    float64         `json:"taste_match"`
	CombinedScore float64         `json:"combined_score"`
	Region        string          `json:"region,omitempty"`
}
