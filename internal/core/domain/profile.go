package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidTimeRange is returned for an unrecognised history window selector.
var ErrInvalidTimeRange = errors.New("domain: invalid time range")

// TimeWindow identifies one historical listening window.
type TimeWindow string

const (
	WindowShort  TimeWindow = "short_term"
	WindowMedium TimeWindow = "medium_term"
	WindowLong   TimeWindow = "long_term"
)

// AllWindows is the processing order used when building a profile.
var AllWindows = []TimeWindow{WindowShort, WindowMedium, WindowLong}

const (
	// HistoryLimit is the number of top artists and tracks read per window.
	HistoryLimit = 50
	// minRecurringSeeds is the recurring count below which ranked artists seed expansion instead.
	minRecurringSeeds = 5
	fallbackSeedCount = 10
)

// ParseTimeRange maps "short", "medium", "long" or "all" (the default) to windows.
func ParseTimeRange(raw string) ([]TimeWindow, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all":
		return AllWindows, nil
	case "short":
		return []TimeWindow{WindowShort}, nil
	case "medium":
		return []TimeWindow{WindowMedium}, nil
	case "long":
		return []TimeWindow{WindowLong}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeRange, raw)
	}
}

// WindowHistory is the ranked listening data for one window.
type WindowHistory struct {
	Window  TimeWindow
	Artists []Artist
	Tracks  []Track
}

// History is the raw listening data a profile is derived from.
type History struct {
	Windows []WindowHistory
	// TrackFeatures holds audio features keyed by track id. It is nil when
	// the provider could not supply them.
	TrackFeatures map[string]AudioFeatures
}

// ArtistContext describes one artist's place in the listener's history.
type ArtistContext struct {
	Artist
	InShort     bool    `json:"in_short_term"`
	InMedium    bool    `json:"in_medium_term"`
	InLong      bool    `json:"in_long_term"`
	Recurrence  float64 `json:"recurrence_score"`
	PositionAvg float64 `json:"position_avg"`
}

func (a ArtistContext) windowCount() int {
	n := 0
	for _, in := range []bool{a.InShort, a.InMedium, a.InLong} {
		if in {
			n++
		}
	}
	return n
}

// AudioCenters holds the mean audio features of the listener's tracks.
type AudioCenters struct {
	Energy           float64 `json:"energy"`
	Danceability     float64 `json:"danceability"`
	Valence          float64 `json:"valence"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Tempo            float64 `json:"tempo"`
	Available        bool    `json:"available"`
}

// DefaultAudioCenters are used when no features are known.
func DefaultAudioCenters() AudioCenters {
	return AudioCenters{
		Energy:           0.5,
		Danceability:     0.5,
		Valence:          0.5,
		Acousticness:     0.5,
		Instrumentalness: 0.5,
		Tempo:            120,
	}
}

// Features returns the centers keyed by feature name.
func (c AudioCenters) Features() AudioFeatures {
	return AudioFeatures{
		FeatureEnergy:           c.Energy,
		FeatureDanceability:     c.Danceability,
		FeatureValence:          c.Valence,
		FeatureAcousticness:     c.Acousticness,
		FeatureInstrumentalness: c.Instrumentalness,
		FeatureTempo:            c.Tempo,
	}
}

// ListeningProfile is the per-request, read-only model of a listener's history.
type ListeningProfile struct {
	Artists map[string]ArtistContext
	// ArtistOrder lists artist ids in first-seen order.
	ArtistOrder  []string
	GenreWeights map[string]float64
	// GenreOrder lists genres in first-seen order.
	GenreOrder     []string
	Audio          AudioCenters
	KnownArtistIDs map[string]struct{}
	KnownTrackIDs  map[string]struct{}
	RecurringIDs   []string
	SeedIDs        []string
}

// IsKnown reports whether the artist already appears in the listener's history.
func (p ListeningProfile) IsKnown(artistID string) bool {
	_, ok := p.KnownArtistIDs[artistID]
	return ok
}

// ArtistName resolves a known artist's name.
func (p ListeningProfile) ArtistName(artistID string) string {
	if a, ok := p.Artists[artistID]; ok && a.Name != "" {
		return a.Name
	}
	return "Unknown"
}

// TopByPosition returns up to n artist ids ordered by best average rank.
func (p ListeningProfile) TopByPosition(n int) []string {
	ids := make([]string, len(p.ArtistOrder))
	copy(ids, p.ArtistOrder)
	sort.SliceStable(ids, func(i, j int) bool {
		return p.Artists[ids[i]].PositionAvg < p.Artists[ids[j]].PositionAvg
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

// ExpansionSeeds returns the seeds used to expand candidates: SeedIDs, or the
// best-ranked artists when fewer than five seeds exist.
func (p ListeningProfile) ExpansionSeeds() []string {
	if len(p.SeedIDs) >= minRecurringSeeds {
		return p.SeedIDs
	}
	return p.TopByPosition(fallbackSeedCount)
}

// OrderedGenres returns the weighted genres in first-seen order. Profiles
// assembled without GenreOrder fall back to lexical order.
func (p ListeningProfile) OrderedGenres() []string {
	if len(p.GenreOrder) == len(p.GenreWeights) {
		return p.GenreOrder
	}
	genres := make([]string, 0, len(p.GenreWeights))
	for g := range p.GenreWeights {
		genres = append(genres, g)
	}
	sort.Strings(genres)
	return genres
}

// TopGenres returns up to n genres ordered by descending weight.
func (p ListeningProfile) TopGenres(n int) []string {
	ordered := p.OrderedGenres()
	genres := make([]string, len(ordered))
	copy(genres, ordered)
	sort.SliceStable(genres, func(i, j int) bool {
		return p.GenreWeights[genres[i]] > p.GenreWeights[genres[j]]
	})
	if n >= 0 && len(genres) > n {
		genres = genres[:n]
	}
	return genres
}

// EffectiveMinSeedSupport relaxes the configured minimum to 1 when fewer than
// three seeds are in use.
func EffectiveMinSeedSupport(seedCount, configured int) int {
	if seedCount < 3 || configured < 1 {
		return 1
	}
	return configured
}

// BuildProfile derives a ListeningProfile from raw history. Windows are
// processed in the order given; each repeat sighting moves the position
// average halfway toward the new rank.
func BuildProfile(h History) ListeningProfile {
	p := ListeningProfile{
		Artists:        make(map[string]ArtistContext),
		GenreWeights:   make(map[string]float64),
		KnownArtistIDs: make(map[string]struct{}),
		KnownTrackIDs:  make(map[string]struct{}),
		Audio:          DefaultAudioCenters(),
	}

	var trackOrder []string
	for _, wh := range h.Windows {
		for idx, artist := range wh.Artists {
			if artist.ID == "" {
				continue
			}
			ac, seen := p.Artists[artist.ID]
			if !seen {
				ac = ArtistContext{Artist: artist}
				if ac.Name == "" {
					ac.Name = "Unknown"
				}
				p.ArtistOrder = append(p.ArtistOrder, artist.ID)
			}
			switch wh.Window {
			case WindowShort:
				ac.InShort = true
			case WindowMedium:
				ac.InMedium = true
			default:
				ac.InLong = true
			}
			position := float64(idx + 1)
			if ac.PositionAvg == 0 {
				ac.PositionAvg = position
			} else {
				ac.PositionAvg = (ac.PositionAvg + position) / 2
			}
			p.Artists[artist.ID] = ac
		}
		for _, t := range wh.Tracks {
			if t.ID == "" {
				continue
			}
			if _, ok := p.KnownTrackIDs[t.ID]; !ok {
				p.KnownTrackIDs[t.ID] = struct{}{}
				trackOrder = append(trackOrder, t.ID)
			}
		}
	}

	for _, id := range p.ArtistOrder {
		ac := p.Artists[id]
		windows := ac.windowCount()
		ac.Recurrence = float64(windows) / 3.0
		p.Artists[id] = ac
		p.KnownArtistIDs[id] = struct{}{}
		if windows >= 2 {
			p.RecurringIDs = append(p.RecurringIDs, id)
		}
	}

	if len(p.RecurringIDs) >= minRecurringSeeds {
		p.SeedIDs = append([]string(nil), p.RecurringIDs...)
	} else {
		p.SeedIDs = p.TopByPosition(fallbackSeedCount)
	}

	p.computeGenreWeights()
	p.computeAudioCenters(trackOrder, h.TrackFeatures)

	return p
}

func (p *ListeningProfile) computeGenreWeights() {
	counts := make(map[string]float64)
	for _, id := range p.ArtistOrder {
		ac := p.Artists[id]
		weight := 1 + ac.Recurrence
		for _, g := range ac.Genres {
			if _, ok := counts[g]; !ok {
				p.GenreOrder = append(p.GenreOrder, g)
			}
			counts[g] += weight
		}
	}

	var maxCount float64
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	if maxCount == 0 {
		return
	}
	for g, c := range counts {
		p.GenreWeights[g] = c / maxCount
	}
}

func (p *ListeningProfile) computeAudioCenters(trackIDs []string, features map[string]AudioFeatures) {
	if len(features) == 0 {
		return
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, id := range trackIDs {
		f, ok := features[id]
		if !ok {
			continue
		}
		for name, v := range f {
			// A zero tempo means the provider had no estimate.
			if name == FeatureTempo && v == 0 {
				continue
			}
			sums[name] += v
			counts[name]++
		}
	}
	if len(counts) == 0 {
		return
	}

	mean := func(name string, fallback float64) float64 {
		if counts[name] == 0 {
			return fallback
		}
		return sums[name] / float64(counts[name])
	}

	p.Audio = AudioCenters{
		Energy:           mean(FeatureEnergy, 0.5),
		Danceability:     mean(FeatureDanceability, 0.5),
		Valence:          mean(FeatureValence, 0.5),
		Acousticness:     mean(FeatureAcousticness, 0.5),
		Instrumentalness: mean(FeatureInstrumentalness, 0.5),
		Tempo:            mean(FeatureTempo, 120),
		Available:        true,
	}
}
