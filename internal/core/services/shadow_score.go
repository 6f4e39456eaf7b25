package services

import (
	"strings"

	"github.com/ewilliams-labs/latent/internal/core/domain"
)

// sourceFactors rates how resistant each source is to mainstream discovery.
var sourceFactors = map[string]float64{
	"audius":     0.30,
	"archive":    0.28,
	"netlabels":  0.30,
	"bandcamp":   0.25,
	"reddit":     0.20,
	"audiomack":  0.18,
	"soundcloud": 0.15,
}

const defaultSourceFactor = 0.15

type genreSynonyms struct {
	base     string
	synonyms []string
}

// synonymTable is ordered so that matching is deterministic.
var synonymTable = []genreSynonyms{
	{"hip hop", []string{"hip-hop", "hiphop", "rap", "trap"}},
	{"electronic", []string{"electronica", "edm", "dance", "techno", "house"}},
	{"rock", []string{"alternative", "indie rock", "punk", "metal"}},
	{"r&b", []string{"rnb", "soul", "neo-soul", "r and b"}},
	{"jazz", []string{"bebop", "fusion", "smooth jazz"}},
	{"classical", []string{"orchestral", "symphony", "chamber"}},
	{"afrobeats", []string{"afrobeat", "afro", "naija", "afropop"}},
	{"amapiano", []string{"piano", "south african house"}},
	{"ambient", []string{"atmospheric", "drone", "soundscape"}},
	{"experimental", []string{"avant-garde", "noise", "art music"}},
}

// ShadowScore estimates how invisible a track is to mainstream discovery.
func ShadowScore(plays domain.Optional[int64], source string, downloadable bool) float64 {
	score := 0.5 + playFactor(plays)

	if f, ok := sourceFactors[source]; ok {
		score += f
	} else {
		score += defaultSourceFactor
	}
	if downloadable {
		score += 0.1
	}
	return clamp01(score)
}

func playFactor(plays domain.Optional[int64]) float64 {
	n, ok := plays.Get()
	if !ok {
		return 0.3
	}
	switch {
	case n < 100:
		return 0.4
	case n < 1_000:
		return 0.35
	case n < 10_000:
		return 0.25
	case n < 100_000:
		return 0.15
	case n < 1_000_000:
		return 0.05
	default:
		return 0
	}
}

// TasteMatch rates a track genre against the listener's genres: 1.0 for a
// substring match either way, 0.8 through the synonym table, 0.5 for a shared
// word longer than three characters, otherwise 0.2. Unknown genres score 0.3.
func TasteMatch(trackGenre string, userGenres []string) float64 {
	track := strings.ToLower(strings.TrimSpace(trackGenre))
	if track == "" || len(userGenres) == 0 {
		return 0.3
	}

	lowered := make([]string, 0, len(userGenres))
	for _, ug := range userGenres {
		if ug = strings.ToLower(strings.TrimSpace(ug)); ug != "" {
			lowered = append(lowered, ug)
		}
	}
	if len(lowered) == 0 {
		return 0.3
	}

	for _, ug := range lowered {
		if strings.Contains(track, ug) || strings.Contains(ug, track) {
			return 1
		}
	}

	for _, ug := range lowered {
		for _, entry := range synonymTable {
			if !strings.Contains(entry.base, ug) && !strings.Contains(ug, entry.base) {
				continue
			}
			for _, syn := range entry.synonyms {
				if strings.Contains(track, syn) {
					return 0.8
				}
			}
		}
	}

	for _, ug := range lowered {
		for _, word := range strings.Fields(ug) {
			if len(word) > 3 && strings.Contains(track, word) {
				return 0.5
			}
		}
	}

	return 0.2
}

// NormalizeTrack scores a raw track reported by the named source.
func NormalizeTrack(raw domain.RawTrack, source string, userGenres []string) domain.ShadowTrack {
	shadow := ShadowScore(raw.Plays, source, raw.Downloadable)
	taste := TasteMatch(raw.Genre, userGenres)
	return domain.ShadowTrack{
		ID:            raw.ID,
		Title:         raw.Title,
		Artist:        raw.Artist,
		Source:        source,
		URL:           raw.URL,
		ArtworkURL:    raw.ArtworkURL,
		Genre:         raw.Genre,
		Plays:         raw.Plays,
		Downloadable:  raw.Downloadable,
		ShadowScore:   shadow,
		TasteMatch:    taste,
		CombinedScore: shadow * taste,
		Region:        raw.Region,
	}
}

// Dedupe drops tracks whose artist|title key, or that key with "(official)"
// and "(audio)" removed, was already seen. The first occurrence wins.
func Dedupe(tracks []domain.ShadowTrack) []domain.ShadowTrack {
	seen := make(map[string]struct{}, len(tracks)*2)
	unique := make([]domain.ShadowTrack, 0, len(tracks))

	for _, t := range tracks {
		key := strings.ToLower(strings.TrimSpace(t.Artist)) + "|" + strings.ToLower(strings.TrimSpace(t.Title))
		simple := strings.ReplaceAll(key, "(official)", "")
		simple = strings.TrimSpace(strings.ReplaceAll(simple, "(audio)", ""))

		_, seenKey := seen[key]
		_, seenSimple := seen[simple]
		if seenKey || seenSimple {
			continue
		}
		seen[key] = struct{}{}
		seen[simple] = struct{}{}
		unique = append(unique, t)
	}
	return unique
}
