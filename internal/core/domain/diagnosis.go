package domain

import (
	"fmt"
	"math"
	"strings"
)

const (
	diagnosisRecurringLimit = 15
	diagnosisGenreLimit     = 10
)

// RecurringArtist is an artist present in two or more windows.
type RecurringArtist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	InShort    bool     `json:"in_short_term"`
	InMedium   bool     `json:"in_medium_term"`
	InLong     bool     `json:"in_long_term"`
	Recurrence float64  `json:"recurrence_score"`
}

// GenreWeight pairs a genre with its normalized weight.
type GenreWeight struct {
	Genre  string  `json:"genre"`
	Weight float64 `json:"weight"`
}

// Diagnosis summarises a listening profile with template observations.
type Diagnosis struct {
	RecurringArtists []RecurringArtist `json:"recurring_artists"`
	TopGenres        []GenreWeight     `json:"top_genres"`
	Audio            AudioCenters      `json:"audio_feature_profile"`
	Notes            []string          `json:"notes"`
	TotalArtists     int               `json:"total_artists_analyzed"`
	TotalTracks      int               `json:"total_tracks_analyzed"`
}

// Diagnose builds the diagnosis view of a profile.
func Diagnose(p ListeningProfile) Diagnosis {
	d := Diagnosis{
		RecurringArtists: []RecurringArtist{},
		TopGenres:        []GenreWeight{},
		Audio:            p.Audio,
		TotalArtists:     len(p.Artists),
		TotalTracks:      len(p.KnownTrackIDs),
	}

	for _, id := range p.RecurringIDs {
		if len(d.RecurringArtists) == diagnosisRecurringLimit {
			break
		}
		a, ok := p.Artists[id]
		if !ok {
			continue
		}
		genres := a.Genres
		if len(genres) > 5 {
			genres = genres[:5]
		}
		d.RecurringArtists = append(d.RecurringArtists, RecurringArtist{
			ID:         a.ID,
			Name:       a.Name,
			Genres:     genres,
			Popularity: a.Popularity,
			InShort:    a.InShort,
			InMedium:   a.InMedium,
			InLong:     a.InLong,
			Recurrence: a.Recurrence,
		})
	}

	for _, g := range p.TopGenres(diagnosisGenreLimit) {
		d.TopGenres = append(d.TopGenres, GenreWeight{Genre: g, Weight: round3(p.GenreWeights[g])})
	}

	d.Notes = diagnosisNotes(p, d)
	return d
}

func diagnosisNotes(p ListeningProfile, d Diagnosis) []string {
	notes := []string{}

	if len(d.TopGenres) > 0 {
		names := make([]string, 0, 3)
		for _, g := range d.TopGenres {
			if len(names) == 3 {
				break
			}
			names = append(names, g.Genre)
		}
		notes = append(notes, fmt.Sprintf("Your listening clusters around: %s.", strings.Join(names, ", ")))
	}

	if len(d.RecurringArtists) > 0 {
		names := make([]string, 0, 3)
		for _, a := range d.RecurringArtists {
			if len(names) == 3 {
				break
			}
			names = append(names, a.Name)
		}
		notes = append(notes, fmt.Sprintf("Your most stable recurring artists: %s.", strings.Join(names, ", ")))
	}

	if len(p.Artists) > 0 {
		rate := float64(len(p.RecurringIDs)) / float64(len(p.Artists)) * 100
		switch {
		case rate > 50:
			notes = append(notes, "High listening stability: over 50% of artists appear across multiple time windows.")
		case rate < 20:
			notes = append(notes, "High variety: less than 20% of artists recur across time windows.")
		}
	}

	switch {
	case p.Audio.Energy > 0.7:
		notes = append(notes, "Your listening skews high-energy.")
	case p.Audio.Energy < 0.4:
		notes = append(notes, "Your listening skews low-energy/calm.")
	}

	switch {
	case p.Audio.Valence > 0.6:
		notes = append(notes, "Your listening tends toward positive/upbeat moods.")
	case p.Audio.Valence < 0.4:
		notes = append(notes, "Your listening tends toward darker/melancholic moods.")
	}

	return notes
}

// Summary is the one-line description attached to scan results.
func (p ListeningProfile) Summary() string {
	return fmt.Sprintf("Based on %d artists, %d recurring. Top genres: %s.",
		len(p.Artists), len(p.RecurringIDs), strings.Join(p.TopGenres(3), ", "))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
