package services

import (
	"strings"

	"github.com/ewilliams-labs/latent/internal/core/domain"
)

// GenreOverlap scores how well candidate genres fit the profile's genre
// weights. Genres compare case-insensitively. An exact match contributes the
// full weight; otherwise the first profile genre that contains, or is
// contained in, the candidate genre contributes half its weight. The sum is
// averaged over candidate genres and capped at 1.
func GenreOverlap(candidateGenres []string, p domain.ListeningProfile) float64 {
	if len(candidateGenres) == 0 || len(p.GenreWeights) == 0 {
		return 0
	}

	idx := newGenreIndex(p)
	var score float64
	for _, g := range candidateGenres {
		w, exact, ok := idx.match(g)
		switch {
		case exact:
			score += w
		case ok:
			score += w * 0.5
		}
	}

	return clamp01(score / float64(len(candidateGenres)))
}

// GenreOverlapCount counts candidate genres matching the profile exactly or partially.
func GenreOverlapCount(candidateGenres []string, p domain.ListeningProfile) int {
	if len(candidateGenres) == 0 || len(p.GenreWeights) == 0 {
		return 0
	}

	idx := newGenreIndex(p)
	count := 0
	for _, g := range candidateGenres {
		if _, _, ok := idx.match(g); ok {
			count++
		}
	}
	return count
}

// genreIndex is a normalized view of the profile's genres. When two profile
// genres differ only by case, the first in profile order wins.
type genreIndex struct {
	order   []string
	weights map[string]float64
}

func newGenreIndex(p domain.ListeningProfile) genreIndex {
	ordered := p.OrderedGenres()
	idx := genreIndex{
		order:   make([]string, 0, len(ordered)),
		weights: make(map[string]float64, len(ordered)),
	}
	for _, ug := range ordered {
		key := normalizeGenre(ug)
		if _, seen := idx.weights[key]; seen || key == "" {
			continue
		}
		idx.order = append(idx.order, key)
		idx.weights[key] = p.GenreWeights[ug]
	}
	return idx
}

// match returns the weight of the profile genre matching g and whether the
// match was exact.
func (idx genreIndex) match(g string) (weight float64, exact, ok bool) {
	key := normalizeGenre(g)
	if key == "" {
		return 0, false, false
	}
	if w, found := idx.weights[key]; found {
		return w, true, true
	}
	for _, ug := range idx.order {
		if strings.Contains(ug, key) || strings.Contains(key, ug) {
			return idx.weights[ug], false, true
		}
	}
	return 0, false, false
}

func normalizeGenre(g string) string {
	return strings.ToLower(strings.TrimSpace(g))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
