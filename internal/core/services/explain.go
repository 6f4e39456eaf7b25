package services

import (
	"fmt"
	"strings"

	"github.com/ewilliams-labs/latent/internal/core/domain"
)

const (
	tmplMultiSeed     = "Connected to multiple stable preferences: %s."
	tmplStructural    = "Related to %d of your recurring artists, yet absent from your library."
	tmplOldCatalog    = "Established catalog (since %d) matching your context, often missed by recency bias."
	tmplLowPopularity = "Contextually relevant but under-promoted (popularity: %d)."
	tmplDeepGenreFit  = "Strong match to your genre profile (%s), with low algorithmic visibility."
)

// explain renders the highest-priority template the candidate qualifies for.
func explain(c domain.CandidateArtist, comp domain.ScoreComponents, overlapCount int) (domain.ExplanationKind, string) {
	support := c.SeedSupportCount()

	if support >= 3 {
		return domain.ExplainMultiSeed, fmt.Sprintf(tmplMultiSeed, strings.Join(firstN(c.SeedNames, 3), ", "))
	}
	if support >= 2 {
		return domain.ExplainStructuralOmission, fmt.Sprintf(tmplStructural, support)
	}
	if year, ok := c.EarliestReleaseYear.Get(); ok && comp.Recency >= 0.9 {
		return domain.ExplainOldCatalog, fmt.Sprintf(tmplOldCatalog, year)
	}
	if comp.Popularity >= 0.6 {
		return domain.ExplainLowPopularity, fmt.Sprintf(tmplLowPopularity, c.Popularity)
	}
	if overlapCount >= 2 {
		return domain.ExplainDeepGenreFit, fmt.Sprintf(tmplDeepGenreFit, strings.Join(firstN(c.Genres, 3), ", "))
	}

	return domain.ExplainStructuralOmission, fmt.Sprintf(tmplStructural, max(support, 1))
}

func firstN(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
