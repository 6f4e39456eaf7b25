package domain

// CandidateSource records how a candidate entered the pool.
type CandidateSource string

const (
	SourceRelated     CandidateSource = "related"
	SourceGenreSearch CandidateSource = "genre_search"
)

// CandidateArtist is an artist absent from the listener's history that the
// expander reached from one or more seeds or from a genre search.
type CandidateArtist struct {
	ID                  string                `json:"id"`
	Name                string                `json:"name"`
	Genres              []string              `json:"genres"`
	Popularity          int                   `json:"popularity"`
	Source              CandidateSource       `json:"source"`
	SourceGenre         string                `json:"source_genre,omitempty"`
	EarliestReleaseYear Optional[int]         `json:"earliest_release_year"`
	SampleTrack         Optional[SampleTrack] `json:"sample_track"`
	AudioFeatures       AudioFeatures         `json:"audio_features,omitempty"`
	GenreOverlap        float64               `json:"genre_overlap"`
	SeedIDs             []string              `json:"seed_ids"`
	SeedNames           []string              `json:"seed_names"`
}

// SeedSupportCount is the number of distinct seeds that reached the candidate.
func (c CandidateArtist) SeedSupportCount() int {
	return len(c.SeedIDs)
}

// AddSeed records support from a seed. Repeat sightings from the same seed
// do not add support.
func (c *CandidateArtist) AddSeed(seedID, seedName string) bool {
	for _, id := range c.SeedIDs {
		if id == seedID {
			return false
		}
	}
	c.SeedIDs = append(c.SeedIDs, seedID)
	c.SeedNames = append(c.SeedNames, seedName)
	return true
}

// ExplanationKind names the template an explanation was rendered from.
type ExplanationKind string

const (
	ExplainMultiSeed          ExplanationKind = "multi_seed"
	ExplainStructuralOmission ExplanationKind = "structural_omission"
	ExplainOldCatalog         ExplanationKind = "old_catalog"
	ExplainLowPopularity      ExplanationKind = "low_popularity"
	ExplainDeepGenreFit       ExplanationKind = "deep_genre_fit"
)

// ScoreComponents are the five weighted inputs to the omission score.
type ScoreComponents struct {
	ContextualSimilarity float64 `json:"contextual_similarity"`
	Exposure             float64 `json:"exposure"`
	Saturation           float64 `json:"saturation"`
	Popularity           float64 `json:"popularity"`
	Recency              float64 `json:"recency"`
}

// Evidence is the supporting detail shown with a result.
type Evidence struct {
	SeedArtists       []string      `json:"seed_artists"`
	GenreOverlapCount int           `json:"genre_overlap_count"`
	AudioSimilarity   float64       `json:"audio_similarity_score"`
	Popularity        int           `json:"popularity"`
	EarliestAlbumYear Optional[int] `json:"earliest_album_year"`
}

// ScoredCandidate is a candidate that passed the confidence gate. It is
// computed per request and never persisted.
type ScoredCandidate struct {
	Candidate       CandidateArtist `json:"candidate"`
	Components      ScoreComponents `json:"components"`
	OmissionScore   float64         `json:"omission_score"`
	Confident       bool            `json:"passes_confidence_gate"`
	Evidence        Evidence        `json:"evidence"`
	ExplanationKind ExplanationKind `json:"explanation_kind"`
	Explanation     string          `json:"explanation"`
}
