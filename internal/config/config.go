// Package config loads service configuration from defaults, an optional YAML
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ewilliams-labs/latent/internal/adapters/sources"
	"github.com/ewilliams-labs/latent/internal/adapters/spotify"
	"github.com/ewilliams-labs/latent/internal/core/domain"
	"github.com/ewilliams-labs/latent/internal/core/services"
)

// ErrConfiguration marks a configuration that cannot start the service.
var ErrConfiguration = errors.New("config: invalid configuration")

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Spotify   SpotifyConfig   `koanf:"spotify"`
	Storage   StorageConfig   `koanf:"storage"`
	Scoring   ScoringConfig   `koanf:"scoring"`
	Feedback  FeedbackConfig  `koanf:"feedback"`
	Expansion ExpansionConfig `koanf:"expansion"`
	Shadow    ShadowConfig    `koanf:"shadow"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Logging   LoggingConfig   `koanf:"logging"`
	CORS      CORSConfig      `koanf:"cors"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr              string        `koanf:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// SpotifyConfig holds catalog credentials and client tuning.
type SpotifyConfig struct {
	ClientID     string        `koanf:"client_id" validate:"required"`
	ClientSecret string        `koanf:"client_secret" validate:"required"`
	BaseURL      string        `koanf:"base_url" validate:"required,url"`
	TokenURL     string        `koanf:"token_url" validate:"required,url"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxRetries   int           `koanf:"max_retries" validate:"gte=1,lte=10"`
	Backoff      time.Duration `koanf:"backoff" validate:"gte=0"`
	RateLimit    float64       `koanf:"rate_limit" validate:"gte=0"`
	RateBurst    int           `koanf:"rate_burst" validate:"gte=0"`
	CacheSize    int           `koanf:"cache_size" validate:"gte=0"`
	CacheTTL     time.Duration `koanf:"cache_ttl" validate:"gte=0"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// ScoringConfig mirrors services.ScoringConfig.
type ScoringConfig struct {
	SimilarityWeight  float64 `koanf:"similarity_weight" validate:"gte=0,lte=1"`
	ExposureWeight    float64 `koanf:"exposure_weight" validate:"gte=0,lte=1"`
	SaturationWeight  float64 `koanf:"saturation_weight" validate:"gte=0,lte=1"`
	PopularityWeight  float64 `koanf:"popularity_weight" validate:"gte=0,lte=1"`
	RecencyWeight     float64 `koanf:"recency_weight" validate:"gte=0,lte=1"`
	PopularityCeiling int     `koanf:"popularity_ceiling" validate:"gt=0,lte=100"`
	RecencyCutoffYear int     `koanf:"recency_cutoff_year" validate:"gte=1900"`
	CurrentYear       int     `koanf:"current_year" validate:"gte=0"`
	SimilarityFloor   float64 `koanf:"similarity_floor" validate:"gte=0,lte=1"`
	PopularityGate    int     `koanf:"popularity_gate" validate:"gte=0,lte=100"`
	MinSeedSupport    int     `koanf:"min_seed_support" validate:"gte=1"`
	MaxResults        int     `koanf:"max_results" validate:"gte=1"`
}

// FeedbackConfig mirrors domain.FeedbackPolicy.
type FeedbackConfig struct {
	AcceptBoost      float64 `koanf:"accept_boost" validate:"gte=0,lte=1"`
	RejectPenalty    float64 `koanf:"reject_penalty" validate:"gte=0,lte=1"`
	ExcludeThreshold int     `koanf:"exclude_threshold" validate:"gte=0"`
}

// ExpansionConfig mirrors services.ExpanderConfig plus the scan defaults.
type ExpansionConfig struct {
	MaxSeeds               int  `koanf:"max_seeds" validate:"gte=1"`
	MinSeedSupport         int  `koanf:"min_seed_support" validate:"gte=1"`
	RelatedConcurrency     int  `koanf:"related_concurrency" validate:"gte=1"`
	GenreFallbackThreshold int  `koanf:"genre_fallback_threshold" validate:"gte=0"`
	GenreFallbackGenres    int  `koanf:"genre_fallback_genres" validate:"gte=0"`
	GenreSearchLimit       int  `koanf:"genre_search_limit" validate:"gte=1,lte=50"`
	SampleTrackLimit       int  `koanf:"sample_track_limit" validate:"gte=0"`
	ReleaseYearLimit       int  `koanf:"release_year_limit" validate:"gte=0"`
	AlbumLimit             int  `koanf:"album_limit" validate:"gte=1,lte=50"`
	EnrichWorkers          int  `koanf:"enrich_workers" validate:"gte=1"`
	AnalyzePreviews        bool `koanf:"analyze_previews"`
	MaxCandidates          int  `koanf:"max_candidates" validate:"gte=1"`
	MinPopularity          int  `koanf:"min_popularity" validate:"gte=0,lte=100"`
	MaxPopularity          int  `koanf:"max_popularity" validate:"gte=0,lte=100,gtefield=MinPopularity"`
}

// ShadowConfig mirrors services.ShadowConfig and locates the site adapters.
type ShadowConfig struct {
	CallTimeout   time.Duration `koanf:"call_timeout" validate:"gt=0"`
	MaxGenres     int           `koanf:"max_genres" validate:"gte=1"`
	DefaultGenres []string      `koanf:"default_genres" validate:"min=1"`
	DeepSources   []string      `koanf:"deep_sources"`
	DeepThreshold float64       `koanf:"deep_threshold" validate:"gte=0,lte=1"`
	DefaultLimit  int           `koanf:"default_limit" validate:"gte=1,lte=100"`
	AudiusURL     string        `koanf:"audius_url" validate:"omitempty,url"`
	ArchiveURL    string        `koanf:"archive_url" validate:"omitempty,url"`
	BandcampURL   string        `koanf:"bandcamp_url" validate:"omitempty,url"`
	RedditURL     string        `koanf:"reddit_url" validate:"omitempty,url"`
}

// BreakerConfig tunes the per-source circuit breakers.
type BreakerConfig struct {
	ConsecutiveFailures uint32        `koanf:"consecutive_failures" validate:"gte=1"`
	OpenTimeout         time.Duration `koanf:"open_timeout" validate:"gt=0"`
	Interval            time.Duration `koanf:"interval" validate:"gte=0"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `koanf:"level" validate:"oneof=trace debug info warn error"`
	// Format is json or console.
	Format string `koanf:"format" validate:"oneof=json console"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// RateLimitConfig caps requests per client IP. Zero disables the limit.
type RateLimitConfig struct {
	RequestsPerMinute int `koanf:"requests_per_minute" validate:"gte=0"`
}

func defaultConfig() *Config {
	scoring := services.DefaultScoringConfig()
	expansion := services.DefaultExpanderConfig()
	opts := services.DefaultExpandOptions()
	shadow := services.DefaultShadowConfig()
	policy := domain.DefaultFeedbackPolicy()

	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 15 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Spotify: SpotifyConfig{
			BaseURL:    spotify.DefaultBaseURL,
			TokenURL:   spotify.DefaultTokenURL,
			Timeout:    15 * time.Second,
			MaxRetries: 3,
			Backoff:    500 * time.Millisecond,
			RateLimit:  10,
			RateBurst:  5,
			CacheSize:  1024,
			CacheTTL:   6 * time.Hour,
		},
		Storage: StorageConfig{
			Path: "latent.db",
		},
		Scoring: ScoringConfig{
			SimilarityWeight:  scoring.Weights.Similarity,
			ExposureWeight:    scoring.Weights.Exposure,
			SaturationWeight:  scoring.Weights.Saturation,
			PopularityWeight:  scoring.Weights.Popularity,
			RecencyWeight:     scoring.Weights.Recency,
			PopularityCeiling: scoring.PopularityCeiling,
			RecencyCutoffYear: scoring.RecencyCutoffYear,
			SimilarityFloor:   scoring.SimilarityFloor,
			PopularityGate:    scoring.PopularityGate,
			MinSeedSupport:    scoring.MinSeedSupport,
			MaxResults:        scoring.MaxResults,
		},
		Feedback: FeedbackConfig{
			AcceptBoost:      policy.AcceptBoost,
			RejectPenalty:    policy.RejectPenalty,
			ExcludeThreshold: policy.ExcludeThreshold,
		},
		Expansion: ExpansionConfig{
			MaxSeeds:               expansion.MaxSeeds,
			MinSeedSupport:         expansion.MinSeedSupport,
			RelatedConcurrency:     expansion.RelatedConcurrency,
			GenreFallbackThreshold: expansion.GenreFallbackThreshold,
			GenreFallbackGenres:    expansion.GenreFallbackGenres,
			GenreSearchLimit:       expansion.GenreSearchLimit,
			SampleTrackLimit:       expansion.SampleTrackLimit,
			ReleaseYearLimit:       expansion.ReleaseYearLimit,
			AlbumLimit:             expansion.AlbumLimit,
			EnrichWorkers:          expansion.EnrichWorkers,
			AnalyzePreviews:        expansion.AnalyzePreviews,
			MaxCandidates:          opts.MaxCandidates,
			MinPopularity:          opts.MinPopularity,
			MaxPopularity:          opts.MaxPopularity,
		},
		Shadow: ShadowConfig{
			CallTimeout:   shadow.CallTimeout,
			MaxGenres:     shadow.MaxGenres,
			DefaultGenres: shadow.DefaultGenres,
			DeepSources:   shadow.DeepSources,
			DeepThreshold: shadow.DeepThreshold,
			DefaultLimit:  shadow.DefaultLimit,
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: sources.DefaultBreakerSettings.ConsecutiveFailures,
			OpenTimeout:         sources.DefaultBreakerSettings.OpenTimeout,
			Interval:            sources.DefaultBreakerSettings.Interval,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
	}
}

// ScoringSettings converts to the scorer configuration.
func (c *Config) ScoringSettings() services.ScoringConfig {
	s := c.Scoring
	return services.ScoringConfig{
		Weights: services.Weights{
			Similarity: s.SimilarityWeight,
			Exposure:   s.ExposureWeight,
			Saturation: s.SaturationWeight,
			Popularity: s.PopularityWeight,
			Recency:    s.RecencyWeight,
		},
		PopularityCeiling: s.PopularityCeiling,
		RecencyCutoffYear: s.RecencyCutoffYear,
		CurrentYear:       s.CurrentYear,
		SimilarityFloor:   s.SimilarityFloor,
		PopularityGate:    s.PopularityGate,
		MinSeedSupport:    s.MinSeedSupport,
		MaxResults:        s.MaxResults,
	}
}

// FeedbackPolicy converts to the verdict adjustment policy.
func (c *Config) FeedbackPolicy() domain.FeedbackPolicy {
	return domain.FeedbackPolicy{
		AcceptBoost:      c.Feedback.AcceptBoost,
		RejectPenalty:    c.Feedback.RejectPenalty,
		ExcludeThreshold: c.Feedback.ExcludeThreshold,
	}
}

// ExpanderSettings converts to the expander configuration.
func (c *Config) ExpanderSettings() services.ExpanderConfig {
	e := c.Expansion
	return services.ExpanderConfig{
		MaxSeeds:               e.MaxSeeds,
		MinSeedSupport:         e.MinSeedSupport,
		RelatedConcurrency:     e.RelatedConcurrency,
		GenreFallbackThreshold: e.GenreFallbackThreshold,
		GenreFallbackGenres:    e.GenreFallbackGenres,
		GenreSearchLimit:       e.GenreSearchLimit,
		SampleTrackLimit:       e.SampleTrackLimit,
		ReleaseYearLimit:       e.ReleaseYearLimit,
		AlbumLimit:             e.AlbumLimit,
		EnrichWorkers:          e.EnrichWorkers,
		AnalyzePreviews:        e.AnalyzePreviews,
	}
}

// ExpandDefaults returns the popularity window and pool size applied when a
// scan request leaves them unset.
func (c *Config) ExpandDefaults() services.ExpandOptions {
	return services.ExpandOptions{
		MaxCandidates: c.Expansion.MaxCandidates,
		MinPopularity: c.Expansion.MinPopularity,
		MaxPopularity: c.Expansion.MaxPopularity,
	}
}

// ShadowSettings converts to the aggregator configuration.
func (c *Config) ShadowSettings() services.ShadowConfig {
	s := c.Shadow
	return services.ShadowConfig{
		CallTimeout:   s.CallTimeout,
		MaxGenres:     s.MaxGenres,
		DefaultGenres: s.DefaultGenres,
		DeepSources:   s.DeepSources,
		DeepThreshold: s.DeepThreshold,
		DefaultLimit:  s.DefaultLimit,
	}
}

// SourceURLs returns the site adapter roots.
func (c *Config) SourceURLs() sources.URLs {
	return sources.URLs{
		Audius:   c.Shadow.AudiusURL,
		Archive:  c.Shadow.ArchiveURL,
		Bandcamp: c.Shadow.BandcampURL,
		Reddit:   c.Shadow.RedditURL,
	}
}

// BreakerSettings converts to the source breaker settings.
func (c *Config) BreakerSettings() sources.BreakerSettings {
	return sources.BreakerSettings{
		ConsecutiveFailures: c.Breaker.ConsecutiveFailures,
		OpenTimeout:         c.Breaker.OpenTimeout,
		Interval:            c.Breaker.Interval,
	}
}

// String renders the configuration with secrets masked.
func (c *Config) String() string {
	return fmt.Sprintf("addr=%s storage=%s spotify=%s client_id=%s log=%s/%s",
		c.Server.Addr, c.Storage.Path, c.Spotify.BaseURL, mask(c.Spotify.ClientID), c.Logging.Level, c.Logging.Format)
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
