package ai

import (
	"github.com/pkg/errors"

	"github.com/hrygo/vectorbase/internal/profile"
)

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	// RequestsPerSecond caps calls to the embedding API. 0 means unlimited.
	RequestsPerSecond float64
}

// NewEmbeddingConfigFromProfile creates the embedding config from profile.
func NewEmbeddingConfigFromProfile(p *profile.Profile) *EmbeddingConfig {
	return &EmbeddingConfig{
		Provider:          p.EmbeddingProvider,
		Model:             p.EmbeddingModel,
		APIKey:            p.EmbeddingAPIKey,
		BaseURL:           p.EmbeddingBaseURL,
		Dimensions:        p.Dimensions,
		RequestsPerSecond: p.EmbeddingRPS,
	}
}

// Validate validates the configuration.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		return errors.New("embedding provider is required")
	}
	if c.Model == "" {
		return errors.New("embedding model is required")
	}
	if c.Provider != "ollama" && c.APIKey == "" {
		return errors.New("embedding API key is required")
	}
	if c.Dimensions < 0 {
		return errors.Errorf("embedding dimensions must not be negative, got %d", c.Dimensions)
	}
	if c.RequestsPerSecond < 0 {
		return errors.Errorf("embedding rate limit must not be negative, got %v", c.RequestsPerSecond)
	}
	return nil
}
