package driving

import "github.com/custodia-labs/claimaudit/internal/core/domain"

// SettingsService manages the persisted configuration: AI providers, the
// landing and data directories, knowledge store backend, chunker and audit
// tuning.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// Validate checks the settings are usable for ingestion and audits.
	Validate() error

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetLLMProvider configures the LLM provider. An empty provider clears it
	// and audits fall back to rule-only compliance.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// ValidateEmbeddingConfig probes the saved embedding provider.
	ValidateEmbeddingConfig() error

	// ValidateLLMConfig probes the saved LLM provider. Nil when none is set.
	ValidateLLMConfig() error
}
