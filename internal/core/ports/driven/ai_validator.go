package driven

import "github.com/custodia-labs/claimaudit/internal/core/domain"

// AIConfigValidator checks provider settings before the settings service
// persists them. Unset settings are valid: the embedding provider falls back
// to defaults and the LLM is optional.
type AIConfigValidator interface {
	// ValidateEmbedding rejects providers that cannot embed and pings the rest.
	ValidateEmbedding(config *domain.EmbeddingSettings) error

	// ValidateLLM pings the configured LLM provider.
	ValidateLLM(config *domain.LLMSettings) error
}
