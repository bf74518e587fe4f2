package ai

import (
	"fmt"
	"time"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator checks provider settings before they are saved: static
// checks first, then a ping bounded by timeout.
type ConfigValidator struct {
	timeout time.Duration
}

// NewConfigValidator creates a validator using the default ping timeout.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{timeout: pingTimeout}
}

// WithTimeout returns a copy that bounds each ping by d.
func (v *ConfigValidator) WithTimeout(d time.Duration) *ConfigValidator {
	return &ConfigValidator{timeout: d}
}

// ValidateEmbedding implements driven.AIConfigValidator. Unset settings pass.
// OpenAI models must have known dimensions because the knowledge store
// sizes its vectors from them; Ollama models are probed at first use.
func (v *ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	if config == nil || !config.IsConfigured() {
		return nil
	}
	if config.Provider == domain.AIProviderAnthropic {
		return fmt.Errorf("%w: anthropic has no embedding API", domain.ErrInvalidInput)
	}
	if config.Provider == domain.AIProviderOpenAI {
		if _, ok := domain.EmbeddingDimensions()[config.Model]; !ok {
			return fmt.Errorf("%w: unknown dimensions for embedding model %q", domain.ErrInvalidInput, config.Model)
		}
	}
	ctx, cancel := newPingContext(v.timeout)
	defer cancel()
	return ValidateEmbeddingConfig(ctx, config)
}

// ValidateLLM implements driven.AIConfigValidator. Unset settings pass,
// since compliance falls back to deterministic rules without an LLM.
func (v *ConfigValidator) ValidateLLM(config *domain.LLMSettings) error {
	if config == nil || !config.IsConfigured() {
		return nil
	}
	ctx, cancel := newPingContext(v.timeout)
	defer cancel()
	return ValidateLLMConfig(ctx, config)
}
