package postprocessors

import (
	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
	"github.com/custodia-labs/claimaudit/internal/postprocessors/chunker"
)

// RegisterDefaults registers all built-in chunkers with the registry.
func RegisterDefaults(r *Registry) {
	r.Register("semantic", buildSemantic)
}

// buildSemantic creates the semantic chunker. Zero settings keep the
// chunker's own defaults.
func buildSemantic(cfg domain.ChunkerSettings) (driven.Chunker, error) {
	return chunker.New(
		chunker.WithWindow(cfg.WindowSentences),
		chunker.WithMaxTokens(cfg.MaxTokens),
		chunker.WithSensitivity(cfg.Sensitivity),
	), nil
}
