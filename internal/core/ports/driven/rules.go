package driven

import (
	"context"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

// RuleSource supplies the SOP rule table consumed by compliance evaluation.
type RuleSource interface {
	// Load returns the current versioned rule set.
	Load(ctx context.Context) (domain.RuleSet, error)
}
