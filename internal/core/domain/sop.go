package domain

import (
	"fmt"
	"strings"
)

// RuleKind selects how an SOP rule is evaluated.
type RuleKind string

const (
	// RuleKindRequiredDocument demands supporting evidence in the claim.
	RuleKindRequiredDocument RuleKind = "required_document"

	// RuleKindSubmissionWindow bounds the days between incident and submission.
	RuleKindSubmissionWindow RuleKind = "submission_window"

	// RuleKindSubmissionLimit bounds prior claims within a lookback period.
	RuleKindSubmissionLimit RuleKind = "submission_limit"
)

// IsValid returns true if the rule kind is recognised.
func (k RuleKind) IsValid() bool {
	switch k {
	case RuleKindRequiredDocument, RuleKindSubmissionWindow, RuleKindSubmissionLimit:
		return true
	default:
		return false
	}
}

// SOPRule is one Standard Operating Procedure check.
type SOPRule struct {
	ID          string
	Description string
	Kind        RuleKind

	// Hard rules force a denial when violated.
	Hard bool

	// Categories restricts the rule to policy lines. Empty means all.
	Categories []string

	// Triggers are claim-text phrases that make a required document apply.
	// Empty means the rule always applies.
	Triggers []string

	// Evidence are phrases that show the required document is present.
	Evidence []string

	// MissingMarkers are phrases in the claim or its history that flag the
	// required document as missing.
	MissingMarkers []string

	// MinAmount applies a required document only to claims above it.
	MinAmount float64

	// MaxDays is the submission window length.
	MaxDays int

	// MaxClaims and LookbackDays define the submission limit.
	MaxClaims    int
	LookbackDays int
}

// AppliesTo reports whether the rule covers category.
func (r SOPRule) AppliesTo(category string) bool {
	if len(r.Categories) == 0 {
		return true
	}
	for _, c := range r.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// Validate checks the fields the rule kind needs.
func (r SOPRule) Validate() error {
	if r.ID == "" {
		return NewValidationError("rule.id", "must not be empty")
	}
	if !r.Kind.IsValid() {
		return NewValidationError("rule."+r.ID+".kind", fmt.Sprintf("unknown kind %q", r.Kind))
	}
	switch r.Kind {
	case RuleKindRequiredDocument:
		if len(r.Evidence) == 0 {
			return NewValidationError("rule."+r.ID+".evidence", "required_document needs evidence phrases")
		}
	case RuleKindSubmissionWindow:
		if r.MaxDays <= 0 {
			return NewValidationError("rule."+r.ID+".max_days", "must be positive")
		}
	case RuleKindSubmissionLimit:
		if r.MaxClaims <= 0 || r.LookbackDays <= 0 {
			return NewValidationError("rule."+r.ID, "max_claims and lookback_days must be positive")
		}
	}
	return nil
}

// RuleSet is a versioned SOP rule table.
type RuleSet struct {
	Version string
	Rules   []SOPRule
}

// Validate checks every rule and rejects duplicate IDs.
func (rs RuleSet) Validate() error {
	if rs.Version == "" {
		return NewValidationError("version", "must not be empty")
	}
	seen := make(map[string]bool, len(rs.Rules))
	for _, r := range rs.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
		if seen[r.ID] {
			return NewValidationError("rule.id", "duplicate "+r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}

// Rule returns the rule with id.
func (rs RuleSet) Rule(id string) (SOPRule, bool) {
	for _, r := range rs.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return SOPRule{}, false
}

// DefaultRuleSet returns the built-in SOP table.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Version: "builtin-1",
		Rules: []SOPRule{
			{
				ID:             "police-report",
				Description:    "Accident claims must include a police report",
				Kind:           RuleKindRequiredDocument,
				Hard:           true,
				Categories:     []string{"Motor"},
				Triggers:       []string{"accident", "collision", "crash"},
				Evidence:       []string{"police report"},
				MissingMarkers: []string{"police report missing", "no police report", "without police report"},
			},
			{
				ID:             "vat-invoice",
				Description:    "Claims over 2000 AED must include a VAT invoice",
				Kind:           RuleKindRequiredDocument,
				Hard:           true,
				MinAmount:      2000,
				Evidence:       []string{"vat invoice", "tax invoice"},
				MissingMarkers: []string{"vat invoice missing", "no vat invoice"},
			},
			{
				ID:          "submission-window",
				Description: "Claims must be submitted within 30 days of the incident",
				Kind:        RuleKindSubmissionWindow,
				Hard:        true,
				MaxDays:     30,
			},
			{
				ID:           "submission-limit",
				Description:  "At most 3 claims per client within 365 days",
				Kind:         RuleKindSubmissionLimit,
				Hard:         true,
				MaxClaims:    3,
				LookbackDays: 365,
			},
		},
	}
}
