// Package sop loads the versioned SOP rule table from a YAML file.
//
// Example:
//
//	version: "2024-06"
//	rules:
//	  - id: police-report
//	    kind: required_document
//	    hard: true
//	    categories: [Motor]
//	    triggers: [accident, collision]
//	    evidence: [police report]
//	    missing_markers: [police report missing]
package sop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
	"github.com/custodia-labs/claimaudit/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.RuleSource = (*Source)(nil)

type ruleSetFile struct {
	Version string     `yaml:"version"`
	Rules   []ruleFile `yaml:"rules"`
}

type ruleFile struct {
	ID             string   `yaml:"id"`
	Description    string   `yaml:"description,omitempty"`
	Kind           string   `yaml:"kind"`
	Hard           *bool    `yaml:"hard"`
	Categories     []string `yaml:"categories,omitempty"`
	Triggers       []string `yaml:"triggers,omitempty"`
	Evidence       []string `yaml:"evidence,omitempty"`
	MissingMarkers []string `yaml:"missing_markers,omitempty"`
	MinAmount      float64  `yaml:"min_amount,omitempty"`
	MaxDays        int      `yaml:"max_days,omitempty"`
	MaxClaims      int      `yaml:"max_claims,omitempty"`
	LookbackDays   int      `yaml:"lookback_days,omitempty"`
}

// Source reads rules from a YAML file on every Load so edits apply to the
// next investigation without a restart.
type Source struct {
	path string
}

// NewSource creates a rule source for path. An empty path always yields
// domain.DefaultRuleSet.
func NewSource(path string) *Source {
	return &Source{path: path}
}

// Load reads and validates the rule table. A missing file falls back to the
// built-in table. A present but invalid file is an error.
func (s *Source) Load(_ context.Context) (domain.RuleSet, error) {
	if s.path == "" {
		return domain.DefaultRuleSet(), nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("SOP file %s not found, using built-in rules", s.path)
		return domain.DefaultRuleSet(), nil
	}
	if err != nil {
		return domain.RuleSet{}, fmt.Errorf("read SOP file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML rule table. Unknown fields are rejected.
func Parse(data []byte) (domain.RuleSet, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file ruleSetFile
	if err := dec.Decode(&file); err != nil {
		return domain.RuleSet{}, fmt.Errorf("parse SOP file: %w", err)
	}

	rs := domain.RuleSet{Version: file.Version, Rules: make([]domain.SOPRule, 0, len(file.Rules))}
	for _, r := range file.Rules {
		hard := true
		if r.Hard != nil {
			hard = *r.Hard
		}
		rs.Rules = append(rs.Rules, domain.SOPRule{
			ID:             r.ID,
			Description:    r.Description,
			Kind:           domain.RuleKind(r.Kind),
			Hard:           hard,
			Categories:     r.Categories,
			Triggers:       r.Triggers,
			Evidence:       r.Evidence,
			MissingMarkers: r.MissingMarkers,
			MinAmount:      r.MinAmount,
			MaxDays:        r.MaxDays,
			MaxClaims:      r.MaxClaims,
			LookbackDays:   r.LookbackDays,
		})
	}
	if err := rs.Validate(); err != nil {
		return domain.RuleSet{}, fmt.Errorf("validate SOP file: %w", err)
	}
	return rs, nil
}

// Marshal encodes a rule set in the file format Load reads.
func Marshal(rs domain.RuleSet) ([]byte, error) {
	file := ruleSetFile{Version: rs.Version}
	for _, r := range rs.Rules {
		hard := r.Hard
		file.Rules = append(file.Rules, ruleFile{
			ID:             r.ID,
			Description:    r.Description,
			Kind:           string(r.Kind),
			Hard:           &hard,
			Categories:     r.Categories,
			Triggers:       r.Triggers,
			Evidence:       r.Evidence,
			MissingMarkers: r.MissingMarkers,
			MinAmount:      r.MinAmount,
			MaxDays:        r.MaxDays,
			MaxClaims:      r.MaxClaims,
			LookbackDays:   r.LookbackDays,
		})
	}
	return yaml.Marshal(file)
}
