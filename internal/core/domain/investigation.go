package domain

import (
	"fmt"
	"strings"
	"time"
)

// Stage is a step of the audit workflow, or one of its terminal states.
type Stage string

const (
	StageInitialization       Stage = "initialization"
	StagePolicySelection      Stage = "policy_selection"
	StageHistoryInvestigation Stage = "history_investigation"
	StageComplianceEvaluation Stage = "compliance_evaluation"
	StageSynthesis            Stage = "synthesis"
	StageArchive              Stage = "archive"

	// StageTerminal marks an investigation archived after a full run.
	StageTerminal Stage = "terminal"

	// StageFailed marks an investigation that short-circuited on a stage error.
	StageFailed Stage = "failed"
)

// CanonicalStages returns the fixed stage order of every investigation.
func CanonicalStages() []Stage {
	return []Stage{
		StageInitialization,
		StagePolicySelection,
		StageHistoryInvestigation,
		StageComplianceEvaluation,
		StageSynthesis,
		StageArchive,
	}
}

// IsTerminal reports whether no further stage runs after s.
func (s Stage) IsTerminal() bool {
	return s == StageTerminal || s == StageFailed
}

// Decision is the outcome of an audit.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionDenied   Decision = "DENIED"
)

// Verdict is the terminal decision plus its justification.
type Verdict struct {
	Decision      Decision `json:"decision"`
	Justification string   `json:"justification"`
	RiskScore     int      `json:"risk_score"`

	// Failure is set when the verdict was forced by a stage error.
	Failure bool `json:"failure,omitempty"`
}

// RequirementStatus is the outcome of one compliance check.
type RequirementStatus string

const (
	RequirementSatisfied     RequirementStatus = "satisfied"
	RequirementViolated      RequirementStatus = "violated"
	RequirementNotApplicable RequirementStatus = "not_applicable"
)

// RequirementResult records a compliance check against one SOP rule.
type RequirementResult struct {
	RuleID      string            `json:"rule_id"`
	Description string            `json:"description"`
	Status      RequirementStatus `json:"status"`
	Hard        bool              `json:"hard"`

	// Source is "rule" for deterministic checks and "llm" for model judgment.
	Source   string `json:"source"`
	Evidence string `json:"evidence,omitempty"`
}

// IsHardViolation reports whether r alone forces a denial.
func (r RequirementResult) IsHardViolation() bool {
	return r.Hard && r.Status == RequirementViolated
}

// HistorySummary is the history investigator's view of prior claims.
type HistorySummary struct {
	PriorClaims int      `json:"prior_claims"`
	Flags       []string `json:"flags,omitempty"`
	Suspicious  bool     `json:"suspicious"`
	Pattern     string   `json:"pattern"`

	// PriorDates holds the submission date of each prior claim document.
	PriorDates []string `json:"prior_dates,omitempty"`
}

// Contradicts reports whether the history holds a signal against approval.
func (h *HistorySummary) Contradicts() bool {
	return h != nil && (h.Suspicious || len(h.Flags) > 0)
}

// Finding is the output one stage appends to an investigation.
type Finding struct {
	Stage        Stage               `json:"stage"`
	Summary      string              `json:"summary"`
	Clauses      []QueryHit          `json:"clauses,omitempty"`
	History      *HistorySummary     `json:"history,omitempty"`
	Requirements []RequirementResult `json:"requirements,omitempty"`
	Verdict      *Verdict            `json:"verdict,omitempty"`
	Error        string              `json:"error,omitempty"`
	RecordedAt   time.Time           `json:"recorded_at"`
}

// ClaimRequest is the input of one audit.
type ClaimRequest struct {
	ClientID       string  `json:"client_id"`
	ClaimRef       string  `json:"claim_ref"`
	SubmissionDate string  `json:"submission_date"`
	ClaimText      string  `json:"claim_text"`
	Category       string  `json:"category,omitempty"`
	Amount         float64 `json:"amount,omitempty"`
	IncidentDate   string  `json:"incident_date,omitempty"`
}

// Validate checks the fields every investigation needs.
func (c ClaimRequest) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return NewValidationError("client_id", "must not be empty")
	}
	if strings.TrimSpace(c.ClaimRef) == "" {
		return NewValidationError("claim_ref", "must not be empty")
	}
	if strings.TrimSpace(c.ClaimText) == "" {
		return NewValidationError("claim_text", "document is empty")
	}
	if _, err := time.Parse(SubmissionDateLayout, c.SubmissionDate); err != nil {
		return NewValidationError("submission_date", "expected YYYY-MM-DD")
	}
	if c.IncidentDate != "" {
		if _, err := time.Parse(SubmissionDateLayout, c.IncidentDate); err != nil {
			return NewValidationError("incident_date", "expected YYYY-MM-DD")
		}
	}
	if c.Amount < 0 {
		return NewValidationError("amount", "must not be negative")
	}
	return nil
}

// Investigation is one run of the audit workflow for a single claim.
// It is owned by one goroutine while active and immutable once sealed.
type Investigation struct {
	ID        string       `json:"investigation_id"`
	Claim     ClaimRequest `json:"claim"`
	StartedAt time.Time    `json:"started_at"`
	Status    Stage        `json:"status"`
	Findings  []Finding    `json:"findings"`
	Verdict   *Verdict     `json:"verdict,omitempty"`
	Failure   string       `json:"failure,omitempty"`

	sealed bool
}

// NewInvestigation creates an investigation at the Initialization stage.
func NewInvestigation(id string, claim ClaimRequest, startedAt time.Time) *Investigation {
	return &Investigation{
		ID:        id,
		Claim:     claim,
		StartedAt: startedAt,
		Status:    StageInitialization,
	}
}

// Advance moves the investigation to stage.
func (inv *Investigation) Advance(stage Stage) error {
	if inv.sealed {
		return ErrInvestigationSealed
	}
	inv.Status = stage
	return nil
}

// AppendFinding adds a stage output. Earlier findings are never rewritten.
func (inv *Investigation) AppendFinding(f Finding) error {
	if inv.sealed {
		return ErrInvestigationSealed
	}
	inv.Findings = append(inv.Findings, f)
	return nil
}

// SetVerdict records the decision.
func (inv *Investigation) SetVerdict(v Verdict) error {
	if inv.sealed {
		return ErrInvestigationSealed
	}
	inv.Verdict = &v
	return nil
}

// Fail moves the investigation to StageFailed with a failure verdict.
func (inv *Investigation) Fail(stage Stage, cause error, at time.Time) error {
	if inv.sealed {
		return ErrInvestigationSealed
	}
	inv.Failure = fmt.Sprintf("%s: %v", stage, cause)
	inv.Status = StageFailed
	verdict := Verdict{
		Decision:      DecisionDenied,
		Justification: "investigation failed during " + string(stage) + ": " + cause.Error(),
		Failure:       true,
	}
	inv.Verdict = &verdict
	inv.Findings = append(inv.Findings, Finding{
		Stage:      StageFailed,
		Summary:    "investigation aborted at " + string(stage),
		Verdict:    &verdict,
		Error:      cause.Error(),
		RecordedAt: at,
	})
	return nil
}

// Seal makes the investigation immutable.
func (inv *Investigation) Seal() {
	inv.sealed = true
}

// Sealed reports whether Archive has completed.
func (inv *Investigation) Sealed() bool {
	return inv.sealed
}

// StageLabels returns the stage of each finding in order.
func (inv *Investigation) StageLabels() []Stage {
	labels := make([]Stage, 0, len(inv.Findings))
	for _, f := range inv.Findings {
		labels = append(labels, f.Stage)
	}
	return labels
}

// Clauses returns the clauses found by Policy Selection.
func (inv *Investigation) Clauses() []QueryHit {
	if f := inv.finding(StagePolicySelection); f != nil {
		return f.Clauses
	}
	return nil
}

// History returns the History Investigation summary, if any.
func (inv *Investigation) History() *HistorySummary {
	if f := inv.finding(StageHistoryInvestigation); f != nil {
		return f.History
	}
	return nil
}

// Requirements returns the Compliance Evaluation results.
func (inv *Investigation) Requirements() []RequirementResult {
	if f := inv.finding(StageComplianceEvaluation); f != nil {
		return f.Requirements
	}
	return nil
}

func (inv *Investigation) finding(stage Stage) *Finding {
	for i := range inv.Findings {
		if inv.Findings[i].Stage == stage {
			return &inv.Findings[i]
		}
	}
	return nil
}

// Snapshot returns a copy that shares no mutable state with inv.
func (inv *Investigation) Snapshot() Investigation {
	cp := *inv
	cp.Findings = make([]Finding, len(inv.Findings))
	copy(cp.Findings, inv.Findings)
	if inv.Verdict != nil {
		v := *inv.Verdict
		cp.Verdict = &v
	}
	return cp
}

// Progress is the observable state of an investigation.
type Progress struct {
	InvestigationID string    `json:"investigation_id"`
	Stage           Stage     `json:"stage"`
	Findings        []Finding `json:"findings"`
	Verdict         *Verdict  `json:"verdict,omitempty"`
	Archived        bool      `json:"archived"`
}

// InvestigationResult is returned to the caller of an evaluation.
type InvestigationResult struct {
	InvestigationID string  `json:"investigation_id"`
	Status          Stage   `json:"status"`
	Verdict         Verdict `json:"verdict"`
}
