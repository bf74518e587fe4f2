package httpapi

import (
	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

// EvaluateRequest is the body of POST /ask/evaluate-claim.
type EvaluateRequest struct {
	ClientID       string  `json:"client_id" binding:"required"`
	SubmissionDate string  `json:"submission_date" binding:"required"`
	ClaimRef       string  `json:"claim_ref" binding:"required"`
	ClaimText      string  `json:"claim_text" binding:"required"`
	Category       string  `json:"category,omitempty"`
	Amount         float64 `json:"amount,omitempty" binding:"gte=0"`
	IncidentDate   string  `json:"incident_date,omitempty"`
}

func (r EvaluateRequest) claim() domain.ClaimRequest {
	return domain.ClaimRequest{
		ClientID:       r.ClientID,
		ClaimRef:       r.ClaimRef,
		SubmissionDate: r.SubmissionDate,
		ClaimText:      r.ClaimText,
		Category:       r.Category,
		Amount:         r.Amount,
		IncidentDate:   r.IncidentDate,
	}
}

// EvaluateResponse is the verdict of one investigation.
type EvaluateResponse struct {
	InvestigationID string       `json:"investigation_id"`
	Status          domain.Stage `json:"status"`
	Verdict         string       `json:"verdict"`
	Justification   string       `json:"justification"`
	RiskScore       int          `json:"risk_score"`
	Error           string       `json:"error,omitempty"`
}

// AskRequest is the body of POST /ask/policy.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
	Category string `json:"category,omitempty"`
}

// UploadResponse reports where an upload landed.
type UploadResponse struct {
	Path string `json:"path"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
