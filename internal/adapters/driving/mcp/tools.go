package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

// EvaluateClaimInput is the input schema for the evaluate_claim tool.
type EvaluateClaimInput struct {
	ClientID       string  `json:"client_id" jsonschema:"the client the claim belongs to"`
	ClaimRef       string  `json:"claim_ref" jsonschema:"the claim reference number"`
	SubmissionDate string  `json:"submission_date" jsonschema:"submission date as YYYY-MM-DD"`
	ClaimText      string  `json:"claim_text" jsonschema:"the claim narrative"`
	Category       string  `json:"category,omitempty" jsonschema:"policy line such as Motor, Life or Medical"`
	Amount         float64 `json:"amount,omitempty" jsonschema:"claimed amount"`
	IncidentDate   string  `json:"incident_date,omitempty" jsonschema:"incident date as YYYY-MM-DD"`
}

// EvaluateClaimOutput is the output schema for the evaluate_claim tool.
type EvaluateClaimOutput struct {
	InvestigationID string `json:"investigation_id"`
	Verdict         string `json:"verdict"`
	Justification   string `json:"justification"`
	RiskScore       int    `json:"risk_score"`
	Status          string `json:"status"`
	Error           string `json:"error,omitempty"`
}

// InvestigationInput identifies one investigation.
type InvestigationInput struct {
	InvestigationID string `json:"investigation_id" jsonschema:"the investigation id returned by evaluate_claim"`
}

// AskPolicyInput is the input schema for the ask_policy tool.
type AskPolicyInput struct {
	Question string `json:"question" jsonschema:"a question about policy coverage"`
	Category string `json:"category,omitempty" jsonschema:"restrict retrieval to one policy line"`
}

// AskPolicyOutput is the output schema for the ask_policy tool.
type AskPolicyOutput struct {
	Answer  string         `json:"answer"`
	Clauses []ClauseOutput `json:"clauses"`
}

// ClauseOutput is one retrieved policy clause.
type ClauseOutput struct {
	Category string  `json:"category"`
	Source   string  `json:"source_document_id"`
	Score    float64 `json:"score"`
	Content  string  `json:"content"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "evaluate_claim",
		Description: "Audit an insurance claim against policy clauses, claim history and SOP rules",
	}, s.handleEvaluateClaim)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_audit_entry",
		Description: "Read the archived audit record of an investigation",
	}, s.handleGetAuditEntry)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "investigation_progress",
		Description: "Report the current stage and findings of an investigation",
	}, s.handleProgress)

	if s.ports.Advisor != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask_policy",
			Description: "Answer a question from the master policy documents only",
		}, s.handleAskPolicy)
	}
}

// handleEvaluateClaim runs one investigation. A failed stage still yields
// the archived failure verdict, reported alongside the error text.
func (s *Server) handleEvaluateClaim(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input EvaluateClaimInput,
) (*mcp.CallToolResult, EvaluateClaimOutput, error) {
	claim := domain.ClaimRequest{
		ClientID:       input.ClientID,
		ClaimRef:       input.ClaimRef,
		SubmissionDate: input.SubmissionDate,
		ClaimText:      input.ClaimText,
		Category:       input.Category,
		Amount:         input.Amount,
		IncidentDate:   input.IncidentDate,
	}

	result, err := s.ports.Audit.Evaluate(ctx, claim)
	if result == nil {
		if err == nil {
			err = errors.New("evaluation returned no result")
		}
		return nil, EvaluateClaimOutput{}, err
	}

	output := EvaluateClaimOutput{
		InvestigationID: result.InvestigationID,
		Verdict:         string(result.Verdict.Decision),
		Justification:   result.Verdict.Justification,
		RiskScore:       result.Verdict.RiskScore,
		Status:          string(result.Status),
	}
	if err != nil {
		output.Error = err.Error()
	}
	return nil, output, nil
}

// handleGetAuditEntry returns the archived record.
func (s *Server) handleGetAuditEntry(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input InvestigationInput,
) (*mcp.CallToolResult, domain.AuditEntry, error) {
	entry, err := s.ports.Audit.AuditEntry(ctx, input.InvestigationID)
	if err != nil {
		return nil, domain.AuditEntry{}, fmt.Errorf("getting audit entry: %w", err)
	}
	return nil, *entry, nil
}

// handleProgress returns the latest progress snapshot.
func (s *Server) handleProgress(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input InvestigationInput,
) (*mcp.CallToolResult, domain.Progress, error) {
	progress, err := s.ports.Audit.Progress(ctx, input.InvestigationID)
	if err != nil {
		return nil, domain.Progress{}, fmt.Errorf("getting progress: %w", err)
	}
	return nil, *progress, nil
}

// handleAskPolicy answers from the policy collection.
func (s *Server) handleAskPolicy(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskPolicyInput,
) (*mcp.CallToolResult, AskPolicyOutput, error) {
	answer, err := s.ports.Advisor.Ask(ctx, input.Question, input.Category)
	if err != nil {
		return nil, AskPolicyOutput{}, err
	}

	output := AskPolicyOutput{
		Answer:  answer.Answer,
		Clauses: make([]ClauseOutput, len(answer.Clauses)),
	}
	for i, h := range answer.Clauses {
		output.Clauses[i] = ClauseOutput{
			Category: h.Metadata.Category,
			Source:   h.Metadata.SourceDocumentID,
			Score:    h.Score,
			Content:  h.Content,
		}
	}
	return nil, output, nil
}
