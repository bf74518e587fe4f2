package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// URIScheme is the custom URI scheme for claimaudit resources.
	uriScheme = "claimaudit://"

	recentAuditLimit = 50
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for the most recent audit entries.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "audit",
		Name:        "audit-trail",
		Description: "Most recent archived investigations",
		MIMEType:    "application/json",
	}, s.handleAuditTrailResource)

	// Template for one client's audit history.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "clients/{clientId}/audit",
		Name:        "client-audit",
		Description: "Archived investigations for one client",
		MIMEType:    "application/json",
	}, s.handleClientAuditResource)

	// Static resource for the ingestion pipeline.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "ingestion",
		Name:        "ingestion-status",
		Description: "Landing files in flight and lifetime ingestion counters",
		MIMEType:    "application/json",
	}, s.handleIngestionResource)
}

// auditSummary is the list view of an audit entry.
type auditSummary struct {
	InvestigationID string `json:"investigation_id"`
	ClientID        string `json:"client_id"`
	ClaimRef        string `json:"claim_ref"`
	Decision        string `json:"decision"`
	RiskScore       int    `json:"risk_score"`
	Failure         bool   `json:"failure,omitempty"`
	RecordedAt      string `json:"recorded_at"`
}

// handleAuditTrailResource returns the latest audit entries.
func (s *Server) handleAuditTrailResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	return s.auditList(ctx, req.Params.URI, "")
}

// handleClientAuditResource returns audit entries for one client.
func (s *Server) handleClientAuditResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract clientId from URI: claimaudit://clients/{clientId}/audit
	clientID := extractClientID(req.Params.URI)
	if clientID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	return s.auditList(ctx, req.Params.URI, clientID)
}

func (s *Server) auditList(ctx context.Context, uri, clientID string) (*mcp.ReadResourceResult, error) {
	entries, err := s.ports.Audit.History(ctx, clientID, recentAuditLimit)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}

	infos := make([]auditSummary, len(entries))
	for i := range entries {
		infos[i] = auditSummary{
			InvestigationID: entries[i].InvestigationID,
			ClientID:        entries[i].ClientID,
			ClaimRef:        entries[i].ClaimRef,
			Decision:        string(entries[i].Verdict.Decision),
			RiskScore:       entries[i].Verdict.RiskScore,
			Failure:         entries[i].Verdict.Failure,
			RecordedAt:      entries[i].RecordedAt.Format(time.RFC3339),
		}
	}
	return jsonResult(uri, infos)
}

// handleIngestionResource returns the ingestion status.
func (s *Server) handleIngestionResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Ingestion == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	return jsonResult(req.Params.URI, s.ports.Ingestion.Status())
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractClientID extracts the client ID from a URI like claimaudit://clients/{clientId}/audit.
func extractClientID(uri string) string {
	const prefix = uriScheme + "clients/"
	const suffix = "/audit"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}
