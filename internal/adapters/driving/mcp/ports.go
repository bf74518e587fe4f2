package mcp

import (
	"github.com/custodia-labs/claimaudit/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Audit runs investigations and reads the audit trail.
	Audit driving.AuditService

	// Advisor answers policy questions. Optional.
	Advisor driving.PolicyAdvisor

	// Ingestion reports landing-area status. Optional.
	Ingestion driving.IngestionService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Audit == nil {
		return ErrMissingAuditService
	}
	return nil
}
