// Package tui provides an interactive terminal console for the audit trail.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/claimaudit/internal/core/ports/driving"
)

// Ports aggregates the driving ports the console reads from.
type Ports struct {
	// Audit lists and verifies archived investigations.
	Audit driving.AuditService

	// Ingestion reports the landing-area watcher. Optional.
	Ingestion driving.IngestionService

	// Advisor answers policy questions. Optional.
	Advisor driving.PolicyAdvisor
}

// Validate ensures the required ports are set.
func (p *Ports) Validate() error {
	if p.Audit == nil {
		return ErrMissingAuditService
	}
	return nil
}
