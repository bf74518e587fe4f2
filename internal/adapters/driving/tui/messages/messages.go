// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driving"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewAudit lists archived investigations.
	ViewAudit
	// ViewAuditDetail shows one audit entry and its trace.
	ViewAuditDetail
	// ViewIngestion shows the landing-area watcher.
	ViewIngestion
	// ViewAsk is the policy question view.
	ViewAsk
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewAudit:
		return "audit"
	case ViewAuditDetail:
		return "audit_detail"
	case ViewIngestion:
		return "ingestion"
	case ViewAsk:
		return "ask"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// AuditLoaded carries audit entries back to the model.
type AuditLoaded struct {
	Entries []domain.AuditEntry
	Err     error
}

// AuditSelected is sent when an entry is chosen from the list.
type AuditSelected struct {
	Entry domain.AuditEntry
}

// TrailVerified carries the result of a digest chain check.
type TrailVerified struct {
	Count int
	Err   error
}

// IngestionLoaded carries a watcher snapshot.
type IngestionLoaded struct {
	Status domain.IngestionStatus
}

// AnswerReceived carries a policy advisor answer.
type AnswerReceived struct {
	Question string
	Answer   *driving.PolicyAnswer
	Err      error
}

// ErrorOccurred is sent when an operation fails.
type ErrorOccurred struct {
	Err error
}
