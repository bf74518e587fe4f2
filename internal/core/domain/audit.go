package domain

import "time"

// AuditEntry is the immutable record of one investigation.
// Once appended it is never updated or deleted.
type AuditEntry struct {
	InvestigationID string    `json:"investigation_id"`
	ClientID        string    `json:"client_id"`
	ClaimRef        string    `json:"claim_ref"`
	Status          Stage     `json:"status"`
	Verdict         Verdict   `json:"verdict"`
	Trace           []Finding `json:"trace"`
	RuleSetVersion  string    `json:"rule_set_version,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	RecordedAt      time.Time `json:"recorded_at"`

	// Digest chains this entry to PrevDigest. Set by the audit store.
	Digest     string `json:"digest,omitempty"`
	PrevDigest string `json:"prev_digest,omitempty"`
}

// NewAuditEntry captures the final state of inv.
func NewAuditEntry(inv *Investigation, ruleSetVersion string, at time.Time) AuditEntry {
	snap := inv.Snapshot()
	entry := AuditEntry{
		InvestigationID: snap.ID,
		ClientID:        snap.Claim.ClientID,
		ClaimRef:        snap.Claim.ClaimRef,
		Status:          snap.Status,
		Trace:           snap.Findings,
		RuleSetVersion:  ruleSetVersion,
		StartedAt:       snap.StartedAt,
		RecordedAt:      at,
	}
	if snap.Verdict != nil {
		entry.Verdict = *snap.Verdict
	}
	return entry
}
