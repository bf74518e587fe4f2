package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validClaim() ClaimRequest {
	return ClaimRequest{
		ClientID:       "C-1",
		ClaimRef:       "claim-1",
		SubmissionDate: "2024-06-01",
		ClaimText:      "Rear-ended at a junction.",
	}
}

func TestClaimRequest_Validate(t *testing.T) {
	require.NoError(t, validClaim().Validate())

	tests := []struct {
		name   string
		mutate func(*ClaimRequest)
		field  string
	}{
		{"missing client", func(c *ClaimRequest) { c.ClientID = "  " }, "client_id"},
		{"missing ref", func(c *ClaimRequest) { c.ClaimRef = "" }, "claim_ref"},
		{"empty document", func(c *ClaimRequest) { c.ClaimText = "" }, "claim_text"},
		{"bad date", func(c *ClaimRequest) { c.SubmissionDate = "01/06/2024" }, "submission_date"},
		{"bad incident date", func(c *ClaimRequest) { c.IncidentDate = "yesterday" }, "incident_date"},
		{"negative amount", func(c *ClaimRequest) { c.Amount = -1 }, "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claim := validClaim()
			tt.mutate(&claim)
			err := claim.Validate()
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestInvestigation_Lifecycle(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	inv := NewInvestigation("inv-1", validClaim(), now)
	assert.Equal(t, StageInitialization, inv.Status)

	require.NoError(t, inv.AppendFinding(Finding{Stage: StageInitialization}))
	require.NoError(t, inv.Advance(StagePolicySelection))
	require.NoError(t, inv.AppendFinding(Finding{
		Stage:   StagePolicySelection,
		Clauses: []QueryHit{{ChunkID: "c1"}},
	}))
	require.NoError(t, inv.SetVerdict(Verdict{Decision: DecisionApproved}))

	assert.Equal(t, []Stage{StageInitialization, StagePolicySelection}, inv.StageLabels())
	assert.Len(t, inv.Clauses(), 1)
	assert.Nil(t, inv.History())

	inv.Seal()
	assert.True(t, inv.Sealed())
	assert.ErrorIs(t, inv.AppendFinding(Finding{Stage: StageSynthesis}), ErrInvestigationSealed)
	assert.ErrorIs(t, inv.Advance(StageTerminal), ErrInvestigationSealed)
	assert.ErrorIs(t, inv.SetVerdict(Verdict{}), ErrInvestigationSealed)
}

func TestInvestigation_Fail(t *testing.T) {
	inv := NewInvestigation("inv-2", validClaim(), time.Now())
	require.NoError(t, inv.Fail(StageHistoryInvestigation, ErrStoreUnavailable, time.Now()))

	assert.Equal(t, StageFailed, inv.Status)
	require.NotNil(t, inv.Verdict)
	assert.Equal(t, DecisionDenied, inv.Verdict.Decision)
	assert.True(t, inv.Verdict.Failure)
	assert.Equal(t, []Stage{StageFailed}, inv.StageLabels())
	assert.Contains(t, inv.Failure, "history_investigation")
}

func TestInvestigation_SnapshotIsolated(t *testing.T) {
	inv := NewInvestigation("inv-3", validClaim(), time.Now())
	require.NoError(t, inv.AppendFinding(Finding{Stage: StageInitialization}))
	require.NoError(t, inv.SetVerdict(Verdict{Decision: DecisionApproved}))

	snap := inv.Snapshot()
	require.NoError(t, inv.AppendFinding(Finding{Stage: StagePolicySelection}))
	inv.Verdict.Decision = DecisionDenied

	assert.Len(t, snap.Findings, 1)
	assert.Equal(t, DecisionApproved, snap.Verdict.Decision)
}

func TestHistorySummary_Contradicts(t *testing.T) {
	var nilSummary *HistorySummary
	assert.False(t, nilSummary.Contradicts())
	assert.False(t, (&HistorySummary{PriorClaims: 2}).Contradicts())
	assert.True(t, (&HistorySummary{Suspicious: true}).Contradicts())
	assert.True(t, (&HistorySummary{Flags: []string{"police report missing"}}).Contradicts())
}

func TestNewAuditEntry(t *testing.T) {
	inv := NewInvestigation("inv-4", validClaim(), time.Now())
	require.NoError(t, inv.AppendFinding(Finding{Stage: StageInitialization}))
	require.NoError(t, inv.SetVerdict(Verdict{Decision: DecisionDenied, Justification: "x"}))

	entry := NewAuditEntry(inv, "builtin-1", time.Now())
	assert.Equal(t, "inv-4", entry.InvestigationID)
	assert.Equal(t, "C-1", entry.ClientID)
	assert.Equal(t, DecisionDenied, entry.Verdict.Decision)
	assert.Len(t, entry.Trace, 1)
	assert.Equal(t, "builtin-1", entry.RuleSetVersion)
}

func TestCanonicalStages(t *testing.T) {
	stages := CanonicalStages()
	require.Len(t, stages, 6)
	assert.Equal(t, StageInitialization, stages[0])
	assert.Equal(t, StageArchive, stages[5])
	assert.True(t, StageFailed.IsTerminal())
	assert.False(t, StageSynthesis.IsTerminal())
}
