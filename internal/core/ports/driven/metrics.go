package driven

import (
	"time"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

// Metrics records operational counters.
type Metrics interface {
	// FileTransition counts a landing file entering state.
	FileTransition(state domain.FileState)

	// ChunksIndexed counts chunks written to collection.
	ChunksIndexed(collection domain.Collection, n int)

	// StageCompleted observes how long a workflow stage took.
	StageCompleted(stage domain.Stage, d time.Duration, err error)

	// VerdictRecorded counts archived verdicts.
	VerdictRecorded(v domain.Verdict)
}
