package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

func TestWatchCmd_Once(t *testing.T) {
	watchOnce, watchJSON = false, false
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.status.Active = []domain.FileTaskSummary{
		{Path: "claims/C-1/initial/form.txt", State: domain.FileLockRetry},
	}

	out, err := execute("watch", "--once")

	require.NoError(t, err)
	assert.Equal(t, 1, ts.ingestion.ticks)
	assert.Contains(t, out, "Archived: 4  Failed: 1  Skipped: 0")
	assert.Contains(t, out, "claims/C-1/initial/form.txt")
}

func TestWatchCmd_OnceJSON(t *testing.T) {
	watchOnce, watchJSON = false, false
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("watch", "--once", "--json")

	require.NoError(t, err)
	assert.Contains(t, out, `"archived": 4`)
}

func TestWatchCmd_StopsOnCancel(t *testing.T) {
	watchOnce, watchJSON = false, false
	_, cleanup := setupTestServices()
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	watchCmd.SetContext(ctx)
	defer watchCmd.SetContext(context.Background())

	assert.NoError(t, runWatch(watchCmd, nil))
}

func TestWatchCmd_NotConfigured(t *testing.T) {
	watchOnce, watchJSON = false, false
	SetServices(Services{})

	_, err := execute("watch", "--once")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingestion service not configured")
}
