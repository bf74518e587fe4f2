package plaintext

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSupportedExtensions(t *testing.T) {
	exts := New().SupportedExtensions()
	assert.Contains(t, exts, ".txt")
	assert.Contains(t, exts, ".csv")
}

func TestNormalise_Success(t *testing.T) {
	path := writeFile(t, "claim.txt", "Claim CLM-1 for Acme.\r\nVehicle damaged.")

	text, err := New().Normalise(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Claim CLM-1 for Acme.\nVehicle damaged.", text)
}

func TestNormalise_Empty(t *testing.T) {
	path := writeFile(t, "empty.txt", "")

	text, err := New().Normalise(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestNormalise_Missing(t *testing.T) {
	_, err := New().Normalise(context.Background(), filepath.Join(t.TempDir(), "gone.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
