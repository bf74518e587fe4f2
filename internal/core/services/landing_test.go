package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/normalisers"
	"github.com/custodia-labs/claimaudit/internal/normalisers/plaintext"
)

func newLandingFixture(t *testing.T) (*LandingService, string) {
	t.Helper()
	root := t.TempDir()
	now := func() time.Time { return time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC) }
	return NewLandingService(root, normalisers.NewRegistry(plaintext.New()), now), root
}

func TestLandingService_UploadPolicy(t *testing.T) {
	s, root := newLandingFixture(t)

	path, err := s.UploadPolicy(context.Background(), "motor", "cover.txt", strings.NewReader("Collision cover"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "policies", "Motor", "2024-06-01_0930", "cover.txt"), path)

	info, err := domain.ParseLandingPath(root, path)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentKindPolicy, info.Kind)
	assert.Equal(t, "Motor", info.Category)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Collision cover", string(data))
}

func TestLandingService_UploadClaim(t *testing.T) {
	s, root := newLandingFixture(t)

	path, err := s.UploadClaim(context.Background(), " C-42 ", "motor", "claim.txt", strings.NewReader("Rear-ended"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "claims", "C-42", "2024-06-01_motor", "claim.txt"), path)

	info, err := domain.ParseLandingPath(root, path)
	require.NoError(t, err)
	assert.Equal(t, "C-42", info.ClientID)
	assert.Equal(t, "2024-06-01", info.SubmissionDate)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLandingService_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		client   string
		filename string
		body     string
		want     error
	}{
		{"traversal in filename", "C1", "../../etc.txt", "x", domain.ErrInvalidInput},
		{"traversal in client", "../C1", "claim.txt", "x", domain.ErrInvalidInput},
		{"hidden file", "C1", ".claim.txt", "x", domain.ErrInvalidInput},
		{"empty filename", "C1", "  ", "x", domain.ErrInvalidInput},
		{"unsupported type", "C1", "claim.exe", "x", domain.ErrUnsupportedType},
		{"lock suffix", "C1", "claim.txt.ingesting", "x", domain.ErrUnsupportedType},
		{"empty body", "C1", "claim.txt", "", domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newLandingFixture(t)
			_, err := s.UploadClaim(context.Background(), tt.client, "motor", tt.filename, strings.NewReader(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestLandingService_RefusesOverwrite(t *testing.T) {
	s, _ := newLandingFixture(t)
	ctx := context.Background()

	path, err := s.UploadClaim(ctx, "C1", "motor", "claim.txt", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = s.UploadClaim(ctx, "C1", "motor", "claim.txt", strings.NewReader("second"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}
