package domain

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLandingPath(t *testing.T) {
	root := filepath.Join("/", "landing")

	tests := []struct {
		name string
		path string
		want LandingInfo
	}{
		{
			name: "policy",
			path: filepath.Join(root, "policies", "motor", "2026-03-01_0930", "wording.pdf"),
			want: LandingInfo{
				Kind:     DocumentKindPolicy,
				Category: "Motor",
				Rel:      "policies/motor/2026-03-01_0930/wording.pdf",
			},
		},
		{
			name: "claim",
			path: filepath.Join(root, "claims", "C-77", "2026-03-02_accident", "report.pdf"),
			want: LandingInfo{
				Kind:           DocumentKindClaim,
				ClientID:       "C-77",
				SubmissionDate: "2026-03-02",
				SubmissionType: "accident",
				Rel:            "claims/C-77/2026-03-02_accident/report.pdf",
			},
		},
		{
			name: "locked claim",
			path: filepath.Join(root, "claims", "C-77", "2026-03-02_theft", "report.pdf.ingesting"),
			want: LandingInfo{
				Kind:           DocumentKindClaim,
				ClientID:       "C-77",
				SubmissionDate: "2026-03-02",
				SubmissionType: "theft",
				Rel:            "claims/C-77/2026-03-02_theft/report.pdf",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLandingPath(root, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLandingPath_Rejects(t *testing.T) {
	root := filepath.Join("/", "landing")
	paths := []string{
		filepath.Join(root, "loose.pdf"),
		filepath.Join(root, "claims", "C-1", "not-a-date_x", "a.pdf"),
		filepath.Join(root, "other", "a", "b", "c.pdf"),
		filepath.Join("/", "elsewhere", "claims", "C-1", "2026-01-01_x", "a.pdf"),
	}
	for _, p := range paths {
		_, err := ParseLandingPath(root, p)
		assert.True(t, errors.Is(err, ErrInvalidInput), p)
	}
}

func TestIsIgnoredLandingPath(t *testing.T) {
	root := filepath.Join("/", "landing")
	assert.False(t, IsIgnoredLandingPath(root, filepath.Join(root, "claims", "C", "2026-01-01_x", "a.pdf")))
	assert.True(t, IsIgnoredLandingPath(root, filepath.Join(root, "processed", "claims", "a.pdf")))
	assert.True(t, IsIgnoredLandingPath(root, filepath.Join(root, "failed", "a.pdf")))
	assert.True(t, IsIgnoredLandingPath(root, filepath.Join(root, "claims", ".tmp", "a.pdf")))
	assert.True(t, IsIgnoredLandingPath(root, filepath.Join(root, "claims", "a.pdf.ingesting")))
	assert.True(t, IsIgnoredLandingPath(root, filepath.Join("/", "other", "a.pdf")))
}

func TestArchivePath(t *testing.T) {
	root := filepath.Join("/", "landing")
	assert.Equal(t,
		filepath.Join(root, "processed", "claims", "C", "2026-01-01_x", "a.pdf"),
		ArchivePath(root, "claims/C/2026-01-01_x/a.pdf", false))
	assert.Equal(t,
		filepath.Join(root, "failed", "policies", "Motor", "b", "a.pdf"),
		ArchivePath(root, "policies/Motor/b/a.pdf", true))
}

func TestNormaliseCategory(t *testing.T) {
	assert.Equal(t, "Motor", NormaliseCategory("  motor "))
	assert.Equal(t, "Medical", NormaliseCategory("MEDICAL"))
	assert.Equal(t, "", NormaliseCategory("   "))
}
