package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// Landing tree layout.
const (
	PoliciesDir  = "policies"
	ClaimsDir    = "claims"
	ProcessedDir = "processed"
	FailedDir    = "failed"

	// LockSuffix marks a landing file claimed by the ingestion pipeline.
	LockSuffix = ".ingesting"

	// PolicyBatchLayout names the per-upload folder under a policy category.
	PolicyBatchLayout = "2006-01-02_1504"

	// MaxDocumentBytes bounds uploads and the files normalisers will read.
	MaxDocumentBytes = 64 << 20
)

// LandingInfo is what a landing path says about its document.
type LandingInfo struct {
	Kind           DocumentKind
	Category       string
	ClientID       string
	SubmissionDate string
	SubmissionType string

	// Rel is the path relative to the landing root, slash separated.
	Rel string
}

// ParseLandingPath interprets path under root:
//
//	policies/<Category>/<batch>/<file>
//	claims/<client_id>/<YYYY-MM-DD>_<type>/<file>
func ParseLandingPath(root, path string) (LandingInfo, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return LandingInfo{}, fmt.Errorf("%w: %s is not under %s", ErrInvalidInput, path, root)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, "../") || rel == ".." {
		return LandingInfo{}, fmt.Errorf("%w: %s is not under %s", ErrInvalidInput, path, root)
	}
	rel = strings.TrimSuffix(rel, LockSuffix)

	parts := strings.Split(rel, "/")
	if len(parts) != 4 {
		return LandingInfo{}, NewValidationError("path", fmt.Sprintf("%q does not follow the landing layout", rel))
	}

	info := LandingInfo{Rel: rel}
	switch parts[0] {
	case PoliciesDir:
		info.Kind = DocumentKindPolicy
		info.Category = NormaliseCategory(parts[1])
		if info.Category == "" {
			return LandingInfo{}, NewValidationError("category", "empty policy category")
		}
	case ClaimsDir:
		info.Kind = DocumentKindClaim
		info.ClientID = parts[1]
		date, typ, _ := strings.Cut(parts[2], "_")
		if _, err := time.Parse(SubmissionDateLayout, date); err != nil {
			return LandingInfo{}, NewValidationError("submission_date", fmt.Sprintf("%q is not YYYY-MM-DD", date))
		}
		info.SubmissionDate = date
		info.SubmissionType = typ
	default:
		return LandingInfo{}, NewValidationError("path", fmt.Sprintf("unknown landing root %q", parts[0]))
	}
	return info, nil
}

// NormaliseCategory trims a policy category and capitalises its first letter,
// so "motor" and "Motor" land in the same folder.
func NormaliseCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return ""
	}
	r := []rune(strings.ToLower(category))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// IsIgnoredLandingPath reports whether the pipeline should skip path.
// Archive folders, hidden entries and locked files are ignored.
func IsIgnoredLandingPath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") || rel == ".." {
		return true
	}
	if strings.HasSuffix(rel, LockSuffix) {
		return true
	}
	for i, part := range strings.Split(rel, "/") {
		if i == 0 && (part == ProcessedDir || part == FailedDir) {
			return true
		}
		if part != "." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// ArchivePath returns where a landing file with relative path rel is moved
// once it reaches terminal state.
func ArchivePath(root, rel string, failed bool) string {
	dir := ProcessedDir
	if failed {
		dir = FailedDir
	}
	return filepath.Join(root, dir, filepath.FromSlash(rel))
}
