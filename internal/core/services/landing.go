package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driving"
	"github.com/custodia-labs/claimaudit/internal/logger"
)

// Ensure LandingService implements the interface.
var _ driving.UploadService = (*LandingService)(nil)

// LandingService writes uploaded documents into the landing tree, where the
// ingestion pipeline picks them up.
type LandingService struct {
	root     string
	registry driven.NormaliserRegistry
	now      func() time.Time
}

// NewLandingService creates an upload service rooted at the landing directory.
func NewLandingService(root string, registry driven.NormaliserRegistry, now func() time.Time) *LandingService {
	if now == nil {
		now = time.Now
	}
	return &LandingService{root: root, registry: registry, now: now}
}

// UploadPolicy stores a policy under policies/<Category>/<timestamp>/<file>.
func (s *LandingService) UploadPolicy(ctx context.Context, category, filename string, r io.Reader) (string, error) {
	category = domain.NormaliseCategory(category)
	if err := checkSegment("category", category); err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, domain.PoliciesDir, category, s.now().Format(domain.PolicyBatchLayout))
	return s.store(ctx, dir, filename, r)
}

// UploadClaim stores a claim under claims/<client>/<date>_<type>/<file>.
func (s *LandingService) UploadClaim(ctx context.Context, clientID, submissionType, filename string, r io.Reader) (string, error) {
	clientID = strings.TrimSpace(clientID)
	submissionType = strings.TrimSpace(submissionType)
	if err := checkSegment("client_id", clientID); err != nil {
		return "", err
	}
	if err := checkSegment("type", submissionType); err != nil {
		return "", err
	}
	folder := s.now().Format(domain.SubmissionDateLayout) + "_" + submissionType
	dir := filepath.Join(s.root, domain.ClaimsDir, clientID, folder)
	return s.store(ctx, dir, filename, r)
}

func (s *LandingService) store(ctx context.Context, dir, filename string, r io.Reader) (string, error) {
	filename = strings.TrimSpace(filename)
	if err := checkSegment("filename", filename); err != nil {
		return "", err
	}
	if strings.HasSuffix(filename, domain.LockSuffix) || !s.registry.Supports(filename) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedType, filename)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create landing folder: %w", err)
	}
	dest := filepath.Join(dir, filename)
	if _, err := os.Lstat(dest); err == nil {
		return "", domain.NewValidationError("filename", filename+" already uploaded")
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("check %s: %w", dest, err)
	}

	// Hidden temp files are ignored by the pipeline until the rename.
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	n, err := io.Copy(tmp, io.LimitReader(r, domain.MaxDocumentBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	switch {
	case err != nil:
		return "", fmt.Errorf("write upload: %w", err)
	case n == 0:
		return "", domain.NewValidationError("file", "empty upload")
	case n > domain.MaxDocumentBytes:
		return "", domain.NewValidationError("file", fmt.Sprintf("larger than %d bytes", domain.MaxDocumentBytes))
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("place upload: %w", err)
	}
	logger.Info("Uploaded %s (%d bytes)", dest, n)
	return dest, nil
}

// checkSegment rejects values that would escape their landing folder.
func checkSegment(field, v string) error {
	switch {
	case v == "":
		return domain.NewValidationError(field, "must not be empty")
	case v == "." || v == "..":
		return domain.NewValidationError(field, "invalid name")
	case strings.HasPrefix(v, "."):
		return domain.NewValidationError(field, "must not be hidden")
	case strings.ContainsAny(v, `/\`) || strings.ContainsRune(v, 0):
		return domain.NewValidationError(field, "must not contain path separators")
	}
	return nil
}
