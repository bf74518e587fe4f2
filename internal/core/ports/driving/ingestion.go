package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

// IngestionService runs the landing-area watcher.
type IngestionService interface {
	// Run drives the scheduling loop until ctx is done.
	Run(ctx context.Context) error

	// Tick runs one scan and processes every due file.
	Tick(ctx context.Context) error

	// Status returns the tracked files and lifetime counters.
	Status() domain.IngestionStatus
}

// UploadService places documents into the landing area.
type UploadService interface {
	// UploadPolicy stores a master policy under category.
	UploadPolicy(ctx context.Context, category, filename string, r io.Reader) (string, error)

	// UploadClaim stores a claim document for clientID.
	UploadClaim(ctx context.Context, clientID, submissionType, filename string, r io.Reader) (string, error)
}
