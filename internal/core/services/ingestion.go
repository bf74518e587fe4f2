package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driving"
	"github.com/custodia-labs/claimaudit/internal/logger"
)

// Ensure IngestionPipeline implements the interface.
var _ driving.IngestionService = (*IngestionPipeline)(nil)

var ingestLog = logger.Named("ingestion")

var (
	// errDeferred parks a task until its NextAttempt.
	errDeferred = errors.New("deferred")

	// errVanished drops a task whose file disappeared before it was locked.
	errVanished = errors.New("file vanished")
)

// ingestTask is a queued FileTask with its scheduling state.
type ingestTask struct {
	task    *domain.FileTask
	info    domain.LandingInfo
	infoErr error
	backoff *backoff.ExponentialBackOff
	skipped bool
	gone    bool
}

// IngestionPipeline moves landing files through lock, classify, chunk,
// index and archive. One loop processes one file at a time.
type IngestionPipeline struct {
	root       string
	registry   driven.NormaliserRegistry
	classifier *Classifier
	chunker    driven.Chunker
	kb         *KnowledgeBase
	ledger     driven.IngestionLedger
	watcher    driven.FileWatcher
	metrics    driven.Metrics
	settings   domain.IngestionSettings
	settle     time.Duration
	now        func() time.Time
	lock       *FileLock

	runMu  sync.Mutex
	queue  []*ingestTask
	byPath map[string]*ingestTask

	mu     sync.RWMutex
	status domain.IngestionStatus
}

// IngestionOption configures an IngestionPipeline.
type IngestionOption func(*IngestionPipeline)

// WithWatcher adds filesystem notifications on top of polling.
func WithWatcher(w driven.FileWatcher) IngestionOption {
	return func(p *IngestionPipeline) { p.watcher = w }
}

// WithIngestionMetrics records file transitions and indexed chunks.
func WithIngestionMetrics(m driven.Metrics) IngestionOption {
	return func(p *IngestionPipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithIngestionClock replaces the clock used for scheduling and lock settling.
func WithIngestionClock(now func() time.Time) IngestionOption {
	return func(p *IngestionPipeline) { p.now = now }
}

// WithSettleTime sets how long a file must be unmodified before it is locked.
func WithSettleTime(d time.Duration) IngestionOption {
	return func(p *IngestionPipeline) { p.settle = d }
}

// NewIngestionPipeline creates a pipeline over the landing root.
// ledger may be nil, in which case every file is indexed.
func NewIngestionPipeline(root string, registry driven.NormaliserRegistry, classifier *Classifier,
	chunker driven.Chunker, kb *KnowledgeBase, ledger driven.IngestionLedger,
	settings domain.IngestionSettings, opts ...IngestionOption) *IngestionPipeline {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	p := &IngestionPipeline{
		root:       root,
		registry:   registry,
		classifier: classifier,
		chunker:    chunker,
		kb:         kb,
		ledger:     ledger,
		metrics:    noopMetrics{},
		settings:   settings,
		settle:     DefaultSettleTime,
		now:        time.Now,
		byPath:     make(map[string]*ingestTask),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.lock = NewFileLock(p.settle, p.now)
	return p
}

// Root returns the landing directory.
func (p *IngestionPipeline) Root() string {
	return p.root
}

// Run recovers orphaned locks, then polls the landing tree until ctx is
// done. Watcher events are processed as they arrive.
func (p *IngestionPipeline) Run(ctx context.Context) error {
	if err := os.MkdirAll(p.root, 0o750); err != nil {
		return fmt.Errorf("create landing root: %w", err)
	}
	if n, err := p.lock.RecoverOrphans(p.root); err != nil {
		ingestLog.Warn("%v", err)
	} else if n > 0 {
		ingestLog.Info("Recovered %d interrupted files", n)
	}

	var events <-chan string
	if p.watcher != nil {
		ch, err := p.watcher.Watch(ctx, p.root)
		if err != nil {
			ingestLog.Warn("file watcher unavailable, polling only: %v", err)
		} else {
			events = ch
		}
	}

	interval := p.pollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	ingestLog.Info("Watching %s (poll every %s)", p.root, interval)

	if err := p.Tick(ctx); err != nil && ctx.Err() == nil {
		ingestLog.Warn("%v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			p.runMu.Lock()
			p.enqueue(path)
			p.process(ctx)
			p.runMu.Unlock()
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil && ctx.Err() == nil {
				ingestLog.Warn("%v", err)
			}
		}
	}
}

// Tick scans the landing tree once and processes every due file.
func (p *IngestionPipeline) Tick(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if err := p.scan(); err != nil {
		return err
	}
	p.process(ctx)
	return ctx.Err()
}

// Status returns the tracked files and lifetime counters.
func (p *IngestionPipeline) Status() domain.IngestionStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	status := p.status
	status.Active = append([]domain.FileTaskSummary(nil), p.status.Active...)
	return status
}

func (p *IngestionPipeline) scan() error {
	if err := os.MkdirAll(p.root, 0o750); err != nil {
		return fmt.Errorf("create landing root: %w", err)
	}
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == p.root {
				return err
			}
			ingestLog.Debug("scan %s: %v", path, err)
			return nil
		}
		if path == p.root {
			return nil
		}
		if d.IsDir() {
			if domain.IsIgnoredLandingPath(p.root, path) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			p.enqueue(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan landing tree: %w", err)
	}
	return nil
}

func (p *IngestionPipeline) enqueue(path string) {
	if domain.IsIgnoredLandingPath(p.root, path) || !p.registry.Supports(path) {
		return
	}
	if _, ok := p.byPath[path]; ok {
		return
	}
	if len(p.queue) >= p.queueSize() {
		ingestLog.Debug("Ingestion queue full; %s left for the next scan", path)
		return
	}

	info, err := domain.ParseLandingPath(p.root, path)
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.settings.LockInitialBackoff
	b.MaxInterval = p.settings.LockMaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	t := &ingestTask{
		task:    domain.NewFileTask(path, info.Kind, p.now()),
		info:    info,
		infoErr: err,
		backoff: b,
	}
	p.queue = append(p.queue, t)
	p.byPath[path] = t
	p.metrics.FileTransition(domain.FileDetected)
	ingestLog.Debug("Detected %s", path)
}

func (p *IngestionPipeline) process(ctx context.Context) {
	for _, t := range p.queue {
		if ctx.Err() != nil {
			break
		}
		if t.task.NextAttempt.After(p.now()) {
			continue
		}
		p.advance(ctx, t)
	}

	var archived, failed, skipped int
	kept := make([]*ingestTask, 0, len(p.queue))
	for _, t := range p.queue {
		switch {
		case t.gone:
		case t.task.State == domain.FileFailed:
			failed++
		case t.task.State == domain.FileArchived && t.skipped:
			skipped++
		case t.task.State == domain.FileArchived:
			archived++
		default:
			kept = append(kept, t)
			continue
		}
		delete(p.byPath, t.task.Path)
	}
	p.queue = kept

	active := make([]domain.FileTaskSummary, 0, len(kept))
	for _, t := range kept {
		active = append(active, t.task.Summary())
	}
	p.mu.Lock()
	p.status.Active = active
	p.status.Archived += archived
	p.status.Failed += failed
	p.status.Skipped += skipped
	p.mu.Unlock()
}

// advance runs t until it finishes, waits or fails.
func (p *IngestionPipeline) advance(ctx context.Context, t *ingestTask) {
	for !t.task.State.IsTerminal() && !t.gone {
		err := p.step(ctx, t)
		switch {
		case err == nil:
			continue
		case errors.Is(err, errDeferred):
			return
		case errors.Is(err, errVanished):
			t.gone = true
			return
		case ctx.Err() != nil:
			// Shutdown: the file stays locked and is recovered on the next run.
			return
		default:
			p.fail(t, err)
			return
		}
	}
}

func (p *IngestionPipeline) step(ctx context.Context, t *ingestTask) error {
	switch t.task.State {
	case domain.FileDetected, domain.FileLockRetry:
		return p.acquire(t)
	case domain.FileLockAcquired:
		return p.prepare(ctx, t)
	case domain.FilePending:
		return p.classify(ctx, t)
	case domain.FileClassified:
		return p.split(t)
	case domain.FileChunked:
		return p.index(ctx, t)
	case domain.FileIndexed:
		return p.archive(ctx, t)
	default:
		return fmt.Errorf("%w: unexpected state %s", domain.ErrInvalidInput, t.task.State)
	}
}

func (p *IngestionPipeline) acquire(t *ingestTask) error {
	task := t.task
	if t.infoErr != nil {
		return t.infoErr
	}

	locked, err := p.lock.Acquire(task.Path)
	switch {
	case err == nil:
		task.LockedPath = locked
		task.NextAttempt = time.Time{}
		task.LastError = ""
		t.backoff.Reset()
		return p.transition(task, domain.FileLockAcquired)
	case errors.Is(err, domain.ErrNotFound):
		ingestLog.Debug("%s vanished before it was locked", task.Path)
		return errVanished
	case !errors.Is(err, domain.ErrLockNotAcquired):
		return err
	}

	if terr := p.transition(task, domain.FileLockRetry); terr != nil {
		return terr
	}
	task.Attempts++
	task.LastError = err.Error()
	if task.Attempts >= p.settings.LockMaxRetries {
		return fmt.Errorf("lock after %d attempts: %w", task.Attempts, err)
	}
	task.NextAttempt = p.now().Add(t.backoff.NextBackOff())
	ingestLog.Debug("%s busy (attempt %d), retry at %s", task.Path, task.Attempts, task.NextAttempt.Format(time.TimeOnly))
	return errDeferred
}

func (p *IngestionPipeline) prepare(ctx context.Context, t *ingestTask) error {
	task := t.task
	hash, err := hashFile(task.LockedPath)
	if err != nil {
		return err
	}
	identity := domain.DocumentIdentity(task.Path, hash)

	if p.ledger != nil {
		seen, err := p.ledger.Seen(ctx, identity)
		if err != nil {
			return fmt.Errorf("check ledger: %w", err)
		}
		if seen {
			dest, err := moveFile(task.LockedPath, domain.ArchivePath(p.root, t.info.Rel, false))
			if err != nil {
				return err
			}
			t.skipped = true
			ingestLog.Info("%s was already ingested; archived to %s", task.Path, dest)
			return p.transition(task, domain.FileArchived)
		}
	}

	text, err := p.registry.Normalise(ctx, task.LockedPath)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.NewValidationError("content", "document has no text")
	}

	task.Document = &domain.Document{
		ID:             identity,
		Path:           task.Path,
		ContentHash:    hash,
		Kind:           t.info.Kind,
		Category:       t.info.Category,
		ClientID:       t.info.ClientID,
		SubmissionDate: t.info.SubmissionDate,
		SubmissionType: t.info.SubmissionType,
		Content:        text,
		DetectedAt:     task.DetectedAt,
	}
	return p.classify(ctx, t)
}

func (p *IngestionPipeline) classify(ctx context.Context, t *ingestTask) error {
	task := t.task
	doc := task.Document
	c, err := p.classifier.Classify(ctx, doc.Content, domain.ClassificationHint{Kind: doc.Kind, Category: doc.Category})
	if err != nil {
		if !errors.Is(err, domain.ErrClassificationUncertain) && !domain.IsRetryable(err) {
			return fmt.Errorf("classify: %w", err)
		}
		task.LastError = err.Error()
		task.NextAttempt = p.now().Add(p.pollInterval())
		if task.State == domain.FilePending {
			ingestLog.Debug("%s still pending: %v", task.Path, err)
			return errDeferred
		}
		ingestLog.Warn("%s held as pending for review: %v", task.Path, err)
		if terr := p.transition(task, domain.FilePending); terr != nil {
			return terr
		}
		return errDeferred
	}

	if c.Target != doc.Kind.Collection() {
		return fmt.Errorf("%w: %s document classified into %s", domain.ErrCrossCollectionWrite, doc.Kind, c.Target)
	}
	doc.Category = c.Category
	doc.Collection = c.Target
	task.Classification = &c
	task.LastError = ""
	task.NextAttempt = time.Time{}
	ingestLog.Info("Classified %s as %s/%s (confidence %.2f)", task.Path, c.Target, c.Category, c.Confidence)
	return p.transition(task, domain.FileClassified)
}

func (p *IngestionPipeline) split(t *ingestTask) error {
	task := t.task
	var chunks []domain.Chunk
	for c := range p.chunker.Chunk(task.Document) {
		chunks = append(chunks, c)
	}
	if len(chunks) == 0 {
		return domain.NewValidationError("content", "no chunks produced")
	}
	task.Chunks = chunks
	ingestLog.Debug("%s split into %d chunks by %s", task.Path, len(chunks), p.chunker.Name())
	return p.transition(task, domain.FileChunked)
}

func (p *IngestionPipeline) index(ctx context.Context, t *ingestTask) error {
	task := t.task
	n, err := p.kb.Index(ctx, task.Document, task.Chunks)
	if err != nil {
		if !domain.IsRetryable(err) {
			return fmt.Errorf("index: %w", err)
		}
		if terr := p.transition(task, domain.FileChunked); terr != nil {
			return terr
		}
		task.Attempts++
		task.LastError = err.Error()
		if task.Attempts >= p.settings.IndexMaxRetries {
			return fmt.Errorf("index after %d attempts: %w", task.Attempts, err)
		}
		task.NextAttempt = p.now().Add(t.backoff.NextBackOff())
		ingestLog.Warn("index %s failed (attempt %d), retrying: %v", task.Path, task.Attempts, err)
		return errDeferred
	}
	p.metrics.ChunksIndexed(task.Document.Collection, n)
	task.LastError = ""
	return p.transition(task, domain.FileIndexed)
}

func (p *IngestionPipeline) archive(ctx context.Context, t *ingestTask) error {
	task := t.task
	doc := task.Document
	dest, err := moveFile(task.LockedPath, domain.ArchivePath(p.root, t.info.Rel, false))
	if err != nil {
		return err
	}
	task.LockedPath = ""
	doc.Path = dest

	if p.ledger != nil {
		err := p.ledger.Record(ctx, domain.IngestedFile{
			Identity:     doc.ID,
			Path:         task.Path,
			ContentHash:  doc.ContentHash,
			Collection:   doc.Collection,
			Category:     doc.Category,
			ClientID:     doc.ClientID,
			Chunks:       len(task.Chunks),
			ArchivedPath: dest,
			IngestedAt:   p.now(),
		})
		if err != nil {
			ingestLog.Error("record %s in ledger: %v", task.Path, err)
		}
	}
	ingestLog.Info("Indexed %d chunks of %s into %s", len(task.Chunks), filepath.Base(task.Path), doc.Collection)
	return p.transition(task, domain.FileArchived)
}

// fail moves the file to the failed/ tree. Failed files are never deleted.
func (p *IngestionPipeline) fail(t *ingestTask, cause error) {
	task := t.task
	task.LastError = cause.Error()
	if err := p.transition(task, domain.FileFailed); err != nil {
		task.State = domain.FileFailed
		task.History = append(task.History, domain.FileFailed)
	}

	src := task.Path
	if task.LockedPath != "" {
		src = task.LockedPath
	}
	rel := t.info.Rel
	if rel == "" {
		if r, err := filepath.Rel(p.root, task.Path); err == nil {
			rel = filepath.ToSlash(r)
		} else {
			rel = filepath.Base(task.Path)
		}
	}
	if dest, err := moveFile(src, domain.ArchivePath(p.root, rel, true)); err != nil {
		ingestLog.Error("move failed file %s: %v", src, err)
	} else {
		task.LockedPath = ""
		ingestLog.Debug("Moved %s to %s", src, dest)
	}
	ingestLog.Error("%s failed: %v", task.Path, cause)
}

func (p *IngestionPipeline) transition(task *domain.FileTask, to domain.FileState) error {
	if err := task.Transition(to); err != nil {
		return err
	}
	p.metrics.FileTransition(to)
	return nil
}

func (p *IngestionPipeline) pollInterval() time.Duration {
	if p.settings.PollInterval > 0 {
		return p.settings.PollInterval
	}
	return domain.DefaultAppSettings().Ingestion.PollInterval
}

func (p *IngestionPipeline) queueSize() int {
	if p.settings.QueueSize > 0 {
		return p.settings.QueueSize
	}
	return domain.DefaultAppSettings().Ingestion.QueueSize
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // landing paths come from the pipeline's own scan
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
