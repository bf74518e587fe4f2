package domain

import (
	"fmt"
	"time"
)

// FileState is the ingestion state of one landing file.
type FileState string

const (
	FileDetected     FileState = "DETECTED"
	FileLockRetry    FileState = "LOCK_RETRY"
	FileLockAcquired FileState = "LOCK_ACQUIRED"
	FileClassified   FileState = "CLASSIFIED"
	FilePending      FileState = "PENDING"
	FileChunked      FileState = "CHUNKED"
	FileIndexed      FileState = "INDEXED"
	FileArchived     FileState = "ARCHIVED"
	FileFailed       FileState = "FAILED"
)

var fileTransitions = map[FileState][]FileState{
	FileDetected:     {FileLockAcquired, FileLockRetry, FileFailed},
	FileLockRetry:    {FileLockAcquired, FileLockRetry, FileFailed},
	FileLockAcquired: {FileClassified, FilePending, FileArchived, FileFailed},
	FileClassified:   {FileChunked, FilePending, FileFailed},
	FilePending:      {FileClassified, FileFailed},
	FileChunked:      {FileIndexed, FileChunked, FileFailed},
	FileIndexed:      {FileArchived, FileFailed},
}

// CanTransition reports whether the state machine allows s -> to.
func (s FileState) CanTransition(to FileState) bool {
	for _, next := range fileTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the file has left the pipeline.
func (s FileState) IsTerminal() bool {
	return s == FileArchived || s == FileFailed
}

// FileTask tracks one landing file through ingestion.
type FileTask struct {
	// Path is the landing path the file was detected at.
	Path string

	// LockedPath is where the file sits while the lock is held.
	LockedPath string

	Kind        DocumentKind
	State       FileState
	Attempts    int
	NextAttempt time.Time
	LastError   string
	DetectedAt  time.Time

	Document       *Document
	Classification *Classification
	Chunks         []Chunk

	// History lists every state the task has entered.
	History []FileState
}

// NewFileTask creates a task in the DETECTED state.
func NewFileTask(path string, kind DocumentKind, at time.Time) *FileTask {
	return &FileTask{
		Path:       path,
		Kind:       kind,
		State:      FileDetected,
		DetectedAt: at,
		History:    []FileState{FileDetected},
	}
}

// Transition moves the task to state to.
func (t *FileTask) Transition(to FileState) error {
	if !t.State.CanTransition(to) {
		return fmt.Errorf("%w: file state %s -> %s", ErrInvalidInput, t.State, to)
	}
	if t.State != to {
		t.Attempts = 0
	}
	t.State = to
	t.History = append(t.History, to)
	return nil
}

// Summary returns an observable view of the task.
func (t *FileTask) Summary() FileTaskSummary {
	return FileTaskSummary{
		Path:        t.Path,
		Kind:        t.Kind,
		State:       t.State,
		Attempts:    t.Attempts,
		NextAttempt: t.NextAttempt,
		LastError:   t.LastError,
	}
}

// FileTaskSummary is a read-only view of a FileTask.
type FileTaskSummary struct {
	Path        string       `json:"path"`
	Kind        DocumentKind `json:"kind"`
	State       FileState    `json:"state"`
	Attempts    int          `json:"attempts"`
	NextAttempt time.Time    `json:"next_attempt"`
	LastError   string       `json:"last_error,omitempty"`
}

// IngestionStatus summarises the watcher.
type IngestionStatus struct {
	Active   []FileTaskSummary `json:"active"`
	Archived int               `json:"archived"`
	Failed   int               `json:"failed"`
	Skipped  int               `json:"skipped"`
}

// IngestedFile is the ledger record of a fully indexed file.
type IngestedFile struct {
	Identity     string
	Path         string
	ContentHash  string
	Collection   Collection
	Category     string
	ClientID     string
	Chunks       int
	ArchivedPath string
	IngestedAt   time.Time
}
