package driven

import "context"

// FileWatcher reports paths created or written under the watched roots.
// Events are hints: the ingestion loop also scans on every poll.
type FileWatcher interface {
	// Watch starts watching roots recursively. The channel closes when ctx
	// is done or the watcher is closed.
	Watch(ctx context.Context, roots ...string) (<-chan string, error)

	// Close stops the watcher.
	Close() error
}
