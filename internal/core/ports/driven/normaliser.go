package driven

import "context"

// Normaliser extracts plain text from a landing file.
// Each normaliser handles specific file extensions (e.g., .pdf, .txt).
type Normaliser interface {
	// SupportedExtensions returns lower-case extensions including the dot.
	SupportedExtensions() []string

	// Normalise reads the file at path and returns its text.
	Normalise(ctx context.Context, path string) (string, error)
}

// NormaliserRegistry selects the normaliser for a file.
type NormaliserRegistry interface {
	// Normalise extracts text with the normaliser registered for path's extension.
	// Returns domain.ErrUnsupportedType when none is registered.
	Normalise(ctx context.Context, path string) (string, error)

	// Supports reports whether a normaliser handles path.
	Supports(path string) bool

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)
}
