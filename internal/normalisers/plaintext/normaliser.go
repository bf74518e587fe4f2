// Package plaintext provides a Normaliser for plain text files.
package plaintext

import (
	"context"

	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
	"github.com/custodia-labs/claimaudit/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser passes text files through with encoding cleanup.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".txt", ".text", ".csv", ".log"}
}

// Normalise returns the file content as text.
func (n *Normaliser) Normalise(ctx context.Context, path string) (string, error) {
	data, err := normalisers.ReadFile(ctx, path)
	if err != nil {
		return "", err
	}
	return normalisers.CleanText(data), nil
}
