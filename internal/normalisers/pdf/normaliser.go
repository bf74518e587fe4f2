// Package pdf provides a Normaliser for PDF documents backed by MuPDF
// through go-fitz.
package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
	"github.com/custodia-labs/claimaudit/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Document is the page-level view of an opened PDF.
type Document interface {
	NumPage() int
	Text(page int) (string, error)
	Close() error
}

// Opener opens the document at path.
type Opener func(path string) (Document, error)

// OpenFitz opens path with MuPDF. The document is loaded from memory so
// MuPDF sniffs the content rather than trusting the file name, which
// carries a lock suffix while the file is being ingested.
func OpenFitz(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Normaliser extracts the text layer of PDF files page by page.
type Normaliser struct {
	open Opener
}

// New creates a PDF normaliser using MuPDF.
func New() *Normaliser {
	return NewWithOpener(OpenFitz)
}

// NewWithOpener creates a PDF normaliser with a custom document opener.
func NewWithOpener(open Opener) *Normaliser {
	return &Normaliser{open: open}
}

// SupportedExtensions returns the extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".pdf"}
}

// Normalise returns the text of every non-blank page, separated by a
// blank line. A PDF without a text layer yields an empty string.
func (n *Normaliser) Normalise(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	if info.Size() > normalisers.MaxFileSize {
		return "", fmt.Errorf("%s exceeds %d bytes", filepath.Base(path), normalisers.MaxFileSize)
	}

	doc, err := n.open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open pdf %s: %v", domain.ErrInvalidInput, filepath.Base(path), err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("extract page %d of %s: %w", i+1, filepath.Base(path), err)
		}
		text = strings.TrimSpace(normalisers.CleanText([]byte(text)))
		if text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
