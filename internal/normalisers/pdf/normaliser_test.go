package pdf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

// mockDocument is a test double for Document.
type mockDocument struct {
	pages   []string
	pageErr error
	closed  bool
}

func (m *mockDocument) NumPage() int { return len(m.pages) }

func (m *mockDocument) Text(i int) (string, error) {
	if m.pageErr != nil {
		return "", m.pageErr
	}
	return m.pages[i], nil
}

func (m *mockDocument) Close() error {
	m.closed = true
	return nil
}

func placeholderFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claim.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))
	return path
}

func TestSupportedExtensions(t *testing.T) {
	assert.Equal(t, []string{".pdf"}, New().SupportedExtensions())
}

func TestNormalise_JoinsPages(t *testing.T) {
	doc := &mockDocument{pages: []string{"Claim CLM-5\r\n", "   ", "Police report no. 77"}}
	n := NewWithOpener(func(string) (Document, error) { return doc, nil })

	text, err := n.Normalise(context.Background(), placeholderFile(t))
	require.NoError(t, err)
	assert.Equal(t, "Claim CLM-5\n\nPolice report no. 77", text)
	assert.True(t, doc.closed)
}

func TestNormalise_OpenError(t *testing.T) {
	n := NewWithOpener(func(string) (Document, error) { return nil, errors.New("bad xref") })

	_, err := n.Normalise(context.Background(), placeholderFile(t))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "bad xref")
}

func TestNormalise_PageError(t *testing.T) {
	boom := errors.New("page damaged")
	doc := &mockDocument{pages: []string{"a"}, pageErr: boom}
	n := NewWithOpener(func(string) (Document, error) { return doc, nil })

	_, err := n.Normalise(context.Background(), placeholderFile(t))
	assert.ErrorIs(t, err, boom)
	assert.True(t, doc.closed)
}

func TestNormalise_MissingFile(t *testing.T) {
	opened := false
	n := NewWithOpener(func(string) (Document, error) {
		opened = true
		return &mockDocument{}, nil
	})

	_, err := n.Normalise(context.Background(), filepath.Join(t.TempDir(), "gone.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, opened)
}

func TestNormalise_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Normalise(ctx, placeholderFile(t))
	assert.ErrorIs(t, err, context.Canceled)
}
