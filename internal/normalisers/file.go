package normalisers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

// MaxFileSize bounds how much of a landing file a normaliser will read.
const MaxFileSize = domain.MaxDocumentBytes

// ReadFile reads path for a normaliser, honouring ctx and MaxFileSize.
func ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", filepath.Base(path))
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", filepath.Base(path), MaxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

// CleanText drops a byte-order mark, replaces invalid UTF-8 and normalises
// line endings to "\n".
func CleanText(data []byte) string {
	s := strings.TrimPrefix(string(data), "\ufeff")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\ufffd")
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// Extension returns the lower-case extension of path, including the dot.
// A trailing lock suffix such as ".ingesting" is ignored.
func Extension(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, domain.LockSuffix)
	return strings.ToLower(filepath.Ext(base))
}
