package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads LLM prompts from user-editable files on disk, falling
// back to embedded defaults.
//
// Initialisation is lazy: the directory and default files are only written
// on the first Load.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// DefaultPrompts returns a copy of the embedded prompt templates.
func DefaultPrompts() map[string]string {
	out := make(map[string]string, len(defaultPrompts))
	for k, v := range defaultPrompts {
		out[k] = v
	}
	return out
}

//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptClassify: `You are classifying an insurance document against the company's master policy categories.

Known categories: %s

Nearest policy clauses:
%s

Document:
%s

Reply with exactly three lines:
CATEGORY: <one of the known categories>
CONFIDENCE: <number between 0 and 1>
RATIONALE: <one sentence>`,

	driven.PromptHistoryAnalysis: `Analyze the prior claim history for client %s.

Prior claims:
%s

Look for repeated incidents, missing documents flagged by earlier audits, and unusual claim frequency.
Reply with exactly three lines:
SUSPICIOUS: <yes or no>
PATTERN: <one sentence summary>
FLAGS: <semicolon separated flags, or none>`,

	driven.PromptComplianceSystem: `You are a professional insurance auditor. Judge a claim strictly against the listed Standard Operating Procedures. Use only the provided context. Do not invent facts that are not in the claim, the policy clauses or the history.`,

	driven.PromptCompliance: `Standard Operating Procedures:
%s

Relevant policy clauses:
%s

Claim history summary:
%s

Claim:
%s

For every procedure the claim breaks, write one line:
VIOLATION <rule id>: <reason>
If the claim breaks none, write exactly:
NO VIOLATIONS`,

	driven.PromptSynthesis: `Write a short justification for an insurance claim decision of %s.
Base it only on this evidence:
%s

Reply with two or three sentences and no preamble.`,

	driven.PromptPolicyAnswer: `You are a professional insurance auditor. Use ONLY the provided policy context. If the answer is not in the context, say so.

Context:
%s

Question: %s
Answer:`,
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.claimaudit/prompts.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		promptDir = filepath.Join(dir, "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name. A template whose
// placeholder count differs from the default is rejected in favour of the
// default, so a bad edit cannot garble audit prompts.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)

	fallback, known := defaultPrompts[name]
	if s.initErr != nil {
		if known {
			return fallback, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	prompt, err := s.loadFromFile(name)
	switch {
	case err != nil && known:
		prompt = fallback
	case err != nil:
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	case known && placeholders(prompt) != placeholders(fallback):
		prompt = fallback
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

func (s *PromptStore) loadFromFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.promptDir, name+".txt"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func placeholders(template string) int {
	return strings.Count(template, "%s") + strings.Count(template, "%d")
}

func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	names := make([]string, 0, len(defaultPrompts))
	for name := range defaultPrompts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("# claimaudit prompts\n\n")
	b.WriteString("Templates used by the audit workflow and policy Q&A.\n\n## Files\n\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- `%s.txt` (%d placeholders)\n", name, placeholders(defaultPrompts[name]))
	}
	b.WriteString("\nEdit a file to change LLM behaviour. Keep every %s placeholder: an edited\n")
	b.WriteString("template with a different placeholder count is ignored and the default is used.\n")
	return os.WriteFile(path, []byte(b.String()), 0600)
}
