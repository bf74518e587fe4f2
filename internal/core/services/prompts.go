package services

import (
	"bufio"
	"strings"

	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

// fallbackPrompts are used when no prompt store is set.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var fallbackPrompts = map[string]string{
	driven.PromptClassify: "Known categories: %s\n\nNearest policy clauses:\n%s\n\nDocument:\n%s\n\n" +
		"Reply with three lines:\nCATEGORY: <one of the known categories>\nCONFIDENCE: <0 to 1>\nRATIONALE: <one sentence>",
	driven.PromptHistoryAnalysis: "Analyze the prior claims of client %s.\n\nPrior claims:\n%s\n\n" +
		"Reply with three lines:\nSUSPICIOUS: <yes or no>\nPATTERN: <one sentence>\nFLAGS: <semicolon separated, or none>",
	driven.PromptComplianceSystem: "You are an insurance auditor. Judge the claim strictly against the listed procedures using only the provided context.",
	driven.PromptCompliance: "Procedures:\n%s\n\nPolicy clauses:\n%s\n\nHistory:\n%s\n\nClaim:\n%s\n\n" +
		"For every broken procedure write one line:\nVIOLATION <rule id>: <reason>\nOtherwise write NO VIOLATIONS",
	driven.PromptSynthesis:    "Write a two sentence justification for a claim decision of %s based only on:\n%s",
	driven.PromptPolicyAnswer: "Use ONLY this policy context. If the answer is not there, say so.\n\nContext:\n%s\n\nQuestion: %s\nAnswer:",
}

func loadPrompt(store driven.PromptStore, name string) string {
	if store != nil {
		if p, err := store.Load(name); err == nil && p != "" {
			return p
		}
	}
	return fallbackPrompts[name]
}

// replyFields parses "KEY: value" lines of an LLM reply. Keys are upper-cased;
// the first occurrence of a key wins.
func replyFields(reply string) map[string]string {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(reply))
	for scanner.Scan() {
		line := strings.TrimSpace(strings.Trim(scanner.Text(), "*"))
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(strings.Trim(key, "*")))
		if _, seen := fields[key]; seen || key == "" {
			continue
		}
		fields[key] = strings.TrimSpace(strings.Trim(value, "* "))
	}
	return fields
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
