// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: TOML configuration under ~/.claimaudit/config.toml
//   - PromptStore: user-editable LLM prompt templates under ~/.claimaudit/prompts
package file
