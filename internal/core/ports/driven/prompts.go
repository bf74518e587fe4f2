package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Returns the prompt content and any error encountered.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptClassify places a document into a policy category.
	// The template expects %s (known categories), %s (nearest clauses) and %s (document text).
	PromptClassify = "classify"

	// PromptHistoryAnalysis judges a client's prior claim pattern.
	// The template expects %s (client id) and %s (prior claim excerpts).
	PromptHistoryAnalysis = "history_analysis"

	// PromptComplianceSystem is the system prompt for compliance judgment.
	// This prompt has no format placeholders.
	PromptComplianceSystem = "compliance_system"

	// PromptCompliance asks for SOP violations.
	// The template expects %s (rules), %s (clauses), %s (history) and %s (claim text).
	PromptCompliance = "compliance"

	// PromptSynthesis writes the narrative justification of a verdict.
	// The template expects %s (decision) and %s (evidence summary).
	PromptSynthesis = "synthesis"

	// PromptPolicyAnswer answers a question from policy clauses.
	// The template expects %s (clauses) and %s (question).
	PromptPolicyAnswer = "policy_answer"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
// Services implementing this interface can have their prompt templates customised
// by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
