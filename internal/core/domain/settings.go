package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// KnowledgeBackend selects the vector store implementation.
type KnowledgeBackend string

const (
	// KnowledgeBackendMemory is the embedded brute-force cosine store.
	KnowledgeBackendMemory KnowledgeBackend = "memory"

	// KnowledgeBackendPGVector is PostgreSQL with the pgvector extension.
	KnowledgeBackendPGVector KnowledgeBackend = "pgvector"
)

// IsValid returns true if the backend is recognised.
func (b KnowledgeBackend) IsValid() bool {
	return b == KnowledgeBackendMemory || b == KnowledgeBackendPGVector
}

// StorageSettings locates the landing area and the persistent stores.
type StorageSettings struct {
	// LandingDir holds the policies/ and claims/ landing trees.
	LandingDir string

	// DataDir holds audit.db.
	DataDir string

	// Backend is the knowledge store implementation.
	Backend KnowledgeBackend

	// PostgresURL is the pgvector connection string.
	PostgresURL string

	// BreakerFailures is the consecutive failure count that opens the store breaker.
	BreakerFailures int

	// BreakerCooldown is how long the breaker stays open.
	BreakerCooldown time.Duration
}

// IngestionSettings tunes the watcher loop.
type IngestionSettings struct {
	// PollInterval is the period of the scheduling loop.
	PollInterval time.Duration

	// QueueSize bounds the number of tracked files.
	QueueSize int

	// LockMaxRetries is the number of lock attempts before a file fails.
	LockMaxRetries int

	// LockInitialBackoff and LockMaxBackoff bound the lock retry delay.
	LockInitialBackoff time.Duration
	LockMaxBackoff     time.Duration

	// IndexMaxRetries is the number of indexing attempts before a file fails.
	IndexMaxRetries int
}

// ChunkerSettings tunes the semantic chunker.
type ChunkerSettings struct {
	// Strategy names the registered chunker to build.
	Strategy string

	// WindowSentences is the number of sentences on each side of a gap.
	WindowSentences int

	// MaxTokens is the hard per-chunk token budget.
	MaxTokens int

	// Sensitivity is k in the mean - k*stddev cut threshold.
	Sensitivity float64
}

// AuditSettings tunes the audit workflow.
type AuditSettings struct {
	// PolicyTopK is the number of clauses Policy Selection retrieves.
	PolicyTopK int

	// HistoryTopK is the number of prior claim chunks History Investigation retrieves.
	HistoryTopK int

	// HistoryWindowDays is how far back History Investigation looks.
	HistoryWindowDays int

	// MinConfidence is the classifier confidence below which a document is pending.
	MinConfidence float64

	// SOPFile is the path of the versioned SOP rule table.
	SOPFile string

	// StageRetries is the number of retries for a stage failing with a retryable error.
	StageRetries int

	// ProgressRetention is the number of investigations kept for progress preview.
	ProgressRetention int

	// LLMRequestsPerSecond bounds calls to the LLM backend. Zero disables the limit.
	LLMRequestsPerSecond float64
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Storage   StorageSettings
	Ingestion IngestionSettings
	Chunker   ChunkerSettings
	Audit     AuditSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Embedding points at a local Ollama; the LLM is left unconfigured.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider: AIProviderOllama,
			Model:    DefaultEmbeddingModels()[AIProviderOllama],
			BaseURL:  "http://localhost:11434",
		},
		LLM: LLMSettings{},
		Storage: StorageSettings{
			Backend:         KnowledgeBackendMemory,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Ingestion: IngestionSettings{
			PollInterval:       2 * time.Second,
			QueueSize:          256,
			LockMaxRetries:     10,
			LockInitialBackoff: time.Second,
			LockMaxBackoff:     30 * time.Second,
			IndexMaxRetries:    5,
		},
		Chunker: ChunkerSettings{
			Strategy:        "semantic",
			WindowSentences: 3,
			MaxTokens:       256,
			Sensitivity:     0.5,
		},
		Audit: AuditSettings{
			PolicyTopK:           5,
			HistoryTopK:          10,
			HistoryWindowDays:    365,
			MinConfidence:        0.6,
			StageRetries:         2,
			ProgressRetention:    512,
			LLMRequestsPerSecond: 2,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
