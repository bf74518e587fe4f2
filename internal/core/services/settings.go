package services

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider = "embedding.provider"
	keyEmbedModel    = "embedding.model"
	keyEmbedBaseURL  = "embedding.base_url"
	keyEmbedAPIKey   = "embedding.api_key"
	keyLLMProvider   = "llm.provider"
	keyLLMModel      = "llm.model"
	keyLLMBaseURL    = "llm.base_url"
	keyLLMAPIKey     = "llm.api_key"

	keyLandingDir      = "storage.landing_dir"
	keyDataDir         = "storage.data_dir"
	keyBackend         = "storage.backend"
	keyPostgresURL     = "storage.postgres_url"
	keyBreakerFailures = "storage.breaker_failures"
	keyBreakerCooldown = "storage.breaker_cooldown"

	keyPollInterval       = "ingestion.poll_interval"
	keyQueueSize          = "ingestion.queue_size"
	keyLockMaxRetries     = "ingestion.lock_max_retries"
	keyLockInitialBackoff = "ingestion.lock_initial_backoff"
	keyLockMaxBackoff     = "ingestion.lock_max_backoff"
	keyIndexMaxRetries    = "ingestion.index_max_retries"

	keyChunkerStrategy    = "chunker.strategy"
	keyChunkerWindow      = "chunker.window_sentences"
	keyChunkerMaxTokens   = "chunker.max_tokens"
	keyChunkerSensitivity = "chunker.sensitivity"

	keyPolicyTopK        = "audit.policy_top_k"
	keyHistoryTopK       = "audit.history_top_k"
	keyHistoryWindowDays = "audit.history_window_days"
	keyMinConfidence     = "audit.min_confidence"
	keySOPFile           = "audit.sop_file"
	keyStageRetries      = "audit.stage_retries"
	keyProgressRetention = "audit.progress_retention"
	keyLLMRate           = "audit.llm_requests_per_second"
)

// Environment overrides applied on top of the config file.
const (
	EnvPrefix          = "CLAIMAUDIT_"
	envOpenAIKey       = "OPENAI_API_KEY"
	envAnthropicKey    = "ANTHROPIC_API_KEY"
	envDatabaseURL     = "DATABASE_URL"
	envLandingDir      = EnvPrefix + "LANDING_DIR"
	envDataDir         = EnvPrefix + "DATA_DIR"
	envBackend         = EnvPrefix + "BACKEND"
	envSOPFile         = EnvPrefix + "SOP_FILE"
	envLLMProvider     = EnvPrefix + "LLM_PROVIDER"
	envLLMModel        = EnvPrefix + "LLM_MODEL"
	envLLMBaseURL      = EnvPrefix + "LLM_BASE_URL"
	envEmbedProvider   = EnvPrefix + "EMBEDDING_PROVIDER"
	envEmbedModel      = EnvPrefix + "EMBEDDING_MODEL"
	envEmbedBaseURL    = EnvPrefix + "EMBEDDING_BASE_URL"
	envPollInterval    = EnvPrefix + "POLL_INTERVAL"
	envMinConfidence   = EnvPrefix + "MIN_CONFIDENCE"
	envLLMRate         = EnvPrefix + "LLM_REQUESTS_PER_SECOND"
	envHistoryWindow   = EnvPrefix + "HISTORY_WINDOW_DAYS"
	envChunkMaxTokens  = EnvPrefix + "CHUNK_MAX_TOKENS"
	envStageRetries    = EnvPrefix + "STAGE_RETRIES"
	envProgressRetain  = EnvPrefix + "PROGRESS_RETENTION"
	envLockMaxRetries  = EnvPrefix + "LOCK_MAX_RETRIES"
	envIndexMaxRetries = EnvPrefix + "INDEX_MAX_RETRIES"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
// aiValidator is optional.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		lookupEnv:   os.LookupEnv,
	}
}

// SetEnvLookup replaces the environment lookup. Used by tests.
func (s *SettingsService) SetEnvLookup(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	s.lookupEnv = lookup
}

// Get retrieves current application settings: defaults, then the config
// file, then environment overrides.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:  s.getString(keyEmbedBaseURL, d.Embedding.BaseURL),
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:    s.getString(keyLLMModel, d.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Storage: domain.StorageSettings{
			LandingDir:      s.getString(keyLandingDir, d.Storage.LandingDir),
			DataDir:         s.getString(keyDataDir, d.Storage.DataDir),
			Backend:         s.getBackend(d.Storage.Backend),
			PostgresURL:     s.configStore.GetString(keyPostgresURL),
			BreakerFailures: s.getInt(keyBreakerFailures, d.Storage.BreakerFailures),
			BreakerCooldown: s.getDuration(keyBreakerCooldown, d.Storage.BreakerCooldown),
		},
		Ingestion: domain.IngestionSettings{
			PollInterval:       s.getDuration(keyPollInterval, d.Ingestion.PollInterval),
			QueueSize:          s.getInt(keyQueueSize, d.Ingestion.QueueSize),
			LockMaxRetries:     s.getInt(keyLockMaxRetries, d.Ingestion.LockMaxRetries),
			LockInitialBackoff: s.getDuration(keyLockInitialBackoff, d.Ingestion.LockInitialBackoff),
			LockMaxBackoff:     s.getDuration(keyLockMaxBackoff, d.Ingestion.LockMaxBackoff),
			IndexMaxRetries:    s.getInt(keyIndexMaxRetries, d.Ingestion.IndexMaxRetries),
		},
		Chunker: domain.ChunkerSettings{
			Strategy:        s.getString(keyChunkerStrategy, d.Chunker.Strategy),
			WindowSentences: s.getInt(keyChunkerWindow, d.Chunker.WindowSentences),
			MaxTokens:       s.getInt(keyChunkerMaxTokens, d.Chunker.MaxTokens),
			Sensitivity:     s.getFloat(keyChunkerSensitivity, d.Chunker.Sensitivity),
		},
		Audit: domain.AuditSettings{
			PolicyTopK:           s.getInt(keyPolicyTopK, d.Audit.PolicyTopK),
			HistoryTopK:          s.getInt(keyHistoryTopK, d.Audit.HistoryTopK),
			HistoryWindowDays:    s.getInt(keyHistoryWindowDays, d.Audit.HistoryWindowDays),
			MinConfidence:        s.getFloat(keyMinConfidence, d.Audit.MinConfidence),
			SOPFile:              s.getString(keySOPFile, d.Audit.SOPFile),
			StageRetries:         s.getInt(keyStageRetries, d.Audit.StageRetries),
			ProgressRetention:    s.getInt(keyProgressRetention, d.Audit.ProgressRetention),
			LLMRequestsPerSecond: s.getFloat(keyLLMRate, d.Audit.LLMRequestsPerSecond),
		},
	}

	if err := s.applyEnv(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// applyEnv overlays environment variables. Provider API keys from the
// environment only fill keys the config file leaves empty.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) error {
	setString := func(env string, dst *string) {
		if v, ok := s.lookupEnv(env); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(env string, dst *int) error {
		v, ok := s.lookupEnv(env)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", env, err)
		}
		*dst = n
		return nil
	}
	setFloat := func(env string, dst *float64) error {
		v, ok := s.lookupEnv(env)
		if !ok || v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", env, err)
		}
		*dst = f
		return nil
	}

	setString(envLandingDir, &settings.Storage.LandingDir)
	setString(envDataDir, &settings.Storage.DataDir)
	setString(envSOPFile, &settings.Audit.SOPFile)
	setString(envDatabaseURL, &settings.Storage.PostgresURL)
	setString(envLLMModel, &settings.LLM.Model)
	setString(envLLMBaseURL, &settings.LLM.BaseURL)
	setString(envEmbedModel, &settings.Embedding.Model)
	setString(envEmbedBaseURL, &settings.Embedding.BaseURL)

	if v, ok := s.lookupEnv(envBackend); ok && v != "" {
		b := domain.KnowledgeBackend(v)
		if !b.IsValid() {
			return fmt.Errorf("%s: unknown backend %q", envBackend, v)
		}
		settings.Storage.Backend = b
	}
	if v, ok := s.lookupEnv(envLLMProvider); ok && v != "" {
		p := domain.AIProvider(v)
		if !p.IsValid() {
			return fmt.Errorf("%s: unknown provider %q", envLLMProvider, v)
		}
		settings.LLM.Provider = p
	}
	if v, ok := s.lookupEnv(envEmbedProvider); ok && v != "" {
		p := domain.AIProvider(v)
		if !p.IsValid() {
			return fmt.Errorf("%s: unknown provider %q", envEmbedProvider, v)
		}
		settings.Embedding.Provider = p
	}
	if v, ok := s.lookupEnv(envPollInterval); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envPollInterval, err)
		}
		settings.Ingestion.PollInterval = d
	}

	for env, dst := range map[string]*int{
		envHistoryWindow:   &settings.Audit.HistoryWindowDays,
		envChunkMaxTokens:  &settings.Chunker.MaxTokens,
		envStageRetries:    &settings.Audit.StageRetries,
		envProgressRetain:  &settings.Audit.ProgressRetention,
		envLockMaxRetries:  &settings.Ingestion.LockMaxRetries,
		envIndexMaxRetries: &settings.Ingestion.IndexMaxRetries,
	} {
		if err := setInt(env, dst); err != nil {
			return err
		}
	}
	if err := setFloat(envMinConfidence, &settings.Audit.MinConfidence); err != nil {
		return err
	}
	if err := setFloat(envLLMRate, &settings.Audit.LLMRequestsPerSecond); err != nil {
		return err
	}

	s.applyKeyEnv(settings)
	return nil
}

func (s *SettingsService) applyKeyEnv(settings *domain.AppSettings) {
	keyFor := func(p domain.AIProvider) string {
		var env string
		switch p {
		case domain.AIProviderOpenAI:
			env = envOpenAIKey
		case domain.AIProviderAnthropic:
			env = envAnthropicKey
		default:
			return ""
		}
		v, _ := s.lookupEnv(env)
		return v
	}
	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = keyFor(settings.Embedding.Provider)
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = keyFor(settings.LLM.Provider)
	}
}

// Save persists application settings. API keys are only written when set.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLandingDir, settings.Storage.LandingDir},
		{keyDataDir, settings.Storage.DataDir},
		{keyBackend, string(settings.Storage.Backend)},
		{keyPostgresURL, settings.Storage.PostgresURL},
		{keyBreakerFailures, settings.Storage.BreakerFailures},
		{keyBreakerCooldown, settings.Storage.BreakerCooldown},
		{keyPollInterval, settings.Ingestion.PollInterval},
		{keyQueueSize, settings.Ingestion.QueueSize},
		{keyLockMaxRetries, settings.Ingestion.LockMaxRetries},
		{keyLockInitialBackoff, settings.Ingestion.LockInitialBackoff},
		{keyLockMaxBackoff, settings.Ingestion.LockMaxBackoff},
		{keyIndexMaxRetries, settings.Ingestion.IndexMaxRetries},
		{keyChunkerStrategy, settings.Chunker.Strategy},
		{keyChunkerWindow, settings.Chunker.WindowSentences},
		{keyChunkerMaxTokens, settings.Chunker.MaxTokens},
		{keyChunkerSensitivity, settings.Chunker.Sensitivity},
		{keyPolicyTopK, settings.Audit.PolicyTopK},
		{keyHistoryTopK, settings.Audit.HistoryTopK},
		{keyHistoryWindowDays, settings.Audit.HistoryWindowDays},
		{keyMinConfidence, settings.Audit.MinConfidence},
		{keySOPFile, settings.Audit.SOPFile},
		{keyStageRetries, settings.Audit.StageRetries},
		{keyProgressRetention, settings.Audit.ProgressRetention},
		{keyLLMRate, settings.Audit.LLMRequestsPerSecond},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if settings.LLM.APIKey != "" {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}
	return s.configStore.Save()
}

// SetEmbeddingProvider configures the embedding provider.
// Switching provider changes vector dimensions, so existing collections
// must be re-indexed afterwards.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() || provider == domain.AIProviderAnthropic {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}
	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.Embedding.BaseURL = ""
	}
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if provider == "" {
		settings, err := s.Get()
		if err != nil {
			return err
		}
		settings.LLM = domain.LLMSettings{}
		return s.Save(settings)
	}
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	if model != "" {
		settings.LLM.Model = model
	} else if defaultModel, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = defaultModel
	}
	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.LLM.BaseURL = ""
	}
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that the settings can run ingestion and audits.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("embedding provider %q is not configured", settings.Embedding.Provider)
	}
	if settings.LLM.Provider != "" && !settings.LLM.IsConfigured() {
		return fmt.Errorf("llm provider %q is missing an API key", settings.LLM.Provider)
	}
	if settings.Storage.LandingDir == "" {
		return domain.NewValidationError("storage.landing_dir", "must be set")
	}
	if !settings.Storage.Backend.IsValid() {
		return domain.NewValidationError("storage.backend", fmt.Sprintf("unknown backend %q", settings.Storage.Backend))
	}
	if settings.Storage.Backend == domain.KnowledgeBackendPGVector && settings.Storage.PostgresURL == "" {
		return domain.NewValidationError("storage.postgres_url", "required for the pgvector backend")
	}
	if settings.Ingestion.PollInterval <= 0 {
		return domain.NewValidationError("ingestion.poll_interval", "must be positive")
	}
	if settings.Ingestion.LockMaxRetries <= 0 || settings.Ingestion.IndexMaxRetries <= 0 {
		return domain.NewValidationError("ingestion", "retry limits must be positive")
	}
	if settings.Chunker.MaxTokens <= 0 || settings.Chunker.WindowSentences <= 0 {
		return domain.NewValidationError("chunker", "max_tokens and window_sentences must be positive")
	}
	if settings.Audit.MinConfidence < 0 || settings.Audit.MinConfidence > 1 {
		return domain.NewValidationError("audit.min_confidence", "must be between 0 and 1")
	}
	if settings.Audit.PolicyTopK <= 0 || settings.Audit.HistoryTopK <= 0 {
		return domain.NewValidationError("audit", "top_k values must be positive")
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if settings.LLM.Provider == "" {
		return nil
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetDuration(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.KnowledgeBackend) domain.KnowledgeBackend {
	val := domain.KnowledgeBackend(s.configStore.GetString(keyBackend))
	if !val.IsValid() {
		return defaultVal
	}
	return val
}
