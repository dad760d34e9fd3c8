package services

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
	"github.com/custodia-labs/tenk/internal/core/ports/driving"
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
	keyEmbedDims     = "embedding.dimensions"
	keyLLMProvider   = "llm.provider"
	keyLLMModel      = "llm.model"
	keyLLMBaseURL    = "llm.base_url"
	keyLLMAPIKey     = "llm.api_key"
)

// setting binds one dotted config key to a field of domain.AppSettings.
type setting struct {
	key string

	// load copies the stored value into s. Unparseable values are ignored
	// so the default stays in place.
	load func(store driven.ConfigStore, s *domain.AppSettings)

	// parse sets the field from user input.
	parse func(s *domain.AppSettings, raw string) error

	// value returns what Save persists.
	value func(s *domain.AppSettings) any

	// secret values are only written when non-empty.
	secret bool
}

func stringSetting(key string, field func(*domain.AppSettings) *string) setting {
	return setting{
		key: key,
		load: func(store driven.ConfigStore, s *domain.AppSettings) {
			*field(s) = store.GetString(key)
		},
		parse: func(s *domain.AppSettings, raw string) error {
			*field(s) = strings.TrimSpace(raw)
			return nil
		},
		value: func(s *domain.AppSettings) any { return *field(s) },
	}
}

func secretSetting(key string, field func(*domain.AppSettings) *string) setting {
	st := stringSetting(key, field)
	st.secret = true
	return st
}

func enumSetting[T ~string](key string, field func(*domain.AppSettings) *T, valid func(T) bool) setting {
	return setting{
		key: key,
		load: func(store driven.ConfigStore, s *domain.AppSettings) {
			if v := T(store.GetString(key)); valid(v) {
				*field(s) = v
			}
		},
		parse: func(s *domain.AppSettings, raw string) error {
			v := T(strings.ToLower(strings.TrimSpace(raw)))
			if !valid(v) {
				return fmt.Errorf("%w: %s: unknown value %q", domain.ErrInvalidConfig, key, raw)
			}
			*field(s) = v
			return nil
		},
		value: func(s *domain.AppSettings) any { return string(*field(s)) },
	}
}

func intSetting(key string, field func(*domain.AppSettings) *int) setting {
	return setting{
		key: key,
		load: func(store driven.ConfigStore, s *domain.AppSettings) {
			*field(s) = store.GetInt(key)
		},
		parse: func(s *domain.AppSettings, raw string) error {
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("%w: %s: %q is not an integer", domain.ErrInvalidConfig, key, raw)
			}
			*field(s) = n
			return nil
		},
		value: func(s *domain.AppSettings) any { return *field(s) },
	}
}

func floatSetting(key string, field func(*domain.AppSettings) *float64) setting {
	return setting{
		key: key,
		load: func(store driven.ConfigStore, s *domain.AppSettings) {
			*field(s) = store.GetFloat(key)
		},
		parse: func(s *domain.AppSettings, raw string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return fmt.Errorf("%w: %s: %q is not a number", domain.ErrInvalidConfig, key, raw)
			}
			*field(s) = f
			return nil
		},
		value: func(s *domain.AppSettings) any { return *field(s) },
	}
}

func durationSetting(key string, field func(*domain.AppSettings) *time.Duration) setting {
	return setting{
		key: key,
		load: func(store driven.ConfigStore, s *domain.AppSettings) {
			if d := store.GetDuration(key); d > 0 {
				*field(s) = d
			}
		},
		parse: func(s *domain.AppSettings, raw string) error {
			d, err := time.ParseDuration(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("%w: %s: %q is not a duration", domain.ErrInvalidConfig, key, raw)
			}
			*field(s) = d
			return nil
		},
		value: func(s *domain.AppSettings) any { return (*field(s)).String() },
	}
}

func validProvider(p domain.AIProvider) bool { return p.IsValid() }

// settingsTable lists every recognised key in display order.
var settingsTable = []setting{
	intSetting("chunking.max_chunk_size", func(s *domain.AppSettings) *int { return &s.Chunking.MaxChunkSize }),
	intSetting("chunking.overlap", func(s *domain.AppSettings) *int { return &s.Chunking.Overlap }),
	enumSetting("chunking.split_on", func(s *domain.AppSettings) *domain.SplitMode { return &s.Chunking.SplitOn },
		domain.SplitMode.IsValid),

	enumSetting(keyEmbedProvider, func(s *domain.AppSettings) *domain.AIProvider { return &s.Embedding.Provider },
		validProvider),
	stringSetting(keyEmbedModel, func(s *domain.AppSettings) *string { return &s.Embedding.Model }),
	stringSetting(keyEmbedBaseURL, func(s *domain.AppSettings) *string { return &s.Embedding.BaseURL }),
	secretSetting(keyEmbedAPIKey, func(s *domain.AppSettings) *string { return &s.Embedding.APIKey }),
	intSetting(keyEmbedDims, func(s *domain.AppSettings) *int { return &s.Embedding.Dimensions }),
	intSetting("embedding.batch_size", func(s *domain.AppSettings) *int { return &s.Embedding.BatchSize }),
	floatSetting("embedding.rate_per_second", func(s *domain.AppSettings) *float64 {
		return &s.Embedding.RatePerSecond
	}),

	enumSetting(keyLLMProvider, func(s *domain.AppSettings) *domain.AIProvider { return &s.LLM.Provider },
		validProvider),
	stringSetting(keyLLMModel, func(s *domain.AppSettings) *string { return &s.LLM.Model }),
	stringSetting(keyLLMBaseURL, func(s *domain.AppSettings) *string { return &s.LLM.BaseURL }),
	secretSetting(keyLLMAPIKey, func(s *domain.AppSettings) *string { return &s.LLM.APIKey }),
	floatSetting("llm.rate_per_second", func(s *domain.AppSettings) *float64 { return &s.LLM.RatePerSecond }),

	intSetting("retrieval.top_k", func(s *domain.AppSettings) *int { return &s.Retrieval.TopK }),
	floatSetting("retrieval.min_score", func(s *domain.AppSettings) *float64 { return &s.Retrieval.MinScore }),

	intSetting("synthesis.max_context_chars", func(s *domain.AppSettings) *int {
		return &s.Synthesis.MaxContextChars
	}),
	intSetting("synthesis.history_turns", func(s *domain.AppSettings) *int { return &s.Synthesis.HistoryTurns }),

	enumSetting("ingestion.duplicate_policy", func(s *domain.AppSettings) *domain.DuplicatePolicy {
		return &s.Ingestion.DuplicatePolicy
	}, domain.DuplicatePolicy.IsValid),

	durationSetting("timeouts.extractor", func(s *domain.AppSettings) *time.Duration { return &s.Timeouts.Extractor }),
	durationSetting("timeouts.embedder", func(s *domain.AppSettings) *time.Duration { return &s.Timeouts.Embedder }),
	durationSetting("timeouts.llm", func(s *domain.AppSettings) *time.Duration { return &s.Timeouts.LLM }),
	durationSetting("timeouts.index", func(s *domain.AppSettings) *time.Duration { return &s.Timeouts.Index }),

	stringSetting("storage.backend", func(s *domain.AppSettings) *string { return &s.Storage.Backend }),
	stringSetting("storage.data_dir", func(s *domain.AppSettings) *string { return &s.Storage.DataDir }),

	stringSetting("lease.backend", func(s *domain.AppSettings) *string { return &s.Lease.Backend }),
	stringSetting("lease.redis_addr", func(s *domain.AppSettings) *string { return &s.Lease.RedisAddr }),
	durationSetting("lease.ttl", func(s *domain.AppSettings) *time.Duration { return &s.Lease.TTL }),
	durationSetting("lease.poll", func(s *domain.AppSettings) *time.Duration { return &s.Lease.Poll }),

	intSetting("breaker.failures", func(s *domain.AppSettings) *int { return &s.Breaker.Failures }),
	durationSetting("breaker.cooldown", func(s *domain.AppSettings) *time.Duration { return &s.Breaker.Cooldown }),
}

func lookupSetting(key string) (setting, bool) {
	for _, st := range settingsTable {
		if st.key == key {
			return st, true
		}
	}
	return setting{}, false
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
// aiValidator is optional; without it provider checks are skipped.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings. Stored keys override the
// defaults, and empty API keys fall back to the provider's environment variable.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := domain.DefaultAppSettings()

	for _, st := range settingsTable {
		if _, exists := s.configStore.Get(st.key); exists {
			st.load(s.configStore, &settings)
		}
	}

	if settings.Embedding.APIKey == "" {
		if env := settings.Embedding.Provider.APIKeyEnv(); env != "" {
			settings.Embedding.APIKey = s.getenv(env)
		}
	}
	if settings.LLM.APIKey == "" {
		if env := settings.LLM.Provider.APIKeyEnv(); env != "" {
			settings.LLM.APIKey = s.getenv(env)
		}
	}

	return &settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if settings == nil {
		return fmt.Errorf("%w: settings are nil", domain.ErrInvalidInput)
	}
	for _, st := range settingsTable {
		val := st.value(settings)
		if st.secret && val == "" {
			continue
		}
		if err := s.configStore.Set(st.key, val); err != nil {
			return fmt.Errorf("save %s: %w", st.key, err)
		}
	}
	return nil
}

// Set updates one dotted key. The value is parsed and the resulting
// settings validated before anything is stored.
func (s *SettingsService) Set(key, value string) error {
	st, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := st.parse(settings, value); err != nil {
		return err
	}
	if err := validateSettings(settings); err != nil {
		return err
	}

	if err := s.configStore.Set(key, st.value(settings)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys returns every recognised key.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingsTable))
	for _, st := range settingsTable {
		keys = append(keys, st.key)
	}
	return keys
}

// Values returns every key with its effective value. API keys are masked.
func (s *SettingsService) Values() (map[string]string, error) {
	settings, err := s.Get()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(settingsTable))
	for _, st := range settingsTable {
		val := fmt.Sprint(st.value(settings))
		if st.secret && val != "" {
			val = maskSecret(val)
		}
		out[st.key] = val
	}
	return out, nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidConfig, provider)
	}
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidConfig, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if apiKey == "" && provider.RequiresAPIKey() {
		apiKey = s.getenv(provider.APIKeyEnv())
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidConfig, provider)
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	if provider == domain.AIProviderOllama {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Embedding.Dimensions = d
	}

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid LLM provider: %s", domain.ErrInvalidConfig, provider)
	}
	if !slices.Contains(domain.AllLLMProviders(), provider) {
		return fmt.Errorf("%w: provider %s cannot answer questions", domain.ErrInvalidConfig, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if apiKey == "" && provider.RequiresAPIKey() {
		apiKey = s.getenv(provider.APIKeyEnv())
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidConfig, provider)
	}

	settings.LLM.Provider = provider

	if model != "" {
		settings.LLM.Model = model
	} else {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
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

// Validate checks the stored settings.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return validateSettings(settings)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig(ctx context.Context) error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(ctx, &settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig(ctx context.Context) error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(ctx, &settings.LLM)
}

// validateSettings rejects settings the services cannot run with.
// A missing LLM is allowed; only answering needs one.
func validateSettings(s *domain.AppSettings) error {
	if err := s.Chunking.Validate(); err != nil {
		return err
	}

	if !s.Embedding.IsConfigured() {
		if s.Embedding.Provider.RequiresAPIKey() && s.Embedding.Provider != domain.AIProviderAnthropic {
			return fmt.Errorf("%w: embedding provider %s needs an API key (config or %s)",
				domain.ErrInvalidConfig, s.Embedding.Provider, s.Embedding.Provider.APIKeyEnv())
		}
		return fmt.Errorf("%w: embedding provider %q cannot produce embeddings",
			domain.ErrInvalidConfig, s.Embedding.Provider)
	}
	if s.Embedding.BatchSize <= 0 {
		return fmt.Errorf("%w: embedding.batch_size must be positive", domain.ErrInvalidConfig)
	}
	if s.Embedding.Dimensions < 0 {
		return fmt.Errorf("%w: embedding.dimensions must not be negative", domain.ErrInvalidConfig)
	}
	if s.Embedding.RatePerSecond < 0 || s.LLM.RatePerSecond < 0 {
		return fmt.Errorf("%w: rate_per_second must not be negative", domain.ErrInvalidConfig)
	}

	if s.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: retrieval.top_k must be positive", domain.ErrInvalidConfig)
	}
	if s.Retrieval.MinScore < -1 || s.Retrieval.MinScore > 1 {
		return fmt.Errorf("%w: retrieval.min_score must lie in [-1, 1]", domain.ErrInvalidConfig)
	}
	if s.Synthesis.MaxContextChars <= 0 {
		return fmt.Errorf("%w: synthesis.max_context_chars must be positive", domain.ErrInvalidConfig)
	}
	if s.Synthesis.HistoryTurns < 0 {
		return fmt.Errorf("%w: synthesis.history_turns must not be negative", domain.ErrInvalidConfig)
	}

	if !s.Ingestion.DuplicatePolicy.IsValid() {
		return fmt.Errorf("%w: ingestion.duplicate_policy %q", domain.ErrInvalidConfig, s.Ingestion.DuplicatePolicy)
	}

	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"timeouts.extractor", s.Timeouts.Extractor},
		{"timeouts.embedder", s.Timeouts.Embedder},
		{"timeouts.llm", s.Timeouts.LLM},
		{"timeouts.index", s.Timeouts.Index},
		{"lease.ttl", s.Lease.TTL},
		{"lease.poll", s.Lease.Poll},
	} {
		if d.val <= 0 {
			return fmt.Errorf("%w: %s must be positive", domain.ErrInvalidConfig, d.name)
		}
	}

	switch s.Storage.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("%w: storage.backend %q (want sqlite or memory)", domain.ErrInvalidConfig, s.Storage.Backend)
	}

	switch s.Lease.Backend {
	case "memory":
	case "redis":
		if s.Lease.RedisAddr == "" {
			return fmt.Errorf("%w: lease.redis_addr is required for the redis backend", domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: lease.backend %q (want memory or redis)", domain.ErrInvalidConfig, s.Lease.Backend)
	}

	if s.Breaker.Failures < 0 {
		return fmt.Errorf("%w: breaker.failures must not be negative", domain.ErrInvalidConfig)
	}
	return nil
}

func maskSecret(v string) string {
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}
