package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderLocal is the built-in hashing embedder. It needs no network.
	AIProviderLocal AIProvider = "local"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGemini is Google Gemini cloud API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderLocal, AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderLocal
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderLocal:
		return "Local (hashing embedder, offline)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderGemini:
		return "Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// APIKeyEnv returns the environment variable consulted when no key is configured.
func (p AIProvider) APIKeyEnv() string {
	switch p {
	case AIProviderOpenAI:
		return "OPENAI_API_KEY"
	case AIProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case AIProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// SplitMode is the preferred chunk boundary.
type SplitMode string

// Chunk boundary preferences, strongest first.
const (
	SplitParagraph SplitMode = "paragraph"
	SplitSentence  SplitMode = "sentence"
	SplitHard      SplitMode = "hard"
)

// IsValid returns true if the split mode is recognised.
func (m SplitMode) IsValid() bool {
	return m == SplitParagraph || m == SplitSentence || m == SplitHard
}

// ChunkingSettings holds chunker configuration.
type ChunkingSettings struct {
	// MaxChunkSize is the largest chunk in bytes.
	MaxChunkSize int

	// Overlap is the number of bytes shared between consecutive chunks.
	Overlap int

	// SplitOn is the preferred boundary.
	SplitOn SplitMode
}

// Validate fails with ErrInvalidConfig on unusable settings.
func (c ChunkingSettings) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: max_chunk_size must be positive, got %d", ErrInvalidConfig, c.MaxChunkSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, c.Overlap)
	}
	if c.Overlap >= c.MaxChunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than max_chunk_size %d",
			ErrInvalidConfig, c.Overlap, c.MaxChunkSize)
	}
	if c.SplitOn != "" && !c.SplitOn.IsValid() {
		return fmt.Errorf("%w: split_on %q", ErrInvalidConfig, c.SplitOn)
	}
	return nil
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI and Gemini).
	APIKey string

	// Dimensions is the vector size. Only the local provider honours it directly.
	Dimensions int

	// BatchSize is the number of chunks sent per EmbedBatch call.
	BatchSize int

	// RatePerSecond caps provider calls. Zero disables the limiter.
	RatePerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
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

	// APIKey is the API key (for OpenAI/Anthropic/Gemini).
	APIKey string

	// RatePerSecond caps provider calls. Zero disables the limiter.
	RatePerSecond float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Provider == AIProviderLocal {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RetrievalSettings controls the retriever and synthesizer thresholds.
type RetrievalSettings struct {
	// TopK is used when a caller passes k <= 0.
	TopK int

	// MinScore drops chunks below this similarity before prompting.
	MinScore float64
}

// SynthesisSettings controls prompt assembly.
type SynthesisSettings struct {
	// MaxContextChars bounds the chunk text placed in a prompt.
	MaxContextChars int

	// HistoryTurns is how many prior turns are replayed.
	HistoryTurns int
}

// IngestionSettings controls the ingestion pipeline.
type IngestionSettings struct {
	DuplicatePolicy DuplicatePolicy
}

// TimeoutSettings bounds every external collaborator call.
type TimeoutSettings struct {
	Extractor time.Duration
	Embedder  time.Duration
	LLM       time.Duration
	Index     time.Duration
}

// StorageSettings selects the persistence backend.
type StorageSettings struct {
	// Backend is "sqlite" or "memory".
	Backend string

	// DataDir holds the SQLite database.
	DataDir string
}

// LeaseSettings selects how per-filing writes are serialised.
type LeaseSettings struct {
	// Backend is "memory" or "redis".
	Backend string

	// RedisAddr is host:port for the redis backend.
	RedisAddr string

	// TTL is how long a lease survives without release.
	TTL time.Duration

	// Poll is the retry interval while waiting for a held lease.
	Poll time.Duration
}

// BreakerSettings configures the circuit breakers around AI providers.
type BreakerSettings struct {
	// Failures is the consecutive failure count that opens the breaker.
	Failures int

	// Cooldown is how long the breaker stays open.
	Cooldown time.Duration
}

// AppSettings holds all application settings.
type AppSettings struct {
	Chunking  ChunkingSettings
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Retrieval RetrievalSettings
	Synthesis SynthesisSettings
	Ingestion IngestionSettings
	Timeouts  TimeoutSettings
	Storage   StorageSettings
	Lease     LeaseSettings
	Breaker   BreakerSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// The local embedder works offline; answering needs an LLM provider.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Chunking: ChunkingSettings{
			MaxChunkSize: 1500,
			Overlap:      200,
			SplitOn:      SplitParagraph,
		},
		Embedding: EmbeddingSettings{
			Provider:   AIProviderLocal,
			Dimensions: 384,
			BatchSize:  16,
		},
		LLM: LLMSettings{
			Provider: AIProviderOllama,
			Model:    DefaultLLMModels()[AIProviderOllama],
		},
		Retrieval: RetrievalSettings{
			TopK:     5,
			MinScore: 0,
		},
		Synthesis: SynthesisSettings{
			MaxContextChars: 12000,
			HistoryTurns:    6,
		},
		Ingestion: IngestionSettings{
			DuplicatePolicy: DuplicateReject,
		},
		Timeouts: TimeoutSettings{
			Extractor: 60 * time.Second,
			Embedder:  30 * time.Second,
			LLM:       120 * time.Second,
			Index:     10 * time.Second,
		},
		Storage: StorageSettings{
			Backend: "sqlite",
		},
		Lease: LeaseSettings{
			Backend: "memory",
			TTL:     2 * time.Minute,
			Poll:    100 * time.Millisecond,
		},
		Breaker: BreakerSettings{
			Failures: 5,
			Cooldown: 30 * time.Second,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderLocal,
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderGemini,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderLocal:  "hash-ngram",
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "text-embedding-004",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
		AIProviderGemini:    "gemini-1.5-flash",
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
		// Gemini models
		"text-embedding-004": 768,
	}
}

// PipelineConfig holds chunk pipeline configuration.
// Uses generic map-based config for extensibility - new processors can be added
// without modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	// Key is processor name, value is processor-specific config.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// PipelineConfigFor builds the chunk pipeline from chunking settings.
func PipelineConfigFor(c ChunkingSettings) PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker", "sections"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": c.MaxChunkSize,
				"overlap":    c.Overlap,
				"split_on":   string(c.SplitOn),
			},
		},
	}
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfigFor(DefaultAppSettings().Chunking)
}
