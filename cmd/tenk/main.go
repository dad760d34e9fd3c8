// Command tenk is a question answering knowledge base over 10-K filings.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/tenk/internal/adapters/driven/ai"
	"github.com/custodia-labs/tenk/internal/adapters/driven/config/file"
	leasememory "github.com/custodia-labs/tenk/internal/adapters/driven/lease/memory"
	leaseredis "github.com/custodia-labs/tenk/internal/adapters/driven/lease/redis"
	"github.com/custodia-labs/tenk/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/tenk/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/tenk/internal/adapters/driving/cli"
	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
	"github.com/custodia-labs/tenk/internal/core/services"
	"github.com/custodia-labs/tenk/internal/extractors"
	"github.com/custodia-labs/tenk/internal/logger"
	"github.com/custodia-labs/tenk/internal/postprocessors"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

// leasePrefix namespaces lease keys in a shared redis.
const leasePrefix = "tenk:lease:"

func main() {
	// A .env file is optional; provider API keys usually come from it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("loading .env: %v", err)
	}

	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// closers runs cleanups in reverse order.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// bootstrap wires the adapters selected by the stored settings.
func bootstrap(ctx context.Context, opts cli.BootstrapOptions) (*cli.Services, func(), error) {
	configDir := opts.ConfigDir
	if configDir == "" {
		dir, err := file.DefaultConfigDir()
		if err != nil {
			return nil, nil, err
		}
		configDir = dir
	}

	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("config store: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	if opts.SettingsOnly {
		return &cli.Services{Settings: settingsService}, func() {}, nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("load settings: %w", err)
	}

	var cleanup closers
	fail := func(err error) (*cli.Services, func(), error) {
		cleanup.run()
		return nil, nil, err
	}

	docStore, index, err := openStorage(settings.Storage, configDir, &cleanup)
	if err != nil {
		return fail(err)
	}

	leases, err := openLeases(ctx, settings.Lease, &cleanup)
	if err != nil {
		return fail(err)
	}

	aiServices, err := ai.Init(ctx, *settings)
	if err != nil {
		return fail(err)
	}
	cleanup.add(aiServices.Close)

	prompts, err := file.NewPromptStore(filepath.Join(configDir, "prompts"))
	if err != nil {
		return fail(fmt.Errorf("prompt store: %w", err))
	}

	pipeline, err := postprocessors.NewDefaultPipeline(settings.Chunking)
	if err != nil {
		return fail(err)
	}

	kb := services.NewKnowledgeBaseService(docStore, index, leases, *settings)
	ingestion := services.NewIngestionService(
		docStore, index, extractors.NewDefaultRegistry(), pipeline,
		aiServices.EmbeddingService, leases, kb, *settings,
	)
	retriever := services.NewRetrievalService(docStore, index, aiServices.EmbeddingService, *settings)

	svcs := &cli.Services{
		Ingestion:     ingestion,
		KnowledgeBase: kb,
		Retriever:     retriever,
		Settings:      settingsService,
	}
	// Without an LLM the answer ports stay nil and ask/chat report it.
	if aiServices.LLMService != nil {
		answer := services.NewAnswerService(aiServices.LLMService, prompts, *settings)
		svcs.Answer = answer
		svcs.Chat = services.NewChatService(retriever, answer, *settings)
	}

	logger.Debug("storage=%s lease=%s config=%s", settings.Storage.Backend, settings.Lease.Backend, configDir)
	return svcs, cleanup.run, nil
}

func openStorage(
	cfg domain.StorageSettings, configDir string, cleanup *closers,
) (driven.DocumentStore, driven.VectorIndex, error) {
	switch cfg.Backend {
	case "memory":
		logger.Warn("memory storage: filings are lost when the process exits")
		return memory.NewDocumentStore(), memory.NewVectorIndex(), nil
	case "", "sqlite":
		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir = filepath.Join(configDir, "data")
		}
		store, err := sqlite.NewStore(dataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		cleanup.add(func() {
			if err := store.Close(); err != nil {
				logger.Warn("closing store: %v", err)
			}
		})
		return store.DocumentStore(), store.VectorIndex(), nil
	default:
		return nil, nil, fmt.Errorf("%w: storage.backend %q", domain.ErrInvalidConfig, cfg.Backend)
	}
}

func openLeases(ctx context.Context, cfg domain.LeaseSettings, cleanup *closers) (driven.LeaseManager, error) {
	switch cfg.Backend {
	case "", "memory":
		return leasememory.NewManager(), nil
	case "redis":
		m, err := leaseredis.Dial(ctx, cfg.RedisAddr, leasePrefix)
		if err != nil {
			return nil, fmt.Errorf("open redis leases: %w", err)
		}
		cleanup.add(func() {
			if err := m.Close(); err != nil {
				logger.Warn("closing lease manager: %v", err)
			}
		})
		return m, nil
	default:
		return nil, fmt.Errorf("%w: lease.backend %q", domain.ErrInvalidConfig, cfg.Backend)
	}
}
