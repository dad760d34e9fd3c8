// Package cli provides the tenk command line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tenk/internal/core/ports/driving"
	"github.com/custodia-labs/tenk/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services holds the driving ports the commands call.
type Services struct {
	Ingestion     driving.IngestionService
	KnowledgeBase driving.KnowledgeBase
	Retriever     driving.Retriever
	Answer        driving.AnswerSynthesizer
	Chat          driving.ChatService
	Settings      driving.SettingsService
}

// BootstrapOptions tells the bootstrap what the command needs.
type BootstrapOptions struct {
	// ConfigDir is the --config-dir flag; empty means the default.
	ConfigDir string

	// SettingsOnly is set for commands that only read or change settings.
	// They must work while the rest of the configuration is broken.
	SettingsOnly bool
}

// BootstrapFunc builds the services. The returned cleanup is called once
// the command finishes.
type BootstrapFunc func(ctx context.Context, opts BootstrapOptions) (*Services, func(), error)

var (
	ingestionService driving.IngestionService
	kbService        driving.KnowledgeBase
	retrieverService driving.Retriever
	answerService    driving.AnswerSynthesizer
	chatService      driving.ChatService
	settingsService  driving.SettingsService

	bootstrap BootstrapFunc
	cleanup   func()

	verbose   bool
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "tenk",
	Short: "Ask questions about 10-K filings",
	Long: `tenk ingests annual reports (PDF, HTML, Markdown or text), indexes them
for semantic retrieval, and answers questions grounded in the filings you
select, with citations back to the source passages.`,
	SilenceUsage:      true,
	PersistentPreRunE: initServices,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.tenk)")
}

// SetServices injects the services directly, bypassing the bootstrap.
func SetServices(s *Services) {
	ingestionService = s.Ingestion
	kbService = s.KnowledgeBase
	retrieverService = s.Retriever
	answerService = s.Answer
	chatService = s.Chat
	settingsService = s.Settings
}

// SetBootstrap registers the function that builds services on first use.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	defer func() {
		if cleanup != nil {
			cleanup()
			cleanup = nil
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

func initServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if cmd.Annotations[annotationNoServices] == "true" {
		return nil
	}
	if bootstrap == nil || settingsService != nil {
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svcs, done, err := bootstrap(ctx, BootstrapOptions{
		ConfigDir:    configDir,
		SettingsOnly: cmd.Annotations[annotationSettingsOnly] == "true",
	})
	if err != nil {
		return err
	}
	if svcs == nil {
		return errors.New("bootstrap returned no services")
	}
	SetServices(svcs)
	cleanup = done
	return nil
}

// Command annotations read by initServices.
const (
	annotationNoServices   = "tenk/no-services"
	annotationSettingsOnly = "tenk/settings-only"
)

func noServices() map[string]string {
	return map[string]string{annotationNoServices: "true"}
}

func settingsOnly() map[string]string {
	return map[string]string{annotationSettingsOnly: "true"}
}

// commandContext returns the command's context or a background one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
