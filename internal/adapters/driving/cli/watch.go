package cli

import (
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tenk/internal/adapters/driving/watch"
)

var (
	watchReplace  bool
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [inbox-dir]",
	Short: "Ingest filings dropped into a directory",
	Long: `Watches a directory and imports every file named TICKER_YEAR_Qn.ext,
for example AAPL_2023_Q4.pdf or msft-2022-q4.html. Files already present
are imported at start. Other names are logged and skipped.

Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchReplace, "replace", false, "replace filings that were already imported")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before a changed file is imported")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := outputStyles(cmd)
	var mu sync.Mutex
	w := watch.New(args[0], ingestionService, watch.Options{
		Debounce: watchDebounce,
		Replace:  watchReplace,
		OnResult: func(r watch.Result) {
			mu.Lock()
			defer mu.Unlock()
			if r.Err != nil {
				cmd.Printf("%s %s: %v\n", st.Error("✗"), r.Path, r.Err)
				return
			}
			cmd.Printf("%s %s -> %s (%d chunks)\n", st.Success("✓"), r.Path, r.Document.Key(), r.Document.ChunkCount)
		},
	})

	cmd.Printf("Watching %s (Ctrl-C to stop)\n", args[0])
	return w.Run(ctx)
}
