package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

var (
	importTicker  string
	importYear    int
	importQuarter string
	importReplace bool
	importPreview bool
	importJSON    bool
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Ingest a 10-K filing",
	Long: `Extracts the filing to Markdown, splits it into chunks, embeds them and
adds them to the index. PDF, HTML, Markdown and plain text are supported.

A filing is identified by ticker, year and quarter. Importing the same
filing twice fails unless --replace is given.

Examples:
  tenk import aapl-10k.pdf --ticker AAPL --year 2023 --quarter Q4
  tenk import msft.html --ticker MSFT --year 2022 --quarter 4 --replace
  tenk import nvda.pdf --ticker NVDA --year 2024 --quarter Q4 --preview`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importTicker, "ticker", "t", "", "company ticker symbol (required)")
	importCmd.Flags().IntVarP(&importYear, "year", "y", 0, "fiscal year (required)")
	importCmd.Flags().StringVarP(&importQuarter, "quarter", "q", "Q4", "fiscal quarter")
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "replace an existing filing with the same ticker and period")
	importCmd.Flags().BoolVar(&importPreview, "preview", false, "print the extracted Markdown without indexing")
	importCmd.Flags().BoolVar(&importJSON, "json", false, "output the resulting document as JSON")
	_ = importCmd.MarkFlagRequired("ticker")
	_ = importCmd.MarkFlagRequired("year")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	quarter, err := domain.ParseQuarter(importQuarter)
	if err != nil {
		return err
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	file := domain.RawFile{Filename: filepath.Base(path), Data: data}
	meta := domain.FilingMetadata{Ticker: importTicker, Year: importYear, Quarter: quarter}
	ctx := commandContext(cmd)

	if importPreview {
		draft, err := ingestionService.Preview(ctx, file, meta)
		if err != nil {
			return fmt.Errorf("preview failed: %w", err)
		}
		cmd.Println(draft.Markdown)
		return nil
	}

	st := outputStyles(cmd)
	opts := domain.IngestOptions{Progress: func(ev domain.IngestEvent) {
		if importJSON {
			return
		}
		cmd.Println(st.Muted(formatIngestEvent(ev)))
	}}
	if importReplace {
		opts.Policy = domain.DuplicateReplace
	}

	doc, err := ingestionService.Ingest(ctx, file, meta, opts)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return fmt.Errorf("%w (use --replace to overwrite it)", err)
		}
		return fmt.Errorf("import failed: %w", err)
	}

	if importJSON {
		out, err := json.MarshalIndent(doc.Summary(), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Printf("%s %s indexed as %s (%d chunks)\n",
		st.Success("✓"), doc.Key(), doc.ID, doc.ChunkCount)
	return nil
}

func formatIngestEvent(ev domain.IngestEvent) string {
	switch ev.Stage {
	case domain.StageEmbedded:
		return fmt.Sprintf("  embedded %d/%d chunks", ev.Done, ev.Total)
	case domain.StageChunked:
		return fmt.Sprintf("  chunked into %d chunks", ev.Chunks)
	case domain.StageFailed, domain.StageRolledBack:
		if ev.Err != nil {
			return fmt.Sprintf("  %s: %v", ev.Stage, ev.Err)
		}
		return "  " + string(ev.Stage)
	default:
		return "  " + string(ev.Stage)
	}
}
