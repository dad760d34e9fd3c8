package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

// scopeFlags selects the filings a query runs against.
type scopeFlags struct {
	tickers []string
	filings []string
	k       int
	json    bool
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.tickers, "ticker", "t", nil, "ticker to search (repeatable, or comma separated)")
	cmd.Flags().StringSliceVarP(&f.filings, "filing", "f", nil, `filing period to search, e.g. "2023 Q4" (repeatable)`)
	cmd.Flags().IntVarP(&f.k, "top", "k", 0, "number of passages to retrieve (default from settings)")
	cmd.Flags().BoolVar(&f.json, "json", false, "output as JSON")
}

func (f *scopeFlags) filter() (domain.QueryFilter, error) {
	filter, err := domain.NewQueryFilter(f.tickers, f.filings)
	if err != nil {
		return domain.QueryFilter{}, err
	}
	if err := filter.Validate(); err != nil {
		return domain.QueryFilter{}, fmt.Errorf("%w: pass at least one --ticker and one --filing", err)
	}
	return filter, nil
}

var (
	askFlags      scopeFlags
	askPreset     string
	retrieveFlags scopeFlags
)

// askPresets are canned questions for a first pass over a filing.
var askPresets = map[string]string{
	"mdna":  "Summarize the Management Discussion and Analysis section.",
	"risks": "Identify and list the top 3 risk factors mentioned.",
	"yoy":   "Compare key financial metrics year-over-year based on the latest two filings.",
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from selected filings",
	Long: `Retrieves the passages most relevant to the question from the selected
filings and asks the configured LLM to answer from them. The answer lists
the passages it was given as numbered citations.

Instead of a question, --preset runs a canned one:
  mdna   summarize Management's Discussion and Analysis
  risks  list the top 3 risk factors
  yoy    compare key metrics year-over-year across the latest two filings

Examples:
  tenk ask "How did iPhone revenue change?" --ticker AAPL --filing "2023 Q4"
  tenk ask --preset yoy -t AAPL -f "2023 Q4" -f "2022 Q4"`,
	RunE: runAsk,
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Show the passages a question would be answered from",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRetrieve,
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "List the tickers and filing periods that can be queried",
	RunE:  runContext,
}

func init() {
	askFlags.register(askCmd)
	askCmd.Flags().StringVarP(&askPreset, "preset", "p", "", "ask a canned question: mdna, risks or yoy")
	retrieveFlags.register(retrieveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(contextCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if retrieverService == nil {
		return errors.New("retrieval service not configured")
	}
	if answerService == nil {
		return errors.New("answer service not configured")
	}

	question, err := askQuestion(args, askPreset)
	if err != nil {
		return err
	}

	filter, err := askFlags.filter()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)

	result, err := retrieverService.Retrieve(ctx, question, filter, askFlags.k)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	answer, err := answerService.Synthesize(ctx, question, result, nil)
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}

	if askFlags.json {
		return printJSON(cmd, answer)
	}
	printAnswer(cmd, answer)
	return nil
}

// askQuestion takes the question from args or from a preset, never both.
func askQuestion(args []string, preset string) (string, error) {
	if preset == "" {
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return "", errors.New("ask needs a question or --preset")
		}
		return question, nil
	}
	if len(args) > 0 {
		return "", errors.New("pass either a question or --preset, not both")
	}
	question, ok := askPresets[strings.ToLower(preset)]
	if !ok {
		return "", fmt.Errorf("unknown preset %q (want one of %s)",
			preset, strings.Join(slices.Sorted(maps.Keys(askPresets)), ", "))
	}
	return question, nil
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if retrieverService == nil {
		return errors.New("retrieval service not configured")
	}

	filter, err := retrieveFlags.filter()
	if err != nil {
		return err
	}

	result, err := retrieverService.Retrieve(commandContext(cmd), strings.Join(args, " "), filter, retrieveFlags.k)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if retrieveFlags.json {
		return printJSON(cmd, result)
	}

	if len(result.Chunks) == 0 {
		cmd.Println("No matching passages.")
		return nil
	}

	st := outputStyles(cmd)
	for i, c := range result.Chunks {
		header := fmt.Sprintf("[%d] %s", i+1, c.Source())
		if c.Chunk.Section != "" {
			header += " - " + c.Chunk.Section
		}
		cmd.Printf("%s %s\n", st.Label(header), st.Muted(fmt.Sprintf("(%.3f)", c.Score)))
		cmd.Printf("    %s\n\n", snippetLine(c.Chunk.Content, 300))
	}
	return nil
}

func runContext(cmd *cobra.Command, _ []string) error {
	if retrieverService == nil {
		return errors.New("retrieval service not configured")
	}

	opts, err := retrieverService.ContextOptions(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to load context options: %w", err)
	}

	if len(opts.Tickers) == 0 {
		cmd.Println("No indexed filings. Run 'tenk import' first.")
		return nil
	}

	st := outputStyles(cmd)
	cmd.Printf("%s %s\n", st.Label("Tickers:"), strings.Join(opts.Tickers, ", "))
	periods := make([]string, len(opts.Periods))
	for i, p := range opts.Periods {
		periods[i] = p.String()
	}
	cmd.Printf("%s %s\n", st.Label("Filings:"), strings.Join(periods, ", "))
	return nil
}

func printAnswer(cmd *cobra.Command, answer *domain.Answer) {
	st := outputStyles(cmd)
	cmd.Println(answer.Text)
	if len(answer.Citations) == 0 {
		return
	}
	cmd.Println()
	cmd.Println(st.Title("Sources"))
	for i, c := range answer.Citations {
		line := fmt.Sprintf("  [%d] %s", i+1, c.Source)
		if c.Section != "" {
			line += " - " + c.Section
		}
		cmd.Println(line)
		cmd.Println(st.Muted("      " + c.Snippet))
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func describeFilter(filter domain.QueryFilter) string {
	periods := make([]string, len(filter.Periods))
	for i, p := range filter.Periods {
		periods[i] = p.String()
	}
	return strings.Join(filter.Tickers, ", ") + " (" + strings.Join(periods, ", ") + ")"
}

// snippetLine flattens whitespace and truncates to n runes.
func snippetLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
