package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

var documentCmd = &cobra.Command{
	Use:     "document",
	Aliases: []string{"doc"},
	Short:   "Manage ingested filings",
	Long:    `List, inspect, verify or delete ingested filings.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested filings",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show filing details and consistency counters",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentShow,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print the extracted Markdown",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentOriginalCmd = &cobra.Command{
	Use:   "original [doc-id] [output-file]",
	Short: "Save the originally uploaded file",
	Long:  `Writes the uploaded bytes to output-file, or to the original filename in the current directory.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runDocumentOriginal,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a filing and its vectors",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

var documentVerifyCmd = &cobra.Command{
	Use:   "verify [doc-id]",
	Short: "Check that a filing's chunks and vectors agree with its status",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentVerify,
}

var documentListJSON bool

func init() {
	documentListCmd.Flags().BoolVar(&documentListJSON, "json", false, "output as JSON")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentShowCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentOriginalCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	documentCmd.AddCommand(documentVerifyCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if kbService == nil {
		return errors.New("knowledge base service not configured")
	}

	docs, err := kbService.List(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if documentListJSON {
		return printJSON(cmd, docs)
	}

	if len(docs) == 0 {
		cmd.Println("No documents ingested.")
		return nil
	}

	st := outputStyles(cmd)
	for i := range docs {
		d := &docs[i]
		cmd.Printf("  %s  %s %s\n", st.Label(d.ID), d.Ticker, d.Period)
		cmd.Printf("    File:   %s\n", d.Filename)
		cmd.Printf("    Status: %s (%d chunks)\n", statusText(st, d.Status), d.ChunkCount)
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentShow(cmd *cobra.Command, args []string) error {
	if kbService == nil {
		return errors.New("knowledge base service not configured")
	}

	details, err := kbService.Details(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	st := outputStyles(cmd)
	doc := &details.Document
	cmd.Printf("%s %s\n\n", st.Title("Document:"), doc.ID)
	cmd.Printf("  Filing:    %s\n", doc.Key())
	cmd.Printf("  Source:    %s\n", doc.SourceLabel())
	cmd.Printf("  File:      %s (%s)\n", doc.Filename, doc.MIMEType)
	cmd.Printf("  Status:    %s\n", statusText(st, doc.Status))
	if doc.FailureReason != "" {
		cmd.Printf("  Reason:    %s\n", doc.FailureReason)
	}
	cmd.Printf("  Chunks:    %d (stored %d, indexed %d)\n", doc.ChunkCount, details.StoredChunks, details.IndexedCount)
	cmd.Printf("  Ingested:  %s\n", doc.IngestedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:   %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if kbService == nil {
		return errors.New("knowledge base service not configured")
	}

	doc, err := kbService.Get(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document content: %w", err)
	}

	cmd.Println(doc.Content)
	return nil
}

func runDocumentOriginal(cmd *cobra.Command, args []string) error {
	if kbService == nil {
		return errors.New("knowledge base service not configured")
	}

	data, filename, err := kbService.Original(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to get original file: %w", err)
	}

	out := filename
	if len(args) == 2 {
		out = args[1]
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	cmd.Printf("Wrote %d bytes to %s\n", len(data), out)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if kbService == nil {
		return errors.New("knowledge base service not configured")
	}

	docID := args[0]
	if err := kbService.Delete(commandContext(cmd), docID); err != nil {
		if errors.Is(err, domain.ErrDeletePartialFailure) {
			return fmt.Errorf("%w; the record was kept, run 'tenk document delete %s' again to retry", err, docID)
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Document %s deleted.\n", docID)
	return nil
}

func runDocumentVerify(cmd *cobra.Command, args []string) error {
	if kbService == nil {
		return errors.New("knowledge base service not configured")
	}

	docID := args[0]
	ok, err := kbService.Verify(commandContext(cmd), docID)
	if err != nil {
		return fmt.Errorf("failed to verify document: %w", err)
	}

	st := outputStyles(cmd)
	if !ok {
		cmd.Printf("%s document %s is inconsistent; run 'tenk document show %s' for counts\n",
			st.Error("✗"), docID, docID)
		return fmt.Errorf("document %s failed verification", docID)
	}
	cmd.Printf("%s document %s is consistent\n", st.Success("✓"), docID)
	return nil
}

func statusText(st styles, s domain.DocumentStatus) string {
	switch s {
	case domain.StatusIndexed:
		return st.Success(string(s))
	case domain.StatusFailed:
		return st.Error(string(s))
	default:
		return st.Warning(string(s))
	}
}
