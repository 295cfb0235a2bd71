package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docdash/internal/extraction"
	"docdash/internal/logger"
)

var extractSyncCmd = &cobra.Command{
	Use:   "extract-sync [file-url]",
	Short: "Run an extraction that may answer immediately",
	Long: `Submit a document URL with the synchronous options. With --skip-polling the
provider's synchronous endpoint answers with the result directly; otherwise
the returned job is polled and a progress percentage is shown.

The document URL is checked for reachability before it is submitted.`,
	Example: `  # Immediate result
  docdash extract-sync https://example.com/doc.pdf --skip-polling

  # Poll with recursive chunking
  docdash extract-sync https://example.com/doc.pdf --method recursive`,
	Args: cobra.ExactArgs(1),
	RunE: runExtractSync,
}

func init() {
	rootCmd.AddCommand(extractSyncCmd)

	extractSyncCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	extractSyncCmd.Flags().Bool("json", false, "Output as JSON")
	extractSyncCmd.Flags().String("sheet", "", "Also export tables and fields to this Google Sheet URL")
	extractSyncCmd.Flags().String("method", "semantic", "Chunking method: semantic or recursive")
	extractSyncCmd.Flags().Bool("skip-polling", false, "Use the synchronous endpoint")
	extractSyncCmd.Flags().Bool("verify", true, "Check that the URL is reachable first")
	extractSyncCmd.Flags().Duration("timeout", 0, "Overall timeout (default: max wait plus one minute)")
}

func runExtractSync(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract-sync")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	sheetURL, _ := cmd.Flags().GetString("sheet")
	method, _ := cmd.Flags().GetString("method")
	skipPolling, _ := cmd.Flags().GetBool("skip-polling")
	verify, _ := cmd.Flags().GetBool("verify")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	chunking := extraction.Chunking(method)
	if chunking != extraction.ChunkingSemantic && chunking != extraction.ChunkingRecursive {
		return fmt.Errorf("invalid --method %q: use semantic or recursive", method)
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	client, err := newPulseClient(cfg)
	if err != nil {
		return handleExtractionError(err, log)
	}

	if timeout <= 0 {
		timeout = cfg.MaxWait + cfg.ExtractTimeout
	}

	ctx, cancel := createContextWithTimeout(timeout, log)
	defer cancel()

	lastPercent := -1.0
	controller := extraction.NewSyncController(client, client, extraction.SyncConfig{
		Interval: cfg.PollInterval,
		Observer: func(p extraction.Progress) {
			if p.Percent == lastPercent {
				return
			}
			lastPercent = p.Percent
			fmt.Fprintf(os.Stderr, "[%3.0f%%] %s\n", p.Percent, p.Status)
		},
	})
	defer controller.Reset()

	controller.Start(ctx, args[0], extraction.SubmitOptions{
		Chunking:     chunking,
		ReturnTables: true,
		SkipPolling:  skipPolling,
		VerifyFile:   verify,
	})

	progress, err := controller.Wait(ctx)
	if err != nil {
		return handleExtractionError(err, log)
	}

	if progress.Result == nil {
		return handleExtractionError(errors.New(progress.Status), log)
	}

	data, err := formatResult(progress.Result, jsonOutput)
	if err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}

	if err := writeOutput(outputPath, data, log); err != nil {
		return err
	}

	return exportToSheet(ctx, sheetURL, tabName(args[0]), progress.Result, log)
}
