package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docdash/internal/extraction"
	"docdash/internal/logger"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file-url]",
	Short: "Run an asynchronous extraction and follow its progress",
	Long: `Submit a document URL to the extraction provider's asynchronous endpoint and
poll the job until it completes or fails.

Every state change (pending, processing, completed, failed) is printed to
stderr as it happens. The state never moves backwards even when the provider
reports a noisy status.

Required environment variables:
  PULSE_API_KEY - API key of the extraction provider

Optional environment variables:
  POLL_INTERVAL            - Delay between status polls (default 2s)
  EXTRACTION_MAX_WAIT      - Fail jobs still running after this long (default 5m)
  EXTRACTION_SCHEMA_FIELDS - Comma-separated schema fields to infer
  EXTRACTION_CHUNKING      - semantic or recursive (default semantic)`,
	Example: `  # Extract a hosted PDF and print the text
  docdash extract https://example.com/pay-stub.pdf

  # Save the full result as JSON
  docdash extract https://example.com/pay-stub.pdf --json -o result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	extractCmd.Flags().Bool("json", false, "Output as JSON")
	extractCmd.Flags().String("sheet", "", "Also export tables and fields to this Google Sheet URL")
	extractCmd.Flags().Duration("interval", 0, "Override the poll interval")
	extractCmd.Flags().Duration("timeout", 0, "Overall timeout (default: max wait plus one minute)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	sheetURL, _ := cmd.Flags().GetString("sheet")
	interval, _ := cmd.Flags().GetDuration("interval")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	fileURL := args[0]

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	client, err := newPulseClient(cfg)
	if err != nil {
		return handleExtractionError(err, log)
	}

	async := asyncConfig(cfg)
	if interval > 0 {
		async.Interval = interval
	}
	if timeout <= 0 {
		timeout = cfg.MaxWait + time.Minute
	}

	var lastStatus string
	async.Observer = func(s extraction.Snapshot) {
		if s.Status == lastStatus {
			return
		}
		lastStatus = s.Status
		if s.Status != "" {
			fmt.Fprintf(os.Stderr, "[%-10s] %s\n", s.State, s.Status)
		}
	}

	ctx, cancel := createContextWithTimeout(timeout, log)
	defer cancel()

	controller := extraction.NewAsyncController(client, client, async)
	defer controller.Close()

	log.Info().
		Str("file_url", fileURL).
		Dur("interval", async.Interval).
		Dur("max_wait", async.MaxWait).
		Msg("Starting extraction")

	controller.Start(ctx, fileURL)

	snapshot, err := controller.Wait(ctx)
	if err != nil {
		return handleExtractionError(err, log)
	}

	if snapshot.State != extraction.StateCompleted {
		return handleExtractionError(snapshotError(snapshot), log)
	}

	data, err := formatResult(snapshot.Result, jsonOutput)
	if err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}

	if err := writeOutput(outputPath, data, log); err != nil {
		return err
	}

	return exportToSheet(ctx, sheetURL, tabName(fileURL), snapshot.Result, log)
}

func snapshotError(s extraction.Snapshot) error {
	if s.Status == extraction.ErrTimedOut.Error() {
		return extraction.ErrTimedOut
	}
	if s.Status == "" {
		return errors.New("extraction did not complete")
	}
	return errors.New(strings.TrimSpace(s.Status))
}
