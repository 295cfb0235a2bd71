package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"docdash/internal/analyze"
	"docdash/internal/config"
	"docdash/internal/logger"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Extract text, tables and form fields with Google Document AI",
	Long: `Process a local document with a Google Document AI processor and print the
full text, every detected table and the form fields as key/value pairs.

Required environment variables:
  GOOGLE_CLOUD_PROJECT     - Google Cloud project ID
  DOCUMENT_AI_PROCESSOR_ID - Processor to run (a Form Parser works best)

Optional environment variables:
  GOOGLE_CLOUD_LOCATION         - Processor location (default us)
  DOCUMENT_AI_PROCESSOR_VERSION - Pin a processor version`,
	Example: `  docdash analyze pay-stub.pdf
  docdash analyze pay-stub.pdf --json -o analysis.json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	analyzeCmd.Flags().Bool("json", false, "Output as JSON")
	analyzeCmd.Flags().String("sheet", "", "Also export tables and fields to this Google Sheet URL")
	analyzeCmd.Flags().Duration("timeout", 2*time.Minute, "Processing timeout")
}

func analyzeConfig(cfg *config.Config) analyze.Config {
	c := analyze.DefaultConfig()
	c.ProjectID = cfg.GoogleCloudProject
	c.ProcessorID = cfg.DocumentAIProcessorID
	c.ProcessorVersion = cfg.DocumentAIProcessorVersion
	if cfg.GoogleCloudLocation != "" {
		c.Location = cfg.GoogleCloudLocation
	}
	return c
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("analyze")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	sheetURL, _ := cmd.Flags().GetString("sheet")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	path := args[0]

	if _, err := validateInputFile(path, analyze.MaxDocumentSizeBytes, log); err != nil {
		return err
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	if err := cfg.RequireDocumentAI(); err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeout, log)
	defer cancel()

	analyzer, err := analyze.NewDocumentAIAnalyzer(ctx, analyzeConfig(cfg))
	if err != nil {
		return handleAnalysisError(err, log)
	}
	defer analyzer.Close()

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	result, err := analyzer.Analyze(ctx, file)
	if err != nil {
		return handleAnalysisError(err, log)
	}

	data, err := formatResult(result, jsonOutput)
	if err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}

	if err := writeOutput(outputPath, data, log); err != nil {
		return err
	}

	return exportToSheet(ctx, sheetURL, tabName(path), result, log)
}

func handleAnalysisError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Document analysis failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("document analysis timed out. Try increasing --timeout")
	case errors.Is(err, analyze.ErrContextCanceled), errors.Is(err, context.Canceled):
		return fmt.Errorf("document analysis was canceled")
	case errors.Is(err, analyze.ErrMissingCredentials), errors.Is(err, analyze.ErrInvalidCredentials):
		return fmt.Errorf("Google Cloud credentials are missing or lack Document AI permissions: %w", err)
	case errors.Is(err, analyze.ErrProcessorNotFound):
		return fmt.Errorf("Document AI processor not found. Check DOCUMENT_AI_PROCESSOR_ID and GOOGLE_CLOUD_LOCATION")
	case errors.Is(err, analyze.ErrQuotaExceeded):
		return fmt.Errorf("Document AI quota exceeded. Check your project quotas in the Google Cloud Console")
	case errors.Is(err, analyze.ErrUnsupportedFormat):
		return fmt.Errorf("unsupported document format: %w", err)
	default:
		return err
	}
}
