package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"docdash/internal/classify"
	"docdash/internal/config"
	"docdash/internal/extraction"
	"docdash/internal/pulse"
	"docdash/internal/sheets"
)

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func loadConfig(log zerolog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return nil, err
	}
	return cfg, nil
}

// newLimiter returns nil for a non-positive rate, leaving calls unthrottled.
func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
}

func newPulseClient(cfg *config.Config) (*pulse.Client, error) {
	if err := cfg.RequirePulse(); err != nil {
		return nil, err
	}

	options := []pulse.Option{
		pulse.WithToken(cfg.PulseAPIKey),
		pulse.WithRetry(cfg.PollMaxRetries, cfg.PollRetryDelay),
		pulse.WithTimeout(cfg.ExtractTimeout),
	}
	if limiter := newLimiter(cfg.PulseRateLimit); limiter != nil {
		options = append(options, pulse.WithLimiter(limiter))
	}

	return pulse.New(cfg.PulseAPIURL, options...)
}

// newClassifier builds the Nyckel client, throttled by its own rate limit.
func newClassifier(cfg *config.Config) (*classify.Client, error) {
	if err := cfg.RequireNyckel(); err != nil {
		return nil, err
	}

	options := []classify.Option{classify.WithToken(cfg.NyckelAPIKey)}
	if limiter := classifierLimiter(cfg); limiter != nil {
		options = append(options, classify.WithLimiter(limiter))
	}

	return classify.New(cfg.NyckelFunctionID, options...), nil
}

// classifierLimiter is independent of the extraction provider's limit.
func classifierLimiter(cfg *config.Config) *rate.Limiter {
	return newLimiter(cfg.NyckelRateLimit)
}

// asyncConfig builds the controller configuration shared by the extract
// command and the dashboard sessions.
func asyncConfig(cfg *config.Config) extraction.AsyncConfig {
	async := extraction.DefaultAsyncConfig()
	async.Interval = cfg.PollInterval
	async.MaxWait = cfg.MaxWait
	async.Options.Chunking = extraction.Chunking(cfg.Chunking)
	async.Options.SchemaFields = cfg.SchemaFields
	return async
}

func writeOutput(outputPath string, data []byte, log zerolog.Logger) error {
	if outputPath == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Println()
		return nil
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(data)).
		Msg("Results written to file")
	return nil
}

// exportToSheet writes result to the tab sheetName of the spreadsheet at
// sheetURL. It is a no-op without a sheet URL.
func exportToSheet(ctx context.Context, sheetURL, sheetName string, result *extraction.Result, log zerolog.Logger) error {
	if sheetURL == "" {
		return nil
	}

	exporter, err := sheets.NewExporter(ctx, sheetURL)
	if err != nil {
		return fmt.Errorf("failed to open Google Sheet: %w", err)
	}

	summary, err := exporter.Export(ctx, sheetName, result)
	if err != nil {
		log.Error().Err(err).Str("sheet", sheetName).Msg("Sheet export failed")
		return fmt.Errorf("failed to export to Google Sheet: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Exported %d tables and %d fields to sheet %q\n", summary.Tables, summary.Fields, summary.Sheet)
	return nil
}

// tabName derives a sheet tab name from a document path or URL.
func tabName(source string) string {
	name := path.Base(strings.SplitN(source, "?", 2)[0])
	name = strings.TrimSuffix(name, path.Ext(name))
	if name == "" || name == "." || name == "/" {
		return "docdash"
	}
	return name
}

// formatResult renders an extraction result as indented JSON or, without
// jsonOutput, as text followed by tables and schema fields.
func formatResult(result *extraction.Result, jsonOutput bool) ([]byte, error) {
	if jsonOutput {
		return json.MarshalIndent(result, "", "  ")
	}

	var out []byte
	out = append(out, result.TextOrEmpty()...)

	for i, table := range result.Tables {
		out = fmt.Appendf(out, "\n\n=== Table %d ===\n", i+1)
		for _, row := range table.Data {
			for j, cell := range row {
				if j > 0 {
					out = append(out, " | "...)
				}
				if cell != nil {
					out = fmt.Append(out, cell)
				}
			}
			out = append(out, '\n')
		}
	}

	if len(result.Schema) > 0 {
		out = append(out, "\n\n=== Fields ===\n"...)
		for _, key := range sortedKeys(result.Schema) {
			out = fmt.Appendf(out, "%s: %s\n", key, result.Schema[key])
		}
	}

	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// handleExtractionError turns extraction failures into user-facing messages.
func handleExtractionError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Extraction failed")

	var apiErr *pulse.APIError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("extraction timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("extraction was canceled")
	case errors.Is(err, pulse.ErrMissingAPIKey):
		return fmt.Errorf("PULSE_API_KEY is not configured. Add it to your environment or .env file")
	case errors.Is(err, pulse.ErrFileNotAccessible):
		return fmt.Errorf("the document URL is not reachable: %w", err)
	case errors.Is(err, extraction.ErrTimedOut):
		return fmt.Errorf("the provider did not finish the job in time. Try increasing EXTRACTION_MAX_WAIT")
	case errors.As(err, &apiErr) && apiErr.StatusCode == 401:
		return fmt.Errorf("the extraction provider rejected the API key: %w", err)
	default:
		return err
	}
}
