package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"docdash/internal/logger"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [file-url]",
	Short: "Identify the document type of a hosted file",
	Long: `Send a document URL to the Nyckel document-type function and print the
predicted label with its confidence.

Required environment variables:
  NYCKEL_API_KEY - Nyckel access token

Optional environment variables:
  NYCKEL_FUNCTION_ID - Function to invoke (default document-types-identifier)
  NYCKEL_RATE_LIMIT  - Requests per second, 0 for no limit`,
	Example: `  docdash classify https://example.com/w2.pdf
  docdash classify https://example.com/w2.pdf --json`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().Bool("json", false, "Output as JSON")
	classifyCmd.Flags().Duration("timeout", 0, "Request timeout (default: EXTRACT_TIMEOUT)")
}

func runClassify(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("classify")

	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	client, err := newClassifier(cfg)
	if err != nil {
		return err
	}

	if timeout <= 0 {
		timeout = cfg.ExtractTimeout
	}

	ctx, cancel := createContextWithTimeout(timeout, log)
	defer cancel()

	result, err := client.Classify(ctx, args[0])
	if err != nil {
		log.Error().Err(err).Msg("Classification failed")
		return fmt.Errorf("classification failed: %w", err)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("%s (confidence %.1f%%)\n", result.DocumentType, result.Confidence*100)
	return nil
}
