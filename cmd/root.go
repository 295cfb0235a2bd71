package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docdash/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "docdash",
	Short: "docdash - try out document-processing APIs from the command line",
	Long: `docdash submits documents to third-party extraction, classification,
OCR and analysis services and shows what comes back.

Long-running extractions are tracked from submission to completion, the same
way the dashboard does it. Run "docdash serve" to start the dashboard API.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("docdash executed")

		fmt.Println("Welcome to docdash!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
