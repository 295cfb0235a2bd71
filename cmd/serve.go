package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docdash/internal/analyze"
	"docdash/internal/logger"
	"docdash/internal/ocr"
	"docdash/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API",
	Long: `Serve the HTTP API used by the dashboard UI: proxy routes for the
extraction, classification, OCR and analysis providers, plus extraction
sessions that report live job state.

Providers that are not configured answer with 503; the server still starts.`,
	Example: `  docdash serve
  docdash serve --addr :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: SERVER_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.ServerAddr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var services server.Services

	if client, err := newPulseClient(cfg); err != nil {
		log.Warn().Err(err).Msg("Extraction routes disabled")
	} else {
		services.Provider = client
	}

	if classifier, err := newClassifier(cfg); err != nil {
		log.Warn().Err(err).Msg("Classification route disabled")
	} else {
		services.Classifier = classifier
	}

	if engine, err := ocr.NewVisionEngine(ctx); err != nil {
		log.Warn().Err(err).Msg("OCR route disabled")
	} else {
		defer engine.Close()
		services.OCR = engine
	}

	if err := cfg.RequireDocumentAI(); err != nil {
		log.Warn().Err(err).Msg("Analysis route disabled")
	} else if analyzer, err := analyze.NewDocumentAIAnalyzer(ctx, analyzeConfig(cfg)); err != nil {
		log.Warn().Err(err).Msg("Analysis route disabled")
	} else {
		defer analyzer.Close()
		services.Analyzer = analyzer
	}

	srv := server.New(server.Config{
		Addr:        cfg.ServerAddr,
		CORSOrigins: cfg.CORSOrigins,
		SessionTTL:  cfg.SessionTTL,
		Async:       asyncConfig(cfg),
	}, services)

	return srv.ListenAndServe(ctx)
}
