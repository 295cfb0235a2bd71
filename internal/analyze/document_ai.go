package analyze

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/gabriel-vasile/mimetype"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"docdash/internal/extraction"
	"docdash/internal/gcp"
	"docdash/internal/logger"
)

const MaxDocumentSizeBytes = 20 * 1024 * 1024

var supportedMimeTypes = []string{
	"application/pdf",
	"image/tiff",
	"image/gif",
	"image/jpeg",
	"image/png",
	"image/bmp",
	"image/webp",
}

type processor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

// DocumentAIAnalyzer implements Analyzer with a Document AI processor.
type DocumentAIAnalyzer struct {
	client processor
	config Config
	log    zerolog.Logger
}

// NewDocumentAIAnalyzer creates a regional Document AI client for config.
func NewDocumentAIAnalyzer(ctx context.Context, config Config) (*DocumentAIAnalyzer, error) {
	const op = "NewDocumentAIAnalyzer"

	if config.ProjectID == "" {
		return nil, WrapAnalysisError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT is required")
	}
	if config.ProcessorID == "" {
		return nil, WrapAnalysisError(op, ErrInvalidConfiguration, "DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if config.Location == "" {
		config.Location = "us"
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	clientOptions, explicit := gcp.ClientOptions()
	if endpoint, ok := gcp.RegionalEndpoint(config.Location); ok {
		clientOptions = append(clientOptions, endpoint)
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if !explicit {
			return nil, WrapAnalysisError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapAnalysisError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return newDocumentAIAnalyzer(config, client), nil
}

func newDocumentAIAnalyzer(config Config, client processor) *DocumentAIAnalyzer {
	return &DocumentAIAnalyzer{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}
}

// Analyze processes the upload and returns its text, tables and form fields.
func (a *DocumentAIAnalyzer) Analyze(ctx context.Context, r io.Reader) (*extraction.Result, error) {
	const op = "Analyze"
	startTime := time.Now()

	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentSizeBytes+1))
	if err != nil {
		return nil, WrapAnalysisError(op, err, "failed to read document")
	}

	if len(data) > MaxDocumentSizeBytes {
		return nil, WrapAnalysisError(op, ErrDocumentTooLarge, fmt.Sprintf("file size: more than %d bytes", MaxDocumentSizeBytes))
	}

	mimeType := strings.SplitN(mimetype.Detect(data).String(), ";", 2)[0]
	if !slices.Contains(supportedMimeTypes, mimeType) {
		return nil, WrapAnalysisError(op, ErrUnsupportedFormat, mimeType)
	}

	processCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: a.ProcessorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeType,
			},
		},
	}

	resp, err := a.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, a.handleProcessingError(op, err)
	}

	if resp.GetDocument() == nil {
		return nil, WrapAnalysisError(op, ErrProcessingFailed, "no document in response")
	}

	result := convertDocument(resp.Document)

	a.log.Info().
		Str("mime_type", mimeType).
		Int("pages", len(resp.Document.GetPages())).
		Int("tables", len(result.Tables)).
		Int("fields", len(result.Schema)).
		Dur("duration", time.Since(startTime)).
		Msg("Document analyzed")

	return result, nil
}

// ProcessorName is the fully qualified resource name of the processor.
func (a *DocumentAIAnalyzer) ProcessorName() string {
	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		a.config.ProjectID, a.config.Location, a.config.ProcessorID)
	if a.config.ProcessorVersion != "" {
		name += "/processorVersions/" + a.config.ProcessorVersion
	}
	return name
}

func (a *DocumentAIAnalyzer) handleProcessingError(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return WrapAnalysisError(op, context.DeadlineExceeded, "processing timeout")
	case errors.Is(err, context.Canceled):
		return WrapAnalysisError(op, ErrContextCanceled, "processing was canceled")
	}

	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return WrapAnalysisError(op, ErrInvalidCredentials, "insufficient permissions for Document AI")
	case codes.ResourceExhausted:
		return WrapAnalysisError(op, ErrQuotaExceeded, "Document AI API quota exceeded")
	case codes.NotFound:
		return WrapAnalysisError(op, ErrProcessorNotFound, fmt.Sprintf("processor not found: %s", a.config.ProcessorID))
	case codes.InvalidArgument:
		return WrapAnalysisError(op, ErrUnsupportedFormat, "document format not supported or corrupted")
	case codes.DeadlineExceeded:
		return WrapAnalysisError(op, context.DeadlineExceeded, "processing timeout")
	case codes.Canceled:
		return WrapAnalysisError(op, ErrContextCanceled, "processing was canceled")
	default:
		return WrapAnalysisError(op, ErrProcessingFailed, fmt.Sprintf("Document AI error: %v", err))
	}
}

// convertDocument maps a processed document onto the extraction result shape.
// Table rows are header rows followed by body rows; form fields and entities
// become schema entries keyed by their normalized name.
func convertDocument(doc *documentaipb.Document) *extraction.Result {
	text := []rune(doc.GetText())
	full := doc.GetText()

	result := &extraction.Result{
		Text:   &full,
		Tables: []extraction.Table{},
	}

	schema := make(map[string]string)

	for _, page := range doc.GetPages() {
		for _, table := range page.GetTables() {
			data := [][]extraction.Cell{}
			for _, row := range slices.Concat(table.GetHeaderRows(), table.GetBodyRows()) {
				cells := make([]extraction.Cell, 0, len(row.GetCells()))
				for _, cell := range row.GetCells() {
					cells = append(cells, anchorText(text, cell.GetLayout()))
				}
				data = append(data, cells)
			}
			result.Tables = append(result.Tables, extraction.Table{Data: data})
		}

		for _, field := range page.GetFormFields() {
			name := fieldKey(anchorText(text, field.GetFieldName()))
			if name == "" {
				continue
			}
			schema[name] = anchorText(text, field.GetFieldValue())
		}
	}

	for _, entity := range doc.GetEntities() {
		name := fieldKey(entity.GetType())
		if name == "" {
			continue
		}
		if _, ok := schema[name]; !ok {
			schema[name] = strings.TrimSpace(entity.GetMentionText())
		}
	}

	if len(schema) > 0 {
		result.Schema = schema
	}

	return result
}

// anchorText resolves the text segments of a layout against the document text.
func anchorText(text []rune, layout *documentaipb.Document_Page_Layout) string {
	var b strings.Builder
	for _, segment := range layout.GetTextAnchor().GetTextSegments() {
		start, end := segment.GetStartIndex(), segment.GetEndIndex()
		if start < 0 || end > int64(len(text)) || start >= end {
			continue
		}
		b.WriteString(string(text[start:end]))
	}
	return strings.TrimSpace(b.String())
}

func fieldKey(name string) string {
	name = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(name), ":"))
	name = strings.ToLower(name)
	return strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '-' || r == '/'
	}), "_")
}

func (a *DocumentAIAnalyzer) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}
