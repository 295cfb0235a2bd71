package ocr

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/gabriel-vasile/mimetype"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"

	"docdash/internal/gcp"
	"docdash/internal/logger"
)

const (
	MaxFileSizeBytes = 20 * 1024 * 1024
	MaxPagesSync     = 5
)

// Multi-page formats go through the file API, everything else is sent as a
// single image.
var fileMimeTypes = []string{
	"application/pdf",
	"image/tiff",
}

var imageMimeTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/bmp",
	"image/webp",
	"image/x-icon",
	"image/vnd.microsoft.icon",
}

type annotator interface {
	BatchAnnotateFiles(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateFilesResponse, error)
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// VisionEngine implements Engine with the Cloud Vision API.
type VisionEngine struct {
	client annotator
	log    zerolog.Logger
}

// NewVisionEngine creates a Vision client with credentials from the environment.
func NewVisionEngine(ctx context.Context) (*VisionEngine, error) {
	const op = "NewVisionEngine"

	options, explicit := gcp.ClientOptions()

	client, err := vision.NewImageAnnotatorClient(ctx, options...)
	if err != nil {
		if !explicit {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}

	return newVisionEngine(client), nil
}

func newVisionEngine(client annotator) *VisionEngine {
	return &VisionEngine{
		client: client,
		log:    logger.WithComponent("ocr"),
	}
}

func (v *VisionEngine) Recognize(ctx context.Context, r io.Reader) (*Result, error) {
	const op = "Recognize"
	startTime := time.Now()

	data, err := io.ReadAll(io.LimitReader(r, MaxFileSizeBytes+1))
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to read upload")
	}

	if len(data) > MaxFileSizeBytes {
		return nil, WrapOCRError(op, ErrFileTooLarge, fmt.Sprintf("file size: more than %d bytes", MaxFileSizeBytes))
	}

	mtype := mimetype.Detect(data)
	mimeType := strings.SplitN(mtype.String(), ";", 2)[0]

	var pages []*visionpb.AnnotateImageResponse

	switch {
	case slices.Contains(fileMimeTypes, mimeType):
		pages, err = v.annotateFile(ctx, data, mimeType)
	case slices.Contains(imageMimeTypes, mimeType):
		pages, err = v.annotateImage(ctx, data)
	default:
		return nil, WrapOCRError(op, ErrUnsupportedType, mimeType)
	}

	if err != nil {
		return nil, WrapOCRError(op, err, "")
	}

	result, err := collectText(pages)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to process Vision API response")
	}

	result.MimeType = mimeType
	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(startTime)

	v.log.Info().
		Str("mime_type", mimeType).
		Int("pages", result.PageCount).
		Int("characters", len(result.Text)).
		Dur("duration", result.ProcessingDuration).
		Msg("Text recognized")

	return result, nil
}

func (v *VisionEngine) annotateFile(ctx context.Context, data []byte, mimeType string) ([]*visionpb.AnnotateImageResponse, error) {
	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  data,
					MimeType: mimeType,
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: Vision API call failed: %v", ErrOCRFailed, err)
	}

	if len(resp.GetResponses()) == 0 {
		return nil, fmt.Errorf("%w: no response from Vision API", ErrOCRFailed)
	}

	fileResp := resp.Responses[0]
	if fileResp.GetError() != nil {
		return nil, fmt.Errorf("%w: Vision API error: %s", ErrOCRFailed, fileResp.Error.GetMessage())
	}

	if fileResp.GetTotalPages() > MaxPagesSync || len(fileResp.GetResponses()) > MaxPagesSync {
		return nil, fmt.Errorf("%w: document has %d pages", ErrTooManyPages, max(int(fileResp.GetTotalPages()), len(fileResp.GetResponses())))
	}

	return fileResp.Responses, nil
}

func (v *VisionEngine) annotateImage(ctx context.Context, data []byte) ([]*visionpb.AnnotateImageResponse, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: Vision API call failed: %v", ErrOCRFailed, err)
	}

	if len(resp.GetResponses()) == 0 {
		return nil, fmt.Errorf("%w: no response from Vision API", ErrOCRFailed)
	}

	return resp.Responses, nil
}

// collectText joins the page texts and aggregates confidence and languages.
func collectText(pages []*visionpb.AnnotateImageResponse) (*Result, error) {
	if len(pages) == 0 {
		return nil, ErrEmptyDocument
	}

	var (
		text            strings.Builder
		confidenceSum   float32
		confidenceCount int
		languages       []string
	)

	for i, page := range pages {
		if page.GetError() != nil {
			return nil, fmt.Errorf("error processing page %d: %s", i+1, page.Error.GetMessage())
		}

		annotation := page.GetFullTextAnnotation()
		if annotation == nil {
			continue
		}

		if i > 0 {
			fmt.Fprintf(&text, "\n\n--- Page %d ---\n\n", i+1)
		}
		text.WriteString(annotation.GetText())

		for _, p := range annotation.GetPages() {
			if p.GetConfidence() > 0 {
				confidenceSum += p.GetConfidence()
				confidenceCount++
			}
			for _, lang := range p.GetProperty().GetDetectedLanguages() {
				if code := lang.GetLanguageCode(); code != "" && !slices.Contains(languages, code) {
					languages = append(languages, code)
				}
			}
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		return nil, ErrEmptyDocument
	}

	result := &Result{
		Text:          text.String(),
		PageCount:     len(pages),
		LanguageCodes: languages,
	}
	if confidenceCount > 0 {
		result.Confidence = confidenceSum / float32(confidenceCount)
	}

	return result, nil
}

func (v *VisionEngine) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}
