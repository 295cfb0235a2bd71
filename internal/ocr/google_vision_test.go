package ocr

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/status"
)

type fakeAnnotator struct {
	files  *visionpb.BatchAnnotateFilesResponse
	images *visionpb.BatchAnnotateImagesResponse
	err    error

	fileRequests  []*visionpb.BatchAnnotateFilesRequest
	imageRequests []*visionpb.BatchAnnotateImagesRequest
}

func (f *fakeAnnotator) BatchAnnotateFiles(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateFilesResponse, error) {
	f.fileRequests = append(f.fileRequests, req)
	return f.files, f.err
}

func (f *fakeAnnotator) BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	f.imageRequests = append(f.imageRequests, req)
	return f.images, f.err
}

func (f *fakeAnnotator) Close() error { return nil }

var (
	pdfData = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")
	pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
)

func page(text string, confidence float32, languages ...string) *visionpb.AnnotateImageResponse {
	var detected []*visionpb.TextAnnotation_DetectedLanguage
	for _, code := range languages {
		detected = append(detected, &visionpb.TextAnnotation_DetectedLanguage{LanguageCode: code})
	}

	return &visionpb.AnnotateImageResponse{
		FullTextAnnotation: &visionpb.TextAnnotation{
			Text: text,
			Pages: []*visionpb.Page{{
				Confidence: confidence,
				Property:   &visionpb.TextAnnotation_TextProperty{DetectedLanguages: detected},
			}},
		},
	}
}

func TestRecognizePDF(t *testing.T) {
	client := &fakeAnnotator{
		files: &visionpb.BatchAnnotateFilesResponse{
			Responses: []*visionpb.AnnotateFileResponse{{
				TotalPages: 2,
				Responses: []*visionpb.AnnotateImageResponse{
					page("Pay stub", 0.9, "en"),
					page("Totals", 0.7, "en", "de"),
				},
			}},
		},
	}
	engine := newVisionEngine(client)

	result, err := engine.Recognize(context.Background(), bytes.NewReader(pdfData))
	require.NoError(t, err)

	require.Equal(t, "Pay stub\n\n--- Page 2 ---\n\nTotals", result.Text)
	require.Equal(t, "application/pdf", result.MimeType)
	require.Equal(t, 2, result.PageCount)
	require.InDelta(t, 0.8, result.Confidence, 0.0001)
	require.Equal(t, []string{"en", "de"}, result.LanguageCodes)

	require.Len(t, client.fileRequests, 1)
	require.Empty(t, client.imageRequests)
	require.Equal(t, "application/pdf", client.fileRequests[0].Requests[0].InputConfig.MimeType)
}

func TestRecognizeImage(t *testing.T) {
	client := &fakeAnnotator{
		images: &visionpb.BatchAnnotateImagesResponse{
			Responses: []*visionpb.AnnotateImageResponse{page("Receipt", 0.95)},
		},
	}
	engine := newVisionEngine(client)

	result, err := engine.Recognize(context.Background(), bytes.NewReader(pngData))
	require.NoError(t, err)

	require.Equal(t, "Receipt", result.Text)
	require.Equal(t, "image/png", result.MimeType)
	require.Len(t, client.imageRequests, 1)
	require.Empty(t, client.fileRequests)
}

func TestRecognizeRejectsUnsupportedType(t *testing.T) {
	engine := newVisionEngine(&fakeAnnotator{})

	_, err := engine.Recognize(context.Background(), strings.NewReader("just some text"))
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestRecognizeRejectsLargeFile(t *testing.T) {
	engine := newVisionEngine(&fakeAnnotator{})

	data := append(append([]byte{}, pdfData...), make([]byte, MaxFileSizeBytes)...)
	_, err := engine.Recognize(context.Background(), bytes.NewReader(data))
	require.ErrorIs(t, err, ErrFileTooLarge)
}

func TestRecognizeTooManyPages(t *testing.T) {
	engine := newVisionEngine(&fakeAnnotator{
		files: &visionpb.BatchAnnotateFilesResponse{
			Responses: []*visionpb.AnnotateFileResponse{{TotalPages: 9}},
		},
	})

	_, err := engine.Recognize(context.Background(), bytes.NewReader(pdfData))
	require.ErrorIs(t, err, ErrTooManyPages)
}

func TestRecognizeAPIErrors(t *testing.T) {
	engine := newVisionEngine(&fakeAnnotator{err: errors.New("unavailable")})
	_, err := engine.Recognize(context.Background(), bytes.NewReader(pdfData))
	require.ErrorIs(t, err, ErrOCRFailed)

	engine = newVisionEngine(&fakeAnnotator{
		files: &visionpb.BatchAnnotateFilesResponse{
			Responses: []*visionpb.AnnotateFileResponse{{Error: &status.Status{Message: "bad pdf"}}},
		},
	})
	_, err = engine.Recognize(context.Background(), bytes.NewReader(pdfData))
	require.ErrorIs(t, err, ErrOCRFailed)
	require.Contains(t, err.Error(), "bad pdf")

	var ocrErr *OCRError
	require.ErrorAs(t, err, &ocrErr)
	require.Equal(t, "Recognize", ocrErr.Op)
}

func TestCollectText(t *testing.T) {
	_, err := collectText(nil)
	require.ErrorIs(t, err, ErrEmptyDocument)

	_, err = collectText([]*visionpb.AnnotateImageResponse{page("   ", 0.5)})
	require.ErrorIs(t, err, ErrEmptyDocument)

	_, err = collectText([]*visionpb.AnnotateImageResponse{
		page("ok", 0.5),
		{Error: &status.Status{Message: "blurred"}},
	})
	require.EqualError(t, err, "error processing page 2: blurred")

	result, err := collectText([]*visionpb.AnnotateImageResponse{{}, page("second", 0)})
	require.NoError(t, err)
	require.Zero(t, result.Confidence)
	require.Equal(t, 2, result.PageCount)
}

func TestWrapOCRError(t *testing.T) {
	require.NoError(t, WrapOCRError("op", nil, ""))

	err := WrapOCRError("inner", ErrEmptyDocument, "")
	require.Same(t, err, WrapOCRError("outer", err, "ignored"))
	require.EqualError(t, err, "ocr: inner failed: document contains no readable text")
}
