package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docdash/internal/classify"
	"docdash/internal/extraction"
	"docdash/internal/ocr"
	"docdash/internal/pulse"
)

type fakeProvider struct {
	mu sync.Mutex

	submission *extraction.Submission
	submitErr  error
	options    []extraction.SubmitOptions

	status *pulse.JobStatus
	jobErr error
}

func (f *fakeProvider) Submit(ctx context.Context, fileURL string, options extraction.SubmitOptions) (*extraction.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.options = append(f.options, options)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.submission != nil {
		return f.submission, nil
	}
	return &extraction.Submission{JobID: "job-1", Status: "pending"}, nil
}

func (f *fakeProvider) Poll(ctx context.Context, jobID string) (*extraction.PollOutcome, error) {
	status, err := f.Job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return status.Outcome(), nil
}

func (f *fakeProvider) Job(ctx context.Context, jobID string) (*pulse.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.jobErr != nil {
		return nil, f.jobErr
	}
	if f.status != nil {
		status := *f.status
		return &status, nil
	}
	return &pulse.JobStatus{JobID: jobID, Status: "pending"}, nil
}

func (f *fakeProvider) setStatus(status *pulse.JobStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

type fakeClassifier struct{}

func (fakeClassifier) Classify(ctx context.Context, fileURL string) (*classify.Result, error) {
	return &classify.Result{DocumentType: "w2", Confidence: 0.8}, nil
}

type fakeOCR struct{ err error }

func (f fakeOCR) Recognize(ctx context.Context, r io.Reader) (*ocr.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(r)
	return &ocr.Result{Text: "read " + string(data)}, nil
}

func (fakeOCR) Close() error { return nil }

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(ctx context.Context, r io.Reader) (*extraction.Result, error) {
	return extraction.Transform(json.RawMessage(`{"text":"analyzed","tables":[[["a"]]]}`), nil), nil
}

func (fakeAnalyzer) Close() error { return nil }

func newTestServer(provider *fakeProvider) *Server {
	async := extraction.DefaultAsyncConfig()
	async.Interval = 5 * time.Millisecond
	async.Options.SchemaFields = []string{"document_kind"}

	services := Services{
		Classifier: fakeClassifier{},
		OCR:        fakeOCR{},
		Analyzer:   fakeAnalyzer{},
	}
	if provider != nil {
		services.Provider = provider
	}

	return New(Config{Async: async, SessionTTL: time.Minute}, services)
}

func do(t *testing.T, s *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func upload(t *testing.T, s *Server, target, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "doc.png")
	require.NoError(t, err)
	part.Write([]byte(content))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestExtractAsyncRoute(t *testing.T) {
	provider := &fakeProvider{}
	s := newTestServer(provider)

	rec := do(t, s, http.MethodPost, "/api/pulse/extract_async", map[string]string{"fileUrl": "https://files.example/doc.pdf"})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"job_id": "job-1", "status": "pending"}, decode(t, rec))
	require.Equal(t, []string{"document_kind"}, provider.options[0].SchemaFields)
	require.Equal(t, extraction.ChunkingSemantic, provider.options[0].Chunking)
}

func TestExtractAsyncRouteFailure(t *testing.T) {
	s := newTestServer(&fakeProvider{submitErr: extraction.ErrNoJobID})

	rec := do(t, s, http.MethodPost, "/api/pulse/extract_async", map[string]string{"fileUrl": "https://files.example/doc.pdf"})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "No job ID returned from API", decode(t, rec)["error"])
}

func TestExtractRoute(t *testing.T) {
	provider := &fakeProvider{submission: &extraction.Submission{Result: json.RawMessage(`{"text":"x"}`)}}
	s := newTestServer(provider)

	rec := do(t, s, http.MethodPost, "/api/pulse/extract", map[string]any{
		"fileUrl":     "https://files.example/doc.pdf",
		"method":      "recursive",
		"skipPolling": true,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"result":{"text":"x"}}`, rec.Body.String())

	options := provider.options[0]
	require.Equal(t, extraction.ChunkingRecursive, options.Chunking)
	require.True(t, options.SkipPolling)
	require.True(t, options.VerifyFile)
	require.True(t, options.ReturnTables)
}

func TestExtractRouteRequiresURL(t *testing.T) {
	s := newTestServer(&fakeProvider{})

	rec := do(t, s, http.MethodPost, "/api/pulse/extract", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPollRoute(t *testing.T) {
	provider := &fakeProvider{status: &pulse.JobStatus{JobID: "job-9", Status: "completed", Result: json.RawMessage(`{"text":"x"}`)}}
	s := newTestServer(provider)

	rec := do(t, s, http.MethodGet, "/api/pulse/poll?jobId=job-9", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "completed", body["status"])
	require.Equal(t, "job-9", body["job_id"])
	require.NotEmpty(t, body["created_at"])
	require.NotEmpty(t, body["estimated_completion_time"])
}

func TestPollRouteRequiresJobID(t *testing.T) {
	s := newTestServer(&fakeProvider{})

	rec := do(t, s, http.MethodGet, "/api/pulse/poll", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Job ID is required", decode(t, rec)["error"])
}

func TestPollRouteFailure(t *testing.T) {
	s := newTestServer(&fakeProvider{jobErr: errors.New("upstream down")})

	rec := do(t, s, http.MethodGet, "/api/pulse/poll?jobId=job-1", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "upstream down", decode(t, rec)["error"])
}

func TestProviderRoutesWithoutProvider(t *testing.T) {
	s := newTestServer(nil)

	rec := do(t, s, http.MethodPost, "/api/pulse/extract_async", map[string]string{"fileUrl": "https://files.example/doc.pdf"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/extractions", map[string]string{"fileUrl": "https://files.example/doc.pdf"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestClassifyRoute(t *testing.T) {
	s := newTestServer(nil)

	rec := do(t, s, http.MethodPost, "/api/nyckel/document-types-identifier", map[string]string{"url": "https://files.example/doc.pdf"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"documentType": "w2", "confidence": 0.8}, decode(t, rec))

	rec = do(t, s, http.MethodPost, "/api/nyckel/document-types-identifier", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "URL is required", decode(t, rec)["error"])
}

func TestOCRRoute(t *testing.T) {
	s := newTestServer(nil)

	rec := upload(t, s, "/api/ocr", "pixels")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"success": true, "text": "read pixels"}, decode(t, rec))

	rec = do(t, s, http.MethodPost, "/api/ocr", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "No file provided", decode(t, rec)["error"])
}

func TestOCRRouteMapsErrors(t *testing.T) {
	s := New(Config{}, Services{OCR: fakeOCR{err: ocr.WrapOCRError("Recognize", ocr.ErrUnsupportedType, "text/plain")}})

	rec := upload(t, s, "/api/ocr", "hello")
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestAnalyzeRoute(t *testing.T) {
	s := newTestServer(nil)

	rec := upload(t, s, "/api/analyze", "%PDF")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"text":"analyzed","tables":[{"data":[["a"]]}]}`, rec.Body.String())
}

func TestExtractionSessionLifecycle(t *testing.T) {
	provider := &fakeProvider{}
	s := newTestServer(provider)
	defer s.sessions.closeAll()

	rec := do(t, s, http.MethodPost, "/api/extractions", map[string]string{"fileUrl": "https://files.example/doc.pdf"})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decode(t, rec)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	require.Equal(t, "processing", created["extractionState"])
	require.Equal(t, true, created["isProcessing"])
	require.Equal(t, "job-1", created["jobId"])

	provider.setStatus(&pulse.JobStatus{Status: "completed", Result: json.RawMessage(`{"markdown":"# Done"}`)})

	require.Eventually(t, func() bool {
		body := decode(t, do(t, s, http.MethodGet, "/api/extractions/"+id, nil))
		return body["extractionState"] == "completed"
	}, 2*time.Second, 10*time.Millisecond)

	body := decode(t, do(t, s, http.MethodGet, "/api/extractions/"+id, nil))
	require.Equal(t, "Extraction completed!", body["extractionStatus"])
	require.Equal(t, false, body["isProcessing"])
	data, _ := body["extractedData"].(map[string]any)
	require.Equal(t, "# Done", data["text"])
	require.Equal(t, map[string]any{"document_kind": ""}, data["schema"])

	rec = do(t, s, http.MethodPost, "/api/extractions/"+id+"/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reset := decode(t, rec)
	require.Equal(t, "idle", reset["extractionState"])
	require.Nil(t, reset["extractedData"])

	rec = do(t, s, http.MethodDelete, "/api/extractions/"+id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/extractions/"+id, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtractionSessionSubmitFailure(t *testing.T) {
	s := newTestServer(&fakeProvider{submitErr: errors.New("HTTP error! status: 401")})
	defer s.sessions.closeAll()

	rec := do(t, s, http.MethodPost, "/api/extractions", map[string]string{"fileUrl": "https://files.example/doc.pdf"})

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "failed", body["extractionState"])
	require.Equal(t, "Failed to extract: HTTP error! status: 401", body["extractionStatus"])
}

func TestUnknownSession(t *testing.T) {
	s := newTestServer(&fakeProvider{})

	for _, rec := range []*httptest.ResponseRecorder{
		do(t, s, http.MethodGet, "/api/extractions/nope", nil),
		do(t, s, http.MethodPost, "/api/extractions/nope/reset", nil),
		do(t, s, http.MethodDelete, "/api/extractions/nope", nil),
	} {
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.True(t, strings.Contains(rec.Body.String(), "not found"))
	}
}

func TestCORSPreflight(t *testing.T) {
	s := New(Config{CORSOrigins: []string{"https://dashboard.example"}}, Services{})

	req := httptest.NewRequest(http.MethodOptions, "/api/pulse/poll", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, "https://dashboard.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
