package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"docdash/internal/analyze"
	"docdash/internal/classify"
	"docdash/internal/ocr"
)

type classifyRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest

	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, classify.ErrMissingURL)
		return
	}

	if s.services.Classifier == nil {
		writeError(w, http.StatusServiceUnavailable, classify.ErrMissingAPIKey)
		return
	}

	result, err := s.services.Classifier.Classify(r.Context(), req.URL)

	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Document type identification failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJson(w, http.StatusOK, result)
}

type ocrResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
}

func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	if s.services.OCR == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("OCR engine is not configured"))
		return
	}

	file, err := s.readFile(w, r)

	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	defer file.Close()

	result, err := s.services.OCR.Recognize(r.Context(), file)

	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("OCR failed")
		writeError(w, statusForDocumentError(err), err)
		return
	}

	writeJson(w, http.StatusOK, ocrResponse{Success: true, Text: result.Text})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.services.Analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("document analysis is not configured"))
		return
	}

	file, err := s.readFile(w, r)

	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	defer file.Close()

	result, err := s.services.Analyzer.Analyze(r.Context(), file)

	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Document analysis failed")
		writeError(w, statusForDocumentError(err), err)
		return
	}

	writeJson(w, http.StatusOK, result)
}

func statusForDocumentError(err error) int {
	switch {
	case errors.Is(err, ocr.ErrFileTooLarge), errors.Is(err, analyze.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ocr.ErrUnsupportedType), errors.Is(err, analyze.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ocr.ErrTooManyPages), errors.Is(err, ocr.ErrEmptyDocument):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
