package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"

	"docdash/internal/extraction"
	"docdash/internal/pulse"
)

type extractRequest struct {
	FileURL     string `json:"fileUrl"`
	Method      string `json:"method"`
	SkipPolling bool   `json:"skipPolling"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if s.services.Provider == nil {
		writeError(w, http.StatusServiceUnavailable, errProviderUnavailable)
		return
	}

	var req extractRequest

	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if strings.TrimSpace(req.FileURL) == "" {
		writeError(w, http.StatusBadRequest, extraction.ErrEmptyFileURL)
		return
	}

	options := extraction.SubmitOptions{
		Chunking:     extraction.Chunking(req.Method),
		ReturnTables: true,
		SkipPolling:  req.SkipPolling,
		VerifyFile:   true,
	}

	submission, err := s.services.Provider.Submit(r.Context(), req.FileURL, options)

	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("file_url", req.FileURL).Msg("Extraction failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if req.SkipPolling {
		writeJson(w, http.StatusOK, map[string]any{"result": submission.Result})
		return
	}

	writeJson(w, http.StatusOK, map[string]any{"job_id": submission.JobID})
}

type extractAsyncRequest struct {
	FileURL string `json:"fileUrl"`
}

func (s *Server) handleExtractAsync(w http.ResponseWriter, r *http.Request) {
	if s.services.Provider == nil {
		writeError(w, http.StatusServiceUnavailable, errProviderUnavailable)
		return
	}

	var req extractAsyncRequest

	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if strings.TrimSpace(req.FileURL) == "" {
		writeError(w, http.StatusBadRequest, extraction.ErrEmptyFileURL)
		return
	}

	submission, err := s.services.Provider.Submit(r.Context(), req.FileURL, s.config.Async.Options)

	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("file_url", req.FileURL).Msg("Async extraction failed")
		writeJson(w, http.StatusInternalServerError, errorResponse{
			Error:   err.Error(),
			Details: detailOf(err),
		})
		return
	}

	writeJson(w, http.StatusOK, map[string]string{
		"job_id": submission.JobID,
		"status": submission.Status,
	})
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("jobId")

	if jobID == "" {
		writeError(w, http.StatusBadRequest, pulse.ErrMissingJobID)
		return
	}

	if s.services.Provider == nil {
		writeError(w, http.StatusServiceUnavailable, errProviderUnavailable)
		return
	}

	status, err := s.services.Provider.Job(r.Context(), jobID)

	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("job_id", jobID).Msg("Poll failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)

	if status.CreatedAt == "" {
		status.CreatedAt = now
	}
	if status.UpdatedAt == "" {
		status.UpdatedAt = now
	}
	if status.EstimatedCompletionTime == "" {
		status.EstimatedCompletionTime = now
	}

	writeJson(w, http.StatusOK, status)
}

func detailOf(err error) string {
	var apiErr *pulse.APIError

	if errors.As(err, &apiErr) {
		return http.StatusText(apiErr.StatusCode)
	}

	return ""
}
