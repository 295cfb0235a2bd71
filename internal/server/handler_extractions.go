package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"docdash/internal/extraction"
)

var errSessionNotFound = errors.New("extraction session not found")

type createExtractionRequest struct {
	FileURL string `json:"fileUrl"`
}

type extractionResponse struct {
	ID string `json:"id"`
	extraction.Snapshot
}

// handleCreateExtraction opens a session and starts its extraction. The
// submission runs within the request, so the response already shows
// processing or the submission failure.
func (s *Server) handleCreateExtraction(w http.ResponseWriter, r *http.Request) {
	if s.services.Provider == nil {
		writeError(w, http.StatusServiceUnavailable, errProviderUnavailable)
		return
	}

	var req createExtractionRequest

	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if strings.TrimSpace(req.FileURL) == "" {
		writeError(w, http.StatusBadRequest, extraction.ErrEmptyFileURL)
		return
	}

	sess := s.sessions.create()
	sess.controller.Start(r.Context(), req.FileURL)

	writeJson(w, http.StatusCreated, extractionResponse{
		ID:       sess.id,
		Snapshot: sess.controller.Snapshot(),
	})
}

func (s *Server) handleGetExtraction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.get(chi.URLParam(r, "id"))

	if !ok {
		writeError(w, http.StatusNotFound, errSessionNotFound)
		return
	}

	writeJson(w, http.StatusOK, extractionResponse{
		ID:       sess.id,
		Snapshot: sess.controller.Snapshot(),
	})
}

func (s *Server) handleResetExtraction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.get(chi.URLParam(r, "id"))

	if !ok {
		writeError(w, http.StatusNotFound, errSessionNotFound)
		return
	}

	sess.controller.Reset()

	writeJson(w, http.StatusOK, extractionResponse{
		ID:       sess.id,
		Snapshot: sess.controller.Snapshot(),
	})
}

func (s *Server) handleDeleteExtraction(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, errSessionNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
