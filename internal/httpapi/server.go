// Package httpapi is the artifact retrieval surface: listing, deletion,
// cleanup triggering, and Range-capable downloads. It never reaches
// around the store.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/diwenne/clutch-shot-searcher/internal/store"
	"github.com/diwenne/clutch-shot-searcher/internal/types"
)

type Server struct {
	store  *store.Store
	logger zerolog.Logger
}

func NewServer(st *store.Store, logger zerolog.Logger) *Server {
	return &Server{
		store:  st,
		logger: logger.With().Str("component", "httpapi").Logger(),
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/exports", s.handleList)
	r.Get("/exports/{filename}", s.handleDownload)
	r.Delete("/exports/{filename}", s.handleDelete)
	r.Post("/cleanup", s.handleCleanup)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type listResponse struct {
	Exports []types.Artifact `json:"exports"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	arts, err := s.store.Artifacts(r.Context())
	if err != nil {
		s.internalError(w, err, "list artifacts")
		return
	}
	if arts == nil {
		arts = []types.Artifact{}
	}
	writeJSON(w, http.StatusOK, listResponse{Exports: arts})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	f, art, err := s.store.Open(filename)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	if err != nil {
		s.internalError(w, err, "open artifact")
		return
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	rng, err := parseRange(r.Header.Get("Range"), art.SizeBytes)
	if errors.Is(err, errUnsatisfiable) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", art.SizeBytes))
		writeError(w, http.StatusRequestedRangeNotSatisfiable, "range not satisfiable")
		return
	}
	// Per RFC 9110 a malformed Range header is ignored, not rejected.
	if err != nil || rng == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(art.SizeBytes, 10))
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, f)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(rng.length(), 10))
	w.Header().Set("Content-Range", rng.contentRange(art.SizeBytes))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := f.Seek(rng.start, io.SeekStart); err != nil {
		s.logger.Error().Err(err).Str("filename", filename).Msg("seek failed")
		return
	}
	_, _ = io.CopyN(w, f, rng.length())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	err := s.store.Delete(r.Context(), filename)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	if err != nil {
		s.internalError(w, err, "delete artifact")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	hours := 24.0
	if raw := r.URL.Query().Get("max_age_hours"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "max_age_hours must be a non-negative number")
			return
		}
		hours = v
	}

	stats, err := s.store.Cleanup(r.Context(), time.Duration(hours*float64(time.Hour)))
	if err != nil {
		s.internalError(w, err, "cleanup")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) internalError(w http.ResponseWriter, err error, op string) {
	s.logger.Error().Err(err).Str("op", op).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
