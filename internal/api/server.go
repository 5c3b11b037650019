// Package api exposes the HTTP interface for the harvest service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"taxicab/internal/doi"
	"taxicab/internal/harvest"
	"taxicab/internal/policy"
)

// Harvester is the subset of the orchestrator the HTTP layer needs.
type Harvester interface {
	HarvestURL(ctx context.Context, req harvest.URLRequest) (*harvest.Result, error)
	HarvestDOI(ctx context.Context, req harvest.DOIRequest) (*harvest.Result, error)
	HarvestPDF(ctx context.Context, req harvest.PDFRequest) (*harvest.Result, error)
}

// Server wires HTTP handlers to the harvester.
type Server struct {
	router    chi.Router
	harvester Harvester
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(harvester Harvester, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		harvester: harvester,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(120 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/harvest", s.handleHarvest)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type harvestRequest struct {
	NativeID          string `json:"native_id"`
	NativeIDNamespace string `json:"native_id_namespace"`
	URL               string `json:"url"`
	DOI               string `json:"doi"`
	PDFURL            string `json:"pdf_url"`
	Version           string `json:"version"`
}

// harvestResponse summarizes a harvest without the payload itself; callers
// read the content from the cache path.
type harvestResponse struct {
	ID                string `json:"id"`
	URL               string `json:"url"`
	ResolvedURL       string `json:"resolved_url"`
	ContentType       string `json:"content_type"`
	StatusCode        int    `json:"status_code"`
	CreatedDate       string `json:"created_date"`
	IsSoftBlock       bool   `json:"is_soft_block"`
	CachePath         string `json:"cache_path,omitempty"`
	NativeID          string `json:"native_id"`
	NativeIDNamespace string `json:"native_id_namespace"`
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	var req harvestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.NativeID == "" || req.NativeIDNamespace == "" {
		writeError(w, http.StatusBadRequest, "native_id and native_id_namespace are required")
		return
	}

	var (
		result *harvest.Result
		err    error
	)
	switch {
	case req.PDFURL != "":
		result, err = s.harvester.HarvestPDF(r.Context(), harvest.PDFRequest{
			URL:               req.PDFURL,
			DOI:               req.DOI,
			Version:           req.Version,
			NativeID:          req.NativeID,
			NativeIDNamespace: req.NativeIDNamespace,
		})
	case req.DOI != "":
		result, err = s.harvester.HarvestDOI(r.Context(), harvest.DOIRequest{
			DOI:               req.DOI,
			NativeID:          req.NativeID,
			NativeIDNamespace: req.NativeIDNamespace,
		})
	case req.URL != "":
		result, err = s.harvester.HarvestURL(r.Context(), harvest.URLRequest{
			URL:               req.URL,
			NativeID:          req.NativeID,
			NativeIDNamespace: req.NativeIDNamespace,
		})
	default:
		writeError(w, http.StatusBadRequest, "one of url, doi, or pdf_url is required")
		return
	}
	if err != nil {
		s.writeHarvestError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, harvestResponse{
		ID:                result.ID,
		URL:               result.URL,
		ResolvedURL:       result.ResolvedURL,
		ContentType:       string(result.ContentType),
		StatusCode:        result.StatusCode,
		CreatedDate:       result.CreatedAt.UTC().Format(time.RFC3339),
		IsSoftBlock:       result.IsSoftBlock,
		CachePath:         result.CachePath,
		NativeID:          result.NativeID,
		NativeIDNamespace: result.NativeIDNamespace,
	})
}

func (s *Server) writeHarvestError(w http.ResponseWriter, err error) {
	var (
		validationErr *harvest.ValidationError
		contentErr    *harvest.ContentError
		fetchErr      *harvest.FetchError
		conflictErr   *policy.ConflictError
	)
	switch {
	case errors.As(err, &validationErr), errors.Is(err, doi.ErrNoDOI):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &contentErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &fetchErr):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &conflictErr):
		s.logger.Error("fetch policy conflict", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.logger.Error("harvest failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
