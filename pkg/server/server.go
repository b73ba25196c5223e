// Package server exposes the brief, image, ad generation, and collaboration
// operations over a JSON REST API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/GeorgeStrakhov/briefboarder/pkg/approach"
	"github.com/GeorgeStrakhov/briefboarder/pkg/briefs"
	"github.com/GeorgeStrakhov/briefboarder/pkg/collab"
	"github.com/GeorgeStrakhov/briefboarder/pkg/core"
	"github.com/GeorgeStrakhov/briefboarder/pkg/errors"
	"github.com/GeorgeStrakhov/briefboarder/pkg/imagegen"
	"github.com/GeorgeStrakhov/briefboarder/pkg/logging"
)

// BriefStore is the persistence surface the server needs.
type BriefStore interface {
	CreateBrief(ctx context.Context, b *briefs.Brief) error
	GetBrief(ctx context.Context, id string) (*briefs.Brief, error)
	GetBriefBySlug(ctx context.Context, slug string) (*briefs.Brief, error)
	ListBriefs(ctx context.Context) ([]*briefs.Brief, error)
	UpdateBrief(ctx context.Context, id string, params briefs.UpdateParams) (*briefs.Brief, error)
	DeleteBrief(ctx context.Context, id string) error
}

// ImageGenerator is the pass-through image provider surface.
type ImageGenerator interface {
	Generate(ctx context.Context, req *imagegen.GenerateRequest) (*imagegen.Response, error)
	Edit(ctx context.Context, req *imagegen.EditRequest) (*imagegen.Response, error)
}

// Config holds HTTP server settings.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server wires the application services behind an HTTP mux.
type Server struct {
	store      BriefStore
	llm        core.LLM
	approaches *approach.Registry
	images     ImageGenerator
	sessions   *collab.Issuer
	logger     *logging.Logger

	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// New creates a server. The registry may be nil, in which case the default
// registry with the builtin approaches is used.
func New(cfg Config, store BriefStore, llm core.LLM, images ImageGenerator, sessions *collab.Issuer, registry *approach.Registry) *Server {
	if registry == nil {
		registry = approach.DefaultRegistry()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		store:           store,
		llm:             llm,
		approaches:      registry,
		images:          images,
		sessions:        sessions,
		logger:          logging.GetLogger(),
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler builds the route table. Exposed separately for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/briefs", s.handleListBriefs)
	mux.HandleFunc("POST /api/briefs", s.handleCreateBrief)
	mux.HandleFunc("GET /api/briefs/slug/{slug}", s.handleGetBriefBySlug)
	mux.HandleFunc("GET /api/briefs/{id}", s.handleGetBrief)
	mux.HandleFunc("PATCH /api/briefs/{id}", s.handleUpdateBrief)
	mux.HandleFunc("DELETE /api/briefs/{id}", s.handleDeleteBrief)
	mux.HandleFunc("POST /api/briefs/{id}/enhance", s.handleEnhanceBrief)

	mux.HandleFunc("POST /api/images/generate", s.handleGenerateImage)
	mux.HandleFunc("POST /api/images/edit", s.handleEditImage)

	mux.HandleFunc("GET /api/approaches", s.handleListApproaches)
	mux.HandleFunc("POST /api/ads/generate", s.handleGenerateAd)

	mux.HandleFunc("POST /api/collab/session", s.handleCollabSession)

	return s.logRequests(mux)
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, errors.Unknown, "HTTP server failed")
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	s.logger.Info(ctx, "shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Every log line downstream of this handler carries the request ID
		ctx := logging.WithRequestID(r.Context(), uuid.NewString())
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info(ctx, "%s %s -> %d (%s)",
			r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error(context.Background(), "failed to encode response: %v", err)
		}
	}
}

// writeError maps error codes to HTTP statuses. Unhandled errors are logged
// and surfaced as a generic 500 so internals never leak to clients.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch errors.CodeOf(err) {
	case errors.InvalidInput, errors.ValidationFailed:
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.ResourceNotFound:
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Unauthorized:
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.ProviderUnavailable:
		s.logger.Error(r.Context(), "provider failure on %s: %v", r.URL.Path, err)
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream provider unavailable"})
	default:
		s.logger.Error(r.Context(), "unhandled error on %s: %v", r.URL.Path, err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(err, errors.InvalidInput, "invalid JSON request body")
	}
	return nil
}
