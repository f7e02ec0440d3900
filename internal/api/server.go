package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/semcache/internal/metrics"
	"github.com/dshills/semcache/pkg/types"
)

const (
	// RequestIDHeader carries the per-request identifier
	RequestIDHeader = "X-Request-ID"

	// WelcomeMessage is returned by GET /
	WelcomeMessage = "Welcome to SemanticCache API"

	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Backend is the engine surface the HTTP API needs
type Backend interface {
	Search(ctx context.Context, req types.SearchRequest) ([]types.RankedResult, error)
	Health(ctx context.Context) (*types.Health, error)
}

// SearchRequest is the POST /api/v1/search body. Omitted fields take the
// defaults k=5, alpha=0.5, rerank=true.
type SearchRequest struct {
	Query  string   `json:"query"`
	K      *int     `json:"k,omitempty"`
	Alpha  *float64 `json:"alpha,omitempty"`
	Rerank *bool    `json:"rerank,omitempty"`
}

// toDomain applies the defaults for omitted fields
func (r SearchRequest) toDomain() types.SearchRequest {
	req := types.SearchRequest{
		Query:  r.Query,
		K:      types.DefaultK,
		Alpha:  types.DefaultAlpha,
		Rerank: true,
	}
	if r.K != nil {
		req.K = *r.K
	}
	if r.Alpha != nil {
		req.Alpha = *r.Alpha
	}
	if r.Rerank != nil {
		req.Rerank = *r.Rerank
	}
	return req
}

// SearchResponse is the POST /api/v1/search reply
type SearchResponse struct {
	Results []types.RankedResult `json:"results"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger.With().Str("component", "api").Logger() }
}

// WithMetrics exposes m at GET /metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server serves the search API over HTTP
type Server struct {
	backend Backend
	metrics *metrics.Metrics
	logger  zerolog.Logger
	handler http.Handler
}

// NewServer creates a server backed by b
func NewServer(b Backend, opts ...Option) *Server {
	s := &Server{backend: b, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /api/v1/search", s.handleSearch)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	s.handler = s.withRequestID(mux)
	return s
}

// Handler returns the root handler, including request ID middleware
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": WelcomeMessage})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	results, err := s.backend.Search(r.Context(), body.toDomain())
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.backend.Health(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

// statusFor maps a search error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, types.ErrRetrievalUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	event := s.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = s.logger.Error()
	}
	event.Err(err).Str("request_id", requestID(r)).Int("status", status).Msg("request failed")

	writeJSON(w, status, ErrorResponse{Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
