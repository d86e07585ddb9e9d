package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mdpress/presto/internal/domain"
	"github.com/mdpress/presto/internal/logger"
	healthuc "github.com/mdpress/presto/internal/usecase/health"
	manifestuc "github.com/mdpress/presto/internal/usecase/manifest"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried in ErrorResponse.Code.
const (
	CodeBadRequest            = "bad_request"
	CodeUnsupportedIdentifier = "unsupported_identifier"
	CodeNotFound              = "not_found"
	CodeUpstreamFailed        = "upstream_failed"
	CodeStoreUnavailable      = "store_unavailable"
	CodeInternalError         = "internal_error"
)

// Server exposes the manifest service over HTTP. Error logging uses
// the request-scoped logger installed by the logging middleware.
type Server struct {
	manifests     *manifestuc.Service
	health        *healthuc.Service
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(manifests *manifestuc.Service, health *healthuc.Service) *Server {
	s := &Server{
		manifests: manifests,
		health:    health,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnsupportedIdentifier, http.StatusBadRequest, CodeUnsupportedIdentifier),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrAllResolversFailed, http.StatusBadGateway, CodeUpstreamFailed),
		sentinelHandler(domain.ErrUpstreamFetch, http.StatusBadGateway, CodeUpstreamFailed),
		sentinelHandler(domain.ErrCacheBackend, http.StatusServiceUnavailable, CodeStoreUnavailable),
	}
	return s
}

// Routes mounts the server's handlers on a router. The manifest route
// is a catch-all because identifiers contain slashes
// (gh:acct/repo/path/to/image.jpg/manifest.json).
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Post("/manifest", s.CreateManifest)
	r.Post("/manifest/", s.CreateManifest)
	r.Get("/thumbnail/*", s.Thumbnail)
	r.Get("/*", s.GetManifest)
}

// GetManifest handles GET /{identifier...}/manifest.json.
func (s *Server) GetManifest(w http.ResponseWriter, r *http.Request) {
	identifier, ok := manifestIdentifier(chi.URLParam(r, "*"))
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "not found")
		return
	}

	m, err := s.manifests.GetManifest(r.Context(), identifier, refreshParam(r))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// CreateManifest handles POST /manifest with a JSON property object.
func (s *Server) CreateManifest(w http.ResponseWriter, r *http.Request) {
	var props map[string]any
	if err := json.NewDecoder(r.Body).Decode(&props); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	m, err := s.manifests.CreateManifest(r.Context(), props, refreshParam(r))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// Thumbnail handles GET /thumbnail/{identifier...} with a redirect to
// the thumbnail rendition.
func (s *Server) Thumbnail(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "*")
	if identifier == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "identifier is required")
		return
	}

	url, err := s.manifests.Thumbnail(r.Context(), identifier, refreshParam(r))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// manifestIdentifier extracts the identifier from a wildcard manifest
// path ("gh:acct/repo/x.jpg/manifest.json").
func manifestIdentifier(wildcard string) (string, bool) {
	identifier, ok := strings.CutSuffix(wildcard, "/manifest.json")
	if !ok || identifier == "" {
		return "", false
	}
	return identifier, true
}

// refreshParam reports whether the request forces a rebuild. A bare
// ?refresh counts the same as ?refresh=true.
func refreshParam(r *http.Request) bool {
	if !r.URL.Query().Has("refresh") {
		return false
	}
	v := r.URL.Query().Get("refresh")
	return v == "" || v == "true"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrUnsupportedIdentifier,
		domain.ErrNotFound,
		domain.ErrAllResolversFailed,
		domain.ErrUpstreamFetch,
		domain.ErrCacheBackend,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	writeError(w, http.StatusInternalServerError, CodeInternalError, msg)
}
