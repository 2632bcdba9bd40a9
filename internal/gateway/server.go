// Package gateway exposes the pointer registry over HTTP.
//
// The gateway is the authoritative side channel for collection pointers:
// clients resolve grove:// URIs through it and publish new pointers after
// uploading a rewritten collection blob. Pointer updates require a bearer
// token and support optional compare-and-swap on the previous URI.
package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gitmint/gitmint/internal/grove"
	"github.com/gitmint/gitmint/internal/registry"
	"github.com/gitmint/gitmint/internal/store"
)

// Server holds the gateway's dependencies.
type Server struct {
	cfg   *ServerConfig
	reg   *registry.Store
	data  *store.Store
	geo   *GeoChecker
	log   *slog.Logger
	reads *Limiter
	write *Limiter
	oauth *oauthLinker
}

// Options configures optional gateway features.
type Options struct {
	// GitHubClientID and GitHubClientSecret enable the account link flow.
	GitHubClientID     string
	GitHubClientSecret string
	// BaseURL is the externally visible URL, used for OAuth callbacks.
	BaseURL string
	// GeoDB is a loaded MaxMind database for request log geolocation.
	GeoDB *GeoChecker
}

// NewServer creates a gateway serving the given pointer store. The data
// store is used by the GitHub link flow and may be nil when OAuth is
// disabled.
func NewServer(cfg *ServerConfig, reg *registry.Store, data *store.Store, log *slog.Logger, opts Options) *Server {
	s := &Server{
		cfg:   cfg,
		reg:   reg,
		data:  data,
		geo:   opts.GeoDB,
		log:   log,
		reads: NewLimiter(cfg.RateLimits.ReadRatePerMin, time.Minute, cfg.RateLimits.ReadRatePerMin),
		write: NewLimiter(cfg.RateLimits.WriteRatePerMin, time.Minute, cfg.RateLimits.WriteRatePerMin),
	}
	if opts.GitHubClientID != "" && opts.GitHubClientSecret != "" {
		s.oauth = newOAuthLinker(data, opts.GitHubClientID, opts.GitHubClientSecret, opts.BaseURL, log)
	}
	return s
}

// Close releases the limiters' background goroutines.
func (s *Server) Close() {
	s.reads.Stop()
	s.write.Stop()
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/api/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(s.reads))
		r.Get("/api/grove/uris", s.handleListPointers)
		r.Get("/api/grove/uri/{key}", s.handleGetPointer)
		r.Get("/api/grove/history", s.handleHistory)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Use(rateLimit(s.write))
		r.Post("/api/grove/uri", s.handleSetPointer)
	})

	if s.oauth != nil {
		r.Get("/api/auth/github/link", s.oauth.LinkRedirect)
		r.Get("/api/auth/github/callback", s.oauth.Callback)
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type pointerResponse struct {
	Key string `json:"key"`
	URI string `json:"uri"`
}

func (s *Server) handleListPointers(w http.ResponseWriter, r *http.Request) {
	all := s.reg.All()
	out := make(map[string]string, len(all))
	for name, uri := range all {
		out[name] = uri.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"uris": out})
}

func (s *Server) handleGetPointer(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	uri, ok := s.reg.Get(key)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "No pointer registered for "+key)
		return
	}
	writeJSON(w, http.StatusOK, pointerResponse{Key: key, URI: uri.String()})
}

type setPointerRequest struct {
	Key      string `json:"key"`
	URI      string `json:"uri"`
	Expected string `json:"expected_uri"`
}

// handleSetPointer repoints a collection name at a new blob URI. With
// expected_uri set the update is conditional: "none" requires the pointer
// to not exist yet, any other value must match the current URI exactly.
func (s *Server) handleSetPointer(w http.ResponseWriter, r *http.Request) {
	var req setPointerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Malformed JSON body")
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "MISSING_FIELD", "key is required")
		return
	}
	uri, err := grove.ParseURI(req.URI)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "uri: "+err.Error())
		return
	}

	var changed bool
	switch req.Expected {
	case "":
		changed, err = s.reg.Set(req.Key, uri)
	case "none":
		changed, err = s.reg.SetIf(req.Key, uri, "")
	default:
		var expected grove.URI
		if expected, err = grove.ParseURI(req.Expected); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "expected_uri: "+err.Error())
			return
		}
		changed, err = s.reg.SetIf(req.Key, uri, expected)
	}
	if err != nil {
		if errors.Is(err, registry.ErrPointerMoved) {
			writeError(w, http.StatusConflict, "REGISTRY_CONFLICT", "Pointer moved since expected_uri was read")
			return
		}
		s.log.Error("pointer update failed", "key", req.Key, "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to persist pointer")
		return
	}
	s.log.Info("pointer set", "key", req.Key, "uri", uri, "changed", changed, "by", Subject(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"key": req.Key, "uri": uri.String(), "changed": changed})
}

type historyEntry struct {
	Hash    string `json:"hash"`
	Message string `json:"message"`
	When    string `json:"when"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	h := s.reg.History()
	if h == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Pointer history is not enabled")
		return
	}
	changes, err := h.Changes(50)
	if err != nil {
		s.log.Error("history read failed", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read history")
		return
	}
	out := make([]historyEntry, 0, len(changes))
	for _, c := range changes {
		out = append(out, historyEntry{Hash: c.Hash, Message: c.Message, When: c.When.UTC().Format(time.RFC3339)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": out})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}
