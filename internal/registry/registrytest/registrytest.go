// Package registrytest serves the gateway's pointer endpoints in-process
// for tests, without authentication or rate limiting.
package registrytest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/gitmint/gitmint/internal/grove"
	"github.com/gitmint/gitmint/internal/registry"
)

// Server wraps a registry.Store behind the pointer HTTP API.
type Server struct {
	Store *registry.Store
	HTTP  *httptest.Server

	posts atomic.Int64
}

// New starts a pointer API over the given store. Callers must Close it.
func New(store *registry.Store) *Server {
	s := &Server{Store: store}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/grove/uri/{key}", s.handleGet)
	mux.HandleFunc("POST /api/grove/uri", s.handleSet)
	s.HTTP = httptest.NewServer(mux)
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.HTTP.Close()
}

// URL returns the base URL to hand to registry.NewClient.
func (s *Server) URL() string {
	return s.HTTP.URL
}

// Posts returns how many pointer updates reached the server.
func (s *Server) Posts() int64 {
	return s.posts.Load()
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	uri, ok := s.Store.Get(key)
	if !ok {
		http.Error(w, "pointer not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"key": key, "uri": uri.String()})
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	s.posts.Add(1)
	var p struct {
		Key      string `json:"key"`
		URI      string `json:"uri"`
		Expected string `json:"expected_uri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	uri, err := grove.ParseURI(p.URI)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var setErr error
	switch p.Expected {
	case "":
		_, setErr = s.Store.Set(p.Key, uri)
	case "none":
		_, setErr = s.Store.SetIf(p.Key, uri, "")
	default:
		expected, err := grove.ParseURI(p.Expected)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, setErr = s.Store.SetIf(p.Key, uri, expected)
	}
	switch {
	case errors.Is(setErr, registry.ErrPointerMoved):
		http.Error(w, setErr.Error(), http.StatusConflict)
	case setErr != nil:
		http.Error(w, setErr.Error(), http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusOK)
	}
}
