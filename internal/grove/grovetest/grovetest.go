// Package grovetest provides an in-memory fake of the Grove storage
// gateway for tests.
package grovetest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Server is an in-memory, content-addressed blob store speaking the same
// HTTP surface as the real Grove gateway: POST /upload returns a grove://
// URI, GET /{key} serves the blob.
type Server struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	fetches int
	uploads int

	HTTP *httptest.Server
}

// New starts a fake Grove backend. Callers must Close it.
func New() *Server {
	s := &Server{blobs: make(map[string][]byte)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /{key}", s.handleGet)
	s.HTTP = httptest.NewServer(mux)
	return s
}

// Close shuts the fake backend down.
func (s *Server) Close() {
	s.HTTP.Close()
}

// URL returns the endpoint to hand to grove.NewClient.
func (s *Server) URL() string {
	return s.HTTP.URL
}

// Fetches returns how many GET requests reached the backend.
func (s *Server) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// Uploads returns how many uploads reached the backend.
func (s *Server) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

// Put stores raw JSON directly and returns its URI. Useful for seeding
// malformed documents that the client would refuse to upload.
func (s *Server) Put(raw []byte) string {
	key := contentKey(raw)
	s.mu.Lock()
	s.blobs[key] = raw
	s.mu.Unlock()
	return "grove://" + key
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ACL struct {
			Template string `json:"template"`
			Wallet   string `json:"wallet"`
		} `json:"acl"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ACL.Template == "" || req.ACL.Wallet == "" {
		http.Error(w, "missing acl", http.StatusForbidden)
		return
	}

	key := contentKey(req.Data)
	s.mu.Lock()
	s.blobs[key] = req.Data
	s.uploads++
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"uri": "grove://" + key})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := strings.Trim(r.PathValue("key"), "/")
	s.mu.Lock()
	blob, ok := s.blobs[key]
	s.fetches++
	s.mu.Unlock()

	if !ok {
		http.Error(w, "blob not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(blob)
}

func contentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
