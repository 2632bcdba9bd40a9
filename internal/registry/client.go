// Package registry tracks the current storage URI of each named collection.
//
// The backing blob store is immutable, so every collection mutation yields
// a brand-new URI. The registry mapping (collection name -> current URI) is
// the authoritative pointer all readers resolve first; it is persisted
// through a small HTTP side-channel served by the gateway.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gitmint/gitmint/internal/grove"
)

// ErrNotFound is returned when no pointer exists for a collection yet.
var ErrNotFound = errors.New("registry pointer not found")

// ErrPointerMoved is returned by conditional updates when the registry no
// longer points at the expected URI.
var ErrPointerMoved = errors.New("registry pointer moved")

// Client resolves and updates collection pointers over the gateway API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cache      *grove.Cache
	log        *slog.Logger

	mu    sync.RWMutex
	known map[string]grove.URI // last observed mapping, used for the invalidation sweep
}

// NewClient creates a registry client. token authenticates pointer updates
// and may be empty for read-only use. cache may be nil; when set, every
// successful pointer update sweeps it.
func NewClient(baseURL, token string, cache *grove.Cache, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cache:      cache,
		log:        log,
		known:      make(map[string]grove.URI),
	}
}

type pointerPayload struct {
	Key      string `json:"key"`
	URI      string `json:"uri"`
	Expected string `json:"expected_uri,omitempty"`
}

// Resolve returns the current URI for the named collection. It returns an
// error wrapping ErrNotFound when no pointer exists yet.
func (c *Client) Resolve(ctx context.Context, name string) (grove.URI, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/grove/uri/"+name, http.NoBody)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		c.mu.Lock()
		delete(c.known, name)
		c.mu.Unlock()
		return "", fmt.Errorf("resolve %s: %w", name, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolve %s: unexpected status %d", name, resp.StatusCode)
	}

	var out pointerPayload
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("resolve %s: decode response: %w", name, err)
	}
	uri, err := grove.ParseURI(out.URI)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}

	c.mu.Lock()
	c.known[name] = uri
	c.mu.Unlock()
	return uri, nil
}

// Update persists a new pointer for the named collection and reports
// success. When the registry already points at uri the call is a no-op and
// reports success without touching the cache. On success the blob cache is
// swept for every URI in the current mapping.
//
// A failed update leaves the freshly uploaded blob orphaned; there is no
// rollback, readers simply keep seeing the pre-mutation state.
func (c *Client) Update(ctx context.Context, name string, uri grove.URI) (bool, error) {
	current, err := c.Resolve(ctx, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if current == uri {
		return true, nil
	}
	return c.post(ctx, pointerPayload{Key: name, URI: uri.String()})
}

// UpdateIf performs a compare-and-swap pointer update: it succeeds only if
// the registry still points at expected. A zero expected URI means "no
// pointer must exist yet". It returns an error wrapping ErrPointerMoved
// when a concurrent writer won.
func (c *Client) UpdateIf(ctx context.Context, name string, uri, expected grove.URI) (bool, error) {
	payload := pointerPayload{Key: name, URI: uri.String(), Expected: expected.String()}
	if expected.IsZero() {
		payload.Expected = "none"
	}
	return c.post(ctx, payload)
}

func (c *Client) post(ctx context.Context, payload pointerPayload) (bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/grove/uri", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", payload.Key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusConflict {
		return false, fmt.Errorf("update %s: %w", payload.Key, ErrPointerMoved)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("update %s: unexpected status %d: %s", payload.Key, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	// Sweep every URI of the mapping as observed before and after the
	// update. Defensive: the registry may have changed under us, so the
	// whole mapping is swept rather than a single entry.
	uri := grove.URI(payload.URI)
	c.mu.Lock()
	uris := make([]grove.URI, 0, len(c.known)+1)
	for _, u := range c.known {
		uris = append(uris, u)
	}
	c.known[payload.Key] = uri
	uris = append(uris, uri)
	c.mu.Unlock()
	if c.cache != nil {
		c.cache.InvalidateAll(uris)
	}
	return true, nil
}

// KnownURIs returns the URIs of the last observed mapping.
func (c *Client) KnownURIs() []grove.URI {
	c.mu.RLock()
	defer c.mu.RUnlock()
	uris := make([]grove.URI, 0, len(c.known))
	for _, uri := range c.known {
		uris = append(uris, uri)
	}
	return uris
}
