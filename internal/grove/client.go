package grove

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gitmint/gitmint/internal/wallet"
)

// ACLTemplateWallet scopes an uploaded blob to a single wallet account:
// only that account may reference the blob as owned.
const ACLTemplateWallet = "wallet_address"

// ACL is the access-control rule attached to an uploaded blob.
type ACL struct {
	Template string         `json:"template"`
	Wallet   wallet.Address `json:"wallet"`
}

// WalletACL returns the wallet-scoped ACL for addr.
func WalletACL(addr wallet.Address) ACL {
	return ACL{Template: ACLTemplateWallet, Wallet: addr}
}

// FetchError tags a failed blob fetch with the URI and underlying cause.
// Callers must treat it as "data temporarily unavailable", never as an
// empty collection.
type FetchError struct {
	URI    URI
	Status int // 0 when the request never completed
	Err    error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URI, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URI, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client talks to the Grove storage gateway.
type Client struct {
	endpoint   string
	httpClient *http.Client
	cache      *Cache
}

// NewClient creates a Grove client for the given gateway endpoint. cache
// may be nil to disable caching.
func NewClient(endpoint string, cache *Cache) *Client {
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
	}
}

// ResolveURL converts a grove URI to the fetchable HTTP URL on the gateway.
func (c *Client) ResolveURL(uri URI) string {
	return c.endpoint + "/" + uri.Key()
}

// Fetch returns the JSON document stored at uri. A value fetched less than
// the cache TTL ago is returned without a network call.
func (c *Client) Fetch(ctx context.Context, uri URI) (json.RawMessage, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(uri); ok {
			return v, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ResolveURL(uri), http.NoBody)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{URI: uri, Status: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}
	if !json.Valid(body) {
		return nil, &FetchError{URI: uri, Err: fmt.Errorf("response is not valid JSON")}
	}

	raw := json.RawMessage(body)
	if c.cache != nil {
		c.cache.Set(uri, raw)
	}
	return raw, nil
}

type uploadRequest struct {
	ACL  ACL             `json:"acl"`
	Data json.RawMessage `json:"data"`
}

type uploadResponse struct {
	URI string `json:"uri"`
}

// UploadJSON uploads doc as a new immutable blob under the given ACL and
// returns its content-addressed URI. The backing store never mutates in
// place; the previous version of the document stays reachable at its old
// URI until the registry pointer moves.
func (c *Client) UploadJSON(ctx context.Context, doc any, acl ACL) (URI, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	payload, err := json.Marshal(uploadRequest{ACL: acl, Data: data})
	if err != nil {
		return "", fmt.Errorf("marshal upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/upload", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("upload: decode response: %w", err)
	}
	uri, err := ParseURI(out.URI)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return uri, nil
}

// Invalidate drops uri from the cache.
func (c *Client) Invalidate(uri URI) {
	if c.cache != nil {
		c.cache.Invalidate(uri)
	}
}

// InvalidateAll drops every listed URI from the cache.
func (c *Client) InvalidateAll(uris []URI) {
	if c.cache != nil {
		c.cache.InvalidateAll(uris)
	}
}
