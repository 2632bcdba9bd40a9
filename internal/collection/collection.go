// Package collection implements the read-modify-write pattern for named
// entity collections stored as single JSON blobs.
//
// A collection named "users" is physically one document {"users": [...]}
// at a content-addressed URI. Because the blob store is immutable, every
// mutation loads the whole array, applies a function, uploads the result
// as a new blob, and repoints the registry at it.
package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gitmint/gitmint/internal/grove"
	"github.com/gitmint/gitmint/internal/registry"
	"github.com/gitmint/gitmint/internal/wallet"
)

// DefaultCASRetries bounds the retry loop of MutateCAS.
const DefaultCASRetries = 3

// Collection is a typed accessor for one named collection.
type Collection[T any] struct {
	name  string
	blobs *grove.Client
	reg   *registry.Client
	log   *slog.Logger
}

// New creates an accessor for the named collection.
func New[T any](name string, blobs *grove.Client, reg *registry.Client, log *slog.Logger) *Collection[T] {
	if log == nil {
		log = slog.Default()
	}
	return &Collection[T]{name: name, blobs: blobs, reg: reg, log: log.With("collection", name)}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// Load returns the current rows of the collection.
//
// A missing registry pointer means the collection was never written and
// yields an empty slice. A fetch failure is returned as an error: callers
// must not mistake "data temporarily unavailable" for an empty collection.
// A document with the wrong wrapper shape is treated as empty with a
// logged warning, since the backing store enforces no schema.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	rows, _, err := c.load(ctx)
	return rows, err
}

func (c *Collection[T]) load(ctx context.Context) ([]T, grove.URI, error) {
	uri, err := c.reg.Resolve(ctx, c.name)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return []T{}, "", nil
		}
		return nil, "", err
	}
	raw, err := c.blobs.Fetch(ctx, uri)
	if err != nil {
		return nil, "", err
	}
	return c.unwrap(raw), uri, nil
}

// unwrap extracts the entity array from the wrapper document.
func (c *Collection[T]) unwrap(raw json.RawMessage) []T {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		c.log.Warn("malformed collection document, treating as empty", "err", err)
		return []T{}
	}
	arr, ok := doc[c.name]
	if !ok {
		c.log.Warn("collection document is missing its wrapper key, treating as empty")
		return []T{}
	}
	var rows []T
	if err := json.Unmarshal(arr, &rows); err != nil {
		c.log.Warn("collection rows do not match the expected shape, treating as empty", "err", err)
		return []T{}
	}
	if rows == nil {
		rows = []T{}
	}
	return rows
}

// Mutate loads the current rows, applies fn, uploads the result as a new
// blob scoped to the writer's wallet, and repoints the registry. It
// returns the new URI.
//
// Concurrent mutations are NOT serialized: two callers can read the same
// base array and upload divergent versions, and the later registry update
// silently wins (last-write-wins), losing the other writer's change. Use
// MutateCAS when that hazard is unacceptable.
func (c *Collection[T]) Mutate(ctx context.Context, writer wallet.Address, fn func([]T) []T) (grove.URI, error) {
	rows, oldURI, err := c.load(ctx)
	if err != nil {
		return "", err
	}

	newURI, err := c.upload(ctx, writer, fn(rows))
	if err != nil {
		return "", err
	}

	ok, err := c.reg.Update(ctx, c.name, newURI)
	if err != nil || !ok {
		// The blob exists in storage but is unreachable through the
		// registry; readers keep seeing the pre-mutation state.
		c.log.Warn("registry update failed, uploaded blob is orphaned", "uri", newURI, "err", err)
		if err == nil {
			err = fmt.Errorf("registry update for %s was not applied", c.name)
		}
		return "", err
	}

	c.blobs.Invalidate(oldURI)
	return newURI, nil
}

// MutateCAS is the conflict-detecting variant of Mutate: the registry
// pointer is only moved if it still matches the URI the rows were read
// from, otherwise the whole read-modify-write is retried. After retries
// conflicting attempts it gives up with an error wrapping
// registry.ErrPointerMoved. retries <= 0 uses DefaultCASRetries.
func (c *Collection[T]) MutateCAS(ctx context.Context, writer wallet.Address, fn func([]T) []T, retries int) (grove.URI, error) {
	if retries <= 0 {
		retries = DefaultCASRetries
	}
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		rows, baseURI, err := c.load(ctx)
		if err != nil {
			return "", err
		}
		newURI, err := c.upload(ctx, writer, fn(rows))
		if err != nil {
			return "", err
		}
		if _, err := c.reg.UpdateIf(ctx, c.name, newURI, baseURI); err != nil {
			if errors.Is(err, registry.ErrPointerMoved) {
				lastErr = err
				c.log.Debug("pointer moved during mutation, retrying", "attempt", attempt)
				continue
			}
			c.log.Warn("registry update failed, uploaded blob is orphaned", "uri", newURI, "err", err)
			return "", err
		}
		c.blobs.Invalidate(baseURI)
		return newURI, nil
	}
	return "", fmt.Errorf("mutation of %s lost to concurrent writers: %w", c.name, lastErr)
}

func (c *Collection[T]) upload(ctx context.Context, writer wallet.Address, rows []T) (grove.URI, error) {
	if rows == nil {
		rows = []T{}
	}
	doc := map[string][]T{c.name: rows}
	uri, err := c.blobs.UploadJSON(ctx, doc, grove.WalletACL(writer))
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", c.name, err)
	}
	return uri, nil
}
