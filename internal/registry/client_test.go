package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gitmint/gitmint/internal/grove"
	"github.com/gitmint/gitmint/internal/registry"
	"github.com/gitmint/gitmint/internal/registry/registrytest"
)

func newTestServer(t *testing.T) *registrytest.Server {
	t.Helper()
	store, err := registry.NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	srv := registrytest.New(store)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientResolveNotFound(t *testing.T) {
	srv := newTestServer(t)
	client := registry.NewClient(srv.URL(), "", nil, nil)

	if _, err := client.Resolve(context.Background(), "users"); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClientUpdateAndResolve(t *testing.T) {
	srv := newTestServer(t)
	client := registry.NewClient(srv.URL(), "", nil, nil)

	ok, err := client.Update(context.Background(), "users", "grove://v1")
	if err != nil || !ok {
		t.Fatalf("Update = %v, %v", ok, err)
	}

	uri, err := client.Resolve(context.Background(), "users")
	if err != nil {
		t.Fatal(err)
	}
	if uri != "grove://v1" {
		t.Errorf("Resolve = %q", uri)
	}

	// Re-pointing at the current URI reports success without a POST.
	before := srv.Posts()
	ok, err = client.Update(context.Background(), "users", "grove://v1")
	if err != nil || !ok {
		t.Fatalf("no-op Update = %v, %v", ok, err)
	}
	if srv.Posts() != before {
		t.Error("no-op update hit the persistence endpoint")
	}
}

func TestClientUpdateSweepsCache(t *testing.T) {
	srv := newTestServer(t)
	cache := grove.NewCache(5*time.Minute, nil)
	client := registry.NewClient(srv.URL(), "", cache, nil)

	if _, err := srv.Store.Set("users", "grove://v1"); err != nil {
		t.Fatal(err)
	}
	// Make the client aware of the current mapping, then cache the blob.
	if _, err := client.Resolve(context.Background(), "users"); err != nil {
		t.Fatal(err)
	}
	cache.Set("grove://v1", json.RawMessage(`{"users":[]}`))

	if _, err := client.Update(context.Background(), "users", "grove://v2"); err != nil {
		t.Fatal(err)
	}
	if _, cached := cache.Get("grove://v1"); cached {
		t.Error("stale blob survived the post-update sweep")
	}
}

func TestClientUpdateFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.Error(w, "pointer not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := registry.NewClient(srv.URL, "", nil, nil)
	ok, err := client.Update(context.Background(), "users", "grove://v1")
	if ok || err == nil {
		t.Fatalf("expected failure, got %v, %v", ok, err)
	}
}

func TestClientUpdateIfConflict(t *testing.T) {
	srv := newTestServer(t)
	client := registry.NewClient(srv.URL(), "", nil, nil)

	if _, err := client.UpdateIf(context.Background(), "nfts", "grove://v1", ""); err != nil {
		t.Fatal(err)
	}
	_, err := client.UpdateIf(context.Background(), "nfts", "grove://v2", "grove://stale")
	if !errors.Is(err, registry.ErrPointerMoved) {
		t.Errorf("expected ErrPointerMoved, got %v", err)
	}
}
