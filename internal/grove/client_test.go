package grove

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/gitmint/gitmint/internal/grove/grovetest"
)

func TestParseURI(t *testing.T) {
	uri, err := ParseURI("grove://3f8a-B_1")
	if err != nil {
		t.Fatal(err)
	}
	if uri.Key() != "3f8a-B_1" {
		t.Errorf("Key() = %q", uri.Key())
	}

	for _, bad := range []string{"", "grove://", "lens://abc", "grove://a b", "abc"} {
		if _, err := ParseURI(bad); err == nil {
			t.Errorf("ParseURI(%q) succeeded, want error", bad)
		}
	}
}

func TestUploadFetchRoundTrip(t *testing.T) {
	backend := grovetest.New()
	defer backend.Close()

	client := NewClient(backend.URL(), nil)
	doc := map[string][]map[string]any{
		"nfts": {{"id": float64(1), "name": "first-commit"}},
	}

	uri, err := client.UploadJSON(context.Background(), doc, WalletACL("0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb"))
	if err != nil {
		t.Fatal(err)
	}

	raw, err := client.Fetch(context.Background(), uri)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string][]map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Errorf("round trip mismatch: got %v, want %v", got, doc)
	}
}

func TestFetchUsesCache(t *testing.T) {
	backend := grovetest.New()
	defer backend.Close()

	clock := &fakeClock{now: time.Now()}
	cache := NewCache(5*time.Minute, clock.Now)
	client := NewClient(backend.URL(), cache)

	uri, err := ParseURI(backend.Put([]byte(`{"users":[]}`)))
	if err != nil {
		t.Fatal(err)
	}

	for range 3 {
		if _, err := client.Fetch(context.Background(), uri); err != nil {
			t.Fatal(err)
		}
	}
	if n := backend.Fetches(); n != 1 {
		t.Errorf("expected 1 backend fetch, got %d", n)
	}

	// Past the TTL the network is hit again.
	clock.Advance(5*time.Minute + time.Second)
	if _, err := client.Fetch(context.Background(), uri); err != nil {
		t.Fatal(err)
	}
	if n := backend.Fetches(); n != 2 {
		t.Errorf("expected 2 backend fetches after TTL expiry, got %d", n)
	}
}

func TestFetchErrorTagged(t *testing.T) {
	backend := grovetest.New()
	defer backend.Close()

	client := NewClient(backend.URL(), nil)
	uri := URI("grove://does-not-exist")
	_, err := client.Fetch(context.Background(), uri)
	if err == nil {
		t.Fatal("expected error for missing blob")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fe.URI != uri {
		t.Errorf("error tagged with URI %q, want %q", fe.URI, uri)
	}
	if fe.Status != 404 {
		t.Errorf("Status = %d, want 404", fe.Status)
	}
}

func TestUploadRequiresACL(t *testing.T) {
	backend := grovetest.New()
	defer backend.Close()

	client := NewClient(backend.URL(), nil)
	if _, err := client.UploadJSON(context.Background(), map[string]any{}, ACL{}); err == nil {
		t.Fatal("expected upload without ACL to be rejected")
	}
}
