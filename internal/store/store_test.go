package store

import (
	"context"
	"testing"
	"time"

	"github.com/gitmint/gitmint/internal/grove"
	"github.com/gitmint/gitmint/internal/grove/grovetest"
	"github.com/gitmint/gitmint/internal/models"
	"github.com/gitmint/gitmint/internal/registry"
	"github.com/gitmint/gitmint/internal/registry/registrytest"
	"github.com/gitmint/gitmint/internal/wallet"
)

const (
	minterWallet = wallet.Address("0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb")
	otherWallet  = wallet.Address("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
)

type env struct {
	backend *grovetest.Server
	pointer *registrytest.Server
	store   *Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	backend := grovetest.New()
	t.Cleanup(backend.Close)

	regStore, err := registry.NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	pointer := registrytest.New(regStore)
	t.Cleanup(pointer.Close)

	cache := grove.NewCache(5*time.Minute, nil)
	blobs := grove.NewClient(backend.URL(), cache)
	reg := registry.NewClient(pointer.URL(), "", cache, nil)
	return &env{
		backend: backend,
		pointer: pointer,
		store:   New(blobs, reg, nil),
	}
}

func (e *env) addUser(t *testing.T, addr wallet.Address) models.User {
	t.Helper()
	user, err := e.store.AddUser(context.Background(), models.User{WalletAddress: addr}, addr)
	if err != nil {
		t.Fatal(err)
	}
	return user
}

func (e *env) addRepository(t *testing.T, userID int64, fullName string) models.Repository {
	t.Helper()
	repo, err := e.store.AddRepository(context.Background(),
		models.Repository{UserID: userID, FullName: fullName}, minterWallet)
	if err != nil {
		t.Fatal(err)
	}
	return repo
}

func TestIDAssignment(t *testing.T) {
	e := newEnv(t)

	first := e.addUser(t, minterWallet)
	second := e.addUser(t, otherWallet)
	if first.ID != 1 || second.ID != 2 {
		t.Errorf("IDs = %d, %d, want 1, 2", first.ID, second.ID)
	}
}

func TestAccessorsDefaultOnMalformedDocuments(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// Point every collection at a document without the expected wrapper
	// key. Accessors must return empty, never fail.
	uri, err := grove.ParseURI(e.backend.Put([]byte(`{"unexpected": true}`)))
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		models.CollectionUsers, models.CollectionRepositories,
		models.CollectionNFTs, models.CollectionActivities,
	} {
		if _, err := e.pointer.Store.Set(name, uri); err != nil {
			t.Fatal(err)
		}
	}

	if rows, err := e.store.Users(ctx); err != nil || len(rows) != 0 {
		t.Errorf("Users = %v, %v", rows, err)
	}
	if rows, err := e.store.Repositories(ctx); err != nil || len(rows) != 0 {
		t.Errorf("Repositories = %v, %v", rows, err)
	}
	if rows, err := e.store.NFTs(ctx); err != nil || len(rows) != 0 {
		t.Errorf("NFTs = %v, %v", rows, err)
	}
	if rows, err := e.store.Activities(ctx); err != nil || len(rows) != 0 {
		t.Errorf("Activities = %v, %v", rows, err)
	}
}
