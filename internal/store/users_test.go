package store

import (
	"context"
	"testing"

	"github.com/gitmint/gitmint/internal/apierr"
	"github.com/gitmint/gitmint/internal/models"
	"github.com/gitmint/gitmint/internal/wallet"
)

func TestUserByWalletIgnoresCase(t *testing.T) {
	e := newEnv(t)
	created := e.addUser(t, minterWallet)

	lowered := wallet.Address("0xd1220a0cf47c7b9be7a2e6ba89f429762e7b9adb")
	user, err := e.store.UserByWallet(context.Background(), lowered)
	if err != nil {
		t.Fatal(err)
	}
	if user.ID != created.ID {
		t.Errorf("UserByWallet = %d, want %d", user.ID, created.ID)
	}
}

func TestUserNotFound(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, minterWallet)

	_, err := e.store.UserByWallet(context.Background(), otherWallet)
	if !apierr.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
	_, err = e.store.UserByID(context.Background(), 99)
	if !apierr.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestAddUserRejectsDuplicateWallet(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, minterWallet)

	_, err := e.store.AddUser(context.Background(), models.User{WalletAddress: minterWallet}, minterWallet)
	if err == nil {
		t.Fatal("expected duplicate wallet to be rejected")
	}

	users, err := e.store.Users(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 {
		t.Errorf("expected 1 user after rejected insert, got %d", len(users))
	}
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t)
	e.addUser(t, minterWallet)

	bio := "compiler person"
	location := "Lisbon"
	if err := e.store.UpdateProfile(context.Background(), minterWallet,
		ProfileUpdate{Bio: &bio, Location: &location}, minterWallet); err != nil {
		t.Fatal(err)
	}

	user, err := e.store.UserByWallet(context.Background(), minterWallet)
	if err != nil {
		t.Fatal(err)
	}
	if user.Bio != bio || user.Location != location {
		t.Errorf("profile = %q/%q", user.Bio, user.Location)
	}
	if user.Website != "" {
		t.Errorf("untouched field changed: %q", user.Website)
	}

	if err := e.store.UpdateProfile(context.Background(), otherWallet,
		ProfileUpdate{Bio: &bio}, minterWallet); !apierr.IsNotFound(err) {
		t.Errorf("expected not-found for unknown wallet, got %v", err)
	}
}

func TestLinkGitHub(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	existing := e.addUser(t, minterWallet)

	linked, err := e.store.LinkGitHub(ctx, minterWallet, "octocat", minterWallet)
	if err != nil {
		t.Fatal(err)
	}
	if linked.ID != existing.ID || linked.GitHubUsername != "octocat" {
		t.Errorf("linked = %+v", linked)
	}

	// An unknown wallet gets a fresh user record.
	created, err := e.store.LinkGitHub(ctx, otherWallet, "hubot", minterWallet)
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == existing.ID {
		t.Error("expected a new user for the unknown wallet")
	}

	// The same login cannot be linked to a second wallet.
	if _, err := e.store.LinkGitHub(ctx, otherWallet, "octocat", minterWallet); err == nil {
		t.Error("expected duplicate github login to be rejected")
	}

	// Linking is recorded in the activity log.
	activities, err := e.store.ActivitiesByUser(ctx, existing.ID)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, a := range activities {
		if a.Type == models.ActivityGitHubLink {
			found = true
		}
	}
	if !found {
		t.Error("github link activity missing from the log")
	}

	user, err := e.store.UserByGitHub(ctx, "OctoCat")
	if err != nil {
		t.Fatal(err)
	}
	if user.ID != existing.ID {
		t.Errorf("UserByGitHub = %d, want %d", user.ID, existing.ID)
	}
}
