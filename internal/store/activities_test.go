package store

import (
	"context"
	"testing"

	"github.com/gitmint/gitmint/internal/models"
)

func TestFollowRepositoryDetection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := e.addUser(t, minterWallet)

	if err := e.store.FollowRepository(ctx, user.ID, "octocat/hello-world", minterWallet); err != nil {
		t.Fatal(err)
	}

	following, err := e.store.IsFollowingRepository(ctx, minterWallet, "octocat/hello-world")
	if err != nil {
		t.Fatal(err)
	}
	if !following {
		t.Error("follow not detected")
	}

	// Full-name match is case-insensitive, like GitHub slugs.
	following, err = e.store.IsFollowingRepository(ctx, minterWallet, "Octocat/Hello-World")
	if err != nil {
		t.Fatal(err)
	}
	if !following {
		t.Error("case-insensitive match failed")
	}

	following, err = e.store.IsFollowingRepository(ctx, minterWallet, "someone/else")
	if err != nil {
		t.Fatal(err)
	}
	if following {
		t.Error("follow reported for a repository never followed")
	}

	// An unknown wallet simply isn't following anything.
	following, err = e.store.IsFollowingRepository(ctx, otherWallet, "octocat/hello-world")
	if err != nil {
		t.Fatal(err)
	}
	if following {
		t.Error("follow reported for an unknown wallet")
	}
}

func TestFollowRepositoryIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := e.addUser(t, minterWallet)

	for range 3 {
		if err := e.store.FollowRepository(ctx, user.ID, "octocat/hello-world", minterWallet); err != nil {
			t.Fatal(err)
		}
	}

	activities, err := e.store.ActivitiesByUser(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	follows := 0
	for _, a := range activities {
		if a.Type == models.ActivityRepoFollow {
			follows++
		}
	}
	if follows != 1 {
		t.Errorf("repo_follow entries = %d, want 1", follows)
	}
}

func TestUnfollowRepository(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := e.addUser(t, minterWallet)

	if err := e.store.FollowRepository(ctx, user.ID, "a/b", minterWallet); err != nil {
		t.Fatal(err)
	}
	if err := e.store.FollowRepository(ctx, user.ID, "c/d", minterWallet); err != nil {
		t.Fatal(err)
	}
	if err := e.store.UnfollowRepository(ctx, user.ID, "a/b", minterWallet); err != nil {
		t.Fatal(err)
	}

	following, err := e.store.IsFollowingRepository(ctx, minterWallet, "a/b")
	if err != nil {
		t.Fatal(err)
	}
	if following {
		t.Error("unfollowed repository still reported as followed")
	}

	// The other follow survives the splice.
	following, err = e.store.IsFollowingRepository(ctx, minterWallet, "c/d")
	if err != nil {
		t.Fatal(err)
	}
	if !following {
		t.Error("unrelated follow was dropped")
	}
}

func TestFollowUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.addUser(t, minterWallet)
	bob := e.addUser(t, otherWallet)

	if err := e.store.FollowUser(ctx, alice.ID, bob.ID, minterWallet); err != nil {
		t.Fatal(err)
	}

	following, err := e.store.IsFollowingUser(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !following {
		t.Error("user follow not detected")
	}

	// Follows are directed.
	following, err = e.store.IsFollowingUser(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if following {
		t.Error("follow detected in the reverse direction")
	}

	if err := e.store.UnfollowUser(ctx, alice.ID, bob.ID, minterWallet); err != nil {
		t.Fatal(err)
	}
	following, err = e.store.IsFollowingUser(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if following {
		t.Error("user follow survived unfollow")
	}
}

func TestAddActivityValidates(t *testing.T) {
	e := newEnv(t)

	// A repo follow without a repository target is rejected.
	_, err := e.store.AddActivity(context.Background(), models.Activity{
		UserID: 1,
		Type:   models.ActivityRepoFollow,
		Target: &models.FollowTarget{Kind: models.TargetUser, UserID: 2},
	}, minterWallet)
	if err == nil {
		t.Fatal("expected validation error")
	}
}
