package store

import (
	"context"
	"strings"
	"time"

	"github.com/gitmint/gitmint/internal/apierr"
	"github.com/gitmint/gitmint/internal/models"
	"github.com/gitmint/gitmint/internal/wallet"
)

// Activities returns the full activity log, newest entries last.
func (s *Store) Activities(ctx context.Context) ([]models.Activity, error) {
	return s.activities.Load(ctx)
}

// ActivitiesByUser returns the log entries of the given user.
func (s *Store) ActivitiesByUser(ctx context.Context, userID int64) ([]models.Activity, error) {
	rows, err := s.activities.Load(ctx)
	if err != nil {
		return nil, err
	}
	owned := []models.Activity{}
	for _, row := range rows {
		if row.UserID == userID {
			owned = append(owned, row)
		}
	}
	return owned, nil
}

// AddActivity appends an entry to the activity log, assigning its ID.
func (s *Store) AddActivity(ctx context.Context, a models.Activity, writer wallet.Address) (models.Activity, error) {
	var added models.Activity
	var addErr error
	_, err := s.activities.Mutate(ctx, writer, func(rows []models.Activity) []models.Activity {
		a.ID = nextID(rows, func(r models.Activity) int64 { return r.ID })
		if a.Created.IsZero() {
			a.Created = time.Now()
		}
		if err := a.Validate(); err != nil {
			addErr = apierr.BadRequest(err.Error())
			return rows
		}
		added = a
		return append(rows, a)
	})
	if err != nil {
		return models.Activity{}, err
	}
	if addErr != nil {
		return models.Activity{}, addErr
	}
	return added, nil
}

// FollowRepository records a repo_follow edge in the activity log. Already
// following is a no-op.
func (s *Store) FollowRepository(ctx context.Context, userID int64, fullName string, writer wallet.Address) error {
	following, err := s.isFollowing(ctx, userID, models.FollowTarget{Kind: models.TargetRepository, RepositoryName: fullName})
	if err != nil {
		return err
	}
	if following {
		return nil
	}
	_, err = s.AddActivity(ctx, models.Activity{
		UserID: userID,
		Type:   models.ActivityRepoFollow,
		Target: &models.FollowTarget{Kind: models.TargetRepository, RepositoryName: fullName},
	}, writer)
	return err
}

// FollowUser records a user_follow edge in the activity log.
func (s *Store) FollowUser(ctx context.Context, userID, targetID int64, writer wallet.Address) error {
	following, err := s.isFollowing(ctx, userID, models.FollowTarget{Kind: models.TargetUser, UserID: targetID})
	if err != nil {
		return err
	}
	if following {
		return nil
	}
	_, err = s.AddActivity(ctx, models.Activity{
		UserID: userID,
		Type:   models.ActivityUserFollow,
		Target: &models.FollowTarget{Kind: models.TargetUser, UserID: targetID},
	}, writer)
	return err
}

// UnfollowRepository splices the matching follow entries out of the log.
// This is the only delete path in the system.
func (s *Store) UnfollowRepository(ctx context.Context, userID int64, fullName string, writer wallet.Address) error {
	return s.unfollow(ctx, userID, models.FollowTarget{Kind: models.TargetRepository, RepositoryName: fullName}, writer)
}

// UnfollowUser splices the matching follow entries out of the log.
func (s *Store) UnfollowUser(ctx context.Context, userID, targetID int64, writer wallet.Address) error {
	return s.unfollow(ctx, userID, models.FollowTarget{Kind: models.TargetUser, UserID: targetID}, writer)
}

func (s *Store) unfollow(ctx context.Context, userID int64, target models.FollowTarget, writer wallet.Address) error {
	_, err := s.activities.Mutate(ctx, writer, func(rows []models.Activity) []models.Activity {
		kept := rows[:0]
		for _, row := range rows {
			if row.UserID == userID && matchesTarget(row, target) {
				continue
			}
			kept = append(kept, row)
		}
		return kept
	})
	return err
}

// IsFollowingRepository reports whether the user owning addr follows the
// named repository. An unknown wallet is simply not following anything.
func (s *Store) IsFollowingRepository(ctx context.Context, addr wallet.Address, fullName string) (bool, error) {
	user, err := s.UserByWallet(ctx, addr)
	if err != nil {
		if apierr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return s.isFollowing(ctx, user.ID, models.FollowTarget{Kind: models.TargetRepository, RepositoryName: fullName})
}

// IsFollowingUser reports whether userID follows targetID.
func (s *Store) IsFollowingUser(ctx context.Context, userID, targetID int64) (bool, error) {
	return s.isFollowing(ctx, userID, models.FollowTarget{Kind: models.TargetUser, UserID: targetID})
}

// isFollowing scans the activity log for a matching follow edge. There is
// no dedicated edge collection; the log is the source of truth.
func (s *Store) isFollowing(ctx context.Context, userID int64, target models.FollowTarget) (bool, error) {
	rows, err := s.activities.Load(ctx)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row.UserID == userID && matchesTarget(row, target) {
			return true, nil
		}
	}
	return false, nil
}

func matchesTarget(a models.Activity, target models.FollowTarget) bool {
	if a.Target == nil {
		return false
	}
	switch target.Kind {
	case models.TargetRepository:
		return a.Type == models.ActivityRepoFollow &&
			a.Target.Kind == models.TargetRepository &&
			strings.EqualFold(a.Target.RepositoryName, target.RepositoryName)
	case models.TargetUser:
		return a.Type == models.ActivityUserFollow &&
			a.Target.Kind == models.TargetUser &&
			a.Target.UserID == target.UserID
	}
	return false
}
