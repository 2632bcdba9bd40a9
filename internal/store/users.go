package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gitmint/gitmint/internal/apierr"
	"github.com/gitmint/gitmint/internal/models"
	"github.com/gitmint/gitmint/internal/wallet"
)

// Users returns all users.
func (s *Store) Users(ctx context.Context) ([]models.User, error) {
	return s.users.Load(ctx)
}

// AddUser appends a new user, assigning its ID. The wallet address and
// GitHub username act as natural keys and must be unique when present.
func (s *Store) AddUser(ctx context.Context, u models.User, writer wallet.Address) (models.User, error) {
	var added models.User
	var addErr error
	_, err := s.users.Mutate(ctx, writer, func(rows []models.User) []models.User {
		for _, existing := range rows {
			if !u.WalletAddress.IsZero() && existing.WalletAddress.Equal(u.WalletAddress) {
				addErr = apierr.BadRequest(fmt.Sprintf("wallet %s is already registered", u.WalletAddress))
				return rows
			}
			if u.GitHubUsername != "" && strings.EqualFold(existing.GitHubUsername, u.GitHubUsername) {
				addErr = apierr.BadRequest(fmt.Sprintf("github account %s is already linked", u.GitHubUsername))
				return rows
			}
		}
		u.ID = nextID(rows, func(r models.User) int64 { return r.ID })
		now := time.Now()
		if u.Created.IsZero() {
			u.Created = now
		}
		u.Modified = now
		if err := u.Validate(); err != nil {
			addErr = apierr.BadRequest(err.Error())
			return rows
		}
		added = u
		return append(rows, u)
	})
	if err != nil {
		return models.User{}, err
	}
	if addErr != nil {
		return models.User{}, addErr
	}
	return added, nil
}

// UserByID returns the user with the given ID.
func (s *Store) UserByID(ctx context.Context, id int64) (*models.User, error) {
	rows, err := s.users.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].ID == id {
			return &rows[i], nil
		}
	}
	return nil, apierr.NotFound("user")
}

// UserByWallet returns the user owning the given wallet address. Address
// casing is ignored.
func (s *Store) UserByWallet(ctx context.Context, addr wallet.Address) (*models.User, error) {
	rows, err := s.users.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].WalletAddress.Equal(addr) {
			return &rows[i], nil
		}
	}
	return nil, apierr.NotFound("user")
}

// UserByGitHub returns the user linked to the given GitHub login.
func (s *Store) UserByGitHub(ctx context.Context, login string) (*models.User, error) {
	rows, err := s.users.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if strings.EqualFold(rows[i].GitHubUsername, login) {
			return &rows[i], nil
		}
	}
	return nil, apierr.NotFound("user")
}

// RecordMint bumps the minting user's reputation by the fixed mint reward.
func (s *Store) RecordMint(ctx context.Context, addr wallet.Address, writer wallet.Address) error {
	var found bool
	_, err := s.users.Mutate(ctx, writer, func(rows []models.User) []models.User {
		for i := range rows {
			if rows[i].WalletAddress.Equal(addr) {
				rows[i].Reputation += models.MintReputation
				rows[i].Modified = time.Now()
				found = true
				break
			}
		}
		return rows
	})
	if err != nil {
		return err
	}
	if !found {
		return apierr.NotFound("user")
	}
	return nil
}

// ProfileUpdate carries the mutable profile fields. Nil fields are left
// untouched.
type ProfileUpdate struct {
	Name     *string
	Bio      *string
	Location *string
	Website  *string
}

// UpdateProfile updates the profile fields of the user owning addr.
func (s *Store) UpdateProfile(ctx context.Context, addr wallet.Address, upd ProfileUpdate, writer wallet.Address) error {
	var found bool
	_, err := s.users.Mutate(ctx, writer, func(rows []models.User) []models.User {
		for i := range rows {
			if !rows[i].WalletAddress.Equal(addr) {
				continue
			}
			if upd.Name != nil {
				rows[i].Name = *upd.Name
			}
			if upd.Bio != nil {
				rows[i].Bio = *upd.Bio
			}
			if upd.Location != nil {
				rows[i].Location = *upd.Location
			}
			if upd.Website != nil {
				rows[i].Website = *upd.Website
			}
			rows[i].Modified = time.Now()
			found = true
			break
		}
		return rows
	})
	if err != nil {
		return err
	}
	if !found {
		return apierr.NotFound("user")
	}
	return nil
}

// LinkGitHub links a GitHub login to the user owning addr, creating the
// user record if the wallet is new. Linking a login already attached to a
// different user fails.
func (s *Store) LinkGitHub(ctx context.Context, addr wallet.Address, login string, writer wallet.Address) (models.User, error) {
	if login == "" {
		return models.User{}, apierr.MissingField("github_username")
	}

	var linked models.User
	var linkErr error
	_, err := s.users.Mutate(ctx, writer, func(rows []models.User) []models.User {
		for i := range rows {
			if strings.EqualFold(rows[i].GitHubUsername, login) && !rows[i].WalletAddress.Equal(addr) {
				linkErr = apierr.BadRequest(fmt.Sprintf("github account %s is already linked", login))
				return rows
			}
		}
		for i := range rows {
			if rows[i].WalletAddress.Equal(addr) {
				rows[i].GitHubUsername = login
				rows[i].Modified = time.Now()
				linked = rows[i]
				return rows
			}
		}
		now := time.Now()
		linked = models.User{
			ID:             nextID(rows, func(r models.User) int64 { return r.ID }),
			WalletAddress:  addr,
			GitHubUsername: login,
			Created:        now,
			Modified:       now,
		}
		return append(rows, linked)
	})
	if err != nil {
		return models.User{}, err
	}
	if linkErr != nil {
		return models.User{}, linkErr
	}

	activity := models.Activity{
		UserID:   linked.ID,
		Type:     models.ActivityGitHubLink,
		Metadata: map[string]any{"github_username": login},
	}
	if _, err := s.AddActivity(ctx, activity, writer); err != nil {
		s.log.Warn("failed to record github link activity", "user", linked.ID, "err", err)
	}
	return linked, nil
}
