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

// Repositories returns all tracked repositories.
func (s *Store) Repositories(ctx context.Context) ([]models.Repository, error) {
	return s.repositories.Load(ctx)
}

// AddRepository appends a new repository, assigning its ID. Full names are
// unique within the collection.
func (s *Store) AddRepository(ctx context.Context, repo models.Repository, writer wallet.Address) (models.Repository, error) {
	var added models.Repository
	var addErr error
	_, err := s.repositories.Mutate(ctx, writer, func(rows []models.Repository) []models.Repository {
		for _, existing := range rows {
			if strings.EqualFold(existing.FullName, repo.FullName) {
				addErr = apierr.BadRequest(fmt.Sprintf("repository %s is already tracked", repo.FullName))
				return rows
			}
		}
		repo.ID = nextID(rows, func(r models.Repository) int64 { return r.ID })
		now := time.Now()
		if repo.Created.IsZero() {
			repo.Created = now
		}
		repo.Modified = now
		if err := repo.Validate(); err != nil {
			addErr = apierr.BadRequest(err.Error())
			return rows
		}
		added = repo
		return append(rows, repo)
	})
	if err != nil {
		return models.Repository{}, err
	}
	if addErr != nil {
		return models.Repository{}, addErr
	}
	return added, nil
}

// RepositoryByFullName returns the repository named "owner/name".
func (s *Store) RepositoryByFullName(ctx context.Context, fullName string) (*models.Repository, error) {
	rows, err := s.repositories.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if strings.EqualFold(rows[i].FullName, fullName) {
			return &rows[i], nil
		}
	}
	return nil, apierr.NotFound("repository")
}

// RepositoriesByUser returns the repositories owned by the given user.
func (s *Store) RepositoriesByUser(ctx context.Context, userID int64) ([]models.Repository, error) {
	rows, err := s.repositories.Load(ctx)
	if err != nil {
		return nil, err
	}
	owned := []models.Repository{}
	for _, row := range rows {
		if row.UserID == userID {
			owned = append(owned, row)
		}
	}
	return owned, nil
}

// IncrementNFTCount bumps the denormalized NFT counter of the named
// repository. The counter is a cached value maintained through full
// collection rewrites; it can lag behind the NFT collection under
// concurrent writers.
func (s *Store) IncrementNFTCount(ctx context.Context, fullName string, writer wallet.Address) error {
	var found bool
	_, err := s.repositories.Mutate(ctx, writer, func(rows []models.Repository) []models.Repository {
		for i := range rows {
			if strings.EqualFold(rows[i].FullName, fullName) {
				rows[i].NFTCount++
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
		return apierr.NotFound("repository")
	}
	return nil
}
