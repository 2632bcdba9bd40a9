// Package store provides typed accessors for the application collections:
// users, repositories, nfts, and activities.
//
// Every accessor works against full collection documents: reads fetch the
// whole array and filter in memory, writes rewrite the whole array as a
// new blob. There is no partial update path.
package store

import (
	"log/slog"

	"github.com/gitmint/gitmint/internal/collection"
	"github.com/gitmint/gitmint/internal/grove"
	"github.com/gitmint/gitmint/internal/models"
	"github.com/gitmint/gitmint/internal/registry"
)

// Store is the façade over the four application collections.
type Store struct {
	users        *collection.Collection[models.User]
	repositories *collection.Collection[models.Repository]
	nfts         *collection.Collection[models.NFT]
	activities   *collection.Collection[models.Activity]
	log          *slog.Logger
}

// New wires a Store against the given blob and registry clients.
func New(blobs *grove.Client, reg *registry.Client, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		users:        collection.New[models.User](models.CollectionUsers, blobs, reg, log),
		repositories: collection.New[models.Repository](models.CollectionRepositories, blobs, reg, log),
		nfts:         collection.New[models.NFT](models.CollectionNFTs, blobs, reg, log),
		activities:   collection.New[models.Activity](models.CollectionActivities, blobs, reg, log),
		log:          log,
	}
}

// nextID assigns the next integer ID for a collection: one past the
// highest existing ID.
func nextID[T any](rows []T, id func(T) int64) int64 {
	maxID := int64(0)
	for _, row := range rows {
		if v := id(row); v > maxID {
			maxID = v
		}
	}
	return maxID + 1
}
