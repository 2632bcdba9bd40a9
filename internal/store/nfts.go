package store

import (
	"context"
	"strings"
	"time"

	"github.com/gitmint/gitmint/internal/apierr"
	"github.com/gitmint/gitmint/internal/models"
	"github.com/gitmint/gitmint/internal/wallet"
)

// NFTs returns all minted contribution NFTs.
func (s *Store) NFTs(ctx context.Context) ([]models.NFT, error) {
	return s.nfts.Load(ctx)
}

// AddNFT appends a freshly minted NFT, assigning its ID. NFTs are
// immutable once appended; there is no update path.
func (s *Store) AddNFT(ctx context.Context, nft models.NFT, writer wallet.Address) (models.NFT, error) {
	var added models.NFT
	var addErr error
	_, err := s.nfts.Mutate(ctx, writer, func(rows []models.NFT) []models.NFT {
		nft.ID = nextID(rows, func(r models.NFT) int64 { return r.ID })
		if nft.MintedAt.IsZero() {
			nft.MintedAt = time.Now()
		}
		if err := nft.Validate(); err != nil {
			addErr = apierr.BadRequest(err.Error())
			return rows
		}
		added = nft
		return append(rows, nft)
	})
	if err != nil {
		return models.NFT{}, err
	}
	if addErr != nil {
		return models.NFT{}, addErr
	}
	return added, nil
}

// NFTsByOwner returns the NFTs minted by the given user.
func (s *Store) NFTsByOwner(ctx context.Context, userID int64) ([]models.NFT, error) {
	rows, err := s.nfts.Load(ctx)
	if err != nil {
		return nil, err
	}
	owned := []models.NFT{}
	for _, row := range rows {
		if row.UserID == userID {
			owned = append(owned, row)
		}
	}
	return owned, nil
}

// HasMintedForRepo reports whether the user already minted an NFT for the
// named repository.
func (s *Store) HasMintedForRepo(ctx context.Context, userID int64, fullName string) (bool, error) {
	rows, err := s.nfts.Load(ctx)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row.UserID == userID && strings.EqualFold(row.RepositoryName, fullName) {
			return true, nil
		}
	}
	return false, nil
}

// MintNFT is the end-to-end mint flow: append the NFT, bump the
// repository's NFT counter, reward the minter's reputation, and log a mint
// activity. The NFT append is authoritative; failures in the follow-up
// denormalizations are logged and do not undo the mint.
func (s *Store) MintNFT(ctx context.Context, nft models.NFT, writer wallet.Address) (models.NFT, error) {
	minted, err := s.AddNFT(ctx, nft, writer)
	if err != nil {
		return models.NFT{}, err
	}

	if err := s.IncrementNFTCount(ctx, minted.RepositoryName, writer); err != nil {
		s.log.Warn("failed to bump repository nft count", "repository", minted.RepositoryName, "err", err)
	}
	if err := s.RecordMint(ctx, writer, writer); err != nil {
		s.log.Warn("failed to reward minter reputation", "wallet", writer, "err", err)
	}

	activity := models.Activity{
		UserID: minted.UserID,
		Type:   models.ActivityNFTMint,
		Metadata: map[string]any{
			"nft_id":     minted.ID,
			"repository": minted.RepositoryName,
			"rarity":     minted.Rarity,
			"tx_hash":    minted.TxHash,
		},
	}
	if _, err := s.AddActivity(ctx, activity, writer); err != nil {
		s.log.Warn("failed to record mint activity", "nft", minted.ID, "err", err)
	}
	return minted, nil
}
