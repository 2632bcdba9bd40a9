// Package models defines the core data structures used throughout the application.
package models

import (
	"fmt"
	"time"

	"github.com/gitmint/gitmint/internal/wallet"
)

// MintReputation is the fixed reputation reward granted to a user for
// minting a contribution NFT.
const MintReputation = 10

// Collection names. Each name doubles as the wrapper key of the stored
// document: the blob for "users" is {"users": [...]}.
const (
	CollectionUsers        = "users"
	CollectionRepositories = "repositories"
	CollectionNFTs         = "nfts"
	CollectionActivities   = "activities"
)

// User represents a developer identity.
type User struct {
	ID             int64          `json:"id"`
	WalletAddress  wallet.Address `json:"wallet_address,omitempty"`
	GitHubUsername string         `json:"github_username,omitempty"`
	Name           string         `json:"name,omitempty"`
	Bio            string         `json:"bio,omitempty"`
	Location       string         `json:"location,omitempty"`
	Website        string         `json:"website,omitempty"`
	Reputation     int            `json:"reputation"`
	Created        time.Time      `json:"created"`
	Modified       time.Time      `json:"modified"`
}

// Validate checks that the user is well formed.
func (u *User) Validate() error {
	if u.ID <= 0 {
		return fmt.Errorf("id is required")
	}
	if u.WalletAddress == "" && u.GitHubUsername == "" {
		return fmt.Errorf("wallet address or github username is required")
	}
	return nil
}

// Repository represents a tracked open-source repository.
type Repository struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	FullName    string    `json:"full_name"` // "owner/name"
	Description string    `json:"description,omitempty"`
	Language    string    `json:"language,omitempty"`
	Stars       int       `json:"stars"`
	// NFTCount is a denormalized counter bumped whenever an NFT references
	// this repository. It can go stale under concurrent writers.
	NFTCount int       `json:"nft_count"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// Validate checks that the repository is well formed.
func (r *Repository) Validate() error {
	if r.ID <= 0 {
		return fmt.Errorf("id is required")
	}
	if r.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if r.UserID <= 0 {
		return fmt.Errorf("user_id is required")
	}
	return nil
}

// NFT represents a minted contribution NFT. Immutable once minted.
type NFT struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`
	// RepositoryName references the repository by full name rather than by
	// ID. The association is resolvable but not referentially enforced.
	RepositoryName string    `json:"repository_name"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	ImageURI       string    `json:"image_uri,omitempty"`
	Rarity         string    `json:"rarity,omitempty"`
	TxHash         string    `json:"tx_hash,omitempty"`
	MintedAt       time.Time `json:"minted_at"`
}

// Validate checks that the NFT is well formed.
func (n *NFT) Validate() error {
	if n.ID <= 0 {
		return fmt.Errorf("id is required")
	}
	if n.UserID <= 0 {
		return fmt.Errorf("user_id is required")
	}
	if n.RepositoryName == "" {
		return fmt.Errorf("repository_name is required")
	}
	return nil
}

// ActivityType discriminates the kinds of entries in the activity log.
type ActivityType string

const (
	// ActivityNFTMint records a contribution NFT mint.
	ActivityNFTMint ActivityType = "nft_mint"
	// ActivityUserFollow records a user following another user.
	ActivityUserFollow ActivityType = "user_follow"
	// ActivityRepoFollow records a user following a repository.
	ActivityRepoFollow ActivityType = "repo_follow"
	// ActivityGitHubLink records a GitHub account being linked to a user.
	ActivityGitHubLink ActivityType = "github_link"
)

// TargetKind identifies what a follow activity points at.
type TargetKind string

const (
	// TargetUser marks a follow edge pointing at a user.
	TargetUser TargetKind = "user"
	// TargetRepository marks a follow edge pointing at a repository.
	TargetRepository TargetKind = "repository"
)

// FollowTarget is the typed follow edge carried by follow activities.
type FollowTarget struct {
	Kind           TargetKind `json:"kind"`
	UserID         int64      `json:"user_id,omitempty"`
	RepositoryName string     `json:"repository_name,omitempty"`
}

// Activity is an append-only event log entry. Follow edges are encoded as
// activity rows with a typed Target rather than as a dedicated edge
// collection; "is following" is answered by scanning the log.
type Activity struct {
	ID     int64        `json:"id"`
	UserID int64        `json:"user_id"`
	Type   ActivityType `json:"type"`
	// Target is set for user_follow and repo_follow activities.
	Target *FollowTarget `json:"target,omitempty"`
	// Metadata holds type-specific fields for the remaining activity kinds
	// (tags, rarity, transaction hash).
	Metadata map[string]any `json:"metadata,omitempty"`
	Created  time.Time      `json:"created"`
}

// Validate checks that the activity is well formed.
func (a *Activity) Validate() error {
	if a.ID <= 0 {
		return fmt.Errorf("id is required")
	}
	if a.UserID <= 0 {
		return fmt.Errorf("user_id is required")
	}
	if a.Type == "" {
		return fmt.Errorf("type is required")
	}
	switch a.Type {
	case ActivityUserFollow:
		if a.Target == nil || a.Target.Kind != TargetUser || a.Target.UserID <= 0 {
			return fmt.Errorf("user_follow requires a user target")
		}
	case ActivityRepoFollow:
		if a.Target == nil || a.Target.Kind != TargetRepository || a.Target.RepositoryName == "" {
			return fmt.Errorf("repo_follow requires a repository target")
		}
	}
	return nil
}
