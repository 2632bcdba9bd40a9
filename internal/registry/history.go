package registry

import (
	"fmt"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

const (
	historyAuthorName  = "gitmintd"
	historyAuthorEmail = "gitmintd@localhost"
)

// History records registry pointer changes in a git repository (pure Go,
// no git binary dependency).
type History struct {
	dir  string
	repo *gogit.Repository
	mu   sync.Mutex
}

// PointerChange is one recorded registry update.
type PointerChange struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

func newHistory(dir string) (*History, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		// Not a repo yet, initialize.
		repo, err = gogit.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize history repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read history repo config: %w", err)
		}
		cfg.User.Name = historyAuthorName
		cfg.User.Email = historyAuthorEmail
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write history repo config: %w", err)
		}
	}
	return &History{dir: dir, repo: repo}, nil
}

// Commit stages file and commits it with msg. A clean worktree is a no-op.
func (h *History) Commit(msg string, file string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, err := h.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := w.Add(file); err != nil {
		return fmt.Errorf("failed to stage %s: %w", file, err)
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	if status.IsClean() {
		return nil
	}

	sig := &object.Signature{
		Name:  historyAuthorName,
		Email: historyAuthorEmail,
		When:  time.Now(),
	}
	if _, err := w.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Changes returns up to limit recorded pointer changes, newest first.
func (h *History) Changes(limit int) ([]PointerChange, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	head, err := h.repo.Head()
	if err != nil {
		// No commits yet.
		return nil, nil
	}
	iter, err := h.repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to read history log: %w", err)
	}
	defer iter.Close()

	var changes []PointerChange
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(changes) >= limit {
			return storer.ErrStop
		}
		changes = append(changes, PointerChange{
			Hash:    c.Hash.String(),
			Message: c.Message,
			When:    c.Author.When,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}
