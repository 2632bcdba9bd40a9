package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gitmint/gitmint/internal/grove"
	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

const registryFileName = "registry.json"

// Store is the authoritative server-side pointer store backed by a single
// JSON file. Writes are guarded by a file lock so multiple gateway
// processes sharing a data directory do not clobber each other, and the
// file is re-read before every write to pick up external changes.
type Store struct {
	path string
	fl   *flock.Flock
	log  *slog.Logger

	mu      sync.RWMutex
	uris    map[string]grove.URI
	history *History
}

type registryFile struct {
	URIs map[string]string `json:"uris"`
}

// NewStore opens (or creates) the registry file under dir.
func NewStore(dir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		path: filepath.Join(dir, registryFileName),
		fl:   flock.New(filepath.Join(dir, registryFileName+".lock")),
		log:  log,
		uris: make(map[string]grove.URI),
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// EnableHistory starts committing every pointer change to a git repository
// rooted at the registry directory, giving an audit log of collection
// versions. Because blobs are content-addressed and never deleted, the
// pointer history is enough to reconstruct any past state.
func (s *Store) EnableHistory() error {
	h, err := newHistory(filepath.Dir(s.path))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.history = h
	s.mu.Unlock()
	return nil
}

// History returns the pointer change history, or nil when disabled.
func (s *Store) History() *History {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history
}

// Get returns the pointer for the named collection.
func (s *Store) Get(name string) (grove.URI, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uri, ok := s.uris[name]
	return uri, ok
}

// All returns a copy of the full mapping.
func (s *Store) All() map[string]grove.URI {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]grove.URI, len(s.uris))
	for k, v := range s.uris {
		out[k] = v
	}
	return out
}

// Set persists a new pointer. It reports false with a nil error when the
// registry already points at uri.
func (s *Store) Set(name string, uri grove.URI) (bool, error) {
	return s.set(name, uri, "", false)
}

// SetIf persists a new pointer only if the current pointer still equals
// expected (a zero expected means no pointer must exist). It returns an
// error wrapping ErrPointerMoved otherwise.
func (s *Store) SetIf(name string, uri, expected grove.URI) (bool, error) {
	return s.set(name, uri, expected, true)
}

func (s *Store) set(name string, uri, expected grove.URI, conditional bool) (bool, error) {
	if err := s.fl.Lock(); err != nil {
		return false, fmt.Errorf("failed to lock registry file: %w", err)
	}
	defer func() { _ = s.fl.Unlock() }()

	// Pick up writes from other processes before deciding anything.
	if err := s.reload(); err != nil {
		return false, err
	}

	s.mu.Lock()
	current := s.uris[name]
	if conditional && current != expected {
		s.mu.Unlock()
		return false, fmt.Errorf("set %s: have %s, expected %s: %w", name, current, expected, ErrPointerMoved)
	}
	if current == uri {
		s.mu.Unlock()
		return false, nil
	}
	s.uris[name] = uri
	snapshot := make(map[string]string, len(s.uris))
	for k, v := range s.uris {
		snapshot[k] = v.String()
	}
	history := s.history
	s.mu.Unlock()

	if err := s.persist(snapshot); err != nil {
		return false, err
	}
	if history != nil {
		msg := fmt.Sprintf("point %s at %s", name, uri)
		if err := history.Commit(msg, registryFileName); err != nil {
			s.log.Warn("failed to record pointer history", "collection", name, "err", err)
		}
	}
	return true, nil
}

func (s *Store) persist(snapshot map[string]string) error {
	data, err := json.MarshalIndent(registryFile{URIs: snapshot}, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace registry file: %w", err)
	}
	return nil
}

func (s *Store) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read registry file: %w", err)
	}
	var f registryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse registry file: %w", err)
	}
	uris := make(map[string]grove.URI, len(f.URIs))
	for k, v := range f.URIs {
		uri, err := grove.ParseURI(v)
		if err != nil {
			s.log.Warn("skipping invalid registry entry", "collection", k, "err", err)
			continue
		}
		uris[k] = uri
	}
	s.mu.Lock()
	s.uris = uris
	s.mu.Unlock()
	return nil
}

type seedFile struct {
	URIs map[string]string `yaml:"uris"`
}

// Seed loads a YAML bootstrap file and sets any pointer that is not
// already present. Existing pointers always win.
func (s *Store) Seed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}
	for name, raw := range f.URIs {
		uri, err := grove.ParseURI(raw)
		if err != nil {
			return fmt.Errorf("seed entry %s: %w", name, err)
		}
		if _, ok := s.Get(name); ok {
			continue
		}
		if _, err := s.Set(name, uri); err != nil {
			return err
		}
	}
	return nil
}

// Watch re-reads the registry file whenever it changes on disk, so edits
// made by another process (or an operator) become visible without a
// restart. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch registry directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != s.path || !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if err := s.reload(); err != nil {
				s.log.Warn("failed to reload registry file", "err", err)
			} else {
				s.log.Debug("registry file reloaded", "path", s.path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("registry watcher error", "err", err)
		}
	}
}
