package playqueue

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
)

// State is the persisted form of a queue: file paths, relative to the music
// directory when they live under it, plus the current index.
type State struct {
	Files []string `toml:"files"`
	Index int      `toml:"index"`
	Mode  Mode     `toml:"mode,omitempty"`
}

// Store loads and saves queue state.
type Store interface {
	Load() (State, error)
	Save(State) error
}

// FileStore keeps State in a TOML file.
type FileStore struct {
	Path string
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the state file. A missing file yields an empty State.
func (s *FileStore) Load() (State, error) {
	var st State
	if _, err := toml.DecodeFile(s.Path, &st); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("decode session %s: %w", s.Path, err)
	}
	return st, nil
}

// Save writes the state file, creating its directory if needed.
func (s *FileStore) Save(st State) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp := s.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(st); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode session: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// Snapshot returns the queue as State. Files under root are stored relative
// to it; anything else keeps its absolute path.
func (q *Queue) Snapshot(root string) State {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := State{Files: make([]string, len(q.items)), Index: q.index, Mode: q.mode}
	for i, p := range q.items {
		st.Files[i] = sessionName(root, p)
	}
	return st
}

func sessionName(root, p string) string {
	if root == "" {
		return p
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || !filepath.IsLocal(rel) {
		return p
	}
	return filepath.ToSlash(rel)
}

// resolveSessionName maps a stored entry back to a path. Relative entries
// that climb out of root are rejected.
func resolveSessionName(root, name string) (string, bool) {
	if filepath.IsAbs(name) {
		return filepath.Clean(name), true
	}
	name = filepath.FromSlash(name)
	if !filepath.IsLocal(name) {
		return "", false
	}
	return filepath.Join(root, name), true
}

// Persist saves the queue to store, naming files relative to root.
func (q *Queue) Persist(store Store, root string) error {
	st := q.Snapshot(root)
	if err := store.Save(st); err != nil {
		return err
	}
	q.log.Debug("play queue saved", "entries", len(st.Files), "index", st.Index)
	return nil
}

// Restore replaces the queue with the state in store. Relative entries are
// resolved under root. Entries whose file no longer exists are dropped and
// the index is clamped. It reports false, leaving the queue empty, when no
// entry survives.
func (q *Queue) Restore(store Store, root string) (bool, error) {
	st, err := store.Load()
	if err != nil {
		return false, err
	}

	var items []string
	index := st.Index
	for i, name := range st.Files {
		p, ok := resolveSessionName(root, name)
		if ok {
			_, err = os.Stat(p)
		}
		if !ok || err != nil || slices.Contains(items, p) {
			q.log.Debug("dropping session entry", "file", name)
			if i < st.Index {
				index--
			}
			continue
		}
		items = append(items, p)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = items
	if m, err := ParseMode(string(st.Mode)); err == nil {
		q.mode = m
	}
	if len(items) == 0 {
		q.index = 0
		return false, nil
	}
	q.index = max(0, min(index, len(items)-1))
	q.log.Info("play queue restored", "entries", len(items), "dropped", len(st.Files)-len(items), "index", q.index)
	return true, nil
}
