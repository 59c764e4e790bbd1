// Package settings persists user preferences in a small JSON key-value
// file, standing in for the browser's asynchronous settings storage that
// the realigner reads its toggle from.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// KeyEnableRealignment gates the whole system. Default true.
const KeyEnableRealignment = "enable_realignment"

// Store reads and writes one JSON settings file. A missing file behaves as
// an empty store; every key falls back to its default.
type Store struct {
	path string
	mu   sync.Mutex
}

// Open returns a store backed by the given path. The file is not touched
// until the first write.
func Open(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Enabled reads the realignment toggle. Callers should treat a read error
// as disabled: failing safe beats mutating a page on stale state.
func (s *Store) Enabled() (bool, error) {
	return s.Bool(KeyEnableRealignment, true)
}

// Bool reads a boolean key, returning def when the key is absent.
func (s *Store) Bool(key string, def bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.load()
	if err != nil {
		return def, err
	}
	raw, ok := kv[key]
	if !ok {
		return def, nil
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return def, fmt.Errorf("setting %q: %w", key, err)
	}
	return v, nil
}

// SetBool writes a boolean key.
func (s *Store) SetBool(key string, v bool) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.set(key, raw)
}

// String reads a string key, returning def when the key is absent.
func (s *Store) String(key, def string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.load()
	if err != nil {
		return def, err
	}
	raw, ok := kv[key]
	if !ok {
		return def, nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return def, fmt.Errorf("setting %q: %w", key, err)
	}
	return v, nil
}

// SetString writes a string key.
func (s *Store) SetString(key, v string) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.set(key, raw)
}

// Watch invokes onChange whenever the settings file is written, created or
// replaced, until ctx is cancelled. The parent directory is created so the
// subscription works before the first write.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory, not the file: editors and atomic writers
	// replace the file and would silently detach a file-level watch.
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return err
	}

	target := filepath.Clean(s.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				onChange()
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

func (s *Store) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, err
	}
	var kv map[string]json.RawMessage
	if err := json.Unmarshal(data, &kv); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", s.path, err)
	}
	if kv == nil {
		kv = map[string]json.RawMessage{}
	}
	return kv, nil
}

func (s *Store) set(key string, raw json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.load()
	if err != nil {
		return err
	}
	kv[key] = raw

	data, err := json.MarshalIndent(kv, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
