// Package snapshot persists the chat collection to a local JSON file.
//
// The file holds an object keyed by chat id. Older files that hold a plain
// array of chats are still accepted on load. Writes go to a temporary file
// first and are renamed into place so a crash never leaves a torn snapshot.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gizmoapp/gizmo/src/chat"
	"github.com/spf13/afero"
)

// DefaultFileName is the snapshot file name inside the state directory
const DefaultFileName = "chats.json"

// PersistenceError describes a failed snapshot read or write
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("snapshot %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Store reads and writes the snapshot file
type Store struct {
	fs   afero.Fs
	path string

	// serializes writers sharing the tmp file
	mu sync.Mutex
}

// New creates a snapshot store for path on fs
func New(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Path returns the snapshot file path
func (s *Store) Path() string {
	return s.path
}

// Load reads the snapshot. A missing file yields an empty collection.
func (s *Store) Load(ctx context.Context) (map[string]chat.Chat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]chat.Chat{}, nil
		}
		return nil, &PersistenceError{Op: "read", Path: s.path, Err: err}
	}

	chats, err := Decode(data)
	if err != nil {
		return nil, &PersistenceError{Op: "decode", Path: s.path, Err: err}
	}
	return chats, nil
}

// Save writes chats atomically
func (s *Store) Save(ctx context.Context, chats map[string]chat.Chat) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(chats)
	if err != nil {
		return &PersistenceError{Op: "encode", Path: s.path, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return &PersistenceError{Op: "mkdir", Path: dir, Err: err}
		}
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o600); err != nil {
		return &PersistenceError{Op: "write", Path: tmp, Err: err}
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return &PersistenceError{Op: "rename", Path: s.path, Err: err}
	}
	return nil
}

// Encode renders chats as the indented map form
func Encode(chats map[string]chat.Chat) ([]byte, error) {
	if chats == nil {
		chats = map[string]chat.Chat{}
	}
	return json.MarshalIndent(chats, "", "  ")
}

// Decode parses either the map form or the legacy list form. Entries
// without an id are dropped.
func Decode(data []byte) (map[string]chat.Chat, error) {
	trimmed := bytes.TrimSpace(data)
	out := map[string]chat.Chat{}
	if len(trimmed) == 0 {
		return out, nil
	}

	switch trimmed[0] {
	case '{':
		var byID map[string]chat.Chat
		if err := json.Unmarshal(trimmed, &byID); err != nil {
			return nil, err
		}
		for key, c := range byID {
			if c.ID == "" {
				c.ID = key
			}
			c.Normalize()
			out[c.ID] = c
		}
	case '[':
		var list []chat.Chat
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		for _, c := range list {
			if c.ID == "" {
				continue
			}
			c.Normalize()
			out[c.ID] = c
		}
	default:
		return nil, fmt.Errorf("unexpected snapshot format starting with %q", trimmed[0])
	}
	return out, nil
}
