// Package remote provides the shared key-value store that chat histories
// are synchronized through.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store is a string key-value store. Get reports a missing key through
// found; err is reserved for store-level failures.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	// Keys returns every key starting with prefix, sorted
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Backend names accepted by Open
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

// ErrUnknownBackend is returned by Open for unsupported backend names
var ErrUnknownBackend = errors.New("unknown remote backend")

// Options selects and configures a backend
type Options struct {
	Backend    string
	RedisURL   string
	SQLitePath string
}

// Open creates the configured store. BackendNone yields a nil Store.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendRedis:
		s, err := NewRedisStoreFromURL(opts.RedisURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSQLite:
		s, err := OpenSQLite(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// Keyspace names the history and metadata keys of a chat
type Keyspace struct {
	HistoryPrefix string
	MetaPrefix    string
}

// DefaultKeyspace matches the keys written by other clients of the store
var DefaultKeyspace = Keyspace{
	HistoryPrefix: "gizmo:conv",
	MetaPrefix:    "gizmo:convmeta",
}

// History returns the key holding the history of chat id
func (k Keyspace) History(id string) string {
	return k.HistoryPrefix + ":" + id
}

// Meta returns the key holding the metadata of chat id
func (k Keyspace) Meta(id string) string {
	return k.MetaPrefix + ":" + id
}

// HistoryScanPrefix is the prefix shared by all history keys
func (k Keyspace) HistoryScanPrefix() string {
	return k.HistoryPrefix + ":"
}

// IDFromHistoryKey extracts the chat id from a history key
func (k Keyspace) IDFromHistoryKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, k.HistoryScanPrefix())
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Meta is the metadata record stored next to each history
type Meta struct {
	ConversationID string `json:"conversation_id"`
}
