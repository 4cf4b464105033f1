// Package syncer keeps the local chat snapshot and the shared remote store
// in step. Remote access only happens on the trusted home network.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gizmoapp/gizmo/src/chat"
	"github.com/gizmoapp/gizmo/src/events"
	"github.com/gizmoapp/gizmo/src/netprobe"
	"github.com/gizmoapp/gizmo/src/remote"
)

// DefaultInterval is the period of background synchronization
const DefaultInterval = 5 * time.Minute

var (
	ErrNoRemote    = errors.New("no remote store configured")
	ErrUnknownChat = errors.New("unknown chat")
)

// SyncError describes a store-level failure that aborted a sync operation
type SyncError struct {
	Op  string
	Key string
	Err error
}

func (e *SyncError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("sync %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("sync %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// ChatStore is the part of the session store the coordinator needs
type ChatStore interface {
	Load(chats map[string]chat.Chat)
	Merge(chats []chat.Chat) int
	Get(id string) (chat.Chat, bool)
	Snapshot() map[string]chat.Chat
	Save(ctx context.Context) error
}

// SnapshotLoader reads the local snapshot
type SnapshotLoader interface {
	Load(ctx context.Context) (map[string]chat.Chat, error)
}

// Config holds the coordinator dependencies
type Config struct {
	Store    ChatStore
	Snapshot SnapshotLoader
	Remote   remote.Store
	Probe    netprobe.Probe
	Keys     remote.Keyspace
	Interval time.Duration
	Events   events.Sink
	Logger   *slog.Logger
	Now      func() time.Time
}

// Coordinator merges remote histories into the local store
type Coordinator struct {
	store    ChatStore
	snapshot SnapshotLoader
	remote   remote.Store
	probe    netprobe.Probe
	keys     remote.Keyspace
	interval time.Duration
	sink     events.Sink
	logger   *slog.Logger
	now      func() time.Time

	// one pull at a time
	pullMu sync.Mutex

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a coordinator
func New(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	keys := cfg.Keys
	if keys.HistoryPrefix == "" || keys.MetaPrefix == "" {
		keys = remote.DefaultKeyspace
	}
	probe := cfg.Probe
	if probe == nil {
		probe = netprobe.Static(false)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		store:    cfg.Store,
		snapshot: cfg.Snapshot,
		remote:   cfg.Remote,
		probe:    probe,
		keys:     keys,
		interval: interval,
		sink:     cfg.Events,
		logger:   logger.With("component", "syncer"),
		now:      now,
	}
}

// Trusted reports whether remote access is currently allowed
func (c *Coordinator) Trusted() bool {
	return c.remote != nil && c.probe.IsOnTrustedNetwork()
}

// Bootstrap loads the local snapshot into the store, pulls remote
// histories when trusted, and saves the merged result. An unreadable
// snapshot is returned as an error and nothing is written.
func (c *Coordinator) Bootstrap(ctx context.Context) error {
	if c.snapshot != nil {
		chats, err := c.snapshot.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load local snapshot: %w", err)
		}
		c.store.Load(chats)
		c.logger.Debug("loaded local snapshot", "chats", len(chats))
	}

	if c.Trusted() {
		report, err := c.Pull(ctx)
		if err != nil {
			c.logger.Warn("initial pull failed", "error", err)
		} else {
			c.logger.Info("pulled remote histories", "merged", report.Merged, "skipped", report.Skipped)
		}
	}

	if err := c.store.Save(ctx); err != nil {
		c.logger.Error("failed to save snapshot after bootstrap", "error", err)
	}
	return nil
}

// PullReport summarizes one pull pass
type PullReport struct {
	Scanned    int
	Merged     int
	Skipped    int
	SkippedIDs []string
}

// Pull merges every remote history that has metadata with a conversation
// id. Malformed records are skipped. A store failure aborts the pass and
// leaves the local snapshot untouched.
func (c *Coordinator) Pull(ctx context.Context) (PullReport, error) {
	var report PullReport
	if c.remote == nil {
		return report, ErrNoRemote
	}

	c.pullMu.Lock()
	defer c.pullMu.Unlock()

	records, skipped, err := c.fetch(ctx)
	if err != nil {
		c.publishSync(report, err)
		return report, err
	}

	report.Scanned = len(records) + len(skipped)
	report.Skipped = len(skipped)
	report.SkippedIDs = skipped
	report.Merged = c.store.Merge(records)

	c.publishSync(report, nil)
	return report, nil
}

// fetch reads and decodes every accepted remote record
func (c *Coordinator) fetch(ctx context.Context) ([]chat.Chat, []string, error) {
	prefix := c.keys.HistoryScanPrefix()
	keys, err := c.remote.Keys(ctx, prefix)
	if err != nil {
		return nil, nil, &SyncError{Op: "scan", Key: prefix + "*", Err: err}
	}

	var records []chat.Chat
	var skipped []string
	for _, key := range keys {
		id, ok := c.keys.IDFromHistoryKey(key)
		if !ok {
			continue
		}

		rec, accepted, err := c.fetchOne(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if !accepted {
			skipped = append(skipped, id)
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

func (c *Coordinator) fetchOne(ctx context.Context, id string) (chat.Chat, bool, error) {
	histKey := c.keys.History(id)
	raw, found, err := c.remote.Get(ctx, histKey)
	if err != nil {
		return chat.Chat{}, false, &SyncError{Op: "get", Key: histKey, Err: err}
	}
	if !found {
		c.logger.Debug("history vanished during scan", "chat_id", id)
		return chat.Chat{}, false, nil
	}

	metaKey := c.keys.Meta(id)
	metaRaw, found, err := c.remote.Get(ctx, metaKey)
	if err != nil {
		return chat.Chat{}, false, &SyncError{Op: "get", Key: metaKey, Err: err}
	}
	if !found {
		c.logger.Debug("skipping history without metadata", "chat_id", id)
		return chat.Chat{}, false, nil
	}

	var meta remote.Meta
	if err := json.Unmarshal([]byte(metaRaw), &meta); err != nil || meta.ConversationID == "" {
		c.logger.Debug("skipping history with unusable metadata", "chat_id", id, "error", err)
		return chat.Chat{}, false, nil
	}

	var fallback time.Time
	if local, ok := c.store.Get(id); ok {
		fallback = local.LastActivityAt
	} else {
		fallback = c.now()
	}

	rec, err := DecodeRecord(id, []byte(raw), meta, fallback)
	if err != nil {
		c.logger.Warn("skipping malformed history", "chat_id", id, "error", err)
		return chat.Chat{}, false, nil
	}
	return rec, true, nil
}

// RunOnce pulls and saves when on the trusted network and does nothing
// otherwise
func (c *Coordinator) RunOnce(ctx context.Context) error {
	if !c.Trusted() {
		c.logger.Debug("skipping sync, network not trusted")
		return nil
	}
	report, err := c.Pull(ctx)
	if err != nil {
		return err
	}
	if err := c.store.Save(ctx); err != nil {
		return &SyncError{Op: "save", Err: err}
	}
	c.logger.Debug("sync complete", "merged", report.Merged, "skipped", report.Skipped)
	return nil
}

// Start runs RunOnce every interval until Stop or ctx is done
func (c *Coordinator) Start(ctx context.Context) {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if c.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.loop(loopCtx, c.done)
}

// Stop ends the periodic loop and waits for it to exit
func (c *Coordinator) Stop() {
	c.loopMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Coordinator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.RunOnce(ctx); err != nil {
				c.logger.Warn("periodic sync failed, will retry", "error", err, "interval", c.interval)
			}
		}
	}
}

// Push writes one chat to the remote store, along with its metadata when
// it has a conversation id. Skipped silently when not trusted.
func (c *Coordinator) Push(ctx context.Context, id string) error {
	if !c.Trusted() {
		c.logger.Debug("skipping push, network not trusted", "chat_id", id)
		return nil
	}
	rec, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChat, id)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return &SyncError{Op: "encode", Key: id, Err: err}
	}
	histKey := c.keys.History(id)
	if err := c.remote.Set(ctx, histKey, string(data)); err != nil {
		return &SyncError{Op: "set", Key: histKey, Err: err}
	}

	if rec.ConversationID == "" {
		return nil
	}
	meta, err := json.Marshal(remote.Meta{ConversationID: rec.ConversationID})
	if err != nil {
		return &SyncError{Op: "encode", Key: id, Err: err}
	}
	metaKey := c.keys.Meta(id)
	if err := c.remote.Set(ctx, metaKey, string(meta)); err != nil {
		return &SyncError{Op: "set", Key: metaKey, Err: err}
	}
	return nil
}

func (c *Coordinator) publishSync(report PullReport, err error) {
	events.Publish(c.sink, c.logger, &events.SyncCompleteEvent{
		BaseEvent: events.NewBase(events.EventSyncComplete),
		Merged:    report.Merged,
		Skipped:   report.Skipped,
		Err:       err,
	})
}
