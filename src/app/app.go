// Package app wires the chat client together from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gizmoapp/gizmo/src/assist"
	"github.com/gizmoapp/gizmo/src/chat"
	"github.com/gizmoapp/gizmo/src/config"
	"github.com/gizmoapp/gizmo/src/events"
	"github.com/gizmoapp/gizmo/src/netprobe"
	"github.com/gizmoapp/gizmo/src/protocol"
	"github.com/gizmoapp/gizmo/src/remote"
	"github.com/gizmoapp/gizmo/src/session"
	"github.com/gizmoapp/gizmo/src/snapshot"
	"github.com/gizmoapp/gizmo/src/syncer"
	"github.com/gizmoapp/gizmo/src/transport"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

const eventBuffer = 64

// App represents the main application with all services
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DeviceID string

	Events   *events.ChannelSink
	Snapshot *snapshot.Store
	Sessions *session.Store
	Remote   remote.Store
	Probe    netprobe.Probe
	Sync     *syncer.Coordinator
	Protocol *protocol.Protocol
	Assist   *assist.Service

	mu      sync.Mutex
	channel *transport.Channel
}

// Options holds what New needs besides the configuration
type Options struct {
	Config *config.Config
	Logger *slog.Logger

	// Fs defaults to the OS filesystem
	Fs afero.Fs

	// Processors receive every client event in order
	Processors []events.Processor

	// Probe overrides the probe chosen from Config.Network
	Probe netprobe.Probe
}

// New builds every service and restores local state. It does not connect
// to the assistant; see Connect.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	deviceID := snapshot.DeviceID(fs, cfg.Storage.Directory, logger)
	sink := events.NewChannelSink(eventBuffer, logger, opts.Processors...)
	snap := snapshot.New(fs, cfg.SnapshotPath())

	sessions := session.New(session.Config{
		Persister: snap,
		Events:    sink,
		IDs:       chat.NewIDGenerator(deviceID),
		Logger:    logger,
	})

	store, err := remote.Open(remote.Options{
		Backend:    cfg.Remote.Backend,
		RedisURL:   cfg.Remote.RedisURL,
		SQLitePath: cfg.Remote.SQLitePath,
	})
	if err != nil {
		sink.Close()
		return nil, fmt.Errorf("failed to open remote store: %w", err)
	}

	probe := opts.Probe
	if probe == nil {
		probe = NewProbe(cfg.Network, logger)
	}

	coordinator := syncer.New(syncer.Config{
		Store:    sessions,
		Snapshot: snap,
		Remote:   store,
		Probe:    probe,
		Keys: remote.Keyspace{
			HistoryPrefix: cfg.Remote.HistoryPrefix,
			MetaPrefix:    cfg.Remote.MetaPrefix,
		},
		Interval: cfg.Sync.Interval.Std(),
		Events:   sink,
		Logger:   logger,
	})

	a := &App{
		Config:   cfg,
		Logger:   logger,
		DeviceID: deviceID,
		Events:   sink,
		Snapshot: snap,
		Sessions: sessions,
		Remote:   store,
		Probe:    probe,
		Sync:     coordinator,
		Protocol: protocol.New(cfg.Assistant.PipelineID),
	}

	var pusher assist.Pusher
	if store != nil {
		pusher = coordinator
	}
	a.Assist = assist.New(assist.Config{
		Store:    sessions,
		Protocol: a.Protocol,
		Pusher:   pusher,
		Events:   sink,
		Logger:   logger,
	})

	if err := coordinator.Bootstrap(ctx); err != nil {
		// no Close here: saving would overwrite the unreadable snapshot
		if store != nil {
			store.Close()
		}
		sink.Close()
		return nil, fmt.Errorf("failed to restore chats: %w", err)
	}

	logger.Debug("app initialized", "device_id", deviceID, "remote", cfg.Remote.Backend, "snapshot", snap.Path())
	return a, nil
}

// NewProbe picks the trusted-network probe for the configured trust mode
func NewProbe(cfg config.NetworkConfig, logger *slog.Logger) netprobe.Probe {
	switch cfg.Trust {
	case config.TrustAlways:
		return netprobe.Static(true)
	case config.TrustNever:
		return netprobe.Static(false)
	}

	var ssid netprobe.SSIDProvider
	if len(cfg.SSIDCommand) > 0 {
		ssid = netprobe.CommandSSIDProvider{Command: cfg.SSIDCommand, Logger: logger}
	}
	return netprobe.NewHomeNetworkProbe(netprobe.Config{
		HomeSSID:         cfg.HomeSSID,
		SSID:             ssid,
		EthernetFallback: cfg.EthernetFallback,
		Logger:           logger,
	})
}

// Connect opens the assistant connection and starts periodic sync. It
// returns the result of the first connection attempt; later drops are
// retried in the background.
func (a *App) Connect(ctx context.Context) error {
	if err := a.Config.RequireAssistant(); err != nil {
		return err
	}
	url, err := transport.EndpointURL(a.Config.Assistant.BaseURL, a.Config.Assistant.WebSocketPath)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if a.channel != nil {
		a.mu.Unlock()
		return errors.New("already connected")
	}
	ch := transport.New(transport.Config{
		URL:              url,
		Token:            a.Config.Assistant.Token,
		Handler:          a.Assist.HandleFrame,
		OnConnect:        a.Assist.OnConnect,
		Events:           a.Events,
		Logger:           a.Logger,
		HandshakeTimeout: a.Config.Assistant.HandshakeTimeout.Std(),
		ReconnectDelay:   a.Config.Assistant.ReconnectDelay.Std(),
	})
	a.channel = ch
	a.mu.Unlock()

	a.Assist.SetSender(ch)

	// the sync timer runs whether or not the first attempt succeeds
	if a.Remote != nil {
		a.Sync.Start(context.Background())
	}
	return ch.Connect(ctx)
}

// Channel returns the assistant connection, nil before Connect
func (a *App) Channel() *transport.Channel {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.channel
}

// Close stops background work, saves chats and releases every resource.
// Events published until then are delivered before it returns.
func (a *App) Close() error {
	var errs []error

	// stopping the sync loop and the connection are independent
	var g errgroup.Group
	g.Go(func() error {
		a.Sync.Stop()
		return nil
	})
	g.Go(func() error {
		if ch := a.Channel(); ch != nil {
			if err := ch.Disconnect(); err != nil {
				return fmt.Errorf("disconnect: %w", err)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	if err := a.Sessions.Save(context.Background()); err != nil {
		errs = append(errs, fmt.Errorf("save chats: %w", err))
	}
	if a.Remote != nil {
		if err := a.Remote.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close remote store: %w", err))
		}
	}
	if err := a.Events.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
