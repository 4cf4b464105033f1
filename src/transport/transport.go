// Package transport maintains the single authenticated WebSocket connection
// to the assistant backend and keeps it alive across failures.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gizmoapp/gizmo/src/events"
	"github.com/gizmoapp/gizmo/src/protocol"
	"github.com/gorilla/websocket"
)

const (
	// DefaultHandshakeTimeout bounds the wait for each handshake frame
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultReconnectDelay is the fixed pause between connection attempts
	DefaultReconnectDelay = 3 * time.Second

	// DefaultPath is the backend websocket endpoint
	DefaultPath = "/api/websocket"

	closeGracePeriod = time.Second
)

var (
	ErrNotReady            = errors.New("connection is not ready")
	ErrAuthRequiredMissing = errors.New("backend did not request authentication")
	ErrAuthRejected        = errors.New("backend rejected the access token")
	ErrUnexpectedFrame     = errors.New("unexpected frame during handshake")
)

// ConnectionError wraps a failed connection attempt
type ConnectionError struct {
	Op  string
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// State is the lifecycle state of the channel
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateReady
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	default:
		return "disconnected"
	}
}

// FrameHandler receives inbound text frames in arrival order
type FrameHandler func(ctx context.Context, frame []byte)

// Config configures a Channel
type Config struct {
	URL   string
	Token string

	Handler FrameHandler
	// OnConnect runs after every successful handshake, before any frame of
	// that connection is handled
	OnConnect func(ctx context.Context)

	Events events.Sink
	Logger *slog.Logger

	HandshakeTimeout time.Duration
	ReconnectDelay   time.Duration
	Dialer           *websocket.Dialer
}

// Channel is a self-healing WebSocket connection
type Channel struct {
	cfg    Config
	logger *slog.Logger
	dialer *websocket.Dialer

	state atomic.Int32

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}

	writeMu sync.Mutex
}

// New creates a disconnected channel
func New(cfg Config) *Channel {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	}
	return &Channel{
		cfg:    cfg,
		logger: logger.With("component", "transport"),
		dialer: dialer,
	}
}

// EndpointURL turns an http(s) base URL into the ws(s) endpoint URL
func EndpointURL(baseURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid base url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("invalid base url: missing host")
	}
	if path == "" {
		path = DefaultPath
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String(), nil
}

// State returns the current state
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Ready reports whether Send can be used
func (c *Channel) Ready() bool {
	return c.State() == StateReady
}

// Connect starts the connection supervisor and waits for the first attempt.
// Later failures are retried in the background until Disconnect. Calling it
// again while the supervisor runs reports ErrNotReady unless the channel is
// ready.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		if !c.Ready() {
			return ErrNotReady
		}
		return nil
	}
	supCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	first := make(chan error, 1)
	var once sync.Once
	report := func(err error) {
		once.Do(func() { first <- err })
	}

	go c.supervise(supCtx, done, report)

	select {
	case err := <-first:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect closes the connection and stops reconnecting
func (c *Channel) Disconnect() error {
	c.mu.Lock()
	cancel, done, conn := c.cancel, c.done, c.conn
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod))
		c.writeMu.Unlock()
	}

	cancel()
	<-done
	return nil
}

// Send writes one text frame. It fails fast when the channel isn't ready.
func (c *Channel) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || !c.Ready() {
		return ErrNotReady
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return &ConnectionError{Op: "send", URL: c.cfg.URL, Err: err}
	}
	return nil
}

func (c *Channel) supervise(ctx context.Context, done chan struct{}, report func(error)) {
	defer close(done)

	for {
		err := c.runAttempt(ctx, report)
		c.setState(StateDisconnected, err)

		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("connection lost, retrying", "error", err, "delay", c.cfg.ReconnectDelay)

		timer := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runAttempt performs one dial, handshake and receive cycle. Every attempt
// owns a fresh context that ends with it.
func (c *Channel) runAttempt(parent context.Context, report func(error)) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	c.setState(StateConnecting, nil)
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		cerr := &ConnectionError{Op: "dial", URL: c.cfg.URL, Err: err}
		report(cerr)
		return cerr
	}
	defer conn.Close()

	// unblock reads when the attempt is cancelled
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.setState(StateAuthenticating, nil)
	if err := c.handshake(conn); err != nil {
		cerr := &ConnectionError{Op: "handshake", URL: c.cfg.URL, Err: err}
		report(cerr)
		return cerr
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	if c.cfg.OnConnect != nil {
		c.cfg.OnConnect(ctx)
	}
	c.setState(StateReady, nil)
	report(nil)

	return c.receive(ctx, conn)
}

type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

func (c *Channel) handshake(conn *websocket.Conn) error {
	frame, err := c.readHandshakeFrame(conn)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthRequiredMissing, err)
	}
	if t := protocol.FrameType(frame); t != "auth_required" {
		return fmt.Errorf("%w: got %q", ErrAuthRequiredMissing, t)
	}

	payload, err := json.Marshal(authMessage{Type: "auth", AccessToken: c.cfg.Token})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	err = conn.WriteMessage(websocket.TextMessage, payload)
	_ = conn.SetWriteDeadline(time.Time{})
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	frame, err = c.readHandshakeFrame(conn)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedFrame, err)
	}
	switch t := protocol.FrameType(frame); t {
	case "auth_ok":
	case "auth_invalid":
		return ErrAuthRejected
	default:
		return fmt.Errorf("%w: got %q", ErrUnexpectedFrame, t)
	}

	return conn.SetReadDeadline(time.Time{})
}

func (c *Channel) readHandshakeFrame(conn *websocket.Conn) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout)); err != nil {
		return nil, err
	}
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage {
			return data, nil
		}
	}
}

func (c *Channel) receive(ctx context.Context, conn *websocket.Conn) error {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("backend closed the connection")
				return nil
			}
			return err
		}

		if kind != websocket.TextMessage {
			c.logger.Debug("dropping non-text frame", "type", kind, "bytes", len(data))
			continue
		}
		if c.cfg.Handler != nil {
			c.cfg.Handler(ctx, data)
		}
	}
}

func (c *Channel) setState(s State, err error) {
	prev := State(c.state.Swap(int32(s)))
	if prev == s && err == nil {
		return
	}

	status := events.ConnectionStatus(s.String())
	switch s {
	case StateReady:
		status = events.StatusConnected
	case StateDisconnected:
		if err != nil {
			status = events.StatusError
		}
	}
	c.logger.Debug("connection state changed", "from", prev, "to", s)
	events.Publish(c.cfg.Events, c.logger, &events.StatusEvent{
		BaseEvent: events.NewBase(events.EventStatus),
		Status:    status,
		Err:       err,
	})
}
