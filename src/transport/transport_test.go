package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gizmoapp/gizmo/src/events"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/goleak"
)

// backend is a scripted assistant server
type backend struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	// script runs after the upgrade; returning closes the connection
	script func(conn *websocket.Conn)

	connections atomic.Int32
}

func newBackend(t *testing.T, script func(conn *websocket.Conn)) *backend {
	t.Helper()
	b := &backend{t: t, script: script}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultPath {
			http.NotFound(w, r)
			return
		}
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		b.connections.Add(1)
		b.script(conn)
	}))
	return b
}

func (b *backend) url(t *testing.T) string {
	u, err := EndpointURL(b.srv.URL, "")
	require.NoError(t, err)
	return u
}

// authenticate plays the server side of a successful handshake
func authenticate(conn *websocket.Conn, token string) bool {
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"auth_required","ha_version":"2024.6.0"}`)); err != nil {
		return false
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return false
	}
	if gjson.GetBytes(data, "type").String() != "auth" || gjson.GetBytes(data, "access_token").String() != token {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"auth_invalid","message":"Invalid access token"}`))
		return false
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"auth_ok","ha_version":"2024.6.0"}`)) == nil
}

// echoUntilClosed answers every turn request with a speech event
func echoUntilClosed(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		id := gjson.GetBytes(data, "id").Int()
		text := gjson.GetBytes(data, "input.text").String()
		reply := `{"id":` + strconv.FormatInt(id, 10) + `,"type":"event","event":{"type":"intent-end","data":{"intent_output":{"conversation_id":"conv-1","response":{"speech":{"plain":{"speech":"echo ` + text + `"}}}}}}}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			return
		}
	}
}

type frameLog struct {
	mu     sync.Mutex
	frames []string
	got    chan struct{}
}

func newFrameLog() *frameLog {
	return &frameLog{got: make(chan struct{}, 16)}
}

func (f *frameLog) handle(_ context.Context, frame []byte) {
	f.mu.Lock()
	f.frames = append(f.frames, string(frame))
	f.mu.Unlock()
	f.got <- struct{}{}
}

func (f *frameLog) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.got:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestConnectSendReceive(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := newBackend(t, func(conn *websocket.Conn) {
		if authenticate(conn, "secret") {
			echoUntilClosed(conn)
		}
	})
	defer b.srv.Close()

	frames := newFrameLog()
	var connects atomic.Int32
	rec := &events.Recorder{}
	ch := New(Config{
		URL:       b.url(t),
		Token:     "secret",
		Handler:   frames.handle,
		OnConnect: func(context.Context) { connects.Add(1) },
		Events:    rec,
	})

	require.NoError(t, ch.Connect(context.Background()))
	assert.True(t, ch.Ready())
	require.NoError(t, ch.Connect(context.Background()), "repeat connect on a ready channel")
	assert.Equal(t, int32(1), connects.Load())

	require.NoError(t, ch.Send(context.Background(), []byte(`{"id":1,"type":"assist_pipeline/run","input":{"text":"hi"}}`)))
	frames.wait(t)

	frames.mu.Lock()
	require.Len(t, frames.frames, 1)
	assert.Equal(t, "echo hi", gjson.Get(frames.frames[0], "event.data.intent_output.response.speech.plain.speech").String())
	frames.mu.Unlock()

	require.NoError(t, ch.Disconnect())
	assert.Equal(t, StateDisconnected, ch.State())
	assert.ErrorIs(t, ch.Send(context.Background(), []byte(`{}`)), ErrNotReady)

	var statuses []events.ConnectionStatus
	for _, e := range rec.OfType(events.EventStatus) {
		statuses = append(statuses, e.(*events.StatusEvent).Status)
	}
	assert.Equal(t, []events.ConnectionStatus{
		events.StatusConnecting,
		events.StatusAuthenticating,
		events.StatusConnected,
		events.StatusDisconnected,
	}, statuses)
}

func TestHandshakeFailures(t *testing.T) {
	tests := []struct {
		name    string
		script  func(conn *websocket.Conn)
		wantErr error
	}{
		{
			name:    "token rejected",
			script:  func(conn *websocket.Conn) { authenticate(conn, "other-token") },
			wantErr: ErrAuthRejected,
		},
		{
			name: "no auth_required",
			script: func(conn *websocket.Conn) {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"event"}`))
				_, _, _ = conn.ReadMessage()
			},
			wantErr: ErrAuthRequiredMissing,
		},
		{
			name: "silent server",
			script: func(conn *websocket.Conn) {
				_, _, _ = conn.ReadMessage()
			},
			wantErr: ErrAuthRequiredMissing,
		},
		{
			name: "unexpected reply to auth",
			script: func(conn *websocket.Conn) {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"auth_required"}`))
				_, _, _ = conn.ReadMessage()
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"result","success":true}`))
				_, _, _ = conn.ReadMessage()
			},
			wantErr: ErrUnexpectedFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			b := newBackend(t, tt.script)
			defer b.srv.Close()

			ch := New(Config{
				URL:              b.url(t),
				Token:            "secret",
				HandshakeTimeout: 200 * time.Millisecond,
				ReconnectDelay:   time.Hour,
			})

			err := ch.Connect(context.Background())
			var cerr *ConnectionError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, "handshake", cerr.Op)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, ch.Ready())
			assert.ErrorIs(t, ch.Send(context.Background(), []byte(`{}`)), ErrNotReady)

			require.NoError(t, ch.Disconnect())
		})
	}
}

func TestReconnectsAfterServerClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := newBackend(t, func(conn *websocket.Conn) {
		if !authenticate(conn, "secret") {
			return
		}
		// drop the first connection right after the handshake
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart"))
	})
	defer b.srv.Close()

	reconnected := make(chan struct{}, 8)
	ch := New(Config{
		URL:            b.url(t),
		Token:          "secret",
		ReconnectDelay: 10 * time.Millisecond,
		OnConnect: func(context.Context) {
			select {
			case reconnected <- struct{}{}:
			default:
			}
		},
	})
	require.NoError(t, ch.Connect(context.Background()))

	for i := 0; i < 3; i++ {
		select {
		case <-reconnected:
		case <-time.After(5 * time.Second):
			t.Fatalf("connection %d was not established", i+1)
		}
	}

	require.NoError(t, ch.Disconnect())
	assert.GreaterOrEqual(t, b.connections.Load(), int32(3))
}

func TestDialFailureKeepsRetrying(t *testing.T) {
	defer goleak.VerifyNone(t)

	ch := New(Config{
		URL:            "ws://127.0.0.1:1/api/websocket",
		ReconnectDelay: 10 * time.Millisecond,
	})
	err := ch.Connect(context.Background())
	var cerr *ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "dial", cerr.Op)

	// the supervisor is still retrying, so a repeat call must not claim success
	assert.ErrorIs(t, ch.Connect(context.Background()), ErrNotReady)

	require.NoError(t, ch.Disconnect())
	require.NoError(t, ch.Disconnect(), "second disconnect is a no-op")
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		base    string
		path    string
		want    string
		wantErr bool
	}{
		{base: "http://homeassistant.local:8123", want: "ws://homeassistant.local:8123/api/websocket"},
		{base: "https://ha.example.com/", want: "wss://ha.example.com/api/websocket"},
		{base: "https://ha.example.com/proxy", path: "ws", want: "wss://ha.example.com/proxy/ws"},
		{base: "ftp://nope", wantErr: true},
		{base: "http://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := EndpointURL(tt.base, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
