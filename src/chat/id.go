package chat

import (
	"fmt"
	"sync"
	"time"
)

// IDGenerator mints chat ids of the form <deviceID>-CHAT<unix-millis>.
// Tokens are strictly increasing within a process even when two chats are
// created in the same millisecond or the wall clock steps backwards.
type IDGenerator struct {
	deviceID string
	now      func() time.Time

	mu   sync.Mutex
	last int64
}

// NewIDGenerator creates a generator for the given device
func NewIDGenerator(deviceID string) *IDGenerator {
	return &IDGenerator{deviceID: deviceID, now: time.Now}
}

// WithClock overrides the time source, for tests
func (g *IDGenerator) WithClock(now func() time.Time) *IDGenerator {
	g.now = now
	return g
}

// DeviceID returns the device part of generated ids
func (g *IDGenerator) DeviceID() string {
	return g.deviceID
}

// Next returns a new unique chat id
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	token := g.now().UnixMilli()
	if token <= g.last {
		token = g.last + 1
	}
	g.last = token
	return fmt.Sprintf("%s-CHAT%d", g.deviceID, token)
}
