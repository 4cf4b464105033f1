package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelSinkDeliversInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string

	proc := ProcessorFunc(func(e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(*NotificationEvent).Text)
		return nil
	})

	sink := NewChannelSink(4, nil, proc)
	for _, text := range []string{"a", "b", "c", "d", "e", "f"} {
		require.NoError(t, sink.Send(&NotificationEvent{BaseEvent: NewBase(EventNotification), Text: text}))
	}
	require.NoError(t, sink.Close())

	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, got)
}

func TestChannelSinkSendAfterClose(t *testing.T) {
	sink := NewChannelSink(1, nil)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close(), "second close is a no-op")

	err := sink.Send(&AwaitingEvent{BaseEvent: NewBase(EventAwaiting)})
	assert.ErrorIs(t, err, ErrSinkClosed)
}

func TestRecorderOfType(t *testing.T) {
	r := &Recorder{}
	Publish(r, nil, &AwaitingEvent{BaseEvent: NewBase(EventAwaiting), Awaiting: true})
	Publish(r, nil, &NotificationEvent{BaseEvent: NewBase(EventNotification), Text: "x"})
	Publish(nil, nil, &NotificationEvent{BaseEvent: NewBase(EventNotification), Text: "dropped"})

	assert.Len(t, r.Events(), 2)
	notes := r.OfType(EventNotification)
	require.Len(t, notes, 1)
	assert.Equal(t, "x", notes[0].(*NotificationEvent).Text)
}
