package events

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrSinkClosed is returned when sending to a closed sink
var ErrSinkClosed = errors.New("event sink is closed")

// Sink is the interface for publishing client events
type Sink interface {
	// Send publishes an event. Events are delivered in the order they are sent.
	Send(event Event) error

	// Close stops delivery after draining queued events
	Close() error
}

// Processor consumes events delivered by a sink
type Processor interface {
	// Process handles a single event
	Process(event Event) error

	// Close cleans up any resources
	Close() error
}

// ProcessorFunc adapts a function to the Processor interface
type ProcessorFunc func(event Event) error

func (f ProcessorFunc) Process(event Event) error { return f(event) }
func (f ProcessorFunc) Close() error              { return nil }

// ChannelSink implements Sink using a buffered channel drained by a single
// goroutine, so every processor sees events in send order.
type ChannelSink struct {
	events     chan Event
	processors []Processor
	done       chan struct{}
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewChannelSink creates a new channel-based event sink
func NewChannelSink(bufferSize int, logger *slog.Logger, processors ...Processor) *ChannelSink {
	if logger == nil {
		logger = slog.Default()
	}
	sink := &ChannelSink{
		events:     make(chan Event, bufferSize),
		processors: processors,
		done:       make(chan struct{}),
		logger:     logger.With("component", "event_sink"),
	}

	go sink.processEvents()

	return sink
}

// Send sends an event to the sink
func (s *ChannelSink) Send(event Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.events <- event
	return nil
}

// Close closes the event sink
func (s *ChannelSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	<-s.done

	var errs []error
	for _, p := range s.processors {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// processEvents processes events from the channel
func (s *ChannelSink) processEvents() {
	defer close(s.done)

	for event := range s.events {
		for _, processor := range s.processors {
			if err := processor.Process(event); err != nil {
				s.logger.Warn("event processor failed", "type", event.GetType(), "error", err)
			}
		}
	}
}

// Publish sends event to sink when sink is non-nil and logs delivery failures
func Publish(sink Sink, logger *slog.Logger, event Event) {
	if sink == nil {
		return
	}
	if err := sink.Send(event); err != nil && logger != nil {
		logger.Debug("event dropped", "type", event.GetType(), "error", err)
	}
}

// Recorder is a Sink that keeps every event in memory, for tests and
// for callers that poll instead of subscribing
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Send records the event
func (r *Recorder) Send(event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Close is a no-op
func (r *Recorder) Close() error { return nil }

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events with the given type
func (r *Recorder) OfType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.GetType() == t {
			out = append(out, e)
		}
	}
	return out
}
