package extensibility

import (
	"time"

	"github.com/scxmlgo/scxml/internal/primitives"
)

// Sink is the narrow view of a running session an EventSource delivers
// into. core.Interpreter satisfies this; kept as a local interface so
// extensibility never needs to import core.
type Sink interface {
	ProcessEvent(ev primitives.Event) error
}

// EventSource is something that can be pumped into a Sink until stopped.
type EventSource interface {
	Events() <-chan primitives.Event
	Stop()
}

// Pump reads every event src produces and delivers it to sink.ProcessEvent,
// until src's channel closes. Runs on the calling goroutine; call it with
// go Pump(...) to run a source in the background.
func Pump(sink Sink, src EventSource) {
	for ev := range src.Events() {
		_ = sink.ProcessEvent(ev)
	}
}

// ChannelEventSource is an EventSource backed by a caller-supplied channel —
// the generic way to feed external events (from a websocket, a message
// queue consumer, a CLI prompt loop, ...) into a session without the
// producer needing to know about core.Interpreter at all.
type ChannelEventSource struct {
	ch chan primitives.Event
}

// NewChannelEventSource wraps ch. The channel should be buffered if the
// producer must never block on a slow session.
func NewChannelEventSource(ch chan primitives.Event) *ChannelEventSource {
	return &ChannelEventSource{ch: ch}
}

// Events returns the receive-only view of the wrapped channel.
func (s *ChannelEventSource) Events() <-chan primitives.Event {
	return s.ch
}

// Stop closes the underlying channel. The caller must not send on ch after
// calling Stop.
func (s *ChannelEventSource) Stop() {
	close(s.ch)
}

// TimerEventSource emits a fixed named event on a fixed period — useful for
// driving a host-level watchdog or heartbeat event independent of any
// <send delay="...">.
type TimerEventSource struct {
	ch        chan primitives.Event
	eventType string
	data      any
	ticker    *time.Ticker
	stop      chan struct{}
}

// NewTimerEventSource creates a TimerEventSource emitting eventType every d.
func NewTimerEventSource(eventType string, data any, d time.Duration) *TimerEventSource {
	t := &TimerEventSource{
		ch:        make(chan primitives.Event, 10),
		eventType: eventType,
		data:      data,
		ticker:    time.NewTicker(d),
		stop:      make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *TimerEventSource) run() {
	for {
		select {
		case <-t.ticker.C:
			select {
			case t.ch <- primitives.NewEvent(t.eventType, t.data):
			default:
				// drop if the consumer can't keep up
			}
		case <-t.stop:
			t.ticker.Stop()
			close(t.ch)
			return
		}
	}
}

// Events returns the event channel.
func (t *TimerEventSource) Events() <-chan primitives.Event {
	return t.ch
}

// Stop stops the ticker and closes the channel.
func (t *TimerEventSource) Stop() {
	close(t.stop)
}
