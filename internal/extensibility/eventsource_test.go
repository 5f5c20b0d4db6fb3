package extensibility

import (
	"sync"
	"testing"
	"time"

	"github.com/scxmlgo/scxml/internal/primitives"
)

type recordingSink struct {
	mu     sync.Mutex
	events []primitives.Event
}

func (r *recordingSink) ProcessEvent(ev primitives.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestChannelEventSource_Pump(t *testing.T) {
	ch := make(chan primitives.Event, 1)
	src := NewChannelEventSource(ch)
	sink := &recordingSink{}

	done := make(chan struct{})
	go func() {
		Pump(sink, src)
		close(done)
	}()

	ch <- primitives.NewEvent("ping", nil)
	src.Stop()
	<-done

	if sink.count() != 1 {
		t.Fatalf("expected 1 event, got %d", sink.count())
	}
	if sink.events[0].Name != "ping" {
		t.Errorf("wrong event name: %q", sink.events[0].Name)
	}
}

func TestTimerEventSource(t *testing.T) {
	s := NewTimerEventSource("tick", "data", 20*time.Millisecond)
	defer s.Stop()

	select {
	case ev := <-s.Events():
		if ev.Name != "tick" || ev.Data != "data" {
			t.Errorf("wrong event: %v %v", ev.Name, ev.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Error("no event received")
	}
}

func TestTimerEventSource_Stop(t *testing.T) {
	s := NewTimerEventSource("tick", nil, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	// drain whatever was buffered before the close
	for range s.Events() {
	}
}

func TestTimerEventSource_Pump(t *testing.T) {
	s := NewTimerEventSource("heartbeat", nil, 10*time.Millisecond)
	sink := &recordingSink{}

	done := make(chan struct{})
	go func() {
		Pump(sink, s)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	s.Stop()
	<-done

	if sink.count() == 0 {
		t.Error("expected at least one heartbeat event")
	}
}
