package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/scxmlgo/scxml/internal/primitives"
)

func TestParseDelay(t *testing.T) {
	cases := map[string]time.Duration{
		"100ms": 100 * time.Millisecond,
		"2s":    2 * time.Second,
		"1min":  time.Minute,
		"1h":    time.Hour,
		"":      0,
		"bogus": 0,
	}
	for in, want := range cases {
		if got := ParseDelay(in); got != want {
			t.Errorf("ParseDelay(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestScheduleFiresAfterDelay(t *testing.T) {
	var mu sync.Mutex
	var delivered []string
	sch := New(func(sessionID string, ev primitives.Event, target string) {
		mu.Lock()
		delivered = append(delivered, ev.Name)
		mu.Unlock()
	}, zerolog.Nop())
	defer sch.Shutdown(true)

	_, err := sch.Schedule("s1", primitives.NewEvent("timeout", nil), 20*time.Millisecond, "#_internal", "")
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(delivered)
		mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("event was never delivered")
}

func TestCancelPreventsDelivery(t *testing.T) {
	var mu sync.Mutex
	delivered := false
	sch := New(func(sessionID string, ev primitives.Event, target string) {
		mu.Lock()
		delivered = true
		mu.Unlock()
	}, zerolog.Nop())
	defer sch.Shutdown(true)

	id, err := sch.Schedule("s1", primitives.NewEvent("timeout", nil), 40*time.Millisecond, "#_internal", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if id != "t1" {
		t.Fatalf("got id %q want t1", id)
	}

	time.Sleep(10 * time.Millisecond)
	if !sch.Cancel("t1") {
		t.Fatal("expected cancel to succeed")
	}
	// idempotent
	if sch.Cancel("t1") {
		t.Fatal("second cancel of same id should be a no-op returning false")
	}
	if sch.Cancel("unknown") {
		t.Fatal("cancelling unknown id should return false, not panic")
	}

	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if delivered {
		t.Fatal("cancelled event must never be delivered")
	}
}

func TestDuplicateSendIDRejected(t *testing.T) {
	sch := New(func(string, primitives.Event, string) {}, zerolog.Nop())
	defer sch.Shutdown(true)

	if _, err := sch.Schedule("s1", primitives.NewEvent("a", nil), time.Hour, "#_internal", "dup"); err != nil {
		t.Fatal(err)
	}
	if _, err := sch.Schedule("s1", primitives.NewEvent("b", nil), time.Hour, "#_internal", "dup"); err == nil {
		t.Fatal("expected error scheduling a duplicate pending sendid")
	}
}

func TestCancelForSession(t *testing.T) {
	sch := New(func(string, primitives.Event, string) {}, zerolog.Nop())
	defer sch.Shutdown(true)

	sch.Schedule("s1", primitives.NewEvent("a", nil), time.Hour, "#_internal", "")
	sch.Schedule("s1", primitives.NewEvent("b", nil), time.Hour, "#_internal", "")
	sch.Schedule("s2", primitives.NewEvent("c", nil), time.Hour, "#_internal", "")

	if n := sch.CancelForSession("s1"); n != 2 {
		t.Fatalf("got %d cancelled, want 2", n)
	}
	if sch.Count() != 1 {
		t.Fatalf("got %d remaining, want 1", sch.Count())
	}
}
