// Package scheduler implements C3, the process-wide delayed-event
// scheduler of spec.md §4.3. It is grounded on the original C++
// EventSchedulerImpl (original_source/rsm/include/events/EventSchedulerImpl.h):
// one dedicated timer goroutine parked on a monotonic deadline, and a small
// callback worker pool so the timer goroutine never blocks on event
// delivery (which could otherwise deadlock when a target calls back into
// the interpreter that scheduled it).
package scheduler

import (
	"container/heap"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/scxmlgo/scxml/internal/primitives"
)

// Deliver is invoked (on a callback-pool goroutine, never the timer
// goroutine) when a scheduled event's deadline arrives and it has not been
// cancelled.
type Deliver func(sessionID string, ev primitives.Event, target string)

const callbackPoolSize = 2

type scheduledEvent struct {
	sendID    string
	sessionID string
	event     primitives.Event
	target    string
	deadline  time.Time
	cancelled atomic.Bool
	heapIndex int
}

// Scheduler is safe for concurrent use from many sessions/goroutines.
type Scheduler struct {
	deliver Deliver
	logger  zerolog.Logger

	mu      sync.Mutex
	byID    map[string]*scheduledEvent
	pq      eventHeap
	counter uint64

	wake     chan struct{}
	shutdown chan struct{}
	done     chan struct{}

	work     chan *scheduledEvent
	poolDone sync.WaitGroup

	once sync.Once
}

// New creates a Scheduler and starts its timer goroutine and callback pool.
// deliver is called for every event whose deadline arrives uncancelled.
func New(deliver Deliver, logger zerolog.Logger) *Scheduler {
	s := &Scheduler{
		deliver:  deliver,
		logger:   logger,
		byID:     make(map[string]*scheduledEvent),
		wake:     make(chan struct{}, 1),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		work:     make(chan *scheduledEvent, 64),
	}
	heap.Init(&s.pq)
	for i := 0; i < callbackPoolSize; i++ {
		s.poolDone.Add(1)
		go s.callbackWorker()
	}
	go s.timerLoop()
	return s
}

// Schedule queues event for delivery to target after delay. If sendID is
// "" a fresh id of the shape auto_<unixnano>_<counter> is minted. A
// user-supplied sendID that is still pending is rejected, per the W3C
// requirement the spec cites.
func (s *Scheduler) Schedule(sessionID string, event primitives.Event, delay time.Duration, target, sendID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sendID == "" {
		sendID = s.generateSendID()
	} else if _, exists := s.byID[sendID]; exists {
		return "", fmt.Errorf("scheduler: sendid %q already scheduled", sendID)
	}

	se := &scheduledEvent{
		sendID:    sendID,
		sessionID: sessionID,
		event:     event,
		target:    target,
		deadline:  time.Now().Add(delay),
	}
	s.byID[sendID] = se
	heap.Push(&s.pq, se)
	s.notifyLocked()
	return sendID, nil
}

func (s *Scheduler) generateSendID() string {
	s.counter++
	return fmt.Sprintf("auto_%d_%d", time.Now().UnixNano(), s.counter)
}

// Cancel marks sendID cancelled, if still pending. Idempotent: cancelling
// twice, or an unknown id, is a no-op that returns false without error
// (spec.md §8 property 5).
func (s *Scheduler) Cancel(sendID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.byID[sendID]
	if !ok {
		return false
	}
	se.cancelled.Store(true)
	delete(s.byID, sendID)
	return true
}

// CancelForSession cancels every event still pending for sessionID, used
// when a session (or the invoke that spawned it) terminates, and returns
// how many were cancelled.
func (s *Scheduler) CancelForSession(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, se := range s.byID {
		if se.sessionID == sessionID {
			se.cancelled.Store(true)
			delete(s.byID, id)
			n++
		}
	}
	return n
}

// HasEvent reports whether sendID is still pending (not yet fired or cancelled).
func (s *Scheduler) HasEvent(sendID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[sendID]
	return ok
}

// Count returns the number of currently scheduled (pending) events.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *Scheduler) notifyLocked() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) timerLoop() {
	defer close(s.done)
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		wait := s.nextWait()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.shutdown:
			return
		case <-s.wake:
			continue
		case <-timer.C:
			s.fireReady()
		}
	}
}

func (s *Scheduler) nextWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pq.Len() == 0 {
		return time.Hour
	}
	d := time.Until(s.pq[0].deadline)
	if d < 0 {
		return 0
	}
	return d
}

func (s *Scheduler) fireReady() {
	now := time.Now()
	for {
		s.mu.Lock()
		if s.pq.Len() == 0 || s.pq[0].deadline.After(now) {
			s.mu.Unlock()
			return
		}
		se := heap.Pop(&s.pq).(*scheduledEvent)
		delete(s.byID, se.sendID)
		s.mu.Unlock()

		select {
		case s.work <- se:
		case <-s.shutdown:
			return
		}
	}
}

func (s *Scheduler) callbackWorker() {
	defer s.poolDone.Done()
	for {
		select {
		case se, ok := <-s.work:
			if !ok {
				return
			}
			if se.cancelled.Load() {
				continue
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						s.logger.Error().Interface("panic", r).Str("sendid", se.sendID).Msg("scheduler: delivery callback panicked")
					}
				}()
				s.deliver(se.sessionID, se.event, se.target)
			}()
		case <-s.shutdown:
			return
		}
	}
}

// Shutdown stops the timer and callback goroutines. If wait is true it
// blocks until the callback pool has drained in-flight deliveries.
func (s *Scheduler) Shutdown(wait bool) {
	s.once.Do(func() {
		close(s.shutdown)
	})
	<-s.done
	close(s.work)
	if wait {
		s.poolDone.Wait()
	}
}

// eventHeap is a container/heap min-heap ordered by deadline.
type eventHeap []*scheduledEvent

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}
func (h *eventHeap) Push(x any) {
	se := x.(*scheduledEvent)
	se.heapIndex = len(*h)
	*h = append(*h, se)
}
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	se := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return se
}
