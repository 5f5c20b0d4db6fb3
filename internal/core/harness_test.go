package core

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/scxmlgo/scxml/internal/datamodel"
	"github.com/scxmlgo/scxml/internal/target"
)

// testEngine wires the same Deps graph scxml.NewEngine assembles, minus the
// root facade, so these tests can start real Interpreters end to end
// without going through the process-wide package.
type testEngine struct {
	dm       *datamodel.Engine
	registry *SessionRegistry
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	dm := datamodel.New(zerolog.Nop())
	sr := NewSessionRegistry(dm, zerolog.Nop())
	tr := target.NewRegistry(sr)
	dispatcher := target.NewDispatcher(tr, zerolog.Nop())
	sr.SetDispatcher(dispatcher)
	t.Cleanup(func() {
		dispatcher.Shutdown(false)
		dm.Shutdown()
	})
	return &testEngine{dm: dm, registry: sr}
}

// waitUntil polls fn every few milliseconds until it returns true or the
// deadline passes, failing the test on timeout. Sessions run on their own
// goroutine, so tests must wait for a wake rather than assert immediately.
func waitUntil(t *testing.T, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !fn() {
		t.Fatalf("condition never became true")
	}
}
