package invoke

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/scxmlgo/scxml/internal/datamodel"
	"github.com/scxmlgo/scxml/internal/primitives"
	"github.com/scxmlgo/scxml/model"
)

type fakeChild struct {
	id      string
	started bool
	stopped bool
}

func (f *fakeChild) SessionID() string { return f.id }
func (f *fakeChild) Start() error      { f.started = true; return nil }
func (f *fakeChild) Stop()             { f.stopped = true }
func (f *fakeChild) DeliverExternal(ev primitives.Event) error {
	return nil
}

func newTestCoordinator(t *testing.T, spawned *[]*fakeChild) (*Coordinator, *datamodel.Engine) {
	dm := datamodel.New(zerolog.Nop())
	t.Cleanup(dm.Shutdown)
	dm.CreateSession("parent", "m", nil)

	spawn := func(inv *model.InvokeNode, parentSessionID, childSessionID string, initialData map[string]any) (ChildSession, error) {
		fc := &fakeChild{id: childSessionID}
		*spawned = append(*spawned, fc)
		return fc, nil
	}
	return New(spawn, dm, zerolog.Nop()), dm
}

func TestSpawnStartsChildAndWritesBackID(t *testing.T) {
	var spawned []*fakeChild
	c, dm := newTestCoordinator(t, &spawned)

	inv := &model.InvokeNode{ID: "inv1", IDLocation: "theID", DeclaringID: "s1"}
	invokeID, err := c.Spawn(inv, "parent")
	if err != nil {
		t.Fatal(err)
	}
	if invokeID != "inv1" {
		t.Fatalf("got %q", invokeID)
	}
	if !spawned[0].started {
		t.Fatal("expected child to be started")
	}
	v, _, _ := dm.GetVariable("parent", "theID")
	if v != "inv1" {
		t.Fatalf("got %v", v)
	}
	if !c.IsActive("inv1") {
		t.Fatal("expected invoke to be active")
	}
}

func TestSpawnInjectsNamelistAndParams(t *testing.T) {
	var spawned []*fakeChild
	c, dm := newTestCoordinator(t, &spawned)
	dm.SetVariable("parent", "count", 7)

	inv := &model.InvokeNode{
		ID:       "inv1",
		Namelist: []string{"count"},
		Params:   []*model.Param{{Name: "label", Expr: "'hi'"}},
	}
	var captured map[string]any
	c.spawn = func(inv *model.InvokeNode, parentSessionID, childSessionID string, initialData map[string]any) (ChildSession, error) {
		captured = initialData
		return &fakeChild{id: childSessionID}, nil
	}
	if _, err := c.Spawn(inv, "parent"); err != nil {
		t.Fatal(err)
	}
	if captured["count"] != int64(7) {
		t.Fatalf("got %v", captured["count"])
	}
	if captured["label"] != "hi" {
		t.Fatalf("got %v", captured["label"])
	}
}

func TestCancelStopsChildAndMarksCancelled(t *testing.T) {
	var spawned []*fakeChild
	c, _ := newTestCoordinator(t, &spawned)
	inv := &model.InvokeNode{ID: "inv1"}
	c.Spawn(inv, "parent")

	c.Cancel("inv1")
	if !spawned[0].stopped {
		t.Fatal("expected child to be stopped")
	}
	if c.IsActive("inv1") {
		t.Fatal("expected invoke to no longer be active")
	}
	if !c.IsCancelledChildSession("inv1") {
		t.Fatal("expected child session to be tracked as cancelled")
	}
}

func TestCancelForStateCancelsOnlyThatStatesInvokes(t *testing.T) {
	var spawned []*fakeChild
	c, _ := newTestCoordinator(t, &spawned)
	c.Spawn(&model.InvokeNode{ID: "a", DeclaringID: "s1"}, "parent")
	c.Spawn(&model.InvokeNode{ID: "b", DeclaringID: "s2"}, "parent")

	c.CancelForState("s1")
	if c.IsActive("a") {
		t.Fatal("expected invoke a to be cancelled")
	}
	if !c.IsActive("b") {
		t.Fatal("expected invoke b to remain active")
	}
}

func TestAutoforwardSessionsFiltersByFlag(t *testing.T) {
	var spawned []*fakeChild
	c, _ := newTestCoordinator(t, &spawned)
	c.Spawn(&model.InvokeNode{ID: "a", Autoforward: true}, "parent")
	c.Spawn(&model.InvokeNode{ID: "b", Autoforward: false}, "parent")

	got := c.AutoforwardSessions("parent")
	if len(got) != 1 || got[0].SessionID() != "a" {
		t.Fatalf("got %v", got)
	}
}

func TestFinalizeActionsLookupByChildSession(t *testing.T) {
	var spawned []*fakeChild
	c, _ := newTestCoordinator(t, &spawned)
	finalize := []model.Executable{model.Assign{Location: "x", Expr: "1"}}
	c.Spawn(&model.InvokeNode{ID: "a", Finalize: finalize}, "parent")

	got, ok := c.FinalizeActionsForChildSession("a")
	if !ok || len(got) != 1 {
		t.Fatalf("got %v, %v", got, ok)
	}
	if _, ok := c.FinalizeActionsForChildSession("unknown"); ok {
		t.Fatal("expected no finalize actions for unknown child session")
	}
}
