// Package core implements C7, the interpreter core of spec.md §4.7: one
// Interpreter per SCXML session, running the W3C macrostep/microstep
// algorithm (selectTransitions/removeConflictingTransitions/microstep) over
// the configuration of a model.Model, driven by a single per-session
// goroutine so every session's transition selection, entry/exit, and action
// execution is observably sequential even while many sessions run
// concurrently (spec.md §8 property 1).
package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scxmlgo/scxml/internal/action"
	"github.com/scxmlgo/scxml/internal/datamodel"
	"github.com/scxmlgo/scxml/internal/errtype"
	"github.com/scxmlgo/scxml/internal/invoke"
	"github.com/scxmlgo/scxml/internal/primitives"
	"github.com/scxmlgo/scxml/internal/queue"
	"github.com/scxmlgo/scxml/internal/target"
	"github.com/scxmlgo/scxml/model"
)

// Deps bundles the process-wide collaborators every session in a process
// shares: the single-worker datamodel engine (C1), the event dispatcher
// (C4), and the invoke coordinator (C6). The root facade constructs one set
// of these and hands it to every Interpreter it creates.
type Deps struct {
	Datamodel  *datamodel.Engine
	Dispatcher *target.Dispatcher
	Invokes    *invoke.Coordinator
}

// Interpreter runs one SCXML session: a single model plus its own mutable
// configuration, history, and event queues. Grounded on the teacher's
// Machine (comalice/statechartx/internal/core/machine.go) for the overall
// shape of a long-lived driver goroutine reading from a queue, but the body
// of the loop is a faithful microstep interpreter rather than the teacher's
// single-active-leaf model.
type Interpreter struct {
	m               *model.Model
	sessionID       string
	name            string
	parentSessionID string
	invokeID        string

	configuration   map[string]bool
	dataInitialized map[string]bool
	historyMgr      *HistoryManager
	documentIndex   map[string]int

	deps   Deps
	queues *queue.Queues
	raiser *queue.Raiser

	logger      zerolog.Logger
	persister   Persister
	publisher   EventPublisher
	visualizer  Visualizer
	registry    Registry
	metricsHook func(sessionID string, microsteps int)
	onTerminate func(doneData any)
	seedData    map[string]any

	mu         sync.Mutex
	running    bool
	terminated bool

	stopCh chan struct{}
	doneCh chan struct{}
	wakeCh chan struct{}

	pendingInvokes      []*model.InvokeNode
	microstepsThisMacro int
}

// NewInterpreter builds an Interpreter for m, not yet started. parentSessionID
// is "" for a top-level session.
func NewInterpreter(m *model.Model, sessionID, name, parentSessionID string, deps Deps, opts ...Option) *Interpreter {
	in := &Interpreter{
		m:               m,
		sessionID:       sessionID,
		name:            name,
		parentSessionID: parentSessionID,
		configuration:   make(map[string]bool),
		dataInitialized: make(map[string]bool),
		historyMgr:      NewHistoryManager(),
		documentIndex:   computeDocumentIndex(m),
		deps:            deps,
		queues:          queue.New(),
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
		wakeCh:          make(chan struct{}, 1),
		logger:          zerolog.Nop(),
	}
	in.raiser = queue.NewRaiser(in.queues, in.drainImmediate)
	for _, opt := range opts {
		opt(in)
	}
	return in
}

func computeDocumentIndex(m *model.Model) map[string]int {
	idx := make(map[string]int)
	n := 0
	var walk func(s *model.StateNode)
	walk = func(s *model.StateNode) {
		idx[s.ID] = n
		n++
		for _, c := range s.Children {
			walk(c)
		}
	}
	walk(m.Root)
	return idx
}

func (in *Interpreter) walkAll(fn func(s *model.StateNode)) {
	var walk func(s *model.StateNode)
	walk = func(s *model.StateNode) {
		fn(s)
		for _, c := range s.Children {
			walk(c)
		}
	}
	walk(in.m.Root)
}

// SessionID satisfies invoke.ChildSession and target.Deliverer lookups.
func (in *Interpreter) SessionID() string { return in.sessionID }

func (in *Interpreter) executorFor() *action.Executor {
	return &action.Executor{
		SessionID:  in.sessionID,
		Datamodel:  in.deps.Datamodel,
		Raiser:     in.raiser,
		Dispatcher: in.deps.Dispatcher,
		Logger:     in.logger,
	}
}

// Start creates the session's datamodel, enters the initial configuration,
// runs it to a stable point (spec.md §4.7 "initial macrostep"), and launches
// the session's own event-processing goroutine.
func (in *Interpreter) Start() error {
	in.mu.Lock()
	if in.running {
		in.mu.Unlock()
		return errtype.ErrAlreadyRunning
	}
	in.mu.Unlock()

	isIn := func(stateID string) bool { return in.configuration[stateID] }
	if err := in.deps.Datamodel.CreateSession(in.sessionID, in.name, isIn, in.m.Datamodel); err != nil {
		return err
	}
	if err := in.deps.Datamodel.SetIOProcessors(in.sessionID, in.deps.Dispatcher.Schemes()); err != nil {
		return err
	}

	in.raiser.SetImmediate(true)
	defer in.raiser.SetImmediate(false)

	if err := in.initGlobalData(); err != nil {
		return err
	}
	for name, v := range in.seedData {
		if err := in.deps.Datamodel.SetVariable(in.sessionID, name, v); err != nil {
			return err
		}
	}

	leaves := resolveInitialLeaf(in.m, in.m.Root, in.historyMgr)
	in.enterStates(in.enterSetForLeaves(leaves))
	in.runToStable()

	in.mu.Lock()
	in.running = true
	in.mu.Unlock()

	go in.mainLoop()
	return nil
}

// Stop halts the session's goroutine and releases its datamodel runtime. A
// no-op if the session was never started or already stopped.
func (in *Interpreter) Stop() {
	in.mu.Lock()
	if !in.running {
		in.mu.Unlock()
		return
	}
	in.running = false
	in.mu.Unlock()
	close(in.stopCh)
	<-in.doneCh
}

// IsRunning reports whether the session is started and has not yet reached
// its top-level final state.
func (in *Interpreter) IsRunning() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.running && !in.terminated
}

// ActiveStates returns the ids of every currently active state, sorted for
// deterministic display/snapshot output.
func (in *Interpreter) ActiveStates() []string {
	out := make([]string, 0, len(in.configuration))
	for id := range in.configuration {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsStateActive reports whether id is in the current configuration.
func (in *Interpreter) IsStateActive(id string) bool {
	return in.configuration[id]
}

// Snapshot captures this session's current configuration for persistence:
// session id, model name, the sorted active state ids and a timestamp.
// Datamodel variables are not captured (ContextData is left empty, for
// ecmascript and null sessions alike), and there is no operation that
// restarts a session from a Snapshot.
func (in *Interpreter) Snapshot() Snapshot {
	return Snapshot{
		SessionID: in.sessionID,
		ModelName: in.m.Name,
		Current:   in.ActiveStates(),
		Timestamp: time.Now(),
	}
}

// ProcessEvent delivers an externally-sourced event (from the host) to this
// session; equivalent to DeliverExternal with no particular sender.
func (in *Interpreter) ProcessEvent(ev primitives.Event) error {
	return in.DeliverExternal(ev)
}

// DeliverExternal enqueues ev on this session's external queue and wakes its
// goroutine. Satisfies invoke.ChildSession.
func (in *Interpreter) DeliverExternal(ev primitives.Event) error {
	in.mu.Lock()
	if in.terminated {
		in.mu.Unlock()
		return errtype.ErrNotRunning
	}
	in.mu.Unlock()
	in.queues.RaiseExternal(ev)
	in.wake()
	return nil
}

// DeliverInternal enqueues ev directly on this session's internal queue,
// used by the rare target that must bypass the external queue.
func (in *Interpreter) DeliverInternal(ev primitives.Event) error {
	in.queues.RaiseInternal(ev)
	in.wake()
	return nil
}

func (in *Interpreter) wake() {
	select {
	case in.wakeCh <- struct{}{}:
	default:
	}
}

func (in *Interpreter) drainImmediate() {
	in.runToStable()
}

func (in *Interpreter) mainLoop() {
	defer close(in.doneCh)
	for {
		in.mu.Lock()
		terminated := in.terminated
		in.mu.Unlock()
		if terminated {
			in.shutdown()
			return
		}

		select {
		case <-in.stopCh:
			in.shutdown()
			return
		case <-in.wakeCh:
		}

		for {
			ev, ok := in.queues.DequeueExternal()
			if !ok {
				break
			}
			in.processExternalEvent(ev)
			in.mu.Lock()
			done := in.terminated
			in.mu.Unlock()
			if done {
				in.shutdown()
				return
			}
		}
	}
}

func (in *Interpreter) processExternalEvent(ev primitives.Event) {
	if ev.Origin != "" && invoke.IsCancelledChildSession(ev.Origin) {
		return
	}
	in.microstepsThisMacro = 0

	if ev.InvokeID == "" && ev.Origin != "" {
		if invokeID, ok := in.deps.Invokes.InvokeIDForChildSession(ev.Origin); ok {
			ev.InvokeID = invokeID
		}
	}

	if err := in.deps.Datamodel.SetCurrentEvent(in.sessionID, ev); err != nil {
		in.logger.Warn().Err(err).Str("session", in.sessionID).Msg("scxml: setting _event failed")
		return
	}

	if finalize, ok := in.deps.Invokes.FinalizeActionsForChildSession(ev.Origin); ok && len(finalize) > 0 {
		in.executorFor().Run(finalize)
	}
	for _, child := range in.deps.Invokes.AutoforwardSessions(in.sessionID) {
		_ = child.DeliverExternal(ev)
	}

	if enabled := in.selectTransitions(ev.Name, false); len(enabled) > 0 {
		in.microstep(enabled)
	}
	in.runToStable()

	if in.metricsHook != nil {
		in.metricsHook(in.sessionID, in.microstepsThisMacro)
	}
}

// runToStable drains eventless transitions and the internal queue until
// neither yields any further transition, per spec.md §4.2's mainEventLoop
// stabilization, then spawns any invokes accumulated along the way.
func (in *Interpreter) runToStable() {
	for {
		if enabled := in.selectTransitions("", true); len(enabled) > 0 {
			in.microstep(enabled)
			continue
		}
		if in.terminated {
			break
		}
		ev, ok := in.queues.DequeueInternal()
		if !ok {
			break
		}
		if err := in.deps.Datamodel.SetCurrentEvent(in.sessionID, ev); err != nil {
			in.logger.Warn().Err(err).Str("session", in.sessionID).Msg("scxml: setting _event failed")
			continue
		}
		if enabled := in.selectTransitions(ev.Name, false); len(enabled) > 0 {
			in.microstep(enabled)
		}
	}
	in.spawnPendingInvokes()
}

func (in *Interpreter) spawnPendingInvokes() {
	if len(in.pendingInvokes) == 0 {
		return
	}
	pending := in.pendingInvokes
	in.pendingInvokes = nil
	for _, inv := range pending {
		if _, err := in.deps.Invokes.Spawn(inv, in.sessionID); err != nil {
			in.raiser.Raise(primitives.ErrorExecution(err.Error(), ""), queue.PriorityInternal, in.sessionID, "", "")
		}
	}
}

// enterSetForLeaves unions the ancestor chains of leaves (the actual atomic
// states the initial configuration resolves to), first-seen order, then
// sorts by document order — the same shape entry sets always take.
func (in *Interpreter) enterSetForLeaves(leaves []*model.StateNode) []*model.StateNode {
	seen := make(map[string]bool)
	var out []*model.StateNode
	for _, leaf := range leaves {
		for _, anc := range in.m.Ancestors(leaf) {
			if !seen[anc.ID] {
				seen[anc.ID] = true
				out = append(out, anc)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return in.documentIndex[out[i].ID] < in.documentIndex[out[j].ID] })
	return out
}

func (in *Interpreter) enterStates(states []*model.StateNode) {
	for _, s := range states {
		if in.configuration[s.ID] {
			continue
		}
		in.configuration[s.ID] = true
		in.initLateData(s)
		in.executorFor().Run(s.OnEntry)
		if len(s.Invokes) > 0 {
			in.pendingInvokes = append(in.pendingInvokes, s.Invokes...)
		}
		if s.Type == model.Final {
			in.handleFinalStateEntered(s)
		}
	}
}

// handleFinalStateEntered implements spec.md §4.7's enterStates handling of
// a newly-entered <final>: a final whose parent is the document root ends
// the session outright; otherwise it fires done.state.<parent> once the
// parent's whole active configuration is done, and, if the parent's own
// parent is a <parallel>, also fires done.state.<grandparent> once every
// region of that parallel is done. This does not recurse further: a final
// several levels deep only ever bubbles one hop per entry, matching the
// document root's single root-only termination check rather than an
// unbounded upward walk.
func (in *Interpreter) handleFinalStateEntered(s *model.StateNode) {
	parent := s.Parent
	if parent == nil {
		return
	}
	if parent == in.m.Root {
		in.mu.Lock()
		in.terminated = true
		in.mu.Unlock()
		if in.onTerminate != nil {
			in.onTerminate(in.evalDoneData(in.m.Root.DoneData))
		}
		return
	}
	if !in.isDone(parent) {
		return
	}
	in.raiser.Raise(primitives.DoneState(parent.ID, in.evalDoneData(parent.DoneData)), queue.PriorityInternal, in.sessionID, "", "")

	grandparent := parent.Parent
	if grandparent != nil && grandparent.Type == model.Parallel && grandparent != in.m.Root && in.isDone(grandparent) {
		in.raiser.Raise(primitives.DoneState(grandparent.ID, in.evalDoneData(grandparent.DoneData)), queue.PriorityInternal, in.sessionID, "", "")
	}
}

// isDone reports whether n's active descendant configuration has reached
// completion: a <final> state is trivially done; a compound state is done
// when its one active child is done; a parallel state is done only when
// every region is done (spec.md §4.7 "isInFinalState").
func (in *Interpreter) isDone(n *model.StateNode) bool {
	switch n.Type {
	case model.Final:
		return true
	case model.Parallel:
		for _, c := range n.Children {
			if !in.isDone(c) {
				return false
			}
		}
		return true
	case model.Compound:
		for _, c := range n.Children {
			if in.configuration[c.ID] {
				return in.isDone(c)
			}
		}
		return false
	default:
		return false
	}
}

func (in *Interpreter) evalDoneData(dd *model.DoneData) any {
	if dd == nil {
		return nil
	}
	if len(dd.Params) > 0 {
		out := make(map[string]any, len(dd.Params))
		for _, p := range dd.Params {
			var v any
			switch {
			case p.Expr != "":
				v, _ = in.deps.Datamodel.EvaluateExpression(in.sessionID, p.Expr)
			case p.Location != "":
				v, _, _ = in.deps.Datamodel.GetVariable(in.sessionID, p.Location)
			}
			out[p.Name] = v
		}
		return out
	}
	if script, ok := dd.Content.(model.Script); ok {
		v, _ := in.deps.Datamodel.EvaluateExpression(in.sessionID, script.Source)
		return v
	}
	return nil
}

func (in *Interpreter) initGlobalData() error {
	if in.m.Binding == model.EarlyBinding {
		var firstErr error
		in.walkAll(func(s *model.StateNode) {
			if firstErr != nil {
				return
			}
			if err := in.initDataItems(s.DataItems); err != nil {
				firstErr = err
				return
			}
			in.dataInitialized[s.ID] = true
		})
		return firstErr
	}
	if err := in.initDataItems(in.m.Root.DataItems); err != nil {
		return err
	}
	in.dataInitialized[in.m.Root.ID] = true
	return nil
}

func (in *Interpreter) initLateData(s *model.StateNode) {
	if in.dataInitialized[s.ID] {
		return
	}
	if err := in.initDataItems(s.DataItems); err != nil {
		in.raiser.Raise(primitives.ErrorExecution(err.Error(), ""), queue.PriorityInternal, in.sessionID, "", "")
	}
	in.dataInitialized[s.ID] = true
}

func (in *Interpreter) initDataItems(items []*model.DataItem) error {
	for _, d := range items {
		if err := in.initDataItem(d); err != nil {
			return err
		}
	}
	return nil
}

// initDataItem assigns a <data> element's initial value. Src (a fetched
// document) is not resolved here: spec.md's Non-goals exclude external
// network data loading, so a src-only item (like an item with no
// expr/content at all) is bound to null.
func (in *Interpreter) initDataItem(d *model.DataItem) error {
	var value any
	switch {
	case d.Expr != "":
		v, err := in.deps.Datamodel.EvaluateExpression(in.sessionID, d.Expr)
		if err != nil {
			return err
		}
		value = v
	case d.Content != "":
		value = d.Content
	}
	return in.deps.Datamodel.SetVariable(in.sessionID, d.ID, value)
}

// selectTransitions implements spec.md §4.7's selectTransitions: for every
// currently active atomic/final state, in document order, walk from the
// state itself outward to the root and fire the first enabled transition
// found at any level, then resolve conflicts among the whole batch.
func (in *Interpreter) selectTransitions(eventName string, eventless bool) []*model.TransitionNode {
	var atoms []*model.StateNode
	for id := range in.configuration {
		s, ok := in.m.State(id)
		if !ok || (s.Type != model.Atomic && s.Type != model.Final) {
			continue
		}
		atoms = append(atoms, s)
	}
	sort.Slice(atoms, func(i, j int) bool { return in.documentIndex[atoms[i].ID] < in.documentIndex[atoms[j].ID] })

	var enabled []*model.TransitionNode
	for _, atom := range atoms {
		chain := in.m.Ancestors(atom)
		for i := len(chain) - 1; i >= 0; i-- {
			if t := in.firstMatchingTransition(chain[i], eventName, eventless); t != nil {
				enabled = append(enabled, t)
				break
			}
		}
	}
	return in.removeConflicting(enabled)
}

func (in *Interpreter) firstMatchingTransition(s *model.StateNode, eventName string, eventless bool) *model.TransitionNode {
	for _, t := range s.Transitions {
		if eventless {
			if !t.IsEventless() {
				continue
			}
		} else if t.IsEventless() || !t.MatchesEvent(eventName) {
			continue
		}
		if t.Guard != "" {
			ok, err := in.deps.Datamodel.EvaluateCondition(in.sessionID, t.Guard)
			if err != nil {
				in.raiser.Raise(primitives.ErrorExecution(err.Error(), ""), queue.PriorityInternal, in.sessionID, "", "")
				continue
			}
			if !ok {
				continue
			}
		}
		return t
	}
	return nil
}

// removeConflicting implements spec.md §4.7's removeConflictingTransitions:
// a later, more specific (descendant-sourced) transition removes an earlier
// one whose exit set it overlaps; an earlier, equally-or-more-specific
// transition instead preempts the later one.
func (in *Interpreter) removeConflicting(enabled []*model.TransitionNode) []*model.TransitionNode {
	var filtered []*model.TransitionNode
	for _, t1 := range enabled {
		exit1 := exitSetOrEmpty(in.m, t1, in.configuration)

		preempted := false
		var toRemove []int
		for i, t2 := range filtered {
			exit2 := exitSetOrEmpty(in.m, t2, in.configuration)

			if disjoint(exit1, exit2) {
				continue
			}
			if in.m.IsDescendant(t1.Source, t2.Source) {
				toRemove = append(toRemove, i)
			} else {
				preempted = true
				break
			}
		}
		if preempted {
			continue
		}
		if len(toRemove) > 0 {
			filtered = removeIndices(filtered, toRemove)
		}
		filtered = append(filtered, t1)
	}
	return filtered
}

// microstep fires one conflict-free batch of transitions: compute and exit
// the exit set (recording history first), run transition actions, then
// compute and enter the entry set.
func (in *Interpreter) microstep(transitions []*model.TransitionNode) {
	in.microstepsThisMacro++

	exitSet := in.computeExitSet(transitions)
	in.recordHistory(exitSet)

	sort.Slice(exitSet, func(i, j int) bool { return in.documentIndex[exitSet[i].ID] > in.documentIndex[exitSet[j].ID] })
	ex := in.executorFor()
	for _, s := range exitSet {
		ex.Run(s.OnExit)
		in.deps.Invokes.CancelForState(s.ID)
		delete(in.configuration, s.ID)
	}

	for _, t := range transitions {
		ex.Run(t.Actions)
	}
	in.publishTransitions(transitions)

	in.enterStates(in.computeEntrySet(transitions))
}

// publishTransitions reports each fired transition to the configured
// EventPublisher, if any. Best-effort: a publish error never aborts or
// delays the microstep it describes.
func (in *Interpreter) publishTransitions(transitions []*model.TransitionNode) {
	if in.publisher == nil {
		return
	}
	for _, t := range transitions {
		desc := strings.Join(t.EventDescriptors, " ")
		if desc == "" {
			desc = "<eventless>"
		}
		meta := TransitionMetadata{
			SessionID:  in.sessionID,
			Transition: fmt.Sprintf("%s -[%s]-> %s", t.Source.ID, desc, strings.Join(t.Targets, ",")),
		}
		_ = in.publisher.Publish(context.Background(), desc, meta)
	}
}

func (in *Interpreter) computeExitSet(transitions []*model.TransitionNode) []*model.StateNode {
	seen := make(map[string]bool)
	var out []*model.StateNode
	for _, t := range transitions {
		// A targetless transition exits and enters nothing: it is pure
		// executable content, run in place against the current configuration.
		if len(t.Targets) == 0 {
			continue
		}
		domain := transitionDomain(in.m, t)
		for _, s := range exitSetFor(in.m, domain, in.configuration) {
			if !seen[s.ID] {
				seen[s.ID] = true
				out = append(out, s)
			}
		}
	}
	return out
}

func (in *Interpreter) computeEntrySet(transitions []*model.TransitionNode) []*model.StateNode {
	seen := make(map[string]bool)
	var out []*model.StateNode
	add := func(s *model.StateNode) {
		if !seen[s.ID] {
			seen[s.ID] = true
			out = append(out, s)
		}
	}
	for _, t := range transitions {
		domain := transitionDomain(in.m, t)
		for _, targetID := range t.Targets {
			tgt, ok := in.m.State(targetID)
			if !ok {
				continue
			}
			for _, s := range entryPath(in.m, domain, tgt) {
				add(s)
			}
			// A history pseudo-state is never entered itself; its resolved
			// leaves live in its parent's subtree, so descendance is tested
			// against the parent.
			subtreeRoot := tgt
			if tgt.Type == model.History {
				subtreeRoot = tgt.Parent
			}
			for _, leaf := range resolveInitialLeaf(in.m, tgt, in.historyMgr) {
				for _, anc := range in.m.Ancestors(leaf) {
					if anc == subtreeRoot || in.m.IsDescendant(anc, subtreeRoot) {
						add(anc)
					}
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return in.documentIndex[out[i].ID] < in.documentIndex[out[j].ID] })
	return out
}

// recordHistory saves, for every history pseudo-state whose parent is about
// to exit, the active configuration that must be restored the next time
// that history is the target of a transition.
func (in *Interpreter) recordHistory(exitSet []*model.StateNode) {
	for _, s := range exitSet {
		for _, c := range s.Children {
			if c.Type != model.History {
				continue
			}
			if c.HistoryType == model.Deep {
				var leaves []string
				for _, atom := range in.m.AtomicDescendants(s) {
					if in.configuration[atom.ID] {
						leaves = append(leaves, atom.ID)
					}
				}
				if len(leaves) > 0 {
					in.historyMgr.RecordDeep(c.ID, leaves)
				}
				continue
			}
			for _, child := range s.Children {
				if child.Type == model.History {
					continue
				}
				if in.configuration[child.ID] {
					in.historyMgr.RecordShallow(c.ID, child.ID)
					break
				}
			}
		}
	}
}

func (in *Interpreter) shutdown() {
	for id := range in.configuration {
		in.deps.Invokes.CancelForState(id)
	}
	in.deps.Dispatcher.CancelForSession(in.sessionID)
	in.deps.Datamodel.DestroySession(in.sessionID)
	in.queues.Shutdown()
	if in.persister != nil {
		_ = in.persister.Save(context.Background(), in.Snapshot())
	}
	if in.publisher != nil {
		_ = in.publisher.Close()
	}
}

func stateSet(states []*model.StateNode) map[string]bool {
	out := make(map[string]bool, len(states))
	for _, s := range states {
		out[s.ID] = true
	}
	return out
}

// exitSetOrEmpty is the conflict-resolution exit set for t: empty for a
// targetless transition (it exits nothing, so it can never conflict with
// anything), otherwise t's domain plus every active state that domain
// would exit.
func exitSetOrEmpty(m *model.Model, t *model.TransitionNode, configuration map[string]bool) map[string]bool {
	if len(t.Targets) == 0 {
		return nil
	}
	domain := transitionDomain(m, t)
	exit := stateSet(exitSetFor(m, domain, configuration))
	exit[domain.ID] = true
	return exit
}

func disjoint(a, b map[string]bool) bool {
	small, big := a, b
	if len(b) < len(a) {
		small, big = b, a
	}
	for id := range small {
		if big[id] {
			return false
		}
	}
	return true
}

func removeIndices(ts []*model.TransitionNode, idxs []int) []*model.TransitionNode {
	remove := make(map[int]bool, len(idxs))
	for _, i := range idxs {
		remove[i] = true
	}
	out := ts[:0:0]
	for i, t := range ts {
		if !remove[i] {
			out = append(out, t)
		}
	}
	return out
}
