package core

import "context"

// Persister saves and loads session snapshots. Kept from the teacher's
// Machine.Persister contract; adapted to the new Snapshot shape.
// production's JSONPersister, YAMLPersister and SQLitePersister satisfy
// this; no persister is installed unless WithPersister is used.
type Persister interface {
	Save(ctx context.Context, snapshot Snapshot) error
	Load(ctx context.Context, sessionID string) (Snapshot, error)
}

// TransitionMetadata describes one fired transition, passed to EventPublisher.
type TransitionMetadata struct {
	SessionID  string
	Transition string
}

// EventPublisher publishes processed events to an external bus/topic.
type EventPublisher interface {
	Publish(ctx context.Context, eventName string, metadata TransitionMetadata) error
	Close() error
}

// Visualizer renders a model's structure and current configuration.
type Visualizer interface {
	ExportDOT(name string, current []string) string
}
