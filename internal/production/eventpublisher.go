package production

import (
	"context"

	"github.com/scxmlgo/scxml/internal/core"
)

// PublishedEvent bundles a processed event name with its transition
// metadata for downstream consumers of ChannelPublisher.
type PublishedEvent struct {
	EventName string
	Metadata  core.TransitionMetadata
}

// ChannelPublisher is a core.EventPublisher that forwards published events
// to a Go channel, non-blocking: a slow or absent consumer causes a publish
// to drop rather than stall the interpreter's macrostep loop.
type ChannelPublisher struct {
	ch chan<- PublishedEvent
}

// NewChannelPublisher creates a ChannelPublisher writing to ch.
func NewChannelPublisher(ch chan<- PublishedEvent) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

func (p *ChannelPublisher) Publish(ctx context.Context, eventName string, metadata core.TransitionMetadata) error {
	select {
	case p.ch <- PublishedEvent{EventName: eventName, Metadata: metadata}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (p *ChannelPublisher) Close() error {
	close(p.ch)
	return nil
}
