package events

import "github.com/dshills/diagrid/internal/event/topic"

// State tree event topics.
const (
	// TopicStateChanged is published after one or more state tree paths
	// change. Batched updates produce exactly one event.
	TopicStateChanged topic.Topic = "state.changed"

	// TopicViewportChanged is published when the viewport pan or zoom
	// changes.
	TopicViewportChanged topic.Topic = "viewport.changed"
)

// StateChanged is published after one or more state tree paths change.
type StateChanged struct {
	// Paths lists the gjson-style paths that changed, in write order.
	Paths []string

	// Reason is a caller-supplied annotation for debugging and telemetry.
	Reason string
}

// ViewportChanged is published when the viewport pan or zoom changes.
type ViewportChanged struct {
	// X and Y are the new pan offsets.
	X float64
	Y float64

	// Zoom is the new zoom factor.
	Zoom float64
}
