package events

import (
	"github.com/dshills/diagrid/internal/engine/entity"
	"github.com/dshills/diagrid/internal/event/topic"
)

// Edge event topics.
const (
	// TopicEdgeCreated is published when an edge is added to the store.
	TopicEdgeCreated topic.Topic = "edge.created"

	// TopicEdgeUpdated is published when edge fields change through Update
	// or Reconnect.
	TopicEdgeUpdated topic.Topic = "edge.updated"

	// TopicEdgeDeleted is published when an edge is removed, whether
	// directly or by a node-deletion cascade.
	TopicEdgeDeleted topic.Topic = "edge.deleted"

	// TopicEdgePathUpdate is published when an endpoint node moves and the
	// edge's routed path needs recomputing. The engine does not recompute
	// geometry eagerly; renderers call Route when they need the points.
	TopicEdgePathUpdate topic.Topic = "edge.path.update"

	// TopicEdgeCleared is published after all edges have been removed.
	TopicEdgeCleared topic.Topic = "edge.cleared"
)

// EdgeCreated is published when an edge is added to the store.
type EdgeCreated struct {
	// Edge is a snapshot of the edge as created.
	Edge entity.Edge
}

// EdgeUpdated is published when edge fields change.
type EdgeUpdated struct {
	// Edge is a snapshot of the edge after the update.
	Edge entity.Edge

	// Changed lists the field names that were modified.
	Changed []string

	// Reason is a caller-supplied annotation for debugging and telemetry.
	Reason string
}

// EdgeDeleted is published when an edge is removed from the store.
type EdgeDeleted struct {
	// Edge is a snapshot of the edge at the moment of deletion.
	Edge entity.Edge

	// Cascaded is true when the deletion was triggered by the removal of
	// an endpoint node rather than a direct Delete call.
	Cascaded bool
}

// EdgePathUpdate is published when an endpoint node moves.
type EdgePathUpdate struct {
	// EdgeID identifies the edge whose path is stale.
	EdgeID string

	// NodeID identifies the endpoint node that moved.
	NodeID string
}

// EdgeCleared is published once after Clear removes all edges.
type EdgeCleared struct {
	// Count is the number of edges that were removed.
	Count int
}
