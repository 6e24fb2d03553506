package events

import (
	"github.com/dshills/diagrid/internal/engine/entity"
	"github.com/dshills/diagrid/internal/event/topic"
)

// Node event topics.
const (
	// TopicNodeCreated is published when a node is added to the store.
	TopicNodeCreated topic.Topic = "node.created"

	// TopicNodeUpdated is published when node fields change through Update.
	TopicNodeUpdated topic.Topic = "node.updated"

	// TopicNodeMoved is published when a node changes position.
	TopicNodeMoved topic.Topic = "node.moved"

	// TopicNodeResized is published when a node changes size.
	TopicNodeResized topic.Topic = "node.resized"

	// TopicNodeDeleted is published when a node is removed from the store.
	TopicNodeDeleted topic.Topic = "node.deleted"

	// TopicNodeCleared is published after all nodes have been removed.
	TopicNodeCleared topic.Topic = "node.cleared"
)

// NodeCreated is published when a node is added to the store.
type NodeCreated struct {
	// Node is a snapshot of the node as created.
	Node entity.Node

	// Restored is true when the node was reinserted from a snapshot
	// (history undo or deserialization) rather than newly created. Its
	// ZIndex is then authoritative, including zero and negative values.
	Restored bool
}

// NodeUpdated is published when node fields change through Update.
type NodeUpdated struct {
	// Node is a snapshot of the node after the update.
	Node entity.Node

	// Changed lists the field names that were modified.
	Changed []string

	// Reason is a caller-supplied annotation for debugging and telemetry.
	// It is never branched on.
	Reason string
}

// NodeMoved is published when a node changes position.
type NodeMoved struct {
	// Node is a snapshot of the node after the move.
	Node entity.Node

	// OldX and OldY are the position before the move.
	OldX float64
	OldY float64
}

// NodeResized is published when a node changes size.
type NodeResized struct {
	// Node is a snapshot of the node after the resize.
	Node entity.Node

	// OldWidth and OldHeight are the size before the resize.
	OldWidth  float64
	OldHeight float64
}

// NodeDeleted is published when a node is removed from the store.
// The payload carries a full snapshot so subscribers (edge cascade,
// selection purge, history inverses) can act without re-querying an
// entity that no longer exists.
type NodeDeleted struct {
	// Node is a snapshot of the node at the moment of deletion.
	Node entity.Node
}

// NodeCleared is published once after Clear removes all nodes.
// Individual NodeDeleted events have already fired for each node.
type NodeCleared struct {
	// Count is the number of nodes that were removed.
	Count int
}
