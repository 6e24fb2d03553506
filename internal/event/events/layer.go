package events

import "github.com/dshills/diagrid/internal/event/topic"

// Layer and z-order event topics.
const (
	// TopicLayerCreated is published when a layer is created.
	TopicLayerCreated topic.Topic = "layer.created"

	// TopicLayerDeleted is published when a layer is deleted.
	TopicLayerDeleted topic.Topic = "layer.deleted"

	// TopicLayerMembership is published when a node moves between layers.
	TopicLayerMembership topic.Topic = "layer.membership"

	// TopicLayerNodeVisibility is published per node when a layer's
	// visibility toggles, so renderers see node-grained changes and never
	// special-case layer-level state.
	TopicLayerNodeVisibility topic.Topic = "layer.node.visibility"

	// TopicLayerNodeLock is published per node when a layer's lock toggles.
	TopicLayerNodeLock topic.Topic = "layer.node.lock"

	// TopicLayerNodeOpacity is published per node when a layer's opacity
	// changes.
	TopicLayerNodeOpacity topic.Topic = "layer.node.opacity"

	// TopicLayerOrderChanged is published when the layer paint order
	// changes.
	TopicLayerOrderChanged topic.Topic = "layer.order.changed"

	// TopicZOrderChanged is published when per-node z-indices change.
	TopicZOrderChanged topic.Topic = "zorder.changed"
)

// LayerCreated is published when a layer is created.
type LayerCreated struct {
	// LayerID identifies the new layer.
	LayerID string

	// Name is the layer's display name.
	Name string
}

// LayerDeleted is published when a layer is deleted.
type LayerDeleted struct {
	// LayerID identifies the removed layer.
	LayerID string

	// MovedNodeIDs lists nodes whose membership reverted to the default
	// layer.
	MovedNodeIDs []string
}

// LayerMembership is published when a node moves between layers.
type LayerMembership struct {
	// NodeID identifies the node.
	NodeID string

	// LayerID is the node's new layer.
	LayerID string

	// PreviousLayerID is the layer the node left, empty if it was on the
	// default layer implicitly.
	PreviousLayerID string
}

// LayerNodeVisibility is the per-node fan-out of a layer visibility toggle.
type LayerNodeVisibility struct {
	// NodeID identifies the affected node.
	NodeID string

	// LayerID identifies the layer that toggled.
	LayerID string

	// Visible is the layer's new visibility.
	Visible bool
}

// LayerNodeLock is the per-node fan-out of a layer lock toggle.
type LayerNodeLock struct {
	// NodeID identifies the affected node.
	NodeID string

	// LayerID identifies the layer that toggled.
	LayerID string

	// Locked is the layer's new lock state.
	Locked bool
}

// LayerNodeOpacity is the per-node fan-out of a layer opacity change.
type LayerNodeOpacity struct {
	// NodeID identifies the affected node.
	NodeID string

	// LayerID identifies the layer that changed.
	LayerID string

	// Opacity is the layer's new opacity in [0,1].
	Opacity float64
}

// LayerOrderChanged is published when the layer paint order changes.
type LayerOrderChanged struct {
	// Order is the full layer id list, bottom-most first.
	Order []string
}

// ZOrderChanged is published when per-node z-indices change.
type ZOrderChanged struct {
	// NodeID identifies the restacked node.
	NodeID string

	// ZIndex is the node's new z-index.
	ZIndex int
}
