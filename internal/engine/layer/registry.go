// Package layer provides named layers, per-node z-indices, and stacking
// operations. Exactly one default layer always exists and cannot be
// deleted; a node belongs to at most one layer at a time, with the default
// layer holding any node not explicitly assigned elsewhere.
//
// Layer paint order (which layer draws over which) is an ordered list
// independent of the per-node z-index within a layer.
package layer

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/diagrid/internal/event"
	"github.com/dshills/diagrid/internal/event/events"
	"github.com/dshills/diagrid/internal/event/topic"
)

// Common errors for layer operations.
var (
	// ErrLayerNotFound is returned when an id does not resolve to a layer.
	ErrLayerNotFound = errors.New("layer not found")

	// ErrDefaultLayer is returned when an operation would delete the
	// default layer.
	ErrDefaultLayer = errors.New("default layer cannot be deleted")

	// ErrNodeNotTracked is returned by stacking operations on a node with
	// no z-index row.
	ErrNodeNotTracked = errors.New("node has no z-index entry")
)

// DefaultLayerName is the display name of the mandatory default layer.
const DefaultLayerName = "Default"

// ZWriter writes assigned z-indices back onto stored nodes. The node store
// implements it.
type ZWriter interface {
	SetZIndex(id string, z int) bool
}

// Layer is a named, ordered container of node ids.
type Layer struct {
	// ID is the layer's unique identifier.
	ID string

	// Name is the display name.
	Name string

	// Visible and Locked gate rendering and interaction for every node on
	// the layer.
	Visible bool
	Locked  bool

	// Opacity is the layer's paint opacity in [0,1].
	Opacity float64

	// NodeIDs lists member nodes, sorted. Only nodes explicitly assigned
	// appear here; default-layer membership is implicit.
	NodeIDs []string
}

// Registry owns layers, membership, and the z-index map.
type Registry struct {
	mu sync.Mutex

	layers     map[string]*layerState
	paintOrder []string // layer ids, bottom-most first
	defaultID  string

	membership map[string]string // node id -> layer id, absent means default
	zIndex     map[string]int
	zCounter   int

	nodes  ZWriter
	bus    *event.Bus
	logger *slog.Logger
}

type layerState struct {
	id      string
	name    string
	visible bool
	locked  bool
	opacity float64
	nodes   map[string]struct{}
}

// NewRegistry creates a registry with the mandatory default layer.
func NewRegistry(bus *event.Bus, nodes ZWriter, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		layers:     make(map[string]*layerState),
		membership: make(map[string]string),
		zIndex:     make(map[string]int),
		nodes:      nodes,
		bus:        bus,
		logger:     logger,
	}
	def := &layerState{
		id:      uuid.NewString(),
		name:    DefaultLayerName,
		visible: true,
		opacity: 1,
		nodes:   make(map[string]struct{}),
	}
	r.layers[def.id] = def
	r.paintOrder = []string{def.id}
	r.defaultID = def.id
	return r
}

// DefaultLayerID returns the id of the mandatory default layer.
func (r *Registry) DefaultLayerID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.defaultID
}

// CreateLayer creates a new layer on top of the paint order and emits
// layer.created. Returns the layer id.
func (r *Registry) CreateLayer(name string) string {
	r.mu.Lock()
	l := &layerState{
		id:      uuid.NewString(),
		name:    name,
		visible: true,
		opacity: 1,
		nodes:   make(map[string]struct{}),
	}
	r.layers[l.id] = l
	r.paintOrder = append(r.paintOrder, l.id)
	r.mu.Unlock()

	r.emit(events.TopicLayerCreated, events.LayerCreated{LayerID: l.id, Name: name})
	return l.id
}

// DeleteLayer removes a layer, reverting its members to the default layer,
// and emits layer.deleted. The default layer cannot be deleted.
func (r *Registry) DeleteLayer(id string) error {
	r.mu.Lock()
	if id == r.defaultID {
		r.mu.Unlock()
		return ErrDefaultLayer
	}
	l, ok := r.layers[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	}

	moved := sortedKeys(l.nodes)
	for _, nodeID := range moved {
		delete(r.membership, nodeID)
		r.layers[r.defaultID].nodes[nodeID] = struct{}{}
	}
	delete(r.layers, id)
	for i, v := range r.paintOrder {
		if v == id {
			r.paintOrder = append(r.paintOrder[:i], r.paintOrder[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if len(moved) > 0 {
		r.logger.Debug("layer deleted, members moved to default layer",
			"layer", id, "nodes", len(moved))
	}
	r.emit(events.TopicLayerDeleted, events.LayerDeleted{LayerID: id, MovedNodeIDs: moved})
	return nil
}

// Get returns a snapshot of a layer.
func (r *Registry) Get(id string) (Layer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.layers[id]
	if !ok {
		return Layer{}, false
	}
	return snapshot(l), true
}

// Layers returns snapshots of all layers in paint order, bottom-most first.
func (r *Registry) Layers() []Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Layer, 0, len(r.paintOrder))
	for _, id := range r.paintOrder {
		out = append(out, snapshot(r.layers[id]))
	}
	return out
}

// AddNodeToLayer assigns a node to a layer, removing it from any prior
// layer first, since membership is exclusive. Emits layer.membership.
func (r *Registry) AddNodeToLayer(nodeID, layerID string) error {
	r.mu.Lock()
	l, ok := r.layers[layerID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrLayerNotFound, layerID)
	}

	prev := r.membership[nodeID]
	if prev == layerID {
		r.mu.Unlock()
		return nil
	}
	if prevLayer, ok := r.layers[prev]; ok {
		delete(prevLayer.nodes, nodeID)
	}
	delete(r.layers[r.defaultID].nodes, nodeID)

	l.nodes[nodeID] = struct{}{}
	if layerID == r.defaultID {
		delete(r.membership, nodeID)
	} else {
		r.membership[nodeID] = layerID
	}
	r.mu.Unlock()

	r.emit(events.TopicLayerMembership, events.LayerMembership{
		NodeID:          nodeID,
		LayerID:         layerID,
		PreviousLayerID: prev,
	})
	return nil
}

// LayerOf returns the id of the layer a node belongs to.
func (r *Registry) LayerOf(nodeID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.membership[nodeID]; ok {
		return id
	}
	return r.defaultID
}

// SetVisible toggles a layer's visibility, emitting layer.node.visibility
// for each member node so renderers never special-case layer-level state.
func (r *Registry) SetVisible(layerID string, visible bool) error {
	nodes, err := r.setFlag(layerID, func(l *layerState) bool {
		if l.visible == visible {
			return false
		}
		l.visible = visible
		return true
	})
	if err != nil {
		return err
	}
	for _, nodeID := range nodes {
		r.emit(events.TopicLayerNodeVisibility, events.LayerNodeVisibility{
			NodeID:  nodeID,
			LayerID: layerID,
			Visible: visible,
		})
	}
	return nil
}

// SetLocked toggles a layer's lock, with per-node layer.node.lock fan-out.
func (r *Registry) SetLocked(layerID string, locked bool) error {
	nodes, err := r.setFlag(layerID, func(l *layerState) bool {
		if l.locked == locked {
			return false
		}
		l.locked = locked
		return true
	})
	if err != nil {
		return err
	}
	for _, nodeID := range nodes {
		r.emit(events.TopicLayerNodeLock, events.LayerNodeLock{
			NodeID:  nodeID,
			LayerID: layerID,
			Locked:  locked,
		})
	}
	return nil
}

// SetOpacity sets a layer's opacity, clamped to [0,1], with per-node
// layer.node.opacity fan-out.
func (r *Registry) SetOpacity(layerID string, opacity float64) error {
	if opacity < 0 {
		opacity = 0
	} else if opacity > 1 {
		opacity = 1
	}
	nodes, err := r.setFlag(layerID, func(l *layerState) bool {
		if l.opacity == opacity {
			return false
		}
		l.opacity = opacity
		return true
	})
	if err != nil {
		return err
	}
	for _, nodeID := range nodes {
		r.emit(events.TopicLayerNodeOpacity, events.LayerNodeOpacity{
			NodeID:  nodeID,
			LayerID: layerID,
			Opacity: opacity,
		})
	}
	return nil
}

// setFlag applies a mutation to a layer and returns its member nodes when
// the mutation changed something, nil when it was a no-op.
func (r *Registry) setFlag(layerID string, mutate func(*layerState) bool) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.layers[layerID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrLayerNotFound, layerID)
	}
	if !mutate(l) {
		return nil, nil
	}
	return sortedKeys(l.nodes), nil
}

// MoveLayer repositions a layer in the paint order and emits
// layer.order.changed. Index is clamped to the valid range.
func (r *Registry) MoveLayer(layerID string, index int) error {
	r.mu.Lock()
	pos := -1
	for i, v := range r.paintOrder {
		if v == layerID {
			pos = i
			break
		}
	}
	if pos < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrLayerNotFound, layerID)
	}

	r.paintOrder = append(r.paintOrder[:pos], r.paintOrder[pos+1:]...)
	if index < 0 {
		index = 0
	}
	if index > len(r.paintOrder) {
		index = len(r.paintOrder)
	}
	r.paintOrder = append(r.paintOrder[:index], append([]string{layerID}, r.paintOrder[index:]...)...)
	order := make([]string, len(r.paintOrder))
	copy(order, r.paintOrder)
	r.mu.Unlock()

	r.emit(events.TopicLayerOrderChanged, events.LayerOrderChanged{Order: order})
	return nil
}

// PaintOrder returns the layer ids bottom-most first.
func (r *Registry) PaintOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.paintOrder))
	copy(out, r.paintOrder)
	return out
}

func snapshot(l *layerState) Layer {
	return Layer{
		ID:      l.id,
		Name:    l.name,
		Visible: l.visible,
		Locked:  l.locked,
		Opacity: l.opacity,
		NodeIDs: sortedKeys(l.nodes),
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) emit(t topic.Topic, payload any) {
	if r.bus != nil {
		r.bus.Emit(t, payload)
	}
}
