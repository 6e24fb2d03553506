// Package node provides the node store: CRUD and spatial queries over node
// entities. The store exclusively owns its entity map; every mutation goes
// through a store method so events fire and invariants are checked, and
// every value handed out is a deep copy.
package node

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dshills/diagrid/internal/engine/entity"
	"github.com/dshills/diagrid/internal/event"
	"github.com/dshills/diagrid/internal/event/events"
	"github.com/dshills/diagrid/internal/event/topic"
)

// Common errors for node operations.
var (
	// ErrUnknownShapeType is returned when a node's type is not recognized
	// by the shape catalog.
	ErrUnknownShapeType = errors.New("unknown shape type")

	// ErrMissingType is returned when a create spec has no type.
	ErrMissingType = errors.New("node type is required")

	// ErrDuplicateID is returned when a create spec supplies an id that is
	// already in use.
	ErrDuplicateID = errors.New("duplicate node id")

	// ErrBadGeometry is returned when geometry is non-finite or width or
	// height is not positive.
	ErrBadGeometry = errors.New("invalid node geometry")

	// ErrNotFound is returned when an id does not resolve to a live node.
	ErrNotFound = errors.New("node not found")
)

// idPrefix is the prefix of auto-generated node ids.
const idPrefix = "node_"

// Catalog is the external shape catalog consulted at creation time. The
// engine treats shape types as opaque keys.
type Catalog interface {
	HasType(t string) bool
}

// Spec describes a node to create. A zero ID requests an auto-generated one.
type Spec struct {
	ID       string
	Type     string
	X        float64
	Y        float64
	Width    float64
	Height   float64
	Rotation float64
	Label    string
	Style    map[string]string
	Data     map[string]any
	Locked   bool

	// Hidden creates the node with Visible set to false. Nodes are visible
	// by default.
	Hidden bool
}

// Update describes a partial node update. Nil pointers leave fields
// unchanged; a non-nil Style or Data map replaces the whole map.
type Update struct {
	Type     *string
	X        *float64
	Y        *float64
	Width    *float64
	Height   *float64
	Rotation *float64
	Label    *string
	Style    map[string]string
	Data     map[string]any
	Locked   *bool
	Visible  *bool

	// Reason annotates the resulting node.updated event.
	Reason string
}

// RectQuery configures InRect.
type RectQuery struct {
	// Intersect includes nodes that merely overlap the rectangle instead
	// of requiring full containment.
	Intersect bool
}

// Store owns the node entity map.
type Store struct {
	mu      sync.Mutex
	nodes   map[string]*entity.Node
	order   []string // creation order, for deterministic iteration
	counter int
	catalog Catalog
	bus     *event.Bus
	logger  *slog.Logger
}

// NewStore creates a node store. The catalog gates creation by shape type;
// a nil catalog accepts every type.
func NewStore(bus *event.Bus, catalog Catalog, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		nodes:   make(map[string]*entity.Node),
		catalog: catalog,
		bus:     bus,
		logger:  logger,
	}
}

// Create validates the spec, stores the node, and emits node.created.
// Returns the node's id.
func (s *Store) Create(spec Spec) (string, error) {
	if spec.Type == "" {
		return "", ErrMissingType
	}
	if s.catalog != nil && !s.catalog.HasType(spec.Type) {
		return "", fmt.Errorf("%w: %q", ErrUnknownShapeType, spec.Type)
	}

	n := entity.Node{
		ID:       spec.ID,
		Type:     spec.Type,
		X:        spec.X,
		Y:        spec.Y,
		Width:    spec.Width,
		Height:   spec.Height,
		Rotation: spec.Rotation,
		Label:    spec.Label,
		Style:    spec.Style,
		Data:     spec.Data,
		Locked:   spec.Locked,
		Visible:  !spec.Hidden,
	}
	if !n.ValidGeometry() {
		return "", fmt.Errorf("%w: %gx%g at (%g,%g)", ErrBadGeometry, n.Width, n.Height, n.X, n.Y)
	}

	s.mu.Lock()
	if n.ID == "" {
		s.counter++
		n.ID = idPrefix + strconv.Itoa(s.counter)
	} else {
		if _, exists := s.nodes[n.ID]; exists {
			s.mu.Unlock()
			return "", fmt.Errorf("%w: %q", ErrDuplicateID, n.ID)
		}
		s.bumpCounter(n.ID)
	}
	stored := n.Clone()
	s.nodes[stored.ID] = &stored
	s.order = append(s.order, stored.ID)
	snapshot := stored.Clone()
	s.mu.Unlock()

	s.emit(events.TopicNodeCreated, events.NodeCreated{Node: snapshot})
	return snapshot.ID, nil
}

// Restore inserts a previously serialized node verbatim, including its
// z-index. Used by history inverses and deserialization.
func (s *Store) Restore(n entity.Node) error {
	if n.ID == "" {
		return errors.New("restore: empty node id")
	}
	if n.Type == "" {
		return ErrMissingType
	}
	if s.catalog != nil && !s.catalog.HasType(n.Type) {
		return fmt.Errorf("%w: %q", ErrUnknownShapeType, n.Type)
	}
	if !n.ValidGeometry() {
		return fmt.Errorf("%w: %gx%g", ErrBadGeometry, n.Width, n.Height)
	}

	s.mu.Lock()
	if _, exists := s.nodes[n.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicateID, n.ID)
	}
	s.bumpCounter(n.ID)
	stored := n.Clone()
	s.nodes[stored.ID] = &stored
	s.order = append(s.order, stored.ID)
	snapshot := stored.Clone()
	s.mu.Unlock()

	s.emit(events.TopicNodeCreated, events.NodeCreated{Node: snapshot, Restored: true})
	return nil
}

// bumpCounter advances the id counter past a caller-supplied node_<n> id so
// auto-generated ids never collide. Caller holds the lock.
func (s *Store) bumpCounter(id string) {
	rest, ok := strings.CutPrefix(id, idPrefix)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(rest); err == nil && n > s.counter {
		s.counter = n
	}
}

// Get returns a copy of the node with the given id.
func (s *Store) Get(id string) (entity.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return entity.Node{}, false
	}
	return n.Clone(), true
}

// Has reports whether the id resolves to a live node.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nodes[id]
	return ok
}

// GetAll returns copies of all nodes in creation order.
func (s *Store) GetAll() []entity.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.nodes[id].Clone())
	}
	return out
}

// IDs returns all node ids in creation order.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Count returns the number of live nodes.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

// Update applies a partial update and emits node.updated listing the changed
// fields. An update that changes nothing emits no event.
func (s *Store) Update(id string, u Update) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	// Apply to a copy so a failed update leaves the node untouched.
	next := n.Clone()
	var changed []string
	apply := func(name string, dst *float64, src *float64) {
		if src != nil && *dst != *src {
			*dst = *src
			changed = append(changed, name)
		}
	}

	if u.Type != nil && *u.Type != next.Type {
		if s.catalog != nil && !s.catalog.HasType(*u.Type) {
			s.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrUnknownShapeType, *u.Type)
		}
		next.Type = *u.Type
		changed = append(changed, "type")
	}
	apply("x", &next.X, u.X)
	apply("y", &next.Y, u.Y)
	apply("width", &next.Width, u.Width)
	apply("height", &next.Height, u.Height)
	apply("rotation", &next.Rotation, u.Rotation)
	if u.Label != nil && *u.Label != next.Label {
		next.Label = *u.Label
		changed = append(changed, "label")
	}
	if u.Style != nil {
		next.Style = cloneStrings(u.Style)
		changed = append(changed, "style")
	}
	if u.Data != nil {
		next.Data = cloneAny(u.Data)
		changed = append(changed, "data")
	}
	if u.Locked != nil && *u.Locked != next.Locked {
		next.Locked = *u.Locked
		changed = append(changed, "locked")
	}
	if u.Visible != nil && *u.Visible != next.Visible {
		next.Visible = *u.Visible
		changed = append(changed, "visible")
	}

	if len(changed) > 0 && !next.ValidGeometry() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %gx%g", ErrBadGeometry, next.Width, next.Height)
	}

	*n = next
	snapshot := n.Clone()
	s.mu.Unlock()

	if len(changed) > 0 {
		s.emit(events.TopicNodeUpdated, events.NodeUpdated{
			Node:    snapshot,
			Changed: changed,
			Reason:  u.Reason,
		})
	}
	return nil
}

// Move sets a node's position and emits node.moved.
func (s *Store) Move(id string, x, y float64) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	oldX, oldY := n.X, n.Y
	n.X, n.Y = x, y
	if !n.ValidGeometry() {
		n.X, n.Y = oldX, oldY
		s.mu.Unlock()
		return fmt.Errorf("%w: position (%g,%g)", ErrBadGeometry, x, y)
	}
	snapshot := n.Clone()
	s.mu.Unlock()

	s.emit(events.TopicNodeMoved, events.NodeMoved{Node: snapshot, OldX: oldX, OldY: oldY})
	return nil
}

// Resize sets a node's size and emits node.resized.
func (s *Store) Resize(id string, w, h float64) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	oldW, oldH := n.Width, n.Height
	n.Width, n.Height = w, h
	if !n.ValidGeometry() {
		n.Width, n.Height = oldW, oldH
		s.mu.Unlock()
		return fmt.Errorf("%w: size %gx%g", ErrBadGeometry, w, h)
	}
	snapshot := n.Clone()
	s.mu.Unlock()

	s.emit(events.TopicNodeResized, events.NodeResized{Node: snapshot, OldWidth: oldW, OldHeight: oldH})
	return nil
}

// SetZIndex records the stacking order assigned by the layer registry.
// The registry announces the change with its own zorder.changed event, so
// no node event fires.
func (s *Store) SetZIndex(id string, z int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return false
	}
	n.ZIndex = z
	return true
}

// Delete removes a node and emits node.deleted with a full snapshot.
// Idempotent: returns false without an event if the id is unknown.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("delete of unknown node ignored", "id", id)
		return false
	}
	snapshot := n.Clone()
	delete(s.nodes, id)
	s.removeOrder(id)
	s.mu.Unlock()

	s.emit(events.TopicNodeDeleted, events.NodeDeleted{Node: snapshot})
	return true
}

// Clear deletes every node one at a time, so each deletion's cascade runs,
// then emits node.cleared.
func (s *Store) Clear() {
	ids := s.IDs()
	for _, id := range ids {
		s.Delete(id)
	}
	if len(ids) > 0 {
		s.emit(events.TopicNodeCleared, events.NodeCleared{Count: len(ids)})
	}
}

// removeOrder drops an id from the creation-order slice. Caller holds the
// lock.
func (s *Store) removeOrder(id string) {
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// Bounds returns the bounding rectangle of a node.
func (s *Store) Bounds(id string) (entity.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return entity.Rect{}, false
	}
	return n.Bounds(), true
}

// AtPoint returns the topmost node containing the point, by z-index with
// later-created nodes winning ties.
func (s *Store) AtPoint(p entity.Point) (entity.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *entity.Node
	for _, id := range s.order {
		n := s.nodes[id]
		if !n.Bounds().Contains(p) {
			continue
		}
		if best == nil || n.ZIndex >= best.ZIndex {
			best = n
		}
	}
	if best == nil {
		return entity.Node{}, false
	}
	return best.Clone(), true
}

// InRect returns nodes within the rectangle, sorted by z-index ascending.
// By default a node must be fully contained; RectQuery.Intersect relaxes
// this to any overlap.
func (s *Store) InRect(r entity.Rect, q RectQuery) []entity.Node {
	s.mu.Lock()
	var out []entity.Node
	for _, id := range s.order {
		n := s.nodes[id]
		b := n.Bounds()
		if q.Intersect && r.Intersects(b) || !q.Intersect && r.ContainsRect(b) {
			out = append(out, n.Clone())
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	return out
}

// Serialize returns plain snapshots of every node in creation order.
func (s *Store) Serialize() []entity.Node {
	return s.GetAll()
}

// Deserialize replaces the store contents with the given snapshots,
// emitting node.created for each so downstream components (layers,
// validation) rebuild their view. The previous contents must already have
// been cleared.
func (s *Store) Deserialize(nodes []entity.Node) error {
	for _, n := range nodes {
		if err := s.Restore(n); err != nil {
			return fmt.Errorf("deserialize node %q: %w", n.ID, err)
		}
	}
	return nil
}

func (s *Store) emit(t topic.Topic, payload any) {
	if s.bus != nil {
		s.bus.Emit(t, payload)
	}
}

func cloneStrings(m map[string]string) map[string]string {
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func cloneAny(m map[string]any) map[string]any {
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
