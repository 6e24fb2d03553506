// Package edge provides the edge store: CRUD over directed connections
// between nodes, connection-rule enforcement, endpoint indexing for O(1)
// "edges touching node X" queries, and the cascade that keeps every edge's
// endpoints resolving to live nodes.
package edge

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

// Common errors for edge operations.
var (
	// ErrMissingEndpoint is returned when a spec omits a source or target.
	ErrMissingEndpoint = errors.New("edge requires source and target ids")

	// ErrUnknownNode is returned when an endpoint does not resolve to a
	// live node.
	ErrUnknownNode = errors.New("edge endpoint is not a live node")

	// ErrDuplicateID is returned when a create spec supplies an id that is
	// already in use.
	ErrDuplicateID = errors.New("duplicate edge id")

	// ErrNotFound is returned when an id does not resolve to a live edge.
	ErrNotFound = errors.New("edge not found")
)

// idPrefix is the prefix of auto-generated edge ids.
const idPrefix = "edge_"

// RuleNoSelfLoop is the name of the default connection rule rejecting
// edges whose source and target are the same node.
const RuleNoSelfLoop = "no-self-loop"

// NodeResolver answers liveness queries about node ids. The node store
// implements it; the interface keeps this package from reaching into the
// node package.
type NodeResolver interface {
	Has(id string) bool
}

// RuleFunc is a connection rule predicate. Returning false rejects the
// source/target pair.
type RuleFunc func(sourceID, targetID string) bool

// ConnectionError reports a pair rejected by a connection rule.
type ConnectionError struct {
	SourceID string
	TargetID string
	Rule     string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s -> %s rejected by rule %q", e.SourceID, e.TargetID, e.Rule)
}

// Spec describes an edge to create. A zero ID requests an auto-generated
// one; a zero Type defaults to straight routing.
type Spec struct {
	ID       string
	SourceID string
	TargetID string
	Type     entity.EdgeType
	Label    string
	Style    map[string]string
	Data     map[string]any
}

// Update describes a partial edge update. Nil pointers leave fields
// unchanged; a non-nil Style or Data map replaces the whole map.
type Update struct {
	Type  *entity.EdgeType
	Label *string
	Style map[string]string
	Data  map[string]any

	// Reason annotates the resulting edge.updated event.
	Reason string
}

type namedRule struct {
	name string
	fn   RuleFunc
}

// Store owns the edge entity map and its endpoint indices.
type Store struct {
	mu      sync.Mutex
	edges   map[string]*entity.Edge
	order   []string // creation order, for deterministic iteration
	byNode  map[string]map[string]struct{}
	counter int
	rules   []namedRule
	nodes   NodeResolver
	bus     *event.Bus
	logger  *slog.Logger
}

// NewStore creates an edge store resolving endpoints against nodes.
// The no-self-loop rule is registered by default; remove it to permit
// self-loops.
func NewStore(bus *event.Bus, nodes NodeResolver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		edges:  make(map[string]*entity.Edge),
		byNode: make(map[string]map[string]struct{}),
		nodes:  nodes,
		bus:    bus,
		logger: logger,
	}
	s.AddRule(RuleNoSelfLoop, func(sourceID, targetID string) bool {
		return sourceID != targetID
	})
	return s
}

// AddRule registers a connection rule. Rules run in registration order at
// create and reconnect time. Re-adding a name replaces the rule.
func (s *Store) AddRule(name string, fn RuleFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rules {
		if r.name == name {
			s.rules[i].fn = fn
			return
		}
	}
	s.rules = append(s.rules, namedRule{name: name, fn: fn})
}

// RemoveRule unregisters a connection rule.
func (s *Store) RemoveRule(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rules {
		if r.name == name {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return
		}
	}
}

// checkRules returns the rejection, if any. Caller holds the lock.
func (s *Store) checkRules(sourceID, targetID string) error {
	for _, r := range s.rules {
		if !r.fn(sourceID, targetID) {
			return &ConnectionError{SourceID: sourceID, TargetID: targetID, Rule: r.name}
		}
	}
	return nil
}

// Create validates endpoints and rules, stores the edge, indexes it under
// both endpoints, and emits edge.created. Returns the edge's id.
func (s *Store) Create(spec Spec) (string, error) {
	if spec.SourceID == "" || spec.TargetID == "" {
		return "", ErrMissingEndpoint
	}
	if s.nodes != nil {
		if !s.nodes.Has(spec.SourceID) {
			return "", fmt.Errorf("%w: source %q", ErrUnknownNode, spec.SourceID)
		}
		if !s.nodes.Has(spec.TargetID) {
			return "", fmt.Errorf("%w: target %q", ErrUnknownNode, spec.TargetID)
		}
	}

	e := entity.Edge{
		ID:       spec.ID,
		SourceID: spec.SourceID,
		TargetID: spec.TargetID,
		Type:     spec.Type,
		Label:    spec.Label,
		Style:    spec.Style,
		Data:     spec.Data,
	}
	if e.Type == "" {
		e.Type = entity.EdgeStraight
	}

	s.mu.Lock()
	if err := s.checkRules(e.SourceID, e.TargetID); err != nil {
		s.mu.Unlock()
		s.logger.Debug("edge rejected by connection rule",
			"source", e.SourceID, "target", e.TargetID, "error", err)
		return "", err
	}
	if e.ID == "" {
		s.counter++
		e.ID = idPrefix + strconv.Itoa(s.counter)
	} else {
		if _, exists := s.edges[e.ID]; exists {
			s.mu.Unlock()
			return "", fmt.Errorf("%w: %q", ErrDuplicateID, e.ID)
		}
		s.bumpCounter(e.ID)
	}
	stored := e.Clone()
	s.edges[stored.ID] = &stored
	s.order = append(s.order, stored.ID)
	s.index(stored.ID, stored.SourceID)
	s.index(stored.ID, stored.TargetID)
	snapshot := stored.Clone()
	s.mu.Unlock()

	s.emit(events.TopicEdgeCreated, events.EdgeCreated{Edge: snapshot})
	return snapshot.ID, nil
}

// bumpCounter advances the id counter past a caller-supplied edge_<n> id.
// Caller holds the lock.
func (s *Store) bumpCounter(id string) {
	rest, ok := strings.CutPrefix(id, idPrefix)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(rest); err == nil && n > s.counter {
		s.counter = n
	}
}

func (s *Store) index(edgeID, nodeID string) {
	set := s.byNode[nodeID]
	if set == nil {
		set = make(map[string]struct{})
		s.byNode[nodeID] = set
	}
	set[edgeID] = struct{}{}
}

func (s *Store) unindex(edgeID, nodeID string) {
	set := s.byNode[nodeID]
	if set == nil {
		return
	}
	delete(set, edgeID)
	if len(set) == 0 {
		delete(s.byNode, nodeID)
	}
}

// Get returns a copy of the edge with the given id.
func (s *Store) Get(id string) (entity.Edge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.edges[id]
	if !ok {
		return entity.Edge{}, false
	}
	return e.Clone(), true
}

// Has reports whether the id resolves to a live edge.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.edges[id]
	return ok
}

// GetAll returns copies of all edges in creation order.
func (s *Store) GetAll() []entity.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Edge, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.edges[id].Clone())
	}
	return out
}

// Count returns the number of live edges.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.edges)
}

// EdgesFor returns copies of every edge touching the node, sorted by id for
// determinism.
func (s *Store) EdgesFor(nodeID string) []entity.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edgesForLocked(nodeID)
}

func (s *Store) edgesForLocked(nodeID string) []entity.Edge {
	ids := make([]string, 0, len(s.byNode[nodeID]))
	for id := range s.byNode[nodeID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]entity.Edge, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.edges[id].Clone())
	}
	return out
}

// Update applies a partial update and emits edge.updated listing the
// changed fields. An update that changes nothing emits no event.
func (s *Store) Update(id string, u Update) error {
	s.mu.Lock()
	e, ok := s.edges[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	var changed []string
	if u.Type != nil && *u.Type != e.Type {
		e.Type = *u.Type
		changed = append(changed, "type")
	}
	if u.Label != nil && *u.Label != e.Label {
		e.Label = *u.Label
		changed = append(changed, "label")
	}
	if u.Style != nil {
		e.Style = cloneStrings(u.Style)
		changed = append(changed, "style")
	}
	if u.Data != nil {
		e.Data = cloneAny(u.Data)
		changed = append(changed, "data")
	}
	snapshot := e.Clone()
	s.mu.Unlock()

	if len(changed) > 0 {
		s.emit(events.TopicEdgeUpdated, events.EdgeUpdated{
			Edge:    snapshot,
			Changed: changed,
			Reason:  u.Reason,
		})
	}
	return nil
}

// Reconnect points an edge at new endpoints, revalidating liveness and
// connection rules, and emits edge.updated.
func (s *Store) Reconnect(id, sourceID, targetID string) error {
	if sourceID == "" || targetID == "" {
		return ErrMissingEndpoint
	}
	if s.nodes != nil {
		if !s.nodes.Has(sourceID) {
			return fmt.Errorf("%w: source %q", ErrUnknownNode, sourceID)
		}
		if !s.nodes.Has(targetID) {
			return fmt.Errorf("%w: target %q", ErrUnknownNode, targetID)
		}
	}

	s.mu.Lock()
	e, ok := s.edges[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err := s.checkRules(sourceID, targetID); err != nil {
		s.mu.Unlock()
		s.logger.Debug("reconnect rejected by connection rule",
			"edge", id, "source", sourceID, "target", targetID, "error", err)
		return err
	}

	var changed []string
	if e.SourceID != sourceID {
		s.unindex(id, e.SourceID)
		e.SourceID = sourceID
		s.index(id, sourceID)
		changed = append(changed, "sourceId")
	}
	if e.TargetID != targetID {
		s.unindex(id, e.TargetID)
		e.TargetID = targetID
		s.index(id, targetID)
		changed = append(changed, "targetId")
	}
	snapshot := e.Clone()
	s.mu.Unlock()

	if len(changed) > 0 {
		s.emit(events.TopicEdgeUpdated, events.EdgeUpdated{
			Edge:    snapshot,
			Changed: changed,
			Reason:  "reconnect",
		})
	}
	return nil
}

// Delete removes an edge and emits edge.deleted. Idempotent: returns false
// without an event if the id is unknown.
func (s *Store) Delete(id string) bool {
	return s.delete(id, false)
}

func (s *Store) delete(id string, cascaded bool) bool {
	s.mu.Lock()
	e, ok := s.edges[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("delete of unknown edge ignored", "id", id)
		return false
	}
	snapshot := e.Clone()
	delete(s.edges, id)
	s.unindex(id, snapshot.SourceID)
	s.unindex(id, snapshot.TargetID)
	s.removeOrder(id)
	s.mu.Unlock()

	s.emit(events.TopicEdgeDeleted, events.EdgeDeleted{Edge: snapshot, Cascaded: cascaded})
	return true
}

// DeleteForNode removes every edge touching the node, emitting edge.deleted
// for each. This is the cascade that maintains the live-endpoint invariant
// when a node disappears; the document wires it to node.deleted at
// construction time. Returns the deleted edge ids.
func (s *Store) DeleteForNode(nodeID string) []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.byNode[nodeID]))
	for id := range s.byNode[nodeID] {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Strings(ids)
	for _, id := range ids {
		s.delete(id, true)
	}
	return ids
}

// NotifyNodeMoved emits edge.path.update for every edge touching the moved
// node, so a rendering layer can re-route without the store recomputing
// geometry on every drag frame.
func (s *Store) NotifyNodeMoved(nodeID string) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.byNode[nodeID]))
	for id := range s.byNode[nodeID] {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Strings(ids)
	for _, id := range ids {
		s.emit(events.TopicEdgePathUpdate, events.EdgePathUpdate{EdgeID: id, NodeID: nodeID})
	}
}

// Clear deletes every edge, then emits edge.cleared.
func (s *Store) Clear() {
	s.mu.Lock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	s.mu.Unlock()

	for _, id := range ids {
		s.delete(id, false)
	}
	if len(ids) > 0 {
		s.emit(events.TopicEdgeCleared, events.EdgeCleared{Count: len(ids)})
	}
}

func (s *Store) removeOrder(id string) {
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// Serialize returns plain snapshots of every edge in creation order.
func (s *Store) Serialize() []entity.Edge {
	return s.GetAll()
}

// Deserialize recreates edges from snapshots, preserving ids. Endpoint
// liveness and connection rules are enforced; the nodes must already be
// restored.
func (s *Store) Deserialize(edges []entity.Edge) error {
	for _, e := range edges {
		_, err := s.Create(Spec{
			ID:       e.ID,
			SourceID: e.SourceID,
			TargetID: e.TargetID,
			Type:     e.Type,
			Label:    e.Label,
			Style:    e.Style,
			Data:     e.Data,
		})
		if err != nil {
			return fmt.Errorf("deserialize edge %q: %w", e.ID, err)
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
