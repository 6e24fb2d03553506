// Package state provides the canonical, path-addressable store of canvas,
// graph, selection, viewport, theme and validation state. Every mutation goes
// through Set or Update and fires a state.changed event; batched updates fire
// exactly one event so composite operations (zoom+pan) never cause
// intermediate re-renders.
//
// The tree is backed by a single JSON document addressed with gjson path
// syntax; writes go through sjson.
package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/diagrid/internal/event"
	"github.com/dshills/diagrid/internal/event/events"
)

// DefaultChangeLogSize is the default ring buffer capacity for the change
// log. The log exists for introspection and debugging; it is not an undo
// mechanism.
const DefaultChangeLogSize = 50

// defaultDocument seeds a new tree.
const defaultDocument = `{
	"canvas": {"width": 0, "height": 0},
	"graph": {"nodes": 0, "edges": 0},
	"selection": {"nodes": 0, "edges": 0},
	"viewport": {"x": 0, "y": 0, "zoom": 1},
	"theme": {"name": "default"},
	"validation": {"valid": true, "errors": 0, "warnings": 0}
}`

// Change records one path write for introspection.
type Change struct {
	// Path is the gjson path that changed.
	Path string

	// Old and New are the raw JSON before and after. Old is empty when the
	// path did not previously exist.
	Old string
	New string

	// Reason is the caller-supplied annotation, if any.
	Reason string

	// Time is when the write happened.
	Time time.Time
}

// SetOptions configures a Set or Update call.
type SetOptions struct {
	// Reason annotates the change for debugging and telemetry. It is
	// recorded in the change log and the state.changed event, never
	// branched on.
	Reason string

	// Silent suppresses the state.changed event. The change is still
	// applied and still lands in the change log.
	Silent bool
}

// Tree is the canonical state store.
type Tree struct {
	mu     sync.Mutex
	raw    []byte
	bus    *event.Bus
	logger *slog.Logger

	// Ring buffer change log.
	log     []Change
	logNext int
	logLen  int
}

// Option configures a Tree.
type Option func(*Tree)

// WithChangeLogSize sets the change log ring buffer capacity.
func WithChangeLogSize(n int) Option {
	return func(t *Tree) {
		if n > 0 {
			t.log = make([]Change, n)
		}
	}
}

// WithLogger sets the tree's logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tree) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates a state tree seeded with the default document.
func New(bus *event.Bus, opts ...Option) *Tree {
	t := &Tree{
		raw:    []byte(defaultDocument),
		bus:    bus,
		logger: slog.Default(),
		log:    make([]Change, DefaultChangeLogSize),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Get returns the value at a path. The boolean reports whether the path
// exists.
func (t *Tree) Get(path string) (gjson.Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	res := gjson.GetBytes(t.raw, path)
	return res, res.Exists()
}

// GetString returns the string at a path, or def if the path is absent.
func (t *Tree) GetString(path, def string) string {
	if res, ok := t.Get(path); ok {
		return res.String()
	}
	return def
}

// GetFloat returns the number at a path, or def if the path is absent.
func (t *Tree) GetFloat(path string, def float64) float64 {
	if res, ok := t.Get(path); ok {
		return res.Float()
	}
	return def
}

// GetInt returns the integer at a path, or def if the path is absent.
func (t *Tree) GetInt(path string, def int64) int64 {
	if res, ok := t.Get(path); ok {
		return res.Int()
	}
	return def
}

// GetBool returns the boolean at a path, or def if the path is absent.
func (t *Tree) GetBool(path string, def bool) bool {
	if res, ok := t.Get(path); ok {
		return res.Bool()
	}
	return def
}

// Set writes a value at a path. The write short-circuits (no event, no
// change log entry) when the encoded new value equals the current value.
func (t *Tree) Set(path string, value any, opts SetOptions) error {
	t.mu.Lock()
	changed, err := t.setLocked(path, value, opts.Reason)
	t.mu.Unlock()
	if err != nil {
		return err
	}

	if changed && !opts.Silent && t.bus != nil {
		t.bus.Emit(events.TopicStateChanged, events.StateChanged{
			Paths:  []string{path},
			Reason: opts.Reason,
		})
	}
	return nil
}

// Update applies several path writes and fires exactly one batched
// state.changed event carrying the paths that actually changed. Paths that
// short-circuit are omitted from the event.
func (t *Tree) Update(values map[string]any, opts SetOptions) error {
	// Deterministic write order.
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	t.mu.Lock()
	var changed []string
	for _, p := range paths {
		ok, err := t.setLocked(p, values[p], opts.Reason)
		if err != nil {
			t.mu.Unlock()
			return err
		}
		if ok {
			changed = append(changed, p)
		}
	}
	t.mu.Unlock()

	if len(changed) > 0 && !opts.Silent && t.bus != nil {
		t.bus.Emit(events.TopicStateChanged, events.StateChanged{
			Paths:  changed,
			Reason: opts.Reason,
		})
	}
	return nil
}

// setLocked applies one write. Returns true if the document changed.
func (t *Tree) setLocked(path string, value any, reason string) (bool, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("state: encoding value for %s: %w", path, err)
	}

	old := gjson.GetBytes(t.raw, path)
	if old.Exists() && old.Raw == string(encoded) {
		return false, nil
	}

	raw, err := sjson.SetRawBytes(t.raw, path, encoded)
	if err != nil {
		return false, fmt.Errorf("state: writing %s: %w", path, err)
	}
	t.raw = raw

	t.record(Change{
		Path:   path,
		Old:    old.Raw,
		New:    string(encoded),
		Reason: reason,
		Time:   time.Now(),
	})
	return true, nil
}

// record appends to the ring buffer change log.
func (t *Tree) record(c Change) {
	if len(t.log) == 0 {
		return
	}
	t.log[t.logNext] = c
	t.logNext = (t.logNext + 1) % len(t.log)
	if t.logLen < len(t.log) {
		t.logLen++
	}
}

// Changes returns the change log contents, oldest first.
func (t *Tree) Changes() []Change {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Change, 0, t.logLen)
	start := t.logNext - t.logLen
	if start < 0 {
		start += len(t.log)
	}
	for i := 0; i < t.logLen; i++ {
		out = append(out, t.log[(start+i)%len(t.log)])
	}
	return out
}

// Raw returns a copy of the backing JSON document.
func (t *Tree) Raw() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]byte, len(t.raw))
	copy(out, t.raw)
	return out
}
