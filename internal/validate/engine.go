// Package validate provides the pluggable structural validation engine:
// rules evaluated over a minimal snapshot of the current graph, partitioned
// into errors and warnings. Structural-quality issues are never thrown,
// only surfaced in the report: a graph may legitimately pass through an
// invalid transient state mid-edit.
package validate

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dshills/diagrid/internal/event"
	"github.com/dshills/diagrid/internal/event/events"
	"github.com/dshills/diagrid/internal/state"
)

// ErrRuleNotFound is returned when enabling or disabling an unknown rule.
var ErrRuleNotFound = errors.New("validation rule not found")

// Level classifies a rule's failures.
type Level uint8

const (
	// LevelError marks failures that make the graph structurally invalid.
	LevelError Level = iota
	// LevelWarning marks quality issues that do not invalidate the graph.
	LevelWarning
)

// String returns the level name.
func (l Level) String() string {
	if l == LevelWarning {
		return "warning"
	}
	return "error"
}

// NodeRef is the minimal node view rules see.
type NodeRef struct {
	ID string
}

// EdgeRef is the minimal edge view rules see.
type EdgeRef struct {
	ID       string
	SourceID string
	TargetID string
}

// Snapshot is the minimal graph view rules evaluate against.
type Snapshot struct {
	Nodes []NodeRef
	Edges []EdgeRef
}

// Result is a rule's verdict.
type Result struct {
	// Valid is true when the rule passed.
	Valid bool

	// Details lists rule-specific failure descriptions.
	Details []string
}

// Rule evaluates one structural property over a graph snapshot.
type Rule interface {
	Validate(s Snapshot) Result
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc func(s Snapshot) Result

// Validate calls the function.
func (f RuleFunc) Validate(s Snapshot) Result {
	return f(s)
}

// Report is the outcome of one validation run.
type Report struct {
	// Valid is true when no error-level rule failed.
	Valid bool

	// Errors and Warnings hold the failed rules by level.
	Errors   []events.Issue
	Warnings []events.Issue
}

type registered struct {
	name    string
	level   Level
	rule    Rule
	enabled bool
}

// SnapshotFunc builds the graph snapshot from the live stores. The document
// supplies it at construction so this package never imports the stores.
type SnapshotFunc func() Snapshot

// Engine runs registered rules over graph snapshots.
type Engine struct {
	mu       sync.Mutex
	rules    []*registered
	snapshot SnapshotFunc
	tree     *state.Tree
	bus      *event.Bus
	logger   *slog.Logger
	auto     bool
}

// NewEngine creates a validation engine with the built-in rules registered:
// no-cycles and valid-connections at error level, no-orphans and
// no-duplicate-edges at warning level.
func NewEngine(snapshot SnapshotFunc, tree *state.Tree, bus *event.Bus, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		snapshot: snapshot,
		tree:     tree,
		bus:      bus,
		logger:   logger,
	}
	e.AddRule(RuleNoCycles, LevelError, RuleFunc(noCycles))
	e.AddRule(RuleValidConnections, LevelError, RuleFunc(validConnections))
	e.AddRule(RuleNoOrphans, LevelWarning, RuleFunc(noOrphans))
	e.AddRule(RuleNoDuplicateEdges, LevelWarning, RuleFunc(noDuplicateEdges))
	return e
}

// AddRule registers a rule. Rules run in registration order; re-adding a
// name replaces the rule but keeps its position and enabled state.
func (e *Engine) AddRule(name string, level Level, rule Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.rules {
		if r.name == name {
			r.level = level
			r.rule = rule
			return
		}
	}
	e.rules = append(e.rules, &registered{name: name, level: level, rule: rule, enabled: true})
}

// RemoveRule unregisters a rule.
func (e *Engine) RemoveRule(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, r := range e.rules {
		if r.name == name {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return
		}
	}
}

// SetEnabled toggles a rule without unregistering it.
func (e *Engine) SetEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.rules {
		if r.name == name {
			r.enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrRuleNotFound, name)
}

// RuleNames returns the registered rule names in evaluation order.
func (e *Engine) RuleNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.name
	}
	return out
}

// SetAuto enables re-validation on every structural event. The document
// owns the subscription; it consults Auto before running.
func (e *Engine) SetAuto(auto bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.auto = auto
}

// Auto reports whether auto-validation is enabled.
func (e *Engine) Auto() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.auto
}

// Validate builds a snapshot, runs all enabled rules, writes the summary
// into the state tree, and emits validation.complete.
func (e *Engine) Validate() Report {
	snap := e.snapshot()

	e.mu.Lock()
	rules := make([]*registered, len(e.rules))
	copy(rules, e.rules)
	e.mu.Unlock()

	report := Report{Valid: true}
	for _, r := range rules {
		if !r.enabled {
			continue
		}
		res := r.rule.Validate(snap)
		if res.Valid {
			continue
		}
		issue := events.Issue{Rule: r.name, Details: res.Details}
		if r.level == LevelError {
			report.Valid = false
			report.Errors = append(report.Errors, issue)
		} else {
			report.Warnings = append(report.Warnings, issue)
		}
	}

	if e.tree != nil {
		err := e.tree.Update(map[string]any{
			"validation.valid":    report.Valid,
			"validation.errors":   len(report.Errors),
			"validation.warnings": len(report.Warnings),
		}, state.SetOptions{Reason: "validation"})
		if err != nil {
			e.logger.Error("validate: state update failed", "error", err)
		}
	}

	if e.bus != nil {
		e.bus.Emit(events.TopicValidationComplete, events.ValidationComplete{
			Valid:    report.Valid,
			Errors:   report.Errors,
			Warnings: report.Warnings,
		})
	}
	return report
}
