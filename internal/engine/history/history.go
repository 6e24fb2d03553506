// Package history provides the command-pattern undo/redo engine: two bounded
// stacks, atomic multi-command grouping, and a re-entrancy guard that keeps
// undo/redo replay from re-recording itself.
//
// The engine is invoked explicitly by callers wrapping mutations in
// commands; it does not observe store events, which would double-record
// during replay.
package history

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/diagrid/internal/event"
	"github.com/dshills/diagrid/internal/event/events"
)

// Common errors for history operations.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")

	// ErrReplayInProgress is returned by Execute while an undo or redo is
	// replaying, preventing the replay from re-entering the stacks.
	ErrReplayInProgress = errors.New("execute rejected during undo/redo replay")
)

// DefaultMaxSize bounds the undo stack when no size is configured.
const DefaultMaxSize = 100

// entry wraps a command with metadata.
type entry struct {
	command   Command
	timestamp time.Time
}

// Info describes one stack entry for introspection.
type Info struct {
	// Description is the command's human-readable description.
	Description string

	// Timestamp is when the command was recorded.
	Timestamp time.Time
}

// Engine manages the undo/redo stacks.
type Engine struct {
	mu sync.Mutex

	undoStack []*entry
	redoStack []*entry

	// Re-entrancy guard: true while a command's Execute or Undo runs under
	// the engine's control.
	executing bool

	// Grouping state. Nestable: only the outermost EndGroup commits.
	groupDepth int
	groupName  string
	groupCmds  []Command

	maxSize int
	bus     *event.Bus
	logger  *slog.Logger
}

// NewEngine creates a history engine. maxSize bounds the undo stack;
// non-positive values fall back to DefaultMaxSize.
func NewEngine(bus *event.Bus, maxSize int, logger *slog.Logger) *Engine {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{maxSize: maxSize, bus: bus, logger: logger}
}

// Execute runs the command, pushes it onto the undo stack, and clears the
// redo stack: any new forward action invalidates redo history. The undo
// stack is trimmed from the oldest end when it exceeds the configured size.
//
// While a group is open the command is appended to the group instead of the
// main stack. While an undo or redo is replaying, Execute is a logged no-op
// returning ErrReplayInProgress.
//
// A command whose Execute fails is not recorded; the error is returned to
// the caller with no recovery attempted.
func (e *Engine) Execute(cmd Command) error {
	e.mu.Lock()
	if e.executing {
		e.mu.Unlock()
		e.logger.Warn("history: execute during replay ignored", "command", cmd.Description())
		return ErrReplayInProgress
	}
	e.executing = true
	e.mu.Unlock()

	err := cmd.Execute()

	e.mu.Lock()
	e.executing = false
	if err != nil {
		e.mu.Unlock()
		return err
	}

	if e.groupDepth > 0 {
		e.groupCmds = append(e.groupCmds, cmd)
		e.mu.Unlock()
		return nil
	}

	e.pushLocked(cmd)
	payload := e.changedLocked()
	e.mu.Unlock()

	e.emit(payload)
	return nil
}

// pushLocked adds a command to the undo stack, clears the redo stack, and
// enforces the size bound. Caller holds the lock.
func (e *Engine) pushLocked(cmd Command) {
	e.undoStack = append(e.undoStack, &entry{command: cmd, timestamp: time.Now()})
	e.redoStack = nil

	if len(e.undoStack) > e.maxSize {
		excess := len(e.undoStack) - e.maxSize
		e.undoStack = e.undoStack[excess:]
	}
}

// Undo pops the newest command and runs its inverse. A failed undo leaves
// the stacks as popped. Fail fast, no partial-undo illusion.
func (e *Engine) Undo() error {
	e.mu.Lock()
	if len(e.undoStack) == 0 {
		e.mu.Unlock()
		return ErrNothingToUndo
	}
	ent := e.undoStack[len(e.undoStack)-1]
	e.undoStack = e.undoStack[:len(e.undoStack)-1]
	e.executing = true
	e.mu.Unlock()

	err := ent.command.Undo()

	e.mu.Lock()
	e.executing = false
	if err == nil {
		e.redoStack = append(e.redoStack, ent)
	}
	payload := e.changedLocked()
	e.mu.Unlock()

	e.emit(payload)
	return err
}

// Redo pops the newest undone command and re-runs it. A failed redo leaves
// the stacks as popped.
func (e *Engine) Redo() error {
	e.mu.Lock()
	if len(e.redoStack) == 0 {
		e.mu.Unlock()
		return ErrNothingToRedo
	}
	ent := e.redoStack[len(e.redoStack)-1]
	e.redoStack = e.redoStack[:len(e.redoStack)-1]
	e.executing = true
	e.mu.Unlock()

	err := ent.command.Execute()

	e.mu.Lock()
	e.executing = false
	if err == nil {
		e.undoStack = append(e.undoStack, ent)
	}
	payload := e.changedLocked()
	e.mu.Unlock()

	e.emit(payload)
	return err
}

// BeginGroup opens a command group. Groups nest via a depth counter; only
// the outermost EndGroup commits. The name of the outermost group wins.
func (e *Engine) BeginGroup(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.groupDepth++
	if e.groupDepth == 1 {
		e.groupName = name
		e.groupCmds = nil
	}
}

// EndGroup closes one nesting level. The outermost EndGroup commits the
// collected commands as a single stack entry; an empty group commits
// nothing. Unbalanced calls are ignored.
func (e *Engine) EndGroup() {
	e.mu.Lock()
	if e.groupDepth == 0 {
		e.mu.Unlock()
		return
	}
	e.groupDepth--
	if e.groupDepth > 0 {
		e.mu.Unlock()
		return
	}

	cmds := e.groupCmds
	name := e.groupName
	e.groupCmds = nil

	if len(cmds) == 0 {
		e.mu.Unlock()
		return
	}
	e.pushLocked(&Group{Name: name, Commands: cmds})
	payload := e.changedLocked()
	e.mu.Unlock()

	e.emit(payload)
}

// CancelGroup abandons the open group without recording it. Commands
// already executed still affect the document.
func (e *Engine) CancelGroup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.groupDepth = 0
	e.groupCmds = nil
}

// IsGrouping returns true while a group is open.
func (e *Engine) IsGrouping() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.groupDepth > 0
}

// Transaction executes fn inside a group, committing on success and
// cancelling on error.
func (e *Engine) Transaction(name string, fn func() error) error {
	e.BeginGroup(name)
	if err := fn(); err != nil {
		e.CancelGroup()
		return err
	}
	e.EndGroup()
	return nil
}

// CanUndo returns true if undo is available.
func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.undoStack) > 0
}

// CanRedo returns true if redo is available.
func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.redoStack) > 0
}

// UndoCount returns the undo stack depth.
func (e *Engine) UndoCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.undoStack)
}

// RedoCount returns the redo stack depth.
func (e *Engine) RedoCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.redoStack)
}

// UndoInfo describes the undo stack, oldest first.
func (e *Engine) UndoInfo() []Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	return describe(e.undoStack)
}

// RedoInfo describes the redo stack, oldest first.
func (e *Engine) RedoInfo() []Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	return describe(e.redoStack)
}

// PeekUndo returns the next undo entry without removing it.
func (e *Engine) PeekUndo() (Info, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.undoStack) == 0 {
		return Info{}, false
	}
	ent := e.undoStack[len(e.undoStack)-1]
	return Info{Description: ent.command.Description(), Timestamp: ent.timestamp}, true
}

// PeekRedo returns the next redo entry without removing it.
func (e *Engine) PeekRedo() (Info, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.redoStack) == 0 {
		return Info{}, false
	}
	ent := e.redoStack[len(e.redoStack)-1]
	return Info{Description: ent.command.Description(), Timestamp: ent.timestamp}, true
}

// Clear removes all history.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.undoStack = nil
	e.redoStack = nil
	e.groupDepth = 0
	e.groupCmds = nil
	payload := e.changedLocked()
	e.mu.Unlock()

	e.emit(payload)
}

// SetMaxSize changes the undo stack bound, trimming oldest entries if the
// stack is already larger. Non-positive values fall back to DefaultMaxSize.
func (e *Engine) SetMaxSize(maxSize int) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxSize = maxSize
	if len(e.undoStack) > maxSize {
		excess := len(e.undoStack) - maxSize
		e.undoStack = e.undoStack[excess:]
	}
}

// MaxSize returns the undo stack bound.
func (e *Engine) MaxSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxSize
}

// changedLocked builds the history.changed payload. Caller holds the lock.
func (e *Engine) changedLocked() events.HistoryChanged {
	return events.HistoryChanged{
		CanUndo:   len(e.undoStack) > 0,
		CanRedo:   len(e.redoStack) > 0,
		UndoCount: len(e.undoStack),
		RedoCount: len(e.redoStack),
	}
}

func (e *Engine) emit(payload events.HistoryChanged) {
	if e.bus != nil {
		e.bus.Emit(events.TopicHistoryChanged, payload)
	}
}

func describe(stack []*entry) []Info {
	out := make([]Info, len(stack))
	for i, ent := range stack {
		out[i] = Info{Description: ent.command.Description(), Timestamp: ent.timestamp}
	}
	return out
}
