package events

import "github.com/dshills/diagrid/internal/event/topic"

// History event topics.
const (
	// TopicHistoryChanged is published after execute, undo, redo, a group
	// commit, or a stack clear.
	TopicHistoryChanged topic.Topic = "history.changed"
)

// HistoryChanged is published whenever the undo/redo stacks change.
type HistoryChanged struct {
	// CanUndo is true when the undo stack is non-empty.
	CanUndo bool

	// CanRedo is true when the redo stack is non-empty.
	CanRedo bool

	// UndoCount and RedoCount are the stack depths.
	UndoCount int
	RedoCount int
}
