package events

import "github.com/dshills/diagrid/internal/event/topic"

// Selection event topics.
const (
	// TopicSelectionChanged is published when the selected id sets change.
	TopicSelectionChanged topic.Topic = "selection.changed"
)

// SelectionDiff holds the ids added to or removed from one entity kind's
// selection set during a single call.
type SelectionDiff struct {
	// Added lists ids newly selected, sorted.
	Added []string

	// Removed lists ids newly deselected, sorted.
	Removed []string
}

// SelectionChanged is published when the selected id sets change. The diffs
// are relative to the snapshot taken before the mutating call, enabling
// observers to do incremental updates rather than full re-renders.
type SelectionChanged struct {
	// Nodes is the diff for the node id set.
	Nodes SelectionDiff

	// Edges is the diff for the edge id set.
	Edges SelectionDiff

	// NodeIDs and EdgeIDs are the full selection after the change, sorted.
	NodeIDs []string
	EdgeIDs []string
}
