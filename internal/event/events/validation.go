package events

import "github.com/dshills/diagrid/internal/event/topic"

// Validation event topics.
const (
	// TopicValidationComplete is published after a validation run.
	TopicValidationComplete topic.Topic = "validation.complete"
)

// Issue describes one failed validation rule.
type Issue struct {
	// Rule is the name of the rule that failed.
	Rule string

	// Details lists rule-specific failure descriptions.
	Details []string
}

// ValidationComplete is published after a validation run.
type ValidationComplete struct {
	// Valid is true when no error-level rule failed.
	Valid bool

	// Errors holds failures from error-level rules.
	Errors []Issue

	// Warnings holds failures from warning-level rules.
	Warnings []Issue
}
