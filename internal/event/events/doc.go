// Package events defines the typed payload records and topic constants for
// every event the engine publishes. Each topic has exactly one payload type;
// subscribers type-assert the envelope payload against the record named after
// the topic.
package events
