package search

import (
	"time"

	"domainflip/internal/availability"
	"domainflip/internal/discovery"
)

// Event types published while a request runs.
const (
	EventStarted   = "search.started"
	EventDomain    = "search.domain"
	EventCompleted = "search.completed"
	EventRejected  = "search.rejected"
)

// Event is one progress notification for live subscribers.
type Event struct {
	Type      string               `json:"type"`
	RequestID string               `json:"request_id"`
	UserID    string               `json:"user_id,omitempty"`
	Pattern   string               `json:"pattern,omitempty"`
	Operation discovery.Operation  `json:"operation"`
	Domain    *availability.Record `json:"domain,omitempty"`
	Message   string               `json:"message,omitempty"`
	At        time.Time            `json:"at"`
}

// Notifier receives pipeline events. Publish must not block the pipeline.
type Notifier interface {
	Publish(evt Event)
}
