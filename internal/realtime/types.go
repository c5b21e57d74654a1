package realtime

import "time"

// Event is one execution status transition pushed to subscribers.
type Event struct {
	Type      string    `json:"type"`
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// EventTypeExecution is the only event type currently streamed.
const EventTypeExecution = "execution"
