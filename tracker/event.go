package tracker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teranos/reportwatch/frame"
)

// EventType is the lifecycle stage an event reports
type EventType string

const (
	EventOpenStart EventType = "open-start"
	EventOpen      EventType = "open"
	EventMessage   EventType = "message"
	EventError     EventType = "error"
	EventClose     EventType = "close"
)

// Event is published on the bus for every lifecycle step of a job
type Event struct {
	Type     EventType
	EntityID string
	// Context is the caller context from the job metadata, flattened into the JSON object
	Context map[string]string

	Terminal   bool
	Status     frame.Status
	Message    string
	Payload    map[string]any
	Comparison bool

	JobID     string
	URL       string    // token redacted
	StartedAt time.Time // when the job was started, identifies the job together with EntityID
	At        time.Time
}

// IsSuccess reports a terminal success
func (e Event) IsSuccess() bool {
	return e.Terminal && e.Status == frame.StatusSuccess
}

// ReportID returns payload.report_id when the backend sent one
func (e Event) ReportID() string {
	switch v := e.Payload["report_id"].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

// MarshalJSON renders {type, assessmentId, ...context, terminal?, status?, message?, payload?}.
// Context keys never override the fixed fields.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Context)+10)
	for k, v := range e.Context {
		out[k] = v
	}
	out["type"] = e.Type
	out["assessmentId"] = e.EntityID
	if e.Status != "" {
		out["terminal"] = e.Terminal
		out["status"] = e.Status
	}
	if e.Message != "" {
		out["message"] = e.Message
	}
	if e.Payload != nil {
		out["payload"] = e.Payload
	}
	if e.Comparison {
		out["comparison"] = true
	}
	if e.JobID != "" {
		out["jobId"] = e.JobID
	}
	if e.URL != "" {
		out["url"] = e.URL
	}
	if !e.StartedAt.IsZero() {
		out["startedAt"] = e.StartedAt.Format(time.RFC3339Nano)
	}
	if !e.At.IsZero() {
		out["at"] = e.At.Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

// JobError rejects a job's outcome. Event is the event that ended the job.
type JobError struct {
	Event Event
	Err   error
}

func (e *JobError) Error() string {
	if e.Event.Message != "" {
		return e.Err.Error() + ": " + e.Event.Message
	}
	return e.Err.Error()
}

func (e *JobError) Unwrap() error { return e.Err }
