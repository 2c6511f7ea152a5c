package logger

import (
	"go.uber.org/zap"
)

// Standard field names for consistent structured logging.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldAssessmentID = "assessment_id"
	FieldJobID        = "job_id"
	FieldReportID     = "report_id"
	FieldSessionID    = "session_id"

	// Components
	FieldComponent = "component"

	// Job lifecycle
	FieldEvent    = "event"
	FieldStatus   = "status"
	FieldTerminal = "terminal"
	FieldMessage  = "message"
	FieldReason   = "reason"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldTimeoutMS  = "timeout_ms"
	FieldExpiresAt  = "expires_at"

	// Errors
	FieldError = "error"

	// Network
	FieldURL    = "url"
	FieldOrigin = "origin"
	FieldKey    = "key"
)

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	type Tracker struct {
//	    logger *zap.SugaredLogger
//	}
//
//	func New() *Tracker {
//	    return &Tracker{logger: logger.ComponentLogger("tracker")}
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
