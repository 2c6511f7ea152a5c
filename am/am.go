// Package am holds reportwatch configuration ("I am").
package am

import "time"

// Config represents the reportwatch configuration
type Config struct {
	Origin  string        `mapstructure:"origin"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Tracker TrackerConfig `mapstructure:"tracker"`
	Trigger TriggerConfig `mapstructure:"trigger"`
	Session SessionConfig `mapstructure:"session"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Mock    MockConfig    `mapstructure:"mock"`
}

// AuthConfig holds the bearer token passed to the backend
type AuthConfig struct {
	Token string `mapstructure:"token"` // prefer REPORTWATCH_AUTH_TOKEN over writing it to disk
}

// TrackerConfig configures the report job tracker
type TrackerConfig struct {
	ConnectTimeoutMS int    `mapstructure:"connect_timeout_ms"` // transport must open within this window
	JobTimeoutMS     int    `mapstructure:"job_timeout_ms"`     // terminal frame must arrive within this window after open
	ReadyTTLMS       int    `mapstructure:"ready_ttl_ms"`       // lifetime of the "completed while away" marker
	PathTemplate     string `mapstructure:"path_template"`      // default websocket path, {assessmentId} is substituted
	ProxyMarker      string `mapstructure:"proxy_marker"`       // query flag required by the tunnel in front of the backend
}

// ConnectTimeout returns the connect window as a duration
func (t TrackerConfig) ConnectTimeout() time.Duration {
	return time.Duration(t.ConnectTimeoutMS) * time.Millisecond
}

// JobTimeout returns the job window as a duration
func (t TrackerConfig) JobTimeout() time.Duration {
	return time.Duration(t.JobTimeoutMS) * time.Millisecond
}

// ReadyTTL returns the ready marker lifetime as a duration
func (t TrackerConfig) ReadyTTL() time.Duration {
	return time.Duration(t.ReadyTTLMS) * time.Millisecond
}

// TriggerConfig configures the HTTP call that requests report generation
type TriggerConfig struct {
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
	MaxPerMinute       int    `mapstructure:"max_per_minute"`      // 0 = unlimited
	ProtocolConstraint string `mapstructure:"protocol_constraint"` // semver constraint on the backend's protocol_version
}

// SessionConfig configures the session-scoped key-value store
type SessionConfig struct {
	DatabasePath string `mapstructure:"database_path"` // empty = in-memory only (nothing survives a restart)
	ID           string `mapstructure:"id"`            // empty = generate a fresh session
}

// NotifyConfig configures user-facing notifications
type NotifyConfig struct {
	Locale string `mapstructure:"locale"`
}

// MockConfig configures the scripted development backend
type MockConfig struct {
	Addr         string   `mapstructure:"addr"`
	Frames       []string `mapstructure:"frames"`         // raw frames sent in order after the socket opens
	FrameDelayMS int      `mapstructure:"frame_delay_ms"` // pause between frames
}
