package am

import (
	"os"

	"github.com/spf13/viper"
)

// File permissions for ~/.reportwatch and the files written into it
const (
	DefaultDirPermissions  os.FileMode = 0o755
	DefaultFilePermissions os.FileMode = 0o644
)

// Defaults for the report job tracker
const (
	DefaultConnectTimeoutMS = 10_000
	DefaultJobTimeoutMS     = 5 * 60_000
	DefaultReadyTTLMS       = 10 * 60_000
	DefaultPathTemplate     = "/ws/assessments/{assessmentId}/report"
	DefaultProxyMarker      = "ngrok-skip-browser-warning"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("origin", "http://localhost:8000")

	// Tracker defaults
	v.SetDefault("tracker.connect_timeout_ms", DefaultConnectTimeoutMS)
	v.SetDefault("tracker.job_timeout_ms", DefaultJobTimeoutMS)
	v.SetDefault("tracker.ready_ttl_ms", DefaultReadyTTLMS)
	v.SetDefault("tracker.path_template", DefaultPathTemplate)
	v.SetDefault("tracker.proxy_marker", DefaultProxyMarker)

	// Trigger defaults
	v.SetDefault("trigger.timeout_seconds", 30)
	v.SetDefault("trigger.max_per_minute", 6)
	v.SetDefault("trigger.protocol_constraint", ">= 1.0.0, < 2.0.0")

	// Session defaults
	v.SetDefault("session.database_path", "reportwatch.db")
	v.SetDefault("session.id", "default")

	v.SetDefault("notify.locale", "en")

	// Mock backend defaults: two progress frames, then a finished report
	v.SetDefault("mock.addr", "127.0.0.1:8000")
	v.SetDefault("mock.frame_delay_ms", 500)
	v.SetDefault("mock.frames", []string{
		`{"type":"progress","message":"analysing swing data"}`,
		`{"type":"progress","message":"writing report"}`,
		`{"type":"completed","report_id":"mock-report"}`,
	})
}
