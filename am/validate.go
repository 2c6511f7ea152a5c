package am

import (
	"net/url"

	"github.com/Masterminds/semver/v3"
	"github.com/teranos/reportwatch/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.Origin)
	if err != nil {
		return errors.Wrapf(err, "origin %q is not a valid URL", c.Origin)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Newf("origin must use http or https, got %q", c.Origin)
	}
	if u.Host == "" {
		return errors.Newf("origin %q has no host", c.Origin)
	}

	// Timeouts: zero would fail every job immediately, so both must be positive
	if c.Tracker.ConnectTimeoutMS <= 0 {
		return errors.Newf("tracker.connect_timeout_ms must be > 0, got %d", c.Tracker.ConnectTimeoutMS)
	}
	if c.Tracker.JobTimeoutMS <= 0 {
		return errors.Newf("tracker.job_timeout_ms must be > 0, got %d", c.Tracker.JobTimeoutMS)
	}

	// Ready marker: 0 = never mark, negative = invalid
	if c.Tracker.ReadyTTLMS < 0 {
		return errors.Newf("tracker.ready_ttl_ms must be >= 0, got %d", c.Tracker.ReadyTTLMS)
	}

	if c.Trigger.TimeoutSeconds < 0 {
		return errors.Newf("trigger.timeout_seconds must be >= 0, got %d", c.Trigger.TimeoutSeconds)
	}
	// Rate limit: 0 = unlimited, negative = invalid
	if c.Trigger.MaxPerMinute < 0 {
		return errors.Newf("trigger.max_per_minute must be >= 0, got %d", c.Trigger.MaxPerMinute)
	}
	if c.Trigger.ProtocolConstraint != "" {
		if _, err := semver.NewConstraint(c.Trigger.ProtocolConstraint); err != nil {
			return errors.Wrapf(err, "trigger.protocol_constraint %q", c.Trigger.ProtocolConstraint)
		}
	}

	if c.Mock.FrameDelayMS < 0 {
		return errors.Newf("mock.frame_delay_ms must be >= 0, got %d", c.Mock.FrameDelayMS)
	}

	return nil
}
