package tracker

import (
	"time"

	"github.com/teranos/reportwatch/am"
)

// Defaults applied when Config or StartOptions leave a value zero
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultJobTimeout     = 5 * time.Minute
	DefaultPathTemplate   = am.DefaultPathTemplate
	DefaultProxyMarker    = am.DefaultProxyMarker
)

// Config configures a Tracker
type Config struct {
	// Origin is the page origin (http[s]://host[:port]); sockets always go to its host
	Origin         string
	PathTemplate   string
	ProxyMarker    string
	ConnectTimeout time.Duration
	JobTimeout     time.Duration
}

// ConfigFromAm extracts tracker settings from the application config
func ConfigFromAm(cfg *am.Config) Config {
	return Config{
		Origin:         cfg.Origin,
		PathTemplate:   cfg.Tracker.PathTemplate,
		ProxyMarker:    cfg.Tracker.ProxyMarker,
		ConnectTimeout: cfg.Tracker.ConnectTimeout(),
		JobTimeout:     cfg.Tracker.JobTimeout(),
	}
}

func (c Config) withDefaults() Config {
	if c.PathTemplate == "" {
		c.PathTemplate = DefaultPathTemplate
	}
	if c.ProxyMarker == "" {
		c.ProxyMarker = DefaultProxyMarker
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = DefaultJobTimeout
	}
	return c
}
