package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/reportwatch/bus"
	"github.com/teranos/reportwatch/logger"
	"github.com/teranos/reportwatch/tracker"
)

// Sink displays notifications
type Sink interface {
	Notify(Notification)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Notification)

func (f SinkFunc) Notify(n Notification) { f(n) }

// DefaultDedupSize bounds how many delivered jobs a Bridge remembers
const DefaultDedupSize = 256

type jobKey struct {
	entityID  string
	startedAt int64
}

// Bridge forwards terminal tracker events to a Sink, at most once per job.
// A job is identified by its entity and start time, so the same terminal
// observed by two bridges sharing a seen-set, or replayed, is shown once.
type Bridge struct {
	sink   Sink
	locale string
	logger *zap.SugaredLogger

	mu    sync.Mutex
	seen  map[jobKey]struct{}
	order []jobKey
	limit int
}

// BridgeOption configures a Bridge
type BridgeOption func(*Bridge)

// WithBridgeLogger sets the logger used for backend diagnostics
func WithBridgeLogger(log *zap.SugaredLogger) BridgeOption {
	return func(b *Bridge) { b.logger = log }
}

// WithDedupSize changes how many delivered jobs are remembered
func WithDedupSize(n int) BridgeOption {
	return func(b *Bridge) {
		if n > 0 {
			b.limit = n
		}
	}
}

// NewBridge creates a Bridge delivering to sink in locale
func NewBridge(sink Sink, locale string, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		sink:   sink,
		locale: locale,
		seen:   make(map[jobKey]struct{}),
		limit:  DefaultDedupSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.ComponentLogger("notify")
	}
	return b
}

// Attach subscribes the bridge to events and returns the detach function
func (b *Bridge) Attach(events *bus.Bus[tracker.Event]) (detach func()) {
	return events.Subscribe(func(evt tracker.Event) { b.Handle(evt) })
}

// Handle delivers evt if it is terminal and its job has not been notified yet.
// It reports whether a notification was delivered.
func (b *Bridge) Handle(evt tracker.Event) bool {
	n, ok := Build(evt, b.locale)
	if !ok {
		return false
	}
	if !b.remember(jobKey{entityID: evt.EntityID, startedAt: startKey(evt.StartedAt)}) {
		b.logger.Debugw("Duplicate terminal event suppressed", logger.FieldAssessmentID, evt.EntityID)
		return false
	}

	if !evt.IsSuccess() {
		// backend detail stays in the logs, never in the toast
		b.logger.Warnw("Report job failed",
			logger.FieldAssessmentID, evt.EntityID,
			logger.FieldStatus, evt.Status,
			logger.FieldMessage, evt.Message,
			logger.FieldJobID, evt.JobID)
	} else {
		b.logger.Infow("Report job finished",
			logger.FieldAssessmentID, evt.EntityID,
			"comparison", evt.Comparison,
			"link", n.Link)
	}

	b.sink.Notify(n)
	return true
}

func startKey(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func (b *Bridge) remember(k jobKey) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.seen[k]; dup {
		return false
	}
	b.seen[k] = struct{}{}
	b.order = append(b.order, k)
	if len(b.order) > b.limit {
		delete(b.seen, b.order[0])
		b.order = b.order[1:]
	}
	return true
}
