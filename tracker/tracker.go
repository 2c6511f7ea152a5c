// Package tracker follows asynchronous report-generation jobs over a socket.
//
// A Tracker owns at most one live socket. Starting a job replaces the previous
// one; the replaced job is closed with reason "restart" and nothing it does
// afterwards reaches the bus. Each job runs a two-stage timeout: a connect
// window until the socket opens, then a job window until a terminal frame.
package tracker

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/reportwatch/bus"
	"github.com/teranos/reportwatch/errors"
	"github.com/teranos/reportwatch/jobmeta"
	"github.com/teranos/reportwatch/logger"
)

// TokenSource returns the current bearer token; it is read once per job start
type TokenSource func() string

// StartOptions describes a job to track
type StartOptions struct {
	EntityID string
	// Token overrides the tracker's TokenSource
	Token string
	// EndpointHint is a backend-chosen socket path (or URL, of which only the
	// path and query are used)
	EndpointHint string
	JobID        string
	// Context is echoed on every event of the job
	Context map[string]string
	// Zero timeouts use the tracker's configured values
	ConnectTimeout time.Duration
	JobTimeout     time.Duration
}

// Tracker manages report job sockets
type Tracker struct {
	cfg    Config
	dialer Dialer
	tokens TokenSource
	store  *jobmeta.Store
	bus    *bus.Bus[Event]
	logger *zap.SugaredLogger
	now    func() time.Time

	mu     sync.Mutex
	active *job
	seq    uint64
	closed bool

	// emitMu serialises publication with replacement of the active job, so a
	// replaced job can never publish after StartJob has returned.
	emitMu sync.Mutex
}

// Option configures a Tracker
type Option func(*Tracker)

// WithDialer replaces the gorilla/websocket dialer
func WithDialer(d Dialer) Option {
	return func(t *Tracker) { t.dialer = d }
}

// WithTokenSource sets the bearer token accessor
func WithTokenSource(ts TokenSource) Option {
	return func(t *Tracker) { t.tokens = ts }
}

// WithStore sets the job metadata store
func WithStore(s *jobmeta.Store) Option {
	return func(t *Tracker) { t.store = s }
}

// WithBus publishes events on an existing bus
func WithBus(b *bus.Bus[Event]) Option {
	return func(t *Tracker) { t.bus = b }
}

// WithLogger sets the logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(t *Tracker) { t.logger = log }
}

// WithClock overrides time.Now for event timestamps and a default store
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a Tracker
func New(cfg Config, opts ...Option) *Tracker {
	t := &Tracker{
		cfg: cfg.withDefaults(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logger.ComponentLogger("tracker")
	}
	if t.dialer == nil {
		t.dialer = NewWebsocketDialer()
	}
	if t.store == nil {
		t.store = jobmeta.New(nil, jobmeta.WithClock(t.now), jobmeta.WithLogger(t.logger))
	}
	if t.bus == nil {
		t.bus = bus.New[Event](t.logger)
	}
	return t
}

// Bus returns the bus events are published on
func (t *Tracker) Bus() *bus.Bus[Event] { return t.bus }

// Store returns the job metadata store
func (t *Tracker) Store() *jobmeta.Store { return t.store }

// Subscribe is shorthand for Bus().Subscribe
func (t *Tracker) Subscribe(fn func(Event)) (unsubscribe func()) {
	return t.bus.Subscribe(fn)
}

// StartJob registers job metadata, replaces any active job and begins
// connecting. It returns as soon as the connection attempt is under way.
//
// StartJob must not be called synchronously from a bus listener.
func (t *Tracker) StartJob(ctx context.Context, opts StartOptions) (*Handle, error) {
	if strings.TrimSpace(opts.EntityID) == "" {
		return nil, errors.NewInvalidRequestError("entity id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = t.cfg.ConnectTimeout
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = t.cfg.JobTimeout
	}

	token := opts.Token
	if token == "" && t.tokens != nil {
		token = t.tokens()
	}
	target, err := ResolveURL(t.cfg, opts.EntityID, opts.EndpointHint, token, opts.JobID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, errors.ErrClosed
	}
	t.seq++
	j := newJob(t, t.seq, opts, target)
	t.mu.Unlock()

	t.emitMu.Lock()
	t.mu.Lock()
	previous := t.active
	t.active = j
	t.mu.Unlock()
	t.emitMu.Unlock()

	// Written after the swap, so a replaced job finishing now cannot clear
	// it, and before dialing, so the job is observable as in flight at once.
	meta := t.store.Begin(opts.EntityID, opts.JobTimeout, opts.Context)
	meta.JobID = opts.JobID
	meta.URL = j.redacted
	t.store.Set(opts.EntityID, meta)
	j.started = meta.StartedAt

	if previous != nil {
		t.logger.Infow("Replacing active report job",
			logger.FieldAssessmentID, previous.opts.EntityID,
			"replacement", opts.EntityID)
		previous.stop(stopRestart)
	}

	j.log.Infow("Starting report job",
		logger.FieldURL, j.redacted,
		logger.FieldTimeoutMS, opts.JobTimeout.Milliseconds())

	j.emit(j.event(EventOpenStart))
	go j.run()

	return &Handle{URL: target, EntityID: opts.EntityID, JobID: opts.JobID, job: j}, nil
}

// Active returns the entity id of the job that currently owns the socket
func (t *Tracker) Active() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return "", false
	}
	return t.active.opts.EntityID, true
}

// IsGenerating reports whether a job for entityID is in flight. The answer is
// derived from persisted metadata only, so it holds across restarts.
func (t *Tracker) IsGenerating(entityID string) bool {
	return t.store.IsActive(entityID)
}

// Reconcile marks entityID's job as no longer in flight because its outcome
// was learned elsewhere. An open socket for it is left alone.
func (t *Tracker) Reconcile(entityID string) {
	t.logger.Infow("Report job reconciled", logger.FieldAssessmentID, entityID)
	t.store.Clear(entityID)
}

// Close stops the active job and rejects further StartJob calls
func (t *Tracker) Close() error {
	t.emitMu.Lock()
	t.mu.Lock()
	t.closed = true
	previous := t.active
	t.active = nil
	t.mu.Unlock()
	t.emitMu.Unlock()

	if previous != nil {
		previous.stop(stopShutdown)
		<-previous.finished
	}
	return nil
}

// isActive reports whether j still owns the socket. Caller holds emitMu.
func (t *Tracker) isActive(j *job) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active == j
}

// release clears the active slot if j still holds it
func (t *Tracker) release(j *job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == j {
		t.active = nil
	}
}
