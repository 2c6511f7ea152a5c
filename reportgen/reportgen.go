// Package reportgen ties the trigger and the tracker together: request a
// report, follow it to completion and answer "is a report being generated
// for this assessment" across restarts.
package reportgen

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/reportwatch/errors"
	"github.com/teranos/reportwatch/jobmeta"
	"github.com/teranos/reportwatch/logger"
	"github.com/teranos/reportwatch/tracker"
	"github.com/teranos/reportwatch/trigger"
)

// Trigger requests report generation
type Trigger interface {
	Trigger(ctx context.Context, req trigger.Request) (trigger.Response, error)
}

// Service orchestrates report jobs
type Service struct {
	trigger Trigger
	tracker *tracker.Tracker
	logger  *zap.SugaredLogger
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Service) { s.logger = log }
}

// New creates a Service
func New(trig Trigger, tr *tracker.Tracker, opts ...Option) *Service {
	s := &Service{trigger: trig, tracker: tr}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.ComponentLogger("reportgen")
	}
	return s
}

// Tracker returns the underlying tracker
func (s *Service) Tracker() *tracker.Tracker { return s.tracker }

// GenerateOptions describes a report request
type GenerateOptions struct {
	EntityID   string
	Regenerate bool
	Token      string
	// Context is echoed on every event (title, assessment type, source)
	Context        map[string]string
	ConnectTimeout time.Duration
	JobTimeout     time.Duration
}

// Generate triggers a report and starts tracking it. Nothing is tracked when
// the trigger fails.
func (s *Service) Generate(ctx context.Context, opts GenerateOptions) (*tracker.Handle, error) {
	resp, err := s.trigger.Trigger(ctx, trigger.Request{
		EntityID:   opts.EntityID,
		Regenerate: opts.Regenerate,
		Token:      opts.Token,
	})
	if err != nil {
		return nil, err
	}

	// a new job supersedes any result that was never acknowledged
	s.tracker.Store().ClearReady(opts.EntityID)

	return s.tracker.StartJob(ctx, tracker.StartOptions{
		EntityID:       opts.EntityID,
		Token:          opts.Token,
		EndpointHint:   resp.Endpoint,
		JobID:          resp.JobID,
		Context:        opts.Context,
		ConnectTimeout: opts.ConnectTimeout,
		JobTimeout:     opts.JobTimeout,
	})
}

// Watch tracks a job some other party already triggered
func (s *Service) Watch(ctx context.Context, opts tracker.StartOptions) (*tracker.Handle, error) {
	return s.tracker.StartJob(ctx, opts)
}

// Resume reattaches to a job recorded in the session store by an earlier
// process. The resumed job keeps the original deadline. ok is false when no
// unexpired job is recorded for entityID.
func (s *Service) Resume(ctx context.Context, entityID, token string) (h *tracker.Handle, ok bool, err error) {
	store := s.tracker.Store()
	meta, found := store.Get(entityID)
	if !found {
		return nil, false, nil
	}
	remaining := meta.ExpiresAt.Sub(store.Now())
	if remaining <= 0 {
		store.Clear(entityID)
		return nil, false, nil
	}

	s.logger.Infow("Resuming report job",
		logger.FieldAssessmentID, entityID,
		logger.FieldJobID, meta.JobID,
		"remaining_ms", remaining.Milliseconds())

	h, err = s.tracker.StartJob(ctx, tracker.StartOptions{
		EntityID:     entityID,
		Token:        token,
		EndpointHint: resumeHint(meta.URL),
		JobID:        meta.JobID,
		Context:      meta.Context,
		JobTimeout:   remaining,
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "resume report job for %s", entityID)
	}
	return h, true, nil
}

// resumeHint reduces a recorded socket URL to its path and query, minus the
// redacted token
func resumeHint(recorded string) string {
	if recorded == "" {
		return ""
	}
	u, err := url.Parse(recorded)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Del("token")
	hint := &url.URL{Path: u.Path, RawPath: u.RawPath, RawQuery: q.Encode()}
	return hint.String()
}

// Status is what is known about an entity's report
type Status struct {
	EntityID   string `json:"entityId"`
	Generating bool   `json:"generating"`
	// Socket is true when this process holds the open socket for the entity
	Socket bool           `json:"socket"`
	Job    *jobmeta.Meta  `json:"job,omitempty"`
	Ready  *jobmeta.Ready `json:"ready,omitempty"`
}

// Status reports the entity's job and ready marker
func (s *Service) Status(entityID string) Status {
	st := Status{EntityID: entityID}
	store := s.tracker.Store()
	if meta, ok := store.Get(entityID); ok {
		st.Generating = true
		st.Job = &meta
	}
	if ready, ok := store.GetReady(entityID); ok {
		st.Ready = &ready
	}
	if active, ok := s.tracker.Active(); ok && active == entityID {
		st.Socket = true
	}
	return st
}

// IsGenerating reports whether a report job for entityID is in flight
func (s *Service) IsGenerating(entityID string) bool {
	return s.tracker.IsGenerating(entityID)
}

// TakeReady consumes the "completed while away" marker
func (s *Service) TakeReady(entityID string) (jobmeta.Ready, bool) {
	store := s.tracker.Store()
	ready, ok := store.GetReady(entityID)
	if ok {
		store.ClearReady(entityID)
	}
	return ready, ok
}

// Reconcile records that entityID's job outcome was learned elsewhere, for
// example by fetching the finished report directly
func (s *Service) Reconcile(entityID string) {
	s.tracker.Reconcile(entityID)
}

// Close shuts the tracker down
func (s *Service) Close() error {
	return s.tracker.Close()
}
