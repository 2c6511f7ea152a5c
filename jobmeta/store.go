// Package jobmeta persists bookkeeping for in-flight report jobs.
//
// Records live in memory and are mirrored into a session-scoped KV so a
// restarted process can still tell that a job is running. Expiry is lazy:
// stale records are removed when read, there is no background sweeper.
package jobmeta

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/reportwatch/db"
	"github.com/teranos/reportwatch/logger"
	"github.com/teranos/reportwatch/session"
)

// Key prefixes in the session store
const (
	MetaKeyPrefix  = "report-job:"
	ReadyKeyPrefix = "report-ready:"
)

// DefaultReadyTTL is how long a "completed while away" marker stays visible
const DefaultReadyTTL = 10 * time.Minute

// MetaKey returns the session key holding the Meta for entityID
func MetaKey(entityID string) string { return MetaKeyPrefix + entityID }

// ReadyKey returns the session key holding the ready marker for entityID
func ReadyKey(entityID string) string { return ReadyKeyPrefix + entityID }

// Meta describes one in-flight job
type Meta struct {
	EntityID  string            `json:"entityId"`
	StartedAt time.Time         `json:"startedAt"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Context   map[string]string `json:"context,omitempty"` // echoed on every event, never interpreted
	JobID     string            `json:"jobId,omitempty"`
	URL       string            `json:"url,omitempty"`
}

// Expired reports whether the meta must be treated as absent at now
func (m Meta) Expired(now time.Time) bool {
	return now.After(m.ExpiresAt)
}

// Ready marks a job that finished successfully
type Ready struct {
	EntityID    string    `json:"entityId"`
	ReportID    string    `json:"reportId,omitempty"`
	Comparison  bool      `json:"comparison,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Expired reports whether the marker must be treated as absent at now
func (r Ready) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Store holds Meta and Ready records keyed by entity id.
// The in-memory copy is authoritative; mirroring to the KV is best effort.
type Store struct {
	mu       sync.Mutex
	kv       session.KV
	metas    map[string]Meta
	ready    map[string]Ready
	now      func() time.Time
	readyTTL time.Duration
	logger   *zap.SugaredLogger
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Store) { s.logger = log }
}

// WithReadyTTL sets the lifetime of ready markers; 0 disables them
func WithReadyTTL(ttl time.Duration) Option {
	return func(s *Store) { s.readyTTL = ttl }
}

// New creates a store mirrored into kv. A nil kv keeps everything in memory.
func New(kv session.KV, opts ...Option) *Store {
	s := &Store{
		kv:       kv,
		metas:    make(map[string]Meta),
		ready:    make(map[string]Ready),
		now:      time.Now,
		readyTTL: DefaultReadyTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.ComponentLogger("jobmeta")
	}
	return s
}

// Now returns the store's clock reading
func (s *Store) Now() time.Time {
	return s.now()
}

// Begin builds a Meta for a job starting now that expires after timeout
func (s *Store) Begin(entityID string, timeout time.Duration, ctx map[string]string) Meta {
	started := s.now()
	return Meta{
		EntityID:  entityID,
		StartedAt: started,
		ExpiresAt: started.Add(timeout),
		Context:   ctx,
	}
}

// Get returns the live Meta for entityID, hydrating from the KV when the
// in-memory copy is missing. Expired records are removed everywhere.
func (s *Store) Get(entityID string) (Meta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.metas[entityID]
	if !ok {
		if !s.load(MetaKey(entityID), &m) {
			return Meta{}, false
		}
	}
	if m.Expired(s.now()) {
		s.logger.Debugw("Job meta expired",
			logger.FieldAssessmentID, entityID,
			logger.FieldExpiresAt, m.ExpiresAt)
		s.clearLocked(entityID)
		return Meta{}, false
	}
	s.metas[entityID] = m
	return m, true
}

// Set stores meta under entityID and mirrors it to the KV
func (s *Store) Set(entityID string, meta Meta) {
	meta.EntityID = entityID

	s.mu.Lock()
	defer s.mu.Unlock()

	s.metas[entityID] = meta
	s.save(MetaKey(entityID), meta)
}

// Clear removes the Meta for entityID from memory and the KV. Idempotent.
func (s *Store) Clear(entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(entityID)
}

func (s *Store) clearLocked(entityID string) {
	delete(s.metas, entityID)
	s.remove(MetaKey(entityID))
}

// IsActive reports whether a non-expired Meta exists for entityID
func (s *Store) IsActive(entityID string) bool {
	_, ok := s.Get(entityID)
	return ok
}

// MarkReady records a successful completion. CompletedAt defaults to now and
// ExpiresAt to CompletedAt plus the ready TTL.
func (s *Store) MarkReady(r Ready) {
	if s.readyTTL <= 0 {
		return
	}
	if r.CompletedAt.IsZero() {
		r.CompletedAt = s.now()
	}
	if r.ExpiresAt.IsZero() {
		r.ExpiresAt = r.CompletedAt.Add(s.readyTTL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ready[r.EntityID] = r
	s.save(ReadyKey(r.EntityID), r)
}

// GetReady returns the live ready marker for entityID
func (s *Store) GetReady(entityID string) (Ready, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.ready[entityID]
	if !ok {
		if !s.load(ReadyKey(entityID), &r) {
			return Ready{}, false
		}
	}
	if r.Expired(s.now()) {
		delete(s.ready, entityID)
		s.remove(ReadyKey(entityID))
		return Ready{}, false
	}
	s.ready[entityID] = r
	return r, true
}

// IsReady reports whether a live ready marker exists for entityID
func (s *Store) IsReady(entityID string) bool {
	_, ok := s.GetReady(entityID)
	return ok
}

// ClearReady removes the ready marker for entityID. Idempotent.
func (s *Store) ClearReady(entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ready, entityID)
	s.remove(ReadyKey(entityID))
}

// load hydrates v from the KV. Unreadable or corrupt values count as absent.
func (s *Store) load(key string, v any) bool {
	if s.kv == nil {
		return false
	}
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		s.mirrorFailed("read", key, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.logger.Debugw("Discarding corrupt session value", logger.FieldKey, key, logger.FieldError, err)
		s.remove(key)
		return false
	}
	return true
}

func (s *Store) save(key string, v any) {
	if s.kv == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Debugw("Session encode failed", logger.FieldKey, key, logger.FieldError, err)
		return
	}
	if err := s.kv.Set(key, string(data)); err != nil {
		s.mirrorFailed("write", key, err)
	}
}

func (s *Store) remove(key string) {
	if s.kv == nil {
		return
	}
	if err := s.kv.Remove(key); err != nil {
		s.mirrorFailed("remove", key, err)
	}
}

// mirrorFailed reports a KV error. A closed database only means the process
// is shutting down; the in-memory record is still correct.
func (s *Store) mirrorFailed(op, key string, err error) {
	if db.IsDatabaseClosed(err) {
		s.logger.Debugw("Session store closed, record kept in memory",
			"op", op, logger.FieldKey, key)
		return
	}
	s.logger.Warnw("Session mirror failed",
		"op", op, logger.FieldKey, key, logger.FieldError, err)
}
