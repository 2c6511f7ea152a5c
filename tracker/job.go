package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/reportwatch/errors"
	"github.com/teranos/reportwatch/frame"
	"github.com/teranos/reportwatch/internal/promise"
	"github.com/teranos/reportwatch/jobmeta"
	"github.com/teranos/reportwatch/logger"
)

type stopReason int

const (
	stopClosed   stopReason = iota + 1 // Handle.Close
	stopRestart                        // replaced by a newer job
	stopShutdown                       // Tracker.Close
)

type dialResult struct {
	conn Conn
	err  error
}

// job is one tracked socket session. Its run loop is the only goroutine that
// touches the connection, the timers and the futures.
type job struct {
	t        *Tracker
	id       uint64
	opts     StartOptions
	url      string
	redacted string
	log      *zap.SugaredLogger

	connected *promise.Promise[struct{}]
	done      *promise.Promise[Event]

	stopOnce   chan struct{} // closed by the first stop call
	stopReason stopReason
	finished   chan struct{}
	started    time.Time
}

func newJob(t *Tracker, id uint64, opts StartOptions, target string) *job {
	if opts.Context != nil {
		ctx := make(map[string]string, len(opts.Context))
		for k, v := range opts.Context {
			ctx[k] = v
		}
		opts.Context = ctx
	}
	redacted := RedactURL(target)
	return &job{
		t:         t,
		id:        id,
		opts:      opts,
		url:       target,
		redacted:  redacted,
		log:       t.logger.With(logger.FieldAssessmentID, opts.EntityID, logger.FieldJobID, opts.JobID),
		connected: promise.New[struct{}](),
		done:      promise.New[Event](),
		stopOnce:  make(chan struct{}),
		finished:  make(chan struct{}),
		started:   t.now(),
	}
}

// stop asks the run loop to end the job. Only the first reason counts.
func (j *job) stop(reason stopReason) {
	j.t.mu.Lock()
	defer j.t.mu.Unlock()
	select {
	case <-j.stopOnce:
	default:
		j.stopReason = reason
		close(j.stopOnce)
	}
}

func (j *job) reason() stopReason {
	j.t.mu.Lock()
	defer j.t.mu.Unlock()
	return j.stopReason
}

func (j *job) run() {
	defer close(j.finished)
	defer j.t.release(j)

	conn, ok := j.connect()
	if !ok {
		return
	}
	j.track(conn)
}

// connect waits for the dial, the connect timeout or a stop request.
func (j *job) connect() (Conn, bool) {
	dialCtx, cancelDial := context.WithCancel(context.Background())
	results := make(chan dialResult, 1)
	go func() {
		conn, err := j.t.dialer.Dial(dialCtx, j.url)
		results <- dialResult{conn: conn, err: err}
	}()

	timer := time.NewTimer(j.opts.ConnectTimeout)
	defer timer.Stop()

	abandon := func() {
		cancelDial()
		// A dial that completes after we gave up must not leak its socket
		go func() {
			if r := <-results; r.conn != nil {
				r.conn.Close()
			}
		}()
	}

	select {
	case r := <-results:
		cancelDial()
		if r.err != nil {
			err := errors.Wrap(errors.Mark(r.err, errors.ErrConnect), "failed to open report socket")
			j.log.Warnw("Report socket dial failed", logger.FieldError, r.err)
			j.failConnect(err, r.err.Error())
			return nil, false
		}
		j.connected.Resolve(struct{}{})
		j.log.Infow("Report socket open")
		j.emit(j.event(EventOpen))
		return r.conn, true

	case <-timer.C:
		abandon()
		j.log.Warnw("Report socket connect timeout", logger.FieldTimeoutMS, j.opts.ConnectTimeout.Milliseconds())
		j.failConnect(errors.ErrConnectTimeout, "connect timeout")
		return nil, false

	case <-j.stopOnce:
		abandon()
		j.finishStopped(j.reason())
		return nil, false
	}
}

// failConnect ends a job that never opened
func (j *job) failConnect(cause error, message string) {
	evt := j.event(EventError)
	evt.Terminal = true
	evt.Status = frame.StatusFailure
	evt.Message = message
	j.connected.Reject(cause)
	j.terminal(evt, cause)
}

// track reads frames until a terminal frame, the job timeout, a stop request
// or the socket going away.
func (j *job) track(conn Conn) {
	frames := make(chan []byte)
	readErr := make(chan error, 1)
	quit := make(chan struct{})
	defer close(quit)

	go func() {
		for {
			data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- data:
			case <-quit:
				return
			}
		}
	}()

	timer := time.NewTimer(j.opts.JobTimeout)
	defer timer.Stop()

	for {
		select {
		case data := <-frames:
			if !j.t.isActive(j) {
				// Replaced, and the stop request has not been seen yet
				j.stop(j.staleReason())
				continue
			}
			n := frame.Normalize(data)
			evt := j.event(EventMessage)
			evt.Terminal = n.Terminal
			evt.Status = n.Status
			evt.Message = n.Message
			evt.Payload = n.Payload
			evt.Comparison = n.Comparison

			j.log.Debugw("Report frame",
				logger.FieldStatus, n.Status,
				logger.FieldTerminal, n.Terminal)

			if !n.Terminal {
				j.emit(evt)
				continue
			}
			conn.CloseWithReason(CloseNormal, ReasonDone)
			if n.Status == frame.StatusSuccess {
				j.terminal(evt, nil)
			} else {
				j.terminal(evt, errors.ErrGenerationFailed)
			}
			return

		case <-timer.C:
			conn.CloseWithReason(CloseNormal, ReasonTimeout)
			evt := j.event(EventError)
			evt.Terminal = true
			evt.Status = frame.StatusTimeout
			evt.Message = "job timeout"
			j.log.Warnw("Report job timed out", logger.FieldTimeoutMS, j.opts.JobTimeout.Milliseconds())
			j.terminal(evt, errors.ErrJobTimeout)
			return

		case <-j.stopOnce:
			reason := j.reason()
			switch reason {
			case stopRestart:
				conn.CloseWithReason(CloseNormal, ReasonRestart)
			case stopShutdown:
				conn.CloseWithReason(CloseGoingAway, ReasonShutdown)
			default:
				conn.CloseWithReason(CloseNormal, ReasonClosed)
			}
			j.finishStopped(reason)
			return

		case err := <-readErr:
			conn.Close()
			evt := j.event(EventClose)
			evt.Message = err.Error()
			if IsNormalClose(err) {
				j.log.Infow("Report socket closed before a result", logger.FieldReason, err)
			} else {
				j.log.Warnw("Report socket dropped", logger.FieldError, err)
			}
			if !j.emit(evt) {
				j.done.Reject(&JobError{Event: evt, Err: j.staleCause()})
				return
			}
			j.done.Reject(&JobError{Event: evt, Err: errors.ErrConnectionClosed})
			return
		}
	}
}

// terminal publishes the job's one terminal event, clears its metadata and
// settles both futures. A job that was replaced meanwhile touches neither the
// bus nor the metadata, which may already belong to its replacement.
func (j *job) terminal(evt Event, cause error) {
	j.t.emitMu.Lock()
	active := j.t.isActive(j)
	if active {
		j.t.store.Clear(j.opts.EntityID)
		if evt.IsSuccess() {
			j.t.store.MarkReady(jobmeta.Ready{
				EntityID:   j.opts.EntityID,
				ReportID:   evt.ReportID(),
				Comparison: evt.Comparison,
			})
		}
		j.t.bus.Publish(evt)
	}
	j.t.emitMu.Unlock()

	if !active {
		cause = j.staleCause()
		j.log.Debugw("Discarding outcome of replaced job", logger.FieldStatus, evt.Status)
	} else {
		j.log.Infow("Report job finished",
			logger.FieldStatus, evt.Status,
			logger.FieldDurationMS, j.t.now().Sub(j.started).Milliseconds())
	}

	j.connected.Reject(errors.ErrConnectionClosed)
	if cause == nil {
		j.done.Resolve(evt)
		return
	}
	j.done.Reject(&JobError{Event: evt, Err: cause})
}

// staleCause is the rejection for a job that no longer owns the socket
func (j *job) staleCause() error {
	if j.staleReason() == stopShutdown {
		return errors.ErrClosed
	}
	return errors.ErrRestarted
}

// staleReason is why a job lost the socket, before or after stop was called
func (j *job) staleReason() stopReason {
	j.t.mu.Lock()
	defer j.t.mu.Unlock()
	if j.stopReason != 0 {
		return j.stopReason
	}
	if j.t.closed {
		return stopShutdown
	}
	return stopRestart
}

// finishStopped settles a job ended by Handle.Close, a restart or shutdown.
// A restarted job is already stale, so only a caller-initiated close publishes.
func (j *job) finishStopped(reason stopReason) {
	cause := errors.ErrConnectionClosed
	switch reason {
	case stopRestart:
		cause = errors.ErrRestarted
	case stopShutdown:
		cause = errors.ErrClosed
	}

	evt := j.event(EventClose)
	evt.Message = cause.Error()
	if reason == stopClosed {
		j.emit(evt)
	}
	j.log.Infow("Report job stopped", logger.FieldReason, cause.Error())

	j.connected.Reject(cause)
	j.done.Reject(&JobError{Event: evt, Err: cause})
}

// event builds an event carrying the job's current metadata context
func (j *job) event(typ EventType) Event {
	ctx := j.opts.Context
	if meta, ok := j.t.store.Get(j.opts.EntityID); ok && meta.Context != nil {
		ctx = meta.Context
	}
	return Event{
		Type:      typ,
		EntityID:  j.opts.EntityID,
		Context:   ctx,
		JobID:     j.opts.JobID,
		URL:       j.redacted,
		StartedAt: j.started,
		At:        j.t.now(),
	}
}

// emit publishes evt unless the job has been replaced
func (j *job) emit(evt Event) bool {
	j.t.emitMu.Lock()
	defer j.t.emitMu.Unlock()
	if !j.t.isActive(j) {
		j.log.Debugw("Dropping event from replaced job", logger.FieldEvent, evt.Type)
		return false
	}
	j.t.bus.Publish(evt)
	return true
}
