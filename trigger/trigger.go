// Package trigger asks the backend to start generating a report.
//
// The backend answers 202 with an optional socket path and job id that are
// handed to the tracker. Requests are throttled locally and the backend's
// protocol version is checked against a semver constraint.
package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/reportwatch/am"
	"github.com/teranos/reportwatch/errors"
	"github.com/teranos/reportwatch/internal/httpclient"
	"github.com/teranos/reportwatch/logger"
)

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 4 << 10

// Config configures a Client
type Config struct {
	Origin             string
	Timeout            time.Duration
	MaxPerMinute       int    // 0 = unlimited
	ProtocolConstraint string // empty = accept any version
}

// ConfigFromAm extracts the trigger settings from the loaded configuration
func ConfigFromAm(cfg *am.Config) Config {
	return Config{
		Origin:             cfg.Origin,
		Timeout:            time.Duration(cfg.Trigger.TimeoutSeconds) * time.Second,
		MaxPerMinute:       cfg.Trigger.MaxPerMinute,
		ProtocolConstraint: cfg.Trigger.ProtocolConstraint,
	}
}

// Request asks for one report
type Request struct {
	EntityID   string
	Regenerate bool
	Token      string // overrides the client's token source
	// IdempotencyKey makes retries of the same request safe; a uuid is
	// generated when empty
	IdempotencyKey string
}

// Response is the backend's acknowledgement
type Response struct {
	EntityID        string
	Endpoint        string // socket path or URL, empty when the backend leaves it to the client
	JobID           string
	ProtocolVersion string
	IdempotencyKey  string
}

type wireResponse struct {
	AssessmentID    string `json:"assessment_id"`
	WSPath          string `json:"ws_path"`
	WebsocketURL    string `json:"websocket_url"`
	JobID           string `json:"job_id"`
	ProtocolVersion string `json:"protocol_version"`
}

// StatusError is a non-2xx answer from the backend
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// Client calls the report trigger endpoints
type Client struct {
	http       *httpclient.OriginClient
	tokens     func() string
	limiter    *rate.Limiter
	constraint *semver.Constraints
	logger     *zap.SugaredLogger
}

// Option configures a Client
type Option func(*Client)

// WithTokenSource sets the bearer token accessor
func WithTokenSource(ts func() string) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) { c.logger = log }
}

// WithHTTPClient replaces the origin-pinned HTTP client
func WithHTTPClient(hc *httpclient.OriginClient) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a trigger client
func New(cfg Config, opts ...Option) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.ComponentLogger("trigger")
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc, err := httpclient.New(cfg.Origin, timeout)
		if err != nil {
			return nil, errors.Wrap(err, "trigger client")
		}
		c.http = hc
	}
	if cfg.MaxPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.MaxPerMinute)/60.0), 1)
	}
	if cfg.ProtocolConstraint != "" {
		constraint, err := semver.NewConstraint(cfg.ProtocolConstraint)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid protocol constraint %q", cfg.ProtocolConstraint)
		}
		c.constraint = constraint
	}
	return c, nil
}

// Trigger requests report generation for req.EntityID
func (c *Client) Trigger(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.EntityID) == "" {
		return Response{}, errors.NewInvalidRequestError("assessment id is required")
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return Response{}, errors.WithHint(
			errors.Mark(errors.Newf("report request for %s throttled", req.EntityID), errors.ErrRateLimited),
			"wait a moment or raise trigger.max_per_minute")
	}

	action := "report"
	if req.Regenerate {
		action = "regenerate"
	}
	target, err := c.http.Resolve("/api/assessments/" + url.PathEscape(req.EntityID) + "/" + action)
	if err != nil {
		return Response{}, err
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	body, err := json.Marshal(map[string]any{"regenerate": req.Regenerate})
	if err != nil {
		return Response{}, errors.Wrap(err, "encode trigger request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return Response{}, errors.Wrap(err, "build trigger request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Idempotency-Key", key)
	if token := c.token(req); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, errors.Wrapf(err, "trigger report for %s", req.EntityID)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, errors.Wrapf(readStatusError(resp), "trigger report for %s", req.EntityID)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil && err != io.EOF {
		return Response{}, errors.Wrap(err, "decode trigger response")
	}

	out := Response{
		EntityID:        wire.AssessmentID,
		Endpoint:        wire.WSPath,
		JobID:           wire.JobID,
		ProtocolVersion: wire.ProtocolVersion,
		IdempotencyKey:  key,
	}
	if out.EntityID == "" {
		out.EntityID = req.EntityID
	}
	if out.Endpoint == "" {
		out.Endpoint = wire.WebsocketURL
	}

	if err := c.checkProtocol(out.ProtocolVersion); err != nil {
		return Response{}, err
	}

	c.logger.Infow("Report generation triggered",
		logger.FieldAssessmentID, out.EntityID,
		logger.FieldJobID, out.JobID,
		"regenerate", req.Regenerate,
		"protocol_version", out.ProtocolVersion,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return out, nil
}

func (c *Client) token(req Request) string {
	if req.Token != "" {
		return req.Token
	}
	if c.tokens != nil {
		return c.tokens()
	}
	return ""
}

func (c *Client) checkProtocol(version string) error {
	if c.constraint == nil {
		return nil
	}
	if version == "" {
		c.logger.Debugw("Backend did not report a protocol version")
		return nil
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.WithHint(
			errors.Mark(errors.Wrapf(err, "backend protocol version %q", version), errors.ErrProtocolMismatch),
			"the backend sent a malformed protocol_version")
	}
	if !c.constraint.Check(v) {
		return errors.WithHint(
			errors.Mark(errors.Newf("backend speaks protocol %s, need %s", version, c.constraint), errors.ErrProtocolMismatch),
			"upgrade reportwatch, or relax trigger.protocol_constraint if the backend is known to be compatible")
	}
	return nil
}

func readStatusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &StatusError{StatusCode: resp.StatusCode}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		se.Message = body.Error
		if se.Message == "" {
			se.Message = body.Message
		}
	} else {
		se.Message = strings.TrimSpace(string(data))
	}
	return se
}
