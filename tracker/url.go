package tracker

import (
	"net/url"
	"strings"

	"github.com/teranos/reportwatch/errors"
)

// Path template placeholders substituted with the entity id
const (
	PlaceholderAssessmentID = "{assessmentId}"
	PlaceholderEntityID     = "{entityId}"
	PlaceholderID           = ":id"
)

// ResolveURL builds the socket URL for a job. The path comes from hint when
// given, otherwise from the template. Scheme and host always come from
// origin: a hint pointing at another host only contributes its path and query.
func ResolveURL(cfg Config, entityID, hint, token, jobID string) (string, error) {
	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return "", errors.Wrapf(err, "invalid origin %q", cfg.Origin)
	}
	if origin.Host == "" {
		return "", errors.Newf("origin %q has no host", cfg.Origin)
	}

	target := &url.URL{Host: origin.Host}
	switch strings.ToLower(origin.Scheme) {
	case "https", "wss":
		target.Scheme = "wss"
	case "http", "ws":
		target.Scheme = "ws"
	default:
		return "", errors.Newf("unsupported origin scheme %q", origin.Scheme)
	}

	raw := strings.TrimSpace(hint)
	if raw == "" {
		raw = cfg.PathTemplate
	}
	if raw == "" {
		raw = DefaultPathTemplate
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrapf(err, "invalid endpoint %q", raw)
	}

	target.Path, target.RawPath = substitute(ref.EscapedPath(), entityID)

	q := ref.Query()
	if token != "" {
		q.Set("token", token)
	}
	if jobID != "" {
		q.Set("job_id", jobID)
	}
	if cfg.ProxyMarker != "" {
		q.Set(cfg.ProxyMarker, "true")
	}
	target.RawQuery = q.Encode()

	return target.String(), nil
}

// substitute fills the placeholders in an escaped path segment by segment and
// returns the decoded path and its escaped form, so an id containing "/"
// stays one segment.
func substitute(path, entityID string) (decoded, escaped string) {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	raw := make([]string, len(segments))
	for i, seg := range segments {
		if unescaped, err := url.PathUnescape(seg); err == nil {
			seg = unescaped
		}
		if seg == PlaceholderID {
			seg = entityID
		} else {
			seg = strings.ReplaceAll(seg, PlaceholderAssessmentID, entityID)
			seg = strings.ReplaceAll(seg, PlaceholderEntityID, entityID)
		}
		segments[i] = seg
		raw[i] = url.PathEscape(seg)
	}
	return "/" + strings.Join(segments, "/"), "/" + strings.Join(raw, "/")
}

// RedactURL hides the token query parameter for logs and persisted metadata
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
