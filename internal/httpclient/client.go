// Package httpclient provides an HTTP client pinned to a single backend origin.
//
// The backend chooses paths (socket hints, redirects) that flow back into
// requests; pinning keeps any of them from steering the bearer token to
// another host.
package httpclient

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/reportwatch/errors"
)

// DefaultMaxRedirects is the redirect limit when none is configured
const DefaultMaxRedirects = 5

// OriginClient wraps http.Client and refuses requests outside its origin
type OriginClient struct {
	*http.Client
	origin       *url.URL
	maxRedirects int
}

// Options customizes an OriginClient
type Options struct {
	MaxRedirects *int              // Default: 5, 0 disables redirects
	Transport    http.RoundTripper // Default: a transport honouring proxy environment variables
}

// New creates a client for origin with a per-request timeout
func New(origin string, timeout time.Duration) (*OriginClient, error) {
	return NewWithOptions(origin, timeout, Options{})
}

// NewWithOptions creates a client for origin with custom options
func NewWithOptions(origin string, timeout time.Duration, opts Options) (*OriginClient, error) {
	u, err := ParseOrigin(origin)
	if err != nil {
		return nil, err
	}

	maxRedirects := DefaultMaxRedirects
	if opts.MaxRedirects != nil {
		maxRedirects = *opts.MaxRedirects
	}

	transport := opts.Transport
	if transport == nil {
		dialer := &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	client := &OriginClient{
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		origin:       u,
		maxRedirects: maxRedirects,
	}

	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) > client.maxRedirects {
			return errors.Newf("stopped after %d redirects", client.maxRedirects)
		}
		if err := client.validateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}

	return client, nil
}

// ParseOrigin parses an http(s) origin, dropping any path, query or fragment
func ParseOrigin(origin string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return nil, errors.Wrap(err, "invalid origin")
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, errors.Newf("origin scheme %q not allowed (allowed: http, https)", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("origin missing host")
	}
	if u.User != nil {
		return nil, errors.New("origin must not carry credentials")
	}
	return &url.URL{Scheme: scheme, Host: strings.ToLower(u.Host)}, nil
}

// Origin returns the pinned origin
func (c *OriginClient) Origin() *url.URL {
	u := *c.origin
	return &u
}

// Resolve joins a backend path onto the origin. Absolute URLs are accepted
// only when they point at the origin.
func (c *OriginClient) Resolve(ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	u := c.origin.ResolveReference(r)
	if err := c.validateURL(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (c *OriginClient) validateURL(u *url.URL) error {
	if u.User != nil {
		return errors.New("URL carries credentials")
	}
	if !strings.EqualFold(u.Scheme, c.origin.Scheme) || !strings.EqualFold(u.Host, c.origin.Host) {
		return errors.Newf("%s://%s is outside origin %s", u.Scheme, u.Host, c.origin)
	}
	return nil
}

// Do executes req after checking it targets the origin
func (c *OriginClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.validateURL(req.URL); err != nil {
		return nil, errors.Wrap(err, "request blocked")
	}
	return c.Client.Do(req)
}
