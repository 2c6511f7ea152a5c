package tracker

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Close codes sent when the tracker closes a socket
const (
	CloseNormal    = websocket.CloseNormalClosure
	CloseGoingAway = websocket.CloseGoingAway
)

// Close reasons
const (
	ReasonRestart  = "restart"
	ReasonDone     = "done"
	ReasonTimeout  = "timeout"
	ReasonClosed   = "closed"
	ReasonShutdown = "shutdown"
)

// Conn is a receive-only message transport
type Conn interface {
	// ReadMessage blocks for the next frame. It returns an error once the
	// connection is closed by either side.
	ReadMessage() ([]byte, error)
	// CloseWithReason sends a close frame then releases the connection
	CloseWithReason(code int, reason string) error
	Close() error
}

// Dialer opens a Conn. Dial must return promptly once ctx is cancelled.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to Dialer
type DialerFunc func(ctx context.Context, url string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}

// WebsocketDialer dials with gorilla/websocket
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// NewWebsocketDialer returns a dialer honouring proxy environment variables.
// The handshake is bounded by the ctx passed to Dial, not a fixed timeout.
func NewWebsocketDialer() *WebsocketDialer {
	return &WebsocketDialer{
		Dialer: &websocket.Dialer{
			Proxy:           http.ProxyFromEnvironment,
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
		},
	}
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.Dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, &HandshakeError{StatusCode: resp.StatusCode, Err: err}
		}
		return nil, err
	}
	return &websocketConn{conn: conn}, nil
}

// HandshakeError is returned when the server answered the upgrade with an HTTP error
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return http.StatusText(e.StatusCode) + ": " + e.Err.Error()
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// websocketConn wraps gorilla/websocket.Conn to implement Conn.
type websocketConn struct {
	conn *websocket.Conn
}

func (c *websocketConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *websocketConn) CloseWithReason(code int, reason string) error {
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	return c.conn.Close()
}

func (c *websocketConn) Close() error { return c.conn.Close() }

// IsNormalClose reports whether err is the peer closing with 1000 or 1001
func IsNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
