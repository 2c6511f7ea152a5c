package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		want    string
		wantErr string
	}{
		{name: "http", origin: "http://localhost:8000", want: "http://localhost:8000"},
		{name: "path dropped", origin: "https://API.example.com/v1?x=1", want: "https://api.example.com"},
		{name: "ws scheme", origin: "ws://example.com", wantErr: "scheme"},
		{name: "no host", origin: "http://", wantErr: "host"},
		{name: "credentials", origin: "http://user:pw@example.com", wantErr: "credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseOrigin(tt.origin)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestResolve(t *testing.T) {
	c, err := New("https://api.example.com", time.Second)
	require.NoError(t, err)

	u, err := c.Resolve("/api/assessments/a1/report")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/api/assessments/a1/report", u.String())

	_, err = c.Resolve("https://evil.example.com/steal")
	assert.Error(t, err)

	_, err = c.Resolve("//evil.example.com/steal")
	assert.Error(t, err)

	_, err = c.Resolve("http://api.example.com/downgrade")
	assert.Error(t, err)
}

func TestDoBlocksOtherHosts(t *testing.T) {
	c, err := New("http://127.0.0.1:1", time.Second)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)
	_, err = c.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request blocked")
}

func TestRedirectStaysOnOrigin(t *testing.T) {
	elsewhere := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("redirect to another origin was followed")
	}))
	defer elsewhere.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/same":
			http.Redirect(w, r, "/ok", http.StatusFound)
		case "/away":
			http.Redirect(w, r, elsewhere.URL+"/x", http.StatusFound)
		case "/loop":
			http.Redirect(w, r, "/loop", http.StatusFound)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, 5*time.Second)
	require.NoError(t, err)

	resp, err := c.Get(srv.URL + "/same")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = c.Get(srv.URL + "/away")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirect blocked")

	_, err = c.Get(srv.URL + "/loop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirects")
}

func TestZeroRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/r" {
			http.Redirect(w, r, "/ok", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	zero := 0
	c, err := NewWithOptions(srv.URL, time.Second, Options{MaxRedirects: &zero})
	require.NoError(t, err)
	_, err = c.Get(srv.URL + "/r")
	assert.Error(t, err)
}
