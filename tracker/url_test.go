package tracker

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	cfg := Config{Origin: "https://coach.example.com"}.withDefaults()

	tests := []struct {
		name   string
		cfg    Config
		entity string
		hint   string
		token  string
		jobID  string
		want   string
	}{
		{
			name:   "default template over https",
			cfg:    cfg,
			entity: "a1",
			token:  "tok",
			want:   "wss://coach.example.com/ws/assessments/a1/report?ngrok-skip-browser-warning=true&token=tok",
		},
		{
			name:   "plain http origin uses ws",
			cfg:    Config{Origin: "http://localhost:8000"}.withDefaults(),
			entity: "a1",
			want:   "ws://localhost:8000/ws/assessments/a1/report?ngrok-skip-browser-warning=true",
		},
		{
			name:   "hint path with job id",
			cfg:    cfg,
			entity: "a1",
			hint:   "/ws/jobs/{entityId}",
			jobID:  "j9",
			want:   "wss://coach.example.com/ws/jobs/a1?job_id=j9&ngrok-skip-browser-warning=true",
		},
		{
			name:   "colon placeholder",
			cfg:    cfg,
			entity: "a1",
			hint:   "/ws/reports/:id/stream",
			want:   "wss://coach.example.com/ws/reports/a1/stream?ngrok-skip-browser-warning=true",
		},
		{
			name:   "absolute hint is pinned to the origin host",
			cfg:    cfg,
			entity: "a1",
			hint:   "ws://internal-worker:9000/ws/assessments/a1/report?shard=3",
			want:   "wss://coach.example.com/ws/assessments/a1/report?ngrok-skip-browser-warning=true&shard=3",
		},
		{
			name:   "escaped slash in hint stays one segment",
			cfg:    cfg,
			entity: "a/1",
			hint:   "/ws/assessments/a%2F1/report?job_id=j1",
			want:   "wss://coach.example.com/ws/assessments/a%2F1/report?job_id=j1&ngrok-skip-browser-warning=true",
		},
		{
			name:   "relative hint gains a leading slash",
			cfg:    cfg,
			entity: "a1",
			hint:   "ws/assessments/a1/report",
			want:   "wss://coach.example.com/ws/assessments/a1/report?ngrok-skip-browser-warning=true",
		},
		{
			name:   "entity id is escaped",
			cfg:    cfg,
			entity: "a 1/b",
			want:   "wss://coach.example.com/ws/assessments/a%201%2Fb/report?ngrok-skip-browser-warning=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveURL(tt.cfg, tt.entity, tt.hint, tt.token, tt.jobID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveURL_Errors(t *testing.T) {
	_, err := ResolveURL(Config{Origin: "ftp://example.com"}, "a1", "", "", "")
	assert.Error(t, err)

	_, err = ResolveURL(Config{Origin: "/relative"}, "a1", "", "", "")
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	red := RedactURL("wss://coach.example.com/ws/x?token=secret&job_id=j1")
	u, err := url.Parse(red)
	require.NoError(t, err)
	assert.Equal(t, "REDACTED", u.Query().Get("token"))
	assert.Equal(t, "j1", u.Query().Get("job_id"))
	assert.NotContains(t, red, "secret")

	assert.Equal(t, "wss://h/p?a=1", RedactURL("wss://h/p?a=1"))
}
