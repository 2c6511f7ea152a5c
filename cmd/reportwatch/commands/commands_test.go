package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/reportwatch/am"
	"github.com/teranos/reportwatch/db"
	"github.com/teranos/reportwatch/errors"
	"github.com/teranos/reportwatch/session"
)

func TestEventContext(t *testing.T) {
	assert.Equal(t, map[string]string{"source": "cli"}, eventContext("", "", "cli"))
	assert.Equal(t, map[string]string{
		"source":         "cli",
		"title":          "Range",
		"assessmentType": "swing",
	}, eventContext("Range", "swing", "cli"))
}

func TestFormatAge(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "-", formatAge(now, time.Time{}))
	assert.Equal(t, "1m30s ago", formatAge(now, now.Add(-90*time.Second)))
	assert.Equal(t, "in 5m0s", formatAge(now, now.Add(5*time.Minute)))
}

func TestMockScript(t *testing.T) {
	cfg := &am.Config{Mock: am.MockConfig{Frames: []string{`{"type":"completed"}`}, FrameDelayMS: 250}}
	script := mockScript(cfg)
	assert.Equal(t, cfg.Mock.Frames, script.Frames)
	assert.Equal(t, 250*time.Millisecond, script.FrameDelay)
}

func TestTimeoutHint(t *testing.T) {
	err := timeoutHint(errors.Wrap(errors.ErrJobTimeout, "waited 5m"), "a1")
	assert.ErrorIs(t, err, errors.ErrJobTimeout)
	assert.Contains(t, errors.FlattenHints(err), "reportwatch status a1")

	failed := errors.ErrGenerationFailed
	assert.Equal(t, failed, timeoutHint(failed, "a1"))
	assert.NoError(t, timeoutHint(nil, "a1"))
}

func TestOrDash(t *testing.T) {
	assert.Equal(t, "-", orDash(""))
	assert.Equal(t, "x", orDash("x"))
}

func useSessionDB(t *testing.T, sessionID string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "reportwatch.db")
	t.Setenv("REPORTWATCH_SESSION_DATABASE_PATH", dbPath)
	t.Setenv("REPORTWATCH_SESSION_ID", sessionID)
	am.Reset()
	t.Cleanup(am.Reset)
	return dbPath
}

func TestSessionEnd(t *testing.T) {
	dbPath := useSessionDB(t, "tab-1")
	database, err := db.OpenWithMigrations(dbPath, nil)
	require.NoError(t, err)
	defer database.Close()

	mine := session.NewSQLite(database, "tab-1", nil)
	other := session.NewSQLite(database, "tab-2", nil)
	require.NoError(t, mine.Set("report-job:a1", "{}"))
	require.NoError(t, mine.Set("report-ready:a2", "{}"))
	require.NoError(t, other.Set("report-job:a1", "{}"))

	require.NoError(t, sessionEndCmd.RunE(sessionEndCmd, nil))

	keys, err := mine.Keys("")
	require.NoError(t, err)
	assert.Empty(t, keys)

	keys, err = other.Keys("")
	require.NoError(t, err)
	assert.Equal(t, []string{"report-job:a1"}, keys, "other sessions are untouched")
}

func TestSessionPrune(t *testing.T) {
	dbPath := useSessionDB(t, "tab-1")
	database, err := db.OpenWithMigrations(dbPath, nil)
	require.NoError(t, err)
	defer database.Close()

	kv := session.NewSQLite(database, "tab-1", nil)
	require.NoError(t, kv.Set("report-job:a1", "{}"))

	require.NoError(t, sessionPruneCmd.Flags().Set("idle", "-1s"))
	assert.ErrorContains(t, sessionPruneCmd.RunE(sessionPruneCmd, nil), "--idle must be positive")

	require.NoError(t, sessionPruneCmd.Flags().Set("idle", DefaultIdleCutoff.String()))
	require.NoError(t, sessionPruneCmd.RunE(sessionPruneCmd, nil))

	keys, err := kv.Keys("")
	require.NoError(t, err)
	assert.Len(t, keys, 1, "a session written just now is not idle")
}
