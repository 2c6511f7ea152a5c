package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/reportwatch/db"
	"github.com/teranos/reportwatch/errors"
	rwtest "github.com/teranos/reportwatch/internal/testing"
)

func TestMemory(t *testing.T) {
	m := NewMemory()

	_, ok, err := m.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set("k", "v"))
	v, ok, err := m.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Remove("k"))
	require.NoError(t, m.Remove("k"))
	assert.Zero(t, m.Len())

	require.NoError(t, m.Set("a", "1"))
	m.Purge()
	assert.Zero(t, m.Len())
}

func TestSQLite_RoundTrip(t *testing.T) {
	database := rwtest.CreateTestDB(t)
	kv := NewSQLite(database, "tab-1", zaptest.NewLogger(t).Sugar())

	_, ok, err := kv.Get("report-job:a1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set("report-job:a1", `{"v":1}`))
	require.NoError(t, kv.Set("report-job:a1", `{"v":2}`))

	v, ok, err := kv.Get("report-job:a1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"v":2}`, v)

	require.NoError(t, kv.Remove("report-job:a1"))
	require.NoError(t, kv.Remove("report-job:a1"), "removing an absent key is not an error")
	_, ok, err = kv.Get("report-job:a1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_SessionIsolation(t *testing.T) {
	database := rwtest.CreateTestDB(t)
	tab1 := NewSQLite(database, "tab-1", nil)
	tab2 := NewSQLite(database, "tab-2", nil)

	require.NoError(t, tab1.Set("k", "one"))
	require.NoError(t, tab2.Set("k", "two"))

	v, _, _ := tab1.Get("k")
	assert.Equal(t, "one", v)

	// A reload of tab 1 is a new store over the same session id
	reloaded := NewSQLite(database, "tab-1", nil)
	v, ok, err := reloaded.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "one", v)

	require.NoError(t, tab1.Purge())
	_, ok, _ = reloaded.Get("k")
	assert.False(t, ok, "purged session should be empty")
	_, ok, _ = tab2.Get("k")
	assert.True(t, ok, "other sessions survive a purge")
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	first, err := db.OpenWithMigrations(path, nil)
	require.NoError(t, err)
	require.NoError(t, NewSQLite(first, "tab-1", nil).Set("k", "v"))
	first.Close()

	second, err := db.OpenWithMigrations(path, nil)
	require.NoError(t, err)
	defer second.Close()

	v, ok, err := NewSQLite(second, "tab-1", nil).Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestSQLite_Keys(t *testing.T) {
	database := rwtest.CreateTestDB(t)
	kv := NewSQLite(database, "tab-1", nil)

	require.NoError(t, kv.Set("report-job:b", "x"))
	require.NoError(t, kv.Set("report-job:a", "x"))
	require.NoError(t, kv.Set("report-ready:a", "x"))

	keys, err := kv.Keys("report-job:")
	require.NoError(t, err)
	assert.Equal(t, []string{"report-job:a", "report-job:b"}, keys)
}

func TestPurgeIdle(t *testing.T) {
	database := rwtest.CreateTestDB(t)
	kv := NewSQLite(database, "tab-1", nil)
	require.NoError(t, kv.Set("k", "v"))

	n, err := PurgeIdle(database, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = PurgeIdle(database, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLite_Errors(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	kv := NewSQLite(mockDB, "tab-1", nil)
	boom := errors.New("disk I/O error")

	mock.ExpectQuery("SELECT value FROM session_kv").WillReturnError(boom)
	_, _, err = kv.Get("k")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to read session key k")

	mock.ExpectExec("INSERT INTO session_kv").WillReturnError(boom)
	assert.ErrorIs(t, kv.Set("k", "v"), boom)

	mock.ExpectExec("DELETE FROM session_kv").WillReturnError(boom)
	assert.ErrorIs(t, kv.Remove("k"), boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_ClosedDatabase(t *testing.T) {
	t.Run("driver error is marked", func(t *testing.T) {
		mockDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDB.Close()

		kv := NewSQLite(mockDB, "tab-1", nil)
		mock.ExpectExec("INSERT INTO session_kv").WillReturnError(errors.New("sql: database is closed"))

		err = kv.Set("k", "v")
		assert.ErrorIs(t, err, db.ErrDatabaseClosed)
		assert.True(t, db.IsDatabaseClosed(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("real handle after close", func(t *testing.T) {
		database, err := db.OpenWithMigrations(filepath.Join(t.TempDir(), "session.db"), zaptest.NewLogger(t).Sugar())
		require.NoError(t, err)
		kv := NewSQLite(database, "tab-1", nil)
		require.NoError(t, database.Close())

		assert.ErrorIs(t, kv.Set("k", "v"), db.ErrDatabaseClosed)
		assert.ErrorIs(t, kv.Remove("k"), db.ErrDatabaseClosed)
		_, _, err = kv.Get("k")
		assert.ErrorIs(t, err, db.ErrDatabaseClosed)
	})

	t.Run("other errors are not marked", func(t *testing.T) {
		mockDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDB.Close()

		kv := NewSQLite(mockDB, "tab-1", nil)
		mock.ExpectExec("DELETE FROM session_kv").WillReturnError(errors.New("disk I/O error"))
		assert.False(t, db.IsDatabaseClosed(kv.Remove("k")))
	})
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
