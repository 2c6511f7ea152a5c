package session

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/reportwatch/db"
	"github.com/teranos/reportwatch/errors"
	"github.com/teranos/reportwatch/logger"
)

// SQLite is a KV stored in the session_kv table, scoped to one session id.
// Several sessions can share one database file; each sees only its own keys.
// Errors from a closed database are marked db.ErrDatabaseClosed.
type SQLite struct {
	db        *sql.DB
	sessionID string
	logger    *zap.SugaredLogger
}

// NewSQLite creates a store for sessionID on a migrated database
func NewSQLite(database *sql.DB, sessionID string, log *zap.SugaredLogger) *SQLite {
	if log == nil {
		log = logger.ComponentLogger("session")
	}
	return &SQLite{
		db:        database,
		sessionID: sessionID,
		logger:    log.With(logger.FieldSessionID, sessionID),
	}
}

// SessionID returns the session this store is scoped to
func (s *SQLite) SessionID() string {
	return s.sessionID
}

func (s *SQLite) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM session_kv WHERE session_id = ? AND key = ?`,
		s.sessionID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(db.MarkClosed(err), "failed to read session key %s", key)
	}
	return value, true, nil
}

func (s *SQLite) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO session_kv (session_id, key, value, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.sessionID, key, value,
	)
	if err != nil {
		return errors.Wrapf(db.MarkClosed(err), "failed to write session key %s", key)
	}
	s.logger.Debugw("Session key written", logger.FieldKey, key)
	return nil
}

func (s *SQLite) Remove(key string) error {
	_, err := s.db.Exec(
		`DELETE FROM session_kv WHERE session_id = ? AND key = ?`,
		s.sessionID, key,
	)
	if err != nil {
		return errors.Wrapf(db.MarkClosed(err), "failed to remove session key %s", key)
	}
	return nil
}

// Keys lists the keys of this session that start with prefix
func (s *SQLite) Keys(prefix string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT key FROM session_kv WHERE session_id = ? AND substr(key, 1, ?) = ? ORDER BY key`,
		s.sessionID, len(prefix), prefix,
	)
	if err != nil {
		return nil, errors.Wrap(db.MarkClosed(err), "failed to list session keys")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, "failed to scan session key")
		}
		keys = append(keys, k)
	}
	return keys, errors.Wrap(rows.Err(), "failed to iterate session keys")
}

// Purge removes every key of this session, the equivalent of closing the tab
func (s *SQLite) Purge() error {
	res, err := s.db.Exec(`DELETE FROM session_kv WHERE session_id = ?`, s.sessionID)
	if err != nil {
		return errors.Wrap(db.MarkClosed(err), "failed to purge session")
	}
	n, _ := res.RowsAffected()
	s.logger.Infow("Session purged", "removed", n)
	return nil
}

// PurgeIdle removes every session, not only this one, whose keys were all
// last written before cutoff. Returns the number of rows removed.
func PurgeIdle(database *sql.DB, cutoff time.Time) (int64, error) {
	res, err := database.Exec(
		`DELETE FROM session_kv WHERE session_id IN (
			SELECT session_id FROM session_kv GROUP BY session_id HAVING MAX(updated_at) < ?
		)`,
		cutoff.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return 0, errors.Wrap(db.MarkClosed(err), "failed to purge idle sessions")
	}
	return res.RowsAffected()
}
