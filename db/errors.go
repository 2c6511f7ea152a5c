package db

import (
	"database/sql"
	"strings"

	"github.com/teranos/reportwatch/errors"
)

// ErrDatabaseClosed marks a read or write that reached the session database
// after it was closed, e.g. a job settling while the CLI shuts down.
var ErrDatabaseClosed = errors.New("database is closed")

// closedMessages are the driver texts for a handle used after Close
var closedMessages = []string{"sql: database is closed", "database is closed"}

// MarkClosed tags err with ErrDatabaseClosed when it came from a closed
// handle. Any other error is returned unchanged.
func MarkClosed(err error) error {
	if err == nil || errors.Is(err, ErrDatabaseClosed) {
		return err
	}
	if errors.Is(err, sql.ErrConnDone) {
		return errors.Mark(err, ErrDatabaseClosed)
	}
	msg := err.Error()
	for _, m := range closedMessages {
		if strings.Contains(msg, m) {
			return errors.Mark(err, ErrDatabaseClosed)
		}
	}
	return err
}

// IsDatabaseClosed reports whether err, marked or raw from the driver,
// means the database was already closed.
func IsDatabaseClosed(err error) bool {
	return errors.Is(MarkClosed(err), ErrDatabaseClosed)
}
