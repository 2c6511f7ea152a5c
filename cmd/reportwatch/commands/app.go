package commands

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/teranos/reportwatch/am"
	"github.com/teranos/reportwatch/db"
	"github.com/teranos/reportwatch/errors"
	"github.com/teranos/reportwatch/jobmeta"
	"github.com/teranos/reportwatch/logger"
	"github.com/teranos/reportwatch/reportgen"
	"github.com/teranos/reportwatch/session"
	"github.com/teranos/reportwatch/tracker"
	"github.com/teranos/reportwatch/trigger"
)

// app is everything a job command needs, built from configuration
type app struct {
	cfg     *am.Config
	db      *sql.DB
	service *reportgen.Service
	logger  *zap.SugaredLogger
}

func loadConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithHint(
			errors.Wrap(err, "invalid configuration"),
			"run 'reportwatch am show' to see the effective settings")
	}
	return cfg, nil
}

func openSessionDB(cfg *am.Config, log *zap.SugaredLogger) (*sql.DB, error) {
	database, err := db.OpenWithMigrations(cfg.Session.DatabasePath, log)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open session database %s", cfg.Session.DatabasePath)
	}
	return database, nil
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.ComponentLogger("reportwatch")

	a := &app{cfg: cfg, logger: log}

	var kv session.KV
	if cfg.Session.DatabasePath == "" {
		log.Debugw("No session database configured, job state lives in memory only")
		kv = session.NewMemory()
	} else {
		database, err := openSessionDB(cfg, log)
		if err != nil {
			return nil, err
		}
		a.db = database
		sessionID := cfg.Session.ID
		if sessionID == "" {
			sessionID = session.NewID()
		}
		kv = session.NewSQLite(database, sessionID, logger.ComponentLogger("session"))
	}

	token := func() string { return cfg.Auth.Token }

	store := jobmeta.New(kv,
		jobmeta.WithReadyTTL(cfg.Tracker.ReadyTTL()),
		jobmeta.WithLogger(logger.ComponentLogger("jobmeta")))

	tr := tracker.New(tracker.ConfigFromAm(cfg),
		tracker.WithStore(store),
		tracker.WithTokenSource(token))

	trig, err := trigger.New(trigger.ConfigFromAm(cfg), trigger.WithTokenSource(token))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.service = reportgen.New(trig, tr)
	return a, nil
}

// Close stops the tracker and closes the session database
func (a *app) Close() {
	if a.service != nil {
		_ = a.service.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warnw("Failed to close session database", logger.FieldError, err)
		}
	}
}
