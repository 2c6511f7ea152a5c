package commands

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/reportwatch/errors"
	"github.com/teranos/reportwatch/logger"
	"github.com/teranos/reportwatch/session"
)

// DefaultIdleCutoff is how long a session may go unwritten before prune drops it
const DefaultIdleCutoff = 24 * time.Hour

// SessionCmd manages the persisted session store
var SessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the persisted session store",
}

var sessionEndCmd = &cobra.Command{
	Use:   "end",
	Short: "Forget every job and ready marker of this session",
	Long: `Remove everything the configured session recorded, the same as closing
the browser tab. Jobs still running on the backend are not cancelled.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Session.DatabasePath == "" {
			pterm.Info.Println("No session database configured, nothing to end")
			return nil
		}
		if cfg.Session.ID == "" {
			return errors.WithHint(errors.New("no session id configured"),
				"set session.id in am.toml; without it every run gets a fresh session")
		}

		log := logger.ComponentLogger("session")
		database, err := openSessionDB(cfg, log)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := session.NewSQLite(database, cfg.Session.ID, log).Purge(); err != nil {
			return err
		}
		pterm.Success.Printfln("Session %s ended", cfg.Session.ID)
		return nil
	},
}

var sessionPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop sessions that have been idle for a while",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		idle, _ := cmd.Flags().GetDuration("idle")
		if idle <= 0 {
			return errors.Newf("--idle must be positive, got %s", idle)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Session.DatabasePath == "" {
			pterm.Info.Println("No session database configured, nothing to prune")
			return nil
		}

		database, err := openSessionDB(cfg, logger.ComponentLogger("session"))
		if err != nil {
			return err
		}
		defer database.Close()

		n, err := session.PurgeIdle(database, time.Now().Add(-idle))
		if err != nil {
			return err
		}
		pterm.Success.Printfln("Removed %d session keys idle for more than %s", n, idle)
		return nil
	},
}

func init() {
	sessionPruneCmd.Flags().Duration("idle", DefaultIdleCutoff, "remove sessions not written for this long")
	SessionCmd.AddCommand(sessionEndCmd, sessionPruneCmd)
}
