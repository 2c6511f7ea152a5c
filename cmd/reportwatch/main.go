package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/reportwatch/cmd/reportwatch/commands"
	"github.com/teranos/reportwatch/errors"
	"github.com/teranos/reportwatch/logger"
)

var rootCmd = &cobra.Command{
	Use:   "reportwatch",
	Short: "reportwatch - follow asynchronous AI report generation",
	Long: `reportwatch - request assessment reports and follow them to completion.

reportwatch triggers report generation on the coaching backend, follows the
job over its WebSocket and tells you when the report is ready. In-flight jobs
are recorded in a session store, so a restarted reportwatch still knows what
is being generated.

Available commands:
  generate  - Request a report and follow it
  watch     - Follow a job someone else triggered, or resume one
  status    - Show what is known about an assessment's report
  reconcile - Mark a job as settled after learning its outcome elsewhere
  mock      - Serve a scripted backend for local development
  am        - Show reportwatch configuration ("I am")

Examples:
  reportwatch mock &                       # Start the scripted backend
  reportwatch generate a1 --title "Range"  # Request and follow a report
  reportwatch status a1                    # Is a report being generated?`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")

	rootCmd.AddCommand(commands.GenerateCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.ReconcileCmd)
	rootCmd.AddCommand(commands.SessionCmd)
	rootCmd.AddCommand(commands.MockCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
		os.Exit(1)
	}
}
