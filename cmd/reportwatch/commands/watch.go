package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/reportwatch/display"
	"github.com/teranos/reportwatch/errors"
	"github.com/teranos/reportwatch/tracker"
)

// WatchCmd follows a job without triggering it
var WatchCmd = &cobra.Command{
	Use:   "watch <assessment-id>",
	Short: "Follow a report job without requesting one",
	Long: `Open the report socket for an assessment whose generation was requested
elsewhere (another device, the web app), or with --resume reattach to a job this
session recorded before it was interrupted.

Examples:
  reportwatch watch a1 --job-id 7d0c...
  reportwatch watch a1 --endpoint /ws/jobs/7d0c
  reportwatch watch --resume a1`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var (
	watchEndpoint string
	watchJobID    string
	watchResume   bool
	watchTitle    string
)

func init() {
	WatchCmd.Flags().StringVar(&watchEndpoint, "endpoint", "", "Socket path announced by the backend (default tracker.path_template)")
	WatchCmd.Flags().StringVar(&watchJobID, "job-id", "", "Backend job id")
	WatchCmd.Flags().BoolVar(&watchResume, "resume", false, "Reattach to the job recorded in this session")
	WatchCmd.Flags().StringVar(&watchTitle, "title", "", "Assessment title shown in the notification")
	addFollowFlags(WatchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	followJSON = display.ShouldOutputJSON(cmd)
	detach := a.attachOutput()
	defer detach()

	entityID := args[0]
	var h *tracker.Handle
	if watchResume {
		var ok bool
		h, ok, err = a.service.Resume(ctx, entityID, "")
		if err != nil {
			return err
		}
		if !ok {
			return errors.WithHint(errors.Newf("no report job in flight for %s", entityID),
				"'reportwatch status "+entityID+"' shows whether a report finished meanwhile")
		}
	} else {
		h, err = a.service.Watch(ctx, tracker.StartOptions{
			EntityID:     entityID,
			EndpointHint: watchEndpoint,
			JobID:        watchJobID,
			Context:      eventContext(watchTitle, "", "cli-watch"),
		})
		if err != nil {
			return errors.Wrap(err, "failed to start watching")
		}
	}
	return follow(ctx, h)
}
