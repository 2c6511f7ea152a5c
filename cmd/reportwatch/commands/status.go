package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/reportwatch/display"
	"github.com/teranos/reportwatch/notify"
)

// StatusCmd shows the job and ready state of an assessment
var StatusCmd = &cobra.Command{
	Use:   "status <assessment-id>",
	Short: "Show whether a report is being generated",
	Long: `Show the in-flight job and the "completed while away" marker recorded in
this session for an assessment. The answer comes from the session store, so it
is correct even when no reportwatch process is following the job.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

var statusTake bool

func init() {
	StatusCmd.Flags().BoolP("json", "j", false, "Output status as JSON")
	StatusCmd.Flags().BoolVar(&statusTake, "ack", false, "Acknowledge (clear) the ready marker after showing it")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	entityID := args[0]
	st := a.service.Status(entityID)
	if statusTake && st.Ready != nil {
		a.service.TakeReady(entityID)
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(st, false)
	}

	now := time.Now()
	rows := pterm.TableData{{"Field", "Value"}}
	rows = append(rows, []string{"Assessment", entityID})
	if st.Job != nil {
		rows = append(rows,
			[]string{"Generating", "yes"},
			[]string{"Started", formatAge(now, st.Job.StartedAt)},
			[]string{"Gives up", formatAge(now, st.Job.ExpiresAt)},
			[]string{"Job ID", orDash(st.Job.JobID)},
			[]string{"Socket", orDash(st.Job.URL)})
		for k, v := range st.Job.Context {
			rows = append(rows, []string{"  " + k, v})
		}
	} else {
		rows = append(rows, []string{"Generating", "no"})
	}
	if st.Ready != nil {
		rows = append(rows,
			[]string{"Ready", formatAge(now, st.Ready.CompletedAt)},
			[]string{"Report", a.cfg.Origin + notify.ReportLink(entityID, st.Ready.ReportID)},
			[]string{"Comparison", fmt.Sprintf("%t", st.Ready.Comparison)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
