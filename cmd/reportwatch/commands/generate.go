package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/reportwatch/display"
	"github.com/teranos/reportwatch/errors"
	"github.com/teranos/reportwatch/notify"
	"github.com/teranos/reportwatch/reportgen"
	"github.com/teranos/reportwatch/tracker"
)

// GenerateCmd requests a report and follows it to completion
var GenerateCmd = &cobra.Command{
	Use:   "generate <assessment-id>",
	Short: "Request an AI report and follow it",
	Long: `Request report generation for an assessment and follow the job until the
backend reports a result, the job times out or you interrupt it.

An interrupted job keeps running on the backend; 'reportwatch watch --resume'
picks it up again.

Examples:
  reportwatch generate a1
  reportwatch generate a1 --regenerate --title "Spring range session"
  reportwatch generate a1 --json | jq .status`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

var (
	generateRegenerate bool
	generateTitle      string
	generateType       string
	followJSON         bool
	followLocale       string
)

func init() {
	GenerateCmd.Flags().BoolVar(&generateRegenerate, "regenerate", false, "Regenerate an existing report (result includes a comparison)")
	GenerateCmd.Flags().StringVar(&generateTitle, "title", "", "Assessment title shown in the notification")
	GenerateCmd.Flags().StringVar(&generateType, "type", "", "Assessment type echoed on every event")
	addFollowFlags(GenerateCmd)
}

func addFollowFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "Print every event as a JSON line")
	cmd.Flags().StringVar(&followLocale, "locale", "", "Notification language (default notify.locale)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
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

	h, err := a.service.Generate(ctx, reportgen.GenerateOptions{
		EntityID:   args[0],
		Regenerate: generateRegenerate,
		Context:    eventContext(generateTitle, generateType, "cli"),
	})
	if err != nil {
		return errors.Wrap(err, "failed to request report")
	}
	return follow(ctx, h)
}

func eventContext(title, assessmentType, source string) map[string]string {
	out := map[string]string{"source": source}
	if title != "" {
		out["title"] = title
	}
	if assessmentType != "" {
		out["assessmentType"] = assessmentType
	}
	return out
}

// attachOutput subscribes the event printer and the notification bridge
func (a *app) attachOutput() (detach func()) {
	events := a.service.Tracker().Bus()
	unsubscribe := events.Subscribe(func(evt tracker.Event) { printEvent(evt, followJSON) })

	locale := followLocale
	if locale == "" {
		locale = a.cfg.Notify.Locale
	}
	detachBridge := func() {}
	if !followJSON {
		detachBridge = notify.NewBridge(ptermSink{origin: a.cfg.Origin}, locale).Attach(events)
	}
	return func() {
		detachBridge()
		unsubscribe()
	}
}

// follow waits for the job's outcome. Interrupting leaves the job recorded
// as in flight.
func follow(ctx context.Context, h *tracker.Handle) error {
	_, err := h.Wait(ctx)
	if ctx.Err() != nil {
		h.Close()
		return errors.WithHint(errors.New("stopped following the report"),
			"the backend keeps working; run 'reportwatch watch --resume "+h.EntityID+"' to pick it up")
	}
	return timeoutHint(err, h.EntityID)
}

// timeoutHint points at the ready marker when tracking gave up before the backend did
func timeoutHint(err error, entityID string) error {
	if !errors.IsTimeout(err) {
		return err
	}
	return errors.WithHint(err,
		"the report may still be produced; run 'reportwatch status "+entityID+"' later")
}
