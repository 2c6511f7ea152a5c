package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/reportwatch/display"
	"github.com/teranos/reportwatch/frame"
	"github.com/teranos/reportwatch/notify"
	"github.com/teranos/reportwatch/tracker"
)

// printEvent renders one lifecycle event. With jsonOut every event is one
// JSON object per line on stdout.
func printEvent(evt tracker.Event, jsonOut bool) {
	if jsonOut {
		data, err := display.MarshalJSON(evt, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error formatting event: %v\n", err)
			return
		}
		fmt.Println(string(data))
		return
	}

	stamp := evt.At.Format("15:04:05")
	switch evt.Type {
	case tracker.EventOpenStart:
		pterm.Info.Printfln("%s connecting to %s", stamp, evt.URL)
	case tracker.EventOpen:
		pterm.Info.Printfln("%s connected, waiting for the report", stamp)
	case tracker.EventMessage:
		if evt.Terminal {
			return // the notification speaks for terminal frames
		}
		msg := evt.Message
		if msg == "" {
			msg = string(frame.StatusProgress)
		}
		pterm.Printfln("  %s %s", pterm.Gray(stamp), msg)
	case tracker.EventError:
		if evt.Status == frame.StatusTimeout {
			pterm.Warning.Printfln("%s no result in time", stamp)
		} else {
			pterm.Warning.Printfln("%s could not reach the report service", stamp)
		}
	case tracker.EventClose:
		pterm.Warning.Printfln("%s connection closed before the report finished", stamp)
	}
}

// ptermSink shows notifications in the terminal
type ptermSink struct {
	origin string
}

func (s ptermSink) Notify(n notify.Notification) {
	pterm.Println()
	if n.Kind == notify.KindError {
		pterm.Error.WithShowLineNumber(false).Printfln("%s: %s", n.Title, n.Body)
		return
	}
	pterm.Success.Printfln("%s: %s", n.Title, n.Body)
	if n.Link != "" {
		pterm.Printfln("  %s %s%s", n.Action, s.origin, n.Link)
	}
}

func formatAge(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t).Round(time.Second)
	if d < 0 {
		return "in " + (-d).String()
	}
	return d.String() + " ago"
}
