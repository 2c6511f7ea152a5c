// Package notify turns terminal job events into user-facing notifications.
//
// Backend messages and payloads never reach the notification text: every
// failure, whatever its cause, is reported with the same localized copy.
package notify

import (
	"net/url"
	"strings"
	"time"

	"github.com/teranos/reportwatch/tracker"
)

// Kind is the notification's visual treatment
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is a ready-to-render toast
type Notification struct {
	EntityID   string
	Kind       Kind
	Title      string
	Body       string
	Action     string // call-to-action label, empty without a link
	Link       string // deep link to the report, empty on failure
	Comparison bool
	StartedAt  time.Time
}

// Build returns the notification for evt. Only terminal events produce one.
func Build(evt tracker.Event, locale string) (Notification, bool) {
	if !evt.Terminal {
		return Notification{}, false
	}
	c := CatalogFor(locale)
	n := Notification{
		EntityID:  evt.EntityID,
		StartedAt: evt.StartedAt,
	}

	if !evt.IsSuccess() {
		n.Kind = KindError
		n.Title = c.GenerationFailed.Title
		n.Body = c.GenerationFailed.Body
		return n, true
	}

	msg := c.ReportReady
	if evt.Comparison {
		msg = c.ComparisonReady
		n.Comparison = true
	}
	n.Kind = KindSuccess
	n.Title = msg.Title
	n.Body = render(msg, evt.Context["title"])
	n.Action = msg.Action
	n.Link = ReportLink(evt.EntityID, evt.ReportID())
	return n, true
}

func render(m Message, title string) string {
	title = strings.TrimSpace(title)
	if title == "" || m.Body == "" {
		if m.BodyUntitled != "" {
			return m.BodyUntitled
		}
		return strings.ReplaceAll(m.Body, "{title}", "")
	}
	return strings.ReplaceAll(m.Body, "{title}", title)
}

// ReportLink is the in-app path of a finished report
func ReportLink(entityID, reportID string) string {
	if reportID != "" {
		return "/reports/" + url.PathEscape(reportID)
	}
	return "/assessments/" + url.PathEscape(entityID) + "/report"
}
