package tracker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/reportwatch/errors"
	"github.com/teranos/reportwatch/frame"
)

func TestEvent_MarshalJSON(t *testing.T) {
	evt := Event{
		Type:     EventMessage,
		EntityID: "a1",
		Context:  map[string]string{"title": "Swing check", "type": "ignored"},
		Terminal: true,
		Status:   frame.StatusSuccess,
		Payload:  map[string]any{"report_id": "r1"},
		At:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(evt)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "message", got["type"], "context never overrides fixed fields")
	assert.Equal(t, "a1", got["assessmentId"])
	assert.Equal(t, "Swing check", got["title"])
	assert.Equal(t, true, got["terminal"])
	assert.Equal(t, "success", got["status"])
	assert.Equal(t, map[string]any{"report_id": "r1"}, got["payload"])
	assert.NotContains(t, got, "message")
}

func TestEvent_MarshalJSON_Lifecycle(t *testing.T) {
	data, err := json.Marshal(Event{Type: EventOpen, EntityID: "a1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"open","assessmentId":"a1"}`, string(data))
}

func TestEvent_ReportID(t *testing.T) {
	assert.Equal(t, "r1", Event{Payload: map[string]any{"report_id": "r1"}}.ReportID())
	assert.Equal(t, "42", Event{Payload: map[string]any{"report_id": float64(42)}}.ReportID())
	assert.Empty(t, Event{}.ReportID())
}

func TestJobError(t *testing.T) {
	err := error(&JobError{Event: Event{Message: "model overloaded"}, Err: errors.ErrGenerationFailed})
	assert.Equal(t, "report generation failed: model overloaded", err.Error())
	assert.True(t, errors.Is(err, errors.ErrGenerationFailed))

	wrapped := errors.Wrap(err, "assessment a1")
	var je *JobError
	require.True(t, errors.As(wrapped, &je))
	assert.Equal(t, "model overloaded", je.Event.Message)
}
