// Package frame classifies raw report-job frames into one event contract.
//
// The backend is not consistent about how it reports progress: some frames carry
// a "type" tag, others a free-text status/state/result field, numeric codes or
// boolean flags. Normalize folds all of them into a Normalized record so the rest
// of the system switches on Status instead of re-inspecting wire payloads.
package frame

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Status is the outcome class of a frame
type Status string

const (
	StatusProgress Status = "progress"
	StatusSuccess  Status = "success"
	StatusFailure  Status = "failure"
	StatusTimeout  Status = "timeout"
)

// IsTerminal reports whether a frame with this status ends the job
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailure || s == StatusTimeout
}

// Backend type tags recognised before any heuristic runs
const (
	TypeCompleted        = "completed"
	TypeCompletedCompare = "completed_compare"
	TypeError            = "error"
)

// Normalized is the canonical form of one frame
type Normalized struct {
	Terminal bool           `json:"terminal"`
	Status   Status         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`

	// Comparison marks a successful frame that also produced a side-by-side
	// comparison with the previous report.
	Comparison bool `json:"comparison,omitempty"`
}

var (
	candidateFields = []string{"status", "state", "result", "type", "event"}
	messageFields   = []string{"message", "error", "msg", "reason", "detail"}

	successStems = []string{"success", "succeeded", "done", "finished", "complete"}
	timeoutStems = []string{"timeout", "timedout", "timed"}
	failureStems = []string{"fail", "error", "exception"}
)

// Normalize maps an arbitrary frame to a Normalized record. It accepts []byte,
// string, json.RawMessage, map[string]any or any JSON-marshalable value.
// Unparseable input degrades to a progress frame whose payload is {"message": raw}.
// It never panics and never returns an error.
func Normalize(raw any) Normalized {
	obj, text, isText := decode(raw)
	if obj == nil {
		n := Normalized{Status: StatusProgress, Payload: map[string]any{}}
		if isText {
			n.Message = text
			n.Payload["message"] = text
		}
		return n
	}

	n := Normalized{Payload: obj}
	if tag, ok := obj["type"].(string); ok && strings.TrimSpace(tag) != "" {
		n.Status, n.Comparison = classifyTag(tag)
	} else {
		n.Status = classifySignals(obj)
	}
	n.Terminal = n.Status.IsTerminal()
	n.Message = extractMessage(obj)
	return n
}

// decode returns the frame as an object, or as text when it is not an object.
func decode(raw any) (obj map[string]any, text string, isText bool) {
	var data []byte
	switch v := raw.(type) {
	case nil:
		return nil, "", false
	case map[string]any:
		return v, "", false
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	case string:
		data = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Sprint(v), true
		}
		data = b
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, string(data), true
	}
	switch p := parsed.(type) {
	case map[string]any:
		return p, "", false
	case string:
		return nil, p, true
	case nil:
		return nil, "", false
	default:
		return nil, string(data), true
	}
}

func classifyTag(tag string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case TypeCompleted:
		return StatusSuccess, false
	case TypeCompletedCompare:
		return StatusSuccess, true
	case TypeError:
		return StatusFailure, false
	default:
		return StatusProgress, false
	}
}

// signals collects evidence from every candidate field; the strongest wins.
type signals struct {
	success, failure, timeout bool
}

func (s signals) status() Status {
	switch {
	case s.timeout:
		return StatusTimeout
	case s.failure:
		return StatusFailure
	case s.success:
		return StatusSuccess
	default:
		return StatusProgress
	}
}

func classifySignals(obj map[string]any) Status {
	var s signals
	for _, field := range candidateFields {
		s.observe(obj[field])
	}
	if code, ok := obj["code"]; ok {
		s.observeCode(code)
	}
	for _, flag := range []string{"success", "ok"} {
		if b, ok := obj[flag].(bool); ok {
			if b {
				s.success = true
			} else {
				s.failure = true
			}
		}
	}
	return s.status()
}

func (s *signals) observe(v any) {
	switch val := v.(type) {
	case string:
		s.observeText(val)
	case bool:
		if val {
			s.success = true
		} else {
			s.failure = true
		}
	case float64, int, int64, json.Number:
		s.observeCode(val)
	}
}

func (s *signals) observeText(text string) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		switch {
		case w == "ok" || hasAnyPrefix(w, successStems):
			s.success = true
		case hasAnyPrefix(w, timeoutStems):
			s.timeout = true
		case hasAnyPrefix(w, failureStems):
			s.failure = true
		}
	}
}

func (s *signals) observeCode(v any) {
	var code float64
	switch c := v.(type) {
	case float64:
		code = c
	case int:
		code = float64(c)
	case int64:
		code = float64(c)
	case json.Number:
		f, err := c.Float64()
		if err != nil {
			return
		}
		code = f
	default:
		return
	}
	switch {
	case code == 0 || (code >= 200 && code < 300):
		s.success = true
	case code == 408 || code == 504:
		s.timeout = true
	default:
		s.failure = true
	}
}

func hasAnyPrefix(word string, stems []string) bool {
	for _, stem := range stems {
		if strings.HasPrefix(word, stem) {
			return true
		}
	}
	return false
}

func extractMessage(obj map[string]any) string {
	for _, field := range messageFields {
		switch v := obj[field].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case map[string]any:
			// {"error": {"message": "..."}}
			if m, ok := v["message"].(string); ok && strings.TrimSpace(m) != "" {
				return m
			}
		}
	}
	return ""
}
