package mockbackend

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teranos/reportwatch/errors"
	"github.com/teranos/reportwatch/logger"
)

// triggerResponse mirrors what the real backend returns
type triggerResponse struct {
	AssessmentID    string `json:"assessment_id"`
	WSPath          string `json:"ws_path"`
	JobID           string `json:"job_id"`
	ProtocolVersion string `json:"protocol_version"`
}

func (s *Server) handleTrigger(regenerate bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		auth := r.Header.Get("Authorization")
		key := r.Header.Get("Idempotency-Key")

		s.mu.Lock()
		token, status, version := s.token, s.triggerStatus, s.protocolVersion
		s.mu.Unlock()

		if token != "" && auth != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if status != 0 {
			writeError(w, status, "report generation unavailable")
			return
		}

		jobID := s.newJobID(key)
		s.mu.Lock()
		s.triggers = append(s.triggers, TriggerRequest{
			EntityID:       id,
			Regenerate:     regenerate,
			Authorization:  auth,
			IdempotencyKey: key,
			JobID:          jobID,
		})
		s.mu.Unlock()

		s.logger.Infow("Report generation requested",
			logger.FieldAssessmentID, id,
			logger.FieldJobID, jobID,
			"regenerate", regenerate)

		writeJSON(w, http.StatusAccepted, triggerResponse{
			AssessmentID:    id,
			WSPath:          "/ws/assessments/" + id + "/report",
			JobID:           jobID,
			ProtocolVersion: version,
		})
	}
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	query := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	conn := &Connection{EntityID: id, Path: r.URL.Path, Query: query}
	s.mu.Lock()
	s.connections = append(s.connections, conn)
	token := s.token
	s.mu.Unlock()

	script := s.scriptFor(id)
	if script.RejectStatus != 0 {
		http.Error(w, http.StatusText(script.RejectStatus), script.RejectStatus)
		return
	}
	if token != "" && query["token"] != token {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("Mock socket upgrade failed", logger.FieldError, err)
		return
	}
	defer ws.Close()

	// Reader: observe the client's close frame
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				var ce *websocket.CloseError
				if errors.As(err, &ce) {
					s.mu.Lock()
					conn.CloseCode, conn.CloseReason = ce.Code, ce.Text
					s.mu.Unlock()
				}
				s.mu.Lock()
				snapshot := *conn
				s.mu.Unlock()
				select {
				case s.closed <- &snapshot:
				default:
				}
				return
			}
		}
	}()

	for _, f := range script.Frames {
		if script.FrameDelay > 0 {
			select {
			case <-time.After(script.FrameDelay):
			case <-clientGone:
				return
			}
		}
		if err := ws.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			return
		}
	}

	if script.Hold {
		<-clientGone
		return
	}
	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	select {
	case <-clientGone:
	case <-time.After(time.Second):
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(message)})
}
