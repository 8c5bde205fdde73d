package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quickfire-quiz-service/internal/app"
)

// WSHandler streams a live session over a websocket: the client plays
// the quiz through inbound messages and receives scoring results plus
// server-pushed session events on the same connection.
type WSHandler struct {
	sessions *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(sessions *app.SessionService) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wsAnswerPayload struct {
	QuestionID        string    `json:"questionId"`
	OptionID          string    `json:"optionId"`
	ClientTime        time.Time `json:"clientTime"`
	ClientRemainingMS int64     `json:"clientRemainingMs"`
}

type wsPowerupPayload struct {
	PowerupID         string `json:"powerupId"`
	QuestionID        string `json:"questionId,omitempty"`
	ClientRemainingMS int64  `json:"clientRemainingMs"`
}

type wsCompletePayload struct {
	Reason string `json:"reason"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs the session read loop until the
// client disconnects or the session reaches a terminal state.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sess, err := h.sessions.Session(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	events, cancel, err := h.sessions.Subscribe(sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	// single writer goroutine, gorilla connections do not allow
	// concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: event.Type, Payload: event.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "session", Payload: sess}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload wsAnswerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			res, err := h.sessions.SubmitAnswer(r.Context(), app.SubmitInput{
				SessionID:       sessionID,
				QuestionID:      payload.QuestionID,
				OptionID:        payload.OptionID,
				ClientTime:      payload.ClientTime,
				ClientRemaining: time.Duration(payload.ClientRemainingMS) * time.Millisecond,
			})
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			resp := answerResponse{
				Correct:         res.Correct,
				CanonicalOption: res.CanonicalOption,
				Breakdown:       res.Breakdown,
				TimePenaltyMS:   res.TimePenalty.Milliseconds(),
				ShieldConsumed:  res.ShieldConsumed,
				Streak:          res.Streak,
				RemainingMS:     res.Remaining.Milliseconds(),
				Completion:      toCompletionView(res.Completion),
			}
			if res.NextQuestion != nil {
				view := toQuestionView(*res.NextQuestion)
				resp.NextQuestion = &view
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: resp}
		case "powerup":
			var payload wsPowerupPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid powerup payload"}}
				continue
			}
			res, err := h.sessions.ActivatePowerup(r.Context(), app.ActivateInput{
				SessionID:       sessionID,
				PowerupID:       payload.PowerupID,
				QuestionID:      payload.QuestionID,
				ClientRemaining: time.Duration(payload.ClientRemainingMS) * time.Millisecond,
			})
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			resp := activateResponse{
				Activation:     res.Activation,
				RemovedOptions: res.RemovedOptions,
				RemainingMS:    res.Remaining.Milliseconds(),
				Completion:     toCompletionView(res.Completion),
			}
			if res.Effect != nil {
				resp.Effect = res.Effect.Kind()
			}
			if res.NextQuestion != nil {
				view := toQuestionView(*res.NextQuestion)
				resp.NextQuestion = &view
			}
			send <- outboundMessage[any]{Type: "powerupResult", Payload: resp}
		case "complete":
			var payload wsCompletePayload
			_ = json.Unmarshal(inbound.Payload, &payload)
			res, err := h.sessions.Complete(r.Context(), sessionID, payload.Reason)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "completed", Payload: toCompletionView(&res)}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}
