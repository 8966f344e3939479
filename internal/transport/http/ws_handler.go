package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"medquiz-engine/internal/app"
	"medquiz-engine/internal/domain"
)

// WSHandler runs one quiz attempt per connection: the client starts a
// session, answers and advances over the socket, and receives countdown
// ticks and the final results as server pushes.
type WSHandler struct {
	service  *app.QuizService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
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

type answerPayload struct {
	QuestionIndex int `json:"questionIndex"`
	ChoiceIndex   int `json:"choiceIndex"`
}

// questionView is a Question with the correct index stripped; clients
// never see answers for questions still in play.
type questionView struct {
	ID       string            `json:"id"`
	Prompt   string            `json:"prompt"`
	Options  []string          `json:"options"`
	Category string            `json:"category"`
	Level    domain.Difficulty `json:"difficulty"`
}

type startedPayload struct {
	SessionID        string         `json:"sessionId"`
	Mode             domain.Mode    `json:"mode"`
	QuestionCount    int            `json:"questionCount"`
	TimeLimitSeconds int            `json:"timeLimitSeconds,omitempty"`
	Questions        []questionView `json:"questions"`
}

type resultsPayload struct {
	Result  domain.SessionResult `json:"result"`
	Stats   domain.UserStats     `json:"stats"`
	Expired bool                 `json:"expired,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorFor(err error) errorPayload {
	code := "internal"
	switch {
	case errors.Is(err, domain.ErrValidation):
		code = "validation"
	case errors.Is(err, domain.ErrConflict):
		code = "conflict"
	case errors.Is(err, domain.ErrNotFound):
		code = "not_found"
	case errors.Is(err, domain.ErrPersistence):
		code = "persistence"
	}
	return errorPayload{Code: code, Message: err.Error()}
}

// ServeWS upgrades the request and wires the connection into the engine.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	var pumps sync.WaitGroup

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Warn("ws write error", "err", err)
				return
			}
		}
	}()

	// A disconnect mid-attempt abandons the session: the countdown stops
	// and nothing is scored.
	defer func() {
		if session, ok := h.service.Session(userID); ok && session.Status() != domain.StatusResults {
			h.service.Abandon(r.Context(), userID)
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			var req app.ConfigRequest
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &req); err != nil {
					send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "validation", Message: "invalid start payload"}}
					continue
				}
			}
			session, err := h.service.StartSession(r.Context(), userID, req)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorFor(err)}
				continue
			}
			// queue the started frame before the pump so no tick can
			// precede it on the wire; session events buffer meanwhile
			send <- outboundMessage[any]{Type: "started", Payload: startedView(session)}
			pumps.Add(1)
			go func() {
				defer pumps.Done()
				h.pumpEvents(userID, session, send, closeSignals)
			}()
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "validation", Message: "invalid answer payload"}}
				continue
			}
			if err := h.service.SubmitAnswer(r.Context(), userID, payload.QuestionIndex, payload.ChoiceIndex); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorFor(err)}
			}
		case "advance":
			// Completion results arrive through the event pump.
			if _, _, err := h.service.Advance(r.Context(), userID); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorFor(err)}
			}
		case "leaderboard":
			lb, err := h.service.Leaderboard(r.Context())
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorFor(err)}
				continue
			}
			send <- outboundMessage[any]{Type: "leaderboard", Payload: lb}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "validation", Message: "unsupported message type"}}
		}
	}

	// every pump must observe closeSignals before send closes, or a late
	// tick could land on a closed channel
	close(closeSignals)
	pumps.Wait()
	close(send)
	<-writerDone
}

// pumpEvents forwards one session's tick stream and terminal result to the
// writer. It exits on the completed event or when the connection closes.
func (h *WSHandler) pumpEvents(userID string, session *app.Session, send chan<- outboundMessage[any], closeSignals <-chan struct{}) {
	for {
		select {
		case <-closeSignals:
			return
		case ev, ok := <-session.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case "tick":
				select {
				case send <- outboundMessage[any]{Type: "tick", Payload: map[string]int{"remainingSeconds": ev.RemainingSeconds}}:
				case <-closeSignals:
					return
				}
			case "completed":
				stats, err := h.service.UserStats(context.Background(), userID)
				if err != nil {
					h.logger.Warn("stats read after completion failed", "userId", userID, "err", err)
				}
				payload := resultsPayload{Result: *ev.Result, Stats: stats, Expired: ev.Expired}
				select {
				case send <- outboundMessage[any]{Type: "results", Payload: payload}:
				case <-closeSignals:
				}
				return
			}
		}
	}
}

func startedView(session *app.Session) startedPayload {
	cfg := session.Config()
	questions := session.Questions()
	views := make([]questionView, len(questions))
	for i, q := range questions {
		views[i] = questionView{
			ID:       q.ID,
			Prompt:   q.Prompt,
			Options:  q.Options,
			Category: q.Category,
			Level:    q.Difficulty,
		}
	}
	return startedPayload{
		SessionID:        session.ID(),
		Mode:             cfg.Mode,
		QuestionCount:    cfg.QuestionCount,
		TimeLimitSeconds: cfg.TimeLimitSeconds,
		Questions:        views,
	}
}
