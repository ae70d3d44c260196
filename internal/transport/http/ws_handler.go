package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/codec"
	"quiz-attempt-service/internal/domain"
)

// WSHandler serves one attempt screen per websocket connection.
type WSHandler struct {
	service  *app.AttemptService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger.With("component", "ws"),
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
	Index int             `json:"index"`
	Value json.RawMessage `json:"value"`
}

type indexPayload struct {
	Index int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type tickPayload struct {
	Remaining int `json:"remaining"`
}

// ServeWS upgrades HTTP requests to websockets and binds the connection to a
// fresh attempt machine. With attemptId set the screen opens a finished
// attempt for review instead.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	attemptID := r.URL.Query().Get("attemptId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	// server timeouts must not cut a screen short
	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})

	updates := make(chan app.Event, 16)
	observer := app.ObserverFunc(func(ev app.Event) { offer(updates, ev) })

	var (
		screenID string
		machine  *app.Machine
	)
	if attemptID != "" {
		screenID, machine, err = h.service.OpenReview(r.Context(), quizID, attemptID, app.WithObserver(observer))
	} else {
		screenID, machine, err = h.service.Open(r.Context(), quizID, app.WithObserver(observer))
	}
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: toErrorPayload(err)})
		return
	}
	defer h.service.Release(screenID)
	logger := h.logger.With("screen_id", screenID, "quiz_id", quizID)
	logger.Info("screen opened")

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Warn("ws write error", "error", err)
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev := <-updates:
				select {
				case send <- eventMessage(ev):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	push := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	push(outboundMessage[any]{Type: "state", Payload: newStateView(machine.State(), "")})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.service.Touch(r.Context(), screenID); err != nil {
			logger.Debug("liveness refresh failed", "error", err)
		}
		if inbound.Type == "state" {
			if !push(outboundMessage[any]{Type: "state", Payload: newStateView(machine.State(), "")}) {
				break
			}
			continue
		}
		if err := h.dispatch(r.Context(), machine, inbound); err != nil {
			logger.Debug("command rejected", "type", inbound.Type, "error", err)
			if !push(outboundMessage[any]{Type: "error", Payload: toErrorPayload(err)}) {
				break
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	logger.Info("screen closed")
}

var errUnsupportedMessage = errors.New("unsupported message type")

func (h *WSHandler) dispatch(ctx context.Context, m *app.Machine, in inboundMessage) error {
	switch in.Type {
	case "start":
		return m.Start(ctx)
	case "answer":
		var p answerPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return errors.New("invalid answer payload")
		}
		return setAnswer(m, p)
	case "clear":
		var p indexPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return errors.New("invalid clear payload")
		}
		return m.ClearAnswer(p.Index)
	case "goto":
		var p indexPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return errors.New("invalid goto payload")
		}
		return m.GoTo(p.Index)
	case "next":
		return m.Next()
	case "previous":
		return m.Previous()
	case "submit":
		return m.Submit(ctx)
	case "review":
		return m.StartReview()
	case "restart":
		return m.Restart()
	}
	return errUnsupportedMessage
}

// setAnswer decodes the wire value against the question's kind, so matching
// answers may arrive either as an object or as a list of pairs.
func setAnswer(m *app.Machine, p answerPayload) error {
	questions := m.State().Questions
	if p.Index < 0 || p.Index >= len(questions) {
		return m.SetAnswer(p.Index, nil)
	}
	answer, err := codec.DecodeAnswer(questions[p.Index].Kind, p.Value)
	if err != nil {
		return err
	}
	return m.SetAnswer(p.Index, answer)
}

// offer drops the oldest pending event rather than blocking the machine.
func offer(ch chan app.Event, ev app.Event) {
	select {
	case ch <- ev:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

func eventMessage(ev app.Event) outboundMessage[any] {
	if ev.Type == app.EventTick {
		return outboundMessage[any]{Type: "tick", Payload: tickPayload{Remaining: ev.State.RemainingSeconds}}
	}
	if ev.Type == app.EventSubmissionFailed && ev.Err != nil {
		return outboundMessage[any]{Type: "error", Payload: toErrorPayload(ev.Err)}
	}
	return outboundMessage[any]{Type: "state", Payload: newStateView(ev.State, ev.Type)}
}

func toErrorPayload(err error) errorPayload {
	return errorPayload{Message: err.Error(), Retryable: domain.IsRetryable(err)}
}
