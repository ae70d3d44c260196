package http

import (
	"encoding/json"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/codec"
	"quiz-attempt-service/internal/domain"
)

// stateView is the websocket projection of app.State.
type stateView struct {
	Event            app.EventType     `json:"event,omitempty"`
	Status           app.Status        `json:"status"`
	QuizID           string            `json:"quizId"`
	AttemptID        string            `json:"attemptId,omitempty"`
	Overview         *domain.Overview  `json:"overview,omitempty"`
	Questions        []domain.Question `json:"questions"`
	Answers          []json.RawMessage `json:"answers"`
	Cursor           int               `json:"cursor"`
	TimeLimitSeconds int               `json:"timeLimitSeconds"`
	RemainingSeconds int               `json:"remainingSeconds"`
	Expired          bool              `json:"expired"`
	StartedAt        *time.Time        `json:"startedAt,omitempty"`
	Progress         progressView      `json:"progress"`
	Verdict          *domain.Verdict   `json:"verdict,omitempty"`
	Correctness      []bool            `json:"correctness,omitempty"`
	MissingCanonical []string          `json:"missingCanonical,omitempty"`
	CanStart         bool              `json:"canStart"`
	CanSubmit        bool              `json:"canSubmit"`
	InputsDisabled   bool              `json:"inputsDisabled"`
}

type progressView struct {
	Total       int   `json:"total"`
	Answered    []int `json:"answered"`
	AllAnswered bool  `json:"allAnswered"`
}

func newStateView(st app.State, event app.EventType) stateView {
	v := stateView{
		Event:            event,
		Status:           st.Status,
		QuizID:           st.QuizID,
		AttemptID:        st.AttemptID,
		Overview:         st.Overview,
		Questions:        st.Questions,
		Answers:          make([]json.RawMessage, len(st.Answers)),
		Cursor:           st.Cursor,
		TimeLimitSeconds: st.TimeLimitSeconds,
		RemainingSeconds: st.RemainingSeconds,
		Expired:          st.Expired,
		Progress: progressView{
			Total:       st.Progress.Total,
			Answered:    st.Progress.Answered,
			AllAnswered: st.Progress.AllAnswered,
		},
		Verdict:          st.Verdict,
		Correctness:      st.Correctness,
		MissingCanonical: st.MissingCanonical,
		CanStart:         st.CanStart,
		CanSubmit:        st.CanSubmit,
		InputsDisabled:   st.InputsDisabled,
	}
	if v.Questions == nil {
		v.Questions = []domain.Question{}
	}
	if !st.StartedAt.IsZero() {
		started := st.StartedAt
		v.StartedAt = &started
	}
	for i, a := range st.Answers {
		raw, err := codec.EncodeAnswer(a)
		if err != nil {
			raw = json.RawMessage("null")
		}
		v.Answers[i] = raw
	}
	return v
}
