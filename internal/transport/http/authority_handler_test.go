package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"quiz-attempt-service/internal/codec"
	"quiz-attempt-service/internal/domain"
)

func TestAuthorityAPIRoundTrip(t *testing.T) {
	server, _ := newTestServer(t)

	var ov domain.Overview
	doJSON(t, http.MethodGet, server.URL+"/api/quizzes/quiz-1/overview", nil, http.StatusOK, &ov)
	if ov.QuestionCount != 2 || ov.Title != "Warmup" {
		t.Fatalf("unexpected overview %+v", ov)
	}

	var ticket domain.AttemptTicket
	doJSON(t, http.MethodPost, server.URL+"/api/quizzes/quiz-1/attempts", nil, http.StatusCreated, &ticket)
	if ticket.AttemptID == "" || len(ticket.Questions) != 2 {
		t.Fatalf("unexpected ticket %+v", ticket)
	}

	req := codec.SubmitRequest{
		QuizID: "quiz-1",
		Answers: []codec.Record{
			{QuestionID: "q1", QuestionKind: domain.KindSingleChoice, Answer: json.RawMessage(`"o2"`)},
		},
	}
	var verdict codec.VerdictPayload
	doJSON(t, http.MethodPost, server.URL+"/api/attempts/"+ticket.AttemptID+"/submit", req, http.StatusOK, &verdict)
	if verdict.Score != 1 || verdict.MaxScore != 2 || !verdict.Passed {
		t.Fatalf("unexpected verdict %+v", verdict)
	}

	var failure ErrorResponse
	doJSON(t, http.MethodPost, server.URL+"/api/attempts/"+ticket.AttemptID+"/submit", req, http.StatusConflict, &failure)
	if failure.Code != "attempt_already_submitted" {
		t.Fatalf("unexpected error %+v", failure)
	}

	var replay codec.ReplayPayload
	doJSON(t, http.MethodGet, server.URL+"/api/attempts/"+ticket.AttemptID+"/replay", nil, http.StatusOK, &replay)
	if len(replay.UserAnswers) != 1 || replay.Verdict.Score != 1 {
		t.Fatalf("unexpected replay %+v", replay)
	}
}

func TestAuthorityAPIErrors(t *testing.T) {
	server, _ := newTestServer(t)

	var failure ErrorResponse
	doJSON(t, http.MethodGet, server.URL+"/api/quizzes/missing/overview", nil, http.StatusNotFound, &failure)
	if failure.Code != "quiz_not_found" {
		t.Fatalf("unexpected error %+v", failure)
	}

	bad := map[string]any{"answers": []map[string]any{{"question_id": "q1"}}}
	doJSON(t, http.MethodPost, server.URL+"/api/attempts/any/submit", bad, http.StatusBadRequest, &failure)
	if failure.Code != "invalid_payload" {
		t.Fatalf("unexpected error %+v", failure)
	}

	doJSON(t, http.MethodGet, server.URL+"/api/attempts/unknown/replay", nil, http.StatusNotFound, &failure)
}

func doJSON(t *testing.T, method, url string, body any, wantStatus int, out any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d", method, url, wantStatus, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
}
