// Package codec converts answers to and from the scoring backend's wire format.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"quiz-attempt-service/internal/domain"
)

// Record is one answered question in a submission.
type Record struct {
	QuestionID   string              `json:"question_id" binding:"required"`
	QuestionKind domain.QuestionKind `json:"question_kind" binding:"required"`
	Answer       json.RawMessage     `json:"answer" binding:"required"`
}

// SubmitRequest is the body sent to the backend on submission.
type SubmitRequest struct {
	AttemptID        string   `json:"attempt_id"`
	QuizID           string   `json:"quiz_id"`
	TimeSpentSeconds int      `json:"time_spent_seconds" binding:"gte=0"`
	Answers          []Record `json:"answers" binding:"dive"`
}

// CanonicalRecord carries the authoritative answer for one question.
type CanonicalRecord struct {
	QuestionID    string          `json:"question_id"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
}

// VerdictPayload is the backend's response to a submission.
type VerdictPayload struct {
	AttemptID        string            `json:"attempt_id"`
	Score            float64           `json:"score"`
	MaxScore         float64           `json:"max_score"`
	Percentage       float64           `json:"percentage"`
	Passed           bool              `json:"passed"`
	TotalTimeSeconds int               `json:"total_time"`
	TimeSpentSeconds int               `json:"time_spent_seconds"`
	SubmittedAt      time.Time         `json:"submitted_at"`
	Answers          []CanonicalRecord `json:"answers"`
}

// ReplayPayload is what the backend returns when a finished attempt is reopened.
type ReplayPayload struct {
	AttemptID   string            `json:"attempt_id"`
	QuizID      string            `json:"quiz_id"`
	Questions   []domain.Question `json:"questions"`
	UserAnswers []Record          `json:"user_answers"`
	Verdict     VerdictPayload    `json:"verdict"`
}

// Decoded is a verdict normalized against the attempt's questions.
type Decoded struct {
	Verdict domain.Verdict
	// Canonical is parallel to the questions; nil where the backend sent nothing usable.
	Canonical []domain.Answer
	// Missing lists question ids whose canonical answer was absent or malformed.
	Missing []string
}

// Encode builds submission records for every answered question, in question
// order. Unanswered questions produce no record.
func Encode(questions []domain.Question, answers []domain.Answer) ([]Record, error) {
	if len(questions) != len(answers) {
		return nil, fmt.Errorf("encode: %d questions but %d answers", len(questions), len(answers))
	}
	records := make([]Record, 0, len(answers))
	for i, q := range questions {
		a := answers[i]
		if !domain.IsAnswered(a) {
			continue
		}
		if a.Kind() != q.Kind {
			return nil, fmt.Errorf("encode question %s: %w", q.ID, domain.ErrShapeMismatch)
		}
		raw, err := EncodeAnswer(a)
		if err != nil {
			return nil, fmt.Errorf("encode question %s: %w", q.ID, err)
		}
		records = append(records, Record{QuestionID: q.ID, QuestionKind: q.Kind, Answer: raw})
	}
	return records, nil
}

// EncodeAnswer renders one answer in wire form. Matching mappings become an
// array of {key, value} pairs; every other kind keeps its natural shape.
func EncodeAnswer(a domain.Answer) (json.RawMessage, error) {
	var v any
	switch x := a.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case domain.SingleChoice:
		v = x.Option()
	case domain.MultipleChoice:
		v = x.Options()
	case domain.TrueFalse:
		v = x.Value()
	case domain.Matching:
		v = x.SortedPairs()
	case domain.FillBlanks:
		v = x.Blanks()
	default:
		return nil, fmt.Errorf("%w: unsupported answer %T", domain.ErrShapeMismatch, a)
	}
	return json.Marshal(v)
}

// DecodeAnswer parses a user answer in wire form.
func DecodeAnswer(kind domain.QuestionKind, raw json.RawMessage) (domain.Answer, error) {
	v, err := decodeValue(kind, raw)
	if err != nil {
		return nil, err
	}
	return domain.NewAnswer(kind, v)
}

// DecodeAnswerFor parses a user answer in wire form and checks it against the
// question's content.
func DecodeAnswerFor(q domain.Question, raw json.RawMessage) (domain.Answer, error) {
	v, err := decodeValue(q.Kind, raw)
	if err != nil {
		return nil, err
	}
	return domain.NewAnswerFor(q, v)
}

// DecodeCanonical parses an authoritative answer in wire form.
func DecodeCanonical(kind domain.QuestionKind, raw json.RawMessage) (domain.Answer, error) {
	v, err := decodeValue(kind, raw)
	if err != nil {
		return nil, err
	}
	return domain.NewCanonicalAnswer(kind, v)
}

func decodeValue(kind domain.QuestionKind, raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s answer: %w", kind, err)
	}
	if kind == domain.KindMatching || kind == domain.KindImageMatching {
		if list, ok := v.([]any); ok {
			return pairsFromList(kind, list)
		}
	}
	return v, nil
}

func pairsFromList(kind domain.QuestionKind, list []any) ([]domain.MatchPair, error) {
	pairs := make([]domain.MatchPair, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s pair is %T", domain.ErrShapeMismatch, kind, item)
		}
		key, kok := obj["key"].(string)
		value, vok := obj["value"].(string)
		if !kok || !vok {
			return nil, fmt.Errorf("%w: %s pair needs string key and value", domain.ErrShapeMismatch, kind)
		}
		pairs = append(pairs, domain.MatchPair{Key: key, Value: value})
	}
	return pairs, nil
}

// DecodeRecords maps submission records back onto the question list. Records
// for unknown questions or with bad shapes are reported and skipped.
func DecodeRecords(questions []domain.Question, records []Record) ([]domain.Answer, []error) {
	index := indexQuestions(questions)
	answers := make([]domain.Answer, len(questions))
	var problems []error
	for _, r := range records {
		i, ok := index[r.QuestionID]
		if !ok {
			problems = append(problems, fmt.Errorf("record for unknown question %s", r.QuestionID))
			continue
		}
		a, err := DecodeAnswerFor(questions[i], r.Answer)
		if err != nil {
			problems = append(problems, fmt.Errorf("question %s: %w", r.QuestionID, err))
			continue
		}
		answers[i] = a
	}
	return answers, problems
}

// DecodeVerdict normalizes a verdict payload. A question without a usable
// canonical answer is listed in Missing and left nil, so its correctness
// resolves to false instead of failing the whole review.
func DecodeVerdict(questions []domain.Question, payload VerdictPayload) Decoded {
	out := Decoded{
		Verdict: domain.Verdict{
			AttemptID:        payload.AttemptID,
			Score:            payload.Score,
			MaxScore:         payload.MaxScore,
			Percentage:       payload.Percentage,
			Passed:           payload.Passed,
			TotalTimeSeconds: payload.TotalTimeSeconds,
			TimeSpentSeconds: payload.TimeSpentSeconds,
			SubmittedAt:      payload.SubmittedAt,
		},
		Canonical: make([]domain.Answer, len(questions)),
	}

	index := indexQuestions(questions)
	for _, rec := range payload.Answers {
		i, ok := index[rec.QuestionID]
		if !ok {
			continue
		}
		a, err := DecodeCanonical(questions[i].Kind, rec.CorrectAnswer)
		if err != nil {
			continue
		}
		out.Canonical[i] = a
	}
	for i, q := range questions {
		if out.Canonical[i] == nil {
			out.Missing = append(out.Missing, q.ID)
		}
	}
	return out
}

// Err reports ErrIncompleteCanonicalData when some canonical answers are missing.
func (d Decoded) Err() error {
	if len(d.Missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrIncompleteCanonicalData, d.Missing)
}

func indexQuestions(questions []domain.Question) map[string]int {
	index := make(map[string]int, len(questions))
	for i, q := range questions {
		index[q.ID] = i
	}
	return index
}
