package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-attempt-service/internal/domain"
)

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Kind: domain.KindSingleChoice, Content: domain.ChoiceContent{Options: []domain.Option{{ID: "A"}, {ID: "B"}}}},
		{ID: "q2", Kind: domain.KindTrueFalse, Content: domain.TrueFalseContent{}},
		{ID: "q3", Kind: domain.KindMultipleChoice, Content: domain.ChoiceContent{Options: []domain.Option{{ID: "x"}, {ID: "y"}}}},
		{ID: "q4", Kind: domain.KindMatching, Content: domain.MatchingContent{
			Items:   []domain.MatchItem{{ID: "a"}, {ID: "b"}},
			Matches: []domain.MatchItem{{ID: "1"}, {ID: "2"}},
		}},
	}
}

func TestEncodeOmitsUnanswered(t *testing.T) {
	questions := sampleQuestions()
	answers := []domain.Answer{
		domain.MustAnswer(domain.KindSingleChoice, "A"),
		domain.MustAnswer(domain.KindTrueFalse, true),
		nil,
		nil,
	}

	records, err := Encode(questions, answers)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "q1", records[0].QuestionID)
	assert.Equal(t, domain.KindSingleChoice, records[0].QuestionKind)
	assert.JSONEq(t, `"A"`, string(records[0].Answer))
	assert.Equal(t, "q2", records[1].QuestionID)
	assert.JSONEq(t, `true`, string(records[1].Answer))
}

func TestEncodeFlattensMatching(t *testing.T) {
	questions := sampleQuestions()
	answers := make([]domain.Answer, len(questions))
	answers[3] = domain.MustAnswer(domain.KindMatching, map[string]string{"b": "2", "a": "1"})

	records, err := Encode(questions, answers)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.JSONEq(t, `[{"key":"a","value":"1"},{"key":"b","value":"2"}]`, string(records[0].Answer))
}

func TestEncodeRejectsLengthAndKindMismatch(t *testing.T) {
	questions := sampleQuestions()
	_, err := Encode(questions, make([]domain.Answer, 1))
	assert.Error(t, err)

	answers := make([]domain.Answer, len(questions))
	answers[0] = domain.MustAnswer(domain.KindTrueFalse, false)
	_, err = Encode(questions, answers)
	assert.ErrorIs(t, err, domain.ErrShapeMismatch)
}

func TestDecodeRecordsRestoresAnswers(t *testing.T) {
	questions := sampleQuestions()
	answers := []domain.Answer{
		domain.MustAnswer(domain.KindSingleChoice, "B"),
		nil,
		domain.MustAnswer(domain.KindMultipleChoice, []string{"y", "x"}),
		domain.MustAnswer(domain.KindMatching, map[string]string{"a": "2"}),
	}
	records, err := Encode(questions, answers)
	require.NoError(t, err)

	restored, problems := DecodeRecords(questions, append(records, Record{QuestionID: "nope", QuestionKind: domain.KindTrueFalse, Answer: json.RawMessage(`true`)}))
	require.Len(t, problems, 1)
	require.Len(t, restored, len(questions))
	for i, q := range questions {
		if answers[i] == nil {
			assert.Nil(t, restored[i])
			continue
		}
		assert.True(t, domain.Equivalent(q.Kind, restored[i], answers[i]), "question %s", q.ID)
	}
}

func TestDecodeRecordsRejectsForeignIDs(t *testing.T) {
	questions := sampleQuestions()
	records := []Record{
		{QuestionID: "q1", QuestionKind: domain.KindSingleChoice, Answer: json.RawMessage(`"C"`)},
		{QuestionID: "q3", QuestionKind: domain.KindMultipleChoice, Answer: json.RawMessage(`["x","x"]`)},
		{QuestionID: "q4", QuestionKind: domain.KindMatching, Answer: json.RawMessage(`[{"key":"zz","value":"9"}]`)},
	}

	restored, problems := DecodeRecords(questions, records)
	require.Len(t, problems, 3)
	for _, p := range problems {
		assert.ErrorIs(t, p, domain.ErrShapeMismatch)
	}
	for i := range questions {
		assert.Nil(t, restored[i])
	}
}

func TestDecodeVerdictComplete(t *testing.T) {
	questions := sampleQuestions()
	payload := VerdictPayload{
		AttemptID:  "att-1",
		Score:      3,
		MaxScore:   4,
		Percentage: 75,
		Passed:     true,
		Answers: []CanonicalRecord{
			{QuestionID: "q1", CorrectAnswer: json.RawMessage(`"A"`)},
			{QuestionID: "q2", CorrectAnswer: json.RawMessage(`1`)},
			{QuestionID: "q3", CorrectAnswer: json.RawMessage(`["x","y"]`)},
			{QuestionID: "q4", CorrectAnswer: json.RawMessage(`{"a":"1","b":"2"}`)},
		},
	}

	decoded := DecodeVerdict(questions, payload)
	require.NoError(t, decoded.Err())
	assert.Empty(t, decoded.Missing)
	assert.Len(t, decoded.Canonical, len(questions))
	assert.Equal(t, 75.0, decoded.Verdict.Percentage)
	assert.True(t, decoded.Canonical[1].(domain.TrueFalse).Value())

	flags := domain.CorrectnessFlags(questions, []domain.Answer{
		domain.MustAnswer(domain.KindSingleChoice, "A"),
		domain.MustAnswer(domain.KindTrueFalse, true),
		nil,
		domain.MustAnswer(domain.KindMatching, []domain.MatchPair{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}),
	}, decoded.Canonical)
	assert.Equal(t, []bool{true, true, false, true}, flags)
}

func TestDecodeVerdictMissingCanonical(t *testing.T) {
	questions := sampleQuestions()
	payload := VerdictPayload{Answers: []CanonicalRecord{
		{QuestionID: "q1", CorrectAnswer: json.RawMessage(`"A"`)},
		{QuestionID: "q3", CorrectAnswer: json.RawMessage(`{"bad":`)},
	}}

	decoded := DecodeVerdict(questions, payload)
	assert.Equal(t, []string{"q2", "q3", "q4"}, decoded.Missing)
	assert.ErrorIs(t, decoded.Err(), domain.ErrIncompleteCanonicalData)

	answers := make([]domain.Answer, len(questions))
	answers[1] = domain.MustAnswer(domain.KindTrueFalse, true)
	flags := domain.CorrectnessFlags(questions, answers, decoded.Canonical)
	assert.Equal(t, []bool{false, false, false, false}, flags)
}
