package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnswerAcceptsKindShapes(t *testing.T) {
	cases := []struct {
		kind  QuestionKind
		value any
	}{
		{KindSingleChoice, "A"},
		{KindMultipleChoice, []string{"b", "a"}},
		{KindMultipleChoice, []any{"a"}},
		{KindTrueFalse, false},
		{KindMatching, map[string]string{"a": "1"}},
		{KindImageMatching, map[string]any{"img-1": "cat"}},
		{KindMatching, []MatchPair{{Key: "a", Value: "1"}}},
		{KindFillBlanks, []string{"x", ""}},
	}
	for _, tc := range cases {
		a, err := NewAnswer(tc.kind, tc.value)
		require.NoError(t, err, "kind %s", tc.kind)
		require.NotNil(t, a, "kind %s", tc.kind)
		assert.Equal(t, tc.kind, a.Kind())
	}
}

func TestNewAnswerRejectsMismatchedShapes(t *testing.T) {
	cases := []struct {
		kind  QuestionKind
		value any
	}{
		{KindSingleChoice, true},
		{KindMultipleChoice, true},
		{KindMultipleChoice, []any{"a", 3.0}},
		{KindTrueFalse, "true"},
		{KindMatching, []string{"a"}},
		{KindMatching, map[string]any{"a": 1.0}},
		{KindMatching, map[string]string{"a": ""}},
		{KindMatching, map[string]any{"a": "", "b": "2"}},
		{KindMultipleChoice, []string{"c", "a", "c"}},
		{KindMatching, []MatchPair{{Key: "a", Value: "1"}, {Key: "a", Value: "2"}}},
		{KindFillBlanks, "x"},
		{KindSingleChoice, MustAnswer(KindTrueFalse, true)},
		{KindImageMatching, MustAnswer(KindMatching, map[string]string{"a": "1"})},
	}
	for _, tc := range cases {
		a, err := NewAnswer(tc.kind, tc.value)
		require.ErrorIs(t, err, ErrShapeMismatch, "kind %s value %#v", tc.kind, tc.value)
		assert.Nil(t, a)
	}
}

func TestNewAnswerEmptyValuesAreUnanswered(t *testing.T) {
	for _, tc := range []struct {
		kind  QuestionKind
		value any
	}{
		{KindSingleChoice, nil},
		{KindSingleChoice, ""},
		{KindMultipleChoice, []string{}},
		{KindMatching, map[string]string{}},
		{KindFillBlanks, []string{" ", ""}},
	} {
		a, err := NewAnswer(tc.kind, tc.value)
		require.NoError(t, err)
		assert.Nil(t, a, "kind %s", tc.kind)
		assert.False(t, IsAnswered(a))
	}
}

func TestMultipleChoiceIsASet(t *testing.T) {
	a := MustAnswer(KindMultipleChoice, []string{"c", "a", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, a.(MultipleChoice).Options())
}

func TestAnswerAccessorsReturnCopies(t *testing.T) {
	blanks := MustAnswer(KindFillBlanks, []string{"x", "y"}).(FillBlanks)
	got := blanks.Blanks()
	got[0] = "changed"
	assert.Equal(t, []string{"x", "y"}, blanks.Blanks())

	m := MustAnswer(KindMatching, map[string]string{"a": "1"}).(Matching)
	pairs := m.Pairs()
	pairs["a"] = "2"
	assert.Equal(t, map[string]string{"a": "1"}, m.Pairs())
}

func TestQuestionJSONRoundTripKeepsContent(t *testing.T) {
	raw := `{"id":"q1","kind":"image-matching","prompt":"Match","items":[{"id":"i1","image_url":"http://x/cat.png"}],"matches":[{"id":"cat","text":"Cat"}]}`
	var q Question
	require.NoError(t, json.Unmarshal([]byte(raw), &q))
	require.NoError(t, q.Validate())
	content, ok := q.Content.(MatchingContent)
	require.True(t, ok)
	assert.Equal(t, "http://x/cat.png", content.Items[0].ImageURL)

	out, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestQuestionValidate(t *testing.T) {
	bad := []Question{
		{ID: "", Kind: KindTrueFalse, Content: TrueFalseContent{}},
		{ID: "q", Kind: "essay", Content: TrueFalseContent{}},
		{ID: "q", Kind: KindSingleChoice, Content: TrueFalseContent{}},
		{ID: "q", Kind: KindSingleChoice, Content: ChoiceContent{}},
		{ID: "q", Kind: KindMultipleChoice, Content: ChoiceContent{Options: []Option{{ID: "a"}, {ID: "a"}}}},
		{ID: "q", Kind: KindFillBlanks, Content: FillBlanksContent{}},
	}
	for _, q := range bad {
		assert.Error(t, q.Validate(), "%+v", q)
	}
	assert.NoError(t, Question{ID: "q", Kind: KindFillBlanks, Content: FillBlanksContent{Blanks: 2}}.Validate())
}

func TestNewAnswerForChecksContent(t *testing.T) {
	choice := Question{ID: "c", Kind: KindMultipleChoice,
		Content: ChoiceContent{Options: []Option{{ID: "a"}, {ID: "b"}}}}
	single := Question{ID: "s", Kind: KindSingleChoice,
		Content: ChoiceContent{Options: []Option{{ID: "a"}, {ID: "b"}}}}
	matching := Question{ID: "m", Kind: KindMatching, Content: MatchingContent{
		Items:   []MatchItem{{ID: "a"}, {ID: "b"}},
		Matches: []MatchItem{{ID: "1"}, {ID: "2"}},
	}}
	blanks := Question{ID: "f", Kind: KindFillBlanks, Content: FillBlanksContent{Blanks: 3}}

	accepted := []struct {
		q     Question
		value any
	}{
		{choice, []string{"b", "a"}},
		{single, "a"},
		{matching, map[string]string{"a": "2"}},
		{matching, map[string]string{"a": "1", "b": "2"}},
		{blanks, []string{"x", "", "z"}},
	}
	for _, tc := range accepted {
		a, err := NewAnswerFor(tc.q, tc.value)
		require.NoError(t, err, "question %s value %#v", tc.q.ID, tc.value)
		assert.NotNil(t, a)
	}

	rejected := []struct {
		q     Question
		value any
	}{
		{choice, []string{"a", "zz"}},
		{choice, []string{"a", "a"}},
		{single, "c"},
		{matching, map[string]string{"zz": "1"}},
		{matching, map[string]string{"a": "9"}},
		{matching, map[string]any{"a": "", "b": "2"}},
		{blanks, []string{"x", "y"}},
		{blanks, []string{"x", "y", "z", "w", "v"}},
		{blanks, []string{"", ""}},
		{blanks, true},
	}
	for _, tc := range rejected {
		a, err := NewAnswerFor(tc.q, tc.value)
		require.ErrorIs(t, err, ErrShapeMismatch, "question %s value %#v", tc.q.ID, tc.value)
		assert.Nil(t, a)
	}

	a, err := NewAnswerFor(blanks, []string{" ", "", ""})
	require.NoError(t, err)
	assert.Nil(t, a, "all blanks empty is unanswered")
}
