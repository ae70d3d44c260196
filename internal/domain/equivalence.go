package domain

import (
	"sort"
	"strings"
)

// Equivalent reports whether candidate matches the canonical answer for a
// question of the given kind. It never mutates its inputs. A nil candidate or
// canonical value is never correct, and neither is a value of another kind.
func Equivalent(kind QuestionKind, candidate, canonical Answer) bool {
	if candidate == nil || canonical == nil {
		return false
	}
	if candidate.Kind() != kind || canonical.Kind() != kind {
		return false
	}

	switch c := candidate.(type) {
	case SingleChoice:
		return c.option == canonical.(SingleChoice).option
	case MultipleChoice:
		return equalSorted(c.options, canonical.(MultipleChoice).options)
	case TrueFalse:
		return c.value == canonical.(TrueFalse).value
	case Matching:
		return equalPairs(c.SortedPairs(), canonical.(Matching).SortedPairs())
	case FillBlanks:
		return equalBlanks(c.blanks, canonical.(FillBlanks).blanks)
	}
	return false
}

// CorrectnessFlags compares every answer to its canonical counterpart.
// The result always has len(questions) entries; a missing canonical answer
// yields false.
func CorrectnessFlags(questions []Question, answers, canonical []Answer) []bool {
	flags := make([]bool, len(questions))
	for i, q := range questions {
		var a, c Answer
		if i < len(answers) {
			a = answers[i]
		}
		if i < len(canonical) {
			c = canonical[i]
		}
		flags[i] = Equivalent(q.Kind, a, c)
	}
	return flags
}

// equalSorted compares two sets after sorting copies of both sides.
func equalSorted(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func equalPairs(a, b []MatchPair) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// equalBlanks compares blanks position by position. Surrounding whitespace is
// the only thing ignored; case and inner spacing are significant.
func equalBlanks(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if strings.TrimSpace(a[i]) != strings.TrimSpace(b[i]) {
			return false
		}
	}
	return true
}

// NewCanonicalAnswer builds an authoritative answer. It differs from NewAnswer
// only for true-false, where truthy and falsy non-boolean values are coerced.
func NewCanonicalAnswer(kind QuestionKind, value any) (Answer, error) {
	if kind == KindTrueFalse && value != nil {
		if _, isAnswer := value.(Answer); !isAnswer {
			return TrueFalse{value: truthy(value)}, nil
		}
	}
	return NewAnswer(kind, value)
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "0", "false", "f", "no", "n":
			return false
		}
		return true
	case float64:
		return v != 0
	case float32:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}
	return value != nil
}
