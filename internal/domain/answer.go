package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Answer is a user's answer to one question. A nil Answer means unanswered.
// The set of implementations is closed: SingleChoice, MultipleChoice,
// TrueFalse, Matching and FillBlanks.
type Answer interface {
	Kind() QuestionKind
	empty() bool
}

// SingleChoice holds one option identifier.
type SingleChoice struct{ option string }

// MultipleChoice holds a sorted set of option identifiers.
type MultipleChoice struct{ options []string }

// TrueFalse holds a boolean.
type TrueFalse struct{ value bool }

// Matching maps item (or image) identifiers to match identifiers.
type Matching struct {
	kind  QuestionKind
	pairs map[string]string
}

// FillBlanks holds one string per blank, by position.
type FillBlanks struct{ blanks []string }

// MatchPair is the flattened form of one Matching entry.
type MatchPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (SingleChoice) Kind() QuestionKind   { return KindSingleChoice }
func (MultipleChoice) Kind() QuestionKind { return KindMultipleChoice }
func (TrueFalse) Kind() QuestionKind      { return KindTrueFalse }
func (m Matching) Kind() QuestionKind     { return m.kind }
func (FillBlanks) Kind() QuestionKind     { return KindFillBlanks }

func (a SingleChoice) empty() bool   { return a.option == "" }
func (a MultipleChoice) empty() bool { return len(a.options) == 0 }
func (TrueFalse) empty() bool        { return false }
func (a Matching) empty() bool       { return len(a.pairs) == 0 }
func (a FillBlanks) empty() bool {
	for _, b := range a.blanks {
		if strings.TrimSpace(b) != "" {
			return false
		}
	}
	return true
}

func (a SingleChoice) Option() string { return a.option }

func (a MultipleChoice) Options() []string { return append([]string(nil), a.options...) }

func (a TrueFalse) Value() bool { return a.value }

// Pairs returns a copy of the mapping.
func (a Matching) Pairs() map[string]string {
	out := make(map[string]string, len(a.pairs))
	for k, v := range a.pairs {
		out[k] = v
	}
	return out
}

// SortedPairs returns the mapping as pairs ordered by key.
func (a Matching) SortedPairs() []MatchPair {
	out := make([]MatchPair, 0, len(a.pairs))
	for k, v := range a.pairs {
		out = append(out, MatchPair{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (a FillBlanks) Blanks() []string { return append([]string(nil), a.blanks...) }

// IsAnswered reports whether a holds a usable value.
func IsAnswered(a Answer) bool {
	return a != nil && !a.empty()
}

// NewAnswer builds an Answer for kind from a loosely typed value, as decoded
// from JSON or passed by a caller. A nil value yields a nil Answer. A value
// whose shape does not fit kind fails with ErrShapeMismatch. Values that carry
// nothing (empty set, empty mapping, all blanks empty) also yield nil.
func NewAnswer(kind QuestionKind, value any) (Answer, error) {
	a, err := buildAnswer(kind, value)
	if err != nil || a == nil || a.empty() {
		return nil, err
	}
	return a, nil
}

// NewAnswerFor is NewAnswer checked against the question's content: option
// ids must exist, matching keys and values must name the question's items and
// matches, and fill-blanks must hold exactly one string per blank.
func NewAnswerFor(q Question, value any) (Answer, error) {
	a, err := buildAnswer(q.Kind, value)
	if err != nil || a == nil {
		return nil, err
	}
	if err := q.Admits(a); err != nil {
		return nil, err
	}
	if a.empty() {
		return nil, nil
	}
	return a, nil
}

func buildAnswer(kind QuestionKind, value any) (Answer, error) {
	if value == nil {
		return nil, nil
	}
	if a, ok := value.(Answer); ok {
		if a.Kind() != kind {
			return nil, shapeMismatch(kind, value)
		}
		return a, nil
	}

	switch kind {
	case KindSingleChoice:
		return newSingleChoice(value)
	case KindMultipleChoice:
		return newMultipleChoice(value)
	case KindTrueFalse:
		return newTrueFalse(value)
	case KindMatching, KindImageMatching:
		return newMatching(kind, value)
	case KindFillBlanks:
		return newFillBlanks(value)
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrShapeMismatch, kind)
}

// MustAnswer is NewAnswer for values known to be well shaped.
func MustAnswer(kind QuestionKind, value any) Answer {
	a, err := NewAnswer(kind, value)
	if err != nil {
		panic(err)
	}
	return a
}

func newSingleChoice(value any) (Answer, error) {
	s, ok := value.(string)
	if !ok {
		return nil, shapeMismatch(KindSingleChoice, value)
	}
	return SingleChoice{option: s}, nil
}

func newMultipleChoice(value any) (Answer, error) {
	items, ok := stringList(value)
	if !ok {
		return nil, shapeMismatch(KindMultipleChoice, value)
	}
	set := make(map[string]struct{}, len(items))
	options := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			return nil, shapeMismatch(KindMultipleChoice, value)
		}
		if _, dup := set[item]; dup {
			return nil, fmt.Errorf("%w: duplicate option %q", ErrShapeMismatch, item)
		}
		set[item] = struct{}{}
		options = append(options, item)
	}
	sort.Strings(options)
	return MultipleChoice{options: options}, nil
}

func newTrueFalse(value any) (Answer, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, shapeMismatch(KindTrueFalse, value)
	}
	return TrueFalse{value: b}, nil
}

func newMatching(kind QuestionKind, value any) (Answer, error) {
	pairs := make(map[string]string)
	put := func(k, v string) bool {
		if k == "" || v == "" {
			return false
		}
		if _, dup := pairs[k]; dup {
			return false
		}
		pairs[k] = v
		return true
	}
	switch v := value.(type) {
	case map[string]string:
		for k, val := range v {
			if !put(k, val) {
				return nil, shapeMismatch(kind, value)
			}
		}
	case map[string]any:
		for k, raw := range v {
			s, ok := raw.(string)
			if !ok || !put(k, s) {
				return nil, shapeMismatch(kind, value)
			}
		}
	case []MatchPair:
		for _, p := range v {
			if !put(p.Key, p.Value) {
				return nil, shapeMismatch(kind, value)
			}
		}
	default:
		return nil, shapeMismatch(kind, value)
	}
	return Matching{kind: kind, pairs: pairs}, nil
}

func newFillBlanks(value any) (Answer, error) {
	blanks, ok := stringList(value)
	if !ok {
		return nil, shapeMismatch(KindFillBlanks, value)
	}
	return FillBlanks{blanks: blanks}, nil
}

func stringList(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func shapeMismatch(kind QuestionKind, value any) error {
	return fmt.Errorf("%w: %s answer cannot hold %T", ErrShapeMismatch, kind, value)
}
