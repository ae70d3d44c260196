package domain

import (
	"encoding/json"
	"fmt"
)

// QuestionKind enumerates the supported answer shapes.
type QuestionKind string

const (
	KindSingleChoice   QuestionKind = "single-choice"
	KindMultipleChoice QuestionKind = "multiple-choice"
	KindTrueFalse      QuestionKind = "true-false"
	KindMatching       QuestionKind = "matching"
	KindImageMatching  QuestionKind = "image-matching"
	KindFillBlanks     QuestionKind = "fill-blanks"
)

// Kinds lists every QuestionKind in a stable order.
func Kinds() []QuestionKind {
	return []QuestionKind{
		KindSingleChoice,
		KindMultipleChoice,
		KindTrueFalse,
		KindMatching,
		KindImageMatching,
		KindFillBlanks,
	}
}

// Valid reports whether k is a known kind.
func (k QuestionKind) Valid() bool {
	switch k {
	case KindSingleChoice, KindMultipleChoice, KindTrueFalse, KindMatching, KindImageMatching, KindFillBlanks:
		return true
	}
	return false
}

// Option is a selectable choice.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// MatchItem is one side of a matching pair. ImageURL is set for image-matching items.
type MatchItem struct {
	ID       string `json:"id"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// QuestionContent is the kind-specific payload of a Question.
type QuestionContent interface {
	contentKind() []QuestionKind
}

// ChoiceContent backs single-choice and multiple-choice questions.
type ChoiceContent struct {
	Options []Option
}

// TrueFalseContent backs true-false questions.
type TrueFalseContent struct{}

// MatchingContent backs matching and image-matching questions.
type MatchingContent struct {
	Items   []MatchItem
	Matches []MatchItem
}

// FillBlanksContent backs fill-blanks questions.
type FillBlanksContent struct {
	Template string
	Blanks   int
}

func (ChoiceContent) contentKind() []QuestionKind {
	return []QuestionKind{KindSingleChoice, KindMultipleChoice}
}
func (TrueFalseContent) contentKind() []QuestionKind { return []QuestionKind{KindTrueFalse} }
func (MatchingContent) contentKind() []QuestionKind {
	return []QuestionKind{KindMatching, KindImageMatching}
}
func (FillBlanksContent) contentKind() []QuestionKind { return []QuestionKind{KindFillBlanks} }

// Question is immutable once fetched.
type Question struct {
	ID      string
	Kind    QuestionKind
	Prompt  string
	Points  int
	Content QuestionContent
}

// Validate checks that the content payload matches the kind.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("question without id")
	}
	if !q.Kind.Valid() {
		return fmt.Errorf("question %s: unknown kind %q", q.ID, q.Kind)
	}
	if q.Content == nil {
		return fmt.Errorf("question %s: missing content", q.ID)
	}
	allowed := false
	for _, k := range q.Content.contentKind() {
		if k == q.Kind {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("question %s: content %T does not fit kind %s", q.ID, q.Content, q.Kind)
	}
	switch c := q.Content.(type) {
	case ChoiceContent:
		if len(c.Options) == 0 {
			return fmt.Errorf("question %s: no options", q.ID)
		}
		if dup := firstDuplicate(optionIDs(c.Options)); dup != "" {
			return fmt.Errorf("question %s: duplicate option %q", q.ID, dup)
		}
	case MatchingContent:
		if len(c.Items) == 0 || len(c.Matches) == 0 {
			return fmt.Errorf("question %s: matching needs items and matches", q.ID)
		}
		if dup := firstDuplicate(itemIDs(c.Items)); dup != "" {
			return fmt.Errorf("question %s: duplicate item %q", q.ID, dup)
		}
	case FillBlanksContent:
		if c.Blanks <= 0 {
			return fmt.Errorf("question %s: fill-blanks needs at least one blank", q.ID)
		}
	}
	return nil
}

// Admits reports whether a fits this question's content. A nil answer always
// fits; anything else must carry the question's kind and only name ids the
// question offers.
func (q Question) Admits(a Answer) error {
	if a == nil {
		return nil
	}
	if a.Kind() != q.Kind {
		return shapeMismatch(q.Kind, a)
	}
	switch c := q.Content.(type) {
	case ChoiceContent:
		options := idSet(optionIDs(c.Options))
		var chosen []string
		switch v := a.(type) {
		case SingleChoice:
			if v.option != "" {
				chosen = []string{v.option}
			}
		case MultipleChoice:
			chosen = v.options
		}
		for _, id := range chosen {
			if _, ok := options[id]; !ok {
				return fmt.Errorf("%w: question %s has no option %q", ErrShapeMismatch, q.ID, id)
			}
		}
	case MatchingContent:
		m, ok := a.(Matching)
		if !ok {
			return shapeMismatch(q.Kind, a)
		}
		items := idSet(itemIDs(c.Items))
		matches := idSet(itemIDs(c.Matches))
		for k, v := range m.pairs {
			if _, ok := items[k]; !ok {
				return fmt.Errorf("%w: question %s has no item %q", ErrShapeMismatch, q.ID, k)
			}
			if _, ok := matches[v]; !ok {
				return fmt.Errorf("%w: question %s has no match %q", ErrShapeMismatch, q.ID, v)
			}
		}
	case FillBlanksContent:
		fb, ok := a.(FillBlanks)
		if !ok {
			return shapeMismatch(q.Kind, a)
		}
		if n := len(fb.blanks); n != c.Blanks {
			return fmt.Errorf("%w: question %s has %d blanks, got %d", ErrShapeMismatch, q.ID, c.Blanks, n)
		}
	}
	return nil
}

// questionWire is the flat JSON form shared by the backend and the websocket.
type questionWire struct {
	ID       string       `json:"id"`
	Kind     QuestionKind `json:"kind"`
	Prompt   string       `json:"prompt"`
	Points   int          `json:"points,omitempty"`
	Options  []Option     `json:"options,omitempty"`
	Items    []MatchItem  `json:"items,omitempty"`
	Matches  []MatchItem  `json:"matches,omitempty"`
	Template string       `json:"template,omitempty"`
	Blanks   int          `json:"blanks,omitempty"`
}

func (q Question) MarshalJSON() ([]byte, error) {
	w := questionWire{ID: q.ID, Kind: q.Kind, Prompt: q.Prompt, Points: q.Points}
	switch c := q.Content.(type) {
	case ChoiceContent:
		w.Options = c.Options
	case MatchingContent:
		w.Items = c.Items
		w.Matches = c.Matches
	case FillBlanksContent:
		w.Template = c.Template
		w.Blanks = c.Blanks
	}
	return json.Marshal(w)
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var w questionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Question{ID: w.ID, Kind: w.Kind, Prompt: w.Prompt, Points: w.Points}
	switch w.Kind {
	case KindSingleChoice, KindMultipleChoice:
		out.Content = ChoiceContent{Options: w.Options}
	case KindTrueFalse:
		out.Content = TrueFalseContent{}
	case KindMatching, KindImageMatching:
		out.Content = MatchingContent{Items: w.Items, Matches: w.Matches}
	case KindFillBlanks:
		out.Content = FillBlanksContent{Template: w.Template, Blanks: w.Blanks}
	default:
		return fmt.Errorf("question %s: unknown kind %q", w.ID, w.Kind)
	}
	*q = out
	return nil
}

func optionIDs(options []Option) []string {
	ids := make([]string, len(options))
	for i, o := range options {
		ids[i] = o.ID
	}
	return ids
}

func itemIDs(items []MatchItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func firstDuplicate(ids []string) string {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return id
		}
		seen[id] = struct{}{}
	}
	return ""
}
