package app

import "quiz-attempt-service/internal/domain"

// Progress is derived from the answer array and never mutated on its own.
type Progress struct {
	Total       int
	Answered    []int
	AllAnswered bool
}

// TrackProgress computes which questions hold an answer.
func TrackProgress(answers []domain.Answer) Progress {
	p := Progress{Total: len(answers), Answered: make([]int, 0, len(answers))}
	for i, a := range answers {
		if domain.IsAnswered(a) {
			p.Answered = append(p.Answered, i)
		}
	}
	p.AllAnswered = p.Total > 0 && len(p.Answered) == p.Total
	return p
}

// IsAnswered reports whether index i is in the answered set.
func (p Progress) IsAnswered(i int) bool {
	for _, idx := range p.Answered {
		if idx == i {
			return true
		}
	}
	return false
}
