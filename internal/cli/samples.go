package cli

import (
	"encoding/json"

	"quiz-attempt-service/internal/authority"
	"quiz-attempt-service/internal/domain"
)

// sampleQuizzes is served when no database is configured and seeded by the
// seed command otherwise.
func sampleQuizzes() map[string]authority.Quiz {
	quiz := authority.Quiz{
		ID:                  "quiz-1",
		Title:               "Everyday English",
		Description:         "One question of every kind.",
		TimeLimitSeconds:    300,
		PassingScorePercent: 60,
		MaxAttempts:         3,
		Questions: []authority.Question{
			{
				Question: domain.Question{
					ID: "q1", Kind: domain.KindSingleChoice, Prompt: "Pick the correct spelling.", Points: 1,
					Content: domain.ChoiceContent{Options: []domain.Option{
						{ID: "a", Text: "recieve"}, {ID: "b", Text: "receive"}, {ID: "c", Text: "receeve"},
					}},
				},
				CorrectAnswer: json.RawMessage(`"b"`),
			},
			{
				Question: domain.Question{
					ID: "q2", Kind: domain.KindMultipleChoice, Prompt: "Which words are verbs?", Points: 2,
					Content: domain.ChoiceContent{Options: []domain.Option{
						{ID: "run", Text: "run"}, {ID: "blue", Text: "blue"}, {ID: "speak", Text: "speak"}, {ID: "table", Text: "table"},
					}},
				},
				CorrectAnswer: json.RawMessage(`["run","speak"]`),
			},
			{
				Question: domain.Question{
					ID: "q3", Kind: domain.KindTrueFalse, Prompt: "\"Fewer\" is used with countable nouns.", Points: 1,
					Content: domain.TrueFalseContent{},
				},
				CorrectAnswer: json.RawMessage(`true`),
			},
			{
				Question: domain.Question{
					ID: "q4", Kind: domain.KindMatching, Prompt: "Match each word to its opposite.", Points: 2,
					Content: domain.MatchingContent{
						Items:   []domain.MatchItem{{ID: "hot", Text: "hot"}, {ID: "early", Text: "early"}},
						Matches: []domain.MatchItem{{ID: "cold", Text: "cold"}, {ID: "late", Text: "late"}},
					},
				},
				CorrectAnswer: json.RawMessage(`{"hot":"cold","early":"late"}`),
			},
			{
				Question: domain.Question{
					ID: "q5", Kind: domain.KindImageMatching, Prompt: "Match each picture to its name.", Points: 2,
					Content: domain.MatchingContent{
						Items: []domain.MatchItem{
							{ID: "img-cat", ImageURL: "https://example.com/img/cat.png"},
							{ID: "img-dog", ImageURL: "https://example.com/img/dog.png"},
						},
						Matches: []domain.MatchItem{{ID: "cat", Text: "cat"}, {ID: "dog", Text: "dog"}},
					},
				},
				CorrectAnswer: json.RawMessage(`[{"key":"img-cat","value":"cat"},{"key":"img-dog","value":"dog"}]`),
			},
			{
				Question: domain.Question{
					ID: "q6", Kind: domain.KindFillBlanks, Prompt: "Complete the sentence.", Points: 1,
					Content: domain.FillBlanksContent{Template: "She ___ to school every day and ___ home at five.", Blanks: 2},
				},
				CorrectAnswer: json.RawMessage(`["goes","comes"]`),
			},
		},
	}
	return map[string]authority.Quiz{quiz.ID: quiz}
}
