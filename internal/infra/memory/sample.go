package memory

import "quiz-player/internal/domain"

// SampleQuizzes is the demo catalogue used when no Postgres is configured.
func SampleQuizzes() []domain.Quiz {
	idx := func(v int) *int { return &v }
	yes := true
	return []domain.Quiz{
		{
			ID:          1,
			Title:       "Math",
			Description: "Warm-up arithmetic",
			Published:   true,
			Questions: []domain.QuizQuestion{
				{
					ID:    1,
					Order: 1,
					Question: domain.Question{
						ID:      1,
						Type:    domain.QuestionMCQ,
						Text:    "2+2?",
						Content: domain.QuestionContent{Choices: []string{"3", "4", "5", "6"}},
					},
					AnswerKey: domain.AnswerKey{CorrectIndex: idx(1)},
				},
				{
					ID:           2,
					Order:        2,
					TimerSeconds: 15,
					Points:       2,
					Question: domain.Question{
						ID:      2,
						Type:    domain.QuestionMCQ,
						Text:    "7*6?",
						Content: domain.QuestionContent{Choices: []string{"36", "42", "48", "56"}},
					},
					AnswerKey: domain.AnswerKey{CorrectIndex: idx(1)},
				},
				{
					ID:    3,
					Order: 3,
					Question: domain.Question{
						ID:                  3,
						Type:                domain.QuestionTrueFalse,
						Text:                "Zero is an even number.",
						Content:             domain.QuestionContent{Choices: []string{"True", "False"}},
						DefaultTimerSeconds: 10,
					},
					AnswerKey: domain.AnswerKey{IsTrue: &yes},
				},
			},
		},
		{
			ID:        2,
			Title:     "Drafts",
			Published: false,
		},
	}
}
