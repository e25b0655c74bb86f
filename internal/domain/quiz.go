package domain

import (
	"sort"
	"time"
)

// AnswerKey is the private scoring data of a question.
type AnswerKey struct {
	CorrectIndex *int  `json:"correct_index,omitempty"`
	IsTrue       *bool `json:"is_true,omitempty"`
}

// QuizQuestion places a question in a quiz with optional overrides.
type QuizQuestion struct {
	ID           int64     `json:"id"`
	Order        int       `json:"order"`
	TimerSeconds int       `json:"timer_seconds,omitempty"` // overrides the question default when > 0
	Points       int       `json:"points,omitempty"`        // overrides the question default when > 0
	Question     Question  `json:"question"`
	AnswerKey    AnswerKey `json:"answer_key"`
}

// EffectiveTimer resolves the timer: quiz override, question default, then DefaultTimerSeconds.
func (q QuizQuestion) EffectiveTimer() int {
	if q.TimerSeconds > 0 {
		return q.TimerSeconds
	}
	if q.Question.DefaultTimerSeconds > 0 {
		return q.Question.DefaultTimerSeconds
	}
	return DefaultTimerSeconds
}

// EffectivePoints resolves points the same way as EffectiveTimer.
func (q QuizQuestion) EffectivePoints() int {
	if q.Points > 0 {
		return q.Points
	}
	if q.Question.DefaultPoints > 0 {
		return q.Question.DefaultPoints
	}
	return DefaultPoints
}

// Public strips the answer key.
func (q QuizQuestion) Public() *QuestionInstance {
	return &QuestionInstance{
		ID:              q.ID,
		Order:           q.Order,
		EffectivePoints: q.EffectivePoints(),
		EffectiveTimer:  q.EffectiveTimer(),
		Question:        q.Question,
	}
}

// Correct evaluates a choice index against the answer key. A nil index is never correct.
func (q QuizQuestion) Correct(index *int) bool {
	if index == nil {
		return false
	}
	switch q.Question.Type {
	case QuestionTrueFalse:
		if q.AnswerKey.IsTrue == nil {
			return false
		}
		// choices are ["True", "False"]
		return (*index == 0) == *q.AnswerKey.IsTrue
	default:
		return q.AnswerKey.CorrectIndex != nil && *q.AnswerKey.CorrectIndex == *index
	}
}

// Quiz is a collection of ordered questions.
type Quiz struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Published   bool           `json:"is_published"`
	Questions   []QuizQuestion `json:"quiz_questions"`
}

// Ordered returns the questions sorted by Order.
func (q Quiz) Ordered() []QuizQuestion {
	out := make([]QuizQuestion, len(q.Questions))
	copy(out, q.Questions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Listing returns the lobby listing entry for the quiz.
func (q Quiz) Listing() PublishedQuiz {
	return PublishedQuiz{
		ID:            q.ID,
		Title:         q.Title,
		Description:   q.Description,
		QuestionCount: len(q.Questions),
	}
}

// Answer records one submission inside a lobby.
type Answer struct {
	Order          int   `json:"order"`
	Index          *int  `json:"index"`
	Correct        bool  `json:"correct"`
	Points         int   `json:"points"`
	ResponseTimeMS int64 `json:"response_time_ms"`
}

// Lobby is one user's solo run of a quiz on the backend.
type Lobby struct {
	ID                string        `json:"id"`
	Code              string        `json:"code"`
	QuizID            int64         `json:"quiz_id"`
	HostID            string        `json:"host_id"`
	Status            SessionStatus `json:"status"`
	Score             int           `json:"score"`
	CreatedAt         time.Time     `json:"created_at"`
	StartedAt         time.Time     `json:"started_at"`
	EndedAt           *time.Time    `json:"ended_at,omitempty"`
	CurrentOrder      *int          `json:"current_order,omitempty"`
	QuestionStartedAt *time.Time    `json:"question_started_at,omitempty"`
	Answers           []Answer      `json:"answers,omitempty"`
}

// Answered reports whether the question at order was already answered.
func (l Lobby) Answered(order int) bool {
	for _, a := range l.Answers {
		if a.Order == order {
			return true
		}
	}
	return false
}
