package domain

import (
	"math"
	"time"
)

// SessionStatus is the lifecycle state of a lobby as reported by the state endpoint.
type SessionStatus string

const (
	StatusRunning SessionStatus = "running"
	StatusEnded   SessionStatus = "ended"
)

// SubmissionStatus is the outcome reported by the submit endpoint.
type SubmissionStatus string

const (
	SubmissionFinished     SubmissionStatus = "finished"
	SubmissionNextQuestion SubmissionStatus = "next_question"
)

// QuestionType mirrors the backend question kinds.
type QuestionType string

const (
	QuestionMCQ       QuestionType = "mcq"
	QuestionTrueFalse QuestionType = "true_false"
)

const (
	// DefaultTimerSeconds applies when neither the quiz nor the question sets a timer.
	DefaultTimerSeconds = 20
	// DefaultPoints applies when neither the quiz nor the question sets points.
	DefaultPoints = 1
)

// QuestionContent holds the ordered choices; a choice's position is its submit index.
type QuestionContent struct {
	Choices []string `json:"choices"`
}

// Question is the player-facing question definition. It never carries the answer key.
type Question struct {
	ID                  int64           `json:"id"`
	Type                QuestionType    `json:"type"`
	Text                string          `json:"text"`
	Content             QuestionContent `json:"content"`
	DefaultTimerSeconds int             `json:"default_timer_seconds,omitempty"`
	DefaultPoints       int             `json:"default_points,omitempty"`
}

// QuestionInstance pairs a question with its session-specific timer and points.
type QuestionInstance struct {
	ID              int64    `json:"id"`
	Order           int      `json:"order"`
	EffectivePoints int      `json:"effective_points"`
	EffectiveTimer  int      `json:"effective_timer"`
	Question        Question `json:"question"`
}

// SessionState is one snapshot of a quiz-taking session.
type SessionState struct {
	Status    SessionStatus     `json:"status"`
	LobbyID   string            `json:"lobby_id,omitempty"`
	QuizTitle string            `json:"quiz_title,omitempty"`
	Score     int               `json:"score"`
	TimeLeft  float64           `json:"time_left"`
	Question  *QuestionInstance `json:"question"`
	Detail    string            `json:"detail,omitempty"`
}

// Running reports whether the session accepts answers.
func (s SessionState) Running() bool {
	return s.Status == StatusRunning
}

// Choices returns the choices of the active question, if any.
func (s SessionState) Choices() []string {
	if s.Question == nil {
		return nil
	}
	return s.Question.Question.Content.Choices
}

// WholeSeconds converts a server time_left into the local clock value: ceil, clamped at zero.
func WholeSeconds(timeLeft float64) int {
	if math.IsNaN(timeLeft) || timeLeft <= 0 {
		return 0
	}
	return int(math.Ceil(timeLeft))
}

// AnswerPayload is the submit body. A nil Index is a timeout / no-answer submission.
type AnswerPayload struct {
	Index *int `json:"index"`
}

// SubmissionResult is the submit response.
type SubmissionResult struct {
	Status          SubmissionStatus `json:"status"`
	Score           int              `json:"score"`
	ParticipationID int64            `json:"participation_id,omitempty"`
}

// Finished reports whether the session concluded with this submission.
func (r SubmissionResult) Finished() bool {
	return r.Status == SubmissionFinished
}

// JoinResult is returned when a solo lobby is started.
type JoinResult struct {
	LobbyID string `json:"lobby_id"`
	Code    string `json:"code,omitempty"`
}

// Participation is the completed record of one run through a quiz.
type Participation struct {
	ID          int64     `json:"id"`
	QuizID      int64     `json:"quiz"`
	QuizTitle   string    `json:"quiz_title"`
	FinalScore  int       `json:"final_score"`
	CompletedAt time.Time `json:"completed_at"`
	UserID      string    `json:"-"`
}

// PublishedQuiz is a lobby listing entry.
type PublishedQuiz struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	QuestionCount int    `json:"question_count"`
}

// LobbyEventType names the pushes sent over the lobby WebSocket.
type LobbyEventType string

const (
	EventQuestionStarted LobbyEventType = "question_started"
	EventLobbyEnded      LobbyEventType = "lobby_ended"
)

// LobbyEvent tells subscribers that the lobby state changed and should be re-fetched.
type LobbyEvent struct {
	Type    LobbyEventType `json:"type"`
	LobbyID string         `json:"lobby_id"`
	Order   int            `json:"order,omitempty"`
	At      time.Time      `json:"at"`
}
