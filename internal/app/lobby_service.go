package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-player/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// LobbyRepository abstracts how lobbies are stored (in-memory, Redis, etc).
// Update must apply fn atomically with respect to other updates of the same lobby.
type LobbyRepository interface {
	Create(ctx context.Context, lobby domain.Lobby) error
	Get(ctx context.Context, lobbyID string) (domain.Lobby, error)
	Update(ctx context.Context, lobbyID string, fn func(*domain.Lobby) error) (domain.Lobby, error)
}

// ParticipationRepository stores completed runs.
type ParticipationRepository interface {
	Create(ctx context.Context, p domain.Participation) (domain.Participation, error)
	Get(ctx context.Context, id int64) (domain.Participation, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Participation, error)
}

// EventBus fans lobby events out to WebSocket subscribers.
type EventBus interface {
	Publish(ctx context.Context, event domain.LobbyEvent) error
	Subscribe(ctx context.Context, lobbyID string) (<-chan domain.LobbyEvent, func(), error)
}

const (
	detailNotActive   = "Lobby is not active."
	detailNoQuestions = "Quiz has no questions."
	codeAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// LobbyService contains the solo quiz use cases. It is the authority on
// timing and scoring; clients only ever display what it reports.
type LobbyService struct {
	quizzes        QuizRepository
	lobbies        LobbyRepository
	participations ParticipationRepository
	events         EventBus
	logger         *zap.Logger
	now            func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewLobbyService(quizzes QuizRepository, lobbies LobbyRepository, participations ParticipationRepository, events EventBus, logger *zap.Logger) *LobbyService {
	return NewLobbyServiceWithClock(quizzes, lobbies, participations, events, logger, time.Now)
}

// NewLobbyServiceWithClock allows deterministic timing in tests.
func NewLobbyServiceWithClock(quizzes QuizRepository, lobbies LobbyRepository, participations ParticipationRepository, events EventBus, logger *zap.Logger, now func() time.Time) *LobbyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LobbyService{
		quizzes:        quizzes,
		lobbies:        lobbies,
		participations: participations,
		events:         events,
		logger:         logger,
		now:            now,
		rnd:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// PublishedQuizzes lists the quizzes a user can start.
func (s *LobbyService) PublishedQuizzes(ctx context.Context) ([]domain.PublishedQuiz, error) {
	quizzes, err := s.quizzes.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PublishedQuiz, 0, len(quizzes))
	for _, q := range quizzes {
		if q.Published {
			out = append(out, q.Listing())
		}
	}
	return out, nil
}

// StartSoloQuiz creates a running lobby for userID on a published quiz.
func (s *LobbyService) StartSoloQuiz(ctx context.Context, quizID int64, userID string) (domain.JoinResult, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.JoinResult{}, err
	}
	if !quiz.Published {
		return domain.JoinResult{}, domain.ErrQuizNotFound
	}

	now := s.now()
	lobby := domain.Lobby{
		ID:        uuid.NewString(),
		Code:      s.lobbyCode(),
		QuizID:    quiz.ID,
		HostID:    userID,
		Status:    domain.StatusRunning,
		CreatedAt: now,
		StartedAt: now,
	}
	if err := s.lobbies.Create(ctx, lobby); err != nil {
		return domain.JoinResult{}, fmt.Errorf("create lobby: %w", err)
	}
	s.logger.Info("lobby started", zap.String("lobby_id", lobby.ID), zap.Int64("quiz_id", quiz.ID), zap.String("user_id", userID))
	return domain.JoinResult{LobbyID: lobby.ID, Code: lobby.Code}, nil
}

// State returns the session snapshot, serving the first question when the run is just starting.
func (s *LobbyService) State(ctx context.Context, lobbyID, userID string) (domain.SessionState, error) {
	lobby, err := s.lobbyFor(ctx, lobbyID, userID)
	if err != nil {
		return domain.SessionState{}, err
	}
	if lobby.Status != domain.StatusRunning {
		return inactiveState(lobby, detailNotActive), nil
	}

	quiz, err := s.quizzes.GetQuiz(ctx, lobby.QuizID)
	if err != nil {
		return domain.SessionState{}, err
	}
	questions := quiz.Ordered()

	// Starting the first question is not published: only the host reads the
	// state and it already holds the answer.
	lobby, err = s.lobbies.Update(ctx, lobbyID, func(l *domain.Lobby) error {
		if l.Status != domain.StatusRunning || l.CurrentOrder != nil {
			return nil
		}
		now := s.now()
		if len(questions) == 0 {
			l.Status = domain.StatusEnded
			l.EndedAt = &now
			return nil
		}
		order := questions[0].Order
		l.CurrentOrder = &order
		l.QuestionStartedAt = &now
		return nil
	})
	if err != nil {
		return domain.SessionState{}, err
	}

	if lobby.Status != domain.StatusRunning {
		s.publish(ctx, domain.LobbyEvent{Type: domain.EventLobbyEnded, LobbyID: lobby.ID})
		return inactiveState(lobby, detailNoQuestions), nil
	}
	current, ok := findQuestion(questions, *lobby.CurrentOrder)
	if !ok {
		return domain.SessionState{}, domain.ErrNoActiveQuestion
	}

	timeLeft := 0.0
	if lobby.QuestionStartedAt != nil {
		elapsed := s.now().Sub(*lobby.QuestionStartedAt).Seconds()
		timeLeft = float64(current.EffectiveTimer()) - elapsed
		if timeLeft < 0 {
			timeLeft = 0
		}
	}

	return domain.SessionState{
		Status:    lobby.Status,
		LobbyID:   lobby.ID,
		QuizTitle: quiz.Title,
		Score:     lobby.Score,
		TimeLeft:  timeLeft,
		Question:  current.Public(),
	}, nil
}

// SubmitAnswer scores the answer to the active question and advances the lobby.
// Answers arriving after the question's timer score zero.
func (s *LobbyService) SubmitAnswer(ctx context.Context, lobbyID, userID string, payload domain.AnswerPayload) (domain.SubmissionResult, error) {
	lobby, err := s.lobbyFor(ctx, lobbyID, userID)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, lobby.QuizID)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	questions := quiz.Ordered()

	var answer domain.Answer
	lobby, err = s.lobbies.Update(ctx, lobbyID, func(l *domain.Lobby) error {
		if l.Status != domain.StatusRunning {
			return domain.ErrLobbyNotActive
		}
		if l.CurrentOrder == nil || l.QuestionStartedAt == nil {
			return domain.ErrNoActiveQuestion
		}
		current, ok := findQuestion(questions, *l.CurrentOrder)
		if !ok {
			return domain.ErrNoActiveQuestion
		}
		if l.Answered(current.Order) {
			return domain.ErrAlreadyAnswered
		}

		now := s.now()
		elapsed := now.Sub(*l.QuestionStartedAt)
		late := elapsed.Seconds() > float64(current.EffectiveTimer())
		correct := !late && current.Correct(payload.Index)
		points := 0
		if correct {
			points = current.EffectivePoints()
		}
		answer = domain.Answer{
			Order:          current.Order,
			Index:          payload.Index,
			Correct:        correct,
			Points:         points,
			ResponseTimeMS: elapsed.Milliseconds(),
		}
		l.Score += points
		l.Answers = append(l.Answers, answer)

		if next, ok := nextQuestion(questions, current.Order); ok {
			order := next.Order
			l.CurrentOrder = &order
			l.QuestionStartedAt = &now
			return nil
		}
		l.Status = domain.StatusEnded
		l.EndedAt = &now
		l.CurrentOrder = nil
		l.QuestionStartedAt = nil
		return nil
	})
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	s.logger.Debug("answer recorded",
		zap.String("lobby_id", lobbyID),
		zap.Int("order", answer.Order),
		zap.Bool("correct", answer.Correct),
		zap.Int("points", answer.Points))

	if lobby.Status == domain.StatusRunning {
		s.publish(ctx, domain.LobbyEvent{Type: domain.EventQuestionStarted, LobbyID: lobby.ID, Order: *lobby.CurrentOrder})
		return domain.SubmissionResult{Status: domain.SubmissionNextQuestion, Score: lobby.Score}, nil
	}

	participation, err := s.participations.Create(ctx, domain.Participation{
		QuizID:      quiz.ID,
		QuizTitle:   quiz.Title,
		FinalScore:  lobby.Score,
		CompletedAt: s.now(),
		UserID:      userID,
	})
	if err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("record participation: %w", err)
	}
	s.publish(ctx, domain.LobbyEvent{Type: domain.EventLobbyEnded, LobbyID: lobby.ID})
	s.logger.Info("quiz finished",
		zap.String("lobby_id", lobby.ID),
		zap.Int64("participation_id", participation.ID),
		zap.Int("score", lobby.Score))
	return domain.SubmissionResult{
		Status:          domain.SubmissionFinished,
		Score:           lobby.Score,
		ParticipationID: participation.ID,
	}, nil
}

// Participation returns one of userID's completed runs.
func (s *LobbyService) Participation(ctx context.Context, id int64, userID string) (domain.Participation, error) {
	p, err := s.participations.Get(ctx, id)
	if err != nil {
		return domain.Participation{}, err
	}
	if p.UserID != userID {
		return domain.Participation{}, domain.ErrParticipationNotFound
	}
	return p, nil
}

// Participations lists userID's completed runs, newest first.
func (s *LobbyService) Participations(ctx context.Context, userID string) ([]domain.Participation, error) {
	return s.participations.ListByUser(ctx, userID)
}

// Subscribe returns lobby events for a lobby the user hosts.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LobbyService) Subscribe(ctx context.Context, lobbyID, userID string) (<-chan domain.LobbyEvent, func(), error) {
	if _, err := s.lobbyFor(ctx, lobbyID, userID); err != nil {
		return nil, nil, err
	}
	return s.events.Subscribe(ctx, lobbyID)
}

func (s *LobbyService) lobbyFor(ctx context.Context, lobbyID, userID string) (domain.Lobby, error) {
	lobby, err := s.lobbies.Get(ctx, lobbyID)
	if err != nil {
		return domain.Lobby{}, err
	}
	if lobby.HostID != userID {
		return domain.Lobby{}, domain.ErrNotInLobby
	}
	return lobby, nil
}

func (s *LobbyService) publish(ctx context.Context, event domain.LobbyEvent) {
	if s.events == nil {
		return
	}
	event.At = s.now()
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish lobby event", zap.String("lobby_id", event.LobbyID), zap.Error(err))
	}
}

func (s *LobbyService) lobbyCode() string {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	b := make([]byte, 8)
	for i := range b {
		b[i] = codeAlphabet[s.rnd.Intn(len(codeAlphabet))]
	}
	return string(b)
}

func inactiveState(lobby domain.Lobby, detail string) domain.SessionState {
	return domain.SessionState{
		Status:  lobby.Status,
		LobbyID: lobby.ID,
		Score:   lobby.Score,
		Detail:  detail,
	}
}

func findQuestion(questions []domain.QuizQuestion, order int) (domain.QuizQuestion, bool) {
	for _, q := range questions {
		if q.Order == order {
			return q, true
		}
	}
	return domain.QuizQuestion{}, false
}

// nextQuestion expects questions sorted by order.
func nextQuestion(questions []domain.QuizQuestion, order int) (domain.QuizQuestion, bool) {
	for _, q := range questions {
		if q.Order > order {
			return q, true
		}
	}
	return domain.QuizQuestion{}, false
}
