package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-player/internal/app"
	"quiz-player/internal/domain"
	"quiz-player/internal/infra/memory"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestStateServesFirstQuestionAndCountsDown(t *testing.T) {
	ctx := context.Background()
	service, clock, _ := newTestService(nil)

	joined, err := service.StartSoloQuiz(ctx, 1, "u1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if joined.LobbyID == "" || len(joined.Code) != 8 {
		t.Fatalf("unexpected join result %+v", joined)
	}

	state, err := service.State(ctx, joined.LobbyID, "u1")
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	if !state.Running() || state.QuizTitle != "Math" || state.Question == nil {
		t.Fatalf("unexpected state %+v", state)
	}
	if state.Question.Order != 1 || state.Question.EffectiveTimer != domain.DefaultTimerSeconds {
		t.Fatalf("expected first question with default timer, got %+v", state.Question)
	}
	if state.TimeLeft != 20 {
		t.Fatalf("expected 20s left, got %v", state.TimeLeft)
	}

	clock.advance(7500 * time.Millisecond)
	state, _ = service.State(ctx, joined.LobbyID, "u1")
	if state.TimeLeft != 12.5 {
		t.Fatalf("expected 12.5s left, got %v", state.TimeLeft)
	}
	if state.Question.Order != 1 {
		t.Fatalf("re-fetch must not advance the question, got order %d", state.Question.Order)
	}

	clock.advance(time.Minute)
	state, _ = service.State(ctx, joined.LobbyID, "u1")
	if state.TimeLeft != 0 {
		t.Fatalf("expected time_left clamped at 0, got %v", state.TimeLeft)
	}
}

func TestSubmitScoresAdvancesAndFinishes(t *testing.T) {
	ctx := context.Background()
	service, clock, _ := newTestService(nil)
	lobbyID := startAndLoad(t, service, "u1")

	res, err := service.SubmitAnswer(ctx, lobbyID, "u1", answer(1))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if res.Status != domain.SubmissionNextQuestion || res.Score != 1 {
		t.Fatalf("expected next_question with score 1, got %+v", res)
	}

	state, _ := service.State(ctx, lobbyID, "u1")
	if state.Question.Order != 2 || state.Question.EffectivePoints != 2 || state.TimeLeft != 15 {
		t.Fatalf("expected second question with overrides, got %+v (time_left %v)", state.Question, state.TimeLeft)
	}

	// Correct but answered after the timer: no points.
	clock.advance(16 * time.Second)
	res, err = service.SubmitAnswer(ctx, lobbyID, "u1", answer(1))
	if err != nil {
		t.Fatalf("late submit failed: %v", err)
	}
	if res.Score != 1 {
		t.Fatalf("late answer must score 0, total %d", res.Score)
	}

	// True/false: index 0 is "True".
	res, err = service.SubmitAnswer(ctx, lobbyID, "u1", answer(0))
	if err != nil {
		t.Fatalf("final submit failed: %v", err)
	}
	if !res.Finished() || res.Score != 2 || res.ParticipationID == 0 {
		t.Fatalf("expected finished with participation, got %+v", res)
	}

	p, err := service.Participation(ctx, res.ParticipationID, "u1")
	if err != nil {
		t.Fatalf("participation failed: %v", err)
	}
	if p.QuizTitle != "Math" || p.FinalScore != 2 || p.QuizID != 1 {
		t.Fatalf("unexpected participation %+v", p)
	}

	state, _ = service.State(ctx, lobbyID, "u1")
	if state.Status != domain.StatusEnded || state.Question != nil || state.Detail == "" {
		t.Fatalf("expected ended state with detail, got %+v", state)
	}

	if _, err := service.SubmitAnswer(ctx, lobbyID, "u1", answer(0)); !errors.Is(err, domain.ErrLobbyNotActive) {
		t.Fatalf("expected ErrLobbyNotActive, got %v", err)
	}
}

func TestTimeoutSubmissionScoresZero(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(nil)
	lobbyID := startAndLoad(t, service, "u1")

	res, err := service.SubmitAnswer(ctx, lobbyID, "u1", domain.AnswerPayload{})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if res.Status != domain.SubmissionNextQuestion || res.Score != 0 {
		t.Fatalf("expected next_question with score 0, got %+v", res)
	}
}

func TestSubmitBeforeStateHasNoActiveQuestion(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(nil)
	joined, _ := service.StartSoloQuiz(ctx, 1, "u1")

	_, err := service.SubmitAnswer(ctx, joined.LobbyID, "u1", answer(1))
	if !errors.Is(err, domain.ErrNoActiveQuestion) || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for inactive question, got %v", err)
	}
}

func TestForeignLobbyIsDenied(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(nil)
	lobbyID := startAndLoad(t, service, "u1")

	if _, err := service.State(ctx, lobbyID, "u2"); !errors.Is(err, domain.ErrNotInLobby) {
		t.Fatalf("expected ErrNotInLobby, got %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, lobbyID, "u2", answer(1)); !errors.Is(err, domain.ErrNotInLobby) {
		t.Fatalf("expected ErrNotInLobby on submit, got %v", err)
	}
	if _, _, err := service.Subscribe(ctx, lobbyID, "u2"); !errors.Is(err, domain.ErrNotInLobby) {
		t.Fatalf("expected ErrNotInLobby on subscribe, got %v", err)
	}
	if _, err := service.State(ctx, "missing", "u1"); !errors.Is(err, domain.ErrLobbyNotFound) {
		t.Fatalf("expected ErrLobbyNotFound, got %v", err)
	}
}

func TestUnpublishedQuizCannotBeStarted(t *testing.T) {
	service, _, _ := newTestService(nil)
	if _, err := service.StartSoloQuiz(context.Background(), 2, "u1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
	if _, err := service.StartSoloQuiz(context.Background(), 99, "u1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound for unknown quiz, got %v", err)
	}
}

func TestQuizWithoutQuestionsEndsImmediately(t *testing.T) {
	ctx := context.Background()
	empty := domain.Quiz{ID: 7, Title: "Empty", Published: true}
	service, _, _ := newTestService([]domain.Quiz{empty})

	joined, err := service.StartSoloQuiz(ctx, 7, "u1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	state, err := service.State(ctx, joined.LobbyID, "u1")
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	if state.Status != domain.StatusEnded || state.Question != nil {
		t.Fatalf("expected ended state, got %+v", state)
	}
}

func TestPublishedQuizzesHidesDrafts(t *testing.T) {
	service, _, _ := newTestService(nil)
	list, err := service.PublishedQuizzes(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 || list[0].Title != "Math" || list[0].QuestionCount != 3 {
		t.Fatalf("unexpected listing %+v", list)
	}
}

func TestParticipationsAreScopedToUser(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(nil)
	lobbyID := startAndLoad(t, service, "u1")
	var res domain.SubmissionResult
	for i := 0; i < 3; i++ {
		var err error
		res, err = service.SubmitAnswer(ctx, lobbyID, "u1", domain.AnswerPayload{})
		if err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
	}
	if !res.Finished() {
		t.Fatalf("expected finished after three submissions, got %+v", res)
	}

	if _, err := service.Participation(ctx, res.ParticipationID, "u2"); !errors.Is(err, domain.ErrParticipationNotFound) {
		t.Fatalf("expected ErrParticipationNotFound for foreign record, got %v", err)
	}
	mine, _ := service.Participations(ctx, "u1")
	if len(mine) != 1 || mine[0].ID != res.ParticipationID {
		t.Fatalf("unexpected participations %+v", mine)
	}
	theirs, _ := service.Participations(ctx, "u2")
	if len(theirs) != 0 {
		t.Fatalf("expected no participations for u2, got %+v", theirs)
	}
}

func TestEventsPublishedOnTransitions(t *testing.T) {
	ctx := context.Background()
	service, _, hub := newTestService(nil)
	joined, _ := service.StartSoloQuiz(ctx, 1, "u1")

	events, cancel, err := service.Subscribe(ctx, joined.LobbyID, "u1")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	// The host learns about the first question from the response itself.
	_, _ = service.State(ctx, joined.LobbyID, "u1")
	expectNoEvent(t, events)
	_, _ = service.State(ctx, joined.LobbyID, "u1")
	expectNoEvent(t, events)

	_, _ = service.SubmitAnswer(ctx, joined.LobbyID, "u1", answer(1))
	expectEvent(t, events, domain.EventQuestionStarted, 2)
	_, _ = service.SubmitAnswer(ctx, joined.LobbyID, "u1", answer(1))
	expectEvent(t, events, domain.EventQuestionStarted, 3)
	_, _ = service.SubmitAnswer(ctx, joined.LobbyID, "u1", answer(0))
	expectEvent(t, events, domain.EventLobbyEnded, 0)

	cancel()
	if n := hub.Subscribers(joined.LobbyID); n != 0 {
		t.Fatalf("expected subscriber removed, got %d", n)
	}
}

func expectEvent(t *testing.T, events <-chan domain.LobbyEvent, typ domain.LobbyEventType, order int) {
	t.Helper()
	select {
	case ev := <-events:
		if ev.Type != typ || ev.Order != order {
			t.Fatalf("expected %s(order %d), got %+v", typ, order, ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", typ)
	}
}

func expectNoEvent(t *testing.T, events <-chan domain.LobbyEvent) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func startAndLoad(t *testing.T, service *app.LobbyService, userID string) string {
	t.Helper()
	ctx := context.Background()
	joined, err := service.StartSoloQuiz(ctx, 1, userID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := service.State(ctx, joined.LobbyID, userID); err != nil {
		t.Fatalf("state failed: %v", err)
	}
	return joined.LobbyID
}

func answer(index int) domain.AnswerPayload {
	return domain.AnswerPayload{Index: &index}
}

func newTestService(quizzes []domain.Quiz) (*app.LobbyService, *fakeClock, *app.EventHub) {
	if quizzes == nil {
		quizzes = memory.SampleQuizzes()
	}
	clock := &fakeClock{now: time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)}
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(quizzes), time.Minute)
	hub := app.NewEventHub()
	service := app.NewLobbyServiceWithClock(quizRepo, memory.NewLobbyStore(), memory.NewParticipationStore(), hub, nil, clock.Now)
	return service, clock, hub
}
