package player_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"quiz-player/internal/domain"
	"quiz-player/internal/player"
)

const waitTimeout = 2 * time.Second

// scriptedAPI hands every backend call to the test, which answers it explicitly.
type scriptedAPI struct {
	calls chan *apiCall
}

type apiCall struct {
	kind    string // "state" or "submit"
	lobbyID string
	index   *int

	stateReply  chan stateReply
	submitReply chan submitReply
}

type stateReply struct {
	state domain.SessionState
	err   error
}

type submitReply struct {
	result domain.SubmissionResult
	err    error
}

func newScriptedAPI() *scriptedAPI {
	return &scriptedAPI{calls: make(chan *apiCall, 16)}
}

func (a *scriptedAPI) GetLobbyState(ctx context.Context, lobbyID string) (domain.SessionState, error) {
	c := &apiCall{kind: "state", lobbyID: lobbyID, stateReply: make(chan stateReply, 1)}
	a.calls <- c
	select {
	case r := <-c.stateReply:
		return r.state, r.err
	case <-ctx.Done():
		return domain.SessionState{}, ctx.Err()
	}
}

func (a *scriptedAPI) SubmitAnswer(ctx context.Context, lobbyID string, index *int) (domain.SubmissionResult, error) {
	c := &apiCall{kind: "submit", lobbyID: lobbyID, index: index, submitReply: make(chan submitReply, 1)}
	a.calls <- c
	select {
	case r := <-c.submitReply:
		return r.result, r.err
	case <-ctx.Done():
		return domain.SubmissionResult{}, ctx.Err()
	}
}

func (a *scriptedAPI) next(t *testing.T, kind string) *apiCall {
	t.Helper()
	select {
	case c := <-a.calls:
		if c.kind != kind {
			t.Fatalf("expected %s call, got %s", kind, c.kind)
		}
		return c
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s call", kind)
		return nil
	}
}

func (a *scriptedAPI) expectNoCall(t *testing.T) {
	t.Helper()
	select {
	case c := <-a.calls:
		t.Fatalf("unexpected %s call (index=%v)", c.kind, c.index)
	case <-time.After(100 * time.Millisecond):
	}
}

func (c *apiCall) respondState(state domain.SessionState, err error) {
	c.stateReply <- stateReply{state: state, err: err}
}

func (c *apiCall) respondSubmit(result domain.SubmissionResult, err error) {
	c.submitReply <- submitReply{result: result, err: err}
}

// manualClock hands out tickers that only fire when the test says so.
type manualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

type manualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (c *manualClock) NewTicker(time.Duration) player.Ticker {
	t := &manualTicker{ch: make(chan time.Time)}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *manualTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (c *manualClock) running() []*manualTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*manualTicker
	for _, t := range c.tickers {
		if !t.isStopped() {
			out = append(out, t)
		}
	}
	return out
}

func (c *manualClock) created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// tick fires the single running ticker and waits until the loop received it.
func (c *manualClock) tick(t *testing.T) {
	t.Helper()
	running := c.running()
	if len(running) != 1 {
		t.Fatalf("expected exactly one running ticker, got %d", len(running))
	}
	select {
	case running[0].ch <- time.Now():
	case <-time.After(waitTimeout):
		t.Fatalf("ticker not consumed")
	}
}

type recordingNavigator struct {
	mu  sync.Mutex
	ids []int64
}

func (n *recordingNavigator) ShowResults(id int64) {
	n.mu.Lock()
	n.ids = append(n.ids, id)
	n.mu.Unlock()
}

func (n *recordingNavigator) visited() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int64(nil), n.ids...)
}

func waitFor(t *testing.T, s *player.Session, what string, pred func(player.Snapshot) bool) player.Snapshot {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for {
		snap := s.Snapshot()
		if pred(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s, last snapshot %+v", what, snap)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func intPtr(v int) *int { return &v }

func mathState(timeLeft float64, text string) domain.SessionState {
	return domain.SessionState{
		Status:    domain.StatusRunning,
		LobbyID:   "abc123",
		QuizTitle: "Math",
		Score:     0,
		TimeLeft:  timeLeft,
		Question: &domain.QuestionInstance{
			ID:             1,
			Order:          1,
			EffectiveTimer: 20,
			Question: domain.Question{
				Text:    text,
				Type:    domain.QuestionMCQ,
				Content: domain.QuestionContent{Choices: []string{"3", "4", "5", "6"}},
			},
		},
	}
}
