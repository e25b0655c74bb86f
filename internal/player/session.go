package player

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"quiz-player/internal/domain"
)

// API is the slice of the backend REST surface the session consumes.
type API interface {
	GetLobbyState(ctx context.Context, lobbyID string) (domain.SessionState, error)
	SubmitAnswer(ctx context.Context, lobbyID string, index *int) (domain.SubmissionResult, error)
}

// Navigator receives the one-way hand-off to the results view.
type Navigator interface {
	ShowResults(participationID int64)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(participationID int64)

func (f NavigatorFunc) ShowResults(participationID int64) { f(participationID) }

// Options configures a Session. Zero values are usable.
type Options struct {
	Clock     Clock
	Logger    *zap.Logger
	Navigator Navigator
	// Events carries server pushes; each one triggers a re-fetch.
	Events <-chan domain.LobbyEvent
	// RequestTimeout bounds every backend call. Zero means no timeout.
	RequestTimeout time.Duration
}

const (
	loadErrorFallback   = "Failed to load quiz session."
	submitErrorFallback = "Failed to submit answer."
)

type fetchResult struct {
	gen   uint64
	state domain.SessionState
	err   error
}

type submitResult struct {
	result domain.SubmissionResult
	err    error
}

// Session drives one timed quiz-taking session.
//
// All session state is owned by a single loop goroutine; the public methods
// hand work to that loop. Network calls run on their own goroutines and post
// completions back, so the loop never blocks on I/O.
type Session struct {
	lobbyID string
	api     API
	clock   Clock
	log     *zap.Logger
	nav     Navigator
	events  <-chan domain.LobbyEvent
	timeout time.Duration

	cmds      chan func()
	fetched   chan fetchResult
	submitted chan submitResult
	done      chan struct{}
	finished  chan struct{}
	startOnce sync.Once
	started   atomic.Bool
	cancel    context.CancelFunc

	// loop-owned
	ctx             context.Context
	phase           Phase
	state           *domain.SessionState
	countdown       Countdown
	ticker          Ticker
	gate            gate
	fetchGen        uint64
	autoArmed       bool
	stale           bool
	errMsg          string
	participationID int64

	subMu       sync.Mutex
	last        Snapshot
	subscribers map[chan Snapshot]struct{}
	subsClosed  bool
}

// New builds a session for lobbyID. Call Start to begin loading; until then
// input is ignored and Snapshot reports the loading view.
func New(lobbyID string, api API, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Session{
		lobbyID:     lobbyID,
		api:         api,
		clock:       opts.Clock,
		log:         opts.Logger.With(zap.String("lobby_id", lobbyID)),
		nav:         opts.Navigator,
		events:      opts.Events,
		timeout:     opts.RequestTimeout,
		cmds:        make(chan func()),
		fetched:     make(chan fetchResult),
		submitted:   make(chan submitResult),
		done:        make(chan struct{}),
		finished:    make(chan struct{}),
		phase:       PhaseLoading,
		subscribers: make(map[chan Snapshot]struct{}),
		last:        Snapshot{Phase: PhaseLoading},
	}
}

// Start launches the session loop and the initial state fetch.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.started.Store(true)
		go s.run(ctx)
	})
}

// Stop tears the session down: the ticker is stopped, in-flight calls are
// cancelled and subscribers are closed. It blocks until the loop exits.
func (s *Session) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Done is closed when the loop exits.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Finished is closed once a submission reports the session finished.
func (s *Session) Finished() <-chan struct{} {
	return s.finished
}

// Answer submits the choice at index. It returns false when the request was
// ignored: a submission is already in flight, no question is active, time is
// up or the index is out of range.
func (s *Session) Answer(index int) bool {
	return s.submit(&index)
}

// Timeout submits a no-answer for the active question.
func (s *Session) Timeout() bool {
	return s.submit(nil)
}

// Retry re-fetches the session state after a load failure.
// It is ignored while a submission is in flight or after the session finished.
func (s *Session) Retry() bool {
	reply := make(chan bool, 1)
	if !s.do(func() {
		if s.phase == PhaseFinished || s.gate.inFlight {
			reply <- false
			return
		}
		if s.phase == PhaseLoadFailed {
			s.phase = PhaseLoading
		}
		s.errMsg = ""
		s.startFetch()
		reply <- true
	}) {
		return false
	}
	return <-reply
}

// Snapshot returns the current view-model.
func (s *Session) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	if !s.do(func() { reply <- s.snapshot() }) {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		return s.last
	}
	return <-reply
}

// Updates streams snapshots after every state change, starting with the
// current one. Slow readers only see the latest snapshot. The caller must
// invoke the returned cancel function.
func (s *Session) Updates() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.subMu.Lock()
	if s.subsClosed {
		ch <- s.last
		close(ch)
		s.subMu.Unlock()
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.last
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

func (s *Session) do(fn func()) bool {
	if !s.started.Load() {
		return false
	}
	select {
	case s.cmds <- fn:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) submit(index *int) bool {
	reply := make(chan bool, 1)
	if !s.do(func() { reply <- s.startSubmit(index) }) {
		return false
	}
	return <-reply
}

func (s *Session) run(ctx context.Context) {
	s.ctx = ctx
	defer close(s.done)
	defer s.closeSubscribers()
	defer s.stopTicker()

	s.startFetch()
	s.publish()

	events := s.events
	for {
		var tick <-chan time.Time
		if s.ticker != nil {
			tick = s.ticker.C()
		}

		select {
		case <-ctx.Done():
			return
		case fn := <-s.cmds:
			fn()
		case <-tick:
			s.onTick()
		case r := <-s.fetched:
			s.onFetched(r)
		case r := <-s.submitted:
			s.onSubmitted(r)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.onEvent(ev)
		}

		s.maybeAutoSubmit()
		s.publish()
	}
}

func (s *Session) callContext() (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(s.ctx, s.timeout)
	}
	return context.WithCancel(s.ctx)
}

// startFetch issues a state request tagged with a new generation; older
// generations still in flight are dropped when they resolve.
func (s *Session) startFetch() uint64 {
	s.fetchGen++
	gen := s.fetchGen
	ctx, cancel := s.callContext()
	go func() {
		defer cancel()
		state, err := s.api.GetLobbyState(ctx, s.lobbyID)
		select {
		case s.fetched <- fetchResult{gen: gen, state: state, err: err}:
		case <-s.ctx.Done():
		}
	}()
	return gen
}

func (s *Session) onFetched(r fetchResult) {
	if s.phase == PhaseFinished {
		return
	}
	if r.gen != s.fetchGen {
		s.log.Debug("dropping superseded state response", zap.Uint64("gen", r.gen), zap.Uint64("latest", s.fetchGen))
		return
	}
	s.gate.fetchResolved(r.gen)

	if r.err != nil {
		s.errMsg = errorText(r.err, loadErrorFallback)
		if s.state == nil {
			s.phase = PhaseLoadFailed
			s.log.Warn("initial state fetch failed", zap.Error(r.err))
			return
		}
		// Keep the last question on screen; answers stay disabled until Retry.
		s.stale = true
		s.stopTicker()
		s.log.Warn("state fetch failed, keeping last state", zap.Error(r.err))
		return
	}
	s.adopt(r.state)
}

func (s *Session) adopt(state domain.SessionState) {
	s.state = &state
	s.phase = PhaseActive
	s.stale = false
	s.errMsg = ""
	s.countdown.Reset(state.TimeLeft)
	s.autoArmed = true
	s.restartTicker()
	s.log.Debug("adopted session state",
		zap.String("status", string(state.Status)),
		zap.Int("time_left", s.countdown.Remaining()),
		zap.Bool("question", state.Question != nil))
}

func (s *Session) restartTicker() {
	s.stopTicker()
	if s.state == nil || !s.state.Running() || s.stale || s.countdown.Expired() {
		return
	}
	s.ticker = s.clock.NewTicker(time.Second)
}

func (s *Session) stopTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

func (s *Session) onTick() {
	if s.ticker == nil {
		return
	}
	if s.countdown.Tick() == 0 {
		s.stopTicker()
	}
}

func (s *Session) canSubmit() bool {
	return s.phase == PhaseActive &&
		!s.stale &&
		s.state != nil &&
		s.state.Running() &&
		s.state.Question != nil
}

func (s *Session) startSubmit(index *int) bool {
	if !s.canSubmit() {
		return false
	}
	if index != nil && (*index < 0 || *index >= len(s.state.Choices())) {
		return false
	}
	// Once time is up only the no-answer submission may go out.
	if index != nil && s.countdown.Expired() {
		return false
	}
	if !s.gate.acquire() {
		s.log.Debug("submission ignored, another one is in flight")
		return false
	}
	s.errMsg = ""

	var payload *int
	if index != nil {
		v := *index
		payload = &v
	}
	ctx, cancel := s.callContext()
	go func() {
		defer cancel()
		result, err := s.api.SubmitAnswer(ctx, s.lobbyID, payload)
		select {
		case s.submitted <- submitResult{result: result, err: err}:
		case <-s.ctx.Done():
		}
	}()
	return true
}

func (s *Session) maybeAutoSubmit() {
	if !s.autoArmed || !s.canSubmit() || !s.countdown.Expired() || s.gate.inFlight {
		return
	}
	s.autoArmed = false
	s.log.Debug("time is up, submitting no-answer")
	s.startSubmit(nil)
}

func (s *Session) onSubmitted(r submitResult) {
	if r.err != nil {
		s.gate.release()
		s.errMsg = errorText(r.err, submitErrorFallback)
		s.log.Warn("submit failed", zap.Error(r.err))
		return
	}
	if r.result.Finished() {
		s.finish(r.result.ParticipationID)
		return
	}
	if r.result.Status != domain.SubmissionNextQuestion {
		s.log.Warn("unrecognised submission status, advancing", zap.String("status", string(r.result.Status)))
	}
	s.stopTicker()
	s.gate.holdUntil(s.startFetch())
}

func (s *Session) finish(participationID int64) {
	s.phase = PhaseFinished
	s.participationID = participationID
	s.stopTicker()
	// invalidate any fetch still in flight
	s.fetchGen++
	s.log.Info("quiz finished", zap.Int64("participation_id", participationID))
	if s.nav != nil {
		s.nav.ShowResults(participationID)
	}
	close(s.finished)
}

func (s *Session) onEvent(ev domain.LobbyEvent) {
	if s.phase == PhaseFinished || s.gate.inFlight {
		return
	}
	if ev.LobbyID != "" && ev.LobbyID != s.lobbyID {
		return
	}
	if ev.Type == domain.EventQuestionStarted && !s.stale && s.state != nil &&
		s.state.Question != nil && ev.Order == s.state.Question.Order {
		s.log.Debug("lobby event for the current question, skipping refresh", zap.Int("order", ev.Order))
		return
	}
	s.log.Debug("lobby event, refreshing", zap.String("type", string(ev.Type)))
	s.startFetch()
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		Phase:           s.phase,
		TimeLeft:        s.countdown.Remaining(),
		Submitting:      s.gate.inFlight,
		Stale:           s.stale,
		Error:           s.errMsg,
		ParticipationID: s.participationID,
	}
	if s.state != nil {
		st := *s.state
		snap.State = &st
	}
	return snap
}

func (s *Session) publish() {
	snap := s.snapshot()
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.last = snap
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.last = s.snapshot()
	s.subsClosed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func errorText(err error, fallback string) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "The server took too long to respond."
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
