package player

import "quiz-player/internal/domain"

// Phase is the coarse lifecycle of the quiz-taking view.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseLoadFailed
	PhaseActive
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseLoadFailed:
		return "load_failed"
	case PhaseActive:
		return "active"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of what the quiz-taking view renders.
type Snapshot struct {
	Phase           Phase
	State           *domain.SessionState
	TimeLeft        int
	Submitting      bool
	Stale           bool
	Error           string
	ParticipationID int64
}

// ChoicesEnabled reports whether the choice buttons accept input.
func (s Snapshot) ChoicesEnabled() bool {
	return s.Phase == PhaseActive &&
		!s.Submitting &&
		!s.Stale &&
		s.TimeLeft > 0 &&
		s.State != nil &&
		s.State.Running() &&
		s.State.Question != nil
}

// Ended reports whether the backend says the session is over without a hand-off.
func (s Snapshot) Ended() bool {
	return s.Phase == PhaseActive && s.State != nil && s.State.Status == domain.StatusEnded
}
