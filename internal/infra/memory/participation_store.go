package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-player/internal/domain"
)

// ParticipationStore keeps completed runs in memory. Ids come from a
// counter owned by the store instance.
type ParticipationStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]domain.Participation
}

func NewParticipationStore() *ParticipationStore {
	return &ParticipationStore{byID: make(map[int64]domain.Participation)}
}

func (s *ParticipationStore) Create(_ context.Context, p domain.Participation) (domain.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = s.nextID
	s.byID[p.ID] = p
	return p, nil
}

func (s *ParticipationStore) Get(_ context.Context, id int64) (domain.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return domain.Participation{}, domain.ErrParticipationNotFound
	}
	return p, nil
}

func (s *ParticipationStore) ListByUser(_ context.Context, userID string) ([]domain.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Participation, 0)
	for _, p := range s.byID {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.After(out[j].CompletedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
