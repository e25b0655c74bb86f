package memory

import (
	"context"
	"fmt"
	"sync"

	"quiz-player/internal/domain"
)

// LobbyStore is an in-memory implementation of app.LobbyRepository.
type LobbyStore struct {
	mu      sync.Mutex
	lobbies map[string]domain.Lobby
}

func NewLobbyStore() *LobbyStore {
	return &LobbyStore{
		lobbies: make(map[string]domain.Lobby),
	}
}

func (s *LobbyStore) Create(_ context.Context, lobby domain.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[lobby.ID]; ok {
		return fmt.Errorf("lobby %s already exists", lobby.ID)
	}
	s.lobbies[lobby.ID] = cloneLobby(lobby)
	return nil
}

func (s *LobbyStore) Get(_ context.Context, lobbyID string) (domain.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lobby, ok := s.lobbies[lobbyID]
	if !ok {
		return domain.Lobby{}, domain.ErrLobbyNotFound
	}
	return cloneLobby(lobby), nil
}

// Update runs fn under the store lock; the lobby is only written back when fn succeeds.
func (s *LobbyStore) Update(_ context.Context, lobbyID string, fn func(*domain.Lobby) error) (domain.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lobby, ok := s.lobbies[lobbyID]
	if !ok {
		return domain.Lobby{}, domain.ErrLobbyNotFound
	}
	working := cloneLobby(lobby)
	if err := fn(&working); err != nil {
		return domain.Lobby{}, err
	}
	s.lobbies[lobbyID] = cloneLobby(working)
	return working, nil
}

func cloneLobby(l domain.Lobby) domain.Lobby {
	out := l
	if l.Answers != nil {
		out.Answers = append([]domain.Answer(nil), l.Answers...)
	}
	if l.CurrentOrder != nil {
		v := *l.CurrentOrder
		out.CurrentOrder = &v
	}
	if l.QuestionStartedAt != nil {
		v := *l.QuestionStartedAt
		out.QuestionStartedAt = &v
	}
	if l.EndedAt != nil {
		v := *l.EndedAt
		out.EndedAt = &v
	}
	return out
}
