package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-player/internal/domain"
)

const maxUpdateRetries = 10

// LobbyStore keeps lobbies as JSON documents so several server instances can
// share them. Updates use WATCH/MULTI optimistic locking.
type LobbyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLobbyStore(client *redis.Client, ttl time.Duration) *LobbyStore {
	return &LobbyStore{client: client, ttl: ttl}
}

func (s *LobbyStore) Create(ctx context.Context, lobby domain.Lobby) error {
	data, err := json.Marshal(lobby)
	if err != nil {
		return fmt.Errorf("encode lobby: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(lobby.ID), data, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("lobby %s already exists", lobby.ID)
	}
	return nil
}

func (s *LobbyStore) Get(ctx context.Context, lobbyID string) (domain.Lobby, error) {
	raw, err := s.client.Get(ctx, s.key(lobbyID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Lobby{}, domain.ErrLobbyNotFound
	}
	if err != nil {
		return domain.Lobby{}, err
	}
	return decodeLobby(raw)
}

// Update retries fn when another writer touched the lobby between read and write.
func (s *LobbyStore) Update(ctx context.Context, lobbyID string, fn func(*domain.Lobby) error) (domain.Lobby, error) {
	key := s.key(lobbyID)
	var result domain.Lobby

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrLobbyNotFound
		}
		if err != nil {
			return err
		}
		lobby, err := decodeLobby(raw)
		if err != nil {
			return err
		}
		if err := fn(&lobby); err != nil {
			return err
		}
		data, err := json.Marshal(lobby)
		if err != nil {
			return fmt.Errorf("encode lobby: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err == nil {
			result = lobby
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return domain.Lobby{}, err
		}
		return result, nil
	}
	return domain.Lobby{}, fmt.Errorf("update lobby %s: too much contention", lobbyID)
}

func (s *LobbyStore) key(lobbyID string) string {
	return "quiz:lobby:" + lobbyID
}

func decodeLobby(raw []byte) (domain.Lobby, error) {
	var lobby domain.Lobby
	if err := json.Unmarshal(raw, &lobby); err != nil {
		return domain.Lobby{}, fmt.Errorf("decode lobby: %w", err)
	}
	return lobby, nil
}
