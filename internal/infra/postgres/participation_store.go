package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-player/internal/domain"
)

// ParticipationStore persists completed runs.
type ParticipationStore struct {
	pool *pgxpool.Pool
}

func NewParticipationStore(pool *pgxpool.Pool) *ParticipationStore {
	return &ParticipationStore{pool: pool}
}

func (s *ParticipationStore) Create(ctx context.Context, p domain.Participation) (domain.Participation, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO participations (quiz_id, quiz_title, user_id, final_score, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		p.QuizID, p.QuizTitle, p.UserID, p.FinalScore, p.CompletedAt).Scan(&p.ID)
	if err != nil {
		return domain.Participation{}, fmt.Errorf("insert participation: %w", err)
	}
	return p, nil
}

func (s *ParticipationStore) Get(ctx context.Context, id int64) (domain.Participation, error) {
	p := domain.Participation{ID: id}
	err := s.pool.QueryRow(ctx, `
		SELECT quiz_id, quiz_title, user_id, final_score, completed_at
		FROM participations WHERE id=$1`, id).
		Scan(&p.QuizID, &p.QuizTitle, &p.UserID, &p.FinalScore, &p.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participation{}, domain.ErrParticipationNotFound
	}
	if err != nil {
		return domain.Participation{}, fmt.Errorf("load participation: %w", err)
	}
	return p, nil
}

func (s *ParticipationStore) ListByUser(ctx context.Context, userID string) ([]domain.Participation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, quiz_id, quiz_title, final_score, completed_at
		FROM participations WHERE user_id=$1
		ORDER BY completed_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Participation, 0)
	for rows.Next() {
		p := domain.Participation{UserID: userID}
		if err := rows.Scan(&p.ID, &p.QuizID, &p.QuizTitle, &p.FinalScore, &p.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan participation: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
