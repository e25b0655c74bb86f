package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-player/internal/domain"
)

// QuizLoader loads quiz JSONB from Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var (
		raw       []byte
		published bool
	)
	err := l.pool.QueryRow(ctx, `SELECT data, published FROM quizzes WHERE id=$1`, quizID).Scan(&raw, &published)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return decodeQuiz(quizID, raw, published)
}

// ListQuizzes returns every quiz row, published or not, ordered by id.
func (l *QuizLoader) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, data, published FROM quizzes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var out []domain.Quiz
	for rows.Next() {
		var (
			id        int64
			raw       []byte
			published bool
		)
		if err := rows.Scan(&id, &raw, &published); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		quiz, err := decodeQuiz(id, raw, published)
		if err != nil {
			return nil, err
		}
		out = append(out, quiz)
	}
	return out, rows.Err()
}

// SaveQuiz upserts a quiz document; used by seeding and tests.
func (l *QuizLoader) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO quizzes (id, data, published) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, published = EXCLUDED.published`,
		quiz.ID, data, quiz.Published)
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

// The row columns are authoritative over whatever the document says.
func decodeQuiz(id int64, raw []byte, published bool) (domain.Quiz, error) {
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	quiz.ID = id
	quiz.Published = published
	return quiz, nil
}
