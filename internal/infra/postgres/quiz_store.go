package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizgenius-service/internal/domain"
)

// QuizStore keeps each quiz as a JSONB document in the quizzes table.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return decodeQuiz(raw)
}

func (s *QuizStore) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM quizzes ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	quizzes := make([]domain.Quiz, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		q, err := decodeQuiz(raw)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

func (s *QuizStore) CreateQuiz(ctx context.Context, q domain.Quiz) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quizzes (id, data, created_at) VALUES ($1, $2::jsonb, $3)`,
		q.ID, string(data), q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

func (s *QuizStore) UpdateQuiz(ctx context.Context, q domain.Quiz) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE quizzes SET data=$2::jsonb WHERE id=$1`, q.ID, string(data))
	if err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *QuizStore) DeleteQuiz(ctx context.Context, quizID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM quizzes WHERE id=$1`, quizID); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	return nil
}

func decodeQuiz(raw []byte) (domain.Quiz, error) {
	var q domain.Quiz
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return q, nil
}
