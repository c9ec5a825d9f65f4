package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quizgenius-service/internal/domain"
)

// AttemptStore writes attempts as rows; answers are a JSONB object keyed by position.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) SaveAttempt(ctx context.Context, a domain.Attempt) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO attempts (id, user_id, quiz_id, score, max_score, answers, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`,
		a.ID, a.UserID, a.QuizID, a.Score, a.MaxScore, string(answers), a.Timestamp)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) ListAttemptsByUser(ctx context.Context, userID string) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, quiz_id, score, max_score, answers, created_at
		 FROM attempts WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]domain.Attempt, 0)
	for rows.Next() {
		var (
			a   domain.Attempt
			raw []byte
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuizID, &a.Score, &a.MaxScore, &raw, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if err := json.Unmarshal(raw, &a.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
		a.Timestamp = a.Timestamp.UTC()
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
