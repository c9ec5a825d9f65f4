package memory

import (
	"context"
	"sort"
	"sync"

	"quizgenius-service/internal/domain"
)

// AttemptStore keeps attempts in process memory.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts []domain.Attempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{}
}

func (s *AttemptStore) SaveAttempt(_ context.Context, a domain.Attempt) error {
	a.Answers = a.Answers.Clone()
	s.mu.Lock()
	s.attempts = append(s.attempts, a)
	s.mu.Unlock()
	return nil
}

// ListAttemptsByUser returns userID's attempts, newest first.
func (s *AttemptStore) ListAttemptsByUser(_ context.Context, userID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	out := make([]domain.Attempt, 0)
	for _, a := range s.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}
