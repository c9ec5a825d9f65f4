package memory

import (
	"context"
	"sync"

	"quizgenius-service/internal/domain"
)

// UserStore keeps student accounts keyed by username.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

func (s *UserStore) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return domain.ErrUserExists
	}
	s.users[u.Username] = u
	return nil
}

func (s *UserStore) FindUserByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}
