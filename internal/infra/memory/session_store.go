package memory

import (
	"sync"

	"quizgenius-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu      sync.RWMutex
	players map[string]*app.Player
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		players: make(map[string]*app.Player),
	}
}

func (s *SessionStore) Put(player *app.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[player.ID()] = player
}

func (s *SessionStore) Get(sessionID string) (*app.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[sessionID]
	return player, ok
}

func (s *SessionStore) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[sessionID]; !ok {
		return false
	}
	delete(s.players, sessionID)
	return true
}

func (s *SessionStore) List() []*app.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	return out
}
