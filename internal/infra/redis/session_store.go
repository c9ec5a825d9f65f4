package redis

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quizgenius-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Players live in process; Redis marks which sessions are alive (and for which quiz)
// under quiz:session:{id}. Refresh keeps the marks of local players from expiring and
// counts the marks of every instance.
type SessionStore struct {
	client  *redis.Client
	ttl     time.Duration
	mu      sync.RWMutex
	players map[string]*app.Player
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:  client,
		ttl:     ttl,
		players: make(map[string]*app.Player),
	}
}

func (s *SessionStore) Put(player *app.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[player.ID()] = player
	if err := s.client.Set(context.Background(), s.key(player.ID()), player.QuizID(), s.ttl).Err(); err != nil {
		log.Printf("mark session %s: %v", player.ID(), err)
	}
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
	if err := s.client.Del(context.Background(), s.key(sessionID)).Err(); err != nil {
		log.Printf("unmark session %s: %v", sessionID, err)
	}
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

// Refresh re-marks every local player with a fresh TTL, restoring marks that expired
// or were lost, and returns how many sessions are marked across all instances.
func (s *SessionStore) Refresh(ctx context.Context) (int, error) {
	players := s.List()
	if len(players) > 0 {
		_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, p := range players {
				pipe.Set(ctx, s.key(p.ID()), p.QuizID(), s.ttl)
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return s.Live(ctx)
}

// Live counts the sessions marked in Redis by any instance.
func (s *SessionStore) Live(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.key("*"), 100).Result()
		if err != nil {
			return 0, err
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}
