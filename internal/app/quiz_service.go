package app

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"quizgenius-service/internal/domain"
	"quizgenius-service/internal/metrics"
	"quizgenius-service/internal/quiz"
)

// SessionRepository abstracts where live players are tracked (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(player *Player)
	Get(sessionID string) (*Player, bool)
	// Delete reports whether the session was registered.
	Delete(sessionID string) bool
	List() []*Player
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	// Invalidate drops any cached copy so the next read hits the backing store.
	Invalidate(ctx context.Context, quizID string)
}

// QuizStore is the durable home of authored quizzes.
type QuizStore interface {
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	CreateQuiz(ctx context.Context, quiz domain.Quiz) error
	UpdateQuiz(ctx context.Context, quiz domain.Quiz) error
	DeleteQuiz(ctx context.Context, quizID string) error
}

// AttemptStore persists completed attempts.
type AttemptStore interface {
	SaveAttempt(ctx context.Context, attempt domain.Attempt) error
	ListAttemptsByUser(ctx context.Context, userID string) ([]domain.Attempt, error)
}

// AttemptPublisher announces completed attempts to other services.
type AttemptPublisher interface {
	PublishAttemptCompleted(ctx context.Context, attempt domain.Attempt) error
}

// QuizService contains the quiz use cases: hosting playthroughs, authoring and attempt history.
type QuizService struct {
	sessions  SessionRepository
	quizzes   QuizRepository
	store     QuizStore
	attempts  AttemptStore
	publisher AttemptPublisher
	player    PlayerOptions
	now       func() time.Time
	validate  *validator.Validate
}

// Option customizes a QuizService.
type Option func(*QuizService)

// WithPublisher announces every persisted attempt through p.
func WithPublisher(p AttemptPublisher) Option {
	return func(s *QuizService) { s.publisher = p }
}

// WithPlayerOptions sets the options used for every new Player.
func WithPlayerOptions(opts PlayerOptions) Option {
	return func(s *QuizService) { s.player = opts }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

func NewQuizService(sessions SessionRepository, quizzes QuizRepository, store QuizStore, attempts AttemptStore, opts ...Option) *QuizService {
	s := &QuizService{
		sessions: sessions,
		quizzes:  quizzes,
		store:    store,
		attempts: attempts,
		now:      time.Now,
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession opens a new playthrough of quizID for principal. A missing or empty quiz
// is not an error here: the player settles in its not-found phase.
func (s *QuizService) StartSession(_ context.Context, quizID string, principal domain.Principal) *Player {
	opts := s.player
	// *rand.Rand is not safe for concurrent use, so every player gets its own.
	opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	if opts.Now == nil {
		opts.Now = s.now
	}
	player := NewPlayer(uuid.NewString(), quizID, principal, s.quizzes, s, opts)
	s.sessions.Put(player)
	metrics.ActiveSessions.Inc()
	return player
}

// Session returns a live player, but only to the principal that started it.
func (s *QuizService) Session(_ context.Context, sessionID string, principal domain.Principal) (*Player, error) {
	player, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	owner := player.Principal()
	if owner.Role != principal.Role || owner.UserID != principal.UserID {
		return nil, domain.ErrSessionNotFound
	}
	return player, nil
}

// EndSession tears a player down (cancelling its countdown) and forgets it.
func (s *QuizService) EndSession(sessionID string) {
	player, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	// concurrent enders race here; only the one that removed it tears down
	if !s.sessions.Delete(sessionID) {
		return
	}
	player.Close()
	metrics.ActiveSessions.Dec()
}

// ReapIdle ends sessions nobody is using. A session that reached a terminal phase goes
// once it has seen no command for longer than idle. A session still in progress goes as
// soon as it is abandoned, before its countdown can finish it. It returns how many were
// ended.
func (s *QuizService) ReapIdle(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	reaped := 0
	for _, player := range s.sessions.List() {
		switch player.Last().Phase {
		case quiz.PhaseFinished, quiz.PhaseNotFound:
			if !player.IdleSince().Before(cutoff) {
				continue
			}
		default:
			if !player.Abandoned() {
				continue
			}
			metrics.SessionsAbandoned.Inc()
		}
		s.EndSession(player.ID())
		reaped++
	}
	return reaped
}

// sessionRefresher is implemented by registries that keep shared liveness state.
// Refresh extends it for local sessions and reports the live total across instances.
type sessionRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

// RunReaper calls ReapIdle every interval until ctx is done.
func (s *QuizService) RunReaper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.ReapIdle(idle); n > 0 {
				log.Printf("reaped %d idle sessions", n)
			}
			s.refreshSessions(ctx)
		}
	}
}

func (s *QuizService) refreshSessions(ctx context.Context) {
	r, ok := s.sessions.(sessionRefresher)
	if !ok {
		return
	}
	live, err := r.Refresh(ctx)
	if err != nil {
		log.Printf("refresh session registry: %v", err)
		return
	}
	metrics.ClusterSessions.Set(float64(live))
}

// Close ends every live session.
func (s *QuizService) Close() {
	for _, player := range s.sessions.List() {
		s.EndSession(player.ID())
	}
}
