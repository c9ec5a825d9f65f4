package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizgenius-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (Postgres, Mongo, memory).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches quizzes with TTL to avoid repeated store hits.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedQuiz
	// gens counts invalidations per quiz; a load only fills the cache if none
	// happened while it ran.
	gens map[string]uint64
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
		gens:   make(map[string]uint64),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if q, ok := r.cached(quizID); ok {
		return q, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		if q, ok := r.cached(quizID); ok {
			return q, nil
		}
		r.mu.RLock()
		gen := r.gens[quizID]
		r.mu.RUnlock()

		q, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		r.mu.Lock()
		if r.gens[quizID] == gen {
			r.cache[quizID] = cachedQuiz{
				quiz:      q,
				expiresAt: r.clock().Add(r.ttlWithJitterLocked()),
			}
		}
		r.mu.Unlock()
		return q, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate forgets quizID so the next GetQuiz reloads it.
func (r *QuizRepository) Invalidate(_ context.Context, quizID string) {
	r.sf.Forget(quizID)
	r.mu.Lock()
	r.gens[quizID]++
	delete(r.cache, quizID)
	r.mu.Unlock()
}

func (r *QuizRepository) cached(quizID string) (domain.Quiz, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[quizID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

func (r *QuizRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% jitter spreads expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
