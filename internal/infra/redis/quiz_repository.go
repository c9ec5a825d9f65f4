package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizgenius-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (Postgres, Mongo).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches whole quizzes in Redis as JSON (SET quiz:{quizID} ...) and
// falls back to the loader on a miss. Cache errors degrade to direct loads.
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if q, ok := r.cached(ctx, quizID); ok {
		return q, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// another caller may have filled the cache meanwhile
		if q, ok := r.cached(ctx, quizID); ok {
			return q, nil
		}
		gen, genErr := r.generation(ctx, r.client, quizID)
		q, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if genErr == nil {
			err = r.store(ctx, quizID, gen, q)
		} else {
			err = genErr
		}
		if err != nil && !errors.Is(err, errInvalidated) {
			log.Printf("cache quiz %s: %v", quizID, err)
		}
		return q, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

var errInvalidated = errors.New("quiz invalidated during load")

// store caches q unless quizID was invalidated after gen was read. The write is
// guarded by WATCH on the generation key, so it also loses to invalidations from
// other instances.
func (r *QuizRepository) store(ctx context.Context, quizID string, gen int64, q domain.Quiz) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return err
	}
	ttl := r.ttlWithJitter()
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := r.generation(ctx, tx, quizID)
		if err != nil {
			return err
		}
		if current != gen {
			return errInvalidated
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key(quizID), raw, ttl)
			return nil
		})
		return err
	}, r.genKey(quizID))
	if errors.Is(err, redis.TxFailedErr) {
		return errInvalidated
	}
	return err
}

// Invalidate deletes the cached copy of quizID and bumps its generation so loads
// already in flight do not write the old copy back.
func (r *QuizRepository) Invalidate(ctx context.Context, quizID string) {
	r.sf.Forget(quizID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, r.genKey(quizID))
		pipe.Del(ctx, r.key(quizID))
		return nil
	})
	if err != nil {
		log.Printf("invalidate quiz %s: %v", quizID, err)
	}
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *QuizRepository) generation(ctx context.Context, c getter, quizID string) (int64, error) {
	gen, err := c.Get(ctx, r.genKey(quizID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *QuizRepository) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	raw, err := r.client.Get(ctx, r.key(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("read cached quiz %s: %v", quizID, err)
		}
		return domain.Quiz{}, false
	}
	var q domain.Quiz
	if err := json.Unmarshal(raw, &q); err != nil {
		log.Printf("decode cached quiz %s: %v", quizID, err)
		return domain.Quiz{}, false
	}
	return q, true
}

func (r *QuizRepository) key(quizID string) string {
	return "quiz:" + quizID
}

func (r *QuizRepository) genKey(quizID string) string {
	return "quiz:gen:" + quizID
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
