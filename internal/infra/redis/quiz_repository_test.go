package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quizgenius-service/internal/domain"
	"quizgenius-service/internal/infra/memory"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{QuizLoader: memory.NewQuizStore(memory.SampleQuiz())}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute)

	first, err := repo.GetQuiz(context.Background(), "sample-go-basics")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("quiz:sample-go-basics") {
		t.Fatalf("expected quiz cached under quiz:sample-go-basics")
	}
	if ttl := mr.TTL("quiz:sample-go-basics"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with at most 10%% jitter, got %v", ttl)
	}

	// Second call should hit cache, loader not incremented.
	second, err := repo.GetQuiz(context.Background(), "sample-go-basics")
	if err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if second.Title != first.Title || len(second.Questions) != len(first.Questions) || second.Questions[2].CorrectAnswer != "close" {
		t.Fatalf("cached quiz differs: %+v", second)
	}
}

func TestQuizRepositoryInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{QuizLoader: memory.NewQuizStore(memory.SampleQuiz())}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute)
	ctx := context.Background()

	_, _ = repo.GetQuiz(ctx, "sample-go-basics")
	repo.Invalidate(ctx, "sample-go-basics")
	if mr.Exists("quiz:sample-go-basics") {
		t.Fatalf("expected cache key removed")
	}
	_, _ = repo.GetQuiz(ctx, "sample-go-basics")
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

func TestQuizRepositoryInvalidateWinsOverInFlightLoad(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := memory.NewQuizStore(memory.SampleQuiz())
	loader := &gatedLoader{QuizLoader: store, started: make(chan struct{}), release: make(chan struct{})}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = repo.GetQuiz(ctx, "sample-go-basics")
	}()
	<-loader.started

	updated := memory.SampleQuiz()
	updated.Title = "Go Basics, revised"
	if err := store.UpdateQuiz(ctx, updated); err != nil {
		t.Fatalf("update: %v", err)
	}
	repo.Invalidate(ctx, "sample-go-basics")
	close(loader.release)
	<-done

	if mr.Exists("quiz:sample-go-basics") {
		t.Fatalf("expected the load that raced the invalidation not to be cached")
	}
	got, err := repo.GetQuiz(ctx, "sample-go-basics")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if got.Title != "Go Basics, revised" || !mr.Exists("quiz:sample-go-basics") {
		t.Fatalf("expected the updated quiz loaded and cached, got %q", got.Title)
	}
}

func TestQuizRepositoryFallsBackWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	repo := NewQuizRepository(client, memory.NewQuizStore(memory.SampleQuiz()), time.Minute)
	if _, err := repo.GetQuiz(context.Background(), "sample-go-basics"); err != nil {
		t.Fatalf("expected loader fallback, got %v", err)
	}
}

type countingLoader struct {
	memory.QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

// gatedLoader holds its first load open until release is closed.
type gatedLoader struct {
	memory.QuizLoader
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (l *gatedLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	q, err := l.QuizLoader.LoadQuiz(ctx, quizID)
	first := false
	l.once.Do(func() { first = true })
	if first {
		close(l.started)
		<-l.release
	}
	return q, err
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
