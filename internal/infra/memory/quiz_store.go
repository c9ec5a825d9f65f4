package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quizgenius-service/internal/domain"
)

// QuizStore is a map-backed quiz store (useful for tests/demos and the default driver).
type QuizStore struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewQuizStore(seed ...domain.Quiz) *QuizStore {
	s := &QuizStore{quizzes: make(map[string]domain.Quiz, len(seed))}
	for _, q := range seed {
		s.quizzes[q.ID] = q
	}
	return s
}

// ListQuizzes returns all quizzes, newest first.
func (s *QuizStore) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Quiz, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *QuizStore) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if q, ok := s.quizzes[quizID]; ok {
		return q, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (s *QuizStore) CreateQuiz(_ context.Context, q domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[q.ID] = q
	return nil
}

func (s *QuizStore) UpdateQuiz(_ context.Context, q domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[q.ID]; !ok {
		return domain.ErrQuizNotFound
	}
	s.quizzes[q.ID] = q
	return nil
}

func (s *QuizStore) DeleteQuiz(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quizzes, quizID)
	return nil
}

// SampleQuiz is the quiz the memory driver starts with.
func SampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:          "sample-go-basics",
		Title:       "Go Basics",
		Description: "A short warm-up on the Go language.",
		CreatedAt:   time.Date(2024, 11, 22, 0, 0, 0, 0, time.UTC),
		Questions: []domain.Question{
			{
				ID:            "q1",
				Text:          "Which keyword starts a goroutine?",
				Type:          domain.QuestionMCQ,
				Options:       []string{"go", "async", "spawn", "thread"},
				CorrectAnswer: "go",
				Points:        10,
			},
			{
				ID:            "q2",
				Text:          "A nil map can be read from without panicking.",
				Type:          domain.QuestionTrueFalse,
				Options:       domain.TrueFalseOptions(),
				CorrectAnswer: "True",
				Points:        10,
			},
			{
				ID:            "q3",
				Text:          "Which built-in closes a channel?",
				Type:          domain.QuestionMCQ,
				Options:       []string{"close", "end", "stop", "done"},
				CorrectAnswer: "close",
				Points:        20,
			},
		},
	}
}
