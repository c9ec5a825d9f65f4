package app

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"quizgenius-service/internal/domain"
)

// PersistAttempt stores a finished attempt and, when configured, announces it.
// It is the AttemptGateway handed to every Player. Publishing is best-effort.
func (s *QuizService) PersistAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	if err := validateAttempt(attempt); err != nil {
		return domain.Attempt{}, err
	}
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = s.now()
	}
	attempt.Timestamp = attempt.Timestamp.UTC()
	if attempt.Answers == nil {
		attempt.Answers = domain.Answers{}
	}

	if err := s.attempts.SaveAttempt(ctx, attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("save attempt: %w", err)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishAttemptCompleted(ctx, attempt); err != nil {
			log.Printf("publish attempt %s: %v", attempt.ID, err)
		}
	}
	return attempt, nil
}

// RecordAttempt stores a client-reported attempt for the calling user.
func (s *QuizService) RecordAttempt(ctx context.Context, principal domain.Principal, attempt domain.Attempt) (domain.Attempt, error) {
	if principal.UserID == "" {
		return domain.Attempt{}, domain.ErrForbidden
	}
	attempt.ID = ""
	attempt.UserID = principal.UserID
	attempt.Timestamp = s.now()
	return s.PersistAttempt(ctx, attempt)
}

// MyAttempts lists the calling user's attempt history.
func (s *QuizService) MyAttempts(ctx context.Context, principal domain.Principal) ([]domain.Attempt, error) {
	if principal.UserID == "" {
		return []domain.Attempt{}, nil
	}
	return s.attempts.ListAttemptsByUser(ctx, principal.UserID)
}

func validateAttempt(a domain.Attempt) error {
	switch {
	case a.QuizID == "":
		return fmt.Errorf("%w: quizId is required", domain.ErrInvalidAttempt)
	case a.UserID == "":
		return fmt.Errorf("%w: userId is required", domain.ErrInvalidAttempt)
	case a.Score < 0 || a.Score > a.MaxScore:
		return fmt.Errorf("%w: score %d outside 0..%d", domain.ErrInvalidAttempt, a.Score, a.MaxScore)
	}
	return nil
}
