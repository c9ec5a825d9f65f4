package app

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"quizgenius-service/internal/domain"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(correctAnswerInOptions, domain.Question{})
	return v
}

// correctAnswerInOptions rejects a question whose correct answer is not one of its options.
func correctAnswerInOptions(sl validator.StructLevel) {
	q := sl.Current().Interface().(domain.Question)
	if q.CorrectAnswer != "" && !slices.Contains(q.Options, q.CorrectAnswer) {
		sl.ReportError(q.CorrectAnswer, "CorrectAnswer", "correctAnswer", "oneofoptions", "")
	}
}

// ListQuizzes returns every quiz. Non-admins never see correct answers.
func (s *QuizService) ListQuizzes(ctx context.Context, principal domain.Principal) ([]domain.Quiz, error) {
	quizzes, err := s.store.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	if principal.IsAdmin() {
		return quizzes, nil
	}
	out := make([]domain.Quiz, len(quizzes))
	for i, q := range quizzes {
		out[i] = withoutAnswers(q)
	}
	return out, nil
}

// GetQuiz returns one quiz. Non-admins never see correct answers.
func (s *QuizService) GetQuiz(ctx context.Context, principal domain.Principal, quizID string) (domain.Quiz, error) {
	q, err := s.store.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if principal.IsAdmin() {
		return q, nil
	}
	return withoutAnswers(q), nil
}

// CreateQuiz validates and stores a new quiz authored by an admin.
func (s *QuizService) CreateQuiz(ctx context.Context, principal domain.Principal, q domain.Quiz) (domain.Quiz, error) {
	if !principal.IsAdmin() {
		return domain.Quiz{}, domain.ErrForbidden
	}
	q = normalizeQuiz(q)
	q.ID = uuid.NewString()
	q.CreatedAt = s.now().UTC()
	if err := s.validateQuiz(q); err != nil {
		return domain.Quiz{}, err
	}
	if err := s.store.CreateQuiz(ctx, q); err != nil {
		return domain.Quiz{}, err
	}
	return q, nil
}

// UpdateQuiz replaces an existing quiz, keeping its id and creation time.
// New sessions see the change immediately; running sessions keep their copy.
func (s *QuizService) UpdateQuiz(ctx context.Context, principal domain.Principal, quizID string, q domain.Quiz) (domain.Quiz, error) {
	if !principal.IsAdmin() {
		return domain.Quiz{}, domain.ErrForbidden
	}
	existing, err := s.store.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	q = normalizeQuiz(q)
	q.ID = existing.ID
	q.CreatedAt = existing.CreatedAt
	if err := s.validateQuiz(q); err != nil {
		return domain.Quiz{}, err
	}
	if err := s.store.UpdateQuiz(ctx, q); err != nil {
		return domain.Quiz{}, err
	}
	s.quizzes.Invalidate(ctx, quizID)
	return q, nil
}

// DeleteQuiz removes a quiz. Deleting an unknown quiz is not an error.
func (s *QuizService) DeleteQuiz(ctx context.Context, principal domain.Principal, quizID string) error {
	if !principal.IsAdmin() {
		return domain.ErrForbidden
	}
	if err := s.store.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	s.quizzes.Invalidate(ctx, quizID)
	return nil
}

func (s *QuizService) validateQuiz(q domain.Quiz) error {
	if err := s.validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("%w: %s failed %s", domain.ErrInvalidQuiz, first.Namespace(), first.Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidQuiz, err)
	}
	return nil
}

// normalizeQuiz fills authoring defaults: ids, MCQ type, fixed True/False options and points.
func normalizeQuiz(q domain.Quiz) domain.Quiz {
	questions := make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		if question.ID == "" {
			question.ID = uuid.NewString()
		}
		if question.Type == "" {
			question.Type = domain.QuestionMCQ
		}
		if question.Type == domain.QuestionTrueFalse {
			question.Options = domain.TrueFalseOptions()
		}
		if question.Points <= 0 {
			question.Points = domain.DefaultPoints
		}
		questions[i] = question
	}
	q.Questions = questions
	return q
}

func withoutAnswers(q domain.Quiz) domain.Quiz {
	questions := make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		question.CorrectAnswer = ""
		questions[i] = question
	}
	q.Questions = questions
	return q
}
