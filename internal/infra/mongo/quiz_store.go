package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"quizgenius-service/internal/domain"
)

// QuizStore keeps one document per quiz, questions embedded.
type QuizStore struct {
	collection *mongo.Collection
}

func NewQuizStore(db *mongo.Database) *QuizStore {
	return &QuizStore{collection: db.Collection(quizzesCollection)}
}

func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var q domain.Quiz
	err := s.collection.FindOne(ctx, bson.M{"_id": quizID}).Decode(&q)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	q.CreatedAt = q.CreatedAt.UTC()
	return q, nil
}

func (s *QuizStore) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	quizzes := make([]domain.Quiz, 0)
	if err := cursor.All(ctx, &quizzes); err != nil {
		return nil, fmt.Errorf("decode quizzes: %w", err)
	}
	for i := range quizzes {
		quizzes[i].CreatedAt = quizzes[i].CreatedAt.UTC()
	}
	return quizzes, nil
}

func (s *QuizStore) CreateQuiz(ctx context.Context, q domain.Quiz) error {
	if _, err := s.collection.InsertOne(ctx, q); err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

func (s *QuizStore) UpdateQuiz(ctx context.Context, q domain.Quiz) error {
	result, err := s.collection.ReplaceOne(ctx, bson.M{"_id": q.ID}, q)
	if err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *QuizStore) DeleteQuiz(ctx context.Context, quizID string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": quizID}); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	return nil
}
