package mongo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"quizgenius-service/internal/domain"
)

// attemptDocument is the stored shape of an attempt. BSON keys must be strings,
// so answers are keyed by the decimal position.
type attemptDocument struct {
	ID        string            `bson:"_id"`
	UserID    string            `bson:"userId"`
	QuizID    string            `bson:"quizId"`
	Score     int               `bson:"score"`
	MaxScore  int               `bson:"maxScore"`
	Timestamp time.Time         `bson:"timestamp"`
	Answers   map[string]string `bson:"answers"`
}

func toAttemptDocument(a domain.Attempt) attemptDocument {
	answers := make(map[string]string, len(a.Answers))
	for pos, option := range a.Answers {
		answers[strconv.Itoa(pos)] = option
	}
	return attemptDocument{
		ID:        a.ID,
		UserID:    a.UserID,
		QuizID:    a.QuizID,
		Score:     a.Score,
		MaxScore:  a.MaxScore,
		Timestamp: a.Timestamp,
		Answers:   answers,
	}
}

func (d attemptDocument) attempt() (domain.Attempt, error) {
	answers := make(domain.Answers, len(d.Answers))
	for key, option := range d.Answers {
		pos, err := strconv.Atoi(key)
		if err != nil {
			return domain.Attempt{}, fmt.Errorf("attempt %s: bad answer key %q", d.ID, key)
		}
		answers[pos] = option
	}
	return domain.Attempt{
		ID:        d.ID,
		UserID:    d.UserID,
		QuizID:    d.QuizID,
		Score:     d.Score,
		MaxScore:  d.MaxScore,
		Timestamp: d.Timestamp.UTC(),
		Answers:   answers,
	}, nil
}

type AttemptStore struct {
	collection *mongo.Collection
}

func NewAttemptStore(db *mongo.Database) *AttemptStore {
	return &AttemptStore{collection: db.Collection(attemptsCollection)}
}

func (s *AttemptStore) SaveAttempt(ctx context.Context, a domain.Attempt) error {
	if _, err := s.collection.InsertOne(ctx, toAttemptDocument(a)); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) ListAttemptsByUser(ctx context.Context, userID string) ([]domain.Attempt, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	cursor, err := s.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	var docs []attemptDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode attempts: %w", err)
	}
	attempts := make([]domain.Attempt, 0, len(docs))
	for _, d := range docs {
		a, err := d.attempt()
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}
