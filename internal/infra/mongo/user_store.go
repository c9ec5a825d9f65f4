package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"quizgenius-service/internal/domain"
)

// UserStore relies on the unique username index created by EnsureIndexes.
type UserStore struct {
	collection *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{collection: db.Collection(usersCollection)}
}

func (s *UserStore) CreateUser(ctx context.Context, u domain.User) error {
	_, err := s.collection.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) FindUserByUsername(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := s.collection.FindOne(ctx, bson.M{"username": username}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}
