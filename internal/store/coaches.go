package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
)

type Coach struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email,omitempty" json:"email,omitempty"`
	Credits   int       `bson:"credits" json:"credits"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

type CoachStore interface {
	GetByID(ctx context.Context, id string) (*Coach, error)
	AddCredits(ctx context.Context, id string, amount int) error
}

type MongoCoachStore struct {
	collection *mongo.Collection
}

func NewCoachStore(db *mongo.Database) CoachStore {
	return &MongoCoachStore{collection: db.Collection("coaches")}
}

func (s *MongoCoachStore) GetByID(ctx context.Context, id string) (*Coach, error) {
	var coach Coach
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&coach)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrNotFound.WithDetail("coach_id", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal)
	}
	return &coach, nil
}

func (s *MongoCoachStore) AddCredits(ctx context.Context, id string, amount int) error {
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"credits": amount},
		"$set": bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal)
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrNotFound.WithDetail("coach_id", id)
	}
	return nil
}
