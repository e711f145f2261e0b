// Package store holds the Mongo-backed record repositories the executor
// mutates: leads, coaches, tasks and payments. Counter updates go through
// $inc and field updates through $set, so concurrent executions of
// different actions never lose increments.
package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
)

type ContactInfo struct {
	Email    string `bson:"email,omitempty" json:"email,omitempty"`
	Phone    string `bson:"phone,omitempty" json:"phone,omitempty"`
	WhatsApp string `bson:"whatsapp,omitempty" json:"whatsapp,omitempty"`
}

type Lead struct {
	ID                 string      `bson:"_id,omitempty" json:"id"`
	Name               string      `bson:"name" json:"name"`
	CoachID            string      `bson:"coach_id,omitempty" json:"coach_id,omitempty"`
	Status             string      `bson:"status,omitempty" json:"status,omitempty"`
	Temperature        string      `bson:"temperature,omitempty" json:"temperature,omitempty"`
	Score              int         `bson:"score" json:"score"`
	CurrentFunnelStage string      `bson:"current_funnel_stage,omitempty" json:"current_funnel_stage,omitempty"`
	ContactInfo        ContactInfo `bson:"contact_info" json:"contact_info"`
	CreatedAt          time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time   `bson:"updated_at" json:"updated_at"`
}

type LeadStore interface {
	GetByID(ctx context.Context, id string) (*Lead, error)
	IncrementScore(ctx context.Context, id string, delta int) error
	SetField(ctx context.Context, id string, field string, value interface{}) error
	SetFunnelStage(ctx context.Context, id string, stage string) error
	SetStatus(ctx context.Context, id string, status string) error
}

type MongoLeadStore struct {
	collection *mongo.Collection
}

func NewLeadStore(db *mongo.Database) LeadStore {
	return &MongoLeadStore{collection: db.Collection("leads")}
}

func (s *MongoLeadStore) GetByID(ctx context.Context, id string) (*Lead, error) {
	var lead Lead
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&lead)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrNotFound.WithDetail("lead_id", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal)
	}
	return &lead, nil
}

func (s *MongoLeadStore) IncrementScore(ctx context.Context, id string, delta int) error {
	return s.update(ctx, id, bson.M{
		"$inc": bson.M{"score": delta},
		"$set": bson.M{"updated_at": time.Now()},
	})
}

func (s *MongoLeadStore) SetField(ctx context.Context, id string, field string, value interface{}) error {
	return s.update(ctx, id, bson.M{
		"$set": bson.M{field: value, "updated_at": time.Now()},
	})
}

func (s *MongoLeadStore) SetFunnelStage(ctx context.Context, id string, stage string) error {
	return s.SetField(ctx, id, "current_funnel_stage", stage)
}

func (s *MongoLeadStore) SetStatus(ctx context.Context, id string, status string) error {
	return s.SetField(ctx, id, "status", status)
}

func (s *MongoLeadStore) update(ctx context.Context, id string, update bson.M) error {
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal)
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrNotFound.WithDetail("lead_id", id)
	}
	return nil
}
