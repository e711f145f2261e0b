package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
)

type Payment struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	LeadID    string    `bson:"lead_id" json:"lead_id"`
	CoachID   string    `bson:"coach_id,omitempty" json:"coach_id,omitempty"`
	Amount    float64   `bson:"amount" json:"amount"`
	Currency  string    `bson:"currency,omitempty" json:"currency,omitempty"`
	Status    string    `bson:"status" json:"status"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type PaymentStore interface {
	GetByID(ctx context.Context, id string) (*Payment, error)
	GetLatestByLead(ctx context.Context, leadID string) (*Payment, error)
}

type MongoPaymentStore struct {
	collection *mongo.Collection
}

func NewPaymentStore(db *mongo.Database) PaymentStore {
	return &MongoPaymentStore{collection: db.Collection("payments")}
}

func (s *MongoPaymentStore) GetByID(ctx context.Context, id string) (*Payment, error) {
	var payment Payment
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&payment)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrNotFound.WithDetail("payment_id", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal)
	}
	return &payment, nil
}

func (s *MongoPaymentStore) GetLatestByLead(ctx context.Context, leadID string) (*Payment, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var payment Payment
	err := s.collection.FindOne(ctx, bson.M{"lead_id": leadID}, opts).Decode(&payment)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrNotFound.WithDetail("lead_id", leadID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal)
	}
	return &payment, nil
}
