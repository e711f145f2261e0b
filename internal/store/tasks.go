package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
)

type Task struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	AssignedTo  string    `bson:"assigned_to" json:"assigned_to"`
	RelatedLead string    `bson:"related_lead,omitempty" json:"related_lead,omitempty"`
	DueDate     time.Time `bson:"due_date,omitempty" json:"due_date,omitempty"`
	Status      string    `bson:"status" json:"status"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

type TaskStore interface {
	Create(ctx context.Context, task *Task) error
}

type MongoTaskStore struct {
	collection *mongo.Collection
}

func NewTaskStore(db *mongo.Database) TaskStore {
	return &MongoTaskStore{collection: db.Collection("tasks")}
}

func (s *MongoTaskStore) Create(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = "open"
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	if _, err := s.collection.InsertOne(ctx, task); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal)
	}
	return nil
}
