package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
)

type Repository interface {
	GetActiveRules(ctx context.Context) ([]AutomationRule, error)
}

// AdminRepository is the full CRUD surface used by the admin service. The
// matcher only ever needs Repository.
type AdminRepository interface {
	Repository
	Create(ctx context.Context, rule *AutomationRule) error
	GetByID(ctx context.Context, id string) (*AutomationRule, error)
	List(ctx context.Context, limit, offset int) ([]AutomationRule, error)
	Update(ctx context.Context, rule *AutomationRule) error
	Delete(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
}

type MongoDBRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database) *MongoDBRepository {
	return &MongoDBRepository{
		collection: db.Collection("automation_rules"),
	}
}

func (r *MongoDBRepository) GetActiveRules(ctx context.Context) ([]AutomationRule, error) {
	filter := bson.M{"is_active": true}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find rules: %w", err)
	}
	defer cursor.Close(ctx)

	var result []AutomationRule
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}

	return result, nil
}

func (r *MongoDBRepository) Create(ctx context.Context, rule *AutomationRule) error {
	now := time.Now()
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, rule); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrConflict.WithDetail("rule_id", rule.ID)
		}
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

func (r *MongoDBRepository) GetByID(ctx context.Context, id string) (*AutomationRule, error) {
	var rule AutomationRule
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rule)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrNotFound.WithDetail("rule_id", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find rule: %w", err)
	}
	return &rule, nil
}

func (r *MongoDBRepository) List(ctx context.Context, limit, offset int) ([]AutomationRule, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer cursor.Close(ctx)

	rules := []AutomationRule{}
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	return rules, nil
}

func (r *MongoDBRepository) Update(ctx context.Context, rule *AutomationRule) error {
	rule.UpdatedAt = time.Now()

	update := bson.M{"$set": bson.M{
		"name":          rule.Name,
		"trigger_event": rule.TriggerEvent,
		"condition":     rule.Condition,
		"actions":       rule.Actions,
		"is_active":     rule.IsActive,
		"updated_at":    rule.UpdatedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": rule.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrNotFound.WithDetail("rule_id", rule.ID)
	}
	return nil
}

func (r *MongoDBRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if result.DeletedCount == 0 {
		return apperrors.ErrNotFound.WithDetail("rule_id", id)
	}
	return nil
}

func (r *MongoDBRepository) SetActive(ctx context.Context, id string, active bool) error {
	update := bson.M{"$set": bson.M{"is_active": active, "updated_at": time.Now()}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to toggle rule: %w", err)
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrNotFound.WithDetail("rule_id", id)
	}
	return nil
}
