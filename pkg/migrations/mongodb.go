package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureMongoIndexes creates the indexes the pipeline queries rely on. The
// matcher looks up rules by trigger event and active flag on every incoming
// event, so that one matters most.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	indexesByCollection := map[string][]mongo.IndexModel{
		"automation_rules": {
			{
				Keys:    bson.D{{Key: "trigger_event", Value: 1}, {Key: "is_active", Value: 1}},
				Options: options.Index().SetName("idx_automation_rules_trigger_active"),
			},
			{
				Keys:    bson.D{{Key: "coach_id", Value: 1}},
				Options: options.Index().SetName("idx_automation_rules_coach"),
			},
			{
				Keys:    bson.D{{Key: "updated_at", Value: -1}},
				Options: options.Index().SetName("idx_automation_rules_updated_at"),
			},
		},
		"leads": {
			{
				Keys:    bson.D{{Key: "coach_id", Value: 1}, {Key: "status", Value: 1}},
				Options: options.Index().SetName("idx_leads_coach_status"),
			},
			{
				Keys:    bson.D{{Key: "contact_info.email", Value: 1}},
				Options: options.Index().SetName("idx_leads_email"),
			},
		},
		"tasks": {
			{
				Keys:    bson.D{{Key: "assigned_to", Value: 1}, {Key: "due_date", Value: 1}},
				Options: options.Index().SetName("idx_tasks_assignee_due"),
			},
			{
				Keys:    bson.D{{Key: "related_lead", Value: 1}},
				Options: options.Index().SetName("idx_tasks_lead"),
			},
		},
		"payments": {
			{
				Keys:    bson.D{{Key: "lead_id", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("idx_payments_lead_created"),
			},
		},
	}

	for collection, indexes := range indexesByCollection {
		_, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create indexes for %s: %w", collection, err)
		}
	}

	return nil
}
