package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pharmintel/pharmawatch/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore persists notifications in a MongoDB collection. The upsert in
// CreateOrUpdate relies on the server-side atomicity of FindOneAndUpdate plus
// the unique (session_id, prompt_id) index, so two rechecks racing on the
// same topic converge on one record.
type MongoStore struct {
	collection *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore creates a Mongo-backed notification store and ensures its
// indexes.
func NewMongoStore(ctx context.Context, db *mongo.Database, collectionName string) (*MongoStore, error) {
	store := &MongoStore{collection: db.Collection(collectionName)}
	if err := store.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure notification indexes: %w", err)
	}
	return store, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "prompt_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "notification_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "enabled", Value: 1}},
		},
	})
	return err
}

// CreateOrUpdate upserts the notification for a monitored topic in a single
// atomic round trip.
func (s *MongoStore) CreateOrUpdate(ctx context.Context, sessionID, promptID string, result models.ComparisonResult) (*models.Notification, error) {
	now := time.Now().UTC()

	filter := bson.M{"session_id": sessionID, "prompt_id": promptID}
	update := bson.M{
		"$set": bson.M{
			"status":                 result.Status,
			"severity":               result.Severity,
			"changed_fields":         result.ChangedFields,
			"diff_details":           result.DiffDetails,
			"decision_reason":        result.DecisionReason,
			"requires_manual_review": result.RequiresManualReview,
			"updated_at":             now,
		},
		"$setOnInsert": bson.M{
			"notification_id": uuid.NewString(),
			"enabled":         true,
			"created_at":      now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var notification models.Notification
	if err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&notification); err != nil {
		return nil, fmt.Errorf("failed to upsert notification for %s/%s: %w", sessionID, promptID, err)
	}

	logrus.Debugf("Upserted notification %s for %s/%s (status=%s severity=%s)",
		notification.NotificationID, sessionID, promptID, notification.Status, notification.Severity)
	return &notification, nil
}

// Get looks up the notification for a monitored topic.
func (s *MongoStore) Get(ctx context.Context, sessionID, promptID string) (*models.Notification, error) {
	filter := bson.M{"session_id": sessionID, "prompt_id": promptID}

	var notification models.Notification
	err := s.collection.FindOne(ctx, filter).Decode(&notification)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load notification for %s/%s: %w", sessionID, promptID, err)
	}
	return &notification, nil
}

// SetEnabled toggles sweep participation for a topic. The updated_at stamp is
// left alone: it tracks rechecks, not lifecycle edits.
func (s *MongoStore) SetEnabled(ctx context.Context, sessionID, promptID string, enabled bool) (*models.Notification, error) {
	filter := bson.M{"session_id": sessionID, "prompt_id": promptID}
	update := bson.M{"$set": bson.M{"enabled": enabled}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var notification models.Notification
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&notification)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to toggle notification for %s/%s: %w", sessionID, promptID, err)
	}
	return &notification, nil
}

// ListEnabled returns every enabled notification, oldest check first so the
// sweep revisits the stalest topics before the fresh ones.
func (s *MongoStore) ListEnabled(ctx context.Context) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})

	cursor, err := s.collection.Find(ctx, bson.M{"enabled": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.Notification
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return records, nil
}
