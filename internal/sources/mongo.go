package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmintel/pharmawatch/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSnapshotStore keeps recorded agent snapshots in a MongoDB collection,
// latest-wins by recorded_at. It serves as both the baseline source and the
// write side for the ingest endpoint.
type MongoSnapshotStore struct {
	collection *mongo.Collection
}

var _ SnapshotSource = (*MongoSnapshotStore)(nil)
var _ SnapshotRecorder = (*MongoSnapshotStore)(nil)

// NewMongoSnapshotStore creates a Mongo-backed snapshot store and ensures the
// lookup index.
func NewMongoSnapshotStore(ctx context.Context, db *mongo.Database, collectionName string) (*MongoSnapshotStore, error) {
	store := &MongoSnapshotStore{collection: db.Collection(collectionName)}

	_, err := store.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "session_id", Value: 1},
			{Key: "prompt_id", Value: 1},
			{Key: "recorded_at", Value: -1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure snapshot index: %w", err)
	}
	return store, nil
}

// GetLatestSnapshot returns the most recently recorded snapshot for a topic.
func (s *MongoSnapshotStore) GetLatestSnapshot(ctx context.Context, sessionID, promptID string) (*models.AgentSnapshot, error) {
	filter := bson.M{"session_id": sessionID, "prompt_id": promptID}
	opts := options.FindOne().SetSort(bson.D{{Key: "recorded_at", Value: -1}})

	var snapshot models.AgentSnapshot
	err := s.collection.FindOne(ctx, filter, opts).Decode(&snapshot)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot for %s/%s: %w", sessionID, promptID, err)
	}
	return &snapshot, nil
}

// RecordSnapshot stores a new agent snapshot. RecordedAt defaults to now when
// the caller left it unset.
func (s *MongoSnapshotStore) RecordSnapshot(ctx context.Context, snapshot *models.AgentSnapshot) error {
	if snapshot.RecordedAt.IsZero() {
		snapshot.RecordedAt = time.Now().UTC()
	}

	if _, err := s.collection.InsertOne(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to record snapshot for %s/%s: %w", snapshot.SessionID, snapshot.PromptID, err)
	}

	logrus.Debugf("Recorded agent snapshot for %s/%s", snapshot.SessionID, snapshot.PromptID)
	return nil
}
