package notifications

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pharmintel/pharmawatch/internal/models"
)

// MemoryStore is an in-process Store used by tests and the dev CLI. A single
// mutex makes every operation an atomic read-modify-write.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*models.Notification
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory notification store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*models.Notification)}
}

func topicKey(sessionID, promptID string) string {
	return sessionID + "\x00" + promptID
}

// CreateOrUpdate upserts the notification for a monitored topic.
func (s *MemoryStore) CreateOrUpdate(_ context.Context, sessionID, promptID string, result models.ComparisonResult) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := topicKey(sessionID, promptID)

	record, exists := s.records[key]
	if !exists {
		record = &models.Notification{
			NotificationID: uuid.NewString(),
			SessionID:      sessionID,
			PromptID:       promptID,
			Enabled:        true,
			CreatedAt:      now,
		}
		s.records[key] = record
	}

	record.Status = result.Status
	record.Severity = result.Severity
	record.ChangedFields = result.ChangedFields
	record.DiffDetails = result.DiffDetails
	record.DecisionReason = result.DecisionReason
	record.RequiresManualReview = result.RequiresManualReview
	record.UpdatedAt = now

	copied := *record
	return &copied, nil
}

// Get looks up the notification for a monitored topic.
func (s *MemoryStore) Get(_ context.Context, sessionID, promptID string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[topicKey(sessionID, promptID)]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *record
	return &copied, nil
}

// SetEnabled toggles sweep participation for a topic.
func (s *MemoryStore) SetEnabled(_ context.Context, sessionID, promptID string, enabled bool) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[topicKey(sessionID, promptID)]
	if !exists {
		return nil, ErrNotFound
	}
	record.Enabled = enabled
	copied := *record
	return &copied, nil
}

// ListEnabled returns every enabled notification, oldest check first.
func (s *MemoryStore) ListEnabled(_ context.Context) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []models.Notification
	for _, record := range s.records {
		if record.Enabled {
			records = append(records, *record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.Before(records[j].UpdatedAt)
	})
	return records, nil
}
