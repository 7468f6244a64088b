package notifications

import (
	"context"
	"errors"

	"github.com/pharmintel/pharmawatch/internal/models"
)

// ErrNotFound is returned when no notification exists for a monitored topic.
var ErrNotFound = errors.New("notification not found")

// Store defines the contract for notification persistence. CreateOrUpdate
// must be a single atomic read-modify-write per (sessionID, promptID) so
// concurrent rechecks for the same topic cannot lose an update.
type Store interface {
	// CreateOrUpdate upserts the notification for (sessionID, promptID).
	// First write generates a fresh notificationId, enables the record and
	// sets createdAt; later writes overwrite the comparison fields and bump
	// updatedAt, preserving notificationId, enabled and createdAt. Every
	// recheck writes, even when the result is secure, so updatedAt means
	// "last checked".
	CreateOrUpdate(ctx context.Context, sessionID, promptID string, result models.ComparisonResult) (*models.Notification, error)

	// Get looks up the notification for a monitored topic.
	Get(ctx context.Context, sessionID, promptID string) (*models.Notification, error)

	// SetEnabled toggles whether the sweep visits this topic.
	SetEnabled(ctx context.Context, sessionID, promptID string, enabled bool) (*models.Notification, error)

	// ListEnabled returns every notification with enabled == true.
	ListEnabled(ctx context.Context) ([]models.Notification, error)
}
