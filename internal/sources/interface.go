package sources

import (
	"context"
	"errors"

	"github.com/pharmintel/pharmawatch/internal/models"
)

// ErrSnapshotNotFound means no agent snapshot was ever recorded for a topic.
var ErrSnapshotNotFound = errors.New("agent snapshot not found")

// ErrNoDocument means no document has been uploaded for a session.
var ErrNoDocument = errors.New("no uploaded document")

// SnapshotSource resolves the most recent multi-agent output bundle recorded
// for a monitored topic. It backs both baseline resolution and live
// observation re-fetches.
type SnapshotSource interface {
	GetLatestSnapshot(ctx context.Context, sessionID, promptID string) (*models.AgentSnapshot, error)
}

// SnapshotRecorder accepts new agent snapshots (the write side of the
// snapshot collaborator, used by the ingest endpoint).
type SnapshotRecorder interface {
	RecordSnapshot(ctx context.Context, snapshot *models.AgentSnapshot) error
}

// DocumentSource resolves the text of the most recently uploaded document
// for a session. ErrNoDocument signals absence, not failure.
type DocumentSource interface {
	GetUploadedDocumentText(ctx context.Context, sessionID string) (string, error)
}
