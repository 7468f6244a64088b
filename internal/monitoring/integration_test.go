package monitoring

import (
	"context"
	"testing"

	"github.com/pharmintel/pharmawatch/internal/models"
	"github.com/pharmintel/pharmawatch/internal/notifications"
	"github.com/pharmintel/pharmawatch/internal/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSnapshotStore is an in-memory snapshot source keyed by topic.
type fakeSnapshotStore struct {
	snapshots map[string]*models.AgentSnapshot
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snapshots: make(map[string]*models.AgentSnapshot)}
}

func (f *fakeSnapshotStore) GetLatestSnapshot(ctx context.Context, sessionID, promptID string) (*models.AgentSnapshot, error) {
	snapshot, ok := f.snapshots[sessionID+"/"+promptID]
	if !ok {
		return nil, sources.ErrSnapshotNotFound
	}
	return snapshot, nil
}

func (f *fakeSnapshotStore) RecordSnapshot(ctx context.Context, snapshot *models.AgentSnapshot) error {
	f.snapshots[snapshot.SessionID+"/"+snapshot.PromptID] = snapshot
	return nil
}

// fakeDocumentStore serves a single uploaded document per session.
type fakeDocumentStore struct {
	texts map[string]string
}

func (f *fakeDocumentStore) GetUploadedDocumentText(ctx context.Context, sessionID string) (string, error) {
	text, ok := f.texts[sessionID]
	if !ok {
		return "", sources.ErrNoDocument
	}
	return text, nil
}

// TestIntegration_MonitoringLifecycle walks a topic from first snapshot to a
// contradicting uploaded document: bootstrap establishes a secure record, the
// document flips it to changed/high across every affected category, and a
// later recheck with the document still present keeps reporting the change.
func TestIntegration_MonitoringLifecycle(t *testing.T) {
	ctx := context.Background()

	snapshots := newFakeSnapshotStore()
	documents := &fakeDocumentStore{texts: make(map[string]string)}
	store := notifications.NewMemoryStore()
	service := NewService(testConfig(), snapshots, nil, documents, store)

	// The research session's agents reported a blocking composition patent
	// and a moderate import dependency.
	require.NoError(t, snapshots.RecordSnapshot(ctx, snapshotFor("sess-42", "prompt-7")))

	// First recheck has no new evidence and bootstraps the record as secure.
	bootstrap, err := service.Recheck(ctx, "sess-42", "prompt-7", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSecure, bootstrap.Result.Status)
	assert.Equal(t, models.SeverityNone, bootstrap.Result.Severity)
	assert.False(t, bootstrap.Result.RequiresManualReview)

	// A stakeholder uploads a market bulletin contradicting the baseline.
	documents.texts["sess-42"] = "Regulatory update: the export embargo on key intermediates " +
		"was announced this week, alongside an import alert for finished doses. " +
		"Patent 11223344 was invalidated by the appeals board and is no longer enforceable."

	outcome, err := service.Recheck(ctx, "sess-42", "prompt-7", nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusChanged, outcome.Result.Status)
	assert.Equal(t, models.SeverityHigh, outcome.Result.Severity)
	assert.True(t, outcome.Result.RequiresManualReview,
		"a contradiction of a blocking patent always goes to a human")
	assert.Contains(t, outcome.Result.ChangedFields, models.CategoryRegulatory)
	assert.Contains(t, outcome.Result.ChangedFields, models.CategoryInternalDoc)
	assert.NotEmpty(t, outcome.Result.DecisionReason)

	// Same record, updated in place.
	assert.Equal(t, bootstrap.Notification.NotificationID, outcome.Notification.NotificationID)
	assert.Equal(t, bootstrap.Notification.CreatedAt, outcome.Notification.CreatedAt)

	// The document is still the freshest evidence, so a sweep reports the
	// topic as changed again rather than silently resetting it.
	changed, err := service.RunSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"prompt-7"}, changed)

	// Disabling the notification removes it from subsequent sweeps.
	_, err = store.SetEnabled(ctx, "sess-42", "prompt-7", false)
	require.NoError(t, err)

	changed, err = service.RunSweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, changed)

	// A corrected agent bundle supplied directly re-secures the topic once
	// it matches the recorded baseline again.
	_, err = store.SetEnabled(ctx, "sess-42", "prompt-7", true)
	require.NoError(t, err)

	resecured, err := service.Recheck(ctx, "sess-42", "prompt-7", baselineBundle())
	require.NoError(t, err)
	assert.Equal(t, models.StatusSecure, resecured.Result.Status)
	assert.Equal(t, models.SeverityNone, resecured.Result.Severity)
}
