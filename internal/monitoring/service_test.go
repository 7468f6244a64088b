package monitoring

import (
	"context"
	"errors"
	"testing"

	"github.com/pharmintel/pharmawatch/internal/compare"
	"github.com/pharmintel/pharmawatch/internal/config"
	"github.com/pharmintel/pharmawatch/internal/models"
	"github.com/pharmintel/pharmawatch/internal/notifications"
	"github.com/pharmintel/pharmawatch/internal/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSnapshotSource is a mock implementation of the snapshot source
type MockSnapshotSource struct {
	mock.Mock
}

func (m *MockSnapshotSource) GetLatestSnapshot(ctx context.Context, sessionID, promptID string) (*models.AgentSnapshot, error) {
	args := m.Called(ctx, sessionID, promptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AgentSnapshot), args.Error(1)
}

// MockDocumentSource is a mock implementation of the document source
type MockDocumentSource struct {
	mock.Mock
}

func (m *MockDocumentSource) GetUploadedDocumentText(ctx context.Context, sessionID string) (string, error) {
	args := m.Called(ctx, sessionID)
	return args.String(0), args.Error(1)
}

func testConfig() *config.Config {
	defaults := compare.DefaultThresholds()
	return &config.Config{
		SweepFanOut:      2,
		TradeLowDelta:    defaults.TradeLowDelta,
		TradeMediumDelta: defaults.TradeMediumDelta,
		TradeHighDelta:   defaults.TradeHighDelta,
		YoYFlipDelta:     defaults.YoYFlipDelta,
	}
}

func baselineBundle() map[string]interface{} {
	return map[string]interface{}{
		"patent_agent": map[string]interface{}{
			"patents": []interface{}{
				map[string]interface{}{
					"patent_number": "11223344",
					"title":         "Crystalline forms",
					"claim_type":    "composition",
					"expiry":        "2032-06-15",
					"blocking":      true,
				},
				map[string]interface{}{
					"patent_number": "10987654",
					"title":         "Delayed release formulation",
					"claim_type":    "formulation",
					"blocking":      false,
				},
			},
		},
		"trade_agent": map[string]interface{}{
			"trade_insights": map[string]interface{}{
				"import_dependency_ratio": 0.42,
			},
		},
	}
}

func snapshotFor(sessionID, promptID string) *models.AgentSnapshot {
	return &models.AgentSnapshot{
		SessionID: sessionID,
		PromptID:  promptID,
		Payloads:  baselineBundle(),
	}
}

func TestService_RecheckBootstrapIsSecure(t *testing.T) {
	snapshots := &MockSnapshotSource{}
	store := notifications.NewMemoryStore()
	service := NewService(testConfig(), snapshots, nil, nil, store)

	snapshots.On("GetLatestSnapshot", mock.Anything, "s1", "p1").Return(snapshotFor("s1", "p1"), nil)

	outcome, err := service.Recheck(context.Background(), "s1", "p1", nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusSecure, outcome.Result.Status)
	assert.Equal(t, models.SeverityNone, outcome.Result.Severity)
	require.NotNil(t, outcome.Notification)
	assert.True(t, outcome.Notification.Enabled)
	assert.NotEmpty(t, outcome.Notification.NotificationID)

	stored, err := store.Get(context.Background(), "s1", "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSecure, stored.Status)
}

func TestService_RecheckMissingBaseline(t *testing.T) {
	snapshots := &MockSnapshotSource{}
	store := notifications.NewMemoryStore()
	service := NewService(testConfig(), snapshots, nil, nil, store)

	snapshots.On("GetLatestSnapshot", mock.Anything, "s1", "unknown").Return(nil, sources.ErrSnapshotNotFound)

	_, err := service.Recheck(context.Background(), "s1", "unknown", nil)
	assert.ErrorIs(t, err, ErrBaselineNotFound)

	// No write happened.
	_, err = store.Get(context.Background(), "s1", "unknown")
	assert.ErrorIs(t, err, notifications.ErrNotFound)
}

func TestService_RecheckFreshBundlePreferred(t *testing.T) {
	snapshots := &MockSnapshotSource{}
	documents := &MockDocumentSource{}
	store := notifications.NewMemoryStore()
	service := NewService(testConfig(), snapshots, nil, documents, store)

	snapshots.On("GetLatestSnapshot", mock.Anything, "s1", "p1").Return(snapshotFor("s1", "p1"), nil)

	fresh := baselineBundle()
	patents := fresh["patent_agent"].(map[string]interface{})["patents"].([]interface{})
	fresh["patent_agent"].(map[string]interface{})["patents"] = append(patents, map[string]interface{}{
		"patent_number": "12000001",
		"title":         "New process patent",
		"claim_type":    "process",
		"blocking":      true,
	})

	outcome, err := service.Recheck(context.Background(), "s1", "p1", fresh)
	require.NoError(t, err)

	assert.Equal(t, models.StatusChanged, outcome.Result.Status)
	assert.Equal(t, models.SeverityHigh, outcome.Result.Severity)
	assert.Contains(t, outcome.Result.ChangedFields, models.CategoryPatents)
	documents.AssertNotCalled(t, "GetUploadedDocumentText", mock.Anything, mock.Anything)
}

func TestService_RecheckDocumentObservation(t *testing.T) {
	snapshots := &MockSnapshotSource{}
	documents := &MockDocumentSource{}
	store := notifications.NewMemoryStore()
	service := NewService(testConfig(), snapshots, nil, documents, store)

	snapshots.On("GetLatestSnapshot", mock.Anything, "s1", "p1").Return(snapshotFor("s1", "p1"), nil)
	documents.On("GetUploadedDocumentText", mock.Anything, "s1").
		Return("Patent 11223344 has been invalidated by the appeals board. There is an embargo on raw intermediates.", nil)

	outcome, err := service.Recheck(context.Background(), "s1", "p1", nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusChanged, outcome.Result.Status)
	assert.GreaterOrEqual(t, outcome.Result.Severity.Rank(), models.SeverityMedium.Rank())
	assert.True(t, outcome.Result.RequiresManualReview)
}

func TestService_RecheckDocumentFailureDegradesToSelfComparison(t *testing.T) {
	snapshots := &MockSnapshotSource{}
	documents := &MockDocumentSource{}
	store := notifications.NewMemoryStore()
	service := NewService(testConfig(), snapshots, nil, documents, store)

	snapshots.On("GetLatestSnapshot", mock.Anything, "s1", "p1").Return(snapshotFor("s1", "p1"), nil)
	documents.On("GetUploadedDocumentText", mock.Anything, "s1").
		Return("", errors.New("blob service unavailable"))

	outcome, err := service.Recheck(context.Background(), "s1", "p1", nil)
	require.NoError(t, err, "observation-source failure must not fail the recheck")

	assert.Equal(t, models.StatusSecure, outcome.Result.Status)
	assert.Contains(t, outcome.Result.DecisionReason, "baseline reconfirmed")

	// The degraded recheck still wrote, so updatedAt tracks the attempt.
	stored, err := store.Get(context.Background(), "s1", "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSecure, stored.Status)
}

func TestService_RecheckLiveSourceObservation(t *testing.T) {
	snapshots := &MockSnapshotSource{}
	live := &MockSnapshotSource{}
	store := notifications.NewMemoryStore()
	service := NewService(testConfig(), snapshots, live, nil, store)

	snapshots.On("GetLatestSnapshot", mock.Anything, "s1", "p1").Return(snapshotFor("s1", "p1"), nil)

	refreshed := snapshotFor("s1", "p1")
	refreshed.Payloads["trade_agent"] = map[string]interface{}{
		"trade_insights": map[string]interface{}{
			"import_dependency_ratio": 0.58,
		},
	}
	live.On("GetLatestSnapshot", mock.Anything, "s1", "p1").Return(refreshed, nil)

	outcome, err := service.Recheck(context.Background(), "s1", "p1", nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusChanged, outcome.Result.Status)
	assert.Equal(t, models.SeverityHigh, outcome.Result.Severity)
	assert.Contains(t, outcome.Result.ChangedFields, models.CategoryTrade)
}

func TestService_RunSweep(t *testing.T) {
	snapshots := &MockSnapshotSource{}
	documents := &MockDocumentSource{}
	store := notifications.NewMemoryStore()
	service := NewService(testConfig(), snapshots, nil, documents, store)

	ctx := context.Background()

	// Seed three monitored topics.
	for _, promptID := range []string{"p1", "p2", "p3"} {
		_, err := store.CreateOrUpdate(ctx, "s1", promptID, models.ComparisonResult{
			Status: models.StatusSecure, Severity: models.SeverityNone,
		})
		require.NoError(t, err)
	}
	// p3 is disabled and must be skipped.
	_, err := store.SetEnabled(ctx, "s1", "p3", false)
	require.NoError(t, err)

	// p1 resolves and sees a contradicting document; p2's baseline is gone.
	snapshots.On("GetLatestSnapshot", mock.Anything, "s1", "p1").Return(snapshotFor("s1", "p1"), nil)
	snapshots.On("GetLatestSnapshot", mock.Anything, "s1", "p2").Return(nil, sources.ErrSnapshotNotFound)
	documents.On("GetUploadedDocumentText", mock.Anything, "s1").
		Return("Patent 11223344 has been invalidated. An embargo is now in force.", nil)

	changed, err := service.RunSweep(ctx)
	require.NoError(t, err, "a single failing topic must not abort the sweep")

	assert.Equal(t, []string{"p1"}, changed)
	snapshots.AssertNotCalled(t, "GetLatestSnapshot", mock.Anything, "s1", "p3")

	stored, err := store.Get(ctx, "s1", "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusChanged, stored.Status)
}

func TestService_SelfComparisonAlwaysSecureAcrossRechecks(t *testing.T) {
	snapshots := &MockSnapshotSource{}
	store := notifications.NewMemoryStore()
	service := NewService(testConfig(), snapshots, nil, nil, store)

	snapshots.On("GetLatestSnapshot", mock.Anything, "s1", "p1").Return(snapshotFor("s1", "p1"), nil)

	first, err := service.Recheck(context.Background(), "s1", "p1", nil)
	require.NoError(t, err)
	second, err := service.Recheck(context.Background(), "s1", "p1", nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusSecure, second.Result.Status)
	assert.Equal(t, first.Notification.NotificationID, second.Notification.NotificationID,
		"repeat rechecks mutate one record in place")
}
