package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pharmintel/pharmawatch/internal/compare"
	"github.com/pharmintel/pharmawatch/internal/config"
	"github.com/pharmintel/pharmawatch/internal/extract"
	"github.com/pharmintel/pharmawatch/internal/models"
	"github.com/pharmintel/pharmawatch/internal/notifications"
	"github.com/pharmintel/pharmawatch/internal/sources"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrBaselineNotFound is reported when a recheck targets a topic with no
// recorded agent snapshot. Nothing is written in that case.
var ErrBaselineNotFound = errors.New("no baseline snapshot for topic")

// ErrSweepInProgress is reported when a sweep is requested while the
// previous iteration is still running. Iterations never overlap.
var ErrSweepInProgress = errors.New("sweep already in progress")

// Service rechecks monitored topics: it resolves a baseline and an
// observation, compares them and upserts the notification record. RunSweep
// does this for every enabled topic.
type Service struct {
	config     *config.Config
	extractor  *extract.Extractor
	comparator *compare.Comparator
	snapshots  sources.SnapshotSource
	live       sources.SnapshotSource
	documents  sources.DocumentSource
	store      notifications.Store

	// limiter paces rechecks globally across all sweep workers so upstream
	// data sources are never hammered.
	limiter *rate.Limiter

	metrics  *Metrics
	mu       sync.RWMutex
	sweeping sync.Mutex
}

// Metrics holds monitoring metrics.
type Metrics struct {
	TotalRechecks     int            `json:"total_rechecks"`
	LastSweep         time.Time      `json:"last_sweep"`
	LastSweepDuration string         `json:"last_sweep_duration"`
	TopicsChecked     int            `json:"topics_checked"`
	ChangedTopics     int            `json:"changed_topics"`
	ErrorCount        int            `json:"error_count"`
	SeverityBreakdown map[string]int `json:"severity_breakdown"`
}

// RecheckOutcome bundles what a single recheck produced for the caller to
// report.
type RecheckOutcome struct {
	Result       models.ComparisonResult `json:"result"`
	Notification *models.Notification    `json:"notification"`
}

// NewService creates a new monitoring service. snapshots resolves recorded
// baselines; live optionally re-fetches agent output as a fresh observation;
// documents optionally serves uploaded document text. live and documents may
// be nil, in which case rechecks without a fresh bundle fall back to
// self-comparison.
func NewService(cfg *config.Config, snapshots, live sources.SnapshotSource, documents sources.DocumentSource, store notifications.Store) *Service {
	pace := rate.Inf
	if cfg.SweepDelay > 0 {
		pace = rate.Every(cfg.SweepDelay)
	}

	return &Service{
		config:     cfg,
		extractor:  extract.NewExtractor(),
		comparator: compare.NewComparator(cfg.Thresholds()),
		snapshots:  snapshots,
		live:       live,
		documents:  documents,
		store:      store,
		limiter:    rate.NewLimiter(pace, 1),
		metrics: &Metrics{
			SeverityBreakdown: make(map[string]int),
		},
	}
}

// Recheck re-evaluates one monitored topic. freshBundle, when non-empty, is
// a newly supplied structured agent payload preferred over every other
// observation source. With no new evidence at all the baseline is compared
// against itself, which establishes a first-time notification as secure.
func (s *Service) Recheck(ctx context.Context, sessionID, promptID string, freshBundle map[string]interface{}) (*RecheckOutcome, error) {
	snapshot, err := s.snapshots.GetLatestSnapshot(ctx, sessionID, promptID)
	if err != nil {
		if errors.Is(err, sources.ErrSnapshotNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrBaselineNotFound, sessionID, promptID)
		}
		return nil, fmt.Errorf("failed to resolve baseline for %s/%s: %w", sessionID, promptID, err)
	}

	baseline := s.extractor.Bundle(snapshot.Payloads)
	observation, degraded := s.resolveObservation(ctx, sessionID, promptID, baseline, freshBundle)

	result := s.comparator.Compare(baseline, observation)
	if degraded {
		result.DecisionReason += "; observation source unavailable, baseline reconfirmed"
	}

	notification, err := s.store.CreateOrUpdate(ctx, sessionID, promptID, result)
	if err != nil {
		// The comparison was computed but not durably recorded. The next
		// sweep pass retries; no inline retry.
		return nil, fmt.Errorf("failed to persist notification for %s/%s: %w", sessionID, promptID, err)
	}

	s.recordRecheck(result)
	logrus.Infof("Recheck %s/%s: status=%s severity=%s reason=%q",
		sessionID, promptID, result.Status, result.Severity, result.DecisionReason)

	return &RecheckOutcome{Result: result, Notification: notification}, nil
}

// resolveObservation picks the observation assertion set: a freshly supplied
// bundle, else a live agent re-fetch, else the latest uploaded document,
// else the baseline itself. A failing observation source degrades to the
// next source and ultimately to self-comparison instead of failing the
// recheck; the degradation is surfaced to the caller through the returned
// flag.
func (s *Service) resolveObservation(ctx context.Context, sessionID, promptID string, baseline models.AssertionSet, freshBundle map[string]interface{}) (models.AssertionSet, bool) {
	if len(freshBundle) > 0 {
		return s.extractor.Bundle(freshBundle), false
	}

	degraded := false

	if s.live != nil {
		snapshot, err := s.live.GetLatestSnapshot(ctx, sessionID, promptID)
		switch {
		case err == nil:
			return s.extractor.Bundle(snapshot.Payloads), false
		case errors.Is(err, sources.ErrSnapshotNotFound):
			// No new evidence from the live service; not a failure.
		default:
			logrus.Errorf("Live snapshot source failed for %s/%s: %v", sessionID, promptID, err)
			degraded = true
		}
	}

	if s.documents != nil {
		text, err := s.documents.GetUploadedDocumentText(ctx, sessionID)
		switch {
		case err == nil:
			return s.extractor.Document(text), false
		case errors.Is(err, sources.ErrNoDocument):
			// No new evidence; not a failure.
		default:
			logrus.Errorf("Document source failed for session %s, falling back to self-comparison: %v", sessionID, err)
			degraded = true
		}
	}

	return baseline, degraded
}

// RunSweep rechecks every enabled notification and returns the promptIds
// whose status came back changed. Per-topic failures are logged and skipped;
// the sweep never aborts on one topic. Dispatch stops between topics when ctx
// is cancelled, letting in-flight rechecks complete.
func (s *Service) RunSweep(ctx context.Context) ([]string, error) {
	if !s.sweeping.TryLock() {
		return nil, ErrSweepInProgress
	}
	defer s.sweeping.Unlock()

	start := time.Now()
	logrus.Info("Starting notification sweep")

	records, err := s.store.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled notifications: %w", err)
	}
	logrus.Infof("Sweeping %d enabled notifications", len(records))

	var wg sync.WaitGroup
	changedChan := make(chan string, len(records))
	errorsChan := make(chan error, len(records))
	// Bounded fan-out; pacing is enforced globally by the limiter before
	// each dispatch, not per worker.
	slots := make(chan struct{}, s.config.SweepFanOut)

	checked := 0
	for _, record := range records {
		if err := s.limiter.Wait(ctx); err != nil {
			logrus.Infof("Sweep dispatch stopped: %v", err)
			break
		}
		checked++

		wg.Add(1)
		slots <- struct{}{}
		go func(rec models.Notification) {
			defer wg.Done()
			defer func() { <-slots }()

			outcome, err := s.Recheck(ctx, rec.SessionID, rec.PromptID, nil)
			if err != nil {
				logrus.Errorf("Sweep recheck failed for %s/%s: %v", rec.SessionID, rec.PromptID, err)
				errorsChan <- err
				return
			}
			if outcome.Result.Status == models.StatusChanged {
				changedChan <- rec.PromptID
			}
		}(record)
	}

	wg.Wait()
	close(changedChan)
	close(errorsChan)

	var changed []string
	for promptID := range changedChan {
		changed = append(changed, promptID)
	}
	sort.Strings(changed)

	errorCount := 0
	for range errorsChan {
		errorCount++
	}

	s.recordSweep(time.Since(start), checked, len(changed), errorCount)
	logrus.Infof("Sweep completed in %v: %d checked, %d changed, %d errors",
		time.Since(start), checked, len(changed), errorCount)

	return changed, nil
}

func (s *Service) recordRecheck(result models.ComparisonResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalRechecks++
	s.metrics.SeverityBreakdown[string(result.Severity)]++
}

func (s *Service) recordSweep(duration time.Duration, checked, changed, errorCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.LastSweep = time.Now()
	s.metrics.LastSweepDuration = duration.String()
	s.metrics.TopicsChecked = checked
	s.metrics.ChangedTopics = changed
	s.metrics.ErrorCount = errorCount
}

// GetMetrics returns current metrics as JSON.
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
