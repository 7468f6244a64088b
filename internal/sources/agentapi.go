package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pharmintel/pharmawatch/internal/models"
	"github.com/sirupsen/logrus"
)

// AgentAPISource fetches the latest agent snapshot from the intelligence
// service over HTTP. Network calls carry their own timeout so a slow upstream
// degrades a single recheck instead of stalling the sweep.
type AgentAPISource struct {
	baseURL string
	client  *resty.Client
}

var _ SnapshotSource = (*AgentAPISource)(nil)

// NewAgentAPISource creates an HTTP snapshot source against the given base
// URL.
func NewAgentAPISource(baseURL string, timeout time.Duration) *AgentAPISource {
	return &AgentAPISource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  resty.New().SetTimeout(timeout),
	}
}

// GetLatestSnapshot fetches the most recent snapshot for a topic. A 404 from
// the service maps to ErrSnapshotNotFound.
func (s *AgentAPISource) GetLatestSnapshot(ctx context.Context, sessionID, promptID string) (*models.AgentSnapshot, error) {
	var snapshot models.AgentSnapshot

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetResult(&snapshot).
		Get(fmt.Sprintf("%s/sessions/%s/prompts/%s/snapshots/latest", s.baseURL, sessionID, promptID))
	if err != nil {
		return nil, fmt.Errorf("agent snapshot fetch failed for %s/%s: %w", sessionID, promptID, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrSnapshotNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("agent snapshot fetch for %s/%s returned %d", sessionID, promptID, resp.StatusCode())
	}

	logrus.Debugf("Fetched live agent snapshot for %s/%s", sessionID, promptID)
	return &snapshot, nil
}
