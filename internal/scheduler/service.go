package scheduler

import (
	"context"

	"github.com/pharmintel/pharmawatch/internal/config"
	"github.com/pharmintel/pharmawatch/internal/monitoring"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Service triggers the notification sweep on a timer. The sweep is disabled
// unless configured on; manual triggers through the HTTP surface work either
// way.
type Service struct {
	config            *config.Config
	monitoringService *monitoring.Service
	cron              *cron.Cron
}

// NewService creates a new scheduler service.
func NewService(cfg *config.Config, monitoringService *monitoring.Service) *Service {
	return &Service{
		config:            cfg,
		monitoringService: monitoringService,
		cron:              cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled sweeps. A no-op when sweeping is disabled.
func (s *Service) Start() error {
	if !s.config.SweepEnabled {
		logrus.Info("Scheduled sweeps disabled (SWEEP_ENABLED=false)")
		return nil
	}

	var cronExpression string
	switch s.config.SweepSchedule {
	case "hourly":
		cronExpression = "0 0 * * * *"
	case "daily":
		// Run daily at 6 AM UTC, before business hours in the US
		cronExpression = "0 0 6 * * *"
	case "weekly":
		cronExpression = "0 0 6 * * MON"
	default:
		cronExpression = "0 0 6 * * *"
	}

	_, err := s.cron.AddFunc(cronExpression, func() {
		changed, err := s.monitoringService.RunSweep(context.Background())
		if err != nil {
			logrus.Errorf("Scheduled sweep failed: %v", err)
			return
		}
		if len(changed) > 0 {
			logrus.Infof("Scheduled sweep flagged %d changed topics: %v", len(changed), changed)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s sweep schedule", s.config.SweepSchedule)
	return nil
}

// Stop stops the scheduler between iterations; an in-flight sweep is allowed
// to complete.
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
