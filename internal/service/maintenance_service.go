package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/hospital-admin-api/internal/repository"
	appErrors "github.com/noah-isme/hospital-admin-api/pkg/errors"
)

type orphanSweeper interface {
	DeleteOrphans(ctx context.Context) (repository.OrphanCounts, error)
}

// MaintenanceService removes dangling permission, membership and link rows on a schedule.
type MaintenanceService struct {
	repo       orphanSweeper
	navigation navigationInvalidator
	metrics    *MetricsService
	logger     *zap.Logger
	cron       *cron.Cron
	timeout    time.Duration
}

// NewMaintenanceService constructs a MaintenanceService.
func NewMaintenanceService(repo orphanSweeper, navigation navigationInvalidator, metrics *MetricsService, logger *zap.Logger) *MaintenanceService {
	if navigation == nil {
		navigation = noopInvalidator{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{repo: repo, navigation: navigation, metrics: metrics, logger: logger, timeout: time.Minute}
}

// SweepOrphans deletes orphaned rows once and reports what was removed.
func (s *MaintenanceService) SweepOrphans(ctx context.Context) (repository.OrphanCounts, error) {
	counts, err := s.repo.DeleteOrphans(ctx)
	if err != nil {
		return repository.OrphanCounts{}, appErrors.Internal(err, "failed to sweep orphaned rows")
	}
	s.metrics.RecordOrphansRemoved("permissions", counts.Permissions)
	s.metrics.RecordOrphansRemoved("user_roles", counts.UserRoles)
	s.metrics.RecordOrphansRemoved("module_documents", counts.ModuleDocuments)

	if counts.Total() > 0 {
		s.navigation.Invalidate(ctx)
		s.logger.Info("orphaned rows removed",
			zap.Int64("permissions", counts.Permissions),
			zap.Int64("user_roles", counts.UserRoles),
			zap.Int64("module_documents", counts.ModuleDocuments),
		)
	}
	return counts, nil
}

// Start schedules the sweep using a standard cron expression or descriptor such as "@hourly".
func (s *MaintenanceService) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, s.runScheduled); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.logger.Info("orphan sweep scheduled", zap.String("schedule", schedule))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *MaintenanceService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *MaintenanceService) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.SweepOrphans(ctx); err != nil {
		s.logger.Error("orphan sweep failed", zap.Error(err))
	}
}
