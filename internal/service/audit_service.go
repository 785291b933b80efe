package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/hospital-admin-api/internal/models"
	"github.com/noah-isme/hospital-admin-api/pkg/jobs"
)

const auditJobType = "audit_log"

type auditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// AuditEntry describes one mutation to be appended to the audit trail.
type AuditEntry struct {
	Table     string
	RecordID  string
	Operation models.AuditOperation
	Type      string
	Old       interface{}
	New       interface{}
	Actor     models.Actor
}

// AuditConfig tunes the background writer.
type AuditConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// AuditService hands audit entries to a worker pool so request paths never wait on the sink.
// Entries are written inline when the pool is not running or is saturated.
type AuditService struct {
	repo    auditRepository
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditService constructs an AuditService. Call Start to enable background delivery.
func NewAuditService(repo auditRepository, metrics *MetricsService, logger *zap.Logger, cfg AuditConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{repo: repo, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue("audit", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the background writers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes pending entries and stops the writers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record appends entry to the audit trail. Failures are logged, never returned.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	if s == nil || s.repo == nil {
		return
	}
	log, err := buildAuditLog(entry)
	if err != nil {
		s.logger.Warn("failed to encode audit entry", zap.String("table", entry.Table), zap.Error(err))
		s.metrics.RecordAuditEntry("dropped")
		return
	}

	err = s.queue.Enqueue(jobs.Job{ID: log.ID, Type: auditJobType, Payload: log})
	if err == nil {
		s.metrics.RecordAuditEntry("queued")
		return
	}
	if !errors.Is(err, jobs.ErrNotStarted) && !errors.Is(err, jobs.ErrFull) {
		s.logger.Warn("failed to enqueue audit entry", zap.Error(err))
	}

	if err := s.repo.Create(context.WithoutCancel(ctx), log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("table", log.TableName), zap.String("operation", string(log.Operation)), zap.Error(err))
		s.metrics.RecordAuditEntry("dropped")
		return
	}
	s.metrics.RecordAuditEntry("sync")
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	log, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	return s.repo.Create(ctx, log)
}

func buildAuditLog(entry AuditEntry) (*models.AuditLog, error) {
	oldValues, err := marshalSnapshot(entry.Old)
	if err != nil {
		return nil, err
	}
	newValues, err := marshalSnapshot(entry.New)
	if err != nil {
		return nil, err
	}
	log := &models.AuditLog{
		ID:            uuid.NewString(),
		TableName:     entry.Table,
		Operation:     entry.Operation,
		OperationType: entry.Type,
		OldValues:     oldValues,
		NewValues:     newValues,
		IPAddress:     entry.Actor.IP,
		UserAgent:     entry.Actor.UserAgent,
		CreatedAt:     time.Now().UTC(),
	}
	if entry.RecordID != "" {
		id := entry.RecordID
		log.RecordID = &id
	}
	if entry.Actor.UserID != "" {
		id := entry.Actor.UserID
		log.UserID = &id
	}
	if entry.Actor.Username != "" {
		name := entry.Actor.Username
		log.Username = &name
	}
	return log, nil
}

func marshalSnapshot(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.([]byte); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
