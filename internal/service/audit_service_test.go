package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hospital-admin-api/internal/models"
)

type memoryAuditRepo struct {
	mu   sync.Mutex
	logs []*models.AuditLog
	err  error
}

func (m *memoryAuditRepo) Create(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, log)
	return nil
}

func (m *memoryAuditRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

func TestAuditServiceWritesInlineWhenStopped(t *testing.T) {
	repo := &memoryAuditRepo{}
	metrics := NewMetricsService()
	svc := NewAuditService(repo, metrics, nil, AuditConfig{})

	svc.Record(context.Background(), AuditEntry{
		Table:     "permissions",
		RecordID:  "p1",
		Operation: models.AuditCreate,
		Type:      "permission.create",
		New:       models.Capabilities{CanQuery: true},
		Actor:     testActor,
	})

	require.Equal(t, 1, repo.count())
	log := repo.logs[0]
	assert.Equal(t, "permissions", log.TableName)
	assert.Equal(t, "p1", *log.RecordID)
	assert.Equal(t, "admin-1", *log.UserID)
	assert.Equal(t, "admin", *log.Username)
	assert.Nil(t, log.OldValues)

	var snapshot map[string]bool
	require.NoError(t, json.Unmarshal(log.NewValues, &snapshot))
	assert.True(t, snapshot["canQuery"])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.auditEntries.WithLabelValues("sync")))
}

func TestAuditServiceQueuesWhenRunning(t *testing.T) {
	repo := &memoryAuditRepo{}
	metrics := NewMetricsService()
	svc := NewAuditService(repo, metrics, nil, AuditConfig{Workers: 2, BufferSize: 8, RetryDelay: time.Millisecond})
	svc.Start(context.Background())

	for i := 0; i < 5; i++ {
		svc.Record(context.Background(), AuditEntry{Table: "users", Operation: models.AuditUpdate, Actor: testActor})
	}
	svc.Stop()

	assert.Equal(t, 5, repo.count())
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.auditEntries.WithLabelValues("queued")))
}

func TestAuditServiceSwallowsSinkFailure(t *testing.T) {
	repo := &memoryAuditRepo{err: errBoom}
	metrics := NewMetricsService()
	svc := NewAuditService(repo, metrics, nil, AuditConfig{})

	assert.NotPanics(t, func() {
		svc.Record(context.Background(), AuditEntry{Table: "roles", Operation: models.AuditDelete})
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.auditEntries.WithLabelValues("dropped")))
}

func TestAuditServiceNilSafe(t *testing.T) {
	var svc *AuditService
	assert.NotPanics(t, func() { svc.Record(context.Background(), AuditEntry{}) })
}
