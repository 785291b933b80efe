package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/noah-isme/hospital-admin-api/internal/models"
	appErrors "github.com/noah-isme/hospital-admin-api/pkg/errors"
)

type auditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type navigationInvalidator interface {
	Invalidate(ctx context.Context)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type roleFinder interface {
	FindByID(ctx context.Context, id string) (*models.Role, error)
}

type documentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Document, error)
}

type moduleFinder interface {
	FindByID(ctx context.Context, id string) (*models.Module, error)
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, AuditEntry) {}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context) {}

// lookupError maps a repository lookup failure onto the API error taxonomy.
func lookupError(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return appErrors.Internal(err, "failed to load "+entity)
}

// writeError maps a failed insert or update, surfacing unique violations as conflicts.
func writeError(err error, message, conflictMessage string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflictMessage)
	}
	return appErrors.Internal(err, message)
}
