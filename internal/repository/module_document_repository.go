package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hospital-admin-api/internal/models"
)

// ModuleDocumentRepository manages the module to document join.
type ModuleDocumentRepository struct {
	db *sqlx.DB
}

// NewModuleDocumentRepository constructs a ModuleDocumentRepository.
func NewModuleDocumentRepository(db *sqlx.DB) *ModuleDocumentRepository {
	return &ModuleDocumentRepository{db: db}
}

// ListAll returns every module-document link in one round trip.
func (r *ModuleDocumentRepository) ListAll(ctx context.Context) ([]models.ModuleDocument, error) {
	var links []models.ModuleDocument
	if err := r.db.SelectContext(ctx, &links, `SELECT module_id, document_id, created_at FROM module_documents ORDER BY module_id, document_id`); err != nil {
		return nil, fmt.Errorf("list module documents: %w", err)
	}
	return links, nil
}

// ListDocumentsByModule returns the documents linked to a module.
func (r *ModuleDocumentRepository) ListDocumentsByModule(ctx context.Context, moduleID string) ([]models.Document, error) {
	const query = `SELECT d.id, d.name, d.path, d.display_order, d.active, d.created_at, d.updated_at
FROM module_documents md
JOIN documents d ON d.id = md.document_id
WHERE md.module_id = $1
ORDER BY d.display_order ASC, d.name ASC`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, moduleID); err != nil {
		return nil, fmt.Errorf("list documents by module: %w", err)
	}
	return docs, nil
}

// Link attaches a document to a module. Repeating a link is a no-op.
func (r *ModuleDocumentRepository) Link(ctx context.Context, moduleID, documentID string) (bool, error) {
	const query = `INSERT INTO module_documents (module_id, document_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (module_id, document_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, moduleID, documentID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("link module document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("link module document rows affected: %w", err)
	}
	return affected > 0, nil
}

// Unlink detaches a document from a module and reports whether a link existed.
func (r *ModuleDocumentRepository) Unlink(ctx context.Context, moduleID, documentID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM module_documents WHERE module_id = $1 AND document_id = $2`, moduleID, documentID)
	if err != nil {
		return false, fmt.Errorf("unlink module document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unlink module document rows affected: %w", err)
	}
	return affected > 0, nil
}
