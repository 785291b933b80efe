package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/hospital-admin-api/internal/models"
)

const documentColumns = `id, name, path, display_order, active, created_at, updated_at`

// DocumentRepository manages portal documents (screens).
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs a DocumentRepository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// FindByID returns a document by id.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}

// ListByPath returns every document registered under path. Paths are not unique.
func (r *DocumentRepository) ListByPath(ctx context.Context, path string) ([]models.Document, error) {
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, `SELECT `+documentColumns+` FROM documents WHERE path = $1 ORDER BY id`, path); err != nil {
		return nil, fmt.Errorf("list documents by path: %w", err)
	}
	return docs, nil
}

// ListByIDs returns the documents with the given ids.
func (r *DocumentRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Document, error) {
	if len(ids) == 0 {
		return []models.Document{}, nil
	}
	var docs []models.Document
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ANY($1) ORDER BY display_order ASC, name ASC`
	if err := r.db.SelectContext(ctx, &docs, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list documents by ids: %w", err)
	}
	return docs, nil
}

// ListActive returns every active document ordered for presentation.
func (r *DocumentRepository) ListActive(ctx context.Context) ([]models.Document, error) {
	var docs []models.Document
	query := `SELECT ` + documentColumns + ` FROM documents WHERE active = TRUE ORDER BY display_order ASC, name ASC`
	if err := r.db.SelectContext(ctx, &docs, query); err != nil {
		return nil, fmt.Errorf("list active documents: %w", err)
	}
	return docs, nil
}

// List returns documents matching the filter.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	base := `FROM documents WHERE 1=1`
	var args []interface{}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		base += fmt.Sprintf(" AND active = $%d", len(args))
	}
	if filter.Path != "" {
		args = append(args, filter.Path)
		base += fmt.Sprintf(" AND path = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		base += fmt.Sprintf(" AND (LOWER(name) LIKE $%d OR LOWER(path) LIKE $%d)", len(args), len(args))
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	var docs []models.Document
	query := fmt.Sprintf("SELECT %s %s ORDER BY display_order ASC, name ASC LIMIT %d OFFSET %d", documentColumns, base, limit, offset)
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}
	return docs, total, nil
}

// Create inserts a document.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	const query = `INSERT INTO documents (id, name, path, display_order, active, created_at, updated_at) VALUES (:id, :name, :path, :display_order, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// Update persists mutable document fields.
func (r *DocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	const query = `UPDATE documents SET name = :name, path = :path, display_order = :display_order, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

// Delete removes the document with its module links and permissions.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	return deleteWithDependents(ctx, r.db, "document", id, []string{
		`DELETE FROM permissions WHERE document_id = $1`,
		`DELETE FROM module_documents WHERE document_id = $1`,
	}, `DELETE FROM documents WHERE id = $1`)
}
