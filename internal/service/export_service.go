package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hospital-admin-api/internal/models"
	appErrors "github.com/noah-isme/hospital-admin-api/pkg/errors"
	"github.com/noah-isme/hospital-admin-api/pkg/export"
)

type exportPermissionReader interface {
	ListByRole(ctx context.Context, roleID string) ([]models.Permission, error)
}

type exportDocumentReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Document, error)
}

type effectivePermissionResolver interface {
	ResolveEffectivePermissions(ctx context.Context, userID string) (models.EffectivePermissions, error)
}

// ExportFile is a rendered permission matrix ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportServiceParams groups constructor dependencies.
type ExportServiceParams struct {
	Permissions exportPermissionReader
	Documents   exportDocumentReader
	Access      effectivePermissionResolver
	Users       userFinder
	Roles       roleFinder
	Audit       auditRecorder
	Logger      *zap.Logger
}

// ExportService renders permission matrices as CSV, PDF or XLSX.
type ExportService struct {
	permissions exportPermissionReader
	documents   exportDocumentReader
	access      effectivePermissionResolver
	users       userFinder
	roles       roleFinder
	audit       auditRecorder
	logger      *zap.Logger
	now         func() time.Time
}

var permissionHeaders = []string{"Document ID", "Document", "Path", "Add", "Modify", "Delete", "Query"}

// NewExportService constructs an ExportService.
func NewExportService(params ExportServiceParams) *ExportService {
	s := &ExportService{
		permissions: params.Permissions,
		documents:   params.Documents,
		access:      params.Access,
		users:       params.Users,
		roles:       params.Roles,
		audit:       params.Audit,
		logger:      params.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if s.audit == nil {
		s.audit = noopAudit{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// ExportRolePermissions renders the raw grants stored for roleID.
func (s *ExportService) ExportRolePermissions(ctx context.Context, roleID, format string, actor models.Actor) (*ExportFile, error) {
	renderer, err := rendererFor(format)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		return nil, lookupError(err, "role")
	}
	perms, err := s.permissions.ListByRole(ctx, roleID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load role permissions")
	}

	grants := make(map[string]models.Capabilities, len(perms))
	for _, p := range perms {
		grants[p.DocumentID] = p.Capabilities
	}
	dataset, err := s.dataset(ctx, "Role permissions: "+role.Name, grants)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, renderer, dataset, "role-"+slug(role.Name), "roles", roleID, actor)
}

// ExportUserPermissions renders the merged grants of userID.
func (s *ExportService) ExportUserPermissions(ctx context.Context, userID, format string, actor models.Actor) (*ExportFile, error) {
	renderer, err := rendererFor(format)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	effective, err := s.access.ResolveEffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	dataset, err := s.dataset(ctx, "Effective permissions: "+user.Username, effective)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, renderer, dataset, "user-"+slug(user.Username), "users", userID, actor)
}

func (s *ExportService) dataset(ctx context.Context, title string, grants map[string]models.Capabilities) (export.Dataset, error) {
	ids := make([]string, 0, len(grants))
	for id := range grants {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	byID := make(map[string]models.Document, len(ids))
	if len(ids) > 0 {
		docs, err := s.documents.ListByIDs(ctx, ids)
		if err != nil {
			return export.Dataset{}, appErrors.Internal(err, "failed to load documents")
		}
		for _, d := range docs {
			byID[d.ID] = d
		}
	}

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		caps := grants[id]
		doc := byID[id]
		rows = append(rows, []string{
			id,
			doc.Name,
			doc.Path,
			strconv.FormatBool(caps.CanAdd),
			strconv.FormatBool(caps.CanModify),
			strconv.FormatBool(caps.CanDelete),
			strconv.FormatBool(caps.CanQuery),
		})
	}
	return export.Dataset{Title: title, Headers: permissionHeaders, Rows: rows}, nil
}

func (s *ExportService) render(ctx context.Context, renderer export.Renderer, dataset export.Dataset, name, table, recordID string, actor models.Actor) (*ExportFile, error) {
	body, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}
	filename := fmt.Sprintf("%s-permissions-%s.%s", name, s.now().Format("20060102150405"), renderer.Extension())

	s.audit.Record(ctx, AuditEntry{
		Table:     table,
		RecordID:  recordID,
		Operation: models.AuditExport,
		Type:      "permissions.export",
		New:       map[string]interface{}{"filename": filename, "rows": len(dataset.Rows)},
		Actor:     actor,
	})
	s.logger.Info("permission matrix exported", zap.String("file", filename), zap.Int("rows", len(dataset.Rows)))
	return &ExportFile{Filename: filename, ContentType: renderer.ContentType(), Body: body}, nil
}

func rendererFor(raw string) (export.Renderer, error) {
	format, err := export.ParseFormat(raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnsupportedFormat.Code, appErrors.ErrUnsupportedFormat.Status, appErrors.ErrUnsupportedFormat.Message)
	}
	renderer, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnsupportedFormat.Code, appErrors.ErrUnsupportedFormat.Status, appErrors.ErrUnsupportedFormat.Message)
	}
	return renderer, nil
}

func slug(v string) string {
	out := make([]rune, 0, len(v))
	dash := false
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
			dash = false
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
			dash = false
		default:
			if !dash && len(out) > 0 {
				out = append(out, '-')
				dash = true
			}
		}
	}
	if dash {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return "export"
	}
	return string(out)
}
