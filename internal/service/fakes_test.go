package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/hospital-admin-api/internal/dto"
	"github.com/noah-isme/hospital-admin-api/internal/models"
)

var errBoom = errors.New("boom")

// fakeDB is an in-memory stand-in for the portal tables shared by the fake repositories below.
type fakeDB struct {
	mu          sync.Mutex
	users       map[string]models.User
	roles       map[string]models.Role
	userRoles   []models.UserRole
	permissions map[string]models.Permission
	modules     map[string]models.Module
	documents   map[string]models.Document
	links       []models.ModuleDocument

	permissionQueries int
	failPermissions   bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:       make(map[string]models.User),
		roles:       make(map[string]models.Role),
		permissions: make(map[string]models.Permission),
		modules:     make(map[string]models.Module),
		documents:   make(map[string]models.Document),
	}
}

func (db *fakeDB) addUser(id, username string) models.User {
	u := models.User{ID: id, Username: username, Email: username + "@hospital.test", FullName: username, Active: true}
	db.users[id] = u
	return u
}

func (db *fakeDB) addRole(id, name string) models.Role {
	r := models.Role{ID: id, Name: name, Active: true}
	db.roles[id] = r
	return r
}

func (db *fakeDB) assign(userID, roleID string) {
	db.userRoles = append(db.userRoles, models.UserRole{UserID: userID, RoleID: roleID})
}

func (db *fakeDB) addModule(id, name string, order int) {
	db.modules[id] = models.Module{ID: id, Name: name, DisplayOrder: order, Active: true}
}

func (db *fakeDB) addDocument(id, name, path string, order int) {
	db.documents[id] = models.Document{ID: id, Name: name, Path: path, DisplayOrder: order, Active: true}
}

func (db *fakeDB) link(moduleID, documentID string) {
	db.links = append(db.links, models.ModuleDocument{ModuleID: moduleID, DocumentID: documentID})
}

func (db *fakeDB) grant(target models.PermissionTarget, documentID string, caps models.Capabilities) models.Permission {
	p := models.Permission{ID: uuid.NewString(), Target: target, DocumentID: documentID, Capabilities: caps}
	db.permissions[p.ID] = p
	return p
}

type fakeUsers struct{ db *fakeDB }

func (f fakeUsers) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := make([]models.User, 0, len(f.db.users))
	for _, u := range f.db.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f fakeUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (f fakeUsers) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, u := range f.db.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, u := range f.db.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeUsers) Create(ctx context.Context, user *models.User) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.users[user.ID] = *user
	return nil
}

func (f fakeUsers) Update(ctx context.Context, user *models.User) error {
	return f.Create(ctx, user)
}

func (f fakeUsers) Delete(ctx context.Context, id string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.db.users, id)
	kept := f.db.userRoles[:0]
	for _, ur := range f.db.userRoles {
		if ur.UserID != id {
			kept = append(kept, ur)
		}
	}
	f.db.userRoles = kept
	for pid, p := range f.db.permissions {
		if p.Target == models.UserTarget(id) {
			delete(f.db.permissions, pid)
		}
	}
	return nil
}

type fakeRoles struct{ db *fakeDB }

func (f fakeRoles) List(ctx context.Context, filter models.RoleFilter) ([]models.Role, int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := make([]models.Role, 0, len(f.db.roles))
	for _, r := range f.db.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (f fakeRoles) FindByID(ctx context.Context, id string) (*models.Role, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	r, ok := f.db.roles[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (f fakeRoles) FindByName(ctx context.Context, name string) (*models.Role, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, r := range f.db.roles {
		if r.Name == name {
			r := r
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeRoles) Create(ctx context.Context, role *models.Role) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.roles[role.ID] = *role
	return nil
}

func (f fakeRoles) Update(ctx context.Context, role *models.Role) error {
	return f.Create(ctx, role)
}

func (f fakeRoles) Delete(ctx context.Context, id string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.roles[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.db.roles, id)
	kept := f.db.userRoles[:0]
	for _, ur := range f.db.userRoles {
		if ur.RoleID != id {
			kept = append(kept, ur)
		}
	}
	f.db.userRoles = kept
	for pid, p := range f.db.permissions {
		if p.Target == models.RoleTarget(id) {
			delete(f.db.permissions, pid)
		}
	}
	return nil
}

type fakeMemberships struct{ db *fakeDB }

func (f fakeMemberships) ListRolesByUser(ctx context.Context, userID string) ([]models.Role, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Role
	for _, ur := range f.db.userRoles {
		if ur.UserID != userID {
			continue
		}
		if r, ok := f.db.roles[ur.RoleID]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f fakeMemberships) Assign(ctx context.Context, userID, roleID string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, ur := range f.db.userRoles {
		if ur.UserID == userID && ur.RoleID == roleID {
			return false, nil
		}
	}
	f.db.userRoles = append(f.db.userRoles, models.UserRole{UserID: userID, RoleID: roleID})
	return true, nil
}

func (f fakeMemberships) Unassign(ctx context.Context, userID, roleID string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for i, ur := range f.db.userRoles {
		if ur.UserID == userID && ur.RoleID == roleID {
			f.db.userRoles = append(f.db.userRoles[:i], f.db.userRoles[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type fakePermissions struct{ db *fakeDB }

func (f fakePermissions) FindByID(ctx context.Context, id string) (*models.Permission, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.permissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (f fakePermissions) FindByTargetAndDocument(ctx context.Context, target models.PermissionTarget, documentID string) (*models.Permission, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, p := range f.db.permissions {
		if p.Target == target && p.DocumentID == documentID {
			p := p
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakePermissions) ListByUser(ctx context.Context, userID string) ([]models.Permission, error) {
	return f.filter(func(p models.Permission) bool { return p.Target == models.UserTarget(userID) })
}

func (f fakePermissions) ListByRole(ctx context.Context, roleID string) ([]models.Permission, error) {
	return f.filter(func(p models.Permission) bool { return p.Target == models.RoleTarget(roleID) })
}

func (f fakePermissions) ListByRoles(ctx context.Context, roleIDs []string) ([]models.Permission, error) {
	if len(roleIDs) == 0 {
		return []models.Permission{}, nil
	}
	wanted := make(map[models.PermissionTarget]bool, len(roleIDs))
	for _, id := range roleIDs {
		wanted[models.RoleTarget(id)] = true
	}
	return f.filter(func(p models.Permission) bool { return wanted[p.Target] })
}

func (f fakePermissions) filter(keep func(models.Permission) bool) ([]models.Permission, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.permissionQueries++
	if f.db.failPermissions {
		return nil, errBoom
	}
	out := []models.Permission{}
	for _, p := range f.db.permissions {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakePermissions) Create(ctx context.Context, p *models.Permission) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	f.db.permissions[p.ID] = *p
	return nil
}

func (f fakePermissions) Update(ctx context.Context, p *models.Permission) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.permissions[p.ID]; !ok {
		return sql.ErrNoRows
	}
	f.db.permissions[p.ID] = *p
	return nil
}

func (f fakePermissions) Delete(ctx context.Context, id string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.permissions[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.db.permissions, id)
	return nil
}

type fakeDocuments struct{ db *fakeDB }

func (f fakeDocuments) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	docs, _ := f.ListByIDs(ctx, nil)
	return docs, len(docs), nil
}

func (f fakeDocuments) FindByID(ctx context.Context, id string) (*models.Document, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	d, ok := f.db.documents[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &d, nil
}

func (f fakeDocuments) ListByPath(ctx context.Context, path string) ([]models.Document, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Document
	for _, d := range f.db.documents {
		if d.Path == path {
			out = append(out, d)
		}
	}
	return out, nil
}

// ListByIDs returns every document when ids is nil.
func (f fakeDocuments) ListByIDs(ctx context.Context, ids []string) ([]models.Document, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := []models.Document{}
	for _, d := range f.db.documents {
		if ids == nil || containsString(ids, d.ID) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeDocuments) ListActive(ctx context.Context) ([]models.Document, error) {
	all, _ := f.ListByIDs(ctx, nil)
	out := all[:0]
	for _, d := range all {
		if d.Active {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f fakeDocuments) Create(ctx context.Context, doc *models.Document) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.documents[doc.ID] = *doc
	return nil
}

func (f fakeDocuments) Update(ctx context.Context, doc *models.Document) error {
	return f.Create(ctx, doc)
}

func (f fakeDocuments) Delete(ctx context.Context, id string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.documents[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.db.documents, id)
	return nil
}

type fakeModules struct{ db *fakeDB }

func (f fakeModules) List(ctx context.Context, filter models.ModuleFilter) ([]models.Module, int, error) {
	all, _ := f.ListActive(ctx)
	return all, len(all), nil
}

func (f fakeModules) ListActive(ctx context.Context) ([]models.Module, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := []models.Module{}
	for _, m := range f.db.modules {
		out = append(out, m)
	}
	// Unordered on purpose: ordering belongs to the navigation builder.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f fakeModules) FindByID(ctx context.Context, id string) (*models.Module, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	m, ok := f.db.modules[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &m, nil
}

func (f fakeModules) FindByName(ctx context.Context, name string) (*models.Module, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, m := range f.db.modules {
		if m.Name == name {
			m := m
			return &m, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeModules) Create(ctx context.Context, m *models.Module) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.modules[m.ID] = *m
	return nil
}

func (f fakeModules) Update(ctx context.Context, m *models.Module) error {
	return f.Create(ctx, m)
}

func (f fakeModules) Delete(ctx context.Context, id string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.modules[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.db.modules, id)
	return nil
}

type fakeLinks struct{ db *fakeDB }

func (f fakeLinks) ListAll(ctx context.Context) ([]models.ModuleDocument, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return append([]models.ModuleDocument(nil), f.db.links...), nil
}

func (f fakeLinks) ListDocumentsByModule(ctx context.Context, moduleID string) ([]models.Document, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := []models.Document{}
	for _, l := range f.db.links {
		if d, ok := f.db.documents[l.DocumentID]; ok && l.ModuleID == moduleID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f fakeLinks) Link(ctx context.Context, moduleID, documentID string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, l := range f.db.links {
		if l.ModuleID == moduleID && l.DocumentID == documentID {
			return false, nil
		}
	}
	f.db.links = append(f.db.links, models.ModuleDocument{ModuleID: moduleID, DocumentID: documentID})
	return true, nil
}

func (f fakeLinks) Unlink(ctx context.Context, moduleID, documentID string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for i, l := range f.db.links {
		if l.ModuleID == moduleID && l.DocumentID == documentID {
			f.db.links = append(f.db.links[:i], f.db.links[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (r *recordingAudit) Record(ctx context.Context, entry AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingAudit) operations() []models.AuditOperation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AuditOperation, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Operation)
	}
	return out
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) { c.calls++ }

type stubNavigation struct {
	tree []dto.NavigationModule
	hit  bool
	err  error
}

func (s stubNavigation) Build(ctx context.Context, userID string) ([]dto.NavigationModule, bool, error) {
	return s.tree, s.hit, s.err
}

func newTestAccess(db *fakeDB) *AccessService {
	return NewAccessService(AccessServiceParams{
		Users:       fakeUsers{db},
		Memberships: fakeMemberships{db},
		Permissions: fakePermissions{db},
		Documents:   fakeDocuments{db},
	})
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

var testActor = models.Actor{UserID: "admin-1", Username: "admin", IP: "127.0.0.1", UserAgent: "go-test"}

