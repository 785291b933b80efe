package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/hospital-admin-api/internal/handler"
	"github.com/noah-isme/hospital-admin-api/internal/middleware"
	"github.com/noah-isme/hospital-admin-api/internal/models"
	"github.com/noah-isme/hospital-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/hospital-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/hospital-admin-api/pkg/middleware/requestid"
)

// Document paths guarding each admin surface. Grants on documents registered at these paths
// decide who may manage the portal.
const (
	UsersDocument       = "/admin/users"
	RolesDocument       = "/admin/roles"
	ModulesDocument     = "/admin/modules"
	DocumentsDocument   = "/admin/documents"
	PermissionsDocument = "/admin/permissions"
)

// Handlers bundles every HTTP handler the API serves.
type Handlers struct {
	Auth        *handler.AuthHandler
	Users       *handler.UserHandler
	Roles       *handler.RoleHandler
	Modules     *handler.ModuleHandler
	Documents   *handler.DocumentHandler
	Permissions *handler.PermissionHandler
	Navigation  *handler.NavigationHandler
	Exports     *handler.ExportHandler
	Metrics     *handler.MetricsHandler
}

// Options configures the engine.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	EnableMetrics  bool
	Logger         *zap.Logger
	Observer       middleware.RequestObserver
	Tokens         middleware.TokenValidator
	Access         middleware.AccessChecker
}

// New builds the gin engine with the ambient middleware chain and all API routes.
func New(h Handlers, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Observer))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	if opts.EnableMetrics {
		r.GET("/metrics", h.Metrics.Prometheus)
	}
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Tokens))

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.POST("/auth/change-password", h.Auth.ChangePassword)
	secured.GET("/auth/me", h.Auth.Me)

	guard := func(path string, action models.Capability, extra ...middleware.AccessOption) gin.HandlerFunc {
		return middleware.RequireDocument(opts.Access, path, action, extra...)
	}
	self := middleware.AllowSelf("userId")

	users := secured.Group("/users")
	users.GET("", guard(UsersDocument, models.CapabilityQuery), h.Users.List)
	users.POST("", guard(UsersDocument, models.CapabilityAdd), h.Users.Create)
	users.GET("/:userId", guard(UsersDocument, models.CapabilityQuery, self), h.Users.Get)
	users.PUT("/:userId", guard(UsersDocument, models.CapabilityModify), h.Users.Update)
	users.DELETE("/:userId", guard(UsersDocument, models.CapabilityDelete), h.Users.Delete)
	users.GET("/:userId/roles", guard(UsersDocument, models.CapabilityQuery, self), h.Users.ListRoles)
	users.POST("/:userId/roles", guard(UsersDocument, models.CapabilityModify), h.Users.AssignRole)
	users.DELETE("/:userId/roles/:roleId", guard(UsersDocument, models.CapabilityModify), h.Users.UnassignRole)
	users.GET("/:userId/navigation", guard(PermissionsDocument, models.CapabilityQuery, self), h.Navigation.Navigation)
	users.GET("/:userId/permissions", guard(PermissionsDocument, models.CapabilityQuery, self), h.Navigation.Permissions)
	users.GET("/:userId/permissions/export", guard(PermissionsDocument, models.CapabilityQuery, self), h.Exports.UserPermissions)

	roles := secured.Group("/roles")
	roles.GET("", guard(RolesDocument, models.CapabilityQuery), h.Roles.List)
	roles.POST("", guard(RolesDocument, models.CapabilityAdd), h.Roles.Create)
	roles.GET("/:roleId", guard(RolesDocument, models.CapabilityQuery), h.Roles.Get)
	roles.PUT("/:roleId", guard(RolesDocument, models.CapabilityModify), h.Roles.Update)
	roles.DELETE("/:roleId", guard(RolesDocument, models.CapabilityDelete), h.Roles.Delete)
	roles.GET("/:roleId/permissions", guard(PermissionsDocument, models.CapabilityQuery), h.Permissions.ListByRole)
	roles.GET("/:roleId/permissions/export", guard(PermissionsDocument, models.CapabilityQuery), h.Exports.RolePermissions)

	modules := secured.Group("/modules")
	modules.GET("", guard(ModulesDocument, models.CapabilityQuery), h.Modules.List)
	modules.POST("", guard(ModulesDocument, models.CapabilityAdd), h.Modules.Create)
	modules.GET("/:moduleId", guard(ModulesDocument, models.CapabilityQuery), h.Modules.Get)
	modules.PUT("/:moduleId", guard(ModulesDocument, models.CapabilityModify), h.Modules.Update)
	modules.DELETE("/:moduleId", guard(ModulesDocument, models.CapabilityDelete), h.Modules.Delete)
	modules.GET("/:moduleId/documents", guard(ModulesDocument, models.CapabilityQuery), h.Modules.ListDocuments)
	modules.POST("/:moduleId/documents", guard(ModulesDocument, models.CapabilityModify), h.Modules.LinkDocument)
	modules.DELETE("/:moduleId/documents/:documentId", guard(ModulesDocument, models.CapabilityModify), h.Modules.UnlinkDocument)

	documents := secured.Group("/documents")
	documents.GET("", guard(DocumentsDocument, models.CapabilityQuery), h.Documents.List)
	documents.POST("", guard(DocumentsDocument, models.CapabilityAdd), h.Documents.Create)
	documents.GET("/:documentId", guard(DocumentsDocument, models.CapabilityQuery), h.Documents.Get)
	documents.PUT("/:documentId", guard(DocumentsDocument, models.CapabilityModify), h.Documents.Update)
	documents.DELETE("/:documentId", guard(DocumentsDocument, models.CapabilityDelete), h.Documents.Delete)

	permissions := secured.Group("/permissions")
	permissions.POST("", guard(PermissionsDocument, models.CapabilityAdd), h.Permissions.Create)
	permissions.GET("/:id", guard(PermissionsDocument, models.CapabilityQuery), h.Permissions.Get)
	permissions.PUT("/:id", guard(PermissionsDocument, models.CapabilityModify), h.Permissions.Update)
	permissions.DELETE("/:id", guard(PermissionsDocument, models.CapabilityDelete), h.Permissions.Delete)

	return r
}
