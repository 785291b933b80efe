package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/hospital-admin-api/api/swagger"
	"github.com/noah-isme/hospital-admin-api/internal/handler"
	"github.com/noah-isme/hospital-admin-api/internal/repository"
	"github.com/noah-isme/hospital-admin-api/internal/router"
	"github.com/noah-isme/hospital-admin-api/internal/service"
	"github.com/noah-isme/hospital-admin-api/pkg/cache"
	"github.com/noah-isme/hospital-admin-api/pkg/config"
	"github.com/noah-isme/hospital-admin-api/pkg/database"
	"github.com/noah-isme/hospital-admin-api/pkg/logger"
)

// @title Hospital Admin API
// @version 1.0.0
// @description Role based permissions and navigation for the hospital admin portal
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Navigation.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, navigation cache stays in-process", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	users := repository.NewUserRepository(db)
	roles := repository.NewRoleRepository(db)
	userRoles := repository.NewUserRoleRepository(db)
	permissions := repository.NewPermissionRepository(db)
	modules := repository.NewModuleRepository(db)
	documents := repository.NewDocumentRepository(db)
	links := repository.NewModuleDocumentRepository(db)

	audit := service.NewAuditService(repository.NewAuditRepository(db), metrics, logr, service.AuditConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		RetryDelay: cfg.Audit.RetryDelay,
	})
	audit.Start(ctx)
	defer audit.Stop()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(
		cacheRepo,
		cache.NewLocal(cfg.Navigation.LocalCacheSize, cfg.Navigation.LocalCacheTTL),
		metrics,
		cfg.Navigation.CacheTTL,
		logr,
		cfg.Navigation.CacheEnabled,
	)

	access := service.NewAccessService(service.AccessServiceParams{
		Users:       users,
		Memberships: userRoles,
		Permissions: permissions,
		Documents:   documents,
		Metrics:     metrics,
		Logger:      logr,
		Config: service.AccessConfig{
			SuperadminUsername: cfg.Access.SuperadminUsername,
			SuperadminRole:     cfg.Access.SuperadminRole,
		},
	})
	navigation := service.NewNavigationService(service.NavigationServiceParams{
		Access:    access,
		Modules:   modules,
		Documents: documents,
		Links:     links,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Logger:    logr,
		CacheTTL:  cfg.Navigation.CacheTTL,
	})

	authSvc := service.NewAuthService(service.AuthServiceParams{
		Users:      users,
		Access:     access,
		Navigation: navigation,
		Audit:      audit,
		Validator:  validate,
		Logger:     logr,
		Config: service.AuthConfig{
			AccessTokenSecret:  cfg.JWT.Secret,
			AccessTokenExpiry:  cfg.JWT.Expiration,
			RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
			Issuer:             cfg.JWT.Issuer,
		},
	})
	userSvc := service.NewUserService(service.UserServiceParams{
		Users:      users,
		UserRoles:  userRoles,
		Roles:      roles,
		Audit:      audit,
		Navigation: navigation,
		Validator:  validate,
		Logger:     logr,
	})
	roleSvc := service.NewRoleService(roles, audit, navigation, validate, logr)
	moduleSvc := service.NewModuleService(service.ModuleServiceParams{
		Modules:    modules,
		Links:      links,
		Documents:  documents,
		Audit:      audit,
		Navigation: navigation,
		Validator:  validate,
		Logger:     logr,
	})
	documentSvc := service.NewDocumentService(documents, audit, navigation, validate, logr)
	permissionSvc := service.NewPermissionService(service.PermissionServiceParams{
		Store:      permissions,
		Users:      users,
		Roles:      roles,
		Documents:  documents,
		Audit:      audit,
		Navigation: navigation,
		Validator:  validate,
		Logger:     logr,
	})
	exportSvc := service.NewExportService(service.ExportServiceParams{
		Permissions: permissions,
		Documents:   documents,
		Access:      access,
		Users:       users,
		Roles:       roles,
		Audit:       audit,
		Logger:      logr,
	})

	maintenance := service.NewMaintenanceService(repository.NewMaintenanceRepository(db), navigation, metrics, logr)
	if cfg.Maintenance.OrphanSweepEnabled {
		if err := maintenance.Start(cfg.Maintenance.OrphanSweepSchedule); err != nil {
			logr.Fatal("failed to schedule orphan sweep", zap.Error(err))
		}
		defer maintenance.Stop()
	}

	checks := map[string]handler.Pinger{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	engine := router.New(router.Handlers{
		Auth:        handler.NewAuthHandler(authSvc),
		Users:       handler.NewUserHandler(userSvc),
		Roles:       handler.NewRoleHandler(roleSvc),
		Modules:     handler.NewModuleHandler(moduleSvc),
		Documents:   handler.NewDocumentHandler(documentSvc),
		Permissions: handler.NewPermissionHandler(permissionSvc),
		Navigation:  handler.NewNavigationHandler(navigation, access),
		Exports:     handler.NewExportHandler(exportSvc),
		Metrics:     handler.NewMetricsHandler(metrics, checks),
	}, router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		EnableMetrics:  cfg.Metrics.Enabled,
		Logger:         logr,
		Observer:       metrics,
		Tokens:         authSvc,
		Access:         access,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
