package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hospital-admin-api/internal/repository"
	"github.com/noah-isme/hospital-admin-api/internal/service"
	"github.com/noah-isme/hospital-admin-api/pkg/config"
	"github.com/noah-isme/hospital-admin-api/pkg/database"
	"github.com/noah-isme/hospital-admin-api/pkg/logger"
)

func main() {
	var (
		seed    bool
		sweep   bool
		timeout time.Duration
	)
	flag.BoolVar(&seed, "seed", true, "Ensure the superadmin role exists")
	flag.BoolVar(&sweep, "sweep", false, "Remove orphaned permission, membership and link rows")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	applied, err := database.Migrate(ctx, db, logr)
	if err != nil {
		logr.Fatal("migration failed", zap.Int("applied", applied), zap.Error(err))
	}
	logr.Info("migrations complete", zap.Int("applied", applied))

	if seed {
		if err := database.SeedSuperadminRole(ctx, db, cfg.Access.SuperadminRole); err != nil {
			logr.Fatal("seed failed", zap.Error(err))
		}
		logr.Info("superadmin role ensured", zap.String("role", cfg.Access.SuperadminRole))
	}

	if sweep {
		counts, err := service.NewMaintenanceService(repository.NewMaintenanceRepository(db), nil, nil, logr).SweepOrphans(ctx)
		if err != nil {
			logr.Fatal("orphan sweep failed", zap.Error(err))
		}
		logr.Info("orphan sweep complete", zap.Int64("removed", counts.Total()))
	}
}
