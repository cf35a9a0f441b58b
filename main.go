package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/relgraph/relgraph-engine/pkg/config"
	"github.com/relgraph/relgraph-engine/pkg/database"
	"github.com/relgraph/relgraph-engine/pkg/handlers"
	"github.com/relgraph/relgraph-engine/pkg/logging"
	"github.com/relgraph/relgraph-engine/pkg/middleware"
	"github.com/relgraph/relgraph-engine/pkg/repositories"
	"github.com/relgraph/relgraph-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", cfg.Database.Host),
		zap.String("tuning_dir", cfg.TuningDir),
	)

	ctx := context.Background()

	if err := database.RunMigrations(cfg.Database.URL(), cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	schemaRepo := repositories.NewSchemaRepository(db)
	logicalRepo := repositories.NewLogicalFKRepository(db)
	physicalRepo := repositories.NewPhysicalFKRepository(db)
	dependencyRepo := repositories.NewDependencyRepository(db)

	detectionService := services.NewDetectionService(cfg, schemaRepo, logicalRepo, physicalRepo, dependencyRepo, logger)
	curationService := services.NewCurationService(logicalRepo, schemaRepo, logger)
	impactService := services.NewImpactService(cfg, schemaRepo, logicalRepo, physicalRepo, dependencyRepo, logger)
	syncService := services.NewSchemaSyncService(schemaRepo, physicalRepo, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(syncService, schemaRepo, logger).RegisterRoutes(mux)
	handlers.NewRelationshipHandler(detectionService, curationService, logger).RegisterRoutes(mux)
	handlers.NewImpactHandler(impactService, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:      middleware.RequestLogger(logger)(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info("Starting relgraph-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
