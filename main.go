package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fathomdata/fathom-engine/pkg/config"
	"github.com/fathomdata/fathom-engine/pkg/connectors"
	_ "github.com/fathomdata/fathom-engine/pkg/connectors/mssql"       // register sql_server / azure_sql
	_ "github.com/fathomdata/fathom-engine/pkg/connectors/mysql"       // register mysql
	_ "github.com/fathomdata/fathom-engine/pkg/connectors/objectstore" // register s3 / gcs / adls
	_ "github.com/fathomdata/fathom-engine/pkg/connectors/postgres"    // register postgresql
	"github.com/fathomdata/fathom-engine/pkg/crypto"
	"github.com/fathomdata/fathom-engine/pkg/database"
	"github.com/fathomdata/fathom-engine/pkg/handlers"
	"github.com/fathomdata/fathom-engine/pkg/llm"
	"github.com/fathomdata/fathom-engine/pkg/logging"
	"github.com/fathomdata/fathom-engine/pkg/middleware"
	"github.com/fathomdata/fathom-engine/pkg/repositories"
	"github.com/fathomdata/fathom-engine/pkg/services"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", cfg.Database.Host),
		zap.String("default_model", cfg.AI.DefaultModel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(cfg.Database.ConnectionString(), cfg.Database.MigrationsPath, logger); err != nil {
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

	cipher, err := crypto.NewCredentialCipher(cfg.CredentialsKey)
	if err != nil {
		logger.Fatal("Failed to initialize credential cipher", zap.Error(err))
	}

	linkedServiceRepo := repositories.NewLinkedServiceRepository(db)
	datasetRepo := repositories.NewDatasetRepository(db)
	pipelineRepo := repositories.NewPipelineRepository(db)
	executionRepo := repositories.NewExecutionRepository(db)

	opener := connectors.NewOpener()
	generatorFactory := llm.NewClientFactory(cfg.AI, logger)

	linkedServiceSvc := services.NewLinkedServiceService(
		linkedServiceRepo, datasetRepo, cipher, opener, cfg.Connectors.TestTimeout(), logger)
	datasetSvc := services.NewDatasetService(
		datasetRepo, pipelineRepo, linkedServiceSvc, opener, logger)
	transformSvc := services.NewTransformService(
		datasetSvc, generatorFactory, cfg.Connectors.PreviewSampleRows, logger)
	pipelineSvc := services.NewPipelineService(pipelineRepo, datasetRepo, logger)
	executionSvc := services.NewExecutionService(
		executionRepo, pipelineSvc, datasetSvc, cfg.Connectors.NodeTimeout(), logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewLinkedServicesHandler(linkedServiceSvc, logger).RegisterRoutes(mux)
	handlers.NewDatasetsHandler(datasetSvc, logger).RegisterRoutes(mux)
	handlers.NewTransformationsHandler(transformSvc, logger).RegisterRoutes(mux)
	handlers.NewPipelinesHandler(pipelineSvc, logger).RegisterRoutes(mux)
	handlers.NewExecutionsHandler(executionSvc, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:    cfg.BindAddr + ":" + cfg.Port,
		Handler: middleware.RequestLogger(logger)(mux),
	}

	go func() {
		logger.Info("Starting fathom-engine",
			zap.String("addr", server.Addr),
			zap.Strings("connectors", connectorNames()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown did not complete cleanly", zap.Error(err))
		os.Exit(1)
	}
}

func connectorNames() []string {
	infos := connectors.RegisteredConnectors()
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = string(info.Type)
	}
	return names
}
