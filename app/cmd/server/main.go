package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "go.uber.org/automaxprocs"

	"diagrammer/app/config"
	"diagrammer/app/usecase"
	"diagrammer/internal/domain/repository"
	"diagrammer/internal/infrastructure/catalog"
	"diagrammer/internal/infrastructure/events"
	"diagrammer/internal/infrastructure/llm"
	"diagrammer/internal/infrastructure/metrics"
	"diagrammer/internal/infrastructure/ratelimit"
	"diagrammer/internal/infrastructure/renderer"
	"diagrammer/internal/infrastructure/store/filesystem"
	"diagrammer/internal/infrastructure/store/gormstore"
	mongorepo "diagrammer/internal/infrastructure/store/mongodb"
	"diagrammer/internal/infrastructure/transport"
	"diagrammer/internal/infrastructure/validator"
)

func main() {
	// logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repositories
	requestRepo, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("open store failed", "err", err)
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	var archive repository.ImageArchive
	if cfg.Archive.Dir != "" {
		a, err := filesystem.NewArchive(cfg.Archive.Dir)
		if err != nil {
			log.Fatalf("archive: %v", err)
		}
		archive = a
		logger.Info("archiving diagrams", "dir", cfg.Archive.Dir)
	}

	// Node catalog and renderer
	cat := catalog.Default()
	if cfg.Renderer.CatalogFile != "" {
		if cat, err = catalog.Load(cfg.Renderer.CatalogFile); err != nil {
			log.Fatalf("catalog: %v", err)
		}
	}
	diagramRenderer := renderer.NewGraphvizRenderer(cat, validator.NewDiagramAnalyzer(), renderer.Options{
		DotBinary:  cfg.Renderer.DotBinary,
		SearchPath: cfg.Renderer.SearchPath,
		Timeout:    cfg.Renderer.Timeout,
	}, logger)

	// LLM client
	policy, err := llm.ParseFallbackPolicy(cfg.LLM.Fallback)
	if err != nil {
		log.Fatalf("llm: %v", err)
	}
	llmClient, err := llm.New(llm.Options{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLM.Timeout,
		Fallback: policy,
	}, logger)
	if err != nil {
		log.Fatalf("llm: %v", err)
	}

	limits, err := ratelimit.ParseLimits(cfg.RateLimit.Limits)
	if err != nil {
		log.Fatalf("rate limits: %v", err)
	}
	limiter := ratelimit.New(limits)
	go limiter.Run(ctx, 10*time.Minute)

	hub := events.NewHub()

	// Usecases / services
	generator := usecase.NewDiagramGeneratorService(requestRepo, llmClient, diagramRenderer, hub, archive, logger)
	requestSvc := usecase.NewRequestService(requestRepo, archive)

	// Transport (HTTP handlers)
	handler := transport.NewDiagramHandler(generator, requestSvc, hub, limiter, logger)

	// Router and server
	r := mux.NewRouter()
	handler.RegisterRoutes(r)
	corsHandler := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORS.Origins),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", transport.RequestIDHeader}),
		handlers.ExposedHeaders([]string{transport.RequestIDHeader, "Retry-After"}),
		handlers.AllowCredentials(),
	)(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      transport.WithProxyHeaders(corsHandler, cfg.Server.TrustProxyHeaders),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			logger.Info("starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.StartMetricsServer(cfg.Metrics.Addr); err != nil {
				logger.Error("metrics server failed", "err", err)
			}
		}()
	}

	// Start HTTP server
	go func() {
		logger.Info("starting HTTP server", "addr", addr, "llm_provider", cfg.LLM.Provider, "fallback", policy)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "err", err)
			cancel()
		}
	}()

	// OS signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
		logger.Info("context cancelled")
	}

	// Shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}

	logger.Info("service stopped")
}

// openStore picks MongoDB or a SQL database from the URL scheme.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (repository.DiagramRequestRepository, func(), error) {
	if cfg.IsMongo() {
		mongoCtx, mongoCancel := context.WithTimeout(ctx, 30*time.Second)
		defer mongoCancel()
		client, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.URL))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		if err := client.Ping(mongoCtx, nil); err != nil {
			return nil, nil, fmt.Errorf("mongo ping: %w", err)
		}
		logger.Info("connected to mongo", "database", cfg.MongoDatabase)

		repo, err := mongorepo.NewMongoRequestRepo(mongoCtx, client.Database(cfg.MongoDatabase))
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {
			dctx, dcancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer dcancel()
			logger.Info("disconnecting mongo")
			if err := client.Disconnect(dctx); err != nil {
				logger.Error("mongo disconnect error", "err", err)
			}
		}, nil
	}

	db, err := gormstore.Open(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("connected to database", "dialect", db.Dialector.Name())
	return gormstore.NewDiagramRequestRepo(db), func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}, nil
}
