package main

import (
	"alcyxob/run-coach/internal/api"
	"alcyxob/run-coach/internal/config"
	"alcyxob/run-coach/internal/logging"
	"alcyxob/run-coach/internal/planner"
	"alcyxob/run-coach/internal/repository"
	"alcyxob/run-coach/internal/repository/memory"
	"alcyxob/run-coach/internal/repository/mongo"
	"alcyxob/run-coach/internal/service"
	"alcyxob/run-coach/internal/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// @title Run Coach API
// @version 1.0
// @description Training plans edited through a conversation: draft, clarify, preview, commit.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("FATAL: Could not build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	if cfg.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}

	repos, closeRepos, err := openRepositories(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepos()

	var archive service.SnapshotArchiver
	if cfg.S3.BucketName != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		a, err := storage.NewS3Archive(ctx, cfg.S3, logger)
		cancel()
		if err != nil {
			return fmt.Errorf("init snapshot archive: %w", err)
		}
		archive = a
	} else {
		logger.Info("s3.bucket_name not set, committed plans are not archived")
	}

	// --- Initialize Services ---
	p := planner.NewDateGuard(newPlanner(cfg, logger))
	planService := service.NewPlanService(repos.Plans, repos.Profiles, logger)
	previewService := service.NewPreviewService(repos.Plans, repos.Previews, archive, logger, time.Now)
	assistantService := service.NewAssistantService(service.AssistantDeps{
		Plans:          planService,
		Previews:       previewService,
		Clarifications: service.NewClarificationService(repos.Clarifications, p, logger),
		Transcript:     service.NewTranscriptService(repos.Transcripts, cfg.Engine.TranscriptTail, time.Now),
		Planner:        p,
		DefaultZone:    cfg.Engine.Location(),
		Logger:         logger,
		Now:            time.Now,
	})

	// --- Initialize Gin Engine ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(logging.GinMiddleware(logger), gin.Recovery())
	api.SetupRoutes(router, cfg.JWT.Secret,
		api.NewPlanHandler(planService, logger),
		api.NewAssistantHandler(assistantService, logger),
		api.NewDatesHandler(cfg.Engine.Location(), time.Now),
	)

	// Planner calls can take a while, so the write timeout leaves room for them.
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Planner.Timeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	logger.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server exiting")
	return nil
}

func openRepositories(cfg config.Config, logger *zap.Logger) (repository.Set, func(), error) {
	switch cfg.Storage.Backend {
	case "memory":
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.NewStore().Set(), func() {}, nil
	case "mongo", "":
	default:
		return repository.Set{}, nil, fmt.Errorf("unknown storage.backend %q", cfg.Storage.Backend)
	}

	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		return repository.Set{}, nil, fmt.Errorf("connect mongodb: %w", err)
	}
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info("database connection established", zap.String("database", cfg.Database.Name))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := mongo.EnsureIndexes(ctx, appDB); err != nil {
		_ = mongo.DisconnectDB(dbClient)
		return repository.Set{}, nil, err
	}

	closeFn := func() {
		logger.Info("disconnecting mongodb")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Error("disconnect mongodb", zap.Error(err))
		}
	}
	return mongo.NewRepositorySet(appDB), closeFn, nil
}

func newPlanner(cfg config.Config, logger *zap.Logger) planner.ModificationPlanner {
	if cfg.Planner.APIKey == "" {
		logger.Warn("planner.api_key not set, assistant drafts will fail")
		return planner.Func(func(context.Context, planner.Request) (*planner.Response, error) {
			return nil, fmt.Errorf("%w: no API key configured", planner.ErrUpstreamFailure)
		})
	}
	client := openai.NewClient(option.WithAPIKey(cfg.Planner.APIKey))
	return planner.NewOpenAIPlanner(&client, planner.OpenAIConfig{
		Model:           cfg.Planner.Model,
		MaxOutputTokens: cfg.Planner.MaxOutputTokens,
		Timeout:         cfg.Planner.Timeout,
		PreviewTTL:      cfg.Engine.PreviewTTL,
	}, time.Now, logger)
}
