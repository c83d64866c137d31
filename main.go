package main

import (
	"context"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/reposage-ai/reposage-engine/pkg/config"
	"github.com/reposage-ai/reposage-engine/pkg/database"
	"github.com/reposage-ai/reposage-engine/pkg/github"
	"github.com/reposage-ai/reposage-engine/pkg/handlers"
	"github.com/reposage-ai/reposage-engine/pkg/llm"
	"github.com/reposage-ai/reposage-engine/pkg/logging"
	"github.com/reposage-ai/reposage-engine/pkg/middleware"
	"github.com/reposage-ai/reposage-engine/pkg/repositories"
	"github.com/reposage-ai/reposage-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	stdDB := stdlib.OpenDBFromPool(db.Pool)
	if err := database.RunMigrations(stdDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	if err := stdDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	// AI providers. The OpenAI-compatible client handles summarization and
	// embeddings; Anthropic is the optional summarization fallback.
	openaiClient, err := llm.NewClient(&llm.Config{
		Endpoint: cfg.AI.OpenAIBaseURL,
		Model:    cfg.AI.OpenAIModel,
		APIKey:   cfg.AI.OpenAIAPIKey,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	var fallback llm.Generator
	if cfg.AI.AnthropicAPIKey != "" {
		anthropicClient, err := llm.NewAnthropicClient(cfg.AI.AnthropicAPIKey, cfg.AI.AnthropicModel, logger)
		if err != nil {
			logger.Fatal("Failed to create Anthropic client", zap.Error(err))
		}
		fallback = anthropicClient
	} else {
		logger.Warn("No Anthropic API key configured, summarization has no fallback provider")
	}
	summarizer := llm.NewSummarizerChain(openaiClient, fallback, logger)

	githubClient := github.NewClient(github.Config{
		Token:       cfg.GitHub.Token,
		Branch:      cfg.GitHub.Branch,
		MaxFileSize: cfg.GitHub.MaxFileSize,
		BaseURL:     cfg.GitHub.BaseURL,
	}, logger)

	// Repositories
	projectRepo := repositories.NewProjectRepository(db)
	fileRepo := repositories.NewFileEmbeddingRepository(db)
	commitRepo := repositories.NewCommitRepository(db)
	userRepo := repositories.NewUserRepository(db)
	questionRepo := repositories.NewQuestionRepository(db)

	// Services
	creditService := services.NewCreditService(githubClient, userRepo, logger)
	indexerService := services.NewIndexerService(githubClient, summarizer, openaiClient, fileRepo, cfg.Indexer, logger)
	commitService := services.NewCommitService(githubClient, summarizer, projectRepo, commitRepo, cfg.Indexer, logger)
	projectService := services.NewProjectService(projectRepo, userRepo, creditService, indexerService, commitService, cfg.AI.EmbeddingModel, logger)
	questionService := services.NewQuestionService(projectRepo, fileRepo, questionRepo, openaiClient, openaiClient, logger)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	projectsHandler := handlers.NewProjectsHandler(projectService, commitService, questionService, logger)
	projectsHandler.RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting reposage-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
