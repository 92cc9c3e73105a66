package application

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/careloop/careloop/internal/application/usecase"
	knowledgedomain "github.com/careloop/careloop/internal/domain/knowledge"
	"github.com/careloop/careloop/internal/domain/repository"
	"github.com/careloop/careloop/internal/domain/service"
	"github.com/careloop/careloop/internal/infrastructure/config"
	"github.com/careloop/careloop/internal/infrastructure/embedding"
	"github.com/careloop/careloop/internal/infrastructure/knowledge"
	"github.com/careloop/careloop/internal/infrastructure/llm"
	_ "github.com/careloop/careloop/internal/infrastructure/llm/anthropic" // register anthropic provider factory
	_ "github.com/careloop/careloop/internal/infrastructure/llm/openai"    // register openai provider factory
	"github.com/careloop/careloop/internal/infrastructure/monitoring"
	"github.com/careloop/careloop/internal/infrastructure/persistence"
	"github.com/careloop/careloop/internal/infrastructure/scheduler"
	"github.com/careloop/careloop/internal/infrastructure/vectorstore"
	httpServer "github.com/careloop/careloop/internal/interfaces/http"
	"github.com/careloop/careloop/internal/interfaces/notify"
)

// App is the dependency injection container.
type App struct {
	config *config.Config
	logger *zap.Logger
	db     *gorm.DB

	repo  repository.ConversationRepository
	store vectorstore.VectorStore

	orchestrator *llm.Orchestrator
	generator    *service.ResponseGenerator
	monitor      *monitoring.Monitor
	scanner      *scheduler.TimeoutScanner

	conversations *usecase.ConversationUsecase
	approvals     *usecase.ApprovalUsecase

	notifier   *notify.TelegramNotifier
	httpServer *httpServer.Server
}

// NewApp wires the full application.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := config.Bootstrap(logger); err != nil {
		logger.Warn("Bootstrap failed (non-fatal)", zap.Error(err))
	}

	app := &App{
		config:  cfg,
		logger:  logger,
		monitor: monitoring.NewMonitor(logger),
	}

	if err := app.initRepository(); err != nil {
		return nil, fmt.Errorf("failed to init repository: %w", err)
	}
	if err := app.initInfrastructure(); err != nil {
		return nil, fmt.Errorf("failed to init infrastructure: %w", err)
	}
	app.initApplicationServices()
	if err := app.initInterfaces(); err != nil {
		return nil, fmt.Errorf("failed to init interfaces: %w", err)
	}

	return app, nil
}

// NewAppCLI wires a lightweight app for the reviewer console: repository and
// usecases only, no HTTP server, no notifier, no scanner.
func NewAppCLI(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := config.Bootstrap(logger); err != nil {
		logger.Warn("Bootstrap failed (non-fatal)", zap.Error(err))
	}

	app := &App{
		config: cfg,
		logger: logger,
	}

	if err := app.initRepository(); err != nil {
		return nil, fmt.Errorf("failed to init repository: %w", err)
	}
	if err := app.initInfrastructure(); err != nil {
		return nil, fmt.Errorf("failed to init infrastructure: %w", err)
	}
	app.initApplicationServices()

	return app, nil
}

func (app *App) initRepository() error {
	switch app.config.Database.Type {
	case "", "memory":
		app.repo = persistence.NewMemoryConversationRepository()
		app.logger.Info("Using in-memory conversation repository")
	default:
		db, err := persistence.NewDBConnection(&app.config.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		app.db = db
		app.repo = persistence.NewGormConversationRepository(db)
		app.logger.Info("Using database conversation repository",
			zap.String("type", app.config.Database.Type),
		)
	}
	return nil
}

func (app *App) initInfrastructure() error {
	app.logger.Info("Initializing infrastructure")

	// LLM providers, primary first, unconfigured ones skipped by the
	// orchestrator.
	providers := make([]llm.Provider, 0, len(app.config.LLM.Providers))
	for _, pc := range app.config.LLM.Providers {
		provider, err := llm.CreateProvider(pc, app.logger)
		if err != nil {
			app.logger.Error("Failed to create LLM provider",
				zap.String("name", pc.Name),
				zap.String("type", pc.Type),
				zap.Error(err),
			)
			continue
		}
		providers = append(providers, provider)
	}

	app.orchestrator = llm.NewOrchestrator(app.config.LLM.Primary, providers, llm.OrchestratorConfig{
		MaxRetries: app.config.LLM.MaxRetries,
		RetryDelay: app.config.LLM.RetryDelay,
	}, app.logger)

	retriever, err := app.buildRetriever()
	if err != nil {
		return err
	}

	app.generator = service.NewResponseGenerator(retriever, app.orchestrator, service.GeneratorConfig{
		TopK:                app.config.Retrieval.TopK,
		MinScore:            app.config.Retrieval.MinScore,
		Model:               app.config.LLM.Model,
		Temperature:         app.config.LLM.Temperature,
		TopP:                app.config.LLM.TopP,
		MaxTokens:           app.config.LLM.MaxTokens,
		FallbackMessage:     app.config.LLM.FallbackMessage,
		ConfidenceThreshold: app.config.Approval.ConfidenceThreshold,
	}, app.logger)

	return nil
}

// buildRetriever assembles the knowledge retriever. Without an embedding key
// retrieval is disabled and every generation runs without context.
func (app *App) buildRetriever() (knowledgedomain.Retriever, error) {
	if app.config.Retrieval.EmbedKey == "" {
		app.logger.Warn("No embedding key configured, knowledge retrieval disabled")
		return knowledge.NoopRetriever{}, nil
	}

	embedder := embedding.NewOpenAIEmbedder(
		app.config.Retrieval.EmbedURL,
		app.config.Retrieval.EmbedKey,
		app.config.Retrieval.EmbedModel,
		app.config.Retrieval.EmbedDim,
		app.logger,
	)

	switch app.config.Retrieval.StoreType {
	case "lancedb":
		storePath := app.config.Retrieval.StorePath
		if !filepath.IsAbs(storePath) {
			storePath = filepath.Join(config.HomeDir(), storePath)
		}
		store, err := vectorstore.NewLanceDBVectorStore(storePath, embedder.Dimension(), app.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open lancedb store: %w", err)
		}
		app.store = store
	default:
		app.store = vectorstore.NewMemoryVectorStore()
	}

	return knowledge.NewVectorRetriever(embedder, app.store, app.logger), nil
}

func (app *App) initApplicationServices() {
	app.approvals = usecase.NewApprovalUsecase(app.repo, app.monitor, app.logger)
	app.conversations = usecase.NewConversationUsecase(app.repo, app.generator, app.notifierOrNil(), app.monitor, app.logger)
}

func (app *App) notifierOrNil() usecase.Notifier {
	if app.notifier == nil {
		return nil
	}
	return app.notifier
}

func (app *App) initInterfaces() error {
	app.logger.Info("Initializing interfaces")

	if app.config.Notify.TelegramBotToken != "" {
		notifier, err := notify.NewTelegramNotifier(
			app.config.Notify.TelegramBotToken,
			app.config.Notify.TelegramChatIDs,
			app.logger,
		)
		if err != nil {
			app.logger.Error("Failed to create telegram notifier, notifications disabled", zap.Error(err))
		} else {
			app.notifier = notifier
			// Rebuild the conversation usecase with the notifier attached.
			app.conversations = usecase.NewConversationUsecase(app.repo, app.generator, app.notifier, app.monitor, app.logger)
		}
	} else {
		app.logger.Info("Telegram token not configured, reviewer notifications disabled")
	}

	app.httpServer = httpServer.NewServer(httpServer.Config{
		Host: app.config.Server.Host,
		Port: app.config.Server.Port,
		Mode: app.config.Server.Mode,
	}, app.conversations, app.approvals, app.monitor, app.logger)

	if len(app.config.Approval.ScanTenants) > 0 {
		app.scanner = scheduler.NewTimeoutScanner(
			app.repo,
			app.monitor,
			app.logger,
			app.config.Approval.ScanTenants,
			app.config.Approval.ScanInterval,
			app.config.Approval.MaxWait,
		)
	}

	return nil
}

// Start runs the HTTP server and background loops.
func (app *App) Start(ctx context.Context) error {
	app.logger.Info("Starting application")

	if err := app.httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if app.scanner != nil {
		app.scanner.Start(ctx)
	}

	app.logger.Info("Application started successfully")
	return nil
}

// Stop shuts everything down.
func (app *App) Stop(ctx context.Context) error {
	app.logger.Info("Stopping application")

	if app.httpServer != nil {
		if err := app.httpServer.Stop(ctx); err != nil {
			app.logger.Error("Failed to stop HTTP server", zap.Error(err))
		}
	}

	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.logger.Error("Failed to close vector store", zap.Error(err))
		}
	}

	if app.db != nil {
		sqlDB, err := app.db.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				app.logger.Error("Failed to close database connection", zap.Error(err))
			}
		}
	}

	app.logger.Info("Application stopped successfully")
	return nil
}

// Conversations returns the conversation usecase (used by the reviewer CLI).
func (app *App) Conversations() *usecase.ConversationUsecase {
	return app.conversations
}

// Approvals returns the approval usecase (used by the reviewer CLI).
func (app *App) Approvals() *usecase.ApprovalUsecase {
	return app.approvals
}

// Logger returns the application logger.
func (app *App) Logger() *zap.Logger {
	return app.logger
}

// AppConfig returns the application config.
func (app *App) AppConfig() *config.Config {
	return app.config
}

// Monitor returns the metrics collector.
func (app *App) Monitor() *monitoring.Monitor {
	return app.monitor
}
