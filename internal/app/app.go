package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/patternlens-backend/internal/data/db"
	"github.com/yungbote/patternlens-backend/internal/http"
	"github.com/yungbote/patternlens-backend/internal/observability"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Metrics  *observability.Metrics
	Repos    Repos
	Clients  Clients
	Services Services

	pg           *db.PostgresService
	server       *http.Server
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	metrics := observability.NewMetrics()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := db.AutoMigrateAll(pg.DB()); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	reposet := wireRepos(theDB, log)
	clients, err := wireClients(ctx, log, metrics, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}
	serviceset := wireServices(theDB, log, metrics, cfg, reposet, clients)

	if cfg.SchemaFile != "" {
		if err := seedSchema(ctx, log, serviceset, cfg.SchemaFile); err != nil {
			clients.Close()
			_ = pg.Close()
			log.Sync()
			return nil, err
		}
	}

	handlerset := wireHandlers(log, theDB, serviceset)
	middleware := wireMiddleware(log, cfg)
	router := wireRouter(log, metrics, cfg, handlerset, middleware)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Metrics:      metrics,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

func seedSchema(ctx context.Context, log *logger.Logger, services Services, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open attribute schema: %w", err)
	}
	defer f.Close()
	res, err := services.Registry.SeedFromYAML(ctx, f)
	if err != nil {
		return fmt.Errorf("seed attribute schema: %w", err)
	}
	log.Info("Attribute schema seeded", "file", path, "categories", res.Categories, "definitions", res.Definitions)
	return nil
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.server = &http.Server{Engine: a.Router}
	return a.server.Run(addr)
}

// Shutdown stops accepting requests and waits for in-flight analytics writes.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil || a.server == nil {
		return nil
	}
	err := a.server.Shutdown(ctx)
	if a.Services.Retriever != nil {
		a.Services.Retriever.Drain()
	}
	return err
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
