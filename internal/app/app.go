package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/yungbote/research-kb/internal/data/db"
	kbhttp "github.com/yungbote/research-kb/internal/http"
	httpH "github.com/yungbote/research-kb/internal/http/handlers"
	"github.com/yungbote/research-kb/internal/observability"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *kbhttp.Server
	Cfg      Config
	Repos    Repos
	Services Services

	pg           *db.PostgresService
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

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "research-kb",
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	theDB := pg.DB()

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, reposet)
	if err != nil {
		log.Sync()
		return nil, err
	}

	srv := kbhttp.NewServer(kbhttp.RouterConfig{
		Log:             log,
		HealthHandler:   httpH.NewHealthHandler(theDB, log),
		SearchHandler:   httpH.NewSearchHandler(log, serviceset.Search, serviceset.Presets),
		GraphHandler:    httpH.NewGraphHandler(log, serviceset.Graph),
		ConceptHandler:  httpH.NewConceptHandler(log, reposet.Concept),
		SourceHandler:   httpH.NewSourceHandler(log, reposet.Source, reposet.Chunk, reposet.SourceCitation),
		IngestHandler:   httpH.NewIngestHandler(log, serviceset.Pipeline),
		CitationHandler: httpH.NewCitationHandler(log, reposet.Citation, reposet.SourceCitation, reposet.Authority),
	})

	return &App{
		Log:          log,
		DB:           theDB,
		Server:       srv,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Run() error {
	a.Log.Info("Starting HTTP server", "addr", a.Cfg.HTTPAddr)
	return a.Server.Run(a.Cfg.HTTPAddr)
}

func (a *App) Shutdown(ctx context.Context) {
	if a.Services.PathCache != nil {
		_ = a.Services.PathCache.Close()
	}
	if a.Services.Neo4j != nil {
		_ = a.Services.Neo4j.Close(ctx)
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	if a.pg != nil {
		_ = a.pg.Close()
	}
	a.Log.Sync()
}
