package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/research-kb/internal/http/handlers"
	httpMW "github.com/yungbote/research-kb/internal/http/middleware"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	HealthHandler   *httpH.HealthHandler
	SearchHandler   *httpH.SearchHandler
	GraphHandler    *httpH.GraphHandler
	ConceptHandler  *httpH.ConceptHandler
	SourceHandler   *httpH.SourceHandler
	IngestHandler   *httpH.IngestHandler
	CitationHandler *httpH.CitationHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("research-kb"))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.SearchHandler != nil {
			api.POST("/search", cfg.SearchHandler.Search)
		}

		if cfg.GraphHandler != nil {
			api.GET("/graph/path", cfg.GraphHandler.ShortestPath)
			api.GET("/graph/neighborhood/:id", cfg.GraphHandler.Neighborhood)
		}

		if cfg.ConceptHandler != nil {
			api.GET("/concepts", cfg.ConceptHandler.List)
			api.GET("/concepts/lookup", cfg.ConceptHandler.Lookup)
			api.GET("/concepts/:id", cfg.ConceptHandler.Get)
			api.DELETE("/concepts/:id", cfg.ConceptHandler.Delete)
		}

		if cfg.SourceHandler != nil {
			api.GET("/sources", cfg.SourceHandler.List)
			api.GET("/sources/most-cited", cfg.SourceHandler.MostCited)
			api.GET("/sources/:id", cfg.SourceHandler.Get)
			api.GET("/sources/:id/chunks", cfg.SourceHandler.ListChunks)
			api.DELETE("/sources/:id", cfg.SourceHandler.Delete)
		}

		if cfg.CitationHandler != nil {
			api.GET("/sources/:id/citations", cfg.CitationHandler.ListBySource)
			api.POST("/citations/recompute-authority", cfg.CitationHandler.RecomputeAuthority)
		}

		if cfg.IngestHandler != nil {
			api.POST("/ingest/source", cfg.IngestHandler.IngestSource)
			api.POST("/ingest/concepts", cfg.IngestHandler.IngestConcepts)
		}
	}

	return r
}
