package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/research-kb/internal/data/graph"
	"github.com/yungbote/research-kb/internal/ingest"
	"github.com/yungbote/research-kb/internal/platform/logger"
	"github.com/yungbote/research-kb/internal/platform/neo4jdb"
	"github.com/yungbote/research-kb/internal/search"
)

type Services struct {
	Graph    graph.GraphService
	Search   search.HybridService
	Pipeline ingest.Pipeline
	Presets  map[search.Preset]search.Weights

	PathCache *graph.PathCache
	Neo4j     *neo4jdb.Client
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos) (Services, error) {
	log.Info("Wiring services...")

	pathCache, err := graph.NewPathCacheFromEnv(log)
	if err != nil {
		// Redis is an accelerator, not a dependency.
		log.Warn("path cache unavailable, continuing without it", "error", err)
		pathCache = nil
	}

	neo4jClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Warn("neo4j mirror unavailable, continuing without it", "error", err)
		neo4jClient = nil
	}

	graphSvc := graph.NewGraphService(db, pathCache, cfg.GraphDecay, cfg.GraphMaxHops, log)
	extractor := search.NewConceptExtractor(db, log)
	chunkConcepts := r.ChunkConcept

	searchSvc := search.NewHybridService(db, extractor, graphSvc, chunkConcepts, log)

	pipeline := ingest.NewPipeline(
		db,
		r.Source,
		r.Chunk,
		r.Concept,
		r.Relationship,
		r.ChunkConcept,
		nil, // callers supply embeddings; no model endpoint wired here
		neo4jClient,
		pathCache,
		log,
	)

	return Services{
		Graph:     graphSvc,
		Search:    searchSvc,
		Pipeline:  pipeline,
		Presets:   loadPresets(cfg, log),
		PathCache: pathCache,
		Neo4j:     neo4jClient,
	}, nil
}
