package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/research-kb/internal/domain"
)

// Migrate applies the gorm schema plus the raw statements gorm cannot
// express: the generated full-text column, its GIN index, the vector
// indexes, and the traversal indexes backing the recursive graph CTEs.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// Content
		&types.Source{},
		&types.Chunk{},

		// Citations (bibliography + citation graph)
		&types.Citation{},
		&types.SourceCitation{},

		// Knowledge graph
		&types.Concept{},
		&types.ConceptRelationship{},
		&types.ChunkConcept{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	// fts_vector is a stored generated column: the location string is
	// weighted above the body so heading matches rank first. The
	// database owns this column; application code never computes it.
	stmts := []string{
		`ALTER TABLE chunks ADD COLUMN IF NOT EXISTS fts_vector tsvector
		 GENERATED ALWAYS AS (
		   setweight(to_tsvector('english', coalesce(location, '')), 'A') ||
		   setweight(to_tsvector('english', content), 'B')
		 ) STORED`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_fts ON chunks USING GIN (fts_vector)`,

		// Approximate-nearest-neighbor indexes for the <=> operator.
		`CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks
		 USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_concepts_embedding ON concepts
		 USING hnsw (embedding vector_cosine_ops)`,

		// Both directions of the edge table are entry points for the
		// recursive traversal; the 2-hop latency contract depends on these.
		`CREATE INDEX IF NOT EXISTS idx_rel_source ON concept_relationships (source_concept_id, target_concept_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rel_target ON concept_relationships (target_concept_id, source_concept_id)`,

		// Trigram index for fuzzy citation-title matching.
		`CREATE INDEX IF NOT EXISTS idx_sources_title_trgm ON sources USING GIN (LOWER(title) gin_trgm_ops)`,
	}

	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migrate raw statement: %w", err)
		}
	}

	return nil
}
