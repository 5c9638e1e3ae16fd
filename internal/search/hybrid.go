package search

import (
	"sort"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/yungbote/research-kb/internal/data/graph"
	"github.com/yungbote/research-kb/internal/data/repos/knowledge"
	types "github.com/yungbote/research-kb/internal/domain"
	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

// Result is one ranked chunk with its score breakdown.
type Result struct {
	Chunk       *types.Chunk     `json:"chunk"`
	SourceTitle string           `json:"source_title"`
	SourceType  types.SourceType `json:"source_type"`

	FTSScore      float64 `json:"fts_score"`
	VectorScore   float64 `json:"vector_score"`
	GraphScore    float64 `json:"graph_score"`
	CombinedScore float64 `json:"combined_score"`

	Rank int `json:"rank"`
}

// Response carries ranked results plus any degradation warnings, such
// as the graph signal being dropped for a query with no known concepts.
type Response struct {
	Results  []Result `json:"results"`
	Warnings []string `json:"warnings,omitempty"`
}

type HybridService interface {
	Search(dbc dbctx.Context, q *Query) (*Response, error)
}

type hybridService struct {
	db            *gorm.DB
	extractor     ConceptExtractor
	graph         graph.GraphService
	chunkConcepts knowledge.ChunkConceptRepo
	log           *logger.Logger
}

func NewHybridService(db *gorm.DB, extractor ConceptExtractor, graphSvc graph.GraphService, chunkConcepts knowledge.ChunkConceptRepo, baseLog *logger.Logger) HybridService {
	return &hybridService{
		db:            db,
		extractor:     extractor,
		graph:         graphSvc,
		chunkConcepts: chunkConcepts,
		log:           baseLog.With("component", "HybridSearch"),
	}
}

type candidateRow struct {
	types.Chunk
	SourceTitle string           `gorm:"column:source_title"`
	SrcType     types.SourceType `gorm:"column:src_type"`
	FTSNorm     float64          `gorm:"column:fts_norm"`
	VectorScore float64          `gorm:"column:vector_score"`
	Combined    float64          `gorm:"column:combined_score"`
}

func (s *hybridService) Search(dbc dbctx.Context, q *Query) (*Response, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	limit := q.effectiveLimit()
	weights := q.effectiveWeights()
	resp := &Response{}

	// The graph signal needs concepts on both sides. A query that
	// mentions none degrades to two-signal ranking, never to an error.
	useGraph := q.UseGraph
	var queryConcepts []uuid.UUID
	if useGraph {
		ids, err := s.extractor.ExtractConceptIDs(dbc, q.Text)
		if err != nil {
			return nil, err
		}
		queryConcepts = ids
		if len(queryConcepts) == 0 {
			useGraph = false
			resp.Warnings = append(resp.Warnings,
				"graph signal disabled: query mentions no known concepts; weights renormalized over fts and vector")
			s.log.Warn("graph re-ranking skipped", "reason", "no query concepts", "query", q.Text)
		}
	}

	normalized, err := weights.Normalize(useGraph)
	if err != nil {
		return nil, err
	}

	// Over-fetch when re-ranking so graph proximity can promote
	// candidates from below the cut line.
	fetchLimit := limit
	if useGraph {
		fetchLimit = limit * 2
	}

	candidates, err := s.fetchCandidates(dbc, q, normalized, fetchLimit)
	if err != nil {
		return nil, err
	}

	if !useGraph {
		resp.Results = finalize(candidates, limit)
		return resp, nil
	}

	// maxHops <= 0 lets the graph service apply its configured default.
	if err := s.applyGraphScores(dbc, candidates, queryConcepts, normalized, q.MaxHops); err != nil {
		return nil, err
	}
	resp.Results = finalize(candidates, limit)
	return resp, nil
}

func (s *hybridService) fetchCandidates(dbc dbctx.Context, q *Query, w Weights, fetchLimit int) ([]Result, error) {
	t := dbc.Tx
	if t == nil {
		t = s.db
	}

	var sourceType interface{}
	if q.SourceType != nil {
		sourceType = string(*q.SourceType)
	}

	// Each signal pool is wider than the final fetch so the outer join
	// sees candidates strong on only one signal.
	pool := fetchLimit * 2

	var rows []candidateRow
	var err error
	switch {
	case q.Text != "" && len(q.Embedding) > 0:
		vec := pgvector.NewVector(q.Embedding)
		err = t.WithContext(dbc.Ctx).Raw(`
			WITH fts_results AS (
				SELECT c.id, ts_rank(c.fts_vector, plainto_tsquery('english', ?)) AS fts_score
				FROM chunks c
				JOIN sources s ON s.id = c.source_id
				WHERE c.fts_vector @@ plainto_tsquery('english', ?)
				  AND (?::text IS NULL OR s.source_type = ?::text)
				ORDER BY fts_score DESC
				LIMIT ?
			),
			vector_results AS (
				SELECT c.id, (c.embedding <=> ?::vector(1024)) AS distance
				FROM chunks c
				JOIN sources s ON s.id = c.source_id
				WHERE c.embedding IS NOT NULL
				  AND (?::text IS NULL OR s.source_type = ?::text)
				ORDER BY distance ASC
				LIMIT ?
			),
			merged AS (
				SELECT COALESCE(f.id, v.id) AS id,
				       COALESCE(f.fts_score, 0) AS fts_score,
				       COALESCE(v.distance, 2.0) AS distance
				FROM fts_results f
				FULL OUTER JOIN vector_results v ON f.id = v.id
			),
			scored AS (
				SELECT id,
				       CASE WHEN MAX(fts_score) OVER () > 0
				            THEN fts_score / MAX(fts_score) OVER ()
				            ELSE 0 END AS fts_norm,
				       1.0 - distance / 2.0 AS vector_score
				FROM merged
			)
			SELECT ch.*, s.title AS source_title, s.source_type AS src_type,
			       sc.fts_norm, sc.vector_score,
			       sc.fts_norm * ? + sc.vector_score * ? AS combined_score
			FROM scored sc
			JOIN chunks ch ON ch.id = sc.id
			JOIN sources s ON s.id = ch.source_id
			ORDER BY combined_score DESC, ch.id ASC
			LIMIT ?`,
			q.Text, q.Text, sourceType, sourceType, pool,
			vec, sourceType, sourceType, pool,
			w.FTS, w.Vector, fetchLimit,
		).Scan(&rows).Error

	case q.Text != "":
		err = t.WithContext(dbc.Ctx).Raw(`
			WITH fts_results AS (
				SELECT c.id, ts_rank(c.fts_vector, plainto_tsquery('english', ?)) AS fts_score
				FROM chunks c
				JOIN sources s ON s.id = c.source_id
				WHERE c.fts_vector @@ plainto_tsquery('english', ?)
				  AND (?::text IS NULL OR s.source_type = ?::text)
				ORDER BY fts_score DESC
				LIMIT ?
			),
			scored AS (
				SELECT id,
				       CASE WHEN MAX(fts_score) OVER () > 0
				            THEN fts_score / MAX(fts_score) OVER ()
				            ELSE 0 END AS fts_norm
				FROM fts_results
			)
			SELECT ch.*, s.title AS source_title, s.source_type AS src_type,
			       sc.fts_norm, 0.0 AS vector_score,
			       sc.fts_norm * ? AS combined_score
			FROM scored sc
			JOIN chunks ch ON ch.id = sc.id
			JOIN sources s ON s.id = ch.source_id
			ORDER BY combined_score DESC, ch.id ASC
			LIMIT ?`,
			q.Text, q.Text, sourceType, sourceType, pool,
			w.FTS+w.Vector, fetchLimit,
		).Scan(&rows).Error

	default:
		vec := pgvector.NewVector(q.Embedding)
		err = t.WithContext(dbc.Ctx).Raw(`
			SELECT ch.*, s.title AS source_title, s.source_type AS src_type,
			       0.0 AS fts_norm,
			       1.0 - (ch.embedding <=> ?::vector(1024)) / 2.0 AS vector_score,
			       (1.0 - (ch.embedding <=> ?::vector(1024)) / 2.0) * ? AS combined_score
			FROM chunks ch
			JOIN sources s ON s.id = ch.source_id
			WHERE ch.embedding IS NOT NULL
			  AND (?::text IS NULL OR s.source_type = ?::text)
			ORDER BY ch.embedding <=> ?::vector(1024) ASC, ch.id ASC
			LIMIT ?`,
			vec, vec, w.FTS+w.Vector, sourceType, sourceType, vec, fetchLimit,
		).Scan(&rows).Error
	}
	if err != nil {
		return nil, kberr.NewSearch("fetch_candidates", err)
	}

	out := make([]Result, 0, len(rows))
	for i := range rows {
		c := rows[i].Chunk
		out = append(out, Result{
			Chunk:         &c,
			SourceTitle:   rows[i].SourceTitle,
			SourceType:    rows[i].SrcType,
			FTSScore:      rows[i].FTSNorm,
			VectorScore:   rows[i].VectorScore,
			CombinedScore: rows[i].Combined,
		})
	}
	return out, nil
}

// applyGraphScores re-scores candidates with the third signal. The
// fts and vector terms are rebuilt from their per-signal scores so the
// three-way weights apply cleanly.
func (s *hybridService) applyGraphScores(dbc dbctx.Context, candidates []Result, queryConcepts []uuid.UUID, w Weights, maxHops int) error {
	if len(candidates) == 0 {
		return nil
	}
	chunkIDs := make([]uuid.UUID, 0, len(candidates))
	for i := range candidates {
		chunkIDs = append(chunkIDs, candidates[i].Chunk.ID)
	}
	conceptsByChunk, err := s.chunkConcepts.ConceptIDsForChunks(dbc, chunkIDs)
	if err != nil {
		return err
	}

	for i := range candidates {
		chunkConcepts := conceptsByChunk[candidates[i].Chunk.ID]
		score := 0.0
		if len(chunkConcepts) > 0 {
			score, err = s.graph.GraphScore(dbc, queryConcepts, chunkConcepts, maxHops)
			if err != nil {
				return err
			}
		}
		candidates[i].GraphScore = score
		candidates[i].CombinedScore = w.FTS*candidates[i].FTSScore +
			w.Vector*candidates[i].VectorScore +
			w.Graph*score
	}
	return nil
}

// finalize orders by combined score with chunk id as the deterministic
// tiebreak, trims, and assigns 1-based ranks.
func finalize(results []Result, limit int) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		return results[i].Chunk.ID.String() < results[j].Chunk.ID.String()
	})
	if len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
