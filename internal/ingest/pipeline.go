// Package ingest is the only writer of concepts, mentions, and
// relationships. Everything funnels through the deduplicator so the
// canonical-name invariant holds no matter how noisy the extractor is.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/research-kb/internal/data/graph"
	"github.com/yungbote/research-kb/internal/data/repos"
	"github.com/yungbote/research-kb/internal/dedup"
	types "github.com/yungbote/research-kb/internal/domain"
	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
	"github.com/yungbote/research-kb/internal/platform/neo4jdb"
)

// Embedder produces dense vectors for text. Implementations wrap an
// external model endpoint; tests use a deterministic fake.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// SourceInput describes a document to ingest.
type SourceInput struct {
	SourceType types.SourceType
	Title      string
	Authors    []string
	Year       *int
	FilePath   *string
	FileHash   string
	Metadata   map[string]interface{}
}

// ChunkInput is one content unit of a source.
type ChunkInput struct {
	Content     string
	ContentHash string
	Location    *string
	PageStart   *int
	PageEnd     *int
	Embedding   []float32
	Metadata    map[string]interface{}
}

// MentionInput links an extracted concept back to a chunk.
type MentionInput struct {
	ChunkID        uuid.UUID
	MentionType    types.MentionType
	RelevanceScore *float64
}

// ConceptInput is one extracted concept before deduplication.
type ConceptInput struct {
	Name             string
	ConceptType      types.ConceptType
	Category         *string
	Definition       *string
	Aliases          []string
	Embedding        []float32
	ExtractionMethod *string
	Confidence       *float64
	Mentions         []MentionInput
}

// RelationshipInput is an edge between two extracted concepts,
// addressed by name so it survives deduplication.
type RelationshipInput struct {
	SourceName       string
	TargetName       string
	RelationshipType types.RelationshipType
	IsDirected       bool
	Strength         float64
	Confidence       *float64
	EvidenceChunkIDs []uuid.UUID
}

// IngestResult summarizes one source ingestion.
type IngestResult struct {
	Source        *types.Source
	SourceCreated bool
	ChunksCreated int
}

// ConceptResult summarizes one concept batch.
type ConceptResult struct {
	Created       int
	Merged        int
	MentionsAdded int
	EdgesAdded    int
	FlaggedReview int
}

type Pipeline interface {
	// IngestSource is idempotent on file hash: re-running it for an
	// already ingested file returns the existing source and writes no
	// new chunks.
	IngestSource(dbc dbctx.Context, src SourceInput, chunks []ChunkInput) (*IngestResult, error)

	// IngestConcepts deduplicates a concept batch against itself and
	// the store, upserts, then links mentions and relationships.
	IngestConcepts(dbc dbctx.Context, concepts []ConceptInput, rels []RelationshipInput) (*ConceptResult, error)
}

type pipeline struct {
	db            *gorm.DB
	sources       repos.SourceRepo
	chunks        repos.ChunkRepo
	concepts      repos.ConceptRepo
	relationships repos.RelationshipRepo
	chunkConcepts repos.ChunkConceptRepo
	embedder      Embedder
	neo4j         *neo4jdb.Client
	pathCache     *graph.PathCache
	log           *logger.Logger
}

// NewPipeline wires the ingestion path. embedder, neo4j, and pathCache
// may each be nil; the pipeline degrades feature by feature.
func NewPipeline(
	db *gorm.DB,
	sources repos.SourceRepo,
	chunks repos.ChunkRepo,
	concepts repos.ConceptRepo,
	relationships repos.RelationshipRepo,
	chunkConcepts repos.ChunkConceptRepo,
	embedder Embedder,
	neo4j *neo4jdb.Client,
	pathCache *graph.PathCache,
	baseLog *logger.Logger,
) Pipeline {
	return &pipeline{
		db:            db,
		sources:       sources,
		chunks:        chunks,
		concepts:      concepts,
		relationships: relationships,
		chunkConcepts: chunkConcepts,
		embedder:      embedder,
		neo4j:         neo4j,
		pathCache:     pathCache,
		log:           baseLog.With("component", "IngestPipeline"),
	}
}

func (p *pipeline) IngestSource(dbc dbctx.Context, src SourceInput, chunks []ChunkInput) (*IngestResult, error) {
	if src.FileHash == "" {
		return nil, kberr.NewValidation("file_hash", "required")
	}

	row := &types.Source{
		SourceType: src.SourceType,
		Title:      src.Title,
		Authors:    datatypes.NewJSONSlice(src.Authors),
		Year:       src.Year,
		FilePath:   src.FilePath,
		FileHash:   src.FileHash,
		Metadata:   datatypes.JSONMap(src.Metadata),
	}
	source, created, err := p.sources.GetOrCreateByFileHash(dbc, row)
	if err != nil {
		return nil, err
	}
	res := &IngestResult{Source: source, SourceCreated: created}
	if !created {
		p.log.Info("source already ingested, skipping chunks",
			"source_id", source.ID, "file_hash", src.FileHash)
		return res, nil
	}

	chunkRows := make([]*types.Chunk, 0, len(chunks))
	for i, in := range chunks {
		embedding := in.Embedding
		if len(embedding) == 0 && p.embedder != nil {
			embedding, err = p.embedder.EmbedText(dbc.Ctx, in.Content)
			if err != nil {
				return nil, kberr.NewStorage("embed", "chunk",
					fmt.Errorf("chunk %d: %w", i, err))
			}
		}
		chunkRows = append(chunkRows, &types.Chunk{
			SourceID:    source.ID,
			Content:     in.Content,
			ContentHash: in.ContentHash,
			Location:    in.Location,
			PageStart:   in.PageStart,
			PageEnd:     in.PageEnd,
			Embedding:   vectorOrNil(embedding),
			Metadata:    datatypes.JSONMap(in.Metadata),
		})
	}
	if len(chunkRows) > 0 {
		if _, err := p.chunks.BatchCreate(dbc, chunkRows); err != nil {
			return nil, err
		}
		res.ChunksCreated = len(chunkRows)
	}
	p.log.Info("source ingested",
		"source_id", source.ID, "title", src.Title, "chunks", res.ChunksCreated)
	return res, nil
}

func (p *pipeline) IngestConcepts(dbc dbctx.Context, concepts []ConceptInput, rels []RelationshipInput) (*ConceptResult, error) {
	if len(concepts) == 0 && len(rels) == 0 {
		return &ConceptResult{}, nil
	}

	// The whole batch commits or none of it does. Cache invalidation
	// and the graph mirror run after the commit.
	var res *ConceptResult
	var syncConcepts []*types.Concept
	var syncRels []*types.ConceptRelationship
	run := func(txc dbctx.Context) error {
		var err error
		res, syncConcepts, syncRels, err = p.ingestConceptsTx(txc, concepts, rels)
		return err
	}
	if dbc.Tx != nil {
		if err := run(dbc); err != nil {
			return nil, err
		}
	} else {
		err := p.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
			return run(dbctx.Context{Ctx: dbc.Ctx, Tx: tx})
		})
		if err != nil {
			return nil, err
		}
	}

	if res.EdgesAdded > 0 {
		p.pathCache.Flush(dbc.Ctx)
	}
	if err := graph.SyncConceptGraph(dbc.Ctx, p.neo4j, p.log, syncConcepts, syncRels); err != nil {
		p.log.Warn("neo4j sync failed", "error", err)
	}

	p.log.Info("concepts ingested",
		"created", res.Created, "merged", res.Merged,
		"mentions", res.MentionsAdded, "edges", res.EdgesAdded,
		"flagged_review", res.FlaggedReview)
	return res, nil
}

func (p *pipeline) ingestConceptsTx(dbc dbctx.Context, concepts []ConceptInput, rels []RelationshipInput) (*ConceptResult, []*types.Concept, []*types.ConceptRelationship, error) {
	res := &ConceptResult{}

	// In-batch dedup first: extractors routinely emit "IV" and
	// "instrumental variables" from the same document.
	batch := map[string]*ConceptInput{}
	order := make([]string, 0, len(concepts))
	for i := range concepts {
		in := concepts[i]
		canonical := dedup.CanonicalName(in.Name)
		if canonical == "" {
			return nil, nil, nil, kberr.NewValidation("name", fmt.Sprintf("concept %d canonicalizes to empty", i))
		}
		if existing, ok := batch[canonical]; ok {
			mergeInputs(existing, &in)
			continue
		}
		copied := in
		batch[canonical] = &copied
		order = append(order, canonical)
	}

	idByCanonical := make(map[string]uuid.UUID, len(order))
	var syncConcepts []*types.Concept

	for _, canonical := range order {
		in := batch[canonical]
		concept, merged, flagged, err := p.upsertConcept(dbc, canonical, in)
		if err != nil {
			return nil, nil, nil, err
		}
		if merged {
			res.Merged++
		} else {
			res.Created++
		}
		if flagged {
			res.FlaggedReview++
		}
		idByCanonical[canonical] = concept.ID
		syncConcepts = append(syncConcepts, concept)

		if len(in.Mentions) > 0 {
			links := make([]*types.ChunkConcept, 0, len(in.Mentions))
			for _, m := range in.Mentions {
				links = append(links, &types.ChunkConcept{
					ChunkID:        m.ChunkID,
					ConceptID:      concept.ID,
					MentionType:    m.MentionType,
					RelevanceScore: m.RelevanceScore,
				})
			}
			n, err := p.chunkConcepts.CreateIgnoreDuplicates(dbc, links)
			if err != nil {
				return nil, nil, nil, err
			}
			res.MentionsAdded += n
		}
	}

	edges, syncRels, err := p.resolveRelationships(dbc, rels, idByCanonical)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(edges) > 0 {
		n, err := p.relationships.CreateIgnoreDuplicates(dbc, edges)
		if err != nil {
			return nil, nil, nil, err
		}
		res.EdgesAdded = n
	}

	return res, syncConcepts, syncRels, nil
}

// upsertConcept creates or merges one deduplicated concept. Returns
// merged=true when an existing row absorbed the input, and
// flagged=true when an embedding-only near-duplicate was marked for
// review.
func (p *pipeline) upsertConcept(dbc dbctx.Context, canonical string, in *ConceptInput) (*types.Concept, bool, bool, error) {
	existing, err := p.concepts.GetByCanonicalName(dbc, canonical)
	if err != nil {
		return nil, false, false, err
	}

	embedding := in.Embedding
	if len(embedding) == 0 && p.embedder != nil {
		text := in.Name
		if in.Definition != nil {
			text = in.Name + ": " + *in.Definition
		}
		embedding, err = p.embedder.EmbedText(dbc.Ctx, text)
		if err != nil {
			return nil, false, false, kberr.NewStorage("embed", "concept", err)
		}
	}

	if existing != nil {
		incoming := &types.Concept{
			Name:            in.Name,
			CanonicalName:   canonical,
			Aliases:         datatypes.NewJSONSlice(in.Aliases),
			Definition:      in.Definition,
			ConfidenceScore: in.Confidence,
		}
		dedup.Merge(existing, incoming)
		if existing.Embedding == nil {
			existing.Embedding = vectorOrNil(embedding)
		}
		if err := p.concepts.Update(dbc, existing); err != nil {
			return nil, false, false, err
		}
		return existing, true, false, nil
	}

	row := &types.Concept{
		Name:             in.Name,
		CanonicalName:    canonical,
		Aliases:          datatypes.NewJSONSlice(dedupAliases(in.Name, in.Aliases)),
		ConceptType:      in.ConceptType,
		Category:         in.Category,
		Definition:       in.Definition,
		Embedding:        vectorOrNil(embedding),
		ExtractionMethod: in.ExtractionMethod,
		ConfidenceScore:  in.Confidence,
		Metadata:         datatypes.JSONMap{},
	}

	// An embedding-only near match is a review signal, never a merge:
	// distinct estimands can sit closer in embedding space than the
	// review threshold.
	flagged := false
	if len(embedding) == types.EmbeddingDim {
		similar, err := p.concepts.FindSimilar(dbc, embedding, 1, dedup.EmbeddingReviewThreshold)
		if err != nil {
			return nil, false, false, err
		}
		if len(similar) > 0 && !dedup.AreDuplicates(similar[0].Concept.Name, in.Name) {
			row.Metadata["needs_review"] = true
			row.Metadata["review_similar_to"] = similar[0].Concept.CanonicalName
			flagged = true
		}
	}

	created, err := p.concepts.Create(dbc, row)
	if err != nil {
		return nil, false, false, err
	}
	return created, false, flagged, nil
}

// resolveRelationships maps name-addressed edges to ids, looking up
// concepts from earlier batches when the name is not in this one.
// Edges that collapse to self-loops after deduplication are skipped.
func (p *pipeline) resolveRelationships(dbc dbctx.Context, rels []RelationshipInput, idByCanonical map[string]uuid.UUID) ([]*types.ConceptRelationship, []*types.ConceptRelationship, error) {
	var edges []*types.ConceptRelationship
	for i, in := range rels {
		srcID, err := p.resolveConceptID(dbc, in.SourceName, idByCanonical)
		if err != nil {
			return nil, nil, err
		}
		tgtID, err := p.resolveConceptID(dbc, in.TargetName, idByCanonical)
		if err != nil {
			return nil, nil, err
		}
		if srcID == uuid.Nil || tgtID == uuid.Nil {
			p.log.Warn("relationship references unknown concept, skipping",
				"index", i, "source", in.SourceName, "target", in.TargetName)
			continue
		}
		if srcID == tgtID {
			p.log.Warn("relationship collapsed to self-loop after dedup, skipping",
				"source", in.SourceName, "target", in.TargetName)
			continue
		}
		strength := in.Strength
		if strength <= 0 {
			strength = 1
		}
		edges = append(edges, &types.ConceptRelationship{
			SourceConceptID:  srcID,
			TargetConceptID:  tgtID,
			RelationshipType: in.RelationshipType,
			IsDirected:       in.IsDirected,
			Strength:         strength,
			ConfidenceScore:  in.Confidence,
			EvidenceChunkIDs: datatypes.NewJSONSlice(in.EvidenceChunkIDs),
		})
	}
	return edges, edges, nil
}

func (p *pipeline) resolveConceptID(dbc dbctx.Context, name string, idByCanonical map[string]uuid.UUID) (uuid.UUID, error) {
	canonical := dedup.CanonicalName(name)
	if id, ok := idByCanonical[canonical]; ok {
		return id, nil
	}
	concept, err := p.concepts.GetByCanonicalName(dbc, canonical)
	if err != nil {
		return uuid.Nil, err
	}
	if concept == nil {
		return uuid.Nil, nil
	}
	idByCanonical[canonical] = concept.ID
	return concept.ID, nil
}

// mergeInputs folds b into a for in-batch duplicates.
func mergeInputs(a, b *ConceptInput) {
	seen := map[string]bool{a.Name: true}
	for _, al := range a.Aliases {
		seen[al] = true
	}
	for _, al := range append(b.Aliases, b.Name) {
		if !seen[al] {
			seen[al] = true
			a.Aliases = append(a.Aliases, al)
		}
	}
	if b.Definition != nil && (a.Definition == nil || len(*b.Definition) > len(*a.Definition)) {
		a.Definition = b.Definition
	}
	if b.Confidence != nil && (a.Confidence == nil || *b.Confidence > *a.Confidence) {
		a.Confidence = b.Confidence
	}
	a.Mentions = append(a.Mentions, b.Mentions...)
}

func vectorOrNil(embedding []float32) *pgvector.Vector {
	if len(embedding) == 0 {
		return nil
	}
	v := pgvector.NewVector(embedding)
	return &v
}

func dedupAliases(name string, aliases []string) []string {
	seen := map[string]bool{name: true}
	out := make([]string, 0, len(aliases))
	for _, a := range aliases {
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
