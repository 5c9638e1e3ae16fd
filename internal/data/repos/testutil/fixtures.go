package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/research-kb/internal/domain"
)

// Embedding builds a unit-ish test vector whose first component
// carries the seed so different seeds are not collinear.
func Embedding(seed float32) *pgvector.Vector {
	vals := make([]float32, types.EmbeddingDim)
	vals[0] = seed
	vals[1] = 1
	v := pgvector.NewVector(vals)
	return &v
}

func SeedSource(tb testing.TB, ctx context.Context, tx *gorm.DB, title string) *types.Source {
	tb.Helper()
	s := &types.Source{
		ID:         uuid.New(),
		SourceType: types.SourcePaper,
		Title:      title,
		Authors:    datatypes.NewJSONSlice([]string{"Author, A."}),
		FileHash:   fmt.Sprintf("hash-%s", uuid.NewString()),
		Metadata:   datatypes.JSONMap{},
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed source: %v", err)
	}
	return s
}

func SeedChunk(tb testing.TB, ctx context.Context, tx *gorm.DB, sourceID uuid.UUID, content string) *types.Chunk {
	tb.Helper()
	c := &types.Chunk{
		ID:          uuid.New(),
		SourceID:    sourceID,
		Content:     content,
		ContentHash: fmt.Sprintf("chash-%s", uuid.NewString()),
		Embedding:   Embedding(0.5),
		Metadata:    datatypes.JSONMap{},
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed chunk: %v", err)
	}
	return c
}

func SeedConcept(tb testing.TB, ctx context.Context, tx *gorm.DB, canonicalName string) *types.Concept {
	tb.Helper()
	c := &types.Concept{
		ID:            uuid.New(),
		Name:          canonicalName,
		CanonicalName: canonicalName,
		ConceptType:   types.ConceptMethod,
		Aliases:       datatypes.NewJSONSlice([]string{}),
		Metadata:      datatypes.JSONMap{},
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed concept: %v", err)
	}
	return c
}

func SeedRelationship(tb testing.TB, ctx context.Context, tx *gorm.DB, sourceID, targetID uuid.UUID, relType types.RelationshipType) *types.ConceptRelationship {
	tb.Helper()
	r := &types.ConceptRelationship{
		ID:               uuid.New(),
		SourceConceptID:  sourceID,
		TargetConceptID:  targetID,
		RelationshipType: relType,
		IsDirected:       true,
		Strength:         1,
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed relationship: %v", err)
	}
	return r
}

func SeedChunkConcept(tb testing.TB, ctx context.Context, tx *gorm.DB, chunkID, conceptID uuid.UUID) *types.ChunkConcept {
	tb.Helper()
	cc := &types.ChunkConcept{
		ChunkID:     chunkID,
		ConceptID:   conceptID,
		MentionType: types.MentionReference,
	}
	if err := tx.WithContext(ctx).Create(cc).Error; err != nil {
		tb.Fatalf("seed chunk concept: %v", err)
	}
	return cc
}
