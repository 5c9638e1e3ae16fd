package knowledge

import (
	"context"
	"testing"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"

	"github.com/yungbote/research-kb/internal/data/repos/testutil"
	types "github.com/yungbote/research-kb/internal/domain"
	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
)

func vectorOf(vals []float32) pgvector.Vector { return pgvector.NewVector(vals) }

func TestConceptCanonicalNameIsUnique(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewConceptRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	testutil.SeedConcept(t, dbc.Ctx, tx, "instrumental variables")
	_, err := repo.Create(dbc, &types.Concept{
		Name:          "IV",
		CanonicalName: "instrumental variables",
		ConceptType:   types.ConceptMethod,
	})
	if !kberr.IsDuplicate(err) {
		t.Errorf("duplicate canonical_name: err = %v, want duplicate", err)
	}
}

func TestConceptBatchCreateIgnoreDuplicates(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewConceptRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	testutil.SeedConcept(t, dbc.Ctx, tx, "propensity score matching")
	rows := []*types.Concept{
		{Name: "PSM", CanonicalName: "propensity score matching", ConceptType: types.ConceptMethod},
		{Name: "regression discontinuity", CanonicalName: "regression discontinuity", ConceptType: types.ConceptMethod},
	}
	inserted, err := repo.BatchCreateIgnoreDuplicates(dbc, rows)
	if err != nil {
		t.Fatalf("batch create: %v", err)
	}
	if inserted != 1 {
		t.Errorf("inserted = %d, want 1 (existing canonical name skipped)", inserted)
	}
}

func TestConceptGetByAlias(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewConceptRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	seeded := testutil.SeedConcept(t, dbc.Ctx, tx, "difference in differences")
	if err := tx.Model(&types.Concept{}).Where("id = ?", seeded.ID).
		Update("aliases", datatypes.NewJSONSlice([]string{"DiD", "diff-in-diff"})).Error; err != nil {
		t.Fatalf("set aliases: %v", err)
	}

	got, err := repo.GetByAlias(dbc, "DiD")
	if err != nil {
		t.Fatalf("get by alias: %v", err)
	}
	if got == nil || got.ID != seeded.ID {
		t.Errorf("alias lookup returned %v, want concept %s", got, seeded.ID)
	}

	missing, err := repo.GetByAlias(dbc, "no such alias")
	if err != nil {
		t.Fatalf("get missing alias: %v", err)
	}
	if missing != nil {
		t.Errorf("unknown alias returned %v, want nil", missing)
	}
}

func TestConceptFindSimilarOrdersAndThresholds(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewConceptRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	near := testutil.SeedConcept(t, dbc.Ctx, tx, "average treatment effect")
	far := testutil.SeedConcept(t, dbc.Ctx, tx, "directed acyclic graph")

	query := make([]float32, types.EmbeddingDim)
	query[0] = 1

	nearEmb := make([]float32, types.EmbeddingDim)
	nearEmb[0], nearEmb[1] = 1, 0.1
	farEmb := make([]float32, types.EmbeddingDim)
	farEmb[0], farEmb[2] = -1, 1

	if err := tx.Exec(`UPDATE concepts SET embedding = ? WHERE id = ?`,
		vectorOf(nearEmb), near.ID).Error; err != nil {
		t.Fatalf("set near embedding: %v", err)
	}
	if err := tx.Exec(`UPDATE concepts SET embedding = ? WHERE id = ?`,
		vectorOf(farEmb), far.ID).Error; err != nil {
		t.Fatalf("set far embedding: %v", err)
	}

	got, err := repo.FindSimilar(dbc, query, 10, 0.9)
	if err != nil {
		t.Fatalf("find similar: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("matched %d concepts above threshold, want 1", len(got))
	}
	if got[0].Concept.ID != near.ID {
		t.Errorf("best match = %s, want %s", got[0].Concept.ID, near.ID)
	}
	if got[0].Similarity < 0.9 || got[0].Similarity > 1 {
		t.Errorf("similarity = %v, want within [0.9, 1]", got[0].Similarity)
	}
}

func TestConceptSearchFuzzy(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewConceptRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	seeded := testutil.SeedConcept(t, dbc.Ctx, tx, "unconfoundedness")
	got, err := repo.SearchFuzzy(dbc, "unconfoundednes", 10)
	if err != nil {
		t.Fatalf("fuzzy search: %v", err)
	}
	found := false
	for _, c := range got {
		if c.ID == seeded.ID {
			found = true
		}
	}
	if !found {
		t.Error("near-miss spelling did not match by trigram similarity")
	}
}

func TestConceptDeleteCascades(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewConceptRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	a := testutil.SeedConcept(t, dbc.Ctx, tx, "matching estimator")
	b := testutil.SeedConcept(t, dbc.Ctx, tx, "overlap assumption")
	testutil.SeedRelationship(t, dbc.Ctx, tx, a.ID, b.ID, types.RelRequires)

	src := testutil.SeedSource(t, dbc.Ctx, tx, "Matching Methods Review")
	chunk := testutil.SeedChunk(t, dbc.Ctx, tx, src.ID, "on matching")
	testutil.SeedChunkConcept(t, dbc.Ctx, tx, chunk.ID, a.ID)

	ok, err := repo.Delete(dbc, a.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !ok {
		t.Fatal("delete reported no rows")
	}

	var rels, links int64
	if err := tx.Model(&types.ConceptRelationship{}).
		Where("source_concept_id = ? OR target_concept_id = ?", a.ID, a.ID).
		Count(&rels).Error; err != nil {
		t.Fatalf("count relationships: %v", err)
	}
	if err := tx.Model(&types.ChunkConcept{}).
		Where("concept_id = ?", a.ID).
		Count(&links).Error; err != nil {
		t.Fatalf("count chunk links: %v", err)
	}
	if rels != 0 || links != 0 {
		t.Errorf("cascade left %d relationships and %d chunk links", rels, links)
	}
}
