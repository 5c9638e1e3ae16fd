package knowledge

import (
	"context"
	"testing"

	"github.com/yungbote/research-kb/internal/data/repos/testutil"
	types "github.com/yungbote/research-kb/internal/domain"
	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
)

func TestRelationshipRejectsSelfLoop(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewRelationshipRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	c := testutil.SeedConcept(t, dbc.Ctx, tx, "synthetic control method")
	_, err := repo.Create(dbc, &types.ConceptRelationship{
		SourceConceptID:  c.ID,
		TargetConceptID:  c.ID,
		RelationshipType: types.RelUses,
		IsDirected:       true,
		Strength:         1,
	})
	if !kberr.IsValidation(err) {
		t.Errorf("self-loop: err = %v, want validation", err)
	}
}

func TestRelationshipCreateIgnoreDuplicates(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewRelationshipRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	a := testutil.SeedConcept(t, dbc.Ctx, tx, "instrumental variables")
	b := testutil.SeedConcept(t, dbc.Ctx, tx, "exclusion restriction")
	testutil.SeedRelationship(t, dbc.Ctx, tx, a.ID, b.ID, types.RelRequires)

	inserted, err := repo.CreateIgnoreDuplicates(dbc, []*types.ConceptRelationship{
		{SourceConceptID: a.ID, TargetConceptID: b.ID, RelationshipType: types.RelRequires, IsDirected: true, Strength: 1},
		{SourceConceptID: a.ID, TargetConceptID: b.ID, RelationshipType: types.RelUses, IsDirected: true, Strength: 1},
	})
	if err != nil {
		t.Fatalf("create ignore duplicates: %v", err)
	}
	if inserted != 1 {
		t.Errorf("inserted = %d, want 1 (same triple skipped, new type added)", inserted)
	}

	n, err := repo.Count(dbc)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("total relationships = %d, want 2", n)
	}
}

func TestRelationshipValidatesStrength(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewRelationshipRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	a := testutil.SeedConcept(t, dbc.Ctx, tx, "fixed effects")
	b := testutil.SeedConcept(t, dbc.Ctx, tx, "panel data")
	_, err := repo.Create(dbc, &types.ConceptRelationship{
		SourceConceptID:  a.ID,
		TargetConceptID:  b.ID,
		RelationshipType: types.RelUses,
		Strength:         1.5,
	})
	if !kberr.IsValidation(err) {
		t.Errorf("strength out of range: err = %v, want validation", err)
	}
}

func TestRelationshipListTouching(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewRelationshipRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	hub := testutil.SeedConcept(t, dbc.Ctx, tx, "selection bias")
	in := testutil.SeedConcept(t, dbc.Ctx, tx, "randomized controlled trial")
	out := testutil.SeedConcept(t, dbc.Ctx, tx, "collider")
	testutil.SeedRelationship(t, dbc.Ctx, tx, in.ID, hub.ID, types.RelAddresses)
	testutil.SeedRelationship(t, dbc.Ctx, tx, hub.ID, out.ID, types.RelUses)

	touching, err := repo.ListTouching(dbc, hub.ID)
	if err != nil {
		t.Fatalf("list touching: %v", err)
	}
	if len(touching) != 2 {
		t.Errorf("touching = %d relationships, want 2 (both directions)", len(touching))
	}

	from, err := repo.ListFrom(dbc, hub.ID)
	if err != nil {
		t.Fatalf("list from: %v", err)
	}
	if len(from) != 1 || from[0].TargetConceptID != out.ID {
		t.Errorf("list from returned %v, want single edge toward collider", from)
	}
}
