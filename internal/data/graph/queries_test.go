package graph

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/research-kb/internal/data/repos/testutil"
	types "github.com/yungbote/research-kb/internal/domain"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
)

// seedMethodGraph builds a small causal-inference graph:
//
//	iv -REQUIRES-> exclusion
//	iv -ADDRESSES-> confounding
//	rct -ADDRESSES-> confounding
//	exclusion -- (undirected) -- validity
func seedMethodGraph(t *testing.T, ctx context.Context, tx *gorm.DB) map[string]uuid.UUID {
	t.Helper()
	iv := testutil.SeedConcept(t, ctx, tx, "instrumental variables")
	exclusion := testutil.SeedConcept(t, ctx, tx, "exclusion restriction")
	confounding := testutil.SeedConcept(t, ctx, tx, "unobserved confounding")
	rct := testutil.SeedConcept(t, ctx, tx, "randomized controlled trial")
	validity := testutil.SeedConcept(t, ctx, tx, "instrument validity")

	testutil.SeedRelationship(t, ctx, tx, iv.ID, exclusion.ID, types.RelRequires)
	testutil.SeedRelationship(t, ctx, tx, iv.ID, confounding.ID, types.RelAddresses)
	testutil.SeedRelationship(t, ctx, tx, rct.ID, confounding.ID, types.RelAddresses)

	undirected := testutil.SeedRelationship(t, ctx, tx, exclusion.ID, validity.ID, types.RelUses)
	if err := tx.Model(&types.ConceptRelationship{}).
		Where("id = ?", undirected.ID).
		Update("is_directed", false).Error; err != nil {
		t.Fatalf("mark undirected: %v", err)
	}

	return map[string]uuid.UUID{
		"iv":          iv.ID,
		"exclusion":   exclusion.ID,
		"confounding": confounding.ID,
		"rct":         rct.ID,
		"validity":    validity.ID,
	}
}

func TestShortestPathFollowsDirectedEdges(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	svc := NewGraphService(gdb, nil, DecayInverse, 0, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	ids := seedMethodGraph(t, dbc.Ctx, tx)

	path, err := svc.ShortestPath(dbc, ids["iv"], ids["confounding"], 5)
	if err != nil {
		t.Fatalf("shortest path: %v", err)
	}
	if path == nil {
		t.Fatal("no path found")
	}
	if path.Length != 1 {
		t.Errorf("path length = %d, want 1", path.Length)
	}
	if len(path.Hops) != 2 {
		t.Fatalf("hops = %d, want 2", len(path.Hops))
	}
	if path.Hops[0].Relationship != nil {
		t.Error("first hop must carry no relationship")
	}
	if path.Hops[1].Relationship == nil ||
		path.Hops[1].Relationship.RelationshipType != types.RelAddresses {
		t.Errorf("second hop relationship = %+v, want ADDRESSES", path.Hops[1].Relationship)
	}
}

func TestShortestPathRespectsDirection(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	svc := NewGraphService(gdb, nil, DecayInverse, 0, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	ids := seedMethodGraph(t, dbc.Ctx, tx)

	// ADDRESSES is directed, so walking backward from the target fails.
	path, err := svc.ShortestPath(dbc, ids["confounding"], ids["iv"], 5)
	if err != nil {
		t.Fatalf("shortest path: %v", err)
	}
	if path != nil {
		t.Errorf("directed edge traversed backward: %+v", path)
	}
}

func TestShortestPathTraversesUndirectedBothWays(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	svc := NewGraphService(gdb, nil, DecayInverse, 0, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	ids := seedMethodGraph(t, dbc.Ctx, tx)

	length, err := svc.ShortestPathLength(dbc, ids["validity"], ids["exclusion"], 5)
	if err != nil {
		t.Fatalf("path length: %v", err)
	}
	if length != 1 {
		t.Errorf("reverse over undirected edge = %d, want 1", length)
	}
}

func TestShortestPathLengthUnreachableAndIdentity(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	svc := NewGraphService(gdb, nil, DecayInverse, 0, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	ids := seedMethodGraph(t, dbc.Ctx, tx)
	island := testutil.SeedConcept(t, dbc.Ctx, tx, "regression kink design")

	length, err := svc.ShortestPathLength(dbc, ids["iv"], island.ID, 5)
	if err != nil {
		t.Fatalf("path length: %v", err)
	}
	if length != -1 {
		t.Errorf("unreachable pair = %d, want -1", length)
	}

	length, err = svc.ShortestPathLength(dbc, ids["iv"], ids["iv"], 5)
	if err != nil {
		t.Fatalf("identity path length: %v", err)
	}
	if length != 0 {
		t.Errorf("identity pair = %d, want 0", length)
	}
}

func TestShortestPathHonorsMaxHops(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	svc := NewGraphService(gdb, nil, DecayInverse, 0, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	ids := seedMethodGraph(t, dbc.Ctx, tx)

	// iv -> exclusion -> validity is 2 hops; a 1-hop budget fails.
	length, err := svc.ShortestPathLength(dbc, ids["iv"], ids["validity"], 1)
	if err != nil {
		t.Fatalf("path length: %v", err)
	}
	if length != -1 {
		t.Errorf("2-hop target within 1-hop budget = %d, want -1", length)
	}
}

func TestNeighborhoodExcludesCenterAndDedups(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	svc := NewGraphService(gdb, nil, DecayInverse, 0, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	ids := seedMethodGraph(t, dbc.Ctx, tx)

	neighbors, err := svc.Neighborhood(dbc, ids["iv"], 2, nil)
	if err != nil {
		t.Fatalf("neighborhood: %v", err)
	}
	byID := map[uuid.UUID]int{}
	for _, n := range neighbors {
		if n.Concept.ID == ids["iv"] {
			t.Error("center appeared in its own neighborhood")
		}
		if _, dup := byID[n.Concept.ID]; dup {
			t.Errorf("concept %s listed twice", n.Concept.CanonicalName)
		}
		byID[n.Concept.ID] = n.Distance
	}
	if d, ok := byID[ids["exclusion"]]; !ok || d != 1 {
		t.Errorf("exclusion distance = %d (found=%v), want 1", d, ok)
	}
	if d, ok := byID[ids["validity"]]; !ok || d != 2 {
		t.Errorf("validity distance = %d (found=%v), want 2", d, ok)
	}
}

func TestNeighborhoodReportsWalkToEachNeighbor(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	svc := NewGraphService(gdb, nil, DecayInverse, 0, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	ids := seedMethodGraph(t, dbc.Ctx, tx)

	neighbors, err := svc.Neighborhood(dbc, ids["iv"], 2, nil)
	if err != nil {
		t.Fatalf("neighborhood: %v", err)
	}
	paths := map[uuid.UUID][]uuid.UUID{}
	for _, n := range neighbors {
		paths[n.Concept.ID] = n.PathIDs
	}

	// Direct neighbor: center then the neighbor itself.
	if got := paths[ids["exclusion"]]; len(got) != 2 ||
		got[0] != ids["iv"] || got[1] != ids["exclusion"] {
		t.Errorf("exclusion path = %v, want [iv exclusion]", got)
	}
	// Two-hop neighbor: the walk passes through the intermediate node.
	if got := paths[ids["validity"]]; len(got) != 3 ||
		got[0] != ids["iv"] || got[1] != ids["exclusion"] || got[2] != ids["validity"] {
		t.Errorf("validity path = %v, want [iv exclusion validity]", got)
	}
}

func TestNeighborhoodClampsHops(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	svc := NewGraphService(gdb, nil, DecayInverse, 0, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	ids := seedMethodGraph(t, dbc.Ctx, tx)

	// hops <= 0 clamps to 1: only direct neighbors.
	neighbors, err := svc.Neighborhood(dbc, ids["iv"], 0, nil)
	if err != nil {
		t.Fatalf("neighborhood: %v", err)
	}
	for _, n := range neighbors {
		if n.Distance != 1 {
			t.Errorf("clamped neighborhood returned distance %d", n.Distance)
		}
	}
}

func TestConfiguredMaxHopsBoundsDefaultTraversal(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	svc := NewGraphService(gdb, nil, DecayInverse, 1, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	ids := seedMethodGraph(t, dbc.Ctx, tx)

	// maxHops <= 0 falls back to the service default of 1, which cannot
	// reach the 2-hop validity node.
	length, err := svc.ShortestPathLength(dbc, ids["iv"], ids["validity"], 0)
	if err != nil {
		t.Fatalf("path length: %v", err)
	}
	if length != -1 {
		t.Errorf("2-hop target under default 1-hop budget = %d, want -1", length)
	}

	// An explicit budget still overrides the configured default.
	length, err = svc.ShortestPathLength(dbc, ids["iv"], ids["validity"], 2)
	if err != nil {
		t.Fatalf("path length: %v", err)
	}
	if length != 2 {
		t.Errorf("explicit 2-hop budget = %d, want 2", length)
	}
}

func TestGraphScoreBoundsAndEmptySets(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	svc := NewGraphService(gdb, nil, DecayInverse, 0, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	ids := seedMethodGraph(t, dbc.Ctx, tx)

	score, err := svc.GraphScore(dbc, nil, []uuid.UUID{ids["iv"]}, 5)
	if err != nil {
		t.Fatalf("empty query set: %v", err)
	}
	if score != 0 {
		t.Errorf("empty set score = %v, want 0", score)
	}

	score, err = svc.GraphScore(dbc, []uuid.UUID{ids["iv"]}, []uuid.UUID{ids["iv"]}, 5)
	if err != nil {
		t.Fatalf("identical sets: %v", err)
	}
	if score != 1 {
		t.Errorf("identical single concept score = %v, want 1", score)
	}

	score, err = svc.GraphScore(dbc,
		[]uuid.UUID{ids["iv"]},
		[]uuid.UUID{ids["confounding"], ids["rct"]}, 5)
	if err != nil {
		t.Fatalf("graph score: %v", err)
	}
	if score <= 0 || score > 1 {
		t.Errorf("score = %v, want within (0,1]", score)
	}
	// Pairs: iv->confounding length 1 (1/2), iv->rct unreachable (0).
	want := 0.25
	if diff := score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score = %v, want %v", score, want)
	}
}

func TestDecayCurves(t *testing.T) {
	base := &graphService{decay: DecayInverse}
	if got := base.decayValue(1, 5); got != 0.5 {
		t.Errorf("inverse decay(1) = %v, want 0.5", got)
	}
	lin := &graphService{decay: DecayLinear}
	if got := lin.decayValue(6, 5); got != 0 {
		t.Errorf("linear decay beyond budget = %v, want 0", got)
	}
	exp := &graphService{decay: DecayExponential}
	if got := exp.decayValue(2, 5); got != 0.25 {
		t.Errorf("exponential decay(2) = %v, want 0.25", got)
	}
}
