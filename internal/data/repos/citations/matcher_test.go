package citations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/research-kb/internal/data/repos/testutil"
	types "github.com/yungbote/research-kb/internal/domain"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
)

func strp(s string) *string { return &s }
func intp(n int) *int       { return &n }

func setSourceMeta(t *testing.T, tx *gorm.DB, id interface{}, meta datatypes.JSONMap) {
	t.Helper()
	if err := tx.Model(&types.Source{}).Where("id = ?", id).
		Update("metadata", meta).Error; err != nil {
		t.Fatalf("set metadata: %v", err)
	}
}

func TestMatchCitationByDOI(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	m := NewMatcher(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	src := testutil.SeedSource(t, dbc.Ctx, tx, "Causal Diagrams for Empirical Research")
	setSourceMeta(t, tx, src.ID, datatypes.JSONMap{"doi": "10.1093/biomet/82.4.669"})

	match, err := m.MatchCitation(dbc, &types.Citation{
		SourceID:  src.ID,
		DOI:       strp("10.1093/BIOMET/82.4.669"),
		Title:     strp("a completely different title"),
		RawString: "Pearl (1995)",
	})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if match == nil {
		t.Fatal("no match")
	}
	if match.SourceID != src.ID || match.Method != MatchByDOI {
		t.Errorf("match = %+v, want DOI match to %s", match, src.ID)
	}
}

func TestMatchCitationByArxivAfterDOIMiss(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	m := NewMatcher(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	src := testutil.SeedSource(t, dbc.Ctx, tx, "Double Machine Learning")
	setSourceMeta(t, tx, src.ID, datatypes.JSONMap{"arxiv_id": "1608.00060"})

	match, err := m.MatchCitation(dbc, &types.Citation{
		SourceID:  src.ID,
		DOI:       strp("10.0000/nonexistent"),
		ArxivID:   strp("1608.00060"),
		RawString: "Chernozhukov et al.",
	})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if match == nil || match.Method != MatchByArxiv {
		t.Errorf("match = %+v, want arXiv fallback", match)
	}
}

func TestMatchCitationByFuzzyTitleWithYear(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	m := NewMatcher(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	src := testutil.SeedSource(t, dbc.Ctx, tx, "Identification and Estimation of Local Average Treatment Effects")
	if err := tx.Model(&types.Source{}).Where("id = ?", src.ID).
		Update("year", 1994).Error; err != nil {
		t.Fatalf("set year: %v", err)
	}

	match, err := m.MatchCitation(dbc, &types.Citation{
		SourceID:  src.ID,
		Title:     strp("Identification and estimation of local average treatment effects"),
		Year:      intp(1994),
		RawString: "Imbens and Angrist (1994)",
	})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if match == nil || match.Method != MatchByTitle {
		t.Errorf("match = %+v, want title match", match)
	}

	// Same title, wrong year: the year constraint must reject it.
	match, err = m.MatchCitation(dbc, &types.Citation{
		SourceID:  src.ID,
		Title:     strp("Identification and estimation of local average treatment effects"),
		Year:      intp(2001),
		RawString: "Imbens and Angrist (2001)",
	})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if match != nil {
		t.Errorf("year mismatch still matched: %+v", match)
	}
}

func TestMatchCitationNoMatch(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	m := NewMatcher(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	src := testutil.SeedSource(t, dbc.Ctx, tx, "Some Corpus Source")
	match, err := m.MatchCitation(dbc, &types.Citation{
		SourceID:  src.ID,
		Title:     strp("a work entirely outside the corpus"),
		RawString: "Unknown (1970)",
	})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if match != nil {
		t.Errorf("external citation matched: %+v", match)
	}
}

func TestCitationBatchCreateAndResolvedEdges(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	log := testutil.Logger(t)
	citRepo := NewCitationRepo(gdb, log)
	edgeRepo := NewSourceCitationRepo(gdb, log)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	citing := testutil.SeedSource(t, dbc.Ctx, tx, "A recent survey")
	cited := testutil.SeedSource(t, dbc.Ctx, tx, "A classic result")

	rows, err := citRepo.BatchCreate(dbc, []*types.Citation{
		{SourceID: citing.ID, Title: strp("A classic result"), RawString: "Classic (1986)"},
		{SourceID: citing.ID, Title: strp("Outside work"), RawString: "Outside (1999)"},
	})
	if err != nil {
		t.Fatalf("batch create citations: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("created %d citations, want 2", len(rows))
	}

	n, err := edgeRepo.CreateIgnoreDuplicates(dbc, []*types.SourceCitation{
		{CitingSourceID: citing.ID, CitedSourceID: &cited.ID, CitationID: rows[0].ID},
		{CitingSourceID: citing.ID, CitedSourceID: nil, CitationID: rows[1].ID},
	})
	if err != nil {
		t.Fatalf("create edges: %v", err)
	}
	if n != 2 {
		t.Errorf("edges inserted = %d, want 2", n)
	}

	edges, err := edgeRepo.ResolvedEdges(dbc)
	if err != nil {
		t.Fatalf("resolved edges: %v", err)
	}
	found := false
	for _, e := range edges {
		if e[0] == citing.ID && e[1] == cited.ID {
			found = true
		}
		if e[1] == uuid.Nil {
			t.Error("unresolved citation leaked into the edge list")
		}
	}
	if !found {
		t.Error("resolved edge missing")
	}
}

func TestAuthorityRecomputePersistsScores(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	log := testutil.Logger(t)
	citRepo := NewCitationRepo(gdb, log)
	edgeRepo := NewSourceCitationRepo(gdb, log)
	svc := NewAuthorityService(gdb, edgeRepo, log)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	citing := testutil.SeedSource(t, dbc.Ctx, tx, "Citing paper")
	cited := testutil.SeedSource(t, dbc.Ctx, tx, "Cited paper")
	rows, err := citRepo.BatchCreate(dbc, []*types.Citation{
		{SourceID: citing.ID, Title: strp("Cited paper"), RawString: "Cited (2000)"},
	})
	if err != nil {
		t.Fatalf("create citation: %v", err)
	}
	if _, err := edgeRepo.CreateIgnoreDuplicates(dbc, []*types.SourceCitation{
		{CitingSourceID: citing.ID, CitedSourceID: &cited.ID, CitationID: rows[0].ID},
	}); err != nil {
		t.Fatalf("create edge: %v", err)
	}

	scored, err := svc.Recompute(dbc)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if scored < 2 {
		t.Errorf("scored = %d sources, want at least 2", scored)
	}

	var citedRow, citingRow types.Source
	if err := tx.First(&citedRow, "id = ?", cited.ID).Error; err != nil {
		t.Fatalf("load cited: %v", err)
	}
	if err := tx.First(&citingRow, "id = ?", citing.ID).Error; err != nil {
		t.Fatalf("load citing: %v", err)
	}
	if citedRow.CitationAuthority != 1 {
		t.Errorf("cited authority = %v, want 1 (normalized maximum)", citedRow.CitationAuthority)
	}
	if citingRow.CitationAuthority >= citedRow.CitationAuthority {
		t.Errorf("citing authority %v not below cited %v",
			citingRow.CitationAuthority, citedRow.CitationAuthority)
	}
}
