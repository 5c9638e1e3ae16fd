package content

import (
	"context"
	"testing"

	"gorm.io/datatypes"

	"github.com/yungbote/research-kb/internal/data/repos/testutil"
	types "github.com/yungbote/research-kb/internal/domain"
	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
)

func TestSourceGetOrCreateByFileHashIsIdempotent(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewSourceRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	row := &types.Source{
		SourceType: types.SourcePaper,
		Title:      "Identification and Estimation of Local Average Treatment Effects",
		Authors:    datatypes.NewJSONSlice([]string{"Imbens, G.", "Angrist, J."}),
		FileHash:   "late-1994",
		Metadata:   datatypes.JSONMap{"year": 1994},
	}
	first, created, err := repo.GetOrCreateByFileHash(dbc, row)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if !created {
		t.Error("first ingest should create")
	}

	again := &types.Source{
		SourceType: types.SourcePaper,
		Title:      "different title, same pdf",
		FileHash:   "late-1994",
	}
	second, created, err := repo.GetOrCreateByFileHash(dbc, again)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if created {
		t.Error("second ingest should not create")
	}
	if second.ID != first.ID {
		t.Errorf("second ingest returned %s, want existing %s", second.ID, first.ID)
	}
	if second.Title != first.Title {
		t.Error("existing row must win over re-submitted fields")
	}
}

func TestSourceCreateDuplicateFileHash(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewSourceRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	seeded := testutil.SeedSource(t, dbc.Ctx, tx, "Mostly Harmless Econometrics")
	_, err := repo.Create(dbc, &types.Source{
		SourceType: types.SourceTextbook,
		Title:      "Mostly Harmless Econometrics, again",
		FileHash:   seeded.FileHash,
	})
	if !kberr.IsDuplicate(err) {
		t.Errorf("duplicate file_hash: err = %v, want duplicate", err)
	}
}

func TestSourceCreateValidation(t *testing.T) {
	gdb := testutil.DB(t)
	repo := NewSourceRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: testutil.Tx(t, gdb)}

	cases := []struct {
		name string
		row  *types.Source
	}{
		{"nil row", nil},
		{"bad source type", &types.Source{SourceType: "magazine", Title: "x", FileHash: "h"}},
		{"missing title", &types.Source{SourceType: types.SourcePaper, FileHash: "h"}},
		{"missing file hash", &types.Source{SourceType: types.SourcePaper, Title: "x"}},
	}
	for _, tc := range cases {
		if _, err := repo.Create(dbc, tc.row); !kberr.IsValidation(err) {
			t.Errorf("%s: err = %v, want validation", tc.name, err)
		}
	}
}

func TestSourceUpdateMetadataMerges(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewSourceRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	src := testutil.SeedSource(t, dbc.Ctx, tx, "Causal Inference: The Mixtape")
	if _, err := repo.UpdateMetadata(dbc, src.ID, map[string]interface{}{"doi": "10.1000/mixtape"}); err != nil {
		t.Fatalf("first update: %v", err)
	}
	updated, err := repo.UpdateMetadata(dbc, src.ID, map[string]interface{}{"year": 2021})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if updated.Metadata["doi"] != "10.1000/mixtape" {
		t.Errorf("merge dropped earlier key: %v", updated.Metadata)
	}
	if _, ok := updated.Metadata["year"]; !ok {
		t.Errorf("merge missing new key: %v", updated.Metadata)
	}
}

func TestSourceUpdateCitationAuthorityBounds(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewSourceRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	src := testutil.SeedSource(t, dbc.Ctx, tx, "Elements of Causal Inference")
	if err := repo.UpdateCitationAuthority(dbc, src.ID, 1.5); !kberr.IsValidation(err) {
		t.Errorf("out-of-range score: err = %v, want validation", err)
	}
	if err := repo.UpdateCitationAuthority(dbc, src.ID, 0.42); err != nil {
		t.Fatalf("valid score: %v", err)
	}
	got, err := repo.GetByID(dbc, src.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CitationAuthority != 0.42 {
		t.Errorf("citation_authority = %v, want 0.42", got.CitationAuthority)
	}
}

func TestSourceDeleteCascadesToChunks(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewSourceRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	src := testutil.SeedSource(t, dbc.Ctx, tx, "Counterfactuals and Causal Inference")
	chunk := testutil.SeedChunk(t, dbc.Ctx, tx, src.ID, "potential outcomes framework")

	ok, err := repo.Delete(dbc, src.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !ok {
		t.Fatal("delete reported no rows")
	}

	var n int64
	if err := tx.Model(&types.Chunk{}).Where("id = ?", chunk.ID).Count(&n).Error; err != nil {
		t.Fatalf("count chunks: %v", err)
	}
	if n != 0 {
		t.Errorf("chunk survived source delete")
	}

	ok, err = repo.Delete(dbc, src.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if ok {
		t.Error("second delete should report not found")
	}
}

func TestSourceListFiltersByType(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	repo := NewSourceRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	paper := testutil.SeedSource(t, dbc.Ctx, tx, "A paper")
	book := testutil.SeedSource(t, dbc.Ctx, tx, "A textbook")
	if err := tx.Model(&types.Source{}).Where("id = ?", book.ID).
		Update("source_type", types.SourceTextbook).Error; err != nil {
		t.Fatalf("retype: %v", err)
	}

	st := types.SourceTextbook
	got, err := repo.List(dbc, &st, 100, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, s := range got {
		if s.SourceType != types.SourceTextbook {
			t.Errorf("filter leaked source %s of type %s", s.ID, s.SourceType)
		}
		if s.ID == paper.ID {
			t.Error("paper appeared in textbook listing")
		}
	}
}
