package search

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	kberr "github.com/yungbote/research-kb/internal/pkg/errors"

	types "github.com/yungbote/research-kb/internal/domain"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestNormalizeThreeWay(t *testing.T) {
	w, err := Weights{FTS: 0.3, Vector: 0.6, Graph: 0.1}.Normalize(true)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !almostEqual(w.FTS+w.Vector+w.Graph, 1.0) {
		t.Errorf("weights sum = %v, want 1", w.FTS+w.Vector+w.Graph)
	}
	if !almostEqual(w.FTS, 0.3) || !almostEqual(w.Vector, 0.6) || !almostEqual(w.Graph, 0.1) {
		t.Errorf("already-normalized weights changed: %+v", w)
	}
}

func TestNormalizeDropsGraphWeight(t *testing.T) {
	w, err := Weights{FTS: 0.3, Vector: 0.6, Graph: 0.1}.Normalize(false)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if w.Graph != 0 {
		t.Errorf("graph weight = %v, want 0", w.Graph)
	}
	if !almostEqual(w.FTS+w.Vector, 1.0) {
		t.Errorf("two-way weights sum = %v, want 1", w.FTS+w.Vector)
	}
	if !almostEqual(w.FTS/w.Vector, 0.5) {
		t.Errorf("fts:vector ratio changed: %+v", w)
	}
}

func TestNormalizeRejectsBadWeights(t *testing.T) {
	if _, err := (Weights{FTS: -1, Vector: 1}).Normalize(true); !kberr.IsValidation(err) {
		t.Errorf("negative weight: err = %v, want validation", err)
	}
	if _, err := (Weights{}).Normalize(true); !kberr.IsValidation(err) {
		t.Errorf("zero weights: err = %v, want validation", err)
	}
	if _, err := (Weights{Graph: 1}).Normalize(false); !kberr.IsValidation(err) {
		t.Errorf("graph-only weights without graph: err = %v, want validation", err)
	}
}

func TestPresetWeights(t *testing.T) {
	b := PresetWeights(PresetBuilding)
	if b.Vector <= b.FTS {
		t.Errorf("building preset should favor vector: %+v", b)
	}
	a := PresetWeights(PresetAuditing)
	if !almostEqual(a.FTS, a.Vector) {
		t.Errorf("auditing preset should weight fts and vector equally: %+v", a)
	}
	if got := PresetWeights("nonsense"); got != PresetWeights(PresetBalanced) {
		t.Errorf("unknown preset should fall back to balanced, got %+v", got)
	}
}

func TestLoadPresetsOverridesAndAdds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.yaml")
	content := []byte("building: {fts: 0.5, vector: 0.4, graph: 0.1}\nteaching: {fts: 0.6, vector: 0.3, graph: 0.1}\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write presets: %v", err)
	}

	presets, err := LoadPresets(path)
	if err != nil {
		t.Fatalf("load presets: %v", err)
	}
	if got := presets[PresetBuilding]; !almostEqual(got.FTS, 0.5) {
		t.Errorf("building override not applied: %+v", got)
	}
	if got := presets[Preset("teaching")]; !almostEqual(got.FTS, 0.6) {
		t.Errorf("new preset not loaded: %+v", got)
	}
	if got := presets[PresetAuditing]; !almostEqual(got.FTS, 0.45) {
		t.Errorf("untouched preset changed: %+v", got)
	}
}

func TestQueryValidate(t *testing.T) {
	if err := (&Query{}).Validate(); !kberr.IsValidation(err) {
		t.Errorf("empty query: err = %v, want validation", err)
	}
	if err := (&Query{Embedding: make([]float32, 10)}).Validate(); !kberr.IsValidation(err) {
		t.Errorf("wrong dim: err = %v, want validation", err)
	}
	bad := types.SourceType("magazine")
	if err := (&Query{Text: "iv", SourceType: &bad}).Validate(); !kberr.IsValidation(err) {
		t.Errorf("bad source type: err = %v, want validation", err)
	}
	ok := &Query{Text: "instrumental variables"}
	if err := ok.Validate(); err != nil {
		t.Errorf("text-only query should validate: %v", err)
	}
	if err := (&Query{Embedding: make([]float32, types.EmbeddingDim)}).Validate(); err != nil {
		t.Errorf("embedding-only query should validate: %v", err)
	}
}

func TestEffectiveLimit(t *testing.T) {
	if got := (&Query{}).effectiveLimit(); got != DefaultLimit {
		t.Errorf("default limit = %d, want %d", got, DefaultLimit)
	}
	if got := (&Query{Limit: 5000}).effectiveLimit(); got != maxLimit {
		t.Errorf("oversized limit = %d, want %d", got, maxLimit)
	}
	if got := (&Query{Limit: 7}).effectiveLimit(); got != 7 {
		t.Errorf("explicit limit = %d, want 7", got)
	}
}

func TestMatchesQueryWordBoundaries(t *testing.T) {
	// Short names must not match inside other words.
	if matchesQuery("the given estimator", "iv") {
		t.Error("iv matched inside 'given'")
	}
	if !matchesQuery("when is iv valid", "iv") {
		t.Error("iv should match as a standalone word")
	}
	if !matchesQuery("does instrumental variables estimation work", "instrumental variables") {
		t.Error("long names should match as substrings")
	}
}

func TestFinalizeDeterministicTiebreak(t *testing.T) {
	mk := func(id byte, score float64) Result {
		r := Result{CombinedScore: score}
		c := types.Chunk{}
		c.ID[15] = id
		r.Chunk = &c
		return r
	}
	results := finalize([]Result{mk(3, 0.5), mk(1, 0.5), mk(2, 0.9)}, 2)
	if len(results) != 2 {
		t.Fatalf("len = %d, want 2", len(results))
	}
	if results[0].Chunk.ID[15] != 2 || results[0].Rank != 1 {
		t.Errorf("highest score should rank first: %+v", results[0])
	}
	if results[1].Chunk.ID[15] != 1 || results[1].Rank != 2 {
		t.Errorf("score tie should break by chunk id: got id byte %d", results[1].Chunk.ID[15])
	}
}
