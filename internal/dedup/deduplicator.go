// Package dedup decides when two concept mentions name the same idea.
// All decisions are pure string and vector math; persistence of merge
// results belongs to the ingestion pipeline.
package dedup

import (
	"math"
	"regexp"
	"strings"

	"gorm.io/datatypes"

	types "github.com/yungbote/research-kb/internal/domain"
)

const (
	// NameSimilarityThreshold is the minimum word-level Jaccard
	// similarity for two names to count as the same concept.
	NameSimilarityThreshold = 0.85

	// EmbeddingReviewThreshold flags a pair for human review. Embedding
	// similarity alone never auto-merges: near-identical vectors can
	// belong to genuinely distinct concepts (ATT vs ATE).
	//
	// The ingest pipeline compares this against FindSimilar's
	// 1 - distance/2 similarity, where 0.95 corresponds to a raw
	// cosine of 0.9. That is the stricter reading: borderline pairs
	// get flagged rather than missed.
	EmbeddingReviewThreshold = 0.95
)

var (
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	specialChars  = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// CanonicalName projects a raw mention onto its canonical form. The
// projection is idempotent: CanonicalName(CanonicalName(s)) == CanonicalName(s).
func CanonicalName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = parenthetical.ReplaceAllString(s, " ")
	s = specialChars.ReplaceAllString(s, " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if expanded, ok := abbreviations[s]; ok {
		return expanded
	}
	return s
}

func tokenSet(canonical string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.FieldsFunc(canonical, func(r rune) bool {
		return r == ' ' || r == '-'
	}) {
		out[w] = true
	}
	return out
}

// Similarity is word-level Jaccard similarity between canonical forms.
// Hyphens split into words so "diff-in-diff" and "diff in diff" agree.
func Similarity(a, b string) float64 {
	wordsA := tokenSet(CanonicalName(a))
	wordsB := tokenSet(CanonicalName(b))
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}
	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

// AreDuplicates reports whether two names resolve to the same concept:
// identical canonical forms, or near-identical word sets.
func AreDuplicates(a, b string) bool {
	ca, cb := CanonicalName(a), CanonicalName(b)
	if ca == "" || cb == "" {
		return false
	}
	if ca == cb {
		return true
	}
	return Similarity(a, b) >= NameSimilarityThreshold
}

// CosineSimilarity returns the cosine of two embeddings, 0 for empty
// or mismatched inputs.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NeedsReview reports whether an embedding pair is suspiciously close
// without the names agreeing, the signal that marks a concept with
// metadata "needs_review" instead of merging.
func NeedsReview(nameA, nameB string, embA, embB []float32) bool {
	if AreDuplicates(nameA, nameB) {
		return false
	}
	return CosineSimilarity(embA, embB) > EmbeddingReviewThreshold
}

// Merge folds duplicate into primary in place. Aliases union, the
// longer definition wins, confidence takes the max, and the duplicate
// is recorded under metadata "merged_from".
func Merge(primary, duplicate *types.Concept) {
	if primary == nil || duplicate == nil {
		return
	}

	seen := map[string]bool{}
	for _, a := range primary.Aliases {
		seen[a] = true
	}
	addAlias := func(a string) {
		if a == "" || seen[a] || a == primary.Name {
			return
		}
		seen[a] = true
		primary.Aliases = append(primary.Aliases, a)
	}
	for _, a := range duplicate.Aliases {
		addAlias(a)
	}
	addAlias(duplicate.Name)

	if duplicate.Definition != nil {
		if primary.Definition == nil || len(*duplicate.Definition) > len(*primary.Definition) {
			primary.Definition = duplicate.Definition
		}
	}

	if duplicate.ConfidenceScore != nil {
		if primary.ConfidenceScore == nil || *duplicate.ConfidenceScore > *primary.ConfidenceScore {
			primary.ConfidenceScore = duplicate.ConfidenceScore
		}
	}

	if primary.Metadata == nil {
		primary.Metadata = datatypes.JSONMap{}
	}
	var mergedFrom []interface{}
	if existing, ok := primary.Metadata["merged_from"].([]interface{}); ok {
		mergedFrom = existing
	}
	primary.Metadata["merged_from"] = append(mergedFrom, duplicate.Name)
}
