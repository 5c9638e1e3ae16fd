package search

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	types "github.com/yungbote/research-kb/internal/domain"
	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
)

const (
	DefaultLimit = 10
	maxLimit     = 100
)

// Weights splits relevance across the three signals. Callers may pass
// any non-negative values; Normalize scales them to sum to 1 over the
// signals actually in play.
type Weights struct {
	FTS    float64 `yaml:"fts" json:"fts"`
	Vector float64 `yaml:"vector" json:"vector"`
	Graph  float64 `yaml:"graph" json:"graph"`
}

// Preset names a weighting profile for a research phase.
type Preset string

const (
	// PresetBuilding favors semantic recall while drafting: related
	// material matters more than exact phrasing.
	PresetBuilding Preset = "building"
	// PresetAuditing favors exact terminology when verifying claims.
	PresetAuditing Preset = "auditing"
	PresetBalanced Preset = "balanced"
)

var presetWeights = map[Preset]Weights{
	PresetBuilding: {FTS: 0.2, Vector: 0.7, Graph: 0.1},
	PresetAuditing: {FTS: 0.45, Vector: 0.45, Graph: 0.1},
	PresetBalanced: {FTS: 0.3, Vector: 0.6, Graph: 0.1},
}

// PresetWeights returns the weights for a named preset, defaulting to
// balanced for unknown names.
func PresetWeights(p Preset) Weights {
	if w, ok := presetWeights[p]; ok {
		return w
	}
	return presetWeights[PresetBalanced]
}

// LoadPresets overlays preset weights from a YAML file of the form
//
//	building: {fts: 0.2, vector: 0.7, graph: 0.1}
//
// Unknown preset names are accepted and become addressable by name.
func LoadPresets(path string) (map[Preset]Weights, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	parsed := map[string]Weights{}
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	out := make(map[Preset]Weights, len(presetWeights)+len(parsed))
	for name, w := range presetWeights {
		out[name] = w
	}
	for name, w := range parsed {
		if w.FTS < 0 || w.Vector < 0 || w.Graph < 0 {
			return nil, fmt.Errorf("preset %q: weights must be non-negative", name)
		}
		out[Preset(name)] = w
	}
	return out, nil
}

// Normalize scales the weights to sum to 1. When useGraph is false the
// graph weight is dropped and the remaining two are rescaled.
func (w Weights) Normalize(useGraph bool) (Weights, error) {
	if w.FTS < 0 || w.Vector < 0 || w.Graph < 0 {
		return Weights{}, kberr.NewValidation("weights", "must be non-negative")
	}
	if !useGraph {
		w.Graph = 0
	}
	sum := w.FTS + w.Vector + w.Graph
	if sum <= 0 {
		return Weights{}, kberr.NewValidation("weights", "must sum to a positive value")
	}
	return Weights{
		FTS:    w.FTS / sum,
		Vector: w.Vector / sum,
		Graph:  w.Graph / sum,
	}, nil
}

// Query is one search request. At least one of Text and Embedding must
// be set; both together enables hybrid ranking.
type Query struct {
	Text      string
	Embedding []float32

	Limit      int
	SourceType *types.SourceType

	// UseGraph enables the concept-graph re-ranking pass. It degrades
	// to two-signal ranking when the query mentions no known concepts.
	UseGraph bool
	MaxHops  int

	// Weights defaults to the balanced preset when nil.
	Weights *Weights
}

func (q *Query) Validate() error {
	if q == nil {
		return kberr.NewValidation("query", "nil query")
	}
	if q.Text == "" && len(q.Embedding) == 0 {
		return kberr.NewValidation("query", "requires text or an embedding")
	}
	if len(q.Embedding) > 0 && len(q.Embedding) != types.EmbeddingDim {
		return kberr.NewValidation("embedding",
			fmt.Sprintf("must be %d dimensions, got %d", types.EmbeddingDim, len(q.Embedding)))
	}
	if q.SourceType != nil && !q.SourceType.Valid() {
		return kberr.NewValidation("source_type", fmt.Sprintf("unknown value %q", *q.SourceType))
	}
	if q.Limit < 0 {
		return kberr.NewValidation("limit", "must be non-negative")
	}
	return nil
}

func (q *Query) effectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	if q.Limit > maxLimit {
		return maxLimit
	}
	return q.Limit
}

func (q *Query) effectiveWeights() Weights {
	if q.Weights != nil {
		return *q.Weights
	}
	return PresetWeights(PresetBalanced)
}
