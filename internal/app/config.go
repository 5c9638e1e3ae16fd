package app

import (
	"github.com/yungbote/research-kb/internal/data/graph"
	"github.com/yungbote/research-kb/internal/platform/envutil"
	"github.com/yungbote/research-kb/internal/platform/logger"
	"github.com/yungbote/research-kb/internal/search"
)

type Config struct {
	HTTPAddr    string
	Environment string
	Version     string

	// SearchPresetsPath optionally points at a YAML file overriding the
	// built-in weight presets.
	SearchPresetsPath string

	GraphDecay   graph.DecayCurve
	GraphMaxHops int
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		HTTPAddr:          envutil.String("HTTP_ADDR", ":8080"),
		Environment:       envutil.String("APP_ENV", "development"),
		Version:           envutil.String("APP_VERSION", "dev"),
		SearchPresetsPath: envutil.String("SEARCH_PRESETS_PATH", ""),
		GraphDecay:        graph.DecayCurve(envutil.String("GRAPH_DECAY_CURVE", string(graph.DecayInverse))),
		GraphMaxHops:      envutil.Int("GRAPH_MAX_HOPS", graph.DefaultMaxHops),
	}
}

// loadPresets merges file overrides over the built-ins, falling back
// to the built-ins alone when no file is configured.
func loadPresets(cfg Config, log *logger.Logger) map[search.Preset]search.Weights {
	if cfg.SearchPresetsPath == "" {
		return map[search.Preset]search.Weights{
			search.PresetBuilding: search.PresetWeights(search.PresetBuilding),
			search.PresetAuditing: search.PresetWeights(search.PresetAuditing),
			search.PresetBalanced: search.PresetWeights(search.PresetBalanced),
		}
	}
	presets, err := search.LoadPresets(cfg.SearchPresetsPath)
	if err != nil {
		log.Warn("failed to load search presets, using built-ins",
			"path", cfg.SearchPresetsPath, "error", err)
		return loadPresets(Config{}, log)
	}
	return presets
}
