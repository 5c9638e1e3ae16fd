package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// Concept is an extracted knowledge entity. CanonicalName is the
// deduplication key: two mentions that canonicalize to the same name
// must resolve to the same row (upsert, never a duplicate).
type Concept struct {
	ID            uuid.UUID                   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name          string                      `gorm:"column:name;type:text;not null" json:"name"`
	CanonicalName string                      `gorm:"column:canonical_name;type:text;not null;uniqueIndex:idx_concept_canonical_name" json:"canonical_name"`
	Aliases       datatypes.JSONSlice[string] `gorm:"column:aliases;type:jsonb" json:"aliases"`
	ConceptType   ConceptType                 `gorm:"column:concept_type;type:text;not null;index" json:"concept_type"`

	// Category subdivides a type, e.g. identification / estimation / testing.
	Category   *string          `gorm:"column:category;type:text" json:"category,omitempty"`
	Definition *string          `gorm:"column:definition;type:text" json:"definition,omitempty"`
	Embedding  *pgvector.Vector `gorm:"column:embedding;type:vector(1024)" json:"embedding,omitempty"`

	ExtractionMethod *string  `gorm:"column:extraction_method;type:text" json:"extraction_method,omitempty"`
	ConfidenceScore  *float64 `gorm:"column:confidence_score" json:"confidence_score,omitempty"`
	Validated        bool     `gorm:"column:validated;not null;default:false" json:"validated"`

	// Conventional metadata keys: "needs_review" (embedding-only
	// duplicate signal), "merged_from".
	Metadata datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Concept) TableName() string { return "concepts" }
