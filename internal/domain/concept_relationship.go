package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ConceptRelationship is a directed, typed edge between two concepts.
// The (source, target, type) triple is unique; inserting it twice is a
// no-op at the store layer.
type ConceptRelationship struct {
	ID               uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SourceConceptID  uuid.UUID        `gorm:"type:uuid;column:source_concept_id;not null;index;uniqueIndex:idx_rel_src_tgt_type" json:"source_concept_id"`
	SourceConcept    *Concept         `gorm:"constraint:OnDelete:CASCADE;foreignKey:SourceConceptID;references:ID" json:"-"`
	TargetConceptID  uuid.UUID        `gorm:"type:uuid;column:target_concept_id;not null;index;uniqueIndex:idx_rel_src_tgt_type" json:"target_concept_id"`
	TargetConcept    *Concept         `gorm:"constraint:OnDelete:CASCADE;foreignKey:TargetConceptID;references:ID" json:"-"`
	RelationshipType RelationshipType `gorm:"column:relationship_type;type:text;not null;uniqueIndex:idx_rel_src_tgt_type" json:"relationship_type"`

	// IsDirected false means the edge is traversable in both directions.
	IsDirected bool    `gorm:"column:is_directed;not null;default:true" json:"is_directed"`
	Strength   float64 `gorm:"column:strength;not null;default:1" json:"strength"`

	ConfidenceScore  *float64                       `gorm:"column:confidence_score" json:"confidence_score,omitempty"`
	EvidenceChunkIDs datatypes.JSONSlice[uuid.UUID] `gorm:"column:evidence_chunk_ids;type:jsonb" json:"evidence_chunk_ids,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ConceptRelationship) TableName() string { return "concept_relationships" }
