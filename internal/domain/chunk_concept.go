package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChunkConcept links a chunk to a concept it mentions. The composite
// key allows the same pair under different mention types but never a
// duplicate of the same type.
type ChunkConcept struct {
	ChunkID     uuid.UUID   `gorm:"type:uuid;column:chunk_id;primaryKey" json:"chunk_id"`
	Chunk       *Chunk      `gorm:"constraint:OnDelete:CASCADE;foreignKey:ChunkID;references:ID" json:"-"`
	ConceptID   uuid.UUID   `gorm:"type:uuid;column:concept_id;primaryKey;index" json:"concept_id"`
	Concept     *Concept    `gorm:"constraint:OnDelete:CASCADE;foreignKey:ConceptID;references:ID" json:"-"`
	MentionType MentionType `gorm:"column:mention_type;type:text;primaryKey" json:"mention_type"`

	RelevanceScore *float64  `gorm:"column:relevance_score" json:"relevance_score,omitempty"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ChunkConcept) TableName() string { return "chunk_concepts" }
