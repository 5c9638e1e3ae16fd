package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// Chunk is one unit of extracted text owned by exactly one Source.
// Chunks are immutable after ingestion (except embedding backfill) and
// are removed by the Source cascade.
//
// The chunks table also carries an fts_vector tsvector column generated
// from location + content (location weighted higher). It is created in
// the raw migration and deliberately absent from this struct: the
// database owns it, application code must never write it.
type Chunk struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SourceID    uuid.UUID `gorm:"type:uuid;column:source_id;not null;index" json:"source_id"`
	Source      *Source   `gorm:"constraint:OnDelete:CASCADE;foreignKey:SourceID;references:ID" json:"source,omitempty"`
	Content     string    `gorm:"column:content;type:text;not null" json:"content"`
	ContentHash string    `gorm:"column:content_hash;type:text;not null;index" json:"content_hash"`

	// Location is human readable, e.g. "Chapter 3, p. 73".
	Location  *string          `gorm:"column:location;type:text" json:"location,omitempty"`
	PageStart *int             `gorm:"column:page_start" json:"page_start,omitempty"`
	PageEnd   *int             `gorm:"column:page_end" json:"page_end,omitempty"`
	Embedding *pgvector.Vector `gorm:"column:embedding;type:vector(1024)" json:"embedding,omitempty"`

	// Conventional metadata keys: "section", "heading_level",
	// "chunk_type", "theorem_name". Producers may add more; nothing in
	// the schema enforces them.
	Metadata datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Chunk) TableName() string { return "chunks" }
