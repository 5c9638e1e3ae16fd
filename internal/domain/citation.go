package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Citation is one bibliographic reference extracted from a Source.
type Citation struct {
	ID       uuid.UUID                   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SourceID uuid.UUID                   `gorm:"type:uuid;column:source_id;not null;index" json:"source_id"`
	Source   *Source                     `gorm:"constraint:OnDelete:CASCADE;foreignKey:SourceID;references:ID" json:"source,omitempty"`
	Authors  datatypes.JSONSlice[string] `gorm:"column:authors;type:jsonb" json:"authors"`
	Title    *string                     `gorm:"column:title;type:text" json:"title,omitempty"`
	Year     *int                        `gorm:"column:year" json:"year,omitempty"`
	Venue    *string                     `gorm:"column:venue;type:text" json:"venue,omitempty"`
	DOI      *string                     `gorm:"column:doi;type:text;index" json:"doi,omitempty"`
	ArxivID  *string                     `gorm:"column:arxiv_id;type:text;index" json:"arxiv_id,omitempty"`

	// RawString is the citation exactly as it appeared in the bibliography.
	RawString string  `gorm:"column:raw_string;type:text;not null" json:"raw_string"`
	Bibtex    *string `gorm:"column:bibtex;type:text" json:"bibtex,omitempty"`

	// Confidence is the extractor's confidence in the parsed fields.
	Confidence *float64 `gorm:"column:confidence" json:"confidence,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Citation) TableName() string { return "citations" }

// SourceCitation is one edge in the citation graph: a citing Source
// resolved (or not) to a cited Source through a Citation record.
// CitedSourceID is nil for citations external to the corpus.
type SourceCitation struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CitingSourceID uuid.UUID  `gorm:"type:uuid;column:citing_source_id;not null;index;uniqueIndex:idx_source_citation_pair" json:"citing_source_id"`
	CitingSource   *Source    `gorm:"constraint:OnDelete:CASCADE;foreignKey:CitingSourceID;references:ID" json:"-"`
	CitedSourceID  *uuid.UUID `gorm:"type:uuid;column:cited_source_id;index" json:"cited_source_id,omitempty"`
	CitedSource    *Source    `gorm:"constraint:OnDelete:SET NULL;foreignKey:CitedSourceID;references:ID" json:"-"`
	CitationID     uuid.UUID  `gorm:"type:uuid;column:citation_id;not null;uniqueIndex:idx_source_citation_pair" json:"citation_id"`
	Citation       *Citation  `gorm:"constraint:OnDelete:CASCADE;foreignKey:CitationID;references:ID" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (SourceCitation) TableName() string { return "source_citations" }
