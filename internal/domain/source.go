package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Source is an ingested document: a textbook, a paper, or a code
// repository. FileHash is unique so re-ingesting the same file is a
// lookup, never a second row.
type Source struct {
	ID         uuid.UUID                   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SourceType SourceType                  `gorm:"column:source_type;type:text;not null;index" json:"source_type"`
	Title      string                      `gorm:"column:title;type:text;not null" json:"title"`
	Authors    datatypes.JSONSlice[string] `gorm:"column:authors;type:jsonb" json:"authors"`
	Year       *int                        `gorm:"column:year" json:"year,omitempty"`
	FilePath   *string                     `gorm:"column:file_path;type:text" json:"file_path,omitempty"`
	FileHash   string                      `gorm:"column:file_hash;type:text;not null;uniqueIndex:idx_source_file_hash" json:"file_hash"`

	// Conventional metadata keys: "doi", "arxiv_id", "isbn".
	Metadata datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	// CitationAuthority is a precomputed PageRank-style score in [0,1],
	// refreshed by the citation_graph tool. Never written at search time.
	CitationAuthority float64 `gorm:"column:citation_authority;not null;default:0" json:"citation_authority"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Source) TableName() string { return "sources" }
