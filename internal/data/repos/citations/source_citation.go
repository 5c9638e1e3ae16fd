package citations

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/research-kb/internal/domain"
	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

// CitationCount is one row of the most-cited aggregation.
type CitationCount struct {
	SourceID uuid.UUID `gorm:"column:source_id"`
	Title    string    `gorm:"column:title"`
	Count    int64     `gorm:"column:cite_count"`
}

type SourceCitationRepo interface {
	// CreateIgnoreDuplicates records citing edges, skipping pairs that
	// already exist. Returns inserted count.
	CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.SourceCitation) (int, error)

	// ResolveCited points a source_citation at a matched internal source.
	ResolveCited(dbc dbctx.Context, id uuid.UUID, citedSourceID uuid.UUID) error

	ListCiting(dbc dbctx.Context, citingSourceID uuid.UUID) ([]*types.SourceCitation, error)
	ListCitedBy(dbc dbctx.Context, citedSourceID uuid.UUID) ([]*types.SourceCitation, error)

	// ResolvedEdges returns every (citing, cited) pair whose target has
	// been matched to an internal source.
	ResolvedEdges(dbc dbctx.Context) ([][2]uuid.UUID, error)

	MostCited(dbc dbctx.Context, limit int) ([]CitationCount, error)
	Count(dbc dbctx.Context) (int64, error)
}

type sourceCitationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSourceCitationRepo(db *gorm.DB, baseLog *logger.Logger) SourceCitationRepo {
	return &sourceCitationRepo{db: db, log: baseLog.With("repo", "SourceCitationRepo")}
}

func (r *sourceCitationRepo) CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.SourceCitation) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for _, row := range rows {
		if row.CitingSourceID == uuid.Nil {
			return 0, kberr.NewValidation("citing_source_id", "required")
		}
		if row.CitationID == uuid.Nil {
			return 0, kberr.NewValidation("citation_id", "required")
		}
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "citing_source_id"},
				{Name: "citation_id"},
			},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, kberr.NewStorage("batch_create", "source_citation", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r *sourceCitationRepo) ResolveCited(dbc dbctx.Context, id uuid.UUID, citedSourceID uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).
		Model(&types.SourceCitation{}).
		Where("id = ?", id).
		Update("cited_source_id", citedSourceID)
	if res.Error != nil {
		return kberr.NewStorage("resolve_cited", "source_citation", res.Error)
	}
	if res.RowsAffected == 0 {
		return kberr.NewStorage("resolve_cited", "source_citation", kberr.ErrNotFound)
	}
	return nil
}

func (r *sourceCitationRepo) ListCiting(dbc dbctx.Context, citingSourceID uuid.UUID) ([]*types.SourceCitation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.SourceCitation
	if err := t.WithContext(dbc.Ctx).
		Where("citing_source_id = ?", citingSourceID).
		Find(&out).Error; err != nil {
		return nil, kberr.NewStorage("list_citing", "source_citation", err)
	}
	return out, nil
}

func (r *sourceCitationRepo) ListCitedBy(dbc dbctx.Context, citedSourceID uuid.UUID) ([]*types.SourceCitation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.SourceCitation
	if err := t.WithContext(dbc.Ctx).
		Where("cited_source_id = ?", citedSourceID).
		Find(&out).Error; err != nil {
		return nil, kberr.NewStorage("list_cited_by", "source_citation", err)
	}
	return out, nil
}

func (r *sourceCitationRepo) ResolvedEdges(dbc dbctx.Context) ([][2]uuid.UUID, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	type edge struct {
		Citing uuid.UUID `gorm:"column:citing_source_id"`
		Cited  uuid.UUID `gorm:"column:cited_source_id"`
	}
	var rows []edge
	err := t.WithContext(dbc.Ctx).Raw(`
		SELECT citing_source_id, cited_source_id
		FROM source_citations
		WHERE cited_source_id IS NOT NULL`,
	).Scan(&rows).Error
	if err != nil {
		return nil, kberr.NewStorage("resolved_edges", "source_citation", err)
	}
	out := make([][2]uuid.UUID, 0, len(rows))
	for _, e := range rows {
		out = append(out, [2]uuid.UUID{e.Citing, e.Cited})
	}
	return out, nil
}

func (r *sourceCitationRepo) MostCited(dbc dbctx.Context, limit int) ([]CitationCount, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 20
	}
	var out []CitationCount
	err := t.WithContext(dbc.Ctx).Raw(`
		SELECT s.id AS source_id, s.title, COUNT(*) AS cite_count
		FROM source_citations sc
		JOIN sources s ON s.id = sc.cited_source_id
		WHERE sc.cited_source_id IS NOT NULL
		GROUP BY s.id, s.title
		ORDER BY cite_count DESC, s.title ASC
		LIMIT ?`,
		limit,
	).Scan(&out).Error
	if err != nil {
		return nil, kberr.NewStorage("most_cited", "source_citation", err)
	}
	return out, nil
}

func (r *sourceCitationRepo) Count(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).Model(&types.SourceCitation{}).Count(&n).Error; err != nil {
		return 0, kberr.NewStorage("count", "source_citation", err)
	}
	return n, nil
}
