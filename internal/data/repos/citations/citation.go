package citations

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/research-kb/internal/domain"
	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

type CitationRepo interface {
	Create(dbc dbctx.Context, row *types.Citation) (*types.Citation, error)
	BatchCreate(dbc dbctx.Context, rows []*types.Citation) ([]*types.Citation, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Citation, error)
	ListBySource(dbc dbctx.Context, sourceID uuid.UUID) ([]*types.Citation, error)
	Count(dbc dbctx.Context) (int64, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type citationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCitationRepo(db *gorm.DB, baseLog *logger.Logger) CitationRepo {
	return &citationRepo{db: db, log: baseLog.With("repo", "CitationRepo")}
}

func validateCitation(row *types.Citation) error {
	if row == nil {
		return kberr.NewValidation("citation", "nil row")
	}
	if row.SourceID == uuid.Nil {
		return kberr.NewValidation("source_id", "required")
	}
	if row.RawString == "" {
		return kberr.NewValidation("raw_string", "required")
	}
	if row.Confidence != nil && (*row.Confidence < 0 || *row.Confidence > 1) {
		return kberr.NewValidation("confidence", "must be in [0,1]")
	}
	return nil
}

func (r *citationRepo) Create(dbc dbctx.Context, row *types.Citation) (*types.Citation, error) {
	out, err := r.BatchCreate(dbc, []*types.Citation{row})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (r *citationRepo) BatchCreate(dbc dbctx.Context, rows []*types.Citation) ([]*types.Citation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return rows, nil
	}
	for i, row := range rows {
		if err := validateCitation(row); err != nil {
			return nil, fmt.Errorf("citation %d: %w", i, err)
		}
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	err := t.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, kberr.NewStorage("batch_create", "citation", err)
	}
	r.log.Info("citations created", "count", len(rows), "source_id", rows[0].SourceID)
	return rows, nil
}

func (r *citationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Citation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out types.Citation
	err := t.WithContext(dbc.Ctx).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, kberr.NewStorage("get", "citation", err)
	}
	return &out, nil
}

func (r *citationRepo) ListBySource(dbc dbctx.Context, sourceID uuid.UUID) ([]*types.Citation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Citation
	if err := t.WithContext(dbc.Ctx).
		Where("source_id = ?", sourceID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, kberr.NewStorage("list_by_source", "citation", err)
	}
	return out, nil
}

func (r *citationRepo) Count(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).Model(&types.Citation{}).Count(&n).Error; err != nil {
		return 0, kberr.NewStorage("count", "citation", err)
	}
	return n, nil
}

func (r *citationRepo) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.Citation{})
	if res.Error != nil {
		return false, kberr.NewStorage("delete", "citation", res.Error)
	}
	return res.RowsAffected > 0, nil
}
