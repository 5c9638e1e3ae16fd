package content

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/research-kb/internal/domain"
	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

type SourceRepo interface {
	Create(dbc dbctx.Context, row *types.Source) (*types.Source, error)

	// GetOrCreateByFileHash is the idempotent ingestion entry point: the
	// second call with the same file hash returns the existing row and
	// created=false.
	GetOrCreateByFileHash(dbc dbctx.Context, row *types.Source) (*types.Source, bool, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Source, error)
	GetByFileHash(dbc dbctx.Context, fileHash string) (*types.Source, error)

	List(dbc dbctx.Context, sourceType *types.SourceType, limit, offset int) ([]*types.Source, error)
	Count(dbc dbctx.Context) (int64, error)

	// UpdateMetadata merges the given keys into the JSONB column.
	UpdateMetadata(dbc dbctx.Context, id uuid.UUID, metadata map[string]interface{}) (*types.Source, error)
	UpdateCitationAuthority(dbc dbctx.Context, id uuid.UUID, score float64) error

	// Delete cascades to the source's chunks and citations.
	Delete(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type sourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSourceRepo(db *gorm.DB, baseLog *logger.Logger) SourceRepo {
	return &sourceRepo{db: db, log: baseLog.With("repo", "SourceRepo")}
}

func validateSource(row *types.Source) error {
	if row == nil {
		return kberr.NewValidation("source", "nil row")
	}
	if !row.SourceType.Valid() {
		return kberr.NewValidation("source_type", fmt.Sprintf("unknown value %q", row.SourceType))
	}
	if row.Title == "" {
		return kberr.NewValidation("title", "required")
	}
	if row.FileHash == "" {
		return kberr.NewValidation("file_hash", "required")
	}
	return nil
}

func (r *sourceRepo) Create(dbc dbctx.Context, row *types.Source) (*types.Source, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if err := validateSource(row); err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		if kberr.IsDuplicate(err) {
			return nil, kberr.NewStorage("create", "source",
				fmt.Errorf("file_hash %q already exists: %w", row.FileHash, kberr.ErrDuplicate))
		}
		return nil, kberr.NewStorage("create", "source", err)
	}
	r.log.Info("source created", "source_id", row.ID, "source_type", row.SourceType, "title", row.Title)
	return row, nil
}

func (r *sourceRepo) GetOrCreateByFileHash(dbc dbctx.Context, row *types.Source) (*types.Source, bool, error) {
	existing, err := r.GetByFileHash(dbc, row.FileHash)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	created, err := r.Create(dbc, row)
	if err == nil {
		return created, true, nil
	}
	// Lost a race with a concurrent ingest of the same file: the row is
	// there now, so return it.
	if kberr.IsDuplicate(err) {
		existing, lookupErr := r.GetByFileHash(dbc, row.FileHash)
		if lookupErr == nil && existing != nil {
			return existing, false, nil
		}
	}
	return nil, false, err
}

func (r *sourceRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Source, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Source
	err := t.WithContext(dbc.Ctx).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, kberr.NewStorage("get", "source", err)
	}
	return &out, nil
}

func (r *sourceRepo) GetByFileHash(dbc dbctx.Context, fileHash string) (*types.Source, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if fileHash == "" {
		return nil, nil
	}
	var out types.Source
	err := t.WithContext(dbc.Ctx).Where("file_hash = ?", fileHash).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, kberr.NewStorage("get_by_file_hash", "source", err)
	}
	return &out, nil
}

func (r *sourceRepo) List(dbc dbctx.Context, sourceType *types.SourceType, limit, offset int) ([]*types.Source, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	q := t.WithContext(dbc.Ctx).Model(&types.Source{})
	if sourceType != nil {
		q = q.Where("source_type = ?", *sourceType)
	}
	var out []*types.Source
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, kberr.NewStorage("list", "source", err)
	}
	return out, nil
}

func (r *sourceRepo) Count(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).Model(&types.Source{}).Count(&n).Error; err != nil {
		return 0, kberr.NewStorage("count", "source", err)
	}
	return n, nil
}

func (r *sourceRepo) UpdateMetadata(dbc dbctx.Context, id uuid.UUID, metadata map[string]interface{}) (*types.Source, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).
		Model(&types.Source{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"metadata":   gorm.Expr("COALESCE(metadata, '{}'::jsonb) || ?", datatypes.JSONMap(metadata)),
			"updated_at": gorm.Expr("now()"),
		})
	if res.Error != nil {
		return nil, kberr.NewStorage("update_metadata", "source", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, kberr.NewStorage("update_metadata", "source",
			fmt.Errorf("source %s: %w", id, kberr.ErrNotFound))
	}
	r.log.Info("source metadata updated", "source_id", id)
	return r.GetByID(dbc, id)
}

func (r *sourceRepo) UpdateCitationAuthority(dbc dbctx.Context, id uuid.UUID, score float64) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if score < 0 || score > 1 {
		return kberr.NewValidation("citation_authority", "must be in [0,1]")
	}
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Source{}).
		Where("id = ?", id).
		Update("citation_authority", score).Error; err != nil {
		return kberr.NewStorage("update_citation_authority", "source", err)
	}
	return nil
}

func (r *sourceRepo) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.Source{})
	if res.Error != nil {
		return false, kberr.NewStorage("delete", "source", res.Error)
	}
	if res.RowsAffected == 0 {
		r.log.Warn("source not found for delete", "source_id", id)
		return false, nil
	}
	r.log.Info("source deleted", "source_id", id)
	return true, nil
}
