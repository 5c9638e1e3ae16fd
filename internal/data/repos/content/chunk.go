package content

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	types "github.com/yungbote/research-kb/internal/domain"
	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

type ChunkRepo interface {
	Create(dbc dbctx.Context, row *types.Chunk) (*types.Chunk, error)

	// BatchCreate persists the whole batch in one transaction: a crash
	// mid-batch leaves no partially visible rows.
	BatchCreate(dbc dbctx.Context, rows []*types.Chunk) ([]*types.Chunk, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Chunk, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Chunk, error)
	ListBySource(dbc dbctx.Context, sourceID uuid.UUID, limit, offset int) ([]*types.Chunk, error)
	CountBySource(dbc dbctx.Context, sourceID uuid.UUID) (int64, error)
	CountOrphaned(dbc dbctx.Context) (int64, error)

	UpdateEmbedding(dbc dbctx.Context, id uuid.UUID, embedding []float32) (*types.Chunk, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type chunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChunkRepo(db *gorm.DB, baseLog *logger.Logger) ChunkRepo {
	return &chunkRepo{db: db, log: baseLog.With("repo", "ChunkRepo")}
}

func validateChunk(row *types.Chunk) error {
	if row == nil {
		return kberr.NewValidation("chunk", "nil row")
	}
	if row.SourceID == uuid.Nil {
		return kberr.NewValidation("source_id", "required")
	}
	if row.Content == "" {
		return kberr.NewValidation("content", "required")
	}
	if row.ContentHash == "" {
		return kberr.NewValidation("content_hash", "required")
	}
	if row.Embedding != nil {
		if got := len(row.Embedding.Slice()); got != types.EmbeddingDim {
			return kberr.NewValidation("embedding",
				fmt.Sprintf("must be %d dimensions, got %d", types.EmbeddingDim, got))
		}
	}
	return nil
}

func (r *chunkRepo) Create(dbc dbctx.Context, row *types.Chunk) (*types.Chunk, error) {
	rows, err := r.BatchCreate(dbc, []*types.Chunk{row})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

func (r *chunkRepo) BatchCreate(dbc dbctx.Context, rows []*types.Chunk) ([]*types.Chunk, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Chunk{}, nil
	}
	for _, row := range rows {
		if err := validateChunk(row); err != nil {
			return nil, err
		}
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	err := t.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, kberr.NewStorage("batch_create", "chunk", err)
	}
	r.log.Info("chunks created", "count", len(rows), "source_id", rows[0].SourceID)
	return rows, nil
}

func (r *chunkRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Chunk, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Chunk
	err := t.WithContext(dbc.Ctx).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, kberr.NewStorage("get", "chunk", err)
	}
	return &out, nil
}

func (r *chunkRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Chunk, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Chunk
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, kberr.NewStorage("get_by_ids", "chunk", err)
	}
	return out, nil
}

func (r *chunkRepo) ListBySource(dbc dbctx.Context, sourceID uuid.UUID, limit, offset int) ([]*types.Chunk, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 1000
	}
	var out []*types.Chunk
	if err := t.WithContext(dbc.Ctx).
		Where("source_id = ?", sourceID).
		Order("created_at ASC, id ASC").
		Limit(limit).Offset(offset).
		Find(&out).Error; err != nil {
		return nil, kberr.NewStorage("list_by_source", "chunk", err)
	}
	return out, nil
}

func (r *chunkRepo) CountBySource(dbc dbctx.Context, sourceID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Chunk{}).
		Where("source_id = ?", sourceID).
		Count(&n).Error; err != nil {
		return 0, kberr.NewStorage("count_by_source", "chunk", err)
	}
	return n, nil
}

// CountOrphaned counts chunks whose owning source no longer exists.
// The cascade keeps this at zero; the health check asserts it.
func (r *chunkRepo) CountOrphaned(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Chunk{}).
		Where("NOT EXISTS (SELECT 1 FROM sources s WHERE s.id = chunks.source_id)").
		Count(&n).Error; err != nil {
		return 0, kberr.NewStorage("count_orphaned", "chunk", err)
	}
	return n, nil
}

func (r *chunkRepo) UpdateEmbedding(dbc dbctx.Context, id uuid.UUID, embedding []float32) (*types.Chunk, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(embedding) != types.EmbeddingDim {
		return nil, kberr.NewValidation("embedding",
			fmt.Sprintf("must be %d dimensions, got %d", types.EmbeddingDim, len(embedding)))
	}
	vec := pgvector.NewVector(embedding)
	res := t.WithContext(dbc.Ctx).
		Model(&types.Chunk{}).
		Where("id = ?", id).
		Update("embedding", vec)
	if res.Error != nil {
		return nil, kberr.NewStorage("update_embedding", "chunk", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, kberr.NewStorage("update_embedding", "chunk",
			fmt.Errorf("chunk %s: %w", id, kberr.ErrNotFound))
	}
	return r.GetByID(dbc, id)
}

func (r *chunkRepo) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.Chunk{})
	if res.Error != nil {
		return false, kberr.NewStorage("delete", "chunk", res.Error)
	}
	return res.RowsAffected > 0, nil
}
