package knowledge

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/research-kb/internal/domain"
	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

type ChunkConceptRepo interface {
	// CreateIgnoreDuplicates links chunks to concepts, skipping links
	// that already exist. Returns inserted count.
	CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.ChunkConcept) (int, error)

	ListByChunk(dbc dbctx.Context, chunkID uuid.UUID) ([]*types.ChunkConcept, error)
	ListByConcept(dbc dbctx.Context, conceptID uuid.UUID, limit int) ([]*types.ChunkConcept, error)

	// ConceptIDsForChunks maps each chunk id to the distinct concept ids
	// mentioned in it. Chunks with no links are absent from the map.
	ConceptIDsForChunks(dbc dbctx.Context, chunkIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)

	CountByConcept(dbc dbctx.Context, conceptID uuid.UUID) (int64, error)
}

type chunkConceptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChunkConceptRepo(db *gorm.DB, baseLog *logger.Logger) ChunkConceptRepo {
	return &chunkConceptRepo{db: db, log: baseLog.With("repo", "ChunkConceptRepo")}
}

func validateChunkConcept(row *types.ChunkConcept) error {
	if row == nil {
		return kberr.NewValidation("chunk_concept", "nil row")
	}
	if row.ChunkID == uuid.Nil {
		return kberr.NewValidation("chunk_id", "required")
	}
	if row.ConceptID == uuid.Nil {
		return kberr.NewValidation("concept_id", "required")
	}
	if !row.MentionType.Valid() {
		return kberr.NewValidation("mention_type", fmt.Sprintf("unknown value %q", row.MentionType))
	}
	if row.RelevanceScore != nil && (*row.RelevanceScore < 0 || *row.RelevanceScore > 1) {
		return kberr.NewValidation("relevance_score", "must be in [0,1]")
	}
	return nil
}

func (r *chunkConceptRepo) CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.ChunkConcept) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for _, row := range rows {
		if err := validateChunkConcept(row); err != nil {
			return 0, err
		}
	}
	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "chunk_id"},
				{Name: "concept_id"},
				{Name: "mention_type"},
			},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, kberr.NewStorage("batch_create", "chunk_concept", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r *chunkConceptRepo) ListByChunk(dbc dbctx.Context, chunkID uuid.UUID) ([]*types.ChunkConcept, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ChunkConcept
	if err := t.WithContext(dbc.Ctx).
		Where("chunk_id = ?", chunkID).
		Find(&out).Error; err != nil {
		return nil, kberr.NewStorage("list_by_chunk", "chunk_concept", err)
	}
	return out, nil
}

func (r *chunkConceptRepo) ListByConcept(dbc dbctx.Context, conceptID uuid.UUID, limit int) ([]*types.ChunkConcept, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var out []*types.ChunkConcept
	if err := t.WithContext(dbc.Ctx).
		Where("concept_id = ?", conceptID).
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, kberr.NewStorage("list_by_concept", "chunk_concept", err)
	}
	return out, nil
}

func (r *chunkConceptRepo) ConceptIDsForChunks(dbc dbctx.Context, chunkIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := make(map[uuid.UUID][]uuid.UUID, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return out, nil
	}
	type pair struct {
		ChunkID   uuid.UUID `gorm:"column:chunk_id"`
		ConceptID uuid.UUID `gorm:"column:concept_id"`
	}
	var rows []pair
	err := t.WithContext(dbc.Ctx).Raw(`
		SELECT DISTINCT chunk_id, concept_id
		FROM chunk_concepts
		WHERE chunk_id IN ?`,
		chunkIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, kberr.NewStorage("concept_ids_for_chunks", "chunk_concept", err)
	}
	for _, p := range rows {
		out[p.ChunkID] = append(out[p.ChunkID], p.ConceptID)
	}
	return out, nil
}

func (r *chunkConceptRepo) CountByConcept(dbc dbctx.Context, conceptID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.ChunkConcept{}).
		Where("concept_id = ?", conceptID).
		Count(&n).Error; err != nil {
		return 0, kberr.NewStorage("count_by_concept", "chunk_concept", err)
	}
	return n, nil
}
