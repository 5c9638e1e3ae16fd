package knowledge

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/research-kb/internal/domain"
	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

type RelationshipRepo interface {
	Create(dbc dbctx.Context, row *types.ConceptRelationship) (*types.ConceptRelationship, error)

	// CreateIgnoreDuplicates inserts rows, skipping any whose
	// (source, target, type) triple already exists. Returns inserted count.
	CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.ConceptRelationship) (int, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ConceptRelationship, error)
	GetByTriple(dbc dbctx.Context, sourceID, targetID uuid.UUID, relType types.RelationshipType) (*types.ConceptRelationship, error)

	ListFrom(dbc dbctx.Context, conceptID uuid.UUID) ([]*types.ConceptRelationship, error)
	ListTo(dbc dbctx.Context, conceptID uuid.UUID) ([]*types.ConceptRelationship, error)

	// ListTouching returns every relationship where the concept is
	// either endpoint, in both directions.
	ListTouching(dbc dbctx.Context, conceptID uuid.UUID) ([]*types.ConceptRelationship, error)

	Count(dbc dbctx.Context) (int64, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type relationshipRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRelationshipRepo(db *gorm.DB, baseLog *logger.Logger) RelationshipRepo {
	return &relationshipRepo{db: db, log: baseLog.With("repo", "RelationshipRepo")}
}

func validateRelationship(row *types.ConceptRelationship) error {
	if row == nil {
		return kberr.NewValidation("relationship", "nil row")
	}
	if row.SourceConceptID == uuid.Nil {
		return kberr.NewValidation("source_concept_id", "required")
	}
	if row.TargetConceptID == uuid.Nil {
		return kberr.NewValidation("target_concept_id", "required")
	}
	if row.SourceConceptID == row.TargetConceptID {
		return kberr.NewValidation("target_concept_id", "self-referential relationships are not allowed")
	}
	if !row.RelationshipType.Valid() {
		return kberr.NewValidation("relationship_type", fmt.Sprintf("unknown value %q", row.RelationshipType))
	}
	if row.Strength < 0 || row.Strength > 1 {
		return kberr.NewValidation("strength", "must be in [0,1]")
	}
	if row.ConfidenceScore != nil && (*row.ConfidenceScore < 0 || *row.ConfidenceScore > 1) {
		return kberr.NewValidation("confidence_score", "must be in [0,1]")
	}
	return nil
}

func (r *relationshipRepo) Create(dbc dbctx.Context, row *types.ConceptRelationship) (*types.ConceptRelationship, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if err := validateRelationship(row); err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		if kberr.IsDuplicate(err) {
			return nil, kberr.NewStorage("create", "concept_relationship",
				fmt.Errorf("relationship (%s, %s, %s) already exists: %w",
					row.SourceConceptID, row.TargetConceptID, row.RelationshipType, kberr.ErrDuplicate))
		}
		return nil, kberr.NewStorage("create", "concept_relationship", err)
	}
	return row, nil
}

func (r *relationshipRepo) CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.ConceptRelationship) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for _, row := range rows {
		if err := validateRelationship(row); err != nil {
			return 0, err
		}
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "source_concept_id"},
				{Name: "target_concept_id"},
				{Name: "relationship_type"},
			},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, kberr.NewStorage("batch_create", "concept_relationship", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r *relationshipRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ConceptRelationship, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out types.ConceptRelationship
	err := t.WithContext(dbc.Ctx).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, kberr.NewStorage("get", "concept_relationship", err)
	}
	return &out, nil
}

func (r *relationshipRepo) GetByTriple(dbc dbctx.Context, sourceID, targetID uuid.UUID, relType types.RelationshipType) (*types.ConceptRelationship, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out types.ConceptRelationship
	err := t.WithContext(dbc.Ctx).
		Where("source_concept_id = ? AND target_concept_id = ? AND relationship_type = ?",
			sourceID, targetID, relType).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, kberr.NewStorage("get_by_triple", "concept_relationship", err)
	}
	return &out, nil
}

func (r *relationshipRepo) ListFrom(dbc dbctx.Context, conceptID uuid.UUID) ([]*types.ConceptRelationship, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ConceptRelationship
	if err := t.WithContext(dbc.Ctx).
		Where("source_concept_id = ?", conceptID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, kberr.NewStorage("list_from", "concept_relationship", err)
	}
	return out, nil
}

func (r *relationshipRepo) ListTo(dbc dbctx.Context, conceptID uuid.UUID) ([]*types.ConceptRelationship, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ConceptRelationship
	if err := t.WithContext(dbc.Ctx).
		Where("target_concept_id = ?", conceptID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, kberr.NewStorage("list_to", "concept_relationship", err)
	}
	return out, nil
}

func (r *relationshipRepo) ListTouching(dbc dbctx.Context, conceptID uuid.UUID) ([]*types.ConceptRelationship, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ConceptRelationship
	if err := t.WithContext(dbc.Ctx).
		Where("source_concept_id = ? OR target_concept_id = ?", conceptID, conceptID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, kberr.NewStorage("list_touching", "concept_relationship", err)
	}
	return out, nil
}

func (r *relationshipRepo) Count(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).Model(&types.ConceptRelationship{}).Count(&n).Error; err != nil {
		return 0, kberr.NewStorage("count", "concept_relationship", err)
	}
	return n, nil
}

func (r *relationshipRepo) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.ConceptRelationship{})
	if res.Error != nil {
		return false, kberr.NewStorage("delete", "concept_relationship", res.Error)
	}
	return res.RowsAffected > 0, nil
}
