package knowledge

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/research-kb/internal/domain"
	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

// ConceptSimilarity pairs a concept with its cosine similarity to a
// query embedding, already converted so higher is better.
type ConceptSimilarity struct {
	Concept    *types.Concept
	Similarity float64
}

type ConceptRepo interface {
	Create(dbc dbctx.Context, row *types.Concept) (*types.Concept, error)

	// BatchCreateIgnoreDuplicates inserts in one transaction, skipping
	// rows whose canonical_name already exists. Returns inserted count.
	BatchCreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.Concept) (int, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Concept, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Concept, error)
	GetByCanonicalName(dbc dbctx.Context, canonicalName string) (*types.Concept, error)
	GetByAlias(dbc dbctx.Context, alias string) (*types.Concept, error)

	List(dbc dbctx.Context, conceptType *types.ConceptType, limit, offset int) ([]*types.Concept, error)
	Count(dbc dbctx.Context) (int64, error)

	Update(dbc dbctx.Context, row *types.Concept) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	// FindSimilar returns concepts whose embedding cosine similarity to
	// the query is at least threshold, best first.
	FindSimilar(dbc dbctx.Context, embedding []float32, limit int, threshold float64) ([]ConceptSimilarity, error)

	// SearchFuzzy matches canonical_name by trigram similarity.
	SearchFuzzy(dbc dbctx.Context, name string, limit int) ([]*types.Concept, error)

	// Delete cascades to the concept's relationships and chunk links.
	Delete(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type conceptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptRepo(db *gorm.DB, baseLog *logger.Logger) ConceptRepo {
	return &conceptRepo{db: db, log: baseLog.With("repo", "ConceptRepo")}
}

func validateConcept(row *types.Concept) error {
	if row == nil {
		return kberr.NewValidation("concept", "nil row")
	}
	if row.Name == "" {
		return kberr.NewValidation("name", "required")
	}
	if row.CanonicalName == "" {
		return kberr.NewValidation("canonical_name", "required")
	}
	if !row.ConceptType.Valid() {
		return kberr.NewValidation("concept_type", fmt.Sprintf("unknown value %q", row.ConceptType))
	}
	if row.ConfidenceScore != nil && (*row.ConfidenceScore < 0 || *row.ConfidenceScore > 1) {
		return kberr.NewValidation("confidence_score", "must be in [0,1]")
	}
	if row.Embedding != nil {
		if got := len(row.Embedding.Slice()); got != types.EmbeddingDim {
			return kberr.NewValidation("embedding",
				fmt.Sprintf("must be %d dimensions, got %d", types.EmbeddingDim, got))
		}
	}
	return nil
}

func (r *conceptRepo) Create(dbc dbctx.Context, row *types.Concept) (*types.Concept, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if err := validateConcept(row); err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		if kberr.IsDuplicate(err) {
			return nil, kberr.NewStorage("create", "concept",
				fmt.Errorf("canonical_name %q already exists: %w", row.CanonicalName, kberr.ErrDuplicate))
		}
		return nil, kberr.NewStorage("create", "concept", err)
	}
	r.log.Info("concept created", "concept_id", row.ID, "canonical_name", row.CanonicalName, "concept_type", row.ConceptType)
	return row, nil
}

func (r *conceptRepo) BatchCreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.Concept) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for _, row := range rows {
		if err := validateConcept(row); err != nil {
			return 0, err
		}
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "canonical_name"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, kberr.NewStorage("batch_create", "concept", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r *conceptRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Concept, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Concept
	err := t.WithContext(dbc.Ctx).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, kberr.NewStorage("get", "concept", err)
	}
	return &out, nil
}

func (r *conceptRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Concept, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Concept
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, kberr.NewStorage("get_by_ids", "concept", err)
	}
	return out, nil
}

func (r *conceptRepo) GetByCanonicalName(dbc dbctx.Context, canonicalName string) (*types.Concept, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if canonicalName == "" {
		return nil, nil
	}
	var out types.Concept
	err := t.WithContext(dbc.Ctx).Where("canonical_name = ?", canonicalName).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, kberr.NewStorage("get_by_canonical_name", "concept", err)
	}
	return &out, nil
}

func (r *conceptRepo) GetByAlias(dbc dbctx.Context, alias string) (*types.Concept, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if alias == "" {
		return nil, nil
	}
	var out types.Concept
	err := t.WithContext(dbc.Ctx).
		Where("aliases @> ?", fmt.Sprintf("[%q]", alias)).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, kberr.NewStorage("get_by_alias", "concept", err)
	}
	return &out, nil
}

func (r *conceptRepo) List(dbc dbctx.Context, conceptType *types.ConceptType, limit, offset int) ([]*types.Concept, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 1000
	}
	q := t.WithContext(dbc.Ctx).Model(&types.Concept{})
	if conceptType != nil {
		q = q.Where("concept_type = ?", *conceptType)
	}
	var out []*types.Concept
	if err := q.Order("canonical_name ASC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, kberr.NewStorage("list", "concept", err)
	}
	return out, nil
}

func (r *conceptRepo) Count(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).Model(&types.Concept{}).Count(&n).Error; err != nil {
		return 0, kberr.NewStorage("count", "concept", err)
	}
	return n, nil
}

func (r *conceptRepo) Update(dbc dbctx.Context, row *types.Concept) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if err := validateConcept(row); err != nil {
		return err
	}
	if err := t.WithContext(dbc.Ctx).Save(row).Error; err != nil {
		return kberr.NewStorage("update", "concept", err)
	}
	return nil
}

func (r *conceptRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Concept{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return kberr.NewStorage("update_fields", "concept", err)
	}
	return nil
}

func (r *conceptRepo) FindSimilar(dbc dbctx.Context, embedding []float32, limit int, threshold float64) ([]ConceptSimilarity, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(embedding) != types.EmbeddingDim {
		return nil, kberr.NewValidation("embedding",
			fmt.Sprintf("must be %d dimensions, got %d", types.EmbeddingDim, len(embedding)))
	}
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(embedding)

	type row struct {
		types.Concept
		Similarity float64 `gorm:"column:similarity"`
	}
	var rows []row
	// <=> is cosine distance in [0,2]; similarity = 1 - distance/2.
	err := t.WithContext(dbc.Ctx).Raw(`
		SELECT c.*, 1.0 - (c.embedding <=> ?) / 2.0 AS similarity
		FROM concepts c
		WHERE c.embedding IS NOT NULL
		  AND 1.0 - (c.embedding <=> ?) / 2.0 >= ?
		ORDER BY c.embedding <=> ? ASC
		LIMIT ?`,
		vec, vec, threshold, vec, limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, kberr.NewStorage("find_similar", "concept", err)
	}
	out := make([]ConceptSimilarity, 0, len(rows))
	for i := range rows {
		c := rows[i].Concept
		out = append(out, ConceptSimilarity{Concept: &c, Similarity: rows[i].Similarity})
	}
	return out, nil
}

func (r *conceptRepo) SearchFuzzy(dbc dbctx.Context, name string, limit int) ([]*types.Concept, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if name == "" {
		return []*types.Concept{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []*types.Concept
	err := t.WithContext(dbc.Ctx).Raw(`
		SELECT c.*
		FROM concepts c
		WHERE similarity(c.canonical_name, ?) > 0.3
		ORDER BY similarity(c.canonical_name, ?) DESC, c.canonical_name ASC
		LIMIT ?`,
		name, name, limit,
	).Scan(&out).Error
	if err != nil {
		return nil, kberr.NewStorage("search_fuzzy", "concept", err)
	}
	return out, nil
}

func (r *conceptRepo) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.Concept{})
	if res.Error != nil {
		return false, kberr.NewStorage("delete", "concept", res.Error)
	}
	if res.RowsAffected == 0 {
		r.log.Warn("concept not found for delete", "concept_id", id)
		return false, nil
	}
	r.log.Info("concept deleted", "concept_id", id)
	return true, nil
}
