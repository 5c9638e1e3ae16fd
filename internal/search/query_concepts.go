package search

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

// shortAliasLen is the alias length at or below which matching demands
// word boundaries. "iv" inside "given" must not match instrumental
// variables.
const shortAliasLen = 3

// ConceptExtractor resolves the concepts a free-text query mentions,
// by canonical name and alias lookup against the concept table.
type ConceptExtractor interface {
	ExtractConceptIDs(dbc dbctx.Context, queryText string) ([]uuid.UUID, error)
}

type conceptExtractor struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptExtractor(db *gorm.DB, baseLog *logger.Logger) ConceptExtractor {
	return &conceptExtractor{db: db, log: baseLog.With("component", "ConceptExtractor")}
}

type conceptNameRow struct {
	ID            uuid.UUID `gorm:"column:id"`
	CanonicalName string    `gorm:"column:canonical_name"`
	Alias         *string   `gorm:"column:alias"`
}

func (e *conceptExtractor) ExtractConceptIDs(dbc dbctx.Context, queryText string) ([]uuid.UUID, error) {
	t := dbc.Tx
	if t == nil {
		t = e.db
	}
	queryText = strings.ToLower(strings.TrimSpace(queryText))
	if queryText == "" {
		return nil, nil
	}

	// One row per name variant: the canonical name itself plus each
	// alias, expanded server side so matching stays in one pass.
	var rows []conceptNameRow
	err := t.WithContext(dbc.Ctx).Raw(`
		SELECT c.id, c.canonical_name, NULL AS alias
		FROM concepts c
		UNION ALL
		SELECT c.id, c.canonical_name, LOWER(a.value) AS alias
		FROM concepts c, jsonb_array_elements_text(c.aliases) AS a(value)`,
	).Scan(&rows).Error
	if err != nil {
		return nil, kberr.NewSearch("extract_concepts", err)
	}

	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, row := range rows {
		name := strings.ToLower(row.CanonicalName)
		if row.Alias != nil {
			name = *row.Alias
		}
		if name == "" || seen[row.ID] {
			continue
		}
		if matchesQuery(queryText, name) {
			seen[row.ID] = true
			out = append(out, row.ID)
		}
	}
	if len(out) > 0 {
		e.log.Debug("query concepts extracted", "count", len(out))
	}
	return out, nil
}

// matchesQuery reports whether name occurs in the query. Short names
// match only on word boundaries; longer names match as substrings.
func matchesQuery(queryText, name string) bool {
	if len(name) <= shortAliasLen {
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(name) + `\b`)
		if err != nil {
			return false
		}
		return re.MatchString(queryText)
	}
	return strings.Contains(queryText, name)
}
