package citations

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/research-kb/internal/domain"
	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

// fuzzyTitleThreshold is the minimum trigram similarity for a title
// match to count as the same work.
const fuzzyTitleThreshold = 0.85

// MatchMethod records which strategy resolved a citation.
type MatchMethod string

const (
	MatchByDOI   MatchMethod = "doi"
	MatchByArxiv MatchMethod = "arxiv"
	MatchByTitle MatchMethod = "title"
)

// Match is a resolved citation target.
type Match struct {
	SourceID uuid.UUID
	Method   MatchMethod
}

// Matcher resolves parsed citations against the sources table. It
// tries identifiers in order of reliability: DOI, then arXiv id, then
// fuzzy title constrained by year.
type Matcher interface {
	MatchCitation(dbc dbctx.Context, c *types.Citation) (*Match, error)
}

type matcher struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMatcher(db *gorm.DB, baseLog *logger.Logger) Matcher {
	return &matcher{db: db, log: baseLog.With("component", "CitationMatcher")}
}

func (m *matcher) MatchCitation(dbc dbctx.Context, c *types.Citation) (*Match, error) {
	t := dbc.Tx
	if t == nil {
		t = m.db
	}
	if c == nil {
		return nil, kberr.NewValidation("citation", "nil row")
	}

	if c.DOI != nil && *c.DOI != "" {
		id, err := m.matchByDOI(dbc, t, *c.DOI)
		if err != nil {
			return nil, err
		}
		if id != uuid.Nil {
			return &Match{SourceID: id, Method: MatchByDOI}, nil
		}
	}

	if c.ArxivID != nil && *c.ArxivID != "" {
		id, err := m.matchByArxiv(dbc, t, *c.ArxivID)
		if err != nil {
			return nil, err
		}
		if id != uuid.Nil {
			return &Match{SourceID: id, Method: MatchByArxiv}, nil
		}
	}

	if c.Title != nil && *c.Title != "" {
		id, err := m.matchByTitle(dbc, t, *c.Title, c.Year)
		if err != nil {
			return nil, err
		}
		if id != uuid.Nil {
			return &Match{SourceID: id, Method: MatchByTitle}, nil
		}
	}

	return nil, nil
}

func (m *matcher) matchByDOI(dbc dbctx.Context, t *gorm.DB, doi string) (uuid.UUID, error) {
	var row struct {
		ID uuid.UUID `gorm:"column:id"`
	}
	res := t.WithContext(dbc.Ctx).Raw(`
		SELECT id FROM sources
		WHERE LOWER(metadata->>'doi') = LOWER(?)
		LIMIT 1`,
		strings.TrimSpace(doi),
	).Scan(&row)
	if res.Error != nil {
		return uuid.Nil, kberr.NewStorage("match_by_doi", "source", res.Error)
	}
	return row.ID, nil
}

func (m *matcher) matchByArxiv(dbc dbctx.Context, t *gorm.DB, arxivID string) (uuid.UUID, error) {
	var row struct {
		ID uuid.UUID `gorm:"column:id"`
	}
	res := t.WithContext(dbc.Ctx).Raw(`
		SELECT id FROM sources
		WHERE LOWER(metadata->>'arxiv_id') = LOWER(?)
		LIMIT 1`,
		strings.TrimSpace(arxivID),
	).Scan(&row)
	if res.Error != nil {
		return uuid.Nil, kberr.NewStorage("match_by_arxiv", "source", res.Error)
	}
	return row.ID, nil
}

// matchByTitle uses trigram similarity on lowercased titles. When the
// citation carries a year, candidates must agree on it; sources with
// no year are still eligible.
func (m *matcher) matchByTitle(dbc dbctx.Context, t *gorm.DB, title string, year *int) (uuid.UUID, error) {
	var row struct {
		ID uuid.UUID `gorm:"column:id"`
	}
	q := `
		SELECT id FROM sources
		WHERE similarity(LOWER(title), LOWER(?)) >= ?`
	args := []interface{}{strings.TrimSpace(title), fuzzyTitleThreshold}
	if year != nil {
		q += ` AND (year IS NULL OR year = ?)`
		args = append(args, *year)
	}
	q += `
		ORDER BY similarity(LOWER(title), LOWER(?)) DESC
		LIMIT 1`
	args = append(args, strings.TrimSpace(title))

	res := t.WithContext(dbc.Ctx).Raw(q, args...).Scan(&row)
	if res.Error != nil {
		return uuid.Nil, kberr.NewStorage("match_by_title", "source", res.Error)
	}
	return row.ID, nil
}
