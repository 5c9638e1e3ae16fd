package citations

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/research-kb/internal/domain"
	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

const (
	pagerankIterations = 20
	pagerankDamping    = 0.85
)

// AuthorityService computes citation authority over the resolved
// citation graph and persists it to sources.citation_authority.
type AuthorityService interface {
	// Recompute runs PageRank over every source and resolved citation
	// edge, normalizes scores to [0,1] by the maximum, and writes them
	// back in a single transaction. Returns the number of sources scored.
	Recompute(dbc dbctx.Context) (int, error)
}

type authorityService struct {
	db        *gorm.DB
	citations SourceCitationRepo
	log       *logger.Logger
}

func NewAuthorityService(db *gorm.DB, citations SourceCitationRepo, baseLog *logger.Logger) AuthorityService {
	return &authorityService{
		db:        db,
		citations: citations,
		log:       baseLog.With("component", "AuthorityService"),
	}
}

func (s *authorityService) Recompute(dbc dbctx.Context) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = s.db
	}

	var ids []uuid.UUID
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Source{}).
		Pluck("id", &ids).Error; err != nil {
		return 0, kberr.NewStorage("recompute_authority", "source", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	edges, err := s.citations.ResolvedEdges(dbc)
	if err != nil {
		return 0, err
	}

	scores := pagerank(ids, edges)

	err = t.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		for id, score := range scores {
			if err := tx.Exec(
				`UPDATE sources SET citation_authority = ?, updated_at = now() WHERE id = ?`,
				score, id,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, kberr.NewStorage("recompute_authority", "source", err)
	}
	s.log.Info("citation authority recomputed", "sources", len(ids), "edges", len(edges))
	return len(ids), nil
}

// pagerank runs a fixed number of power iterations with the usual
// damping factor, then normalizes by the maximum score so the best
// connected source scores 1.0. Sources outside the citation graph
// settle at the normalized baseline.
func pagerank(ids []uuid.UUID, edges [][2]uuid.UUID) map[uuid.UUID]float64 {
	n := len(ids)
	scores := make(map[uuid.UUID]float64, n)
	outDegree := make(map[uuid.UUID]int, n)
	incoming := make(map[uuid.UUID][]uuid.UUID, n)

	base := 1.0 / float64(n)
	for _, id := range ids {
		scores[id] = base
	}
	for _, e := range edges {
		citing, cited := e[0], e[1]
		if _, ok := scores[citing]; !ok {
			continue
		}
		if _, ok := scores[cited]; !ok {
			continue
		}
		outDegree[citing]++
		incoming[cited] = append(incoming[cited], citing)
	}

	for i := 0; i < pagerankIterations; i++ {
		next := make(map[uuid.UUID]float64, n)
		for _, id := range ids {
			sum := 0.0
			for _, citer := range incoming[id] {
				sum += scores[citer] / float64(outDegree[citer])
			}
			next[id] = (1-pagerankDamping)/float64(n) + pagerankDamping*sum
		}
		scores = next
	}

	max := 0.0
	for _, v := range scores {
		if v > max {
			max = v
		}
	}
	if max > 0 {
		for id := range scores {
			scores[id] /= max
		}
	}
	return scores
}
