package graph

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	types "github.com/yungbote/research-kb/internal/domain"
	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

const (
	// DefaultMaxHops bounds BFS depth for path queries.
	DefaultMaxHops = 5

	// neighborhood traversal is clamped to this range.
	minNeighborhoodHops = 1
	maxNeighborhoodHops = 3

	// pairwise path lookups during scoring run with this concurrency.
	scoreConcurrency = 8
)

// DecayCurve maps a path length to a proximity contribution in [0,1].
type DecayCurve string

const (
	DecayInverse     DecayCurve = "inverse"     // 1 / (length + 1)
	DecayLinear      DecayCurve = "linear"      // max(0, 1 - length/maxHops)
	DecayExponential DecayCurve = "exponential" // 0.5^length
)

// PathHop is one step of a shortest path. Relationship is nil on the
// first hop, which is the starting concept itself.
type PathHop struct {
	Concept      *types.Concept             `json:"concept"`
	Relationship *types.ConceptRelationship `json:"relationship,omitempty"`
}

// Path is an ordered walk between two concepts. Length counts edges.
type Path struct {
	Hops   []PathHop `json:"hops"`
	Length int       `json:"length"`
}

// Neighbor is a concept reachable from a center, annotated with its
// minimum edge distance and the node ids of one minimum-length walk
// from the center to it, center first.
type Neighbor struct {
	Concept  *types.Concept `json:"concept"`
	Distance int            `json:"distance"`
	PathIDs  []uuid.UUID    `json:"path_ids"`
}

type GraphService interface {
	// ShortestPath finds a minimum-hop path between two concepts.
	// Returns nil when none exists within maxHops. Ties between equal
	// length paths break deterministically.
	ShortestPath(dbc dbctx.Context, fromID, toID uuid.UUID, maxHops int) (*Path, error)

	// ShortestPathLength returns the edge count of the shortest path,
	// or -1 when unreachable within maxHops.
	ShortestPathLength(dbc dbctx.Context, fromID, toID uuid.UUID, maxHops int) (int, error)

	// Neighborhood returns every concept within hops edges of center,
	// excluding center itself, each at its minimum distance. Hops is
	// clamped to [1,3]. A non-nil conceptType keeps only matching nodes.
	Neighborhood(dbc dbctx.Context, centerID uuid.UUID, hops int, conceptType *types.ConceptType) ([]Neighbor, error)

	// GraphScore measures proximity between two concept sets as the
	// mean decayed path length over all pairs, clamped to [0,1].
	// Either set empty scores 0.
	GraphScore(dbc dbctx.Context, queryConcepts, resultConcepts []uuid.UUID, maxHops int) (float64, error)
}

type graphService struct {
	db      *gorm.DB
	cache   *PathCache
	decay   DecayCurve
	maxHops int
	log     *logger.Logger
}

// NewGraphService builds the traversal layer. cache may be nil, in
// which case every path length hits Postgres. maxHops is the depth
// bound applied when a caller passes maxHops <= 0; values <= 0 fall
// back to DefaultMaxHops.
func NewGraphService(db *gorm.DB, cache *PathCache, decay DecayCurve, maxHops int, baseLog *logger.Logger) GraphService {
	switch decay {
	case DecayInverse, DecayLinear, DecayExponential:
	default:
		decay = DecayInverse
	}
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	return &graphService{
		db:      db,
		cache:   cache,
		decay:   decay,
		maxHops: maxHops,
		log:     baseLog.With("component", "GraphService"),
	}
}

// edgesCTE expands undirected relationships into both directions so
// the walk below only ever follows src -> dst.
const edgesCTE = `
	edges AS (
		SELECT id, source_concept_id AS src, target_concept_id AS dst
		FROM concept_relationships
		UNION ALL
		SELECT id, target_concept_id AS src, source_concept_id AS dst
		FROM concept_relationships
		WHERE NOT is_directed
	)`

func (s *graphService) ShortestPath(dbc dbctx.Context, fromID, toID uuid.UUID, maxHops int) (*Path, error) {
	t := dbc.Tx
	if t == nil {
		t = s.db
	}
	if fromID == uuid.Nil || toID == uuid.Nil {
		return nil, kberr.NewValidation("concept_id", "required")
	}
	if maxHops <= 0 {
		maxHops = s.maxHops
	}
	if fromID == toID {
		concept, err := s.loadConcept(dbc, t, fromID)
		if err != nil {
			return nil, err
		}
		if concept == nil {
			return nil, nil
		}
		return &Path{Hops: []PathHop{{Concept: concept}}, Length: 0}, nil
	}

	type row struct {
		Visited string `gorm:"column:visited"`
		RelIDs  string `gorm:"column:rel_ids"`
		Depth   int    `gorm:"column:depth"`
	}
	var res []row
	// The visited array is both the cycle guard and the path record.
	err := t.WithContext(dbc.Ctx).Raw(`
		WITH RECURSIVE `+edgesCTE+`,
		walk AS (
			SELECT e.dst AS node,
			       ARRAY[?::uuid, e.dst] AS visited,
			       ARRAY[e.id] AS rel_ids,
			       1 AS depth
			FROM edges e
			WHERE e.src = ?
			UNION ALL
			SELECT e.dst,
			       w.visited || e.dst,
			       w.rel_ids || e.id,
			       w.depth + 1
			FROM walk w
			JOIN edges e ON e.src = w.node
			WHERE w.depth < ?
			  AND NOT (e.dst = ANY(w.visited))
		)
		SELECT array_to_string(visited, ',') AS visited,
		       array_to_string(rel_ids, ',') AS rel_ids,
		       depth
		FROM walk
		WHERE node = ?
		ORDER BY depth ASC, array_to_string(visited, ',') ASC
		LIMIT 1`,
		fromID, fromID, maxHops, toID,
	).Scan(&res).Error
	if err != nil {
		return nil, kberr.NewStorage("shortest_path", "concept_relationship", err)
	}
	if len(res) == 0 {
		return nil, nil
	}

	nodeIDs, err := parseUUIDList(res[0].Visited)
	if err != nil {
		return nil, kberr.NewStorage("shortest_path", "concept_relationship", err)
	}
	relIDs, err := parseUUIDList(res[0].RelIDs)
	if err != nil {
		return nil, kberr.NewStorage("shortest_path", "concept_relationship", err)
	}
	return s.assemblePath(dbc, t, nodeIDs, relIDs, res[0].Depth)
}

func (s *graphService) ShortestPathLength(dbc dbctx.Context, fromID, toID uuid.UUID, maxHops int) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = s.db
	}
	if maxHops <= 0 {
		maxHops = s.maxHops
	}
	if fromID == toID {
		return 0, nil
	}

	if s.cache != nil {
		if length, ok := s.cache.Get(dbc.Ctx, fromID, toID, maxHops); ok {
			return length, nil
		}
	}

	type row struct {
		Depth int `gorm:"column:depth"`
	}
	var res []row
	err := t.WithContext(dbc.Ctx).Raw(`
		WITH RECURSIVE `+edgesCTE+`,
		walk AS (
			SELECT e.dst AS node,
			       ARRAY[?::uuid, e.dst] AS visited,
			       1 AS depth
			FROM edges e
			WHERE e.src = ?
			UNION ALL
			SELECT e.dst, w.visited || e.dst, w.depth + 1
			FROM walk w
			JOIN edges e ON e.src = w.node
			WHERE w.depth < ?
			  AND NOT (e.dst = ANY(w.visited))
		)
		SELECT COALESCE(MIN(depth), 0) AS depth FROM walk WHERE node = ?`,
		fromID, fromID, maxHops, toID,
	).Scan(&res).Error
	if err != nil {
		return -1, kberr.NewStorage("shortest_path_length", "concept_relationship", err)
	}

	length := -1
	if len(res) > 0 && res[0].Depth > 0 {
		length = res[0].Depth
	}
	if s.cache != nil {
		s.cache.Set(dbc.Ctx, fromID, toID, maxHops, length)
	}
	return length, nil
}

func (s *graphService) Neighborhood(dbc dbctx.Context, centerID uuid.UUID, hops int, conceptType *types.ConceptType) ([]Neighbor, error) {
	t := dbc.Tx
	if t == nil {
		t = s.db
	}
	if centerID == uuid.Nil {
		return nil, kberr.NewValidation("concept_id", "required")
	}
	if hops < minNeighborhoodHops {
		hops = minNeighborhoodHops
	}
	if hops > maxNeighborhoodHops {
		hops = maxNeighborhoodHops
	}

	type row struct {
		types.Concept
		Distance int    `gorm:"column:distance"`
		Path     string `gorm:"column:path"`
	}
	q := `
		WITH RECURSIVE ` + edgesCTE + `,
		walk AS (
			SELECT e.dst AS node,
			       ARRAY[?::uuid, e.dst] AS visited,
			       1 AS distance
			FROM edges e
			WHERE e.src = ?
			UNION ALL
			SELECT e.dst, w.visited || e.dst, w.distance + 1
			FROM walk w
			JOIN edges e ON e.src = w.node
			WHERE w.distance < ?
			  AND NOT (e.dst = ANY(w.visited))
		),
		nearest AS (
			SELECT DISTINCT ON (node) node, distance, visited
			FROM walk
			WHERE node <> ?
			ORDER BY node, distance ASC, array_to_string(visited, ',') ASC
		)
		SELECT c.*, n.distance, array_to_string(n.visited, ',') AS path
		FROM nearest n
		JOIN concepts c ON c.id = n.node`
	args := []interface{}{centerID, centerID, hops, centerID}
	if conceptType != nil {
		q += `
		WHERE c.concept_type = ?`
		args = append(args, *conceptType)
	}
	q += `
		ORDER BY n.distance ASC, c.canonical_name ASC`

	var rows []row
	if err := t.WithContext(dbc.Ctx).Raw(q, args...).Scan(&rows).Error; err != nil {
		return nil, kberr.NewStorage("neighborhood", "concept_relationship", err)
	}
	out := make([]Neighbor, 0, len(rows))
	for i := range rows {
		c := rows[i].Concept
		pathIDs, err := parseUUIDList(rows[i].Path)
		if err != nil {
			return nil, kberr.NewStorage("neighborhood", "concept_relationship", err)
		}
		out = append(out, Neighbor{Concept: &c, Distance: rows[i].Distance, PathIDs: pathIDs})
	}
	return out, nil
}

func (s *graphService) GraphScore(dbc dbctx.Context, queryConcepts, resultConcepts []uuid.UUID, maxHops int) (float64, error) {
	if len(queryConcepts) == 0 || len(resultConcepts) == 0 {
		return 0, nil
	}
	if maxHops <= 0 {
		maxHops = s.maxHops
	}

	type pair struct{ q, r uuid.UUID }
	pairs := make([]pair, 0, len(queryConcepts)*len(resultConcepts))
	for _, q := range queryConcepts {
		for _, r := range resultConcepts {
			pairs = append(pairs, pair{q, r})
		}
	}

	var sum float64
	if dbc.Tx != nil {
		// A transaction handle is not safe for concurrent use, so
		// transactional callers pay the sequential cost.
		for _, p := range pairs {
			length, err := s.ShortestPathLength(dbc, p.q, p.r, maxHops)
			if err != nil {
				return 0, err
			}
			if length >= 0 {
				sum += s.decayValue(length, maxHops)
			}
		}
	} else {
		var mu sync.Mutex
		g, ctx := errgroup.WithContext(dbc.Ctx)
		g.SetLimit(scoreConcurrency)
		for _, p := range pairs {
			p := p
			g.Go(func() error {
				length, err := s.ShortestPathLength(dbctx.Context{Ctx: ctx}, p.q, p.r, maxHops)
				if err != nil {
					return err
				}
				if length < 0 {
					return nil
				}
				contribution := s.decayValue(length, maxHops)
				mu.Lock()
				sum += contribution
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
	}

	score := sum / float64(len(pairs))
	if score > 1 {
		score = 1
	}
	return score, nil
}

func (s *graphService) decayValue(length, maxHops int) float64 {
	switch s.decay {
	case DecayLinear:
		v := 1 - float64(length)/float64(maxHops+1)
		if v < 0 {
			v = 0
		}
		return v
	case DecayExponential:
		return math.Pow(0.5, float64(length))
	default:
		return 1 / float64(length+1)
	}
}

func (s *graphService) loadConcept(dbc dbctx.Context, t *gorm.DB, id uuid.UUID) (*types.Concept, error) {
	var c types.Concept
	err := t.WithContext(dbc.Ctx).Where("id = ?", id).First(&c).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, kberr.NewStorage("get", "concept", err)
	}
	return &c, nil
}

func (s *graphService) assemblePath(dbc dbctx.Context, t *gorm.DB, nodeIDs, relIDs []uuid.UUID, depth int) (*Path, error) {
	var concepts []*types.Concept
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", nodeIDs).Find(&concepts).Error; err != nil {
		return nil, kberr.NewStorage("shortest_path", "concept", err)
	}
	conceptByID := make(map[uuid.UUID]*types.Concept, len(concepts))
	for _, c := range concepts {
		conceptByID[c.ID] = c
	}

	var rels []*types.ConceptRelationship
	if len(relIDs) > 0 {
		if err := t.WithContext(dbc.Ctx).Where("id IN ?", relIDs).Find(&rels).Error; err != nil {
			return nil, kberr.NewStorage("shortest_path", "concept_relationship", err)
		}
	}
	relByID := make(map[uuid.UUID]*types.ConceptRelationship, len(rels))
	for _, r := range rels {
		relByID[r.ID] = r
	}

	hops := make([]PathHop, 0, len(nodeIDs))
	for i, nodeID := range nodeIDs {
		concept, ok := conceptByID[nodeID]
		if !ok {
			return nil, kberr.NewStorage("shortest_path", "concept",
				fmt.Errorf("path references missing concept %s", nodeID))
		}
		hop := PathHop{Concept: concept}
		if i > 0 {
			hop.Relationship = relByID[relIDs[i-1]]
		}
		hops = append(hops, hop)
	}
	return &Path{Hops: hops, Length: depth}, nil
}

func parseUUIDList(joined string) ([]uuid.UUID, error) {
	if joined == "" {
		return nil, nil
	}
	parts := strings.Split(joined, ",")
	out := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parse path uuid %q: %w", p, err)
		}
		out = append(out, id)
	}
	return out, nil
}
