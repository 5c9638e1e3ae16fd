package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/yungbote/research-kb/internal/domain"
	"github.com/yungbote/research-kb/internal/platform/logger"
	"github.com/yungbote/research-kb/internal/platform/neo4jdb"
)

// SyncConceptGraph mirrors concepts and relationships into Neo4j for
// interactive exploration. The mirror is best effort and optional: a
// nil client is a no-op, and callers never treat a sync failure as an
// ingestion failure.
func SyncConceptGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, concepts []*types.Concept, rels []*types.ConceptRelationship) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	nodes := make([]map[string]any, 0, len(concepts))
	for _, c := range concepts {
		if c == nil || c.ID == uuid.Nil {
			continue
		}
		definition := ""
		if c.Definition != nil {
			definition = *c.Definition
		}
		nodes = append(nodes, map[string]any{
			"id":             c.ID.String(),
			"name":           c.Name,
			"canonical_name": c.CanonicalName,
			"concept_type":   string(c.ConceptType),
			"definition":     definition,
			"validated":      c.Validated,
			"synced_at":      now,
		})
	}

	edges := make([]map[string]any, 0, len(rels))
	for _, r := range rels {
		if r == nil || r.SourceConceptID == uuid.Nil || r.TargetConceptID == uuid.Nil {
			continue
		}
		edges = append(edges, map[string]any{
			"id":                r.ID.String(),
			"from_id":           r.SourceConceptID.String(),
			"to_id":             r.TargetConceptID.String(),
			"relationship_type": string(r.RelationshipType),
			"is_directed":       r.IsDirected,
			"strength":          r.Strength,
			"synced_at":         now,
		})
	}
	if len(nodes) == 0 && len(edges) == 0 {
		return nil
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	// Schema init is best effort; may fail for restricted users.
	if res, err := session.Run(ctx, `CREATE CONSTRAINT concept_id_unique IF NOT EXISTS FOR (c:Concept) REQUIRE c.id IS UNIQUE`, nil); err != nil {
		if log != nil {
			log.Warn("neo4j schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(nodes) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $nodes AS n
MERGE (c:Concept {id: n.id})
SET c += n
`, map[string]any{"nodes": nodes})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if len(edges) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rels AS r
MATCH (a:Concept {id: r.from_id})
MATCH (b:Concept {id: r.to_id})
MERGE (a)-[e:RELATES {relationship_type: r.relationship_type}]->(b)
SET e.id = r.id,
    e.is_directed = r.is_directed,
    e.strength = r.strength,
    e.synced_at = r.synced_at
`, map[string]any{"rels": edges})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}
