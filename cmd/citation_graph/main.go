// citation_graph rebuilds the citation graph: it matches every parsed
// citation against the ingested sources, records the resolved edges,
// and recomputes citation authority over the result. Run it after a
// batch of ingestions.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/research-kb/internal/data/db"
	"github.com/yungbote/research-kb/internal/data/repos"
	types "github.com/yungbote/research-kb/internal/domain"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

func main() {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("postgres init failed", "error", err)
		os.Exit(1)
	}
	defer pg.Close()
	theDB := pg.DB()

	sourceRepo := repos.NewSourceRepo(theDB, log)
	citationRepo := repos.NewCitationRepo(theDB, log)
	edgeRepo := repos.NewSourceCitationRepo(theDB, log)
	matcher := repos.NewCitationMatcher(theDB, log)
	authority := repos.NewAuthorityService(theDB, edgeRepo, log)

	dbc := dbctx.Context{Ctx: context.Background()}

	matched, unmatched := 0, 0
	const pageSize = 500
	for offset := 0; ; offset += pageSize {
		sources, err := sourceRepo.List(dbc, nil, pageSize, offset)
		if err != nil {
			log.Error("list sources failed", "error", err)
			os.Exit(1)
		}
		if len(sources) == 0 {
			break
		}
		for _, src := range sources {
			cites, err := citationRepo.ListBySource(dbc, src.ID)
			if err != nil {
				log.Error("list citations failed", "error", err, "source_id", src.ID)
				os.Exit(1)
			}
			if len(cites) == 0 {
				continue
			}
			edges := make([]*types.SourceCitation, 0, len(cites))
			for _, cite := range cites {
				edge := &types.SourceCitation{
					CitingSourceID: src.ID,
					CitationID:     cite.ID,
				}
				m, err := matcher.MatchCitation(dbc, cite)
				if err != nil {
					log.Error("citation match failed", "error", err, "citation_id", cite.ID)
					os.Exit(1)
				}
				if m != nil && m.SourceID != src.ID {
					cited := m.SourceID
					edge.CitedSourceID = &cited
					matched++
				} else {
					unmatched++
				}
				edges = append(edges, edge)
			}
			if _, err := edgeRepo.CreateIgnoreDuplicates(dbc, edges); err != nil {
				log.Error("record citation edges failed", "error", err, "source_id", src.ID)
				os.Exit(1)
			}
		}
		if len(sources) < pageSize {
			break
		}
	}
	log.Info("citation matching complete", "matched", matched, "unmatched", unmatched)

	scored, err := authority.Recompute(dbc)
	if err != nil {
		log.Error("authority recompute failed", "error", err)
		os.Exit(1)
	}
	log.Info("citation authority recomputed", "sources", scored)
}
