package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/research-kb/internal/data/repos"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

type Repos struct {
	Source         repos.SourceRepo
	Chunk          repos.ChunkRepo
	Concept        repos.ConceptRepo
	Relationship   repos.RelationshipRepo
	ChunkConcept   repos.ChunkConceptRepo
	Citation       repos.CitationRepo
	SourceCitation repos.SourceCitationRepo
	Matcher        repos.CitationMatcher
	Authority      repos.AuthorityService
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	sourceCitation := repos.NewSourceCitationRepo(db, log)
	return Repos{
		Source:         repos.NewSourceRepo(db, log),
		Chunk:          repos.NewChunkRepo(db, log),
		Concept:        repos.NewConceptRepo(db, log),
		Relationship:   repos.NewRelationshipRepo(db, log),
		ChunkConcept:   repos.NewChunkConceptRepo(db, log),
		Citation:       repos.NewCitationRepo(db, log),
		SourceCitation: sourceCitation,
		Matcher:        repos.NewCitationMatcher(db, log),
		Authority:      repos.NewAuthorityService(db, sourceCitation, log),
	}
}
