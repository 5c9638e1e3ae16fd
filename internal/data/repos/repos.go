package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/research-kb/internal/data/repos/citations"
	"github.com/yungbote/research-kb/internal/data/repos/content"
	"github.com/yungbote/research-kb/internal/data/repos/knowledge"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

type SourceRepo = content.SourceRepo
type ChunkRepo = content.ChunkRepo

type ConceptRepo = knowledge.ConceptRepo
type RelationshipRepo = knowledge.RelationshipRepo
type ChunkConceptRepo = knowledge.ChunkConceptRepo

type CitationRepo = citations.CitationRepo
type SourceCitationRepo = citations.SourceCitationRepo
type CitationMatcher = citations.Matcher
type AuthorityService = citations.AuthorityService

func NewSourceRepo(db *gorm.DB, baseLog *logger.Logger) SourceRepo {
	return content.NewSourceRepo(db, baseLog)
}
func NewChunkRepo(db *gorm.DB, baseLog *logger.Logger) ChunkRepo {
	return content.NewChunkRepo(db, baseLog)
}

func NewConceptRepo(db *gorm.DB, baseLog *logger.Logger) ConceptRepo {
	return knowledge.NewConceptRepo(db, baseLog)
}
func NewRelationshipRepo(db *gorm.DB, baseLog *logger.Logger) RelationshipRepo {
	return knowledge.NewRelationshipRepo(db, baseLog)
}
func NewChunkConceptRepo(db *gorm.DB, baseLog *logger.Logger) ChunkConceptRepo {
	return knowledge.NewChunkConceptRepo(db, baseLog)
}

func NewCitationRepo(db *gorm.DB, baseLog *logger.Logger) CitationRepo {
	return citations.NewCitationRepo(db, baseLog)
}
func NewSourceCitationRepo(db *gorm.DB, baseLog *logger.Logger) SourceCitationRepo {
	return citations.NewSourceCitationRepo(db, baseLog)
}
func NewCitationMatcher(db *gorm.DB, baseLog *logger.Logger) CitationMatcher {
	return citations.NewMatcher(db, baseLog)
}
func NewAuthorityService(db *gorm.DB, sc SourceCitationRepo, baseLog *logger.Logger) AuthorityService {
	return citations.NewAuthorityService(db, sc, baseLog)
}
