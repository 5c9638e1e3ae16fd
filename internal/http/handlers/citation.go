package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/research-kb/internal/data/repos"
	"github.com/yungbote/research-kb/internal/http/response"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

type CitationHandler struct {
	log       *logger.Logger
	citations repos.CitationRepo
	edges     repos.SourceCitationRepo
	authority repos.AuthorityService
}

func NewCitationHandler(log *logger.Logger, citations repos.CitationRepo, edges repos.SourceCitationRepo, authority repos.AuthorityService) *CitationHandler {
	return &CitationHandler{
		log:       log.With("handler", "CitationHandler"),
		citations: citations,
		edges:     edges,
		authority: authority,
	}
}

func (h *CitationHandler) ListBySource(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_source_id", err)
		return
	}
	list, err := h.citations.ListBySource(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		h.log.Error("list citations failed", "error", err, "source_id", id)
		response.RespondDomainError(c, "list_citations_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"source_id": id, "citations": list})
}

func (h *CitationHandler) RecomputeAuthority(c *gin.Context) {
	n, err := h.authority.Recompute(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		h.log.Error("authority recompute failed", "error", err)
		response.RespondDomainError(c, "authority_recompute_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"sources_scored": n})
}
