package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/research-kb/internal/data/repos"
	types "github.com/yungbote/research-kb/internal/domain"
	"github.com/yungbote/research-kb/internal/http/response"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

type SourceHandler struct {
	log       *logger.Logger
	sources   repos.SourceRepo
	chunks    repos.ChunkRepo
	citations repos.SourceCitationRepo
}

func NewSourceHandler(log *logger.Logger, sources repos.SourceRepo, chunks repos.ChunkRepo, citations repos.SourceCitationRepo) *SourceHandler {
	return &SourceHandler{
		log:       log.With("handler", "SourceHandler"),
		sources:   sources,
		chunks:    chunks,
		citations: citations,
	}
}

func (h *SourceHandler) List(c *gin.Context) {
	var sourceType *types.SourceType
	if raw := c.Query("source_type"); raw != "" {
		st := types.SourceType(raw)
		if !st.Valid() {
			response.RespondError(c, http.StatusBadRequest, "invalid_source_type", nil)
			return
		}
		sourceType = &st
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := h.sources.List(dbctx.Context{Ctx: c.Request.Context()}, sourceType, limit, offset)
	if err != nil {
		h.log.Error("list sources failed", "error", err)
		response.RespondDomainError(c, "list_sources_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"sources": list})
}

func (h *SourceHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_source_id", err)
		return
	}
	source, err := h.sources.GetByID(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		h.log.Error("get source failed", "error", err, "source_id", id)
		response.RespondDomainError(c, "get_source_failed", err)
		return
	}
	if source == nil {
		response.RespondError(c, http.StatusNotFound, "source_not_found", nil)
		return
	}
	response.RespondOK(c, source)
}

func (h *SourceHandler) ListChunks(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_source_id", err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	chunks, err := h.chunks.ListBySource(dbctx.Context{Ctx: c.Request.Context()}, id, limit, offset)
	if err != nil {
		h.log.Error("list chunks failed", "error", err, "source_id", id)
		response.RespondDomainError(c, "list_chunks_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"source_id": id, "chunks": chunks})
}

// Delete removes a source and, through the cascade, its chunks,
// citations, and chunk-concept links.
func (h *SourceHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_source_id", err)
		return
	}
	deleted, err := h.sources.Delete(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		h.log.Error("delete source failed", "error", err, "source_id", id)
		response.RespondDomainError(c, "delete_source_failed", err)
		return
	}
	if !deleted {
		response.RespondError(c, http.StatusNotFound, "source_not_found", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SourceHandler) MostCited(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	most, err := h.citations.MostCited(dbctx.Context{Ctx: c.Request.Context()}, limit)
	if err != nil {
		h.log.Error("most cited failed", "error", err)
		response.RespondDomainError(c, "most_cited_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"most_cited": most})
}
