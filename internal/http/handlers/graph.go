package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/research-kb/internal/data/graph"
	types "github.com/yungbote/research-kb/internal/domain"
	"github.com/yungbote/research-kb/internal/http/response"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

type GraphHandler struct {
	log   *logger.Logger
	graph graph.GraphService
}

func NewGraphHandler(log *logger.Logger, svc graph.GraphService) *GraphHandler {
	return &GraphHandler{log: log.With("handler", "GraphHandler"), graph: svc}
}

func (h *GraphHandler) ShortestPath(c *gin.Context) {
	fromID, err := uuid.Parse(c.Query("from"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_from", err)
		return
	}
	toID, err := uuid.Parse(c.Query("to"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_to", err)
		return
	}
	maxHops, _ := strconv.Atoi(c.DefaultQuery("max_hops", "0"))

	path, err := h.graph.ShortestPath(dbctx.Context{Ctx: c.Request.Context()}, fromID, toID, maxHops)
	if err != nil {
		h.log.Error("shortest path failed", "error", err, "from", fromID, "to", toID)
		response.RespondDomainError(c, "path_query_failed", err)
		return
	}
	if path == nil {
		response.RespondError(c, http.StatusNotFound, "path_not_found", nil)
		return
	}
	response.RespondOK(c, path)
}

func (h *GraphHandler) Neighborhood(c *gin.Context) {
	centerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_concept_id", err)
		return
	}
	hops, _ := strconv.Atoi(c.DefaultQuery("hops", "1"))

	var conceptType *types.ConceptType
	if raw := c.Query("concept_type"); raw != "" {
		ct := types.ConceptType(raw)
		if !ct.Valid() {
			response.RespondError(c, http.StatusBadRequest, "invalid_concept_type", nil)
			return
		}
		conceptType = &ct
	}

	neighbors, err := h.graph.Neighborhood(dbctx.Context{Ctx: c.Request.Context()}, centerID, hops, conceptType)
	if err != nil {
		h.log.Error("neighborhood failed", "error", err, "center", centerID)
		response.RespondDomainError(c, "neighborhood_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"center": centerID, "neighbors": neighbors})
}
