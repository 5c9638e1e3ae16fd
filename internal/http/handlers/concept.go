package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/research-kb/internal/data/repos"
	"github.com/yungbote/research-kb/internal/dedup"
	types "github.com/yungbote/research-kb/internal/domain"
	"github.com/yungbote/research-kb/internal/http/response"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

type ConceptHandler struct {
	log      *logger.Logger
	concepts repos.ConceptRepo
}

func NewConceptHandler(log *logger.Logger, concepts repos.ConceptRepo) *ConceptHandler {
	return &ConceptHandler{log: log.With("handler", "ConceptHandler"), concepts: concepts}
}

func (h *ConceptHandler) List(c *gin.Context) {
	var conceptType *types.ConceptType
	if raw := c.Query("concept_type"); raw != "" {
		ct := types.ConceptType(raw)
		if !ct.Valid() {
			response.RespondError(c, http.StatusBadRequest, "invalid_concept_type", nil)
			return
		}
		conceptType = &ct
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	list, err := h.concepts.List(dbc, conceptType, limit, offset)
	if err != nil {
		h.log.Error("list concepts failed", "error", err)
		response.RespondDomainError(c, "list_concepts_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"concepts": list})
}

func (h *ConceptHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_concept_id", err)
		return
	}
	concept, err := h.concepts.GetByID(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		h.log.Error("get concept failed", "error", err, "concept_id", id)
		response.RespondDomainError(c, "get_concept_failed", err)
		return
	}
	if concept == nil {
		response.RespondError(c, http.StatusNotFound, "concept_not_found", nil)
		return
	}
	response.RespondOK(c, concept)
}

// Lookup resolves a free-form name: canonicalize, try the exact
// canonical row, then aliases, then trigram fuzzy matches.
func (h *ConceptHandler) Lookup(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_name", nil)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	canonical := dedup.CanonicalName(name)

	concept, err := h.concepts.GetByCanonicalName(dbc, canonical)
	if err != nil {
		h.log.Error("concept lookup failed", "error", err, "name", name)
		response.RespondDomainError(c, "lookup_failed", err)
		return
	}
	if concept == nil {
		concept, err = h.concepts.GetByAlias(dbc, name)
		if err != nil {
			h.log.Error("concept alias lookup failed", "error", err, "name", name)
			response.RespondDomainError(c, "lookup_failed", err)
			return
		}
	}
	if concept != nil {
		response.RespondOK(c, gin.H{"concept": concept, "canonical_name": canonical})
		return
	}

	suggestions, err := h.concepts.SearchFuzzy(dbc, canonical, 5)
	if err != nil {
		h.log.Error("concept fuzzy lookup failed", "error", err, "name", name)
		response.RespondDomainError(c, "lookup_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"concept": nil, "canonical_name": canonical, "suggestions": suggestions})
}

func (h *ConceptHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_concept_id", err)
		return
	}
	deleted, err := h.concepts.Delete(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		h.log.Error("delete concept failed", "error", err, "concept_id", id)
		response.RespondDomainError(c, "delete_concept_failed", err)
		return
	}
	if !deleted {
		response.RespondError(c, http.StatusNotFound, "concept_not_found", nil)
		return
	}
	c.Status(http.StatusNoContent)
}
