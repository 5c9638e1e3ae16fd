package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/research-kb/internal/http/response"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
	"github.com/yungbote/research-kb/internal/search"

	types "github.com/yungbote/research-kb/internal/domain"
)

type SearchHandler struct {
	log     *logger.Logger
	search  search.HybridService
	presets map[search.Preset]search.Weights
}

func NewSearchHandler(log *logger.Logger, svc search.HybridService, presets map[search.Preset]search.Weights) *SearchHandler {
	return &SearchHandler{
		log:     log.With("handler", "SearchHandler"),
		search:  svc,
		presets: presets,
	}
}

type searchRequest struct {
	Text       string          `json:"text"`
	Embedding  []float32       `json:"embedding"`
	Limit      int             `json:"limit"`
	SourceType *string         `json:"source_type"`
	UseGraph   bool            `json:"use_graph"`
	MaxHops    int             `json:"max_hops"`
	Preset     string          `json:"preset"`
	Weights    *search.Weights `json:"weights"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	q := &search.Query{
		Text:      req.Text,
		Embedding: req.Embedding,
		Limit:     req.Limit,
		UseGraph:  req.UseGraph,
		MaxHops:   req.MaxHops,
	}
	if req.SourceType != nil {
		st := types.SourceType(*req.SourceType)
		q.SourceType = &st
	}
	// Explicit weights win over a named preset.
	switch {
	case req.Weights != nil:
		q.Weights = req.Weights
	case req.Preset != "":
		w, ok := h.presets[search.Preset(req.Preset)]
		if !ok {
			w = search.PresetWeights(search.Preset(req.Preset))
		}
		q.Weights = &w
	}

	resp, err := h.search.Search(dbctx.Context{Ctx: c.Request.Context()}, q)
	if err != nil {
		h.log.Error("search failed", "error", err, "query", req.Text)
		response.RespondDomainError(c, "search_failed", err)
		return
	}
	response.RespondOK(c, resp)
}
