package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/research-kb/internal/domain"
	"github.com/yungbote/research-kb/internal/http/response"
	"github.com/yungbote/research-kb/internal/ingest"
	"github.com/yungbote/research-kb/internal/platform/dbctx"
	"github.com/yungbote/research-kb/internal/platform/logger"
)

type IngestHandler struct {
	log      *logger.Logger
	pipeline ingest.Pipeline
}

func NewIngestHandler(log *logger.Logger, pipeline ingest.Pipeline) *IngestHandler {
	return &IngestHandler{log: log.With("handler", "IngestHandler"), pipeline: pipeline}
}

type ingestSourceRequest struct {
	SourceType string                 `json:"source_type"`
	Title      string                 `json:"title"`
	Authors    []string               `json:"authors"`
	Year       *int                   `json:"year"`
	FilePath   *string                `json:"file_path"`
	FileHash   string                 `json:"file_hash"`
	Metadata   map[string]interface{} `json:"metadata"`

	Chunks []ingestChunkRequest `json:"chunks"`
}

type ingestChunkRequest struct {
	Content     string                 `json:"content"`
	ContentHash string                 `json:"content_hash"`
	Location    *string                `json:"location"`
	PageStart   *int                   `json:"page_start"`
	PageEnd     *int                   `json:"page_end"`
	Embedding   []float32              `json:"embedding"`
	Metadata    map[string]interface{} `json:"metadata"`
}

func (h *IngestHandler) IngestSource(c *gin.Context) {
	var req ingestSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	chunks := make([]ingest.ChunkInput, 0, len(req.Chunks))
	for _, in := range req.Chunks {
		chunks = append(chunks, ingest.ChunkInput{
			Content:     in.Content,
			ContentHash: in.ContentHash,
			Location:    in.Location,
			PageStart:   in.PageStart,
			PageEnd:     in.PageEnd,
			Embedding:   in.Embedding,
			Metadata:    in.Metadata,
		})
	}

	res, err := h.pipeline.IngestSource(dbctx.Context{Ctx: c.Request.Context()}, ingest.SourceInput{
		SourceType: types.SourceType(req.SourceType),
		Title:      req.Title,
		Authors:    req.Authors,
		Year:       req.Year,
		FilePath:   req.FilePath,
		FileHash:   req.FileHash,
		Metadata:   req.Metadata,
	}, chunks)
	if err != nil {
		h.log.Error("ingest source failed", "error", err, "title", req.Title)
		response.RespondDomainError(c, "ingest_source_failed", err)
		return
	}
	if !res.SourceCreated {
		response.RespondOK(c, res)
		return
	}
	response.RespondCreated(c, res)
}

type ingestConceptsRequest struct {
	Concepts      []ingestConceptRequest      `json:"concepts"`
	Relationships []ingestRelationshipRequest `json:"relationships"`
}

type ingestConceptRequest struct {
	Name             string                 `json:"name"`
	ConceptType      string                 `json:"concept_type"`
	Category         *string                `json:"category"`
	Definition       *string                `json:"definition"`
	Aliases          []string               `json:"aliases"`
	Embedding        []float32              `json:"embedding"`
	ExtractionMethod *string                `json:"extraction_method"`
	Confidence       *float64               `json:"confidence"`
	Mentions         []ingestMentionRequest `json:"mentions"`
}

type ingestMentionRequest struct {
	ChunkID        uuid.UUID `json:"chunk_id"`
	MentionType    string    `json:"mention_type"`
	RelevanceScore *float64  `json:"relevance_score"`
}

type ingestRelationshipRequest struct {
	SourceName       string      `json:"source_name"`
	TargetName       string      `json:"target_name"`
	RelationshipType string      `json:"relationship_type"`
	IsDirected       *bool       `json:"is_directed"`
	Strength         float64     `json:"strength"`
	Confidence       *float64    `json:"confidence"`
	EvidenceChunkIDs []uuid.UUID `json:"evidence_chunk_ids"`
}

func (h *IngestHandler) IngestConcepts(c *gin.Context) {
	var req ingestConceptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	concepts := make([]ingest.ConceptInput, 0, len(req.Concepts))
	for _, in := range req.Concepts {
		mentions := make([]ingest.MentionInput, 0, len(in.Mentions))
		for _, m := range in.Mentions {
			mentions = append(mentions, ingest.MentionInput{
				ChunkID:        m.ChunkID,
				MentionType:    types.MentionType(m.MentionType),
				RelevanceScore: m.RelevanceScore,
			})
		}
		concepts = append(concepts, ingest.ConceptInput{
			Name:             in.Name,
			ConceptType:      types.ConceptType(in.ConceptType),
			Category:         in.Category,
			Definition:       in.Definition,
			Aliases:          in.Aliases,
			Embedding:        in.Embedding,
			ExtractionMethod: in.ExtractionMethod,
			Confidence:       in.Confidence,
			Mentions:         mentions,
		})
	}

	rels := make([]ingest.RelationshipInput, 0, len(req.Relationships))
	for _, in := range req.Relationships {
		directed := true
		if in.IsDirected != nil {
			directed = *in.IsDirected
		}
		rels = append(rels, ingest.RelationshipInput{
			SourceName:       in.SourceName,
			TargetName:       in.TargetName,
			RelationshipType: types.RelationshipType(in.RelationshipType),
			IsDirected:       directed,
			Strength:         in.Strength,
			Confidence:       in.Confidence,
			EvidenceChunkIDs: in.EvidenceChunkIDs,
		})
	}

	res, err := h.pipeline.IngestConcepts(dbctx.Context{Ctx: c.Request.Context()}, concepts, rels)
	if err != nil {
		h.log.Error("ingest concepts failed", "error", err)
		response.RespondDomainError(c, "ingest_concepts_failed", err)
		return
	}
	response.RespondCreated(c, res)
}
