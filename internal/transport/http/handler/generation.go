package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lumina-research/internal/ai"
	"lumina-research/internal/model"
)

// GenerationHandler exposes the generation service contract. Unlike the rest
// of the API it answers with bare JSON bodies and {"error": msg} on failure,
// which is what ai.RemoteGenerator consumes.
type GenerationHandler struct {
	generator ai.Generator
}

func NewGenerationHandler(generator ai.Generator) *GenerationHandler {
	return &GenerationHandler{generator: generator}
}

func (h *GenerationHandler) Analyze(c *gin.Context) {
	var req ai.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.URI) == "" {
		c.JSON(http.StatusBadRequest, ai.ErrorResponse{Error: "title and uri are required"})
		return
	}
	analysis, err := h.generator.Analyze(c.Request.Context(), req.Title, req.URI)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ai.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ai.AnalyzeResponseFrom(*analysis))
}

func (h *GenerationHandler) Research(c *gin.Context) {
	var req ai.ResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Topic) == "" {
		c.JSON(http.StatusBadRequest, ai.ErrorResponse{Error: "topic is required"})
		return
	}
	result, err := h.generator.Research(c.Request.Context(), req.Topic, req.Filters, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ai.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ai.ResearchResponse{
		Text:              result.Text,
		GroundingMetadata: ai.GroundingFromSources(result.Sources),
	})
}

func (h *GenerationHandler) Synthesize(c *gin.Context) {
	var req ai.SynthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Documents) == 0 {
		c.JSON(http.StatusBadRequest, ai.ErrorResponse{Error: "documents are required"})
		return
	}
	docs := make([]model.Document, 0, len(req.Documents))
	for _, d := range req.Documents {
		docs = append(docs, model.Document{Title: d.Title, Summary: d.Summary, KeyFindings: d.KeyFindings})
	}
	text, err := h.generator.Synthesize(c.Request.Context(), docs, req.FolderName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ai.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ai.SynthesizeResponse{Synthesis: text})
}
