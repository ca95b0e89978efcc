package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"lumina-research/internal/app"
	"lumina-research/internal/model"
	"lumina-research/internal/transport/http/response"
)

type ResearchHandler struct {
	research *app.ResearchService
}

type ResearchRequest struct {
	Topic   string              `json:"topic" binding:"required,max=512"`
	Filters model.SearchFilters `json:"filters"`
}

type SavedSourcesRequest struct {
	Sources []model.GroundingSource `json:"sources"`
}

func NewResearchHandler(research *app.ResearchService) *ResearchHandler {
	return &ResearchHandler{research: research}
}

// Stream answers with server-sent events: "chunk" events carry the text
// accumulated so far, a final "done" event carries the full result.
func (h *ResearchHandler) Stream(c *gin.Context) {
	var req ResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	out, err := h.research.Research(c.Request.Context(), app.ResearchInput{
		Topic:   req.Topic,
		Filters: req.Filters,
	}, func(text string) error {
		if err := writeEvent(c, "chunk", gin.H{"text": text}); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		msg := err.Error()
		if errors.Is(err, app.ErrInvalidInput) {
			msg = "topic is required"
		}
		if writeErr := writeEvent(c, "error", gin.H{"message": msg}); writeErr == nil {
			flusher.Flush()
		}
		return
	}

	if writeErr := writeEvent(c, "done", out); writeErr == nil {
		flusher.Flush()
	}
}

// Saved re-checks which sources are already in the library, e.g. after the
// user saved one of them.
func (h *ResearchHandler) Saved(c *gin.Context) {
	var req SavedSourcesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	response.OK(c, h.research.MarkSaved(req.Sources))
}

func writeEvent(c *gin.Context, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event failed: %w", event, err)
	}
	_, err = fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
	return err
}
