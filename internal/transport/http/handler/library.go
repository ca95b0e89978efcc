package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"lumina-research/internal/app"
	"lumina-research/internal/citation"
	"lumina-research/internal/library"
	"lumina-research/internal/synthesis"
	"lumina-research/internal/transport/http/response"
)

type LibraryHandler struct {
	workspace *app.WorkspaceService
	now       func() time.Time
}

type NavigateRequest struct {
	View string `json:"view" binding:"required"`
}

type SelectFolderRequest struct {
	FolderID string `json:"folder_id"`
}

type CreateFolderRequest struct {
	Name string `json:"name" binding:"required,max=128"`
}

type AddDocumentRequest struct {
	Title    string `json:"title" binding:"max=512"`
	URI      string `json:"uri" binding:"required,max=1024"`
	Snippet  string `json:"snippet"`
	FolderID string `json:"folder_id"`
}

type RenameDocumentRequest struct {
	Title string `json:"title" binding:"required,max=512"`
}

type MoveDocumentRequest struct {
	FolderID string `json:"folder_id" binding:"required"`
}

type NotesRequest struct {
	Notes string `json:"notes"`
}

type ExportCitationsRequest struct {
	DocumentIDs []string `json:"document_ids" binding:"required,min=1"`
	Format      string   `json:"format" binding:"required"`
}

func NewLibraryHandler(workspace *app.WorkspaceService) *LibraryHandler {
	return &LibraryHandler{workspace: workspace, now: time.Now}
}

func (h *LibraryHandler) State(c *gin.Context) {
	response.OK(c, h.workspace.State())
}

func (h *LibraryHandler) Navigate(c *gin.Context) {
	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if err := h.workspace.Navigate(app.View(req.View)); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}
	response.OK(c, h.workspace.State())
}

func (h *LibraryHandler) SelectFolder(c *gin.Context) {
	var req SelectFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if err := h.workspace.SelectFolder(req.FolderID); err != nil {
		writeLibraryError(c, err, "select folder failed")
		return
	}
	response.OK(c, h.workspace.State())
}

func (h *LibraryHandler) ListFolders(c *gin.Context) {
	response.OK(c, h.workspace.Folders())
}

func (h *LibraryHandler) CreateFolder(c *gin.Context) {
	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	folder, err := h.workspace.CreateFolder(req.Name)
	if err != nil {
		writeLibraryError(c, err, "create folder failed")
		return
	}
	response.OK(c, folder)
}

func (h *LibraryHandler) ListDocuments(c *gin.Context) {
	response.OK(c, h.workspace.ListDocuments(c.Query("folder_id")))
}

func (h *LibraryHandler) AddDocument(c *gin.Context) {
	var req AddDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	result, err := h.workspace.AddSource(app.AddSourceInput{
		Title:    req.Title,
		URI:      req.URI,
		Snippet:  req.Snippet,
		FolderID: req.FolderID,
	})
	if err != nil {
		writeLibraryError(c, err, "add document failed")
		return
	}
	response.OK(c, gin.H{
		"document": result.Document,
		"created":  result.Created,
	})
}

func (h *LibraryHandler) GetDocument(c *gin.Context) {
	doc, err := h.workspace.GetDocument(c.Param("id"))
	if err != nil {
		writeLibraryError(c, err, "get document failed")
		return
	}
	response.OK(c, gin.H{
		"document":  doc,
		"analyzing": h.workspace.Analyzing(doc.ID),
	})
}

func (h *LibraryHandler) RenameDocument(c *gin.Context) {
	var req RenameDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	doc, err := h.workspace.RenameDocument(c.Param("id"), req.Title)
	if err != nil {
		writeLibraryError(c, err, "rename document failed")
		return
	}
	response.OK(c, doc)
}

func (h *LibraryHandler) DeleteDocument(c *gin.Context) {
	id := c.Param("id")
	if err := h.workspace.DeleteDocument(id); err != nil {
		writeLibraryError(c, err, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted_document_id": id})
}

func (h *LibraryHandler) MoveDocument(c *gin.Context) {
	var req MoveDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if err := h.workspace.MoveDocument(c.Param("id"), req.FolderID); err != nil {
		writeLibraryError(c, err, "move document failed")
		return
	}
	response.OK(c, nil)
}

func (h *LibraryHandler) AnalyzeDocument(c *gin.Context) {
	doc, err := h.workspace.AnalyzeDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeLibraryError(c, err, "analyze document failed")
		return
	}
	response.OK(c, doc)
}

func (h *LibraryHandler) OpenDocument(c *gin.Context) {
	result, err := h.workspace.OpenDocument(c.Param("id"))
	if err != nil {
		writeLibraryError(c, err, "open document failed")
		return
	}
	response.OK(c, gin.H{
		"document": result.Document,
		"notes":    result.Notes,
		"dirty":    result.Dirty,
	})
}

func (h *LibraryHandler) CloseDocument(c *gin.Context) {
	h.workspace.CloseDocument()
	response.OK(c, h.workspace.State())
}

func (h *LibraryHandler) EditNotes(c *gin.Context) {
	var req NotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if err := h.workspace.EditNotes(c.Param("id"), req.Notes); err != nil {
		writeLibraryError(c, err, "edit notes failed")
		return
	}
	response.OK(c, nil)
}

func (h *LibraryHandler) EnterNotes(c *gin.Context) {
	result, err := h.workspace.EnterNotes(c.Param("id"))
	if err != nil {
		writeLibraryError(c, err, "enter notes failed")
		return
	}
	response.OK(c, gin.H{
		"document": result.Document,
		"notes":    result.Notes,
		"dirty":    result.Dirty,
	})
}

// LeaveNotes returns to the analysis tab once pending notes are written.
func (h *LibraryHandler) LeaveNotes(c *gin.Context) {
	if err := h.workspace.LeaveNotes(c.Param("id")); err != nil {
		writeLibraryError(c, err, "leave notes failed")
		return
	}
	response.OK(c, h.workspace.State())
}

func (h *LibraryHandler) SaveNotes(c *gin.Context) {
	if err := h.workspace.SaveNotes(c.Param("id")); err != nil {
		writeLibraryError(c, err, "save notes failed")
		return
	}
	response.OK(c, nil)
}

func (h *LibraryHandler) SynthesisStatus(c *gin.Context) {
	status, folder, err := h.workspace.SynthesisStatus(c.Param("id"))
	if err != nil {
		writeLibraryError(c, err, "get synthesis status failed")
		return
	}
	response.OK(c, newSynthesisView(status, folder.Synthesis, h.now()))
}

func (h *LibraryHandler) RefreshSynthesis(c *gin.Context) {
	if err := h.workspace.RefreshSynthesis(c.Param("id")); err != nil {
		writeLibraryError(c, err, "refresh synthesis failed")
		return
	}
	status, folder, err := h.workspace.SynthesisStatus(c.Param("id"))
	if err != nil {
		writeLibraryError(c, err, "get synthesis status failed")
		return
	}
	response.OK(c, newSynthesisView(status, folder.Synthesis, h.now()))
}

// ExportCitations answers with a file download rather than the JSON envelope.
func (h *LibraryHandler) ExportCitations(c *gin.Context) {
	var req ExportCitationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	format, err := citation.ParseFormat(req.Format)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}
	file, err := h.workspace.ExportCitations(req.DocumentIDs, format)
	if err != nil {
		writeLibraryError(c, err, "export citations failed")
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(file.Filename))
	c.Data(http.StatusOK, file.ContentType, []byte(file.Content))
}

func writeLibraryError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrUnknownView),
		errors.Is(err, library.ErrInvalidFolderName), errors.Is(err, synthesis.ErrNothingToSynthesize),
		errors.Is(err, citation.ErrUnknownFormat), errors.Is(err, citation.ErrNoDocuments):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
	case errors.Is(err, app.ErrFolderNotFound), errors.Is(err, synthesis.ErrFolderNotFound):
		response.Error(c, http.StatusNotFound, response.CodeFolderNotFound, err.Error())
	case errors.Is(err, library.ErrFolderExists):
		response.Error(c, http.StatusConflict, response.CodeFolderExists, err.Error())
	case errors.Is(err, app.ErrAnalysisInProgress):
		response.Error(c, http.StatusConflict, response.CodeAnalysisInProgress, err.Error())
	case errors.Is(err, synthesis.ErrSynthesisRunning):
		response.Error(c, http.StatusConflict, response.CodeSynthesisRunning, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
