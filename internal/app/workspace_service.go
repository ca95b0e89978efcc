package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"lumina-research/internal/autosave"
	"lumina-research/internal/citation"
	"lumina-research/internal/library"
	"lumina-research/internal/model"
	"lumina-research/internal/synthesis"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrFolderNotFound     = errors.New("folder not found")
	ErrAnalysisInProgress = errors.New("analysis already in progress for document")
	ErrUnknownView        = errors.New("unknown view")
)

type View string

const (
	ViewResearch View = "research"
	ViewLibrary  View = "library"
)

// DocumentTab is the pane shown for the open document. Notes autosave only
// runs while TabNotes is showing.
type DocumentTab string

const (
	TabAnalysis DocumentTab = "analysis"
	TabNotes    DocumentTab = "notes"
)

// DocumentAnalyzer is satisfied by enrich.Enricher.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, title, uri string) model.Analysis
}

// WorkspaceService is the single user's library session: what is in view,
// which document is open, and every library mutation that can start
// background work.
type WorkspaceService struct {
	store    *library.Store
	registry *library.Registry
	analyzer DocumentAnalyzer
	trigger  *synthesis.Trigger
	notes    *autosave.Controller
	timeout  time.Duration

	// mu guards only the fields below. It is never held while calling
	// into the store, the trigger or the notes controller.
	mu        sync.Mutex
	view      View
	folderID  string
	selected  string
	tab       DocumentTab
	analyzing map[string]struct{}
}

type WorkspaceState struct {
	View               View        `json:"view"`
	ActiveFolderID     string      `json:"active_folder_id"`
	SelectedDocumentID string      `json:"selected_document_id"`
	DocumentTab        DocumentTab `json:"document_tab,omitempty"`
}

type AddSourceInput struct {
	Title    string
	URI      string
	Snippet  string
	FolderID string
}

type AddSourceResult struct {
	Document model.Document
	Created  bool
}

type OpenDocumentResult struct {
	Document model.Document
	Notes    string
	Dirty    bool
}

func NewWorkspaceService(
	store *library.Store,
	analyzer DocumentAnalyzer,
	trigger *synthesis.Trigger,
	notes *autosave.Controller,
	analyzeTimeout time.Duration,
) *WorkspaceService {
	if analyzeTimeout <= 0 {
		analyzeTimeout = 90 * time.Second
	}
	w := &WorkspaceService{
		store:     store,
		registry:  library.NewRegistry(store),
		analyzer:  analyzer,
		trigger:   trigger,
		notes:     notes,
		timeout:   analyzeTimeout,
		view:      ViewResearch,
		analyzing: make(map[string]struct{}),
	}
	store.Subscribe(func(library.Event) { w.observe() })
	return w
}

func (w *WorkspaceService) Registry() *library.Registry {
	return w.registry
}

func (w *WorkspaceService) State() WorkspaceState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkspaceState{View: w.view, ActiveFolderID: w.folderID, SelectedDocumentID: w.selected, DocumentTab: w.tab}
}

// Navigate switches between the research and library views and closes the
// open document.
func (w *WorkspaceService) Navigate(view View) error {
	if view != ViewResearch && view != ViewLibrary {
		return ErrUnknownView
	}
	w.CloseDocument()

	w.mu.Lock()
	w.view = view
	w.mu.Unlock()

	w.observe()
	return nil
}

// SelectFolder shows folderID in the library view. An empty id shows every
// document.
func (w *WorkspaceService) SelectFolder(folderID string) error {
	folderID = strings.TrimSpace(folderID)
	if folderID != "" {
		if _, ok := w.store.Folder(folderID); !ok {
			return ErrFolderNotFound
		}
	}

	w.mu.Lock()
	w.view = ViewLibrary
	w.folderID = folderID
	w.mu.Unlock()

	w.observe()
	return nil
}

// AddSource saves a source into the given folder, or the active folder when
// none is given. Saving a URI that is already in the library returns the
// existing document.
func (w *WorkspaceService) AddSource(input AddSourceInput) (*AddSourceResult, error) {
	uri := strings.TrimSpace(input.URI)
	if uri == "" {
		return nil, ErrInvalidInput
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = uri
	}
	folderID := strings.TrimSpace(input.FolderID)
	if folderID == "" {
		folderID = w.State().ActiveFolderID
	}

	doc, created := w.registry.Track(library.Source{Title: title, URI: uri, Snippet: input.Snippet}, folderID)
	return &AddSourceResult{Document: doc, Created: created}, nil
}

func (w *WorkspaceService) ListDocuments(folderID string) []model.Document {
	if folderID == "" {
		return w.store.Documents()
	}
	return w.store.DocumentsInFolder(folderID)
}

func (w *WorkspaceService) GetDocument(id string) (*model.Document, error) {
	doc, ok := w.store.Document(id)
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return &doc, nil
}

// OpenDocument selects id on its analysis tab and starts an inactive notes
// session for it. A previously open document is flushed and closed first.
// Reopening the selected document keeps its tab.
func (w *WorkspaceService) OpenDocument(id string) (*OpenDocumentResult, error) {
	session, err := w.notes.Open(id)
	if err != nil {
		if errors.Is(err, autosave.ErrDocumentNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	doc, ok := w.store.Document(id)
	if !ok {
		w.notes.Discard(id)
		return nil, ErrDocumentNotFound
	}

	w.mu.Lock()
	if w.selected != id {
		w.selected = id
		w.tab = TabAnalysis
	}
	w.mu.Unlock()

	return &OpenDocumentResult{Document: doc, Notes: session.Notes(), Dirty: session.Dirty()}, nil
}

// CloseDocument flushes pending notes and clears the selection.
func (w *WorkspaceService) CloseDocument() {
	w.notes.CloseCurrent()
	w.mu.Lock()
	w.selected = ""
	w.tab = ""
	w.mu.Unlock()
}

// AnalyzeDocument runs enrichment for id and commits the result. The call is
// not tied to the caller's context: navigating away does not cancel it, and
// the result lands on the document by id. Failures commit the fallback
// analysis.
func (w *WorkspaceService) AnalyzeDocument(ctx context.Context, id string) (*model.Document, error) {
	doc, ok := w.store.Document(id)
	if !ok {
		return nil, ErrDocumentNotFound
	}

	w.mu.Lock()
	if _, busy := w.analyzing[id]; busy {
		w.mu.Unlock()
		return nil, ErrAnalysisInProgress
	}
	w.analyzing[id] = struct{}{}
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.analyzing, id)
		w.mu.Unlock()
	}()

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	analysis := w.analyzer.Analyze(callCtx, doc.Title, doc.URI)
	cancel()

	if !w.store.UpdateDocument(id, library.DocumentPatch{Analysis: &analysis}) {
		return nil, ErrDocumentNotFound
	}
	updated, ok := w.store.Document(id)
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return &updated, nil
}

func (w *WorkspaceService) Analyzing(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.analyzing[id]
	return ok
}

func (w *WorkspaceService) RenameDocument(id, title string) (*model.Document, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrInvalidInput
	}
	if !w.store.UpdateDocument(id, library.DocumentPatch{Title: &title}) {
		return nil, ErrDocumentNotFound
	}
	return w.GetDocument(id)
}

// DeleteDocument removes id. Unsaved notes for it are dropped and the
// selection is cleared if it pointed at id.
func (w *WorkspaceService) DeleteDocument(id string) error {
	w.notes.Discard(id)
	w.mu.Lock()
	if w.selected == id {
		w.selected = ""
	}
	w.mu.Unlock()

	if !w.store.DeleteDocument(id) {
		return ErrDocumentNotFound
	}
	return nil
}

func (w *WorkspaceService) MoveDocument(id, folderID string) error {
	if err := w.store.MoveDocument(id, folderID); err != nil {
		if errors.Is(err, library.ErrFolderNotFound) {
			return ErrFolderNotFound
		}
		return err
	}
	return nil
}

func (w *WorkspaceService) Folders() []model.Folder {
	return w.store.Folders()
}

func (w *WorkspaceService) CreateFolder(name string) (model.Folder, error) {
	return w.store.CreateFolder(name)
}

func (w *WorkspaceService) RefreshSynthesis(folderID string) error {
	return w.trigger.Refresh(folderID)
}

func (w *WorkspaceService) SynthesisStatus(folderID string) (synthesis.Status, model.Folder, error) {
	folder, ok := w.store.Folder(folderID)
	if !ok {
		return synthesis.Status{}, model.Folder{}, ErrFolderNotFound
	}
	return w.trigger.Status(folderID), folder, nil
}

// EditNotes updates the working copy of id's notes, opening the document if
// it is not the one currently open.
func (w *WorkspaceService) EditNotes(id, notes string) error {
	session, err := w.session(id)
	if err != nil {
		return err
	}
	return session.Edit(notes)
}

// EnterNotes shows the notes tab of id, opening the document if needed, and
// starts the periodic notes flush.
func (w *WorkspaceService) EnterNotes(id string) (*OpenDocumentResult, error) {
	session, err := w.session(id)
	if err != nil {
		return nil, err
	}
	if err := session.Activate(); err != nil {
		return nil, err
	}
	doc, ok := w.store.Document(id)
	if !ok {
		return nil, ErrDocumentNotFound
	}

	w.mu.Lock()
	w.selected = id
	w.tab = TabNotes
	w.mu.Unlock()

	return &OpenDocumentResult{Document: doc, Notes: session.Notes(), Dirty: session.Dirty()}, nil
}

// LeaveNotes switches id back to the analysis tab. Pending edits are written
// before it returns and the periodic flush stops.
func (w *WorkspaceService) LeaveNotes(id string) error {
	current := w.notes.Current()
	if current == nil || current.DocumentID() != id {
		if _, ok := w.store.Document(id); !ok {
			return ErrDocumentNotFound
		}
		return nil
	}

	err := current.Deactivate()

	w.mu.Lock()
	if w.selected == id {
		w.tab = TabAnalysis
	}
	w.mu.Unlock()

	if errors.Is(err, autosave.ErrDocumentNotFound) {
		return ErrDocumentNotFound
	}
	return err
}

func (w *WorkspaceService) SaveNotes(id string) error {
	session, err := w.session(id)
	if err != nil {
		return err
	}
	if err := session.Save(); err != nil {
		if errors.Is(err, autosave.ErrDocumentNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}
	return nil
}

func (w *WorkspaceService) ExportCitations(ids []string, format citation.Format) (*citation.File, error) {
	if len(ids) == 0 {
		return nil, ErrInvalidInput
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var docs []model.Document
	for _, doc := range w.store.Documents() {
		if _, ok := wanted[doc.ID]; ok {
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 {
		return nil, ErrDocumentNotFound
	}
	return citation.Export(docs, format)
}

// Close flushes the open notes session and stops background synthesis.
func (w *WorkspaceService) Close() {
	w.notes.CloseCurrent()
	w.trigger.Close()
}

func (w *WorkspaceService) session(id string) (*autosave.Session, error) {
	if current := w.notes.Current(); current != nil && current.DocumentID() == id {
		return current, nil
	}
	if _, err := w.OpenDocument(id); err != nil {
		return nil, err
	}
	session := w.notes.Current()
	if session == nil {
		return nil, ErrDocumentNotFound
	}
	return session, nil
}

// observe hands the folder in view to the synthesis trigger. Nothing is in
// view outside the library or when all documents are listed.
func (w *WorkspaceService) observe() {
	w.mu.Lock()
	folderID := ""
	if w.view == ViewLibrary {
		folderID = w.folderID
	}
	w.mu.Unlock()
	w.trigger.Observe(folderID)
}
