// Package library holds the authoritative in-memory collection of documents
// and folders. Every mutation goes through Store; readers get copies.
package library

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lumina-research/internal/model"
)

var (
	ErrFolderNotFound    = errors.New("folder not found")
	ErrFolderExists      = errors.New("folder already exists")
	ErrInvalidFolderName = errors.New("invalid folder name")
)

// Source is what the user asks to save.
type Source struct {
	Title   string
	URI     string
	Snippet string
}

// DocumentPatch carries only the fields to change. Analysis sets summary,
// key findings and citation metadata together.
type DocumentPatch struct {
	Title     *string
	UserNotes *string
	Analysis  *model.Analysis
}

type Store struct {
	mu        sync.RWMutex
	documents []*model.Document
	folders   []*model.Folder
	now       func() time.Time
	newID     func() string

	listenerMu sync.RWMutex
	listeners  []Listener

	// queueMu is taken inside mu and never held while a listener runs.
	queueMu     sync.Mutex
	queue       []Event
	seq         uint64
	dispatching bool
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// NewStore creates a store seeded with the given folders. The default folder
// is always present.
func NewStore(seed []model.Folder, opts ...Option) *Store {
	s := &Store{
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	hasDefault := false
	for _, f := range seed {
		if f.ID == model.DefaultFolderID {
			hasDefault = true
		}
	}
	if !hasDefault {
		s.folders = append(s.folders, &model.Folder{ID: model.DefaultFolderID, Name: "General"})
	}
	for _, f := range seed {
		if f.ID == "" || s.folderLocked(f.ID) != nil {
			continue
		}
		folder := f
		s.folders = append(s.folders, &folder)
	}
	return s
}

// AddDocument inserts a new document, newest first. If a document with the
// same URI exists it is returned unchanged with created=false.
func (s *Store) AddDocument(src Source, folderID string) (model.Document, bool) {
	uri := strings.TrimSpace(src.URI)

	s.mu.Lock()
	if existing := s.documentByURILocked(uri); existing != nil {
		out := existing.Clone()
		s.mu.Unlock()
		return out, false
	}
	if folderID == "" || s.folderLocked(folderID) == nil {
		folderID = model.DefaultFolderID
	}
	doc := &model.Document{
		ID:       s.newID(),
		FolderID: folderID,
		Title:    strings.TrimSpace(src.Title),
		URI:      uri,
		Snippet:  src.Snippet,
		AddedAt:  s.now(),
	}
	s.documents = append([]*model.Document{doc}, s.documents...)
	out := doc.Clone()
	s.enqueueLocked(Event{Kind: EventDocumentAdded, DocumentID: out.ID, FolderID: out.FolderID, Document: &out})
	s.mu.Unlock()

	s.dispatch()
	return out, true
}

// UpdateDocument applies the patch. Unknown ids are ignored.
func (s *Store) UpdateDocument(id string, patch DocumentPatch) bool {
	s.mu.Lock()
	doc := s.documentLocked(id)
	if doc == nil {
		s.mu.Unlock()
		return false
	}
	if patch.Title != nil {
		doc.Title = *patch.Title
	}
	if patch.UserNotes != nil {
		doc.UserNotes = *patch.UserNotes
	}
	if patch.Analysis != nil {
		meta := patch.Analysis.CitationMetadata.Clone()
		doc.Summary = patch.Analysis.Summary
		doc.KeyFindings = append([]string{}, patch.Analysis.Findings...)
		doc.CitationMetadata = &meta
	}
	out := doc.Clone()
	s.enqueueLocked(Event{Kind: EventDocumentUpdated, DocumentID: id, FolderID: out.FolderID, Document: &out})
	s.mu.Unlock()

	s.dispatch()
	return true
}

func (s *Store) DeleteDocument(id string) bool {
	s.mu.Lock()
	idx := -1
	for i, d := range s.documents {
		if d.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	folderID := s.documents[idx].FolderID
	s.documents = append(s.documents[:idx], s.documents[idx+1:]...)
	s.enqueueLocked(Event{Kind: EventDocumentDeleted, DocumentID: id, FolderID: folderID})
	s.mu.Unlock()

	s.dispatch()
	return true
}

// MoveDocument reassigns a document to an existing folder. An unknown document
// is a no-op; an unknown folder is rejected.
func (s *Store) MoveDocument(id, folderID string) error {
	s.mu.Lock()
	if s.folderLocked(folderID) == nil {
		s.mu.Unlock()
		return ErrFolderNotFound
	}
	doc := s.documentLocked(id)
	if doc == nil {
		s.mu.Unlock()
		return nil
	}
	from := doc.FolderID
	doc.FolderID = folderID
	out := doc.Clone()
	s.enqueueLocked(Event{Kind: EventDocumentMoved, DocumentID: id, FolderID: folderID, PreviousFolderID: from, Document: &out})
	s.mu.Unlock()

	s.dispatch()
	return nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// FolderID derives the id of a user-created folder from its name.
func FolderID(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// CreateFolder adds a folder whose id is derived from name. Names that derive
// an id already in use are rejected.
func (s *Store) CreateFolder(name string) (model.Folder, error) {
	name = strings.TrimSpace(name)
	id := FolderID(name)
	if id == "" {
		return model.Folder{}, ErrInvalidFolderName
	}

	s.mu.Lock()
	if s.folderLocked(id) != nil {
		s.mu.Unlock()
		return model.Folder{}, ErrFolderExists
	}
	folder := &model.Folder{ID: id, Name: name}
	s.folders = append(s.folders, folder)
	out := *folder
	s.enqueueLocked(Event{Kind: EventFolderCreated, FolderID: id, Folder: &out})
	s.mu.Unlock()

	s.dispatch()
	return out, nil
}

// SetFolderSynthesis replaces the folder synthesis. Unknown ids are ignored.
func (s *Store) SetFolderSynthesis(folderID, text string) bool {
	s.mu.Lock()
	folder := s.folderLocked(folderID)
	if folder == nil {
		s.mu.Unlock()
		return false
	}
	folder.Synthesis = text
	out := *folder
	s.enqueueLocked(Event{Kind: EventFolderSynthesis, FolderID: folderID, Folder: &out})
	s.mu.Unlock()

	s.dispatch()
	return true
}

func (s *Store) Document(id string) (model.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := s.documentLocked(id)
	if doc == nil {
		return model.Document{}, false
	}
	return doc.Clone(), true
}

// Documents returns all documents, newest first.
func (s *Store) Documents() []model.Document {
	return s.filter(func(*model.Document) bool { return true })
}

func (s *Store) DocumentsInFolder(folderID string) []model.Document {
	return s.filter(func(d *model.Document) bool { return d.FolderID == folderID })
}

// AnalyzedDocuments returns the documents of a folder that have a summary.
func (s *Store) AnalyzedDocuments(folderID string) []model.Document {
	return s.filter(func(d *model.Document) bool { return d.FolderID == folderID && d.Analyzed() })
}

func (s *Store) Folder(id string) (model.Folder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := s.folderLocked(id)
	if f == nil {
		return model.Folder{}, false
	}
	return *f, true
}

func (s *Store) Folders() []model.Folder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Folder, 0, len(s.folders))
	for _, f := range s.folders {
		out = append(out, *f)
	}
	return out
}

// URIs projects the URI of every stored document.
func (s *Store) URIs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.documents))
	for _, d := range s.documents {
		out = append(out, d.URI)
	}
	return out
}

// Restore merges persisted folders and documents into the store. Documents
// whose folder is unknown fall back to the default folder; duplicate URIs are
// skipped.
func (s *Store) Restore(folders []model.Folder, documents []model.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range folders {
		if existing := s.folderLocked(f.ID); existing != nil {
			existing.Synthesis = f.Synthesis
			continue
		}
		folder := f
		s.folders = append(s.folders, &folder)
	}
	for _, d := range documents {
		if s.documentLocked(d.ID) != nil || s.documentByURILocked(d.URI) != nil {
			continue
		}
		doc := d.Clone()
		if s.folderLocked(doc.FolderID) == nil {
			doc.FolderID = model.DefaultFolderID
		}
		s.documents = append(s.documents, &doc)
	}
	sortNewestFirst(s.documents)
}

func (s *Store) filter(keep func(*model.Document) bool) []model.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Document, 0, len(s.documents))
	for _, d := range s.documents {
		if keep(d) {
			out = append(out, d.Clone())
		}
	}
	return out
}

func (s *Store) documentLocked(id string) *model.Document {
	for _, d := range s.documents {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (s *Store) documentByURILocked(uri string) *model.Document {
	if uri == "" {
		return nil
	}
	for _, d := range s.documents {
		if d.URI == uri {
			return d
		}
	}
	return nil
}

func (s *Store) folderLocked(id string) *model.Folder {
	for _, f := range s.folders {
		if f.ID == id {
			return f
		}
	}
	return nil
}

func sortNewestFirst(docs []*model.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].AddedAt.After(docs[j].AddedAt)
	})
}
