// Package autosave keeps an open document's notes in sync with the library.
//
// A Session holds the working copy of the notes and the last value written
// to the store. Edits only touch the working copy; the session writes it back
// on Save, on Deactivate, on Close, and periodically while it is active (the
// notes tab is showing). Writes happen only when the two copies differ.
package autosave

import (
	"errors"
	"log"
	"sync"
	"time"

	"lumina-research/internal/library"
	"lumina-research/internal/model"
	"lumina-research/internal/schedule"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrSessionClosed    = errors.New("notes session closed")
)

const DefaultPeriod = 30 * time.Second

type Store interface {
	Document(id string) (model.Document, bool)
	UpdateDocument(id string, patch library.DocumentPatch) bool
}

type Controller struct {
	mu      sync.Mutex
	store   Store
	tasks   *schedule.Tasks
	period  time.Duration
	current *Session
}

func NewController(store Store, tasks *schedule.Tasks, period time.Duration) *Controller {
	if period <= 0 {
		period = DefaultPeriod
	}
	if tasks == nil {
		tasks = schedule.NewTasks(nil)
	}
	return &Controller{store: store, tasks: tasks, period: period}
}

// Open starts editing docID. Opening the document that is already open
// returns the existing session; opening another one flushes and closes the
// previous session first. The new session is inactive until Activate.
func (c *Controller) Open(docID string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		if c.current.docID == docID && !c.current.isClosed() {
			return c.current, nil
		}
		c.current.shutdown(true)
		c.current = nil
	}

	doc, ok := c.store.Document(docID)
	if !ok {
		return nil, ErrDocumentNotFound
	}
	s := &Session{
		ctrl:      c,
		docID:     docID,
		working:   doc.UserNotes,
		committed: doc.UserNotes,
	}
	c.current = s
	return s, nil
}

// Current returns the open session or nil.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// CloseCurrent flushes and closes the open session, if any.
func (c *Controller) CloseCurrent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	c.current.shutdown(true)
	c.current = nil
}

// Discard drops the session for docID without writing it back. Used when the
// document itself is removed.
func (c *Controller) Discard(docID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.docID != docID {
		return
	}
	c.current.shutdown(false)
	c.current = nil
}

func (c *Controller) release(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == s {
		c.current = nil
	}
}

type Session struct {
	ctrl  *Controller
	docID string

	mu        sync.Mutex
	working   string
	committed string
	active    bool
	closed    bool
}

func (s *Session) DocumentID() string {
	return s.docID
}

// Edit replaces the working copy.
func (s *Session) Edit(notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.working = notes
	return nil
}

func (s *Session) Notes() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working
}

func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working != s.committed
}

// Activate starts the periodic flush. Activating an active session is a no-op.
func (s *Session) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.active {
		return nil
	}
	s.active = true
	s.ctrl.tasks.Every(taskKey(s.docID), s.ctrl.period, s.autoFlush)
	return nil
}

// Deactivate stops the periodic flush and writes pending edits before
// returning. The session stays open.
func (s *Session) Deactivate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.active = false
	s.ctrl.tasks.Cancel(taskKey(s.docID))
	_, err := s.flushLocked()
	return err
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Save writes the working copy now if it differs from the stored notes.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	_, err := s.flushLocked()
	return err
}

// Close writes pending edits and stops the periodic flush. It is safe to call
// more than once.
func (s *Session) Close() error {
	err := s.shutdown(true)
	s.ctrl.release(s)
	return err
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) shutdown(flush bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	var err error
	if flush {
		_, err = s.flushLocked()
	}
	s.closed = true
	s.active = false
	s.ctrl.tasks.Cancel(taskKey(s.docID))
	return err
}

func (s *Session) autoFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.active {
		return
	}
	if _, err := s.flushLocked(); err != nil {
		log.Printf("autosave notes for document %s failed: %v", s.docID, err)
	}
}

// flushLocked is the single write path. The dirty check happens here, at
// write time, so an edit reverted before the tick produces no update.
func (s *Session) flushLocked() (bool, error) {
	if s.working == s.committed {
		return false, nil
	}
	notes := s.working
	if !s.ctrl.store.UpdateDocument(s.docID, library.DocumentPatch{UserNotes: &notes}) {
		return false, ErrDocumentNotFound
	}
	s.committed = notes
	return true, nil
}

func taskKey(docID string) string {
	return "autosave:" + docID
}
