package library

import "lumina-research/internal/model"

type EventKind string

const (
	EventDocumentAdded   EventKind = "document.added"
	EventDocumentUpdated EventKind = "document.updated"
	EventDocumentDeleted EventKind = "document.deleted"
	EventDocumentMoved   EventKind = "document.moved"
	EventFolderCreated   EventKind = "folder.created"
	EventFolderSynthesis EventKind = "folder.synthesis"
)

// Event describes one applied mutation. Document and Folder are copies of the
// record after the change; they are nil for deletions. Seq increases by one
// per mutation in the order mutations were applied.
type Event struct {
	Seq              uint64          `json:"seq"`
	Kind             EventKind       `json:"kind"`
	DocumentID       string          `json:"document_id,omitempty"`
	FolderID         string          `json:"folder_id,omitempty"`
	PreviousFolderID string          `json:"previous_folder_id,omitempty"`
	Document         *model.Document `json:"document,omitempty"`
	Folder           *model.Folder   `json:"folder,omitempty"`
}

// Listener is called after a mutation, outside the store lock. Events reach
// listeners one at a time and in Seq order, whichever goroutine applied them.
// A mutation made while another goroutine is delivering returns before its
// own event is delivered.
type Listener func(Event)

func (s *Store) Subscribe(l Listener) {
	if l == nil {
		return
	}
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// enqueueLocked numbers ev and queues it. The caller holds s.mu, so queue
// order is apply order.
func (s *Store) enqueueLocked(ev Event) {
	s.queueMu.Lock()
	s.seq++
	ev.Seq = s.seq
	s.queue = append(s.queue, ev)
	s.queueMu.Unlock()
}

// dispatch delivers queued events unless another goroutine already is, in
// which case that goroutine picks up what was queued here.
func (s *Store) dispatch() {
	s.queueMu.Lock()
	if s.dispatching {
		s.queueMu.Unlock()
		return
	}
	s.dispatching = true
	for len(s.queue) > 0 {
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.queueMu.Unlock()

		s.deliver(ev)

		s.queueMu.Lock()
	}
	s.dispatching = false
	s.queueMu.Unlock()
}

func (s *Store) deliver(ev Event) {
	s.listenerMu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.listenerMu.RUnlock()
	for _, l := range listeners {
		l(ev)
	}
}
