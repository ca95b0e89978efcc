package autosave

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumina-research/internal/library"
	"lumina-research/internal/model"
	"lumina-research/internal/schedule"
)

type harness struct {
	store *library.Store
	clock *schedule.ManualClock
	ctrl  *Controller

	mu      sync.Mutex
	updates []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: library.NewStore([]model.Folder{{ID: "quantum", Name: "Quantum Physics"}}),
		clock: schedule.NewManualClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	h.ctrl = NewController(h.store, schedule.NewTasks(h.clock), 30*time.Second)
	h.store.Subscribe(func(ev library.Event) {
		if ev.Kind != library.EventDocumentUpdated {
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		h.updates = append(h.updates, ev.DocumentID+":"+ev.Document.UserNotes)
	})
	return h
}

func (h *harness) add(t *testing.T, uri string) model.Document {
	t.Helper()
	doc, created := h.store.AddDocument(library.Source{Title: uri, URI: uri}, "quantum")
	require.True(t, created)
	return doc
}

func (h *harness) writes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.updates...)
}

func (h *harness) notes(t *testing.T, id string) string {
	t.Helper()
	doc, ok := h.store.Document(id)
	require.True(t, ok)
	return doc.UserNotes
}

func TestOpen_UnknownDocument(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.Open("missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestSession_StartsFromStoredNotes(t *testing.T) {
	h := newHarness(t)
	doc := h.add(t, "https://a")
	notes := "existing"
	h.store.UpdateDocument(doc.ID, library.DocumentPatch{UserNotes: &notes})

	s, err := h.ctrl.Open(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "existing", s.Notes())
	assert.False(t, s.Dirty())
}

func TestSession_PeriodicFlushWritesOnlyWhenDirty(t *testing.T) {
	h := newHarness(t)
	doc := h.add(t, "https://a")
	s, err := h.ctrl.Open(doc.ID)
	require.NoError(t, err)
	require.NoError(t, s.Activate())

	h.clock.Advance(30 * time.Second)
	assert.Empty(t, h.writes())

	require.NoError(t, s.Edit("first thoughts"))
	assert.True(t, s.Dirty())
	h.clock.Advance(29 * time.Second)
	assert.Empty(t, h.writes())
	h.clock.Advance(time.Second)

	assert.Equal(t, []string{doc.ID + ":first thoughts"}, h.writes())
	assert.False(t, s.Dirty())

	h.clock.Advance(90 * time.Second)
	assert.Len(t, h.writes(), 1)
}

func TestSession_RevertedEditIsNotWritten(t *testing.T) {
	h := newHarness(t)
	doc := h.add(t, "https://a")
	s, err := h.ctrl.Open(doc.ID)
	require.NoError(t, err)

	require.NoError(t, s.Edit("draft"))
	require.NoError(t, s.Edit(""))
	h.clock.Advance(time.Minute)
	require.NoError(t, s.Close())

	assert.Empty(t, h.writes())
}

func TestSession_CloseFlushesPendingEditExactlyOnce(t *testing.T) {
	h := newHarness(t)
	doc := h.add(t, "https://a")
	s, err := h.ctrl.Open(doc.ID)
	require.NoError(t, err)

	require.NoError(t, s.Edit("written just before leaving"))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	h.clock.Advance(time.Minute)

	assert.Equal(t, []string{doc.ID + ":written just before leaving"}, h.writes())
	assert.Equal(t, "written just before leaving", h.notes(t, doc.ID))
	assert.Nil(t, h.ctrl.Current())
	assert.ErrorIs(t, s.Edit("late"), ErrSessionClosed)
}

func TestSession_SaveCommitsImmediately(t *testing.T) {
	h := newHarness(t)
	doc := h.add(t, "https://a")
	s, err := h.ctrl.Open(doc.ID)
	require.NoError(t, err)

	require.NoError(t, s.Edit("manual"))
	require.NoError(t, s.Save())
	assert.Equal(t, "manual", h.notes(t, doc.ID))

	require.NoError(t, s.Save())
	h.clock.Advance(30 * time.Second)
	assert.Len(t, h.writes(), 1)
}

func TestOpen_OtherDocumentFlushesPrevious(t *testing.T) {
	h := newHarness(t)
	a := h.add(t, "https://a")
	b := h.add(t, "https://b")

	sa, err := h.ctrl.Open(a.ID)
	require.NoError(t, err)
	require.NoError(t, sa.Edit("notes for a"))

	sb, err := h.ctrl.Open(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "notes for a", h.notes(t, a.ID))
	assert.Same(t, sb, h.ctrl.Current())
	assert.ErrorIs(t, sa.Edit("stale"), ErrSessionClosed)

	require.NoError(t, sb.Activate())
	require.NoError(t, sb.Edit("notes for b"))
	h.clock.Advance(30 * time.Second)
	assert.Equal(t, []string{a.ID + ":notes for a", b.ID + ":notes for b"}, h.writes())
}

func TestOpen_SameDocumentReturnsOpenSession(t *testing.T) {
	h := newHarness(t)
	doc := h.add(t, "https://a")
	s1, err := h.ctrl.Open(doc.ID)
	require.NoError(t, err)
	require.NoError(t, s1.Edit("keep me"))

	s2, err := h.ctrl.Open(doc.ID)
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, "keep me", s2.Notes())
}

func TestDiscard_DropsEditsForDeletedDocument(t *testing.T) {
	h := newHarness(t)
	doc := h.add(t, "https://a")
	s, err := h.ctrl.Open(doc.ID)
	require.NoError(t, err)
	require.NoError(t, s.Edit("never written"))

	h.ctrl.Discard(doc.ID)
	require.True(t, h.store.DeleteDocument(doc.ID))
	h.clock.Advance(time.Minute)

	assert.Empty(t, h.writes())
	assert.Nil(t, h.ctrl.Current())
}

func TestSave_DocumentRemovedUnderneath(t *testing.T) {
	h := newHarness(t)
	doc := h.add(t, "https://a")
	s, err := h.ctrl.Open(doc.ID)
	require.NoError(t, err)
	require.True(t, h.store.DeleteDocument(doc.ID))

	require.NoError(t, s.Edit("orphan"))
	assert.ErrorIs(t, s.Save(), ErrDocumentNotFound)
	assert.True(t, s.Dirty())
}

func TestSession_InactiveSessionIsNeverWrittenPeriodically(t *testing.T) {
	h := newHarness(t)
	doc := h.add(t, "https://a")
	s, err := h.ctrl.Open(doc.ID)
	require.NoError(t, err)

	require.NoError(t, s.Edit("typed, then switched to analysis"))
	h.clock.Advance(5 * time.Minute)

	assert.Empty(t, h.writes())
	assert.False(t, s.Active())
	assert.True(t, s.Dirty())
	assert.Equal(t, 0, h.clock.Pending())
}

func TestSession_DeactivateFlushesExactlyOnceAndStopsTimer(t *testing.T) {
	h := newHarness(t)
	doc := h.add(t, "https://a")
	s, err := h.ctrl.Open(doc.ID)
	require.NoError(t, err)
	require.NoError(t, s.Activate())
	require.NoError(t, s.Activate())

	require.NoError(t, s.Edit("leaving the notes tab"))
	require.NoError(t, s.Deactivate())
	assert.Equal(t, []string{doc.ID + ":leaving the notes tab"}, h.writes())

	h.clock.Advance(5 * time.Minute)
	require.NoError(t, s.Deactivate())
	require.NoError(t, s.Close())
	assert.Len(t, h.writes(), 1)
}

func TestSession_ReactivateResumesPeriodicFlush(t *testing.T) {
	h := newHarness(t)
	doc := h.add(t, "https://a")
	s, err := h.ctrl.Open(doc.ID)
	require.NoError(t, err)
	require.NoError(t, s.Activate())
	require.NoError(t, s.Deactivate())

	require.NoError(t, s.Edit("back again"))
	require.NoError(t, s.Activate())
	h.clock.Advance(30 * time.Second)
	assert.Equal(t, []string{doc.ID + ":back again"}, h.writes())

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Activate(), ErrSessionClosed)
	assert.ErrorIs(t, s.Deactivate(), ErrSessionClosed)
}
