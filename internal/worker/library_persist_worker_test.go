package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumina-research/internal/library"
	"lumina-research/internal/model"
)

type memorySink struct {
	docs    map[string]model.Document
	folders map[string]model.Folder
}

func newMemorySink() *memorySink {
	return &memorySink{docs: map[string]model.Document{}, folders: map[string]model.Folder{}}
}

func (s *memorySink) SaveDocument(doc *model.Document) error {
	s.docs[doc.ID] = doc.Clone()
	return nil
}

func (s *memorySink) DeleteDocument(id string) error {
	delete(s.docs, id)
	return nil
}

func (s *memorySink) SaveFolder(folder *model.Folder) error {
	s.folders[folder.ID] = *folder
	return nil
}

// roundTrip sends the event through its wire form like the queue does.
func roundTrip(t *testing.T, ev library.Event) library.Event {
	t.Helper()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	var out library.Event
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestApply_MirrorsStoreMutations(t *testing.T) {
	store := library.NewStore([]model.Folder{{ID: "ml", Name: "Machine Learning"}})
	sink := newMemorySink()
	store.Subscribe(func(ev library.Event) {
		require.NoError(t, Apply(sink, roundTrip(t, ev)))
	})

	a, _ := store.AddDocument(library.Source{Title: "A", URI: "https://a"}, "")
	b, _ := store.AddDocument(library.Source{Title: "B", URI: "https://b"}, "")
	notes := "read twice"
	store.UpdateDocument(a.ID, library.DocumentPatch{UserNotes: &notes})
	store.UpdateDocument(a.ID, library.DocumentPatch{Analysis: &model.Analysis{
		Summary:          "s",
		Findings:         []string{"f"},
		CitationMetadata: model.CitationMetadata{Authors: []string{"X"}},
	}})
	require.NoError(t, store.MoveDocument(a.ID, "ml"))
	store.DeleteDocument(b.ID)
	_, err := store.CreateFolder("Biology")
	require.NoError(t, err)
	store.SetFolderSynthesis("ml", "overview")

	require.Len(t, sink.docs, 1)
	got := sink.docs[a.ID]
	assert.Equal(t, "ml", got.FolderID)
	assert.Equal(t, "read twice", got.UserNotes)
	assert.Equal(t, []string{"f"}, got.KeyFindings)
	assert.Equal(t, []string{"X"}, got.CitationMetadata.Authors)

	assert.Equal(t, model.Folder{ID: "biology", Name: "Biology"}, sink.folders["biology"])
	assert.Equal(t, "overview", sink.folders["ml"].Synthesis)
}

func TestApply_RejectsIncompleteEvents(t *testing.T) {
	sink := newMemorySink()
	assert.Error(t, Apply(sink, library.Event{Kind: library.EventDocumentAdded}))
	assert.Error(t, Apply(sink, library.Event{Kind: library.EventDocumentDeleted}))
	assert.Error(t, Apply(sink, library.Event{Kind: library.EventFolderSynthesis}))
	assert.Error(t, Apply(sink, library.Event{Kind: "bogus"}))
}

type recordingAcker struct {
	acked  []uint64
	nacked []uint64
}

func (a *recordingAcker) Ack(tag uint64, multiple bool) error {
	a.acked = append(a.acked, tag)
	return nil
}

func (a *recordingAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = append(a.nacked, tag)
	return nil
}

func (a *recordingAcker) Reject(tag uint64, requeue bool) error {
	a.nacked = append(a.nacked, tag)
	return nil
}

type sliceQueue struct {
	name   string
	bodies [][]byte
	acker  *recordingAcker
	tag    uint64
	err    error
}

func (q *sliceQueue) Get(queue string, autoAck bool) (amqp.Delivery, bool, error) {
	if queue != q.name {
		return amqp.Delivery{}, false, errors.New("unexpected queue " + queue)
	}
	if autoAck {
		return amqp.Delivery{}, false, errors.New("drain must ack explicitly")
	}
	if len(q.bodies) == 0 {
		return amqp.Delivery{}, false, q.err
	}
	body := q.bodies[0]
	q.bodies = q.bodies[1:]
	q.tag++
	return amqp.Delivery{Acknowledger: q.acker, DeliveryTag: q.tag, Body: body}, true, nil
}

func journal(t *testing.T, store *library.Store) *[][]byte {
	t.Helper()
	var bodies [][]byte
	store.Subscribe(func(ev library.Event) {
		raw, err := json.Marshal(ev)
		require.NoError(t, err)
		bodies = append(bodies, raw)
	})
	return &bodies
}

func TestDrainQueue_AppliesBacklogBeforeRestore(t *testing.T) {
	store := library.NewStore(nil)
	bodies := journal(t, store)

	a, _ := store.AddDocument(library.Source{Title: "A", URI: "https://a"}, "")
	b, _ := store.AddDocument(library.Source{Title: "B", URI: "https://b"}, "")
	notes := "flushed at shutdown"
	store.UpdateDocument(a.ID, library.DocumentPatch{UserNotes: &notes})
	store.DeleteDocument(b.ID)

	sink := newMemorySink()
	queue := &sliceQueue{name: "library.events", bodies: *bodies, acker: &recordingAcker{}}
	n, err := drainQueue(context.Background(), queue, "library.events", sink)
	require.NoError(t, err)

	assert.Equal(t, 4, n)
	assert.Equal(t, []uint64{1, 2, 3, 4}, queue.acker.acked)
	assert.Empty(t, queue.acker.nacked)
	require.Len(t, sink.docs, 1)
	assert.Equal(t, "flushed at shutdown", sink.docs[a.ID].UserNotes)

	n, err = drainQueue(context.Background(), queue, "library.events", sink)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDrainQueue_DropsPoisonMessagesAndContinues(t *testing.T) {
	store := library.NewStore(nil)
	bodies := journal(t, store)
	a, _ := store.AddDocument(library.Source{Title: "A", URI: "https://a"}, "")

	unknown, err := json.Marshal(library.Event{Kind: "document.renamed"})
	require.NoError(t, err)
	queue := &sliceQueue{
		name:   "q",
		bodies: [][]byte{[]byte("{not json"), unknown, (*bodies)[0]},
		acker:  &recordingAcker{},
	}
	sink := newMemorySink()

	n, err := drainQueue(context.Background(), queue, "q", sink)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []uint64{1, 2}, queue.acker.nacked)
	assert.Equal(t, []uint64{3}, queue.acker.acked)
	assert.Contains(t, sink.docs, a.ID)
}

func TestDrainQueue_StopsOnBrokerErrorAndCancel(t *testing.T) {
	queue := &sliceQueue{name: "q", acker: &recordingAcker{}, err: errors.New("channel closed")}
	_, err := drainQueue(context.Background(), queue, "q", newMemorySink())
	assert.ErrorContains(t, err, "channel closed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	queue = &sliceQueue{name: "q", bodies: [][]byte{[]byte("{}")}, acker: &recordingAcker{}}
	n, err := drainQueue(ctx, queue, "q", newMemorySink())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
	assert.Len(t, queue.bodies, 1)
}
