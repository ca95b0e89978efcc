package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"lumina-research/internal/library"
	"lumina-research/internal/model"
)

// LibrarySink is the persistent mirror of the library.
type LibrarySink interface {
	SaveDocument(doc *model.Document) error
	DeleteDocument(id string) error
	SaveFolder(folder *model.Folder) error
}

// LibraryPersistWorker consumes journaled library events in order and
// applies them to the sink.
type LibraryPersistWorker struct {
	conn      *amqp.Connection
	sink      LibrarySink
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLibraryPersistWorker(conn *amqp.Connection, sink LibrarySink, queueName string) *LibraryPersistWorker {
	return &LibraryPersistWorker{
		conn:      conn,
		sink:      sink,
		queueName: queueName,
	}
}

func (w *LibraryPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	// One unacked delivery at a time keeps events applied in journal order.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				handle(w.sink, d)
			}
		}
	}()

	return nil
}

func (w *LibraryPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// Drain applies every event already in the queue and returns how many were
// taken. It must not run alongside Start's consumer. Startup drains before the
// mirror is loaded and shutdown drains after Close.
func (w *LibraryPersistWorker) Drain(ctx context.Context) (int, error) {
	ch, err := w.conn.Channel()
	if err != nil {
		return 0, fmt.Errorf("open drain channel failed: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(w.queueName, true, false, false, false, nil); err != nil {
		return 0, fmt.Errorf("declare worker queue failed: %w", err)
	}
	return drainQueue(ctx, ch, w.queueName, w.sink)
}

// deliverySource is the polling half of an amqp channel.
type deliverySource interface {
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
}

func drainQueue(ctx context.Context, src deliverySource, queue string, sink LibrarySink) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		d, ok, err := src.Get(queue, false)
		if err != nil {
			return n, fmt.Errorf("get queued library event failed: %w", err)
		}
		if !ok {
			return n, nil
		}
		handle(sink, d)
		n++
	}
}

// handle applies one delivery. Events that cannot be decoded or applied are
// dropped so a poison message never blocks the journal.
func handle(sink LibrarySink, d amqp.Delivery) {
	var ev library.Event
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		log.Printf("worker decode library event failed: %v", err)
		_ = d.Nack(false, false)
		return
	}

	if err := Apply(sink, ev); err != nil {
		log.Printf("worker persist library event seq=%d failed: %v", ev.Seq, err)
		_ = d.Nack(false, false)
		return
	}

	_ = d.Ack(false)
}

// Apply writes one library event to the sink.
func Apply(sink LibrarySink, ev library.Event) error {
	switch ev.Kind {
	case library.EventDocumentAdded, library.EventDocumentUpdated, library.EventDocumentMoved:
		if ev.Document == nil {
			return fmt.Errorf("%s event without document", ev.Kind)
		}
		return sink.SaveDocument(ev.Document)
	case library.EventDocumentDeleted:
		if ev.DocumentID == "" {
			return fmt.Errorf("%s event without document id", ev.Kind)
		}
		return sink.DeleteDocument(ev.DocumentID)
	case library.EventFolderCreated, library.EventFolderSynthesis:
		if ev.Folder == nil {
			return fmt.Errorf("%s event without folder", ev.Kind)
		}
		return sink.SaveFolder(ev.Folder)
	default:
		return fmt.Errorf("unknown library event %q", ev.Kind)
	}
}
