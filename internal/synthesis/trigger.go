// Package synthesis decides when a folder synthesis should be generated.
//
// A folder without a synthesis that holds at least Threshold analyzed
// documents is armed; if it stays the active folder with the same number of
// analyzed documents for the debounce window, the synthesizer runs once and
// the result is committed to the library. At most one run per folder is in
// flight at any time.
package synthesis

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"lumina-research/internal/model"
	"lumina-research/internal/schedule"
)

type State string

const (
	StateIdle    State = "idle"
	StateArmed   State = "armed"
	StateRunning State = "running"
	StateFailed  State = "failed"
)

const FailedCaption = "Could not generate a synthesis for this folder. Revisit the folder to try again."

var (
	ErrSynthesisRunning    = errors.New("synthesis already running for folder")
	ErrFolderNotFound      = errors.New("folder not found")
	ErrNothingToSynthesize = errors.New("folder has no analyzed documents")
	ErrEmptySynthesis      = errors.New("synthesis is empty")
	ErrTriggerClosed       = errors.New("synthesis trigger closed")
)

type Library interface {
	Folder(id string) (model.Folder, bool)
	AnalyzedDocuments(folderID string) []model.Document
	SetFolderSynthesis(folderID, text string) bool
}

type Synthesizer interface {
	Synthesize(ctx context.Context, docs []model.Document, folderName string) (string, error)
}

type Config struct {
	Debounce  time.Duration
	Threshold int
	Timeout   time.Duration
}

// Status is the externally visible state of one folder.
type Status struct {
	FolderID      string    `json:"folder_id"`
	State         State     `json:"state"`
	DocumentCount int       `json:"document_count"`
	Caption       string    `json:"caption,omitempty"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	FinishedAt    time.Time `json:"finished_at,omitempty"`
}

type Trigger struct {
	mu       sync.Mutex
	lib      Library
	synth    Synthesizer
	tasks    *schedule.Tasks
	cfg      Config
	active   string
	armed    string
	armedN   int
	closed   bool
	statuses map[string]*Status

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTrigger(lib Library, synth Synthesizer, tasks *schedule.Tasks, cfg Config) *Trigger {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 1500 * time.Millisecond
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if tasks == nil {
		tasks = schedule.NewTasks(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Trigger{
		lib:      lib,
		synth:    synth,
		tasks:    tasks,
		cfg:      cfg,
		statuses: make(map[string]*Status),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Observe re-evaluates folderID as the folder currently in view. Call it on
// navigation and after any library change. An empty id means no folder is in
// view and only cancels a pending arm.
func (t *Trigger) Observe(folderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	revisit := t.active != folderID
	if t.armed != "" && t.armed != folderID {
		t.disarmLocked()
	}
	t.active = folderID
	if folderID == "" {
		return
	}

	st := t.statusLocked(folderID)
	if st.State == StateRunning {
		return
	}
	folder, ok := t.lib.Folder(folderID)
	if !ok || folder.Synthesis != "" {
		t.disarmLocked()
		return
	}
	count := len(t.lib.AnalyzedDocuments(folderID))
	if count < t.cfg.Threshold {
		t.disarmLocked()
		return
	}
	if t.armed == folderID && t.armedN == count {
		return
	}
	if st.State == StateFailed && !revisit && st.DocumentCount == count {
		return
	}
	t.armLocked(folderID, count)
}

// Refresh runs the synthesizer for folderID now, bypassing threshold and
// debounce, and overwrites any existing synthesis.
func (t *Trigger) Refresh(folderID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTriggerClosed
	}
	if t.statusLocked(folderID).State == StateRunning {
		return ErrSynthesisRunning
	}
	folder, ok := t.lib.Folder(folderID)
	if !ok {
		return ErrFolderNotFound
	}
	docs := t.lib.AnalyzedDocuments(folderID)
	if len(docs) == 0 {
		return ErrNothingToSynthesize
	}
	if t.armed == folderID {
		t.disarmLocked()
	}
	t.startLocked(folder, docs)
	return nil
}

func (t *Trigger) Status(folderID string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.statuses[folderID]; ok {
		return *st
	}
	return Status{FolderID: folderID, State: StateIdle}
}

// Wait blocks until every in-flight run has finished.
func (t *Trigger) Wait() {
	t.wg.Wait()
}

// Close cancels pending arms and in-flight runs and waits for them. Later
// observations are ignored and Refresh returns ErrTriggerClosed.
func (t *Trigger) Close() {
	t.mu.Lock()
	t.closed = true
	t.disarmLocked()
	t.mu.Unlock()
	t.cancel()
	t.wg.Wait()
}

func (t *Trigger) armLocked(folderID string, count int) {
	t.disarmLocked()
	t.armed = folderID
	t.armedN = count
	st := t.statusLocked(folderID)
	st.State = StateArmed
	st.DocumentCount = count
	t.tasks.After(taskKey(folderID), t.cfg.Debounce, func() { t.fire(folderID, count) })
}

func (t *Trigger) disarmLocked() {
	if t.armed == "" {
		return
	}
	t.tasks.Cancel(taskKey(t.armed))
	if st, ok := t.statuses[t.armed]; ok && st.State == StateArmed {
		st.State = StateIdle
	}
	t.armed = ""
	t.armedN = 0
}

func (t *Trigger) fire(folderID string, count int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.armed != folderID || t.armedN != count || t.active != folderID {
		return
	}
	t.armed = ""
	t.armedN = 0

	st := t.statusLocked(folderID)
	folder, ok := t.lib.Folder(folderID)
	docs := t.lib.AnalyzedDocuments(folderID)
	if !ok || folder.Synthesis != "" || len(docs) != count {
		st.State = StateIdle
		return
	}
	t.startLocked(folder, docs)
}

func (t *Trigger) startLocked(folder model.Folder, docs []model.Document) {
	st := t.statusLocked(folder.ID)
	st.State = StateRunning
	st.DocumentCount = len(docs)
	st.Caption = ""
	st.Error = ""
	st.StartedAt = t.tasks.Clock().Now()
	st.FinishedAt = time.Time{}

	t.wg.Add(1)
	go t.run(folder, docs)
}

func (t *Trigger) run(folder model.Folder, docs []model.Document) {
	defer t.wg.Done()

	ctx, cancel := context.WithTimeout(t.ctx, t.cfg.Timeout)
	text, err := t.synth.Synthesize(ctx, docs, folder.Name)
	cancel()
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptySynthesis
	}
	if err != nil {
		log.Printf("synthesize folder %s failed: %v", folder.ID, err)
		t.finish(folder.ID, StateFailed, err)
		return
	}

	if !t.lib.SetFolderSynthesis(folder.ID, strings.TrimSpace(text)) {
		log.Printf("synthesize folder %s: folder no longer exists", folder.ID)
	}
	t.finish(folder.ID, StateIdle, nil)
}

func (t *Trigger) finish(folderID string, state State, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.statusLocked(folderID)
	st.State = state
	st.FinishedAt = t.tasks.Clock().Now()
	if err != nil {
		st.Caption = FailedCaption
		st.Error = err.Error()
	}
}

func (t *Trigger) statusLocked(folderID string) *Status {
	st, ok := t.statuses[folderID]
	if !ok {
		st = &Status{FolderID: folderID, State: StateIdle}
		t.statuses[folderID] = st
	}
	return st
}

func taskKey(folderID string) string {
	return "synthesis:" + folderID
}
