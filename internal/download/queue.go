package download

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/events"
)

// DefaultPollInterval bounds how long an idle worker waits for a wake signal
// before re-checking the queue.
const DefaultPollInterval = 500 * time.Millisecond

// Publisher receives queue lifecycle events. *events.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// History records finished tasks. *HistoryStore satisfies it.
type History interface {
	Record(ctx context.Context, t Task) error
	Clear(ctx context.Context) (int64, error)
}

// Options tunes a Queue. Zero values get defaults.
type Options struct {
	PollInterval    time.Duration
	OutputDir       string // used when a submitted task has no OutputFile
	DefaultFileType string
}

// Queue is a download task queue served by a fixed pool of workers.
//
// All state lives behind one mutex. Workers sleep on a broadcast channel that
// is closed and replaced whenever the state changes, with PollInterval as an
// upper bound on the wait.
type Queue struct {
	downloader Downloader
	bus        Publisher
	history    History
	opts       Options
	log        *slog.Logger

	mu        sync.Mutex
	tasks     map[string]*Task
	order     []string // every known bv, in submission order
	pending   []string // FIFO of bvs waiting for a worker
	active    int
	nextIndex int

	running        bool
	stopping       bool
	completedFired bool
	gen            int
	live           int
	runID          string
	runCompleted   int
	runFailed      int
	wake           chan struct{}
	done           chan struct{}
}

// NewQueue creates a queue. bus and history may be nil.
func NewQueue(d Downloader, bus Publisher, history History, opts Options, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.DefaultFileType == "" {
		opts.DefaultFileType = "mp3"
	}
	return &Queue{
		downloader: d,
		bus:        bus,
		history:    history,
		opts:       opts,
		log:        logger.With("component", "download"),
		tasks:      make(map[string]*Task),
		wake:       make(chan struct{}),
	}
}

// Submit enqueues t. It returns false if t has no bv or its bv is already
// pending, active, completed or failed.
func (q *Queue) Submit(t Task) bool {
	t.BV = strings.TrimSpace(t.BV)
	if t.BV == "" {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.tasks[t.BV]; ok {
		q.log.Debug("task already queued", "bv", t.BV)
		return false
	}

	q.nextIndex++
	if t.Index == 0 {
		t.Index = q.nextIndex
	}
	if t.FileType == "" {
		t.FileType = q.opts.DefaultFileType
	}
	if t.OutputFile == "" && q.opts.OutputDir != "" {
		t.OutputFile = OutputPath(q.opts.OutputDir, t.Title, t.FileType)
	}
	t.Status = StatusPending
	t.ErrorMsg = ""
	t.AddedAt = time.Now()
	t.StartedAt = time.Time{}
	t.FinishedAt = time.Time{}

	q.tasks[t.BV] = &t
	q.order = append(q.order, t.BV)
	q.pending = append(q.pending, t.BV)

	q.publish(&events.TaskAdded{
		BaseEvent: events.NewBaseEvent(events.EventTaskAdded, events.EntityTask, t.BV),
		Title:     t.Title,
		Index:     t.Index,
		Source:    t.Source,
		FileType:  t.FileType,
	})
	q.signal()
	return true
}

// Seed loads finished tasks, typically from a previous process's history,
// into the completed and failed sets so their bvs are not accepted again
// until cleared. Tasks that are not terminal or whose bv is already known are
// skipped. No events are published. It returns the number seeded.
func (q *Queue) Seed(tasks []Task) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, t := range tasks {
		t.BV = strings.TrimSpace(t.BV)
		if t.BV == "" || !t.Status.IsTerminal() {
			continue
		}
		if _, ok := q.tasks[t.BV]; ok {
			continue
		}
		q.nextIndex++
		t.Index = q.nextIndex
		q.tasks[t.BV] = &t
		q.order = append(q.order, t.BV)
		n++
	}
	return n
}

// Start spawns workers that drain the queue. It returns false without doing
// anything if a run is already in progress.
func (q *Queue) Start(ctx context.Context, workers int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		q.log.Warn("download queue already running", "run_id", q.runID)
		return false
	}
	if workers < 1 {
		workers = 1
	}

	q.running = true
	q.stopping = false
	q.completedFired = false
	q.gen++
	q.live = workers
	q.runID = uuid.NewString()
	q.runCompleted, q.runFailed = 0, 0
	q.done = make(chan struct{})

	q.log.Info("download run started", "run_id", q.runID, "workers", workers, "pending", len(q.pending))
	for i := range workers {
		go q.worker(ctx, i+1, q.gen)
	}
	return true
}

// Stop asks workers to exit after their current task and waits up to timeout
// for them. In-flight downloads are never cancelled.
func (q *Queue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.stopping = true
	q.signal()
	done := q.done
	q.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Wait blocks until the current run's workers have all exited.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	done := q.done
	q.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClearCompleted forgets finished tasks so their bvs can be submitted again.
// It returns the number of tasks removed.
func (q *Queue) ClearCompleted() int {
	q.mu.Lock()
	kept := q.order[:0]
	removed := 0
	for _, bv := range q.order {
		if q.tasks[bv].Status.IsTerminal() {
			delete(q.tasks, bv)
			removed++
			continue
		}
		kept = append(kept, bv)
	}
	q.order = kept
	q.mu.Unlock()

	q.clearHistory()
	return removed
}

// ClearAll empties every set. It fails with ErrRunning while a run is active.
func (q *Queue) ClearAll() (int, error) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return 0, ErrRunning
	}
	n := len(q.tasks)
	q.tasks = make(map[string]*Task)
	q.order = nil
	q.pending = nil
	q.mu.Unlock()

	q.clearHistory()
	return n, nil
}

// Status returns counts for each set.
func (q *Queue) Status() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Snapshot{RunID: q.runID, Running: q.running}
	for _, t := range q.tasks {
		switch t.Status {
		case StatusPending:
			s.Pending++
		case StatusDownloading:
			s.Active++
		case StatusSuccess:
			s.Completed++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Tasks returns copies of all known tasks in submission order.
func (q *Queue) Tasks() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Task, 0, len(q.order))
	for _, bv := range q.order {
		out = append(out, *q.tasks[bv])
	}
	return out
}

// Task returns a copy of the task for bv.
func (q *Queue) Task(bv string) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[bv]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

func (q *Queue) worker(ctx context.Context, id, gen int) {
	defer q.exit()

	for {
		t, ok := q.next(ctx, id, gen)
		if !ok {
			return
		}

		start := time.Now()
		err := q.download(ctx, t)
		q.finish(t.BV, start, err)
	}
}

// next blocks until a task is available or the worker should exit.
func (q *Queue) next(ctx context.Context, id, gen int) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.stopping || q.completedFired || gen != q.gen || ctx.Err() != nil {
			return Task{}, false
		}

		if len(q.pending) > 0 {
			bv := q.pending[0]
			q.pending = q.pending[1:]
			t := q.tasks[bv]
			if t == nil {
				// cleared while waiting
				continue
			}
			if err := q.transition(t, StatusDownloading); err != nil {
				q.log.Error("skipping task", "bv", bv, "error", err)
				continue
			}
			t.StartedAt = time.Now()
			q.active++
			q.publish(&events.TaskStarted{
				BaseEvent: events.NewBaseEvent(events.EventTaskStarted, events.EntityTask, bv),
				Title:     t.Title,
				Worker:    id,
			})
			return *t, true
		}

		if q.active == 0 {
			q.completedFired = true
			q.log.Info("download run drained", "run_id", q.runID, "completed", q.runCompleted, "failed", q.runFailed)
			q.publish(&events.QueueCompleted{
				BaseEvent: events.NewBaseEvent(events.EventQueueCompleted, events.EntityQueue, q.runID),
				Completed: q.runCompleted,
				Failed:    q.runFailed,
			})
			q.signal()
			return Task{}, false
		}

		wake := q.wake
		q.mu.Unlock()
		timer := time.NewTimer(q.opts.PollInterval)
		select {
		case <-wake:
		case <-timer.C:
		case <-ctx.Done():
		}
		timer.Stop()
		q.mu.Lock()
	}
}

func (q *Queue) download(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return q.downloader.Download(ctx, t.request())
}

func (q *Queue) finish(bv string, start time.Time, err error) {
	q.mu.Lock()

	q.active--
	t := q.tasks[bv]
	if t == nil {
		// ClearAll cannot run while active, so this only guards against misuse.
		q.signal()
		q.mu.Unlock()
		return
	}

	t.FinishedAt = time.Now()
	duration := t.FinishedAt.Sub(start)
	if err != nil {
		t.ErrorMsg = err.Error()
		if terr := q.transition(t, StatusFailed); terr != nil {
			q.log.Error("task transition failed", "bv", bv, "error", terr)
		}
		q.runFailed++
		q.log.Warn("download failed", "bv", bv, "title", t.Title, "error", err)
		q.publish(&events.TaskFailed{
			BaseEvent: events.NewBaseEvent(events.EventTaskFailed, events.EntityTask, bv),
			Title:     t.Title,
			Reason:    t.ErrorMsg,
		})
	} else {
		if terr := q.transition(t, StatusSuccess); terr != nil {
			q.log.Error("task transition failed", "bv", bv, "error", terr)
		}
		q.runCompleted++
		q.log.Info("download completed", "bv", bv, "output", t.OutputFile, "duration_ms", duration.Milliseconds())
		q.publish(&events.TaskCompleted{
			BaseEvent:  events.NewBaseEvent(events.EventTaskCompleted, events.EntityTask, bv),
			Title:      t.Title,
			OutputFile: t.OutputFile,
			DurationMS: duration.Milliseconds(),
		})
	}
	done := *t
	q.signal()
	q.mu.Unlock()

	if q.history != nil {
		if herr := q.history.Record(context.Background(), done); herr != nil {
			q.log.Error("failed to record task history", "bv", bv, "error", herr)
		}
	}
}

func (q *Queue) exit() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.live--
	if q.live > 0 {
		return
	}
	q.running = false
	q.stopping = false
	close(q.done)
	q.log.Info("download run finished", "run_id", q.runID)
}

func (q *Queue) transition(t *Task, to Status) error {
	if !t.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	return nil
}

// signal wakes every waiting worker. Callers hold q.mu.
func (q *Queue) signal() {
	close(q.wake)
	q.wake = make(chan struct{})
}

// publish delivers e while q.mu is held so observers see events in state order.
// The bus never blocks on delivery.
func (q *Queue) publish(e events.Event) {
	if q.bus == nil {
		return
	}
	if err := q.bus.Publish(context.Background(), e); err != nil {
		q.log.Error("failed to publish event", "type", e.EventType(), "error", err)
	}
}

func (q *Queue) clearHistory() {
	if q.history == nil {
		return
	}
	if _, err := q.history.Clear(context.Background()); err != nil {
		q.log.Error("failed to clear task history", "error", err)
	}
}
