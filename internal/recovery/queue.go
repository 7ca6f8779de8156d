package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/metrics"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
)

// Journal is the durable log behind the queue.
//
// Save must replace the persisted tasks of target atomically: after a crash
// the journal holds either the previous or the new list, never a mix.
type Journal interface {
	Load(ctx context.Context) ([]model.RecoveryTask, error)
	Save(ctx context.Context, target model.NodeID, tasks []model.RecoveryTask) error
}

// ApplyFunc applies one task to its target node.
type ApplyFunc func(ctx context.Context, task model.RecoveryTask) error

// Queue is the durable, per-target recovery queue.
//
// Thread-safety model:
//   - mutations of one lane are serialised by the lane mutex
//   - lanes of different targets proceed independently
//   - node calls made during Replay never hold the lane mutex, so request
//     handlers can keep enqueuing while a slow replay is in flight
type Queue struct {
	journal Journal
	clock   clockwork.Clock
	seq     *Clock
	ids     IDGenerator
	metrics *metrics.Metrics
	lanes   map[model.NodeID]*lane
}

type lane struct {
	target model.NodeID
	mu     sync.Mutex
	tasks  []model.RecoveryTask
	// replaying is held for the duration of one Replay call on this lane.
	replaying sync.Mutex
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock sets the wall clock used for EnqueuedAt.
func WithClock(c clockwork.Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// WithIDGenerator sets the task ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(q *Queue) { q.ids = g }
}

// WithMetrics enables queue depth and replay metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// Open builds a queue and loads pending tasks from journal.
// The logical clock resumes after the highest persisted seq.
func Open(ctx context.Context, journal Journal, opts ...Option) (*Queue, error) {
	q := &Queue{
		journal: journal,
		clock:   clockwork.NewRealClock(),
		ids:     UUIDv7Generator{},
		lanes:   make(map[model.NodeID]*lane, 3),
	}
	for _, id := range model.AllNodes() {
		q.lanes[id] = &lane{target: id}
	}
	for _, opt := range opts {
		opt(q)
	}

	tasks, err := journal.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load recovery journal: %w", err)
	}

	q.seq = NewClock()
	for _, task := range tasks {
		l, ok := q.lanes[task.Target]
		if !ok {
			return nil, fmt.Errorf("load recovery journal: task %s has unknown target %q", task.ID, task.Target)
		}
		l.tasks = append(l.tasks, task)
		q.seq.advanceTo(task.Seq)
	}

	for _, l := range q.lanes {
		q.metrics.SetQueueDepth(l.target, len(l.tasks))
	}
	slog.Debug("recovery queue loaded", "tasks", len(tasks), "seq", q.seq.Current())
	return q, nil
}

func (q *Queue) lane(target model.NodeID) (*lane, error) {
	l, ok := q.lanes[target]
	if !ok {
		return nil, fmt.Errorf("unknown target %q", target)
	}
	return l, nil
}

// Enqueue appends op to target's lane and persists the lane.
//
// The task is visible in memory only once the journal write succeeded; a
// failed write returns a QUEUE_PERSISTENCE error and leaves the lane as it
// was.
func (q *Queue) Enqueue(ctx context.Context, target model.NodeID, op model.Operation) (model.RecoveryTask, error) {
	l, err := q.lane(target)
	if err != nil {
		return model.RecoveryTask{}, model.NewQueuePersistenceError(target, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	task := model.RecoveryTask{
		ID:         q.ids.Generate(),
		Seq:        q.seq.Next(),
		Target:     target,
		Op:         op,
		EnqueuedAt: q.clock.Now().UTC(),
	}

	next := make([]model.RecoveryTask, len(l.tasks), len(l.tasks)+1)
	copy(next, l.tasks)
	next = append(next, task)

	if err := q.journal.Save(ctx, target, next); err != nil {
		slog.Error("recovery journal write failed", "target", target, "key", op.Key, "error", err)
		return model.RecoveryTask{}, model.NewQueuePersistenceError(target, err)
	}

	l.tasks = next
	q.metrics.SetQueueDepth(target, len(next))
	slog.Debug("recovery task persisted", "target", target, "id", task.ID, "seq", task.Seq, "kind", op.Kind, "key", op.Key)
	return task, nil
}

// HasPending reports whether target's lane holds a task for key.
func (q *Queue) HasPending(target model.NodeID, key string) bool {
	l, err := q.lane(target)
	if err != nil {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.tasks {
		if t.Op.Key == key {
			return true
		}
	}
	return false
}

// Pending returns a copy of target's lane in replay order.
func (q *Queue) Pending(target model.NodeID) []model.RecoveryTask {
	l, err := q.lane(target)
	if err != nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.RecoveryTask, len(l.tasks))
	copy(out, l.tasks)
	return out
}

// Snapshot returns every pending task, grouped by target in canonical node
// order and by seq within a target.
func (q *Queue) Snapshot() []model.RecoveryTask {
	out := []model.RecoveryTask{}
	for _, id := range model.AllNodes() {
		out = append(out, q.Pending(id)...)
	}
	return out
}

// Len returns the total number of pending tasks.
func (q *Queue) Len() int {
	n := 0
	for _, l := range q.lanes {
		l.mu.Lock()
		n += len(l.tasks)
		l.mu.Unlock()
	}
	return n
}

// Purge discards every pending task for target and returns how many were
// dropped. Purged writes are never replayed.
func (q *Queue) Purge(ctx context.Context, target model.NodeID) (int, error) {
	l, err := q.lane(target)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.tasks)
	if n == 0 {
		return 0, nil
	}
	if err := q.journal.Save(ctx, target, nil); err != nil {
		return 0, model.NewQueuePersistenceError(target, err)
	}
	l.tasks = nil
	q.metrics.SetQueueDepth(target, 0)
	slog.Warn("recovery queue purged", "target", target, "dropped", n)
	return n, nil
}

// Flush rewrites every lane to the journal. Each mutation is already
// persisted, so this is only needed when the journal may have been touched
// externally or at shutdown.
func (q *Queue) Flush(ctx context.Context) error {
	for _, id := range model.AllNodes() {
		l := q.lanes[id]
		l.mu.Lock()
		err := q.journal.Save(ctx, id, l.tasks)
		l.mu.Unlock()
		if err != nil {
			return model.NewQueuePersistenceError(id, err)
		}
	}
	return nil
}

// ReplayReport summarises one Replay call for a target.
type ReplayReport struct {
	Target model.NodeID
	// Applied counts tasks applied and removed from the lane.
	Applied int
	// Remaining counts tasks still pending after the call.
	Remaining int
	// Skipped is set when another replay of the same lane was in flight.
	Skipped bool
	// Err is the apply error that stopped replay, if any.
	Err error
}

// Replay applies target's tasks head-first until the lane is empty or apply
// fails. A failed task stays at the head of the lane and replay stops; later
// tasks are never attempted ahead of it.
//
// The returned error is non-nil only when the journal could not record a
// removal. The applied task then stays queued and is re-applied on the next
// cycle, which is safe because operations are idempotent.
func (q *Queue) Replay(ctx context.Context, target model.NodeID, apply ApplyFunc) (ReplayReport, error) {
	report := ReplayReport{Target: target}

	l, err := q.lane(target)
	if err != nil {
		return report, err
	}

	if !l.replaying.TryLock() {
		report.Skipped = true
		report.Remaining = len(q.Pending(target))
		return report, nil
	}
	defer l.replaying.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			report.Err = err
			break
		}

		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.mu.Unlock()
			break
		}
		head := l.tasks[0]
		l.mu.Unlock()

		if err := apply(ctx, head); err != nil {
			report.Err = err
			q.metrics.ObserveReplay(target, metrics.OutcomeFailed)
			break
		}

		removed, err := q.remove(ctx, l, head.ID)
		if err != nil {
			report.Remaining = len(q.Pending(target))
			return report, err
		}
		if removed {
			report.Applied++
			q.metrics.ObserveReplay(target, metrics.OutcomeApplied)
		}
	}

	report.Remaining = len(q.Pending(target))
	return report, nil
}

// remove drops the task with id from the head of l and persists the lane.
// It reports false when the head changed underneath (for example a purge).
func (q *Queue) remove(ctx context.Context, l *lane, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.tasks) == 0 || l.tasks[0].ID != id {
		return false, nil
	}

	next := make([]model.RecoveryTask, len(l.tasks)-1)
	copy(next, l.tasks[1:])

	if err := q.journal.Save(ctx, l.target, next); err != nil {
		slog.Error("recovery journal write failed", "target", l.target, "id", id, "error", err)
		return false, model.NewQueuePersistenceError(l.target, err)
	}

	l.tasks = next
	q.metrics.SetQueueDepth(l.target, len(next))
	return true, nil
}
