package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
)

var testStart = time.Date(2024, 11, 20, 8, 0, 0, 0, time.UTC)

var errJournalDown = errors.New("disk full")

// memJournal is an in-memory Journal that can be told to fail writes.
type memJournal struct {
	mu    sync.Mutex
	lanes map[model.NodeID][]model.RecoveryTask
	fail  bool
	saves int
}

func newMemJournal(tasks ...model.RecoveryTask) *memJournal {
	j := &memJournal{lanes: map[model.NodeID][]model.RecoveryTask{}}
	for _, t := range tasks {
		j.lanes[t.Target] = append(j.lanes[t.Target], t)
	}
	return j
}

func (j *memJournal) Load(ctx context.Context) ([]model.RecoveryTask, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := []model.RecoveryTask{}
	for _, id := range model.AllNodes() {
		out = append(out, j.lanes[id]...)
	}
	return out, nil
}

func (j *memJournal) Save(ctx context.Context, target model.NodeID, tasks []model.RecoveryTask) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.fail {
		return errJournalDown
	}
	j.saves++
	j.lanes[target] = append([]model.RecoveryTask(nil), tasks...)
	return nil
}

func (j *memJournal) setFail(fail bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fail = fail
}

func (j *memJournal) persisted(target model.NodeID) []model.RecoveryTask {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]model.RecoveryTask(nil), j.lanes[target]...)
}

func openTestQueue(t *testing.T, j Journal, ids ...string) (*Queue, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testStart)
	q, err := Open(context.Background(), j,
		WithClock(clock),
		WithIDGenerator(NewFixedGenerator(ids...)),
	)
	require.NoError(t, err)
	return q, clock
}

func upsert(key string, year int) model.Operation {
	return model.UpsertOp(model.Record{Key: key, PrimaryTitle: "Title " + key, StartYear: model.IntPtr(year)})
}

func keys(tasks []model.RecoveryTask) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Op.Key
	}
	return out
}

// applier records applied tasks and fails for keys in down.
type applier struct {
	mu      sync.Mutex
	down    map[string]bool
	applied []string
}

func newApplier(downKeys ...string) *applier {
	a := &applier{down: map[string]bool{}}
	for _, k := range downKeys {
		a.down[k] = true
	}
	return a
}

func (a *applier) apply(ctx context.Context, task model.RecoveryTask) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.down[task.Op.Key] || a.down[string(task.Target)] {
		return model.NewNodeUnavailable(task.Target, errors.New("connection refused"))
	}
	a.applied = append(a.applied, string(task.Target)+"/"+task.Op.Key)
	return nil
}

func (a *applier) setDown(k string, down bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.down[k] = down
}

func (a *applier) log() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.applied...)
}
