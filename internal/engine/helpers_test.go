package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/recovery"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/store"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/testutil"
)

var testNow = time.Date(2024, 11, 20, 8, 0, 0, 0, time.UTC)

type fixture struct {
	engine   *Engine
	cluster  *testutil.Cluster
	queue    *recovery.Queue
	replayer *recovery.Replayer
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	journal, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	return newFixtureWithJournal(t, journal, opts...)
}

func newFixtureWithJournal(t *testing.T, journal recovery.Journal, opts ...Option) *fixture {
	t.Helper()

	clock := clockwork.NewFakeClockAt(testNow)
	cluster := testutil.NewCluster(t)
	q, err := recovery.Open(context.Background(), journal,
		recovery.WithClock(clock),
		recovery.WithIDGenerator(recovery.NewSequenceGenerator("task")),
	)
	require.NoError(t, err)

	opts = append([]Option{WithClock(clock)}, opts...)
	return &fixture{
		engine:   New(cluster.Registry, q, opts...),
		cluster:  cluster,
		queue:    q,
		replayer: recovery.NewReplayer(q, recovery.NodeApplier(cluster.Registry), time.Second),
	}
}

func (f *fixture) replay(t *testing.T) []recovery.ReplayReport {
	t.Helper()
	reports, err := f.replayer.RunOnce(context.Background())
	require.NoError(t, err)
	return reports
}

func title(key string, year int) model.Record {
	return model.Record{
		Key:          key,
		TitleType:    "movie",
		PrimaryTitle: "Title " + key,
		StartYear:    model.IntPtr(year),
		Genres:       "Drama",
	}
}

// brokenJournal loads nothing and refuses every write.
type brokenJournal struct{}

func (brokenJournal) Load(context.Context) ([]model.RecoveryTask, error) {
	return nil, nil
}

func (brokenJournal) Save(context.Context, model.NodeID, []model.RecoveryTask) error {
	return errors.New("read-only file system")
}
