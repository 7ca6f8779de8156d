package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/node"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/store"
)

type cliEnv struct {
	dir         string
	configPath  string
	journalPath string
}

type envOption func(nodes map[model.NodeID]string)

// withUnreachable points id at a read-only SQLite URI that cannot be opened.
func withUnreachable(id model.NodeID) envOption {
	return func(nodes map[model.NodeID]string) {
		nodes[id] = "file:" + filepath.Join(os.TempDir(), "mco2-missing", fmt.Sprint(time.Now().UnixNano()), "x.db") + "?mode=ro"
	}
}

func newCLIEnv(t *testing.T, journalDriver string, opts ...envOption) *cliEnv {
	t.Helper()
	dir := t.TempDir()

	dsns := map[model.NodeID]string{
		model.Central:   filepath.Join(dir, "central.db"),
		model.FragmentA: filepath.Join(dir, "fragment-a.db"),
		model.FragmentB: filepath.Join(dir, "fragment-b.db"),
	}
	for _, opt := range opts {
		opt(dsns)
	}

	journalPath := filepath.Join(dir, "recovery.db")
	if journalDriver == "file" {
		journalPath = filepath.Join(dir, "journal")
	}

	cfg := fmt.Sprintf(`role: central
listen: "127.0.0.1:0"
replay_interval: 1s
journal:
  driver: %s
  path: %q
nodes:
  central:
    driver: sqlite3
    dsn: %q
    table: dim_title
    create_table: true
  fragment-a:
    driver: sqlite3
    dsn: %q
    table: dim_title_f1
    create_table: true
  fragment-b:
    driver: sqlite3
    dsn: %q
    table: dim_title_f2
    create_table: true
`, journalDriver, journalPath, dsns[model.Central], dsns[model.FragmentA], dsns[model.FragmentB])

	configPath := filepath.Join(dir, "mco2.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))

	return &cliEnv{dir: dir, configPath: configPath, journalPath: journalPath}
}

// run executes the CLI with the env's config and returns stdout and stderr.
func (e *cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(context.Background(), append([]string{"--config", e.configPath}, args...)...)
}

func runCLI(ctx context.Context, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func (e *cliEnv) seedTasks(t *testing.T, target model.NodeID, tasks ...model.RecoveryTask) {
	t.Helper()
	j, err := store.Open(e.journalPath)
	require.NoError(t, err)
	defer j.Close()
	require.NoError(t, j.Save(context.Background(), target, tasks))
}

func upsertTask(seq int64, target model.NodeID, key string, year int) model.RecoveryTask {
	return model.RecoveryTask{
		ID:     fmt.Sprintf("task-%d", seq),
		Seq:    seq,
		Target: target,
		Op: model.UpsertOp(model.Record{
			Key:          key,
			TitleType:    "movie",
			PrimaryTitle: "Title " + key,
			StartYear:    model.IntPtr(year),
		}),
		EnqueuedAt: time.Date(2024, 11, 20, 8, 0, 0, 0, time.UTC),
	}
}

func decodeData[T any](t *testing.T, out string) T {
	t.Helper()
	var resp struct {
		Status string `json:"status"`
		Data   T      `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestQueueList_Empty(t *testing.T) {
	env := newCLIEnv(t, "sqlite")

	stdout, _, err := env.run(t, "queue", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No pending recovery tasks.")
}

func TestQueueList_JSON(t *testing.T) {
	env := newCLIEnv(t, "sqlite")
	env.seedTasks(t, model.FragmentA,
		upsertTask(1, model.FragmentA, "tt0000001", 1999),
		upsertTask(2, model.FragmentA, "tt0000002", 2001),
	)
	env.seedTasks(t, model.Central, upsertTask(3, model.Central, "tt0000003", 2015))

	stdout, _, err := env.run(t, "--format", "json", "queue", "list")
	require.NoError(t, err)
	listing := decodeData[QueueListing](t, stdout)
	require.Len(t, listing.Tasks, 3)
	assert.Equal(t, model.Central, listing.Tasks[0].Target)
	assert.Equal(t, "tt0000001", listing.Tasks[1].Op.Key)
	assert.Equal(t, "tt0000002", listing.Tasks[2].Op.Key)

	stdout, _, err = env.run(t, "--format", "json", "queue", "list", "--target", "fragment-a")
	require.NoError(t, err)
	listing = decodeData[QueueListing](t, stdout)
	assert.Len(t, listing.Tasks, 2)
}

func TestQueueList_Text(t *testing.T) {
	env := newCLIEnv(t, "sqlite")
	env.seedTasks(t, model.FragmentB, upsertTask(7, model.FragmentB, "tt0000007", 2020))

	stdout, _, err := env.run(t, "queue", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "SEQ")
	assert.Contains(t, stdout, "fragment-b")
	assert.Contains(t, stdout, "tt0000007")
	assert.Contains(t, stdout, "1 pending task(s)")
}

func TestQueueList_InvalidTarget(t *testing.T) {
	env := newCLIEnv(t, "sqlite")

	_, _, err := env.run(t, "queue", "list", "--target", "fragment-c")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestQueueList_FileJournal(t *testing.T) {
	env := newCLIEnv(t, "file")

	stdout, _, err := env.run(t, "--format", "json", "queue", "list")
	require.NoError(t, err)
	listing := decodeData[QueueListing](t, stdout)
	assert.Empty(t, listing.Tasks)

	_, err = os.Stat(filepath.Join(env.journalPath, ".journal.lock"))
	assert.NoError(t, err)
}

func TestQueue_JournalLocked(t *testing.T) {
	env := newCLIEnv(t, "sqlite")

	lock := flock.New(env.journalPath + ".lock")
	locked, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer lock.Unlock()

	_, _, err = env.run(t, "queue", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrJournalLocked)
}

func TestQueuePurge(t *testing.T) {
	env := newCLIEnv(t, "sqlite")
	env.seedTasks(t, model.FragmentA,
		upsertTask(1, model.FragmentA, "tt0000001", 1999),
		upsertTask(2, model.FragmentA, "tt0000002", 2001),
	)
	env.seedTasks(t, model.Central, upsertTask(3, model.Central, "tt0000003", 2015))

	stdout, _, err := env.run(t, "--format", "json", "queue", "purge", "--target", "fragment-a")
	require.NoError(t, err)
	result := decodeData[PurgeResult](t, stdout)
	assert.Equal(t, model.FragmentA, result.Target)
	assert.Equal(t, 2, result.Dropped)

	stdout, _, err = env.run(t, "--format", "json", "queue", "list")
	require.NoError(t, err)
	listing := decodeData[QueueListing](t, stdout)
	require.Len(t, listing.Tasks, 1)
	assert.Equal(t, model.Central, listing.Tasks[0].Target)
}

func TestReplay_DrainsQueue(t *testing.T) {
	env := newCLIEnv(t, "sqlite")
	env.seedTasks(t, model.FragmentA,
		upsertTask(1, model.FragmentA, "tt0000001", 1999),
		upsertTask(2, model.FragmentA, "tt0000002", 2001),
	)

	stdout, _, err := env.run(t, "--format", "json", "replay")
	require.NoError(t, err)
	out := decodeData[ReplayOutput](t, stdout)
	require.Len(t, out.Targets, 3)
	assert.Equal(t, TargetReplay{Target: model.FragmentA, Applied: 2}, out.Targets[1])
	assert.True(t, out.Complete())

	n, err := node.OpenSQL(context.Background(), node.SQLConfig{
		ID:     model.FragmentA,
		Driver: node.DriverSQLite,
		DSN:    filepath.Join(env.dir, "fragment-a.db"),
		Table:  "dim_title_f1",
	})
	require.NoError(t, err)
	defer n.Close()

	rec, found, err := n.Get(context.Background(), "tt0000002")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Title tt0000002", rec.PrimaryTitle)

	stdout, _, err = env.run(t, "queue", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No pending recovery tasks.")
}

func TestReplay_TargetStillDown(t *testing.T) {
	env := newCLIEnv(t, "sqlite", withUnreachable(model.FragmentB))
	env.seedTasks(t, model.FragmentB, upsertTask(1, model.FragmentB, "tt0000009", 2020))

	stdout, _, err := env.run(t, "replay")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "fragment-b")

	stdout, _, err = env.run(t, "--format", "json", "queue", "list")
	require.NoError(t, err)
	listing := decodeData[QueueListing](t, stdout)
	require.Len(t, listing.Tasks, 1)
	assert.Equal(t, "tt0000009", listing.Tasks[0].Op.Key)
}

func TestValidate(t *testing.T) {
	env := newCLIEnv(t, "sqlite")

	stdout, _, err := runCLI(context.Background(), "validate", env.configPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "is valid")
	assert.Contains(t, stdout, "central")

	stdout, _, err = runCLI(context.Background(), "--format", "json", "validate", env.configPath)
	require.NoError(t, err)
	result := decodeData[ValidateResult](t, stdout)
	assert.Equal(t, model.Central, result.Role)
	assert.Equal(t, 2010, result.Boundary)
	assert.Equal(t, []model.NodeID{model.Central, model.FragmentA, model.FragmentB}, result.FailoverOrder)
}

func TestValidate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("role: fragment-c\n"), 0o644))

	stdout, _, err := runCLI(context.Background(), "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [INVALID_CONFIG]")
}

func TestValidate_MissingFile(t *testing.T) {
	_, _, err := runCLI(context.Background(), "validate", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestConfigFlag_Unreadable(t *testing.T) {
	_, _, err := runCLI(context.Background(), "--config", filepath.Join(t.TempDir(), "nope.yaml"), "queue", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func healthServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"status":"OK"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbe_FirstReachable(t *testing.T) {
	down := healthServer(t, http.StatusServiceUnavailable)
	up := healthServer(t, http.StatusOK)

	stdout, _, err := runCLI(context.Background(), "probe", down.URL, up.URL)
	require.NoError(t, err)
	assert.Equal(t, "Reachable: "+up.URL+"\n", stdout)

	stdout, _, err = runCLI(context.Background(), "--format", "json", "probe", up.URL)
	require.NoError(t, err)
	assert.Equal(t, ProbeResult{Entry: up.URL}, decodeData[ProbeResult](t, stdout))
}

func TestProbe_NoneReachable(t *testing.T) {
	down := healthServer(t, http.StatusServiceUnavailable)

	stdout, _, err := runCLI(context.Background(), "probe", "--timeout", "500ms", down.URL)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "NO_REACHABLE_NODE")
}

func TestProbe_WaitGivesUp(t *testing.T) {
	down := healthServer(t, http.StatusServiceUnavailable)

	_, _, err := runCLI(context.Background(), "probe", "--wait", "300ms", down.URL)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestServe_StopsWhenContextEnds(t *testing.T) {
	env := newCLIEnv(t, "sqlite")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	stdout, _, err := runCLI(ctx, "--config", env.configPath, "serve")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Serving central on 127.0.0.1:0")

	// The journal lock is released on shutdown.
	_, _, err = env.run(t, "queue", "list")
	require.NoError(t, err)
}
