package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/recovery"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/store"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/testutil"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Type: "invocation", Action: ActionNodeDown, Args: map[string]any{"node": "central"}, Seq: 1},
		{Type: "completion", OutputCase: CaseSuccess, Seq: 2},
		{Type: "invocation", Action: ActionUpsert, Args: map[string]any{"tconst": "tt0000001", "startYear": 1995}, Seq: 3},
		{Type: "completion", OutputCase: CaseQueued, Seq: 4},
		{Type: "invocation", Action: ActionReplay, Args: map[string]any{}, Seq: 5},
		{Type: "completion", OutputCase: CasePending, Seq: 6},
		{Type: "invocation", Action: ActionReplay, Args: map[string]any{}, Seq: 7},
		{Type: "completion", OutputCase: CaseDrained, Seq: 8},
	}
}

func TestAssertTraceContains_Found(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:   AssertTraceContains,
		Action: ActionUpsert,
		Args:   map[string]any{"startYear": 1995},
	})
	assert.NoError(t, err)
}

func TestAssertTraceContains_NotFound(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:   AssertTraceContains,
		Action: ActionDelete,
	})
	require.Error(t, err)

	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertTraceContains, aerr.Type)
	assert.Contains(t, err.Error(), "Full trace:")
	assert.Contains(t, err.Error(), "[1] node.down")
}

func TestAssertTraceContains_ArgsMismatch(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:   AssertTraceContains,
		Action: ActionUpsert,
		Args:   map[string]any{"startYear": 2015},
	})
	assert.Error(t, err)
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{ActionNodeDown, ActionUpsert, ActionReplay}}))

	err := assertTraceOrder(trace, Assertion{Actions: []string{ActionReplay, ActionUpsert}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertTraceOrder(trace, Assertion{Actions: []string{ActionNodeDown, ActionNodeUp}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing action: node.up")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Action: ActionReplay, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: ActionDelete, Count: 0}))

	err := assertTraceCount(trace, Assertion{Action: ActionReplay, Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestMatchArgs(t *testing.T) {
	actual := map[string]any{
		"served_by": "fragment-a",
		"rows":      2,
		"failed":    []model.NodeID{model.Central},
		"record":    map[string]any{"tconst": "tt0000001", "startYear": 1995, "isAdult": false},
	}

	tests := []struct {
		name     string
		expected map[string]any
		want     bool
	}{
		{"empty expectation", nil, true},
		{"scalar subset", map[string]any{"served_by": "fragment-a"}, true},
		{"int against int", map[string]any{"rows": 2}, true},
		{"typed list against plain list", map[string]any{"failed": []any{"central"}}, true},
		{"nested subset", map[string]any{"record": map[string]any{"startYear": 1995}}, true},
		{"wrong value", map[string]any{"served_by": "central"}, false},
		{"missing key", map[string]any{"keys": []any{}}, false},
		{"list is exact", map[string]any{"failed": []any{}}, false},
		{"nested mismatch", map[string]any{"record": map[string]any{"isAdult": true}}, false},
		{"map against scalar", map[string]any{"rows": map[string]any{"n": 2}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchArgs(actual, tt.expected))
		})
	}
}

func TestAssertFinalStateAndQueueDepth(t *testing.T) {
	ctx := context.Background()
	cluster := testutil.NewCluster(t)
	cluster.Seed(t, model.Record{
		Key:          "tt0000001",
		TitleType:    "movie",
		PrimaryTitle: "Heat",
		StartYear:    model.IntPtr(1995),
	}, model.Central)

	present := Assertion{Type: AssertFinalState, Node: "central", Key: "tt0000001",
		Expect: map[string]any{"primaryTitle": "Heat", "startYear": 1995}}
	assert.NoError(t, assertFinalState(ctx, cluster, present))

	wrong := present
	wrong.Expect = map[string]any{"startYear": 2015}
	err := assertFinalState(ctx, cluster, wrong)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "startYear"`)

	absent := Assertion{Type: AssertFinalState, Node: "central", Key: "tt0000001", Absent: true}
	err = assertFinalState(ctx, cluster, absent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `row present: tt0000001 "Heat" (1995)`)

	missing := Assertion{Type: AssertFinalState, Node: "fragment-b", Key: "tt0000001",
		Expect: map[string]any{"primaryTitle": "Heat"}}
	err = assertFinalState(ctx, cluster, missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row not found")

	// A downed node is still readable directly.
	cluster.SetDown(model.Central, true)
	assert.NoError(t, assertFinalState(ctx, cluster, present))

	journal, err := store.Open(t.TempDir() + "/recovery.db")
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })
	q, err := recovery.Open(ctx, journal)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, model.FragmentA, model.DeleteOp("tt0000001"))
	require.NoError(t, err)

	assert.NoError(t, assertQueueDepth(q, Assertion{Target: "fragment-a", Count: 1}))
	assert.NoError(t, assertQueueDepth(q, Assertion{Target: "central", Count: 0}))
	err = assertQueueDepth(q, Assertion{Target: "fragment-a", Count: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete tt0000001")
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Action: ActionReplay, Count: 2},
		{Type: AssertTraceCount, Action: ActionReplay, Count: 3},
		{Type: AssertFinalState, Node: "central", Key: "tt0000001", Absent: true},
		{Type: AssertQueueDepth, Target: "central"},
		{Type: "eventually"},
	}, nil)

	require.Len(t, errs, 4)
	assert.Contains(t, errs[0], "3 occurrences of recovery.replay")
	assert.Contains(t, errs[1], "final_state requires a cluster")
	assert.Contains(t, errs[2], "queue_depth requires a queue")
	assert.Contains(t, errs[3], `unknown assertion type "eventually"`)
}
