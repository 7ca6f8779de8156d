package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runInline(t *testing.T, doc string) *Result {
	t.Helper()
	s, err := ParseScenario([]byte(doc))
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)
	return result
}

func TestRun_CentralDownRecovery(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "central_down_recovery.yaml"))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 2*len(s.Flow))

	for i, event := range result.Trace {
		assert.Equal(t, int64(i+1), event.Seq, "seq is dense and ordered")
	}
	assert.Equal(t, CaseQueued, result.Trace[3].OutputCase)
	assert.Equal(t, []any{"central"}, result.Trace[3].Result["deferred"])
}

func TestRun_Reports(t *testing.T) {
	result := runInline(t, `
name: reports
description: reports aggregate whatever node serves them
setup:
  - action: node.seed
    args:
      nodes: [central, fragment-a]
      record: { tconst: tt0000001, primaryTitle: A, startYear: 1990, genres: Action }
  - action: node.seed
    args:
      nodes: [central, fragment-a]
      record: { tconst: tt0000002, primaryTitle: B, startYear: 1990, genres: Comedy, isAdult: true }
  - action: node.seed
    args:
      nodes: [central, fragment-b]
      record: { tconst: tt0000003, primaryTitle: C, startYear: 2020, genres: Action }
flow:
  - invoke: reports.top_genres
    args: {}
    expect:
      case: Served
      result:
        served_by: central
        data: [{ genres: Action, cnt: 2 }, { genres: Comedy, cnt: 1 }]
  - invoke: reports.most_titles_year
    args: { order: [fragment-a] }
    expect:
      case: Served
      result:
        served_by: fragment-a
        data: [{ startYear: 1990, count: 2 }]
  - invoke: node.down
    args: { node: central }
  - invoke: reports.adult_count
    args: {}
    expect:
      case: Served
      result:
        served_by: fragment-a
        failed: [central]
        data: [{ adultCount: 1, nonAdultCount: 1 }]
  - invoke: movies.search
    args: { term: tt0000003, order: [fragment-b] }
    expect:
      case: Served
      result: { keys: [tt0000003] }
assertions:
  - type: trace_count
    action: node.seed
    count: 3
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_RoleAndBoundary(t *testing.T) {
	result := runInline(t, `
name: role_and_boundary
description: a fragment-b engine reads locally first and honours a custom boundary
role: fragment-b
boundary: 2000
flow:
  - invoke: movies.upsert
    args: { tconst: tt0000001, primaryTitle: Memento, startYear: 2001 }
    expect: { case: Replicated }
  - invoke: movies.get
    args: { tconst: tt0000001 }
    expect:
      case: Found
      result: { served_by: fragment-b }
  - invoke: movies.verify
    args: { tconst: tt0000001 }
    expect:
      case: Consistent
      result: { assigned: fragment-b }
assertions:
  - type: final_state
    node: fragment-a
    key: tt0000001
    absent: true
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_MissingStartYearUsesScenarioClock(t *testing.T) {
	result := runInline(t, `
name: default_year
description: a title without a start year gets the current year
now: 2009-06-01T00:00:00Z
flow:
  - invoke: movies.upsert
    args: { tconst: tt0000001, primaryTitle: Untitled }
    expect: { case: Replicated }
assertions:
  - type: final_state
    node: fragment-a
    key: tt0000001
    expect: { startYear: 2009 }
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ValidationErrors(t *testing.T) {
	result := runInline(t, `
name: validation
description: invalid input is reported by code
flow:
  - invoke: movies.get
    args: { tconst: "tt 1" }
    expect: { case: VALIDATION }
  - invoke: movies.delete
    args: { tconst: "" }
    expect: { case: VALIDATION }
  - invoke: movies.verify
    args: { tconst: "tt-1" }
    expect: { case: VALIDATION }
assertions:
  - type: trace_count
    action: movies.get
    count: 1
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 6)
	assert.Contains(t, result.Trace[1].Result, "message")
}

func TestRun_ExpectationMismatchFails(t *testing.T) {
	result := runInline(t, `
name: mismatch
description: a wrong expectation fails the run without stopping it
flow:
  - invoke: movies.upsert
    args: { tconst: tt0000001, startYear: 1999 }
    expect: { case: Queued }
  - invoke: movies.get
    args: { tconst: tt0000001 }
    expect:
      case: Found
      result: { served_by: fragment-a }
assertions:
  - type: queue_depth
    target: central
    count: 1
`)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], `expected case "Queued", got "Replicated"`)
	assert.Contains(t, result.Errors[1], "expected result")
	assert.Contains(t, result.Errors[2], "0 pending")
	assert.Len(t, result.Trace, 4, "flow continues after a failed expectation")
}

func TestRun_BadArgsAreHarnessErrors(t *testing.T) {
	tests := []struct {
		name string
		flow string
		want string
	}{
		{"missing key", "- invoke: movies.get\n    args: {}", "args.tconst is required"},
		{"key not a string", "- invoke: movies.delete\n    args: { tconst: 7 }", "args.tconst must be a string"},
		{"unknown node", "- invoke: node.down\n    args: { node: archive }", "archive"},
		{"bad order", "- invoke: movies.list\n    args: { order: central }", "args.order must be a list"},
		{"seed without nodes", "- invoke: node.seed\n    args: { record: { tconst: tt1 } }", "args.nodes is required"},
		{"seed without record", "- invoke: node.seed\n    args: { nodes: [central] }", "args.record must be a map"},
		{"bad record", "- invoke: movies.upsert\n    args: { tconst: tt1, startYear: soon }", "decode record args"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseScenario([]byte(`
name: bad_args
description: bad args
flow:
  ` + tt.flow + `
assertions:
  - type: trace_count
    action: node.up
    count: 0
`))
			require.NoError(t, err)

			_, err = Run(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to execute flow")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "partition_migration.yaml"))
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := MarshalSnapshot(TraceSnapshot{ScenarioName: s.Name, Trace: first.Trace})
	require.NoError(t, err)
	b, err := MarshalSnapshot(TraceSnapshot{ScenarioName: s.Name, Trace: second.Trace})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
