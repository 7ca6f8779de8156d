package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSuite_Scenarios(t *testing.T) {
	result, err := RunSuite(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	assert.Equal(t, 5, result.Total)
	assert.Equal(t, result.Total, result.Passed)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Failures)
}

func TestRunSuite_ReportsFailures(t *testing.T) {
	dir := t.TempDir()

	passing := `
name: passing
description: nothing queued on a healthy cluster
flow:
  - invoke: movies.list
    args: {}
    expect: { case: Served }
assertions:
  - type: queue_depth
    target: central
    count: 0
`
	failing := `
name: failing
description: wrong final state
flow:
  - invoke: movies.list
    args: {}
assertions:
  - type: final_state
    node: central
    key: tt0000001
    expect: { primaryTitle: Missing }
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_passing.yaml"), []byte(passing), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_failing.yaml"), []byte(failing), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c_broken.yaml"), []byte("name: [unterminated"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	result, err := RunSuite(dir)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, filepath.Join(dir, "b_failing.yaml"), result.Failures[0].Path)
	assert.Contains(t, result.Failures[0].Error, "scenario assertions failed")
	assert.Contains(t, result.Failures[0].Error, "row not found")
	assert.Contains(t, result.Failures[1].Error, "failed to load scenario")
}

func TestRunSuite_MissingDirectory(t *testing.T) {
	_, err := RunSuite(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario directory")
}
