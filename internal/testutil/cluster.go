package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/node"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/query"
)

// Tables maps each node to the table name a production deployment uses.
var Tables = map[model.NodeID]string{
	model.Central:   "dim_title",
	model.FragmentA: "dim_title_f1",
	model.FragmentB: "dim_title_f2",
}

// Cluster is three SQLite nodes with fault injection.
type Cluster struct {
	Registry *node.Registry
	nodes    map[model.NodeID]*FlakyNode
}

// NewCluster opens three SQLite nodes under t.TempDir() and closes them when
// the test ends.
func NewCluster(t testing.TB) *Cluster {
	t.Helper()

	c, err := OpenCluster(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// OpenCluster opens three SQLite nodes with one database file each in dir.
func OpenCluster(dir string) (*Cluster, error) {
	c := &Cluster{nodes: map[model.NodeID]*FlakyNode{}}
	var all []node.Node
	for _, id := range model.AllNodes() {
		sqlNode, err := node.OpenSQL(context.Background(), node.SQLConfig{
			ID:          id,
			Driver:      node.DriverSQLite,
			DSN:         filepath.Join(dir, string(id)+".db"),
			Table:       Tables[id],
			Timeout:     2 * time.Second,
			CreateTable: true,
		})
		if err != nil {
			for _, n := range all {
				n.(*FlakyNode).Close()
			}
			return nil, err
		}

		flaky := NewFlakyNode(sqlNode)
		c.nodes[id] = flaky
		all = append(all, flaky)
	}

	reg, err := node.NewRegistry(all...)
	if err != nil {
		return nil, err
	}
	c.Registry = reg
	return c, nil
}

// Close closes every node.
func (c *Cluster) Close() error {
	return c.Registry.Close()
}

// Node returns the fault-injectable node for id.
func (c *Cluster) Node(id model.NodeID) *FlakyNode {
	return c.nodes[id]
}

// SetDown toggles reachability of id.
func (c *Cluster) SetDown(id model.NodeID, down bool) {
	c.nodes[id].SetDown(down)
}

// ResetCalls zeroes call counters on every node.
func (c *Cluster) ResetCalls() {
	for _, n := range c.nodes {
		n.ResetCalls()
	}
}

// Stored reads key from id, bypassing fault injection.
func (c *Cluster) Stored(t testing.TB, id model.NodeID, key string) (model.Record, bool) {
	t.Helper()
	rec, found, err := c.nodes[id].Inner().Get(context.Background(), key)
	require.NoError(t, err)
	return rec, found
}

// Count returns the number of rows stored on id, bypassing fault injection.
func (c *Cluster) Count(t testing.TB, id model.NodeID) int {
	t.Helper()
	rows, err := c.nodes[id].Inner().Query(context.Background(), query.Titles(10000))
	require.NoError(t, err)
	return len(rows)
}

// Seed writes rec directly to the listed nodes, bypassing fault injection.
func (c *Cluster) Seed(t testing.TB, rec model.Record, ids ...model.NodeID) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, c.nodes[id].Inner().Upsert(context.Background(), rec))
	}
}
