// Package testutil provides fault-injectable nodes for tests and scenarios.
//
// A Cluster is three SQLite-backed nodes in a temporary directory, each
// wrapped in a FlakyNode whose reachability can be toggled. Reads through
// Cluster.Stored bypass the fault injection so assertions can inspect what
// actually reached each node.
package testutil
