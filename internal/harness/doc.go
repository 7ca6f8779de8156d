// Package harness runs scripted replication scenarios against a three-node
// SQLite cluster with fault injection.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: central_down_recovery
//	description: "A write while central is down is queued and replayed"
//	role: central             # optional, default central
//	now: 2024-11-20T08:00:00Z # optional, fixes the default startYear
//	setup:
//	  - action: node.seed
//	    args: { nodes: [central, fragment-a], record: { tconst: tt1, startYear: 1999 } }
//	flow:
//	  - invoke: node.down
//	    args: { node: central }
//	  - invoke: movies.upsert
//	    args: { tconst: tt2, primaryTitle: "Heat", startYear: 1995 }
//	    expect:
//	      case: Queued
//	      result: { deferred: [central] }
//	assertions:
//	  - type: queue_depth
//	    target: central
//	    count: 1
//	  - type: final_state
//	    node: fragment-a
//	    key: tt2
//	    expect: { primaryTitle: "Heat" }
//
// # Actions
//
//   - node.down, node.up: toggle reachability of args.node
//   - node.seed: write args.record to args.nodes, bypassing the engine
//   - movies.upsert: args is the record
//   - movies.delete, movies.get, movies.verify: args.tconst
//   - movies.list, movies.search: args.limit, args.term, args.order
//   - reports.top_genres, reports.most_titles_year, reports.adult_count
//   - recovery.replay: one replay cycle, or args.target only
//
// Every action completes with a case. Writes complete with Replicated or
// Queued, reads with Served, Found or NotFound, replay with Drained or
// Pending, verify with Consistent or Inconsistent. Engine errors complete
// with their error code, e.g. VALIDATION or ALL_NODES_UNAVAILABLE.
//
// # Assertion Types
//
//   - trace_contains: an invocation of action with matching args exists
//   - trace_order: actions were invoked in the given order
//   - trace_count: action was invoked exactly count times
//   - final_state: key on node has the expected fields, or is absent
//   - queue_depth: target has exactly count pending tasks
//
// # Deterministic Testing
//
// Each run uses a fresh cluster in a temporary directory, a fake wall clock,
// sequential task IDs and a logical clock for trace sequence numbers, so the
// same scenario always produces the same trace. Traces are compared against
// golden files with RunWithGolden.
package harness
