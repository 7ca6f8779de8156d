package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/recovery"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/testutil"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent // for context; may be nil
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			if event.Type == "invocation" {
				fmt.Fprintf(&buf, "  [%d] %s %v\n", i+1, event.Action, event.Args)
			}
		}
	}
	return buf.String()
}

// assertTraceContains checks that an invocation of the action with matching
// args (subset match) is in the trace.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type == "invocation" && event.Action == assertion.Action {
			if matchArgs(event.Args, assertion.Args) {
				return nil
			}
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with args %v", assertion.Action, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first invocations of the actions appear
// in the given order. Other actions may come between them.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != "invocation" {
			continue
		}
		for _, expected := range assertion.Actions {
			if event.Action == expected && positions[expected] == 0 {
				positions[expected] = i + 1 // 1-indexed
			}
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the action was invoked exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == "invocation" && event.Action == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState reads Key directly from Node, bypassing fault injection,
// and checks the stored fields (subset match) or the absence of the row.
func assertFinalState(ctx context.Context, cluster *testutil.Cluster, assertion Assertion) error {
	id := model.NodeID(assertion.Node)
	rec, found, err := cluster.Node(id).Inner().Get(ctx, assertion.Key)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("read %s from %s", assertion.Key, id),
			Actual:   fmt.Sprintf("read error: %v", err),
		}
	}

	if assertion.Absent {
		if found {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s absent on %s", assertion.Key, id),
				Actual:   fmt.Sprintf("row present: %s", describeRecord(rec)),
			}
		}
		return nil
	}

	if !found {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s on %s with %s", assertion.Key, id, formatFields(assertion.Expect)),
			Actual:   "row not found",
		}
	}

	actual := normalizeMap(map[string]any{"record": rec})["record"].(map[string]any)
	for _, field := range sortedKeys(assertion.Expect) {
		want := normalize(assertion.Expect[field])
		got := actual[field]
		if !valuesEqual(got, want) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s on %s: field %q = %v", assertion.Key, id, field, want),
				Actual:   fmt.Sprintf("field %q = %v", field, got),
			}
		}
	}
	return nil
}

// assertQueueDepth checks the number of pending tasks for Target.
func assertQueueDepth(q *recovery.Queue, assertion Assertion) error {
	target := model.NodeID(assertion.Target)
	pending := q.Pending(target)
	if len(pending) != assertion.Count {
		keys := make([]string, len(pending))
		for i, t := range pending {
			keys[i] = fmt.Sprintf("%s %s", t.Op.Kind, t.Op.Key)
		}
		return &AssertionError{
			Type:     AssertQueueDepth,
			Expected: fmt.Sprintf("%d pending task(s) for %s", assertion.Count, target),
			Actual:   fmt.Sprintf("%d pending: %v", len(pending), keys),
		}
	}
	return nil
}

func describeRecord(rec model.Record) string {
	return fmt.Sprintf("%s %q (%d)", rec.Key, rec.PrimaryTitle, rec.Year())
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatFields creates a human-readable description of expected fields.
func formatFields(m map[string]any) string {
	keys := sortedKeys(m)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, ", ")
}

// matchArgs checks that actual contains every expected key with an equal
// value. Nested maps are matched the same way; extra keys are ignored.
func matchArgs(actual, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}
	return subsetMatch(normalize(actual), normalize(expected))
}

func subsetMatch(actual, expected any) bool {
	expMap, ok := expected.(map[string]any)
	if !ok {
		return valuesEqual(actual, expected)
	}
	actMap, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for k, ev := range expMap {
		av, exists := actMap[k]
		if !exists {
			return false
		}
		if !subsetMatch(av, ev) {
			return false
		}
	}
	return true
}

// valuesEqual compares two normalised values.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

// AssertionContext gives assertions access to the cluster and queue.
type AssertionContext struct {
	Ctx     context.Context
	Cluster *testutil.Cluster
	Queue   *recovery.Queue
}

// EvaluateAssertions evaluates all assertions against the result and
// returns a message for each failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Cluster == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires a cluster", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Cluster, assertion)
			}
		case AssertQueueDepth:
			if actx == nil || actx.Queue == nil {
				err = fmt.Errorf("assertion[%d]: queue_depth requires a queue", i)
			} else {
				err = assertQueueDepth(actx.Queue, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
