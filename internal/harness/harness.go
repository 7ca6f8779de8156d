package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/engine"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/partition"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/query"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/recovery"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/store"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/testutil"
)

// DefaultNow is the wall-clock time of a scenario that sets none.
var DefaultNow = time.Date(2024, 11, 20, 8, 0, 0, 0, time.UTC)

// Completion cases that are not error codes.
const (
	CaseSuccess      = "Success"
	CaseReplicated   = "Replicated"
	CaseQueued       = "Queued"
	CaseServed       = "Served"
	CaseFound        = "Found"
	CaseNotFound     = "NotFound"
	CaseDrained      = "Drained"
	CasePending      = "Pending"
	CaseConsistent   = "Consistent"
	CaseInconsistent = "Inconsistent"
	CaseError        = "Error"
)

// Harness executes one scenario against a fresh cluster.
type Harness struct {
	cluster  *testutil.Cluster
	journal  *store.SQLiteJournal
	queue    *recovery.Queue
	engine   *engine.Engine
	replayer *recovery.Replayer
	clock    *recovery.Clock
}

// completion is the observable outcome of one action.
type completion struct {
	Case   string
	Result map[string]any
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on its own cluster and journal in a temporary directory
// that is removed afterwards. The returned error reports a harness problem
// (bad args, I/O); expectation and assertion failures are in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "mco2-harness-*")
	if err != nil {
		return nil, fmt.Errorf("create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	h, err := newHarness(dir, scenario)
	if err != nil {
		return nil, err
	}
	defer h.close()

	ctx := context.Background()
	result := NewResult()

	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{Ctx: ctx, Cluster: h.cluster, Queue: h.queue}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(dir string, scenario *Scenario) (*Harness, error) {
	now := scenario.Now
	if now.IsZero() {
		now = DefaultNow
	}
	wall := clockwork.NewFakeClockAt(now)

	cluster, err := testutil.OpenCluster(dir)
	if err != nil {
		return nil, fmt.Errorf("open cluster: %w", err)
	}

	journal, err := store.Open(filepath.Join(dir, "recovery.db"))
	if err != nil {
		cluster.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}

	q, err := recovery.Open(context.Background(), journal,
		recovery.WithClock(wall),
		recovery.WithIDGenerator(recovery.NewSequenceGenerator("task")),
	)
	if err != nil {
		journal.Close()
		cluster.Close()
		return nil, fmt.Errorf("open recovery queue: %w", err)
	}

	role := model.Central
	if scenario.Role != "" {
		role = model.NodeID(scenario.Role)
	}
	rule := partition.Default()
	if scenario.Boundary != 0 {
		rule = partition.New(scenario.Boundary)
	}

	return &Harness{
		cluster: cluster,
		journal: journal,
		queue:   q,
		engine: engine.New(cluster.Registry, q,
			engine.WithClock(wall),
			engine.WithRole(engine.DefaultRole(role)),
			engine.WithRule(rule),
		),
		replayer: recovery.NewReplayer(q, recovery.NodeApplier(cluster.Registry), time.Second,
			recovery.WithReplayClock(wall),
		),
		clock: recovery.NewClock(),
	}, nil
}

func (h *Harness) close() {
	h.journal.Close()
	h.cluster.Close()
}

// executeSetup runs setup steps. They are traced like flow steps.
func (h *Harness) executeSetup(ctx context.Context, setup []ActionStep, result *Result) error {
	for i, step := range setup {
		if _, err := h.step(ctx, step.Action, step.Args, result); err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
	}
	return nil
}

// executeFlow runs flow steps and checks each expect clause.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		c, err := h.step(ctx, step.Invoke, step.Args, result)
		if err != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, err)
		}
		if step.Expect == nil {
			continue
		}
		if c.Case != step.Expect.Case {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected case %q, got %q (result %v)",
				i, step.Invoke, step.Expect.Case, c.Case, c.Result))
			continue
		}
		if !matchArgs(c.Result, step.Expect.Result) {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected result %v, got %v",
				i, step.Invoke, step.Expect.Result, c.Result))
		}
	}
	return nil
}

// step invokes one action and appends its invocation and completion to the
// trace. Each trace event takes its own logical clock tick.
func (h *Harness) step(ctx context.Context, action string, args map[string]any, result *Result) (completion, error) {
	result.AddInvocationTrace(action, args, h.clock.Next())

	c, err := h.invoke(ctx, action, args)
	if err != nil {
		return completion{}, err
	}
	c.Result = normalizeMap(c.Result)
	result.AddCompletionTrace(c.Case, c.Result, h.clock.Next())
	return c, nil
}

func (h *Harness) invoke(ctx context.Context, action string, args map[string]any) (completion, error) {
	switch action {
	case ActionNodeDown, ActionNodeUp:
		id, err := argNode(args, "node")
		if err != nil {
			return completion{}, err
		}
		h.cluster.SetDown(id, action == ActionNodeDown)
		return completion{Case: CaseSuccess}, nil

	case ActionNodeSeed:
		return h.seed(ctx, args)

	case ActionUpsert:
		rec, err := argRecord(args)
		if err != nil {
			return completion{}, err
		}
		res, err := h.engine.Upsert(ctx, rec)
		return writeCompletion(res, err), nil

	case ActionDelete:
		key, err := argString(args, "tconst")
		if err != nil {
			return completion{}, err
		}
		res, err := h.engine.Delete(ctx, key)
		return writeCompletion(res, err), nil

	case ActionGet:
		return h.get(ctx, args)

	case ActionList:
		return h.query(ctx, query.Titles(argInt(args, "limit", 0)), args)

	case ActionSearch:
		term, err := argString(args, "term")
		if err != nil {
			return completion{}, err
		}
		return h.query(ctx, query.Search(term, argInt(args, "limit", 0)), args)

	case ActionTopGenres:
		return h.query(ctx, query.TopGenres(), args)

	case ActionMostTitlesYear:
		return h.query(ctx, query.MostTitlesYear(), args)

	case ActionAdultCount:
		return h.query(ctx, query.AdultCount(), args)

	case ActionVerify:
		return h.verify(ctx, args)

	case ActionReplay:
		return h.replay(ctx, args)
	}
	return completion{}, fmt.Errorf("unknown action %q", action)
}

func (h *Harness) seed(ctx context.Context, args map[string]any) (completion, error) {
	nodes, err := argNodes(args, "nodes")
	if err != nil {
		return completion{}, err
	}
	raw, ok := args["record"].(map[string]any)
	if !ok {
		return completion{}, fmt.Errorf("args.record must be a map")
	}
	rec, err := argRecord(raw)
	if err != nil {
		return completion{}, err
	}
	for _, id := range nodes {
		if err := h.cluster.Node(id).Inner().Upsert(ctx, rec); err != nil {
			return completion{}, fmt.Errorf("seed %s: %w", id, err)
		}
	}
	return completion{Case: CaseSuccess}, nil
}

func (h *Harness) get(ctx context.Context, args map[string]any) (completion, error) {
	key, err := argString(args, "tconst")
	if err != nil {
		return completion{}, err
	}
	order, err := argOptionalNodes(args, "order")
	if err != nil {
		return completion{}, err
	}

	rec, found, servedBy, err := h.engine.Get(ctx, key, order...)
	if err != nil {
		return errorCompletion(err), nil
	}
	if !found {
		return completion{Case: CaseNotFound, Result: map[string]any{"served_by": servedBy}}, nil
	}
	return completion{Case: CaseFound, Result: map[string]any{"served_by": servedBy, "record": rec}}, nil
}

func (h *Harness) query(ctx context.Context, stmt query.Statement, args map[string]any) (completion, error) {
	order, err := argOptionalNodes(args, "order")
	if err != nil {
		return completion{}, err
	}

	res, err := h.engine.Query(ctx, stmt, order...)
	if err != nil {
		return errorCompletion(err), nil
	}

	failed := make([]model.NodeID, len(res.Failed))
	for i, a := range res.Failed {
		failed[i] = a.Node
	}
	out := map[string]any{
		"served_by": res.ServedBy,
		"failed":    failed,
		"rows":      len(res.Rows),
	}
	if stmt.Kind == query.KindTitles {
		keys := make([]any, len(res.Rows))
		for i, row := range res.Rows {
			keys[i] = row["tconst"]
		}
		out["keys"] = keys
	} else {
		out["data"] = res.Rows
	}
	return completion{Case: CaseServed, Result: out}, nil
}

func (h *Harness) verify(ctx context.Context, args map[string]any) (completion, error) {
	key, err := argString(args, "tconst")
	if err != nil {
		return completion{}, err
	}
	v, err := h.engine.Verify(ctx, key)
	if err != nil {
		return errorCompletion(err), nil
	}
	c := CaseInconsistent
	if v.Consistent {
		c = CaseConsistent
	}
	problems := v.Problems
	if problems == nil {
		problems = []string{}
	}
	return completion{Case: c, Result: map[string]any{
		"assigned": v.Assigned,
		"pending":  v.Pending,
		"problems": problems,
	}}, nil
}

func (h *Harness) replay(ctx context.Context, args map[string]any) (completion, error) {
	var reports []recovery.ReplayReport
	if _, ok := args["target"]; ok {
		target, err := argNode(args, "target")
		if err != nil {
			return completion{}, err
		}
		report, err := h.queue.Replay(ctx, target, recovery.NodeApplier(h.cluster.Registry))
		if err != nil {
			return errorCompletion(err), nil
		}
		reports = append(reports, report)
	} else {
		var err error
		reports, err = h.replayer.RunOnce(ctx)
		if err != nil {
			return errorCompletion(err), nil
		}
	}

	applied, remaining := 0, 0
	for _, r := range reports {
		applied += r.Applied
		remaining += r.Remaining
	}
	c := CaseDrained
	if remaining > 0 {
		c = CasePending
	}
	return completion{Case: c, Result: map[string]any{
		"applied":   applied,
		"remaining": remaining,
	}}, nil
}

func writeCompletion(res engine.Result, err error) completion {
	if err != nil {
		return errorCompletion(err)
	}
	c := CaseReplicated
	if res.QueuedForRecovery {
		c = CaseQueued
	}
	deferred := res.Deferred
	if deferred == nil {
		deferred = []model.NodeID{}
	}
	return completion{Case: c, Result: map[string]any{
		"accepted": res.Accepted,
		"deferred": deferred,
	}}
}

// errorCompletion maps an engine error to its code. Only the parts of the
// error that do not depend on the environment are recorded.
func errorCompletion(err error) completion {
	var e *model.Error
	if !errors.As(err, &e) {
		return completion{Case: CaseError, Result: map[string]any{"message": err.Error()}}
	}

	out := map[string]any{}
	switch e.Code {
	case model.CodeValidation:
		out["message"] = e.Error()
	case model.CodeAllNodesUnavailable:
		failed := make([]model.NodeID, len(e.Attempts))
		for i, a := range e.Attempts {
			failed[i] = a.Node
		}
		out["failed"] = failed
	default:
		if e.Node != "" {
			out["node"] = e.Node
		}
	}
	return completion{Case: string(e.Code), Result: out}
}

func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("args.%s is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("args.%s must be a string, got %T", key, v)
	}
	return s, nil
}

func argInt(args map[string]any, key string, def int) int {
	if v, ok := args[key].(int); ok {
		return v
	}
	return def
}

func argNode(args map[string]any, key string) (model.NodeID, error) {
	s, err := argString(args, key)
	if err != nil {
		return "", err
	}
	return model.ParseNodeID(s)
}

func argNodes(args map[string]any, key string) ([]model.NodeID, error) {
	nodes, err := argOptionalNodes(args, key)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("args.%s is required", key)
	}
	return nodes, nil
}

func argOptionalNodes(args map[string]any, key string) ([]model.NodeID, error) {
	v, ok := args[key]
	if !ok {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("args.%s must be a list of nodes", key)
	}
	out := make([]model.NodeID, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("args.%s: %v is not a node name", key, item)
		}
		id, err := model.ParseNodeID(s)
		if err != nil {
			return nil, fmt.Errorf("args.%s: %w", key, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// argRecord decodes args into a record using the record's JSON field names.
func argRecord(args map[string]any) (model.Record, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return model.Record{}, fmt.Errorf("encode record args: %w", err)
	}
	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Record{}, fmt.Errorf("decode record args: %w", err)
	}
	return rec, nil
}

// normalizeMap converts m to plain JSON values (numbers as float64, lists
// as []any) so that results compare equal to values decoded from YAML after
// the same conversion.
func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := normalize(m).(map[string]any)
	return out
}

func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
