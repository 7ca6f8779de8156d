package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/node"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/query"
)

// ErrInjected is the cause carried by every failure a FlakyNode injects.
var ErrInjected = errors.New("injected failure: node is down")

// FlakyNode wraps a node and fails every call while it is marked down.
//
// Safe for concurrent use.
type FlakyNode struct {
	inner node.Node
	down  atomic.Bool

	mu    sync.Mutex
	calls map[string]int
}

// NewFlakyNode wraps n. The node starts up.
func NewFlakyNode(n node.Node) *FlakyNode {
	return &FlakyNode{inner: n, calls: map[string]int{}}
}

// SetDown marks the node unreachable (true) or reachable (false).
func (f *FlakyNode) SetDown(down bool) {
	f.down.Store(down)
}

// Down reports whether the node is marked unreachable.
func (f *FlakyNode) Down() bool {
	return f.down.Load()
}

// Calls returns how many times method was invoked, including failed calls.
// Method names are "upsert", "delete", "get", "query" and "ping".
func (f *FlakyNode) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// ResetCalls zeroes the call counters.
func (f *FlakyNode) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = map[string]int{}
}

// Inner returns the wrapped node.
func (f *FlakyNode) Inner() node.Node {
	return f.inner
}

func (f *FlakyNode) enter(method string) error {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()

	if f.down.Load() {
		return model.NewNodeUnavailable(f.inner.ID(), ErrInjected)
	}
	return nil
}

// ID implements node.Node.
func (f *FlakyNode) ID() model.NodeID { return f.inner.ID() }

// Upsert implements node.Node.
func (f *FlakyNode) Upsert(ctx context.Context, rec model.Record) error {
	if err := f.enter("upsert"); err != nil {
		return err
	}
	return f.inner.Upsert(ctx, rec)
}

// Delete implements node.Node.
func (f *FlakyNode) Delete(ctx context.Context, key string) error {
	if err := f.enter("delete"); err != nil {
		return err
	}
	return f.inner.Delete(ctx, key)
}

// Get implements node.Node.
func (f *FlakyNode) Get(ctx context.Context, key string) (model.Record, bool, error) {
	if err := f.enter("get"); err != nil {
		return model.Record{}, false, err
	}
	return f.inner.Get(ctx, key)
}

// Query implements node.Node.
func (f *FlakyNode) Query(ctx context.Context, stmt query.Statement) (query.Rows, error) {
	if err := f.enter("query"); err != nil {
		return nil, err
	}
	return f.inner.Query(ctx, stmt)
}

// Ping implements node.Node.
func (f *FlakyNode) Ping(ctx context.Context) error {
	if err := f.enter("ping"); err != nil {
		return err
	}
	return f.inner.Ping(ctx)
}

// Close closes the wrapped node if it holds resources.
func (f *FlakyNode) Close() error {
	if c, ok := f.inner.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
