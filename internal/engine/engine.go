package engine

import (
	"github.com/jonboulle/clockwork"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/metrics"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/node"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/partition"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/recovery"
)

// Engine is the replication and failover engine.
//
// Thread-safety model:
//   - Upsert, Delete, Query, Verify and Health are safe from any goroutine
//   - there is no request-level lock; per-target serialisation lives in the
//     recovery queue
type Engine struct {
	nodes   *node.Registry
	queue   *recovery.Queue
	rule    partition.Rule
	role    Role
	clock   clockwork.Clock
	metrics *metrics.Metrics
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithRule sets the partition rule. Default: boundary year 2010.
func WithRule(r partition.Rule) Option {
	return func(e *Engine) { e.rule = r }
}

// WithRole sets the deployment role. Default: DefaultRole(model.Central).
func WithRole(r Role) Option {
	return func(e *Engine) { e.role = r }
}

// WithClock sets the clock used to default a missing startYear.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithMetrics enables write and read metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine over nodes, queuing failed writes in queue.
func New(nodes *node.Registry, queue *recovery.Queue, opts ...Option) *Engine {
	e := &Engine{
		nodes: nodes,
		queue: queue,
		rule:  partition.Default(),
		role:  DefaultRole(model.Central),
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Role returns the engine's deployment role.
func (e *Engine) Role() Role {
	return e.role
}

// Rule returns the partition rule.
func (e *Engine) Rule() partition.Rule {
	return e.rule
}

// Queue returns the recovery queue.
func (e *Engine) Queue() *recovery.Queue {
	return e.queue
}

// Nodes returns the node registry.
func (e *Engine) Nodes() *node.Registry {
	return e.nodes
}
