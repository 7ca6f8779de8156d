package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/config"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/engine"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/metrics"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/node"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/partition"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/recovery"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/store"
)

// loadConfig reads --config, or returns the defaults when it is unset.
func loadConfig(opts *RootOptions) (config.Config, error) {
	if opts.ConfigPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// journalHandle is a recovery journal together with the resources that must
// be released with it.
type journalHandle struct {
	recovery.Journal
	closers []io.Closer
}

func (h *journalHandle) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		errs = append(errs, h.closers[i].Close())
	}
	return errors.Join(errs...)
}

type unlocker struct{ lock *flock.Flock }

func (u unlocker) Close() error { return u.lock.Unlock() }

// openJournal opens the configured journal with exclusive ownership. The
// file journal locks its own directory; the SQLite journal is guarded by a
// sibling lock file so that offline commands cannot race a running server.
func openJournal(cfg config.Journal) (*journalHandle, error) {
	switch cfg.Driver {
	case config.JournalFile:
		j, err := store.OpenFileJournal(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &journalHandle{Journal: j, closers: []io.Closer{j}}, nil

	case config.JournalSQLite:
		if err := ensureDir(cfg.Path); err != nil {
			return nil, err
		}
		lock := flock.New(cfg.Path + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock journal: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("%s: %w", cfg.Path, store.ErrJournalLocked)
		}
		j, err := store.Open(cfg.Path)
		if err != nil {
			_ = lock.Unlock()
			return nil, err
		}
		return &journalHandle{Journal: j, closers: []io.Closer{unlocker{lock}, j}}, nil
	}
	return nil, fmt.Errorf("unsupported journal driver %q", cfg.Driver)
}

// openNodes connects to every configured node. Unreachable nodes are not an
// error here; they surface per request.
func openNodes(ctx context.Context, cfg config.Config) (*node.Registry, error) {
	var nodes []node.Node
	closeAll := func() {
		for _, n := range nodes {
			if c, ok := n.(io.Closer); ok {
				_ = c.Close()
			}
		}
	}

	for _, nc := range cfg.NodeConfigs() {
		if nc.Driver == node.DriverSQLite && !strings.HasPrefix(nc.DSN, "file:") {
			if err := ensureDir(nc.DSN); err != nil {
				closeAll()
				return nil, err
			}
		}
		n, err := node.OpenSQL(ctx, nc)
		if err != nil {
			closeAll()
			return nil, err
		}
		slog.Debug("node configured", "node", nc.ID, "driver", nc.Driver, "table", nc.Table)
		nodes = append(nodes, n)
	}

	reg, err := node.NewRegistry(nodes...)
	if err != nil {
		closeAll()
		return nil, err
	}
	return reg, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// openQueue opens the journal and loads the recovery queue from it.
func openQueue(ctx context.Context, cfg config.Config, opts ...recovery.Option) (*journalHandle, *recovery.Queue, error) {
	journal, err := openJournal(cfg.Journal)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open recovery journal", err)
	}

	q, err := recovery.Open(ctx, journal, opts...)
	if err != nil {
		journal.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to load recovery queue", err)
	}
	return journal, q, nil
}

// runtime is the fully wired service.
type runtime struct {
	cfg      config.Config
	nodes    *node.Registry
	journal  *journalHandle
	queue    *recovery.Queue
	engine   *engine.Engine
	replayer *recovery.Replayer
	registry *prometheus.Registry
}

// openRuntime wires nodes, journal, queue, engine and replayer from cfg.
func openRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	journal, q, err := openQueue(ctx, cfg, recovery.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	nodes, err := openNodes(ctx, cfg)
	if err != nil {
		journal.Close()
		return nil, WrapExitError(ExitCommandError, "failed to configure nodes", err)
	}

	role := engine.DefaultRole(cfg.Role)
	if len(cfg.FailoverOrder) > 0 {
		role.FailoverOrder = cfg.FailoverOrder
	}
	if err := role.Validate(); err != nil {
		nodes.Close()
		journal.Close()
		return nil, WrapExitError(ExitCommandError, "invalid role", err)
	}

	e := engine.New(nodes, q,
		engine.WithRule(partition.New(cfg.Boundary)),
		engine.WithRole(role),
		engine.WithMetrics(m),
	)
	replayer := recovery.NewReplayer(q, recovery.NodeApplier(nodes), cfg.ReplayInterval.Duration,
		recovery.WithReplayMetrics(m),
	)

	return &runtime{
		cfg:      cfg,
		nodes:    nodes,
		journal:  journal,
		queue:    q,
		engine:   e,
		replayer: replayer,
		registry: reg,
	}, nil
}

// Close flushes the queue and releases nodes and journal.
func (rt *runtime) Close() error {
	return errors.Join(
		rt.queue.Flush(context.Background()),
		rt.nodes.Close(),
		rt.journal.Close(),
	)
}
