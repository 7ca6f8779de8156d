package node

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/query"
)

// Supported database/sql driver names.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

// DefaultTimeout bounds a single node call when none is configured.
const DefaultTimeout = 3 * time.Second

// SQLConfig describes how to reach one node.
type SQLConfig struct {
	ID          model.NodeID
	Driver      string
	DSN         string
	Table       string
	Timeout     time.Duration
	CreateTable bool
}

// SQLNode is a Node backed by database/sql.
type SQLNode struct {
	id      model.NodeID
	db      *sql.DB
	table   string
	timeout time.Duration
}

// OpenSQL opens the database described by cfg. It does not require the
// database to be reachable; an unreachable node is a normal runtime state.
// When cfg.CreateTable is set, the table is created if the node is up.
func OpenSQL(ctx context.Context, cfg SQLConfig) (*SQLNode, error) {
	switch cfg.Driver {
	case DriverMySQL, DriverSQLite:
	default:
		return nil, fmt.Errorf("node %s: unsupported driver %q", cfg.ID, cfg.Driver)
	}

	var db *sql.DB
	if cfg.Driver == DriverMySQL {
		connector, err := mysqlConnector(cfg)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", cfg.ID, err)
		}
		db = sql.OpenDB(connector)
	} else {
		var err error
		db, err = sql.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("node %s: open database: %w", cfg.ID, err)
		}
	}

	if cfg.Driver == DriverSQLite {
		// SQLite allows one writer at a time
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	n, err := NewSQLNode(cfg.ID, db, cfg.Table, cfg.Timeout)
	if err != nil {
		db.Close()
		return nil, err
	}

	if cfg.CreateTable {
		if err := n.EnsureSchema(ctx); err != nil && !model.IsNodeUnavailable(err) {
			db.Close()
			return nil, err
		}
	}
	return n, nil
}

// MySQLConfig parses a MySQL DSN and bounds dialing and socket I/O by the
// node timeout, so a dead server fails a call instead of hanging it.
func MySQLConfig(dsn string, timeout time.Duration) (*mysql.Config, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if mc.Timeout == 0 || mc.Timeout > timeout {
		mc.Timeout = timeout
	}
	if mc.ReadTimeout == 0 {
		mc.ReadTimeout = timeout
	}
	if mc.WriteTimeout == 0 {
		mc.WriteTimeout = timeout
	}
	return mc, nil
}

func mysqlConnector(cfg SQLConfig) (driver.Connector, error) {
	mc, err := MySQLConfig(cfg.DSN, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return mysql.NewConnector(mc)
}

// NewSQLNode wraps an existing handle. The node takes ownership of db.
func NewSQLNode(id model.NodeID, db *sql.DB, table string, timeout time.Duration) (*SQLNode, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("invalid node id %q", id)
	}
	if !query.ValidTable(table) {
		return nil, fmt.Errorf("node %s: invalid table name %q", id, table)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SQLNode{id: id, db: db, table: table, timeout: timeout}, nil
}

// ID returns the node identifier.
func (n *SQLNode) ID() model.NodeID { return n.id }

// Table returns the table this node reads and writes.
func (n *SQLNode) Table() string { return n.table }

// DB returns the underlying handle.
func (n *SQLNode) DB() *sql.DB { return n.db }

// Close closes the database handle.
func (n *SQLNode) Close() error {
	if n.db == nil {
		return nil
	}
	return n.db.Close()
}

// EnsureSchema creates the title table if it does not exist.
func (n *SQLNode) EnsureSchema(ctx context.Context) error {
	ddl, err := query.CreateTableSQL(n.table)
	if err != nil {
		return err
	}
	return n.exec(ctx, ddl)
}

// Upsert replaces the record stored under rec.Key.
func (n *SQLNode) Upsert(ctx context.Context, rec model.Record) error {
	c, err := query.CompileUpsert(n.table, rec)
	if err != nil {
		return err
	}
	return n.exec(ctx, c.SQL, c.Args...)
}

// Delete removes key. Deleting a missing key succeeds.
func (n *SQLNode) Delete(ctx context.Context, key string) error {
	c, err := query.CompileDelete(n.table, key)
	if err != nil {
		return err
	}
	return n.exec(ctx, c.SQL, c.Args...)
}

// Get looks up a single record.
func (n *SQLNode) Get(ctx context.Context, key string) (model.Record, bool, error) {
	rows, err := n.Query(ctx, query.ByKey(key))
	if err != nil {
		return model.Record{}, false, err
	}
	if len(rows) == 0 {
		return model.Record{}, false, nil
	}
	rec, err := rows[0].Record()
	if err != nil {
		return model.Record{}, false, fmt.Errorf("node %s: %w", n.id, err)
	}
	return rec, true, nil
}

// Query runs stmt and returns all rows.
func (n *SQLNode) Query(ctx context.Context, stmt query.Statement) (query.Rows, error) {
	c, err := query.Compile(stmt, n.table)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	rows, err := n.db.QueryContext(ctx, c.SQL, c.Args...)
	if err != nil {
		return nil, n.unavailable(err)
	}
	defer rows.Close()

	out, err := query.ScanRows(rows)
	if err != nil {
		return nil, n.unavailable(err)
	}
	return out, nil
}

// Ping checks that the node is reachable.
func (n *SQLNode) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.db.PingContext(ctx); err != nil {
		return n.unavailable(err)
	}
	return nil
}

func (n *SQLNode) exec(ctx context.Context, stmt string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if _, err := n.db.ExecContext(ctx, stmt, args...); err != nil {
		return n.unavailable(err)
	}
	return nil
}

func (n *SQLNode) unavailable(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", n.timeout, err)
	}
	return model.NewNodeUnavailable(n.id, err)
}
