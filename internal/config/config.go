// Package config loads the service configuration.
//
// A YAML document is first validated against an embedded CUE schema, which
// rejects unknown keys and malformed values with file positions, and then
// decoded on top of Default().
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/node"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/partition"
)

//go:embed schema.cue
var schemaCUE string

// Journal drivers.
const (
	JournalSQLite = "sqlite"
	JournalFile   = "file"
)

// Config is the full service configuration.
type Config struct {
	Role           model.NodeID          `yaml:"role"`
	Listen         string                `yaml:"listen"`
	Boundary       int                   `yaml:"boundary"`
	NodeTimeout    Duration              `yaml:"node_timeout"`
	ReplayInterval Duration              `yaml:"replay_interval"`
	FailoverOrder  []model.NodeID        `yaml:"failover_order"`
	Journal        Journal               `yaml:"journal"`
	Nodes          map[model.NodeID]Node `yaml:"nodes"`
	Probe          Probe                 `yaml:"probe"`
}

// Journal selects the recovery journal.
type Journal struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Node is the connection settings of one node.
type Node struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	Table       string `yaml:"table"`
	CreateTable bool   `yaml:"create_table"`
}

// Probe configures the client-side health probe.
type Probe struct {
	Candidates []string `yaml:"candidates"`
	Timeout    Duration `yaml:"timeout"`
}

// Default returns a configuration for a single-host setup: three SQLite
// nodes under ./data and a SQLite journal.
func Default() Config {
	return Config{
		Role:           model.Central,
		Listen:         ":8080",
		Boundary:       partition.DefaultBoundary,
		NodeTimeout:    Duration{3 * time.Second},
		ReplayInterval: Duration{5 * time.Second},
		Journal:        Journal{Driver: JournalSQLite, Path: "data/recovery.db"},
		Nodes: map[model.NodeID]Node{
			model.Central:   {Driver: node.DriverSQLite, DSN: "data/central.db", Table: "dim_title", CreateTable: true},
			model.FragmentA: {Driver: node.DriverSQLite, DSN: "data/fragment-a.db", Table: "dim_title_f1", CreateTable: true},
			model.FragmentB: {Driver: node.DriverSQLite, DSN: "data/fragment-b.db", Table: "dim_title_f2", CreateTable: true},
		},
		Probe: Probe{
			Candidates: []string{"http://localhost:8080"},
			Timeout:    Duration{2 * time.Second},
		},
	}
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates data against the schema and decodes it over Default().
// name is used in error positions.
func Parse(name string, data []byte) (Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Default(), nil
	}
	if err := checkSchema(name, data); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// checkSchema unifies the YAML document with #Config.
func checkSchema(name string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	file, err := cueyaml.Extract(name, data)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate checks cross-field rules the schema cannot express.
func (c Config) Validate() error {
	if !c.Role.Valid() {
		return fmt.Errorf("invalid role %q", c.Role)
	}
	if c.NodeTimeout.Duration <= 0 {
		return fmt.Errorf("node_timeout must be positive")
	}
	if c.ReplayInterval.Duration <= 0 {
		return fmt.Errorf("replay_interval must be positive")
	}

	seen := map[model.NodeID]bool{}
	for _, id := range c.FailoverOrder {
		if !id.Valid() {
			return fmt.Errorf("failover_order: invalid node %q", id)
		}
		if seen[id] {
			return fmt.Errorf("failover_order: duplicate node %s", id)
		}
		seen[id] = true
	}

	for _, id := range model.AllNodes() {
		if _, ok := c.Nodes[id]; !ok {
			return fmt.Errorf("nodes: %s is not configured", id)
		}
	}

	switch c.Journal.Driver {
	case JournalSQLite, JournalFile:
	default:
		return fmt.Errorf("journal: unsupported driver %q", c.Journal.Driver)
	}
	if c.Journal.Path == "" {
		return fmt.Errorf("journal: path is required")
	}
	return nil
}

// NodeConfigs returns connection settings for every node in canonical order.
// Environment references in DSNs ($VAR or ${VAR}) are expanded, so
// credentials can stay out of the file.
func (c Config) NodeConfigs() []node.SQLConfig {
	out := make([]node.SQLConfig, 0, len(c.Nodes))
	for _, id := range model.AllNodes() {
		n, ok := c.Nodes[id]
		if !ok {
			continue
		}
		out = append(out, node.SQLConfig{
			ID:          id,
			Driver:      n.Driver,
			DSN:         os.ExpandEnv(n.DSN),
			Table:       n.Table,
			Timeout:     c.NodeTimeout.Duration,
			CreateTable: n.CreateTable,
		})
	}
	return out
}
