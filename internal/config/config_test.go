package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/node"
)

const fullConfig = `
role: fragment-a
listen: ":9090"
boundary: 2010
node_timeout: 1500ms
replay_interval: 10s
failover_order: [fragment-a, central, fragment-b]
journal:
  driver: file
  path: /var/lib/mco2/journal
nodes:
  central:
    driver: mysql
    dsn: "app:${MCO2_TEST_PASSWORD}@tcp(10.0.0.1:3306)/imdb"
    table: dim_title
  fragment-a:
    driver: mysql
    dsn: "app:secret@tcp(10.0.0.2:3306)/imdb"
    table: dim_title_f1
  fragment-b:
    driver: mysql
    dsn: "app:secret@tcp(10.0.0.3:3306)/imdb"
    table: dim_title_f2
    create_table: true
probe:
  candidates: ["http://10.0.0.1:8080", "http://10.0.0.2:8080"]
  timeout: 1s
`

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, model.Central, cfg.Role)
	assert.Equal(t, 2010, cfg.Boundary)
	assert.Equal(t, 3*time.Second, cfg.NodeTimeout.Duration)
	assert.Equal(t, 5*time.Second, cfg.ReplayInterval.Duration)
}

func TestParse_Full(t *testing.T) {
	t.Setenv("MCO2_TEST_PASSWORD", "hunter2")

	cfg, err := Parse("full.yaml", []byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, model.FragmentA, cfg.Role)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, 1500*time.Millisecond, cfg.NodeTimeout.Duration)
	assert.Equal(t, 10*time.Second, cfg.ReplayInterval.Duration)
	assert.Equal(t, []model.NodeID{model.FragmentA, model.Central, model.FragmentB}, cfg.FailoverOrder)
	assert.Equal(t, Journal{Driver: JournalFile, Path: "/var/lib/mco2/journal"}, cfg.Journal)
	assert.Equal(t, []string{"http://10.0.0.1:8080", "http://10.0.0.2:8080"}, cfg.Probe.Candidates)

	nodes := cfg.NodeConfigs()
	require.Len(t, nodes, 3)
	assert.Equal(t, node.SQLConfig{
		ID:      model.Central,
		Driver:  node.DriverMySQL,
		DSN:     "app:hunter2@tcp(10.0.0.1:3306)/imdb",
		Table:   "dim_title",
		Timeout: 1500 * time.Millisecond,
	}, nodes[0])
	assert.True(t, nodes[2].CreateTable)
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse("partial.yaml", []byte("role: fragment-b\n"))
	require.NoError(t, err)

	assert.Equal(t, model.FragmentB, cfg.Role)
	assert.Equal(t, Default().Nodes, cfg.Nodes)
	assert.Equal(t, Default().Journal, cfg.Journal)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse("empty.yaml", []byte(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "replicas: 3\n"},
		{"bad role", "role: replica\n"},
		{"bad duration", "node_timeout: soon\n"},
		{"boundary out of range", "boundary: 12\n"},
		{"bad journal driver", "journal:\n  driver: etcd\n"},
		{"bad node driver", "nodes:\n  central:\n    driver: postgres\n    dsn: x\n    table: t\n"},
		{"bad table name", "nodes:\n  central:\n    driver: mysql\n    dsn: x\n    table: \"t; drop\"\n"},
		{"node missing dsn", "nodes:\n  central:\n    driver: mysql\n    table: t\n"},
		{"unknown failover node", "failover_order: [central, replica]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.name+".yaml", []byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestParse_CrossFieldErrors(t *testing.T) {
	_, err := Parse("zero.yaml", []byte("node_timeout: 0s\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node_timeout must be positive")

	_, err = Parse("dup.yaml", []byte("failover_order: [central, central]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node central")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mco2.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":7000\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Listen)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDuration_YAMLRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(struct {
		Timeout Duration `yaml:"timeout"`
	}{Duration{90 * time.Second}})
	require.NoError(t, err)
	assert.Equal(t, "timeout: 1m30s\n", string(out))
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Setenv("MCO2_DB_USER", "app")
	t.Setenv("MCO2_DB_PASSWORD", "secret")

	cfg, err := Load(filepath.Join("..", "..", "configs", "mco2.example.yaml"))
	require.NoError(t, err)

	assert.Equal(t, model.Central, cfg.Role)
	assert.Equal(t, 2010, cfg.Boundary)
	assert.Equal(t, JournalSQLite, cfg.Journal.Driver)
	assert.Len(t, cfg.Probe.Candidates, 3)

	nodes := cfg.NodeConfigs()
	require.Len(t, nodes, 3)
	assert.Equal(t, "app:secret@tcp(fragment-a.db:3306)/imdb_title_f1", nodes[1].DSN)
	assert.Equal(t, "dim_title_f2", nodes[2].Table)

	mc, err := node.MySQLConfig(nodes[0].DSN, nodes[0].Timeout)
	require.NoError(t, err)
	assert.Equal(t, "secret", mc.Passwd)
	assert.Equal(t, 3*time.Second, mc.Timeout)
}
