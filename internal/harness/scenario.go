package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
)

// Scenario is a scripted sequence of node faults, writes, reads and replays
// with assertions on the resulting trace and node contents.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Role is the node this engine instance fronts. Defaults to central.
	Role string `yaml:"role,omitempty"`

	// Boundary overrides the partition boundary year.
	Boundary int `yaml:"boundary,omitempty"`

	// Now is the fixed wall-clock time. Defaults to DefaultNow.
	Now time.Time `yaml:"now,omitempty"`

	// Setup runs before the flow. Setup steps carry no expectations.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow is the main sequence of actions.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and node contents.
	Assertions []Assertion `yaml:"assertions"`
}

// ActionStep is a setup action.
type ActionStep struct {
	Action string         `yaml:"action"`
	Args   map[string]any `yaml:"args"`
}

// FlowStep is one action of the main flow.
type FlowStep struct {
	Invoke string         `yaml:"invoke"`
	Args   map[string]any `yaml:"args"`

	// Expect, if set, is checked against the completion.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected completion.
type ExpectClause struct {
	// Case is the expected completion case, e.g. "Queued".
	Case string `yaml:"case"`

	// Result is a subset match against the completion result.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the trace or the final node contents.
type Assertion struct {
	Type string `yaml:"type"`

	// Action and Args are used by trace_contains and trace_count.
	Action string         `yaml:"action,omitempty"`
	Args   map[string]any `yaml:"args,omitempty"`

	// Actions is used by trace_order.
	Actions []string `yaml:"actions,omitempty"`

	// Count is used by trace_count and queue_depth.
	Count int `yaml:"count,omitempty"`

	// Node, Key, Expect and Absent are used by final_state.
	Node   string         `yaml:"node,omitempty"`
	Key    string         `yaml:"key,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
	Absent bool           `yaml:"absent,omitempty"`

	// Target is used by queue_depth.
	Target string `yaml:"target,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertQueueDepth    = "queue_depth"
)

// Actions.
const (
	ActionNodeDown       = "node.down"
	ActionNodeUp         = "node.up"
	ActionNodeSeed       = "node.seed"
	ActionUpsert         = "movies.upsert"
	ActionDelete         = "movies.delete"
	ActionGet            = "movies.get"
	ActionList           = "movies.list"
	ActionSearch         = "movies.search"
	ActionVerify         = "movies.verify"
	ActionTopGenres      = "reports.top_genres"
	ActionMostTitlesYear = "reports.most_titles_year"
	ActionAdultCount     = "reports.adult_count"
	ActionReplay         = "recovery.replay"
)

var knownActions = map[string]bool{
	ActionNodeDown:       true,
	ActionNodeUp:         true,
	ActionNodeSeed:       true,
	ActionUpsert:         true,
	ActionDelete:         true,
	ActionGet:            true,
	ActionList:           true,
	ActionSearch:         true,
	ActionVerify:         true,
	ActionTopGenres:      true,
	ActionMostTitlesYear: true,
	ActionAdultCount:     true,
	ActionReplay:         true,
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Role != "" {
		if _, err := model.ParseNodeID(s.Role); err != nil {
			return fmt.Errorf("role: %w", err)
		}
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if !knownActions[step.Action] {
			return fmt.Errorf("setup[%d]: unknown action %q", i, step.Action)
		}
		if step.Args == nil {
			return fmt.Errorf("setup[%d]: args is required (use empty map if no args)", i)
		}
	}

	for i, step := range s.Flow {
		if !knownActions[step.Invoke] {
			return fmt.Errorf("flow[%d]: unknown action %q", i, step.Invoke)
		}
		if step.Args == nil {
			return fmt.Errorf("flow[%d]: args is required (use empty map if no args)", i)
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("flow[%d].expect: case is required", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if _, err := model.ParseNodeID(a.Node); err != nil {
			return fmt.Errorf("assertions[%d]: final_state: %w", index, err)
		}
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for final_state", index)
		}
		if a.Absent == (len(a.Expect) > 0) {
			return fmt.Errorf("assertions[%d]: final_state needs exactly one of expect or absent", index)
		}
	case AssertQueueDepth:
		if _, err := model.ParseNodeID(a.Target); err != nil {
			return fmt.Errorf("assertions[%d]: queue_depth: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for queue_depth", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
