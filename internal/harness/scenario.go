package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/todosync/internal/testutil"
)

// Scenario is a scripted run against the full todo stack.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Optimistic shows create placeholders before the store confirms.
	Optimistic bool `yaml:"optimistic,omitempty"`

	// Setup seeds the store, oldest first, before the flow runs.
	Setup []SeedItem `yaml:"setup,omitempty"`

	// Flow is the sequence of operations to drive.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final store and cache.
	Assertions []Assertion `yaml:"assertions"`
}

// SeedItem is a record created directly in the store.
type SeedItem struct {
	Text      string `yaml:"text"`
	Ref       string `yaml:"ref,omitempty"`
	Completed bool   `yaml:"completed,omitempty"`
}

// FlowStep is one operation in the flow.
type FlowStep struct {
	Op     string        `yaml:"op"`
	Text   string        `yaml:"text,omitempty"`
	Ref    string        `yaml:"ref,omitempty"`
	Target string        `yaml:"target,omitempty"`
	Fail   string        `yaml:"fail,omitempty"`
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Hold starts a create, toggle or delete and leaves its store call
	// blocked until a later release step. Steps in between run while it is
	// in flight.
	Hold bool `yaml:"hold,omitempty"`
}

// ExpectClause checks the outcome of a step. Unset fields are not checked.
type ExpectClause struct {
	Success *bool  `yaml:"success,omitempty"`
	Error   string `yaml:"error,omitempty"`
	State   string `yaml:"state,omitempty"`

	// Items, when present (even empty), must match the cache in order.
	Items []ItemExpect `yaml:"items,omitempty"`
}

// ItemExpect matches one cached record. Ref, when set, must resolve to the
// record's id.
type ItemExpect struct {
	Text      string `yaml:"text"`
	Completed bool   `yaml:"completed"`
	Ref       string `yaml:"ref,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	Type      string `yaml:"type"`
	Count     *int   `yaml:"count,omitempty"`
	Text      string `yaml:"text,omitempty"`
	Ref       string `yaml:"ref,omitempty"`
	Completed *bool  `yaml:"completed,omitempty"`
	Op        string `yaml:"op,omitempty"`
}

// Flow operations.
const (
	OpRefresh = "refresh"
	OpList    = "list"
	OpCreate  = "create"
	OpToggle  = "toggle"
	OpDelete  = "delete"

	// OpRelease unblocks the held step and records its outcome. A fail on
	// the release step is injected into the held store call.
	OpRelease = "release"
)

// Assertion type constants.
const (
	AssertStoreCount        = "store_count"
	AssertStoreContains     = "store_contains"
	AssertStoreAbsent       = "store_absent"
	AssertCallCount         = "call_count"
	AssertCacheMatchesStore = "cache_matches_store"
)

// storeOps maps a flow operation to the store call it ends in. Toggle goes
// through SetCompleted because the cache sends the target value.
var storeOps = map[string]testutil.Op{
	OpRefresh: testutil.OpList,
	OpList:    testutil.OpList,
	OpCreate:  testutil.OpCreate,
	OpToggle:  testutil.OpSetCompleted,
	OpDelete:  testutil.OpDelete,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
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
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	refs := make(map[string]bool)
	for i, item := range s.Setup {
		if item.Text == "" {
			return fmt.Errorf("setup[%d]: text is required", i)
		}
		if item.Ref != "" {
			if refs[item.Ref] {
				return fmt.Errorf("setup[%d]: duplicate ref %q", i, item.Ref)
			}
			refs[item.Ref] = true
		}
	}

	held := ""
	for i, step := range s.Flow {
		if step.Op == OpRelease {
			if held == "" {
				return fmt.Errorf("flow[%d]: release without a held step", i)
			}
			if step.Text != "" || step.Target != "" || step.Ref != "" || step.Hold {
				return fmt.Errorf("flow[%d]: release takes only fail and expect", i)
			}
			held = ""
			continue
		}
		if _, ok := storeOps[step.Op]; !ok {
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
		}
		if step.Hold {
			if err := validateHold(i, step, held); err != nil {
				return err
			}
			held = step.Op
		}
		switch step.Op {
		case OpToggle, OpDelete:
			if step.Target == "" {
				return fmt.Errorf("flow[%d]: target is required for %s", i, step.Op)
			}
		case OpCreate:
			if step.Ref != "" {
				if refs[step.Ref] {
					return fmt.Errorf("flow[%d]: duplicate ref %q", i, step.Ref)
				}
				refs[step.Ref] = true
			}
		}
		if step.Op != OpCreate && step.Text != "" {
			return fmt.Errorf("flow[%d]: text is only valid for create", i)
		}
	}

	if held != "" {
		return fmt.Errorf("flow: held %s is never released", held)
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateHold checks a held step. Its outcome is only known at release, so
// the failure and the success/error expectations belong there.
func validateHold(i int, step FlowStep, held string) error {
	switch step.Op {
	case OpCreate, OpToggle, OpDelete:
	default:
		return fmt.Errorf("flow[%d]: only create, toggle and delete can be held", i)
	}
	if held != "" {
		return fmt.Errorf("flow[%d]: %s is already held", i, held)
	}
	if step.Fail != "" {
		return fmt.Errorf("flow[%d]: put fail on the release step of a held %s", i, step.Op)
	}
	if step.Expect != nil && (step.Expect.Success != nil || step.Expect.Error != "") {
		return fmt.Errorf("flow[%d]: a held step can only expect state and items", i)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStoreCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for store_count", index)
		}
	case AssertStoreContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for store_contains", index)
		}
	case AssertStoreAbsent:
		if a.Text == "" && a.Ref == "" {
			return fmt.Errorf("assertions[%d]: text or ref is required for store_absent", index)
		}
	case AssertCallCount:
		if a.Op == "" || a.Count == nil {
			return fmt.Errorf("assertions[%d]: op and count are required for call_count", index)
		}
		switch testutil.Op(a.Op) {
		case testutil.OpList, testutil.OpCreate, testutil.OpToggle, testutil.OpSetCompleted, testutil.OpDelete:
		default:
			return fmt.Errorf("assertions[%d]: unknown store op %q", index, a.Op)
		}
	case AssertCacheMatchesStore:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
