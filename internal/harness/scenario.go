package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hirosystems/clarinet-sub000/internal/checker"
)

// Scenario is a contract test: contracts to deploy, steps that mine blocks
// and read state, and assertions over the final state.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is an optional devnet TOML file, relative to the scenario
	// file. The default devnet is used when empty.
	Config string `yaml:"config,omitempty"`

	// Contracts are deployed together in the first block.
	Contracts []ContractSpec `yaml:"contracts"`

	// Steps run in order after the deployment block.
	Steps []Step `yaml:"steps"`

	// Assertions are checked against the state after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	dir string
}

// ContractSpec is a contract given inline or by file.
type ContractSpec struct {
	Name string `yaml:"name"`
	// Source is the inline contract text.
	Source string `yaml:"source,omitempty"`
	// Path is a contract file relative to the scenario file.
	Path string `yaml:"path,omitempty"`
	// Deployer is an account name; the first account by default.
	Deployer string `yaml:"deployer,omitempty"`
}

// Step is one of: a block of transactions, empty blocks, a read-only
// call, a rollback or a check-checker run. Exactly one field is set.
type Step struct {
	Block     []TxStep      `yaml:"block,omitempty"`
	MineEmpty int           `yaml:"mine_empty,omitempty"`
	ReadOnly  *ReadOnlyStep `yaml:"read_only,omitempty"`
	Rollback  *uint64       `yaml:"rollback,omitempty"`
	Check     *CheckStep    `yaml:"check,omitempty"`
}

// Kind names the step for traces and errors.
func (s Step) Kind() string {
	switch {
	case s.Block != nil:
		return StepBlock
	case s.MineEmpty > 0:
		return StepMineEmpty
	case s.ReadOnly != nil:
		return StepReadOnly
	case s.Rollback != nil:
		return StepRollback
	case s.Check != nil:
		return StepCheck
	}
	return ""
}

func (s Step) kinds() int {
	n := 0
	for _, set := range []bool{s.Block != nil, s.MineEmpty > 0, s.ReadOnly != nil, s.Rollback != nil, s.Check != nil} {
		if set {
			n++
		}
	}
	return n
}

// Step kinds.
const (
	StepDeploy    = "deploy"
	StepBlock     = "block"
	StepMineEmpty = "mine_empty"
	StepReadOnly  = "read_only"
	StepRollback  = "rollback"
	StepCheck     = "check"
)

// TxStep is one transaction of a block: a contract call or an STX
// transfer.
type TxStep struct {
	// Sender is an account name or a principal.
	Sender string `yaml:"sender"`

	// Call is "contract.function"; contract is a scenario contract name
	// or a full contract id.
	Call string `yaml:"call,omitempty"`

	// Args are values in contract syntax (u1, 'ST..., (list 1 2)). An
	// account or contract name stands for its principal.
	Args []string `yaml:"args,omitempty"`

	// Private calls a private function directly.
	Private bool `yaml:"private,omitempty"`

	Transfer *TransferStep `yaml:"transfer,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// TransferStep moves uSTX from the sender.
type TransferStep struct {
	Recipient string `yaml:"recipient"`
	Amount    uint64 `yaml:"amount"`
}

// Expect is matched against a receipt. Empty fields are not checked.
type Expect struct {
	// Status is ok, err or aborted.
	Status string `yaml:"status,omitempty"`
	// Result is the printed result value, e.g. "(ok u1)".
	Result string `yaml:"result,omitempty"`
	// Fault is the fault code of an aborted transaction.
	Fault string `yaml:"fault,omitempty"`
	// Events is the number of events.
	Events *int `yaml:"events,omitempty"`
}

// Expected receipt statuses.
const (
	ExpectOk      = "ok"
	ExpectErr     = "err"
	ExpectAborted = "aborted"
)

// ReadOnlyStep calls a function without mining a block.
type ReadOnlyStep struct {
	Sender string   `yaml:"sender,omitempty"`
	Call   string   `yaml:"call"`
	Args   []string `yaml:"args,omitempty"`
	// Expect is the printed value.
	Expect string `yaml:"expect,omitempty"`
	// Fault is the expected fault code when the call fails.
	Fault string `yaml:"fault,omitempty"`
}

// CheckStep runs the check-checker over a scenario contract.
type CheckStep struct {
	Contract      string `yaml:"contract"`
	Strict        bool   `yaml:"strict,omitempty"`
	TrustedSender bool   `yaml:"trusted_sender,omitempty"`
	TrustedCaller bool   `yaml:"trusted_caller,omitempty"`
	CalleeFilter  bool   `yaml:"callee_filter,omitempty"`
	// Warnings is the expected number of warnings.
	Warnings *int `yaml:"warnings,omitempty"`
}

// Config returns the check-checker configuration of the step.
func (c CheckStep) Config() checker.Config {
	return checker.Config{
		Strict:        c.Strict,
		TrustedSender: c.TrustedSender,
		TrustedCaller: c.TrustedCaller,
		CalleeFilter:  c.CalleeFilter,
	}
}

// Assertion validates the final state.
type Assertion struct {
	// Type is data_var, map_entry, balance or block_height.
	Type string `yaml:"type"`

	// Contract is used by data_var and map_entry.
	Contract string `yaml:"contract,omitempty"`

	// Name is the variable (data_var) or map (map_entry).
	Name string `yaml:"name,omitempty"`

	// Key is the map key in contract syntax (map_entry).
	Key string `yaml:"key,omitempty"`

	// Asset is STX or contract.token (balance).
	Asset string `yaml:"asset,omitempty"`

	// Owner is an account name or principal (balance).
	Owner string `yaml:"owner,omitempty"`

	// Expect is the printed value, or the height for block_height.
	Expect string `yaml:"expect"`
}

// Assertion type constants.
const (
	AssertDataVar     = "data_var"
	AssertMapEntry    = "map_entry"
	AssertBalance     = "balance"
	AssertBlockHeight = "block_height"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Contract and config paths resolve relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.dir = filepath.Dir(path)

	if err := scenario.loadSources(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario parses a scenario from YAML. Contract files are not read.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
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

// resolve returns path relative to the scenario file.
func (s *Scenario) resolve(path string) string {
	if filepath.IsAbs(path) || s.dir == "" {
		return path
	}
	return filepath.Join(s.dir, path)
}

// loadSources reads every contract given by path.
func (s *Scenario) loadSources() error {
	for i, c := range s.Contracts {
		if c.Path == "" {
			continue
		}
		resolved := s.resolve(c.Path)
		data, err := os.ReadFile(resolved)
		if os.IsNotExist(err) {
			return &ContractNotFoundError{Contract: c.Name, Path: c.Path, ResolvedPath: resolved}
		}
		if err != nil {
			return fmt.Errorf("contracts[%d]: %w", i, err)
		}
		s.Contracts[i].Source = string(data)
	}
	return nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("steps or assertions are required")
	}

	names := map[string]bool{}
	for i, c := range s.Contracts {
		if c.Name == "" {
			return fmt.Errorf("contracts[%d]: name is required", i)
		}
		if names[c.Name] {
			return fmt.Errorf("contracts[%d]: duplicate contract %q", i, c.Name)
		}
		names[c.Name] = true
		if (c.Source == "") == (c.Path == "") {
			return fmt.Errorf("contracts[%d]: exactly one of source and path is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, names); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step Step, contracts map[string]bool) error {
	if n := step.kinds(); n != 1 {
		return fmt.Errorf("steps[%d]: exactly one of block, mine_empty, read_only, rollback, check is required, found %d", index, n)
	}
	switch step.Kind() {
	case StepBlock:
		for j, tx := range step.Block {
			if tx.Sender == "" {
				return fmt.Errorf("steps[%d].block[%d]: sender is required", index, j)
			}
			if (tx.Call == "") == (tx.Transfer == nil) {
				return fmt.Errorf("steps[%d].block[%d]: exactly one of call and transfer is required", index, j)
			}
			if tx.Call != "" {
				if _, _, err := splitCall(tx.Call); err != nil {
					return fmt.Errorf("steps[%d].block[%d]: %w", index, j, err)
				}
			}
			if tx.Transfer != nil && tx.Transfer.Recipient == "" {
				return fmt.Errorf("steps[%d].block[%d]: transfer recipient is required", index, j)
			}
			if e := tx.Expect; e != nil {
				switch e.Status {
				case "", ExpectOk, ExpectErr, ExpectAborted:
				default:
					return fmt.Errorf("steps[%d].block[%d]: unknown status %q", index, j, e.Status)
				}
			}
		}
	case StepReadOnly:
		if _, _, err := splitCall(step.ReadOnly.Call); err != nil {
			return fmt.Errorf("steps[%d].read_only: %w", index, err)
		}
	case StepCheck:
		if !contracts[step.Check.Contract] {
			return fmt.Errorf("steps[%d].check: unknown contract %q", index, step.Check.Contract)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Expect == "" {
		return fmt.Errorf("assertions[%d]: expect is required", index)
	}

	switch a.Type {
	case AssertDataVar:
		if a.Contract == "" || a.Name == "" {
			return fmt.Errorf("assertions[%d]: contract and name are required for data_var", index)
		}
	case AssertMapEntry:
		if a.Contract == "" || a.Name == "" || a.Key == "" {
			return fmt.Errorf("assertions[%d]: contract, name and key are required for map_entry", index)
		}
	case AssertBalance:
		if a.Asset == "" || a.Owner == "" {
			return fmt.Errorf("assertions[%d]: asset and owner are required for balance", index)
		}
	case AssertBlockHeight:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// splitCall splits "contract.function" at the last dot.
func splitCall(call string) (contract, function string, err error) {
	i := strings.LastIndexByte(call, '.')
	if i <= 0 || i == len(call)-1 {
		return "", "", fmt.Errorf("call %q is not contract.function", call)
	}
	return call[:i], call[i+1:], nil
}
