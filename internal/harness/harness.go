package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hirosystems/clarinet-sub000/internal/ast"
	"github.com/hirosystems/clarinet-sub000/internal/checker"
	"github.com/hirosystems/clarinet-sub000/internal/eval"
	"github.com/hirosystems/clarinet-sub000/internal/simnet"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// Harness runs one scenario on its own session.
type Harness struct {
	session   *simnet.Session
	scenario  *Scenario
	contracts map[string]value.Principal
	sources   map[string]string
	logger    *slog.Logger
}

// Option configures Run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the session logger. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs on a fresh in-memory session, so results are
// reproducible and scenarios may run in parallel.
//
// Execution flow:
// 1. Open a session from the scenario's devnet config
// 2. Deploy every contract in one block
// 3. Execute steps, checking expectations
// 4. Evaluate assertions against the final state
//
// Expectation and assertion mismatches are reported in the result. An
// error is returned only when the scenario cannot run.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := simnet.DefaultConfig()
	if scenario.Config != "" {
		var err error
		cfg, err = simnet.LoadConfig(scenario.resolve(scenario.Config))
		if err != nil {
			return nil, err
		}
	}
	s, err := simnet.New(ctx, cfg, simnet.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer s.Close()

	h := &Harness{
		session:   s,
		scenario:  scenario,
		contracts: map[string]value.Principal{},
		sources:   map[string]string{},
		logger:    o.logger.With("scenario", scenario.Name),
	}

	result := NewResult()
	if err := h.deploy(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to deploy contracts: %w", err)
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for _, msg := range EvaluateAssertions(ctx, h, scenario.Assertions) {
		result.AddError(msg)
	}

	result.Digest, err = s.StateDigest(ctx)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("scenario finished", "pass", result.Pass, "errors", len(result.Errors))
	return result, nil
}

// deploy mines one block with every contract, each after the contracts
// it references. A failed deployment stops the scenario.
func (h *Harness) deploy(ctx context.Context, result *Result) error {
	contracts := h.scenario.Contracts
	if len(contracts) == 0 {
		return nil
	}
	deployers := make([]value.Principal, len(contracts))
	for i, c := range contracts {
		deployer := h.session.Deployer()
		if c.Deployer != "" {
			p, err := h.principal(c.Deployer)
			if err != nil {
				return fmt.Errorf("contract %s: %w", c.Name, err)
			}
			deployer = p
		}
		id, err := value.ContractPrincipal(deployer, c.Name)
		if err != nil {
			return fmt.Errorf("contract %s: %w", c.Name, err)
		}
		deployers[i] = deployer
		h.contracts[c.Name] = id
		h.sources[c.Name] = c.Source
	}

	order, err := deploymentOrder(contracts, h.contracts)
	if err != nil {
		return err
	}
	txs := make([]simnet.Tx, len(order))
	for i, idx := range order {
		txs[i] = simnet.DeployTx(deployers[idx], contracts[idx].Name, contracts[idx].Source)
	}
	h.logger.Debug("deploying contracts", "count", len(txs))

	receipts, err := h.session.MineBlock(ctx, txs)
	if err != nil {
		return err
	}
	for i, r := range receipts {
		if !r.Committed() {
			return fmt.Errorf("contract %s: %v", contracts[order[i]].Name, r.Fault)
		}
	}
	result.AddTrace(TraceEvent{
		Step:     -1,
		Type:     StepDeploy,
		Height:   h.session.BlockHeight(),
		Receipts: canonicalReceipts(receipts),
	})
	return nil
}

func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	ev := TraceEvent{Step: index, Type: step.Kind()}
	switch ev.Type {
	case StepBlock:
		receipts, err := h.executeBlock(ctx, index, step.Block, result)
		if err != nil {
			return err
		}
		ev.Receipts = canonicalReceipts(receipts)

	case StepMineEmpty:
		if err := h.session.MineEmptyBlocks(ctx, step.MineEmpty); err != nil {
			return err
		}

	case StepReadOnly:
		v, fault, err := h.executeReadOnly(ctx, index, step.ReadOnly, result)
		if err != nil {
			return err
		}
		ev.Value, ev.Fault = v, fault

	case StepRollback:
		if err := h.session.RollbackTo(ctx, *step.Rollback); err != nil {
			return err
		}

	case StepCheck:
		diags, err := h.executeCheck(index, step.Check, result)
		if err != nil {
			return err
		}
		ev.Diagnostics = diags
	}
	ev.Height = h.session.BlockHeight()
	result.AddTrace(ev)
	return nil
}

func (h *Harness) executeBlock(ctx context.Context, index int, steps []TxStep, result *Result) ([]simnet.Receipt, error) {
	txs := make([]simnet.Tx, len(steps))
	for j, step := range steps {
		tx, err := h.tx(step)
		if err != nil {
			return nil, fmt.Errorf("block[%d]: %w", j, err)
		}
		txs[j] = tx
	}

	receipts, err := h.session.MineBlock(ctx, txs)
	if err != nil {
		return nil, err
	}
	for j, r := range receipts {
		if steps[j].Expect == nil {
			continue
		}
		for _, msg := range matchReceipt(r, *steps[j].Expect) {
			result.AddError(fmt.Sprintf("steps[%d].block[%d]: %s", index, j, msg))
		}
	}
	return receipts, nil
}

func (h *Harness) tx(step TxStep) (simnet.Tx, error) {
	sender, err := h.principal(step.Sender)
	if err != nil {
		return simnet.Tx{}, err
	}
	if step.Transfer != nil {
		recipient, err := h.principal(step.Transfer.Recipient)
		if err != nil {
			return simnet.Tx{}, err
		}
		return simnet.TransferTx(sender, recipient, step.Transfer.Amount), nil
	}

	contract, function, err := h.call(step.Call)
	if err != nil {
		return simnet.Tx{}, err
	}
	args, err := h.args(step.Args)
	if err != nil {
		return simnet.Tx{}, err
	}
	if step.Private {
		return simnet.PrivateCallTx(sender, contract, function, args...), nil
	}
	return simnet.CallTx(sender, contract, function, args...), nil
}

// matchReceipt compares a receipt with an expectation and returns the
// mismatches.
func matchReceipt(r simnet.Receipt, want Expect) []string {
	var errs []string
	if want.Status != "" {
		if got := receiptStatus(r); got != want.Status {
			errs = append(errs, fmt.Sprintf("expected status %s, got %s (%s)", want.Status, got, describe(r)))
		}
	}
	if want.Result != "" {
		got := "<none>"
		if r.Result != nil {
			got = r.Result.String()
		}
		if got != want.Result {
			errs = append(errs, fmt.Sprintf("expected result %s, got %s", want.Result, got))
		}
	}
	if want.Fault != "" {
		got := "<none>"
		if r.Fault != nil {
			got = string(r.Fault.Code)
		}
		if got != want.Fault {
			errs = append(errs, fmt.Sprintf("expected fault %s, got %s", want.Fault, got))
		}
	}
	if want.Events != nil && *want.Events != len(r.Events) {
		errs = append(errs, fmt.Sprintf("expected %d events, got %d", *want.Events, len(r.Events)))
	}
	return errs
}

func receiptStatus(r simnet.Receipt) string {
	switch r.Status {
	case eval.StatusCommittedOk:
		return ExpectOk
	case eval.StatusRolledBackErr:
		return ExpectErr
	}
	return ExpectAborted
}

func describe(r simnet.Receipt) string {
	if r.Fault != nil {
		return r.Fault.Error()
	}
	if r.Result != nil {
		return r.Result.String()
	}
	return string(r.Status)
}

func (h *Harness) executeReadOnly(ctx context.Context, index int, step *ReadOnlyStep, result *Result) (string, string, error) {
	sender := h.session.Deployer()
	if step.Sender != "" {
		p, err := h.principal(step.Sender)
		if err != nil {
			return "", "", err
		}
		sender = p
	}
	contract, function, err := h.call(step.Call)
	if err != nil {
		return "", "", err
	}
	args, err := h.args(step.Args)
	if err != nil {
		return "", "", err
	}

	v, err := h.session.CallReadOnly(ctx, sender, contract, function, args...)
	var fault *eval.Fault
	switch {
	case errors.As(err, &fault) && fault.Code != eval.CodeHost:
		if step.Fault == "" {
			result.AddError(fmt.Sprintf("steps[%d].read_only: %s failed: %v", index, step.Call, fault))
		} else if string(fault.Code) != step.Fault {
			result.AddError(fmt.Sprintf("steps[%d].read_only: expected fault %s, got %s", index, step.Fault, fault.Code))
		}
		return "", string(fault.Code), nil
	case err != nil:
		return "", "", err
	}

	if step.Fault != "" {
		result.AddError(fmt.Sprintf("steps[%d].read_only: expected fault %s, got %s", index, step.Fault, v))
	}
	if step.Expect != "" && v.String() != step.Expect {
		result.AddError(fmt.Sprintf("steps[%d].read_only: %s: expected %s, got %s", index, step.Call, step.Expect, v))
	}
	return v.String(), "", nil
}

func (h *Harness) executeCheck(index int, step *CheckStep, result *Result) ([]string, error) {
	diags, err := h.session.RunCheckChecker(step.Contract, h.sources[step.Contract], step.Config())
	if err != nil {
		return nil, err
	}
	out := make([]string, len(diags))
	warnings := 0
	for i, d := range diags {
		out[i] = d.String()
		if d.Level == checker.LevelWarning {
			warnings++
		}
	}
	if step.Warnings != nil && *step.Warnings != warnings {
		result.AddError(fmt.Sprintf("steps[%d].check: expected %d warnings in %s, got %d:\n%s",
			index, *step.Warnings, step.Contract, warnings, strings.Join(out, "\n")))
	}
	return out, nil
}

// principal resolves an account name, a scenario contract name or a
// principal literal.
func (h *Harness) principal(name string) (value.Principal, error) {
	if p, ok := h.session.Account(name); ok {
		return p, nil
	}
	if p, ok := h.contracts[name]; ok {
		return p, nil
	}
	p, err := value.ParsePrincipal(strings.TrimPrefix(name, "'"))
	if err != nil {
		return value.Principal{}, fmt.Errorf("unknown account %q", name)
	}
	return p, nil
}

// call resolves "contract.function".
func (h *Harness) call(call string) (value.Principal, string, error) {
	contract, function, err := splitCall(call)
	if err != nil {
		return value.Principal{}, "", err
	}
	p, err := h.principal(contract)
	if err != nil {
		return value.Principal{}, "", err
	}
	return p, function, nil
}

// contract resolves a scenario contract name or a contract id.
func (h *Harness) contract(name string) (value.Principal, error) {
	if p, ok := h.contracts[name]; ok {
		return p, nil
	}
	p, err := value.ParsePrincipal(strings.TrimPrefix(name, "'"))
	if err != nil || !p.IsContract() {
		return value.Principal{}, fmt.Errorf("unknown contract %q", name)
	}
	return p, nil
}

// args parses call arguments. Names of accounts and contracts stand for
// their principals.
func (h *Harness) args(raw []string) ([]value.Value, error) {
	out := make([]value.Value, len(raw))
	for i, a := range raw {
		if p, ok := h.session.Account(a); ok {
			out[i] = p
			continue
		}
		if p, ok := h.contracts[a]; ok {
			out[i] = p
			continue
		}
		v, err := ast.ParseValue(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func canonicalReceipts(receipts []simnet.Receipt) []map[string]any {
	out := make([]map[string]any, len(receipts))
	for i, r := range receipts {
		out[i] = r.Canonical()
	}
	return out
}
