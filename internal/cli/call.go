package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/hirosystems/clarinet-sub000/internal/ast"
	"github.com/hirosystems/clarinet-sub000/internal/eval"
	"github.com/hirosystems/clarinet-sub000/internal/simnet"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// microSTXExponent scales micro-STX to STX.
const microSTXExponent = -6

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	SessionOptions
	Sender   string
	ReadOnly bool
	Private  bool
}

// Balance is the STX balance of one account.
type Balance struct {
	Account  string `json:"account"`
	Address  string `json:"address"`
	MicroSTX string `json:"micro_stx"`
	STX      string `json:"stx"`
}

// CallResult holds the outcome of the call command.
type CallResult struct {
	Contract string         `json:"contract"`
	Function string         `json:"function"`
	Sender   string         `json:"sender"`
	Status   string         `json:"status"`
	Result   string         `json:"result,omitempty"`
	Receipt  map[string]any `json:"receipt,omitempty"`
	Balances []Balance      `json:"balances"`
}

// RenderText prints the call outcome and the balances after it.
func (r CallResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "%s::%s (sender %s)\n", r.Contract, r.Function, r.Sender)
	fmt.Fprintf(w, "  status: %s\n", r.Status)
	if r.Result != "" {
		fmt.Fprintf(w, "  result: %s\n", r.Result)
	}
	if events, ok := r.Receipt["events"].([]any); ok && len(events) > 0 {
		fmt.Fprintf(w, "  events: %d\n", len(events))
	}
	fmt.Fprintln(w, "Balances:")
	for _, b := range r.Balances {
		fmt.Fprintf(w, "  %-10s %s STX\n", b.Account, b.STX)
	}
}

// FormatSTX renders a micro-STX amount in STX with six decimals.
func FormatSTX(micro value.UInt) string {
	return decimal.NewFromBigInt(micro.Big(), microSTXExponent).StringFixed(-microSTXExponent)
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <contract.clar> <function> [args...]",
		Short: "Deploy a contract and call one function",
		Long: `Deploy a contract on a fresh session, then call one of its functions.

Arguments are value literals (u10, 'ST1...address, "text", (some u1))
or account names, which stand for the account's principal.

Public calls are mined in their own block and print the receipt.
With --read-only, the call runs against the tip and commits nothing.

Exit codes:
  0 - Call completed (including an (err ...) result)
  1 - Call aborted with a fault
  2 - Command error (missing file, deploy failure, bad argument)

Examples:
  clarisim call contracts/counter.clar count-up
  clarisim call contracts/token.clar transfer u10 wallet_1 --sender deployer
  clarisim call contracts/counter.clar get-count deployer --read-only --format json`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, args[0], args[1], args[2:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Sender, "sender", "deployer", "calling account name or principal")
	cmd.Flags().BoolVar(&opts.ReadOnly, "read-only", false, "evaluate without committing")
	cmd.Flags().BoolVar(&opts.Private, "private", false, "allow calling private functions")
	cmd.Flags().StringVar(&opts.Config, "config", "", "devnet config file (TOML)")
	cmd.Flags().StringVar(&opts.Schedule, "costs", "", "cost schedule file (CUE)")

	return cmd
}

func runCall(opts *CallOptions, path, function string, rawArgs []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f := opts.formatter(cmd)

	c, err := LoadContract(path)
	if err != nil {
		return exitError(f, err)
	}
	s, err := opts.OpenSession(ctx, opts.SessionOptions, f.GetErrWriter())
	if err != nil {
		return exitError(f, err)
	}
	defer s.Close()

	contract, err := deploy(ctx, s, c)
	if err != nil {
		return exitError(f, err)
	}
	sender, err := resolvePrincipal(s, opts.Sender)
	if err != nil {
		return exitError(f, &LoadError{Code: ErrCodeGeneric, Message: "--sender", Err: err})
	}
	args, err := parseArgs(s, rawArgs)
	if err != nil {
		return exitError(f, &LoadError{Code: ErrCodeGeneric, Message: "arguments", Err: err})
	}
	f.VerboseLog("calling %s::%s as %s with %d argument(s)", contract.ID(), function, sender.ID(), len(args))

	result := CallResult{Contract: contract.ID(), Function: function, Sender: sender.ID()}
	var fault *eval.Fault

	if opts.ReadOnly {
		v, err := s.CallReadOnly(ctx, sender, contract, function, args...)
		switch {
		case err == nil:
			result.Status = string(eval.StatusCommittedOk)
			result.Result = v.String()
		case errors.As(err, &fault):
			result.Status = string(eval.StatusAborted)
		default:
			return exitError(f, err)
		}
	} else {
		var receipt simnet.Receipt
		if opts.Private {
			receipt, err = s.CallPrivate(ctx, sender, contract, function, args...)
		} else {
			receipt, err = s.CallPublic(ctx, sender, contract, function, args...)
		}
		if err != nil {
			return exitError(f, err)
		}
		result.Status = string(receipt.Status)
		result.Receipt = receipt.Canonical()
		if receipt.Result != nil {
			result.Result = receipt.Result.String()
		}
		fault = receipt.Fault
	}

	if result.Balances, err = balances(cmd, s); err != nil {
		return exitError(f, err)
	}

	if fault != nil {
		if err := f.Failure(ErrCodeCall, fault.Error(), result); err != nil {
			return err
		}
		if f.Format != "json" {
			fmt.Fprintf(f.Writer, "  fault: %s\n", fault)
		}
		return WrapExitError(ExitFailure, "call aborted", fault)
	}
	return f.Success(result)
}

// resolvePrincipal accepts an account name or a principal literal.
func resolvePrincipal(s *simnet.Session, name string) (value.Principal, error) {
	if p, ok := s.Account(name); ok {
		return p, nil
	}
	return value.ParsePrincipal(strings.TrimPrefix(name, "'"))
}

// parseArgs reads value literals; account names stand for principals.
func parseArgs(s *simnet.Session, raw []string) ([]value.Value, error) {
	out := make([]value.Value, len(raw))
	for i, a := range raw {
		if p, ok := s.Account(a); ok {
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

// balances lists the STX balance of every account, sorted by name.
func balances(cmd *cobra.Command, s *simnet.Session) ([]Balance, error) {
	accounts := s.Accounts()
	names := make([]string, 0, len(accounts))
	for name := range accounts {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]Balance, 0, len(names))
	for _, name := range names {
		p := accounts[name]
		bal, err := s.STXBalance(cmd.Context(), p)
		if err != nil {
			return nil, err
		}
		out = append(out, Balance{Account: name, Address: p.ID(), MicroSTX: bal.Decimal(), STX: FormatSTX(bal)})
	}
	return out, nil
}
