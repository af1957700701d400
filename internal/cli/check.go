package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hirosystems/clarinet-sub000/internal/checker"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	checker.Config
	DenyWarnings bool
}

// CheckFileResult holds the diagnostics of one contract.
type CheckFileResult struct {
	Contract    string               `json:"contract"`
	Path        string               `json:"path"`
	Diagnostics []checker.Diagnostic `json:"diagnostics"`
}

// CheckResult holds the result of the check command.
type CheckResult struct {
	Files    []CheckFileResult `json:"files"`
	Warnings int               `json:"warnings"`
	Notes    int               `json:"notes"`
}

// RenderText prints diagnostics as path:line:col lines.
func (r CheckResult) RenderText(w io.Writer) {
	for _, f := range r.Files {
		for _, d := range f.Diagnostics {
			fmt.Fprintf(w, "%s:%s\n", f.Path, d)
		}
	}
	if r.Warnings == 0 && r.Notes == 0 {
		fmt.Fprintf(w, "✓ %d contract(s) checked, no findings\n", len(r.Files))
		return
	}
	fmt.Fprintf(w, "%d warning(s), %d note(s) in %d contract(s)\n", r.Warnings, r.Notes, len(r.Files))
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <contract.clar>...",
		Short: "Run the check-checker on contracts",
		Long: `Run the check-checker taint analysis on one or more contracts.

Reports every place where untrusted input reaches a state-changing
operation without a guard. Nothing is deployed or executed.

Exit codes:
  0 - Analysis completed (warnings are reported but not fatal)
  1 - Warnings found and --deny-warnings is set
  2 - Command error (missing file, parse error)

Examples:
  clarisim check contracts/token.clar
  clarisim check contracts/*.clar --trusted-sender
  clarisim check contracts/token.clar --strict --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "disable every relaxation")
	cmd.Flags().BoolVar(&opts.TrustedSender, "trusted-sender", false, "a guard on tx-sender trusts all later inputs")
	cmd.Flags().BoolVar(&opts.TrustedCaller, "trusted-caller", false, "a guard on contract-caller trusts all later inputs")
	cmd.Flags().BoolVar(&opts.CalleeFilter, "callee-filter", false, "private functions that guard a parameter filter the argument")
	cmd.Flags().BoolVar(&opts.DenyWarnings, "deny-warnings", false, "exit with failure when warnings are found")

	return cmd
}

func runCheck(opts *CheckOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	result := CheckResult{Files: make([]CheckFileResult, 0, len(paths))}

	for _, path := range paths {
		c, err := LoadContract(path)
		if err != nil {
			return exitError(f, err)
		}
		parsed, err := c.Parse()
		if err != nil {
			return exitError(f, err)
		}
		diags := checker.Check(parsed, opts.Config)
		f.VerboseLog("checked %s: %d diagnostic(s)", path, len(diags))
		for _, d := range diags {
			switch d.Level {
			case checker.LevelWarning:
				result.Warnings++
			case checker.LevelNote:
				result.Notes++
			}
		}
		result.Files = append(result.Files, CheckFileResult{Contract: c.Name, Path: path, Diagnostics: diags})
	}

	if opts.DenyWarnings && result.Warnings > 0 {
		if err := f.Failure(ErrCodeWarnings, fmt.Sprintf("%d warning(s) found", result.Warnings), result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d warning(s) found", result.Warnings))
	}
	return f.Success(result)
}
