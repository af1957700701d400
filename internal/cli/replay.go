package cli

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hirosystems/clarinet-sub000/internal/harness"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Filter string
	Runs   int
}

// ReplayScenarioResult holds the replay result for a single scenario.
type ReplayScenarioResult struct {
	Name          string   `json:"name"`
	Path          string   `json:"path"`
	Runs          int      `json:"runs"`
	Blocks        uint64   `json:"blocks"`
	Transactions  int      `json:"transactions"`
	Digests       []string `json:"digests"`
	Deterministic bool     `json:"deterministic"`
	Error         string   `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Scenarios        []ReplayScenarioResult `json:"scenarios"`
	Total            int                    `json:"total"`
	AllDeterministic bool                   `json:"all_deterministic"`
}

// RenderText prints one block per scenario.
func (r ReplayResult) RenderText(w io.Writer) {
	if r.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	fmt.Fprintf(w, "Replay Summary: %d scenario(s)\n", r.Total)
	fmt.Fprintln(w)
	for _, s := range r.Scenarios {
		status := "✓"
		if !s.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Scenario: %s\n", status, s.Name)
		if s.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", s.Error)
			fmt.Fprintln(w)
			continue
		}
		fmt.Fprintf(w, "  Runs: %d, blocks: %d, transactions: %d\n", s.Runs, s.Blocks, s.Transactions)
		if len(s.Digests) > 0 {
			fmt.Fprintf(w, "  Digest: %s\n", s.Digests[0])
		}
		if !s.Deterministic {
			fmt.Fprintln(w, "  Warning: Non-deterministic replay detected!")
		}
		fmt.Fprintln(w)
	}
	if r.AllDeterministic {
		fmt.Fprintln(w, "✓ All scenarios verified deterministic")
		return
	}
	fmt.Fprintln(w, "✗ Determinism verification failed")
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenarios-dir>",
		Short: "Replay scenarios and verify determinism",
		Long: `Run every scenario several times on fresh sessions and verify that
each run produces the same canonical trace and the same state digest.

Expectation failures do not matter here; only differences between runs do.

Exit codes:
  0 - All scenarios are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (directory not found, etc.)

Examples:
  clarisim replay ./scenarios
  clarisim replay ./scenarios --runs 5
  clarisim replay ./scenarios --filter "token-*" --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().IntVar(&opts.Runs, "runs", 2, "number of runs per scenario (at least 2)")

	return cmd
}

func runReplay(opts *ReplayOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if opts.Runs < 2 {
		_ = f.Error(ErrCodeGeneric, "--runs must be at least 2", nil)
		return NewExitError(ExitCommandError, "--runs must be at least 2")
	}

	files, err := scenarioFiles(dir, opts.Filter)
	if err != nil {
		return exitError(f, err)
	}

	result := ReplayResult{
		Scenarios:        make([]ReplayScenarioResult, 0, len(files)),
		Total:            len(files),
		AllDeterministic: true,
	}
	for _, file := range files {
		sr := replayScenario(opts, file, cmd)
		result.Scenarios = append(result.Scenarios, sr)
		if !sr.Deterministic {
			result.AllDeterministic = false
		}
	}

	if !result.AllDeterministic {
		if err := f.Failure(ErrCodeNondetermin, "determinism verification failed", result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return f.Success(result)
}

// replayScenario runs a scenario opts.Runs times and compares the
// snapshots byte for byte.
func replayScenario(opts *ReplayOptions, file string, cmd *cobra.Command) ReplayScenarioResult {
	sr := ReplayScenarioResult{Name: scenarioName(file), Path: file, Runs: opts.Runs}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		sr.Error = fmt.Sprintf("load error: %v", err)
		return sr
	}
	sr.Name = scenario.Name

	var first []byte
	sr.Deterministic = true
	for i := range opts.Runs {
		opts.formatter(cmd).VerboseLog("replaying %s (run %d)", file, i+1)
		result, err := harness.Run(cmd.Context(), scenario, harness.WithLogger(opts.logger(cmd.ErrOrStderr())))
		if err != nil {
			sr.Deterministic = false
			sr.Error = fmt.Sprintf("run %d: %v", i+1, err)
			return sr
		}
		snapshot, err := harness.Snapshot(scenario.Name, result)
		if err != nil {
			sr.Deterministic = false
			sr.Error = fmt.Sprintf("run %d: %v", i+1, err)
			return sr
		}
		sr.Digests = append(sr.Digests, result.Digest)
		if i == 0 {
			first = snapshot
			sr.Blocks, sr.Transactions = traceStats(result)
			continue
		}
		if !bytes.Equal(first, snapshot) {
			sr.Deterministic = false
		}
	}
	return sr
}

// traceStats counts the blocks and transactions of a trace.
func traceStats(result *harness.Result) (blocks uint64, txs int) {
	for _, ev := range result.Trace {
		blocks = max(blocks, ev.Height)
		txs += len(ev.Receipts)
	}
	return blocks, txs
}
