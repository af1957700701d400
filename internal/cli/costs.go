package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hirosystems/clarinet-sub000/internal/cost"
)

// CostsOptions holds flags for the costs command.
type CostsOptions struct {
	*RootOptions
	Ops  []string
	Size uint64
}

// CostEntry is the pricing of one operation.
type CostEntry struct {
	Operation string              `json:"operation"`
	Entry     cost.Entry          `json:"entry"`
	At        *cost.ExecutionCost `json:"at,omitempty"` // cost at --size
}

// CostsResult describes a validated schedule.
type CostsResult struct {
	Name    string             `json:"name"`
	Limit   cost.ExecutionCost `json:"limit"`
	Size    uint64             `json:"size"`
	Entries []CostEntry        `json:"entries"`
}

// RenderText prints the limit and one line per operation.
func (r CostsResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Schedule: %s\n", r.Name)
	fmt.Fprintf(w, "Limit: %s\n", r.Limit)
	fmt.Fprintln(w)
	for _, e := range r.Entries {
		fmt.Fprintf(w, "%-24s runtime=%s", e.Operation, formatFunction(e.Entry.Runtime))
		if !isZeroFunction(e.Entry.ReadCount) || !isZeroFunction(e.Entry.WriteCount) {
			fmt.Fprintf(w, " read=%s/%s write=%s/%s",
				formatFunction(e.Entry.ReadCount), formatFunction(e.Entry.ReadLength),
				formatFunction(e.Entry.WriteCount), formatFunction(e.Entry.WriteLength))
		}
		if e.At != nil {
			fmt.Fprintf(w, "  n=%d: %s", r.Size, e.At)
		}
		fmt.Fprintln(w)
	}
}

func isZeroFunction(f cost.Function) bool { return f.A == 0 && f.B == 0 }

func formatFunction(f cost.Function) string {
	switch f.Kind {
	case cost.Linear:
		return fmt.Sprintf("%d*n+%d", f.A, f.B)
	case cost.LogN:
		return fmt.Sprintf("%d*log2(n)+%d", f.A, f.B)
	case cost.NLogN:
		return fmt.Sprintf("%d*n*log2(n)+%d", f.A, f.B)
	}
	return fmt.Sprintf("%d", f.A)
}

// NewCostsCommand creates the costs command.
func NewCostsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CostsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "costs [schedule.cue]",
		Short: "Validate and print a cost schedule",
		Long: `Validate a CUE cost schedule and print its limit and entries.
Without a file, the built-in schedule is printed.

Exit codes:
  0 - Schedule is valid
  2 - Command error (missing file, schedule rejected)

Examples:
  clarisim costs
  clarisim costs costs.cue --op map-set --op var-get --size 128
  clarisim costs costs.cue --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runCosts(opts, path, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Ops, "op", nil, "only print these operations")
	cmd.Flags().Uint64Var(&opts.Size, "size", 0, "also evaluate each entry at this input size")

	return cmd
}

func runCosts(opts *CostsOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	sched := cost.DefaultSchedule()
	if path != "" {
		var err error
		if sched, err = cost.LoadSchedule(path); err != nil {
			return exitError(f, &LoadError{Code: ErrCodeConfig, Message: fmt.Sprintf("loading %s", path), Err: err})
		}
	}

	ops := opts.Ops
	if len(ops) == 0 {
		ops = sched.Operations()
	}
	result := CostsResult{Name: sched.Name, Limit: sched.Limit, Size: opts.Size, Entries: make([]CostEntry, 0, len(ops))}
	for _, op := range ops {
		entry, ok := sched.Entries[op]
		if !ok {
			entry = sched.Default
		}
		ce := CostEntry{Operation: op, Entry: entry}
		if cmd.Flags().Changed("size") {
			at := sched.Cost(op, opts.Size)
			ce.At = &at
		}
		result.Entries = append(result.Entries, ce)
	}
	return f.Success(result)
}
