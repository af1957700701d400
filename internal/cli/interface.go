package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hirosystems/clarinet-sub000/internal/eval"
)

// InterfaceOptions holds flags for the interface command.
type InterfaceOptions struct {
	*RootOptions
	SessionOptions
}

// InterfaceResult is the interface of a deployed contract.
type InterfaceResult struct {
	Contract  string                  `json:"contract"`
	Interface *eval.ContractInterface `json:"interface"`
}

// RenderText prints one line per definition.
func (r InterfaceResult) RenderText(w io.Writer) {
	ci := r.Interface
	fmt.Fprintf(w, "%s (epoch %s, %s)\n", r.Contract, ci.Epoch, ci.ClarityVersion)
	for _, fn := range ci.Functions {
		fmt.Fprintf(w, "  %s function %s", fn.Access, fn.Name)
		for _, a := range fn.Args {
			fmt.Fprintf(w, " (%s %s)", a.Name, a.Type)
		}
		fmt.Fprintln(w)
	}
	for _, v := range ci.Variables {
		fmt.Fprintf(w, "  %s %s %s\n", v.Access, v.Name, v.Type)
	}
	for _, m := range ci.Maps {
		fmt.Fprintf(w, "  map %s %s -> %s\n", m.Name, m.Key, m.Value)
	}
	for _, t := range ci.FungibleTokens {
		fmt.Fprintf(w, "  fungible-token %s\n", t.Name)
	}
	for _, t := range ci.NonFungibleTokens {
		fmt.Fprintf(w, "  non-fungible-token %s %s\n", t.Name, t.Type)
	}
	for _, t := range ci.ImplementedTraits {
		fmt.Fprintf(w, "  impl-trait %s\n", t)
	}
}

// NewInterfaceCommand creates the interface command.
func NewInterfaceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InterfaceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "interface <contract.clar>",
		Short: "Print the interface of a contract",
		Long: `Deploy a contract on a fresh session and print its interface:
functions with their access and argument types, variables, maps and tokens.

Exit codes:
  0 - Interface printed
  2 - Command error (missing file, deploy failure)

Examples:
  clarisim interface contracts/counter.clar
  clarisim interface contracts/counter.clar --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInterface(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "devnet config file (TOML)")

	return cmd
}

func runInterface(opts *InterfaceOptions, path string, cmd *cobra.Command) error {
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

	id, err := deploy(ctx, s, c)
	if err != nil {
		return exitError(f, err)
	}
	ci, err := s.GetContractInterface(ctx, id.ID())
	if err != nil {
		return exitError(f, err)
	}
	return f.Success(InterfaceResult{Contract: id.ID(), Interface: ci})
}
