package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/colorfulnotion/opfind/kb"
	"github.com/colorfulnotion/opfind/report"
)

func newDiffCmd(_ *options) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <a> <b>",
		Short: "Compare two knowledge bases, ignoring fact order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := kb.Load(args[0])
			if err != nil {
				return err
			}
			b, err := kb.Load(args[1])
			if err != nil {
				return err
			}
			color := cmd.OutOrStdout() == os.Stdout && term.IsTerminal(int(os.Stdout.Fd()))
			out, changed, err := report.Diff(a.Facts(), b.Facts(), color)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s and %s hold the same facts\n", args[0], args[1])
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
