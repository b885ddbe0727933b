package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/colorfulnotion/opfind/kb"
	"github.com/colorfulnotion/opfind/log"
	"github.com/colorfulnotion/opfind/report"
)

func newInfoCmd(_ *options) *cobra.Command {
	var (
		rangesPath string
		tree       bool
		chartPath  string
	)
	cmd := &cobra.Command{
		Use:   "info <kb>",
		Short: "List the facts of a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := kb.Load(args[0])
			if err != nil {
				return err
			}
			var ranges []kb.RangeRule
			if rangesPath != "" {
				catalog, err := kb.LoadRangeCatalog(rangesPath)
				if err != nil {
					return err
				}
				ranges = catalog.Rules()
			}

			out := cmd.OutOrStdout()
			facts := k.Facts()
			if tree {
				fmt.Fprint(out, report.Tree(args[0], facts, ranges).String())
			} else {
				if err := report.Listings(out, facts); err != nil {
					return err
				}
				if len(ranges) > 0 {
					if err := report.Ranges(out, ranges); err != nil {
						return err
					}
				}
			}

			if chartPath != "" {
				f, err := os.Create(chartPath)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := report.Chart(f, args[0], facts); err != nil {
					return err
				}
				log.Info(log.Report, "chart written", "path", chartPath, "facts", len(facts))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&rangesPath, "ranges", "", "Range catalog to list alongside the facts")
	f.BoolVar(&tree, "tree", false, "Print a mnemonic tree instead of the sorted listings")
	f.StringVar(&chartPath, "chart", "", "Write an HTML chart of mask widths to this file")
	return cmd
}
