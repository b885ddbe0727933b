package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/colorfulnotion/opfind/kb"
	"github.com/colorfulnotion/opfind/types"
	"github.com/colorfulnotion/opfind/validate"
)

func newFind16Cmd(opts *options) *cobra.Command {
	var (
		workers   int
		batchSize int
		start     string
		end       string
		cachePath string
	)
	cmd := &cobra.Command{
		Use:   "find16 <ranges>",
		Short: "Validate 16-bit instructions as opcode ranges and record them in <ranges>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			flags := cmd.Flags()
			if flags.Changed("workers") {
				cfg.Validate.Workers = workers
			}
			if flags.Changed("batch") {
				cfg.Validate.BatchSize = batchSize
			}
			if flags.Changed("start") {
				v, err := parseBound(start)
				if err != nil {
					return err
				}
				cfg.Validate.Start = v
			}
			if flags.Changed("end") {
				v, err := parseBound(end)
				if err != nil {
					return err
				}
				cfg.Validate.End = v
			}
			if err := cfg.Check(); err != nil {
				return err
			}

			catalog, err := kb.LoadRangeCatalog(args[0])
			if err != nil {
				return err
			}
			backend, closeOracle, err := opts.openOracle(cachePath)
			if err != nil {
				return err
			}
			defer closeOracle()

			rep, err := validate.New(backend, catalog, cfg.Validation()).Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(cmd.OutOrStdout(), "interrupted; range catalog keeps the keys accepted so far")
				return nil
			}
			if err != nil {
				return err
			}
			printValidation(cmd, rep)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&workers, "workers", 0, "Decoder workers (default: number of CPUs)")
	f.IntVar(&batchSize, "batch", validate.DefaultBatchSize, "Words per worker batch")
	f.StringVar(&start, "start", "0", "First word of the window")
	f.StringVar(&end, "end", "0x100000000", "End of the window (exclusive)")
	f.StringVar(&cachePath, "cache", "", "LevelDB directory caching decoder answers across runs")
	return cmd
}

func printValidation(cmd *cobra.Command, rep *validate.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Decoded %d words, %d 16-bit instructions\n", rep.Decoded, len(rep.Verdicts))
	for _, v := range rep.Verdicts {
		note := ""
		if v.Split {
			note = " (split)"
		}
		fmt.Fprintf(out, "%s: %d words%s\n", v.Key, v.Observed, note)
		for _, r := range v.Rules {
			fmt.Fprintf(out, "  %s\n", r)
		}
	}
	unresolved := rep.Unresolved()
	if len(unresolved) == 0 {
		return
	}
	fmt.Fprintln(out, "Unresolved:")
	for _, u := range unresolved {
		fmt.Fprintf(out, "  %s\n", u.Error())
		for _, w := range sample(u.Counterexamples) {
			fmt.Fprintf(out, "    counterexample %s\n", types.FormatWord(w))
		}
		for _, w := range sample(u.Uncovered) {
			fmt.Fprintf(out, "    uncovered %s\n", types.FormatWord(w))
		}
	}
}

func sample(words []uint32) []uint32 {
	const n = 8
	if len(words) > n {
		return words[:n]
	}
	return words
}
