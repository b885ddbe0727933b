package main

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/colorfulnotion/opfind/kb"
	"github.com/colorfulnotion/opfind/types"
)

func newDecodeCmd(opts *options) *cobra.Command {
	var (
		debug  bool
		kbPath string
	)
	cmd := &cobra.Command{
		Use:   "decode <hex>...",
		Short: "Decode words with the configured decoder",
		Long: `Decode words with the configured decoder.

A word of at most four hex digits is a 16-bit instruction and is placed in
the upper half of the 32-bit word.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, closeOracle, err := opts.openOracle("")
			if err != nil {
				return err
			}
			defer closeOracle()

			var k *kb.KnowledgeBase
			if kbPath != "" {
				if k, err = kb.Load(kbPath); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for _, arg := range args {
				w, err := parseWord(arg)
				if err != nil {
					return err
				}
				res, err := backend.Decode(w)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %s\n", types.FormatWord(w), res)
				if k != nil {
					if f, ok := k.Covering(w); ok {
						fmt.Fprintf(out, "  covered by %s\n", f)
					} else {
						fmt.Fprintln(out, "  not covered")
					}
				}
				if debug {
					spew.Fdump(out, res)
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&debug, "debug", false, "Dump the full decode result")
	f.StringVar(&kbPath, "kb", "", "Knowledge base to look up the covering fact in")
	return cmd
}
