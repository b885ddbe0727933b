package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/colorfulnotion/opfind/explore"
	"github.com/colorfulnotion/opfind/kb"
	"github.com/colorfulnotion/opfind/log"
	"github.com/colorfulnotion/opfind/oracle"
)

func newFindCmd(opts *options) *cobra.Command {
	var (
		timeout       float64
		seed          uint64
		cachePath     string
		maxFacts      int
		maxIterations int
		skipRegions   bool
		noSkipRegions bool
	)
	cmd := &cobra.Command{
		Use:   "find <kb>",
		Short: "Explore the 32-bit space and record instruction facts in <kb>",
		Long: `Explore the 32-bit space and record instruction facts in <kb>.

The knowledge base is JSON unless the file name ends in .yaml or .yml.
It is flushed after every new fact, so an interrupted run resumes where it
stopped.

Without --skip-regions only facts and drawn words are excluded, so "covered"
means every wide instruction was found. With it, a run that closes the space
through skip regions ends "covered with skip regions" and lists them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			flags := cmd.Flags()
			if flags.Changed("timeout") {
				cfg.Find.Timeout = timeout
			}
			if flags.Changed("seed") {
				cfg.Find.Seed = seed
			}
			if flags.Changed("cache") {
				cfg.Find.Cache = cachePath
			}
			if flags.Changed("max-facts") {
				cfg.Find.MaxFacts = maxFacts
			}
			if flags.Changed("max-iterations") {
				cfg.Find.MaxIterations = maxIterations
			}
			if skipRegions {
				cfg.Find.SkipRegions = true
			}
			if noSkipRegions {
				cfg.Find.SkipRegions = false
			}
			if err := cfg.Check(); err != nil {
				return err
			}

			k, err := kb.Load(args[0])
			if err != nil {
				return err
			}
			backend, closeOracle, err := opts.openOracle(cfg.Find.Cache)
			if err != nil {
				return err
			}
			defer closeOracle()
			counting := oracle.NewCounting(backend)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Exploring with %s, %d facts loaded from %s\n", cfg.Oracle, k.Len(), args[0])
			ex := explore.New(counting, k, cfg.Explore())
			ex.OnFact = func(f kb.Fact) {
				fmt.Fprintf(out, "  %s\n", f)
			}
			outcome, err := ex.Run(cmd.Context())
			if err != nil {
				return err
			}
			st := ex.Stats()
			fmt.Fprintf(out, "%s: %d facts (%d new, %d supplemented), %d iterations, %d decoder calls\n",
				outcome, k.Len(), st.NewFacts, st.Supplemented, st.Iterations, counting.Calls())
			if outcome == explore.CoveredWithSkips {
				skipped := ex.Skipped()
				fmt.Fprintf(out, "%d skip regions excluded without facts:\n", len(skipped))
				for _, r := range skipped {
					fmt.Fprintf(out, "  %s\n", r)
				}
			}
			if c, ok := backend.(*oracle.Cache); ok {
				hits, misses := c.Stats()
				log.Info(log.Oracle, "decode cache", "hits", hits, "misses", misses)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64VarP(&timeout, "timeout", "t", explore.DefaultSolverTimeout.Seconds(), "Solver timeout per sample in seconds")
	f.Uint64Var(&seed, "seed", 0, "Seed for random fallback words (0 seeds from the clock)")
	f.StringVar(&cachePath, "cache", "", "LevelDB directory caching decoder answers across runs")
	f.IntVar(&maxFacts, "max-facts", 0, "Stop once the knowledge base holds this many facts (0 means no limit)")
	f.IntVar(&maxIterations, "max-iterations", 0, "Stop after this many seeds (0 means no limit)")
	f.BoolVar(&skipRegions, "skip-regions", false, "Exclude cubes around illegal, 16-bit and bundle words once sampling finds nothing else in them")
	f.BoolVar(&noSkipRegions, "no-skip-regions", false, "Never exclude skip regions, even if the config enables them")
	return cmd
}
