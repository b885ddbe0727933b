// Package explore runs the discovery loop: it draws seed words, learns the
// encoding cube of every new (mnemonic, shape) with the sensitivity
// analyzer and excludes learned cubes from the solver until no word is
// left uncovered.
package explore

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/rand"

	"github.com/colorfulnotion/opfind/finderrors"
	"github.com/colorfulnotion/opfind/kb"
	"github.com/colorfulnotion/opfind/log"
	"github.com/colorfulnotion/opfind/oracle"
	"github.com/colorfulnotion/opfind/sensitivity"
	"github.com/colorfulnotion/opfind/solver"
	"github.com/colorfulnotion/opfind/types"
)

const DefaultSolverTimeout = time.Second

// Config tunes a run.
type Config struct {
	SolverTimeout time.Duration // budget per solver sample; 0 means DefaultSolverTimeout
	RandomSeed    uint64        // source of fallback words; 0 seeds from the clock
	MaxFacts      int           // stop once the knowledge base holds this many facts; 0 means no limit
	MaxIterations int           // stop after this many seeds; 0 means no limit
	SkipRegions   bool          // exclude a learned cube around illegal, 16-bit and bundle seeds
	SkipSamples   int           // random words decoded inside a skip region before it is excluded
}

const DefaultSkipSamples = 16

// DefaultConfig only ever excludes facts and drawn words. Skip regions are
// a heuristic and must be asked for.
func DefaultConfig() Config {
	return Config{SolverTimeout: DefaultSolverTimeout, SkipSamples: DefaultSkipSamples}
}

// Outcome is why Run returned without error.
type Outcome uint8

const (
	Covered          Outcome = iota // facts and drawn words exclude every word
	CoveredWithSkips                // unsatisfiable with at least one skip region excluded
	Interrupted                     // ctx was cancelled
	LimitReached                    // Config.MaxFacts or Config.MaxIterations reached
)

func (o Outcome) String() string {
	switch o {
	case Covered:
		return "covered"
	case CoveredWithSkips:
		return "covered with skip regions"
	case Interrupted:
		return "interrupted"
	default:
		return "limit reached"
	}
}

// Source tells where a seed came from.
type Source uint8

const (
	FromQueue Source = iota
	FromSolver
	FromRandom
)

func (s Source) String() string {
	return [...]string{"queue", "solver", "random"}[s]
}

// Stats counts what a run did.
type Stats struct {
	Iterations     int
	Seeds          [3]int // indexed by Source
	SolverTimeouts int
	StaleQueued    int // queued words already drawn or covered by a fact when popped
	Illegal        int
	Narrow         int
	Bundles        int
	Known          int
	Supplemented   int
	NewFacts       int
	SkipRegions    int
	SkipRejected   int // regions not excluded because a sample decoded differently
}

// Explorer owns the exploration state of one run. It is not safe for
// concurrent use.
type Explorer struct {
	cfg      Config
	oracle   oracle.Oracle
	kb       *kb.KnowledgeBase
	analyzer *sensitivity.Analyzer
	solver   *solver.Solver
	queue    *SeedQueue
	drawn    map[uint32]struct{}
	rng      *rand.Rand
	stats    Stats
	skipped  []Region

	// OnFact, if set, is called after each fact is persisted.
	OnFact func(kb.Fact)
}

// New prepares a run over o that records facts in k.
func New(o oracle.Oracle, k *kb.KnowledgeBase, cfg Config) *Explorer {
	if cfg.SolverTimeout <= 0 {
		cfg.SolverTimeout = DefaultSolverTimeout
	}
	seed := cfg.RandomSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Explorer{
		cfg:      cfg,
		oracle:   o,
		kb:       k,
		analyzer: sensitivity.New(o, k),
		solver:   solver.New(),
		queue:    NewSeedQueue(),
		drawn:    make(map[uint32]struct{}),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Region is an excluded skip region. Words in it were never decoded one by
// one, so a run that needed regions to finish proves nothing about them.
type Region struct {
	Seed   uint32
	Kind   types.DecodeKind
	Mask   uint32
	Opcode uint32
}

func (r Region) String() string {
	return fmt.Sprintf("%s around %s: mask = 0x%08x, opcode = 0x%08x", r.Kind, types.FormatWord(r.Seed), r.Mask, r.Opcode)
}

// Skipped returns the skip regions excluded so far, in order.
func (e *Explorer) Skipped() []Region {
	return append([]Region(nil), e.skipped...)
}

func (e *Explorer) Stats() Stats {
	return e.stats
}

// Solver exposes the exclusion formula, mainly for inspection in tests.
func (e *Explorer) Solver() *solver.Solver {
	return e.solver
}

// Run explores until no word is left, ctx is cancelled or a limit is
// reached. Cancellation is only observed between iterations, so
// the knowledge base always ends in a flushed state. Errors are fatal.
func (e *Explorer) Run(ctx context.Context) (Outcome, error) {
	e.resume()
	for {
		if ctx.Err() != nil {
			e.logSummary(Interrupted)
			return Interrupted, nil
		}
		if e.cfg.MaxFacts > 0 && e.kb.Len() >= e.cfg.MaxFacts ||
			e.cfg.MaxIterations > 0 && e.stats.Iterations >= e.cfg.MaxIterations {
			e.logSummary(LimitReached)
			return LimitReached, nil
		}
		seed, src, ok := e.next(ctx)
		if !ok {
			outcome := Covered
			if len(e.skipped) > 0 {
				outcome = CoveredWithSkips
			}
			e.logSummary(outcome)
			return outcome, nil
		}
		e.stats.Iterations++
		e.stats.Seeds[src]++
		if err := e.step(seed, src); err != nil {
			return Interrupted, err
		}
	}
}

// resume rebuilds solver and queue from the loaded facts.
func (e *Explorer) resume() {
	facts := e.kb.Facts()
	for _, f := range facts {
		e.solver.Exclude(f.Mask, f.Opcode)
		for b := 0; b < sensitivity.Bits; b++ {
			e.queue.Push(f.Opcode ^ 1<<b)
		}
	}
	if len(facts) > 0 {
		log.Info(log.Explore, "resumed", "facts", len(facts), "queued", e.queue.Len())
	}
}

// next draws a seed: queued neighbours first, then a solver model, then a
// random word when the solver runs out of time. ok is false once the
// solver proves every word excluded.
//
// Queued words are observed decodings, so only facts and earlier draws
// retire them; a skip region does not.
func (e *Explorer) next(ctx context.Context) (uint32, Source, bool) {
	for {
		w, ok := e.queue.Pop()
		if !ok {
			break
		}
		if _, seen := e.drawn[w]; seen || e.kb.Covers(w) {
			e.stats.StaleQueued++
			continue
		}
		return w, FromQueue, true
	}

	sctx, cancel := context.WithTimeout(ctx, e.cfg.SolverTimeout)
	w, st := e.solver.Solve(sctx)
	cancel()
	switch st {
	case solver.Sat:
		return w, FromSolver, true
	case solver.Unsat:
		return 0, FromSolver, false
	}
	e.stats.SolverTimeouts++
	log.Debug(log.Solver, "solver timed out, using random seed", "clauses", e.solver.Len())
	return e.rng.Uint32(), FromRandom, true
}

func (e *Explorer) step(seed uint32, src Source) error {
	// Never draw this word again.
	e.drawn[seed] = struct{}{}
	e.solver.ExcludeWord(seed)

	res, err := e.oracle.Decode(seed)
	if err != nil {
		return err
	}
	switch {
	case res.Kind == types.Illegal:
		e.stats.Illegal++
		log.Trace(log.Explore, "not testing illegal word", "seed", types.FormatWord(seed), "src", src)
		return e.skip(seed, res)
	case res.Kind == types.Bundle:
		e.stats.Bundles++
		log.Debug(log.Explore, "not testing bundle", "seed", types.FormatWord(seed), "decoded", res)
		return e.skip(seed, res)
	case !res.IsWide():
		e.stats.Narrow++
		log.Debug(log.Explore, "not testing 16-bit instruction", "seed", types.FormatWord(seed), "decoded", res)
		return e.skip(seed, res)
	case res.Shape == types.ShapeUnknown:
		return fmt.Errorf("seed %s: %s %q: %w", types.FormatWord(seed), res.Mnemonic, res.Operands, finderrors.ErrUnknownShape)
	}

	key := res.Key()
	known := e.kb.Has(key)
	if known && e.kb.Covers(seed) {
		e.stats.Known++
		log.Debug(log.Explore, "already tested", "seed", types.FormatWord(seed), "key", key)
		return nil
	}

	log.Debug(log.Explore, "seed instruction", "seed", types.FormatWord(seed), "src", src, "decoded", res)
	r, err := e.analyzer.Analyze(seed, res)
	if err != nil {
		return err
	}
	fact := kb.Fact{Mnemonic: res.Mnemonic, Shape: res.Shape, Mask: r.Mask, Opcode: r.Opcode}
	if known {
		err = e.kb.Supplement(fact)
		e.stats.Supplemented++
	} else {
		err = e.kb.Add(fact)
		e.stats.NewFacts++
	}
	if err != nil {
		return err
	}
	e.solver.Exclude(fact.Mask, fact.Opcode)
	e.enqueue(r.Seeds)
	verb := "new fact"
	if known {
		verb = "supplemented fact"
	}
	log.Info(log.Explore, verb, "fact", fact, "seed", types.FormatWord(seed), "facts", e.kb.Len(), "queued", e.queue.Len())
	if e.OnFact != nil {
		e.OnFact(fact)
	}
	return nil
}

// skip handles a seed the loop does not model.
func (e *Explorer) skip(seed uint32, res types.DecodeResult) error {
	if !e.cfg.SkipRegions {
		return nil
	}
	r, err := e.analyzer.SkipRegion(seed, res)
	if err != nil {
		return err
	}
	e.enqueue(r.Seeds)
	w, found, err := e.sample(r, res.Class())
	if err != nil {
		return err
	}
	if found {
		e.stats.SkipRejected++
		e.queue.Push(w)
		log.Debug(log.Explore, "skip region rejected", "seed", types.FormatWord(seed),
			"mask", types.FormatWord(r.Mask), "witness", types.FormatWord(w))
		return nil
	}
	e.stats.SkipRegions++
	e.skipped = append(e.skipped, Region{Seed: seed, Kind: res.Kind, Mask: r.Mask, Opcode: r.Opcode})
	e.solver.Exclude(r.Mask, r.Opcode)
	log.Debug(log.Explore, "skip region", "seed", types.FormatWord(seed), "class", res.Kind,
		"mask", types.FormatWord(r.Mask), "opcode", types.FormatWord(r.Opcode))
	return nil
}

// sample decodes random words of the region that are not yet excluded and
// returns the first whose class differs from class.
func (e *Explorer) sample(r sensitivity.Result, class types.Class) (uint32, bool, error) {
	for i := 0; i < e.cfg.SkipSamples; i++ {
		w := r.Opcode | e.rng.Uint32()&^r.Mask
		if e.solver.Excluded(w) {
			continue
		}
		res, err := e.oracle.Decode(w)
		if err != nil {
			return 0, false, err
		}
		if res.Class() != class {
			return w, true, nil
		}
	}
	return 0, false, nil
}

func (e *Explorer) enqueue(words []uint32) {
	for _, w := range words {
		e.queue.Push(w)
	}
}

func (e *Explorer) logSummary(o Outcome) {
	s := e.stats
	log.Info(log.Explore, "exploration finished", "outcome", o, "facts", e.kb.Len(), "new", s.NewFacts,
		"supplemented", s.Supplemented, "iterations", s.Iterations, "queue", s.Seeds[FromQueue],
		"solver", s.Seeds[FromSolver], "random", s.Seeds[FromRandom], "timeouts", s.SolverTimeouts,
		"skipRegions", s.SkipRegions, "skipRejected", s.SkipRejected, "clauses", e.solver.Len(), "nodes", e.solver.Nodes())
	if o == CoveredWithSkips {
		log.Warn(log.Explore, "space closed by skip regions; words inside them were not decoded", "regions", len(e.skipped))
	}
}
