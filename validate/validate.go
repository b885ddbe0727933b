// Package validate derives range rules for 16-bit instructions placed in
// the upper half of a word. It enumerates the low-16-zero subspace
// exhaustively, proposes the tightest range for each (mnemonic, shape) and
// proves it equal to the observed set, splitting once around the
// counterexamples when it is not.
package validate

import (
	"cmp"
	"context"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/colorfulnotion/opfind/finderrors"
	"github.com/colorfulnotion/opfind/kb"
	"github.com/colorfulnotion/opfind/log"
	"github.com/colorfulnotion/opfind/oracle"
	"github.com/colorfulnotion/opfind/solver"
	"github.com/colorfulnotion/opfind/types"
)

// Unresolved describes a key the one-split policy could not model.
type Unresolved struct {
	Key             types.Key
	Reason          string
	Counterexamples []uint32 // words a proposed rule admits but the oracle does not
	Uncovered       []uint32 // observed words no accepted rule covers
}

func (u Unresolved) Error() string {
	return fmt.Sprintf("%s: %s (%d counterexamples, %d uncovered words)", u.Key, u.Reason, len(u.Counterexamples), len(u.Uncovered))
}

func (u Unresolved) Unwrap() error {
	return finderrors.ErrUnresolved
}

// Verdict is the outcome for one key.
type Verdict struct {
	Key        types.Key
	Observed   int
	Rules      []kb.RangeRule
	Split      bool
	Unresolved *Unresolved
}

// Report summarizes a validator run.
type Report struct {
	Decoded  int
	Verdicts []Verdict
}

// Accepted returns every accepted rule in key order.
func (r *Report) Accepted() []kb.RangeRule {
	var out []kb.RangeRule
	for _, v := range r.Verdicts {
		out = append(out, v.Rules...)
	}
	return out
}

// Unresolved returns the diagnostics.
func (r *Report) Unresolved() []Unresolved {
	var out []Unresolved
	for _, v := range r.Verdicts {
		if v.Unresolved != nil {
			out = append(out, *v.Unresolved)
		}
	}
	return out
}

// Validator enumerates with its own oracle and records accepted rules in a
// range catalog.
type Validator struct {
	oracle  oracle.Oracle
	catalog *kb.RangeCatalog
	cfg     Config
}

func New(o oracle.Oracle, catalog *kb.RangeCatalog, cfg Config) *Validator {
	return &Validator{oracle: o, catalog: catalog, cfg: cfg.normalized()}
}

// Run enumerates the subspace, then fits every key in sorted key order,
// flushing the catalog after each key with accepted rules. Unresolved keys
// are reported, not returned as errors.
func (v *Validator) Run(ctx context.Context) (*Report, error) {
	observed, decoded, err := Enumerate(ctx, v.oracle, v.cfg)
	if err != nil {
		return nil, err
	}
	report := &Report{Decoded: decoded}
	for _, key := range SortedKeys(observed) {
		verdict, err := Fit(ctx, key, observed[key])
		if err != nil {
			return report, err
		}
		report.Verdicts = append(report.Verdicts, verdict)
		if verdict.Unresolved != nil {
			log.Warn(log.Validate, "unresolved", "key", key, "err", verdict.Unresolved)
		}
		if len(verdict.Rules) == 0 {
			continue
		}
		if err := v.catalog.Accept(key, verdict.Rules); err != nil {
			return report, err
		}
		for _, r := range verdict.Rules {
			log.Info(log.Validate, "accepted", "rule", r, "split", verdict.Split)
		}
	}
	return report, nil
}

// SortedKeys orders keys by mnemonic, then shape.
func SortedKeys(observed Observed) []types.Key {
	keys := make([]types.Key, 0, len(observed))
	for k := range observed {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b types.Key) int {
		if c := cmp.Compare(a.Mnemonic, b.Mnemonic); c != 0 {
			return c
		}
		return cmp.Compare(a.Shape, b.Shape)
	})
	return keys
}

func sortWords(words []uint32) {
	slices.Sort(words)
}

// Fit models the observed words of one key. words must be sorted and lie
// in the low-16-zero subspace.
func Fit(ctx context.Context, key types.Key, words []uint32) (Verdict, error) {
	verdict := Verdict{Key: key, Observed: len(words)}
	if len(words) == 0 {
		return verdict, nil
	}
	lo, hi := words[0], words[len(words)-1]

	ces, err := counterexamples(ctx, words, lo, hi)
	if err != nil {
		return verdict, err
	}
	if len(ces) == 0 {
		verdict.Rules = []kb.RangeRule{rangeRule(key, lo, hi)}
		return verdict, nil
	}
	log.Debug(log.Validate, "model does not match", "key", key, "counterexample", types.FormatWord(ces[0]), "count", len(ces))

	// Split around the counterexample cluster: [lo, minCE) and (maxCE, hi].
	verdict.Split = true
	minCE, maxCE := ces[0], ces[len(ces)-1]
	var below, middle, above []uint32
	for _, w := range words {
		switch {
		case w < minCE:
			below = append(below, w)
		case w > maxCE:
			above = append(above, w)
		default:
			middle = append(middle, w)
		}
	}

	var failed []uint32
	for _, half := range [][]uint32{below, above} {
		if len(half) == 0 {
			continue
		}
		hlo, hhi := half[0], half[len(half)-1]
		hces, err := counterexamples(ctx, half, hlo, hhi)
		if err != nil {
			return verdict, err
		}
		if len(hces) > 0 {
			failed = append(failed, hces...)
			middle = append(middle, half...)
			continue
		}
		verdict.Rules = append(verdict.Rules, rangeRule(key, hlo, hhi))
	}

	if len(middle) > 0 {
		slices.Sort(middle)
		reason := "observed words between counterexamples"
		if len(failed) > 0 {
			reason = "split half still admits counterexamples"
		}
		verdict.Unresolved = &Unresolved{Key: key, Reason: reason, Counterexamples: ces, Uncovered: middle}
		if len(failed) > 0 {
			verdict.Unresolved.Counterexamples = failed
		}
	}
	return verdict, nil
}

// counterexamples proves "w in words" equivalent to the candidate model
// low16(w) == 0 && lo <= w <= hi, and returns every word where they differ.
func counterexamples(ctx context.Context, words []uint32, lo, hi uint32) ([]uint32, error) {
	observed := solver.Member(words...)
	model := solver.And(solver.LowZero(), solver.Range(lo, hi))

	s := solver.NewSubspace()
	s.Push()
	defer s.Pop()
	s.Add(solver.Not(solver.Iff(observed, model)))
	if _, st := s.Check(ctx); st != solver.Sat {
		if st == solver.Unknown {
			return nil, ctx.Err()
		}
		return nil, nil
	}
	ces, st := s.Models(ctx)
	if st == solver.Unknown {
		return nil, ctx.Err()
	}
	return ces, nil
}

func rangeRule(key types.Key, lo, hi uint32) kb.RangeRule {
	return kb.RangeRule{Mnemonic: key.Mnemonic, Shape: key.Shape, Low: lo, High: hi}
}
