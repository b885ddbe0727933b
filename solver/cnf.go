// Package solver answers satisfiability questions about a symbolic 32-bit
// instruction word. Solver handles the exploration formula, a conjunction
// of exclusions "word & mask != opcode"; Subspace decides arbitrary
// formulas over the words whose low 16 bits are zero.
package solver

import (
	"context"
	"fmt"
	"math/bits"
	"time"
)

// Status is the outcome of a satisfiability check.
type Status uint8

const (
	Unknown Status = iota // interrupted before an answer, e.g. by a deadline
	Sat
	Unsat
)

func (s Status) String() string {
	switch s {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Clause forbids every word w with w&Mask == Opcode. Over the 32 bit
// variables it is the disjunction of "bit b differs from Opcode" for each
// bit b in Mask.
type Clause struct {
	Mask   uint32
	Opcode uint32
}

// Excludes reports whether the clause rules out w.
func (c Clause) Excludes(w uint32) bool {
	return w&c.Mask == c.Opcode
}

func (c Clause) String() string {
	return fmt.Sprintf("w & 0x%08x != 0x%08x", c.Mask, c.Opcode)
}

// Solver holds the exclusion formula. The clause list is append-only and
// can be replayed into a fresh Solver to rebuild the same state.
type Solver struct {
	clauses []Clause
	empty   bool // a mask-0 clause excludes every word
	nodes   uint64
}

func New() *Solver {
	return &Solver{}
}

// Replay builds a solver from a previously recorded clause list.
func Replay(clauses []Clause) *Solver {
	s := New()
	for _, c := range clauses {
		s.Exclude(c.Mask, c.Opcode)
	}
	return s
}

// Exclude adds "word & mask != opcode". Opcode bits outside mask are
// ignored.
func (s *Solver) Exclude(mask, opcode uint32) {
	c := Clause{Mask: mask, Opcode: opcode & mask}
	if c.Mask == 0 {
		s.empty = true
	}
	s.clauses = append(s.clauses, c)
}

// ExcludeWord adds "word != w".
func (s *Solver) ExcludeWord(w uint32) {
	s.Exclude(^uint32(0), w)
}

// Excluded reports whether some clause already rules out w.
func (s *Solver) Excluded(w uint32) bool {
	for _, c := range s.clauses {
		if c.Excludes(w) {
			return true
		}
	}
	return false
}

// Clauses returns a copy of the clause list in insertion order.
func (s *Solver) Clauses() []Clause {
	return append([]Clause(nil), s.clauses...)
}

func (s *Solver) Len() int {
	return len(s.clauses)
}

// Nodes is the number of search nodes visited by all Solve calls.
func (s *Solver) Nodes() uint64 {
	return s.nodes
}

// Solve looks for a word no clause excludes. It returns Unknown when ctx is
// done before the search finishes. The search is deterministic: the same
// clause list always yields the same model.
func (s *Solver) Solve(ctx context.Context) (uint32, Status) {
	if s.empty {
		return 0, Unsat
	}
	d := &dpll{ctx: ctx, clauses: s.clauses}
	d.deadline, d.hasDeadline = ctx.Deadline()
	w, st := d.search(0, 0)
	s.nodes += d.nodes
	return w, st
}

// dpll is a DPLL search over the 32 word bits. Partial assignments are
// kept as two bitmasks; a bit of value is meaningful only where the same
// bit of assigned is set.
type dpll struct {
	ctx         context.Context
	deadline    time.Time
	hasDeadline bool
	clauses     []Clause
	nodes       uint64
}

// expired polls the clock as well as ctx: a search can finish well inside
// the time it takes the runtime to fire a short deadline timer.
func (d *dpll) expired() bool {
	if d.ctx.Err() != nil {
		return true
	}
	return d.hasDeadline && !time.Now().Before(d.deadline)
}

func (d *dpll) search(assigned, value uint32) (uint32, Status) {
	d.nodes++
	if d.expired() {
		return 0, Unknown
	}
	assigned, value, ok := d.propagate(assigned, value)
	if !ok {
		return 0, Unsat
	}
	bit, polarity, open := d.branch(assigned, value)
	if !open {
		// Every clause is satisfied; unassigned bits stay zero.
		return value, Sat
	}
	for _, v := range [2]uint32{polarity, polarity ^ bit} {
		w, st := d.search(assigned|bit, value|v)
		if st != Unsat {
			return w, st
		}
	}
	return 0, Unsat
}

// propagate applies unit propagation until fixpoint. It reports false on a
// clause whose every bit is assigned equal to its opcode.
func (d *dpll) propagate(assigned, value uint32) (uint32, uint32, bool) {
	for changed := true; changed; {
		changed = false
		for _, c := range d.clauses {
			if (value^c.Opcode)&c.Mask&assigned != 0 {
				continue
			}
			free := c.Mask &^ assigned
			if free == 0 {
				return assigned, value, false
			}
			if free&(free-1) == 0 {
				assigned |= free
				value |= ^c.Opcode & free
				changed = true
			}
		}
	}
	return assigned, value, true
}

// branch picks the unassigned bit with the highest Jeroslow-Wang score
// among the open clauses, lowest bit first on ties, and the polarity that
// satisfies the larger weight of them (0 on ties). It returns the polarity
// as a mask: 0 or bit.
func (d *dpll) branch(assigned, value uint32) (bit, polarity uint32, open bool) {
	var sat0, sat1 [32]uint64
	for _, c := range d.clauses {
		if (value^c.Opcode)&c.Mask&assigned != 0 {
			continue
		}
		free := c.Mask &^ assigned
		weight := uint64(1) << (32 - bits.OnesCount32(free))
		open = true
		for f := free; f != 0; f &= f - 1 {
			b := bits.TrailingZeros32(f)
			if c.Opcode&(1<<b) != 0 {
				sat0[b] += weight
			} else {
				sat1[b] += weight
			}
		}
	}
	if !open {
		return 0, 0, false
	}
	best, bestScore := -1, uint64(0)
	for b := 0; b < 32; b++ {
		if score := sat0[b] + sat1[b]; score > bestScore {
			best, bestScore = b, score
		}
	}
	bit = 1 << best
	if sat1[best] > sat0[best] {
		polarity = bit
	}
	return bit, polarity, true
}
