package solver

import (
	"context"
	"fmt"
	"strings"
)

// SubspaceShift is the width of the zero low part of every word a Subspace
// ranges over: its domain is {hi << 16 | hi in [0, 1<<16)}.
const SubspaceShift = 16

// SubspaceStep is the distance between consecutive domain words.
const SubspaceStep = 1 << SubspaceShift

// Formula is a predicate over a 32-bit word.
type Formula interface {
	Eval(w uint32) bool
	String() string
}

type maskEq struct{ mask, value uint32 }

func (f maskEq) Eval(w uint32) bool { return w&f.mask == f.value }
func (f maskEq) String() string {
	if f.mask == ^uint32(0) {
		return fmt.Sprintf("w == 0x%08x", f.value)
	}
	return fmt.Sprintf("w & 0x%08x == 0x%08x", f.mask, f.value)
}

// MaskEq is w & mask == value.
func MaskEq(mask, value uint32) Formula { return maskEq{mask, value & mask} }

// Word is w == v.
func Word(v uint32) Formula { return maskEq{^uint32(0), v} }

// LowZero is w & 0xffff == 0.
func LowZero() Formula { return maskEq{SubspaceStep - 1, 0} }

type rangeF struct{ lo, hi uint32 }

func (f rangeF) Eval(w uint32) bool { return f.lo <= w && w <= f.hi }
func (f rangeF) String() string     { return fmt.Sprintf("0x%08x <= w <= 0x%08x", f.lo, f.hi) }

// Range is lo <= w <= hi, unsigned.
func Range(lo, hi uint32) Formula { return rangeF{lo, hi} }

type member struct{ set map[uint32]struct{} }

func (f member) Eval(w uint32) bool {
	_, ok := f.set[w]
	return ok
}

func (f member) String() string {
	return fmt.Sprintf("w in {%d words}", len(f.set))
}

// Member is the disjunction of w == v over words.
func Member(words ...uint32) Formula {
	set := make(map[uint32]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return member{set}
}

type and []Formula

func (f and) Eval(w uint32) bool {
	for _, g := range f {
		if !g.Eval(w) {
			return false
		}
	}
	return true
}
func (f and) String() string { return join(" && ", f) }

type or []Formula

func (f or) Eval(w uint32) bool {
	for _, g := range f {
		if g.Eval(w) {
			return true
		}
	}
	return false
}
func (f or) String() string { return join(" || ", f) }

func join(sep string, fs []Formula) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = "(" + f.String() + ")"
	}
	return strings.Join(parts, sep)
}

type not struct{ f Formula }

func (f not) Eval(w uint32) bool { return !f.f.Eval(w) }
func (f not) String() string     { return "!(" + f.f.String() + ")" }

type iff struct{ a, b Formula }

func (f iff) Eval(w uint32) bool { return f.a.Eval(w) == f.b.Eval(w) }
func (f iff) String() string     { return "(" + f.a.String() + ") == (" + f.b.String() + ")" }

func And(fs ...Formula) Formula { return and(fs) }
func Or(fs ...Formula) Formula  { return or(fs) }
func Not(f Formula) Formula     { return not{f} }
func Iff(a, b Formula) Formula  { return iff{a, b} }

// Subspace decides formulas over the low-16-zero words by exhaustive
// evaluation. The domain has 65536 words, so every check is exact.
// Assertions form a stack: Push saves the current depth and Pop restores it.
type Subspace struct {
	assertions []Formula
	frames     []int
}

func NewSubspace() *Subspace {
	return &Subspace{}
}

// Add asserts f.
func (s *Subspace) Add(f Formula) {
	s.assertions = append(s.assertions, f)
}

func (s *Subspace) Push() {
	s.frames = append(s.frames, len(s.assertions))
}

// Pop drops every assertion added since the matching Push.
func (s *Subspace) Pop() {
	if len(s.frames) == 0 {
		panic("solver: Pop without Push")
	}
	n := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	s.assertions = s.assertions[:n]
}

func (s *Subspace) holds(w uint32) bool {
	for _, f := range s.assertions {
		if !f.Eval(w) {
			return false
		}
	}
	return true
}

// Check returns the smallest domain word satisfying every assertion.
func (s *Subspace) Check(ctx context.Context) (uint32, Status) {
	var model uint32
	st := s.scan(ctx, func(w uint32) bool {
		model = w
		return false
	})
	if st == Sat {
		return model, Sat
	}
	return 0, st
}

// Models returns every satisfying domain word in ascending order. The
// result equals repeatedly taking a model and excluding it until unsat.
func (s *Subspace) Models(ctx context.Context) ([]uint32, Status) {
	var models []uint32
	st := s.scan(ctx, func(w uint32) bool {
		models = append(models, w)
		return true
	})
	if st == Unknown {
		return nil, Unknown
	}
	if len(models) == 0 {
		return nil, Unsat
	}
	return models, Sat
}

// scan calls found for satisfying words in ascending order until it
// returns false.
func (s *Subspace) scan(ctx context.Context, found func(uint32) bool) Status {
	sat := false
	for hi := uint32(0); hi < 1<<SubspaceShift; hi++ {
		if hi%4096 == 0 && ctx.Err() != nil {
			return Unknown
		}
		w := hi << SubspaceShift
		if !s.holds(w) {
			continue
		}
		sat = true
		if !found(w) {
			return Sat
		}
	}
	if sat {
		return Sat
	}
	return Unsat
}
