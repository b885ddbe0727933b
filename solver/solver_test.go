package solver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestSolveEmpty(t *testing.T) {
	w, st := New().Solve(context.Background())
	assert.Equal(t, Sat, st)
	assert.Equal(t, uint32(0), w)
}

func TestSolveAvoidsExclusions(t *testing.T) {
	s := New()
	s.ExcludeWord(0)
	s.Exclude(0xff000000, 0x00000000)
	s.Exclude(0x0000000f, 0x00000001)

	w, st := s.Solve(context.Background())
	require.Equal(t, Sat, st)
	assert.False(t, s.Excluded(w), "model 0x%08x is excluded", w)
}

func TestSolveMaskZeroIsUnsat(t *testing.T) {
	s := New()
	s.Exclude(0, 0)
	_, st := s.Solve(context.Background())
	assert.Equal(t, Unsat, st)
	assert.True(t, s.Excluded(0x12345678))
}

func TestSolveFullCover(t *testing.T) {
	// Sixteen cubes on the top nibble cover the whole space.
	s := New()
	for k := uint32(0); k < 16; k++ {
		_, st := s.Solve(context.Background())
		require.Equal(t, Sat, st, "after %d cubes", k)
		s.Exclude(0xf0000000, k<<28)
	}
	_, st := s.Solve(context.Background())
	assert.Equal(t, Unsat, st)
}

func TestSolveLastWord(t *testing.T) {
	// Halving cubes leave exactly one word uncovered.
	s := New()
	want := uint32(0xa5a5a5a5)
	for b := 31; b >= 0; b-- {
		mask := ^uint32(0) << b
		s.Exclude(mask, (want&mask)^(1<<b))
	}
	w, st := s.Solve(context.Background())
	require.Equal(t, Sat, st)
	assert.Equal(t, want, w)

	s.ExcludeWord(want)
	_, st = s.Solve(context.Background())
	assert.Equal(t, Unsat, st)
}

func TestSolveDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var clauses []Clause
	for i := 0; i < 200; i++ {
		mask := rng.Uint32() | rng.Uint32() | rng.Uint32()
		clauses = append(clauses, Clause{Mask: mask, Opcode: rng.Uint32() & mask})
	}
	a, stA := Replay(clauses).Solve(context.Background())
	b, stB := Replay(clauses).Solve(context.Background())
	assert.Equal(t, stA, stB)
	assert.Equal(t, a, b)
	if stA == Sat {
		assert.False(t, Replay(clauses).Excluded(a))
	}
}

func TestSolveRandomAgainstBruteForce(t *testing.T) {
	// Clauses confined to the low 12 bits so the answer can be checked by
	// enumeration.
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		s := New()
		for i := 0; i < 1+rng.Intn(400); i++ {
			mask := (rng.Uint32() | rng.Uint32()) & 0xfff
			s.Exclude(mask, rng.Uint32())
		}
		covered := true
		for w := uint32(0); w < 1<<12; w++ {
			if !s.Excluded(w) {
				covered = false
				break
			}
		}
		w, st := s.Solve(context.Background())
		if covered {
			assert.Equal(t, Unsat, st, "round %d", round)
		} else {
			require.Equal(t, Sat, st, "round %d", round)
			assert.False(t, s.Excluded(w), "round %d", round)
		}
	}
}

func TestSolveTimeout(t *testing.T) {
	s := New()
	s.ExcludeWord(1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	_, st := s.Solve(ctx)
	assert.Equal(t, Unknown, st)
}

func TestReplay(t *testing.T) {
	s := New()
	s.Exclude(0xff, 0x1ff) // opcode bits outside the mask are dropped
	s.ExcludeWord(3)
	assert.Equal(t, []Clause{{0xff, 0xff}, {0xffffffff, 3}}, s.Clauses())

	r := Replay(s.Clauses())
	assert.Equal(t, s.Clauses(), r.Clauses())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, "w & 0x000000ff != 0x000000ff", r.Clauses()[0].String())
}

func TestSubspaceEquivalence(t *testing.T) {
	words := []uint32{0x10000000, 0x10010000, 0x10020000}
	model := And(LowZero(), Range(0x10000000, 0x10020000))

	s := NewSubspace()
	s.Add(Not(Iff(Member(words...), model)))
	_, st := s.Check(context.Background())
	assert.Equal(t, Unsat, st)
}

func TestSubspaceCounterexamples(t *testing.T) {
	words := []uint32{0x10000000, 0x10010000, 0x10040000}
	model := And(LowZero(), Range(0x10000000, 0x10040000))

	s := NewSubspace()
	s.Push()
	s.Add(Not(Iff(Member(words...), model)))
	ce, st := s.Check(context.Background())
	require.Equal(t, Sat, st)
	assert.Equal(t, uint32(0x10020000), ce)

	all, st := s.Models(context.Background())
	require.Equal(t, Sat, st)
	assert.Equal(t, []uint32{0x10020000, 0x10030000}, all)
	s.Pop()

	_, st = s.Check(context.Background())
	assert.Equal(t, Sat, st, "no assertions left after Pop")
}

func TestSubspaceFormulas(t *testing.T) {
	assert.True(t, MaskEq(0xff000000, 0x12ffffff).Eval(0x12345678))
	assert.True(t, Word(5).Eval(5))
	assert.False(t, LowZero().Eval(0x00010001))
	assert.True(t, Or(Word(1), Word(2)).Eval(2))
	assert.False(t, And(Word(1), Word(2)).Eval(1))
	assert.True(t, Iff(Word(1), Not(Word(2))).Eval(1))
	assert.Equal(t, "(w == 0x00000001) || (w & 0x0000ffff == 0x00000000)", Or(Word(1), LowZero()).String())

	s := NewSubspace()
	s.Add(MaskEq(0x0000ffff, 1))
	_, st := s.Models(context.Background())
	assert.Equal(t, Unsat, st, "no domain word has low bits set")
	assert.Panics(t, func() { NewSubspace().Pop() })
}

func TestSubspaceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, st := NewSubspace().Check(ctx)
	assert.Equal(t, Unknown, st)
}
