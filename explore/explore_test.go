package explore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/colorfulnotion/opfind/finderrors"
	"github.com/colorfulnotion/opfind/kb"
	"github.com/colorfulnotion/opfind/oracle"
	"github.com/colorfulnotion/opfind/solver"
	"github.com/colorfulnotion/opfind/types"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RandomSeed = 1
	cfg.SolverTimeout = 10 * time.Second
	return cfg
}

func skipConfig() Config {
	cfg := testConfig()
	cfg.SkipRegions = true
	return cfg
}

// nibbleISA has one wide instruction per value of the top four bits and no
// illegal words.
func nibbleISA() *oracle.Table {
	shapes := []types.Shape{"ArgsRegRegReg", "ArgsRegImm", "ArgsImm", "ArgsNone"}
	var rules []oracle.Rule
	for k := uint32(0); k < 16; k++ {
		rules = append(rules, oracle.Rule{Mask: 0xf0000000, Opcode: k << 28, Mnemonic: fmt.Sprintf("op%d", k), Shape: shapes[k%4]})
	}
	return oracle.NewTable(rules...)
}

// mixedISA has illegal space, a 16-bit instruction and bundles around a
// handful of wide instructions.
func mixedISA() *oracle.Table {
	return oracle.NewTable(
		oracle.Rule{Mask: 0xffffffff, Opcode: 0x00000000, Mnemonic: "nop", Shape: "ArgsNone"},
		oracle.Rule{Mask: 0xf0000000, Opcode: 0x10000000, Mnemonic: "add", Shape: "ArgsRegRegReg"},
		oracle.Rule{Mask: 0xf0000000, Opcode: 0x20000000, Mnemonic: "mov", Shape: "ArgsRegImm"},
		oracle.Rule{Mask: 0xf8000000, Opcode: 0x30000000, Mnemonic: "ld", Shape: "ArgsRegOffReg"},
		oracle.Rule{Mask: 0xf8000000, Opcode: 0x38000000, Mnemonic: "st", Shape: "ArgsRegOffReg"},
		oracle.Rule{Mask: 0xf0000000, Opcode: 0x40000000, Size: 2, Mnemonic: "inc", Shape: "ArgsReg"},
		oracle.Rule{Mask: 0xf0000000, Opcode: 0x50000000, Mnemonic: "add", Shape: "ArgsRegReg", Bundle: true},
	)
}

func run(t *testing.T, o oracle.Oracle, k *kb.KnowledgeBase, cfg Config) (Outcome, *Explorer) {
	t.Helper()
	e := New(o, k, cfg)
	outcome, err := e.Run(context.Background())
	require.NoError(t, err)
	return outcome, e
}

// sparseISA leaves almost the whole space illegal.
func sparseISA() *oracle.Table {
	return oracle.NewTable(
		oracle.Rule{Mask: 0xff000000, Opcode: 0x12000000, Mnemonic: "add", Shape: "ArgsRegRegReg"},
		oracle.Rule{Mask: 0xff000000, Opcode: 0x5a000000, Mnemonic: "mov", Shape: "ArgsRegImm"},
		oracle.Rule{Mask: 0xff000000, Opcode: 0x9c000000, Mnemonic: "jmp", Shape: "ArgsImm"},
		oracle.Rule{Mask: 0xff000000, Opcode: 0xe7000000, Mnemonic: "ret", Shape: "ArgsNone"},
	)
}

func tableKeys(t *oracle.Table) map[types.Key]bool {
	m := make(map[types.Key]bool)
	for _, r := range t.Rules() {
		if !r.Bundle && r.Size == 4 {
			m[types.Key{Mnemonic: r.Mnemonic, Shape: r.Shape}] = true
		}
	}
	return m
}

func factKeys(facts []kb.Fact) map[types.Key]bool {
	m := make(map[types.Key]bool)
	for _, f := range facts {
		m[f.Key()] = true
	}
	return m
}

func keys(facts []kb.Fact) map[types.Key]kb.Fact {
	m := make(map[types.Key]kb.Fact)
	for _, f := range facts {
		m[f.Key()] = f
	}
	return m
}

func TestSingleNop(t *testing.T) {
	isa := oracle.NewTable(oracle.Rule{Mask: 0xffffffff, Opcode: 0, Mnemonic: "nop", Shape: "ArgsNone"})
	k, err := kb.Load(filepath.Join(t.TempDir(), "facts.json"))
	require.NoError(t, err)

	outcome, e := run(t, isa, k, skipConfig())
	assert.Equal(t, CoveredWithSkips, outcome)
	assert.Equal(t, []kb.Fact{{Mnemonic: "nop", Shape: "ArgsNone", Mask: 0xffffffff, Opcode: 0}}, k.Facts())

	// One fact, then a single illegal seed whose skip region closes the space.
	stats := e.Stats()
	assert.Equal(t, 1, stats.NewFacts)
	assert.Equal(t, 2, stats.Iterations)
	assert.Equal(t, 1, stats.SkipRegions)
	require.Len(t, e.Skipped(), 1)
	assert.Equal(t, types.Illegal, e.Skipped()[0].Kind)
	assert.Zero(t, e.Skipped()[0].Mask)
	_, st := e.Solver().Solve(context.Background())
	assert.Equal(t, solver.Unsat, st)

	reloaded, err := kb.Load(k.Path())
	require.NoError(t, err)
	assert.Equal(t, k.Facts(), reloaded.Facts())
}

func TestSingleNopWithoutSkipRegions(t *testing.T) {
	isa := oracle.NewTable(oracle.Rule{Mask: 0xffffffff, Opcode: 0, Mnemonic: "nop", Shape: "ArgsNone"})
	cfg := testConfig()
	cfg.MaxIterations = 40
	k := kb.New("")

	outcome, e := run(t, isa, k, cfg)
	assert.Equal(t, LimitReached, outcome, "illegal space is never closed without skip regions")
	assert.Equal(t, 40, e.Stats().Iterations)
	assert.Equal(t, 39, e.Stats().Illegal)
	assert.Zero(t, e.Stats().SkipRegions)
	assert.Empty(t, e.Skipped())
	for _, c := range e.Solver().Clauses() {
		assert.Equal(t, uint32(0xffffffff), c.Mask, "only the fact and drawn words are excluded: %s", c)
	}
}

func TestSkipRegionsAreOptIn(t *testing.T) {
	assert.False(t, DefaultConfig().SkipRegions)
}

// Covered must mean every instruction of the table was found. Runs that
// closed the space with skip regions say so and list the regions.
func TestCoveredMeansEveryKeyFound(t *testing.T) {
	for _, tc := range []struct {
		name string
		isa  *oracle.Table
		cfg  func() Config
	}{
		{"sparse with skips", sparseISA(), skipConfig},
		{"mixed with skips", mixedISA(), skipConfig},
		{"nibble without skips", nibbleISA(), testConfig},
		{"nibble with skips", nibbleISA(), skipConfig},
	} {
		for seed := uint64(1); seed <= 10; seed++ {
			t.Run(fmt.Sprintf("%s/seed%d", tc.name, seed), func(t *testing.T) {
				cfg := tc.cfg()
				cfg.RandomSeed = seed
				k := kb.New("")
				outcome, e := run(t, tc.isa, k, cfg)
				switch outcome {
				case Covered:
					assert.Equal(t, tableKeys(tc.isa), factKeys(k.Facts()))
					assert.Empty(t, e.Skipped())
				case CoveredWithSkips:
					assert.NotEmpty(t, e.Skipped())
					assert.Equal(t, len(e.Skipped()), e.Stats().SkipRegions)
				default:
					t.Fatalf("unexpected outcome %s", outcome)
				}
			})
		}
	}
}

func TestCoversNibbleISA(t *testing.T) {
	k := kb.New("")
	outcome, e := run(t, nibbleISA(), k, testConfig())
	assert.Equal(t, Covered, outcome)
	assert.NotZero(t, e.Solver().Nodes())
	require.Equal(t, 16, k.Len())
	for _, f := range k.Facts() {
		assert.Equal(t, uint32(0xf0000000), f.Mask, f.String())
	}
	assert.Zero(t, e.Stats().Illegal)
	assert.Zero(t, e.Stats().SolverTimeouts)
}

func TestResumable(t *testing.T) {
	whole := kb.New("")
	outcome, _ := run(t, nibbleISA(), whole, testConfig())
	require.Equal(t, Covered, outcome)

	path := filepath.Join(t.TempDir(), "facts.json")
	first, err := kb.Load(path)
	require.NoError(t, err)
	cfg := testConfig()
	cfg.MaxFacts = 5
	outcome, _ = run(t, nibbleISA(), first, cfg)
	require.Equal(t, LimitReached, outcome)
	require.Equal(t, 5, first.Len())

	second, err := kb.Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, second.Len())
	outcome, _ = run(t, nibbleISA(), second, testConfig())
	require.Equal(t, Covered, outcome)

	assert.Equal(t, keys(whole.Facts()), keys(second.Facts()))
	assert.Len(t, second.Facts(), len(whole.Facts()))
}

func TestResumeOnCoveredSpace(t *testing.T) {
	k := kb.New("")
	_, _ = run(t, nibbleISA(), k, testConfig())
	before := k.Facts()

	counted := oracle.NewCounting(nibbleISA())
	outcome, e := run(t, counted, k, testConfig())
	assert.Equal(t, Covered, outcome)
	assert.Equal(t, before, k.Facts())
	assert.Zero(t, e.Stats().Iterations)
	assert.Zero(t, counted.Calls(), "every queued neighbour is already excluded")
}

func TestMixedISA(t *testing.T) {
	isa := mixedISA()
	k := kb.New("")
	outcome, e := run(t, isa, k, skipConfig())
	require.Equal(t, CoveredWithSkips, outcome)

	got := keys(k.Facts())
	assert.Len(t, got, 5)
	want := map[types.Key]uint32{
		{Mnemonic: "nop", Shape: "ArgsNone"}:      0xffffffff,
		{Mnemonic: "add", Shape: "ArgsRegRegReg"}: 0xf0000000,
		{Mnemonic: "mov", Shape: "ArgsRegImm"}:    0xf0000000,
		{Mnemonic: "ld", Shape: "ArgsRegOffReg"}:  0xf8000000,
		{Mnemonic: "st", Shape: "ArgsRegOffReg"}:  0xf8000000,
	}
	for key, mask := range want {
		require.Contains(t, got, key)
		assert.Equal(t, mask, got[key].Mask, key.String())
	}
	assert.NotZero(t, e.Stats().Narrow)
	assert.NotZero(t, e.Stats().Bundles)
}

func TestFactsAreSound(t *testing.T) {
	isa := mixedISA()
	k := kb.New("")
	_, _ = run(t, isa, k, skipConfig())
	require.NotZero(t, k.Len())

	rng := rand.New(rand.NewSource(99))
	for _, f := range k.Facts() {
		for i := 0; i < 1000; i++ {
			w := f.Opcode | rng.Uint32()&^f.Mask
			res, err := isa.Decode(w)
			require.NoError(t, err)
			require.True(t, res.IsWide(), "%s: 0x%08x decodes to %s", f, w, res)
			require.Equal(t, f.Key(), res.Key(), "%s: 0x%08x", f, w)
		}
	}
}

func TestFactsAreMinimal(t *testing.T) {
	isa := mixedISA()
	k := kb.New("")
	_, _ = run(t, isa, k, skipConfig())

	for _, f := range k.Facts() {
		for b := 0; b < 32; b++ {
			bit := uint32(1) << b
			if f.Mask&bit == 0 {
				continue
			}
			// Dropping the bit admits opcode^bit, which must decode to
			// something else.
			res, err := isa.Decode(f.Opcode ^ bit)
			require.NoError(t, err)
			assert.False(t, res.IsWide() && res.Key() == f.Key(), "%s: bit %d is not needed", f, b)
		}
	}
}

func TestSupplementDisjointCube(t *testing.T) {
	isa := oracle.NewTable(
		oracle.Rule{Mask: 0xf0000000, Opcode: 0x10000000, Mnemonic: "add", Shape: "ArgsRegRegReg"},
		oracle.Rule{Mask: 0xf0000000, Opcode: 0x70000000, Mnemonic: "add", Shape: "ArgsRegRegReg"},
	)
	k := kb.New("")
	outcome, e := run(t, isa, k, skipConfig())
	require.Equal(t, CoveredWithSkips, outcome)

	facts := k.Lookup(types.Key{Mnemonic: "add", Shape: "ArgsRegRegReg"})
	require.Len(t, facts, 2)
	assert.Equal(t, 1, e.Stats().NewFacts)
	assert.Equal(t, 1, e.Stats().Supplemented)
	assert.True(t, k.Covers(0x1abcdef0))
	assert.True(t, k.Covers(0x7abcdef0))
}

func TestUnknownShapeIsFatal(t *testing.T) {
	isa := oracle.NewTable(oracle.Rule{Mask: 0, Opcode: 0, Mnemonic: "weird", Shape: types.ShapeUnknown})
	_, err := New(isa, kb.New(""), testConfig()).Run(context.Background())
	assert.ErrorIs(t, err, finderrors.ErrUnknownShape)
}

func TestOracleErrorIsFatal(t *testing.T) {
	broken := oracle.Func(func(uint32) (types.DecodeResult, error) {
		return types.DecodeResult{}, fmt.Errorf("garbled listing: %w", finderrors.ErrOracleProtocol)
	})
	_, err := New(broken, kb.New(""), testConfig()).Run(context.Background())
	assert.ErrorIs(t, err, finderrors.ErrOracleProtocol)
}

func TestFlushFailureIsFatal(t *testing.T) {
	k := kb.New(filepath.Join(t.TempDir(), "no-such-dir", "facts.json"))
	_, err := New(nibbleISA(), k, testConfig()).Run(context.Background())
	assert.ErrorIs(t, err, finderrors.ErrKnowledgeBaseFlush)
}

func TestCancelledBetweenIterations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	k := kb.New("")
	e := New(nibbleISA(), k, testConfig())
	e.OnFact = func(kb.Fact) { cancel() }

	outcome, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Interrupted, outcome)
	assert.Equal(t, 1, k.Len(), "the in-flight fact is persisted before stopping")
}

func TestRandomFallbackOnSolverTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.SolverTimeout = time.Nanosecond
	cfg.MaxFacts = 3
	k := kb.New("")
	outcome, e := run(t, nibbleISA(), k, cfg)
	assert.Equal(t, LimitReached, outcome)
	assert.NotZero(t, e.Stats().SolverTimeouts)
	assert.NotZero(t, e.Stats().Seeds[FromRandom])
}

func TestSeedQueue(t *testing.T) {
	q := NewSeedQueue()
	assert.True(t, q.Push(1))
	assert.True(t, q.Push(2))
	assert.False(t, q.Push(1))
	assert.Equal(t, 2, q.Len())

	w, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(1), w)
	assert.False(t, q.Push(1), "popped words stay seen")

	for i := uint32(10); i < 3000; i++ {
		q.Push(i)
	}
	prev := uint32(0)
	for q.Len() > 0 {
		w, _ = q.Pop()
		assert.Greater(t, w, prev)
		prev = w
	}
	_, ok = q.Pop()
	assert.False(t, ok)
}
