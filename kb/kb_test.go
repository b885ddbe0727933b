package kb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/opfind/finderrors"
	"github.com/colorfulnotion/opfind/types"
)

var (
	nop = Fact{Mnemonic: "nop", Shape: "ArgsNone", Mask: 0xffffffff, Opcode: 0}
	add = Fact{Mnemonic: "add", Shape: "ArgsRegRegReg", Mask: 0xff000000, Opcode: 0x01000000}
	mov = Fact{Mnemonic: "mov", Shape: "ArgsRegImm", Mask: 0xff000000, Opcode: 0x02000000}
)

func TestLoadMissingIsEmpty(t *testing.T) {
	k, err := Load(filepath.Join(t.TempDir(), "facts.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, k.Len())
	assert.Empty(t, k.Facts())
}

func TestLoadLegacyJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.json")
	legacy := `[["nop", "ArgsNone", 4294967295, 0], ["add", "ArgsRegRegReg", 4278190080, 16777216]]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	k, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff([]Fact{nop, add}, k.Facts()); diff != "" {
		t.Fatalf("facts mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":     `{{{`,
		"object":       `{"nop": 1}`,
		"three fields": `[["nop", "ArgsNone", 4294967295]]`,
		"negative":     `[["nop", "ArgsNone", -1, 0]]`,
		"too wide":     `[["nop", "ArgsNone", 4294967296, 0]]`,
		"no shape":     `[["nop", "", 4294967295, 0]]`,
		"loose opcode": `[["nop", "ArgsNone", 255, 256]]`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "facts.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.ErrorIs(t, err, finderrors.ErrKnowledgeBaseFormat)
		})
	}
}

func TestAddFlushesAndReloads(t *testing.T) {
	for _, name := range []string{"facts.json", "facts.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			k, err := Load(path)
			require.NoError(t, err)
			require.NoError(t, k.Add(nop))
			require.NoError(t, k.Add(add))

			reloaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, k.Facts(), reloaded.Facts())

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temporary files left behind")
		})
	}
}

func TestYAMLAcceptsPlainNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.yml")
	require.NoError(t, os.WriteFile(path, []byte("- [add, ArgsRegRegReg, 0xff000000, 16777216]\n"), 0o644))
	k, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Fact{add}, k.Facts())
}

func TestAddDuplicate(t *testing.T) {
	k := New("")
	require.NoError(t, k.Add(add))
	dup := add
	dup.Mask, dup.Opcode = 0xf0000000, 0
	err := k.Add(dup)
	assert.ErrorIs(t, err, finderrors.ErrDuplicateFact)
	assert.Equal(t, []Fact{add}, k.Facts())
}

func TestSupplement(t *testing.T) {
	k := New("")
	extra := Fact{Mnemonic: "add", Shape: "ArgsRegRegReg", Mask: 0xff000000, Opcode: 0x81000000}
	assert.ErrorIs(t, k.Supplement(extra), finderrors.ErrUnknownFact)

	require.NoError(t, k.Add(add))
	require.NoError(t, k.Supplement(extra))
	assert.Equal(t, []Fact{add, extra}, k.Lookup(add.Key()))
	assert.True(t, k.Covers(0x81123456))
	assert.True(t, k.Has(add.Key()))
}

func TestCovering(t *testing.T) {
	k := New("")
	require.NoError(t, k.Add(nop))
	require.NoError(t, k.Add(add))

	f, ok := k.Covering(0x01abcdef)
	require.True(t, ok)
	assert.Equal(t, add, f)
	_, ok = k.Covering(0x03000000)
	assert.False(t, ok)
	assert.Equal(t, "add (ArgsRegRegReg): mask = 0xff000000, masked opcode = 0x01000000", add.String())
}

func TestFlushFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "facts.json")
	k := New(path)
	err := k.Add(nop)
	assert.ErrorIs(t, err, finderrors.ErrKnowledgeBaseFlush)
}

func TestRangeCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranges.json")
	c, err := LoadRangeCatalog(path)
	require.NoError(t, err)

	key := types.Key{Mnemonic: "inc", Shape: "ArgsReg"}
	halves := []RangeRule{
		{Mnemonic: "inc", Shape: "ArgsReg", Low: 0x30000000, High: 0x3fff0000},
		{Mnemonic: "inc", Shape: "ArgsReg", Low: 0x10000000, High: 0x1fff0000},
	}
	require.NoError(t, c.Accept(key, halves))
	assert.Equal(t, []RangeRule{halves[1], halves[0]}, c.Lookup(key))

	whole := []RangeRule{{Mnemonic: "inc", Shape: "ArgsReg", Low: 0x10000000, High: 0x3fff0000}}
	require.NoError(t, c.Accept(key, whole))

	reloaded, err := LoadRangeCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, whole, reloaded.Rules())
	assert.True(t, whole[0].Contains(0x20000000))
	assert.False(t, whole[0].Contains(0x20000001))

	overlapping := []RangeRule{halves[0], {Mnemonic: "inc", Shape: "ArgsReg", Low: 0x38000000, High: 0x40000000}}
	assert.Error(t, c.Accept(key, overlapping))
}

func TestRangeCatalogRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranges.json")
	require.NoError(t, os.WriteFile(path, []byte(`[["inc", "ArgsReg", 131072, 65536]]`), 0o644))
	_, err := LoadRangeCatalog(path)
	assert.ErrorIs(t, err, finderrors.ErrKnowledgeBaseFormat)
}
