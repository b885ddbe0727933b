package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/opfind/kb"
)

var facts = []kb.Fact{
	{Mnemonic: "sub", Shape: "ArgsRegRegReg", Mask: 0xff000000, Opcode: 0x03000000},
	{Mnemonic: "add", Shape: "ArgsRegRegReg", Mask: 0xff000000, Opcode: 0x07000000},
	{Mnemonic: "nop", Shape: "ArgsNone", Mask: 0xffffffff, Opcode: 0},
	{Mnemonic: "add", Shape: "ArgsRegRegReg", Mask: 0xf0000000, Opcode: 0x10000000},
}

func mnemonics(fs []kb.Fact) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Mnemonic
	}
	return out
}

func TestSorted(t *testing.T) {
	tests := []struct {
		order Order
		want  []string
		first uint32
	}{
		{ByMnemonic, []string{"add", "add", "nop", "sub"}, 0x07000000},
		{ByOpcode, []string{"nop", "sub", "add", "add"}, 0},
		{ByMaskPrefix, []string{"add", "sub", "add", "nop"}, 0x10000000},
	}
	for _, tt := range tests {
		got := Sorted(facts, tt.order)
		assert.Equal(t, tt.want, mnemonics(got), "order %d", tt.order)
		assert.Equal(t, tt.first, got[0].Opcode, "order %d", tt.order)
	}
	assert.Equal(t, "sub", facts[0].Mnemonic, "input must not be reordered")
}

func TestListings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Listings(&buf, facts))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3*(len(facts)+1))
	assert.Equal(t, "Instructions, sorted by mnemonic, then opcode:", lines[0])
	assert.Equal(t, "  add (ArgsRegRegReg): mask = 0xff000000, masked opcode = 0x07000000", lines[1])
	assert.Equal(t, "Instructions, sorted by opcode, then mnemonic:", lines[5])
	assert.Equal(t, "  nop (ArgsNone): mask = 0xffffffff, masked opcode = 0x00000000", lines[6])
	assert.Equal(t, "Instructions, sorted by mask prefix bits, then opcode:", lines[10])
}

func TestRanges(t *testing.T) {
	rules := []kb.RangeRule{
		{Mnemonic: "inc", Shape: "ArgsReg", Low: 0x30000000, High: 0x3fff0000},
		{Mnemonic: "inc", Shape: "ArgsReg", Low: 0x10000000, High: 0x1fff0000},
	}
	var buf bytes.Buffer
	require.NoError(t, Ranges(&buf, rules))
	out := buf.String()
	assert.Less(t, strings.Index(out, "0x10000000"), strings.Index(out, "0x30000000"))
	assert.Contains(t, out, "inc (ArgsReg): 0x10000000 <= w <= 0x1fff0000, w & 0x0000ffff == 0")
}

func TestTree(t *testing.T) {
	ranges := []kb.RangeRule{{Mnemonic: "inc", Shape: "ArgsReg", Low: 0x10000000, High: 0x1fff0000}}
	out := Tree("facts.json", facts, ranges).String()
	assert.True(t, strings.HasPrefix(out, "facts.json"))
	for _, want := range []string{"add", "ArgsRegRegReg", "mask 0xf0000000 opcode 0x10000000 (4 fixed bits)", "0x10000000..0x1fff0000 (4096 words)"} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, 1, strings.Count(out, "add\n"), "one branch per mnemonic")
	assert.Less(t, strings.Index(out, "add"), strings.Index(out, "inc"))
	assert.Less(t, strings.Index(out, "inc"), strings.Index(out, "nop"))
}

func TestMaskHistogram(t *testing.T) {
	h := MaskHistogram(facts)
	assert.Equal(t, 2, h[8])
	assert.Equal(t, 1, h[4])
	assert.Equal(t, 1, h[32])
	assert.Equal(t, 0, h[0])
}

func TestChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Chart(&buf, "opfind", facts))
	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "opfind")

	buf.Reset()
	require.NoError(t, Chart(&buf, "empty", nil))
}

func TestDiff(t *testing.T) {
	out, changed, err := Diff(facts, facts, false)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, out)

	reordered := []kb.Fact{facts[3], facts[2], facts[1], facts[0]}
	_, changed, err = Diff(facts, reordered, false)
	require.NoError(t, err)
	assert.False(t, changed, "catalog order is not a difference")

	right := append([]kb.Fact{}, facts[:3]...)
	right = append(right, kb.Fact{Mnemonic: "mul", Shape: "ArgsRegRegReg", Mask: 0xff000000, Opcode: 0x09000000})
	out, changed, err = Diff(facts, right, false)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, out, "mul (ArgsRegRegReg)")
	assert.Contains(t, out, "0x10000000")
}
