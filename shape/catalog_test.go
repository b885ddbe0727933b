package shape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/opfind/types"
)

func TestMD32Match(t *testing.T) {
	tests := []struct {
		operands string
		want     types.Shape
		fields   map[string]string
	}{
		{"r1, #0x10, #0x2, #0x3", RegImmImmImm, map[string]string{"reg0": "1", "imm0": "10", "imm1": "2", "imm2": "3"}},
		{"r1, r2, #0x4, #0x5", RegRegImmImm, nil},
		{"r1, r2, r3, #0x1f", RegRegRegImm, nil},
		{"r4, (r5+=#0x4)", RegOffRegMod, map[string]string{"reg0": "4", "reg1": "5", "imm0": "4"}},
		{"#0x3, r2, #0x1", ImmRegImm, nil},
		{"r1, r2, #0xff", RegRegImm, nil},
		{"r1, r2, r3", RegRegReg, nil},
		{"psw, r2, r3", SfrRegReg, nil},
		{"r0, #0x1, #0x2", RegImmImm, nil},
		{"r0, #0x8(r1)", RegOffReg, nil},
		{"r0, (r1)", RegAdrReg, nil},
		{"(r3+=#0x2)", OffRegMod, nil},
		{"#0x10(r3)", OffReg, nil},
		{"#0x1, #0x2", ImmImm, nil},
		{"r7, #0xabc", RegImm, nil},
		{"r1, r2", RegReg, map[string]string{"reg0": "1", "reg1": "2"}},
		{"r1, sr", RegSfr, map[string]string{"reg0": "1", "sfr": "sr"}},
		{"sr, r1", SfrReg, nil},
		{"#0x0", Imm, nil},
		{"r12", Reg, nil},
		{"", None, nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			got, fields, ok := MD32.Match(tt.operands)
			require.True(t, ok, tt.operands)
			assert.Equal(t, tt.want, got)
			if tt.fields != nil {
				assert.Equal(t, tt.fields, fields)
			}
		})
	}
}

func TestMD32Priority(t *testing.T) {
	// Inputs accepted by more than one pattern resolve to the earlier entry.
	ambiguous := []struct {
		operands string
		want     types.Shape
		shadowed types.Shape
	}{
		{"r1, r2", RegReg, SfrReg},
		{"r1, r2", RegReg, RegSfr},
		{"r1, r2, r3", RegRegReg, SfrRegReg},
	}
	for _, tt := range ambiguous {
		got, _, ok := MD32.Match(tt.operands)
		require.True(t, ok)
		assert.Equal(t, tt.want, got)
		assert.Less(t, MD32.Priority(tt.want), MD32.Priority(tt.shadowed))
	}
	assert.Len(t, MD32.Shapes(), 21)
	assert.Equal(t, RegImmImmImm, MD32.Shapes()[0])
	assert.Equal(t, None, MD32.Shapes()[20])
}

func TestUnknownOperands(t *testing.T) {
	for _, operands := range []string{"r1,r2", "[r1]", "r1, #10", "  "} {
		s, fields, ok := MD32.Match(operands)
		assert.False(t, ok, operands)
		assert.Equal(t, types.ShapeUnknown, s)
		assert.Nil(t, fields)
	}
	assert.Equal(t, -1, MD32.Priority("ArgsBogus"))
	assert.False(t, MD32.Has("ArgsBogus"))
}

func TestRegisterTwicePanics(t *testing.T) {
	assert.Panics(t, func() {
		NewCatalog("dup").Register(Reg, `r[0-9]+`).Register(Reg, `x[0-9]+`)
	})
}
