package oracle

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"

	"github.com/colorfulnotion/opfind/types"
)

// ARM64 decodes words with the in-process AArch64 disassembler. It has no
// narrow encodings and no bundles, which makes it a convenient real oracle
// for exercising the exploration loop without vendor tooling.
type ARM64 struct{}

func NewARM64() *ARM64 {
	return &ARM64{}
}

func (a *ARM64) Decode(word uint32) (types.DecodeResult, error) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], word)
	inst, err := arm64asm.Decode(buf[:])
	if err != nil {
		return types.IllegalResult, nil
	}

	_, operands, _ := strings.Cut(inst.String(), " ")
	return types.DecodeResult{
		Kind:     types.Decoded,
		Size:     4,
		Value:    word,
		Mnemonic: inst.Op.String(),
		Shape:    arm64Shape(inst.Args),
		Operands: strings.TrimSpace(operands),
	}, nil
}

// arm64Shape names the operand list by the decoder's argument kinds, e.g.
// "A64:Reg,RegSP,ImmShift". The set of kinds is fixed by arm64asm.
func arm64Shape(args arm64asm.Args) types.Shape {
	kinds := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == nil {
			break
		}
		kinds = append(kinds, strings.TrimPrefix(fmt.Sprintf("%T", arg), "arm64asm."))
	}
	if len(kinds) == 0 {
		return "A64:None"
	}
	return types.Shape("A64:" + strings.Join(kinds, ","))
}
