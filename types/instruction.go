package types

import (
	"fmt"
	"math/bits"
)

// Shape is the tag of an operand-list shape, e.g. "ArgsRegRegImm".
type Shape string

// ShapeUnknown is reported when operand text matches no catalog entry.
const ShapeUnknown Shape = ""

func (s Shape) String() string {
	if s == ShapeUnknown {
		return "<unknown>"
	}
	return string(s)
}

// DecodeKind classifies a decoder answer.
type DecodeKind uint8

const (
	Illegal DecodeKind = iota
	Bundle
	Decoded
)

func (k DecodeKind) String() string {
	switch k {
	case Illegal:
		return "illegal"
	case Bundle:
		return "bundle"
	case Decoded:
		return "decoded"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// DecodeResult is the oracle's answer for one 32-bit word.
type DecodeResult struct {
	Kind     DecodeKind
	Size     int // 2 or 4 bytes
	Value    uint32
	Mnemonic string
	Shape    Shape
	Operands string            // raw operand text as printed by the decoder
	Fields   map[string]string `json:",omitempty"`
	Parts    []DecodeResult    `json:",omitempty"` // bundle members
}

// IllegalResult is the shared value for undecodable words.
var IllegalResult = DecodeResult{Kind: Illegal}

// Key identifies a fact: the mnemonic and shape of a singleton instruction.
type Key struct {
	Mnemonic string
	Shape    Shape
}

func (k Key) String() string {
	return fmt.Sprintf("%s (%s)", k.Mnemonic, k.Shape)
}

// Key returns the (mnemonic, shape) pair of a decoded singleton.
func (r DecodeResult) Key() Key {
	return Key{Mnemonic: r.Mnemonic, Shape: r.Shape}
}

// Class is the coarse equivalence used when comparing neighbours of a seed
// that is not itself modelled (illegal words, narrow instructions, bundles).
type Class struct {
	Kind DecodeKind
	Size int
	Key  Key
}

func (r DecodeResult) Class() Class {
	switch r.Kind {
	case Decoded:
		return Class{Kind: Decoded, Size: r.Size, Key: r.Key()}
	default:
		return Class{Kind: r.Kind}
	}
}

// IsWide reports whether r is a full 32-bit singleton instruction.
func (r DecodeResult) IsWide() bool {
	return r.Kind == Decoded && r.Size == 4
}

// IsNarrow reports whether r is a 16-bit singleton instruction.
func (r DecodeResult) IsNarrow() bool {
	return r.Kind == Decoded && r.Size == 2
}

func (r DecodeResult) String() string {
	switch r.Kind {
	case Illegal:
		return "illegal"
	case Bundle:
		s := ""
		for i, p := range r.Parts {
			if i > 0 {
				s += " | "
			}
			s += p.String()
		}
		return s
	default:
		if r.Operands == "" {
			return fmt.Sprintf("%s [%s, %d bytes]", r.Mnemonic, r.Shape, r.Size)
		}
		return fmt.Sprintf("%s %s [%s, %d bytes]", r.Mnemonic, r.Operands, r.Shape, r.Size)
	}
}

// Matches reports whether word & mask == opcode.
func Matches(word, mask, opcode uint32) bool {
	return word&mask == opcode
}

// MaskPrefixBits counts the leading one bits of mask.
func MaskPrefixBits(mask uint32) int {
	return bits.LeadingZeros32(^mask)
}

// FormatWord renders a word the way the listings print it.
func FormatWord(w uint32) string {
	return fmt.Sprintf("0x%08x", w)
}
