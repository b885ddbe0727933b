// Package sensitivity finds which bits of an instruction word decide its
// decoding. Flipping each bit of a seed and decoding the neighbour splits
// the 32 positions into don't-care bits (same decoding) and the rest,
// which form the mask of the seed's encoding cube.
package sensitivity

import (
	"fmt"

	"github.com/colorfulnotion/opfind/log"
	"github.com/colorfulnotion/opfind/oracle"
	"github.com/colorfulnotion/opfind/types"
)

// Bits is the number of positions analysed, from bit 0 (LSB) up to 31.
const Bits = 32

// Known is the part of the knowledge base the analyzer consults when
// deciding whether a neighbour is worth queueing.
type Known interface {
	Has(key types.Key) bool
	Covers(word uint32) bool
}

// Result of one analysis.
type Result struct {
	Seed     uint32
	Mask     uint32 // essential and illegal-flip bits
	Opcode   uint32 // Mask & Seed
	DontCare uint32
	Illegal  uint32   // flips that decoded illegal; never dropped from Mask
	Seeds    []uint32 // neighbours to explore, in bit order
}

func (r Result) String() string {
	return fmt.Sprintf("seed 0x%08x: mask = 0x%08x, opcode = 0x%08x, illegal = 0x%08x, %d new seeds",
		r.Seed, r.Mask, r.Opcode, r.Illegal, len(r.Seeds))
}

// Analyzer flips bits of seeds against an oracle.
type Analyzer struct {
	oracle oracle.Oracle
	known  Known
}

// New returns an analyzer. known may be nil, in which case every
// differing neighbour is queued.
func New(o oracle.Oracle, known Known) *Analyzer {
	return &Analyzer{oracle: o, known: known}
}

// Analyze computes the encoding cube of a 32-bit singleton seed whose
// decoding is ref. A flip is don't-care when the neighbour decodes to the
// same (mnemonic, shape). An illegal neighbour proves nothing, so the bit
// stays in the mask and the neighbour is not queued. Any other neighbour
// makes the bit essential and is queued unless its key is known and the
// word is already covered.
func (a *Analyzer) Analyze(seed uint32, ref types.DecodeResult) (Result, error) {
	key := ref.Key()
	return a.run(seed, func(n types.DecodeResult, _ uint32) flip {
		switch {
		case n.Kind == types.Illegal:
			return flipIllegal
		case n.Kind == types.Decoded && n.Key() == key && n.Shape != types.ShapeUnknown:
			return flipSame
		default:
			return flipDifferent
		}
	})
}

// SkipRegion computes a cube around a seed the exploration loop does not
// model (illegal, 16-bit or bundle) so the whole region can be excluded
// at once. A flip is don't-care when the neighbour has the same coarse
// class or is already covered by a known fact; everything else is
// essential and queued the same way as in Analyze.
func (a *Analyzer) SkipRegion(seed uint32, ref types.DecodeResult) (Result, error) {
	class := ref.Class()
	return a.run(seed, func(n types.DecodeResult, w uint32) flip {
		if n.Class() == class || (a.known != nil && a.known.Covers(w)) {
			return flipSame
		}
		return flipDifferent
	})
}

type flip uint8

const (
	flipSame flip = iota
	flipIllegal
	flipDifferent
)

func (a *Analyzer) run(seed uint32, classify func(types.DecodeResult, uint32) flip) (Result, error) {
	res := Result{Seed: seed}
	for b := 0; b < Bits; b++ {
		bit := uint32(1) << b
		w := seed ^ bit
		n, err := a.oracle.Decode(w)
		if err != nil {
			return Result{}, fmt.Errorf("analyze 0x%08x bit %d: %w", seed, b, err)
		}
		switch classify(n, w) {
		case flipSame:
			res.DontCare |= bit
		case flipIllegal:
			res.Illegal |= bit
		case flipDifferent:
			if a.worthQueueing(n, w) {
				res.Seeds = append(res.Seeds, w)
			}
		}
		log.Trace(log.Sensitivity, "flip", "seed", types.FormatWord(seed), "bit", b, "neighbour", n)
	}
	res.Mask = ^res.DontCare
	res.Opcode = res.Mask & seed
	log.Debug(log.Sensitivity, "analyzed", "result", res)
	return res, nil
}

func (a *Analyzer) worthQueueing(n types.DecodeResult, w uint32) bool {
	if n.Kind == types.Illegal {
		return false
	}
	if a.known == nil || n.Kind != types.Decoded {
		return true
	}
	return !(a.known.Has(n.Key()) && a.known.Covers(w))
}
