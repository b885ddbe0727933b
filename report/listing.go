// Package report renders knowledge bases and range catalogs for people:
// sorted listings, a mnemonic tree, an HTML chart and catalog diffs.
package report

import (
	"cmp"
	"fmt"
	"io"

	"golang.org/x/exp/slices"

	"github.com/colorfulnotion/opfind/kb"
	"github.com/colorfulnotion/opfind/types"
)

// Order is one of the listing sort orders.
type Order uint8

const (
	ByMnemonic   Order = iota // mnemonic, then opcode
	ByOpcode                  // opcode, then mnemonic
	ByMaskPrefix              // leading mask bits, then opcode
)

var orderTitles = [...]string{
	ByMnemonic:   "Instructions, sorted by mnemonic, then opcode:",
	ByOpcode:     "Instructions, sorted by opcode, then mnemonic:",
	ByMaskPrefix: "Instructions, sorted by mask prefix bits, then opcode:",
}

func compareFacts(o Order) func(a, b kb.Fact) int {
	switch o {
	case ByOpcode:
		return func(a, b kb.Fact) int {
			if c := cmp.Compare(a.Opcode, b.Opcode); c != 0 {
				return c
			}
			return cmp.Compare(a.Mnemonic, b.Mnemonic)
		}
	case ByMaskPrefix:
		return func(a, b kb.Fact) int {
			if c := cmp.Compare(types.MaskPrefixBits(a.Mask), types.MaskPrefixBits(b.Mask)); c != 0 {
				return c
			}
			return cmp.Compare(a.Opcode, b.Opcode)
		}
	default:
		return func(a, b kb.Fact) int {
			if c := cmp.Compare(a.Mnemonic, b.Mnemonic); c != 0 {
				return c
			}
			return cmp.Compare(a.Opcode, b.Opcode)
		}
	}
}

// Sorted returns a sorted copy of facts. The sort is stable so equal
// entries keep their catalog order.
func Sorted(facts []kb.Fact, o Order) []kb.Fact {
	out := append([]kb.Fact(nil), facts...)
	slices.SortStableFunc(out, compareFacts(o))
	return out
}

// Listing writes one titled listing.
func Listing(w io.Writer, facts []kb.Fact, o Order) error {
	if _, err := fmt.Fprintln(w, orderTitles[o]); err != nil {
		return err
	}
	for _, f := range Sorted(facts, o) {
		if _, err := fmt.Fprintf(w, "  %s\n", f); err != nil {
			return err
		}
	}
	return nil
}

// Listings writes the three listings in order.
func Listings(w io.Writer, facts []kb.Fact) error {
	for _, o := range []Order{ByMnemonic, ByOpcode, ByMaskPrefix} {
		if err := Listing(w, facts, o); err != nil {
			return err
		}
	}
	return nil
}

// Ranges lists range rules by low bound.
func Ranges(w io.Writer, rules []kb.RangeRule) error {
	sorted := append([]kb.RangeRule(nil), rules...)
	slices.SortStableFunc(sorted, func(a, b kb.RangeRule) int { return cmp.Compare(a.Low, b.Low) })
	if _, err := fmt.Fprintln(w, "16-bit range rules, sorted by low bound:"); err != nil {
		return err
	}
	for _, r := range sorted {
		if _, err := fmt.Fprintf(w, "  %s\n", r); err != nil {
			return err
		}
	}
	return nil
}
