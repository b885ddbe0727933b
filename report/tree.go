package report

import (
	"fmt"

	"github.com/xlab/treeprint"

	"github.com/colorfulnotion/opfind/kb"
	"github.com/colorfulnotion/opfind/types"
)

// Tree renders mnemonic -> shape -> rules, with facts and range rules
// side by side.
func Tree(title string, facts []kb.Fact, ranges []kb.RangeRule) treeprint.Tree {
	type entry struct {
		facts  []kb.Fact
		ranges []kb.RangeRule
	}
	byKey := make(map[types.Key]*entry)
	get := func(k types.Key) *entry {
		e, ok := byKey[k]
		if !ok {
			e = &entry{}
			byKey[k] = e
		}
		return e
	}
	for _, f := range facts {
		get(f.Key()).facts = append(get(f.Key()).facts, f)
	}
	for _, r := range ranges {
		get(r.Key()).ranges = append(get(r.Key()).ranges, r)
	}

	keys := make([]types.Key, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sortKeys(keys)

	tree := treeprint.NewWithRoot(title)
	var (
		mnemonic string
		branch   treeprint.Tree
	)
	for _, k := range keys {
		if branch == nil || k.Mnemonic != mnemonic {
			mnemonic = k.Mnemonic
			branch = tree.AddBranch(mnemonic)
		}
		e := byKey[k]
		leaf := branch.AddBranch(string(k.Shape))
		for _, f := range e.facts {
			leaf.AddNode(fmt.Sprintf("mask 0x%08x opcode 0x%08x (%d fixed bits)", f.Mask, f.Opcode, popcount(f.Mask)))
		}
		for _, r := range e.ranges {
			leaf.AddNode(fmt.Sprintf("0x%08x..0x%08x (%d words)", r.Low, r.High, (r.High-r.Low)>>16+1))
		}
	}
	return tree
}
