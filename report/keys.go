package report

import (
	"cmp"

	"golang.org/x/exp/slices"

	"github.com/colorfulnotion/opfind/types"
)

func sortKeys(keys []types.Key) {
	slices.SortFunc(keys, func(a, b types.Key) int {
		if c := cmp.Compare(a.Mnemonic, b.Mnemonic); c != 0 {
			return c
		}
		return cmp.Compare(a.Shape, b.Shape)
	})
}
