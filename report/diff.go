package report

import (
	"encoding/json"
	"fmt"

	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"

	"github.com/colorfulnotion/opfind/kb"
	"github.com/colorfulnotion/opfind/types"
)

type cube struct {
	Mask   string `json:"mask"`
	Opcode string `json:"opcode"`
}

// catalogJSON keys facts by "mnemonic (shape)" so the diff lines up
// entries independently of catalog order.
func catalogJSON(facts []kb.Fact) ([]byte, error) {
	m := make(map[string][]cube)
	for _, f := range Sorted(facts, ByMnemonic) {
		k := f.Key().String()
		m[k] = append(m[k], cube{Mask: types.FormatWord(f.Mask), Opcode: types.FormatWord(f.Opcode)})
	}
	return json.Marshal(m)
}

// Diff compares two fact lists. It returns the ASCII diff and whether the
// catalogs differ at all.
func Diff(left, right []kb.Fact, color bool) (string, bool, error) {
	l, err := catalogJSON(left)
	if err != nil {
		return "", false, err
	}
	r, err := catalogJSON(right)
	if err != nil {
		return "", false, err
	}
	delta, err := gojsondiff.New().Compare(l, r)
	if err != nil {
		return "", false, fmt.Errorf("diffing catalogs: %w", err)
	}
	if !delta.Modified() {
		return "", false, nil
	}

	var leftObj map[string]interface{}
	if err := json.Unmarshal(l, &leftObj); err != nil {
		return "", true, err
	}
	f := formatter.NewAsciiFormatter(leftObj, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       color,
	})
	out, err := f.Format(delta)
	if err != nil {
		return "", true, fmt.Errorf("formatting diff: %w", err)
	}
	return out, true, nil
}
