package oracle

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/colorfulnotion/opfind/finderrors"
	"github.com/colorfulnotion/opfind/types"
)

// Rule is one row of a ground-truth encoding table.
type Rule struct {
	Mask     uint32      `yaml:"mask"`
	Opcode   uint32      `yaml:"opcode"`
	Size     int         `yaml:"size,omitempty"`
	Mnemonic string      `yaml:"mnemonic"`
	Shape    types.Shape `yaml:"shape"`
	Operands string      `yaml:"operands,omitempty"`
	Bundle   bool        `yaml:"bundle,omitempty"`
}

// TableSpec is the YAML root of a table file.
type TableSpec struct {
	Rules []Rule `yaml:"rules"`
}

// Table decodes by the first rule whose mask/opcode matches; anything
// else is illegal.
type Table struct {
	rules []Rule
}

func NewTable(rules ...Rule) *Table {
	t := &Table{rules: make([]Rule, len(rules))}
	for i, r := range rules {
		if r.Size == 0 {
			r.Size = 4
		}
		t.rules[i] = r
	}
	return t
}

// LoadTable reads a YAML rule table.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("table %s: %v: %w", path, err, finderrors.ErrOracleUnavailable)
	}
	var spec TableSpec
	if err := yaml.UnmarshalStrict(data, &spec); err != nil {
		return nil, fmt.Errorf("table %s: %v: %w", path, err, finderrors.ErrOracleUnavailable)
	}
	for i, r := range spec.Rules {
		if r.Opcode&^r.Mask != 0 {
			return nil, fmt.Errorf("table %s rule %d (%s): opcode 0x%08x has bits outside mask 0x%08x: %w",
				path, i, r.Mnemonic, r.Opcode, r.Mask, finderrors.ErrOracleUnavailable)
		}
	}
	return NewTable(spec.Rules...), nil
}

// Rules returns the table rows in match order.
func (t *Table) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

func (t *Table) Decode(word uint32) (types.DecodeResult, error) {
	for _, r := range t.rules {
		if word&r.Mask != r.Opcode {
			continue
		}
		res := types.DecodeResult{
			Kind:     types.Decoded,
			Size:     r.Size,
			Value:    word,
			Mnemonic: r.Mnemonic,
			Shape:    r.Shape,
			Operands: r.Operands,
		}
		if r.Bundle {
			half := res
			half.Size = 2
			return types.DecodeResult{Kind: types.Bundle, Size: 4, Value: word, Parts: []types.DecodeResult{half, half}}, nil
		}
		return res, nil
	}
	return types.IllegalResult, nil
}
