package oracle

import (
	"fmt"
	"os"
	"sync"

	"github.com/dop251/goja"

	"github.com/colorfulnotion/opfind/finderrors"
	"github.com/colorfulnotion/opfind/shape"
	"github.com/colorfulnotion/opfind/types"
)

// Script runs a JavaScript decoder. The script must define
//
//	function decode(word) { return null | {mnemonic, operands, size, shape, bundle} }
//
// where null means illegal, size defaults to 4 and shape, when omitted, is
// derived from operands with the catalog.
type Script struct {
	mu      sync.Mutex // goja runtimes are single-threaded
	vm      *goja.Runtime
	fn      goja.Callable
	catalog *shape.Catalog
}

// LoadScript compiles the script at path.
func LoadScript(path string, catalog *shape.Catalog) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script %s: %v: %w", path, err, finderrors.ErrOracleUnavailable)
	}
	return NewScript(path, string(src), catalog)
}

// NewScript compiles src; name is used in error messages.
func NewScript(name, src string, catalog *shape.Catalog) (*Script, error) {
	vm := goja.New()
	if _, err := vm.RunScript(name, src); err != nil {
		return nil, fmt.Errorf("script %s: %v: %w", name, err, finderrors.ErrOracleUnavailable)
	}
	fn, ok := goja.AssertFunction(vm.Get("decode"))
	if !ok {
		return nil, fmt.Errorf("script %s does not define decode(word): %w", name, finderrors.ErrOracleUnavailable)
	}
	if catalog == nil {
		catalog = shape.MD32
	}
	return &Script{vm: vm, fn: fn, catalog: catalog}, nil
}

func (s *Script) Decode(word uint32) (types.DecodeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.fn(goja.Undefined(), s.vm.ToValue(word))
	if err != nil {
		return types.DecodeResult{}, fmt.Errorf("decode %s: %v: %w", types.FormatWord(word), err, finderrors.ErrOracleProtocol)
	}
	if v == nil || goja.IsNull(v) || goja.IsUndefined(v) {
		return types.IllegalResult, nil
	}
	obj, ok := v.Export().(map[string]interface{})
	if !ok {
		return types.DecodeResult{}, fmt.Errorf("decode %s returned %v, want object or null: %w", types.FormatWord(word), v, finderrors.ErrOracleProtocol)
	}
	mnemonic, _ := obj["mnemonic"].(string)
	if mnemonic == "" {
		return types.DecodeResult{}, fmt.Errorf("decode %s: result has no mnemonic: %w", types.FormatWord(word), finderrors.ErrOracleProtocol)
	}
	operands, _ := obj["operands"].(string)
	size := 4
	switch n := obj["size"].(type) {
	case int64:
		size = int(n)
	case float64:
		size = int(n)
	}
	if size != 2 && size != 4 {
		return types.DecodeResult{}, fmt.Errorf("decode %s: size %d: %w", types.FormatWord(word), size, finderrors.ErrOracleProtocol)
	}

	res := types.DecodeResult{Kind: types.Decoded, Size: size, Value: word, Mnemonic: mnemonic, Operands: operands}
	if tag, ok := obj["shape"].(string); ok && tag != "" {
		res.Shape = types.Shape(tag)
	} else {
		res.Shape, res.Fields, _ = s.catalog.Match(operands)
	}
	if bundle, _ := obj["bundle"].(bool); bundle {
		return types.DecodeResult{Kind: types.Bundle, Size: 4, Value: word, Parts: []types.DecodeResult{res, res}}, nil
	}
	return res, nil
}
