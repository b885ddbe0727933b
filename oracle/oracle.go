// Package oracle wraps opaque instruction decoders behind a single
// synchronous call. Every backend must be deterministic for the duration of
// a run: the same word always yields the same answer.
package oracle

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/colorfulnotion/opfind/finderrors"
	"github.com/colorfulnotion/opfind/shape"
	"github.com/colorfulnotion/opfind/types"
)

// Oracle decodes one 32-bit word. An error means the decoder broke its
// output contract and the run cannot continue.
type Oracle interface {
	Decode(word uint32) (types.DecodeResult, error)
}

// Func adapts a plain function to the Oracle interface.
type Func func(word uint32) (types.DecodeResult, error)

func (f Func) Decode(word uint32) (types.DecodeResult, error) {
	return f(word)
}

// Counting counts decoder calls for progress reporting.
type Counting struct {
	inner Oracle
	calls atomic.Uint64
}

func NewCounting(inner Oracle) *Counting {
	return &Counting{inner: inner}
}

func (c *Counting) Decode(word uint32) (types.DecodeResult, error) {
	c.calls.Add(1)
	return c.inner.Decode(word)
}

// Calls returns the number of Decode calls so far.
func (c *Counting) Calls() uint64 {
	return c.calls.Load()
}

// Open builds a backend from a spec string:
//
//	objdump[:path]   MD32 objdump subprocess
//	arm64            in-process AArch64 decoder
//	table:<file>     YAML rule table
//	script:<file>    JavaScript decode(word) function
func Open(spec string, catalog *shape.Catalog) (Oracle, error) {
	if catalog == nil {
		catalog = shape.MD32
	}
	kind, arg, _ := strings.Cut(spec, ":")
	switch kind {
	case "objdump":
		o := NewObjdump(catalog)
		if arg != "" {
			o.Path = arg
		}
		return o, nil
	case "arm64":
		return NewARM64(), nil
	case "table":
		if arg == "" {
			return nil, fmt.Errorf("oracle %q: missing table file: %w", spec, finderrors.ErrOracleUnavailable)
		}
		return LoadTable(arg)
	case "script":
		if arg == "" {
			return nil, fmt.Errorf("oracle %q: missing script file: %w", spec, finderrors.ErrOracleUnavailable)
		}
		return LoadScript(arg, catalog)
	default:
		return nil, fmt.Errorf("unknown oracle %q: %w", spec, finderrors.ErrOracleUnavailable)
	}
}
