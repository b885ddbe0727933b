package validate

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/colorfulnotion/opfind/finderrors"
	"github.com/colorfulnotion/opfind/log"
	"github.com/colorfulnotion/opfind/oracle"
	"github.com/colorfulnotion/opfind/solver"
	"github.com/colorfulnotion/opfind/types"
)

const (
	DefaultBatchSize = 16
	SpaceEnd         = uint64(1) << 32
)

// Config bounds the enumeration. Start and End are rounded to the
// subspace step; End is exclusive.
type Config struct {
	Start     uint64
	End       uint64
	Workers   int
	BatchSize int
}

func DefaultConfig() Config {
	return Config{End: SpaceEnd, Workers: runtime.NumCPU(), BatchSize: DefaultBatchSize}
}

func (c Config) normalized() Config {
	if c.End == 0 || c.End > SpaceEnd {
		c.End = SpaceEnd
	}
	c.Start = (c.Start + solver.SubspaceStep - 1) &^ (solver.SubspaceStep - 1)
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return c
}

// Observed maps each 16-bit singleton key to its words, ascending.
type Observed map[types.Key][]uint32

// Enumerate decodes every low-16-zero word in [Start, End) on a worker
// pool and groups the 16-bit singletons by key. Each batch builds a local
// group that is merged under a lock, so the result does not depend on
// scheduling. It also returns how many words were decoded.
func Enumerate(ctx context.Context, o oracle.Oracle, cfg Config) (Observed, int, error) {
	cfg = cfg.normalized()
	var (
		mu      sync.Mutex
		merged  = make(Observed)
		decoded int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	batch := uint64(cfg.BatchSize) * solver.SubspaceStep
	for start := cfg.Start; start < cfg.End; start += batch {
		if gctx.Err() != nil {
			break
		}
		lo, hi := start, start+batch
		if hi > cfg.End {
			hi = cfg.End
		}
		g.Go(func() error {
			local := make(map[types.Key][]uint32)
			n := 0
			for w := lo; w < hi; w += solver.SubspaceStep {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				word := uint32(w)
				res, err := o.Decode(word)
				if err != nil {
					return err
				}
				n++
				if !res.IsNarrow() {
					continue
				}
				if res.Shape == types.ShapeUnknown {
					return fmt.Errorf("word %s: %s %q: %w", types.FormatWord(word), res.Mnemonic, res.Operands, finderrors.ErrUnknownShape)
				}
				local[res.Key()] = append(local[res.Key()], word)
			}
			mu.Lock()
			for k, words := range local {
				merged[k] = append(merged[k], words...)
			}
			decoded += n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, decoded, err
	}
	if err := ctx.Err(); err != nil {
		return nil, decoded, err
	}
	for k := range merged {
		sortWords(merged[k])
	}
	log.Info(log.Validate, "enumerated subspace", "start", types.FormatWord(uint32(cfg.Start)), "end", fmt.Sprintf("0x%09x", cfg.End),
		"decoded", decoded, "keys", len(merged), "workers", cfg.Workers)
	return merged, decoded, nil
}
