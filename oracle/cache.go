package oracle

import (
	"fmt"
	"sync"

	"github.com/colorfulnotion/opfind/finderrors"
	"github.com/colorfulnotion/opfind/log"
	"github.com/colorfulnotion/opfind/storage"
	"github.com/colorfulnotion/opfind/types"
)

// cacheFlushEvery is how many fresh answers are buffered before they are
// written to the store in one batch.
const cacheFlushEvery = 256

// Cache memoizes decoder answers. With a store attached, answers survive
// across runs, which matters for subprocess backends that cost a fork per
// word. Errors are never cached.
type Cache struct {
	inner Oracle
	store *storage.DecodeStore

	mu      sync.Mutex
	mem     map[uint32]types.DecodeResult
	pending map[uint32]types.DecodeResult
	hits    uint64
	misses  uint64
}

// NewCache wraps inner with an in-memory cache and, if store is non-nil,
// a persistent one.
func NewCache(inner Oracle, store *storage.DecodeStore) *Cache {
	return &Cache{
		inner:   inner,
		store:   store,
		mem:     make(map[uint32]types.DecodeResult),
		pending: make(map[uint32]types.DecodeResult),
	}
}

// OpenCache opens a LevelDB decode cache at path ("" keeps it in memory).
func OpenCache(inner Oracle, path string) (*Cache, error) {
	store, err := storage.OpenDecodeStore(path)
	if err != nil {
		return nil, fmt.Errorf("decode cache: %v: %w", err, finderrors.ErrOracleUnavailable)
	}
	if words, err := store.Words(); err == nil {
		log.Debug(log.Oracle, "decode cache opened", "path", path, "entries", len(words))
	}
	return NewCache(inner, store), nil
}

func (c *Cache) Decode(word uint32) (types.DecodeResult, error) {
	c.mu.Lock()
	res, ok := c.mem[word]
	if ok {
		c.hits++
		c.mu.Unlock()
		return res, nil
	}
	c.mu.Unlock()

	if c.store != nil {
		stored, found, err := c.store.Get(word)
		switch {
		case err != nil:
			log.Warn(log.Oracle, "dropping unreadable cache entry", "word", types.FormatWord(word), "err", err)
			if err := c.store.Delete(word); err != nil {
				log.Warn(log.Oracle, "decode cache delete failed", "word", types.FormatWord(word), "err", err)
			}
		case found:
			c.mu.Lock()
			c.mem[word] = stored
			c.hits++
			c.mu.Unlock()
			return stored, nil
		}
	}

	res, err := c.inner.Decode(word)
	if err != nil {
		return types.DecodeResult{}, err
	}
	c.mu.Lock()
	c.mem[word] = res
	c.misses++
	if c.store != nil {
		c.pending[word] = res
		if len(c.pending) >= cacheFlushEvery {
			c.flushLocked()
		}
	}
	c.mu.Unlock()
	return res, nil
}

func (c *Cache) flushLocked() {
	if len(c.pending) == 0 {
		return
	}
	if err := c.store.PutBatch(c.pending); err != nil {
		log.Warn(log.Oracle, "decode cache write failed", "entries", len(c.pending), "err", err)
	}
	c.pending = make(map[uint32]types.DecodeResult)
}

// Stats returns cache hits and misses.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Close writes buffered answers and closes the persistent store, if any.
func (c *Cache) Close() error {
	if c.store == nil {
		return nil
	}
	c.mu.Lock()
	c.flushLocked()
	c.mu.Unlock()
	return c.store.Close()
}
