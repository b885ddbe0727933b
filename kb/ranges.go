package kb

import (
	"cmp"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/colorfulnotion/opfind/finderrors"
	"github.com/colorfulnotion/opfind/log"
	"github.com/colorfulnotion/opfind/types"
)

// RangeLowMask is the part of a word a range rule requires to be zero.
const RangeLowMask = 0x0000ffff

// RangeRule is a validator result: every word w with w&0xffff == 0 and
// Low <= w <= High decodes to (Mnemonic, Shape).
type RangeRule struct {
	Mnemonic string
	Shape    types.Shape
	Low      uint32
	High     uint32
}

func (r RangeRule) Key() types.Key {
	return types.Key{Mnemonic: r.Mnemonic, Shape: r.Shape}
}

// Contains reports whether w satisfies the rule.
func (r RangeRule) Contains(w uint32) bool {
	return w&RangeLowMask == 0 && r.Low <= w && w <= r.High
}

// Overlaps reports whether the two rules share a word.
func (r RangeRule) Overlaps(o RangeRule) bool {
	return r.Low <= o.High && o.Low <= r.High
}

func (r RangeRule) String() string {
	return fmt.Sprintf("%s (%s): 0x%08x <= w <= 0x%08x, w & 0x%08x == 0", r.Mnemonic, r.Shape, r.Low, r.High, RangeLowMask)
}

// RangeCatalog is the ordered list of range rules, persisted like the
// knowledge base.
type RangeCatalog struct {
	mu    sync.RWMutex
	path  string
	rules []RangeRule
}

func NewRangeCatalog(path string) *RangeCatalog {
	return &RangeCatalog{path: path}
}

// LoadRangeCatalog reads path; a missing file is an empty catalog.
func LoadRangeCatalog(path string) (*RangeCatalog, error) {
	c := NewRangeCatalog(path)
	if path == "" {
		return c, nil
	}
	rows, err := readTuples(path)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		r := RangeRule{Mnemonic: row.Name, Shape: types.Shape(row.Shape), Low: row.A, High: row.B}
		if r.Low > r.High || r.Low&RangeLowMask != 0 || r.High&RangeLowMask != 0 {
			return nil, fmt.Errorf("%s entry %d (%s): malformed range: %w", path, i, r, finderrors.ErrKnowledgeBaseFormat)
		}
		c.rules = append(c.rules, r)
	}
	return c, nil
}

func (c *RangeCatalog) Path() string {
	return c.path
}

// Rules returns a copy of the rules in insertion order.
func (c *RangeCatalog) Rules() []RangeRule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]RangeRule(nil), c.rules...)
}

// Lookup returns the rules for key.
func (c *RangeCatalog) Lookup(key types.Key) []RangeRule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []RangeRule
	for _, r := range c.rules {
		if r.Key() == key {
			out = append(out, r)
		}
	}
	return out
}

// Accept stores the rules for one key, replacing any earlier result for
// it in place, and flushes. Rules for the key must not overlap each other.
func (c *RangeCatalog) Accept(key types.Key, rules []RangeRule) error {
	sorted := append([]RangeRule(nil), rules...)
	slices.SortFunc(sorted, func(a, b RangeRule) int { return cmp.Compare(a.Low, b.Low) })
	for i, r := range sorted {
		if r.Key() != key {
			return fmt.Errorf("accept %s: rule for %s", key, r.Key())
		}
		if i > 0 && sorted[i-1].Overlaps(r) {
			return fmt.Errorf("accept %s: rules %s and %s overlap", key, sorted[i-1], r)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := make([]RangeRule, 0, len(c.rules)+len(sorted))
	replaced := 0
	for _, r := range c.rules {
		if r.Key() != key {
			kept = append(kept, r)
			continue
		}
		if replaced == 0 {
			kept = append(kept, sorted...)
		}
		replaced++
	}
	if replaced == 0 {
		kept = append(kept, sorted...)
	}
	c.rules = kept
	if replaced > 0 {
		log.Info(log.KB, "replaced range rules", "key", key, "old", replaced, "new", len(sorted))
	}
	return c.flushLocked()
}

// Flush writes the catalog to its path.
func (c *RangeCatalog) Flush() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.flushLocked()
}

func (c *RangeCatalog) flushLocked() error {
	if c.path == "" {
		return nil
	}
	rows := make([]tuple, len(c.rules))
	for i, r := range c.rules {
		rows[i] = tuple{Name: r.Mnemonic, Shape: string(r.Shape), A: r.Low, B: r.High}
	}
	return writeTuples(c.path, rows)
}
