// Package kb holds the durable results of a discovery run: opcode facts
// learned by the exploration loop and range rules accepted by the
// validator. Every mutation is flushed to disk before it returns.
package kb

import (
	"fmt"
	"sync"

	"github.com/colorfulnotion/opfind/finderrors"
	"github.com/colorfulnotion/opfind/log"
	"github.com/colorfulnotion/opfind/types"
)

// Fact is a learned encoding: every word with w&Mask == Opcode decodes to
// (Mnemonic, Shape).
type Fact struct {
	Mnemonic string
	Shape    types.Shape
	Mask     uint32
	Opcode   uint32
}

func (f Fact) Key() types.Key {
	return types.Key{Mnemonic: f.Mnemonic, Shape: f.Shape}
}

// Covers reports whether w lies in the fact's cube.
func (f Fact) Covers(w uint32) bool {
	return types.Matches(w, f.Mask, f.Opcode)
}

func (f Fact) String() string {
	return fmt.Sprintf("%s (%s): mask = 0x%08x, masked opcode = 0x%08x", f.Mnemonic, f.Shape, f.Mask, f.Opcode)
}

func (f Fact) tuple() tuple {
	return tuple{Name: f.Mnemonic, Shape: string(f.Shape), A: f.Mask, B: f.Opcode}
}

// KnowledgeBase is the ordered fact list. A key normally has one fact;
// further cubes for it are only recorded through Supplement. The zero
// path keeps the knowledge base in memory.
type KnowledgeBase struct {
	mu    sync.RWMutex
	path  string
	facts []Fact
	byKey map[types.Key][]int
}

// New returns an empty knowledge base that flushes to path.
func New(path string) *KnowledgeBase {
	return &KnowledgeBase{path: path, byKey: make(map[types.Key][]int)}
}

// Load reads path. A missing file yields an empty knowledge base; a file
// that does not parse is ErrKnowledgeBaseFormat.
func Load(path string) (*KnowledgeBase, error) {
	k := New(path)
	if path == "" {
		return k, nil
	}
	rows, err := readTuples(path)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		f := Fact{Mnemonic: row.Name, Shape: types.Shape(row.Shape), Mask: row.A, Opcode: row.B}
		if f.Mnemonic == "" || f.Shape == types.ShapeUnknown {
			return nil, fmt.Errorf("%s entry %d: empty mnemonic or shape: %w", path, i, finderrors.ErrKnowledgeBaseFormat)
		}
		if f.Opcode&^f.Mask != 0 {
			return nil, fmt.Errorf("%s entry %d (%s): opcode has bits outside mask: %w", path, i, f, finderrors.ErrKnowledgeBaseFormat)
		}
		k.append(f)
	}
	log.Debug(log.KB, "loaded knowledge base", "path", path, "facts", len(rows))
	return k, nil
}

func (k *KnowledgeBase) append(f Fact) {
	k.byKey[f.Key()] = append(k.byKey[f.Key()], len(k.facts))
	k.facts = append(k.facts, f)
}

// Path is the backing file, "" for an in-memory knowledge base.
func (k *KnowledgeBase) Path() string {
	return k.path
}

func (k *KnowledgeBase) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.facts)
}

// Facts returns a copy of the facts in insertion order.
func (k *KnowledgeBase) Facts() []Fact {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]Fact(nil), k.facts...)
}

// Has reports whether some fact carries key.
func (k *KnowledgeBase) Has(key types.Key) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.byKey[key]) > 0
}

// Lookup returns every fact for key.
func (k *KnowledgeBase) Lookup(key types.Key) []Fact {
	k.mu.RLock()
	defer k.mu.RUnlock()
	idx := k.byKey[key]
	out := make([]Fact, len(idx))
	for i, j := range idx {
		out[i] = k.facts[j]
	}
	return out
}

// Covering returns the first fact whose cube contains w.
func (k *KnowledgeBase) Covering(w uint32) (Fact, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	for _, f := range k.facts {
		if f.Covers(w) {
			return f, true
		}
	}
	return Fact{}, false
}

// Covers reports whether any fact's cube contains w.
func (k *KnowledgeBase) Covers(w uint32) bool {
	_, ok := k.Covering(w)
	return ok
}

// Add records a fact for a new key and flushes. A key that already has a
// fact is ErrDuplicateFact.
func (k *KnowledgeBase) Add(f Fact) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.byKey[f.Key()]) > 0 {
		return fmt.Errorf("add %s: %w", f, finderrors.ErrDuplicateFact)
	}
	k.append(f)
	return k.flushLocked()
}

// Supplement records an additional cube for a key that already has a fact
// and flushes. An unknown key is ErrUnknownFact.
func (k *KnowledgeBase) Supplement(f Fact) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.byKey[f.Key()]) == 0 {
		return fmt.Errorf("supplement %s: %w", f, finderrors.ErrUnknownFact)
	}
	k.append(f)
	log.Warn(log.KB, "supplementing fact", "key", f.Key(), "mask", types.FormatWord(f.Mask), "opcode", types.FormatWord(f.Opcode))
	return k.flushLocked()
}

// Flush writes the knowledge base to its path.
func (k *KnowledgeBase) Flush() error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.flushLocked()
}

func (k *KnowledgeBase) flushLocked() error {
	if k.path == "" {
		return nil
	}
	rows := make([]tuple, len(k.facts))
	for i, f := range k.facts {
		rows[i] = f.tuple()
	}
	return writeTuples(k.path, rows)
}
