// Package storage persists decoder answers in LevelDB, keyed by the
// big-endian instruction word so iteration follows word order.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/colorfulnotion/opfind/types"
)

var decodePrefix = []byte("d/")

// DecodeStore maps words to decode results.
// Thread-safe: LevelDB handles its own synchronization.
type DecodeStore struct {
	db *leveldb.DB
}

// OpenDecodeStore opens or creates a store at path. An empty path keeps
// the store in memory.
func OpenDecodeStore(path string) (*DecodeStore, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open decode store at %q: %w", path, err)
	}
	return &DecodeStore{db: db}, nil
}

func wordKey(word uint32) []byte {
	k := make([]byte, len(decodePrefix)+4)
	copy(k, decodePrefix)
	binary.BigEndian.PutUint32(k[len(decodePrefix):], word)
	return k
}

// Get returns (zero, false, nil) for a word never stored. A stored entry
// that does not parse is an error.
func (s *DecodeStore) Get(word uint32) (types.DecodeResult, bool, error) {
	data, err := s.db.Get(wordKey(word), nil)
	if err == leveldb.ErrNotFound {
		return types.DecodeResult{}, false, nil
	}
	if err != nil {
		return types.DecodeResult{}, false, fmt.Errorf("Get %s: %w", types.FormatWord(word), err)
	}
	var res types.DecodeResult
	if err := json.Unmarshal(data, &res); err != nil {
		return types.DecodeResult{}, false, fmt.Errorf("Get %s: corrupt entry: %w", types.FormatWord(word), err)
	}
	return res, true, nil
}

func (s *DecodeStore) Put(word uint32, res types.DecodeResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return s.db.Put(wordKey(word), data, nil)
}

// PutBatch stores several answers atomically.
func (s *DecodeStore) PutBatch(results map[uint32]types.DecodeResult) error {
	batch := new(leveldb.Batch)
	for w, res := range results {
		data, err := json.Marshal(res)
		if err != nil {
			return err
		}
		batch.Put(wordKey(w), data)
	}
	return s.db.Write(batch, nil)
}

func (s *DecodeStore) Delete(word uint32) error {
	return s.db.Delete(wordKey(word), nil)
}

// Words returns every stored word in ascending order.
func (s *DecodeStore) Words() ([]uint32, error) {
	iter := s.db.NewIterator(util.BytesPrefix(decodePrefix), nil)
	defer iter.Release()

	var words []uint32
	for iter.Next() {
		key := iter.Key()
		if len(key) != len(decodePrefix)+4 {
			continue
		}
		words = append(words, binary.BigEndian.Uint32(key[len(decodePrefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("Words: %w", err)
	}
	return words, nil
}

// Close closes the underlying database.
func (s *DecodeStore) Close() error {
	return s.db.Close()
}
