package kb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/colorfulnotion/opfind/finderrors"
)

// tuple is the persisted row shape shared by facts and range rules:
// [name, shape_tag, a, b]. JSON files hold decimal numbers so catalogs
// written by earlier tooling load unchanged.
type tuple struct {
	Name  string
	Shape string
	A     uint32
	B     uint32
}

func (t tuple) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{t.Name, t.Shape, t.A, t.B})
}

func (t *tuple) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 4 {
		return fmt.Errorf("want 4 fields, got %d", len(raw))
	}
	for i, dst := range []interface{}{&t.Name, &t.Shape, &t.A, &t.B} {
		if err := json.Unmarshal(raw[i], dst); err != nil {
			return fmt.Errorf("field %d: %v", i, err)
		}
	}
	return nil
}

func (t tuple) MarshalYAML() (interface{}, error) {
	return []interface{}{t.Name, t.Shape, fmt.Sprintf("0x%08x", t.A), fmt.Sprintf("0x%08x", t.B)}, nil
}

func (t *tuple) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw []interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	if len(raw) != 4 {
		return fmt.Errorf("want 4 fields, got %d", len(raw))
	}
	var ok bool
	if t.Name, ok = raw[0].(string); !ok {
		return fmt.Errorf("field 0: %v is not a string", raw[0])
	}
	if t.Shape, ok = raw[1].(string); !ok {
		return fmt.Errorf("field 1: %v is not a string", raw[1])
	}
	for i, dst := range []*uint32{&t.A, &t.B} {
		v, err := yamlUint32(raw[2+i])
		if err != nil {
			return fmt.Errorf("field %d: %v", 2+i, err)
		}
		*dst = v
	}
	return nil
}

func yamlUint32(v interface{}) (uint32, error) {
	switch n := v.(type) {
	case int:
		if n >= 0 && int64(n) <= 0xffffffff {
			return uint32(n), nil
		}
	case uint64:
		if n <= 0xffffffff {
			return uint32(n), nil
		}
	case string:
		var u uint32
		if _, err := fmt.Sscanf(n, "0x%x", &u); err == nil {
			return u, nil
		}
	}
	return 0, fmt.Errorf("%v is not a 32-bit unsigned value", v)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// readTuples loads a catalog file. A missing file is an empty catalog.
func readTuples(path string) ([]tuple, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", path, err, finderrors.ErrKnowledgeBaseFormat)
	}
	var rows []tuple
	if isYAML(path) {
		err = yaml.Unmarshal(data, &rows)
	} else if len(strings.TrimSpace(string(data))) > 0 {
		err = json.Unmarshal(data, &rows)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %v: %w", path, err, finderrors.ErrKnowledgeBaseFormat)
	}
	return rows, nil
}

// writeTuples replaces path atomically: the rows go to a temporary file in
// the same directory which is synced and renamed over the target.
func writeTuples(path string, rows []tuple) error {
	if rows == nil {
		rows = []tuple{}
	}
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(rows)
	} else {
		data, err = json.Marshal(rows)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %v: %w", path, err, finderrors.ErrKnowledgeBaseFlush)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("flush %s: %v: %w", path, err, finderrors.ErrKnowledgeBaseFlush)
	}
	defer os.Remove(tmp.Name())
	if _, err = tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		return fmt.Errorf("flush %s: %v: %w", path, err, finderrors.ErrKnowledgeBaseFlush)
	}
	return nil
}
