// Package shape classifies decoder operand text into a closed set of
// argument-shape tags. A catalog is an explicit priority list: the first
// entry whose pattern matches the whole operand string wins.
package shape

import (
	"fmt"
	"regexp"

	"github.com/colorfulnotion/opfind/types"
)

// Entry is one catalog pattern.
type Entry struct {
	Shape   types.Shape
	Pattern string
	re      *regexp.Regexp
}

// Catalog is an ordered list of shape patterns.
type Catalog struct {
	Name    string
	entries []Entry
	index   map[types.Shape]int
}

// NewCatalog returns an empty catalog.
func NewCatalog(name string) *Catalog {
	return &Catalog{Name: name, index: make(map[types.Shape]int)}
}

// Register appends a pattern at the lowest priority so far. The pattern is
// anchored at both ends. Registering the same shape twice panics since the
// catalog is built once at init time.
func (c *Catalog) Register(s types.Shape, pattern string) *Catalog {
	if _, dup := c.index[s]; dup {
		panic(fmt.Sprintf("shape %s registered twice in catalog %s", s, c.Name))
	}
	c.index[s] = len(c.entries)
	c.entries = append(c.entries, Entry{
		Shape:   s,
		Pattern: pattern,
		re:      regexp.MustCompile(`^(?:` + pattern + `)$`),
	})
	return c
}

// Match classifies operand text. Named capture groups are returned as the
// decoded raw fields.
func (c *Catalog) Match(operands string) (types.Shape, map[string]string, bool) {
	for _, e := range c.entries {
		m := e.re.FindStringSubmatch(operands)
		if m == nil {
			continue
		}
		var fields map[string]string
		for i, name := range e.re.SubexpNames() {
			if name == "" || i >= len(m) {
				continue
			}
			if fields == nil {
				fields = make(map[string]string)
			}
			fields[name] = m[i]
		}
		return e.Shape, fields, true
	}
	return types.ShapeUnknown, nil, false
}

// Priority returns the position of s in the catalog, or -1.
func (c *Catalog) Priority(s types.Shape) int {
	if i, ok := c.index[s]; ok {
		return i
	}
	return -1
}

// Shapes lists the catalog tags in priority order.
func (c *Catalog) Shapes() []types.Shape {
	out := make([]types.Shape, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Shape
	}
	return out
}

// Has reports whether s is one of the catalog's tags.
func (c *Catalog) Has(s types.Shape) bool {
	_, ok := c.index[s]
	return ok
}
