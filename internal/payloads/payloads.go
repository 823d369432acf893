// Package payloads holds the static payload catalog used by active scans.
package payloads

import (
	"errors"
	"fmt"
	"os"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
	"gopkg.in/yaml.v3"
)

// ErrEmptyCategory is returned when a catalog file lists a category without payloads.
var ErrEmptyCategory = errors.New("payload category has no values")

// Entry is the ordered payload list of one category.
type Entry struct {
	Category types.Category
	Values   []string
}

// Catalog maps categories to ordered payload lists. It is immutable after
// construction and safe for concurrent use.
type Catalog struct {
	entries []Entry
}

var (
	xssPayloads = []string{
		`<script>alert("XSS")</script>`,
		`<img src=x onerror=alert("XSS")>`,
		`<svg onload=alert(1)>`,
	}

	sqliPayloads = []string{
		`' OR '1'='1`,
		`' OR '1'='1' -- `,
		`' OR '1'='1' # `,
		`" OR "1"="1" -- `,
		`1; DROP TABLE users --`,
	}

	// One 7*7 probe per templating syntax.
	sstiPayloads = []string{
		"{{ 7*7 }}",  // Jinja2, Twig
		"<%= 7*7 %>", // ERB
		"${7*7}",     // Freemarker, Velocity
		"#{ 7*7 }",   // Mako, Ruby interpolation
		"@(7*7)",     // Razor
		"<#= 7*7 #>", // T4
	}
)

// Default returns the built-in catalog in xss, sqli, ssti order.
func Default() *Catalog {
	return New([]Entry{
		{Category: types.XSS, Values: xssPayloads},
		{Category: types.SQLi, Values: sqliPayloads},
		{Category: types.SSTI, Values: sstiPayloads},
	})
}

// New builds a catalog from entries, copying every slice.
func New(entries []Entry) *Catalog {
	c := &Catalog{entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		values := make([]string, len(e.Values))
		copy(values, e.Values)
		c.entries = append(c.entries, Entry{Category: e.Category, Values: values})
	}
	return c
}

// Entries returns the catalog in iteration order. Callers must not modify
// the returned value slices.
func (c *Catalog) Entries() []Entry {
	return c.entries
}

// Values returns the payloads of one category.
func (c *Catalog) Values(cat types.Category) []string {
	for _, e := range c.entries {
		if e.Category == cat {
			return e.Values
		}
	}
	return nil
}

// Size returns the total number of payloads.
func (c *Catalog) Size() int {
	n := 0
	for _, e := range c.entries {
		n += len(e.Values)
	}
	return n
}

// Load reads a YAML catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document mapping category names to payload lists:
//
//	xss:
//	  - "<svg onload=alert(1)>"
//	sqli:
//	  - "' OR '1'='1"
//
// Categories keep their document order.
func Parse(data []byte) (*Catalog, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse payload catalog: %w", err)
	}
	if len(doc.Content) == 0 {
		return New(nil), nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse payload catalog: expected mapping at line %d", root.Line)
	}

	var entries []Entry
	seen := make(map[types.Category]bool)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]

		cat, err := types.ParseCategory(key.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", key.Line, err)
		}
		if seen[cat] {
			return nil, fmt.Errorf("line %d: duplicate category %s", key.Line, cat)
		}
		seen[cat] = true

		var values []string
		if err := val.Decode(&values); err != nil {
			return nil, fmt.Errorf("line %d: %w", val.Line, err)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%s: %w", cat, ErrEmptyCategory)
		}
		entries = append(entries, Entry{Category: cat, Values: values})
	}

	return New(entries), nil
}
