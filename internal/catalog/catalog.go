// Package catalog holds scraped video metadata records and the operations that
// merge, dedupe and filter them.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/pkg/songtitle"
)

// Catalog is an ordered collection of records. It is a plain value with no
// locks; copy it with Clone before handing it to another goroutine.
type Catalog struct {
	records []Record
}

// file is the on-disk shape of a catalog fragment.
type file struct {
	Data []Record `json:"data"`
}

// New creates a catalog holding the given records in order.
func New(records ...Record) *Catalog {
	c := &Catalog{}
	c.records = append(c.records, records...)
	return c
}

// Load replaces the contents with the records stored at path.
// A missing file leaves the catalog empty and is not an error.
// A malformed file leaves the catalog unchanged and returns a *LoadError
// wrapping ErrMalformed.
func (c *Catalog) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		c.records = nil
		return nil
	}
	if err != nil {
		return &LoadError{Path: path, Err: err}
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return &LoadError{Path: path, Err: fmt.Errorf("%w: %w", ErrMalformed, err)}
	}
	c.records = f.Data
	return nil
}

// Save writes the catalog to path as indented UTF-8 JSON.
// The file is replaced atomically so a failed write never truncates it.
func (c *Catalog) Save(path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	records := c.records
	if records == nil {
		records = []Record{}
	}
	if err := enc.Encode(file{Data: records}); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}

// Append adds a record to the end of the catalog.
func (c *Catalog) Append(r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	c.records = append(c.records, r)
	return nil
}

// AppendMap converts a loosely typed record with FromMap and appends it.
func (c *Catalog) AppendMap(m map[string]any) error {
	r, err := FromMap(m)
	if err != nil {
		return err
	}
	c.records = append(c.records, r)
	return nil
}

// Merge appends every record of other in order and then dedupes, so for a
// shared bv the version from other survives.
func (c *Catalog) Merge(other *Catalog) {
	if other != nil {
		c.records = append(c.records, other.records...)
	}
	c.Dedupe()
}

// Dedupe keeps one record per bv. The last record written for a bv wins and
// takes the position where that bv was first seen.
func (c *Catalog) Dedupe() {
	pos := make(map[string]int, len(c.records))
	out := make([]Record, 0, len(c.records))
	for _, r := range c.records {
		if i, ok := pos[r.BV]; ok {
			out[i] = r
			continue
		}
		pos[r.BV] = len(out)
		out = append(out, r)
	}
	c.records = out
}

// SearchByTitle keeps only records whose title contains substr, ignoring case
// and character width.
func (c *Catalog) SearchByTitle(substr string) {
	needle := songtitle.Fold(substr)
	c.keep(func(r Record) bool {
		return strings.Contains(songtitle.Fold(r.Title), needle)
	})
}

// FilterByBV keeps exactly the records whose bv equals bv. No keyword or
// blacklist rule is applied here.
func (c *Catalog) FilterByBV(bv string) {
	c.keep(func(r Record) bool { return r.BV == bv })
}

// Select returns the record at index.
func (c *Catalog) Select(index int) (Record, bool) {
	if index < 0 || index >= len(c.records) {
		return Record{}, false
	}
	return c.records[index], true
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	return len(c.records)
}

// Records returns a copy of the records in order.
func (c *Catalog) Records() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// BVs returns the bv of every record in order.
func (c *Catalog) BVs() []string {
	out := make([]string, len(c.records))
	for i, r := range c.records {
		out[i] = r.BV
	}
	return out
}

// Clone returns an independent copy.
func (c *Catalog) Clone() *Catalog {
	return New(c.records...)
}

// SortStable reorders records in place, keeping equal records in order.
func (c *Catalog) SortStable(cmp func(a, b Record) int) {
	slices.SortStableFunc(c.records, cmp)
}

func (c *Catalog) keep(match func(Record) bool) {
	out := make([]Record, 0, len(c.records))
	for _, r := range c.records {
		if match(r) {
			out = append(out, r)
		}
	}
	c.records = out
}
