package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Fragment file name suffixes.
const (
	FragmentSuffix = "data.json"
	ExtendSuffix   = "extend.json"
)

// extendFile is the on-disk shape of an extend list.
type extendFile struct {
	Video []extendEntry `json:"video"`
}

type extendEntry struct {
	BV string `json:"bv"`
}

// LoadMerged loads every fragment in dir whose name ends with FragmentSuffix,
// skipping names listed in exclude, and merges them in filename order. Dedupe
// runs once at the end, so for a bv present in several fragments the one from
// the last file wins.
// Any unreadable or malformed fragment fails the whole load: a partial catalog
// would hide entries from the user.
func LoadMerged(dir string, exclude ...string) (*Catalog, error) {
	names, err := listFragments(dir, FragmentSuffix, exclude)
	if err != nil {
		return nil, err
	}

	merged := New()
	for _, name := range names {
		frag := New()
		if err := frag.Load(filepath.Join(dir, name)); err != nil {
			return nil, err
		}
		merged.records = append(merged.records, frag.records...)
	}
	merged.Dedupe()
	return merged, nil
}

// LoadExtendIDs returns the bv values listed in every extend file in dir,
// in filename order.
func LoadExtendIDs(dir string) ([]string, error) {
	names, err := listFragments(dir, ExtendSuffix, nil)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, name := range names {
		file, err := readExtendFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		ids = append(ids, file...)
	}
	return ids, nil
}

func readExtendFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	var f extendFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: %w", ErrMalformed, err)}
	}
	var ids []string
	for _, v := range f.Video {
		if v.BV != "" {
			ids = append(ids, v.BV)
		}
	}
	return ids, nil
}

// AppendExtendIDs adds ids missing from <name>extend.json in dir, creating
// the file if needed, and returns how many were added.
func AppendExtendIDs(dir, name string, ids []string) (int, error) {
	existing, err := readExtendFile(filepath.Join(dir, name+ExtendSuffix))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}

	seen := make(map[string]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}
	added := 0
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		existing = append(existing, id)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, SaveExtendIDs(dir, name, existing)
}

// SaveFragment writes c to dir as <name>data.json.
func SaveFragment(dir, name string, c *Catalog) error {
	return c.Save(filepath.Join(dir, name+FragmentSuffix))
}

// SaveExtendIDs writes ids to dir as <name>extend.json.
func SaveExtendIDs(dir, name string, ids []string) error {
	var f extendFile
	for _, id := range ids {
		f.Video = append(f.Video, extendEntry{BV: id})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode extend list: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, name+ExtendSuffix), buf.Bytes(), 0644)
}

// listFragments returns matching regular file names sorted by name.
func listFragments(dir, suffix string, exclude []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, suffix) || slices.Contains(exclude, name) {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
