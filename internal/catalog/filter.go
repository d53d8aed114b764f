package catalog

import (
	"strings"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/pkg/songtitle"
)

// Field selects which record field a word filter inspects.
type Field string

const (
	FieldTitle  Field = "title"
	FieldAuthor Field = "author"
)

// ParseField validates a field name.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	if err := f.validate(); err != nil {
		return "", err
	}
	return f, nil
}

func (f Field) validate() error {
	switch f {
	case FieldTitle, FieldAuthor:
		return nil
	default:
		return &FieldError{Field: string(f)}
	}
}

func (f Field) value(r Record) string {
	if f == FieldAuthor {
		return r.Author
	}
	return r.Title
}

// ParseWords normalizes a loosely typed word list. A single string is treated
// as a one-element list. Non-string entries return a *WordTypeError.
func ParseWords(v any) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{x}, nil
	case []string:
		return append([]string(nil), x...), nil
	case []any:
		words := make([]string, 0, len(x))
		for i, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, &WordTypeError{Index: i, Value: item}
			}
			words = append(words, s)
		}
		return words, nil
	default:
		return nil, &WordTypeError{Index: -1, Value: v}
	}
}

// RemoveBlacklist drops every record where any of words occurs in field,
// ignoring case. Blank words are ignored.
// The catalog is left untouched when field is invalid.
func (c *Catalog) RemoveBlacklist(words []string, field Field) error {
	m, err := newMatcher(words, field)
	if err != nil {
		return err
	}
	c.keep(func(r Record) bool { return !m.match(r) })
	return nil
}

// FilterKeep keeps only records where at least one of words occurs in field.
// It is the complement of RemoveBlacklist for the same arguments.
func (c *Catalog) FilterKeep(words []string, field Field) error {
	m, err := newMatcher(words, field)
	if err != nil {
		return err
	}
	c.keep(m.match)
	return nil
}

type matcher struct {
	field Field
	words []string
}

func newMatcher(words []string, field Field) (*matcher, error) {
	if err := field.validate(); err != nil {
		return nil, err
	}
	m := &matcher{field: field}
	for _, w := range words {
		if strings.TrimSpace(w) == "" {
			continue
		}
		m.words = append(m.words, songtitle.Fold(w))
	}
	return m, nil
}

func (m *matcher) match(r Record) bool {
	value := songtitle.Fold(m.field.value(r))
	for _, w := range m.words {
		if strings.Contains(value, w) {
			return true
		}
	}
	return false
}
