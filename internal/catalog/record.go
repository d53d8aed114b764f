package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// UnknownAuthor is used when the uploader cannot be resolved.
const UnknownAuthor = "Unknown"

// Record is the metadata of one scraped video. BV is the dedup key.
type Record struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Date   string `json:"date"`
	URL    string `json:"url"`
	BV     string `json:"bv"`
}

// Validate checks the fields every record must carry.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: empty title (bv %q)", ErrInvalidRecord, r.BV)
	}
	if strings.TrimSpace(r.BV) == "" {
		return fmt.Errorf("%w: empty bv (title %q)", ErrInvalidRecord, r.Title)
	}
	return nil
}

// FromMap builds a Record from a loosely typed record such as the scraper
// returns. Only primitive values survive; nested values and unknown keys are
// dropped. A missing author becomes UnknownAuthor.
func FromMap(m map[string]any) (Record, error) {
	var r Record
	for key, raw := range m {
		v, ok := primitive(raw)
		if !ok {
			continue
		}
		switch key {
		case "title":
			r.Title = v
		case "author":
			r.Author = v
		case "date":
			r.Date = v
		case "url":
			r.URL = v
		case "bv":
			r.BV = v
		}
	}
	if strings.TrimSpace(r.Author) == "" {
		r.Author = UnknownAuthor
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// UnmarshalJSON decodes a record through FromMap so files written by older
// crawlers (numeric dates, extra fields) still load.
func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	rec, err := FromMap(m)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

func primitive(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case json.Number:
		return x.String(), true
	default:
		return "", false
	}
}
