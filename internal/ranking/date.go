package ranking

import (
	"time"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/pkg/datefmt"
)

// DateTimeLayout is the full timestamp layout the crawler stores.
const DateTimeLayout = "2006-01-02 15:04:05"

// ParseDate reads a record date. It tries DateTimeLayout, then the
// normalized date-only form. Anything else yields the zero time, which sorts
// as the oldest possible date.
func ParseDate(s string, now time.Time) time.Time {
	if t, err := time.ParseInLocation(DateTimeLayout, s, time.Local); err == nil {
		return t
	}
	norm := datefmt.Normalize(s, now)
	if norm == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(datefmt.Layout, norm, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
