// Package datefmt normalizes the loosely formatted upload dates shown by the
// video platform ("3小时前", "昨天", "05-01", "2024-5-1") into YYYY-MM-DD.
package datefmt

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the normalized output format.
const Layout = "2006-01-02"

var (
	fullDate    = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})(?:[ T]\d{1,2}:\d{2}(?::\d{2})?)?$`)
	monthDay    = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})$`)
	minutesAgo  = regexp.MustCompile(`^(\d+)\s*(?:分钟前|minutes? ago|mins? ago)$`)
	hoursAgo    = regexp.MustCompile(`^(\d+)\s*(?:小时前|hours? ago)$`)
	daysAgo     = regexp.MustCompile(`^(\d+)\s*(?:天前|days? ago)$`)
	unixSeconds = regexp.MustCompile(`^\d{10}$`)
)

// maxAgeDays bounds relative dates; anything older is treated as unparsable.
const maxAgeDays = 100 * 366

// Normalize converts s into YYYY-MM-DD relative to now.
// It returns "" when s is not recognized.
func Normalize(s string, now time.Time) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	switch s {
	case "刚刚", "just now", "today", "今天":
		return now.Format(Layout)
	case "昨天", "yesterday":
		return now.AddDate(0, 0, -1).Format(Layout)
	case "前天":
		return now.AddDate(0, 0, -2).Format(Layout)
	}

	if m := fullDate.FindStringSubmatch(s); m != nil {
		return build(m[1], m[2], m[3])
	}
	if m := monthDay.FindStringSubmatch(s); m != nil {
		return build(strconv.Itoa(now.Year()), m[1], m[2])
	}
	if m := minutesAgo.FindStringSubmatch(s); m != nil {
		n, ok := count(m[1], maxAgeDays*24*60)
		if !ok {
			return ""
		}
		return now.Add(-time.Duration(n) * time.Minute).Format(Layout)
	}
	if m := hoursAgo.FindStringSubmatch(s); m != nil {
		n, ok := count(m[1], maxAgeDays*24)
		if !ok {
			return ""
		}
		return now.Add(-time.Duration(n) * time.Hour).Format(Layout)
	}
	if m := daysAgo.FindStringSubmatch(s); m != nil {
		n, ok := count(m[1], maxAgeDays)
		if !ok {
			return ""
		}
		return now.AddDate(0, 0, -n).Format(Layout)
	}
	if unixSeconds.MatchString(s) {
		sec, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return ""
		}
		return time.Unix(sec, 0).In(now.Location()).Format(Layout)
	}
	return ""
}

// count parses a relative amount, rejecting anything above limit.
func count(s string, limit int) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > limit {
		return 0, false
	}
	return n, true
}

// build validates the parts so "2024-02-31" does not silently roll over.
func build(year, month, day string) string {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return ""
	}
	return t.Format(Layout)
}
