package store

import (
	"strings"
	"time"
)

// TimestampLayout is the canonical entry timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"

// Entry is a single memory line. Entries are immutable once written;
// they only ever move between the live store and an archive partition.
type Entry struct {
	Timestamp string // raw timestamp text, preserved verbatim
	Category  string
	Content   string
	Time      time.Time // zero when Timestamp failed to parse
}

// HasTime reports whether the entry carries a parseable timestamp.
func (e Entry) HasTime() bool {
	return !e.Time.IsZero()
}

// Month returns the calendar partition id (YYYY-MM) for the entry.
func (e Entry) Month() string {
	return e.Time.Format("2006-01")
}

// ParseLine parses one canonical bullet line of the form
// "* [2006-01-02 15:04:05] [category] content".
// A line with a malformed timestamp still parses (Time stays zero) so
// that no persisted entry is ever silently dropped.
func ParseLine(line string) (Entry, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "* [") {
		return Entry{}, false
	}
	rest := line[len("* ["):]

	end := strings.Index(rest, "]")
	if end < 0 {
		return Entry{}, false
	}
	timestamp := strings.TrimSpace(rest[:end])
	rest = strings.TrimSpace(rest[end+1:])

	category := "general"
	if strings.HasPrefix(rest, "[") {
		if catEnd := strings.Index(rest, "]"); catEnd > 0 {
			category = strings.TrimSpace(rest[1:catEnd])
			rest = strings.TrimSpace(rest[catEnd+1:])
		}
	}

	e := Entry{
		Timestamp: timestamp,
		Category:  category,
		Content:   rest,
	}
	if ts, err := time.ParseInLocation(TimestampLayout, timestamp, time.Local); err == nil {
		e.Time = ts
	}
	return e, true
}

// FormatLine renders an entry back to its canonical line form.
func FormatLine(e Entry) string {
	var sb strings.Builder
	sb.WriteString("* [")
	sb.WriteString(e.Timestamp)
	sb.WriteString("] [")
	sb.WriteString(e.Category)
	sb.WriteString("] ")
	sb.WriteString(e.Content)
	return sb.String()
}

// ParseEntries parses every entry line in content, in file order.
func ParseEntries(content string) []Entry {
	entries := make([]Entry, 0)
	for _, line := range strings.Split(content, "\n") {
		if e, ok := ParseLine(line); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// FormatEntries renders entries as line-per-entry text, trailing newline
// included when non-empty.
func FormatEntries(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(FormatLine(e))
		sb.WriteString("\n")
	}
	return sb.String()
}
