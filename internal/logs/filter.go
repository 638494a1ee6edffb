package logs

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"clipmill/internal/logging"
)

// Record is one decoded JSON log line.
type Record struct {
	Time    time.Time
	Level   string
	Message string
	Fields  map[string]any
}

// Field returns a string form of the named attribute, or "".
func (r Record) Field(key string) string {
	value, ok := r.Fields[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// Parse decodes a JSON log line. Lines that are not JSON objects report false.
func Parse(line string) (Record, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return Record{}, false
	}
	rec := Record{Fields: fields}
	if ts, ok := fields["ts"].(string); ok {
		rec.Time, _ = time.Parse(time.RFC3339Nano, ts)
	}
	rec.Level, _ = fields["level"].(string)
	rec.Message, _ = fields["msg"].(string)
	delete(fields, "ts")
	delete(fields, "level")
	delete(fields, "msg")
	return rec, true
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Filter selects records. Zero-value fields match everything.
type Filter struct {
	GroupKey  string
	MinLevel  string
	EventType string
}

// Match reports whether rec passes every set criterion.
func (f Filter) Match(rec Record) bool {
	if f.GroupKey != "" && rec.Field(logging.FieldGroupKey) != f.GroupKey {
		return false
	}
	if f.EventType != "" && rec.Field(logging.FieldEventType) != f.EventType {
		return false
	}
	if f.MinLevel != "" {
		want, ok := levelRank[strings.ToLower(f.MinLevel)]
		if ok && levelRank[strings.ToLower(rec.Level)] < want {
			return false
		}
	}
	return true
}

// Apply decodes lines and keeps those matching f. Non-JSON lines are kept
// only when the filter is empty.
func (f Filter) Apply(lines []string) []Record {
	empty := f == Filter{}
	var out []Record
	for _, line := range lines {
		rec, ok := Parse(line)
		if !ok {
			if empty {
				out = append(out, Record{Message: line})
			}
			continue
		}
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Format renders rec on one line: time, level, message, then the remaining
// attributes sorted by key.
func Format(rec Record) string {
	var b strings.Builder
	if !rec.Time.IsZero() {
		b.WriteString(rec.Time.Local().Format("15:04:05"))
		b.WriteByte(' ')
	}
	if rec.Level != "" {
		fmt.Fprintf(&b, "%-5s ", strings.ToUpper(rec.Level))
	}
	b.WriteString(rec.Message)
	for _, key := range slices.Sorted(maps.Keys(rec.Fields)) {
		fmt.Fprintf(&b, " %s=%s", key, rec.Field(key))
	}
	return b.String()
}
