package legacy

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Layouts accepted for stored timestamps, most specific first. The naive
// ones carry no zone and are read in the importer's location.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime reads an RFC 3339 timestamp or a zone-less one in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

var timeKeys = []string{"created_at", "updated_at", "sent_at", "opened_at", "completed_at", "reminded_at"}

// normalizeRecord rewrites one stored record so it decodes into the current
// types: timestamps become RFC 3339 and whole-number answers become ints.
func normalizeRecord(raw json.RawMessage, loc *time.Location) (json.RawMessage, error) {
	var rec map[string]any
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}

	for _, key := range timeKeys {
		s, ok := rec[key].(string)
		if !ok {
			continue
		}
		if s == "" {
			rec[key] = nil
			continue
		}
		t, err := ParseTime(s, loc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		rec[key] = t.Format(time.RFC3339Nano)
	}

	for _, key := range []string{"responses", "factors"} {
		m, ok := rec[key].(map[string]any)
		if !ok {
			continue
		}
		for k, v := range m {
			switch n := v.(type) {
			case float64:
				m[k] = int(math.Round(n))
			case string:
				var f float64
				if _, err := fmt.Sscan(n, &f); err == nil {
					m[k] = int(math.Round(f))
				} else {
					delete(m, k)
				}
			}
		}
	}

	if n, ok := rec["employees_count"].(float64); ok {
		rec["employees_count"] = int(n)
	}
	if items, ok := rec["items"].([]any); ok {
		for _, it := range items {
			if m, ok := it.(map[string]any); ok {
				if n, ok := m["quantity"].(float64); ok {
					m["quantity"] = int(n)
				}
			}
		}
	}

	return json.Marshal(rec)
}
