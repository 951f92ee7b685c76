package icon

import "strings"

// Filter returns the records matching query and category, preserving order.
// The query is trimmed and matched case-insensitively as a substring of the
// name, category, or file name. An empty category matches every record.
func Filter(records []Record, query, category string) []Record {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if category != "" && rec.Category != category {
			continue
		}
		if q != "" && !matches(rec, q) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func matches(rec Record, q string) bool {
	return strings.Contains(strings.ToLower(rec.Name), q) ||
		strings.Contains(strings.ToLower(rec.Category), q) ||
		strings.Contains(strings.ToLower(rec.FileName), q)
}
