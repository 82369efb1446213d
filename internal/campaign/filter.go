package campaign

import (
	"sort"
	"strings"
)

// Filter derives the searchable view of a ledger snapshot. Text
// search is a case-insensitive substring match against the subject
// line or any contained idea's title or prompt; a blank term matches
// everything. Category requires at least one contained idea with that
// exact category, with "all" as the wildcard. Both conditions are
// ANDed and the input ordering is preserved.
func Filter(records []Record, searchTerm, categoryFilter string) []Record {
	out := make([]Record, 0, len(records))
	q := strings.ToLower(strings.TrimSpace(searchTerm))
	for _, rec := range records {
		if q != "" && !matchesSearch(rec, q) {
			continue
		}
		if categoryFilter != "all" && categoryFilter != "" && !matchesCategory(rec, categoryFilter) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func matchesSearch(rec Record, q string) bool {
	if strings.Contains(strings.ToLower(rec.SubjectLine), q) {
		return true
	}
	for _, idea := range rec.Ideas {
		if strings.Contains(strings.ToLower(idea.Title), q) ||
			strings.Contains(strings.ToLower(idea.PromptSuggestion), q) {
			return true
		}
	}
	return false
}

func matchesCategory(rec Record, category string) bool {
	for _, idea := range rec.Ideas {
		if idea.Category == category {
			return true
		}
	}
	return false
}

// Categories returns the sorted set of idea categories present in the
// given records, for populating the filter dropdown.
func Categories(records []Record) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for _, idea := range rec.Ideas {
			if idea.Category != "" {
				seen[idea.Category] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}
