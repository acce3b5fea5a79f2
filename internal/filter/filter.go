package filter

import (
	"strings"

	"github.com/xolan/wogger/internal/entry"
)

// Filter narrows a set of entries. Empty fields match everything.
type Filter struct {
	Keyword  string // Case-insensitive substring of the task
	Category string // Case-insensitive exact category
}

// NewFilter creates a new Filter with the given criteria.
func NewFilter(keyword, category string) *Filter {
	return &Filter{
		Keyword:  strings.TrimSpace(keyword),
		Category: strings.TrimSpace(category),
	}
}

// IsEmpty returns true if all filter fields are empty (matches all entries)
func (f *Filter) IsEmpty() bool {
	return f == nil || (f.Keyword == "" && f.Category == "")
}

// FilterEntries returns the entries matching f. An empty filter returns
// entries unchanged.
func FilterEntries(entries []entry.Entry, f *Filter) []entry.Entry {
	if f.IsEmpty() {
		return entries
	}

	filtered := make([]entry.Entry, 0)
	for _, e := range entries {
		if f.Matches(e) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// MatchesKeyword returns true if the keyword is found in the entry's task.
func (f *Filter) MatchesKeyword(e entry.Entry) bool {
	if f.Keyword == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Task), strings.ToLower(f.Keyword))
}

// MatchesCategory returns true if the entry's category equals the filter
// category, ignoring case.
func (f *Filter) MatchesCategory(e entry.Entry) bool {
	if f.Category == "" {
		return true
	}
	return strings.EqualFold(e.Category, f.Category)
}

// Matches reports whether e satisfies every criterion.
func (f *Filter) Matches(e entry.Entry) bool {
	if f.IsEmpty() {
		return true
	}
	return f.MatchesKeyword(e) && f.MatchesCategory(e)
}

// String describes the active criteria, e.g. `"review" @work`.
func (f *Filter) String() string {
	if f.IsEmpty() {
		return ""
	}
	var parts []string
	if f.Keyword != "" {
		parts = append(parts, `"`+f.Keyword+`"`)
	}
	if f.Category != "" {
		parts = append(parts, "@"+f.Category)
	}
	return strings.Join(parts, " ")
}
