package domain

import (
	"sort"
	"strings"
)

// Condition matches when the metadata value for Field is one of In.
type Condition struct {
	Field string   `json:"field"`
	In    []string `json:"in"`
}

// Filter is a conjunction of conditions. A zero Filter matches everything.
type Filter struct {
	Conditions []Condition `json:"conditions,omitempty"`
}

// NewFilter builds the ticker / document-type filter used by queries.
// Empty slices add no condition.
func NewFilter(tickers []string, docTypes []string) Filter {
	var f Filter
	if len(tickers) > 0 {
		f.Conditions = append(f.Conditions, Condition{Field: MetaTicker, In: tickers})
	}
	if len(docTypes) > 0 {
		f.Conditions = append(f.Conditions, Condition{Field: MetaDocumentType, In: docTypes})
	}
	return f
}

// IsEmpty reports whether the filter has no effective condition.
func (f Filter) IsEmpty() bool {
	for _, c := range f.Conditions {
		if len(c.In) > 0 {
			return false
		}
	}
	return true
}

// Matches reports whether metadata satisfies every condition.
func (f Filter) Matches(metadata map[string]string) bool {
	for _, c := range f.Conditions {
		if len(c.In) == 0 {
			continue
		}
		v, ok := metadata[c.Field]
		if !ok || !contains(c.In, v) {
			return false
		}
	}
	return true
}

// Key is a stable textual form used for cache keys.
func (f Filter) Key() string {
	parts := make([]string, 0, len(f.Conditions))
	for _, c := range f.Conditions {
		if len(c.In) == 0 {
			continue
		}
		vals := append([]string(nil), c.In...)
		sort.Strings(vals)
		parts = append(parts, c.Field+"="+strings.Join(vals, ","))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

func contains(vals []string, v string) bool {
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}
