// Package query holds the store-agnostic vocabulary used to describe reads:
// filter predicates, projections, ordering, joins and pagination.
package query

import (
	"slices"
	"strings"
)

// Filter is a predicate over one entity's fields. The set of implementations
// is closed; drivers translate each of them and nothing else.
type Filter interface {
	isFilter()
}

// Eq matches rows whose field equals Value. A nil Value matches absent or null fields.
type Eq struct {
	Field string
	Value any
}

// In matches rows whose field equals one of Values. For list fields, any element may match.
type In struct {
	Field  string
	Values []any
}

// Exists matches rows where the field is present and non-null (Present true),
// or absent or null (Present false).
type Exists struct {
	Field   string
	Present bool
}

// Has matches rows whose list field contains Value.
type Has struct {
	Field string
	Value any
}

// Contains matches rows whose string field contains Substring, ignoring case.
type Contains struct {
	Field     string
	Substring string
}

// And matches rows satisfying every predicate. An empty And matches everything.
type And []Filter

// Or matches rows satisfying at least one predicate. An empty Or matches nothing.
type Or []Filter

func (Eq) isFilter()       {}
func (In) isFilter()       {}
func (Exists) isFilter()   {}
func (Has) isFilter()      {}
func (Contains) isFilter() {}
func (And) isFilter()      {}
func (Or) isFilter()       {}

// All conjoins filters, skipping nils and flattening nested conjunctions.
// It returns nil when nothing remains.
func All(filters ...Filter) Filter {
	out := flatten(nil, filters)
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}

func flatten(out And, filters []Filter) And {
	for _, f := range filters {
		switch t := f.(type) {
		case nil:
		case And:
			out = flatten(out, t)
		default:
			out = append(out, f)
		}
	}
	return out
}

// Any disjoins filters, skipping nils. It returns nil when nothing remains.
func Any(filters ...Filter) Filter {
	var out Or
	for _, f := range filters {
		if f != nil {
			out = append(out, f)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}

// Where builds a conjunction of equalities from a field/value map.
func Where(fields map[string]any) Filter {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)

	filters := make([]Filter, 0, len(names))
	for _, name := range names {
		filters = append(filters, Eq{Field: name, Value: fields[name]})
	}
	return All(filters...)
}

// NotDeleted matches live rows.
func NotDeleted(deletedAtField string) Filter {
	return Exists{Field: deletedAtField, Present: false}
}

// Fields returns every field name referenced by f, in order of appearance.
func Fields(f Filter) []string {
	var out []string
	Walk(f, func(leaf Filter) {
		var name string
		switch t := leaf.(type) {
		case Eq:
			name = t.Field
		case In:
			name = t.Field
		case Exists:
			name = t.Field
		case Has:
			name = t.Field
		case Contains:
			name = t.Field
		}
		if name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	})
	return out
}

// Walk calls fn for every leaf predicate in f.
func Walk(f Filter, fn func(Filter)) {
	switch t := f.(type) {
	case nil:
	case And:
		for _, inner := range t {
			Walk(inner, fn)
		}
	case Or:
		for _, inner := range t {
			Walk(inner, fn)
		}
	default:
		fn(f)
	}
}

// Map rebuilds f with every leaf replaced by fn(leaf). Returning an error aborts.
func Map(f Filter, fn func(Filter) (Filter, error)) (Filter, error) {
	switch t := f.(type) {
	case nil:
		return nil, nil
	case And:
		out := make(And, 0, len(t))
		for _, inner := range t {
			m, err := Map(inner, fn)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	case Or:
		out := make(Or, 0, len(t))
		for _, inner := range t {
			m, err := Map(inner, fn)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return fn(f)
	}
}

// Search expands a search string into a case-insensitive substring disjunction
// over fields. Blank searches and empty field sets yield nil.
func Search(search string, fields []string) Filter {
	search = strings.TrimSpace(search)
	if search == "" {
		return nil
	}
	var or Or
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		or = append(or, Contains{Field: f, Substring: search})
	}
	if len(or) == 0 {
		return nil
	}
	return or
}
