package query

import "slices"

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortKey orders by one field.
type SortKey struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Descending reports whether the key sorts high to low.
func (k SortKey) Descending() bool {
	return k.Direction == Desc
}

// OrderBy builds an ascending key.
func OrderBy(field string) SortKey {
	return SortKey{Field: field, Direction: Asc}
}

// OrderByDesc builds a descending key.
func OrderByDesc(field string) SortKey {
	return SortKey{Field: field, Direction: Desc}
}

// Populate expands one reference path into a projection of its target.
type Populate struct {
	// Path is the reference field on the queried entity.
	Path string

	// Entity optionally names the target; it must match the field's declared target.
	Entity string

	// Select lists target fields to bring in. Empty means the field's declared projection.
	Select []string
}

// Join selects which references are expanded in results.
type Join struct {
	// Default applies the populate spec the repository registered at construction.
	Default bool

	// Paths, when set, replaces the default spec.
	Paths []Populate
}

// JoinDefault requests the repository's default populate spec.
var JoinDefault = Join{Default: true}

// JoinPaths requests an explicit populate spec.
func JoinPaths(paths ...Populate) Join {
	return Join{Paths: paths}
}

// Enabled reports whether any expansion was requested.
func (j Join) Enabled() bool {
	return j.Default || len(j.Paths) > 0
}

// Options configures a read.
type Options struct {
	// Select is the projection; empty returns every field.
	Select []string

	// Order is the requested ordering for plain lists, and the fallback
	// ordering for paginated reads when Pagination.Sort is empty.
	Order []SortKey

	Join Join

	// WithDeleted makes soft-deleted rows visible.
	WithDeleted bool

	// Limit caps plain lists. Zero means the repository maximum.
	Limit int

	// Pagination switches list reads to the paginated result shape.
	Pagination *Pagination

	// AvailableSortFields whitelists sortable fields. Empty means every scalar schema field.
	AvailableSortFields []string

	// DefaultSortField is used descending when the requested sort is absent or rejected.
	DefaultSortField string
}

// Option mutates Options.
type Option func(*Options)

// WithDeleted makes soft-deleted rows visible.
func WithDeleted() Option {
	return func(o *Options) { o.WithDeleted = true }
}

// WithJoin requests the repository's default populate spec.
func WithJoin() Option {
	return func(o *Options) { o.Join = JoinDefault }
}

// WithPopulate requests an explicit populate spec.
func WithPopulate(paths ...Populate) Option {
	return func(o *Options) { o.Join = JoinPaths(paths...) }
}

// WithSelect sets the projection.
func WithSelect(fields ...string) Option {
	return func(o *Options) { o.Select = fields }
}

// WithOrder sets the ordering.
func WithOrder(keys ...SortKey) Option {
	return func(o *Options) { o.Order = keys }
}

// WithLimit caps a plain list.
func WithLimit(n int) Option {
	return func(o *Options) { o.Limit = n }
}

// WithPagination requests a paginated result.
func WithPagination(p Pagination) Option {
	return func(o *Options) { o.Pagination = &p }
}

// WithSortFields sets the sort whitelist and default.
func WithSortFields(defaultField string, available ...string) Option {
	return func(o *Options) {
		o.DefaultSortField = defaultField
		o.AvailableSortFields = available
	}
}

// Apply builds Options from functional options.
func Apply(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ResolveSort computes the effective ordering. The requested keys are used when every
// field is allowed; otherwise defaultField descending. An id ascending tie-break is
// always appended so that equal keys paginate deterministically.
func ResolveSort(requested []SortKey, allowed []string, defaultField, idField string) []SortKey {
	valid := len(requested) > 0
	for _, k := range requested {
		if !slices.Contains(allowed, k.Field) || (k.Direction != Asc && k.Direction != Desc) {
			valid = false
			break
		}
	}

	var out []SortKey
	if valid {
		out = slices.Clone(requested)
	} else {
		out = []SortKey{OrderByDesc(defaultField)}
	}

	for _, k := range out {
		if k.Field == idField {
			return out
		}
	}
	return append(out, OrderBy(idField))
}
