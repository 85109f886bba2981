// Package store defines the narrow contract between repositories and a document store.
// Repositories compose queries in the query vocabulary; drivers translate them to the
// concrete store and translate store errors back into the domain taxonomy.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/schema"
)

// Document is one stored record in canonical form. Values are nil, string, int64,
// bool or []any of strings; timestamps use schema.TimeLayout.
type Document map[string]any

// ID returns the document identity.
func (d Document) ID() string {
	id, _ := d[schema.FieldID].(string)
	return id
}

// Clone returns a copy that shares nothing mutable with d.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		if list, ok := v.([]any); ok {
			v = append([]any(nil), list...)
		}
		out[k] = v
	}
	return out
}

// FindOptions controls multi-row reads.
type FindOptions struct {
	Sort  []query.SortKey
	Skip  int
	Limit int // zero means unbounded
}

// Update is a single-document mutation. All parts apply atomically.
type Update struct {
	Set   map[string]any
	Unset []string
	Inc   map[string]int64
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return len(u.Set) == 0 && len(u.Unset) == 0 && len(u.Inc) == 0
}

// ErrNoDocument is returned when a targeted read or write matches nothing.
var ErrNoDocument = fmt.Errorf("%w: no document matched", domain.ErrNotFound)

// Driver executes document operations against one store. Every method takes the
// entity spec so drivers can resolve field kinds, collections and index names.
// Errors are domain errors: ErrNoDocument, *domain.Error of kind Conflict,
// StoreUnavailable or Internal.
type Driver interface {
	// Name identifies the driver in logs and metrics.
	Name() string

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the connection pool.
	Close() error

	// EnsureCollection creates the collection and every index the spec derives. Idempotent.
	EnsureCollection(ctx context.Context, spec *schema.Spec) error

	// FindOne returns the first match under sort, or ErrNoDocument.
	FindOne(ctx context.Context, spec *schema.Spec, filter query.Filter, sort []query.SortKey) (Document, error)

	// FindMany returns matches under opts.
	FindMany(ctx context.Context, spec *schema.Spec, filter query.Filter, opts FindOptions) ([]Document, error)

	// Count returns the number of matches.
	Count(ctx context.Context, spec *schema.Spec, filter query.Filter) (int64, error)

	// InsertOne stores doc, minting an id when doc has none, and returns the stored form.
	InsertOne(ctx context.Context, spec *schema.Spec, doc Document) (Document, error)

	// UpdateOne applies update to the first match and returns the document after the update,
	// or ErrNoDocument.
	UpdateOne(ctx context.Context, spec *schema.Spec, filter query.Filter, update Update) (Document, error)

	// DeleteOne removes the first match and reports whether anything was removed.
	DeleteOne(ctx context.Context, spec *schema.Spec, filter query.Filter) (bool, error)
}

// NewID mints a document identity.
func NewID() string {
	return uuid.NewString()
}

// ConflictFor builds the conflict error for a violated index, naming its fields.
func ConflictFor(spec *schema.Spec, ix schema.Index) error {
	field := ""
	for i, f := range ix.Fields() {
		if i > 0 {
			field += ","
		}
		field += f
	}
	return domain.Conflict(spec.Entity(), field)
}

// ConflictForIndexName resolves an index name reported by a store to a conflict error.
// Unknown names still produce a conflict, without a field.
func ConflictForIndexName(spec *schema.Spec, name string) error {
	if ix, ok := spec.IndexByName(name); ok {
		return ConflictFor(spec, ix)
	}
	if name == spec.Collection()+"_pkey" {
		return domain.Conflict(spec.Entity(), schema.FieldID)
	}
	return domain.Conflict(spec.Entity(), "")
}
