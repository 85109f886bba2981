// Package memory provides an in-process document store.
// It is suitable for tests and single-node development; data does not survive a restart.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/schema"
	"github.com/prn-tf/inkwell/internal/store"
)

// Driver implements store.Driver using maps guarded by a single mutex.
// Every operation is atomic with respect to every other.
type Driver struct {
	mu          sync.RWMutex
	collections map[string]*collection
	closed      bool
	logger      zerolog.Logger
}

// collection keeps documents in insertion order so unsorted reads are stable.
type collection struct {
	order []string
	docs  map[string]store.Document
}

// NewDriver creates an empty in-memory store.
func NewDriver(logger zerolog.Logger) *Driver {
	return &Driver{
		collections: make(map[string]*collection),
		logger:      logger.With().Str("driver", "memory").Logger(),
	}
}

var _ store.Driver = (*Driver)(nil)

// Name returns "memory".
func (d *Driver) Name() string {
	return "memory"
}

// Ping fails once the driver is closed.
func (d *Driver) Ping(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return domain.Unavailable(fmt.Errorf("memory store is closed"))
	}
	return ctx.Err()
}

// Close marks the store closed. Subsequent operations fail as unavailable.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.logger.Info().Msg("memory store closed")
	return nil
}

// EnsureCollection creates the collection if missing. Indexes are evaluated from the spec on write.
func (d *Driver) EnsureCollection(ctx context.Context, spec *schema.Spec) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx); err != nil {
		return err
	}
	d.collectionFor(spec)
	return nil
}

// FindOne returns the first match under sort.
func (d *Driver) FindOne(ctx context.Context, spec *schema.Spec, filter query.Filter, sort []query.SortKey) (store.Document, error) {
	docs, err := d.FindMany(ctx, spec, filter, store.FindOptions{Sort: sort, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, store.ErrNoDocument
	}
	return docs[0], nil
}

// FindMany returns copies of every match under opts.
func (d *Driver) FindMany(ctx context.Context, spec *schema.Spec, filter query.Filter, opts store.FindOptions) ([]store.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.check(ctx); err != nil {
		return nil, err
	}

	matched, err := d.scan(spec, filter)
	if err != nil {
		return nil, err
	}
	if len(opts.Sort) > 0 {
		slices.SortStableFunc(matched, func(a, b store.Document) int {
			return compareDocs(a, b, opts.Sort)
		})
	}

	if opts.Skip > 0 {
		if opts.Skip >= len(matched) {
			return []store.Document{}, nil
		}
		matched = matched[opts.Skip:]
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]store.Document, len(matched))
	for i, doc := range matched {
		out[i] = doc.Clone()
	}
	return out, nil
}

// Count returns the number of matches.
func (d *Driver) Count(ctx context.Context, spec *schema.Spec, filter query.Filter) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.check(ctx); err != nil {
		return 0, err
	}
	matched, err := d.scan(spec, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// InsertOne stores a copy of doc.
func (d *Driver) InsertOne(ctx context.Context, spec *schema.Spec, doc store.Document) (store.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx); err != nil {
		return nil, err
	}

	c := d.collectionFor(spec)
	doc = doc.Clone()
	id := doc.ID()
	if id == "" {
		id = store.NewID()
		doc[schema.FieldID] = id
	}
	if _, exists := c.docs[id]; exists {
		return nil, domain.Conflict(spec.Entity(), schema.FieldID)
	}
	if err := checkUnique(spec, c, doc); err != nil {
		return nil, err
	}

	c.docs[id] = doc
	c.order = append(c.order, id)
	return doc.Clone(), nil
}

// UpdateOne applies update to the first match in insertion order.
func (d *Driver) UpdateOne(ctx context.Context, spec *schema.Spec, filter query.Filter, update store.Update) (store.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx); err != nil {
		return nil, err
	}

	target, err := d.first(spec, filter)
	if err != nil {
		return nil, err
	}

	next := target.Clone()
	for field, v := range update.Set {
		next[field] = v
	}
	for _, field := range update.Unset {
		delete(next, field)
	}
	for field, delta := range update.Inc {
		switch cur := next[field].(type) {
		case nil:
			next[field] = delta
		case int64:
			next[field] = cur + delta
		default:
			return nil, domain.Internal(fmt.Errorf("cannot increment non-integer field %s", field))
		}
	}

	c := d.collectionFor(spec)
	if err := checkUnique(spec, c, next); err != nil {
		return nil, err
	}
	c.docs[next.ID()] = next
	return next.Clone(), nil
}

// DeleteOne removes the first match in insertion order.
func (d *Driver) DeleteOne(ctx context.Context, spec *schema.Spec, filter query.Filter) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx); err != nil {
		return false, err
	}

	target, err := d.first(spec, filter)
	if errors.Is(err, store.ErrNoDocument) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	c := d.collectionFor(spec)
	id := target.ID()
	delete(c.docs, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
	return true, nil
}

// check must be called with the lock held.
func (d *Driver) check(ctx context.Context) error {
	if d.closed {
		return domain.Unavailable(fmt.Errorf("memory store is closed"))
	}
	if err := ctx.Err(); err != nil {
		return domain.Unavailable(err)
	}
	return nil
}

// collectionFor must be called with the write lock held when the collection may not exist yet.
func (d *Driver) collectionFor(spec *schema.Spec) *collection {
	c, ok := d.collections[spec.Collection()]
	if !ok {
		c = &collection{docs: make(map[string]store.Document)}
		d.collections[spec.Collection()] = c
	}
	return c
}

// scan returns live references to matching documents in insertion order.
func (d *Driver) scan(spec *schema.Spec, filter query.Filter) ([]store.Document, error) {
	c, ok := d.collections[spec.Collection()]
	if !ok {
		return []store.Document{}, nil
	}
	out := make([]store.Document, 0)
	for _, id := range c.order {
		doc := c.docs[id]
		ok, err := match(doc, filter)
		if err != nil {
			return nil, domain.Internal(err)
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (d *Driver) first(spec *schema.Spec, filter query.Filter) (store.Document, error) {
	matched, err := d.scan(spec, filter)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, store.ErrNoDocument
	}
	return matched[0], nil
}

// checkUnique verifies doc against every unique index, ignoring the row with doc's own id.
func checkUnique(spec *schema.Spec, c *collection, doc store.Document) error {
	for _, ix := range spec.Indexes() {
		if !ix.Unique {
			continue
		}
		key, skip := indexKey(ix, doc)
		if skip {
			continue
		}
		for id, other := range c.docs {
			if id == doc.ID() {
				continue
			}
			if otherKey, otherSkip := indexKey(ix, other); !otherSkip && otherKey == key {
				return store.ConflictFor(spec, ix)
			}
		}
	}
	return nil
}

// indexKey renders the indexed values. Documents with a null indexed value are not
// constrained, matching how the SQL drivers treat NULL in unique indexes.
func indexKey(ix schema.Index, doc store.Document) (string, bool) {
	parts := make([]string, len(ix.Keys))
	for i, k := range ix.Keys {
		v := doc[k.Field]
		if v == nil {
			return "", true
		}
		parts[i] = fmt.Sprintf("%T:%v", v, v)
	}
	return strings.Join(parts, "\x00"), false
}
