package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/schema"
	"github.com/prn-tf/inkwell/internal/store"
)

// Driver decorates a store.Driver with operation counters and latency histograms.
type Driver struct {
	next    store.Driver
	metrics *Metrics
}

// InstrumentDriver wraps next. A nil m returns next unchanged.
func InstrumentDriver(next store.Driver, m *Metrics) store.Driver {
	if m == nil {
		return next
	}
	return &Driver{next: next, metrics: m}
}

var _ store.Driver = (*Driver)(nil)

func (d *Driver) observe(spec *schema.Spec, op string, start time.Time, err error) {
	collection := ""
	if spec != nil {
		collection = spec.Collection()
	}
	d.metrics.StoreDuration.WithLabelValues(d.next.Name(), collection, op).Observe(time.Since(start).Seconds())
	d.metrics.StoreOps.WithLabelValues(d.next.Name(), collection, op, outcome(err)).Inc()
}

// outcome classifies err by domain kind.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// Name returns the wrapped driver's name.
func (d *Driver) Name() string { return d.next.Name() }

// Ping checks connectivity.
func (d *Driver) Ping(ctx context.Context) error {
	start := time.Now()
	err := d.next.Ping(ctx)
	d.observe(nil, "ping", start, err)
	return err
}

// Close closes the wrapped driver.
func (d *Driver) Close() error { return d.next.Close() }

func (d *Driver) EnsureCollection(ctx context.Context, spec *schema.Spec) error {
	start := time.Now()
	err := d.next.EnsureCollection(ctx, spec)
	d.observe(spec, "ensure_collection", start, err)
	return err
}

func (d *Driver) FindOne(ctx context.Context, spec *schema.Spec, filter query.Filter, sort []query.SortKey) (store.Document, error) {
	start := time.Now()
	doc, err := d.next.FindOne(ctx, spec, filter, sort)
	d.observe(spec, "find_one", start, err)
	return doc, err
}

func (d *Driver) FindMany(ctx context.Context, spec *schema.Spec, filter query.Filter, opts store.FindOptions) ([]store.Document, error) {
	start := time.Now()
	docs, err := d.next.FindMany(ctx, spec, filter, opts)
	d.observe(spec, "find_many", start, err)
	return docs, err
}

func (d *Driver) Count(ctx context.Context, spec *schema.Spec, filter query.Filter) (int64, error) {
	start := time.Now()
	n, err := d.next.Count(ctx, spec, filter)
	d.observe(spec, "count", start, err)
	return n, err
}

func (d *Driver) InsertOne(ctx context.Context, spec *schema.Spec, doc store.Document) (store.Document, error) {
	start := time.Now()
	out, err := d.next.InsertOne(ctx, spec, doc)
	d.observe(spec, "insert_one", start, err)
	return out, err
}

func (d *Driver) UpdateOne(ctx context.Context, spec *schema.Spec, filter query.Filter, update store.Update) (store.Document, error) {
	start := time.Now()
	out, err := d.next.UpdateOne(ctx, spec, filter, update)
	d.observe(spec, "update_one", start, err)
	return out, err
}

func (d *Driver) DeleteOne(ctx context.Context, spec *schema.Spec, filter query.Filter) (bool, error) {
	start := time.Now()
	ok, err := d.next.DeleteOne(ctx, spec, filter)
	d.observe(spec, "delete_one", start, err)
	return ok, err
}
