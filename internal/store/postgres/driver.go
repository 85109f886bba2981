package postgres

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/schema"
	"github.com/prn-tf/inkwell/internal/store"
)

// Driver implements store.Driver on PostgreSQL. Each collection is a table
// (seq BIGSERIAL, id TEXT PRIMARY KEY, doc JSONB); seq preserves insertion order.
type Driver struct {
	db     *DB
	q      Querier
	logger zerolog.Logger
}

// NewDriver wraps an open pool.
func NewDriver(db *DB, logger zerolog.Logger) *Driver {
	return &Driver{
		db:     db,
		q:      db.Pool,
		logger: logger.With().Str("driver", "postgres").Logger(),
	}
}

// Open connects with cfg and returns a driver.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*Driver, error) {
	db, err := NewDB(ctx, cfg, logger)
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	return NewDriver(db, logger), nil
}

var _ store.Driver = (*Driver)(nil)

// Name returns "postgres".
func (d *Driver) Name() string {
	return "postgres"
}

// Ping checks the pool.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.db.Ping(ctx); err != nil {
		return domain.Unavailable(err)
	}
	return nil
}

// Close closes the pool.
func (d *Driver) Close() error {
	return d.db.Close()
}

// EnsureCollection creates the table and its indexes.
func (d *Driver) EnsureCollection(ctx context.Context, spec *schema.Spec) error {
	c := newCompiler(spec)
	ddl := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (seq BIGSERIAL, id TEXT PRIMARY KEY, doc JSONB NOT NULL)",
		c.table(),
	)
	if _, err := d.q.Exec(ctx, ddl); err != nil {
		return translate(spec, fmt.Errorf("failed to create table %s: %w", spec.Collection(), err))
	}

	for _, ix := range spec.Indexes() {
		stmt, err := c.createIndex(ix)
		if err != nil {
			return domain.Internal(err)
		}
		if stmt == "" {
			d.logger.Warn().Str("index", ix.Name).Msg("skipping unique index on list field")
			continue
		}
		if _, err := d.q.Exec(ctx, stmt); err != nil {
			return translate(spec, fmt.Errorf("failed to create index %s: %w", ix.Name, err))
		}
	}

	d.logger.Debug().Str("collection", spec.Collection()).Msg("collection ensured")
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

// FindMany returns matches under opts.
func (d *Driver) FindMany(ctx context.Context, spec *schema.Spec, filter query.Filter, opts store.FindOptions) ([]store.Document, error) {
	c := newCompiler(spec)
	stmt, err := c.selectDocs(filter, opts)
	if err != nil {
		return nil, domain.Internal(err)
	}

	rows, err := d.q.Query(ctx, stmt, c.args...)
	if err != nil {
		return nil, translate(spec, err)
	}
	defer rows.Close()

	out := make([]store.Document, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, translate(spec, err)
		}
		doc, err := store.Decode(spec, raw)
		if err != nil {
			return nil, domain.Internal(err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(spec, err)
	}
	return out, nil
}

// selectDocs renders the SELECT of FindMany.
func (c *compiler) selectDocs(filter query.Filter, opts store.FindOptions) (string, error) {
	where, err := c.where(filter)
	if err != nil {
		return "", err
	}
	stmt := fmt.Sprintf("SELECT doc FROM %s WHERE %s", c.table(), where)
	if len(opts.Sort) > 0 {
		order, err := c.orderBy(opts.Sort)
		if err != nil {
			return "", err
		}
		stmt += " ORDER BY " + order
	} else {
		stmt += " ORDER BY seq"
	}
	if opts.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Skip > 0 {
		stmt += fmt.Sprintf(" OFFSET %d", opts.Skip)
	}
	return stmt, nil
}

// Count returns the number of matches.
func (d *Driver) Count(ctx context.Context, spec *schema.Spec, filter query.Filter) (int64, error) {
	c := newCompiler(spec)
	where, err := c.where(filter)
	if err != nil {
		return 0, domain.Internal(err)
	}

	var n int64
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", c.table(), where)
	if err := d.q.QueryRow(ctx, stmt, c.args...).Scan(&n); err != nil {
		return 0, translate(spec, err)
	}
	return n, nil
}

// InsertOne stores doc, minting an id when absent.
func (d *Driver) InsertOne(ctx context.Context, spec *schema.Spec, doc store.Document) (store.Document, error) {
	doc = doc.Clone()
	if doc.ID() == "" {
		doc[schema.FieldID] = store.NewID()
	}
	raw, err := store.Encode(doc)
	if err != nil {
		return nil, domain.Internal(err)
	}

	c := newCompiler(spec)
	stmt := fmt.Sprintf("INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)", c.table())
	if _, err := d.q.Exec(ctx, stmt, doc.ID(), string(raw)); err != nil {
		return nil, translate(spec, err)
	}
	return doc, nil
}

// UpdateOne applies update to the first match in one statement and returns the new document.
// The row lock taken by the subquery serializes concurrent increments on the same row.
func (d *Driver) UpdateOne(ctx context.Context, spec *schema.Spec, filter query.Filter, update store.Update) (store.Document, error) {
	c := newCompiler(spec)
	stmt, err := c.updateDoc(filter, update)
	if err != nil {
		return nil, domain.Internal(err)
	}

	var raw []byte
	if err := d.q.QueryRow(ctx, stmt, c.args...).Scan(&raw); err != nil {
		return nil, translate(spec, err)
	}
	doc, err := store.Decode(spec, raw)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return doc, nil
}

// updateDoc renders the UPDATE of UpdateOne.
func (c *compiler) updateDoc(filter query.Filter, update store.Update) (string, error) {
	set, err := c.setExpr(update)
	if err != nil {
		return "", err
	}
	where, err := c.where(filter)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"UPDATE %[1]s SET doc = %[2]s WHERE id = (SELECT id FROM %[1]s WHERE %[3]s ORDER BY seq LIMIT 1 FOR UPDATE) RETURNING doc",
		c.table(), set, where,
	), nil
}

// DeleteOne removes the first match.
func (d *Driver) DeleteOne(ctx context.Context, spec *schema.Spec, filter query.Filter) (bool, error) {
	c := newCompiler(spec)
	where, err := c.where(filter)
	if err != nil {
		return false, domain.Internal(err)
	}

	stmt := fmt.Sprintf(
		"DELETE FROM %[1]s WHERE id = (SELECT id FROM %[1]s WHERE %[2]s ORDER BY seq LIMIT 1)",
		c.table(), where,
	)
	tag, err := d.q.Exec(ctx, stmt, c.args...)
	if err != nil {
		return false, translate(spec, err)
	}
	return tag.RowsAffected() > 0, nil
}
