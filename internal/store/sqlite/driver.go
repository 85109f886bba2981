package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/schema"
	"github.com/prn-tf/inkwell/internal/store"
)

// Driver implements store.Driver on SQLite. Each collection is a table
// (id TEXT PRIMARY KEY, doc TEXT) with JSON expression indexes derived from the spec.
type Driver struct {
	db     *DB
	logger zerolog.Logger
}

// NewDriver wraps an open DB.
func NewDriver(db *DB, logger zerolog.Logger) *Driver {
	return &Driver{
		db:     db,
		logger: logger.With().Str("driver", "sqlite").Logger(),
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

// Name returns "sqlite".
func (d *Driver) Name() string {
	return "sqlite"
}

// Ping checks the database connection.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.db.Ping(ctx); err != nil {
		return domain.Unavailable(err)
	}
	return nil
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.db.Close()
}

// EnsureCollection creates the table and its indexes.
func (d *Driver) EnsureCollection(ctx context.Context, spec *schema.Spec) error {
	c := newCompiler(spec)
	if !schema.ValidName(spec.Collection()) {
		return domain.Internal(fmt.Errorf("invalid collection name %q", spec.Collection()))
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, doc TEXT NOT NULL)", c.table())
	if _, err := d.db.ExecContext(ctx, ddl); err != nil {
		return translate(spec, fmt.Errorf("failed to create table %s: %w", spec.Collection(), err))
	}

	for _, ix := range spec.Indexes() {
		stmt, err := c.createIndex(ix)
		if err != nil {
			return domain.Internal(err)
		}
		if stmt == "" {
			d.logger.Debug().Str("index", ix.Name).Msg("skipping index on list field")
			continue
		}
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
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
	where, err := c.where(filter)
	if err != nil {
		return nil, domain.Internal(err)
	}

	stmt := fmt.Sprintf("SELECT doc FROM %s WHERE %s", c.table(), where)
	if len(opts.Sort) > 0 {
		order, err := c.orderBy(opts.Sort)
		if err != nil {
			return nil, domain.Internal(err)
		}
		stmt += " ORDER BY " + order
	} else {
		stmt += " ORDER BY rowid"
	}
	if opts.Limit > 0 || opts.Skip > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		stmt += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, opts.Skip)
	}

	rows, err := d.db.QueryContext(ctx, stmt, c.args...)
	if err != nil {
		return nil, translate(spec, err)
	}
	defer rows.Close()

	out := make([]store.Document, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, translate(spec, err)
		}
		doc, err := store.Decode(spec, []byte(raw))
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

// Count returns the number of matches.
func (d *Driver) Count(ctx context.Context, spec *schema.Spec, filter query.Filter) (int64, error) {
	c := newCompiler(spec)
	where, err := c.where(filter)
	if err != nil {
		return 0, domain.Internal(err)
	}

	var n int64
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", c.table(), where)
	if err := d.db.QueryRowContext(ctx, stmt, c.args...).Scan(&n); err != nil {
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
	stmt := fmt.Sprintf("INSERT INTO %s (id, doc) VALUES (?, ?)", c.table())
	if _, err := d.db.ExecContext(ctx, stmt, doc.ID(), string(raw)); err != nil {
		return nil, translate(spec, err)
	}
	return doc, nil
}

// UpdateOne applies update to the first match in one statement and returns the new document.
func (d *Driver) UpdateOne(ctx context.Context, spec *schema.Spec, filter query.Filter, update store.Update) (store.Document, error) {
	c := newCompiler(spec)
	set, err := c.setExpr(update)
	if err != nil {
		return nil, domain.Internal(err)
	}
	where, err := c.where(filter)
	if err != nil {
		return nil, domain.Internal(err)
	}

	stmt := fmt.Sprintf(
		"UPDATE %[1]s SET doc = %[2]s WHERE id = (SELECT id FROM %[1]s WHERE %[3]s ORDER BY rowid LIMIT 1) RETURNING doc",
		c.table(), set, where,
	)

	var raw string
	if err := d.db.QueryRowContext(ctx, stmt, c.args...).Scan(&raw); err != nil {
		return nil, translate(spec, err)
	}
	doc, err := store.Decode(spec, []byte(raw))
	if err != nil {
		return nil, domain.Internal(err)
	}
	return doc, nil
}

// DeleteOne removes the first match.
func (d *Driver) DeleteOne(ctx context.Context, spec *schema.Spec, filter query.Filter) (bool, error) {
	c := newCompiler(spec)
	where, err := c.where(filter)
	if err != nil {
		return false, domain.Internal(err)
	}

	stmt := fmt.Sprintf(
		"DELETE FROM %[1]s WHERE id = (SELECT id FROM %[1]s WHERE %[2]s ORDER BY rowid LIMIT 1)",
		c.table(), where,
	)
	res, err := d.db.ExecContext(ctx, stmt, c.args...)
	if err != nil {
		return false, translate(spec, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, translate(spec, err)
	}
	return n > 0, nil
}

// DB exposes the underlying handle for administrative tooling.
func (d *Driver) DB() *sql.DB {
	return d.db.db
}
