package sqlite

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/schema"
	"github.com/prn-tf/inkwell/internal/store"
)

func testSpec() *schema.Spec {
	return schema.New("Item", "items").
		Fields(
			schema.String("name", schema.Unique),
			schema.String("code", schema.UniqueWhenPresent),
			schema.StringList("tags", schema.Indexed),
			schema.Int("hits", schema.Counter),
			schema.Bool("active"),
			schema.Time("seenAt"),
		).
		Index("ix_items_active_seenat", false, "active", "-seenAt").
		MustBuild()
}

func newTestDriver(t *testing.T) (*Driver, *schema.Spec) {
	t.Helper()
	ctx := context.Background()

	d, err := Open(ctx, DefaultConfig(":memory:"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	spec := testSpec()
	require.NoError(t, d.EnsureCollection(ctx, spec))
	// idempotent
	require.NoError(t, d.EnsureCollection(ctx, spec))
	return d, spec
}

func TestConfig_DSN(t *testing.T) {
	dsn := DefaultConfig("/var/lib/blog/blog.db").DSN()
	require.Contains(t, dsn, "file:/var/lib/blog/blog.db?")
	require.Contains(t, dsn, "_pragma=busy_timeout%285000%29")
	require.Contains(t, dsn, "_pragma=journal_mode%28WAL%29")

	mem := DefaultConfig(":memory:")
	require.Equal(t, 0, int(mem.ConnMaxLifetime))
	require.Contains(t, mem.DSN(), "file::memory:?")
}

func TestCompiler_Where(t *testing.T) {
	spec := testSpec()

	tests := []struct {
		name     string
		filter   query.Filter
		wantSQL  string
		wantArgs []any
	}{
		{name: "nil", filter: nil, wantSQL: "1"},
		{
			name:     "eq on id uses the column",
			filter:   query.Eq{Field: "id", Value: "x"},
			wantSQL:  "id = ?",
			wantArgs: []any{"x"},
		},
		{
			name:     "eq bool binds an integer",
			filter:   query.Eq{Field: "active", Value: true},
			wantSQL:  "json_extract(doc, '$.active') = ?",
			wantArgs: []any{1},
		},
		{
			name:    "eq nil",
			filter:  query.Eq{Field: "code", Value: nil},
			wantSQL: "json_extract(doc, '$.code') IS NULL",
		},
		{
			name:     "eq on list becomes has",
			filter:   query.Eq{Field: "tags", Value: "go"},
			wantSQL:  "EXISTS (SELECT 1 FROM json_each(doc, '$.tags') WHERE value = ?)",
			wantArgs: []any{"go"},
		},
		{
			name:     "in with null",
			filter:   query.In{Field: "code", Values: []any{"a", nil}},
			wantSQL:  "(json_extract(doc, '$.code') IN (?) OR json_extract(doc, '$.code') IS NULL)",
			wantArgs: []any{"a"},
		},
		{name: "empty in", filter: query.In{Field: "code"}, wantSQL: "0"},
		{
			name:     "in on list",
			filter:   query.In{Field: "tags", Values: []any{"a", "b"}},
			wantSQL:  "EXISTS (SELECT 1 FROM json_each(doc, '$.tags') WHERE value IN (?, ?))",
			wantArgs: []any{"a", "b"},
		},
		{
			name:     "search disjunction with soft delete",
			filter:   query.And{query.Or{query.Contains{Field: "name", Substring: "Go"}}, query.Exists{Field: "deletedAt"}},
			wantSQL:  "((instr(inkwell_fold(json_extract(doc, '$.name')), ?) > 0) AND json_extract(doc, '$.deletedAt') IS NULL)",
			wantArgs: []any{"go"},
		},
		{name: "empty or", filter: query.Or{}, wantSQL: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCompiler(spec)
			sql, err := c.where(tt.filter)
			require.NoError(t, err)
			require.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				require.Empty(t, c.args)
			} else {
				require.Equal(t, tt.wantArgs, c.args)
			}
		})
	}

	_, err := newCompiler(spec).where(query.Eq{Field: "x') OR 1=1 --", Value: 1})
	require.Error(t, err)
}

func TestCompiler_SetExpr(t *testing.T) {
	c := newCompiler(testSpec())
	expr, err := c.setExpr(store.Update{
		Set:   map[string]any{"name": "b", "active": true},
		Unset: []string{"code"},
		Inc:   map[string]int64{"hits": 2},
	})
	require.NoError(t, err)
	require.Equal(t,
		"json_set(json_remove(json_set(doc, '$.active', json(?), '$.name', json(?)), '$.code'), "+
			"'$.hits', COALESCE(json_extract(doc, '$.hits'), 0) + ?)",
		expr)
	require.Equal(t, []any{"true", `"b"`, int64(2)}, c.args)
}

func TestCompiler_CreateIndex(t *testing.T) {
	spec := testSpec()
	c := newCompiler(spec)

	ix, ok := spec.IndexByName("ux_items_name")
	require.True(t, ok)
	ddl, err := c.createIndex(ix)
	require.NoError(t, err)
	require.Equal(t, `CREATE UNIQUE INDEX IF NOT EXISTS "ux_items_name" ON "items" (json_extract(doc, '$.name'))`, ddl)

	ix, _ = spec.IndexByName("ix_items_active_seenat")
	ddl, err = c.createIndex(ix)
	require.NoError(t, err)
	require.Equal(t, `CREATE INDEX IF NOT EXISTS "ix_items_active_seenat" ON "items" (json_extract(doc, '$.active'), json_extract(doc, '$.seenAt') DESC)`, ddl)

	ix, _ = spec.IndexByName("ix_items_tags")
	ddl, err = c.createIndex(ix)
	require.NoError(t, err)
	require.Empty(t, ddl)
}

func TestDriver_RoundTrip(t *testing.T) {
	ctx := context.Background()
	d, spec := newTestDriver(t)

	in := store.Document{
		"name":   "a",
		"tags":   []any{"go", "db"},
		"hits":   int64(7),
		"active": true,
		"seenAt": "2024-01-02T03:04:05.000000006Z",
	}
	stored, err := d.InsertOne(ctx, spec, in)
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID())

	got, err := d.FindOne(ctx, spec, query.Eq{Field: "id", Value: stored.ID()}, nil)
	require.NoError(t, err)
	require.Equal(t, stored, got)
	require.IsType(t, int64(0), got["hits"])

	for _, f := range []query.Filter{
		query.Eq{Field: "active", Value: true},
		query.Has{Field: "tags", Value: "db"},
		query.Contains{Field: "name", Substring: "A"},
		query.Exists{Field: "code", Present: false},
		query.In{Field: "hits", Values: []any{int64(1), int64(7)}},
	} {
		n, err := d.Count(ctx, spec, f)
		require.NoError(t, err)
		require.Equal(t, int64(1), n, "%#v", f)
	}

	_, err = d.FindOne(ctx, spec, query.Eq{Field: "name", Value: "zz"}, nil)
	require.ErrorIs(t, err, store.ErrNoDocument)
}

func TestDriver_ContainsFoldsUnicode(t *testing.T) {
	ctx := context.Background()
	d, spec := newTestDriver(t)

	for _, name := range []string{"Café Crème", "ÉCOLE", "plain"} {
		_, err := d.InsertOne(ctx, spec, store.Document{"name": name})
		require.NoError(t, err)
	}

	tests := []struct {
		substring string
		want      int64
	}{
		{"CAFÉ", 1},
		{"crème", 1},
		{"école", 1},
		{"É", 2},
		{"PLAIN", 1},
		{"ß", 0},
	}
	for _, tt := range tests {
		n, err := d.Count(ctx, spec, query.Contains{Field: "name", Substring: tt.substring})
		require.NoError(t, err)
		require.Equal(t, tt.want, n, tt.substring)
	}
}

func TestDriver_SortSkipLimit(t *testing.T) {
	ctx := context.Background()
	d, spec := newTestDriver(t)
	for i, name := range []string{"c", "a", "e", "b", "d"} {
		_, err := d.InsertOne(ctx, spec, store.Document{"name": name, "hits": int64(i % 2)})
		require.NoError(t, err)
	}

	docs, err := d.FindMany(ctx, spec, nil, store.FindOptions{
		Sort:  []query.SortKey{query.OrderByDesc("hits"), query.OrderBy("name")},
		Skip:  1,
		Limit: 3,
	})
	require.NoError(t, err)
	names := make([]string, 0, len(docs))
	for _, doc := range docs {
		names = append(names, doc["name"].(string))
	}
	// hits=1: a, b; hits=0: c, d, e
	require.Equal(t, []string{"b", "c", "d"}, names)

	docs, err = d.FindMany(ctx, spec, nil, store.FindOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 5)
	require.Equal(t, "c", docs[0]["name"])
}

func TestDriver_UniqueViolations(t *testing.T) {
	ctx := context.Background()
	d, spec := newTestDriver(t)

	first, err := d.InsertOne(ctx, spec, store.Document{"name": "a"})
	require.NoError(t, err)

	_, err = d.InsertOne(ctx, spec, store.Document{"name": "a"})
	require.ErrorIs(t, err, domain.ErrConflict)
	require.Equal(t, "name", domain.FieldOf(err))

	_, err = d.InsertOne(ctx, spec, store.Document{"id": first.ID(), "name": "b"})
	require.ErrorIs(t, err, domain.ErrConflict)
	require.Equal(t, "id", domain.FieldOf(err))

	// absent values never collide
	_, err = d.InsertOne(ctx, spec, store.Document{"name": "c"})
	require.NoError(t, err)

	n, err := d.Count(ctx, spec, query.Eq{Field: "name", Value: "a"})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestDriver_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	d, spec := newTestDriver(t)

	doc, err := d.InsertOne(ctx, spec, store.Document{"name": "a", "active": true, "code": "X"})
	require.NoError(t, err)
	byID := query.Eq{Field: "id", Value: doc.ID()}

	after, err := d.UpdateOne(ctx, spec, byID, store.Update{
		Set:   map[string]any{"name": "b", "tags": []any{"x"}},
		Unset: []string{"code"},
		Inc:   map[string]int64{"hits": 2},
	})
	require.NoError(t, err)
	require.Equal(t, "b", after["name"])
	require.Equal(t, []any{"x"}, after["tags"])
	require.Equal(t, true, after["active"])
	require.Equal(t, int64(2), after["hits"])
	require.NotContains(t, after, "code")

	_, err = d.UpdateOne(ctx, spec, query.Eq{Field: "id", Value: "nope"}, store.Update{Inc: map[string]int64{"hits": 1}})
	require.ErrorIs(t, err, store.ErrNoDocument)

	deleted, err := d.DeleteOne(ctx, spec, byID)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = d.DeleteOne(ctx, spec, byID)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestDriver_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	d, spec := newTestDriver(t)

	doc, err := d.InsertOne(ctx, spec, store.Document{"name": "a", "hits": int64(0)})
	require.NoError(t, err)
	byID := query.Eq{Field: "id", Value: doc.ID()}

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.UpdateOne(ctx, spec, byID, store.Update{Inc: map[string]int64{"hits": 1}}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := d.FindOne(ctx, spec, byID, nil)
	require.NoError(t, err)
	require.Equal(t, int64(50), got["hits"])
}
