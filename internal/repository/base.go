package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/schema"
	"github.com/prn-tf/inkwell/internal/store"
)

// Settings are the repository knobs read from configuration.
type Settings struct {
	DefaultLimit int
	MaxLimit     int

	// SoftDelete turns SoftDeleteOneByID into a hard delete when false.
	SoftDelete bool
}

// DefaultSettings returns the settings used when configuration is silent.
func DefaultSettings() Settings {
	return Settings{
		DefaultLimit: query.DefaultLimit,
		MaxLimit:     query.MaxLimit,
		SoftDelete:   true,
	}
}

// Backend bundles what every repository needs. One Backend is shared by all
// repositories of a process.
type Backend struct {
	Driver   store.Driver
	Catalog  *schema.Catalog
	Settings Settings
	Clock    *Clock
	Logger   zerolog.Logger
}

// NewBackend creates a Backend with a wall clock.
func NewBackend(driver store.Driver, catalog *schema.Catalog, settings Settings, logger zerolog.Logger) *Backend {
	return &Backend{
		Driver:   driver,
		Catalog:  catalog,
		Settings: settings,
		Clock:    NewClock(nil),
		Logger:   logger,
	}
}

// Definition declares how a domain repository reads its entity.
type Definition struct {
	Entity string

	// DefaultJoin is applied when a read asks for the default join.
	DefaultJoin []query.Populate

	// SearchFields are always searched, in addition to the fields a caller names.
	SearchFields []string

	// SortFields whitelists paginated sorts when the caller supplies none.
	// Empty means every scalar field of the entity.
	SortFields []string

	// DefaultSortField sorts paginated reads descending when no valid sort is requested.
	// Empty means createdAt.
	DefaultSortField string
}

// updateHook adjusts a pending update before it is sent to the store.
// now is the canonical timestamp of the mutation.
type updateHook func(u *store.Update, now string)

// Base is the generic repository over entity type T. It owns soft-delete
// composition, pagination, sorting, search and join resolution; domain
// repositories only add named queries on top.
type Base[T any] struct {
	driver   store.Driver
	catalog  *schema.Catalog
	spec     *schema.Spec
	def      Definition
	settings Settings
	clock    *Clock
	hooks    []updateHook
	logger   zerolog.Logger
}

// NewBase creates a Base for def.Entity. It panics when the entity is not in the
// catalog, which is a wiring error.
func NewBase[T any](b *Backend, def Definition) *Base[T] {
	spec, ok := b.Catalog.SchemaOf(def.Entity)
	if !ok {
		panic(fmt.Sprintf("repository: entity %s is not in the catalog", def.Entity))
	}
	if def.DefaultSortField == "" {
		def.DefaultSortField = schema.FieldCreatedAt
	}
	settings := b.Settings
	if settings.DefaultLimit <= 0 {
		settings.DefaultLimit = query.DefaultLimit
	}
	if settings.MaxLimit <= 0 {
		settings.MaxLimit = query.MaxLimit
	}
	clock := b.Clock
	if clock == nil {
		clock = NewClock(nil)
	}
	return &Base[T]{
		driver:   b.Driver,
		catalog:  b.Catalog,
		spec:     spec,
		def:      def,
		settings: settings,
		clock:    clock,
		logger:   b.Logger.With().Str("repository", def.Entity).Logger(),
	}
}

// Spec returns the entity metadata.
func (b *Base[T]) Spec() *schema.Spec {
	return b.spec
}

// onUpdate registers a hook run on every create and update.
func (b *Base[T]) onUpdate(h updateHook) {
	b.hooks = append(b.hooks, h)
}

// =============================================================================
// Reads
// =============================================================================

// FindOneByID returns the entity with id. Soft-deleted rows are NotFound unless
// WithDeleted is given.
func (b *Base[T]) FindOneByID(ctx context.Context, id domain.ID, opts ...query.Option) (*T, error) {
	return b.FindOne(ctx, query.Eq{Field: schema.FieldID, Value: string(id)}, opts...)
}

// FindOne returns the first match of filter under the requested order.
func (b *Base[T]) FindOne(ctx context.Context, filter query.Filter, opts ...query.Option) (*T, error) {
	o := query.Apply(opts...)
	effective, err := b.readFilter(filter, o.WithDeleted)
	if err != nil {
		return nil, err
	}
	sort, err := b.plainSort(o.Order)
	if err != nil {
		return nil, err
	}

	doc, err := b.driver.FindOne(ctx, b.spec, effective, sort)
	if err != nil {
		if isNoDocument(err) {
			return nil, domain.NotFound(b.spec.Entity(), "no matching row")
		}
		return nil, b.storeErr(err)
	}

	out, err := b.finish(ctx, []store.Document{doc}, o)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// List returns matches of filter as a plain list capped at the configured maximum.
func (b *Base[T]) List(ctx context.Context, filter query.Filter, opts ...query.Option) ([]*T, error) {
	o := query.Apply(opts...)
	limit := o.Limit
	if limit <= 0 || limit > b.settings.MaxLimit {
		limit = b.settings.MaxLimit
	}
	return b.list(ctx, filter, o, limit)
}

// ListAll returns every match of filter. It is meant for administrative paths;
// public paths use List or ListPaginated.
func (b *Base[T]) ListAll(ctx context.Context, filter query.Filter, opts ...query.Option) ([]*T, error) {
	o := query.Apply(opts...)
	return b.list(ctx, filter, o, o.Limit)
}

func (b *Base[T]) list(ctx context.Context, filter query.Filter, o query.Options, limit int) ([]*T, error) {
	effective, err := b.readFilter(filter, o.WithDeleted)
	if err != nil {
		return nil, err
	}
	sort, err := b.plainSort(o.Order)
	if err != nil {
		return nil, err
	}

	docs, err := b.driver.FindMany(ctx, b.spec, effective, store.FindOptions{Sort: sort, Limit: limit})
	if err != nil {
		return nil, b.storeErr(err)
	}
	return b.finish(ctx, docs, o)
}

// ListPaginated returns one page of matches. The search string expands into a
// case-insensitive substring disjunction over the requested and default search
// fields, conjoined with filter. Pages past the end are empty, never an error.
func (b *Base[T]) ListPaginated(ctx context.Context, filter query.Filter, p query.Pagination, opts ...query.Option) (*query.Page[*T], error) {
	o := query.Apply(opts...)
	p = p.Normalize(b.settings.DefaultLimit, b.settings.MaxLimit)

	search, err := b.searchFilter(p)
	if err != nil {
		return nil, err
	}
	effective, err := b.readFilter(query.All(filter, search), o.WithDeleted)
	if err != nil {
		return nil, err
	}

	requested := p.Sort
	if len(requested) == 0 {
		requested = o.Order
	}
	allowed := o.AvailableSortFields
	if len(allowed) == 0 {
		allowed = b.def.SortFields
	}
	if len(allowed) == 0 {
		allowed = b.spec.Sortable()
	}
	defaultField := o.DefaultSortField
	if defaultField == "" {
		defaultField = b.def.DefaultSortField
	}
	sort := query.ResolveSort(requested, allowed, defaultField, schema.FieldID)

	total, err := b.driver.Count(ctx, b.spec, effective)
	if err != nil {
		return nil, b.storeErr(err)
	}
	page := &query.Page[*T]{
		Data:       []*T{},
		Pagination: query.NewPageInfo(p.Page, p.Limit, total),
	}
	if total == 0 || p.Page > page.Pagination.TotalPages || int64(p.Offset()) >= total {
		return page, nil
	}

	docs, err := b.driver.FindMany(ctx, b.spec, effective, store.FindOptions{
		Sort:  sort,
		Skip:  p.Offset(),
		Limit: p.Limit,
	})
	if err != nil {
		return nil, b.storeErr(err)
	}
	page.Data, err = b.finish(ctx, docs, o)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// FindAll dispatches to ListPaginated when pagination is requested and to List otherwise.
func (b *Base[T]) FindAll(ctx context.Context, filter query.Filter, opts ...query.Option) (query.Listing[*T], error) {
	o := query.Apply(opts...)
	if o.Pagination != nil {
		page, err := b.ListPaginated(ctx, filter, *o.Pagination, opts...)
		if err != nil {
			return query.Listing[*T]{}, err
		}
		return query.Listing[*T]{Items: page.Data, Page: &page.Pagination}, nil
	}
	items, err := b.List(ctx, filter, opts...)
	if err != nil {
		return query.Listing[*T]{}, err
	}
	return query.Listing[*T]{Items: items}, nil
}

// Count returns the number of matches, honoring the soft-delete policy.
func (b *Base[T]) Count(ctx context.Context, filter query.Filter, opts ...query.Option) (int64, error) {
	o := query.Apply(opts...)
	effective, err := b.readFilter(filter, o.WithDeleted)
	if err != nil {
		return 0, err
	}
	n, err := b.driver.Count(ctx, b.spec, effective)
	if err != nil {
		return 0, b.storeErr(err)
	}
	return n, nil
}

// finish applies joins and projection, then decodes.
func (b *Base[T]) finish(ctx context.Context, docs []store.Document, o query.Options) ([]*T, error) {
	paths, err := b.resolveJoin(o.Join)
	if err != nil {
		return nil, err
	}
	for _, f := range o.Select {
		if !b.spec.Has(f) {
			return nil, domain.Invalid(b.spec.Entity(), domain.Violation{Field: f, Message: "is not a known field"})
		}
	}
	if err := b.populate(ctx, docs, paths); err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(docs))
	for _, doc := range docs {
		project(doc, o.Select)
		e, err := fromDocument[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// =============================================================================
// Filter composition
// =============================================================================

// notDeleted is the soft-delete predicate, or nil when deleted rows are visible.
func (b *Base[T]) notDeleted(withDeleted bool) query.Filter {
	if withDeleted || !b.settings.SoftDelete {
		return nil
	}
	return query.NotDeleted(schema.FieldDeletedAt)
}

// readFilter validates and canonicalizes filter, then conjoins the soft-delete
// predicate. The predicate is conjoined rather than merged, so no caller filter
// can widen the result to deleted rows.
func (b *Base[T]) readFilter(filter query.Filter, withDeleted bool) (query.Filter, error) {
	canonical, err := b.canonicalFilter(filter)
	if err != nil {
		return nil, err
	}
	return query.All(canonical, b.notDeleted(withDeleted)), nil
}

func (b *Base[T]) canonicalFilter(filter query.Filter) (query.Filter, error) {
	var violations []domain.Violation
	for _, name := range query.Fields(filter) {
		if !b.spec.Has(name) {
			violations = append(violations, domain.Violation{Field: name, Message: "is not a known field"})
		}
	}
	if len(violations) > 0 {
		return nil, domain.Invalid(b.spec.Entity(), violations...)
	}

	return query.Map(filter, func(f query.Filter) (query.Filter, error) {
		switch t := f.(type) {
		case query.Eq:
			v, err := b.coerceElement(t.Field, t.Value)
			if err != nil {
				return nil, err
			}
			t.Value = v
			return t, nil
		case query.Has:
			v, err := b.coerceElement(t.Field, t.Value)
			if err != nil {
				return nil, err
			}
			t.Value = v
			return t, nil
		case query.In:
			values := make([]any, 0, len(t.Values))
			for _, raw := range t.Values {
				v, err := b.coerceElement(t.Field, raw)
				if err != nil {
					return nil, err
				}
				values = append(values, v)
			}
			t.Values = values
			return t, nil
		default:
			return f, nil
		}
	})
}

// coerceElement converts a filter operand to the stored form of one element of field.
func (b *Base[T]) coerceElement(field string, v any) (any, error) {
	f, _ := b.spec.Field(field)
	switch f.Kind {
	case schema.KindStringList:
		f.Kind = schema.KindString
	case schema.KindRefList:
		f.Kind = schema.KindRef
	}
	out, err := f.Coerce(v)
	if err != nil {
		return nil, domain.Invalid(b.spec.Entity(), domain.Violation{Field: field, Message: err.Error()})
	}
	return out, nil
}

func (b *Base[T]) searchFilter(p query.Pagination) (query.Filter, error) {
	if p.Search == "" {
		return nil, nil
	}
	fields := make([]string, 0, len(p.SearchFields)+len(b.def.SearchFields))
	for _, f := range p.SearchFields {
		field, ok := b.spec.Field(f)
		if !ok || field.Kind != schema.KindString {
			return nil, domain.Invalid(b.spec.Entity(), domain.Violation{Field: f, Message: "is not searchable"})
		}
		fields = append(fields, f)
	}
	fields = append(fields, b.def.SearchFields...)
	return query.Search(p.Search, fields), nil
}

// plainSort validates an explicit order for plain lists and appends the id tie-break.
// Without an order, plain lists use the default sort field descending.
func (b *Base[T]) plainSort(order []query.SortKey) ([]query.SortKey, error) {
	for _, k := range order {
		f, ok := b.spec.Field(k.Field)
		if !ok || f.Kind.IsList() {
			return nil, domain.Invalid(b.spec.Entity(), domain.Violation{Field: k.Field, Message: "is not sortable"})
		}
	}
	allowed := make([]string, 0, len(order))
	for _, k := range order {
		allowed = append(allowed, k.Field)
	}
	return query.ResolveSort(order, allowed, b.def.DefaultSortField, schema.FieldID), nil
}

// =============================================================================
// Writes
// =============================================================================

// Create inserts entity. The repository assigns id and timestamps, applies
// defaults, resets counters and checks that referenced rows exist.
func (b *Base[T]) Create(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, domain.Invalid(b.spec.Entity(), domain.Violation{Field: schema.FieldID, Message: "record is required"})
	}
	fields, err := toFields(entity)
	if err != nil {
		return nil, domain.Internal(err)
	}

	doc := store.Document{}
	for name, v := range fields {
		f, ok := b.spec.Field(name)
		if ok && (f.Managed || f.Counter || name == schema.FieldID) {
			continue
		}
		doc[name] = v
	}
	if violations := b.spec.Canonicalize(doc); len(violations) > 0 {
		return nil, invalid(b.spec.Entity(), violations)
	}
	b.spec.ApplyDefaults(doc)
	if violations := b.spec.Validate(doc, true); len(violations) > 0 {
		return nil, invalid(b.spec.Entity(), violations)
	}
	if err := b.checkReferences(ctx, doc); err != nil {
		return nil, err
	}

	now := schema.FormatTime(b.clock.Now())
	u := store.Update{Set: doc}
	b.runHooks(&u, now)
	for _, name := range u.Unset {
		delete(doc, name)
	}
	doc[schema.FieldCreatedAt] = now
	doc[schema.FieldUpdatedAt] = now

	stored, err := b.driver.InsertOne(ctx, b.spec, doc)
	if err != nil {
		return nil, b.storeErr(err)
	}
	b.logger.Debug().Str("id", stored.ID()).Msg("created")
	return fromDocument[T](stored)
}

// UpdateOneByID applies patch to the live row with id and returns the result.
// Deleted rows are NotFound unless WithDeleted is given. updatedAt always moves forward.
func (b *Base[T]) UpdateOneByID(ctx context.Context, id domain.ID, patch Patch, opts ...query.Option) (*T, error) {
	o := query.Apply(opts...)

	u, err := b.buildUpdate(ctx, patch)
	if err != nil {
		return nil, err
	}
	now := schema.FormatTime(b.clock.Now())
	b.runHooks(&u, now)
	if u.Set == nil {
		u.Set = map[string]any{}
	}
	u.Set[schema.FieldUpdatedAt] = now

	filter := query.All(query.Eq{Field: schema.FieldID, Value: string(id)}, b.notDeleted(o.WithDeleted))
	doc, err := b.driver.UpdateOne(ctx, b.spec, filter, u)
	if err != nil {
		if isNoDocument(err) {
			return nil, domain.NotFound(b.spec.Entity(), "no live row with id "+string(id))
		}
		return nil, b.storeErr(err)
	}

	out, err := b.finish(ctx, []store.Document{doc}, o)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (b *Base[T]) buildUpdate(ctx context.Context, patch Patch) (store.Update, error) {
	switch p := patch.(type) {
	case SetFields:
		return b.setUpdate(ctx, p, false)
	case managedSet:
		return b.setUpdate(ctx, p, true)
	case IncCounters:
		var violations []domain.Violation
		inc := make(map[string]int64, len(p))
		for name, delta := range p {
			f, ok := b.spec.Field(name)
			if !ok || !f.Counter {
				violations = append(violations, domain.Violation{Field: name, Message: "is not a counter"})
				continue
			}
			inc[name] = delta
		}
		if len(violations) > 0 {
			return store.Update{}, domain.Invalid(b.spec.Entity(), violations...)
		}
		return store.Update{Inc: inc}, nil
	case Replace:
		return b.replaceUpdate(ctx, p)
	case nil:
		return store.Update{}, domain.Invalid(b.spec.Entity(), domain.Violation{Message: "patch is required"})
	default:
		return store.Update{}, domain.Internal(fmt.Errorf("unsupported patch %T", patch))
	}
}

// setUpdate validates a field write. managed allows writing managed fields.
func (b *Base[T]) setUpdate(ctx context.Context, fields map[string]any, managed bool) (store.Update, error) {
	var violations []schema.Violation
	doc := make(map[string]any, len(fields))
	for name, v := range fields {
		f, ok := b.spec.Field(name)
		switch {
		case !ok:
			violations = append(violations, schema.Violation{Field: name, Message: "is not a known field"})
		case f.Counter:
			violations = append(violations, schema.Violation{Field: name, Message: "can only change by increments"})
		case name == schema.FieldID || (f.Managed && (!managed || f.IsBase())):
			violations = append(violations, schema.Violation{Field: name, Message: "is managed by the repository"})
		default:
			doc[name] = v
		}
	}
	if len(violations) > 0 {
		return store.Update{}, invalid(b.spec.Entity(), violations)
	}
	if violations := b.spec.Canonicalize(doc); len(violations) > 0 {
		return store.Update{}, invalid(b.spec.Entity(), violations)
	}
	if violations := b.spec.Validate(doc, false); len(violations) > 0 {
		return store.Update{}, invalid(b.spec.Entity(), violations)
	}
	if err := b.checkReferences(ctx, doc); err != nil {
		return store.Update{}, err
	}
	return splitNulls(doc), nil
}

// replaceUpdate overwrites every writable field; fields missing from the record are cleared.
func (b *Base[T]) replaceUpdate(ctx context.Context, p Replace) (store.Update, error) {
	record, ok := asRecord[T](p.Record)
	if !ok {
		return store.Update{}, domain.Internal(fmt.Errorf("replace record %T is not a %s", p.Record, b.spec.Entity()))
	}
	fields, err := toFields(record)
	if err != nil {
		return store.Update{}, domain.Internal(err)
	}

	doc := make(map[string]any)
	for _, f := range b.spec.Fields() {
		if f.Counter || f.Managed || f.Name == schema.FieldID || f.Name == schema.FieldCreatedBy {
			continue
		}
		doc[f.Name] = fields[f.Name]
	}
	if violations := b.spec.Canonicalize(doc); len(violations) > 0 {
		return store.Update{}, invalid(b.spec.Entity(), violations)
	}
	b.spec.ApplyDefaults(doc)
	if violations := b.spec.Validate(doc, true); len(violations) > 0 {
		return store.Update{}, invalid(b.spec.Entity(), violations)
	}
	if err := b.checkReferences(ctx, doc); err != nil {
		return store.Update{}, err
	}
	return splitNulls(doc), nil
}

// splitNulls moves nil values from Set to Unset.
func splitNulls(doc map[string]any) store.Update {
	u := store.Update{Set: make(map[string]any, len(doc))}
	for name, v := range doc {
		if v == nil {
			u.Unset = append(u.Unset, name)
			continue
		}
		u.Set[name] = v
	}
	slices.Sort(u.Unset)
	return u
}

func (b *Base[T]) runHooks(u *store.Update, now string) {
	for _, h := range b.hooks {
		h(u, now)
	}
}

// checkReferences verifies that every reference in doc names a live row of its target.
func (b *Base[T]) checkReferences(ctx context.Context, doc map[string]any) error {
	var violations []domain.Violation
	for _, f := range b.spec.References() {
		var ids []any
		switch v := doc[f.Name].(type) {
		case string:
			ids = []any{v}
		case []any:
			ids = v
		}
		if len(ids) == 0 {
			continue
		}
		target, ok := b.catalog.SchemaOf(f.Ref)
		if !ok {
			return domain.Internal(fmt.Errorf("unknown reference target %s", f.Ref))
		}
		filter := query.All(query.In{Field: schema.FieldID, Values: ids}, b.notDeleted(false))
		n, err := b.driver.Count(ctx, target, filter)
		if err != nil {
			return b.storeErr(err)
		}
		if n != int64(len(ids)) {
			violations = append(violations, domain.Violation{
				Field:   f.Name,
				Message: "references a missing " + f.Ref,
			})
		}
	}
	if len(violations) > 0 {
		return domain.Invalid(b.spec.Entity(), violations...)
	}
	return nil
}

// SoftDeleteOneByID marks the live row with id deleted and reports whether it changed.
// With soft delete disabled it removes the row instead.
func (b *Base[T]) SoftDeleteOneByID(ctx context.Context, id domain.ID) (bool, error) {
	if !b.settings.SoftDelete {
		return b.DeleteOneByID(ctx, id)
	}
	now := schema.FormatTime(b.clock.Now())
	filter := query.All(query.Eq{Field: schema.FieldID, Value: string(id)}, query.NotDeleted(schema.FieldDeletedAt))
	return b.mark(ctx, filter, store.Update{Set: map[string]any{
		schema.FieldDeletedAt: now,
		schema.FieldUpdatedAt: now,
	}})
}

// RestoreOneByID clears deletedAt on the row with id and reports whether it changed.
func (b *Base[T]) RestoreOneByID(ctx context.Context, id domain.ID) (bool, error) {
	now := schema.FormatTime(b.clock.Now())
	filter := query.All(
		query.Eq{Field: schema.FieldID, Value: string(id)},
		query.Exists{Field: schema.FieldDeletedAt, Present: true},
	)
	return b.mark(ctx, filter, store.Update{
		Set:   map[string]any{schema.FieldUpdatedAt: now},
		Unset: []string{schema.FieldDeletedAt},
	})
}

func (b *Base[T]) mark(ctx context.Context, filter query.Filter, u store.Update) (bool, error) {
	doc, err := b.driver.UpdateOne(ctx, b.spec, filter, u)
	if err != nil {
		if isNoDocument(err) {
			return false, nil
		}
		return false, b.storeErr(err)
	}
	b.logger.Debug().Str("id", doc.ID()).Bool("deleted", doc[schema.FieldDeletedAt] != nil).Msg("soft delete state changed")
	return true, nil
}

// DeleteOneByID removes the row with id regardless of its soft-delete state.
func (b *Base[T]) DeleteOneByID(ctx context.Context, id domain.ID) (bool, error) {
	deleted, err := b.driver.DeleteOne(ctx, b.spec, query.Eq{Field: schema.FieldID, Value: string(id)})
	if err != nil {
		return false, b.storeErr(err)
	}
	if deleted {
		b.logger.Info().Str("id", string(id)).Msg("hard deleted")
	}
	return deleted, nil
}

// storeErr stamps the entity on driver errors and logs internal ones.
func (b *Base[T]) storeErr(err error) error {
	err = domain.WithEntity(err, b.spec.Entity())
	if errors.Is(err, domain.ErrInternal) {
		b.logger.Error().Err(err).Msg("store operation failed")
	}
	return err
}

// now is exposed to domain repositories for managed timestamps.
func (b *Base[T]) now() time.Time {
	return b.clock.Now()
}
