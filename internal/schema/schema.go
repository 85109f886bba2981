// Package schema describes persisted entities: their fields, constraints and indexes.
// Each entity package builds its Spec explicitly; there is no global registry.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the storage type of a field.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindBool
	KindTime
	KindID
	KindRef
	KindStringList
	KindRefList
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindBool:
		return "boolean"
	case KindTime:
		return "timestamp"
	case KindID:
		return "identity"
	case KindRef:
		return "reference"
	case KindStringList:
		return "string list"
	case KindRefList:
		return "reference list"
	default:
		return "unknown"
	}
}

// IsList reports whether values of this kind are arrays.
func (k Kind) IsList() bool {
	return k == KindStringList || k == KindRefList
}

// IsReference reports whether values of this kind hold entity ids.
func (k Kind) IsReference() bool {
	return k == KindRef || k == KindRefList
}

// Base field names carried by every entity.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldDeletedAt = "deletedAt"
	FieldCreatedBy = "createdBy"
	FieldUpdatedBy = "updatedBy"
)

// Field describes one persisted attribute.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	Default  any

	// Trim strips surrounding whitespace from strings before validation.
	Trim bool

	// MaxLength bounds string length in runes; zero means unbounded.
	MaxLength int

	// CaseInsensitive lowercases values on write and in equality filters.
	CaseInsensitive bool

	// Enum restricts string values.
	Enum []string

	Index  bool
	Unique bool

	// Sparse makes a unique index ignore rows where the field is absent.
	Sparse bool

	// Counter fields change only through atomic numeric deltas.
	Counter bool

	// Managed fields are maintained by the repository layer and rejected in caller patches.
	Managed bool

	// Ref is the target entity name for reference kinds.
	Ref string

	// Populate lists the target fields brought in when the reference is joined.
	Populate []string

	base bool
}

// IsBase reports whether the field belongs to the base entity contract.
func (f Field) IsBase() bool {
	return f.base
}

// Option mutates a field declaration.
type Option func(*Field)

// Required marks the field mandatory on create.
func Required(f *Field) {
	f.Required = true
}

// Trim strips whitespace from string values.
func Trim(f *Field) {
	f.Trim = true
}

// Indexed declares a non-unique index on the field.
func Indexed(f *Field) {
	f.Index = true
}

// Unique declares a unique index on the field.
func Unique(f *Field) {
	f.Unique = true
	f.Index = true
}

// UniqueWhenPresent declares a sparse unique index on the field.
func UniqueWhenPresent(f *Field) {
	f.Unique = true
	f.Sparse = true
	f.Index = true
}

// CaseInsensitive lowercases values on write and in equality filters.
func CaseInsensitive(f *Field) {
	f.CaseInsensitive = true
}

// Counter marks the field as an atomic counter defaulting to zero.
func Counter(f *Field) {
	f.Counter = true
	if f.Default == nil {
		f.Default = int64(0)
	}
}

// Managed hides the field from caller patches.
func Managed(f *Field) {
	f.Managed = true
}

// MaxLength bounds string length.
func MaxLength(n int) Option {
	return func(f *Field) { f.MaxLength = n }
}

// Default sets the value applied on create when the field is absent.
func Default(v any) Option {
	return func(f *Field) { f.Default = v }
}

// Enum restricts string values to the given set.
func Enum(values ...string) Option {
	return func(f *Field) { f.Enum = values }
}

// Populate sets the projection used when the reference is joined.
func Populate(fields ...string) Option {
	return func(f *Field) { f.Populate = fields }
}

func newField(name string, kind Kind, opts []Option) Field {
	f := Field{Name: name, Kind: kind}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// String declares a string field.
func String(name string, opts ...Option) Field { return newField(name, KindString, opts) }

// Int declares an integer field.
func Int(name string, opts ...Option) Field { return newField(name, KindInt, opts) }

// Bool declares a boolean field.
func Bool(name string, opts ...Option) Field { return newField(name, KindBool, opts) }

// Time declares a timestamp field.
func Time(name string, opts ...Option) Field { return newField(name, KindTime, opts) }

// StringList declares a set of strings.
func StringList(name string, opts ...Option) Field { return newField(name, KindStringList, opts) }

// Ref declares a reference to the target entity.
func Ref(name, target string, opts ...Option) Field {
	f := newField(name, KindRef, opts)
	f.Ref = target
	return f
}

// RefList declares a set of references to the target entity.
func RefList(name, target string, opts ...Option) Field {
	f := newField(name, KindRefList, opts)
	f.Ref = target
	return f
}

// IndexKey is one component of an index.
type IndexKey struct {
	Field string
	Desc  bool
}

// Index is a store-agnostic index declaration.
type Index struct {
	Name   string
	Keys   []IndexKey
	Unique bool
	Sparse bool
}

// Fields returns the names of the indexed fields.
func (ix Index) Fields() []string {
	names := make([]string, len(ix.Keys))
	for i, k := range ix.Keys {
		names[i] = k.Field
	}
	return names
}

// Spec is the schema of one entity type.
type Spec struct {
	entity     string
	collection string
	fields     []Field
	byName     map[string]int
	compound   []Index
}

// Builder accumulates field and index declarations.
type Builder struct {
	spec *Spec
	err  error
}

// New starts a Spec for the entity stored in the given collection.
func New(entity, collection string) *Builder {
	s := &Spec{
		entity:     entity,
		collection: collection,
		byName:     make(map[string]int),
	}
	b := &Builder{spec: s}
	b.add(Field{Name: FieldID, Kind: KindID, base: true})
	b.add(Field{Name: FieldCreatedAt, Kind: KindTime, Managed: true, base: true})
	b.add(Field{Name: FieldUpdatedAt, Kind: KindTime, Managed: true, base: true})
	b.add(Field{Name: FieldDeletedAt, Kind: KindTime, Managed: true, base: true})
	b.add(Field{Name: FieldCreatedBy, Kind: KindID, base: true})
	b.add(Field{Name: FieldUpdatedBy, Kind: KindID, base: true})
	return b
}

func (b *Builder) add(f Field) {
	if b.err != nil {
		return
	}
	if !ValidName(f.Name) {
		b.err = fmt.Errorf("schema %s: invalid field name %q", b.spec.entity, f.Name)
		return
	}
	if _, dup := b.spec.byName[f.Name]; dup {
		b.err = fmt.Errorf("schema %s: duplicate field %q", b.spec.entity, f.Name)
		return
	}
	if f.Kind.IsReference() && f.Ref == "" {
		b.err = fmt.Errorf("schema %s: reference field %q has no target", b.spec.entity, f.Name)
		return
	}
	b.spec.byName[f.Name] = len(b.spec.fields)
	b.spec.fields = append(b.spec.fields, f)
}

// Field declares a field.
func (b *Builder) Field(f Field) *Builder {
	b.add(f)
	return b
}

// Fields declares several fields.
func (b *Builder) Fields(fs ...Field) *Builder {
	for _, f := range fs {
		b.add(f)
	}
	return b
}

// Index declares a compound index. Keys prefixed with "-" are descending.
func (b *Builder) Index(name string, unique bool, keys ...string) *Builder {
	if b.err != nil {
		return b
	}
	ix := Index{Name: name, Unique: unique}
	for _, k := range keys {
		desc := strings.HasPrefix(k, "-")
		k = strings.TrimPrefix(k, "-")
		if _, ok := b.spec.byName[k]; !ok {
			b.err = fmt.Errorf("schema %s: index %s references unknown field %q", b.spec.entity, name, k)
			return b
		}
		ix.Keys = append(ix.Keys, IndexKey{Field: k, Desc: desc})
	}
	b.spec.compound = append(b.spec.compound, ix)
	return b
}

// Build returns the Spec or the first declaration error.
func (b *Builder) Build() (*Spec, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.spec, nil
}

// MustBuild returns the Spec and panics on declaration errors.
// Entity specs are static, so a failure here is a programming error.
func (b *Builder) MustBuild() *Spec {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

// Entity returns the logical entity name.
func (s *Spec) Entity() string { return s.entity }

// Collection returns the store collection name.
func (s *Spec) Collection() string { return s.collection }

// Fields returns every field, base fields first.
func (s *Spec) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a field by name.
func (s *Spec) Field(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Has reports whether the field is declared.
func (s *Spec) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// References returns the reference fields.
func (s *Spec) References() []Field {
	var out []Field
	for _, f := range s.fields {
		if f.Kind.IsReference() {
			out = append(out, f)
		}
	}
	return out
}

// Sortable returns the fields callers may order by when no explicit whitelist is given.
func (s *Spec) Sortable() []string {
	var out []string
	for _, f := range s.fields {
		if !f.Kind.IsList() {
			out = append(out, f.Name)
		}
	}
	return out
}

// Indexes derives the full index set: unique and index-flagged fields, reference fields,
// deletedAt for filtered reads, plus declared compound indexes.
func (s *Spec) Indexes() []Index {
	var out []Index
	seen := make(map[string]bool)
	add := func(ix Index) {
		if seen[ix.Name] {
			return
		}
		seen[ix.Name] = true
		out = append(out, ix)
	}

	for _, f := range s.fields {
		switch {
		case f.Unique:
			add(Index{
				Name:   IndexName(s.collection, "ux", f.Name),
				Keys:   []IndexKey{{Field: f.Name}},
				Unique: true,
				Sparse: f.Sparse,
			})
		case f.Index || f.Kind.IsReference() || f.Name == FieldDeletedAt:
			add(Index{
				Name: IndexName(s.collection, "ix", f.Name),
				Keys: []IndexKey{{Field: f.Name}},
			})
		}
	}
	for _, ix := range s.compound {
		add(ix)
	}
	return out
}

// IndexByName finds a derived index.
func (s *Spec) IndexByName(name string) (Index, bool) {
	for _, ix := range s.Indexes() {
		if strings.EqualFold(ix.Name, name) {
			return ix, true
		}
	}
	return Index{}, false
}

// IndexName builds a lowercase index identifier.
func IndexName(collection, prefix string, fields ...string) string {
	parts := append([]string{prefix, collection}, fields...)
	return strings.ToLower(strings.Join(parts, "_"))
}

// ValidName reports whether name is a plain identifier safe to embed in store paths.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Catalog resolves entity names to specs. It is an explicit value passed to whoever
// needs cross-entity lookups; nothing registers into it implicitly.
type Catalog struct {
	specs map[string]*Spec
}

// NewCatalog builds a catalog from specs.
func NewCatalog(specs ...*Spec) (*Catalog, error) {
	c := &Catalog{specs: make(map[string]*Spec, len(specs))}
	for _, s := range specs {
		if _, dup := c.specs[s.entity]; dup {
			return nil, fmt.Errorf("catalog: duplicate entity %s", s.entity)
		}
		c.specs[s.entity] = s
	}
	for _, s := range specs {
		for _, f := range s.References() {
			if _, ok := c.specs[f.Ref]; !ok {
				return nil, fmt.Errorf("catalog: %s.%s references unknown entity %s", s.entity, f.Name, f.Ref)
			}
		}
	}
	return c, nil
}

// SchemaOf returns the spec for an entity name.
func (c *Catalog) SchemaOf(entity string) (*Spec, bool) {
	s, ok := c.specs[entity]
	return s, ok
}

// All returns every spec ordered by entity name.
func (c *Catalog) All() []*Spec {
	out := make([]*Spec, 0, len(c.specs))
	for _, s := range c.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].entity < out[j].entity })
	return out
}
