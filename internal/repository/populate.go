package repository

import (
	"context"
	"fmt"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/schema"
	"github.com/prn-tf/inkwell/internal/store"
)

// population is a join path resolved against the catalog.
type population struct {
	field  schema.Field
	target *schema.Spec
	fields []string
}

// resolveJoin turns a join request into resolved paths. Default joins use the
// repository's registered spec.
func (b *Base[T]) resolveJoin(join query.Join) ([]population, error) {
	if !join.Enabled() {
		return nil, nil
	}
	paths := join.Paths
	if len(paths) == 0 {
		paths = b.def.DefaultJoin
	}

	out := make([]population, 0, len(paths))
	for _, p := range paths {
		f, ok := b.spec.Field(p.Path)
		if !ok || !f.Kind.IsReference() {
			return nil, domain.Invalid(b.spec.Entity(), domain.Violation{Field: p.Path, Message: "is not a reference"})
		}
		if p.Entity != "" && p.Entity != f.Ref {
			return nil, domain.Invalid(b.spec.Entity(), domain.Violation{
				Field:   p.Path,
				Message: fmt.Sprintf("references %s, not %s", f.Ref, p.Entity),
			})
		}
		target, ok := b.catalog.SchemaOf(f.Ref)
		if !ok {
			return nil, domain.Internal(fmt.Errorf("unknown reference target %s", f.Ref))
		}
		fields := p.Select
		if len(fields) == 0 {
			fields = f.Populate
		}
		for _, name := range fields {
			if !target.Has(name) {
				return nil, domain.Invalid(b.spec.Entity(), domain.Violation{
					Field:   p.Path,
					Message: fmt.Sprintf("cannot select unknown field %s.%s", f.Ref, name),
				})
			}
		}
		out = append(out, population{field: f, target: target, fields: fields})
	}
	return out, nil
}

// populate expands references in docs in place with one batched query per path.
// Targets are read without joins of their own, and soft-deleted targets stay as bare ids.
func (b *Base[T]) populate(ctx context.Context, docs []store.Document, paths []population) error {
	for _, p := range paths {
		ids := collectIDs(docs, p.field.Name)
		if len(ids) == 0 {
			continue
		}

		filter := query.All(query.In{Field: schema.FieldID, Values: ids}, b.notDeleted(false))
		targets, err := b.driver.FindMany(ctx, p.target, filter, store.FindOptions{})
		if err != nil {
			return domain.WithEntity(err, p.target.Entity())
		}

		byID := make(map[string]map[string]any, len(targets))
		for _, t := range targets {
			proj := map[string]any{schema.FieldID: t.ID()}
			for _, name := range p.fields {
				if v, ok := t[name]; ok {
					proj[name] = v
				}
			}
			byID[t.ID()] = proj
		}

		for _, doc := range docs {
			switch v := doc[p.field.Name].(type) {
			case string:
				if proj, ok := byID[v]; ok {
					doc[p.field.Name] = proj
				}
			case []any:
				expanded := make([]any, len(v))
				for i, item := range v {
					expanded[i] = item
					if id, ok := item.(string); ok {
						if proj, ok := byID[id]; ok {
							expanded[i] = proj
						}
					}
				}
				doc[p.field.Name] = expanded
			}
		}
	}
	return nil
}

func collectIDs(docs []store.Document, field string) []any {
	seen := make(map[string]bool)
	var ids []any
	add := func(v any) {
		id, ok := v.(string)
		if !ok || id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}
	for _, doc := range docs {
		switch v := doc[field].(type) {
		case string:
			add(v)
		case []any:
			for _, item := range v {
				add(item)
			}
		}
	}
	return ids
}

// project keeps id and the selected fields.
func project(doc store.Document, fields []string) {
	if len(fields) == 0 {
		return
	}
	keep := make(map[string]bool, len(fields)+1)
	keep[schema.FieldID] = true
	for _, f := range fields {
		keep[f] = true
	}
	for k := range doc {
		if !keep[k] {
			delete(doc, k)
		}
	}
}
