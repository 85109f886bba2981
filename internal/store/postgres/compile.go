package postgres

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/schema"
	"github.com/prn-tf/inkwell/internal/store"
)

// compiler renders the query vocabulary as PostgreSQL over a (seq, id, doc jsonb) table.
// Field names are checked with schema.ValidName before being inlined; values are bound.
type compiler struct {
	spec *schema.Spec
	args []any
}

func newCompiler(spec *schema.Spec) *compiler {
	return &compiler{spec: spec}
}

func (c *compiler) table() string {
	return pgx.Identifier{c.spec.Collection()}.Sanitize()
}

func (c *compiler) bind(v any) string {
	c.args = append(c.args, v)
	return "$" + strconv.Itoa(len(c.args))
}

func (c *compiler) bindJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode filter value: %w", err)
	}
	return c.bind(string(raw)) + "::jsonb", nil
}

func checkName(field string) error {
	if !schema.ValidName(field) {
		return fmt.Errorf("invalid field name %q", field)
	}
	return nil
}

// jsonCol is the jsonb value of a field; textCol its text form, which the indexes use.
func jsonCol(field string) string { return "doc->'" + field + "'" }
func textCol(field string) string { return "doc->>'" + field + "'" }

func isNull(field string) string {
	return "COALESCE(jsonb_typeof(" + jsonCol(field) + "), 'null') = 'null'"
}

// where renders a filter. A nil filter renders as "TRUE".
func (c *compiler) where(f query.Filter) (string, error) {
	switch t := f.(type) {
	case nil:
		return "TRUE", nil
	case query.And:
		return c.join(t, " AND ", "TRUE")
	case query.Or:
		return c.join(t, " OR ", "FALSE")
	case query.Eq:
		if err := checkName(t.Field); err != nil {
			return "", err
		}
		if t.Field == schema.FieldID {
			if t.Value == nil {
				return "FALSE", nil
			}
			return "id = " + c.bind(t.Value), nil
		}
		if t.Value == nil {
			return isNull(t.Field), nil
		}
		if store.IsList(c.spec, t.Field) {
			return c.where(query.Has{Field: t.Field, Value: t.Value})
		}
		if s, ok := t.Value.(string); ok {
			return textCol(t.Field) + " = " + c.bind(s), nil
		}
		p, err := c.bindJSON(t.Value)
		if err != nil {
			return "", err
		}
		return jsonCol(t.Field) + " = " + p, nil
	case query.In:
		return c.in(t)
	case query.Has:
		if err := checkName(t.Field); err != nil {
			return "", err
		}
		p, err := c.bindJSON([]any{t.Value})
		if err != nil {
			return "", err
		}
		return jsonCol(t.Field) + " @> " + p, nil
	case query.Exists:
		if err := checkName(t.Field); err != nil {
			return "", err
		}
		if t.Field == schema.FieldID {
			return strconv.FormatBool(t.Present), nil
		}
		if t.Present {
			return "NOT (" + isNull(t.Field) + ")", nil
		}
		return isNull(t.Field), nil
	case query.Contains:
		if err := checkName(t.Field); err != nil {
			return "", err
		}
		col := textCol(t.Field)
		if t.Field == schema.FieldID {
			col = "id"
		}
		return col + " ILIKE " + c.bind("%"+escapeLike(t.Substring)+"%"), nil
	default:
		return "", fmt.Errorf("unsupported filter %T", f)
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (c *compiler) join(filters []query.Filter, sep, empty string) (string, error) {
	if len(filters) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(filters))
	for _, inner := range filters {
		s, err := c.where(inner)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (c *compiler) in(t query.In) (string, error) {
	if err := checkName(t.Field); err != nil {
		return "", err
	}

	var (
		values    []any
		matchNull bool
	)
	for _, v := range t.Values {
		if v == nil {
			matchNull = true
			continue
		}
		values = append(values, v)
	}

	var parts []string
	switch {
	case len(values) == 0:
	case store.IsList(c.spec, t.Field):
		texts := make([]string, 0, len(values))
		for _, v := range values {
			texts = append(texts, fmt.Sprint(v))
		}
		parts = append(parts, jsonCol(t.Field)+" ?| "+c.bind(texts)+"::text[]")
	case t.Field == schema.FieldID:
		placeholders := make([]string, 0, len(values))
		for _, v := range values {
			placeholders = append(placeholders, c.bind(v))
		}
		parts = append(parts, "id IN ("+strings.Join(placeholders, ", ")+")")
	default:
		placeholders := make([]string, 0, len(values))
		for _, v := range values {
			p, err := c.bindJSON(v)
			if err != nil {
				return "", err
			}
			placeholders = append(placeholders, p)
		}
		parts = append(parts, jsonCol(t.Field)+" IN ("+strings.Join(placeholders, ", ")+")")
	}
	if matchNull && t.Field != schema.FieldID {
		parts = append(parts, isNull(t.Field))
	}

	switch len(parts) {
	case 0:
		return "FALSE", nil
	case 1:
		return parts[0], nil
	default:
		return "(" + strings.Join(parts, " OR ") + ")", nil
	}
}

// orderBy renders ORDER BY without the keyword. NULLs sort first ascending, as in the other drivers.
func (c *compiler) orderBy(keys []query.SortKey) (string, error) {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := checkName(k.Field); err != nil {
			return "", err
		}
		col := jsonCol(k.Field)
		if k.Field == schema.FieldID {
			col = "id"
		}
		if k.Descending() {
			col += " DESC NULLS LAST"
		} else {
			col += " ASC NULLS FIRST"
		}
		parts = append(parts, col)
	}
	return strings.Join(parts, ", "), nil
}

// setExpr folds an update into one expression over doc, evaluated atomically by UPDATE.
func (c *compiler) setExpr(u store.Update) (string, error) {
	expr := "doc"

	if len(u.Set) > 0 {
		for f := range u.Set {
			if err := checkName(f); err != nil {
				return "", err
			}
		}
		p, err := c.bindJSON(u.Set)
		if err != nil {
			return "", err
		}
		expr = "(" + expr + " || " + p + ")"
	}

	if len(u.Unset) > 0 {
		for _, f := range u.Unset {
			if err := checkName(f); err != nil {
				return "", err
			}
		}
		expr = "(" + expr + " - " + c.bind(u.Unset) + "::text[])"
	}

	if len(u.Inc) > 0 {
		fields := make([]string, 0, len(u.Inc))
		for f := range u.Inc {
			if err := checkName(f); err != nil {
				return "", err
			}
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			expr = "jsonb_set(" + expr + ", '{" + f + "}', to_jsonb(COALESCE((" + textCol(f) + ")::bigint, 0) + " +
				c.bind(u.Inc[f]) + "::bigint))"
		}
	}

	return expr, nil
}

// createIndex renders the DDL of one index. List fields get GIN indexes and cannot be unique.
func (c *compiler) createIndex(ix schema.Index) (string, error) {
	for _, k := range ix.Keys {
		if err := checkName(k.Field); err != nil {
			return "", err
		}
	}
	name := pgx.Identifier{ix.Name}.Sanitize()

	if len(ix.Keys) == 1 && store.IsList(c.spec, ix.Keys[0].Field) {
		if ix.Unique {
			return "", nil
		}
		return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIN ((%s))",
			name, c.table(), jsonCol(ix.Keys[0].Field)), nil
	}

	cols := make([]string, 0, len(ix.Keys))
	for _, k := range ix.Keys {
		if store.IsList(c.spec, k.Field) {
			return "", nil
		}
		col := "(" + textCol(k.Field) + ")"
		if k.Desc {
			col += " DESC"
		}
		cols = append(cols, col)
	}
	unique := ""
	if ix.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, name, c.table(), strings.Join(cols, ", ")), nil
}
