package sqlite

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/schema"
	"github.com/prn-tf/inkwell/internal/store"
)

// compiler renders the query vocabulary as SQLite SQL over a (id, doc) table.
// Field names are checked with schema.ValidName before they are inlined into JSON paths;
// values are always bound as parameters.
type compiler struct {
	spec *schema.Spec
	args []any
}

func newCompiler(spec *schema.Spec) *compiler {
	return &compiler{spec: spec}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (c *compiler) table() string {
	return quoteIdent(c.spec.Collection())
}

// path renders the JSON path of a field.
func path(field string) string {
	return "'$." + field + "'"
}

// column renders the value expression of a field.
func (c *compiler) column(field string) (string, error) {
	if !schema.ValidName(field) {
		return "", fmt.Errorf("invalid field name %q", field)
	}
	if field == schema.FieldID {
		return "id", nil
	}
	return "json_extract(doc, " + path(field) + ")", nil
}

func (c *compiler) bind(v any) string {
	if b, ok := v.(bool); ok {
		// json_extract yields 1 and 0 for JSON booleans
		if b {
			v = 1
		} else {
			v = 0
		}
	}
	c.args = append(c.args, v)
	return "?"
}

// where renders a filter. A nil filter renders as "1".
func (c *compiler) where(f query.Filter) (string, error) {
	switch t := f.(type) {
	case nil:
		return "1", nil
	case query.And:
		return c.join(t, " AND ", "1")
	case query.Or:
		return c.join(t, " OR ", "0")
	case query.Eq:
		if t.Value != nil && store.IsList(c.spec, t.Field) {
			return c.where(query.Has{Field: t.Field, Value: t.Value})
		}
		col, err := c.column(t.Field)
		if err != nil {
			return "", err
		}
		if t.Value == nil {
			return col + " IS NULL", nil
		}
		return col + " = " + c.bind(t.Value), nil
	case query.In:
		return c.in(t)
	case query.Has:
		if !schema.ValidName(t.Field) {
			return "", fmt.Errorf("invalid field name %q", t.Field)
		}
		return "EXISTS (SELECT 1 FROM json_each(doc, " + path(t.Field) + ") WHERE value = " + c.bind(t.Value) + ")", nil
	case query.Exists:
		col, err := c.column(t.Field)
		if err != nil {
			return "", err
		}
		if t.Present {
			return col + " IS NOT NULL", nil
		}
		return col + " IS NULL", nil
	case query.Contains:
		col, err := c.column(t.Field)
		if err != nil {
			return "", err
		}
		return "instr(" + foldFunc + "(" + col + "), " + c.bind(strings.ToLower(t.Substring)) + ") > 0", nil
	default:
		return "", fmt.Errorf("unsupported filter %T", f)
	}
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
	var (
		placeholders []string
		matchNull    bool
	)
	for _, v := range t.Values {
		if v == nil {
			matchNull = true
			continue
		}
		placeholders = append(placeholders, c.bind(v))
	}

	var parts []string
	if store.IsList(c.spec, t.Field) {
		if !schema.ValidName(t.Field) {
			return "", fmt.Errorf("invalid field name %q", t.Field)
		}
		if len(placeholders) > 0 {
			parts = append(parts, "EXISTS (SELECT 1 FROM json_each(doc, "+path(t.Field)+") WHERE value IN ("+strings.Join(placeholders, ", ")+"))")
		}
	} else {
		col, err := c.column(t.Field)
		if err != nil {
			return "", err
		}
		if len(placeholders) > 0 {
			parts = append(parts, col+" IN ("+strings.Join(placeholders, ", ")+")")
		}
		if matchNull {
			parts = append(parts, col+" IS NULL")
		}
	}

	switch len(parts) {
	case 0:
		return "0", nil
	case 1:
		return parts[0], nil
	default:
		return "(" + strings.Join(parts, " OR ") + ")", nil
	}
}

// orderBy renders ORDER BY without the keyword. SQLite sorts NULL first ascending.
func (c *compiler) orderBy(keys []query.SortKey) (string, error) {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		col, err := c.column(k.Field)
		if err != nil {
			return "", err
		}
		if k.Descending() {
			col += " DESC"
		} else {
			col += " ASC"
		}
		parts = append(parts, col)
	}
	return strings.Join(parts, ", "), nil
}

// setExpr folds an update into one expression over doc, evaluated atomically by UPDATE.
func (c *compiler) setExpr(u store.Update) (string, error) {
	expr := "doc"

	if len(u.Set) > 0 {
		fields := sortedFields(u.Set)
		parts := []string{expr}
		for _, f := range fields {
			if !schema.ValidName(f) {
				return "", fmt.Errorf("invalid field name %q", f)
			}
			raw, err := json.Marshal(u.Set[f])
			if err != nil {
				return "", fmt.Errorf("failed to encode %s: %w", f, err)
			}
			parts = append(parts, path(f), "json("+c.bind(string(raw))+")")
		}
		expr = "json_set(" + strings.Join(parts, ", ") + ")"
	}

	if len(u.Unset) > 0 {
		parts := []string{expr}
		for _, f := range u.Unset {
			if !schema.ValidName(f) {
				return "", fmt.Errorf("invalid field name %q", f)
			}
			parts = append(parts, path(f))
		}
		expr = "json_remove(" + strings.Join(parts, ", ") + ")"
	}

	if len(u.Inc) > 0 {
		fields := make([]string, 0, len(u.Inc))
		for f := range u.Inc {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		parts := []string{expr}
		for _, f := range fields {
			if !schema.ValidName(f) {
				return "", fmt.Errorf("invalid field name %q", f)
			}
			parts = append(parts, path(f), "COALESCE(json_extract(doc, "+path(f)+"), 0) + "+c.bind(u.Inc[f]))
		}
		expr = "json_set(" + strings.Join(parts, ", ") + ")"
	}

	return expr, nil
}

func sortedFields(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// createIndex renders the DDL of one index, or "" when the index covers a list field,
// which SQLite cannot index by element.
func (c *compiler) createIndex(ix schema.Index) (string, error) {
	cols := make([]string, 0, len(ix.Keys))
	for _, k := range ix.Keys {
		if store.IsList(c.spec, k.Field) {
			return "", nil
		}
		col, err := c.column(k.Field)
		if err != nil {
			return "", err
		}
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
		unique, quoteIdent(ix.Name), c.table(), strings.Join(cols, ", ")), nil
}
