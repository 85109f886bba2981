package memory

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/store"
)

// match evaluates a filter against a document. A nil filter matches everything.
func match(doc store.Document, f query.Filter) (bool, error) {
	switch t := f.(type) {
	case nil:
		return true, nil
	case query.And:
		for _, inner := range t {
			ok, err := match(doc, inner)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case query.Or:
		for _, inner := range t {
			ok, err := match(doc, inner)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case query.Eq:
		v := doc[t.Field]
		if t.Value == nil {
			return v == nil, nil
		}
		return anyEqual(v, t.Value), nil
	case query.In:
		v := doc[t.Field]
		for _, want := range t.Values {
			if want == nil && v == nil {
				return true, nil
			}
			if want != nil && anyEqual(v, want) {
				return true, nil
			}
		}
		return false, nil
	case query.Has:
		list, ok := doc[t.Field].([]any)
		if !ok {
			return false, nil
		}
		for _, item := range list {
			if item == t.Value {
				return true, nil
			}
		}
		return false, nil
	case query.Exists:
		return (doc[t.Field] != nil) == t.Present, nil
	case query.Contains:
		s, ok := doc[t.Field].(string)
		if !ok {
			return false, nil
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(t.Substring)), nil
	default:
		return false, fmt.Errorf("unsupported filter %T", f)
	}
}

// anyEqual compares a stored value with a scalar. Stored lists match when any element does.
func anyEqual(stored, want any) bool {
	if list, ok := stored.([]any); ok {
		for _, item := range list {
			if item == want {
				return true
			}
		}
		return false
	}
	return stored == want
}

// rank orders values of different types: null first, then booleans, numbers, strings.
func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

func compareValues(a, b any) int {
	if ra, rb := rank(a), rank(b); ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case int64:
		return cmp.Compare(x, b.(int64))
	case string:
		return cmp.Compare(x, b.(string))
	default:
		return 0
	}
}

func compareDocs(a, b store.Document, keys []query.SortKey) int {
	for _, k := range keys {
		c := compareValues(a[k.Field], b[k.Field])
		if k.Descending() {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}
