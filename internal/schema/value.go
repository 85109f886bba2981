package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// TimeLayout is the stored timestamp form. It is fixed width and always UTC,
// so comparing two stored values as strings orders them chronologically.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t in the stored form.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts the stored form and any RFC 3339 timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Violation is a failed field constraint.
type Violation struct {
	Field   string
	Message string
}

// Coerce converts v to the stored representation of the named field:
// strings for identities, references and timestamps, int64 for integers,
// []any of strings for lists. Expanded references collapse to their id.
func (s *Spec) Coerce(name string, v any) (any, error) {
	f, ok := s.Field(name)
	if !ok {
		return nil, fmt.Errorf("unknown field %q", name)
	}
	return f.Coerce(v)
}

// Coerce converts v to this field's stored representation.
func (f Field) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Kind {
	case KindString:
		str, ok := asString(v)
		if !ok {
			return nil, fmt.Errorf("must be a string")
		}
		return f.normalize(str), nil
	case KindID:
		str, ok := asString(v)
		if !ok {
			return nil, fmt.Errorf("must be an identifier")
		}
		return str, nil
	case KindRef:
		return refID(v)
	case KindInt:
		return asInt(v)
	case KindBool:
		if p, ok := v.(*bool); ok {
			if p == nil {
				return nil, nil
			}
			return *p, nil
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("must be a boolean")
		}
		return b, nil
	case KindTime:
		return asTime(v)
	case KindStringList, KindRefList:
		return f.coerceList(v)
	default:
		return nil, fmt.Errorf("unsupported kind %s", f.Kind)
	}
}

func (f Field) coerceList(v any) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("must be a list")
	}
	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i).Interface()
		var (
			str string
			err error
		)
		if f.Kind == KindRefList {
			var id any
			id, err = refID(item)
			str, _ = id.(string)
		} else {
			var ok bool
			str, ok = asString(item)
			if !ok {
				err = fmt.Errorf("must contain only strings")
			}
			str = f.normalize(str)
		}
		if err != nil {
			return nil, err
		}
		if str == "" || slices.Contains(out, any(str)) {
			continue
		}
		out = append(out, str)
	}
	return out, nil
}

func (f Field) normalize(s string) string {
	if f.Trim {
		s = strings.TrimSpace(s)
	}
	if f.CaseInsensitive {
		s = strings.ToLower(s)
	}
	return s
}

func asString(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

func refID(v any) (any, error) {
	if m, ok := v.(map[string]any); ok {
		v = m[FieldID]
	}
	if v == nil {
		return nil, nil
	}
	id, ok := asString(v)
	if !ok {
		return nil, fmt.Errorf("must be a reference id")
	}
	if id == "" {
		return nil, nil
	}
	return id, nil
}

func asInt(v any) (any, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		fl, err := n.Float64()
		if err != nil || fl != math.Trunc(fl) {
			return nil, fmt.Errorf("must be an integer")
		}
		return int64(fl), nil
	case float64:
		if n != math.Trunc(n) {
			return nil, fmt.Errorf("must be an integer")
		}
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("must be an integer")
		}
		return i, nil
	default:
		return nil, fmt.Errorf("must be an integer")
	}
}

func asTime(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return FormatTime(t), nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return FormatTime(*t), nil
	case string:
		parsed, err := ParseTime(t)
		if err != nil {
			return nil, fmt.Errorf("must be an RFC 3339 timestamp")
		}
		return FormatTime(parsed), nil
	default:
		return nil, fmt.Errorf("must be a timestamp")
	}
}

// Canonicalize coerces every present field of doc in place. Unknown fields and
// values of the wrong kind are reported as violations and left untouched.
func (s *Spec) Canonicalize(doc map[string]any) []Violation {
	var out []Violation
	for _, name := range sortedKeys(doc) {
		f, ok := s.Field(name)
		if !ok {
			out = append(out, Violation{Field: name, Message: "is not a known field"})
			continue
		}
		v, err := f.Coerce(doc[name])
		if err != nil {
			out = append(out, Violation{Field: name, Message: err.Error()})
			continue
		}
		doc[name] = v
	}
	return out
}

// ApplyDefaults fills absent or null fields that declare a default.
func (s *Spec) ApplyDefaults(doc map[string]any) {
	for _, f := range s.fields {
		if f.Default == nil {
			continue
		}
		if v, ok := doc[f.Name]; ok && v != nil {
			continue
		}
		if d, err := f.Coerce(f.Default); err == nil {
			doc[f.Name] = d
		}
	}
}

// Validate checks required, maxlength and enum constraints on a canonical doc.
// When creating is false only the fields present in doc are checked.
func (s *Spec) Validate(doc map[string]any, creating bool) []Violation {
	var out []Violation
	for _, f := range s.fields {
		v, present := doc[f.Name]
		if !present && !creating {
			continue
		}
		if f.Required && isEmpty(v) {
			out = append(out, Violation{Field: f.Name, Message: "is required"})
			continue
		}
		str, isString := v.(string)
		if !isString {
			continue
		}
		if f.MaxLength > 0 && utf8.RuneCountInString(str) > f.MaxLength {
			out = append(out, Violation{
				Field:   f.Name,
				Message: fmt.Sprintf("must be at most %d characters", f.MaxLength),
			})
		}
		if len(f.Enum) > 0 && str != "" && !slices.Contains(f.Enum, str) {
			out = append(out, Violation{
				Field:   f.Name,
				Message: "must be one of " + strings.Join(f.Enum, ", "),
			})
		}
	}
	return out
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

func sortedKeys(doc map[string]any) []string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
