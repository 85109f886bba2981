package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/prn-tf/inkwell/internal/schema"
)

// Encode renders a document as JSON for stores that persist text or JSONB.
func Encode(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

// Decode parses stored JSON back into canonical form. Fields unknown to the spec are kept
// as decoded so that documents written by newer code survive a round trip.
func Decode(spec *schema.Spec, data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	for name, v := range doc {
		f, ok := spec.Field(name)
		if !ok {
			continue
		}
		cv, err := f.Coerce(v)
		if err != nil {
			return nil, fmt.Errorf("failed to decode field %s: %w", name, err)
		}
		doc[name] = cv
	}
	return doc, nil
}

// ElementKind returns the kind of a single element of the named field: the element kind
// for lists, the field kind otherwise. Unknown fields report false.
func ElementKind(spec *schema.Spec, name string) (schema.Kind, bool) {
	f, ok := spec.Field(name)
	if !ok {
		return 0, false
	}
	switch f.Kind {
	case schema.KindStringList:
		return schema.KindString, true
	case schema.KindRefList:
		return schema.KindRef, true
	default:
		return f.Kind, true
	}
}

// IsList reports whether the named field holds an array.
func IsList(spec *schema.Spec, name string) bool {
	f, ok := spec.Field(name)
	return ok && f.Kind.IsList()
}
