package repository

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/store"
)

// toFields flattens an entity into its JSON field map. Numbers stay json.Number
// until the schema coerces them.
func toFields(entity any) (map[string]any, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("failed to encode entity: %w", err)
	}
	return fields, nil
}

// fromDocument builds an entity from a stored (and possibly populated) document.
func fromDocument[T any](doc store.Document) (*T, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("failed to encode document: %w", err))
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, domain.Internal(fmt.Errorf("failed to decode document %s: %w", doc.ID(), err))
	}
	return out, nil
}

// asRecord accepts T or *T.
func asRecord[T any](record any) (*T, bool) {
	switch r := record.(type) {
	case *T:
		return r, r != nil
	case T:
		return &r, true
	default:
		return nil, false
	}
}
