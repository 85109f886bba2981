package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ID is the opaque identity minted by the store on create.
type ID string

// String returns the id as a plain string.
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool {
	return id == ""
}

// Base carries the attributes every persisted entity has.
// The repository assigns ID, CreatedAt, UpdatedAt and DeletedAt; callers never set them.
type Base struct {
	// ID is assigned on create and never changes.
	ID ID `json:"id"`

	// CreatedAt is set once, on create.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is set on create and on every successful mutation.
	UpdatedAt time.Time `json:"updatedAt"`

	// DeletedAt is nil while the row is live.
	DeletedAt *time.Time `json:"deletedAt,omitempty"`

	// CreatedBy and UpdatedBy identify the acting principal; the repository does not manage them.
	CreatedBy *ID `json:"createdBy,omitempty"`
	UpdatedBy *ID `json:"updatedBy,omitempty"`
}

// IsDeleted reports whether the row is soft-deleted.
func (b *Base) IsDeleted() bool {
	return b.DeletedAt != nil
}

// Ref is a reference to another entity. The stored form is always the id; when a
// join was requested, Doc holds the projection of the referenced entity.
type Ref[T any] struct {
	ID  ID
	Doc *T
}

// RefTo builds an unexpanded reference.
func RefTo[T any](id ID) Ref[T] {
	return Ref[T]{ID: id}
}

// Expanded reports whether the reference was populated.
func (r Ref[T]) Expanded() bool {
	return r.Doc != nil
}

// IsZero reports whether the reference is unset. Used by encoding/json omitzero.
func (r Ref[T]) IsZero() bool {
	return r.ID == "" && r.Doc == nil
}

// MarshalJSON emits the id, or the expanded object when populated.
func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if r.Doc != nil {
		return json.Marshal(r.Doc)
	}
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(r.ID))
}

// UnmarshalJSON accepts either an id string or an expanded object carrying "id".
func (r *Ref[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*r = Ref[T]{}
		return nil
	case data[0] == '"':
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = Ref[T]{ID: ID(id)}
		return nil
	case data[0] == '{':
		var head struct {
			ID ID `json:"id"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			return err
		}
		doc := new(T)
		if err := json.Unmarshal(data, doc); err != nil {
			return err
		}
		*r = Ref[T]{ID: head.ID, Doc: doc}
		return nil
	default:
		return fmt.Errorf("invalid reference: %s", data)
	}
}

// RefIDs collects the ids of a reference list.
func RefIDs[T any](refs []Ref[T]) []ID {
	ids := make([]ID, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	return ids
}

// RefsTo builds unexpanded references from ids.
func RefsTo[T any](ids ...ID) []Ref[T] {
	refs := make([]Ref[T], 0, len(ids))
	for _, id := range ids {
		refs = append(refs, Ref[T]{ID: id})
	}
	return refs
}

// BoolPtr returns a pointer to b. Used for fields whose default is true.
func BoolPtr(b bool) *bool {
	return &b
}
