package repository

// Patch is a mutation accepted by UpdateOneByID. It is one of SetFields, IncCounters
// or Replace; the variant decides whether the store applies it as a field write or
// as an atomic delta.
type Patch interface {
	isPatch()
}

// SetFields overwrites the named fields. A nil value clears the field.
// Counter, managed and base fields are rejected.
type SetFields map[string]any

// IncCounters adds deltas to counter fields atomically. Negative deltas decrement.
type IncCounters map[string]int64

// Replace overwrites every writable field with the values of Record, which must be
// the repository's entity type (value or pointer). Counters and managed fields keep
// their stored values.
type Replace struct {
	Record any
}

// managedSet writes fields callers may not write, such as publishedAt.
// Only repositories in this package construct it.
type managedSet map[string]any

func (SetFields) isPatch()   {}
func (IncCounters) isPatch() {}
func (Replace) isPatch()     {}
func (managedSet) isPatch()  {}
