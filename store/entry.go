package store

import "slices"

// Entry is a stored vector with its opaque payload.
//
// ID is nil for an entry built by a caller and always set on entries returned
// by a Store. Entries are treated as immutable once handed to a Store.
type Entry struct {
	Vector []float32
	Data   []byte
	ID     *int64
}

// NewEntry creates an entry that has not been inserted yet.
func NewEntry(vector []float32, data []byte) Entry {
	return Entry{Vector: vector, Data: data}
}

// HasID reports whether a Store has assigned an identifier to the entry.
func (e Entry) HasID() bool {
	return e.ID != nil
}

// Text returns the payload as a string.
func (e Entry) Text() string {
	return string(e.Data)
}

// WithID returns a deep copy of the entry carrying id.
func (e Entry) WithID(id int64) Entry {
	return Entry{
		Vector: slices.Clone(e.Vector),
		Data:   slices.Clone(e.Data),
		ID:     &id,
	}
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	c := Entry{
		Vector: slices.Clone(e.Vector),
		Data:   slices.Clone(e.Data),
	}
	if e.ID != nil {
		id := *e.ID
		c.ID = &id
	}
	return c
}
