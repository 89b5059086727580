package domain

import "sort"

// HashEntry is one field/value pair of a Hash.
type HashEntry struct {
	Field string
	Value string
}

// Hash maps field names to values.
type Hash struct {
	fields map[string]string
}

// NewHash creates an empty hash.
func NewHash() *Hash {
	return &Hash{fields: make(map[string]string)}
}

// Kind implements Value.
func (h *Hash) Kind() Kind { return KindHash }

// Len implements Value.
func (h *Hash) Len() int { return len(h.fields) }

// Set stores value under field and reports whether the field is new.
func (h *Hash) Set(field, value string) bool {
	_, exists := h.fields[field]
	h.fields[field] = value
	return !exists
}

// Get returns the value of field.
func (h *Hash) Get(field string) (string, bool) {
	v, ok := h.fields[field]
	return v, ok
}

// Exists reports whether field is present.
func (h *Hash) Exists(field string) bool {
	_, ok := h.fields[field]
	return ok
}

// Delete removes field and reports whether it was present.
func (h *Hash) Delete(field string) bool {
	if _, ok := h.fields[field]; !ok {
		return false
	}
	delete(h.fields, field)
	return true
}

// Fields returns the field names sorted ascending.
func (h *Hash) Fields() []string {
	out := make([]string, 0, len(h.fields))
	for f := range h.fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Values returns the values in the order of Fields.
func (h *Hash) Values() []string {
	fields := h.Fields()
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = h.fields[f]
	}
	return out
}

// Entries returns every pair in the order of Fields.
func (h *Hash) Entries() []HashEntry {
	fields := h.Fields()
	out := make([]HashEntry, len(fields))
	for i, f := range fields {
		out[i] = HashEntry{Field: f, Value: h.fields[f]}
	}
	return out
}
