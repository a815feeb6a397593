package core

import "slices"

// MetadataEntry is one key/value pair of a Metadata map.
type MetadataEntry struct {
	Key   string
	Value string
}

// Metadata is an immutable map that keeps entries in insertion order.
type Metadata struct {
	entries []MetadataEntry
}

// NewMetadata builds a Metadata from entries in the given order.  A repeated
// key keeps its first value.
func NewMetadata(entries ...MetadataEntry) Metadata {
	var b MetadataBuilder
	for _, e := range entries {
		b.Add(e.Key, e.Value)
	}
	return b.Metadata()
}

// MetadataBuilder accumulates entries for a Metadata.  The zero value is ready
// to use.
type MetadataBuilder struct {
	entries []MetadataEntry
	seen    map[string]struct{}
}

// Add appends key unless it is already present and reports whether it did.
func (b *MetadataBuilder) Add(key, value string) bool {
	if _, ok := b.seen[key]; ok {
		return false
	}
	if b.seen == nil {
		b.seen = make(map[string]struct{})
	}
	b.seen[key] = struct{}{}
	b.entries = append(b.entries, MetadataEntry{Key: key, Value: value})
	return true
}

// Metadata returns a snapshot of the entries added so far.
func (b *MetadataBuilder) Metadata() Metadata {
	return Metadata{entries: slices.Clone(b.entries)}
}

// Get returns the value stored for key.
func (m Metadata) Get(key string) (string, bool) {
	i := slices.IndexFunc(m.entries, func(e MetadataEntry) bool { return e.Key == key })
	if i < 0 {
		return "", false
	}
	return m.entries[i].Value, true
}

func (m Metadata) Len() int { return len(m.entries) }

// Entries returns the pairs in insertion order.
func (m Metadata) Entries() []MetadataEntry { return slices.Clone(m.entries) }

// Keys returns the keys in order.
func (m Metadata) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Key
	}
	return keys
}
