// Package envmap provides an insertion ordered string map for environment
// variables.
package envmap

// Map is an ordered mapping from keys to values. Setting an existing key
// replaces its value but keeps the position of its first insertion.
// The zero value is ready to use. A Map is not safe for concurrent writes.
type Map struct {
	keys   []string
	values map[string]string
}

// New returns an empty map.
func New() *Map {
	return &Map{values: make(map[string]string)}
}

// FromPairs builds a map from alternating key/value strings.
func FromPairs(kv ...string) *Map {
	m := New()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i], kv[i+1])
	}
	return m
}

// Set inserts or replaces key. It reports whether the key was new.
func (m *Map) Set(key, value string) bool {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	_, exists := m.values[key]
	if !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return !exists
}

// Get returns the value for key.
func (m *Map) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Each calls fn for every entry in order.
func (m *Map) Each(fn func(key, value string)) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}

// Map returns an unordered copy.
func (m *Map) Map() map[string]string {
	out := make(map[string]string, m.Len())
	m.Each(func(k, v string) { out[k] = v })
	return out
}
