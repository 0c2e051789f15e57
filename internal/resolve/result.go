package resolve

import "github.com/systmms/awsmenv/internal/envmap"

// Source identifies where a resolved value came from.
type Source int

const (
	SourceSecret Source = iota + 1
	SourceDefault
	SourceOverride
)

func (s Source) String() string {
	switch s {
	case SourceSecret:
		return "secret"
	case SourceDefault:
		return "default"
	case SourceOverride:
		return "override"
	}
	return "unknown"
}

// Entry is one key of the final result.
type Entry struct {
	Key    string
	Value  string
	Source Source
}

// Result is the ordered outcome of a run: declared keys in first-seen order,
// then override-only keys in the order they were supplied.
type Result struct {
	entries []Entry
	index   map[string]int
}

func newResult(capacity int) *Result {
	return &Result{
		entries: make([]Entry, 0, capacity),
		index:   make(map[string]int, capacity),
	}
}

func (r *Result) add(e Entry) {
	if i, ok := r.index[e.Key]; ok {
		r.entries[i] = e
		return
	}
	r.index[e.Key] = len(r.entries)
	r.entries = append(r.entries, e)
}

// Entries returns the entries in order.
func (r *Result) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Get returns the entry for key.
func (r *Result) Get(key string) (Entry, bool) {
	i, ok := r.index[key]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Len returns the number of entries.
func (r *Result) Len() int { return len(r.entries) }

// Values returns the result as an ordered key/value map for rendering.
func (r *Result) Values() *envmap.Map {
	m := envmap.New()
	for _, e := range r.entries {
		m.Set(e.Key, e.Value)
	}
	return m
}
