package aprconf

import (
	"maps"
	"slices"
)

// Table maps placeholder keys to their values. A Table is never modified
// after construction; With and WithAll return new tables.
type Table struct {
	entries map[string]Value
}

// NewTable returns a table holding a copy of entries.
func NewTable(entries map[string]Value) Table {
	return Table{entries: maps.Clone(entries)}
}

// Get returns the value bound to key.
func (t Table) Get(key string) (Value, bool) {
	v, ok := t.entries[key]
	return v, ok
}

// Has reports whether key is bound.
func (t Table) Has(key string) bool {
	_, ok := t.entries[key]
	return ok
}

// Flag returns the flag bound to key, false when unbound or not a flag.
func (t Table) Flag(key string) bool {
	b, _ := t.entries[key].Bool()
	return b
}

// Len returns the number of bindings.
func (t Table) Len() int {
	return len(t.entries)
}

// Keys returns the bound keys in sorted order.
func (t Table) Keys() []string {
	return slices.Sorted(maps.Keys(t.entries))
}

// With returns a table where key is bound to v.
func (t Table) With(key string, v Value) Table {
	next := make(map[string]Value, len(t.entries)+1)
	maps.Copy(next, t.entries)
	next[key] = v
	return Table{entries: next}
}

// WithAll returns a table with every binding of vs applied on top of t.
func (t Table) WithAll(vs map[string]Value) Table {
	next := make(map[string]Value, len(t.entries)+len(vs))
	maps.Copy(next, t.entries)
	maps.Copy(next, vs)
	return Table{entries: next}
}

// Strings returns the rendered form of every binding.
func (t Table) Strings() map[string]string {
	out := make(map[string]string, len(t.entries))
	for k, v := range t.entries {
		out[k] = v.Render()
	}
	return out
}

// Step is one derivation rule. It reads the table built so far and the
// probe results and returns the next table.
type Step func(Table, Facts) (Table, error)

// Derive applies the steps in order, starting from an empty table.
func Derive(f Facts, steps ...Step) (Table, error) {
	return DeriveFrom(Table{}, f, steps...)
}

// DeriveFrom applies the steps in order, starting from t.
func DeriveFrom(t Table, f Facts, steps ...Step) (Table, error) {
	for _, step := range steps {
		next, err := step(t, f)
		if err != nil {
			return t, err
		}
		t = next
	}
	return t, nil
}
