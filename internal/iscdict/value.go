// Package iscdict implements the codec layer of the RNDC client: the
// self-describing, length-prefixed ISC control-channel dict format and
// its 8-byte frame header.
//
// The grammar mirrors a tagged-variant Value (byte string or ordered map)
// rather than reusing a general-purpose encoding library; the format is
// small and custom, and keeping serialization under direct control is
// what lets the authenticator's sign-mode canonicalization line up
// byte-for-byte with the wire encoding.
package iscdict

// Kind identifies which alternative of Value is populated.
type Kind uint8

const (
	// KindMap is an ordered collection of (key, value) entries.
	KindMap Kind = 0x00

	// KindBytes is an opaque byte-string leaf.
	KindBytes Kind = 0x01

	// KindList is recognized on parse for forward compatibility with the
	// wider ISC format but is never emitted by this client (spec: lists
	// exist in the wider format but are not required for RNDC).
	KindList Kind = 0x02
)

// Value is one node of the protocol's payload tree: either a byte string
// leaf or an ordered map of further values.
type Value struct {
	kind  Kind
	bytes []byte
	m     *Map
	list  []Value
}

// Bytes returns a byte-string Value wrapping b. b is not copied.
func Bytes(b []byte) Value {
	return Value{kind: KindBytes, bytes: b}
}

// Str returns a byte-string Value holding the UTF-8 encoding of s.
func Str(s string) Value {
	return Value{kind: KindBytes, bytes: []byte(s)}
}

// MapValue returns a Value wrapping the given map.
func MapValue(m *Map) Value {
	if m == nil {
		m = NewMap()
	}

	return Value{kind: KindMap, m: m}
}

// Kind reports which alternative v holds.
func (v Value) Kind() Kind {
	return v.kind
}

// IsMap reports whether v holds a map.
func (v Value) IsMap() bool {
	return v.kind == KindMap
}

// IsBytes reports whether v holds a byte string.
func (v Value) IsBytes() bool {
	return v.kind == KindBytes
}

// AsBytes returns the raw bytes of a byte-string Value. It returns nil
// for any other kind.
func (v Value) AsBytes() []byte {
	if v.kind != KindBytes {
		return nil
	}

	return v.bytes
}

// AsString decodes a byte-string Value as UTF-8 text.
func (v Value) AsString() string {
	return string(v.bytes)
}

// AsMap returns the map of a KindMap Value, or nil for any other kind.
func (v Value) AsMap() *Map {
	if v.kind != KindMap {
		return nil
	}

	return v.m
}

// AsList returns the entries of a KindList Value, or nil for any other
// kind. Lists are only ever produced by Parse; this client never builds
// one directly.
func (v Value) AsList() []Value {
	if v.kind != KindList {
		return nil
	}

	return v.list
}

// entry is one (key, value) pair of a Map, in insertion order.
type entry struct {
	key string
	val Value
}

// Map is an ordered collection of (key, value) pairs with unique,
// insertion-ordered keys. Order is significant: the canonical
// serialization used for signing depends on it.
type Map struct {
	entries []entry
	index   map[string]int
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{index: make(map[string]int)}
}

// Set inserts key/val, or overwrites the value in place if key already
// exists (insertion position is preserved on overwrite).
func (m *Map) Set(key string, val Value) {
	if i, ok := m.index[key]; ok {
		m.entries[i].val = val

		return
	}

	m.index[key] = len(m.entries)
	m.entries = append(m.entries, entry{key: key, val: val})
}

// SetBytes is a convenience wrapper for Set(key, Bytes(b)).
func (m *Map) SetBytes(key string, b []byte) {
	m.Set(key, Bytes(b))
}

// SetString is a convenience wrapper for Set(key, Str(s)).
func (m *Map) SetString(key string, s string) {
	m.Set(key, Str(s))
}

// SetMap is a convenience wrapper for Set(key, MapValue(sub)).
func (m *Map) SetMap(key string, sub *Map) {
	m.Set(key, MapValue(sub))
}

// Get returns the value for key and whether it was present.
func (m *Map) Get(key string) (Value, bool) {
	i, ok := m.index[key]
	if !ok {
		return Value{}, false
	}

	return m.entries[i].val, true
}

// GetString returns the UTF-8 decoding of key's byte-string value, or ""
// if key is absent or not a byte string.
func (m *Map) GetString(key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok || !v.IsBytes() {
		return "", false
	}

	return v.AsString(), true
}

// Keys returns the map's keys in insertion order.
func (m *Map) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.key
	}

	return keys
}

// Len returns the number of entries in the map.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}

	return len(m.entries)
}

// Range calls fn for each entry in insertion order. Iteration stops if
// fn returns false.
func (m *Map) Range(fn func(key string, val Value) bool) {
	if m == nil {
		return
	}

	for _, e := range m.entries {
		if !fn(e.key, e.val) {
			return
		}
	}
}

// Clone returns a shallow copy of m: entries are copied but nested maps
// and byte slices are shared with the original.
func (m *Map) Clone() *Map {
	out := NewMap()
	if m == nil {
		return out
	}

	out.entries = make([]entry, len(m.entries))
	copy(out.entries, m.entries)

	for k, i := range m.index {
		out.index[k] = i
	}

	return out
}
