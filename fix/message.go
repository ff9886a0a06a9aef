// Package fix implements the wire codec, session protocol engine, and
// the synchronous-over-asynchronous bridge used to drive FIX 4.x
// client/server endpoints in tests.
package fix

import (
	"fmt"
	"strconv"
)

// DefaultHeaderFields is the tag ordering a freshly constructed
// Message is pre-seeded with, reserving their position at the front
// of the wire output.
var DefaultHeaderFields = []int{8, 9, 35, 49, 56}

// Value is the polymorphic field value: either a scalar byte string,
// or an ordered list of repeating-group entries. It is a tagged
// variant, never both at once.
type Value struct {
	scalar []byte
	groups []*Message
	isList bool
}

// ScalarValue wraps a raw byte string as a Value.
func ScalarValue(b []byte) Value { return Value{scalar: b} }

// StringValue wraps a string as a scalar Value.
func StringValue(s string) Value { return Value{scalar: []byte(s)} }

// GroupValue wraps an ordered list of sub-messages as a repeating-group Value.
func GroupValue(groups []*Message) Value { return Value{groups: groups, isList: true} }

// IsGroup reports whether this Value holds a repeating-group list
// rather than a scalar.
func (v Value) IsGroup() bool { return v.isList }

// Bytes returns the scalar byte form of the value (nil for a group value).
func (v Value) Bytes() []byte { return v.scalar }

// String returns the scalar string form of the value.
func (v Value) String() string { return string(v.scalar) }

// Groups returns the repeating-group sub-messages (nil for a scalar value).
func (v Value) Groups() []*Message { return v.groups }

// Int parses the scalar value as a decimal integer.
func (v Value) Int() (int, error) {
	return strconv.Atoi(string(v.scalar))
}

// Message is an ordered mapping from positive integer tag to Value.
// Iteration order equals insertion order; re-assigning an existing tag
// does not move it, but deleting then re-inserting does.
type Message struct {
	order  []int
	fields map[int]Value
}

// TagValue is a single (tag, value) pair, used to construct a Message
// from an explicit ordered sequence.
type TagValue struct {
	Tag   int
	Value Value
}

// MessageOption configures NewMessage.
type MessageOption func(*Message)

// WithHeaderFields pre-seeds the message with the given tags, each
// mapped to the empty value, reserving their position. Passing nil
// seeds no tags at all (not even the package default).
func WithHeaderFields(tags []int) MessageOption {
	return func(m *Message) {
		for _, t := range tags {
			m.set(t, Value{scalar: []byte{}})
		}
	}
}

// NewMessage constructs an empty message pre-seeded with
// DefaultHeaderFields unless a WithHeaderFields option overrides it.
func NewMessage(opts ...MessageOption) *Message {
	m := &Message{fields: make(map[int]Value, 16)}
	if len(opts) == 0 {
		WithHeaderFields(DefaultHeaderFields)(m)
		return m
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewMessageFromMessage copies another message's entries, in order.
func NewMessageFromMessage(src *Message) *Message {
	m := &Message{fields: make(map[int]Value, len(src.order))}
	for _, t := range src.order {
		m.set(t, src.fields[t])
	}
	return m
}

// NewMessageFromPairs constructs a message from an explicit ordered
// sequence of (tag, value) pairs.
func NewMessageFromPairs(pairs []TagValue) *Message {
	m := &Message{fields: make(map[int]Value, len(pairs))}
	for _, tv := range pairs {
		m.set(tv.Tag, tv.Value)
	}
	return m
}

// normalizeTag accepts either an int or a decimal-string key and
// returns its integer tag. This is the public-API key-equivalence
// boundary: all lookups funnel through here.
func normalizeTag(key interface{}) (int, error) {
	switch k := key.(type) {
	case int:
		return k, nil
	case string:
		n, err := strconv.Atoi(k)
		if err != nil {
			return 0, fmt.Errorf("fix: invalid tag key %q: %w", k, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("fix: unsupported tag key type %T", key)
	}
}

func (m *Message) set(tag int, v Value) {
	if _, exists := m.fields[tag]; !exists {
		m.order = append(m.order, tag)
	}
	m.fields[tag] = v
}

// Set assigns value to tag. If tag is already present, its position
// in iteration order is unchanged; otherwise it is appended.
func (m *Message) Set(key interface{}, v Value) error {
	tag, err := normalizeTag(key)
	if err != nil {
		return err
	}
	m.set(tag, v)
	return nil
}

// SetString is a convenience wrapper over Set for scalar string values.
func (m *Message) SetString(key interface{}, s string) error {
	return m.Set(key, StringValue(s))
}

// SetInt is a convenience wrapper over Set for scalar integer values.
func (m *Message) SetInt(key interface{}, n int) error {
	return m.Set(key, StringValue(strconv.Itoa(n)))
}

// SetGroups is a convenience wrapper over Set for repeating-group values.
func (m *Message) SetGroups(key interface{}, groups []*Message) error {
	return m.Set(key, GroupValue(groups))
}

// Get returns the value stored at tag and whether it was present.
func (m *Message) Get(key interface{}) (Value, bool) {
	tag, err := normalizeTag(key)
	if err != nil {
		return Value{}, false
	}
	v, ok := m.fields[tag]
	return v, ok
}

// GetString returns the scalar string at tag, or "" if absent.
func (m *Message) GetString(key interface{}) string {
	v, ok := m.Get(key)
	if !ok {
		return ""
	}
	return v.String()
}

// GetInt returns the scalar value at tag parsed as an integer.
func (m *Message) GetInt(key interface{}) (int, error) {
	v, ok := m.Get(key)
	if !ok {
		return 0, fmt.Errorf("fix: tag %v not present", key)
	}
	return v.Int()
}

// Contains reports whether tag is present (regardless of whether its
// value is the empty scalar).
func (m *Message) Contains(key interface{}) bool {
	_, ok := m.Get(key)
	return ok
}

// IsPresent reports whether tag is present AND holds either a non-empty
// scalar value or a repeating-group list.
func (m *Message) IsPresent(key interface{}) bool {
	v, ok := m.Get(key)
	if !ok {
		return false
	}
	return v.isList || len(v.scalar) > 0
}

// Delete removes tag. A subsequent Set of the same tag appends it at
// the end of iteration order rather than restoring its old position.
func (m *Message) Delete(key interface{}) {
	tag, err := normalizeTag(key)
	if err != nil {
		return
	}
	if _, ok := m.fields[tag]; !ok {
		return
	}
	delete(m.fields, tag)
	for i, t := range m.order {
		if t == tag {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of tags present.
func (m *Message) Len() int { return len(m.order) }

// Tags returns the tags in iteration (insertion) order.
func (m *Message) Tags() []int {
	out := make([]int, len(m.order))
	copy(out, m.order)
	return out
}

// Iterate calls fn for each (tag, value) pair in iteration order.
// Iteration stops early if fn returns false.
func (m *Message) Iterate(fn func(tag int, v Value) bool) {
	for _, t := range m.order {
		if !fn(t, m.fields[t]) {
			return
		}
	}
}

// Equal reports whether m and other contain the same set of tags with
// equal values; iteration order is not compared (order is a wire
// concern, not a data-equality concern).
func (m *Message) Equal(other *Message) bool {
	if m.Len() != other.Len() {
		return false
	}
	eq := true
	m.Iterate(func(tag int, v Value) bool {
		ov, ok := other.Get(tag)
		if !ok {
			eq = false
			return false
		}
		if v.isList != ov.isList {
			eq = false
			return false
		}
		if v.isList {
			if len(v.groups) != len(ov.groups) {
				eq = false
				return false
			}
			for i := range v.groups {
				if !v.groups[i].Equal(ov.groups[i]) {
					eq = false
					return false
				}
			}
			return true
		}
		if string(v.scalar) != string(ov.scalar) {
			eq = false
			return false
		}
		return true
	})
	return eq
}
