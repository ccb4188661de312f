// Package gphotos maps high-level Google Photos operations onto the
// positional batchexecute wire format: a method registry builds request
// frames, and a parser registry decodes the deeply nested response arrays
// into named fields.
package gphotos

import "strconv"

// node wraps a decoded JSON value for tolerant positional access. The wire
// format is all unnamed arrays with optional tails, so every accessor
// returns a zero node instead of panicking when the path does not exist.
type node struct {
	v  any
	ok bool
}

func nodeOf(v any) node {
	return node{v: v, ok: v != nil}
}

// at indexes into a list. Negative indices count from the end. Objects are
// indexed by the stringified position: the wire format serializes sparse
// arrays as objects keyed by index.
func (n node) at(i int) node {
	switch v := n.v.(type) {
	case []any:
		if i < 0 {
			i += len(v)
		}
		if i < 0 || i >= len(v) {
			return node{}
		}
		return nodeOf(v[i])
	case map[string]any:
		return n.key(strconv.Itoa(i))
	}
	return node{}
}

// key looks up a field in an object node.
func (n node) key(k string) node {
	if m, ok := n.v.(map[string]any); ok {
		if v, present := m[k]; present {
			return nodeOf(v)
		}
	}
	return node{}
}

// last returns the final element of a list node.
func (n node) last() node {
	if v, ok := n.v.([]any); ok && len(v) > 0 {
		return nodeOf(v[len(v)-1])
	}
	return node{}
}

// list returns the node's elements, or nil when it is not a list.
func (n node) list() []any {
	v, _ := n.v.([]any)
	return v
}

func (n node) exists() bool {
	return n.ok
}

func (n node) str() string {
	s, _ := n.v.(string)
	return s
}

// strp returns the string value or nil when absent.
func (n node) strp() *string {
	if s, ok := n.v.(string); ok {
		return &s
	}
	return nil
}

func (n node) float() (float64, bool) {
	f, ok := n.v.(float64)
	return f, ok
}

// intp returns the numeric value as *int64, or nil when absent. JSON
// numbers decode as float64; timestamps in the wire format sometimes arrive
// as strings instead.
func (n node) intp() *int64 {
	switch v := n.v.(type) {
	case float64:
		i := int64(v)
		return &i
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return &i
		}
	}
	return nil
}

func (n node) int64Or(def int64) int64 {
	if p := n.intp(); p != nil {
		return *p
	}
	return def
}

// truthy mirrors JS truthiness for flag positions that may hold a number,
// bool, or be absent.
func (n node) truthy() bool {
	switch v := n.v.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	case nil:
		return false
	}
	return true
}

// raw returns the underlying decoded value.
func (n node) raw() any {
	return n.v
}
