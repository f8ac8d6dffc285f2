package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// NullField is both field and value of the sentinel attribute recorded for
// objects created with no attributes.
const NullField = "NULL"

// ErrEmptyField is returned for a FieldValue with an empty field name.
var ErrEmptyField = errors.New("empty attribute field")

// FieldValue is a single attribute assignment.
type FieldValue struct {
	Field string
	Value string
}

func (fv FieldValue) String() string {
	return fv.Field + "=" + fv.Value
}

// ParseFieldValue parses "field=value", splitting at the first '='.
func ParseFieldValue(s string) (FieldValue, error) {
	field, value, ok := strings.Cut(s, "=")
	if !ok {
		return FieldValue{}, fmt.Errorf("attribute %q: expected field=value", s)
	}
	if field == "" {
		return FieldValue{}, fmt.Errorf("attribute %q: %w", s, ErrEmptyField)
	}
	return FieldValue{Field: field, Value: value}, nil
}

// AttributeSet maps attribute field names to values.
type AttributeSet map[string]string

// NewAttributeSet builds a set from an attribute list. Later assignments to the
// same field win. Fields and values are kept byte for byte.
func NewAttributeSet(fvs ...FieldValue) (AttributeSet, error) {
	s := make(AttributeSet, len(fvs))
	for _, fv := range fvs {
		if fv.Field == "" {
			return nil, ErrEmptyField
		}
		s[fv.Field] = fv.Value
	}
	return s, nil
}

// FromMap copies a raw field map, as read back from the store.
func FromMap(m map[string]string) AttributeSet {
	s := make(AttributeSet, len(m))
	for f, v := range m {
		s[f] = v
	}
	return s
}

// NullAttributes returns the sentinel set {NULL=NULL}.
func NullAttributes() AttributeSet {
	return AttributeSet{NullField: NullField}
}

// OrNull returns s, or the sentinel set when s is empty.
func (s AttributeSet) OrNull() AttributeSet {
	if len(s) == 0 {
		return NullAttributes()
	}
	return s
}

// IsNull reports whether s is exactly the sentinel set.
func (s AttributeSet) IsNull() bool {
	return len(s) == 1 && s[NullField] == NullField
}

// Get returns the value of field and whether it is present.
func (s AttributeSet) Get(field string) (string, bool) {
	v, ok := s[field]
	return v, ok
}

// Fields returns field names sorted by byte order.
func (s AttributeSet) Fields() []string {
	fields := make([]string, 0, len(s))
	for f := range s {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Clone returns an independent copy.
func (s AttributeSet) Clone() AttributeSet {
	out := make(AttributeSet, len(s))
	for f, v := range s {
		out[f] = v
	}
	return out
}

// With returns a copy of s with fv applied. The sentinel field is kept, so a
// set on an object created without attributes fingerprints as
// "NULL=NULL|field=value".
func (s AttributeSet) With(fv FieldValue) AttributeSet {
	out := s.Clone()
	out[fv.Field] = fv.Value
	return out
}

// Map returns s as a plain map, for store writes.
func (s AttributeSet) Map() map[string]string {
	return map[string]string(s.Clone())
}

// Canonical renders the canonical join: "f1=v1|f2=v2", fields in byte order.
func (s AttributeSet) Canonical() string {
	var b strings.Builder
	for i, f := range s.Fields() {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(f)
		b.WriteByte('=')
		b.WriteString(s[f])
	}
	return b.String()
}

// Equal reports whether two sets hold the same assignments.
func (s AttributeSet) Equal(o AttributeSet) bool {
	if len(s) != len(o) {
		return false
	}
	for f, v := range s {
		if ov, ok := o[f]; !ok || ov != v {
			return false
		}
	}
	return true
}

func (s AttributeSet) String() string {
	return "{" + strings.ReplaceAll(s.Canonical(), "|", ", ") + "}"
}
