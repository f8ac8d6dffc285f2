package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidObjectKey is returned when a serialized object key cannot be parsed.
var ErrInvalidObjectKey = errors.New("invalid object key")

// ObjectID is an opaque 64-bit object handle.
type ObjectID uint64

// NullObjectID is the zero handle. It never names a live object.
const NullObjectID ObjectID = 0

// String renders the id as lower-case hex with a 0x prefix.
func (id ObjectID) String() string {
	return fmt.Sprintf("0x%x", uint64(id))
}

// ParseObjectID parses a "0x"-prefixed hex handle.
func ParseObjectID(s string) (ObjectID, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return NullObjectID, fmt.Errorf("object id %q: missing 0x prefix", s)
	}
	v, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return NullObjectID, fmt.Errorf("object id %q: %w", s, err)
	}
	return ObjectID(v), nil
}

// ObjectKey identifies one object instance: its type plus its serialized id.
// For handle types ID is a hex ObjectID; for structured entry kinds it is the
// caller-supplied tuple string.
type ObjectKey struct {
	Type ObjectType
	ID   string
}

// KeyFor builds the key of a handle-typed object.
func KeyFor(t ObjectType, id ObjectID) ObjectKey {
	return ObjectKey{Type: t, ID: id.String()}
}

// String renders the key as "<Type>:<ID>".
func (k ObjectKey) String() string {
	return string(k.Type) + ":" + k.ID
}

// IsZero reports whether the key is unset.
func (k ObjectKey) IsZero() bool {
	return k.Type == "" && k.ID == ""
}

// ObjectID returns the handle of a non-structured key.
func (k ObjectKey) ObjectID() (ObjectID, error) {
	if k.Type.Structured() {
		return NullObjectID, fmt.Errorf("%w: %s is a structured entry", ErrInvalidObjectKey, k)
	}
	return ParseObjectID(k.ID)
}

// ParseObjectKey parses "<Type>:<ID>", splitting at the first ':'.
// The type must be registered, and handle types must carry a hex id.
func ParseObjectKey(s string) (ObjectKey, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok || typ == "" || id == "" {
		return ObjectKey{}, fmt.Errorf("%w: %q", ErrInvalidObjectKey, s)
	}
	k := ObjectKey{Type: ObjectType(typ), ID: id}
	if !k.Type.Valid() {
		return ObjectKey{}, fmt.Errorf("%w: %q: %w", ErrInvalidObjectKey, s, ErrUnknownObjectType)
	}
	if !k.Type.Structured() {
		if _, err := ParseObjectID(id); err != nil {
			return ObjectKey{}, fmt.Errorf("%w: %w", ErrInvalidObjectKey, err)
		}
	}
	return k, nil
}
