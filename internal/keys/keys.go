// Package keys builds the persisted key names used for idempotency
// bookkeeping. Every key the proxy writes is produced here; no other package
// concatenates prefixes by hand.
//
//	ATTR2OID_[owner]<canonical attrs>     current fingerprint -> object key
//	DEFAULT_ATTR2OID_<canonical attrs>    default fingerprint -> object key
//	OID2ATTR_<object key>                 forward attributes
//	DEFAULT_OID2ATTR_<object key>         attributes at creation time
//	DEFAULT_OBJ_<object key>              hardware-default ledger
//	OBJ_OWNER_<object key>                owner tag (field "owner")
//	RESTORE_SWITCH                        switch singleton (field "switch_oid")
//	ASIC_STATE:<object key>               authoritative hardware state
//
// Fingerprint keys are hashes whose fields are object key strings and whose
// values are the literal "NULL".
package keys

import (
	"strings"

	"github.com/roach88/idemproxy/internal/model"
)

const (
	PrefixCurrent        = "ATTR2OID_"
	PrefixDefault        = "DEFAULT_ATTR2OID_"
	PrefixForward        = "OID2ATTR_"
	PrefixDefaultForward = "DEFAULT_OID2ATTR_"
	PrefixDefaultObject  = "DEFAULT_OBJ_"
	PrefixOwner          = "OBJ_OWNER_"
	PrefixASICState      = "ASIC_STATE:"

	FieldOwner = "owner"

	SwitchSingleton = "RESTORE_SWITCH"
	FieldSwitchOID  = "switch_oid"

	// VIDCounter holds one allocation counter per object type code.
	VIDCounter = "VIDCOUNTER"

	// SwitchIndex holds the switch index counter and the free list.
	SwitchIndex = "SWITCH_INDEX"

	// FingerprintValue is the value stored under every fingerprint field.
	FingerprintValue = model.NullField
)

// Fingerprint is a full fingerprint key, namespace prefix included.
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }

// IsDefault reports whether f lives in the default namespace.
func (f Fingerprint) IsDefault() bool {
	return strings.HasPrefix(string(f), PrefixDefault)
}

// Current returns the current-namespace fingerprint of attrs scoped by owner.
// Callers pass attrs already substituted with the sentinel when empty.
func Current(owner string, attrs model.AttributeSet) Fingerprint {
	return Fingerprint(PrefixCurrent + owner + attrs.Canonical())
}

// Default returns the default-namespace fingerprint of attrs. The default
// namespace is never owner scoped.
func Default(attrs model.AttributeSet) Fingerprint {
	return Fingerprint(PrefixDefault + attrs.Canonical())
}

func Forward(k model.ObjectKey) string        { return PrefixForward + k.String() }
func DefaultForward(k model.ObjectKey) string { return PrefixDefaultForward + k.String() }
func DefaultObject(k model.ObjectKey) string  { return PrefixDefaultObject + k.String() }
func Owner(k model.ObjectKey) string          { return PrefixOwner + k.String() }
func ASICState(k model.ObjectKey) string      { return PrefixASICState + k.String() }

// ObjectKeyOf strips prefix from a persisted key and parses the remainder.
func ObjectKeyOf(prefix, key string) (model.ObjectKey, error) {
	return model.ParseObjectKey(strings.TrimPrefix(key, prefix))
}

// SeparatorHazard lists owner/field/value strings that contain a canonical
// join separator. Such inputs can make two distinct attribute sets share a
// fingerprint. The encoding is not escaped; callers only report the hazard.
//
// The owner tag has no delimiter of its own, so owners collide even without
// separator characters: Current("a", {b=1}) == Current("", {ab=1}). That
// case depends on which objects exist and is reported at lookup time by
// the lifecycle engine, not here.
func SeparatorHazard(owner string, attrs model.AttributeSet) []string {
	var out []string
	if strings.ContainsAny(owner, "|=") {
		out = append(out, "owner:"+owner)
	}
	for _, f := range attrs.Fields() {
		if strings.ContainsAny(f, "|=") {
			out = append(out, "field:"+f)
		}
		if strings.Contains(attrs[f], "|") {
			out = append(out, "value:"+f)
		}
	}
	return out
}
