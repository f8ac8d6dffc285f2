// Package model defines the object vocabulary shared by every layer of the
// proxy: object types, object ids, object keys and attribute sets.
//
// # Canonical Join
//
// AttributeSet.Canonical renders an attribute set as `field=value` pairs
// sorted by field name and joined with `|`. Fingerprints are built from this
// string, so it must stay byte-stable across restarts:
//
//	{speed=25000, mtu=9100} -> "mtu=9100|speed=25000"
//
// Field names and values are joined as raw bytes. Two inputs that differ
// only in Unicode composition are different attribute sets.
//
// # Canonical JSON
//
// MarshalCanonical produces RFC 8785 canonical JSON. It is used for the
// downstream operations queue payload and for keyspace snapshots, never for
// fingerprints. Only this encoder applies NFC normalization.
package model
