package repo

import (
	"context"
	"errors"
	"sort"

	"github.com/roach88/idemproxy/internal/keys"
	"github.com/roach88/idemproxy/internal/model"
)

var (
	// ErrNotRestored is returned when the repository is used before Restore.
	ErrNotRestored = errors.New("repository not restored")

	// ErrAlreadyRestored is returned by a second call to Restore.
	ErrAlreadyRestored = errors.New("repository already restored")
)

// Source is the read side of the persisted keyspace.
// Implemented by *store.Store.
type Source interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repository is the in-memory view of the bookkeeping tables.
//
// Repository is not safe for concurrent use. The lifecycle engine serializes
// all calls.
type Repository struct {
	source   Source
	restored bool

	// fingerprint -> object type -> object keys
	fingerprints map[keys.Fingerprint]map[model.ObjectType][]model.ObjectKey

	forward    map[model.ObjectKey]model.AttributeSet
	defaults   map[model.ObjectKey]model.AttributeSet
	hwDefaults map[model.ObjectKey]model.AttributeSet
	owners     map[model.ObjectKey]string
}

// New creates an empty repository reading from src.
func New(src Source) *Repository {
	return &Repository{
		source:       src,
		fingerprints: make(map[keys.Fingerprint]map[model.ObjectType][]model.ObjectKey),
		forward:      make(map[model.ObjectKey]model.AttributeSet),
		defaults:     make(map[model.ObjectKey]model.AttributeSet),
		hwDefaults:   make(map[model.ObjectKey]model.AttributeSet),
		owners:       make(map[model.ObjectKey]string),
	}
}

// Restored reports whether Restore has completed.
func (r *Repository) Restored() bool {
	return r.restored
}

// Lookup returns the objects of type t registered under fp, in byte order.
// More than one result means the fingerprint is ambiguous.
func (r *Repository) Lookup(fp keys.Fingerprint, t model.ObjectType) []model.ObjectKey {
	byType := r.fingerprints[fp]
	if byType == nil {
		return nil
	}
	return append([]model.ObjectKey(nil), byType[t]...)
}

// Forward returns the current attribute set of k.
func (r *Repository) Forward(k model.ObjectKey) (model.AttributeSet, bool) {
	attrs, ok := r.forward[k]
	if !ok {
		return nil, false
	}
	return attrs.Clone(), true
}

// DefaultSnapshot returns the attributes k had at creation, recorded on its
// first mutation.
func (r *Repository) DefaultSnapshot(k model.ObjectKey) (model.AttributeSet, bool) {
	attrs, ok := r.defaults[k]
	if !ok {
		return nil, false
	}
	return attrs.Clone(), true
}

// HardwareDefault returns the first-observed attributes of a
// hardware-originated object.
func (r *Repository) HardwareDefault(k model.ObjectKey) (model.AttributeSet, bool) {
	attrs, ok := r.hwDefaults[k]
	if !ok {
		return nil, false
	}
	return attrs.Clone(), true
}

// IsHardwareDefault reports whether k is exempt from fingerprint bookkeeping.
func (r *Repository) IsHardwareDefault(k model.ObjectKey) bool {
	_, ok := r.hwDefaults[k]
	return ok
}

// Owner returns the owner tag recorded for k.
func (r *Repository) Owner(k model.ObjectKey) (string, bool) {
	owner, ok := r.owners[k]
	return owner, ok
}

// Objects returns every object with a forward attribute set, in byte order.
func (r *Repository) Objects() []model.ObjectKey {
	out := make([]model.ObjectKey, 0, len(r.forward))
	for k := range r.forward {
		out = append(out, k)
	}
	sortKeys(out)
	return out
}

func (r *Repository) addFingerprint(fp keys.Fingerprint, k model.ObjectKey) {
	byType := r.fingerprints[fp]
	if byType == nil {
		byType = make(map[model.ObjectType][]model.ObjectKey)
		r.fingerprints[fp] = byType
	}
	for _, existing := range byType[k.Type] {
		if existing == k {
			return
		}
	}
	byType[k.Type] = append(byType[k.Type], k)
	sortKeys(byType[k.Type])
}

func (r *Repository) removeFingerprint(fp keys.Fingerprint, k model.ObjectKey) {
	byType := r.fingerprints[fp]
	if byType == nil {
		return
	}
	list := byType[k.Type]
	for i, existing := range list {
		if existing == k {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(byType, k.Type)
	} else {
		byType[k.Type] = list
	}
	if len(byType) == 0 {
		delete(r.fingerprints, fp)
	}
}

func sortKeys(ks []model.ObjectKey) {
	sort.Slice(ks, func(i, j int) bool { return ks[i].String() < ks[j].String() })
}
