package engine

import (
	"fmt"

	"github.com/roach88/idemproxy/internal/model"
)

// ownerScope carries the owner tag of one lifecycle call. It is created at the
// top of a call and never outlives it.
type ownerScope struct {
	tag string
}

func newOwnerScope(tag string) ownerScope {
	return ownerScope{tag: tag}
}

// scoped reports whether the call runs under a non-empty owner.
func (s ownerScope) scoped() bool {
	return s.tag != ""
}

// resolveOwner decides the owner scope of a set on k: the tag recorded at
// creation wins, and a differing non-empty caller tag is rejected.
func resolveOwner(recorded string, hasRecord bool, caller string, k model.ObjectKey) (ownerScope, error) {
	if !hasRecord {
		if caller != "" {
			return ownerScope{}, fmt.Errorf("object %s has no owner, caller claims %q", k, caller)
		}
		return newOwnerScope(""), nil
	}
	if caller != "" && caller != recorded {
		return ownerScope{}, fmt.Errorf("object %s is owned by %q, caller claims %q", k, recorded, caller)
	}
	return newOwnerScope(recorded), nil
}
