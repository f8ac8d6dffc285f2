package repo

import (
	"github.com/roach88/idemproxy/internal/keys"
	"github.com/roach88/idemproxy/internal/model"
	"github.com/roach88/idemproxy/internal/producer"
)

// Tx stages bookkeeping changes. Aux returns the keyspace writes in staging
// order; Commit applies the matching in-memory changes. A Tx that is never
// committed leaves the repository untouched.
type Tx struct {
	r       *Repository
	aux     []producer.AuxOp
	pending []func()
}

// Begin starts a staging transaction.
func (r *Repository) Begin() *Tx {
	return &Tx{r: r}
}

// Aux returns the staged keyspace writes.
func (tx *Tx) Aux() []producer.AuxOp {
	return tx.aux
}

// Empty reports whether nothing was staged.
func (tx *Tx) Empty() bool {
	return len(tx.aux) == 0
}

// Commit applies the staged in-memory changes. Call it only after the
// staged writes were persisted.
func (tx *Tx) Commit() {
	for _, fn := range tx.pending {
		fn()
	}
	tx.pending = nil
}

func (tx *Tx) stage(aux producer.AuxOp, fn func()) {
	tx.aux = append(tx.aux, aux)
	if fn != nil {
		tx.pending = append(tx.pending, fn)
	}
}

// Include stages writes owned by another component. They have no effect on
// the in-memory tables.
func (tx *Tx) Include(aux ...producer.AuxOp) {
	for _, a := range aux {
		tx.stage(a, nil)
	}
}

// PutForward records the full attribute set of k.
func (tx *Tx) PutForward(k model.ObjectKey, attrs model.AttributeSet) {
	attrs = attrs.Clone()
	tx.stage(producer.HMSet(keys.Forward(k), attrs.Map()), func() {
		tx.r.forward[k] = attrs
	})
}

// SetForwardField updates one field of k's attribute set, creating the set
// if it does not exist.
func (tx *Tx) SetForwardField(k model.ObjectKey, fv model.FieldValue) {
	tx.stage(producer.HSet(keys.Forward(k), fv.Field, fv.Value), func() {
		cur := tx.r.forward[k]
		if cur == nil {
			cur = model.AttributeSet{}
		}
		tx.r.forward[k] = cur.With(fv)
	})
}

// DeleteForward drops k's attribute set.
func (tx *Tx) DeleteForward(k model.ObjectKey) {
	tx.stage(producer.Del(keys.Forward(k)), func() {
		delete(tx.r.forward, k)
	})
}

// PutFingerprint maps fp to k.
func (tx *Tx) PutFingerprint(fp keys.Fingerprint, k model.ObjectKey) {
	tx.stage(producer.HSet(fp.String(), k.String(), keys.FingerprintValue), func() {
		tx.r.addFingerprint(fp, k)
	})
}

// DeleteFingerprint removes the mapping fp -> k, leaving other objects that
// share fp in place.
func (tx *Tx) DeleteFingerprint(fp keys.Fingerprint, k model.ObjectKey) {
	tx.stage(producer.HDel(fp.String(), k.String()), func() {
		tx.r.removeFingerprint(fp, k)
	})
}

// PutDefaultSnapshot records the creation-time attributes of k.
func (tx *Tx) PutDefaultSnapshot(k model.ObjectKey, attrs model.AttributeSet) {
	attrs = attrs.Clone()
	tx.stage(producer.HMSet(keys.DefaultForward(k), attrs.Map()), func() {
		tx.r.defaults[k] = attrs
	})
}

// DeleteDefaultSnapshot drops k's creation-time attributes.
func (tx *Tx) DeleteDefaultSnapshot(k model.ObjectKey) {
	tx.stage(producer.Del(keys.DefaultForward(k)), func() {
		delete(tx.r.defaults, k)
	})
}

// PutOwner records k's owner tag.
func (tx *Tx) PutOwner(k model.ObjectKey, owner string) {
	tx.stage(producer.HSet(keys.Owner(k), keys.FieldOwner, owner), func() {
		tx.r.owners[k] = owner
	})
}

// DeleteOwner drops k's owner tag.
func (tx *Tx) DeleteOwner(k model.ObjectKey) {
	tx.stage(producer.Del(keys.Owner(k)), func() {
		delete(tx.r.owners, k)
	})
}

// ObserveHardwareDefault records fv as a first-observed attribute of the
// hardware-originated object k. A field already observed keeps its value.
func (tx *Tx) ObserveHardwareDefault(k model.ObjectKey, fv model.FieldValue) {
	if ledger, ok := tx.r.hwDefaults[k]; ok {
		if _, seen := ledger.Get(fv.Field); seen {
			return
		}
	}
	tx.stage(producer.HSet(keys.DefaultObject(k), fv.Field, fv.Value), func() {
		cur := tx.r.hwDefaults[k]
		if cur == nil {
			cur = model.AttributeSet{}
		}
		if _, seen := cur.Get(fv.Field); !seen {
			tx.r.hwDefaults[k] = cur.With(fv)
		}
	})
}

// DeleteHardwareDefault drops k's ledger entry.
func (tx *Tx) DeleteHardwareDefault(k model.ObjectKey) {
	tx.stage(producer.Del(keys.DefaultObject(k)), func() {
		delete(tx.r.hwDefaults, k)
	})
}

// PutSwitch records the switch singleton id.
func (tx *Tx) PutSwitch(id model.ObjectID) {
	tx.stage(producer.HSet(keys.SwitchSingleton, keys.FieldSwitchOID, id.String()), nil)
}

// PutSwitchField records a switch attribute on the singleton.
func (tx *Tx) PutSwitchField(fv model.FieldValue) {
	tx.stage(producer.HSet(keys.SwitchSingleton, fv.Field, fv.Value), nil)
}

// DeleteSwitch clears the switch singleton.
func (tx *Tx) DeleteSwitch() {
	tx.stage(producer.Del(keys.SwitchSingleton), nil)
}
