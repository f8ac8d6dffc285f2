package producer

import (
	"fmt"

	"github.com/roach88/idemproxy/internal/model"
)

// Kind is the kind of downstream operation.
type Kind string

const (
	KindCreate Kind = "create"
	KindSet    Kind = "set"
	KindRemove Kind = "remove"
)

// AuxKind names an auxiliary keyspace write.
type AuxKind string

const (
	AuxHSet  AuxKind = "HSET"
	AuxHMSet AuxKind = "HMSET"
	AuxHDel  AuxKind = "HDEL"
	AuxDel   AuxKind = "DEL"
)

// AuxOp is one bookkeeping write committed together with an Operation.
// HSET and HMSET use Fields; HDEL uses Names; DEL uses neither.
type AuxOp struct {
	Op     AuxKind
	Key    string
	Fields map[string]string
	Names  []string
}

func HSet(key, field, value string) AuxOp {
	return AuxOp{Op: AuxHSet, Key: key, Fields: map[string]string{field: value}}
}

func HMSet(key string, fields map[string]string) AuxOp {
	return AuxOp{Op: AuxHMSet, Key: key, Fields: fields}
}

func HDel(key string, names ...string) AuxOp {
	return AuxOp{Op: AuxHDel, Key: key, Names: names}
}

func Del(key string) AuxOp {
	return AuxOp{Op: AuxDel, Key: key}
}

func (a AuxOp) String() string {
	switch a.Op {
	case AuxHDel:
		return fmt.Sprintf("%s %s %v", a.Op, a.Key, a.Names)
	case AuxDel:
		return fmt.Sprintf("%s %s", a.Op, a.Key)
	default:
		return fmt.Sprintf("%s %s %s", a.Op, a.Key, model.FromMap(a.Fields).Canonical())
	}
}

// Operation is a create, set or remove of one object, plus its bookkeeping.
// For KindSet, Attrs holds only the changed field.
type Operation struct {
	Key   model.ObjectKey
	Attrs model.AttributeSet
	Kind  Kind
	Aux   []AuxOp
}

// Validate checks the operation's shape.
func (op Operation) Validate() error {
	switch op.Kind {
	case KindCreate, KindRemove:
	case KindSet:
		if len(op.Attrs) != 1 {
			return fmt.Errorf("set %s: expected exactly one attribute, got %d", op.Key, len(op.Attrs))
		}
	default:
		return fmt.Errorf("operation %s: unknown kind %q", op.Key, op.Kind)
	}
	if op.Key.IsZero() {
		return fmt.Errorf("%s operation: empty object key", op.Kind)
	}
	for i, aux := range op.Aux {
		switch aux.Op {
		case AuxHSet, AuxHMSet:
			if len(aux.Fields) == 0 {
				return fmt.Errorf("aux[%d] %s %s: no fields", i, aux.Op, aux.Key)
			}
		case AuxHDel:
			if len(aux.Names) == 0 {
				return fmt.Errorf("aux[%d] HDEL %s: no field names", i, aux.Key)
			}
		case AuxDel:
		default:
			return fmt.Errorf("aux[%d]: unknown op %q", i, aux.Op)
		}
		if aux.Key == "" {
			return fmt.Errorf("aux[%d] %s: empty key", i, aux.Op)
		}
	}
	return nil
}
