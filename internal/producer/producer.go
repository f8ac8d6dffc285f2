package producer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/idemproxy/internal/keys"
	"github.com/roach88/idemproxy/internal/model"
	"github.com/roach88/idemproxy/internal/store"
)

// Producer commits operations to the store and the downstream queue.
//
// Producer is not safe for concurrent use; the lifecycle engine calls it from
// a single goroutine.
type Producer struct {
	store *store.Store
	epoch string
}

// Option configures a Producer.
type Option func(*Producer)

// WithEpochGenerator overrides the UUIDv7 epoch source.
func WithEpochGenerator(gen EpochGenerator) Option {
	return func(p *Producer) {
		p.epoch = gen.Generate()
	}
}

// New creates a Producer writing to s.
func New(s *store.Store, opts ...Option) *Producer {
	p := &Producer{store: s}
	for _, opt := range opts {
		opt(p)
	}
	if p.epoch == "" {
		p.epoch = UUIDv7Generator{}.Generate()
	}
	return p
}

// Epoch returns the identifier stamped on this producer's queue entries.
func (p *Producer) Epoch() string {
	return p.epoch
}

// Apply commits op and its auxiliary writes in one transaction.
// Nothing is written if any step fails.
func (p *Producer) Apply(ctx context.Context, op Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}

	var seq int64
	err := p.store.Update(ctx, func(tx *store.Tx) error {
		for i, aux := range op.Aux {
			if err := applyAux(tx, aux); err != nil {
				return fmt.Errorf("aux[%d] %s: %w", i, aux.Op, err)
			}
		}

		if err := mirrorState(tx, op); err != nil {
			return err
		}

		var err error
		seq, err = tx.AppendOp(p.epoch, string(op.Kind), op.Key.String(), op.Attrs.Map())
		return err
	})
	if err != nil {
		return fmt.Errorf("apply %s %s: %w", op.Kind, op.Key, err)
	}

	slog.Debug("downstream operation committed",
		"kind", op.Kind,
		"key", op.Key.String(),
		"seq", seq,
		"aux", len(op.Aux),
	)
	return nil
}

func applyAux(tx *store.Tx, aux AuxOp) error {
	switch aux.Op {
	case AuxHSet, AuxHMSet:
		return tx.HMSet(aux.Key, aux.Fields)
	case AuxHDel:
		return tx.HDel(aux.Key, aux.Names...)
	case AuxDel:
		return tx.Del(aux.Key)
	}
	return fmt.Errorf("unknown aux op %q", aux.Op)
}

// mirrorState keeps ASIC_STATE:<key> in step with the accepted operation.
func mirrorState(tx *store.Tx, op Operation) error {
	stateKey := keys.ASICState(op.Key)
	switch op.Kind {
	case KindCreate:
		if err := tx.Del(stateKey); err != nil {
			return err
		}
		return tx.HMSet(stateKey, op.Attrs.OrNull().Map())
	case KindSet:
		return tx.HMSet(stateKey, op.Attrs.Map())
	case KindRemove:
		return tx.Del(stateKey)
	}
	return nil
}

// State reads the authoritative hardware state of k.
func (p *Producer) State(ctx context.Context, k model.ObjectKey) (model.AttributeSet, error) {
	fields, err := p.store.HGetAll(ctx, keys.ASICState(k))
	if err != nil {
		return nil, err
	}
	return model.FromMap(fields), nil
}
