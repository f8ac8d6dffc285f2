package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/idemproxy/internal/keys"
	"github.com/roach88/idemproxy/internal/model"
	"github.com/roach88/idemproxy/internal/producer"
	"github.com/roach88/idemproxy/internal/repo"
	"github.com/roach88/idemproxy/internal/vid"
)

// Writer commits an operation and its bookkeeping writes as one batch.
// Implemented by *producer.Producer.
type Writer interface {
	Apply(ctx context.Context, op producer.Operation) error
}

// StateReader reads the authoritative keyspace: ASIC_STATE and the switch
// singleton. Implemented by *store.Store.
type StateReader interface {
	Exists(ctx context.Context, key string) (bool, error)
	HGet(ctx context.Context, key, field string) (string, bool, error)
}

// Allocator hands out object ids. Implemented by *vid.StoreAllocator.
type Allocator interface {
	Allocate(ctx context.Context, t model.ObjectType, switchID model.ObjectID) (model.ObjectID, error)
	// ReleaseOps returns the writes that give id back. They are committed in
	// the same batch as the removal of id.
	ReleaseOps(id model.ObjectID) []producer.AuxOp
}

// CreateRequest describes an object creation.
type CreateRequest struct {
	Type     model.ObjectType
	SwitchID model.ObjectID
	Attrs    []model.FieldValue

	// Owner scopes the object's current fingerprint. Empty means unscoped.
	Owner string
}

// Engine applies lifecycle calls idempotently.
//
// Engine is not safe for concurrent use: callers must serialize calls.
type Engine struct {
	repo    *repo.Repository
	writer  Writer
	state   StateReader
	alloc   Allocator
	metrics *Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records outcomes in m instead of a private unregistered set.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine over a repository. The repository must be restored
// before the first lifecycle call.
func New(r *repo.Repository, w Writer, state StateReader, alloc Allocator, opts ...Option) *Engine {
	e := &Engine{
		repo:   r,
		writer: w,
		state:  state,
		alloc:  alloc,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	return e
}

// Repository returns the engine's bookkeeping.
func (e *Engine) Repository() *repo.Repository {
	return e.repo
}

// Metrics returns the engine's outcome counters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

const (
	opCreate      = "create"
	opCreateEntry = "create_entry"
	opSet         = "set"
	opRemove      = "remove"
)

// Create creates an object unless an object with the same type, owner and
// attributes already exists, in which case the existing id is returned and
// nothing is written.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (model.ObjectID, error) {
	id, outcome, err := e.create(ctx, req)
	e.record(opCreate, outcome, err)
	return id, err
}

// CreateEntry creates a structured-key entry (route, neighbor, FDB) unless
// attributes are already recorded for key.
func (e *Engine) CreateEntry(ctx context.Context, key model.ObjectKey, attrs []model.FieldValue) error {
	outcome, err := e.createEntry(ctx, key, attrs)
	e.record(opCreateEntry, outcome, err)
	return err
}

// Set assigns one attribute. Setting a value the object already has is a
// no-op. A non-empty owner must match the owner recorded at creation.
func (e *Engine) Set(ctx context.Context, key model.ObjectKey, fv model.FieldValue, owner string) error {
	outcome, err := e.set(ctx, key, fv, owner)
	e.record(opSet, outcome, err)
	return err
}

// Remove removes an object and all of its bookkeeping. Removing an object
// that is unknown to both the bookkeeping and the hardware state succeeds
// without writing anything.
func (e *Engine) Remove(ctx context.Context, key model.ObjectKey) error {
	outcome, err := e.remove(ctx, key)
	e.record(opRemove, outcome, err)
	return err
}

func (e *Engine) record(op, outcome string, err error) {
	if err != nil {
		outcome = OutcomeError
	}
	e.metrics.observe(op, outcome)
}

func (e *Engine) checkRestored(op string) error {
	if !e.repo.Restored() {
		return fmt.Errorf("%s: %w", op, repo.ErrNotRestored)
	}
	return nil
}

func (e *Engine) create(ctx context.Context, req CreateRequest) (model.ObjectID, string, error) {
	if err := e.checkRestored(opCreate); err != nil {
		return model.NullObjectID, "", err
	}

	info, err := model.LookupType(req.Type)
	if err != nil {
		return model.NullObjectID, "", invalidParameter(opCreate, string(req.Type), err)
	}
	if info.Structured {
		return model.NullObjectID, "", invalidParameter(opCreate, string(req.Type),
			errors.New("structured entries are created with CreateEntry"))
	}

	given, err := model.NewAttributeSet(req.Attrs...)
	if err != nil {
		return model.NullObjectID, "", invalidParameter(opCreate, string(req.Type), err)
	}
	attrs := given.OrNull()
	scope := newOwnerScope(req.Owner)

	if req.Type.IsSwitch() {
		return e.createSwitch(ctx, given, attrs)
	}

	warnSeparatorHazard(opCreate, string(req.Type), scope, attrs)

	fp := keys.Current(scope.tag, attrs)
	if k, ok := e.resolveForCreate(fp, req.Type); ok {
		if recorded, crossed := e.ownerMismatch(k, scope); crossed {
			slog.Warn("fingerprint shared across owners", "key", k.String(), "fingerprint", fp.String(), "owner", scope.tag, "recorded_owner", recorded)
		}
		return e.replayCreate(k, fp)
	}
	dfp := keys.Default(attrs)
	if k, ok := e.resolveForCreate(dfp, req.Type); ok {
		return e.replayCreate(k, dfp)
	}

	id, err := e.allocate(ctx, req.Type, req.SwitchID)
	if err != nil {
		return model.NullObjectID, "", err
	}
	k := model.KeyFor(req.Type, id)

	tx := e.repo.Begin()
	tx.PutForward(k, attrs)
	tx.PutFingerprint(fp, k)
	if scope.scoped() {
		tx.PutOwner(k, scope.tag)
	}

	if err := e.apply(ctx, tx, producer.Operation{Key: k, Attrs: given, Kind: producer.KindCreate}); err != nil {
		return model.NullObjectID, "", err
	}

	slog.Info("object created", "key", k.String(), "fingerprint", fp.String(), "owner", scope.tag)
	return id, OutcomeApplied, nil
}

func (e *Engine) createSwitch(ctx context.Context, given, attrs model.AttributeSet) (model.ObjectID, string, error) {
	if _, ok := given.Get(keys.FieldSwitchOID); ok {
		return model.NullObjectID, "", invalidParameter(opCreate, string(model.TypeSwitch), ErrReservedSwitchField)
	}
	raw, ok, err := e.state.HGet(ctx, keys.SwitchSingleton, keys.FieldSwitchOID)
	if err != nil {
		return model.NullObjectID, "", fmt.Errorf("create switch: %w", err)
	}
	if ok {
		id, err := model.ParseObjectID(raw)
		if err != nil {
			return model.NullObjectID, "", fmt.Errorf("create switch: corrupt %s: %w", keys.SwitchSingleton, err)
		}
		slog.Debug("create replayed", "key", model.KeyFor(model.TypeSwitch, id).String(), "via", keys.SwitchSingleton)
		return id, OutcomeReplayed, nil
	}

	id, err := e.allocate(ctx, model.TypeSwitch, model.NullObjectID)
	if err != nil {
		return model.NullObjectID, "", err
	}
	k := model.KeyFor(model.TypeSwitch, id)

	tx := e.repo.Begin()
	tx.PutForward(k, attrs)
	for _, f := range given.Fields() {
		tx.PutSwitchField(model.FieldValue{Field: f, Value: given[f]})
	}
	tx.PutSwitch(id)

	if err := e.apply(ctx, tx, producer.Operation{Key: k, Attrs: given, Kind: producer.KindCreate}); err != nil {
		return model.NullObjectID, "", err
	}

	slog.Info("switch created", "key", k.String())
	return id, OutcomeApplied, nil
}

func (e *Engine) replayCreate(k model.ObjectKey, fp keys.Fingerprint) (model.ObjectID, string, error) {
	id, err := k.ObjectID()
	if err != nil {
		return model.NullObjectID, "", fmt.Errorf("create: %w", err)
	}
	slog.Debug("create replayed", "key", k.String(), "fingerprint", fp.String())
	return id, OutcomeReplayed, nil
}

// resolveForCreate picks the object registered under fp. An ambiguous
// fingerprint resolves to its lowest object key so replays stay stable.
func (e *Engine) resolveForCreate(fp keys.Fingerprint, t model.ObjectType) (model.ObjectKey, bool) {
	hits := e.repo.Lookup(fp, t)
	if len(hits) == 0 {
		return model.ObjectKey{}, false
	}
	if len(hits) > 1 {
		slog.Warn("ambiguous fingerprint on create", "fingerprint", fp.String(), "objects", len(hits), "chosen", hits[0].String())
	}
	return hits[0], true
}

// ownerMismatch returns the owner recorded for k when it differs from the
// caller's scope. The owner tag is prepended to the canonical join without a
// delimiter, so owner "a" with {b=1} and no owner with {ab=1} share a
// fingerprint.
func (e *Engine) ownerMismatch(k model.ObjectKey, scope ownerScope) (string, bool) {
	recorded, _ := e.repo.Owner(k)
	return recorded, recorded != scope.tag
}

func (e *Engine) allocate(ctx context.Context, t model.ObjectType, switchID model.ObjectID) (model.ObjectID, error) {
	id, err := e.alloc.Allocate(ctx, t, switchID)
	switch {
	case errors.Is(err, vid.ErrExhausted):
		return model.NullObjectID, insufficientResources(opCreate, err)
	case errors.Is(err, vid.ErrInvalidSwitch):
		return model.NullObjectID, invalidParameter(opCreate, switchID.String(), err)
	case err != nil:
		return model.NullObjectID, fmt.Errorf("create %s: %w", t, err)
	}
	e.metrics.allocated(string(t))
	return id, nil
}

func (e *Engine) createEntry(ctx context.Context, key model.ObjectKey, attrs []model.FieldValue) (string, error) {
	if err := e.checkRestored(opCreateEntry); err != nil {
		return "", err
	}
	if !key.Type.Structured() || key.ID == "" {
		return "", invalidParameter(opCreateEntry, key.String(), errors.New("not a structured entry key"))
	}

	if _, ok := e.repo.Forward(key); ok {
		slog.Debug("create replayed", "key", key.String())
		return OutcomeReplayed, nil
	}

	given, err := model.NewAttributeSet(attrs...)
	if err != nil {
		return "", invalidParameter(opCreateEntry, key.String(), err)
	}

	tx := e.repo.Begin()
	tx.PutForward(key, given.OrNull())
	if err := e.apply(ctx, tx, producer.Operation{Key: key, Attrs: given, Kind: producer.KindCreate}); err != nil {
		return "", err
	}

	slog.Info("entry created", "key", key.String())
	return OutcomeApplied, nil
}

func (e *Engine) set(ctx context.Context, k model.ObjectKey, fv model.FieldValue, owner string) (string, error) {
	if err := e.checkRestored(opSet); err != nil {
		return "", err
	}
	if !k.Type.Valid() {
		return "", invalidParameter(opSet, k.String(), model.ErrUnknownObjectType)
	}
	single, err := model.NewAttributeSet(fv)
	if err != nil {
		return "", invalidParameter(opSet, k.String(), err)
	}
	fv = model.FieldValue{Field: single.Fields()[0], Value: single[single.Fields()[0]]}
	op := producer.Operation{Key: k, Attrs: single, Kind: producer.KindSet}

	if k.Type.IsSwitch() {
		return e.setSwitch(ctx, k, fv, op)
	}

	cur, known := e.repo.Forward(k)
	if known {
		if v, ok := cur.Get(fv.Field); ok && v == fv.Value {
			slog.Debug("set is a no-op", "key", k.String(), "field", fv.Field)
			return OutcomeNoop, nil
		}
	}

	tx := e.repo.Begin()

	switch {
	case !known:
		// First sight of a hardware-originated object.
		tx.ObserveHardwareDefault(k, fv)
		tx.SetForwardField(k, fv)
		if err := e.apply(ctx, tx, op); err != nil {
			return "", err
		}
		slog.Info("hardware default object recorded", "key", k.String(), "field", fv.Field)
		return OutcomeApplied, nil

	case e.repo.IsHardwareDefault(k) || k.Type.Structured():
		if e.repo.IsHardwareDefault(k) {
			tx.ObserveHardwareDefault(k, fv)
		}
		tx.SetForwardField(k, fv)
		if err := e.apply(ctx, tx, op); err != nil {
			return "", err
		}
		slog.Info("attribute set", "key", k.String(), "field", fv.Field)
		return OutcomeApplied, nil
	}

	recorded, hasOwner := e.repo.Owner(k)
	scope, err := resolveOwner(recorded, hasOwner, owner, k)
	if err != nil {
		return "", invalidParameter(opSet, k.String(), err)
	}

	oldFP := keys.Current(scope.tag, cur)
	if hits := e.repo.Lookup(oldFP, k.Type); len(hits) != 1 || hits[0] != k {
		slog.Error("current fingerprint does not resolve", "key", k.String(), "fingerprint", oldFP.String(), "hits", len(hits))
		return "", itemNotFound(opSet, k.String(), "current fingerprint %s does not resolve to the object", oldFP)
	}
	tx.DeleteFingerprint(oldFP, k)

	if _, ok := e.repo.DefaultSnapshot(k); !ok {
		tx.PutDefaultSnapshot(k, cur)
		dfp := keys.Default(cur)
		switch hits := e.repo.Lookup(dfp, k.Type); {
		case len(hits) == 0:
			tx.PutFingerprint(dfp, k)
		case !contains(hits, k):
			slog.Warn("default fingerprint held by another object", "key", k.String(), "fingerprint", dfp.String(), "holder", hits[0].String())
		}
	}

	next := cur.With(fv)
	newFP := keys.Current(scope.tag, next)
	warnSeparatorHazard(opSet, k.String(), scope, next)
	if hits := e.repo.Lookup(newFP, k.Type); len(hits) > 0 {
		slog.Warn("fingerprint already in use", "key", k.String(), "fingerprint", newFP.String(), "holder", hits[0].String())
	}
	tx.SetForwardField(k, fv)
	tx.PutFingerprint(newFP, k)

	if err := e.apply(ctx, tx, op); err != nil {
		return "", err
	}

	slog.Info("attribute set", "key", k.String(), "field", fv.Field, "fingerprint", newFP.String())
	return OutcomeApplied, nil
}

func (e *Engine) setSwitch(ctx context.Context, k model.ObjectKey, fv model.FieldValue, op producer.Operation) (string, error) {
	if fv.Field == keys.FieldSwitchOID {
		return "", invalidParameter(opSet, k.String(), ErrReservedSwitchField)
	}
	stored, ok, err := e.state.HGet(ctx, keys.SwitchSingleton, fv.Field)
	if err != nil {
		return "", fmt.Errorf("set %s: %w", k, err)
	}
	if ok && stored == fv.Value {
		slog.Debug("set is a no-op", "key", k.String(), "field", fv.Field)
		return OutcomeNoop, nil
	}

	tx := e.repo.Begin()
	tx.PutSwitchField(fv)
	tx.SetForwardField(k, fv)
	if err := e.apply(ctx, tx, op); err != nil {
		return "", err
	}
	slog.Info("switch attribute set", "key", k.String(), "field", fv.Field)
	return OutcomeApplied, nil
}

func (e *Engine) remove(ctx context.Context, k model.ObjectKey) (string, error) {
	if err := e.checkRestored(opRemove); err != nil {
		return "", err
	}
	if !k.Type.Valid() {
		return "", invalidParameter(opRemove, k.String(), model.ErrUnknownObjectType)
	}
	op := producer.Operation{Key: k, Kind: producer.KindRemove}

	cur, known := e.repo.Forward(k)
	if !known {
		present, err := e.state.Exists(ctx, keys.ASICState(k))
		if err != nil {
			return "", fmt.Errorf("remove %s: %w", k, err)
		}
		if !present {
			slog.Debug("remove replayed", "key", k.String())
			return OutcomeReplayed, nil
		}

		// The object predates the bookkeeping.
		tx := e.repo.Begin()
		if k.Type.IsSwitch() {
			tx.DeleteSwitch()
			if err := e.stageSwitchRelease(tx, k); err != nil {
				return "", err
			}
		}
		if err := e.apply(ctx, tx, op); err != nil {
			return "", err
		}
		slog.Info("untracked object removed", "key", k.String())
		return OutcomeApplied, nil
	}

	tx := e.repo.Begin()
	tx.DeleteForward(k)

	switch {
	case k.Type.Structured():
	case k.Type.IsSwitch():
		tx.DeleteSwitch()
		if err := e.stageSwitchRelease(tx, k); err != nil {
			return "", err
		}
	case e.repo.IsHardwareDefault(k):
		tx.DeleteHardwareDefault(k)
	default:
		if err := e.stageFingerprintRemoval(tx, k, cur); err != nil {
			return "", err
		}
	}

	if err := e.apply(ctx, tx, op); err != nil {
		return "", err
	}

	slog.Info("object removed", "key", k.String())
	return OutcomeApplied, nil
}

func (e *Engine) stageFingerprintRemoval(tx *repo.Tx, k model.ObjectKey, cur model.AttributeSet) error {
	recorded, hasOwner := e.repo.Owner(k)
	scope := newOwnerScope(recorded)
	if hasOwner {
		tx.DeleteOwner(k)
	}

	fp := keys.Current(scope.tag, cur)
	if hits := e.repo.Lookup(fp, k.Type); len(hits) != 1 || hits[0] != k {
		slog.Error("current fingerprint does not resolve", "key", k.String(), "fingerprint", fp.String(), "hits", len(hits))
		return itemNotFound(opRemove, k.String(), "current fingerprint %s does not resolve to the object", fp)
	}
	tx.DeleteFingerprint(fp, k)

	snap, ok := e.repo.DefaultSnapshot(k)
	if !ok {
		return nil
	}
	dfp := keys.Default(snap)
	hits := e.repo.Lookup(dfp, k.Type)
	switch {
	case len(hits) == 0:
		slog.Error("default fingerprint missing", "key", k.String(), "fingerprint", dfp.String())
		return itemNotFound(opRemove, k.String(), "default fingerprint %s is missing", dfp)
	case contains(hits, k):
		tx.DeleteFingerprint(dfp, k)
	default:
		slog.Debug("default fingerprint held by another object", "key", k.String(), "fingerprint", dfp.String())
	}
	tx.DeleteDefaultSnapshot(k)
	return nil
}

// stageSwitchRelease adds the switch index release to the removal batch.
func (e *Engine) stageSwitchRelease(tx *repo.Tx, k model.ObjectKey) error {
	id, err := k.ObjectID()
	if err != nil {
		return invalidParameter(opRemove, k.String(), err)
	}
	tx.Include(e.alloc.ReleaseOps(id)...)
	return nil
}

// apply hands the operation and the staged writes to the writer, then
// commits the staged changes to memory.
func (e *Engine) apply(ctx context.Context, tx *repo.Tx, op producer.Operation) error {
	op.Aux = tx.Aux()
	if err := e.writer.Apply(ctx, op); err != nil {
		return fmt.Errorf("%s %s: %w", op.Kind, op.Key, err)
	}
	tx.Commit()
	return nil
}

func warnSeparatorHazard(op, subject string, scope ownerScope, attrs model.AttributeSet) {
	if hazards := keys.SeparatorHazard(scope.tag, attrs); len(hazards) > 0 {
		slog.Warn("fingerprint input contains separator characters", "op", op, "subject", subject, "inputs", hazards)
	}
}

func contains(ks []model.ObjectKey, k model.ObjectKey) bool {
	for _, x := range ks {
		if x == k {
			return true
		}
	}
	return false
}
