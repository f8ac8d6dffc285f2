package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/idemproxy/internal/engine"
	"github.com/roach88/idemproxy/internal/model"
	"github.com/roach88/idemproxy/internal/producer"
	"github.com/roach88/idemproxy/internal/repo"
	"github.com/roach88/idemproxy/internal/store"
	"github.com/roach88/idemproxy/internal/testutil"
	"github.com/roach88/idemproxy/internal/vid"
)

// Harness executes scenario steps against a real engine over a private
// SQLite store.
type Harness struct {
	store   *store.Store
	alloc   *vid.StoreAllocator
	engine  *engine.Engine
	metrics *engine.Metrics
	epoch   string
	logger  *slog.Logger

	// aliases maps alias names (without '$') to ids bound by 'as'.
	aliases map[string]string
	pass    int
}

// Option configures a run.
type Option func(*options)

type options struct {
	metrics *engine.Metrics
	logger  *slog.Logger
}

// WithMetrics makes the run count lifecycle outcomes into m, so several
// runs can share one set of counters.
func WithMetrics(m *engine.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger for harness progress messages. The default
// discards them.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run executes a scenario once on a fresh store and returns the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return run(scenario, false, opts)
}

// RunWarmRestart executes the scenario steps, restarts, and executes the
// same steps again. The replay must return the same ids and must not emit
// any downstream operation.
func RunWarmRestart(scenario *Scenario, opts ...Option) (*Result, error) {
	return run(scenario, true, opts)
}

func run(scenario *Scenario, replay bool, opts []Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = engine.NewMetrics(nil)
	}

	dir, err := os.MkdirTemp("", "idemproxy-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "harness.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	for _, key := range sortedKeys(scenario.Seed) {
		if err := st.HMSet(ctx, key, scenario.Seed[key]); err != nil {
			return nil, fmt.Errorf("failed to seed %s: %w", key, err)
		}
	}

	epoch := scenario.Epoch
	if epoch == "" {
		epoch = DefaultEpoch
	}

	h := &Harness{
		store:   st,
		alloc:   vid.NewStoreAllocator(st),
		metrics: o.metrics,
		epoch:   epoch,
		logger:  o.logger,
		aliases: make(map[string]string),
	}
	if err := h.boot(ctx); err != nil {
		return nil, err
	}

	result := NewResult()
	h.pass = 1
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	if replay {
		before, err := st.LastOpSeq(ctx)
		if err != nil {
			return nil, err
		}
		if err := h.boot(ctx); err != nil {
			return nil, err
		}
		h.pass = 2
		if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
			return nil, fmt.Errorf("failed to replay steps: %w", err)
		}
		after, err := st.LastOpSeq(ctx)
		if err != nil {
			return nil, err
		}
		result.ReplayOps = after - before
		if result.ReplayOps != 0 {
			result.AddError(fmt.Sprintf("warm-restart replay emitted %d downstream operations", result.ReplayOps))
		}
	}

	actx := &AssertionContext{
		Ctx:    ctx,
		Store:  st,
		Trace:  result.Trace,
		Expand: h.expand,
	}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	if result.Keyspace, err = st.Snapshot(ctx, ""); err != nil {
		return nil, err
	}
	if result.Ops, err = st.ReadOps(ctx, 0); err != nil {
		return nil, err
	}

	h.logger.Info("scenario finished", "name", scenario.Name, "pass", result.Pass, "replay_ops", result.ReplayOps)
	return result, nil
}

// boot simulates a process start: a fresh repository restored from the
// store, and a fresh engine over it.
func (h *Harness) boot(ctx context.Context) error {
	r := repo.New(h.store)
	report, err := r.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	h.logger.Debug("restored", "current", report.CurrentFingerprints, "default", report.DefaultFingerprints, "objects", report.Objects)

	writer := producer.New(h.store, producer.WithEpochGenerator(testutil.NewFixedEpochGenerator(h.epoch)))
	h.engine = engine.New(r, writer, h.store, h.alloc, engine.WithMetrics(h.metrics))
	return nil
}

func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		if err := h.executeStep(ctx, i+1, step, result); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
	}
	return nil
}

// executeStep runs one step. Engine failures are outcomes checked against
// the step's expectation; only malformed steps return an error.
func (h *Harness) executeStep(ctx context.Context, n int, step Step, result *Result) error {
	ev := TraceEvent{Pass: h.pass, Step: n, Op: step.Op}

	var id model.ObjectID
	var callErr error
	switch step.Op {
	case StepCreate:
		t := model.ObjectType(step.Type)
		sw := model.NullObjectID
		if step.Switch != "" {
			var err error
			if sw, err = model.ParseObjectID(h.expand(step.Switch)); err != nil {
				return fmt.Errorf("switch: %w", err)
			}
		}
		ev.Key = step.Type
		id, callErr = h.engine.Create(ctx, engine.CreateRequest{
			Type:     t,
			SwitchID: sw,
			Attrs:    h.fieldValues(step.Attrs),
			Owner:    step.Owner,
		})
		if callErr == nil {
			ev.Key = model.KeyFor(t, id).String()
			ev.ID = id.String()
		}

	case StepCreateEntry:
		k, err := model.ParseObjectKey(h.expand(step.Key))
		if err != nil {
			return err
		}
		ev.Key = k.String()
		callErr = h.engine.CreateEntry(ctx, k, h.fieldValues(step.Attrs))

	case StepSet:
		k, err := model.ParseObjectKey(h.expand(step.Key))
		if err != nil {
			return err
		}
		ev.Key = k.String()
		fv := model.FieldValue{Field: step.Field, Value: h.expand(step.Value)}
		callErr = h.engine.Set(ctx, k, fv, step.Owner)

	case StepRemove:
		k, err := model.ParseObjectKey(h.expand(step.Key))
		if err != nil {
			return err
		}
		ev.Key = k.String()
		callErr = h.engine.Remove(ctx, k)

	case StepRestart:
		if err := h.boot(ctx); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	ev.Status = string(engine.Status(callErr))
	result.Trace = append(result.Trace, ev)
	h.checkExpect(ev, step, callErr, result)

	if step.As != "" && callErr == nil {
		h.bind(ev, step.As, id, result)
	}
	return nil
}

func (h *Harness) checkExpect(ev TraceEvent, step Step, callErr error, result *Result) {
	want := string(engine.StatusSuccess)
	if step.Expect != nil && step.Expect.Status != "" {
		want = step.Expect.Status
	}
	if ev.Status != want {
		msg := fmt.Sprintf("pass %d step %d (%s %s): expected status %s, got %s", ev.Pass, ev.Step, ev.Op, ev.Key, want, ev.Status)
		if callErr != nil {
			msg += ": " + callErr.Error()
		}
		result.AddError(msg)
		return
	}

	if step.Expect != nil && step.Expect.ID != "" {
		if wantID := h.expand(step.Expect.ID); ev.ID != wantID {
			result.AddError(fmt.Sprintf("pass %d step %d (%s): expected id %s, got %s", ev.Pass, ev.Step, ev.Op, wantID, ev.ID))
		}
	}
}

// bind records an alias. On the replay pass the alias is already bound and
// the replayed create must have returned the same id.
func (h *Harness) bind(ev TraceEvent, alias string, id model.ObjectID, result *Result) {
	prev, ok := h.aliases[alias]
	if ok && h.pass > 1 && prev != id.String() {
		result.AddError(fmt.Sprintf("pass %d step %d: $%s replayed as %s, first bound to %s", ev.Pass, ev.Step, alias, id, prev))
		return
	}
	h.aliases[alias] = id.String()
}

// expand replaces $alias references with bound ids. Longer aliases are
// replaced first so $p1 does not clobber $p10.
func (h *Harness) expand(s string) string {
	if !strings.Contains(s, "$") || len(h.aliases) == 0 {
		return s
	}
	names := make([]string, 0, len(h.aliases))
	for name := range h.aliases {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		s = strings.ReplaceAll(s, "$"+name, h.aliases[name])
	}
	return s
}

func (h *Harness) fieldValues(attrs map[string]string) []model.FieldValue {
	fields := make([]string, 0, len(attrs))
	for f := range attrs {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := make([]model.FieldValue, 0, len(fields))
	for _, f := range fields {
		out = append(out, model.FieldValue{Field: f, Value: h.expand(attrs[f])})
	}
	return out
}

func sortedKeys(m map[string]map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
