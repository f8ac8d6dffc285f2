package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/idemproxy/internal/model"
	"github.com/roach88/idemproxy/internal/producer"
	"github.com/roach88/idemproxy/internal/repo"
	"github.com/roach88/idemproxy/internal/store"
	"github.com/roach88/idemproxy/internal/testutil"
)

type fixture struct {
	store  *store.Store
	writer *testutil.RecordingWriter
	alloc  *testutil.SequentialAllocator
	engine *Engine
}

// newFixture builds an engine over a fresh store, optionally seeded with
// hashes before restore.
func newFixture(t *testing.T, seed map[string]map[string]string) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	for key, fields := range seed {
		require.NoError(t, s.HMSet(testCtx(t), key, fields))
	}

	f := &fixture{store: s, alloc: testutil.NewSequentialAllocator()}
	f.restart(t)
	return f
}

// restart simulates a warm restart: new repository and writer over the same
// store, restored from scratch.
func (f *fixture) restart(t *testing.T) {
	t.Helper()
	r := repo.New(f.store)
	_, err := r.Restore(testCtx(t))
	require.NoError(t, err)

	f.writer = testutil.NewRecordingWriter(producer.New(f.store, producer.WithEpochGenerator(testutil.NewFixedEpochGenerator("test"))))
	f.engine = New(r, f.writer, f.store, f.alloc)
}

func (f *fixture) hgetall(t *testing.T, key string) map[string]string {
	t.Helper()
	m, err := f.store.HGetAll(testCtx(t), key)
	require.NoError(t, err)
	return m
}

func (f *fixture) exists(t *testing.T, key string) bool {
	t.Helper()
	ok, err := f.store.Exists(testCtx(t), key)
	require.NoError(t, err)
	return ok
}

func (f *fixture) snapshot(t *testing.T) map[string]map[string]string {
	t.Helper()
	snap, err := f.store.Snapshot(testCtx(t), "")
	require.NoError(t, err)
	return snap
}

func fvs(pairs ...string) []model.FieldValue {
	out := make([]model.FieldValue, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.FieldValue{Field: pairs[i], Value: pairs[i+1]})
	}
	return out
}
