package cli

import (
	"context"

	"github.com/roach88/idemproxy/internal/engine"
	"github.com/roach88/idemproxy/internal/producer"
	"github.com/roach88/idemproxy/internal/repo"
	"github.com/roach88/idemproxy/internal/store"
	"github.com/roach88/idemproxy/internal/vid"
)

// session is one process lifetime: an open store, the restored
// bookkeeping and an engine over both.
type session struct {
	store  *store.Store
	repo   *repo.Repository
	engine *engine.Engine
	report repo.RestoreReport
}

func openStore(opts *RootOptions) (*store.Store, error) {
	if opts.DB == "" {
		return nil, NewExitError(ExitCommandError, "no database: set --db or db in config")
	}
	st, err := store.Open(opts.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// openSession opens the store and restores the bookkeeping.
func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	st, err := openStore(opts)
	if err != nil {
		return nil, err
	}

	r := repo.New(st)
	report, err := r.Restore(ctx)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to restore bookkeeping", err)
	}

	var allocOpts []vid.Option
	if opts.MaxPerType > 0 {
		allocOpts = append(allocOpts, vid.WithMaxPerType(opts.MaxPerType))
	}
	eng := engine.New(r, producer.New(st), st, vid.NewStoreAllocator(st, allocOpts...))

	return &session{store: st, repo: r, engine: eng, report: report}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}
