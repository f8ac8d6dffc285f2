package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
)

// Tx is a write batch bound to one SQLite transaction.
// It is only valid inside the function passed to Update.
type Tx struct {
	ctx context.Context
	tx  queryer
}

// Update runs fn inside a single transaction. If fn returns an error the
// transaction is rolled back and the error is returned unchanged.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update: begin tx: %w", err)
	}
	defer sqlTx.Rollback() // No-op if committed

	if err := fn(&Tx{ctx: ctx, tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("update: commit: %w", err)
	}
	return nil
}

// HSet writes one field of key.
func (s *Store) HSet(ctx context.Context, key, field, value string) error {
	return hset(ctx, s.db, key, field, value)
}

// HMSet writes several fields of key in one transaction.
func (s *Store) HMSet(ctx context.Context, key string, fields map[string]string) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.HMSet(key, fields) })
}

// HDel removes fields from key. Removing the last field deletes the key.
func (s *Store) HDel(ctx context.Context, key string, fields ...string) error {
	return hdel(ctx, s.db, key, fields...)
}

// Del deletes key and all of its fields.
func (s *Store) Del(ctx context.Context, key string) error {
	return del(ctx, s.db, key)
}

// Incr increments the integer stored at (key, field), creating it at 1.
func (s *Store) Incr(ctx context.Context, key, field string) (int64, error) {
	return incr(ctx, s.db, key, field)
}

func (t *Tx) HGet(key, field string) (string, bool, error) { return hget(t.ctx, t.tx, key, field) }
func (t *Tx) HGetAll(key string) (map[string]string, error) { return hgetall(t.ctx, t.tx, key) }
func (t *Tx) Exists(key string) (bool, error)               { return exists(t.ctx, t.tx, key) }
func (t *Tx) HSet(key, field, value string) error           { return hset(t.ctx, t.tx, key, field, value) }
func (t *Tx) HDel(key string, fields ...string) error       { return hdel(t.ctx, t.tx, key, fields...) }
func (t *Tx) Del(key string) error                          { return del(t.ctx, t.tx, key) }
func (t *Tx) Incr(key, field string) (int64, error)         { return incr(t.ctx, t.tx, key, field) }

// HMSet writes fields in sorted order so statement order is deterministic.
func (t *Tx) HMSet(key string, fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)
	for _, f := range names {
		if err := hset(t.ctx, t.tx, key, f, fields[f]); err != nil {
			return err
		}
	}
	return nil
}

func hset(ctx context.Context, q queryer, key, field, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO kv (key, field, value) VALUES (?, ?, ?)
		ON CONFLICT(key, field) DO UPDATE SET value = excluded.value
	`, key, field, value)
	if err != nil {
		return fmt.Errorf("hset %s %s: %w", key, field, err)
	}
	return nil
}

func hdel(ctx context.Context, q queryer, key string, fields ...string) error {
	for _, f := range fields {
		if _, err := q.ExecContext(ctx, `DELETE FROM kv WHERE key = ? AND field = ?`, key, f); err != nil {
			return fmt.Errorf("hdel %s %s: %w", key, f, err)
		}
	}
	return nil
}

func del(ctx context.Context, q queryer, key string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

func incr(ctx context.Context, q queryer, key, field string) (int64, error) {
	var raw string
	err := q.QueryRowContext(ctx, `
		INSERT INTO kv (key, field, value) VALUES (?, ?, '1')
		ON CONFLICT(key, field) DO UPDATE SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT)
		RETURNING value
	`, key, field).Scan(&raw)
	if err != nil {
		return 0, fmt.Errorf("incr %s %s: %w", key, field, err)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("incr %s %s: corrupt counter %q: %w", key, field, raw, err)
	}
	return n, nil
}
