package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Entry is one (key, field, value) row of the keyspace.
type Entry struct {
	Key   string
	Field string
	Value string
}

// HGet returns the value of field in key and whether it exists.
func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	return hget(ctx, s.db, key, field)
}

// HGetAll returns all fields of key. A missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return hgetall(ctx, s.db, key)
}

// Exists reports whether key has at least one field.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	return exists(ctx, s.db, key)
}

// Keys returns every key starting with prefix, in byte order.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT key FROM kv
		WHERE substr(key, 1, length(?)) = ?
		ORDER BY key COLLATE BINARY ASC
	`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("query keys %q: %w", prefix, err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

// Entries returns every row whose key starts with prefix, ordered by key then
// field. An empty prefix returns the whole keyspace.
func (s *Store) Entries(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, field, value FROM kv
		WHERE substr(key, 1, length(?)) = ?
		ORDER BY key COLLATE BINARY ASC, field COLLATE BINARY ASC
	`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("query entries %q: %w", prefix, err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Field, &e.Value); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Snapshot returns the keyspace under prefix as key -> field -> value.
func (s *Store) Snapshot(ctx context.Context, prefix string) (map[string]map[string]string, error) {
	entries, err := s.Entries(ctx, prefix)
	if err != nil {
		return nil, err
	}
	snap := make(map[string]map[string]string)
	for _, e := range entries {
		if snap[e.Key] == nil {
			snap[e.Key] = make(map[string]string)
		}
		snap[e.Key][e.Field] = e.Value
	}
	return snap, nil
}

func hget(ctx context.Context, q queryer, key, field string) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key = ? AND field = ?`, key, field).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("hget %s %s: %w", key, field, err)
	}
	return value, true, nil
}

func hgetall(ctx context.Context, q queryer, key string) (map[string]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT field, value FROM kv WHERE key = ? ORDER BY field COLLATE BINARY ASC`, key)
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	defer rows.Close()

	fields := make(map[string]string)
	for rows.Next() {
		var f, v string
		if err := rows.Scan(&f, &v); err != nil {
			return nil, fmt.Errorf("hgetall %s: scan: %w", key, err)
		}
		fields[f] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hgetall %s: iterate: %w", key, err)
	}
	return fields, nil
}

func exists(ctx context.Context, q queryer, key string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM kv WHERE key = ? LIMIT 1`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return true, nil
}
