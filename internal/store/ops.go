package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/idemproxy/internal/model"
)

// Op is one entry of the downstream operations queue.
type Op struct {
	Seq   int64
	Epoch string
	Kind  string
	Key   string
	Attrs map[string]string
}

// AppendOp enqueues a downstream operation and returns its sequence number.
// Attrs are stored as canonical JSON.
func (t *Tx) AppendOp(epoch, kind, key string, attrs map[string]string) (int64, error) {
	if attrs == nil {
		attrs = map[string]string{}
	}
	data, err := model.MarshalCanonical(attrs)
	if err != nil {
		return 0, fmt.Errorf("append op: marshal attrs: %w", err)
	}

	res, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO asic_ops (epoch, op, key, attrs) VALUES (?, ?, ?, ?)
	`, epoch, kind, key, string(data))
	if err != nil {
		return 0, fmt.Errorf("append op: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append op: last insert id: %w", err)
	}
	return seq, nil
}

// ReadOps returns queued operations with seq > after, ordered by seq.
// Returns an empty slice (not nil) if none exist.
func (s *Store) ReadOps(ctx context.Context, after int64) ([]Op, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, epoch, op, key, attrs FROM asic_ops
		WHERE seq > ?
		ORDER BY seq ASC
	`, after)
	if err != nil {
		return nil, fmt.Errorf("query ops: %w", err)
	}
	defer rows.Close()

	ops := []Op{}
	for rows.Next() {
		var op Op
		var attrs string
		if err := rows.Scan(&op.Seq, &op.Epoch, &op.Kind, &op.Key, &attrs); err != nil {
			return nil, fmt.Errorf("scan op: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &op.Attrs); err != nil {
			return nil, fmt.Errorf("op %d: unmarshal attrs: %w", op.Seq, err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ops: %w", err)
	}
	return ops, nil
}

// LastOpSeq returns the highest queued sequence number, or 0 when empty.
func (s *Store) LastOpSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM asic_ops`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last op seq: %w", err)
	}
	return seq, nil
}
