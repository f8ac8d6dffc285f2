package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/idemproxy/internal/producer"
)

// ErrInjected is returned by a RecordingWriter armed with FailNext.
var ErrInjected = errors.New("injected writer failure")

// Applier is the downstream writer a RecordingWriter forwards to.
type Applier interface {
	Apply(ctx context.Context, op producer.Operation) error
}

// RecordingWriter records every operation it accepts and optionally forwards
// it to a real writer.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingWriter struct {
	mu       sync.Mutex
	next     Applier
	ops      []producer.Operation
	failNext int
}

// NewRecordingWriter creates a writer that forwards to next. A nil next
// records only.
func NewRecordingWriter(next Applier) *RecordingWriter {
	return &RecordingWriter{next: next}
}

// FailNext makes the next n Apply calls fail with ErrInjected without
// recording or forwarding anything.
func (w *RecordingWriter) FailNext(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failNext = n
}

// Apply implements the engine's Writer.
func (w *RecordingWriter) Apply(ctx context.Context, op producer.Operation) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.failNext > 0 {
		w.failNext--
		return ErrInjected
	}
	if w.next != nil {
		if err := w.next.Apply(ctx, op); err != nil {
			return err
		}
	}
	w.ops = append(w.ops, op)
	return nil
}

// Ops returns the accepted operations in order.
func (w *RecordingWriter) Ops() []producer.Operation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]producer.Operation(nil), w.ops...)
}

// Reset forgets recorded operations.
func (w *RecordingWriter) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ops = nil
}
