package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Closer allows flushing and stopping the async handler.
type Closer interface {
	Close()
}

// nopCloser is a no-op Closer for synchronous mode.
type nopCloser struct{}

func (nopCloser) Close() {}

// AsyncHandler wraps an slog.Handler with a buffered channel and worker pool.
// Handle never blocks the caller: when the buffer is full the record is dropped
// and counted, so a slow sink cannot stall offer timers or HTTP handlers.
type AsyncHandler struct {
	inner slog.Handler
	q     *asyncQueue
}

// asyncQueue is shared by an AsyncHandler and every handler derived from it.
type asyncQueue struct {
	ch      chan queuedRecord
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// queuedRecord keeps the handler that accepted the record so attributes
// and groups added with With survive the hand-off.
type queuedRecord struct {
	h   slog.Handler
	rec slog.Record
}

// NewAsyncHandler creates an AsyncHandler with the given channel capacity and worker count.
func NewAsyncHandler(inner slog.Handler, chanSize, workers int) *AsyncHandler {
	q := &asyncQueue{ch: make(chan queuedRecord, chanSize)}
	for range workers {
		q.wg.Add(1)
		go q.drain()
	}
	return &AsyncHandler{inner: inner, q: q}
}

func (q *asyncQueue) drain() {
	defer q.wg.Done()
	for item := range q.ch {
		_ = item.h.Handle(context.Background(), item.rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record. Drops if the channel is full.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.q.ch <- queuedRecord{h: h.inner, rec: rec.Clone()}:
	default:
		h.q.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a handler sharing the same queue.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), q: h.q}
}

// WithGroup returns a handler sharing the same queue.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), q: h.q}
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.q.dropped.Load()
}

// Close closes the channel and waits for all workers to drain. If records
// were dropped while the buffer was full, a single warning summarising the
// loss is written synchronously to the inner handler.
func (h *AsyncHandler) Close() {
	close(h.q.ch)
	h.q.wg.Wait()

	if n := h.q.dropped.Load(); n > 0 {
		rec := slog.NewRecord(time.Now(), slog.LevelWarn, "async logger dropped records", 0)
		rec.AddAttrs(slog.Int64("dropped", n))
		_ = h.inner.Handle(context.Background(), rec)
	}
}
