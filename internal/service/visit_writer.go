package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/folio-cms/folio/internal/model"
	"github.com/folio-cms/folio/internal/pkg/logger"
	"github.com/folio-cms/folio/internal/pkg/metrics"
)

// ErrWriterClosed is returned by Record after Close.
var ErrWriterClosed = errors.New("visit writer closed")

// VisitWriter moves visit inserts off the request path. A full buffer drops
// the visit rather than slow the response.
type VisitWriter struct {
	visits  *VisitService
	ch      chan *model.VisitRecord
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	timeout time.Duration
}

func NewVisitWriter(visits *VisitService, size int) *VisitWriter {
	if size <= 0 {
		size = 1000
	}
	w := &VisitWriter{
		visits:  visits,
		ch:      make(chan *model.VisitRecord, size),
		done:    make(chan struct{}),
		timeout: 5 * time.Second,
	}
	go w.process()
	return w
}

// Record stamps the visit now so the stored time is the request time, then
// queues it. The request context is not used for the insert.
func (w *VisitWriter) Record(_ context.Context, rec *model.VisitRecord) error {
	if rec.VisitedAt.IsZero() {
		rec.VisitedAt = w.visits.now().UTC()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWriterClosed
	}
	select {
	case w.ch <- rec:
	default:
		metrics.VisitsDropped.Inc()
		logger.Warn("visit buffer full, dropping visit", "module", "visits", "action", "record", "path", rec.Path)
	}
	return nil
}

func (w *VisitWriter) process() {
	defer close(w.done)
	for rec := range w.ch {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		err := w.visits.Record(ctx, rec)
		cancel()
		if err != nil {
			metrics.VisitInsertErrors.Inc()
			logger.Error("failed to store visit", "module", "visits", "action", "record", "path", rec.Path, "error", err)
		}
	}
}

// Close stops accepting visits and waits for the buffer to drain or ctx to
// end.
func (w *VisitWriter) Close(ctx context.Context) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()

	select {
	case <-w.done:
	case <-ctx.Done():
		logger.Warn("visit writer closed before draining", "module", "visits", "action", "close", "pending", len(w.ch))
	}
}
