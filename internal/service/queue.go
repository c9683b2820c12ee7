package service

import (
	"context"
	"sync"

	"github.com/folio-cms/folio/internal/pkg/logger"
)

type jobState int

const (
	jobQueued jobState = iota + 1
	jobRunning
	jobRerun
)

// Queue runs orchestration passes on background workers. At most one pass
// per entity is in flight; saves arriving meanwhile coalesce into one rerun.
type Queue struct {
	orch    *Orchestrator
	jobs    chan uint
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	state   map[uint]jobState
	closeMu sync.RWMutex
	closed  bool
}

func NewQueue(orch *Orchestrator, workers, size int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		orch:   orch,
		jobs:   make(chan uint, size),
		ctx:    ctx,
		cancel: cancel,
		state:  make(map[uint]jobState),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue schedules a pass. A full queue drops the job: the rows stay
// pending and `portfolioctl translate -pending` picks them up later.
func (q *Queue) Enqueue(entityID uint) bool {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return false
	}

	q.mu.Lock()
	switch q.state[entityID] {
	case jobQueued, jobRerun:
		q.mu.Unlock()
		return true
	case jobRunning:
		q.state[entityID] = jobRerun
		q.mu.Unlock()
		return true
	}
	q.state[entityID] = jobQueued
	q.mu.Unlock()

	select {
	case q.jobs <- entityID:
		return true
	default:
		q.mu.Lock()
		delete(q.state, entityID)
		q.mu.Unlock()
		logger.Warn("translation queue full, dropping job", "module", "queue", "action", "enqueue", "entity_id", entityID)
		return false
	}
}

// Depth is the number of entities waiting or running.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.state)
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for id := range q.jobs {
		q.process(id)
	}
}

func (q *Queue) process(entityID uint) {
	q.mu.Lock()
	q.state[entityID] = jobRunning
	q.mu.Unlock()

	for {
		if _, err := q.orch.Run(q.ctx, entityID); err != nil {
			logger.Error("background translation pass failed", "module", "queue", "action", "run", "entity_id", entityID, "error", err)
		}

		q.mu.Lock()
		if q.state[entityID] == jobRerun && q.ctx.Err() == nil {
			q.state[entityID] = jobRunning
			q.mu.Unlock()
			continue
		}
		delete(q.state, entityID)
		q.mu.Unlock()
		return
	}
}

// Close stops accepting jobs, lets queued passes finish and waits for the
// workers. Cancelling ctx aborts passes still running.
func (q *Queue) Close(ctx context.Context) {
	q.closeMu.Lock()
	if q.closed {
		q.closeMu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		q.cancel()
		<-done
	}
	q.cancel()
}
