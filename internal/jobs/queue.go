package jobs

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/phara0n/ecarv1/internal/logger"
)

// Handler processes one job for an invoice. A non-nil error triggers a
// single retry after a short backoff.
type Handler func(invoiceID uint) error

type job struct {
	kind      string
	invoiceID uint
	attempt   int
}

// Queue runs background work (PDF rendering, notifications) off the
// request path. Jobs are dispatched by kind to registered handlers.
type Queue struct {
	jobs     chan job
	handlers map[string]Handler
	workers  int
	backoff  time.Duration
	log      zerolog.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	closed  bool
}

func NewQueue(workers, buffer int) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		jobs:     make(chan job, buffer),
		handlers: make(map[string]Handler),
		workers:  workers,
		backoff:  500 * time.Millisecond,
		log:      logger.WithComponent("jobs"),
	}
}

// Handle registers the handler for a job kind. Must be called before
// Start.
func (q *Queue) Handle(kind string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		panic("jobs: Handle called after Start")
	}
	q.handlers[kind] = h
}

// Start launches the worker goroutines.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
}

// Stop drains queued jobs and waits for workers to finish. Dispatch
// calls after Stop are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}

// Dispatch enqueues a job. It never blocks the caller: when the buffer
// is full the job is dropped and logged, the caller's request already
// succeeded.
func (q *Queue) Dispatch(kind string, invoiceID uint) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.log.Warn().Str("kind", kind).Uint("invoice_id", invoiceID).Msg("dispatch after stop, dropped")
		return
	}
	select {
	case q.jobs <- job{kind: kind, invoiceID: invoiceID}:
		q.mu.Unlock()
	default:
		q.mu.Unlock()
		q.log.Error().Str("kind", kind).Uint("invoice_id", invoiceID).Msg("queue full, job dropped")
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for j := range q.jobs {
		q.run(j)
	}
}

func (q *Queue) run(j job) {
	h, ok := q.handlers[j.kind]
	if !ok {
		q.log.Error().Str("kind", j.kind).Msg("no handler registered")
		return
	}
	err := h(j.invoiceID)
	if err == nil {
		q.log.Debug().Str("kind", j.kind).Uint("invoice_id", j.invoiceID).Msg("job done")
		return
	}
	if j.attempt == 0 {
		q.log.Warn().Err(err).Str("kind", j.kind).Uint("invoice_id", j.invoiceID).Msg("job failed, retrying")
		time.Sleep(q.backoff)
		j.attempt++
		q.run(j)
		return
	}
	q.log.Error().Err(err).Str("kind", j.kind).Uint("invoice_id", j.invoiceID).Msg("job failed permanently")
}
