// Package registry tracks the latest known status of every submitted job.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"imagine/internal/domain"
)

const mirrorTimeout = 3 * time.Second

// Mirror receives every accepted status write, for example to persist it.
type Mirror interface {
	SaveStatus(ctx context.Context, jobID string, status domain.JobStatus) error
}

// Registry is a concurrency-safe map from job ID to status. Entries live
// until the process exits.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]domain.JobStatus

	mirror Mirror
	queue  *mirrorQueue
	logger zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithMirror forwards writes to m after they are applied in memory. Writes
// reach m one at a time, in the order they were applied.
func WithMirror(m Mirror) Option {
	return func(r *Registry) { r.mirror = m }
}

// WithLogger sets the logger used to report mirror failures.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New builds a Registry. With a mirror configured it starts a background
// writer; call Close to drain and stop it.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]domain.JobStatus),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.mirror != nil {
		r.queue = newMirrorQueue()
		go r.runMirror()
	}
	return r
}

// Get returns the status recorded for jobID.
func (r *Registry) Get(jobID string) (domain.JobStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.entries[jobID]
	return s, ok
}

// Set records status for jobID and returns the previous value, if any.
func (r *Registry) Set(jobID string, status domain.JobStatus) (domain.JobStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, existed := r.entries[jobID]
	r.entries[jobID] = status
	r.enqueue(jobID, status)
	return prev, existed
}

// SetUnlessTerminal records status unless the entry already holds a
// terminal status. It returns the status now stored and whether the write
// was applied.
func (r *Registry) SetUnlessTerminal(jobID string, status domain.JobStatus) (domain.JobStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[jobID]; ok && cur.IsTerminal() {
		return cur, false
	}
	r.entries[jobID] = status
	r.enqueue(jobID, status)
	return status, true
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Restore seeds entries loaded from a previous run. Existing entries win.
// Restored entries are not written back to the mirror.
func (r *Registry) Restore(entries map[string]domain.JobStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range entries {
		if _, ok := r.entries[id]; ok {
			continue
		}
		r.entries[id] = s
		n++
	}
	return n
}

// Close waits for queued mirror writes to finish, or for ctx to end.
// Writes accepted after Close are kept in memory only.
func (r *Registry) Close(ctx context.Context) error {
	if r.queue == nil {
		return nil
	}
	r.queue.close()
	select {
	case <-r.queue.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue must be called with r.mu held so queue order matches apply order.
func (r *Registry) enqueue(jobID string, status domain.JobStatus) {
	if r.queue == nil {
		return
	}
	if !r.queue.push(mirrorOp{jobID: jobID, status: status}) {
		r.logger.Warn().Str("job_id", jobID).Str("status", status.String()).Msg("registry: mirror closed, write not persisted")
	}
}

func (r *Registry) runMirror() {
	defer close(r.queue.done)
	for {
		ops, closed := r.queue.take()
		for _, op := range ops {
			r.save(op)
		}
		if len(ops) > 0 {
			continue
		}
		if closed {
			return
		}
		<-r.queue.wake
	}
}

func (r *Registry) save(op mirrorOp) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := r.mirror.SaveStatus(ctx, op.jobID, op.status); err != nil {
		r.logger.Warn().Err(err).Str("job_id", op.jobID).Str("status", op.status.String()).Msg("registry: mirror write failed")
	}
}

type mirrorOp struct {
	jobID  string
	status domain.JobStatus
}

// mirrorQueue is an unbounded FIFO between writers and the mirror goroutine,
// so a slow mirror never blocks a status write.
type mirrorQueue struct {
	mu     sync.Mutex
	ops    []mirrorOp
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newMirrorQueue() *mirrorQueue {
	return &mirrorQueue{wake: make(chan struct{}, 1), done: make(chan struct{})}
}

func (q *mirrorQueue) push(op mirrorOp) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.ops = append(q.ops, op)
	q.mu.Unlock()
	q.signal()
	return true
}

func (q *mirrorQueue) take() ([]mirrorOp, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ops := q.ops
	q.ops = nil
	return ops, q.closed
}

func (q *mirrorQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *mirrorQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
