// Package board implements the per-peer job index: the in-memory record of
// every job exchanged with one remote peer, the waiters blocked on one of
// those jobs reaching a terminal state, and a bounded queue of jobs to send
// once that peer is (re)connected.
package board

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/openportal-go/openportal/errs"
	"github.com/openportal-go/openportal/grammar"
	"github.com/openportal-go/openportal/internal/logger"
	"github.com/openportal-go/openportal/internal/metrics"
	"github.com/openportal-go/openportal/job"
)

// DefaultTerminalCapacity bounds how many terminal jobs a single board
// retains before it starts evicting the least-recently-touched one
// (spec.md §9 open question: terminal-state eviction policy).
const DefaultTerminalCapacity = 10_000

// waiter is a single-shot notifier for one job id, released when that job
// reaches a terminal state or is removed from the board outright.
type waiter struct {
	notify chan waitResult
}

type waitResult struct {
	job job.Job
	err error
}

// Board is the job index for one peer. All exported methods are safe for
// concurrent use.
type Board struct {
	peer grammar.Peer
	cap  int

	mu      sync.RWMutex
	jobs    map[uuid.UUID]job.Job
	waiters map[uuid.UUID][]waiter
	queue   []job.Job

	// lru orders terminal job ids from least- (front) to most- (back)
	// recently touched; lruElem maps an id to its list.Element so Add can
	// move it to the back in O(1). Pending/Running jobs are never placed
	// on this list — they are never eviction candidates.
	lru     *list.List
	lruElem map[uuid.UUID]*list.Element
}

// New creates an empty board for peer with the default terminal-job
// capacity.
func New(peer grammar.Peer) *Board {
	return NewWithCapacity(peer, DefaultTerminalCapacity)
}

// NewWithCapacity is New with an explicit terminal-job retention cap,
// mostly useful for tests that want to exercise eviction without creating
// thousands of jobs.
func NewWithCapacity(peer grammar.Peer, capacity int) *Board {
	return &Board{
		peer:    peer,
		cap:     capacity,
		jobs:    make(map[uuid.UUID]job.Job),
		waiters: make(map[uuid.UUID][]waiter),
		lru:     list.New(),
		lruElem: make(map[uuid.UUID]*list.Element),
	}
}

// Add records j on the board. If a job with the same id already exists,
// the update is accepted only if j.Version is strictly greater (spec.md §8
// invariant 1); an equal version is a silent no-op, a lower version
// returns ErrBoardOutOfOrder and is discarded (spec.md §7: "logged and
// discarded, a newer version must already exist"). A successful add
// notifies any waiters if the job is now terminal.
func (b *Board) Add(j job.Job) error {
	var toNotify []waiter

	b.mu.Lock()
	existing, ok := b.jobs[j.ID]
	switch {
	case ok && j.Version < existing.Version:
		b.mu.Unlock()
		metrics.BoardOutOfOrder.WithLabelValues(b.peer.String()).Inc()
		logger.Default().Warn("board: rejected out-of-order update",
			logger.String("peer", b.peer.String()),
			logger.String("job", j.ID.String()),
			logger.Uint64("incoming_version", j.Version),
			logger.Uint64("current_version", existing.Version))
		return fmt.Errorf("%w: job %s version %d < current %d", errs.ErrBoardOutOfOrder, j.ID, j.Version, existing.Version)

	case ok && j.Version == existing.Version:
		b.mu.Unlock()
		return nil

	case ok && existing.State.Terminal():
		b.mu.Unlock()
		return fmt.Errorf("%w: job %s already terminal", errs.ErrBoardInvalidTransition, j.ID)
	}

	b.jobs[j.ID] = j
	metrics.JobsTotal.WithLabelValues(b.peer.String(), j.State.String()).Inc()

	if j.State.Terminal() {
		b.touchLRU(j.ID)
		toNotify = b.waiters[j.ID]
		delete(b.waiters, j.ID)
	}
	b.evictIfNeeded()

	b.mu.Unlock()

	for _, w := range toNotify {
		w.notify <- waitResult{job: j}
		close(w.notify)
	}

	metrics.BoardSize.WithLabelValues(b.peer.String()).Set(float64(b.size()))
	return nil
}

// Get returns the current state of job id, if the board has it.
func (b *Board) Get(id uuid.UUID) (job.Job, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	j, ok := b.jobs[id]
	return j, ok
}

// Snapshot returns every job currently on the board, used to rebuild a
// peer's view of a board after reconnect (sync_board).
func (b *Board) Snapshot() []job.Job {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]job.Job, 0, len(b.jobs))
	for _, j := range b.jobs {
		out = append(out, j)
	}
	return out
}

// WaitFor blocks until job id reaches a terminal state, or ctx is done.
// Per spec.md §9, the board lock is never held while waiting: the waiter
// channel is registered and the lock released before this call blocks.
func (b *Board) WaitFor(ctx context.Context, id uuid.UUID) (job.Job, error) {
	b.mu.Lock()
	if j, ok := b.jobs[id]; ok && j.State.Terminal() {
		b.mu.Unlock()
		return j, nil
	}

	ch := make(chan waitResult, 1)
	b.waiters[id] = append(b.waiters[id], waiter{notify: ch})
	b.mu.Unlock()

	select {
	case r := <-ch:
		return r.job, r.err
	case <-ctx.Done():
		return job.Job{}, ctx.Err()
	}
}

// Remove drops id from the board entirely: its job record, its LRU
// bookkeeping if it had reached a terminal state, and any waiter still
// blocked on it (released with ErrBoardNotFound rather than left to hang
// until their context expires). A no-op if id is not tracked (spec.md
// §4.4: "remove(id) — idempotent").
func (b *Board) Remove(id uuid.UUID) {
	b.mu.Lock()
	delete(b.jobs, id)
	toRelease := b.waiters[id]
	delete(b.waiters, id)
	if elem, ok := b.lruElem[id]; ok {
		b.lru.Remove(elem)
		delete(b.lruElem, id)
	}
	b.mu.Unlock()

	for _, w := range toRelease {
		w.notify <- waitResult{err: fmt.Errorf("%w: job %s removed", errs.ErrBoardNotFound, id)}
		close(w.notify)
	}

	metrics.BoardSize.WithLabelValues(b.peer.String()).Set(float64(b.size()))
}

// QueueForSend appends j to the outbound queue for this peer. Sending to a
// disconnected peer never raises: the job survives on the queue until the
// connection replays it (spec.md §8 boundary behaviour).
func (b *Board) QueueForSend(j job.Job) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, j)
}

// DrainQueued removes and returns every job currently queued for send, in
// FIFO order. Called once a connection to this peer is (re)established.
func (b *Board) DrainQueued() []job.Job {
	b.mu.Lock()
	defer b.mu.Unlock()

	drained := b.queue
	b.queue = nil
	return drained
}

// touchLRU moves id to the back of the terminal-job LRU list (most
// recently touched), inserting it if new. Must be called with b.mu held.
func (b *Board) touchLRU(id uuid.UUID) {
	if elem, ok := b.lruElem[id]; ok {
		b.lru.MoveToBack(elem)
		return
	}
	b.lruElem[id] = b.lru.PushBack(id)
}

// evictIfNeeded drops the least-recently-touched terminal job once the
// board holds more terminal jobs than its capacity. Pending/Running jobs
// are never on the LRU list and so are never evicted. Must be called with
// b.mu held.
func (b *Board) evictIfNeeded() {
	for b.lru.Len() > b.cap {
		front := b.lru.Front()
		if front == nil {
			return
		}
		id := front.Value.(uuid.UUID)
		b.lru.Remove(front)
		delete(b.lruElem, id)
		delete(b.jobs, id)
	}
}

// size returns the number of jobs currently tracked, including both
// pending/running and terminal-but-not-yet-evicted ones. Must be called
// without b.mu held (it takes its own read lock).
func (b *Board) size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.jobs)
}
