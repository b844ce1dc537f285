// Package perkey serializes work per key while work for different keys runs
// concurrently.
//
// The topology facade runs its read-modify-write sequences against the store
// through it: mutations touching the same entity (a collection's shard map,
// the Target server table) run one after another, unrelated ones in parallel.
package perkey

import (
	"context"
	"errors"
	"sync"
)

// ErrSchedulerClosed is returned for work submitted after Close.
var ErrSchedulerClosed = errors.New("scheduler is closed")

// queueSize bounds the pending tasks of one key.
const queueSize = 64

// Scheduler runs the tasks of one key in submission order, each key on its
// own goroutine.
type Scheduler[K comparable] struct {
	mu      sync.Mutex
	queues  map[K]chan *task
	closed  bool
	pending sync.WaitGroup
}

type task struct {
	fn   func() error
	done chan error
}

func New[K comparable]() *Scheduler[K] {
	return &Scheduler[K]{queues: make(map[K]chan *task)}
}

// Do runs fn after every earlier task of key and returns its error. When ctx
// ends first Do returns ctx.Err(); a task already queued still runs.
func (s *Scheduler[K]) Do(ctx context.Context, key K, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	s.pending.Add(1)
	q := s.queueLocked(key)
	s.mu.Unlock()
	defer s.pending.Done()

	t := &task{fn: fn, done: make(chan error, 1)}
	select {
	case q <- t:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects new work and stops the key goroutines once their queues
// drain.
func (s *Scheduler[K]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	// no sends on a closed queue
	s.pending.Wait()

	s.mu.Lock()
	for _, q := range s.queues {
		close(q)
	}
	s.queues = nil
	s.mu.Unlock()
}

func (s *Scheduler[K]) queueLocked(key K) chan *task {
	if q, ok := s.queues[key]; ok {
		return q
	}
	q := make(chan *task, queueSize)
	s.queues[key] = q
	go func() {
		for t := range q {
			t.done <- t.fn()
		}
	}()
	return q
}

// Run is Do for tasks that produce a value.
func Run[K comparable, T any](ctx context.Context, s *Scheduler[K], key K, fn func() (T, error)) (T, error) {
	var out T
	err := s.Do(ctx, key, func() error {
		var err error
		out, err = fn()
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
