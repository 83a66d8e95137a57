// Package loop runs engine work on a single goroutine.
//
// Every externally triggered operation and every timer firing is a Task
// drained in FIFO order, so sessions and the registry never need locks and
// no two operations interleave.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// ErrClosed is returned when work is submitted to a stopped loop.
var ErrClosed = errors.New("event loop closed")

// Task is a unit of work executed on the loop goroutine.
type Task func()

// Loop is an ordered, single-consumer task queue.
type Loop struct {
	tasks    chan Task
	done     chan struct{}
	stopOnce sync.Once
	logger   *log.Logger
}

// New creates a loop whose queue holds up to buffer pending tasks before
// Post blocks.
func New(logger *log.Logger, buffer int) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		tasks:  make(chan Task, buffer),
		done:   make(chan struct{}),
		logger: logger.WithPrefix("loop"),
	}
}

// Run drains tasks until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("Event loop started")
	defer l.logger.Debug("Event loop stopped")

	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.done:
			return nil
		case task := <-l.tasks:
			l.execute(task)
		}
	}
}

func (l *Loop) execute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Task panicked", "panic", r)
		}
	}()
	task()
}

// Post enqueues a task without waiting for it to run.
func (l *Loop) Post(task Task) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}

	select {
	case l.tasks <- task:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

const (
	taskPending int32 = iota
	taskStarted
	taskAbandoned
)

// Do runs fn on the loop and waits for its result. The call is all or
// nothing: when ctx ends or the loop stops before fn has started, fn never
// runs and the error is returned. Once fn has started Do waits for it, so a
// nil error always means fn ran and a non-nil one never hides a commit.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	var state atomic.Int32
	result := make(chan error, 1)
	err := l.Post(func() {
		if !state.CompareAndSwap(taskPending, taskStarted) {
			return
		}
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
				l.logger.Error("Task panicked", "panic", r)
			}
			result <- err
		}()
		err = fn()
	})
	if err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		if state.CompareAndSwap(taskPending, taskAbandoned) {
			return ctx.Err()
		}
	case <-l.done:
		if state.CompareAndSwap(taskPending, taskAbandoned) {
			return ErrClosed
		}
	}
	return <-result
}

// Stop halts the loop. Pending tasks are dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
}

// Done is closed once the loop has been stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
