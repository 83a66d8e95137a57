package loop

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := New(testLogger(), 16)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(cancel)
	return l
}

func TestLoopRunsTasksInOrder(t *testing.T) {
	l := startLoop(t)
	ctx := context.Background()

	var order []int
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, l.Post(func() { order = append(order, i) }))
	}

	var snapshot []int
	require.NoError(t, l.Do(ctx, func() error {
		snapshot = append(snapshot, order...)
		return nil
	}))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, snapshot)
}

func TestLoopDoReturnsTaskError(t *testing.T) {
	l := startLoop(t)
	sentinel := errors.New("boom")

	err := l.Do(context.Background(), func() error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}

func TestLoopRecoversFromPanics(t *testing.T) {
	l := startLoop(t)
	ctx := context.Background()

	err := l.Do(ctx, func() error { panic("bad task") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad task")

	assert.NoError(t, l.Do(ctx, func() error { return nil }), "loop keeps running after a panic")
}

func TestLoopStop(t *testing.T) {
	l := New(testLogger(), 1)
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	l.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}

	assert.ErrorIs(t, l.Post(func() {}), ErrClosed)
	assert.ErrorIs(t, l.Do(context.Background(), func() error { return nil }), ErrClosed)
}

func TestLoopContextCancel(t *testing.T) {
	l := New(testLogger(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	<-l.Done()
}

// block occupies the loop until the returned func is called.
func block(t *testing.T, l *Loop) func() {
	t.Helper()
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, l.Post(func() {
		close(started)
		<-release
	}))
	<-started
	return func() { close(release) }
}

func TestLoopDoCancelledBeforeStartNeverRuns(t *testing.T) {
	l := startLoop(t)
	release := block(t, l)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := l.Do(ctx, func() error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	release()
	require.NoError(t, l.Do(context.Background(), func() error { return nil }))
	assert.False(t, ran, "abandoned task must not run")
}

func TestLoopDoWaitsForStartedTask(t *testing.T) {
	l := startLoop(t)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	errs := make(chan error, 1)
	go func() {
		errs <- l.Do(ctx, func() error {
			close(started)
			cancel()
			time.Sleep(10 * time.Millisecond)
			return nil
		})
	}()

	<-started
	assert.NoError(t, <-errs, "a task that ran reports its own result")
}
