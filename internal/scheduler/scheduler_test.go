package scheduler

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankmesh.org/internal/engine"
	"bankmesh.org/internal/obs"
)

func TestMain(m *testing.M) {
	obs.Logger().SetOutput(io.Discard)
	os.Exit(m.Run())
}

type fakeTarget struct {
	passes atomic.Int32
	wake   chan struct{}
	done   chan struct{}
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{wake: make(chan struct{}, 1), done: make(chan struct{})}
}

func (f *fakeTarget) Accrue() engine.AccrualReport {
	f.passes.Add(1)
	return engine.AccrualReport{At: time.Now()}
}

func (f *fakeTarget) Wakeups() <-chan struct{} { return f.wake }
func (f *fakeTarget) Done() <-chan struct{}    { return f.done }

func (f *fakeTarget) Export() engine.Snapshot { return engine.Snapshot{TakenAt: time.Now()} }

func runAsync(fn func()) <-chan struct{} {
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		fn()
	}()
	return exited
}

func waitExit(t *testing.T, exited <-chan struct{}) {
	t.Helper()
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit")
	}
}

func TestRunAccruesOnWakeup(t *testing.T) {
	target := newFakeTarget()
	s := New(target, time.Hour)
	exited := runAsync(func() { s.Run(context.Background()) })

	require.Eventually(t, func() bool { return target.passes.Load() == 1 }, time.Second, 5*time.Millisecond)
	target.wake <- struct{}{}
	require.Eventually(t, func() bool { return target.passes.Load() == 2 }, time.Second, 5*time.Millisecond)

	close(target.done)
	waitExit(t, exited)
}

func TestRunAccruesOnInterval(t *testing.T) {
	target := newFakeTarget()
	s := New(target, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	exited := runAsync(func() { s.Run(ctx) })

	require.Eventually(t, func() bool { return target.passes.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	waitExit(t, exited)
}

func TestRunStopsWithClosedEngine(t *testing.T) {
	e := engine.New()
	e.Close()
	exited := runAsync(func() { New(e, time.Hour).Run(context.Background()) })
	waitExit(t, exited)
}

func TestNewDefaultsInterval(t *testing.T) {
	assert.Equal(t, DefaultInterval, New(newFakeTarget(), 0).interval)
	assert.Equal(t, DefaultSnapshotInterval, NewSnapshotJob(newFakeTarget(), &fakeSink{}, -1).interval)
}

type fakeSink struct {
	mu    sync.Mutex
	saves int
	err   error
}

func (s *fakeSink) Save(ctx context.Context, snap engine.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	return s.err
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func TestSnapshotJobSavesPeriodicallyAndOnClose(t *testing.T) {
	target := newFakeTarget()
	sink := &fakeSink{}
	job := NewSnapshotJob(target, sink, 10*time.Millisecond)
	exited := runAsync(func() { job.Run(context.Background()) })

	require.Eventually(t, func() bool { return sink.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	before := sink.count()
	close(target.done)
	waitExit(t, exited)
	assert.GreaterOrEqual(t, sink.count(), before+1)
}

func TestSnapshotJobKeepsRunningAfterSaveError(t *testing.T) {
	target := newFakeTarget()
	sink := &fakeSink{err: errors.New("db down")}
	job := NewSnapshotJob(target, sink, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	exited := runAsync(func() { job.Run(ctx) })

	require.Eventually(t, func() bool { return sink.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	waitExit(t, exited)
}
