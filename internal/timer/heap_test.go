package timer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

var epoch = time.Date(2024, 5, 21, 0, 0, 0, 0, time.UTC)

func blockUntilWaiting(t *testing.T, fc *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("scheduler never waited on the clock: %v", err)
	}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for task")
	}
}

func TestTimerManager_Schedule(t *testing.T) {
	fc := clockwork.NewFakeClockAt(epoch)
	tm := NewTimerManager(fc)
	tm.Start()
	defer tm.Stop()

	executed := make(chan struct{})
	if err := tm.Schedule("test1", epoch.Add(time.Minute), func() { close(executed) }); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	blockUntilWaiting(t, fc)
	fc.Advance(time.Minute)

	waitFor(t, executed)
}

func TestTimerManager_Cancel(t *testing.T) {
	fc := clockwork.NewFakeClockAt(epoch)
	tm := NewTimerManager(fc)

	var executed atomic.Bool
	if err := tm.Schedule("test1", epoch.Add(time.Minute), func() { executed.Store(true) }); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	if !tm.Cancel("test1") {
		t.Error("Cancel returned false")
	}
	if tm.Cancel("test1") {
		t.Error("Cancel of a removed task returned true")
	}

	sentinel := make(chan struct{})
	tm.Schedule("sentinel", epoch.Add(2*time.Minute), func() { close(sentinel) })

	tm.Start()
	defer tm.Stop()
	blockUntilWaiting(t, fc)
	fc.Advance(2 * time.Minute)
	waitFor(t, sentinel)

	if executed.Load() {
		t.Error("Task was executed despite being cancelled")
	}
}

func TestTimerManager_MultipleTasksOrdering(t *testing.T) {
	fc := clockwork.NewFakeClockAt(epoch)
	tm := NewTimerManager(fc)

	var results []int
	var mu sync.Mutex
	record := func(n int) func() {
		return func() {
			mu.Lock()
			results = append(results, n)
			mu.Unlock()
		}
	}

	done := make(chan struct{})
	tm.Schedule("task3", epoch.Add(3*time.Minute), func() { record(3)(); close(done) })
	tm.Schedule("task1", epoch.Add(1*time.Minute), record(1))
	tm.Schedule("task2", epoch.Add(2*time.Minute), record(2))

	tm.Start()
	defer tm.Stop()
	blockUntilWaiting(t, fc)
	fc.Advance(3 * time.Minute)
	waitFor(t, done)

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 3 || results[0] != 1 || results[1] != 2 || results[2] != 3 {
		t.Errorf("Tasks executed in wrong order: %v", results)
	}
}

func TestTimerManager_RescheduleExisting(t *testing.T) {
	fc := clockwork.NewFakeClockAt(epoch)
	tm := NewTimerManager(fc)

	var count atomic.Int32
	done := make(chan struct{})

	tm.Schedule("test1", epoch.Add(2*time.Minute), func() { count.Add(1) })
	// same ID replaces the first task
	tm.Schedule("test1", epoch.Add(time.Minute), func() { count.Add(10); close(done) })

	tm.Start()
	defer tm.Stop()
	blockUntilWaiting(t, fc)
	fc.Advance(3 * time.Minute)
	waitFor(t, done)

	if got := count.Load(); got != 10 {
		t.Errorf("Expected count=10 (only second task), got %d", got)
	}
	if stats := tm.Stats(); stats.ScheduledTasks != 0 || stats.ExecutedTasks != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestTimerManager_CallbacksRunSerially(t *testing.T) {
	tm := NewTimerManager(nil)
	tm.Start()
	defer tm.Stop()

	var running, maxRunning atomic.Int32
	var wg sync.WaitGroup
	now := time.Now()
	for _, id := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		tm.Schedule(id, now, func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				m := maxRunning.Load()
				if n <= m || maxRunning.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
		})
	}
	wg.Wait()

	if got := maxRunning.Load(); got != 1 {
		t.Errorf("expected callbacks to run one at a time, saw %d concurrently", got)
	}
}

func TestTimerManager_CallbackReschedules(t *testing.T) {
	fc := clockwork.NewFakeClockAt(epoch)
	tm := NewTimerManager(fc)
	tm.Start()
	defer tm.Stop()

	var runs atomic.Int32
	tick := make(chan struct{}, 3)
	var sweep func()
	sweep = func() {
		runs.Add(1)
		tick <- struct{}{}
		tm.Schedule("sweep", fc.Now().Add(5*time.Minute), sweep)
	}
	tm.Schedule("sweep", epoch, sweep)

	waitFor(t, tick)
	for i := 0; i < 2; i++ {
		blockUntilWaiting(t, fc)
		fc.Advance(5 * time.Minute)
		waitFor(t, tick)
	}

	if got := runs.Load(); got != 3 {
		t.Errorf("expected 3 runs, got %d", got)
	}
}

func TestTimerManager_StopWaitsForRunningCallback(t *testing.T) {
	tm := NewTimerManager(nil)
	tm.Start()

	started := make(chan struct{})
	release := make(chan struct{})
	tm.Schedule("slow", time.Now(), func() {
		close(started)
		<-release
	})
	waitFor(t, started)

	stopped := make(chan struct{})
	go func() {
		tm.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a callback was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	waitFor(t, stopped)

	if err := tm.Schedule("late", time.Now(), func() {}); err != ErrManagerStopped {
		t.Errorf("expected ErrManagerStopped, got %v", err)
	}
	tm.Stop()
}
