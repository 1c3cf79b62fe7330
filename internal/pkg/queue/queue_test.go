package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rahmatsuhadi/kawis-sub001/internal/pkg/metrics"
)

func TestMain(m *testing.M) {
	metrics.InitMetrics()
	m.Run()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueue_RunsEnqueuedJobs(t *testing.T) {
	q := NewQueue(testLogger(), 3, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	var completed atomic.Int32
	for i := 0; i < 5; i++ {
		ok := q.Enqueue(func(ctx context.Context) error {
			completed.Add(1)
			return nil
		})
		if !ok {
			t.Fatalf("enqueue job %d failed", i)
		}
	}

	q.Shutdown()

	if completed.Load() != 5 {
		t.Fatalf("expected 5 completed jobs, got %d", completed.Load())
	}
	if stats := q.Stats(); stats.Enqueued != 5 || stats.Succeeded != 5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestQueue_CountsFailures(t *testing.T) {
	q := NewQueue(testLogger(), 2, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(func(ctx context.Context) error { return nil })
	q.Enqueue(func(ctx context.Context) error { return errors.New("send failed") })

	q.Shutdown()

	stats := q.Stats()
	if stats.Succeeded != 1 {
		t.Fatalf("expected 1 success, got %d", stats.Succeeded)
	}
	if stats.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", stats.Failed)
	}
}

func TestQueue_RecoversFromPanic(t *testing.T) {
	q := NewQueue(testLogger(), 1, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(func(ctx context.Context) error {
		panic("intentional panic")
	})

	// worker 没有因为 panic 挂掉，后续任务仍会执行
	var executed atomic.Bool
	q.Enqueue(func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})

	q.Shutdown()

	if stats := q.Stats(); stats.Panics != 1 {
		t.Fatalf("expected 1 panic, got %d", stats.Panics)
	}
	if !executed.Load() {
		t.Fatal("job after panic was not executed")
	}
}

func TestQueue_DropsWhenFull(t *testing.T) {
	q := NewQueue(testLogger(), 1, 1)
	// 不启动 worker，入队第二个任务时队列必然已满

	q.Enqueue(func(ctx context.Context) error { return nil })
	if ok := q.Enqueue(func(ctx context.Context) error { return nil }); ok {
		t.Fatal("expected enqueue on a full queue to fail")
	}

	if stats := q.Stats(); stats.Dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", stats.Dropped)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	q.Shutdown()
}

func TestQueue_RejectsAfterShutdown(t *testing.T) {
	q := NewQueue(testLogger(), 1, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	q.Shutdown()

	if ok := q.Enqueue(func(ctx context.Context) error { return nil }); ok {
		t.Fatal("expected enqueue after shutdown to fail")
	}
}

func TestQueue_ShutdownWithTimeout(t *testing.T) {
	q := NewQueue(testLogger(), 1, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	release := make(chan struct{})
	q.Enqueue(func(ctx context.Context) error {
		<-release
		return nil
	})

	// 任务长时间不结束，限时关闭应当超时返回
	time.Sleep(50 * time.Millisecond)
	if ok := q.ShutdownWithTimeout(100 * time.Millisecond); ok {
		t.Fatal("expected shutdown to time out")
	}
	close(release)
}
