package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPool_RunsSubmittedJobs(t *testing.T) {
	p := NewPool(4, 16, zap.NewNop())

	var ran atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		err := p.Submit("job", func(ctx context.Context) {
			defer wg.Done()
			ran.Add(1)
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()
	if got := ran.Load(); got != 10 {
		t.Errorf("ran = %d, want 10", got)
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestPool_QueueFull(t *testing.T) {
	p := NewPool(1, 1, zap.NewNop())
	defer p.Stop(context.Background())

	release := make(chan struct{})
	started := make(chan struct{})
	// Occupy the single worker.
	if err := p.Submit("blocker", func(ctx context.Context) {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("Submit blocker: %v", err)
	}
	<-started

	// Fill the queue, then the next submit must be rejected.
	if err := p.Submit("queued", func(ctx context.Context) {}); err != nil {
		t.Fatalf("Submit queued: %v", err)
	}
	if err := p.Submit("overflow", func(ctx context.Context) {}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Submit overflow = %v, want ErrQueueFull", err)
	}
	close(release)
}

func TestPool_RecoversPanickingJob(t *testing.T) {
	p := NewPool(1, 4, zap.NewNop())

	panicked := make(chan struct{})
	if err := p.Submit("faulty", func(ctx context.Context) {
		close(panicked)
		panic("driver blew up")
	}); err != nil {
		t.Fatalf("Submit faulty: %v", err)
	}
	<-panicked

	// The worker must survive and run the next job.
	done := make(chan struct{})
	if err := p.Submit("next", func(ctx context.Context) {
		close(done)
	}); err != nil {
		t.Fatalf("Submit next: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not run job after a panicking one")
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestPool_SubmitDuringStopDoesNotPanic(t *testing.T) {
	for i := 0; i < 50; i++ {
		p := NewPool(2, 8, zap.NewNop())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if err := p.Submit("racer", func(ctx context.Context) {}); err != nil {
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			_ = p.Stop(context.Background())
		}()
		wg.Wait()

		if err := p.Submit("late", func(ctx context.Context) {}); !errors.Is(err, ErrStopped) {
			t.Fatalf("Submit after Stop = %v, want ErrStopped", err)
		}
	}
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(1, 1, zap.NewNop())
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := p.Submit("late", func(ctx context.Context) {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Submit after Stop = %v, want ErrStopped", err)
	}
}

func TestPool_StopDrainsQueuedJobs(t *testing.T) {
	p := NewPool(1, 8, zap.NewNop())

	var ran atomic.Int64
	for i := 0; i < 5; i++ {
		if err := p.Submit("drain", func(ctx context.Context) {
			time.Sleep(5 * time.Millisecond)
			ran.Add(1)
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := ran.Load(); got != 5 {
		t.Errorf("ran = %d, want 5 (queued jobs must drain on Stop)", got)
	}
}

func TestPool_StopTimeout(t *testing.T) {
	p := NewPool(1, 1, zap.NewNop())

	release := make(chan struct{})
	started := make(chan struct{})
	_ = p.Submit("slow", func(ctx context.Context) {
		close(started)
		<-release
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stop = %v, want DeadlineExceeded", err)
	}
	close(release)
}
