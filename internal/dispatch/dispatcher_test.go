package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gridmind/gridmind/internal/core"
	"github.com/gridmind/gridmind/internal/logging"
)

// fakeClient scripts completion outcomes per call.
type fakeClient struct {
	mu       sync.Mutex
	calls    int
	inFlight int32
	peak     int32
	respond  func(call int) (*core.CompletionResponse, error)
	delay    time.Duration
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) Complete(ctx context.Context, req core.CompletionRequest) (*core.CompletionResponse, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if cur <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, cur) {
			break
		}
	}
	defer atomic.AddInt32(&f.inFlight, -1)

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, core.ErrTimeout("call deadline").WithCause(ctx.Err())
		}
	}

	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if f.respond != nil {
		return f.respond(call)
	}
	return &core.CompletionResponse{Text: "ok"}, nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fastRetry() *RetryPolicy {
	return &RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestDispatch_TimeoutThenSuccess(t *testing.T) {
	client := &fakeClient{
		respond: func(call int) (*core.CompletionResponse, error) {
			if call == 1 {
				return nil, core.ErrTimeout("simulated timeout")
			}
			return &core.CompletionResponse{Text: "recovered"}, nil
		},
	}
	d := NewDispatcher(client, Config{Retry: fastRetry()}, logging.NewNop())

	resp, err := d.Dispatch(context.Background(), core.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "recovered" {
		t.Fatalf("expected recovered response, got %q", resp.Text)
	}
	if client.callCount() != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", client.callCount())
	}
}

func TestDispatch_NonRetryableImmediate(t *testing.T) {
	client := &fakeClient{
		respond: func(call int) (*core.CompletionResponse, error) {
			return nil, core.ErrAuth("bad key")
		},
	}
	d := NewDispatcher(client, Config{Retry: fastRetry()}, logging.NewNop())

	_, err := d.Dispatch(context.Background(), core.CompletionRequest{})
	if !core.IsCategory(err, core.ErrCatAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if client.callCount() != 1 {
		t.Fatalf("auth failure must not retry, got %d calls", client.callCount())
	}
}

func TestDispatch_RetriesExhausted(t *testing.T) {
	client := &fakeClient{
		respond: func(call int) (*core.CompletionResponse, error) {
			return nil, core.ErrService("still down")
		},
	}
	d := NewDispatcher(client, Config{Retry: fastRetry()}, logging.NewNop())

	_, err := d.Dispatch(context.Background(), core.CompletionRequest{})
	if !core.IsCategory(err, core.ErrCatService) {
		t.Fatalf("expected surfaced service error, got %v", err)
	}
	// Ceiling of 2 retries: 3 calls total.
	if client.callCount() != 3 {
		t.Fatalf("expected 3 calls, got %d", client.callCount())
	}
}

func TestDispatch_ConcurrencyCap(t *testing.T) {
	const maxInFlight = 3
	client := &fakeClient{delay: 20 * time.Millisecond}
	d := NewDispatcher(client, Config{Concurrency: maxInFlight, Retry: fastRetry()}, logging.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Dispatch(context.Background(), core.CompletionRequest{}); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak := atomic.LoadInt32(&client.peak); peak > maxInFlight {
		t.Fatalf("concurrency cap exceeded: peak %d > %d", peak, maxInFlight)
	}
	if client.callCount() != 12 {
		t.Fatalf("expected 12 calls, got %d", client.callCount())
	}
}

func TestDispatch_CancelledWhileWaiting(t *testing.T) {
	client := &fakeClient{delay: 200 * time.Millisecond}
	d := NewDispatcher(client, Config{Concurrency: 1, Retry: fastRetry()}, logging.NewNop())

	// Saturate the single slot.
	go d.Dispatch(context.Background(), core.CompletionRequest{})
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Dispatch(ctx, core.CompletionRequest{})
	if !core.IsCategory(err, core.ErrCatCancelled) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
}

func TestRetryPolicy_DelayGrowsAndCaps(t *testing.T) {
	p := &RetryPolicy{MaxRetries: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}

	if d := p.delay(1); d != 100*time.Millisecond {
		t.Fatalf("attempt 1: expected 100ms, got %v", d)
	}
	if d := p.delay(2); d != 200*time.Millisecond {
		t.Fatalf("attempt 2: expected 200ms, got %v", d)
	}
	if d := p.delay(4); d != 300*time.Millisecond {
		t.Fatalf("attempt 4: expected cap 300ms, got %v", d)
	}
}

func TestRateLimiter_Acquire(t *testing.T) {
	r := NewRateLimiter(2, 100)

	if !r.TryAcquire() || !r.TryAcquire() {
		t.Fatalf("expected two tokens available")
	}
	if r.TryAcquire() {
		t.Fatalf("expected bucket drained")
	}

	// Refills at 100/s; one token arrives within the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Acquire(ctx); err != nil {
		t.Fatalf("expected refill, got %v", err)
	}
}

func TestRateLimiter_NilNeverBlocks(t *testing.T) {
	var r *RateLimiter
	if err := r.Acquire(context.Background()); err != nil {
		t.Fatalf("nil limiter must not block: %v", err)
	}
}
