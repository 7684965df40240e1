package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// upstreamDown is an error that trips the breaker under the default ShouldTrip.
var upstreamDown = NewUpstreamError("roof", 503, nil)

func TestCircuitBreaker_ClosedState_PassesThrough(t *testing.T) {
	cb := NewCircuitBreaker("roof", DefaultCircuitBreakerConfig())

	var calls int
	err := cb.Execute(context.Background(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed state, got %s", cb.State())
	}
	if cb.Name() != "roof" {
		t.Errorf("expected name roof, got %s", cb.Name())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("roof", CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), func(_ context.Context) error {
			return upstreamDown
		})
	}

	if cb.State() != CircuitOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	err := cb.Execute(context.Background(), func(_ context.Context) error {
		t.Error("should not be called when circuit is open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_NonTransientErrorsDoNotTrip(t *testing.T) {
	cb := NewCircuitBreaker("roof", CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})

	notFound := NewUpstreamError("roof", 404, nil)
	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), func(_ context.Context) error { return notFound })
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed state after non-transient errors, got %s", cb.State())
	}
}

func TestCircuitBreaker_SuccessResetsCounter(t *testing.T) {
	cb := NewCircuitBreaker("roof", CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func(_ context.Context) error { return upstreamDown })
	}
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return nil })
	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func(_ context.Context) error { return upstreamDown })
	}

	if cb.State() != CircuitClosed {
		t.Errorf("expected closed state, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker("roof", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 100 * time.Millisecond})

	now := time.Now()
	cb.nowFunc = func() time.Time { return now }

	_ = cb.Execute(context.Background(), func(_ context.Context) error { return upstreamDown })
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	cb.nowFunc = func() time.Time { return now.Add(200 * time.Millisecond) }
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open state, got %s", cb.State())
	}

	var called bool
	err := cb.Execute(context.Background(), func(_ context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("probe should have been called")
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed state after probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailure_Reopens(t *testing.T) {
	cb := NewCircuitBreaker("roof", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 100 * time.Millisecond})

	now := time.Now()
	cb.nowFunc = func() time.Time { return now }
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return upstreamDown })

	cb.nowFunc = func() time.Time { return now.Add(200 * time.Millisecond) }
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return upstreamDown })

	// lastFailureTime is now+200ms, so the circuit is open again at that instant.
	if cb.State() != CircuitOpen {
		t.Errorf("expected open state after failed probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var (
		mu          sync.Mutex
		transitions []string
	)
	cb := NewCircuitBreaker("roof", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(name string, from, to CircuitState) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(context.Background(), func(_ context.Context) error { return upstreamDown })
	cb.Reset()

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %v", transitions)
	}
	if transitions[0] != "roof:closed->open" || transitions[1] != "roof:open->closed" {
		t.Errorf("unexpected transitions %v", transitions)
	}
}

func TestCircuitBreaker_CustomShouldTrip(t *testing.T) {
	cb := NewCircuitBreaker("roof", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		ShouldTrip:       func(err error) bool { return err != nil },
	})

	_ = cb.Execute(context.Background(), func(_ context.Context) error { return errors.New("anything") })
	if cb.State() != CircuitOpen {
		t.Errorf("expected open state, got %s", cb.State())
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker("roof", CircuitBreakerConfig{FailureThreshold: 1000, ResetTimeout: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = cb.Execute(context.Background(), func(_ context.Context) error {
				if i%2 == 0 {
					return upstreamDown
				}
				return nil
			})
		}(i)
	}
	wg.Wait()

	if cb.State() != CircuitClosed {
		t.Errorf("expected closed state, got %s", cb.State())
	}
}

func TestExecuteVal(t *testing.T) {
	cb := NewCircuitBreaker("roof", DefaultCircuitBreakerConfig())

	val, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}
}

func TestExecuteVal_CircuitOpen(t *testing.T) {
	cb := NewCircuitBreaker("roof", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return upstreamDown })

	val, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (string, error) {
		t.Error("should not be called")
		return "nope", nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if val != "" {
		t.Errorf("expected zero value, got %q", val)
	}
}

func TestBreakers_GetOrCreate(t *testing.T) {
	b := NewBreakers(DefaultCircuitBreakerConfig())

	first := b.Get("sonnendach")
	second := b.Get("sonnendach")
	other := b.Get("google_solar")

	if first != second {
		t.Error("expected the same breaker for the same service")
	}
	if first == other {
		t.Error("expected distinct breakers for distinct services")
	}
}

func TestBreakers_States(t *testing.T) {
	b := NewBreakers(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	_ = b.Get("healthy")
	_ = b.Get("down").Execute(context.Background(), func(_ context.Context) error { return upstreamDown })

	states := b.States()
	if states["healthy"] != CircuitClosed {
		t.Errorf("expected healthy closed, got %s", states["healthy"])
	}
	if states["down"] != CircuitOpen {
		t.Errorf("expected down open, got %s", states["down"])
	}
}

func TestCircuitState_String(t *testing.T) {
	cases := map[CircuitState]string{
		CircuitClosed:    "closed",
		CircuitOpen:      "open",
		CircuitHalfOpen:  "half-open",
		CircuitState(99): "unknown",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("expected %q, got %q", want, s.String())
		}
	}
}
