package resilience

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
)

var errUnavailable = apperrors.New(apperrors.Unavailable, "origin down")

func testBreaker(threshold, halfOpen int) (*Breaker, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return New("test", Config{Threshold: threshold, ResetTimeout: time.Second, HalfOpenSuccesses: halfOpen, Clock: clock}), clock
}

func TestBreakerInitialState(t *testing.T) {
	b := New("test", DefaultConfig())
	if b.State() != Closed {
		t.Errorf("initial state = %v, want Closed", b.State())
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := testBreaker(3, 2)

	for i := 0; i < 3; i++ {
		b.Failure()
	}

	if b.State() != Open {
		t.Errorf("state = %v, want Open", b.State())
	}
}

func TestBreakerRejectsWhenOpen(t *testing.T) {
	b, _ := testBreaker(1, 1)
	b.Failure()

	err := b.Allow()
	if !apperrors.IsCode(err, apperrors.Unavailable) {
		t.Errorf("Allow() = %v, want Unavailable", err)
	}
	if appErr, _ := apperrors.As(err); appErr.Metadata["breaker"] != "test" {
		t.Errorf("metadata = %v, want breaker name", appErr.Metadata)
	}
}

func TestBreakerTransitionsToHalfOpen(t *testing.T) {
	b, clock := testBreaker(1, 1)
	b.Failure()

	clock.Advance(2 * time.Second)

	if err := b.Allow(); err != nil {
		t.Errorf("Allow() = %v, want nil", err)
	}
	if b.State() != HalfOpen {
		t.Errorf("state = %v, want HalfOpen", b.State())
	}
}

func TestBreakerClosesAfterSuccesses(t *testing.T) {
	b, clock := testBreaker(1, 2)
	b.Failure()

	clock.Advance(2 * time.Second)
	_ = b.Allow()

	b.Success()
	b.Success()

	if b.State() != Closed {
		t.Errorf("state = %v, want Closed", b.State())
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b, clock := testBreaker(1, 3)
	b.Failure()

	clock.Advance(2 * time.Second)
	_ = b.Allow()

	b.Failure()

	if b.State() != Open {
		t.Errorf("state = %v, want Open", b.State())
	}
}

func TestBreakerReset(t *testing.T) {
	b, _ := testBreaker(1, 1)
	b.Failure()

	if b.State() != Open {
		t.Fatal("expected open state")
	}

	b.Reset()

	if b.State() != Closed {
		t.Errorf("state = %v, want Closed", b.State())
	}
}

func TestBreakerExecute(t *testing.T) {
	b, _ := testBreaker(2, 1)

	if err := b.Execute(func() error { return nil }); err != nil {
		t.Errorf("Execute success = %v, want nil", err)
	}

	if err := b.Execute(func() error { return errUnavailable }); err != errUnavailable {
		t.Errorf("Execute failure = %v, want %v", err, errUnavailable)
	}
}

func TestBreakerIgnoresPermanentErrors(t *testing.T) {
	b, _ := testBreaker(1, 1)
	notFound := apperrors.New(apperrors.NotFound, "missing")

	for i := 0; i < 5; i++ {
		_ = b.Execute(func() error { return notFound })
	}
	if b.State() != Closed {
		t.Errorf("state = %v, want Closed after NotFound errors", b.State())
	}

	_ = b.Execute(func() error { return errUnavailable })
	if b.State() != Open {
		t.Errorf("state = %v, want Open after Unavailable", b.State())
	}
}

func TestBreakerExecuteWithResult(t *testing.T) {
	b := New("test", FetchConfig())

	result, err := ExecuteWithResult(b, func() ([]byte, error) {
		return []byte("png"), nil
	})
	if err != nil || string(result) != "png" {
		t.Errorf("ExecuteWithResult = (%q, %v), want (png, nil)", result, err)
	}
}

func TestBreakerHook(t *testing.T) {
	var transitions []struct{ from, to State }
	b, clock := testBreaker(1, 1)
	b.WithHook(func(from, to State) {
		transitions = append(transitions, struct{ from, to State }{from, to})
	})

	b.Failure()
	clock.Advance(2 * time.Second)
	_ = b.Allow()
	b.Success()

	if len(transitions) != 3 {
		t.Errorf("got %d transitions, want 3", len(transitions))
	}
}

func TestBreakerConcurrentSafety(t *testing.T) {
	b, _ := testBreaker(100, 10)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Allow()
			if i%2 == 0 {
				b.Success()
			} else {
				b.Failure()
			}
		}()
	}
	wg.Wait()

	_ = b.State()
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Closed, "closed"},
		{Open, "open"},
		{HalfOpen, "half-open"},
	}

	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.Threshold != DefaultThreshold {
		t.Errorf("Threshold = %d, want %d", cfg.Threshold, DefaultThreshold)
	}
	if cfg.ResetTimeout != DefaultResetTimeout {
		t.Errorf("ResetTimeout = %v, want %v", cfg.ResetTimeout, DefaultResetTimeout)
	}
	if cfg.HalfOpenSuccesses != DefaultHalfOpenSuccesses {
		t.Errorf("HalfOpenSuccesses = %d, want %d", cfg.HalfOpenSuccesses, DefaultHalfOpenSuccesses)
	}
	if cfg.Clock == nil {
		t.Error("Clock should default to the real clock")
	}
}

func TestSuccessResetsFailures(t *testing.T) {
	b, _ := testBreaker(3, 1)

	b.Failure()
	b.Failure()
	b.Success()
	b.Failure()
	b.Failure()

	if b.State() != Closed {
		t.Errorf("state = %v, want Closed", b.State())
	}
}
