package retry

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestBackoffFormula(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		n    int
		want time.Duration
	}{
		{0, 0},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
	}
	for _, c := range cases {
		if got := p.Backoff(c.n); got != c.want {
			t.Errorf("Backoff(%d) = %v, want %v", c.n, got, c.want)
		}
	}
}

func TestBackoffCappedAtMax(t *testing.T) {
	p := DefaultPolicy()
	p.MaxAttempts = 10
	got := p.Backoff(8)
	if got != p.MaxBackoff {
		t.Errorf("Backoff(8) = %v, want capped %v", got, p.MaxBackoff)
	}
}

func TestBackoffNonDecreasing(t *testing.T) {
	p := DefaultPolicy()
	prev := time.Duration(0)
	for n := 1; n <= 8; n++ {
		got := p.Backoff(n)
		if got < prev {
			t.Errorf("Backoff(%d) = %v is less than Backoff(%d) = %v", n, got, n-1, prev)
		}
		prev = got
	}
}

func TestShouldRetry(t *testing.T) {
	p := DefaultPolicy()
	if !p.ShouldRetry(ErrorNetwork) {
		t.Error("expected Network to be retryable by default")
	}
	if p.ShouldRetry(ErrorFatal) {
		t.Error("did not expect Fatal to be retryable by default")
	}
	if p.ShouldRetry(ErrorAuth) {
		t.Error("did not expect Auth to be retryable by default")
	}
}

// demoAttempt mirrors the deterministic test fake contract: behavior is keyed
// off description substrings.
func demoAttempt(description string) SingleAttempt {
	return func(ctx context.Context, attempt int) (AttemptResult, ErrorClass) {
		if attempt == 1 && strings.Contains(description, "network") {
			return AttemptResult{}, ErrorNetwork
		}
		if attempt <= 2 && strings.Contains(description, "rate") {
			return AttemptResult{}, ErrorRateLimit
		}
		if strings.Contains(description, "fatal") {
			return AttemptResult{}, ErrorFatal
		}
		return AttemptResult{Success: true, Output: "done"}, ""
	}
}

func TestExecuteNetworkFaultThenSuccess(t *testing.T) {
	e := New(DefaultPolicy(), nil)
	var slept []time.Duration
	e.WithSleeper(func(d time.Duration) { slept = append(slept, d) })

	result, err := e.Execute(context.Background(), demoAttempt("fix the network issue"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.AttemptNumber != 2 {
		t.Errorf("result = %+v, want success on attempt 2", result)
	}
	if len(slept) != 1 || slept[0] != 1*time.Second {
		t.Errorf("slept = %v, want one 1s backoff", slept)
	}
}

func TestExecuteFatalFailsFast(t *testing.T) {
	e := New(DefaultPolicy(), nil)
	var slept []time.Duration
	e.WithSleeper(func(d time.Duration) { slept = append(slept, d) })

	_, err := e.Execute(context.Background(), demoAttempt("this is fatal"))
	if err == nil {
		t.Fatal("expected NonRetryable error")
	}
	retryErr, ok := err.(*Error)
	if !ok || !retryErr.NonRetryable || retryErr.Class != ErrorFatal {
		t.Errorf("err = %+v, want NonRetryable Fatal", err)
	}
	if len(slept) != 0 {
		t.Errorf("expected no sleep before a non-retryable first-attempt failure, got %v", slept)
	}
}

func TestExecuteMaxAttemptsSingleAttempt(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxAttempts = 1
	e := New(policy, nil)
	var slept []time.Duration
	e.WithSleeper(func(d time.Duration) { slept = append(slept, d) })

	always := func(ctx context.Context, attempt int) (AttemptResult, ErrorClass) {
		return AttemptResult{}, ErrorNetwork
	}
	_, err := e.Execute(context.Background(), always)
	if err == nil {
		t.Fatal("expected MaxAttemptsExceeded error")
	}
	if len(slept) != 0 {
		t.Errorf("max_attempts=1 must never sleep, got %v", slept)
	}
}

func TestExecuteEmptyRetryOnFailsFast(t *testing.T) {
	policy := DefaultPolicy()
	policy.RetryOn = nil
	e := New(policy, nil)

	always := func(ctx context.Context, attempt int) (AttemptResult, ErrorClass) {
		return AttemptResult{}, ErrorNetwork
	}
	_, err := e.Execute(context.Background(), always)
	retryErr, ok := err.(*Error)
	if !ok || !retryErr.NonRetryable {
		t.Errorf("err = %+v, want NonRetryable on first failure with empty retry_on", err)
	}
}

type recordingObserver struct {
	attempts []int
	adapted  bool
}

func (r *recordingObserver) OnAttempt(attempt int, class ErrorClass, success bool) {
	r.attempts = append(r.attempts, attempt)
}
func (r *recordingObserver) OnAdapt(pattern []ErrorClass) { r.adapted = true }
func (r *recordingObserver) OnOutcome(result AttemptResult, err error) {}

func TestAdaptationHookFiresOnRepeatedNetworkFailure(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxAttempts = 4
	obs := &recordingObserver{}
	e := New(policy, obs)
	e.WithSleeper(func(time.Duration) {})

	attempts := 0
	always := func(ctx context.Context, attempt int) (AttemptResult, ErrorClass) {
		attempts++
		return AttemptResult{}, ErrorNetwork
	}
	_, _ = e.Execute(context.Background(), always)
	if !obs.adapted {
		t.Error("expected adaptation hook to fire after two network failures")
	}
}
