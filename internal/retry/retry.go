// Package retry implements the exponential-backoff retry envelope wrapped
// around a single opaque task-execution attempt.
package retry

import (
	"context"
	"fmt"
	"time"
)

// ErrorClass classifies why an attempt failed. The retry layer never
// inspects message text; the single-attempt executor is responsible for
// producing the class.
type ErrorClass string

const (
	ErrorNetwork    ErrorClass = "network"
	ErrorRateLimit  ErrorClass = "rate_limit"
	ErrorAuth       ErrorClass = "auth"
	ErrorResource   ErrorClass = "resource_unavailable"
	ErrorParse      ErrorClass = "parse"
	ErrorComplexity ErrorClass = "complexity"
	ErrorRetryable  ErrorClass = "retryable"
	ErrorFatal      ErrorClass = "fatal"
)

// Policy configures retry behavior: how many attempts, how backoff grows,
// and which error classes are worth retrying at all.
type Policy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
	RetryOn           []ErrorClass
}

// DefaultPolicy mirrors the conservative-by-default production policy: three
// attempts, one second initial backoff doubling up to thirty seconds, and
// retries on transient-looking classes only.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
		RetryOn:           []ErrorClass{ErrorNetwork, ErrorRateLimit, ErrorResource, ErrorRetryable},
	}
}

// ConservativePolicy retries less and waits longer; useful for expensive or
// rate-limited single-attempt executors.
func ConservativePolicy() Policy {
	return Policy{
		MaxAttempts:       2,
		InitialBackoff:    2 * time.Second,
		BackoffMultiplier: 3.0,
		MaxBackoff:        60 * time.Second,
		RetryOn:           []ErrorClass{ErrorNetwork, ErrorRateLimit},
	}
}

// AggressivePolicy retries more, faster, and on a wider set of classes.
func AggressivePolicy() Policy {
	return Policy{
		MaxAttempts:       5,
		InitialBackoff:    500 * time.Millisecond,
		BackoffMultiplier: 1.5,
		MaxBackoff:        15 * time.Second,
		RetryOn: []ErrorClass{
			ErrorNetwork, ErrorRateLimit, ErrorResource, ErrorParse, ErrorRetryable,
		},
	}
}

// Backoff returns the delay before attempt n (1-indexed; n=1 is the first
// retry, i.e. the delay before the second overall attempt). Attempt 0 is 0.
func (p Policy) Backoff(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	secs := p.InitialBackoff.Seconds() * pow(p.BackoffMultiplier, n-1)
	backoff := time.Duration(secs * float64(time.Second))
	if backoff > p.MaxBackoff {
		return p.MaxBackoff
	}
	return backoff
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// ShouldRetry reports whether the given error class is in the retry-on set.
func (p Policy) ShouldRetry(class ErrorClass) bool {
	for _, c := range p.RetryOn {
		if c == class {
			return true
		}
	}
	return false
}

// AttemptResult is the outcome of one execute() call: either a successful
// TaskAttemptResult or a terminal Error.
type AttemptResult struct {
	Success       bool
	Output        string
	Error         ErrorClass
	Duration      time.Duration
	AttemptNumber int
}

// State tracks retry progress across one Execute call: how many attempts
// have run, when the last one ran, the ordered failure-class pattern, and
// the duration accumulated so far.
type State struct {
	Attempts    int
	LastAttempt time.Time
	Pattern     []ErrorClass
	Accumulated time.Duration
}

// Error is returned by Execute when the retry loop cannot produce a success.
type Error struct {
	MaxAttemptsExceeded bool
	Attempts            int
	NonRetryable        bool
	Class               ErrorClass
}

func (e *Error) Error() string {
	if e.NonRetryable {
		return fmt.Sprintf("non-retryable error: %s", e.Class)
	}
	return fmt.Sprintf("max retry attempts exceeded: %d", e.Attempts)
}

// SingleAttempt is the injected, opaque executor that performs one attempt
// of agent work. Production binds this to the LLM agent driver; tests bind
// it to a deterministic fake.
type SingleAttempt func(ctx context.Context, attempt int) (AttemptResult, ErrorClass)

// Observer receives notifications about retry progress for ambient concerns
// (tracing, logging, metrics) without the retry package importing any of
// them. A nil Observer is valid and does nothing.
type Observer interface {
	OnAttempt(attempt int, class ErrorClass, success bool)
	OnAdapt(pattern []ErrorClass)
	OnOutcome(result AttemptResult, err error)
}

// Sleeper abstracts time.Sleep so tests can run with a virtual clock instead
// of paying real wall-clock backoff delays.
type Sleeper func(d time.Duration)

// Executor runs a single-attempt function under a Policy, applying backoff
// and error-class filtering between attempts.
type Executor struct {
	policy   Policy
	sleep    Sleeper
	observer Observer
}

// New creates an Executor bound to the given policy. A nil observer disables
// ambient notification entirely.
func New(policy Policy, observer Observer) *Executor {
	return &Executor{policy: policy, sleep: time.Sleep, observer: observer}
}

// WithSleeper overrides the sleep function, primarily for tests that want
// to assert on backoff duration without actually waiting.
func (e *Executor) WithSleeper(s Sleeper) *Executor {
	e.sleep = s
	return e
}

// Execute runs attempt, retrying according to the bound policy. It never
// mutates any agent or task state itself — the caller performs whatever
// terminal transition the outcome implies.
func (e *Executor) Execute(ctx context.Context, attempt SingleAttempt) (AttemptResult, error) {
	var state State
	start := time.Now()

	for n := 1; n <= e.policy.MaxAttempts; n++ {
		if n > 1 {
			e.sleep(e.policy.Backoff(n - 1))
		}

		result, class := attempt(ctx, n)
		state.Attempts = n
		state.LastAttempt = time.Now()
		state.Accumulated = time.Since(start)

		if result.Success {
			result.Duration = state.Accumulated
			result.AttemptNumber = n
			e.notifyAttempt(n, "", true)
			e.notifyOutcome(result, nil)
			return result, nil
		}

		state.Pattern = append(state.Pattern, class)
		e.notifyAttempt(n, class, false)

		if !e.policy.ShouldRetry(class) {
			err := &Error{NonRetryable: true, Class: class, Attempts: n}
			e.notifyOutcome(AttemptResult{}, err)
			return AttemptResult{}, err
		}

		if n == e.policy.MaxAttempts {
			err := &Error{MaxAttemptsExceeded: true, Attempts: n}
			e.notifyOutcome(AttemptResult{}, err)
			return AttemptResult{}, err
		}

		e.adapt(state.Pattern)
	}

	err := &Error{MaxAttemptsExceeded: true, Attempts: e.policy.MaxAttempts}
	return AttemptResult{}, err
}

// adapt inspects the failure pattern so far and records a policy hint. The
// core never mutates the policy mid-call; this is observable only through
// the injected Observer.
func (e *Executor) adapt(pattern []ErrorClass) {
	var network, rateLimit int
	for _, c := range pattern {
		switch c {
		case ErrorNetwork:
			network++
		case ErrorRateLimit:
			rateLimit++
		}
	}
	if network >= 2 || rateLimit >= 1 {
		e.notifyAdapt(pattern)
	}
}

func (e *Executor) notifyAttempt(n int, class ErrorClass, success bool) {
	if e.observer != nil {
		e.observer.OnAttempt(n, class, success)
	}
}

func (e *Executor) notifyAdapt(pattern []ErrorClass) {
	if e.observer != nil {
		e.observer.OnAdapt(pattern)
	}
}

func (e *Executor) notifyOutcome(result AttemptResult, err error) {
	if e.observer != nil {
		e.observer.OnOutcome(result, err)
	}
}
