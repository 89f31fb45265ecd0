package llm

import (
	"math"
	"math/rand"
	"strconv"
	"time"
)

// ErrorClass classifies one failed endpoint attempt for retry purposes.
type ErrorClass int

const (
	ClassNetwork       ErrorClass = iota // transport-level failure, no status
	ClassServerError                     // HTTP 5xx
	ClassRateLimited                     // HTTP 429
	ClassClientError                     // any other 4xx
	ClassResponseShape                   // 2xx but the envelope carries no usable content
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNetwork:
		return "network_error"
	case ClassServerError:
		return "server_error"
	case ClassRateLimited:
		return "rate_limited"
	case ClassClientError:
		return "client_error"
	case ClassResponseShape:
		return "response_shape_invalid"
	default:
		return "unknown"
	}
}

// Retryable reports whether the class signals transient load rather
// than a misconfigured request or endpoint.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ClassNetwork, ClassServerError, ClassRateLimited:
		return true
	default:
		return false
	}
}

// Decision is the outcome of one backoff consultation.
type Decision struct {
	Retry bool
	Wait  time.Duration
}

// BackoffPolicy decides whether a failed attempt is retried and how long
// to wait first. Waits grow exponentially from BaseDelay except when a
// rate-limited response carries a usable server hint, which wins as-is.
// A uniform jitter in [0s,1s) is added to either wait so that many
// concurrent workers do not retry in lockstep.
type BackoffPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64

	// jitter returns a value in [0,1); overridable in tests.
	jitter func() float64
}

// NewBackoffPolicy builds a policy with the given attempt budget.
func NewBackoffPolicy(maxAttempts int, baseDelay time.Duration, factor float64) BackoffPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if factor < 1 {
		factor = 2
	}
	return BackoffPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Factor:      factor,
		jitter:      rand.Float64,
	}
}

// Decide returns the retry decision for attempt (0-indexed) of an
// attempt sequence that failed with class. serverHint is the raw
// Retry-After header value, "" when absent.
func (p BackoffPolicy) Decide(class ErrorClass, attempt int, serverHint string) Decision {
	if !class.Retryable() {
		return Decision{}
	}
	if attempt >= p.MaxAttempts-1 {
		return Decision{}
	}

	var wait time.Duration
	hinted := false
	if class == ClassRateLimited {
		if hint, ok := parseHint(serverHint); ok {
			wait = hint
			hinted = true
		}
	}
	if !hinted {
		backoff := float64(p.BaseDelay) * math.Pow(p.Factor, float64(attempt))
		if backoff > float64(math.MaxInt64) {
			backoff = float64(math.MaxInt64)
		}
		wait = time.Duration(backoff)
	}

	jitterFn := p.jitter
	if jitterFn == nil {
		jitterFn = rand.Float64
	}
	wait += time.Duration(jitterFn() * float64(time.Second))

	return Decision{Retry: true, Wait: wait}
}

// parseHint interprets a Retry-After value as a non-negative number of
// seconds. HTTP-date forms are not supported and fall through to the
// exponential schedule.
func parseHint(hint string) (time.Duration, bool) {
	if hint == "" {
		return 0, false
	}
	secs, err := strconv.ParseFloat(hint, 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}
