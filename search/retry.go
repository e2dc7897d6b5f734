package search

import "time"

type outcome int

const (
	outcomeOK outcome = iota
	outcomeRateLimited
	outcomeBadRequest
	outcomeTransient
)

func (o outcome) String() string {
	switch o {
	case outcomeOK:
		return "ok"
	case outcomeRateLimited:
		return "rate_limited"
	case outcomeBadRequest:
		return "bad_request"
	default:
		return "transient"
	}
}

// retryState decides, attempt by attempt, whether a search goes on.
// Every backend call counts as one attempt, including the one that follows
// dropping the price filters after a 400.
type retryState struct {
	maxAttempts int
	base        time.Duration

	priceFilters   bool
	filtersDropped bool

	attempt   int
	nextDelay time.Duration
	lastErr   error
}

func newRetryState(maxAttempts int, base time.Duration, priceFilters bool) *retryState {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &retryState{maxAttempts: maxAttempts, base: base, priceFilters: priceFilters}
}

// record registers the outcome of the attempt just made and reports whether
// another one should follow. When it returns true, nextDelay holds the wait.
func (r *retryState) record(o outcome, err error) bool {
	r.attempt++
	r.lastErr = err

	switch o {
	case outcomeOK:
		return false
	case outcomeBadRequest:
		// one retry without min/max price, regardless of the attempt budget;
		// past that a 400 is handled like any other failure
		if r.priceFilters && !r.filtersDropped {
			r.filtersDropped = true
			r.nextDelay = r.backoff()
			return true
		}
		fallthrough
	default:
		if r.attempt >= r.maxAttempts {
			return false
		}
		r.nextDelay = r.backoff()
		return true
	}
}

// usePriceFilters reports whether the next request still carries the band.
func (r *retryState) usePriceFilters() bool {
	return r.priceFilters && !r.filtersDropped
}

func (r *retryState) backoff() time.Duration {
	if r.attempt <= 0 {
		return r.base
	}
	return r.base * time.Duration(1<<(r.attempt-1))
}
