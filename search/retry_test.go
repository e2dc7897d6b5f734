package search

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryRateLimitedBacksOffExponentially(t *testing.T) {
	s := newRetryState(4, 100*time.Millisecond, false)
	boom := errors.New("429")

	var delays []time.Duration
	for s.record(outcomeRateLimited, boom) {
		delays = append(delays, s.nextDelay)
	}

	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}, delays)
	assert.Equal(t, 4, s.attempt)
	assert.Equal(t, boom, s.lastErr)
}

func TestRetryBadRequestDropsFiltersOnce(t *testing.T) {
	s := newRetryState(1, time.Millisecond, true)
	assert.True(t, s.usePriceFilters())

	assert.True(t, s.record(outcomeBadRequest, errors.New("400")))
	assert.False(t, s.usePriceFilters())

	// second 400 is treated as a plain failure, and the budget is already spent
	assert.False(t, s.record(outcomeBadRequest, errors.New("400")))
	assert.Equal(t, 2, s.attempt)
}

func TestRetryBadRequestWithoutFilters(t *testing.T) {
	s := newRetryState(2, time.Millisecond, false)
	assert.True(t, s.record(outcomeBadRequest, errors.New("400")))
	assert.False(t, s.record(outcomeBadRequest, errors.New("400")))
	assert.False(t, s.usePriceFilters())
}

func TestRetryStopsOnSuccess(t *testing.T) {
	s := newRetryState(3, time.Millisecond, true)
	assert.True(t, s.record(outcomeTransient, errors.New("timeout")))
	assert.False(t, s.record(outcomeOK, nil))
	assert.True(t, s.usePriceFilters())
	assert.Nil(t, s.lastErr)
}

func TestRetryNonPositiveMaxMeansSingleAttempt(t *testing.T) {
	s := newRetryState(0, time.Millisecond, false)
	assert.False(t, s.record(outcomeTransient, errors.New("x")))
}
