package services

import (
	"testing"
	"time"
)

func TestRetryDelay_ExponentialGrowth(t *testing.T) {
	base := 1500 * time.Millisecond
	max := 12 * time.Second

	expected := []time.Duration{
		1500 * time.Millisecond,
		3000 * time.Millisecond,
		6000 * time.Millisecond,
		12000 * time.Millisecond,
	}
	for i, want := range expected {
		got := RetryDelay(i+1, base, max)
		if got != want {
			t.Errorf("RetryDelay(%d) = %s, expected %s", i+1, got, want)
		}
	}
}

func TestRetryDelay_CappedAtMax(t *testing.T) {
	base := 1500 * time.Millisecond
	max := 12 * time.Second

	for attempt := 4; attempt <= 30; attempt++ {
		if got := RetryDelay(attempt, base, max); got != max {
			t.Errorf("RetryDelay(%d) = %s, expected cap %s", attempt, got, max)
		}
	}
}

func TestRetryDelay_NonDecreasing(t *testing.T) {
	base := 100 * time.Millisecond
	max := 5 * time.Second

	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		got := RetryDelay(attempt, base, max)
		if got < prev {
			t.Errorf("RetryDelay(%d) = %s decreased below %s", attempt, got, prev)
		}
		prev = got
	}
}

func TestRetryDelay_InvalidAttemptTreatedAsFirst(t *testing.T) {
	base := 200 * time.Millisecond
	max := 2 * time.Second

	if got := RetryDelay(0, base, max); got != base {
		t.Errorf("RetryDelay(0) = %s, expected %s", got, base)
	}
	if got := RetryDelay(-3, base, max); got != base {
		t.Errorf("RetryDelay(-3) = %s, expected %s", got, base)
	}
}

func TestRetryableStatus(t *testing.T) {
	retryable := []int{429, 500, 502, 503, 504}
	for _, status := range retryable {
		if !retryableStatus(status) {
			t.Errorf("status %d should be retryable", status)
		}
	}

	permanent := []int{0, 200, 400, 401, 403, 404, 422, 501}
	for _, status := range permanent {
		if retryableStatus(status) {
			t.Errorf("status %d should not be retryable", status)
		}
	}
}
