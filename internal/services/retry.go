package services

import "time"

// RetryDelay returns the backoff before retrying after the given attempt
// (1-based). Delays grow as base * 2^(attempt-1), capped at max.
func RetryDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	exp := uint(attempt - 1)
	if exp > 16 {
		exp = 16
	}
	delay := base * time.Duration(1<<exp)
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}

// retryableStatus reports whether an HTTP status from the model provider
// warrants another attempt. Client errors such as 400 or 401 will not get
// better on retry.
func retryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
