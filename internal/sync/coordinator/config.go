package coordinator

import (
	"math/rand/v2"
	"time"
)

const (
	// depthReportInterval is how often the queue depth is sampled for metrics
	depthReportInterval = 15 * time.Second

	// baseRetryDelay is how long a worker pauses after a failed dequeue
	baseRetryDelay = time.Second

	// retryJitter is the maximum random offset (±500ms) applied to the retry delay
	retryJitter = 500 * time.Millisecond
)

// calculateRetryDelay returns the base retry delay with a random jitter applied,
// so workers that failed together do not retry together.
func calculateRetryDelay() time.Duration {
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for retry jitter
	jitterOffset := time.Duration(rand.Int64N(int64(2*retryJitter))) - retryJitter
	return baseRetryDelay + jitterOffset
}
