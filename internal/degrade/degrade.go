package degrade

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindDatabaseUnavailable Kind = "database_unavailable"
	KindRateLimited         Kind = "rate_limited"
	KindServiceTemporary    Kind = "service_temporary"
	KindServiceUnavailable  Kind = "service_unavailable"
	KindVectorDegraded      Kind = "vector_degraded"
	KindQueueDegraded       Kind = "queue_degraded"
	KindCacheDegraded       Kind = "cache_degraded"
	KindPartialBatch        Kind = "partial_batch_failure"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityNotice   Severity = "notice"
)

type Fallback string

const (
	FallbackSkipEmbeddings     Fallback = "skip_embeddings"
	FallbackText               Fallback = "fallback_to_text"
	FallbackCache              Fallback = "cache_fallback"
	FallbackRateLimitBackoff   Fallback = "rate_limit_backoff"
	FallbackBatchSizeReduction Fallback = "batch_size_reduction"
	FallbackCircuitBreaker     Fallback = "circuit_breaker_fallback"
)

// Context keys used by event producers.
const (
	CtxRetryAfter  = "retry_after"
	CtxSucceeded   = "succeeded"
	CtxFailed      = "failed"
	CtxSuccessRate = "success_rate"
)

// Event is the single typed carrier for every recoverable failure. Raw
// driver/transport errors never cross a component boundary; they are wrapped
// into an Event at the boundary where they occur. UserMessage is safe to
// surface, TechMessage is for logs only, and only when ShouldLog is set.
type Event struct {
	Kind        Kind
	Severity    Severity
	Retryable   bool
	Fallback    Fallback
	UserMessage string
	TechMessage string
	ShouldLog   bool
	Context     map[string]interface{}

	cause error
}

func (e *Event) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.TechMessage, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.TechMessage)
}

func (e *Event) Unwrap() error {
	return e.cause
}

// RetryAfter returns the suggested backoff for retryable events, zero when
// none was attached.
func (e *Event) RetryAfter() time.Duration {
	if e.Context == nil {
		return 0
	}
	if d, ok := e.Context[CtxRetryAfter].(time.Duration); ok {
		return d
	}
	return 0
}

// Is lets callers match events by kind via errors.Is.
func (e *Event) Is(target error) bool {
	other, ok := target.(*Event)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// NewPartialBatch reports a batch where only part of the items failed. The
// successful subset is committed by the caller; the event carries both sets
// and is only log-worthy when more than half the batch failed.
func NewPartialBatch(succeeded, failed []string) *Event {
	total := len(succeeded) + len(failed)
	rate := 0.0
	if total > 0 {
		rate = float64(len(succeeded)) / float64(total)
	}
	return &Event{
		Kind:        KindPartialBatch,
		Severity:    SeverityWarning,
		Retryable:   true,
		Fallback:    FallbackBatchSizeReduction,
		UserMessage: "some items could not be processed and will be retried",
		TechMessage: fmt.Sprintf("batch partially failed: %d ok, %d failed", len(succeeded), len(failed)),
		ShouldLog:   len(failed)*2 > total,
		Context: map[string]interface{}{
			CtxSucceeded:   succeeded,
			CtxFailed:      failed,
			CtxSuccessRate: rate,
		},
	}
}
