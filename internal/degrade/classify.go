package degrade

import (
	"context"
	"errors"
	"strings"
	"time"
)

const defaultRetryAfter = 30 * time.Second

// Classify converts a raw low-level error into a typed degradation event
// using message/code signatures. Already-classified events pass through
// unchanged.
func Classify(err error) *Event {
	if err == nil {
		return nil
	}
	var ev *Event
	if errors.As(err, &ev) {
		return ev
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"):
		return &Event{
			Kind:        KindDatabaseUnavailable,
			Severity:    SeverityCritical,
			Retryable:   true,
			Fallback:    FallbackSkipEmbeddings,
			UserMessage: "search backend is temporarily unavailable",
			TechMessage: "storage connection failed",
			ShouldLog:   true,
			cause:       err,
		}
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"):
		return &Event{
			Kind:        KindRateLimited,
			Severity:    SeverityWarning,
			Retryable:   true,
			Fallback:    FallbackRateLimitBackoff,
			UserMessage: "service is busy, please retry shortly",
			TechMessage: "upstream rate limit hit",
			ShouldLog:   true,
			Context:     map[string]interface{}{CtxRetryAfter: defaultRetryAfter},
			cause:       err,
		}
	case strings.Contains(msg, "500"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "504"),
		strings.Contains(msg, "timeout"),
		errors.Is(err, context.DeadlineExceeded):
		return &Event{
			Kind:        KindServiceTemporary,
			Severity:    SeverityWarning,
			Retryable:   true,
			Fallback:    FallbackCircuitBreaker,
			UserMessage: "service hiccup, results may be partial",
			TechMessage: "upstream temporary failure",
			ShouldLog:   true,
			cause:       err,
		}
	case strings.Contains(msg, "vector"), strings.Contains(msg, "embedding"):
		// Expected whenever the AI side is down; search silently falls
		// back to text, so there is nothing actionable to log.
		return &Event{
			Kind:        KindVectorDegraded,
			Severity:    SeverityNotice,
			Retryable:   true,
			Fallback:    FallbackText,
			UserMessage: "semantic search unavailable, using text search",
			TechMessage: "vector path degraded",
			ShouldLog:   false,
			cause:       err,
		}
	case strings.Contains(msg, "queue"):
		return &Event{
			Kind:        KindQueueDegraded,
			Severity:    SeverityWarning,
			Retryable:   true,
			Fallback:    FallbackSkipEmbeddings,
			UserMessage: "background processing is delayed",
			TechMessage: "embedding queue degraded",
			ShouldLog:   true,
			cause:       err,
		}
	case strings.Contains(msg, "cache"):
		return &Event{
			Kind:        KindCacheDegraded,
			Severity:    SeverityNotice,
			Retryable:   true,
			Fallback:    FallbackCache,
			UserMessage: "results may be slower than usual",
			TechMessage: "embedding cache degraded",
			ShouldLog:   true,
			cause:       err,
		}
	default:
		return &Event{
			Kind:        KindServiceUnavailable,
			Severity:    SeverityWarning,
			Retryable:   false,
			Fallback:    FallbackText,
			UserMessage: "service temporarily unavailable",
			TechMessage: "unclassified failure",
			ShouldLog:   true,
			cause:       err,
		}
	}
}
