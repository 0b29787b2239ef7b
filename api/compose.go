package api

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"usdfcterminal/breaker"
	"usdfcterminal/cache"
	"usdfcterminal/clients"
	"usdfcterminal/domain"
	"usdfcterminal/observability"
)

// cachedCall implements the mandatory composition policy from §4.6: a
// cache hit short-circuits; a miss consults the breaker before issuing
// the upstream call, coalesces concurrent misses for the same key via
// the cache's singleflight group, records the outcome against the
// breaker, and never caches a negative result.
func cachedCall[T any](ctx context.Context, brk *breaker.Registry, ch *cache.TTLCache[T], endpoint, key, resultType, client, operation string, fetch func(context.Context) (T, error)) (T, error) {
	if value, ok := ch.Get(key); ok {
		observability.Core().RecordCacheHit(resultType)
		return value, nil
	}
	observability.Core().RecordCacheMiss(resultType)
	return ch.GetOrFetch(ctx, key, func(ctx context.Context) (T, error) {
		return breakerCall(ctx, brk, endpoint, client, operation, fetch)
	})
}

// breakerCall gates fetch behind the circuit breaker without any cache
// involvement, for reads the policy says must never be cached (e.g. the
// system-debt read, scenario 2 in §8: "no cache entry for debt").
func breakerCall[T any](ctx context.Context, brk *breaker.Registry, endpoint, client, operation string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	state := brk.Snapshot(endpoint).State
	noteTransition := func() {
		if current := brk.Snapshot(endpoint).State; current != state {
			observability.Core().RecordBreakerTransition(endpoint, string(current))
			state = current
		}
	}
	if !brk.ShouldAllow(endpoint) {
		observability.Core().RecordBreakerRejection(endpoint)
		return zero, clients.CircuitOpenError(endpoint)
	}
	noteTransition()
	start := time.Now()
	value, err := fetch(ctx)
	if err != nil {
		brk.RecordFailure(endpoint)
		noteTransition()
		observability.Core().ObserveUpstreamCall(client, operation, time.Since(start), errKindOf(err))
		return zero, err
	}
	brk.RecordSuccess(endpoint)
	noteTransition()
	observability.Core().ObserveUpstreamCall(client, operation, time.Since(start), "")
	return value, nil
}

func errKindOf(err error) string {
	if ce, ok := err.(*clients.Error); ok {
		return string(ce.Kind)
	}
	return "unknown"
}

// parseDecimalFloat parses an 18-digit decimal string into a float64 for
// presentation-layer arithmetic (history snapshots, APR comparisons).
func parseDecimalFloat(decimal string) (float64, error) {
	trimmed := strings.TrimSpace(decimal)
	if trimmed == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("parse decimal %q: %w", decimal, err)
	}
	return f, nil
}

// clampPagination applies the §6 pagination defaults: limit=20, max
// limit=100 (silently clamped), offset=0.
func clampPagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
