package health

import (
	"context"
	"fmt"
	"time"
)

// QueryFunc asks a remote peer whether it still considers itself alive and
// doing whatever work it was assigned; it returns (alive, error).
type QueryFunc func(ctx context.Context) (bool, error)

// QueryChecker adapts a QueryFunc to the Checker interface. It grounds the
// Stage Controller's liveness monitor (pkg/stage.Controller.monitorOnce,
// which calls WorkerRPC.QueryAttempt directly) in a reusable, independently
// testable Checker so other callers can run the same "are you still on X"
// probe through the same Config/Status bookkeeping as HTTP/TCP/exec checks.
type QueryChecker struct {
	// Query is the function invoked on each Check call.
	Query QueryFunc

	// Timeout bounds how long Query may run.
	Timeout time.Duration
}

// NewQueryChecker creates a QueryChecker with a 10s default timeout.
func NewQueryChecker(query QueryFunc) *QueryChecker {
	return &QueryChecker{Query: query, Timeout: 10 * time.Second}
}

// Check runs Query with the configured timeout.
func (q *QueryChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if q.Query == nil {
		return Result{Healthy: false, Message: "no query function configured", CheckedAt: start}
	}

	queryCtx, cancel := context.WithTimeout(ctx, q.Timeout)
	defer cancel()

	alive, err := q.Query(queryCtx)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("query error: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	message := "peer confirmed alive"
	if !alive {
		message = "peer disagrees or did not respond"
	}

	return Result{
		Healthy:   alive,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type.
func (q *QueryChecker) Type() CheckType {
	return CheckTypeQuery
}

// WithTimeout sets the query timeout.
func (q *QueryChecker) WithTimeout(timeout time.Duration) *QueryChecker {
	q.Timeout = timeout
	return q
}
