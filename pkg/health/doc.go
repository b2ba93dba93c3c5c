/*
Package health provides reusable health/liveness checkers: HTTP, TCP, exec,
and query (a QueryFunc-backed probe of a remote peer's own liveness claim).

# Checker Interface

All four checkers implement the same interface:

	type Checker interface {
		Check(ctx context.Context) Result
		Type() CheckType
	}

Result reports Healthy, a human-readable Message, and timing. Status layers
hysteresis on top of a Checker's raw results: Retries consecutive failures
before flipping Healthy to false, and one success flips it back, which
keeps a flaky probe from flapping a worker in and out of the roster.

# Checkers

HTTPChecker and TCPChecker probe a target address directly. ExecChecker
runs a command and checks its exit code. QueryChecker wraps an arbitrary
QueryFunc in the same Checker/Status bookkeeping the other three use. No
package in this module constructs an ExecChecker or a QueryChecker:
pkg/stage's liveness monitor asks a worker "are you still on this
attempt?" by calling WorkerRPC.QueryAttempt directly.

# Usage

	checker := health.NewQueryChecker(func(ctx context.Context) (bool, error) {
		return workerRPC.QueryAttempt(endpoint, unitNo, attemptNo)
	})
	status := health.NewStatus()
	config := health.DefaultConfig()

	result := checker.Check(ctx)
	status.Update(result, config)
	if !status.Healthy {
		// reassign the attempt
	}

# See Also

  - pkg/stage - liveness monitor, which queries workers without this package
  - pkg/reconciler - worker-down detection via heartbeat windows
*/
package health
