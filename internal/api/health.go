package api

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

// Readiness runs named dependency checks. It backs /readyz and the gRPC health status.
type Readiness struct {
	checks  map[string]CheckFunc
	timeout time.Duration
}

func NewReadiness(timeout time.Duration) *Readiness {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Readiness{checks: make(map[string]CheckFunc), timeout: timeout}
}

func (r *Readiness) Add(name string, check CheckFunc) {
	r.checks[name] = check
}

// Check runs every check and returns the failures by name.
func (r *Readiness) Check(ctx context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	failed := make(map[string]error)
	for name, check := range r.checks {
		if err := check(ctx); err != nil {
			failed[name] = err
		}
	}
	return failed
}

func describeFailures(failed map[string]error) map[string]string {
	names := make([]string, 0, len(failed))
	for name := range failed {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]string, len(failed))
	for _, name := range names {
		out[name] = fmt.Sprint(failed[name])
	}
	return out
}
