// Package memrepo holds in-memory implementations of the catalog,
// enrollment and progress store collaborators. They back the service and
// handler tests and can inject failures per operation.
package memrepo

import (
	"context"
	"sync"
)

type faults struct {
	mu       sync.Mutex
	failures map[string]error
	calls    map[string]int
}

// Fail makes every subsequent call to op return err until Clear is called.
func (f *faults) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures == nil {
		f.failures = make(map[string]error)
	}
	f.failures[op] = err
}

func (f *faults) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = nil
}

// Calls reports how many times op has been invoked.
func (f *faults) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *faults) enter(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
	return f.failures[op]
}
