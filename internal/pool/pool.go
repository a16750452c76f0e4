// Package pool provides the worker pool abstraction the server uses to
// run one job per accepted connection. Three implementations trade off
// simplicity against bounded concurrency; which one runs is selected by
// config's POOL_KIND.
package pool

import "fmt"

// Pool runs jobs, possibly concurrently, possibly bounded. Spawn must
// not block the caller waiting for the job itself to finish.
type Pool interface {
	Spawn(job func())
	// Close releases any resources the pool holds. Whether it waits for
	// in-flight jobs depends on the implementation: Group waits, Naive
	// and SharedQueue return at once. Jobs spawned after Close are not
	// refused; SharedQueue leaves them queued without running them once
	// its workers have exited.
	Close()
}

// Kind names accepted by config's POOL_KIND and --pool-kind.
const (
	KindNaive       = "naive"
	KindSharedQueue = "shared-queue"
	KindGroup       = "group"
)

// New builds the pool implementation named by kind, sized to n workers.
func New(kind string, n uint32) (Pool, error) {
	switch kind {
	case KindNaive:
		return NewNaive(n), nil
	case KindSharedQueue:
		return NewSharedQueue(n), nil
	case KindGroup:
		return NewGroup(n), nil
	default:
		return nil, fmt.Errorf("pool: unrecognized pool kind %q", kind)
	}
}
