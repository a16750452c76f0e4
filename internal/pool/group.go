package pool

import "golang.org/x/sync/errgroup"

// Group bounds concurrent jobs at n using errgroup.Group.SetLimit. Spawn
// blocks until a slot is free, then runs job in its own goroutine.
type Group struct {
	g *errgroup.Group
}

// NewGroup returns a Group pool admitting at most n concurrent jobs.
func NewGroup(n uint32) *Group {
	g := &errgroup.Group{}
	g.SetLimit(int(n))
	return &Group{g: g}
}

func (p *Group) Spawn(job func()) {
	p.g.Go(func() error {
		job()
		return nil
	})
}

// Close waits for all in-flight jobs to finish. Unlike the other
// implementations this does block, since errgroup has no way to detach
// from jobs it has already admitted.
func (p *Group) Close() {
	p.g.Wait()
}
