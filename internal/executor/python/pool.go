package python

import (
	"context"
)

// slotPool bounds how many interpreter processes run at once. Unlike a
// container pool there is nothing to pre-warm: holding a slot is simply
// permission to spawn.
type slotPool struct {
	slots chan struct{}
}

func newSlotPool(size int) *slotPool {
	if size < 1 {
		size = 1
	}
	p := &slotPool{slots: make(chan struct{}, size)}
	for i := 0; i < size; i++ {
		p.slots <- struct{}{}
	}
	return p
}

// Acquire blocks until a run slot is free or the context is canceled.
func (p *slotPool) Acquire(ctx context.Context) error {
	select {
	case <-p.slots:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot to the pool. Must be called exactly once per
// successful Acquire.
func (p *slotPool) Release() {
	p.slots <- struct{}{}
}
