package core

import (
	"sync"
	"time"

	"github.com/gogpu/wgpu-transfer/hal"
)

// pendingSubmission is one submission's worth of resources kept alive
// past Queue.Submit until the fence confirms the GPU has finished with
// them. Registering these is the only lifetime bookkeeping this core
// performs itself; reclaiming user-visible buffers/textures/bind groups
// once their own reference counts drop is the external life-tracker's
// job (see PURPOSE & SCOPE).
type pendingSubmission struct {
	index     uint64
	resources []*Buffer
}

// lifeTracker retires the staging buffers a submission's pending writes
// allocated once the device's fence reports that submission complete.
// It is the minimal stand-in for the "central life-tracker keyed by
// submission index" described for cyclic-reference resources; this core
// only ever hands it temp staging buffers, not user resources.
type lifeTracker struct {
	mu      sync.Mutex
	pending []pendingSubmission
}

func newLifeTracker() *lifeTracker {
	return &lifeTracker{}
}

// track registers resources as owned by submission index, to be freed
// once that submission's fence value is reached.
func (lt *lifeTracker) track(index uint64, resources []*Buffer) {
	if len(resources) == 0 {
		return
	}
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.pending = append(lt.pending, pendingSubmission{index: index, resources: resources})
}

// maintain polls halDevice's fence and destroys the staging buffers of
// every submission it has already reached. If wait is true and work is
// still outstanding, it blocks on the oldest pending submission before
// giving up, surfacing a StuckGpu error if the device hangs.
func (lt *lifeTracker) maintain(halDevice hal.Device, fence hal.Fence, wait bool) error {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	remaining := lt.pending[:0:0]
	for i, ps := range lt.pending {
		reached, err := halDevice.Wait(fence, ps.index, 0)
		if err != nil {
			return err
		}
		if !reached && wait {
			const stuckTimeout = 2 * time.Second
			reached, err = halDevice.Wait(fence, ps.index, stuckTimeout)
			if err != nil {
				return err
			}
			if !reached {
				remaining = append(remaining, lt.pending[i:]...)
				lt.pending = remaining
				return ErrStuckGpu
			}
		}
		if reached {
			for _, b := range ps.resources {
				b.Destroy()
			}
		} else {
			remaining = append(remaining, ps)
		}
	}
	lt.pending = remaining
	return nil
}
