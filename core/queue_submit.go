package core

import (
	"sort"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/wgpu-transfer/core/track"
	"github.com/gogpu/wgpu-transfer/hal"
)

// SubmitErrorKind classifies a failure returned by Queue.Submit.
type SubmitErrorKind int

const (
	// SubmitErrorDeviceDestroyed indicates the queue's device was already
	// destroyed before the submit call.
	SubmitErrorDeviceDestroyed SubmitErrorKind = iota
	// SubmitErrorResourceDestroyed indicates a command buffer referenced
	// a buffer or texture that was destroyed before submission.
	SubmitErrorResourceDestroyed
	// SubmitErrorStuckGpu indicates the post-submit maintenance pass timed
	// out waiting for the fence to reach the submitted value.
	SubmitErrorStuckGpu
	// SubmitErrorHAL indicates the backend's queue.Submit call failed.
	SubmitErrorHAL
)

// SubmitError wraps a failure encountered while finishing, stitching, or
// submitting a batch of command buffers.
type SubmitError struct {
	Kind     SubmitErrorKind
	HALError error
}

func (e *SubmitError) Error() string {
	switch e.Kind {
	case SubmitErrorDeviceDestroyed:
		return "queue submit: " + ErrDeviceDestroyed.Error()
	case SubmitErrorResourceDestroyed:
		return "queue submit: referenced a destroyed buffer or texture"
	case SubmitErrorStuckGpu:
		return "queue submit: " + ErrStuckGpu.Error()
	case SubmitErrorHAL:
		return "queue submit: HAL error: " + e.HALError.Error()
	default:
		return "queue submit: unknown error"
	}
}

// Unwrap returns the underlying HAL error, if any.
func (e *SubmitError) Unwrap() error { return e.HALError }

// requiredBufferInit accumulates the NeedsInitializedMemory ranges
// discovered for one buffer while folding a submission's command buffers,
// before they are coalesced into the zero-fill pass.
type requiredBufferInit struct {
	buffer *Buffer
	ranges []InitRange
}

// coalesceRanges returns r sorted by start and with touching or
// overlapping ranges merged, each endpoint rounded to a 4-byte boundary
// (expanding outward) so every emitted range satisfies the memory-init
// tracker's alignment invariant regardless of the copy geometry that
// produced it.
func coalesceRanges(r []InitRange) []InitRange {
	if len(r) == 0 {
		return nil
	}
	aligned := make([]InitRange, len(r))
	for i, x := range r {
		aligned[i] = InitRange{
			Start: x.Start - x.Start%CopyBufferAlignment,
			End:   alignTo(x.End, CopyBufferAlignment),
		}
	}
	sort.Slice(aligned, func(i, j int) bool { return aligned[i].Start < aligned[j].Start })

	out := aligned[:1]
	for _, x := range aligned[1:] {
		last := &out[len(out)-1]
		if x.Start <= last.End {
			if x.End > last.End {
				last.End = x.End
			}
			continue
		}
		out = append(out, x)
	}
	return out
}

// Submit finishes the submission-orchestrator pass: it increments the
// queue's submission index, diffs each command buffer's first/last
// resource usage against the device's persistent trackers to synthesize
// a leading transit command buffer per command buffer, folds every
// NeedsInitializedMemory action accumulated during recording into a
// coalesced zero-fill pass on the pending-writes encoder, and submits the
// whole batch tagged with the new submission index and the queue's fence.
//
// cmdBuffers must already be Finish()'d. Submission order in the backend
// call is: the pending-writes batch (if any writes were queued via
// WriteBuffer/WriteTexture since the last submit) first, each preceded
// immediately by its own transit buffer when cross-submission barriers
// are required, then each of cmdBuffers the same way, in order.
func (q *Queue) Submit(cmdBuffers []*CoreCommandBuffer) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	device := q.coreDevice
	if err := device.checkValid(); err != nil {
		return q.submissionIndex, &SubmitError{Kind: SubmitErrorDeviceDestroyed}
	}

	q.submissionIndex++
	submitIndex := q.submissionIndex

	bufTracker, texTracker := device.trackers()

	type flight struct {
		transit *CoreCommandBuffer
		main    *CoreCommandBuffer
	}
	flights := make([]flight, 0, len(cmdBuffers)+1)

	requiredInits := map[*Buffer]*requiredBufferInit{}
	var requiredOrder []*Buffer

	for _, cb := range cmdBuffers {
		if cb == nil {
			continue
		}
		for _, action := range cb.mutable.bufferMemoryInitActions {
			if action.Buffer.IsDestroyed() {
				return submitIndex, &SubmitError{Kind: SubmitErrorResourceDestroyed}
			}
			if action.Kind == MemoryInitImplicitlyInitialized {
				continue
			}
			uninit := action.Buffer.uninitializedRanges(action.Range.Start, action.Range.End-action.Range.Start)
			if len(uninit) == 0 {
				continue
			}
			ri, ok := requiredInits[action.Buffer]
			if !ok {
				ri = &requiredBufferInit{buffer: action.Buffer}
				requiredInits[action.Buffer] = ri
				requiredOrder = append(requiredOrder, action.Buffer)
			}
			ri.ranges = append(ri.ranges, uninit...)
		}
	}

	// stitchBarriers diffs cb's first-use usage per resource against the
	// device's persistent tracker, returning a finished transit command
	// buffer carrying exactly the barriers needed before cb runs (nil if
	// none are needed), and leaves the device tracker holding cb's
	// last-use usage so the next command buffer diffs against it.
	stitchBarriers := func(cb *CoreCommandBuffer) (*CoreCommandBuffer, error) {
		var bufferBarriers []hal.BufferBarrier
		for buf, firstUse := range cb.mutable.bufferFirstUse {
			idx := buf.TrackingData().Index()
			if !idx.IsValid() {
				continue
			}
			lastUse := cb.mutable.bufferLastUse[buf]
			if bufTracker.IsTracked(idx) {
				old := bufTracker.GetUsage(idx)
				transition := track.StateTransition{From: old, To: firstUse}
				if transition.NeedsBarrier() {
					guard := device.snatchLock.Read()
					raw := buf.Raw(guard)
					guard.Release()
					if raw == nil {
						return nil, &SubmitError{Kind: SubmitErrorResourceDestroyed}
					}
					pending := track.PendingTransition{Index: idx, Usage: transition}
					bufferBarriers = append(bufferBarriers, pending.IntoHAL(raw))
				}
			} else {
				bufTracker.InsertSingle(idx, firstUse)
			}
			bufTracker.SetUsage(idx, lastUse)
		}

		var textureBarriers []hal.TextureBarrier
		for tex, firstUse := range cb.mutable.textureFirstUse {
			idx := tex.TrackingData().Index()
			if !idx.IsValid() {
				continue
			}
			lastUse := cb.mutable.textureLastUse[tex]
			if texTracker.IsTracked(idx) {
				old := texTracker.GetUsage(idx)
				transition := track.TextureStateTransition{From: old, To: firstUse}
				if transition.NeedsBarrier() {
					guard := device.snatchLock.Read()
					raw := tex.Raw(guard)
					guard.Release()
					if raw == nil {
						return nil, &SubmitError{Kind: SubmitErrorResourceDestroyed}
					}
					fullRange := hal.TextureRange{
						Aspect:          gputypes.TextureAspectAll,
						BaseMipLevel:    0,
						MipLevelCount:   tex.MipLevelCount(),
						BaseArrayLayer:  0,
						ArrayLayerCount: tex.ArrayLayerCount(),
					}
					pending := track.TexturePendingTransition{Index: idx, Usage: transition}
					textureBarriers = append(textureBarriers, pending.IntoHAL(raw, fullRange))
				}
			} else {
				texTracker.InsertSingle(idx, firstUse)
			}
			texTracker.SetUsage(idx, lastUse)
		}

		if len(bufferBarriers) == 0 && len(textureBarriers) == 0 {
			return nil, nil
		}

		enc, err := device.CreateCommandEncoder("(transit)")
		if err != nil {
			return nil, err
		}
		raw := enc.RawEncoder()
		if raw == nil {
			return nil, &SubmitError{Kind: SubmitErrorResourceDestroyed}
		}
		if len(bufferBarriers) > 0 {
			raw.TransitionBuffers(bufferBarriers)
		}
		if len(textureBarriers) > 0 {
			raw.TransitionTextures(textureBarriers)
		}
		return enc.Finish()
	}

	// Emit the coalesced zero-fill pass on the pending-writes encoder
	// before it is finished, so the fills land in the same command buffer
	// as any staged writes already queued this batch.
	if len(requiredOrder) > 0 {
		enc, err := q.ensurePendingEncoder()
		if err != nil {
			return submitIndex, err
		}
		rawEnc := enc.RawEncoder()
		if rawEnc == nil {
			return submitIndex, &SubmitError{Kind: SubmitErrorResourceDestroyed}
		}
		for _, buf := range requiredOrder {
			ri := requiredInits[buf]
			coalesced := coalesceRanges(ri.ranges)

			guard := device.snatchLock.Read()
			raw := buf.Raw(guard)
			guard.Release()
			if raw == nil {
				return submitIndex, &SubmitError{Kind: SubmitErrorResourceDestroyed}
			}

			if b, ok := recordBufferUse(enc.mutable, buf, track.BufferUsesCopyDst); ok {
				b.Buffer = raw
				rawEnc.TransitionBuffers([]hal.BufferBarrier{b})
			}

			for _, r := range coalesced {
				rawEnc.ClearBuffer(raw, r.Start, r.End-r.Start)
				buf.MarkInitialized(r.Start, r.End-r.Start)
			}
		}
	}

	var pendingMain *CoreCommandBuffer
	if q.pending.isActive() {
		finished, err := q.pending.encoder.Finish()
		if err != nil {
			return submitIndex, err
		}
		transit, err := stitchBarriers(finished)
		if err != nil {
			return submitIndex, err
		}
		pendingMain = finished
		flights = append(flights, flight{transit: transit, main: pendingMain})
		q.pending.commandBufferCount++
	}

	for _, cb := range cmdBuffers {
		if cb == nil {
			continue
		}
		transit, err := stitchBarriers(cb)
		if err != nil {
			return submitIndex, err
		}
		flights = append(flights, flight{transit: transit, main: cb})
	}

	refs := make([]hal.CommandBuffer, 0, len(flights)*2)
	for _, f := range flights {
		if f.transit != nil {
			refs = append(refs, f.transit.Raw())
		}
		refs = append(refs, f.main.Raw())
	}

	if err := q.hal.Submit(refs, q.fence, submitIndex); err != nil {
		return submitIndex, &SubmitError{Kind: SubmitErrorHAL, HALError: err}
	}

	var tempResources []*Buffer
	if pendingMain != nil {
		tempResources = q.pending.takeForSubmit()
	}
	q.life.track(submitIndex, tempResources)

	if q.pending.commandBufferCount >= writeCommandBuffersPerPool {
		q.pending.commandBufferCount = 0
	}

	if err := q.life.maintain(q.halDevice, q.fence, false); err != nil {
		if err == ErrStuckGpu {
			return submitIndex, &SubmitError{Kind: SubmitErrorStuckGpu}
		}
		return submitIndex, err
	}

	return submitIndex, nil
}

// SubmissionIndex returns the most recently assigned submission index, or
// 0 if q.Submit has never been called.
func (q *Queue) SubmissionIndex() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.submissionIndex
}
