package core

// writeCommandBuffersPerPool bounds how many command buffers a single
// pending-writes encoder accumulates before a submit is required to retire
// the pool and start a fresh one. Mirrors the batching wgpu-core uses to
// keep Queue.WriteBuffer/WriteTexture calls cheap without letting a single
// command buffer grow unbounded between submits.
const writeCommandBuffersPerPool = 64

// pendingWrites accumulates the staging copies produced by
// Queue.WriteBuffer/Queue.WriteTexture between calls to Queue.Submit.
//
// Queue.WriteBuffer/WriteTexture stage their data into a temporary buffer
// and record a copy into this shared encoder rather than opening a new
// command encoder per call. The encoder is folded into the next
// Queue.Submit call so the staged writes become visible in submission
// order relative to any explicitly-submitted command buffers.
type pendingWrites struct {
	// encoder is the reusable command encoder recording staged copies. Its
	// CommandBufferMutable carries the same first-use/last-use tracking
	// maps a user-recorded command buffer does, so the submit-time barrier
	// diff treats staged writes identically to an explicit copy.
	// nil until the first WriteBuffer/WriteTexture call after a submit.
	encoder *CoreCommandEncoder

	// commandBufferCount counts the submissions that carried a
	// pending-writes batch; Queue.Submit resets it to zero once it
	// reaches writeCommandBuffersPerPool.
	commandBufferCount int

	// tempResources holds staging buffers allocated for this batch, kept
	// alive until the submission they are used in has completed.
	tempResources []*Buffer

	// dstBuffers is the set of destination buffers touched since the last
	// submit. It is recorded and cleared; Queue.Submit does not read it.
	dstBuffers map[*Buffer]struct{}

	// dstTextures is the set of destination textures touched since the
	// last submit, kept the same way as dstBuffers.
	dstTextures map[*Texture]struct{}
}

// newPendingWrites creates an empty pending-writes accumulator.
func newPendingWrites() *pendingWrites {
	return &pendingWrites{
		dstBuffers:  make(map[*Buffer]struct{}),
		dstTextures: make(map[*Texture]struct{}),
	}
}

// isActive reports whether an encoder has been opened for this batch.
func (p *pendingWrites) isActive() bool {
	return p.encoder != nil
}

// trackDstBuffer records that buffer was written into by a queue write.
func (p *pendingWrites) trackDstBuffer(b *Buffer) {
	p.dstBuffers[b] = struct{}{}
}

// trackDstTexture records that texture was written into by a queue write.
func (p *pendingWrites) trackDstTexture(t *Texture) {
	p.dstTextures[t] = struct{}{}
}

// addTempResource keeps a staging buffer alive until the batch retires.
func (p *pendingWrites) addTempResource(b *Buffer) {
	p.tempResources = append(p.tempResources, b)
}

// takeForSubmit detaches the batch's staging buffers from the accumulator
// so Queue.Submit can hand them to the device's life tracker, and clears
// the batch so the next WriteBuffer/WriteTexture call opens a fresh
// encoder. It does not destroy the buffers: ownership passes to the
// caller, which must not drop them before the submission they belong to
// has completed.
func (p *pendingWrites) takeForSubmit() []*Buffer {
	temp := p.tempResources
	p.tempResources = nil
	p.dstBuffers = make(map[*Buffer]struct{})
	p.dstTextures = make(map[*Texture]struct{})
	p.encoder = nil
	return temp
}

// abandon discards the batch without submitting it, immediately destroying
// its staging buffers. Nothing in this package calls it.
func (p *pendingWrites) abandon() {
	for _, b := range p.tempResources {
		b.Destroy()
	}
	p.tempResources = nil
	p.dstBuffers = make(map[*Buffer]struct{})
	p.dstTextures = make(map[*Texture]struct{})
	p.encoder = nil
	p.commandBufferCount = 0
}
