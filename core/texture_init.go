package core

// TextureInitTracker tracks which (mip level, array layer) subresources of
// a texture have been written. Unlike buffers, textures are tracked at
// subresource granularity rather than by byte range, since a copy or render
// attachment touches whole mip/layer slices at a time.
//
// Callers are expected to serialize access externally (Texture guards calls
// with its own mutex); TextureInitTracker itself does no locking.
type TextureInitTracker struct {
	mipLevelCount   uint32
	arrayLayerCount uint32
	initialized     []bool
}

// NewTextureInitTracker creates a tracker for a texture with the given mip
// level and array layer counts, with every subresource uninitialized.
func NewTextureInitTracker(mipLevelCount, arrayLayerCount uint32) *TextureInitTracker {
	return &TextureInitTracker{
		mipLevelCount:   mipLevelCount,
		arrayLayerCount: arrayLayerCount,
		initialized:     make([]bool, uint64(mipLevelCount)*uint64(arrayLayerCount)),
	}
}

func (t *TextureInitTracker) index(mipLevel, arrayLayer uint32) (int, bool) {
	if mipLevel >= t.mipLevelCount || arrayLayer >= t.arrayLayerCount {
		return 0, false
	}
	return int(mipLevel)*int(t.arrayLayerCount) + int(arrayLayer), true
}

// IsInitialized reports whether the given subresource has been written.
// A nil tracker, or a subresource outside the tracked range, is always
// considered initialized.
func (t *TextureInitTracker) IsInitialized(mipLevel, arrayLayer uint32) bool {
	if t == nil {
		return true
	}
	idx, ok := t.index(mipLevel, arrayLayer)
	if !ok {
		return true
	}
	return t.initialized[idx]
}

// MarkInitialized records the subresource range
// [baseMip, baseMip+mipCount) x [baseLayer, baseLayer+layerCount) as
// written. Safe to call on a nil tracker.
func (t *TextureInitTracker) MarkInitialized(baseMip, mipCount, baseLayer, layerCount uint32) {
	if t == nil {
		return
	}
	for m := baseMip; m < baseMip+mipCount; m++ {
		for l := baseLayer; l < baseLayer+layerCount; l++ {
			idx, ok := t.index(m, l)
			if !ok {
				continue
			}
			t.initialized[idx] = true
		}
	}
}
