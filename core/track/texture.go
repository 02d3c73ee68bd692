package track

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/wgpu-transfer/hal"
)

// TextureUses represents internal texture usage states for tracking.
// These are more granular than gputypes.TextureUsage for precise barrier
// insertion.
type TextureUses uint32

// Texture usage flags for state tracking.
const (
	TextureUsesNone            TextureUses = 0
	TextureUsesCopySrc         TextureUses = 1 << 0 // Being read by copy operation
	TextureUsesCopyDst         TextureUses = 1 << 1 // Being written by copy operation
	TextureUsesSampled         TextureUses = 1 << 2 // Bound for sampling
	TextureUsesStorageRead     TextureUses = 1 << 3 // Storage texture read-only
	TextureUsesStorageWrite    TextureUses = 1 << 4 // Storage texture read-write
	TextureUsesColorTarget     TextureUses = 1 << 5 // Render pass color attachment
	TextureUsesDepthStencil    TextureUses = 1 << 6 // Render pass depth/stencil attachment
	TextureUsesDepthStencilRO  TextureUses = 1 << 7 // Read-only depth/stencil attachment
)

// IsReadOnly returns true if the usage contains only read-only operations.
func (u TextureUses) IsReadOnly() bool {
	writeUsages := TextureUsesCopyDst | TextureUsesStorageWrite | TextureUsesColorTarget | TextureUsesDepthStencil
	return u&writeUsages == 0
}

// IsEmpty returns true if no usage flags are set.
func (u TextureUses) IsEmpty() bool {
	return u == TextureUsesNone
}

// Contains returns true if all flags in other are present in u.
func (u TextureUses) Contains(other TextureUses) bool {
	return u&other == other
}

// IsCompatible returns true if two usages can coexist without a barrier.
func (u TextureUses) IsCompatible(other TextureUses) bool {
	if u.IsEmpty() || other.IsEmpty() {
		return true
	}
	if u.IsReadOnly() && other.IsReadOnly() {
		return true
	}
	return u == other
}

// ToTextureUsage converts internal uses to gputypes.TextureUsage for HAL.
func (u TextureUses) ToTextureUsage() gputypes.TextureUsage {
	var result gputypes.TextureUsage

	if u&TextureUsesCopySrc != 0 {
		result |= gputypes.TextureUsageCopySrc
	}
	if u&TextureUsesCopyDst != 0 {
		result |= gputypes.TextureUsageCopyDst
	}
	if u&TextureUsesSampled != 0 {
		result |= gputypes.TextureUsageTextureBinding
	}
	if u&(TextureUsesStorageRead|TextureUsesStorageWrite) != 0 {
		result |= gputypes.TextureUsageStorageBinding
	}
	if u&(TextureUsesColorTarget|TextureUsesDepthStencil|TextureUsesDepthStencilRO) != 0 {
		result |= gputypes.TextureUsageRenderAttachment
	}

	return result
}

// TextureState holds the tracked state for a single texture.
//
// Tracking is whole-texture granularity rather than per-subresource
// (per mip level/array layer): a single usage mask covers the entire
// texture. A copy that only touches one mip level of a texture otherwise
// in use at another mip level with an incompatible usage will see a
// conflict here that a subresource-aware tracker would have let through.
// This mirrors BufferTracker's flat indexing and keeps barrier bookkeeping
// proportional to live textures rather than to their subresource count.
type TextureState struct {
	usage TextureUses
}

// Usage returns the current usage.
func (s TextureState) Usage() TextureUses {
	return s.usage
}

// TextureTracker tracks texture usage states for a device.
type TextureTracker struct {
	states   []TextureState
	metadata ResourceMetadata
}

// NewTextureTracker creates a new texture tracker.
func NewTextureTracker() *TextureTracker {
	return &TextureTracker{
		states:   make([]TextureState, 0, 64),
		metadata: NewResourceMetadata(),
	}
}

// InsertSingle tracks a new texture with initial usage.
func (t *TextureTracker) InsertSingle(index TrackerIndex, usage TextureUses) {
	t.ensureSize(int(index) + 1)
	t.states[index] = TextureState{usage: usage}
	t.metadata.SetOwned(index, true)
}

// Remove stops tracking a texture.
func (t *TextureTracker) Remove(index TrackerIndex) {
	if int(index) < len(t.states) {
		t.states[index] = TextureState{}
		t.metadata.SetOwned(index, false)
	}
}

// GetUsage returns the current usage of a texture.
func (t *TextureTracker) GetUsage(index TrackerIndex) TextureUses {
	if int(index) < len(t.states) && t.metadata.IsOwned(index) {
		return t.states[index].usage
	}
	return TextureUsesNone
}

// SetUsage updates the usage of a tracked texture.
func (t *TextureTracker) SetUsage(index TrackerIndex, usage TextureUses) {
	if int(index) < len(t.states) && t.metadata.IsOwned(index) {
		t.states[index].usage = usage
	}
}

// IsTracked returns true if the texture is being tracked.
func (t *TextureTracker) IsTracked(index TrackerIndex) bool {
	return int(index) < len(t.states) && t.metadata.IsOwned(index)
}

// Size returns the number of tracked textures.
func (t *TextureTracker) Size() int {
	return t.metadata.Count()
}

func (t *TextureTracker) ensureSize(size int) {
	for len(t.states) < size {
		t.states = append(t.states, TextureState{})
	}
}

// TexturePendingTransition represents a texture state transition that
// needs a barrier.
type TexturePendingTransition struct {
	Index TrackerIndex
	Usage TextureStateTransition
}

// TextureStateTransition represents a from->to state change.
type TextureStateTransition struct {
	From TextureUses
	To   TextureUses
}

// NeedsBarrier returns true if this transition requires a barrier.
func (t TextureStateTransition) NeedsBarrier() bool {
	if t.From == t.To {
		return false
	}
	if t.From.IsReadOnly() && t.To.IsReadOnly() {
		return false
	}
	return true
}

// IntoHAL converts a pending transition to a HAL texture barrier covering
// the full subresource range of the texture.
func (p TexturePendingTransition) IntoHAL(texture hal.Texture, fullRange hal.TextureRange) hal.TextureBarrier {
	return hal.TextureBarrier{
		Texture: texture,
		Range:   fullRange,
		Usage: hal.TextureUsageTransition{
			OldUsage: p.Usage.From.ToTextureUsage(),
			NewUsage: p.Usage.To.ToTextureUsage(),
		},
	}
}
