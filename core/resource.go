package core

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/wgpu-transfer/core/track"
	"github.com/gogpu/wgpu-transfer/hal"
)

func deviceHandle(d *Device) uintptr  { return uintptr(unsafe.Pointer(d)) }
func bufferHandle(b *Buffer) uintptr  { return uintptr(unsafe.Pointer(b)) }
func textureHandle(t *Texture) uintptr { return uintptr(unsafe.Pointer(t)) }

// Adapter represents a physical GPU adapter.
//
// An Adapter may be backed by a real HAL adapter (halAdapter != nil) or may
// be a mock/legacy adapter used by the ID-based registry API. HasHAL reports
// which case applies.
type Adapter struct {
	// Info contains information about the adapter.
	Info gputypes.AdapterInfo
	// Features contains the features supported by the adapter.
	Features gputypes.Features
	// Limits contains the resource limits of the adapter.
	Limits gputypes.Limits
	// Backend identifies which graphics backend this adapter uses.
	Backend gputypes.Backend

	// halAdapter is the underlying HAL adapter, nil for mock adapters.
	halAdapter hal.Adapter
	// halCapabilities holds the detailed HAL capability report, if any.
	halCapabilities *hal.Capabilities
}

// HasHAL returns true if this adapter is backed by a real HAL adapter.
func (a *Adapter) HasHAL() bool {
	return a.halAdapter != nil
}

// HALAdapter returns the underlying HAL adapter, or nil if this adapter
// has no HAL integration.
func (a *Adapter) HALAdapter() hal.Adapter {
	return a.halAdapter
}

// Capabilities returns the HAL capability report for this adapter, or nil
// if the adapter has no HAL integration.
func (a *Adapter) Capabilities() *hal.Capabilities {
	return a.halCapabilities
}

// Device represents a logical GPU device. NewDevice constructs a
// HAL-integrated device used by the transfer/queue-submission core: buffer
// and texture creation, resource state tracking, and queue submission.
type Device struct {
	// Label is a debug label for the device.
	Label string
	// Features contains the features enabled on this device.
	Features gputypes.Features
	// Limits contains the resource limits of this device.
	Limits gputypes.Limits

	// raw is the underlying HAL device, snatched on Destroy.
	raw *Snatchable[hal.Device]
	// snatchLock guards concurrent access to raw and to resources owned
	// by this device (buffers, textures, ...).
	snatchLock *SnatchLock

	// adapter is the parent HAL-integrated adapter, if any.
	adapter *Adapter

	valid atomic.Bool

	mu                sync.Mutex
	associatedQueue   *Queue
	errorScopeManager *ErrorScopeManager

	trackerIndexAllocators *track.TrackerIndexAllocators

	// trackerMu guards bufferTracker/textureTracker, the device-wide
	// resource-state trackers consulted by the transfer encoder's
	// use-replace calls and folded into by queue submission.
	trackerMu      sync.Mutex
	bufferTracker  *track.BufferTracker
	textureTracker *track.TextureTracker
}

// NewDevice creates a HAL-integrated device wrapping an already-opened HAL
// device. The device is immediately valid.
func NewDevice(halDevice hal.Device, adapter *Adapter, features gputypes.Features, limits gputypes.Limits, label string) *Device {
	d := &Device{
		Label:                  label,
		Features:               features,
		Limits:                 limits,
		adapter:                adapter,
		raw:                    NewSnatchable(halDevice),
		snatchLock:             NewSnatchLock(),
		trackerIndexAllocators: track.NewTrackerIndexAllocators(),
		bufferTracker:          track.NewBufferTracker(),
		textureTracker:         track.NewTextureTracker(),
	}
	d.valid.Store(true)
	trackResource(deviceHandle(d), "Device")
	return d
}

// HasHAL returns true if this device is backed by a real HAL device.
func (d *Device) HasHAL() bool {
	return d.raw != nil
}

// SnatchLock returns the lock guarding raw HAL resource access for this
// device, or nil for devices without HAL integration.
func (d *Device) SnatchLock() *SnatchLock {
	if d.snatchLock == nil {
		return nil
	}
	return d.snatchLock
}

// Raw returns the underlying HAL device, or nil if the device has been
// destroyed or has no HAL integration. The caller must hold guard from
// d.SnatchLock().Read() (or a write guard) for the duration of use.
func (d *Device) Raw(guard *SnatchGuard) hal.Device {
	if d.raw == nil {
		return nil
	}
	raw := d.raw.Get(guard)
	if raw == nil {
		return nil
	}
	return *raw
}

// rawLocked returns the underlying HAL device without acquiring the
// snatch lock. Callers must already hold d.snatchLock (read or write)
// for the duration of the call.
func (d *Device) rawLocked() hal.Device {
	if d.raw == nil || d.raw.value == nil {
		return nil
	}
	return *d.raw.value
}

// HALAdapter returns the parent HAL adapter, if any.
func (d *Device) HALAdapter() hal.Adapter {
	if d.adapter == nil {
		return nil
	}
	return d.adapter.HALAdapter()
}

// IsValid returns true if the device has not been destroyed.
func (d *Device) IsValid() bool {
	return d.valid.Load()
}

// checkValid returns ErrDeviceDestroyed if the device has been destroyed.
func (d *Device) checkValid() error {
	if !d.valid.Load() {
		return ErrDeviceDestroyed
	}
	return nil
}

// AssociatedQueue returns the HAL-integrated queue bound to this device,
// or nil if none has been set.
func (d *Device) AssociatedQueue() *Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.associatedQueue
}

// SetAssociatedQueue binds the device's default queue.
func (d *Device) SetAssociatedQueue(q *Queue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.associatedQueue = q
}

// trackerAllocators returns the device's tracker index allocators,
// lazily creating them for devices constructed without NewDevice.
func (d *Device) trackerAllocators() *track.TrackerIndexAllocators {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.trackerIndexAllocators == nil {
		d.trackerIndexAllocators = track.NewTrackerIndexAllocators()
	}
	return d.trackerIndexAllocators
}

// trackers returns the device's persistent buffer and texture usage
// trackers, lazily creating them for devices constructed without
// NewDevice.
func (d *Device) trackers() (*track.BufferTracker, *track.TextureTracker) {
	d.trackerMu.Lock()
	defer d.trackerMu.Unlock()
	if d.bufferTracker == nil {
		d.bufferTracker = track.NewBufferTracker()
	}
	if d.textureTracker == nil {
		d.textureTracker = track.NewTextureTracker()
	}
	return d.bufferTracker, d.textureTracker
}

// Destroy releases the underlying HAL device. Safe to call multiple times.
func (d *Device) Destroy() {
	if !d.valid.CompareAndSwap(true, false) {
		return
	}
	if d.raw == nil {
		return
	}
	guard := d.snatchLock.Write()
	defer guard.Release()
	raw := d.raw.Snatch(guard)
	if raw != nil {
		(*raw).Destroy()
	}
	untrackResource(deviceHandle(d))
}

// Queue represents a command queue for a device. A HAL-integrated queue
// carries the submission state described in queue_transfer.go (pending
// writes, fence, submission index).
type Queue struct {
	// Label is a debug label for the queue.
	Label string

	coreDevice *Device
	hal        hal.Queue
	halDevice  hal.Device
	fence      hal.Fence

	mu              sync.Mutex
	submissionIndex uint64

	pending *pendingWrites
	life    *lifeTracker
}

// BufferMapState describes the CPU-mapping lifecycle state of a buffer.
type BufferMapState int

const (
	// BufferMapStateIdle means the buffer is not mapped and not being mapped.
	BufferMapStateIdle BufferMapState = iota
	// BufferMapStatePending means a MapAsync request is in flight.
	BufferMapStatePending
	// BufferMapStateMapped means the buffer is currently mapped for CPU access.
	BufferMapStateMapped
)

// Buffer represents a GPU buffer.
//
// Buffer supports the legacy placeholder construction (&Buffer{}, with no
// HAL integration) and the HAL-integrated construction via NewBuffer used
// by Device.CreateBuffer.
type Buffer struct {
	raw    *Snatchable[hal.Buffer]
	device *Device

	label string
	size  uint64
	usage gputypes.BufferUsage

	destroyed atomic.Bool

	mu           sync.Mutex
	mapState     BufferMapState
	initTracker  *BufferInitTracker
	trackingData *track.TrackingData
}

// NewBuffer wraps a HAL buffer in a HAL-integrated Buffer resource.
func NewBuffer(raw hal.Buffer, device *Device, usage gputypes.BufferUsage, size uint64, label string) *Buffer {
	var allocator *track.SharedTrackerIndexAllocator
	if device != nil {
		allocator = device.trackerAllocators().Buffers
	}
	b := &Buffer{
		raw:          NewSnatchable(raw),
		device:       device,
		label:        label,
		size:         size,
		usage:        usage,
		initTracker:  NewBufferInitTracker(size),
		trackingData: track.NewTrackingData(allocator),
	}
	trackResource(bufferHandle(b), "Buffer")
	return b
}

// HasHAL returns true if the buffer is backed by a real HAL buffer.
func (b *Buffer) HasHAL() bool {
	return b.raw != nil
}

// Device returns the parent device, or nil.
func (b *Buffer) Device() *Device {
	return b.device
}

// Label returns the buffer's debug label.
func (b *Buffer) Label() string {
	return b.label
}

// Size returns the originally-requested buffer size in bytes.
func (b *Buffer) Size() uint64 {
	return b.size
}

// Usage returns the buffer's usage flags.
func (b *Buffer) Usage() gputypes.BufferUsage {
	return b.usage
}

// Raw returns the underlying HAL buffer, or nil if destroyed or the buffer
// has no HAL integration. guard must come from Device.SnatchLock().
func (b *Buffer) Raw(guard *SnatchGuard) hal.Buffer {
	if b.raw == nil {
		return nil
	}
	raw := b.raw.Get(guard)
	if raw == nil {
		return nil
	}
	return *raw
}

// IsDestroyed returns true if the buffer has been destroyed, or if it was
// never backed by a HAL buffer in the first place.
func (b *Buffer) IsDestroyed() bool {
	if b.raw == nil {
		return true
	}
	return b.destroyed.Load()
}

// Destroy releases the underlying HAL buffer. Safe to call multiple times.
func (b *Buffer) Destroy() {
	if b.raw == nil {
		return
	}
	if !b.destroyed.CompareAndSwap(false, true) {
		return
	}
	if b.device == nil || b.device.snatchLock == nil {
		return
	}
	guard := b.device.snatchLock.Write()
	raw := b.raw.Snatch(guard)
	halDevice := b.device.rawLocked()
	guard.Release()
	if raw != nil && halDevice != nil {
		halDevice.DestroyBuffer(*raw)
	}
	if b.trackingData != nil {
		if idx := b.trackingData.Index(); idx.IsValid() && b.device != nil {
			bufTracker, _ := b.device.trackers()
			bufTracker.Remove(idx)
		}
		b.trackingData.Release()
	}
	untrackResource(bufferHandle(b))
}

// MapState returns the buffer's current CPU-mapping state.
func (b *Buffer) MapState() BufferMapState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mapState
}

// SetMapState updates the buffer's CPU-mapping state.
func (b *Buffer) SetMapState(state BufferMapState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mapState = state
}

// IsInitialized reports whether [offset, offset+size) is fully initialized.
func (b *Buffer) IsInitialized(offset, size uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initTracker.IsInitialized(offset, size)
}

// MarkInitialized records [offset, offset+size) as initialized.
func (b *Buffer) MarkInitialized(offset, size uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initTracker.MarkInitialized(offset, size)
}

// uninitializedRanges returns the uninitialized byte ranges overlapping
// [offset, offset+size).
func (b *Buffer) uninitializedRanges(offset, size uint64) []InitRange {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initTracker.UninitializedRanges(offset, size)
}

// TrackingData returns the buffer's resource-state tracking handle.
func (b *Buffer) TrackingData() *track.TrackingData {
	return b.trackingData
}

// Texture represents a GPU texture.
type Texture struct {
	raw    *Snatchable[hal.Texture]
	device *Device

	label          string
	size           gputypes.Extent3D
	mipLevelCount  uint32
	sampleCount    uint32
	dimension      gputypes.TextureDimension
	format         gputypes.TextureFormat
	usage          gputypes.TextureUsage

	destroyed atomic.Bool

	mu           sync.Mutex
	initTracker  *TextureInitTracker
	trackingData *track.TrackingData
}

// NewTexture wraps a HAL texture in a HAL-integrated Texture resource.
func NewTexture(raw hal.Texture, device *Device, desc *gputypes.TextureDescriptor) *Texture {
	t := &Texture{
		raw:           NewSnatchable(raw),
		device:        device,
		label:         desc.Label,
		size:          desc.Size,
		mipLevelCount: desc.MipLevelCount,
		sampleCount:   desc.SampleCount,
		dimension:     desc.Dimension,
		format:        desc.Format,
		usage:         desc.Usage,
	}
	arrayLayers := desc.Size.DepthOrArrayLayers
	if desc.Dimension == gputypes.TextureDimension3D {
		arrayLayers = 1
	}
	t.initTracker = NewTextureInitTracker(desc.MipLevelCount, arrayLayers)
	var allocator *track.SharedTrackerIndexAllocator
	if device != nil {
		allocator = device.trackerAllocators().Textures
	}
	t.trackingData = track.NewTrackingData(allocator)
	trackResource(textureHandle(t), "Texture")
	return t
}

// HasHAL returns true if the texture is backed by a real HAL texture.
func (t *Texture) HasHAL() bool { return t.raw != nil }

// Device returns the parent device, or nil.
func (t *Texture) Device() *Device { return t.device }

// Label returns the texture's debug label.
func (t *Texture) Label() string { return t.label }

// Size returns the texture's extent.
func (t *Texture) Size() gputypes.Extent3D { return t.size }

// MipLevelCount returns the number of mip levels.
func (t *Texture) MipLevelCount() uint32 { return t.mipLevelCount }

// SampleCount returns the per-pixel sample count.
func (t *Texture) SampleCount() uint32 { return t.sampleCount }

// Dimension returns the texture dimension.
func (t *Texture) Dimension() gputypes.TextureDimension { return t.dimension }

// Format returns the texture's pixel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Usage returns the texture's usage flags.
func (t *Texture) Usage() gputypes.TextureUsage { return t.usage }

// ArrayLayerCount returns the number of array layers (1 for 3D textures).
func (t *Texture) ArrayLayerCount() uint32 {
	if t.dimension == gputypes.TextureDimension3D {
		return 1
	}
	return t.size.DepthOrArrayLayers
}

// Raw returns the underlying HAL texture, or nil if destroyed.
func (t *Texture) Raw(guard *SnatchGuard) hal.Texture {
	if t.raw == nil {
		return nil
	}
	raw := t.raw.Get(guard)
	if raw == nil {
		return nil
	}
	return *raw
}

// IsDestroyed returns true if the texture has been destroyed or was never
// HAL-backed.
func (t *Texture) IsDestroyed() bool {
	if t.raw == nil {
		return true
	}
	return t.destroyed.Load()
}

// Destroy releases the underlying HAL texture. Safe to call multiple times.
func (t *Texture) Destroy() {
	if t.raw == nil {
		return
	}
	if !t.destroyed.CompareAndSwap(false, true) {
		return
	}
	if t.device == nil || t.device.snatchLock == nil {
		return
	}
	guard := t.device.snatchLock.Write()
	raw := t.raw.Snatch(guard)
	halDevice := t.device.rawLocked()
	guard.Release()
	if raw != nil && halDevice != nil {
		halDevice.DestroyTexture(*raw)
	}
	if t.trackingData != nil {
		if idx := t.trackingData.Index(); idx.IsValid() && t.device != nil {
			_, texTracker := t.device.trackers()
			texTracker.Remove(idx)
		}
		t.trackingData.Release()
	}
	untrackResource(textureHandle(t))
}

// TrackingData returns the texture's resource-state tracking handle.
func (t *Texture) TrackingData() *track.TrackingData {
	return t.trackingData
}

// IsInitialized reports whether the given mip/layer subresource is fully
// initialized.
func (t *Texture) IsInitialized(mipLevel, arrayLayer uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initTracker.IsInitialized(mipLevel, arrayLayer)
}

// MarkInitialized records the given mip/layer subresource range as
// initialized.
func (t *Texture) MarkInitialized(baseMip, mipCount, baseLayer, layerCount uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initTracker.MarkInitialized(baseMip, mipCount, baseLayer, layerCount)
}

// TextureView represents a view into a texture.
type TextureView struct {
	raw     hal.TextureView
	texture *Texture
	device  *Device
	label   string
	format  gputypes.TextureFormat
}

// RenderPipeline represents a render pipeline bound by a render pass.
type RenderPipeline struct{}

// ComputePipeline represents a compute pipeline bound by a compute pass.
type ComputePipeline struct{}
