package core

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/wgpu-transfer/hal"
)

// bufferUsageKnownBits is the union of every usage flag gputypes defines for
// buffers. Any bit outside this mask is rejected as invalid.
const bufferUsageKnownBits = gputypes.BufferUsageMapRead |
	gputypes.BufferUsageMapWrite |
	gputypes.BufferUsageCopySrc |
	gputypes.BufferUsageCopyDst |
	gputypes.BufferUsageIndex |
	gputypes.BufferUsageVertex |
	gputypes.BufferUsageUniform |
	gputypes.BufferUsageStorage |
	gputypes.BufferUsageIndirect |
	gputypes.BufferUsageQueryResolve

// bufferSizeAlignment is the minimum alignment the HAL layer requires for
// buffer allocations. The originally requested size is preserved on the
// returned Buffer; only the HAL-facing descriptor is rounded up.
const bufferSizeAlignment = 4

func alignUp(value, alignment uint64) uint64 {
	return (value + alignment - 1) / alignment * alignment
}

// CreateBuffer validates desc and allocates a buffer through the device's
// HAL backend, returning a HAL-integrated Buffer resource.
func (d *Device) CreateBuffer(desc *gputypes.BufferDescriptor) (*Buffer, error) {
	if err := d.checkValid(); err != nil {
		return nil, err
	}
	if !d.HasHAL() {
		return nil, NewValidationError("Buffer", "", "device has no HAL integration")
	}
	if desc == nil {
		return nil, NewValidationError("Buffer", "", "descriptor must not be nil")
	}

	if desc.Size == 0 {
		return nil, &CreateBufferError{Kind: CreateBufferErrorZeroSize, Label: desc.Label}
	}
	if desc.Size > d.Limits.MaxBufferSize {
		return nil, &CreateBufferError{
			Kind:          CreateBufferErrorMaxBufferSize,
			Label:         desc.Label,
			RequestedSize: desc.Size,
			MaxSize:       d.Limits.MaxBufferSize,
		}
	}
	if desc.Usage == 0 {
		return nil, &CreateBufferError{Kind: CreateBufferErrorEmptyUsage, Label: desc.Label}
	}
	if desc.Usage&^bufferUsageKnownBits != 0 {
		return nil, &CreateBufferError{Kind: CreateBufferErrorInvalidUsage, Label: desc.Label}
	}
	const mapReadWrite = gputypes.BufferUsageMapRead | gputypes.BufferUsageMapWrite
	if desc.Usage&mapReadWrite == mapReadWrite {
		return nil, &CreateBufferError{Kind: CreateBufferErrorMapReadWriteExclusive, Label: desc.Label}
	}

	guard := d.snatchLock.Read()
	halDevice := d.Raw(guard)
	if halDevice == nil {
		guard.Release()
		return nil, ErrDeviceDestroyed
	}

	halDesc := &hal.BufferDescriptor{
		Label:            desc.Label,
		Size:             alignUp(desc.Size, bufferSizeAlignment),
		Usage:            desc.Usage,
		MappedAtCreation: desc.MappedAtCreation,
	}
	halBuffer, err := halDevice.CreateBuffer(halDesc)
	guard.Release()
	if err != nil {
		return nil, &CreateBufferError{Kind: CreateBufferErrorHAL, Label: desc.Label, HALError: err}
	}

	buffer := NewBuffer(halBuffer, d, desc.Usage, desc.Size, desc.Label)
	if desc.MappedAtCreation {
		buffer.SetMapState(BufferMapStateMapped)
		buffer.MarkInitialized(0, desc.Size)
	}
	return buffer, nil
}
