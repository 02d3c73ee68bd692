package core

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu-transfer/hal"
)

// StagingData is a temporary, host-visible buffer used by
// Queue.WriteBuffer and Queue.WriteTexture to stage caller-supplied bytes
// before a device-side copy moves them into their real destination. It
// is kept alive in the pending-writes batch until the submission that
// consumes it has been recorded.
type StagingData struct {
	Buffer *Buffer

	mapped hal.MappableBuffer
}

// prepareStage allocates a MapWrite|CopySrc buffer of the given size and
// maps it for the caller to fill via Write.
func (d *Device) prepareStage(size uint64) (*StagingData, error) {
	buf, err := d.CreateBuffer(&gputypes.BufferDescriptor{
		Label:            "(staging buffer)",
		Size:             size,
		Usage:            gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc,
		MappedAtCreation: true,
	})
	if err != nil {
		return nil, err
	}

	guard := d.snatchLock.Read()
	raw := buf.Raw(guard)
	guard.Release()
	if raw == nil {
		buf.Destroy()
		return nil, ErrDeviceDestroyed
	}
	mappable, ok := raw.(hal.MappableBuffer)
	if !ok {
		buf.Destroy()
		return nil, fmt.Errorf("core: HAL backend %T does not support mappable staging buffers", raw)
	}

	return &StagingData{Buffer: buf, mapped: mappable}, nil
}

// Write copies data into the staging buffer at offset and flushes the
// written range, making it visible to a subsequent device-side copy.
func (s *StagingData) Write(offset uint64, data []byte) {
	dst := s.mapped.MappedData()
	copy(dst[offset:], data)
	s.mapped.FlushRange(offset, uint64(len(data)))
}
