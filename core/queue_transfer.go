package core

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu-transfer/hal"
)

// OpenHALDevice opens adapter with the requested features and limits,
// wires the resulting HAL device and queue into a fresh Device/Queue
// pair, and binds the queue to the device as its default queue.
// CreateBuffer, CreateCommandEncoder, and Queue.Submit all operate on the
// Device/Queue pair returned here.
func OpenHALDevice(adapter *Adapter, features gputypes.Features, limits gputypes.Limits, label string) (*Device, *Queue, error) {
	if adapter == nil || adapter.halAdapter == nil {
		return nil, nil, NewValidationError("Device", label, "adapter has no HAL integration")
	}

	opened, err := adapter.halAdapter.Open(features, limits)
	if err != nil {
		return nil, nil, &RequestDeviceError{Kind: RequestDeviceErrorHAL, HALError: err}
	}

	device := NewDevice(opened.Device, adapter, features, limits, label)

	queue, err := newQueue(device, opened.Device, opened.Queue, label)
	if err != nil {
		opened.Device.Destroy()
		return nil, nil, err
	}
	device.SetAssociatedQueue(queue)

	return device, queue, nil
}

// newQueue wires an already-opened HAL device and queue into a Queue,
// creating the fence used to track submission completion.
func newQueue(device *Device, halDevice hal.Device, halQueue hal.Queue, label string) (*Queue, error) {
	fence, err := halDevice.CreateFence()
	if err != nil {
		return nil, NewValidationError("Queue", label, "failed to create submission fence")
	}

	return &Queue{
		Label:      label,
		coreDevice: device,
		hal:        halQueue,
		halDevice:  halDevice,
		fence:      fence,
		pending:    newPendingWrites(),
		life:       newLifeTracker(),
	}, nil
}

// HasHAL reports whether q is wired to a real HAL queue.
func (q *Queue) HasHAL() bool {
	return q.hal != nil
}

// ensurePendingEncoder returns the open pending-writes encoder, opening a
// fresh one against q.coreDevice if the batch is not already active.
// Must be called with q.mu held.
func (q *Queue) ensurePendingEncoder() (*CoreCommandEncoder, error) {
	if q.pending.isActive() {
		return q.pending.encoder, nil
	}
	enc, err := q.coreDevice.CreateCommandEncoder("(pending writes)")
	if err != nil {
		return nil, err
	}
	q.pending.encoder = enc
	return enc, nil
}

// WriteBuffer writes data into buffer at offset via a staged device-side
// copy, without requiring the caller to record a command buffer. The
// copy is deferred and folded into q's next Submit call.
func (q *Queue) WriteBuffer(buffer *Buffer, offset uint64, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if buffer == nil {
		return ErrNilBuffer
	}
	size := uint64(len(data))
	if size == 0 {
		return nil
	}
	if size%CopyBufferAlignment != 0 {
		return newTransferError(ErrUnalignedCopySize)
	}
	if offset%CopyBufferAlignment != 0 {
		return newTransferError(ErrUnalignedBufferOffset)
	}
	if offset+size > buffer.Size() {
		return &TransferError{Kind: ErrBufferOverrun, Start: offset, End: offset + size, Size: buffer.Size(), Side: CopySideDestination}
	}
	if buffer.Usage()&gputypes.BufferUsageCopyDst == 0 {
		return newTransferError(ErrMissingCopyDstUsageFlag)
	}

	stage, err := q.coreDevice.prepareStage(size)
	if err != nil {
		return err
	}
	stage.Write(0, data)

	enc, err := q.ensurePendingEncoder()
	if err != nil {
		return err
	}
	if err := enc.CopyBufferToBuffer(stage.Buffer, 0, buffer, offset, size); err != nil {
		return err
	}

	q.pending.addTempResource(stage.Buffer)
	q.pending.trackDstBuffer(buffer)
	buffer.MarkInitialized(offset, size)
	return nil
}

// WriteTexture writes data into a texture sub-resource described by
// destination, via a staged device-side copy deferred until q's next
// Submit call. layout describes data's arrangement.
func (q *Queue) WriteTexture(destination *ImageCopyTexture, data []byte, layout gputypes.TextureDataLayout, copySize gputypes.Extent3D) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if destination == nil || destination.Texture == nil {
		return ErrNilTexture
	}
	if copySize.Width == 0 || copySize.Height == 0 || copySize.DepthOrArrayLayers == 0 {
		return nil
	}

	tex := destination.Texture
	selector, base, format, err := extractTextureSelector(destination, copySize, tex)
	if err != nil {
		return err
	}
	if !copyDstAllowed(format) {
		return &TransferError{Kind: ErrCopyToForbiddenTextureFormat, Format: format}
	}
	if tex.Usage()&gputypes.TextureUsageCopyDst == 0 {
		return newTransferError(ErrMissingCopyDstUsageFlag)
	}

	copyExtent, err := validateTextureCopyRange(destination.MipLevel, tex.MipLevelCount(), tex.Dimension(), tex.Size(), format, destination.Origin, CopySideDestination, copySize)
	if err != nil {
		return err
	}

	bytesPerBlock := blockSize(format)
	blockWidth, blockHeight := blockDimensions(format)
	widthInBlocks := ceilDiv(copySize.Width, blockWidth)
	heightInBlocks := ceilDiv(copySize.Height, blockHeight)

	// write_texture does not require the caller-supplied layout to satisfy
	// CopyBytesPerRowAlignment: the data is restaged into a buffer whose
	// row pitch is computed here to satisfy it, copying row-by-row if the
	// caller's pitch does not already match.
	if _, _, err := validateLinearTextureData(layout, format, uint64(len(data)), CopySideSource, bytesPerBlock, copySize, false); err != nil {
		return err
	}

	bytesPerRow := layout.BytesPerRow
	if bytesPerRow == 0 {
		bytesPerRow = bytesPerBlock * widthInBlocks
	}
	rowsPerImage := layout.RowsPerImage
	if rowsPerImage == 0 {
		rowsPerImage = heightInBlocks
	}

	stageBytesPerRow := uint32(alignTo(uint64(bytesPerBlock*widthInBlocks), lcm(uint64(CopyBytesPerRowAlignment), uint64(bytesPerBlock))))
	stageBytesPerImage := uint64(stageBytesPerRow) * uint64(heightInBlocks)
	copyDepth := copySize.DepthOrArrayLayers
	stageSize := stageBytesPerImage * uint64(copyDepth)

	stage, err := q.coreDevice.prepareStage(stageSize)
	if err != nil {
		return err
	}

	srcRowBytes := bytesPerBlock * widthInBlocks
	if bytesPerRow == stageBytesPerRow {
		// Already tightly packed at the required pitch: one bulk copy per
		// depth slice, skipping any caller-side row padding.
		srcImageBytes := uint64(bytesPerRow) * uint64(rowsPerImage)
		for z := uint32(0); z < copyDepth; z++ {
			srcOff := layout.Offset + uint64(z)*srcImageBytes
			dstOff := uint64(z) * stageBytesPerImage
			n := uint64(heightInBlocks) * uint64(bytesPerRow)
			stage.Write(dstOff, data[srcOff:srcOff+n])
		}
	} else {
		srcImageBytes := uint64(bytesPerRow) * uint64(rowsPerImage)
		for z := uint32(0); z < copyDepth; z++ {
			for y := uint32(0); y < heightInBlocks; y++ {
				srcOff := layout.Offset + uint64(z)*srcImageBytes + uint64(y)*uint64(bytesPerRow)
				dstOff := uint64(z)*stageBytesPerImage + uint64(y)*uint64(stageBytesPerRow)
				stage.Write(dstOff, data[srcOff:srcOff+uint64(srcRowBytes)])
			}
		}
	}

	enc, err := q.ensurePendingEncoder()
	if err != nil {
		return err
	}
	stagedLayout := gputypes.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  stageBytesPerRow,
		RowsPerImage: heightInBlocks,
	}
	if err := enc.CopyBufferToTexture(
		&ImageCopyBuffer{Buffer: stage.Buffer, Layout: stagedLayout},
		destination,
		copySize,
	); err != nil {
		return err
	}

	q.pending.addTempResource(stage.Buffer)
	q.pending.trackDstTexture(tex)
	tex.MarkInitialized(destination.MipLevel, 1, selector.BaseArrayLayer, selector.ArrayLayerCount)
	_ = copyExtent
	_ = base
	return nil
}
