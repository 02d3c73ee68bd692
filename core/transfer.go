package core

import (
	"errors"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu-transfer/core/track"
	"github.com/gogpu/wgpu-transfer/hal"
)

// ImageCopyBuffer names a buffer and the linear layout describing how
// texel data is arranged within it, as the source or destination of a
// buffer<->texture copy.
type ImageCopyBuffer struct {
	Buffer *Buffer
	Layout gputypes.TextureDataLayout
}

// ImageCopyTexture names a texture sub-resource as the source or
// destination of a copy.
type ImageCopyTexture struct {
	Texture  *Texture
	MipLevel uint32
	Origin   gputypes.Origin3D
	Aspect   gputypes.TextureAspect
}

// MemoryInitActionKind distinguishes a memory-init action that marks a
// range as initialized (because it is about to be overwritten) from one
// that demands a range already be initialized (because it is about to be
// read).
type MemoryInitActionKind int

const (
	MemoryInitImplicitlyInitialized MemoryInitActionKind = iota
	MemoryInitNeedsInitializedMemory
)

// BufferMemoryInitAction records that a transfer or write operation reads
// from or writes to a byte range of a buffer, for later folding into
// RequiredBufferInits at submit time.
type BufferMemoryInitAction struct {
	Buffer *Buffer
	Range  InitRange
	Kind   MemoryInitActionKind
}

var (
	// ErrEncoderNotRecording is returned when a transfer op is recorded on
	// an encoder that is not in the Recording state.
	ErrEncoderNotRecording = errors.New("core: command encoder is not recording")

	// ErrNilBuffer is returned when a transfer operation receives a nil
	// *Buffer where one is required.
	ErrNilBuffer = errors.New("core: buffer is nil")

	// ErrNilTexture is returned when a transfer operation receives a nil
	// *Texture where one is required.
	ErrNilTexture = errors.New("core: texture is nil")
)

// recordBufferUse registers that buf is used at use from this point in
// the encoder's recorded stream. The first request per command buffer is
// remembered for submit-time cross-command-buffer barrier stitching and
// produces no barrier of its own; subsequent requests that change the
// buffer's usage produce an immediate barrier reflecting the transition
// within this command buffer.
func recordBufferUse(mutable *CommandBufferMutable, buf *Buffer, use track.BufferUses) (hal.BufferBarrier, bool) {
	prev, seen := mutable.bufferLastUse[buf]
	mutable.bufferLastUse[buf] = use
	if !seen {
		mutable.bufferFirstUse[buf] = use
		return hal.BufferBarrier{}, false
	}
	transition := track.StateTransition{From: prev, To: use}
	if !transition.NeedsBarrier() {
		return hal.BufferBarrier{}, false
	}
	return hal.BufferBarrier{
		Usage: hal.BufferUsageTransition{
			OldUsage: prev.ToBufferUsage(),
			NewUsage: use.ToBufferUsage(),
		},
	}, true
}

// recordTextureUse is the texture counterpart of recordBufferUse.
func recordTextureUse(mutable *CommandBufferMutable, tex *Texture, use track.TextureUses) (hal.TextureUsageTransition, bool) {
	prev, seen := mutable.textureLastUse[tex]
	mutable.textureLastUse[tex] = use
	if !seen {
		mutable.textureFirstUse[tex] = use
		return hal.TextureUsageTransition{}, false
	}
	transition := track.TextureStateTransition{From: prev, To: use}
	if !transition.NeedsBarrier() {
		return hal.TextureUsageTransition{}, false
	}
	return hal.TextureUsageTransition{
		OldUsage: prev.ToTextureUsage(),
		NewUsage: use.ToTextureUsage(),
	}, true
}

// recordingEncoder returns the raw HAL encoder if e is in the Recording
// state, along with the snatch guard that must be released by the
// caller once the HAL calls are done.
func (e *CoreCommandEncoder) recordingEncoder() (hal.CommandEncoder, *SnatchGuard, error) {
	if e.Status() != CommandEncoderStatusRecording {
		return nil, nil, e.statusError("record transfer")
	}
	guard := e.device.snatchLock.Read()
	halEncoder := e.raw.Get(guard)
	if halEncoder == nil {
		guard.Release()
		return nil, nil, ErrResourceDestroyed
	}
	return *halEncoder, guard, nil
}

// fullBufferRange returns the byte range [offset, offset+size) as an
// InitRange.
func fullBufferRange(offset, size uint64) InitRange {
	return InitRange{Start: offset, End: offset + size}
}

// CopyBufferToBuffer copies size bytes from src at srcOffset to dst at
// dstOffset. src and dst must be distinct buffers, and size, srcOffset,
// and dstOffset must all be multiples of CopyBufferAlignment.
func (e *CoreCommandEncoder) CopyBufferToBuffer(src *Buffer, srcOffset uint64, dst *Buffer, dstOffset uint64, size uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if src == nil || dst == nil {
		return ErrNilBuffer
	}
	if src == dst {
		return newTransferError(ErrSameSourceDestinationBuffer)
	}
	if size == 0 {
		return nil
	}

	if size%CopyBufferAlignment != 0 {
		return newTransferError(ErrUnalignedCopySize)
	}
	if srcOffset%CopyBufferAlignment != 0 || dstOffset%CopyBufferAlignment != 0 {
		return newTransferError(ErrUnalignedBufferOffset)
	}
	if srcOffset+size > src.Size() {
		return &TransferError{Kind: ErrBufferOverrun, Start: srcOffset, End: srcOffset + size, Size: src.Size(), Side: CopySideSource}
	}
	if dstOffset+size > dst.Size() {
		return &TransferError{Kind: ErrBufferOverrun, Start: dstOffset, End: dstOffset + size, Size: dst.Size(), Side: CopySideDestination}
	}
	if src.Usage()&gputypes.BufferUsageCopySrc == 0 {
		return newTransferError(ErrMissingCopySrcUsageFlag)
	}
	if dst.Usage()&gputypes.BufferUsageCopyDst == 0 {
		return newTransferError(ErrMissingCopyDstUsageFlag)
	}

	halEncoder, guard, err := e.recordingEncoder()
	if err != nil {
		return err
	}
	defer guard.Release()

	srcRaw := src.Raw(guard)
	dstRaw := dst.Raw(guard)
	if srcRaw == nil || dstRaw == nil {
		return ErrResourceDestroyed
	}

	var barriers []hal.BufferBarrier
	if b, ok := recordBufferUse(e.mutable, src, track.BufferUsesCopySrc); ok {
		b.Buffer = srcRaw
		barriers = append(barriers, b)
	}
	if b, ok := recordBufferUse(e.mutable, dst, track.BufferUsesCopyDst); ok {
		b.Buffer = dstRaw
		barriers = append(barriers, b)
	}
	if len(barriers) > 0 {
		halEncoder.TransitionBuffers(barriers)
	}

	e.mutable.bufferMemoryInitActions = append(e.mutable.bufferMemoryInitActions,
		BufferMemoryInitAction{Buffer: src, Range: fullBufferRange(srcOffset, size), Kind: MemoryInitNeedsInitializedMemory},
		BufferMemoryInitAction{Buffer: dst, Range: fullBufferRange(dstOffset, size), Kind: MemoryInitImplicitlyInitialized},
	)

	halEncoder.CopyBufferToBuffer(srcRaw, dstRaw, []hal.BufferCopy{{SrcOffset: srcOffset, DstOffset: dstOffset, Size: size}})
	return nil
}

// CopyBufferToTexture copies from a linear buffer region into a texture
// sub-resource.
func (e *CoreCommandEncoder) CopyBufferToTexture(source *ImageCopyBuffer, destination *ImageCopyTexture, copySize gputypes.Extent3D) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if source == nil || source.Buffer == nil {
		return ErrNilBuffer
	}
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
	if source.Buffer.Usage()&gputypes.BufferUsageCopySrc == 0 {
		return newTransferError(ErrMissingCopySrcUsageFlag)
	}

	copyExtent, err := validateTextureCopyRange(destination.MipLevel, tex.MipLevelCount(), tex.Dimension(), tex.Size(), format, destination.Origin, CopySideDestination, copySize)
	if err != nil {
		return err
	}

	bytesPerBlock := blockSize(format)
	requiredBytes, bytesPerImage, err := validateLinearTextureData(source.Layout, format, source.Buffer.Size(), CopySideSource, bytesPerBlock, copySize, true)
	if err != nil {
		return err
	}

	halEncoder, guard, err := e.recordingEncoder()
	if err != nil {
		return err
	}
	defer guard.Release()

	srcRaw := source.Buffer.Raw(guard)
	dstRaw := tex.Raw(guard)
	if srcRaw == nil || dstRaw == nil {
		return ErrResourceDestroyed
	}

	var bufBarriers []hal.BufferBarrier
	if b, ok := recordBufferUse(e.mutable, source.Buffer, track.BufferUsesCopySrc); ok {
		b.Buffer = srcRaw
		bufBarriers = append(bufBarriers, b)
	}
	if len(bufBarriers) > 0 {
		halEncoder.TransitionBuffers(bufBarriers)
	}

	texRange := hal.TextureRange{
		Aspect:          selector.Aspect,
		BaseMipLevel:    selector.BaseMipLevel,
		MipLevelCount:   selector.MipLevelCount,
		BaseArrayLayer:  selector.BaseArrayLayer,
		ArrayLayerCount: selector.ArrayLayerCount,
	}
	if trans, ok := recordTextureUse(e.mutable, tex, track.TextureUsesCopyDst); ok {
		halEncoder.TransitionTextures([]hal.TextureBarrier{{Texture: dstRaw, Range: texRange, Usage: trans}})
	}

	e.mutable.bufferMemoryInitActions = append(e.mutable.bufferMemoryInitActions,
		BufferMemoryInitAction{Buffer: source.Buffer, Range: fullBufferRange(source.Layout.Offset, requiredBytes), Kind: MemoryInitNeedsInitializedMemory},
	)

	regions := make([]hal.BufferTextureCopy, 0, selector.ArrayLayerCount)
	for i := uint32(0); i < selector.ArrayLayerCount; i++ {
		regions = append(regions, hal.BufferTextureCopy{
			BufferLayout: hal.ImageDataLayout{
				Offset:       source.Layout.Offset + uint64(i)*bytesPerImage,
				BytesPerRow:  source.Layout.BytesPerRow,
				RowsPerImage: source.Layout.RowsPerImage,
			},
			TextureBase: hal.ImageCopyTexture{
				Texture:  dstRaw,
				MipLevel: destination.MipLevel,
				Origin:   hal.Origin3D{X: base.X, Y: base.Y, Z: base.Z + i},
				Aspect:   destination.Aspect,
			},
			Size: hal.Extent3D{Width: copyExtent.width, Height: copyExtent.height, DepthOrArrayLayers: copyExtent.depth},
		})
	}
	halEncoder.CopyBufferToTexture(srcRaw, dstRaw, regions)
	return nil
}

// CopyTextureToBuffer copies from a texture sub-resource into a linear
// buffer region.
func (e *CoreCommandEncoder) CopyTextureToBuffer(source *ImageCopyTexture, destination *ImageCopyBuffer, copySize gputypes.Extent3D) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if source == nil || source.Texture == nil {
		return ErrNilTexture
	}
	if destination == nil || destination.Buffer == nil {
		return ErrNilBuffer
	}
	if copySize.Width == 0 || copySize.Height == 0 || copySize.DepthOrArrayLayers == 0 {
		return nil
	}

	tex := source.Texture
	selector, base, format, err := extractTextureSelector(source, copySize, tex)
	if err != nil {
		return err
	}

	if !copySrcAllowed(format) {
		return &TransferError{Kind: ErrCopyFromForbiddenTextureFormat, Format: format}
	}
	if tex.Usage()&gputypes.TextureUsageCopySrc == 0 {
		return newTransferError(ErrMissingCopySrcUsageFlag)
	}
	if destination.Buffer.Usage()&gputypes.BufferUsageCopyDst == 0 {
		return newTransferError(ErrMissingCopyDstUsageFlag)
	}

	copyExtent, err := validateTextureCopyRange(source.MipLevel, tex.MipLevelCount(), tex.Dimension(), tex.Size(), format, source.Origin, CopySideSource, copySize)
	if err != nil {
		return err
	}

	bytesPerBlock := blockSize(format)
	requiredBytes, bytesPerImage, err := validateLinearTextureData(destination.Layout, format, destination.Buffer.Size(), CopySideDestination, bytesPerBlock, copySize, true)
	if err != nil {
		return err
	}

	halEncoder, guard, err := e.recordingEncoder()
	if err != nil {
		return err
	}
	defer guard.Release()

	srcRaw := tex.Raw(guard)
	dstRaw := destination.Buffer.Raw(guard)
	if srcRaw == nil || dstRaw == nil {
		return ErrResourceDestroyed
	}

	texRange := hal.TextureRange{
		Aspect:          selector.Aspect,
		BaseMipLevel:    selector.BaseMipLevel,
		MipLevelCount:   selector.MipLevelCount,
		BaseArrayLayer:  selector.BaseArrayLayer,
		ArrayLayerCount: selector.ArrayLayerCount,
	}
	if trans, ok := recordTextureUse(e.mutable, tex, track.TextureUsesCopySrc); ok {
		halEncoder.TransitionTextures([]hal.TextureBarrier{{Texture: srcRaw, Range: texRange, Usage: trans}})
	}

	var bufBarriers []hal.BufferBarrier
	if b, ok := recordBufferUse(e.mutable, destination.Buffer, track.BufferUsesCopyDst); ok {
		b.Buffer = dstRaw
		bufBarriers = append(bufBarriers, b)
	}
	if len(bufBarriers) > 0 {
		halEncoder.TransitionBuffers(bufBarriers)
	}

	e.mutable.bufferMemoryInitActions = append(e.mutable.bufferMemoryInitActions,
		BufferMemoryInitAction{Buffer: destination.Buffer, Range: fullBufferRange(destination.Layout.Offset, requiredBytes), Kind: MemoryInitImplicitlyInitialized},
	)

	regions := make([]hal.BufferTextureCopy, 0, selector.ArrayLayerCount)
	for i := uint32(0); i < selector.ArrayLayerCount; i++ {
		regions = append(regions, hal.BufferTextureCopy{
			BufferLayout: hal.ImageDataLayout{
				Offset:       destination.Layout.Offset + uint64(i)*bytesPerImage,
				BytesPerRow:  destination.Layout.BytesPerRow,
				RowsPerImage: destination.Layout.RowsPerImage,
			},
			TextureBase: hal.ImageCopyTexture{
				Texture:  srcRaw,
				MipLevel: source.MipLevel,
				Origin:   hal.Origin3D{X: base.X, Y: base.Y, Z: base.Z + i},
				Aspect:   source.Aspect,
			},
			Size: hal.Extent3D{Width: copyExtent.width, Height: copyExtent.height, DepthOrArrayLayers: copyExtent.depth},
		})
	}
	halEncoder.CopyTextureToBuffer(srcRaw, dstRaw, regions)
	return nil
}

// CopyTextureToTexture copies between two texture sub-resources.
func (e *CoreCommandEncoder) CopyTextureToTexture(source, destination *ImageCopyTexture, copySize gputypes.Extent3D) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if source == nil || source.Texture == nil || destination == nil || destination.Texture == nil {
		return ErrNilTexture
	}
	if copySize.Width == 0 || copySize.Height == 0 || copySize.DepthOrArrayLayers == 0 {
		return nil
	}

	srcTex := source.Texture
	dstTex := destination.Texture

	srcSelector, srcBase, srcFormat, err := extractTextureSelector(source, copySize, srcTex)
	if err != nil {
		return err
	}
	dstSelector, dstBase, dstFormat, err := extractTextureSelector(destination, copySize, dstTex)
	if err != nil {
		return err
	}
	if srcSelector.Aspect != dstSelector.Aspect {
		return newTransferError(ErrMismatchedAspects)
	}

	if srcTex.Usage()&gputypes.TextureUsageCopySrc == 0 {
		return newTransferError(ErrMissingCopySrcUsageFlag)
	}
	if dstTex.Usage()&gputypes.TextureUsageCopyDst == 0 {
		return newTransferError(ErrMissingCopyDstUsageFlag)
	}

	srcExtent, err := validateTextureCopyRange(source.MipLevel, srcTex.MipLevelCount(), srcTex.Dimension(), srcTex.Size(), srcFormat, source.Origin, CopySideSource, copySize)
	if err != nil {
		return err
	}
	dstExtent, err := validateTextureCopyRange(destination.MipLevel, dstTex.MipLevelCount(), dstTex.Dimension(), dstTex.Size(), dstFormat, destination.Origin, CopySideDestination, copySize)
	if err != nil {
		return err
	}

	halCopySize := hal.Extent3D{
		Width:              minU32(srcExtent.width, dstExtent.width),
		Height:             minU32(srcExtent.height, dstExtent.height),
		DepthOrArrayLayers: minU32(srcExtent.depth, dstExtent.depth),
	}
	layerCount := minU32(srcSelector.ArrayLayerCount, dstSelector.ArrayLayerCount)

	halEncoder, guard, err := e.recordingEncoder()
	if err != nil {
		return err
	}
	defer guard.Release()

	srcRaw := srcTex.Raw(guard)
	dstRaw := dstTex.Raw(guard)
	if srcRaw == nil || dstRaw == nil {
		return ErrResourceDestroyed
	}

	// Both transitions must be gathered before either is emitted: the
	// tracker for a given texture may not be consulted twice in a row
	// without committing the first result, and src/dst could be the same
	// texture at different mip levels.
	var texBarriers []hal.TextureBarrier
	srcRange := hal.TextureRange{Aspect: srcSelector.Aspect, BaseMipLevel: srcSelector.BaseMipLevel, MipLevelCount: srcSelector.MipLevelCount, BaseArrayLayer: srcSelector.BaseArrayLayer, ArrayLayerCount: srcSelector.ArrayLayerCount}
	if trans, ok := recordTextureUse(e.mutable, srcTex, track.TextureUsesCopySrc); ok {
		texBarriers = append(texBarriers, hal.TextureBarrier{Texture: srcRaw, Range: srcRange, Usage: trans})
	}
	dstRange := hal.TextureRange{Aspect: dstSelector.Aspect, BaseMipLevel: dstSelector.BaseMipLevel, MipLevelCount: dstSelector.MipLevelCount, BaseArrayLayer: dstSelector.BaseArrayLayer, ArrayLayerCount: dstSelector.ArrayLayerCount}
	if trans, ok := recordTextureUse(e.mutable, dstTex, track.TextureUsesCopyDst); ok {
		texBarriers = append(texBarriers, hal.TextureBarrier{Texture: dstRaw, Range: dstRange, Usage: trans})
	}
	if len(texBarriers) > 0 {
		halEncoder.TransitionTextures(texBarriers)
	}

	regions := make([]hal.TextureCopy, 0, layerCount)
	for i := uint32(0); i < layerCount; i++ {
		regions = append(regions, hal.TextureCopy{
			SrcBase: hal.ImageCopyTexture{Texture: srcRaw, MipLevel: source.MipLevel, Origin: hal.Origin3D{X: srcBase.X, Y: srcBase.Y, Z: srcBase.Z + i}, Aspect: source.Aspect},
			DstBase: hal.ImageCopyTexture{Texture: dstRaw, MipLevel: destination.MipLevel, Origin: hal.Origin3D{X: dstBase.X, Y: dstBase.Y, Z: dstBase.Z + i}, Aspect: destination.Aspect},
			Size:    halCopySize,
		})
	}
	halEncoder.CopyTextureToTexture(srcRaw, dstRaw, regions)
	return nil
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
