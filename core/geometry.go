package core

import "github.com/gogpu/gputypes"

// CopyBufferAlignment is the required alignment, in bytes, of buffer
// offsets and sizes used as copy endpoints in buffer-to-buffer copies.
const CopyBufferAlignment = 4

// CopyBytesPerRowAlignment is the required alignment, in bytes, of a
// linear texture copy's row pitch.
const CopyBytesPerRowAlignment = 256

// TextureSelector identifies a sub-resource set of a texture: a half-open
// mip-level range, a half-open array-layer range, and an aspect mask.
type TextureSelector struct {
	BaseMipLevel   uint32
	MipLevelCount  uint32
	BaseArrayLayer uint32
	ArrayLayerCount uint32
	Aspect         gputypes.TextureAspect
}

func alignTo(v, a uint64) uint64 {
	if a == 0 {
		return v
	}
	rem := v % a
	if rem == 0 {
		return v
	}
	return v + (a - rem)
}

func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}

// linearLayout is the resolved, fully-specified counterpart of
// gputypes.TextureDataLayout: bytes_per_row and rows_per_image filled in
// from the copy geometry when the caller left them unspecified (encoded as
// zero).
type linearLayout struct {
	offset       uint64
	bytesPerRow  uint32
	rowsPerImage uint32
}

// validateLinearTextureData computes and validates the linear-buffer
// layout of a texture copy: the resolved bytes-per-row and
// rows-per-image, and the total bytes the copy reads or writes from the
// linear side. needRowAlignment is true for transfer-encoder copies
// (which must satisfy CopyBytesPerRowAlignment) and false for
// write_texture (which stages through an internally-aligned buffer).
func validateLinearTextureData(
	layout gputypes.TextureDataLayout,
	format gputypes.TextureFormat,
	bufferSize uint64,
	side CopySide,
	bytesPerBlock uint32,
	copySize gputypes.Extent3D,
	needRowAlignment bool,
) (requiredBytes uint64, bytesPerImage uint64, err error) {
	blockWidth, blockHeight := blockDimensions(format)
	widthInBlocks := ceilDiv(copySize.Width, blockWidth)
	heightInBlocks := ceilDiv(copySize.Height, blockHeight)
	copyDepth := copySize.DepthOrArrayLayers

	bytesPerRow := layout.BytesPerRow
	if bytesPerRow == 0 {
		if copyDepth > 1 || heightInBlocks > 1 {
			return 0, 0, newTransferError(ErrUnspecifiedBytesPerRow)
		}
		bytesPerRow = bytesPerBlock * widthInBlocks
	}

	rowsPerImage := layout.RowsPerImage
	if rowsPerImage == 0 {
		if copyDepth > 1 {
			return 0, 0, newTransferError(ErrUnspecifiedRowsPerImage)
		}
		rowsPerImage = heightInBlocks
	}

	if copySize.Width%blockWidth != 0 {
		return 0, 0, newTransferError(ErrUnalignedCopyWidth)
	}
	if copySize.Height%blockHeight != 0 {
		return 0, 0, newTransferError(ErrUnalignedCopyHeight)
	}

	if needRowAlignment {
		if CopyBytesPerRowAlignment%bytesPerBlock != 0 {
			return 0, 0, newTransferError(ErrUnalignedBytesPerRow)
		}
		if bytesPerRow%CopyBytesPerRowAlignment != 0 {
			return 0, 0, newTransferError(ErrUnalignedBytesPerRow)
		}
	}

	if uint64(rowsPerImage)*uint64(blockHeight) < uint64(copySize.Height) {
		return 0, 0, newTransferError(ErrInvalidRowsPerImage)
	}

	bytesPerImage = uint64(bytesPerRow) * uint64(rowsPerImage)

	if copySize.Width == 0 || copySize.Height == 0 || copyDepth == 0 {
		requiredBytes = 0
	} else {
		requiredBytes = bytesPerImage*uint64(copyDepth-1) +
			uint64(bytesPerRow)*uint64(heightInBlocks-1) +
			uint64(bytesPerBlock)*uint64(widthInBlocks)
	}

	if layout.Offset+requiredBytes > bufferSize {
		return 0, 0, &TransferError{
			Kind:  ErrBufferOverrun,
			Start: layout.Offset,
			End:   layout.Offset + requiredBytes,
			Size:  bufferSize,
			Side:  side,
		}
	}

	if layout.Offset%uint64(bytesPerBlock) != 0 {
		return 0, 0, newTransferError(ErrUnalignedBufferOffset)
	}

	if copySize.Height > 1 && bytesPerRow < bytesPerBlock*widthInBlocks {
		return 0, 0, newTransferError(ErrInvalidBytesPerRow)
	}

	return requiredBytes, bytesPerImage, nil
}

// textureCopyExtent is the result of validateTextureCopyRange: the
// clamped copy extent and the number of array layers the copy spans.
type textureCopyExtent struct {
	width      uint32
	height     uint32
	depth      uint32
	layerCount uint32
}

// validateTextureCopyRange checks a copy's origin and size against a
// texture's declared mip level and extent, and returns the clamped copy
// extent (driver-facing, never larger than the virtual mip extent) and
// the layer count the copy spans.
//
// The height axis is clamped against copy_size.Height, not copy_size.Width:
// an earlier revision of this routine (mirroring an upstream bug) clamped
// height against the copy's width. That behavior was never intentional and
// is not reproduced here.
func validateTextureCopyRange(
	mipLevel uint32,
	mipLevelCount uint32,
	dimension gputypes.TextureDimension,
	textureSize gputypes.Extent3D,
	format gputypes.TextureFormat,
	origin gputypes.Origin3D,
	side CopySide,
	copySize gputypes.Extent3D,
) (textureCopyExtent, error) {
	if mipLevel >= mipLevelCount {
		return textureCopyExtent{}, &TransferError{
			Kind:     ErrInvalidTextureMipLevel,
			MipLevel: mipLevel,
			MipTotal: mipLevelCount,
		}
	}

	virtualWidth := mipExtent(textureSize.Width, mipLevel)
	virtualHeight := mipExtent(textureSize.Height, mipLevel)
	virtualDepth := textureSize.DepthOrArrayLayers
	if dimension == gputypes.TextureDimension3D {
		virtualDepth = mipExtent(textureSize.DepthOrArrayLayers, mipLevel)
	}

	blockWidth, blockHeight := blockDimensions(format)
	physicalWidth := ceilDiv(virtualWidth, blockWidth) * blockWidth
	physicalHeight := ceilDiv(virtualHeight, blockHeight) * blockHeight

	if origin.X+copySize.Width > physicalWidth {
		return textureCopyExtent{}, &TransferError{Kind: ErrTextureOverrun, Dimension: "x", Side: side}
	}
	if origin.Y+copySize.Height > physicalHeight {
		return textureCopyExtent{}, &TransferError{Kind: ErrTextureOverrun, Dimension: "y", Side: side}
	}
	if dimension == gputypes.TextureDimension3D {
		if origin.Z+copySize.DepthOrArrayLayers > virtualDepth {
			return textureCopyExtent{}, &TransferError{Kind: ErrTextureOverrun, Dimension: "z", Side: side}
		}
	} else {
		if origin.Z+copySize.DepthOrArrayLayers > textureSize.DepthOrArrayLayers {
			return textureCopyExtent{}, &TransferError{Kind: ErrTextureOverrun, Dimension: "z", Side: side}
		}
	}

	if origin.X%blockWidth != 0 {
		return textureCopyExtent{}, newTransferError(ErrUnalignedCopyOriginX)
	}
	if origin.Y%blockHeight != 0 {
		return textureCopyExtent{}, newTransferError(ErrUnalignedCopyOriginY)
	}
	if copySize.Width%blockWidth != 0 {
		return textureCopyExtent{}, newTransferError(ErrUnalignedCopyWidth)
	}
	if copySize.Height%blockHeight != 0 {
		return textureCopyExtent{}, newTransferError(ErrUnalignedCopyHeight)
	}

	depth := uint32(1)
	layerCount := uint32(1)
	if dimension == gputypes.TextureDimension3D {
		depth = copySize.DepthOrArrayLayers
		if virtualDepth < depth {
			depth = virtualDepth
		}
	} else {
		layerCount = copySize.DepthOrArrayLayers
	}

	width := copySize.Width
	if virtualWidth < width {
		width = virtualWidth
	}
	height := copySize.Height
	if virtualHeight < height {
		height = virtualHeight
	}

	return textureCopyExtent{width: width, height: height, depth: depth, layerCount: layerCount}, nil
}

// mipExtent computes the extent of dimension baseExtent at the given mip
// level, rounding down to a minimum of 1.
func mipExtent(baseExtent, mipLevel uint32) uint32 {
	v := baseExtent >> mipLevel
	if v == 0 {
		return 1
	}
	return v
}

// extractTextureSelector resolves the sub-resource selector, copy base
// origin, and format for a copy described by an ImageCopyTexture and its
// copy size.
func extractTextureSelector(
	view *ImageCopyTexture,
	copySize gputypes.Extent3D,
	texture *Texture,
) (TextureSelector, gputypes.Origin3D, gputypes.TextureFormat, error) {
	if texture == nil {
		return TextureSelector{}, gputypes.Origin3D{}, 0, newTransferError(ErrInvalidTexture)
	}

	format := texture.Format()
	_, ok := intersectAspect(format, view.Aspect)
	if !ok {
		return TextureSelector{}, gputypes.Origin3D{}, format, &TransferError{
			Kind:   ErrInvalidTextureAspect,
			Format: format,
		}
	}

	base := view.Origin

	var selector TextureSelector
	selector.BaseMipLevel = view.MipLevel
	selector.MipLevelCount = 1
	selector.Aspect = view.Aspect

	if texture.Dimension() == gputypes.TextureDimension3D {
		selector.BaseArrayLayer = 0
		selector.ArrayLayerCount = 1
	} else {
		selector.BaseArrayLayer = view.Origin.Z
		selector.ArrayLayerCount = copySize.DepthOrArrayLayers
		base.Z = 0
	}

	return selector, base, format, nil
}

// intersectAspect reports whether requested names a non-empty subset of
// format's aspect set, and returns that resolved aspect.
func intersectAspect(format gputypes.TextureFormat, requested gputypes.TextureAspect) (gputypes.TextureAspect, bool) {
	aspects := formatAspects(format)
	if len(aspects) == 0 {
		return 0, false
	}
	if requested == gputypes.TextureAspectAll {
		if len(aspects) == 1 {
			return aspects[0], true
		}
		return requested, true
	}
	for _, a := range aspects {
		if a == requested {
			return requested, true
		}
	}
	return 0, false
}
