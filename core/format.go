package core

import "github.com/gogpu/gputypes"

// formatBlockInfo describes the compressed/uncompressed block geometry and
// copy restrictions of a texture format. The transfer encoder and queue
// writer consult this table to convert between texel extents and byte
// counts and to reject copies against formats that do not support being a
// copy source or destination.
type formatBlockInfo struct {
	blockWidth    uint32
	blockHeight   uint32
	blockSize     uint32 // bytes per block
	hasDepth      bool
	hasStencil    bool
	hasColor      bool
	copySrcAllowed bool
	copyDstAllowed bool
}

// formatTable maps the uncompressed color, depth/stencil and BC texture
// formats gputypes defines to their block geometry. Formats absent from the table are treated as unknown by
// lookupFormat and rejected by any caller that requires format info.
var formatTable = map[gputypes.TextureFormat]formatBlockInfo{
	gputypes.TextureFormatR8Unorm:  {1, 1, 1, false, false, true, true, true},
	gputypes.TextureFormatR8Snorm:  {1, 1, 1, false, false, true, true, true},
	gputypes.TextureFormatR8Uint:   {1, 1, 1, false, false, true, true, true},
	gputypes.TextureFormatR8Sint:   {1, 1, 1, false, false, true, true, true},
	gputypes.TextureFormatRG8Unorm: {1, 1, 2, false, false, true, true, true},
	gputypes.TextureFormatRG8Snorm: {1, 1, 2, false, false, true, true, true},
	gputypes.TextureFormatRG8Uint:  {1, 1, 2, false, false, true, true, true},
	gputypes.TextureFormatRG8Sint:  {1, 1, 2, false, false, true, true, true},

	gputypes.TextureFormatR16Uint:  {1, 1, 2, false, false, true, true, true},
	gputypes.TextureFormatR16Sint:  {1, 1, 2, false, false, true, true, true},
	gputypes.TextureFormatR16Float: {1, 1, 2, false, false, true, true, true},
	gputypes.TextureFormatRG16Uint:  {1, 1, 4, false, false, true, true, true},
	gputypes.TextureFormatRG16Sint:  {1, 1, 4, false, false, true, true, true},
	gputypes.TextureFormatRG16Float: {1, 1, 4, false, false, true, true, true},

	gputypes.TextureFormatR32Uint:  {1, 1, 4, false, false, true, true, true},
	gputypes.TextureFormatR32Sint:  {1, 1, 4, false, false, true, true, true},
	gputypes.TextureFormatR32Float: {1, 1, 4, false, false, true, true, true},
	gputypes.TextureFormatRG32Uint:  {1, 1, 8, false, false, true, true, true},
	gputypes.TextureFormatRG32Sint:  {1, 1, 8, false, false, true, true, true},
	gputypes.TextureFormatRG32Float: {1, 1, 8, false, false, true, true, true},

	gputypes.TextureFormatRGBA8Unorm:     {1, 1, 4, false, false, true, true, true},
	gputypes.TextureFormatRGBA8UnormSrgb: {1, 1, 4, false, false, true, true, true},
	gputypes.TextureFormatRGBA8Snorm:     {1, 1, 4, false, false, true, true, true},
	gputypes.TextureFormatRGBA8Uint:      {1, 1, 4, false, false, true, true, true},
	gputypes.TextureFormatRGBA8Sint:      {1, 1, 4, false, false, true, true, true},
	gputypes.TextureFormatBGRA8Unorm:     {1, 1, 4, false, false, true, true, true},
	gputypes.TextureFormatBGRA8UnormSrgb: {1, 1, 4, false, false, true, true, true},

	gputypes.TextureFormatRGBA16Uint:  {1, 1, 8, false, false, true, true, true},
	gputypes.TextureFormatRGBA16Sint:  {1, 1, 8, false, false, true, true, true},
	gputypes.TextureFormatRGBA16Float: {1, 1, 8, false, false, true, true, true},
	gputypes.TextureFormatRGBA32Uint:  {1, 1, 16, false, false, true, true, true},
	gputypes.TextureFormatRGBA32Sint:  {1, 1, 16, false, false, true, true, true},
	gputypes.TextureFormatRGBA32Float: {1, 1, 16, false, false, true, true, true},

	gputypes.TextureFormatRGB9E5Ufloat:   {1, 1, 4, false, false, true, true, false},
	gputypes.TextureFormatRGB10A2Uint:    {1, 1, 4, false, false, true, true, true},
	gputypes.TextureFormatRGB10A2Unorm:   {1, 1, 4, false, false, true, true, true},
	gputypes.TextureFormatRG11B10Ufloat:  {1, 1, 4, false, false, true, true, false},

	// Depth/stencil formats. Stencil8 permits both CopySrc and CopyDst;
	// Depth16Unorm and Depth32Float permit CopySrc only; Depth24Plus,
	// Depth24PlusStencil8 and Depth32FloatStencil8 permit neither.
	gputypes.TextureFormatStencil8:            {1, 1, 1, false, true, false, true, true},
	gputypes.TextureFormatDepth16Unorm:         {1, 1, 2, true, false, false, true, false},
	gputypes.TextureFormatDepth24Plus:          {1, 1, 4, true, false, false, false, false},
	gputypes.TextureFormatDepth24PlusStencil8:  {1, 1, 4, true, true, false, false, false},
	gputypes.TextureFormatDepth32Float:         {1, 1, 4, true, false, false, true, false},
	gputypes.TextureFormatDepth32FloatStencil8: {1, 1, 8, true, true, false, false, false},

	// BC block-compressed formats (4x4 blocks).
	gputypes.TextureFormatBC1RGBAUnorm:     {4, 4, 8, false, false, true, true, false},
	gputypes.TextureFormatBC1RGBAUnormSrgb: {4, 4, 8, false, false, true, true, false},
	gputypes.TextureFormatBC2RGBAUnorm:     {4, 4, 16, false, false, true, true, false},
	gputypes.TextureFormatBC2RGBAUnormSrgb: {4, 4, 16, false, false, true, true, false},
	gputypes.TextureFormatBC3RGBAUnorm:     {4, 4, 16, false, false, true, true, false},
	gputypes.TextureFormatBC3RGBAUnormSrgb: {4, 4, 16, false, false, true, true, false},
	gputypes.TextureFormatBC4RUnorm:        {4, 4, 8, false, false, true, true, false},
	gputypes.TextureFormatBC4RSnorm:        {4, 4, 8, false, false, true, true, false},
	gputypes.TextureFormatBC5RGUnorm:       {4, 4, 16, false, false, true, true, false},
	gputypes.TextureFormatBC5RGSnorm:       {4, 4, 16, false, false, true, true, false},
	gputypes.TextureFormatBC6HRGBUfloat:    {4, 4, 16, false, false, true, true, false},
	gputypes.TextureFormatBC6HRGBFloat:     {4, 4, 16, false, false, true, true, false},
	gputypes.TextureFormatBC7RGBAUnorm:     {4, 4, 16, false, false, true, true, false},
	gputypes.TextureFormatBC7RGBAUnormSrgb: {4, 4, 16, false, false, true, true, false},
}

// lookupFormat returns the block geometry for format, and false if the
// format is not present in the table (e.g. gputypes.TextureFormatUndefined
// or an ETC2/ASTC variant not enumerated above).
func lookupFormat(format gputypes.TextureFormat) (formatBlockInfo, bool) {
	info, ok := formatTable[format]
	return info, ok
}

// blockDimensions returns the (width, height) texel dimensions of a single
// compressed block for format, or (1, 1) for uncompressed formats and for
// formats absent from the table.
func blockDimensions(format gputypes.TextureFormat) (uint32, uint32) {
	info, ok := lookupFormat(format)
	if !ok {
		return 1, 1
	}
	return info.blockWidth, info.blockHeight
}

// blockSize returns the byte size of a single block of format, or 0 if the
// format is not recognized.
func blockSize(format gputypes.TextureFormat) uint32 {
	info, ok := lookupFormat(format)
	if !ok {
		return 0
	}
	return info.blockSize
}

// isDepthOrStencilFormat reports whether format carries a depth and/or
// stencil aspect rather than a plain color aspect.
func isDepthOrStencilFormat(format gputypes.TextureFormat) bool {
	info, ok := lookupFormat(format)
	if !ok {
		return false
	}
	return info.hasDepth || info.hasStencil
}

// formatAspects returns the set of aspects format exposes.
func formatAspects(format gputypes.TextureFormat) []gputypes.TextureAspect {
	info, ok := lookupFormat(format)
	if !ok {
		return nil
	}
	if info.hasDepth && info.hasStencil {
		return []gputypes.TextureAspect{gputypes.TextureAspectDepthOnly, gputypes.TextureAspectStencilOnly}
	}
	if info.hasDepth {
		return []gputypes.TextureAspect{gputypes.TextureAspectDepthOnly}
	}
	if info.hasStencil {
		return []gputypes.TextureAspect{gputypes.TextureAspectStencilOnly}
	}
	return []gputypes.TextureAspect{gputypes.TextureAspectAll}
}

// isValidAspectFor reports whether aspect is a valid selector for format.
func isValidAspectFor(format gputypes.TextureFormat, aspect gputypes.TextureAspect) bool {
	info, ok := lookupFormat(format)
	if !ok {
		return false
	}
	switch aspect {
	case gputypes.TextureAspectDepthOnly:
		return info.hasDepth
	case gputypes.TextureAspectStencilOnly:
		return info.hasStencil
	default:
		return true
	}
}

// copySrcAllowed reports whether format may be the source of a copy.
func copySrcAllowed(format gputypes.TextureFormat) bool {
	info, ok := lookupFormat(format)
	return ok && info.copySrcAllowed
}

// copyDstAllowed reports whether format may be the destination of a copy.
func copyDstAllowed(format gputypes.TextureFormat) bool {
	info, ok := lookupFormat(format)
	return ok && info.copyDstAllowed
}
