package core

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// TransferErrorKind identifies the category of a TransferError.
type TransferErrorKind int

const (
	ErrInvalidBuffer TransferErrorKind = iota
	ErrInvalidTexture
	ErrMissingCopySrcUsageFlag
	ErrMissingCopyDstUsageFlag
	ErrCopyFromForbiddenTextureFormat
	ErrCopyToForbiddenTextureFormat
	ErrMismatchedAspects
	ErrInvalidTextureAspect
	ErrSameSourceDestinationBuffer
	ErrBufferOverrun
	ErrTextureOverrun
	ErrInvalidTextureMipLevel
	ErrUnalignedBufferOffset
	ErrUnalignedCopySize
	ErrUnalignedCopyWidth
	ErrUnalignedCopyHeight
	ErrUnalignedCopyOriginX
	ErrUnalignedCopyOriginY
	ErrUnalignedBytesPerRow
	ErrUnspecifiedBytesPerRow
	ErrUnspecifiedRowsPerImage
	ErrInvalidBytesPerRow
	ErrInvalidRowsPerImage
	ErrInvalidCopySize
)

func (k TransferErrorKind) String() string {
	switch k {
	case ErrInvalidBuffer:
		return "InvalidBuffer"
	case ErrInvalidTexture:
		return "InvalidTexture"
	case ErrMissingCopySrcUsageFlag:
		return "MissingCopySrcUsageFlag"
	case ErrMissingCopyDstUsageFlag:
		return "MissingCopyDstUsageFlag"
	case ErrCopyFromForbiddenTextureFormat:
		return "CopyFromForbiddenTextureFormat"
	case ErrCopyToForbiddenTextureFormat:
		return "CopyToForbiddenTextureFormat"
	case ErrMismatchedAspects:
		return "MismatchedAspects"
	case ErrInvalidTextureAspect:
		return "InvalidTextureAspect"
	case ErrSameSourceDestinationBuffer:
		return "SameSourceDestinationBuffer"
	case ErrBufferOverrun:
		return "BufferOverrun"
	case ErrTextureOverrun:
		return "TextureOverrun"
	case ErrInvalidTextureMipLevel:
		return "InvalidTextureMipLevel"
	case ErrUnalignedBufferOffset:
		return "UnalignedBufferOffset"
	case ErrUnalignedCopySize:
		return "UnalignedCopySize"
	case ErrUnalignedCopyWidth:
		return "UnalignedCopyWidth"
	case ErrUnalignedCopyHeight:
		return "UnalignedCopyHeight"
	case ErrUnalignedCopyOriginX:
		return "UnalignedCopyOriginX"
	case ErrUnalignedCopyOriginY:
		return "UnalignedCopyOriginY"
	case ErrUnalignedBytesPerRow:
		return "UnalignedBytesPerRow"
	case ErrUnspecifiedBytesPerRow:
		return "UnspecifiedBytesPerRow"
	case ErrUnspecifiedRowsPerImage:
		return "UnspecifiedRowsPerImage"
	case ErrInvalidBytesPerRow:
		return "InvalidBytesPerRow"
	case ErrInvalidRowsPerImage:
		return "InvalidRowsPerImage"
	case ErrInvalidCopySize:
		return "InvalidCopySize"
	default:
		return "UnknownTransferError"
	}
}

// CopySide identifies which side of a copy (source or destination) a
// validation failure pertains to, for error messages that need to
// distinguish the two.
type CopySide int

const (
	CopySideSource CopySide = iota
	CopySideDestination
)

func (s CopySide) String() string {
	if s == CopySideSource {
		return "source"
	}
	return "destination"
}

// TransferError is the error type returned by geometry validation, transfer
// recording, and queue-write operations. Every field beyond Kind is
// optional context used to build the message; zero values are ignored.
type TransferError struct {
	Kind TransferErrorKind

	BufferLabel  string
	TextureLabel string
	Format       gputypes.TextureFormat

	Side CopySide

	Start uint64
	End   uint64
	Size  uint64

	Dimension string

	MipLevel uint32
	MipTotal uint32

	wrapped error
}

func (e *TransferError) Error() string {
	switch e.Kind {
	case ErrBufferOverrun:
		return fmt.Sprintf("transfer: buffer overrun [%d,%d) exceeds size %d (%s)", e.Start, e.End, e.Size, e.Side)
	case ErrTextureOverrun:
		return fmt.Sprintf("transfer: texture overrun on %s axis (%s)", e.Dimension, e.Side)
	case ErrInvalidTextureMipLevel:
		return fmt.Sprintf("transfer: invalid mip level %d (texture has %d)", e.MipLevel, e.MipTotal)
	case ErrMissingCopyDstUsageFlag:
		return "transfer: resource missing COPY_DST usage flag"
	case ErrMissingCopySrcUsageFlag:
		return "transfer: resource missing COPY_SRC usage flag"
	case ErrCopyFromForbiddenTextureFormat:
		return fmt.Sprintf("transfer: format %v is not allowed as a copy source", e.Format)
	case ErrCopyToForbiddenTextureFormat:
		return fmt.Sprintf("transfer: format %v is not allowed as a copy destination", e.Format)
	default:
		return "transfer: " + e.Kind.String()
	}
}

func (e *TransferError) Unwrap() error { return e.wrapped }

// IsTransferError reports whether err is (or wraps) a TransferError of the
// given kind.
func IsTransferError(err error, kind TransferErrorKind) bool {
	var te *TransferError
	return errors.As(err, &te) && te.Kind == kind
}

func newTransferError(kind TransferErrorKind) *TransferError {
	return &TransferError{Kind: kind}
}
