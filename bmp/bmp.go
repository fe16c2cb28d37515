/*
Package bmp implements the subset of the Windows bitmap format used by the LED
matrix.

A file starts with a 14 byte file header:

	signature   uint16  "BM"
	size        uint32
	reserved1   uint16
	reserved2   uint16
	offset      uint32  start of the pixel array

followed by an info header whose first uint32 is its own length, either 40
bytes or 52 bytes where the extra 12 bytes are the red, green and blue channel
masks. All fields are little-endian. Rows are stored bottom-up and each row is
padded to a multiple of four bytes.

Only uncompressed 24-bit and BITFIELDS 16-bit (RGB565) images are understood.
The Converter turns the former into the latter without ever holding more than
a few bytes of pixel data, and Draw blits the latter onto a surface.
*/
package bmp

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/bodgit/ledmatrix/rgb565"
)

const (
	// Signature is "BM" read as a little-endian uint16.
	Signature = 0x4d42

	// FileHeaderSize is the length of the file header.
	FileHeaderSize = 14
	// InfoHeaderSize is the length of the base info header.
	InfoHeaderSize = 40
	// V2InfoHeaderSize is the length of the info header with channel masks.
	V2InfoHeaderSize = 52

	// CompressionRGB marks uncompressed pixel data.
	CompressionRGB = 0
	// CompressionBitFields marks pixel data described by channel masks.
	CompressionBitFields = 3

	// OutputHeaderSize is the length of the headers written by the Converter.
	OutputHeaderSize = FileHeaderSize + V2InfoHeaderSize

	maxDimension = math.MaxInt16

	// filler is used for the padding bytes the Converter writes.
	filler = 'A'
)

// Errors returned while parsing, converting or drawing.
var (
	ErrInvalidSignature            = errors.New("bmp: invalid signature")
	ErrUnsupportedHeaderSize       = errors.New("bmp: unsupported info header size")
	ErrInvalidDimensions           = errors.New("bmp: invalid dimensions")
	ErrUnsupportedTopDown          = errors.New("bmp: top-down row order not supported")
	ErrUnsupportedBitsPerPixel     = errors.New("bmp: unsupported bits per pixel")
	ErrUnsupportedCompression      = errors.New("bmp: unsupported compression")
	ErrUnsupportedMasks            = errors.New("bmp: channel masks are not RGB565")
	ErrInvalidPixelOffset          = errors.New("bmp: pixel offset inside headers")
	ErrHeaderSplitAcrossFirstChunk = errors.New("bmp: headers split across first chunk")
	ErrHeaderMismatchOnPassthrough = errors.New("bmp: 16-bit headers differ from converted form")
	ErrTruncatedStream             = errors.New("bmp: truncated stream")
)

// FileHeader is the 14 byte header at the start of every file.
type FileHeader struct {
	Signature   uint16
	Size        uint32
	Reserved1   uint16
	Reserved2   uint16
	PixelOffset uint32
}

// ParseFileHeader decodes a file header from the start of b.
func ParseFileHeader(b []byte) (FileHeader, error) {
	if len(b) < FileHeaderSize {
		return FileHeader{}, ErrTruncatedStream
	}
	h := FileHeader{
		Signature:   binary.LittleEndian.Uint16(b[0:]),
		Size:        binary.LittleEndian.Uint32(b[2:]),
		Reserved1:   binary.LittleEndian.Uint16(b[6:]),
		Reserved2:   binary.LittleEndian.Uint16(b[8:]),
		PixelOffset: binary.LittleEndian.Uint32(b[10:]),
	}
	if h.Signature != Signature {
		return FileHeader{}, ErrInvalidSignature
	}
	return h, nil
}

// MarshalBinary encodes the header.
func (h FileHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, FileHeaderSize)
	binary.LittleEndian.PutUint16(b[0:], h.Signature)
	binary.LittleEndian.PutUint32(b[2:], h.Size)
	binary.LittleEndian.PutUint16(b[6:], h.Reserved1)
	binary.LittleEndian.PutUint16(b[8:], h.Reserved2)
	binary.LittleEndian.PutUint32(b[10:], h.PixelOffset)
	return b, nil
}

// InfoHeader is the image description following the file header. The masks
// are only meaningful for the 52 byte form or with BITFIELDS compression.
type InfoHeader struct {
	HeaderSize      uint32
	Width           int32
	Height          int32
	Planes          uint16
	BitsPerPixel    uint16
	Compression     uint32
	ImageSize       uint32
	XResolution     int32
	YResolution     int32
	ColorsUsed      uint32
	ColorsImportant uint32
	RedMask         uint32
	GreenMask       uint32
	BlueMask        uint32
}

// InfoHeaderLength returns the declared length of the info header at the
// start of b without decoding the rest of it.
func InfoHeaderLength(b []byte) (int, error) {
	if len(b) < 4 {
		return 0, ErrTruncatedStream
	}
	switch n := binary.LittleEndian.Uint32(b); n {
	case InfoHeaderSize, V2InfoHeaderSize:
		return int(n), nil
	}
	return 0, ErrUnsupportedHeaderSize
}

// ParseInfoHeader decodes and validates an info header from the start of b.
func ParseInfoHeader(b []byte) (InfoHeader, error) {
	n, err := InfoHeaderLength(b)
	if err != nil {
		return InfoHeader{}, err
	}
	if len(b) < n {
		return InfoHeader{}, ErrTruncatedStream
	}

	h := InfoHeader{
		HeaderSize:      uint32(n),
		Width:           int32(binary.LittleEndian.Uint32(b[4:])),
		Height:          int32(binary.LittleEndian.Uint32(b[8:])),
		Planes:          binary.LittleEndian.Uint16(b[12:]),
		BitsPerPixel:    binary.LittleEndian.Uint16(b[14:]),
		Compression:     binary.LittleEndian.Uint32(b[16:]),
		ImageSize:       binary.LittleEndian.Uint32(b[20:]),
		XResolution:     int32(binary.LittleEndian.Uint32(b[24:])),
		YResolution:     int32(binary.LittleEndian.Uint32(b[28:])),
		ColorsUsed:      binary.LittleEndian.Uint32(b[32:]),
		ColorsImportant: binary.LittleEndian.Uint32(b[36:]),
	}
	if n == V2InfoHeaderSize {
		h.RedMask = binary.LittleEndian.Uint32(b[40:])
		h.GreenMask = binary.LittleEndian.Uint32(b[44:])
		h.BlueMask = binary.LittleEndian.Uint32(b[48:])
	}

	return h, h.validate()
}

func (h InfoHeader) validate() error {
	if h.Height < 0 {
		return ErrUnsupportedTopDown
	}
	if h.Width <= 0 || h.Width > maxDimension || h.Height == 0 || h.Height > maxDimension {
		return ErrInvalidDimensions
	}
	switch h.BitsPerPixel {
	case 16:
	case 24:
		if h.Compression != CompressionRGB {
			return ErrUnsupportedCompression
		}
	default:
		return ErrUnsupportedBitsPerPixel
	}
	return nil
}

// wireSize is the number of bytes MarshalBinary produces. BITFIELDS images
// carry their masks after the header even when it claims 40 bytes.
func (h InfoHeader) wireSize() int {
	if h.HeaderSize == V2InfoHeaderSize || h.Compression == CompressionBitFields {
		return V2InfoHeaderSize
	}
	return InfoHeaderSize
}

// MarshalBinary encodes the header, followed by the masks if required.
func (h InfoHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, h.wireSize())
	binary.LittleEndian.PutUint32(b[0:], h.HeaderSize)
	binary.LittleEndian.PutUint32(b[4:], uint32(h.Width))
	binary.LittleEndian.PutUint32(b[8:], uint32(h.Height))
	binary.LittleEndian.PutUint16(b[12:], h.Planes)
	binary.LittleEndian.PutUint16(b[14:], h.BitsPerPixel)
	binary.LittleEndian.PutUint32(b[16:], h.Compression)
	binary.LittleEndian.PutUint32(b[20:], h.ImageSize)
	binary.LittleEndian.PutUint32(b[24:], uint32(h.XResolution))
	binary.LittleEndian.PutUint32(b[28:], uint32(h.YResolution))
	binary.LittleEndian.PutUint32(b[32:], h.ColorsUsed)
	binary.LittleEndian.PutUint32(b[36:], h.ColorsImportant)
	if len(b) == V2InfoHeaderSize {
		binary.LittleEndian.PutUint32(b[40:], h.RedMask)
		binary.LittleEndian.PutUint32(b[44:], h.GreenMask)
		binary.LittleEndian.PutUint32(b[48:], h.BlueMask)
	}
	return b, nil
}

// RowPadding returns the number of bytes needed to pad a row of rowBytes to
// a multiple of four.
func RowPadding(rowBytes int) int {
	return (4 - rowBytes%4) % 4
}

// OutputHeaders derives the headers of the 16-bit image the Converter
// produces from the headers of its input. The header length field always
// reads 40 and the canonical RGB565 masks follow it, so the pixel array
// starts at OutputHeaderSize.
func OutputHeaders(fh FileHeader, ih InfoHeader) (FileHeader, InfoHeader) {
	ih.HeaderSize = InfoHeaderSize
	ih.BitsPerPixel = 16
	ih.Compression = CompressionBitFields
	ih.ImageSize = uint32(ih.Width) * uint32(ih.Height) * 2
	ih.RedMask = rgb565.RedMask
	ih.GreenMask = rgb565.GreenMask
	ih.BlueMask = rgb565.BlueMask

	fh.PixelOffset = OutputHeaderSize
	fh.Size = fh.PixelOffset + ih.ImageSize

	return fh, ih
}

func marshalHeaders(fh FileHeader, ih InfoHeader) []byte {
	a, _ := fh.MarshalBinary()
	b, _ := ih.MarshalBinary()
	return append(a, b...)
}
