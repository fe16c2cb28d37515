package bmp

import (
	"bytes"
	"fmt"
	"io"

	"github.com/bodgit/ledmatrix/rgb565"
)

type state int

const (
	stateAwaitingHeaders state = iota
	stateSkipping
	stateSteady
	statePartialPixel
	statePartialPadding
	statePassthrough
)

func (s state) String() string {
	switch s {
	case stateAwaitingHeaders:
		return "awaiting headers"
	case stateSkipping:
		return "skipping"
	case stateSteady:
		return "steady"
	case statePartialPixel:
		return "partial pixel"
	case statePartialPadding:
		return "partial padding"
	case statePassthrough:
		return "passthrough"
	}
	return "unknown"
}

// Converter transcodes a 24-bit bitmap into a 16-bit RGB565 bitmap one chunk
// at a time. Chunks may be split anywhere except that the first one must
// contain the complete headers. 16-bit input that already matches the
// converted headers is copied through unchanged.
//
// Once an error has been returned every later call returns it again until
// Reset is called.
type Converter struct {
	state state
	err   error

	width, height int
	x, y          int

	inPadding, outPadding int

	// Bytes held in leftover for statePartialPixel, padding bytes already
	// skipped for statePartialPadding or bytes still to skip for
	// stateSkipping.
	n        int
	leftover [3]byte

	out []byte
}

// NewConverter returns a Converter ready for the first chunk of a stream.
func NewConverter() *Converter {
	c := new(Converter)
	c.Reset()
	return c
}

// Reset prepares c for a new stream.
func (c *Converter) Reset() {
	*c = Converter{out: c.out[:0]}
}

// Err returns the sticky error, if any.
func (c *Converter) Err() error {
	return c.err
}

// Position returns the pixel cursor. After a complete 24-bit stream it
// equals the image dimensions.
func (c *Converter) Position() (x, y int) {
	return c.x, c.y
}

func (c *Converter) fail(err error) error {
	c.err = err
	return err
}

// Chunk consumes p and writes the converted bytes to w.
func (c *Converter) Chunk(p []byte, w io.Writer) error {
	if c.err != nil {
		return c.err
	}

	if c.state == stateAwaitingHeaders {
		var err error
		if p, err = c.readHeaders(p, w); err != nil {
			return c.fail(err)
		}
	}

	if c.state == statePassthrough {
		if len(p) > 0 {
			if _, err := w.Write(p); err != nil {
				return c.fail(fmt.Errorf("bmp: write: %w", err))
			}
		}
		return nil
	}

	if c.state == stateSkipping {
		if len(p) < c.n {
			c.n -= len(p)
			return nil
		}
		p = p[c.n:]
		c.n = 0
		c.state = stateSteady
	}

	c.out = c.convert(p, c.out[:0])
	if len(c.out) > 0 {
		if _, err := w.Write(c.out); err != nil {
			return c.fail(fmt.Errorf("bmp: write: %w", err))
		}
	}

	return nil
}

func (c *Converter) readHeaders(p []byte, w io.Writer) ([]byte, error) {
	if len(p) < FileHeaderSize+4 {
		return nil, ErrHeaderSplitAcrossFirstChunk
	}

	fh, err := ParseFileHeader(p)
	if err != nil {
		return nil, err
	}

	n, err := InfoHeaderLength(p[FileHeaderSize:])
	if err != nil {
		return nil, err
	}
	if len(p) < FileHeaderSize+n {
		return nil, ErrHeaderSplitAcrossFirstChunk
	}

	ih, err := ParseInfoHeader(p[FileHeaderSize:])
	if err != nil {
		return nil, err
	}

	headers := marshalHeaders(OutputHeaders(fh, ih))

	if ih.BitsPerPixel == 16 {
		if len(p) < OutputHeaderSize {
			return nil, ErrHeaderSplitAcrossFirstChunk
		}
		if !bytes.Equal(p[:OutputHeaderSize], headers) {
			return nil, ErrHeaderMismatchOnPassthrough
		}
		c.state = statePassthrough
		if _, err := w.Write(headers); err != nil {
			return nil, fmt.Errorf("bmp: write: %w", err)
		}
		return p[OutputHeaderSize:], nil
	}

	if fh.PixelOffset < uint32(FileHeaderSize+n) {
		return nil, ErrInvalidPixelOffset
	}

	if _, err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("bmp: write: %w", err)
	}

	c.width, c.height = int(ih.Width), int(ih.Height)
	c.inPadding = RowPadding(c.width * 3)
	c.outPadding = RowPadding(c.width * 2)

	offset := int(fh.PixelOffset)
	if offset > len(p) {
		c.n = offset - len(p)
		c.state = stateSkipping
		return nil, nil
	}

	c.state = stateSteady
	return p[offset:], nil
}

func appendPixel(out []byte, bgr []byte) []byte {
	px := rgb565.FromRGB888(bgr[2], bgr[1], bgr[0])
	return append(out, byte(px), byte(px>>8))
}

var padding = [3]byte{filler, filler, filler}

// convert consumes as much of p as possible, appending converted pixels
// to out.
func (c *Converter) convert(p, out []byte) []byte {
	for c.y < c.height {
		switch c.state {
		case statePartialPixel:
			for c.n < 3 && len(p) > 0 {
				c.leftover[c.n] = p[0]
				c.n++
				p = p[1:]
			}
			if c.n < 3 {
				return out
			}
			out = appendPixel(out, c.leftover[:])
			c.x++
			c.n = 0
			c.state = stateSteady
		case statePartialPadding:
			skip := c.inPadding - c.n
			if skip > len(p) {
				c.n += len(p)
				return out
			}
			p = p[skip:]
			c.n = 0
			c.state = stateSteady
			c.y++
			if c.y < c.height {
				c.x = 0
			}
			continue
		}

		for ; c.x < c.width; c.x++ {
			if len(p) < 3 {
				if c.n = copy(c.leftover[:], p); c.n > 0 {
					c.state = statePartialPixel
				}
				return out
			}
			out = appendPixel(out, p[:3])
			p = p[3:]
		}

		// The output padding is written as soon as the row is complete so
		// that it is never repeated when the input padding is split.
		out = append(out, padding[:c.outPadding]...)
		c.state = statePartialPadding
	}

	return out
}

// Finish reports whether the stream that was fed to c was complete. A
// missing input padding after the final row is not an error.
func (c *Converter) Finish() error {
	if c.err != nil {
		return c.err
	}

	switch c.state {
	case stateAwaitingHeaders, stateSkipping, statePartialPixel:
		return c.fail(ErrTruncatedStream)
	case statePassthrough:
		return nil
	case statePartialPadding:
		if c.y == c.height-1 {
			c.y++
			c.state = stateSteady
		}
	}

	if c.x != c.width || c.y != c.height {
		return c.fail(ErrTruncatedStream)
	}

	return nil
}

type writer struct {
	c *Converter
	w io.Writer
}

func (w *writer) Write(p []byte) (int, error) {
	if err := w.c.Chunk(p, w.w); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *writer) Close() error {
	return w.c.Finish()
}

// NewWriter returns a WriteCloser that converts everything written to it
// into w. Close must be called to detect a truncated stream. The first Write
// must contain the complete headers, which io.Copy's buffer always does.
func NewWriter(w io.Writer) io.WriteCloser {
	return &writer{c: NewConverter(), w: w}
}
