package bmp

import (
	"encoding/binary"
	"image"
	"io"
	"io/ioutil"

	"github.com/bodgit/ledmatrix/rgb565"
)

// Surface is anything Draw can plot pixels on.
type Surface interface {
	Bounds() image.Rectangle
	SetRGB565(x, y int, c rgb565.Color)
}

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

type decoder struct {
	r  io.Reader
	fh FileHeader
	ih InfoHeader

	// Enough to hold both headers
	tmp [FileHeaderSize + V2InfoHeaderSize]byte
}

func (d *decoder) readHeaders() error {
	if err := readFull(d.r, d.tmp[:FileHeaderSize+4]); err != nil {
		return err
	}

	var err error
	if d.fh, err = ParseFileHeader(d.tmp[:]); err != nil {
		return err
	}

	n, err := InfoHeaderLength(d.tmp[FileHeaderSize:])
	if err != nil {
		return err
	}
	if err := readFull(d.r, d.tmp[FileHeaderSize+4:FileHeaderSize+n]); err != nil {
		return err
	}

	if d.ih, err = ParseInfoHeader(d.tmp[FileHeaderSize:]); err != nil {
		return err
	}
	if d.ih.BitsPerPixel != 16 {
		return ErrUnsupportedBitsPerPixel
	}

	// Plain 16-bit pixels are RGB555
	if d.ih.Compression != CompressionBitFields {
		return ErrUnsupportedCompression
	}
	if n == InfoHeaderSize {
		if err := readFull(d.r, d.tmp[FileHeaderSize+n:FileHeaderSize+V2InfoHeaderSize]); err != nil {
			return err
		}
		masks := d.tmp[FileHeaderSize+n:]
		d.ih.RedMask = binary.LittleEndian.Uint32(masks[0:])
		d.ih.GreenMask = binary.LittleEndian.Uint32(masks[4:])
		d.ih.BlueMask = binary.LittleEndian.Uint32(masks[8:])
		n = V2InfoHeaderSize
	}
	if d.ih.RedMask != rgb565.RedMask || d.ih.GreenMask != rgb565.GreenMask || d.ih.BlueMask != rgb565.BlueMask {
		return ErrUnsupportedMasks
	}

	skip := int64(d.fh.PixelOffset) - int64(FileHeaderSize+n)
	if skip < 0 {
		return ErrInvalidPixelOffset
	}
	if _, err := io.CopyN(ioutil.Discard, d.r, skip); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}

	return nil
}

// DecodeConfig returns the dimensions of a 16-bit bitmap without reading its
// pixels.
func DecodeConfig(r io.Reader) (image.Config, error) {
	d := decoder{r: r}
	if err := d.readHeaders(); err != nil {
		return image.Config{}, err
	}
	return image.Config{
		ColorModel: rgb565.Model,
		Width:      int(d.ih.Width),
		Height:     int(d.ih.Height),
	}, nil
}

// Draw reads a 16-bit bitmap from r and plots it on dst with its top-left
// corner at at. Pixels outside dst are clipped and, unless transparent is
// zero, pixels equal to transparent are left untouched. Rows above the
// visible area are never read from r.
func Draw(dst Surface, r io.Reader, at image.Point, transparent rgb565.Color) error {
	d := decoder{r: r}
	if err := d.readHeaders(); err != nil {
		return err
	}
	return d.draw(dst, at, transparent)
}

// Decode reads a 16-bit bitmap from r into a new image.
func Decode(r io.Reader) (image.Image, error) {
	d := decoder{r: r}
	if err := d.readHeaders(); err != nil {
		return nil, err
	}
	m := rgb565.NewImage(image.Rect(0, 0, int(d.ih.Width), int(d.ih.Height)))
	if err := d.draw(m, image.Point{}, 0); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *decoder) draw(dst Surface, at image.Point, transparent rgb565.Color) error {
	w, h := int(d.ih.Width), int(d.ih.Height)
	rowBytes := w * 2
	stride := rowBytes + RowPadding(rowBytes)

	visible := image.Rectangle{Min: at, Max: at.Add(image.Pt(w, h))}.Intersect(dst.Bounds())
	if visible.Empty() {
		return nil
	}

	row := make([]byte, stride)

	// Rows are stored bottom-up, row i of the stream is drawn at y
	for i := 0; i < h; i++ {
		y := at.Y + h - 1 - i
		if y < visible.Min.Y {
			break
		}

		if n, err := io.ReadFull(d.r, row); err != nil {
			// The final row is allowed to be short of its padding
			if i != h-1 || n < rowBytes || (err != io.ErrUnexpectedEOF && err != io.EOF) {
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				return err
			}
		}

		if y >= visible.Max.Y {
			continue
		}

		for x := visible.Min.X; x < visible.Max.X; x++ {
			sx := (x - at.X) * 2
			c := rgb565.Color(binary.LittleEndian.Uint16(row[sx:]))
			if transparent != 0 && c == transparent {
				continue
			}
			dst.SetRGB565(x, y, c)
		}
	}

	return nil
}
