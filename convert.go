package ledmatrix

import (
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/bodgit/ledmatrix/bmp"
	"github.com/ericpauley/go-quantize/quantize"
	xbmp "golang.org/x/image/bmp"
)

// chunkSize is how much is read before handing data to the converter. The
// headers must arrive in the first chunk.
const chunkSize = 2048

// copyChunks copies r to w in writes of chunkSize bytes, the last possibly
// shorter.
func copyChunks(w io.Writer, r io.Reader) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
		}
		switch err {
		case nil:
		case io.EOF, io.ErrUnexpectedEOF:
			return nil
		default:
			return err
		}
	}
}

// ConvertBMP converts the 24-bit bitmap read from src to the 16-bit layout
// and writes it to dst.
func ConvertBMP(dst io.Writer, src io.Reader) error {
	w := bmp.NewWriter(dst)
	if err := copyChunks(w, src); err != nil {
		return err
	}
	return w.Close()
}

// ConvertImage writes m to dst as a 16-bit bitmap. If colors is positive the
// image is first reduced to a palette of at most that many colors.
func ConvertImage(dst io.Writer, m image.Image, colors int) error {
	b := m.Bounds()

	if colors > 0 {
		q := quantize.MedianCutQuantizer{}
		pm := image.NewPaletted(b, q.Quantize(make(color.Palette, 0, colors), m))
		draw.Draw(pm, b, m, b.Min, draw.Src)
		m = pm
	}

	// Always encode 24 bits per pixel, paletted images would produce 8
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), m, b.Min, draw.Src)

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(xbmp.Encode(pw, opaque{rgba}))
	}()
	defer pr.Close()

	return ConvertBMP(dst, pr)
}

// opaque hides the alpha channel so the encoder writes 24-bit pixels.
type opaque struct {
	*image.RGBA
}

func (opaque) Opaque() bool { return true }
