/*
Package rgb565 implements the 16-bit color format used by the LED matrix.

Each pixel is packed as RRRRRGGGGGGBBBBB, five bits of red, six bits of green
and five bits of blue, and is stored little-endian wherever it is written to a
file or a framebuffer.
*/
package rgb565

import (
	"image"
	"image/color"
)

// Channel masks of a packed pixel.
const (
	RedMask   = 0xf800
	GreenMask = 0x07e0
	BlueMask  = 0x001f
)

// Well known colors.
const (
	Black Color = 0x0000
	White Color = 0xffff
	Red   Color = RedMask
	Green Color = GreenMask
	Blue  Color = BlueMask
)

// Color is a packed RGB565 pixel. It implements color.Color.
type Color uint16

// FromRGB888 packs 8-bit channels into a Color by dropping the low bits of
// each channel.
func FromRGB888(r, g, b uint8) Color {
	return Color(uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3))
}

// RGB888 expands c back to 8 bits per channel, replicating the high bits into
// the low bits so that full intensity maps to 0xff.
func (c Color) RGB888() (r, g, b uint8) {
	r5 := uint8(c >> 11 & 0x1f)
	g6 := uint8(c >> 5 & 0x3f)
	b5 := uint8(c & 0x1f)
	return r5<<3 | r5>>2, g6<<2 | g6>>4, b5<<3 | b5>>2
}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	r8, g8, b8 := c.RGB888()
	r = uint32(r8)
	r |= r << 8
	g = uint32(g8)
	g |= g << 8
	b = uint32(b8)
	b |= b << 8
	return r, g, b, 0xffff
}

func toColor(c color.Color) color.Color {
	if c, ok := c.(Color); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return FromRGB888(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

// Model converts colors to Color.
var Model = color.ModelFunc(toColor)

// Image is an in-memory image of packed RGB565 pixels, two bytes per pixel,
// little-endian.
type Image struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

// NewImage returns a new black Image with the given bounds.
func NewImage(r image.Rectangle) *Image {
	w, h := r.Dx(), r.Dy()
	if w < 0 || h < 0 {
		return &Image{Rect: r}
	}
	return &Image{
		Pix:    make([]byte, 2*w*h),
		Stride: 2 * w,
		Rect:   r,
	}
}

// ColorModel implements image.Image.
func (p *Image) ColorModel() color.Model { return Model }

// Bounds implements image.Image.
func (p *Image) Bounds() image.Rectangle { return p.Rect }

// At implements image.Image.
func (p *Image) At(x, y int) color.Color { return p.RGB565At(x, y) }

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (p *Image) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*2
}

// RGB565At returns the pixel at (x, y), or Black outside the bounds.
func (p *Image) RGB565At(x, y int) Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return Black
	}
	i := p.PixOffset(x, y)
	return Color(p.Pix[i]) | Color(p.Pix[i+1])<<8
}

// Set implements draw.Image.
func (p *Image) Set(x, y int, c color.Color) {
	p.SetRGB565(x, y, Model.Convert(c).(Color))
}

// SetRGB565 sets the pixel at (x, y). Points outside the bounds are ignored.
func (p *Image) SetRGB565(x, y int, c Color) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	p.Pix[i] = byte(c)
	p.Pix[i+1] = byte(c >> 8)
}

// Fill sets every pixel to c.
func (p *Image) Fill(c Color) {
	for y := p.Rect.Min.Y; y < p.Rect.Max.Y; y++ {
		i := p.PixOffset(p.Rect.Min.X, y)
		for x := p.Rect.Min.X; x < p.Rect.Max.X; x, i = x+1, i+2 {
			p.Pix[i] = byte(c)
			p.Pix[i+1] = byte(c >> 8)
		}
	}
}

// Opaque implements the optional image.Image Opaque method.
func (p *Image) Opaque() bool { return true }
