package panel

import (
	"image"

	"github.com/bodgit/ledmatrix/rgb565"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Canvas is a framebuffer the renderer draws on. Besides plotting pixels it
// can draw text and lines.
type Canvas struct {
	*rgb565.Image
}

// NewCanvas returns a black Canvas with bounds r.
func NewCanvas(r image.Rectangle) *Canvas {
	return &Canvas{rgb565.NewImage(r)}
}

// DrawText draws s with its baseline starting at (x, y). Only one face is
// available so the face index is ignored.
func (c *Canvas) DrawText(x, y int, _ uint8, col rgb565.Color, s string) {
	d := font.Drawer{
		Dst:  c.Image,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// DrawLine draws a line between two points, inclusive.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int, col rgb565.Color) {
	dx, sx := abs(x1-x0), sign(x1-x0)
	dy, sy := -abs(y1-y0), sign(y1-y0)
	e := dx + dy

	for {
		c.SetRGB565(x0, y0, col)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
