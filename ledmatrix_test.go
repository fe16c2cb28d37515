package ledmatrix

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/bodgit/ledmatrix/rgb565"
	"github.com/bodgit/ledmatrix/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xbmp "golang.org/x/image/bmp"
)

func newTestMatrix(t *testing.T) (*Matrix, *store.Dir) {
	t.Helper()

	s, err := store.NewDir(t.TempDir())
	require.Nil(t, err)

	m, err := New(s, DefaultConfig(), nil)
	require.Nil(t, err)

	return m, s
}

func newRGBA(w, h int, fn func(x, y int) color.RGBA) *image.RGBA {
	m := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetRGBA(x, y, fn(x, y))
		}
	}
	return m
}

func solid(c color.RGBA) func(int, int) color.RGBA {
	return func(int, int) color.RGBA { return c }
}

// bitmap24 returns a 24-bit bitmap as produced by most editors.
func bitmap24(t *testing.T, w, h int, fn func(x, y int) color.RGBA) []byte {
	t.Helper()

	buf := new(bytes.Buffer)
	require.Nil(t, xbmp.Encode(buf, newRGBA(w, h, fn)))
	return buf.Bytes()
}

// bitmap16 returns a bitmap in the layout the renderer draws.
func bitmap16(t *testing.T, w, h int, fn func(x, y int) color.RGBA) []byte {
	t.Helper()

	buf := new(bytes.Buffer)
	require.Nil(t, ConvertImage(buf, newRGBA(w, h, fn), 0))
	return buf.Bytes()
}

type textCall struct {
	At    image.Point
	Font  uint8
	Color rgb565.Color
	Text  string
}

type lineCall struct {
	From, To image.Point
	Color    rgb565.Color
}

// recorder is a surface that remembers text and lines drawn on it.
type recorder struct {
	*rgb565.Image
	text  []textCall
	lines []lineCall
}

func newRecorder() *recorder {
	return &recorder{Image: rgb565.NewImage(image.Rect(0, 0, 64, 32))}
}

func (r *recorder) DrawText(x, y int, font uint8, c rgb565.Color, s string) {
	r.text = append(r.text, textCall{image.Pt(x, y), font, c, s})
}

func (r *recorder) DrawLine(x0, y0, x1, y1 int, c rgb565.Color) {
	r.lines = append(r.lines, lineCall{image.Pt(x0, y0), image.Pt(x1, y1), c})
}

func TestNew(t *testing.T) {
	m, s := newTestMatrix(t)

	assert.Equal(t, s, m.Store())
	assert.Equal(t, DefaultConfig(), m.Config())
	assert.NotNil(t, m.Display())

	c := DefaultConfig()
	c.Width = 0
	_, err := New(s, c, nil)
	assert.NotNil(t, err)
}

func TestConfigValidate(t *testing.T) {
	tables := []struct {
		name   string
		modify func(*Config)
	}{
		{"width", func(c *Config) { c.Width = -1 }},
		{"height", func(c *Config) { c.Height = 256 }},
		{"upload size", func(c *Config) { c.MaxUploadSize = 0 }},
		{"frame interval", func(c *Config) { c.FrameInterval = 0 }},
		{"log level", func(c *Config) { c.LogLevel = "chatty" }},
	}

	assert.Nil(t, DefaultConfig().Validate())

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			c := DefaultConfig()
			table.modify(&c)
			assert.NotNil(t, c.Validate())
		})
	}
}

func TestRun(t *testing.T) {
	m, s := newTestMatrix(t)
	writeFile(t, s, "pages/0/config", mustMarshal(t, colorPage(rgb565.Blue)))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	r := newRecorder()
	frames := 0
	err := m.Run(ctx, r, func() error {
		frames++
		return nil
	})
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.Greater(t, frames, 0)
	assert.Equal(t, rgb565.Blue, r.RGB565At(0, 0))

	broken := errors.New("panel unplugged")
	err = m.Run(context.Background(), r, func() error {
		return broken
	})
	assert.Equal(t, broken, err)
}
