package bmp

import (
	"bytes"
	"encoding/binary"
	"image"
	"io"
	"testing"

	"github.com/bodgit/ledmatrix/rgb565"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func convert16(t *testing.T, w, h int, px func(x, y int) bgr) []byte {
	t.Helper()
	out, err := convertChunks(t, build24(w, h, px, InfoHeaderSize, 0))
	require.NoError(t, err)
	return out
}

func expected(px func(x, y int) bgr, x, y int) rgb565.Color {
	c := px(x, y)
	return rgb565.FromRGB888(c[2], c[1], c[0])
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(bytes.NewReader(convert16(t, 5, 3, gradient)))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Width)
	assert.Equal(t, 3, cfg.Height)
	assert.Equal(t, rgb565.Model, cfg.ColorModel)

	_, err = DecodeConfig(bytes.NewReader(build24(5, 3, gradient, InfoHeaderSize, 0)))
	assert.Equal(t, ErrUnsupportedBitsPerPixel, err)
}

func TestDrawRoundTrip(t *testing.T) {
	for _, size := range []image.Point{{1, 1}, {2, 2}, {3, 1}, {5, 3}, {8, 4}} {
		b := convert16(t, size.X, size.Y, gradient)

		dst := rgb565.NewImage(image.Rect(0, 0, size.X, size.Y))
		require.NoError(t, Draw(dst, bytes.NewReader(b), image.Point{}, 0))

		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				assert.Equal(t, expected(gradient, x, y), dst.RGB565At(x, y), "%v (%d, %d)", size, x, y)
			}
		}
	}
}

func TestDrawClipping(t *testing.T) {
	b := convert16(t, 5, 3, gradient)

	tests := []struct {
		name string
		at   image.Point
	}{
		{"inside", image.Pt(1, 1)},
		{"left", image.Pt(-2, 0)},
		{"top", image.Pt(0, -2)},
		{"right", image.Pt(4, 0)},
		{"bottom", image.Pt(0, 3)},
		{"outside", image.Pt(10, 10)},
		{"far outside", image.Pt(-10, -10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := rgb565.NewImage(image.Rect(0, 0, 6, 4))
			dst.Fill(rgb565.White)

			require.NoError(t, Draw(dst, bytes.NewReader(b), tt.at, 0))

			for y := 0; y < 4; y++ {
				for x := 0; x < 6; x++ {
					want := rgb565.White
					if p := image.Pt(x, y).Sub(tt.at); p.In(image.Rect(0, 0, 5, 3)) {
						want = expected(gradient, p.X, p.Y)
					}
					assert.Equal(t, want, dst.RGB565At(x, y), "(%d, %d)", x, y)
				}
			}
		})
	}
}

func TestDrawTransparent(t *testing.T) {
	// Checkerboard of red and green
	px := func(x, y int) bgr {
		if (x+y)%2 == 0 {
			return bgr{0, 0, 0xff}
		}
		return bgr{0, 0xff, 0}
	}
	b := convert16(t, 4, 4, px)

	dst := rgb565.NewImage(image.Rect(0, 0, 4, 4))
	dst.Fill(rgb565.Blue)
	require.NoError(t, Draw(dst, bytes.NewReader(b), image.Point{}, rgb565.Red))

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := rgb565.Green
			if (x+y)%2 == 0 {
				want = rgb565.Blue
			}
			assert.Equal(t, want, dst.RGB565At(x, y))
		}
	}
}

func TestDrawShortStream(t *testing.T) {
	// 3 pixels is 6 bytes plus 2 bytes of padding per row
	b := convert16(t, 3, 4, gradient)

	t.Run("final padding missing", func(t *testing.T) {
		dst := rgb565.NewImage(image.Rect(0, 0, 3, 4))
		require.NoError(t, Draw(dst, bytes.NewReader(b[:len(b)-2]), image.Point{}, 0))
		assert.Equal(t, expected(gradient, 2, 0), dst.RGB565At(2, 0))
	})

	t.Run("final pixel missing", func(t *testing.T) {
		dst := rgb565.NewImage(image.Rect(0, 0, 3, 4))
		assert.Error(t, Draw(dst, bytes.NewReader(b[:len(b)-4]), image.Point{}, 0))
	})

	t.Run("clipped rows are not read", func(t *testing.T) {
		// Only the bottom two rows are visible so the top two can be absent
		dst := rgb565.NewImage(image.Rect(0, 0, 3, 4))
		require.NoError(t, Draw(dst, bytes.NewReader(b[:len(b)-16]), image.Pt(0, -2), 0))
		assert.Equal(t, expected(gradient, 0, 3), dst.RGB565At(0, 1))
		assert.Equal(t, expected(gradient, 0, 2), dst.RGB565At(0, 0))
	})

	t.Run("headers", func(t *testing.T) {
		dst := rgb565.NewImage(image.Rect(0, 0, 3, 4))
		assert.Error(t, Draw(dst, bytes.NewReader(b[:40]), image.Point{}, 0))
	})
}

func TestDrawRejectsNonRGB565(t *testing.T) {
	tests := []struct {
		name   string
		modify func([]byte) []byte
		err    error
	}{
		{
			"rgb555",
			func(b []byte) []byte {
				binary.LittleEndian.PutUint32(b[FileHeaderSize+16:], CompressionRGB)
				return b
			},
			ErrUnsupportedCompression,
		},
		{
			"red mask",
			func(b []byte) []byte {
				binary.LittleEndian.PutUint32(b[FileHeaderSize+InfoHeaderSize:], 0x7c00)
				return b
			},
			ErrUnsupportedMasks,
		},
		{
			"blue mask",
			func(b []byte) []byte {
				binary.LittleEndian.PutUint32(b[FileHeaderSize+InfoHeaderSize+8:], 0x00ff)
				return b
			},
			ErrUnsupportedMasks,
		},
		{
			"masks missing",
			func(b []byte) []byte {
				return b[:FileHeaderSize+InfoHeaderSize+6]
			},
			io.ErrUnexpectedEOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.modify(convert16(t, 3, 2, gradient))
			dst := rgb565.NewImage(image.Rect(0, 0, 3, 2))
			assert.Equal(t, tt.err, Draw(dst, bytes.NewReader(b), image.Point{}, 0))

			_, err := DecodeConfig(bytes.NewReader(b))
			assert.Equal(t, tt.err, err)
		})
	}
}
