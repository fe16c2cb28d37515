package panel

import (
	"errors"
	"image"
	"testing"

	"github.com/bodgit/ledmatrix/rgb565"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

type fakePort struct {
	hz   physic.Frequency
	mode spi.Mode
	bits int
	err  error
	tx   [][]byte
}

func (p *fakePort) String() string { return "fake" }
func (p *fakePort) LimitSpeed(f physic.Frequency) error { return nil }
func (p *fakePort) Duplex() conn.Duplex { return conn.Half }
func (p *fakePort) TxPackets(pkts []spi.Packet) error { return errors.New("not supported") }
func (p *fakePort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	p.hz, p.mode, p.bits = f, mode, bits
	return p, nil
}

func (p *fakePort) Tx(w, r []byte) error {
	if p.err != nil {
		return p.err
	}
	p.tx = append(p.tx, append([]byte(nil), w...))
	return nil
}

func TestNewSPI(t *testing.T) {
	p := new(fakePort)
	d, err := NewSPI(p, nil)
	require.Nil(t, err)

	assert.Equal(t, image.Rect(0, 0, 64, 32), d.Bounds())
	assert.Equal(t, 8*physic.MegaHertz, p.hz)
	assert.Equal(t, spi.Mode0, p.mode)
	assert.Equal(t, 8, p.bits)
	assert.Equal(t, "panel.Dev{64x32}", d.String())

	tables := []struct {
		name string
		opts Opts
	}{
		{"wide", Opts{W: 256}},
		{"tall", Opts{H: -1}},
		{"odd transaction", Opts{MaxTxSize: 3}},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			_, err := NewSPI(new(fakePort), &table.opts)
			assert.NotNil(t, err)
		})
	}
}

func TestFlush(t *testing.T) {
	p := new(fakePort)
	d, err := NewSPI(p, &Opts{W: 3, H: 2, MaxTxSize: 4})
	require.Nil(t, err)

	c := d.NewCanvas()
	c.SetRGB565(0, 0, 0x1234)
	c.SetRGB565(2, 1, rgb565.White)

	require.Nil(t, d.Flush(c))
	assert.Equal(t, [][]byte{
		{0x12, 0x34, 0x00, 0x00},
		{0x00, 0x00, 0x00, 0x00},
		{0x00, 0x00, 0xff, 0xff},
	}, p.tx)

	p.tx = nil
	require.Nil(t, d.Halt())
	assert.Len(t, p.tx, 3)
	assert.NotNil(t, d.Flush(c))
	assert.Nil(t, d.Halt())

	p = &fakePort{err: errors.New("bus error")}
	d, err = NewSPI(p, &Opts{W: 1, H: 1})
	require.Nil(t, err)
	assert.NotNil(t, d.Flush(d.NewCanvas()))
}

func TestDrawLine(t *testing.T) {
	tables := []struct {
		name           string
		x0, y0, x1, y1 int
		points         []image.Point
	}{
		{"point", 1, 1, 1, 1, []image.Point{{1, 1}}},
		{"horizontal", 0, 0, 3, 0, []image.Point{{0, 0}, {1, 0}, {2, 0}, {3, 0}}},
		{"vertical", 2, 3, 2, 1, []image.Point{{2, 1}, {2, 2}, {2, 3}}},
		{"diagonal", 0, 0, 2, 2, []image.Point{{0, 0}, {1, 1}, {2, 2}}},
		{"clipped", -2, 0, 1, 0, []image.Point{{0, 0}, {1, 0}}},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			c := NewCanvas(image.Rect(0, 0, 4, 4))
			c.DrawLine(table.x0, table.y0, table.x1, table.y1, rgb565.Red)

			var got []image.Point
			for y := 0; y < 4; y++ {
				for x := 0; x < 4; x++ {
					if c.RGB565At(x, y) == rgb565.Red {
						got = append(got, image.Pt(x, y))
					}
				}
			}
			assert.ElementsMatch(t, table.points, got)
		})
	}
}

func TestDrawText(t *testing.T) {
	c := NewCanvas(image.Rect(0, 0, 32, 16))
	c.DrawText(0, 12, 0, rgb565.Green, "Hi")

	lit := 0
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			switch c.RGB565At(x, y) {
			case rgb565.Green:
				lit++
				assert.Less(t, x, 14)
			case rgb565.Black:
			default:
				t.Fatalf("unexpected colour at %d,%d", x, y)
			}
		}
	}
	assert.Greater(t, lit, 0)
}
