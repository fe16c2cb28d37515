// Package panel drives an RGB565 LED matrix panel over SPI.
//
// Frames are composed on a Canvas and pushed to the panel with Dev.Flush as
// a stream of big-endian RGB565 pixels, row by row from the top-left corner.
package panel

import (
	"errors"
	"fmt"
	"image"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Opts is the configuration for the panel.
type Opts struct {
	W int // Width (default: 64)
	H int // Height (default: 32)

	Hz physic.Frequency // SPI clock (default: 8MHz)

	// MaxTxSize limits the bytes sent per SPI transaction (default: 4096)
	MaxTxSize int
}

// Dev is the device handle for the panel.
type Dev struct {
	c      conn.Conn
	rect   image.Rectangle
	buffer []byte
	maxTx  int
	halted bool
}

func (o *Opts) withDefaults() Opts {
	opts := Opts{W: 64, H: 32, Hz: 8 * physic.MegaHertz, MaxTxSize: 4096}
	if o == nil {
		return opts
	}
	if o.W != 0 {
		opts.W = o.W
	}
	if o.H != 0 {
		opts.H = o.H
	}
	if o.Hz != 0 {
		opts.Hz = o.Hz
	}
	if o.MaxTxSize != 0 {
		opts.MaxTxSize = o.MaxTxSize
	}
	return opts
}

func (o Opts) validate() error {
	if o.W <= 0 || o.W > 255 {
		return errors.New("panel: width must be between 1 and 255")
	}
	if o.H <= 0 || o.H > 255 {
		return errors.New("panel: height must be between 1 and 255")
	}
	if o.MaxTxSize < 2 || o.MaxTxSize%2 != 0 {
		return errors.New("panel: transaction size must be even")
	}
	return nil
}

// NewSPI connects to a panel on p. opts can be nil to use defaults.
func NewSPI(p spi.Port, opts *Opts) (*Dev, error) {
	o := opts.withDefaults()
	if err := o.validate(); err != nil {
		return nil, err
	}

	c, err := p.Connect(o.Hz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("panel: %w", err)
	}

	return &Dev{
		c:      c,
		rect:   image.Rect(0, 0, o.W, o.H),
		buffer: make([]byte, o.W*o.H*2),
		maxTx:  o.MaxTxSize,
	}, nil
}

// Bounds returns the panel dimensions.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// NewCanvas returns a black Canvas the size of the panel.
func (d *Dev) NewCanvas() *Canvas {
	return NewCanvas(d.rect)
}

// Flush sends the part of c overlapping the panel.
func (d *Dev) Flush(c *Canvas) error {
	if d.halted {
		return errors.New("panel: device is halted")
	}

	i := 0
	for y := d.rect.Min.Y; y < d.rect.Max.Y; y++ {
		for x := d.rect.Min.X; x < d.rect.Max.X; x++ {
			px := c.RGB565At(x, y)
			d.buffer[i] = byte(px >> 8)
			d.buffer[i+1] = byte(px)
			i += 2
		}
	}

	return d.send(d.buffer)
}

func (d *Dev) send(b []byte) error {
	for len(b) > 0 {
		n := len(b)
		if n > d.maxTx {
			n = d.maxTx
		}
		if err := d.c.Tx(b[:n], nil); err != nil {
			return fmt.Errorf("panel: %w", err)
		}
		b = b[n:]
	}
	return nil
}

// Halt blanks the panel. Flush fails afterwards.
func (d *Dev) Halt() error {
	if d.halted {
		return nil
	}
	for i := range d.buffer {
		d.buffer[i] = 0
	}
	err := d.send(d.buffer)
	d.halted = true
	return err
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("panel.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}
