package ledmatrix

import (
	"image"
	"image/color"
	"testing"
	"testing/fstest"
	"time"

	"github.com/bodgit/ledmatrix/page"
	"github.com/bodgit/ledmatrix/rgb565"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red     = color.RGBA{0xff, 0x00, 0x00, 0xff}
	green   = color.RGBA{0x00, 0xff, 0x00, 0xff}
	blue    = color.RGBA{0x00, 0x00, 0xff, 0xff}
	white   = color.RGBA{0xff, 0xff, 0xff, 0xff}
	magenta = color.RGBA{0xff, 0x00, 0xff, 0xff}
)

func mustMarshal(t *testing.T, p *page.Page) []byte {
	t.Helper()

	b, err := p.MarshalBinary()
	require.Nil(t, err)
	return b
}

func record(t *testing.T, p *page.Page) *fstest.MapFile {
	t.Helper()

	return &fstest.MapFile{Data: mustMarshal(t, p)}
}

func colorPage(c rgb565.Color) *page.Page {
	return &page.Page{
		Background: page.ColorBackground(c),
		Analog:     page.AnalogClock{CenterX: page.Hidden, CenterY: page.Hidden},
	}
}

func TestDisplayDefault(t *testing.T) {
	d := NewDisplay(fstest.MapFS{}, nil)
	now := time.Now()

	assert.NotNil(t, d.ChangePage(0, now))

	r := newRecorder()
	d.Update(r, now)

	assert.Equal(t, rgb565.FromRGB888(38, 13, 30), r.RGB565At(0, 0))
	assert.Equal(t, []textCall{{image.Pt(7, 7), 0, rgb565.White, "FS FAIL?"}}, r.text)
	assert.Empty(t, r.lines)
}

func TestDisplayPageAdvance(t *testing.T) {
	first := colorPage(rgb565.Red)
	first.Next, first.Duration = 1, 1000

	broken := colorPage(rgb565.Green)
	broken.Next, broken.Duration = 7, 1000

	fsys := fstest.MapFS{
		"pages/0/config": record(t, first),
		"pages/1/config": record(t, colorPage(rgb565.Blue)),
		"pages/2/config": record(t, broken),
	}

	d := NewDisplay(fsys, nil)
	t0 := time.Now()
	require.Nil(t, d.ChangePage(0, t0))

	r := newRecorder()

	d.Update(r, t0.Add(500*time.Millisecond))
	assert.Equal(t, rgb565.Red, r.RGB565At(5, 5))

	d.Update(r, t0.Add(time.Second))
	assert.Equal(t, rgb565.Blue, r.RGB565At(5, 5))
	id, p := d.Page()
	assert.Equal(t, uint8(1), id)
	assert.False(t, p.HasNext())

	// Page 1 never moves on
	d.Update(r, t0.Add(time.Hour))
	id, _ = d.Page()
	assert.Equal(t, uint8(1), id)

	// A missing next page keeps the current one
	require.Nil(t, d.ChangePage(2, t0))
	d.Update(r, t0.Add(time.Second))
	id, _ = d.Page()
	assert.Equal(t, uint8(2), id)
	assert.Equal(t, rgb565.Green, r.RGB565At(5, 5))
}

func TestDisplaySprites(t *testing.T) {
	p := &page.Page{
		Background: page.FileBackground("/bg.bmp"),
		Analog: page.AnalogClock{
			CenterX:      31,
			CenterY:      15,
			CenterColor:  rgb565.White,
			HourColor:    rgb565.Red,
			MinuteColor:  rgb565.Green,
			HourLength:   6,
			MinuteLength: 9,
		},
	}

	p.Sprites[0] = page.Sprite{X: 2, Y: 3, Payload: &page.ImageSprite{File: page.File{
		Path:             page.NewPath("/img.bmp"),
		TransparentColor: rgb565.FromRGB888(0xff, 0x00, 0xff),
	}}}

	text := page.NewTextSprite("Hi")
	text.Color, text.Font = rgb565.Green, 2
	p.Sprites[1] = page.Sprite{X: 1, Y: 8, Payload: text}

	clock := page.NewTimeSprite("%H:%M")
	clock.UseUTC = true
	p.Sprites[2] = page.Sprite{X: 1, Y: 20, Payload: clock}

	temperature := page.NewTemperatureSprite()
	temperature.Precision, temperature.ShowUnit = 0, false
	temperature.SetSingleColor(rgb565.Red)
	p.Sprites[3] = page.Sprite{X: 40, Y: 20, Payload: temperature}

	char := &page.CustomCharSprite{Color: rgb565.Blue, Width: 8}
	char.Data[0] = 0x81
	p.Sprites[4] = page.Sprite{X: 40, Y: 25, Payload: char}

	fsys := fstest.MapFS{
		"pages/0/config": record(t, p),
		"bg.bmp":         &fstest.MapFile{Data: bitmap16(t, 4, 4, solid(green))},
		"img.bmp": &fstest.MapFile{Data: bitmap16(t, 2, 2, func(x, y int) color.RGBA {
			return [2][2]color.RGBA{{red, magenta}, {blue, white}}[y][x]
		})},
	}

	d := NewDisplay(fsys, nil)
	d.SetTemperatureSource(func() float64 { return 21.4 })
	assert.Equal(t, 21.4, d.Temperature())

	now := time.Date(2021, time.March, 1, 13, 45, 0, 0, time.UTC)
	require.Nil(t, d.ChangePage(0, now))

	r := newRecorder()
	d.Update(r, now)

	// Background bitmap over black
	assert.Equal(t, rgb565.Green, r.RGB565At(0, 0))
	assert.Equal(t, rgb565.Black, r.RGB565At(10, 10))

	// Image sprite with transparency
	assert.Equal(t, rgb565.Red, r.RGB565At(2, 3))
	assert.Equal(t, rgb565.Green, r.RGB565At(3, 3))
	assert.Equal(t, rgb565.Blue, r.RGB565At(2, 4))
	assert.Equal(t, rgb565.White, r.RGB565At(3, 4))

	assert.Equal(t, []textCall{
		{image.Pt(1, 8), 2, rgb565.Green, "Hi"},
		{image.Pt(1, 20), 0, rgb565.White, "13:45"},
		{image.Pt(40, 20), 0, rgb565.Red, "21"},
	}, r.text)

	// Custom character
	assert.Equal(t, rgb565.Blue, r.RGB565At(40, 25))
	assert.Equal(t, rgb565.Black, r.RGB565At(41, 25))
	assert.Equal(t, rgb565.Blue, r.RGB565At(47, 25))

	// Analog clock
	require.Len(t, r.lines, 2)
	assert.Equal(t, image.Pt(31, 15), r.lines[0].From)
	assert.Equal(t, rgb565.Red, r.lines[0].Color)
	assert.Equal(t, rgb565.Green, r.lines[1].Color)
	assert.Equal(t, rgb565.White, r.RGB565At(31, 15))

	// Colons blink off on odd seconds
	r = newRecorder()
	d.Update(r, now.Add(time.Second))
	assert.Equal(t, "13 45", r.text[1].Text)
}

func TestBlinkColons(t *testing.T) {
	on := time.Date(2021, time.March, 1, 12, 0, 0, 0, time.UTC)
	off := on.Add(time.Second + 600*time.Millisecond)

	tables := []struct {
		name  string
		blink bool
		both  bool
		slow  bool
		now   time.Time
		want  string
	}{
		{"disabled", false, true, true, off, "12:00:01"},
		{"slow on", true, true, true, on, "12:00:01"},
		{"slow off", true, true, true, off, "12 00 01"},
		{"last only", true, false, true, off, "12:00 01"},
		{"fast on", true, true, false, on, "12:00:01"},
		{"fast off", true, true, false, off, "12 00 01"},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			ts := &page.TimeSprite{BlinkColon: table.blink, BothColons: table.both, BlinkSlow: table.slow}
			assert.Equal(t, table.want, blinkColons("12:00:01", ts, table.now))
		})
	}
}

// midFrame runs during whenever the background is filled.
type midFrame struct {
	*recorder
	during func()
}

func (s *midFrame) Fill(c rgb565.Color) {
	s.during()
	s.recorder.Fill(c)
}

func TestDisplayAccessorsDuringUpdate(t *testing.T) {
	second := colorPage(rgb565.Green)
	fsys := fstest.MapFS{
		"pages/3/config": record(t, second),
	}

	d := NewDisplay(fsys, nil)
	d.SetTemperatureSource(func() float64 { return 18.5 })

	now := time.Now()
	require.Nil(t, d.ChangePage(3, now))

	var (
		id       uint8
		p        page.Page
		reading  float64
		returned bool
	)
	s := &midFrame{recorder: newRecorder(), during: func() {
		done := make(chan struct{})
		go func() {
			id, p = d.Page()
			reading = d.Temperature()
			close(done)
		}()
		select {
		case <-done:
			returned = true
		case <-time.After(time.Second):
		}
	}}

	d.Update(s, now)

	require.True(t, returned)
	assert.Equal(t, uint8(3), id)
	assert.Equal(t, second.Background, p.Background)
	assert.Equal(t, 18.5, reading)
	assert.Equal(t, rgb565.Green, s.RGB565At(0, 0))
}
