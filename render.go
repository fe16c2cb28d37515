package ledmatrix

import (
	"fmt"
	"image"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/bodgit/ledmatrix/bmp"
	"github.com/bodgit/ledmatrix/internal/logging"
	"github.com/bodgit/ledmatrix/page"
	"github.com/bodgit/ledmatrix/rgb565"
	"github.com/lestrrat-go/strftime"
)

// Surface is what the renderer draws a frame on.
type Surface interface {
	bmp.Surface
	Fill(c rgb565.Color)
}

// TextDrawer is implemented by surfaces that can draw text with its
// baseline starting at (x, y).
type TextDrawer interface {
	DrawText(x, y int, font uint8, c rgb565.Color, s string)
}

// LineDrawer is implemented by surfaces that can draw lines.
type LineDrawer interface {
	DrawLine(x0, y0, x1, y1 int, c rgb565.Color)
}

func milliseconds(v uint16) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Display renders the active page. Update is expected to be called from a
// single render loop, the accessors are safe to call from anywhere and do
// not wait for a frame to finish drawing.
type Display struct {
	fsys   fs.FS
	logger *logging.Logger

	// render serialises page changes and drawing
	render     sync.Mutex
	changed    time.Time
	background frameState
	sprites    [page.MaxSprites]frameState

	// mu guards the fields read by the accessors, page is only written
	// with render held as well
	mu          sync.RWMutex
	temperature func() float64
	id          uint8
	page        page.Page
}

// NewDisplay returns a Display showing the fallback page until ChangePage
// succeeds.
func NewDisplay(fsys fs.FS, logger *logging.Logger) *Display {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Display{
		fsys:        fsys,
		logger:      logger,
		temperature: func() float64 { return 0 },
		page:        *page.Default(),
	}
}

// SetTemperatureSource sets the function returning the current reading in
// degrees Celsius.
func (d *Display) SetTemperatureSource(fn func() float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.temperature = fn
}

// Temperature returns the current reading in degrees Celsius.
func (d *Display) Temperature() float64 {
	d.mu.RLock()
	fn := d.temperature
	d.mu.RUnlock()
	return fn()
}

// Page returns the id and a copy of the active page.
func (d *Display) Page() (uint8, page.Page) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.id, d.page
}

// ChangePage loads page id. On failure the previous page stays active
// but its timer restarts.
func (d *Display) ChangePage(id uint8, now time.Time) error {
	d.render.Lock()
	defer d.render.Unlock()
	return d.changePage(id, now)
}

func (d *Display) changePage(id uint8, now time.Time) error {
	d.changed = now

	var p page.Page
	if err := page.Load(d.fsys, id, &p); err != nil {
		d.logger.Error("Failed to load page %d: %v", id, err)
		return err
	}

	d.mu.Lock()
	d.id, d.page = id, p
	d.mu.Unlock()

	d.background.reset(now)
	for i := range d.sprites {
		d.sprites[i].reset(now)
	}
	d.logger.Info("Showing page %d", id)
	return nil
}

// Update draws the active page as of now on s, switching to the next page
// first if the active one has run its course.
func (d *Display) Update(s Surface, now time.Time) {
	d.render.Lock()
	defer d.render.Unlock()

	if d.changed.IsZero() {
		d.changed = now
		d.background.reset(now)
		for i := range d.sprites {
			d.sprites[i].reset(now)
		}
	}

	if d.page.HasNext() && now.Sub(d.changed) >= milliseconds(d.page.Duration) {
		_ = d.changePage(d.page.Next, now)
	}

	d.drawBackground(s, now)
	for i := range d.page.Sprites {
		d.drawSprite(s, i, now)
	}
	d.drawAnalog(s, now)
}

func (d *Display) drawBitmap(s Surface, name string, at image.Point, transparent rgb565.Color) error {
	f, err := d.fsys.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := bmp.Draw(s, f, at, transparent); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (d *Display) drawFile(s Surface, raw string, st *frameState, interval time.Duration, at image.Point, transparent rgb565.Color, now time.Time) error {
	name, err := resolveFrame(d.fsys, raw, st, interval, now)
	if err != nil {
		return err
	}
	return d.drawBitmap(s, name, at, transparent)
}

func (d *Display) drawBackground(s Surface, now time.Time) {
	bg := d.page.Background
	if !bg.UsesFile() {
		s.Fill(bg.Color)
		return
	}

	s.Fill(rgb565.Black)
	if err := d.drawFile(s, bg.Path.String(), &d.background, milliseconds(d.page.BackgroundDuration), image.Point{}, 0, now); err != nil {
		d.logger.Error("Failed to draw background: %v", err)
	}
}

func (d *Display) drawText(s Surface, at image.Point, font uint8, c rgb565.Color, text string) {
	td, ok := s.(TextDrawer)
	if !ok {
		return
	}
	td.DrawText(at.X, at.Y, font, c, text)
}

// blinkColons blanks colons for half of each blink period.
func blinkColons(text string, ts *page.TimeSprite, now time.Time) string {
	if !ts.BlinkColon {
		return text
	}

	on := now.Nanosecond() < int(500*time.Millisecond)
	if ts.BlinkSlow {
		on = now.Unix()%2 == 0
	}
	if on {
		return text
	}

	if ts.BothColons {
		return strings.ReplaceAll(text, ":", " ")
	}
	if i := strings.LastIndexByte(text, ':'); i >= 0 {
		return text[:i] + " " + text[i+1:]
	}
	return text
}

func (d *Display) drawSprite(s Surface, i int, now time.Time) {
	sprite := d.page.Sprites[i]
	at := image.Pt(int(sprite.X), int(sprite.Y))

	switch p := sprite.Payload.(type) {
	case nil:
	case *page.TextSprite:
		d.drawText(s, at, p.Font, p.Color, p.Text.String())
	case *page.TimeSprite:
		t := now.Local()
		if p.UseUTC {
			t = now.UTC()
		}
		text, err := strftime.Format(p.Format.String(), t)
		if err != nil {
			d.logger.Error("Sprite %d: %v", i, err)
			return
		}
		d.drawText(s, at, p.Font, p.Color, blinkColons(text, p, now))
	case *page.TemperatureSprite:
		if p.Source != page.SourceLocal {
			d.logger.Debug("Sprite %d: %s temperature unavailable, using local", i, p.Source)
		}
		c := d.Temperature()
		d.drawText(s, at, p.Font, p.InterpolateColor(float32(c)), p.Text(c))
	case *page.ImageSprite:
		if err := d.drawFile(s, p.Path.String(), &d.sprites[i], milliseconds(p.FrameDuration), at, p.TransparentColor, now); err != nil {
			d.logger.Error("Sprite %d: %v", i, err)
		}
	case *page.AnimationSprite:
		if err := d.drawFile(s, p.Path.String(), &d.sprites[i], milliseconds(p.FrameDuration), at, p.TransparentColor, now); err != nil {
			d.logger.Error("Sprite %d: %v", i, err)
		}
	case *page.CustomCharSprite:
		p.Each(func(x, y int) {
			s.SetRGB565(at.X+x, at.Y+y, p.Color)
		})
	}
}

func (d *Display) drawAnalog(s Surface, now time.Time) {
	a := d.page.Analog
	if !a.Visible() {
		return
	}

	c := a.Center()
	if ld, ok := s.(LineDrawer); ok {
		for _, h := range a.Hands(now.Local()) {
			ld.DrawLine(c.X, c.Y, h.End.X, h.End.Y, h.Color)
		}
	}
	s.SetRGB565(c.X, c.Y, a.CenterColor)
}
